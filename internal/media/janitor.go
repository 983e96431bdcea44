package media

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Deleter is the slice of the uploader the janitor needs.
type Deleter interface {
	Delete(ctx context.Context, url string) error
}

// JanitorConfig controls the concurrency characteristics of the janitor.
type JanitorConfig struct {
	QueueSize int
	Workers   int
	Timeout   time.Duration
}

// Janitor deletes replaced media objects in the background so avatar and
// cover replacements never block on, or fail because of, cleanup.
type Janitor struct {
	deleter Deleter
	logger  *slog.Logger
	timeout time.Duration

	mu     sync.Mutex
	closed bool

	jobs chan string
	wg   sync.WaitGroup
}

// NewJanitor starts the worker pool.
func NewJanitor(deleter Deleter, cfg JanitorConfig, logger *slog.Logger) *Janitor {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 32
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	j := &Janitor{
		deleter: deleter,
		logger:  logger,
		timeout: cfg.Timeout,
		jobs:    make(chan string, cfg.QueueSize),
	}

	j.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go j.worker()
	}

	return j
}

// Enqueue schedules a media object for deletion. A full queue or a closed
// janitor drops the job with a log entry; cleanup is best effort and must
// never fail the request that replaced the object.
func (j *Janitor) Enqueue(url string) {
	if url == "" {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		j.logger.Warn("media cleanup skipped, janitor closed", "url", url)
		return
	}

	select {
	case j.jobs <- url:
	default:
		j.logger.Warn("media cleanup queue full, dropping", "url", url)
	}
}

// Close stops accepting work, drains the queue, and waits for the workers.
func (j *Janitor) Close() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.closed = true
	close(j.jobs)
	j.mu.Unlock()

	j.wg.Wait()
}

func (j *Janitor) worker() {
	defer j.wg.Done()

	for url := range j.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
		if err := j.deleter.Delete(ctx, url); err != nil {
			j.logger.Warn("delete replaced media object", "url", url, "error", err)
		} else {
			j.logger.Info("deleted replaced media object", "url", url)
		}
		cancel()
	}
}
