package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span measures a logical unit of work (a media upload, a migration run)
// and emits a completion entry through the request-scoped logger.
type Span struct {
	logger *slog.Logger
	start  time.Time
}

// StartSpan derives a logger enriched with a span identifier and the span
// name, stores it on the returned context, and returns the span handle.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := FromContext(ctx).With(
		slog.String("span_id", uuid.NewString()),
		slog.String("span_name", name),
	)

	ctx = WithLogger(ctx, logger)

	return ctx, &Span{logger: logger, start: time.Now()}
}

// End finalizes the span and emits a completion log entry.
func (s *Span) End() {
	if s == nil {
		return
	}
	s.logger.Info("span completed", slog.Duration("duration", time.Since(s.start)))
}
