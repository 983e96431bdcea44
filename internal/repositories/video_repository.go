package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
)

// PostgresVideoRepository provides PostgreSQL-backed persistence for videos
// and watch history.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

// CreateVideo stores a new video record.
func (r *PostgresVideoRepository) CreateVideo(ctx context.Context, video models.Video) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO videos (id, owner_id, title, description, thumbnail_url, video_url, duration, views, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, video.ID, video.OwnerID, video.Title, video.Description, video.ThumbnailURL,
		video.VideoURL, video.Duration, video.Views, video.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case uniqueViolation:
				return ErrConflict
			case "23503":
				return ErrNotFound
			}
		}
		return fmt.Errorf("insert video: %w", err)
	}

	return nil
}

// RecordWatch appends a video to the user's watch history. Re-watching moves
// the entry to the front rather than duplicating it.
func (r *PostgresVideoRepository) RecordWatch(ctx context.Context, userID, videoID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO watch_history (user_id, video_id, watched_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (user_id, video_id)
        DO UPDATE SET watched_at = EXCLUDED.watched_at
    `, userID, videoID, time.Now().UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrNotFound
		}
		return fmt.Errorf("record watch: %w", err)
	}

	return nil
}

// WatchHistory returns the user's history joined with video and owner fields,
// most recently watched first.
func (r *PostgresVideoRepository) WatchHistory(ctx context.Context, userID string) ([]models.WatchEntry, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT v.id, v.owner_id, v.title, v.description, v.thumbnail_url, v.video_url,
               v.duration, v.views, v.created_at,
               o.id, o.handle, o.full_name, o.avatar_url,
               wh.watched_at
        FROM watch_history wh
        JOIN videos v ON v.id = wh.video_id
        JOIN users o ON o.id = v.owner_id
        WHERE wh.user_id = $1
        ORDER BY wh.watched_at DESC
        LIMIT 100
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query watch history: %w", err)
	}
	defer rows.Close()

	var entries []models.WatchEntry
	for rows.Next() {
		var entry models.WatchEntry
		if err := rows.Scan(
			&entry.Video.ID, &entry.Video.OwnerID, &entry.Video.Title, &entry.Video.Description,
			&entry.Video.ThumbnailURL, &entry.Video.VideoURL, &entry.Video.Duration,
			&entry.Video.Views, &entry.Video.CreatedAt,
			&entry.Owner.ID, &entry.Owner.Handle, &entry.Owner.FullName, &entry.Owner.AvatarURL,
			&entry.WatchedAt,
		); err != nil {
			return nil, fmt.Errorf("scan watch entry: %w", err)
		}
		entry.WatchedAt = entry.WatchedAt.UTC()
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watch history: %w", err)
	}

	return entries, nil
}

var _ VideoRepository = (*PostgresVideoRepository)(nil)
