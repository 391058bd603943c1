package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civiclens/civiclens-go/internal/model"
)

// RateLimitRepo owns the lazily-created rate_limit_windows counters.
// Increments happen in a single upsert so two concurrent requests from the
// same subject can never both observe the pre-increment count.
type RateLimitRepo struct {
	pool *pgxpool.Pool
}

func NewRateLimitRepo(pool *pgxpool.Pool) *RateLimitRepo {
	return &RateLimitRepo{pool: pool}
}

// WindowStart truncates now to the start of the given window kind.
func WindowStart(kind string, now time.Time) time.Time {
	switch kind {
	case model.WindowDay:
		y, m, d := now.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	default:
		return now.UTC().Truncate(time.Hour)
	}
}

// WindowEnd returns when the window containing now closes.
func WindowEnd(kind string, now time.Time) time.Time {
	start := WindowStart(kind, now)
	if kind == model.WindowDay {
		return start.Add(24 * time.Hour)
	}
	return start.Add(time.Hour)
}

// Increment bumps the counter for (subject, action, window) and returns the
// post-increment count.
func (r *RateLimitRepo) Increment(ctx context.Context, subject, action, kind string) (int, error) {
	start := WindowStart(kind, time.Now())
	var count int
	err := r.pool.QueryRow(ctx, `
		INSERT INTO rate_limit_windows (subject, action_type, window_kind, window_start, count)
		VALUES ($1, $2, $3, $4, 1)
		ON CONFLICT (subject, action_type, window_kind, window_start) DO UPDATE
		SET count = rate_limit_windows.count + 1
		RETURNING count`, subject, action, kind, start).Scan(&count)
	return count, err
}

// ExpireOld garbage-collects windows older than the retention horizon.
func (r *RateLimitRepo) ExpireOld(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM rate_limit_windows
		WHERE window_start < NOW() - make_interval(secs => $1)`, olderThan.Seconds())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
