package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civiclens/civiclens-go/internal/model"
)

// AbuseRepo owns the append-only abuse_events audit log. Rows are never
// updated or deleted here; retention is a bulk policy outside this code.
type AbuseRepo struct {
	pool *pgxpool.Pool
}

func NewAbuseRepo(pool *pgxpool.Pool) *AbuseRepo {
	return &AbuseRepo{pool: pool}
}

// Insert appends one audit record.
func (r *AbuseRepo) Insert(ctx context.Context, ev *model.AbuseEvent) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO abuse_events (user_id, ip_hash, violation_type, severity, details, action_taken)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.UserID, ev.IPHash, ev.ViolationType, ev.Severity, ev.Details, ev.ActionTaken)
	return err
}

// CountForUserSince returns the number of abuse events recorded against a
// user inside the rolling window ending now.
func (r *AbuseRepo) CountForUserSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM abuse_events
		WHERE user_id = $1 AND created_at >= $2`, userID, since).Scan(&count)
	return count, err
}

// RecentForUser lists a user's latest abuse events, newest first.
// Used by the admin surface.
func (r *AbuseRepo) RecentForUser(ctx context.Context, userID string, limit int) ([]model.AbuseEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, ip_hash, violation_type, severity, details, action_taken, created_at
		FROM abuse_events
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.AbuseEvent
	for rows.Next() {
		var ev model.AbuseEvent
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.IPHash, &ev.ViolationType,
			&ev.Severity, &ev.Details, &ev.ActionTaken, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
