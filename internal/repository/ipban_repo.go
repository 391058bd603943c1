package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civiclens/civiclens-go/internal/model"
)

// IPBanRepo owns the ip_bans escalation ladder.
type IPBanRepo struct {
	pool *pgxpool.Pool
}

func NewIPBanRepo(pool *pgxpool.Pool) *IPBanRepo {
	return &IPBanRepo{pool: pool}
}

// BanDuration maps a cumulative violation count to how long the next ban
// lasts. Zero means permanent.
func BanDuration(violationCount int) time.Duration {
	switch {
	case violationCount <= 2:
		return time.Hour
	case violationCount <= 5:
		return 24 * time.Hour
	case violationCount <= 10:
		return 7 * 24 * time.Hour
	default:
		return 0
	}
}

// Active returns the current ban for an IP, or nil if there is none or it
// has expired.
func (r *IPBanRepo) Active(ctx context.Context, ipHash string) (*model.IPBan, error) {
	var b model.IPBan
	err := r.pool.QueryRow(ctx, `
		SELECT ip_hash, reason, banned_at, banned_until, violation_count
		FROM ip_bans
		WHERE ip_hash = $1
		  AND (banned_until IS NULL OR banned_until > NOW())`, ipHash).Scan(
		&b.IPHash, &b.Reason, &b.BannedAt, &b.BannedUntil, &b.ViolationCount,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// RecordViolation increments the violation counter for an IP and escalates
// the ban according to the ladder, creating the row on first offense.
func (r *IPBanRepo) RecordViolation(ctx context.Context, ipHash, reason string) (*model.IPBan, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var count int
	err = tx.QueryRow(ctx, `
		INSERT INTO ip_bans (ip_hash, reason, violation_count)
		VALUES ($1, $2, 1)
		ON CONFLICT (ip_hash) DO UPDATE
		SET violation_count = ip_bans.violation_count + 1,
		    reason = EXCLUDED.reason,
		    banned_at = NOW()
		RETURNING violation_count`, ipHash, reason).Scan(&count)
	if err != nil {
		return nil, err
	}

	dur := BanDuration(count)
	var until *time.Time
	if dur > 0 {
		t := time.Now().Add(dur)
		until = &t
	}

	var b model.IPBan
	err = tx.QueryRow(ctx, `
		UPDATE ip_bans
		SET banned_until = $2
		WHERE ip_hash = $1
		RETURNING ip_hash, reason, banned_at, banned_until, violation_count`,
		ipHash, until).Scan(&b.IPHash, &b.Reason, &b.BannedAt, &b.BannedUntil, &b.ViolationCount)
	if err != nil {
		return nil, err
	}

	return &b, tx.Commit(ctx)
}

// Remove lifts a ban entirely. Admin override only; the violation history
// is gone with it, so a re-offending IP starts at the bottom of the ladder.
func (r *IPBanRepo) Remove(ctx context.Context, ipHash string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM ip_bans WHERE ip_hash = $1`, ipHash)
	return err
}

// ExpireOld drops bans whose window has passed. Permanent bans
// (banned_until NULL) are never touched.
func (r *IPBanRepo) ExpireOld(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM ip_bans
		WHERE banned_until IS NOT NULL AND banned_until < NOW()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
