package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civiclens/civiclens-go/internal/model"
)

// ReputationRepo owns the user_reputation table. Trust score and points are
// only ever mutated through clamped atomic updates; callers never
// read-modify-write from application memory.
type ReputationRepo struct {
	pool *pgxpool.Pool
}

func NewReputationRepo(pool *pgxpool.Pool) *ReputationRepo {
	return &ReputationRepo{pool: pool}
}

// EnsureUser inserts a reputation row with defaults if one doesn't exist.
func (r *ReputationRepo) EnsureUser(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_reputation (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING`, userID)
	return err
}

// Get returns a user's reputation record, or nil if the user is unknown.
func (r *ReputationRepo) Get(ctx context.Context, userID string) (*model.UserReputation, error) {
	var u model.UserReputation
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, trust_score, points, is_shadow_banned, ban_reason,
		       banned_until, account_status, created_at
		FROM user_reputation
		WHERE user_id = $1`, userID).Scan(
		&u.UserID, &u.TrustScore, &u.Points, &u.IsShadowBanned, &u.BanReason,
		&u.BannedUntil, &u.AccountStatus, &u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ApplyTrustDelta atomically adds delta to the trust score, clamped to
// [0,100], and returns the new score. Concurrent deltas to the same user
// serialize at the row level so no update is lost.
func (r *ReputationRepo) ApplyTrustDelta(ctx context.Context, userID string, delta int) (int, error) {
	var score int
	err := r.pool.QueryRow(ctx, `
		UPDATE user_reputation
		SET trust_score = LEAST(100, GREATEST(0, trust_score + $2))
		WHERE user_id = $1
		RETURNING trust_score`, userID, delta).Scan(&score)
	return score, err
}

// SetShadowBanned marks a user shadow-banned. This only ever sets the flag;
// clearing requires the explicit admin path.
func (r *ReputationRepo) SetShadowBanned(ctx context.Context, userID, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE user_reputation
		SET is_shadow_banned = TRUE, ban_reason = $2
		WHERE user_id = $1 AND is_shadow_banned = FALSE`, userID, reason)
	return err
}

// ClearShadowBan removes the shadow-ban flag. Admin override only.
func (r *ReputationRepo) ClearShadowBan(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE user_reputation
		SET is_shadow_banned = FALSE, ban_reason = ''
		WHERE user_id = $1`, userID)
	return err
}

// SetTrustScore sets an absolute trust score (admin override), clamped.
func (r *ReputationRepo) SetTrustScore(ctx context.Context, userID string, score int) (int, error) {
	var got int
	err := r.pool.QueryRow(ctx, `
		UPDATE user_reputation
		SET trust_score = LEAST(100, GREATEST(0, $2::int))
		WHERE user_id = $1
		RETURNING trust_score`, userID, score).Scan(&got)
	return got, err
}

// Suspend flips the account to suspended.
func (r *ReputationRepo) Suspend(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE user_reputation
		SET account_status = $2
		WHERE user_id = $1`, userID, model.AccountSuspended)
	return err
}

// AddPoints atomically credits reward points and returns the new balance.
func (r *ReputationRepo) AddPoints(ctx context.Context, userID string, points int) (int, error) {
	var balance int
	err := r.pool.QueryRow(ctx, `
		UPDATE user_reputation
		SET points = points + $2
		WHERE user_id = $1
		RETURNING points`, userID, points).Scan(&balance)
	return balance, err
}
