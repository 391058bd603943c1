package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civiclens/civiclens-go/internal/model"
)

// PenaltyRepo owns penalty_records. Cumulative rejection count is derived
// from this table; it is a different counter from the queue's retry_count,
// which only measures processing attempts.
type PenaltyRepo struct {
	pool *pgxpool.Pool
}

func NewPenaltyRepo(pool *pgxpool.Pool) *PenaltyRepo {
	return &PenaltyRepo{pool: pool}
}

// PenaltyDecision is what the progressive policy chose for a given
// rejection count.
type PenaltyDecision struct {
	Type           string
	PointsDeducted int
	Suspend        bool
}

// ApplyOnce runs the whole penalty application in one transaction: lock the
// user's reputation row, derive the cumulative rejection count, let the
// policy decide, append the record, and apply point/suspension effects.
// The unique submission_id makes re-processing the same rejection a no-op
// (returns applied=false, no double penalty).
func (r *PenaltyRepo) ApplyOnce(ctx context.Context, userID, submissionID, reason string,
	decide func(rejectionCount int) PenaltyDecision) (*model.PenaltyRecord, bool, error) {

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	// Serializes concurrent penalty applications for the same user so the
	// derived rejection count is consistent.
	_, err = tx.Exec(ctx, `
		INSERT INTO user_reputation (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		return nil, false, err
	}
	_, err = tx.Exec(ctx, `
		SELECT 1 FROM user_reputation WHERE user_id = $1 FOR UPDATE`, userID)
	if err != nil {
		return nil, false, err
	}

	var prior int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM penalty_records WHERE user_id = $1`, userID).Scan(&prior)
	if err != nil {
		return nil, false, err
	}

	n := prior + 1
	d := decide(n)

	rec := &model.PenaltyRecord{
		UserID:               userID,
		SubmissionID:         submissionID,
		PenaltyType:          d.Type,
		PointsDeducted:       d.PointsDeducted,
		RejectionCountAtTime: n,
		Reason:               reason,
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO penalty_records (user_id, submission_id, penalty_type, points_deducted, rejection_count_at_time, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (submission_id) DO NOTHING`,
		rec.UserID, rec.SubmissionID, rec.PenaltyType, rec.PointsDeducted,
		rec.RejectionCountAtTime, rec.Reason)
	if err != nil {
		return nil, false, err
	}
	if tag.RowsAffected() == 0 {
		// Already penalized for this rejection.
		return nil, false, tx.Commit(ctx)
	}

	if d.PointsDeducted > 0 {
		_, err = tx.Exec(ctx, `
			UPDATE user_reputation
			SET points = GREATEST(0, points - $2)
			WHERE user_id = $1`, userID, d.PointsDeducted)
		if err != nil {
			return nil, false, err
		}
	}
	if d.Suspend {
		_, err = tx.Exec(ctx, `
			UPDATE user_reputation
			SET account_status = $2
			WHERE user_id = $1`, userID, model.AccountSuspended)
		if err != nil {
			return nil, false, err
		}
	}

	return rec, true, tx.Commit(ctx)
}

// RejectionCount returns a user's lifetime rejection count.
func (r *PenaltyRepo) RejectionCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM penalty_records WHERE user_id = $1`, userID).Scan(&count)
	return count, err
}

// HistoryForUser lists a user's penalties, newest first.
func (r *PenaltyRepo) HistoryForUser(ctx context.Context, userID string, limit int) ([]model.PenaltyRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, submission_id, penalty_type, points_deducted,
		       rejection_count_at_time, reason, created_at
		FROM penalty_records
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.PenaltyRecord
	for rows.Next() {
		var rec model.PenaltyRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.SubmissionID, &rec.PenaltyType,
			&rec.PointsDeducted, &rec.RejectionCountAtTime, &rec.Reason, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
