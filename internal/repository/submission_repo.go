package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civiclens/civiclens-go/internal/model"
)

// SubmissionRepo owns the submissions queue table and the denormalized
// public_reports table. All status transitions here are guarded updates:
// the WHERE clause names the expected current status, so a transition that
// lost a race affects zero rows and the caller can tell.
type SubmissionRepo struct {
	pool *pgxpool.Pool
}

func NewSubmissionRepo(pool *pgxpool.Pool) *SubmissionRepo {
	return &SubmissionRepo{pool: pool}
}

// Enqueue inserts an admitted submission as pending.
func (r *SubmissionRepo) Enqueue(ctx context.Context, s *model.Submission) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO submissions (id, owner_user_id, image_key, description, category, status, ip_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.OwnerUserID, s.ImageKey, s.Description, s.Category, model.StatusPending, s.IPHash)
	return err
}

// NextPending lists claimable submission IDs, oldest first. Rows whose
// retry counter already reached the budget are left for the exhaustion
// sweep and never returned here.
func (r *SubmissionRepo) NextPending(ctx context.Context, limit, maxRetries int) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM submissions
		WHERE status = $1 AND retry_count < $2
		ORDER BY created_at
		LIMIT $3`, model.StatusPending, maxRetries, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Claim transitions a submission from pending to processing and increments
// its retry counter, but only if it still reads pending at update time.
// Returns (nil, false, nil) when another worker already claimed the row —
// that is a lost race, not an error.
func (r *SubmissionRepo) Claim(ctx context.Context, id string) (*model.Submission, bool, error) {
	var s model.Submission
	err := r.pool.QueryRow(ctx, `
		UPDATE submissions
		SET status = $2, retry_count = retry_count + 1
		WHERE id = $1 AND status = $3
		RETURNING id, owner_user_id, image_key, description, category, status,
		          retry_count, rejection_reason, ip_hash, created_at, processed_at`,
		id, model.StatusProcessing, model.StatusPending).Scan(
		&s.ID, &s.OwnerUserID, &s.ImageKey, &s.Description, &s.Category, &s.Status,
		&s.RetryCount, &s.RejectionReason, &s.IPHash, &s.CreatedAt, &s.ProcessedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &s, true, nil
}

// MarkVerified transitions processing -> verified. Returns true only for
// the winning transition; collaborator side effects (reward, notification)
// must key off that.
func (r *SubmissionRepo) MarkVerified(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE submissions
		SET status = $2, processed_at = NOW()
		WHERE id = $1 AND status = $3`,
		id, model.StatusVerified, model.StatusProcessing)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkRejected transitions processing -> rejected with a reason.
func (r *SubmissionRepo) MarkRejected(ctx context.Context, id, reason string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE submissions
		SET status = $2, rejection_reason = $3, processed_at = NOW()
		WHERE id = $1 AND status = $4`,
		id, model.StatusRejected, reason, model.StatusProcessing)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkFailed transitions a submission to failed after retry exhaustion.
// Failed rows need an explicit operator re-queue before they move again.
func (r *SubmissionRepo) MarkFailed(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE submissions
		SET status = $2, processed_at = NOW()
		WHERE id = $1`, id, model.StatusFailed)
	return err
}

// ReturnToPending puts a processing submission back in the queue after an
// infrastructure failure. revertIncrement undoes the claim's retry bump for
// permanent errors, where the attempt shouldn't count against the budget.
func (r *SubmissionRepo) ReturnToPending(ctx context.Context, id string, revertIncrement bool) error {
	query := `
		UPDATE submissions
		SET status = $2
		WHERE id = $1 AND status = $3`
	if revertIncrement {
		query = `
		UPDATE submissions
		SET status = $2, retry_count = GREATEST(0, retry_count - 1)
		WHERE id = $1 AND status = $3`
	}
	_, err := r.pool.Exec(ctx, query, id, model.StatusPending, model.StatusProcessing)
	return err
}

// Stats returns the operator backlog view: pending split by whether the
// retry budget is exhausted, plus processing and failed totals.
func (r *SubmissionRepo) Stats(ctx context.Context, maxRetries int) (*model.QueueStats, error) {
	var st model.QueueStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending' AND retry_count < $1),
			COUNT(*) FILTER (WHERE status = 'pending' AND retry_count >= $1),
			COUNT(*) FILTER (WHERE status = 'processing'),
			COUNT(*) FILTER (WHERE status = 'failed')
		FROM submissions`, maxRetries).Scan(
		&st.Pending, &st.ExhaustedPending, &st.Processing, &st.Failed,
	)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// ResetRetries zeroes the retry counter for a batch of pending rows, or for
// every exhausted pending row when ids is empty. Used by the operator
// re-queue after e.g. restoring classifier quota.
func (r *SubmissionRepo) ResetRetries(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		tag, err := r.pool.Exec(ctx, `
			UPDATE submissions
			SET retry_count = 0
			WHERE status = $1 AND retry_count > 0`, model.StatusPending)
		if err != nil {
			return 0, err
		}
		return tag.RowsAffected(), nil
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE submissions
		SET retry_count = 0
		WHERE status = $1 AND id = ANY($2)`, model.StatusPending, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// RequeueFailed moves failed rows back to pending with a fresh retry
// budget. Manual reprocessing path.
func (r *SubmissionRepo) RequeueFailed(ctx context.Context, ids []string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE submissions
		SET status = $1, retry_count = 0, processed_at = NULL
		WHERE status = $2 AND id = ANY($3)`,
		model.StatusPending, model.StatusFailed, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Get returns a submission by ID, or nil when unknown.
func (r *SubmissionRepo) Get(ctx context.Context, id string) (*model.Submission, error) {
	var s model.Submission
	err := r.pool.QueryRow(ctx, `
		SELECT id, owner_user_id, image_key, description, category, status,
		       retry_count, rejection_reason, ip_hash, created_at, processed_at
		FROM submissions
		WHERE id = $1`, id).Scan(
		&s.ID, &s.OwnerUserID, &s.ImageKey, &s.Description, &s.Category, &s.Status,
		&s.RetryCount, &s.RejectionReason, &s.IPHash, &s.CreatedAt, &s.ProcessedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// InsertPublicReport denormalizes the classifier's enriched fields for the
// public read path. Idempotent: reprocessing a verified row must not
// duplicate or clobber the published record.
func (r *SubmissionRepo) InsertPublicReport(ctx context.Context, rep *model.PublicReport) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO public_reports (submission_id, title, description, tags, severity, confidence)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (submission_id) DO NOTHING`,
		rep.SubmissionID, rep.Title, rep.Description, rep.Tags, rep.Severity, rep.Confidence)
	return err
}

// GetPublicReport returns the published record for a verified submission.
func (r *SubmissionRepo) GetPublicReport(ctx context.Context, submissionID string) (*model.PublicReport, error) {
	var rep model.PublicReport
	err := r.pool.QueryRow(ctx, `
		SELECT submission_id, title, description, tags, severity, confidence, published_at
		FROM public_reports
		WHERE submission_id = $1`, submissionID).Scan(
		&rep.SubmissionID, &rep.Title, &rep.Description, &rep.Tags, &rep.Severity,
		&rep.Confidence, &rep.PublishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rep, nil
}
