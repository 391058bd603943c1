package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civiclens/civiclens-go/internal/model"
)

// FingerprintRepo owns image_fingerprints and bot_patterns. Hashes are
// stored as BIGINT; the uint64 <-> int64 conversion is lossless either way.
type FingerprintRepo struct {
	pool *pgxpool.Pool
}

func NewFingerprintRepo(pool *pgxpool.Pool) *FingerprintRepo {
	return &FingerprintRepo{pool: pool}
}

// Insert records the fingerprint of an admitted image. Written once, never
// mutated.
func (r *FingerprintRepo) Insert(ctx context.Context, fp *model.ImageFingerprint) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO image_fingerprints (submission_id, owner_user_id, perceptual, average, difference, ip_hash)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		fp.SubmissionID, fp.OwnerUserID,
		int64(fp.Perceptual), int64(fp.Average), int64(fp.Difference), fp.IPHash)
	return err
}

// FindNearMatch returns the closest stored fingerprint within maxDist
// Hamming bits of any of the three hash variants, restricted to the
// retention window. Returns nil when nothing matches. The XOR + bit_count
// comparison runs in the database so the candidate set never crosses the
// wire.
func (r *FingerprintRepo) FindNearMatch(ctx context.Context, perceptual, average, difference uint64, maxDist int, since time.Time) (*model.ImageFingerprint, error) {
	var fp model.ImageFingerprint
	var p, a, d int64
	err := r.pool.QueryRow(ctx, `
		SELECT submission_id, owner_user_id, perceptual, average, difference, ip_hash, uploaded_at
		FROM image_fingerprints
		WHERE uploaded_at >= $5
		  AND (bit_count((perceptual # $1)::bit(64)) <= $4
		    OR bit_count((average    # $2)::bit(64)) <= $4
		    OR bit_count((difference # $3)::bit(64)) <= $4)
		ORDER BY bit_count((perceptual # $1)::bit(64))
		LIMIT 1`,
		int64(perceptual), int64(average), int64(difference), maxDist, since).Scan(
		&fp.SubmissionID, &fp.OwnerUserID, &p, &a, &d, &fp.IPHash, &fp.UploadedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	fp.Perceptual, fp.Average, fp.Difference = uint64(p), uint64(a), uint64(d)
	return &fp, nil
}

// DistinctOwners counts how many different accounts uploaded an image with
// this exact perceptual hash since the given time, and when the earliest
// upload happened.
func (r *FingerprintRepo) DistinctOwners(ctx context.Context, perceptual uint64, since time.Time) (int, time.Time, error) {
	var count int
	var first time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT owner_user_id), COALESCE(MIN(uploaded_at), NOW())
		FROM image_fingerprints
		WHERE perceptual = $1 AND uploaded_at >= $2`,
		int64(perceptual), since).Scan(&count, &first)
	return count, first, err
}

// InsertBotPattern records a coordinated-upload detection.
func (r *FingerprintRepo) InsertBotPattern(ctx context.Context, bp *model.BotPattern) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO bot_patterns (perceptual, owner_count, confidence, flag_status, first_seen)
		VALUES ($1, $2, $3, $4, $5)`,
		int64(bp.Perceptual), bp.OwnerCount, bp.Confidence, bp.FlagStatus, bp.FirstSeen)
	return err
}

// ExpireOld drops fingerprints past the retention window so they stop
// participating in duplicate comparison.
func (r *FingerprintRepo) ExpireOld(ctx context.Context, retention time.Duration) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM image_fingerprints
		WHERE uploaded_at < NOW() - make_interval(secs => $1)`, retention.Seconds())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
