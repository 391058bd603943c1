package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied at startup. Statements are idempotent so restarts are
// safe without a separate migration tool.
const schema = `
CREATE TABLE IF NOT EXISTS user_reputation (
    user_id          VARCHAR(64) PRIMARY KEY,
    trust_score      INT NOT NULL DEFAULT 50 CHECK (trust_score BETWEEN 0 AND 100),
    points           INT NOT NULL DEFAULT 0 CHECK (points >= 0),
    is_shadow_banned BOOLEAN NOT NULL DEFAULT FALSE,
    ban_reason       TEXT NOT NULL DEFAULT '',
    banned_until     TIMESTAMPTZ,
    account_status   VARCHAR(16) NOT NULL DEFAULT 'active',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS rate_limit_windows (
    subject      VARCHAR(80)  NOT NULL,
    action_type  VARCHAR(32)  NOT NULL,
    window_kind  VARCHAR(8)   NOT NULL,
    window_start TIMESTAMPTZ  NOT NULL,
    count        INT          NOT NULL DEFAULT 0,
    PRIMARY KEY (subject, action_type, window_kind, window_start)
);

CREATE TABLE IF NOT EXISTS ip_bans (
    ip_hash         VARCHAR(64) PRIMARY KEY,
    reason          TEXT NOT NULL DEFAULT '',
    banned_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    banned_until    TIMESTAMPTZ,
    violation_count INT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS abuse_events (
    id             BIGSERIAL PRIMARY KEY,
    user_id        VARCHAR(64),
    ip_hash        VARCHAR(64) NOT NULL DEFAULT '',
    violation_type VARCHAR(32) NOT NULL,
    severity       VARCHAR(16) NOT NULL DEFAULT 'low',
    details        TEXT NOT NULL DEFAULT '',
    action_taken   VARCHAR(64) NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_abuse_user_time ON abuse_events (user_id, created_at);

CREATE TABLE IF NOT EXISTS submissions (
    id               VARCHAR(36) PRIMARY KEY,
    owner_user_id    VARCHAR(64) NOT NULL,
    image_key        TEXT NOT NULL,
    description      TEXT NOT NULL DEFAULT '',
    category         VARCHAR(32) NOT NULL DEFAULT '',
    status           VARCHAR(12) NOT NULL DEFAULT 'pending',
    retry_count      INT NOT NULL DEFAULT 0,
    rejection_reason TEXT,
    ip_hash          VARCHAR(64) NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    processed_at     TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_submissions_claimable ON submissions (status, retry_count, created_at);

CREATE TABLE IF NOT EXISTS image_fingerprints (
    submission_id VARCHAR(36) PRIMARY KEY,
    owner_user_id VARCHAR(64) NOT NULL,
    perceptual    BIGINT NOT NULL,
    average       BIGINT NOT NULL,
    difference    BIGINT NOT NULL,
    ip_hash       VARCHAR(64) NOT NULL DEFAULT '',
    uploaded_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_fingerprints_uploaded ON image_fingerprints (uploaded_at);
CREATE INDEX IF NOT EXISTS idx_fingerprints_perceptual ON image_fingerprints (perceptual, uploaded_at);

CREATE TABLE IF NOT EXISTS public_reports (
    submission_id VARCHAR(36) PRIMARY KEY,
    title         TEXT NOT NULL DEFAULT '',
    description   TEXT NOT NULL DEFAULT '',
    tags          TEXT[] NOT NULL DEFAULT '{}',
    severity      VARCHAR(16) NOT NULL DEFAULT '',
    confidence    DOUBLE PRECISION NOT NULL DEFAULT 0,
    published_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS penalty_records (
    id                      BIGSERIAL PRIMARY KEY,
    user_id                 VARCHAR(64) NOT NULL,
    submission_id           VARCHAR(36) NOT NULL UNIQUE,
    penalty_type            VARCHAR(24) NOT NULL,
    points_deducted         INT NOT NULL DEFAULT 0,
    rejection_count_at_time INT NOT NULL,
    reason                  TEXT NOT NULL DEFAULT '',
    created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_penalties_user ON penalty_records (user_id);

CREATE TABLE IF NOT EXISTS bot_patterns (
    id          BIGSERIAL PRIMARY KEY,
    perceptual  BIGINT NOT NULL,
    owner_count INT NOT NULL,
    confidence  DOUBLE PRECISION NOT NULL,
    flag_status VARCHAR(16) NOT NULL DEFAULT 'active',
    first_seen  TIMESTAMPTZ NOT NULL,
    detected_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Bootstrap applies the embedded schema.
func Bootstrap(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
