package model

import "time"

// Account statuses.
const (
	AccountActive    = "active"
	AccountSuspended = "suspended"
)

// Trust score bounds and thresholds.
const (
	TrustScoreMin     = 0
	TrustScoreMax     = 100
	TrustScoreDefault = 50

	// Dropping below this sets the shadow ban. One-way: only an explicit
	// admin action clears it.
	ShadowBanTrustThreshold = 20

	// Accumulating this many abuse events inside AbuseBurstWindow also
	// sets the shadow ban.
	ShadowBanAbuseThreshold = 5
	AbuseBurstWindow        = 24 * time.Hour
)

// UserReputation is the durable per-user trust record. Mutated only through
// atomic delta operations in the repository layer, never read-modify-write.
type UserReputation struct {
	UserID         string     `json:"userId"`
	TrustScore     int        `json:"trustScore"`
	Points         int        `json:"points"`
	IsShadowBanned bool       `json:"-"`
	BanReason      string     `json:"-"`
	BannedUntil    *time.Time `json:"-"`
	AccountStatus  string     `json:"accountStatus"`
	CreatedAt      time.Time  `json:"-"`
}

// Violation types recorded in the abuse log and keyed into the trust
// delta table.
const (
	ViolationNSFW        = "nsfw_content"
	ViolationBotBehavior = "bot_behavior"
	ViolationDuplicate   = "duplicate_image"
	ViolationScreenshot  = "screenshot_content"
	ViolationGarbage     = "garbage_image"
	ViolationRateLimit   = "rate_limit_exceeded"
	ViolationNotGenuine  = "not_genuine_submission"
	ViolationIPBanned    = "ip_banned"
	ViolationSuspended   = "account_suspended"
	ViolationShadowBan   = "shadow_banned"
)

// Positive reputation events.
const (
	EventVerified = "submission_verified"
	EventResolved = "issue_resolved"
)

// Abuse event severities.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// AbuseEvent is an append-only audit record. It is the sole source of truth
// for why a user or IP was penalized.
type AbuseEvent struct {
	ID            int64     `json:"id"`
	UserID        *string   `json:"userId,omitempty"`
	IPHash        string    `json:"-"`
	ViolationType string    `json:"violationType"`
	Severity      string    `json:"severity"`
	Details       string    `json:"details,omitempty"`
	ActionTaken   string    `json:"actionTaken"`
	CreatedAt     time.Time `json:"createdAt"`
}

// IPBan is one rung of the escalation ladder for an address. A nil
// BannedUntil means permanent.
type IPBan struct {
	IPHash         string     `json:"-"`
	Reason         string     `json:"reason"`
	BannedAt       time.Time  `json:"bannedAt"`
	BannedUntil    *time.Time `json:"bannedUntil,omitempty"`
	ViolationCount int        `json:"violationCount"`
}

// Rate-limit window kinds.
const (
	WindowHour = "hour"
	WindowDay  = "day"
)

// Rate-limited action types. Rejected attempts are tracked separately from
// successful ones so that probing gets expensive fast.
const (
	ActionSubmit         = "submit"
	ActionSubmitRejected = "submit_rejected"
)
