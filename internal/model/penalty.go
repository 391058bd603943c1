package model

import "time"

// Penalty types applied by the progressive policy.
const (
	PenaltyWarning   = "warning"
	PenaltyDeduction = "point_deduction"
	PenaltySuspend   = "suspension"
)

// PenaltyRecord is one application of the progressive penalty policy.
// Append-only; the unique submission ID guarantees a rejection is never
// penalized twice.
type PenaltyRecord struct {
	ID                   int64     `json:"id"`
	UserID               string    `json:"userId"`
	SubmissionID         string    `json:"submissionId"`
	PenaltyType          string    `json:"penaltyType"`
	PointsDeducted       int       `json:"pointsDeducted"`
	RejectionCountAtTime int       `json:"rejectionCountAtTime"`
	Reason               string    `json:"reason"`
	CreatedAt            time.Time `json:"createdAt"`
}
