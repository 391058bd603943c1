// Package collab defines the external collaborators the pipeline talks to.
// Notifications are fire-and-forget; a failed notify is logged and never
// blocks a state transition.
package collab

import (
	"context"

	"github.com/civiclens/civiclens-go/internal/model"
)

// PenaltyInfo accompanies a rejection notification.
type PenaltyInfo struct {
	PenaltyType    string `json:"penaltyType"`
	PointsDeducted int    `json:"pointsDeducted"`
	RejectionCount int    `json:"rejectionCount"`
	Suspended      bool   `json:"suspended"`
}

// Notifier delivers user-facing outcome notifications.
type Notifier interface {
	NotifyVerified(ctx context.Context, userID string, sub *model.Submission)
	NotifyRejected(ctx context.Context, userID string, sub *model.Submission, penalty *PenaltyInfo)
}

// RewardGranter credits points for a verified submission. Invoked exactly
// once per verified transition; the caller guards idempotency.
type RewardGranter interface {
	GrantPoints(ctx context.Context, userID string, points int) error
}
