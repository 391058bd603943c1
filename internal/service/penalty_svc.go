package service

import (
	"context"

	"github.com/civiclens/civiclens-go/internal/collab"
	"github.com/civiclens/civiclens-go/internal/model"
	"github.com/civiclens/civiclens-go/internal/repository"
)

// PenaltyStore applies a penalty decision transactionally, at most once per
// rejection event.
type PenaltyStore interface {
	ApplyOnce(ctx context.Context, userID, submissionID, reason string,
		decide func(rejectionCount int) repository.PenaltyDecision) (*model.PenaltyRecord, bool, error)
}

// PenaltyService implements the progressive penalty policy. The decision is
// a pure function of the user's cumulative rejection count, which is a
// different counter from the queue's retry budget.
type PenaltyService struct {
	store PenaltyStore
	hook  func(penaltyType string)
}

func NewPenaltyService(store PenaltyStore) *PenaltyService {
	return &PenaltyService{store: store}
}

// SetHook installs a callback invoked with each applied penalty's type.
// Used to feed the penalty counters.
func (s *PenaltyService) SetHook(hook func(penaltyType string)) {
	s.hook = hook
}

// Decide maps the cumulative rejection count n (including the current
// rejection) to its consequence.
func Decide(n int) repository.PenaltyDecision {
	switch {
	case n <= 2:
		return repository.PenaltyDecision{Type: model.PenaltyWarning}
	case n == 3:
		return repository.PenaltyDecision{Type: model.PenaltyDeduction, PointsDeducted: 10}
	case n == 4:
		return repository.PenaltyDecision{Type: model.PenaltyDeduction, PointsDeducted: 25}
	default:
		return repository.PenaltyDecision{Type: model.PenaltySuspend, PointsDeducted: 50, Suspend: true}
	}
}

// Apply runs the policy for one rejection. Returns nil info when this
// rejection was already penalized (idempotent re-processing).
func (s *PenaltyService) Apply(ctx context.Context, userID, submissionID, reason string) (*collab.PenaltyInfo, error) {
	rec, applied, err := s.store.ApplyOnce(ctx, userID, submissionID, reason, Decide)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, nil
	}
	if s.hook != nil {
		s.hook(rec.PenaltyType)
	}
	return &collab.PenaltyInfo{
		PenaltyType:    rec.PenaltyType,
		PointsDeducted: rec.PointsDeducted,
		RejectionCount: rec.RejectionCountAtTime,
		Suspended:      rec.PenaltyType == model.PenaltySuspend,
	}, nil
}
