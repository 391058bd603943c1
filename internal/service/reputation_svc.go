package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/civiclens/civiclens-go/internal/model"
)

// Trust-score deltas by violation type. Missing keys mean the violation is
// audited but carries no score change.
var trustDeltas = map[string]int{
	model.ViolationNSFW:        -30,
	model.ViolationBotBehavior: -20,
	model.ViolationDuplicate:   -10,
	model.ViolationScreenshot:  -5,
	model.ViolationGarbage:     -5,
	model.ViolationRateLimit:   -3,
}

// Positive deltas for good outcomes.
var rewardDeltas = map[string]int{
	model.EventVerified: 2,
	model.EventResolved: 5,
}

// Severity per violation type, recorded on the abuse event.
var violationSeverity = map[string]string{
	model.ViolationNSFW:        model.SeverityCritical,
	model.ViolationBotBehavior: model.SeverityHigh,
	model.ViolationDuplicate:   model.SeverityMedium,
	model.ViolationScreenshot:  model.SeverityLow,
	model.ViolationGarbage:     model.SeverityLow,
	model.ViolationRateLimit:   model.SeverityLow,
	model.ViolationNotGenuine:  model.SeverityLow,
	model.ViolationIPBanned:    model.SeverityMedium,
	model.ViolationSuspended:   model.SeverityMedium,
	model.ViolationShadowBan:   model.SeverityMedium,
}

// ReputationStore is the subset of the reputation repository this service
// mutates. All operations are atomic at the storage layer.
type ReputationStore interface {
	EnsureUser(ctx context.Context, userID string) error
	Get(ctx context.Context, userID string) (*model.UserReputation, error)
	ApplyTrustDelta(ctx context.Context, userID string, delta int) (int, error)
	SetShadowBanned(ctx context.Context, userID, reason string) error
	AddPoints(ctx context.Context, userID string, points int) (int, error)
}

// AbuseLog is the append-only audit log.
type AbuseLog interface {
	Insert(ctx context.Context, ev *model.AbuseEvent) error
	CountForUserSince(ctx context.Context, userID string, since time.Time) (int, error)
}

// ReputationService applies trust deltas and the shadow-ban policy on top
// of the store, and reads reputation through the cache.
type ReputationService struct {
	users ReputationStore
	abuse AbuseLog
	cache *CacheService
	log   zerolog.Logger
}

func NewReputationService(users ReputationStore, abuse AbuseLog, cache *CacheService, log zerolog.Logger) *ReputationService {
	return &ReputationService{users: users, abuse: abuse, cache: cache, log: log}
}

// SeverityFor returns the audit severity for a violation type.
func SeverityFor(violationType string) string {
	if s, ok := violationSeverity[violationType]; ok {
		return s
	}
	return model.SeverityLow
}

// DeltaFor returns the trust delta for a violation type (zero if none).
func DeltaFor(violationType string) int {
	return trustDeltas[violationType]
}

// Get returns a user's reputation, cache-aside.
func (s *ReputationService) Get(ctx context.Context, userID string) (*model.UserReputation, error) {
	if cached, err := s.cache.GetReputation(ctx, userID); err == nil && cached != nil {
		var u model.UserReputation
		if err := json.Unmarshal(cached, &u); err == nil {
			return &u, nil
		}
	}

	u, err := s.users.Get(ctx, userID)
	if err != nil || u == nil {
		return u, err
	}
	if err := s.cache.SetReputation(ctx, userID, u); err != nil {
		s.log.Warn().Err(err).Msg("cache: set reputation failed")
	}
	return u, nil
}

// RecordViolation writes the abuse event, applies the trust delta, and
// evaluates the shadow-ban thresholds. Crossing a threshold sets the flag;
// nothing in this subsystem ever clears it. Returns the post-delta score.
func (s *ReputationService) RecordViolation(ctx context.Context, userID *string, ipHash, violationType, details, actionTaken string) (int, error) {
	ev := &model.AbuseEvent{
		UserID:        userID,
		IPHash:        ipHash,
		ViolationType: violationType,
		Severity:      SeverityFor(violationType),
		Details:       details,
		ActionTaken:   actionTaken,
	}
	if err := s.abuse.Insert(ctx, ev); err != nil {
		return 0, err
	}

	if userID == nil {
		return 0, nil
	}

	if err := s.users.EnsureUser(ctx, *userID); err != nil {
		return 0, err
	}
	score, err := s.users.ApplyTrustDelta(ctx, *userID, DeltaFor(violationType))
	if err != nil {
		return 0, err
	}

	if score < model.ShadowBanTrustThreshold {
		if err := s.users.SetShadowBanned(ctx, *userID, "trust score below threshold"); err != nil {
			return score, err
		}
	} else {
		count, err := s.abuse.CountForUserSince(ctx, *userID, time.Now().Add(-model.AbuseBurstWindow))
		if err != nil {
			return score, err
		}
		if count >= model.ShadowBanAbuseThreshold {
			if err := s.users.SetShadowBanned(ctx, *userID, "abuse event burst"); err != nil {
				return score, err
			}
		}
	}

	if err := s.cache.InvalidateReputation(ctx, *userID); err != nil {
		s.log.Warn().Err(err).Msg("cache: invalidate reputation failed")
	}
	return score, nil
}

// RecordReward applies a positive delta for a good outcome.
func (s *ReputationService) RecordReward(ctx context.Context, userID, event string) (int, error) {
	if err := s.users.EnsureUser(ctx, userID); err != nil {
		return 0, err
	}
	score, err := s.users.ApplyTrustDelta(ctx, userID, rewardDeltas[event])
	if err != nil {
		return 0, err
	}
	if err := s.cache.InvalidateReputation(ctx, userID); err != nil {
		s.log.Warn().Err(err).Msg("cache: invalidate reputation failed")
	}
	return score, nil
}

// GrantPoints implements the reward-granter collaborator against the local
// points ledger.
func (s *ReputationService) GrantPoints(ctx context.Context, userID string, points int) error {
	if _, err := s.users.AddPoints(ctx, userID, points); err != nil {
		return err
	}
	if err := s.cache.InvalidateReputation(ctx, userID); err != nil {
		s.log.Warn().Err(err).Msg("cache: invalidate reputation failed")
	}
	return nil
}
