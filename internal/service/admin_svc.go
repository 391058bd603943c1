package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/civiclens/civiclens-go/internal/model"
)

// AdminReputationStore is the admin override surface of the reputation
// store.
type AdminReputationStore interface {
	Get(ctx context.Context, userID string) (*model.UserReputation, error)
	ClearShadowBan(ctx context.Context, userID string) error
	SetTrustScore(ctx context.Context, userID string, score int) (int, error)
	Suspend(ctx context.Context, userID string) error
}

// IPBanRemover lifts IP bans.
type IPBanRemover interface {
	Remove(ctx context.Context, ipHash string) error
}

// AdminAbuseLog extends the audit log with the per-user read the history
// endpoint serves.
type AdminAbuseLog interface {
	AbuseLog
	RecentForUser(ctx context.Context, userID string, limit int) ([]model.AbuseEvent, error)
}

// PenaltyHistoryStore is the read side of the penalty ledger.
type PenaltyHistoryStore interface {
	RejectionCount(ctx context.Context, userID string) (int, error)
	HistoryForUser(ctx context.Context, userID string, limit int) ([]model.PenaltyRecord, error)
}

// UserHistory is the moderation record the admin surface exposes for one
// user: current reputation plus the trails that produced it.
type UserHistory struct {
	Reputation     *model.UserReputation `json:"reputation"`
	RejectionCount int                   `json:"rejectionCount"`
	Penalties      []model.PenaltyRecord `json:"penalties"`
	AbuseEvents    []model.AbuseEvent    `json:"abuseEvents"`
}

// AdminService implements manual overrides. Every override is audited to
// the abuse log with an action_taken that names the override, since that
// log is the only source of truth for why state changed.
type AdminService struct {
	users     AdminReputationStore
	ipbans    IPBanRemover
	abuse     AdminAbuseLog
	penalties PenaltyHistoryStore
	cache     *CacheService
	log       zerolog.Logger
}

func NewAdminService(users AdminReputationStore, ipbans IPBanRemover, abuse AdminAbuseLog, penalties PenaltyHistoryStore, cache *CacheService, log zerolog.Logger) *AdminService {
	return &AdminService{users: users, ipbans: ipbans, abuse: abuse, penalties: penalties, cache: cache, log: log}
}

// ClearShadowBan is the only path that unsets the shadow-ban flag.
func (s *AdminService) ClearShadowBan(ctx context.Context, userID, adminID string) error {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("unknown user")
	}

	if err := s.users.ClearShadowBan(ctx, userID); err != nil {
		return err
	}
	if err := s.cache.InvalidateReputation(ctx, userID); err != nil {
		s.log.Warn().Err(err).Msg("cache: invalidate reputation failed")
	}

	return s.audit(ctx, &userID, "", "manual_override:clear_shadow_ban",
		fmt.Sprintf("cleared by %s", adminID))
}

// AdjustTrustScore sets an absolute trust score.
func (s *AdminService) AdjustTrustScore(ctx context.Context, userID string, score int, adminID string) (int, error) {
	got, err := s.users.SetTrustScore(ctx, userID, score)
	if err != nil {
		return 0, err
	}
	if err := s.cache.InvalidateReputation(ctx, userID); err != nil {
		s.log.Warn().Err(err).Msg("cache: invalidate reputation failed")
	}

	err = s.audit(ctx, &userID, "", "manual_override:adjust_trust_score",
		fmt.Sprintf("set to %d by %s", got, adminID))
	return got, err
}

// Suspend manually suspends an account. Suspension normally comes from the
// penalty ladder; this is the override for abuse the ladder has not caught
// up with yet.
func (s *AdminService) Suspend(ctx context.Context, userID, adminID string) error {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("unknown user")
	}

	if err := s.users.Suspend(ctx, userID); err != nil {
		return err
	}
	if err := s.cache.InvalidateReputation(ctx, userID); err != nil {
		s.log.Warn().Err(err).Msg("cache: invalidate reputation failed")
	}

	return s.audit(ctx, &userID, "", "manual_override:suspend",
		fmt.Sprintf("suspended by %s", adminID))
}

// UserHistory assembles a user's moderation record: reputation, penalty
// trail, and recent abuse events.
func (s *AdminService) UserHistory(ctx context.Context, userID string, limit int) (*UserHistory, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("unknown user")
	}

	rejections, err := s.penalties.RejectionCount(ctx, userID)
	if err != nil {
		return nil, err
	}
	penalties, err := s.penalties.HistoryForUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	events, err := s.abuse.RecentForUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	return &UserHistory{
		Reputation:     u,
		RejectionCount: rejections,
		Penalties:      penalties,
		AbuseEvents:    events,
	}, nil
}

// RemoveIPBan lifts an IP ban.
func (s *AdminService) RemoveIPBan(ctx context.Context, ipHash, adminID string) error {
	if err := s.ipbans.Remove(ctx, ipHash); err != nil {
		return err
	}
	return s.audit(ctx, nil, ipHash, "manual_override:remove_ip_ban",
		fmt.Sprintf("removed by %s", adminID))
}

func (s *AdminService) audit(ctx context.Context, userID *string, ipHash, actionTaken, details string) error {
	return s.abuse.Insert(ctx, &model.AbuseEvent{
		UserID:        userID,
		IPHash:        ipHash,
		ViolationType: "admin_override",
		Severity:      model.SeverityLow,
		Details:       details,
		ActionTaken:   actionTaken,
	})
}
