package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/civiclens/civiclens-go/internal/model"
)

const (
	// Same perceptual hash across this many distinct accounts inside the
	// window flags a coordinated pattern.
	botOwnerThreshold = 3
	botWindow         = time.Hour
)

// BotPatternStore is the detector's view of the fingerprint index.
type BotPatternStore interface {
	DistinctOwners(ctx context.Context, perceptual uint64, since time.Time) (int, time.Time, error)
	InsertBotPattern(ctx context.Context, bp *model.BotPattern) error
}

// BotPatternService detects coordinated uploads of the same image across
// accounts. Detection is for investigation only; it never rejects the
// triggering submission, but the abuse event it emits feeds the same
// escalation paths as everything else.
type BotPatternService struct {
	store BotPatternStore
	abuse AbuseLog
	log   zerolog.Logger
}

func NewBotPatternService(store BotPatternStore, abuse AbuseLog, log zerolog.Logger) *BotPatternService {
	return &BotPatternService{store: store, abuse: abuse, log: log}
}

// Scan checks the sliding window for the given perceptual hash after an
// accepted upload.
func (s *BotPatternService) Scan(ctx context.Context, perceptual uint64, ipHash string) error {
	owners, firstSeen, err := s.store.DistinctOwners(ctx, perceptual, time.Now().Add(-botWindow))
	if err != nil {
		return err
	}
	if owners < botOwnerThreshold {
		return nil
	}

	confidence := float64(owners) / float64(botOwnerThreshold+2)
	if confidence > 1 {
		confidence = 1
	}

	bp := &model.BotPattern{
		Perceptual: perceptual,
		OwnerCount: owners,
		Confidence: confidence,
		FlagStatus: "active",
		FirstSeen:  firstSeen,
	}
	if err := s.store.InsertBotPattern(ctx, bp); err != nil {
		return err
	}

	ev := &model.AbuseEvent{
		IPHash:        ipHash,
		ViolationType: model.ViolationBotBehavior,
		Severity:      model.SeverityHigh,
		Details:       fmt.Sprintf("same image across %d accounts within %s", owners, botWindow),
		ActionTaken:   "pattern_flagged",
	}
	if err := s.abuse.Insert(ctx, ev); err != nil {
		return err
	}

	s.log.Warn().Int("owners", owners).Float64("confidence", confidence).Msg("bot pattern flagged")
	return nil
}
