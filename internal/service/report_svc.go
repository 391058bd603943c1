package service

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/civiclens/civiclens-go/internal/model"
)

// ReportStore reads published reports.
type ReportStore interface {
	GetPublicReport(ctx context.Context, submissionID string) (*model.PublicReport, error)
}

// ReportService serves the public read side of verified submissions,
// cache-aside over Redis.
type ReportService struct {
	store ReportStore
	cache *CacheService
	log   zerolog.Logger
}

func NewReportService(store ReportStore, cache *CacheService, log zerolog.Logger) *ReportService {
	return &ReportService{store: store, cache: cache, log: log}
}

// Get returns the published report, or nil if the submission was never
// verified.
func (s *ReportService) Get(ctx context.Context, submissionID string) (*model.PublicReport, error) {
	if data, err := s.cache.GetReport(ctx, submissionID); err == nil && data != nil {
		var rep model.PublicReport
		if err := json.Unmarshal(data, &rep); err == nil {
			return &rep, nil
		}
		// Corrupt cache entry falls through to the database.
	}

	rep, err := s.store.GetPublicReport(ctx, submissionID)
	if err != nil || rep == nil {
		return rep, err
	}

	if err := s.cache.SetReport(ctx, submissionID, rep); err != nil {
		s.log.Warn().Err(err).Msg("cache: set report failed")
	}
	return rep, nil
}
