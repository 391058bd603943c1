package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/civiclens/civiclens-go/internal/model"
)

// OpsQueue is the operator surface of the submission queue.
type OpsQueue interface {
	Stats(ctx context.Context, maxRetries int) (*model.QueueStats, error)
	ResetRetries(ctx context.Context, ids []string) (int64, error)
	RequeueFailed(ctx context.Context, ids []string) (int64, error)
}

// OpsService backs the operator endpoints: queue visibility and batch
// requeues after a classifier outage.
type OpsService struct {
	queue  OpsQueue
	worker *VerifyWorker
	log    zerolog.Logger
}

func NewOpsService(queue OpsQueue, worker *VerifyWorker, log zerolog.Logger) *OpsService {
	return &OpsService{queue: queue, worker: worker, log: log}
}

func (s *OpsService) QueueStats(ctx context.Context) (*model.QueueStats, error) {
	return s.queue.Stats(ctx, model.MaxRetries)
}

// Requeue zeroes retry budgets so exhausted work becomes pollable again.
// With includeFailed it also moves failed rows back to pending. An empty
// ids slice means the whole backlog. Resumes the worker afterwards since
// the usual reason for a requeue is a cleared outage.
func (s *OpsService) Requeue(ctx context.Context, ids []string, includeFailed bool) (int64, error) {
	n, err := s.queue.ResetRetries(ctx, ids)
	if err != nil {
		return 0, err
	}
	if includeFailed {
		m, err := s.queue.RequeueFailed(ctx, ids)
		if err != nil {
			return n, err
		}
		n += m
	}
	if s.worker != nil {
		s.worker.Resume()
	}
	s.log.Info().Int64("requeued", n).Bool("include_failed", includeFailed).Msg("ops: requeue")
	return n, nil
}
