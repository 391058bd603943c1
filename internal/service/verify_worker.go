package service

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/civiclens/civiclens-go/internal/classifier"
	"github.com/civiclens/civiclens-go/internal/collab"
	"github.com/civiclens/civiclens-go/internal/model"
	"github.com/civiclens/civiclens-go/internal/storage"
)

// Points credited for a verified submission.
const verifiedRewardPoints = 50

// Maintenance sweeps run once per maintenanceEvery worker ticks.
const maintenanceEvery = 30

// TaskQueue is the worker's view of the submission queue. Every transition
// is persisted per row; a crashed worker loses nothing and simply resumes
// polling.
type TaskQueue interface {
	NextPending(ctx context.Context, limit, maxRetries int) ([]string, error)
	Claim(ctx context.Context, id string) (*model.Submission, bool, error)
	MarkVerified(ctx context.Context, id string) (bool, error)
	MarkRejected(ctx context.Context, id, reason string) (bool, error)
	MarkFailed(ctx context.Context, id string) error
	ReturnToPending(ctx context.Context, id string, revertIncrement bool) error
	Stats(ctx context.Context, maxRetries int) (*model.QueueStats, error)
	InsertPublicReport(ctx context.Context, rep *model.PublicReport) error
}

// Sweeper is a retention job the worker runs occasionally.
type Sweeper func(ctx context.Context) error

// VerifyWorker polls the queue, sends claimed submissions to the external
// classifier, and applies the resulting state transition. Multiple
// instances are safe: the claim compare-and-swap is the only coordination.
type VerifyWorker struct {
	queue      TaskQueue
	blobs      storage.BlobStore
	cls        classifier.Client
	notifier   collab.Notifier
	rewards    collab.RewardGranter
	penalties  *PenaltyService
	reputation *ReputationService

	interval   time.Duration
	batchSize  int
	statsHook  func(*model.QueueStats)
	resultHook func(result string)
	sweeps     []Sweeper

	mu   sync.Mutex
	held bool

	stopCh chan struct{}
	log    zerolog.Logger
}

func NewVerifyWorker(
	queue TaskQueue,
	blobs storage.BlobStore,
	cls classifier.Client,
	notifier collab.Notifier,
	rewards collab.RewardGranter,
	penalties *PenaltyService,
	reputation *ReputationService,
	interval time.Duration,
	batchSize int,
	log zerolog.Logger,
) *VerifyWorker {
	return &VerifyWorker{
		queue:      queue,
		blobs:      blobs,
		cls:        cls,
		notifier:   notifier,
		rewards:    rewards,
		penalties:  penalties,
		reputation: reputation,
		interval:   interval,
		batchSize:  batchSize,
		stopCh:     make(chan struct{}),
		log:        log,
	}
}

// SetStatsHook installs a callback invoked with fresh queue stats each
// tick. Used to feed the operator gauges.
func (w *VerifyWorker) SetStatsHook(hook func(*model.QueueStats)) {
	w.statsHook = hook
}

// SetResultHook installs a callback invoked with each processing outcome
// ("verified", "rejected", "failed", "transient_error", "permanent_error").
func (w *VerifyWorker) SetResultHook(hook func(result string)) {
	w.resultHook = hook
}

func (w *VerifyWorker) observe(result string) {
	if w.resultHook != nil {
		w.resultHook(result)
	}
}

// AddSweep registers a retention job.
func (w *VerifyWorker) AddSweep(s Sweeper) {
	w.sweeps = append(w.sweeps, s)
}

// Held reports whether the worker is holding off after a permanent
// classifier failure.
func (w *VerifyWorker) Held() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.held
}

// Resume clears the hold. Called from the operator re-queue path after
// e.g. classifier quota is restored.
func (w *VerifyWorker) Resume() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.held {
		w.held = false
		w.log.Info().Msg("verify-worker: hold cleared, resuming")
	}
}

func (w *VerifyWorker) hold() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.held {
		w.held = true
		w.log.Error().Msg("verify-worker: permanent classifier failure, holding until operator re-queue")
	}
}

// Start begins the polling loop. It runs one tick immediately, then every
// interval, until the context is cancelled or Stop is called.
func (w *VerifyWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Int("batch", w.batchSize).Msg("verify-worker: starting")

	ticks := 0
	w.tick(ctx, ticks)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ticks++
			w.tick(ctx, ticks)
		case <-ctx.Done():
			w.log.Info().Msg("verify-worker: stopping (context cancelled)")
			return
		case <-w.stopCh:
			w.log.Info().Msg("verify-worker: stopping (stop signal)")
			return
		}
	}
}

// Stop signals the worker to stop.
func (w *VerifyWorker) Stop() {
	close(w.stopCh)
}

func (w *VerifyWorker) tick(ctx context.Context, ticks int) {
	w.publishStats(ctx)
	if ticks%maintenanceEvery == 0 {
		w.runSweeps(ctx)
	}

	if w.Held() {
		return
	}

	ids, err := w.queue.NextPending(ctx, w.batchSize, model.MaxRetries)
	if err != nil {
		w.log.Error().Err(err).Msg("verify-worker: poll failed")
		return
	}
	for _, id := range ids {
		if ctx.Err() != nil || w.Held() {
			return
		}
		w.processOne(ctx, id)
	}
}

// processOne claims and verifies a single submission.
func (w *VerifyWorker) processOne(ctx context.Context, id string) {
	sub, claimed, err := w.queue.Claim(ctx, id)
	if err != nil {
		w.log.Error().Err(err).Str("submission", id).Msg("verify-worker: claim failed")
		return
	}
	if !claimed {
		// Another worker won the row. Not an error.
		return
	}

	// The claim already incremented the retry counter; at the budget the
	// row fails without ever reaching the classifier.
	if sub.RetryCount >= model.MaxRetries {
		if err := w.queue.MarkFailed(ctx, id); err != nil {
			w.log.Error().Err(err).Str("submission", id).Msg("verify-worker: mark failed errored")
			return
		}
		w.log.Warn().Str("submission", id).Int("retries", sub.RetryCount).
			Msg("verify-worker: retries exhausted, needs manual reprocessing")
		w.observe("failed")
		return
	}

	img, err := w.blobs.Get(ctx, sub.ImageKey)
	if err != nil {
		w.log.Error().Err(err).Str("submission", id).Msg("verify-worker: image read failed, will retry")
		w.requeue(ctx, id, false)
		return
	}

	verdict, err := w.cls.Classify(ctx, &classifier.Request{
		SubmissionID: sub.ID,
		ImageBase64:  base64.StdEncoding.EncodeToString(img),
		Description:  sub.Description,
		Category:     sub.Category,
	})
	if err != nil {
		if classifier.IsPermanent(err) {
			// Doesn't count against the retry budget; the worker stops
			// attempting anything until an operator re-queues.
			w.log.Error().Err(err).Str("submission", id).Msg("verify-worker: permanent classifier error")
			w.requeue(ctx, id, true)
			w.hold()
			w.observe("permanent_error")
			return
		}
		w.log.Warn().Err(err).Str("submission", id).Int("attempt", sub.RetryCount).
			Msg("verify-worker: transient classifier error, will retry")
		w.requeue(ctx, id, false)
		w.observe("transient_error")
		return
	}

	if reason := classifier.RejectionReason(verdict); reason != "" {
		w.handleRejected(ctx, sub, reason)
		return
	}
	w.handleVerified(ctx, sub, verdict)
}

func (w *VerifyWorker) requeue(ctx context.Context, id string, revertIncrement bool) {
	if err := w.queue.ReturnToPending(ctx, id, revertIncrement); err != nil {
		w.log.Error().Err(err).Str("submission", id).Msg("verify-worker: return to pending failed")
	}
}

// handleVerified publishes, rewards, and notifies — but only when this
// worker wins the terminal transition. Reprocessing an already-verified
// row never re-fires the collaborators.
func (w *VerifyWorker) handleVerified(ctx context.Context, sub *model.Submission, verdict *classifier.Verdict) {
	won, err := w.queue.MarkVerified(ctx, sub.ID)
	if err != nil {
		w.log.Error().Err(err).Str("submission", sub.ID).Msg("verify-worker: verify transition failed")
		return
	}
	if !won {
		return
	}

	title := verdict.GeneratedTitle
	if title == "" {
		title = "Civic issue report"
	}
	desc := verdict.GeneratedDescription
	if desc == "" {
		desc = sub.Description
	}
	rep := &model.PublicReport{
		SubmissionID: sub.ID,
		Title:        title,
		Description:  desc,
		Tags:         verdict.Tags,
		Severity:     verdict.Severity,
		Confidence:   verdict.Confidence,
	}
	if err := w.queue.InsertPublicReport(ctx, rep); err != nil {
		w.log.Error().Err(err).Str("submission", sub.ID).Msg("verify-worker: publish failed")
	}

	if _, err := w.reputation.RecordReward(ctx, sub.OwnerUserID, model.EventVerified); err != nil {
		w.log.Error().Err(err).Str("submission", sub.ID).Msg("verify-worker: reward delta failed")
	}
	if err := w.rewards.GrantPoints(ctx, sub.OwnerUserID, verifiedRewardPoints); err != nil {
		w.log.Error().Err(err).Str("submission", sub.ID).Msg("verify-worker: grant points failed")
	}
	w.notifier.NotifyVerified(ctx, sub.OwnerUserID, sub)

	w.observe("verified")
	w.log.Info().Str("submission", sub.ID).Float64("confidence", verdict.Confidence).
		Msg("verify-worker: verified")
}

func (w *VerifyWorker) handleRejected(ctx context.Context, sub *model.Submission, reason string) {
	won, err := w.queue.MarkRejected(ctx, sub.ID, reason)
	if err != nil {
		w.log.Error().Err(err).Str("submission", sub.ID).Msg("verify-worker: reject transition failed")
		return
	}
	if !won {
		return
	}
	sub.RejectionReason = &reason

	if _, err := w.reputation.RecordViolation(ctx, &sub.OwnerUserID, sub.IPHash,
		violationForReason(reason), "classifier verdict: "+reason, "rejected"); err != nil {
		w.log.Error().Err(err).Str("submission", sub.ID).Msg("verify-worker: violation record failed")
	}

	penalty, err := w.penalties.Apply(ctx, sub.OwnerUserID, sub.ID, reason)
	if err != nil {
		w.log.Error().Err(err).Str("submission", sub.ID).Msg("verify-worker: penalty application failed")
	}
	w.notifier.NotifyRejected(ctx, sub.OwnerUserID, sub, penalty)

	w.observe("rejected")
	w.log.Info().Str("submission", sub.ID).Str("reason", reason).Msg("verify-worker: rejected")
}

func violationForReason(reason string) string {
	switch reason {
	case classifier.ReasonNSFW:
		return model.ViolationNSFW
	case classifier.ReasonScreenshot:
		return model.ViolationScreenshot
	default:
		return model.ViolationNotGenuine
	}
}

func (w *VerifyWorker) publishStats(ctx context.Context) {
	if w.statsHook == nil {
		return
	}
	stats, err := w.queue.Stats(ctx, model.MaxRetries)
	if err != nil {
		w.log.Warn().Err(err).Msg("verify-worker: stats read failed")
		return
	}
	w.statsHook(stats)
}

func (w *VerifyWorker) runSweeps(ctx context.Context) {
	for _, sweep := range w.sweeps {
		if err := sweep(ctx); err != nil {
			w.log.Warn().Err(err).Msg("verify-worker: retention sweep failed")
		}
	}
}
