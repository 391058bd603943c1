package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/civiclens/civiclens-go/internal/heuristics"
	"github.com/civiclens/civiclens-go/internal/model"
	"github.com/civiclens/civiclens-go/internal/repository"
	"github.com/civiclens/civiclens-go/internal/storage"
	"github.com/civiclens/civiclens-go/pkg/imghash"
)

// Admission outcomes.
const (
	OutcomeAdmit        = "admit"
	OutcomeReject       = "reject"
	OutcomeShadowAccept = "shadow_accept"
)

// Rejection reason codes returned to the caller. Every one is
// user-correctable; infrastructure problems never surface through here.
const (
	ReasonAccountSuspended = "account_suspended"
	ReasonIPBanned         = "ip_banned"
	ReasonRateLimited      = "rate_limit_exceeded"
	ReasonNSFW             = "nsfw_content"
	ReasonDuplicate        = "duplicate_image"
	ReasonScreenshot       = "screenshot_content"
	ReasonGarbage          = "garbage_image"
	ReasonInvalidImage     = "invalid_image"
)

// Per-IP ceilings. Higher than any user tier; the rejected-attempt ceilings
// are much stricter so probing the chain gets expensive fast.
const (
	ipHourlyLimit         = 30
	ipDailyLimit          = 150
	ipRejectedHourlyLimit = 10
	ipRejectedDailyLimit  = 30
)

// rateTier is the per-user limit set selected by trust score.
type rateTier struct {
	Hourly int
	Daily  int
}

// TierFor maps a trust score to its rate-limit tier.
func TierFor(trustScore int) rateTier {
	switch {
	case trustScore >= 80:
		return rateTier{Hourly: 20, Daily: 100}
	case trustScore < 40:
		return rateTier{Hourly: 3, Daily: 10}
	default:
		return rateTier{Hourly: 10, Daily: 50}
	}
}

// AdmissionRequest is one submission attempt. ImageBytes are the raw
// upload; nothing is persisted unless the chain admits (or quarantines) it.
type AdmissionRequest struct {
	UserID      string
	IPHash      string
	Description string
	Category    string
	ImageBytes  []byte
}

// Decision is the admission verdict. ShadowAccept looks like Admit to the
// caller; the submission never reaches the queue.
type Decision struct {
	Outcome      string
	Reason       string
	Message      string
	RetryAfter   int
	SubmissionID string
}

// IPBanStore is the admission view of the IP ban ladder.
type IPBanStore interface {
	Active(ctx context.Context, ipHash string) (*model.IPBan, error)
	RecordViolation(ctx context.Context, ipHash, reason string) (*model.IPBan, error)
}

// RateLimitStore increments durable window counters.
type RateLimitStore interface {
	Increment(ctx context.Context, subject, action, kind string) (int, error)
}

// FingerprintStore is the admission view of the duplicate index.
type FingerprintStore interface {
	Insert(ctx context.Context, fp *model.ImageFingerprint) error
	FindNearMatch(ctx context.Context, perceptual, average, difference uint64, maxDist int, since time.Time) (*model.ImageFingerprint, error)
}

// SubmissionEnqueuer persists admitted submissions as pending and serves
// the submitter's status lookups.
type SubmissionEnqueuer interface {
	Enqueue(ctx context.Context, s *model.Submission) error
	Get(ctx context.Context, id string) (*model.Submission, error)
}

// AdmissionService runs the ordered, short-circuiting check chain. The
// order is fixed: cheap reads of the reputation store come before storage-
// and model-backed checks, so a banned or rate-limited submission never
// costs a hash computation or a detector call.
type AdmissionService struct {
	reputation   *ReputationService
	ipbans       IPBanStore
	limits       RateLimitStore
	fingerprints FingerprintStore
	queue        SubmissionEnqueuer
	blobs        storage.BlobStore
	bots         *BotPatternService

	nsfw       heuristics.Check
	screenshot heuristics.Check
	quality    heuristics.Check
	exif       heuristics.Check

	maxDistance int
	log         zerolog.Logger
}

func NewAdmissionService(
	reputation *ReputationService,
	ipbans IPBanStore,
	limits RateLimitStore,
	fingerprints FingerprintStore,
	queue SubmissionEnqueuer,
	blobs storage.BlobStore,
	bots *BotPatternService,
	nsfw, screenshot, quality, exif heuristics.Check,
	maxDistance int,
	log zerolog.Logger,
) *AdmissionService {
	return &AdmissionService{
		reputation:   reputation,
		ipbans:       ipbans,
		limits:       limits,
		fingerprints: fingerprints,
		queue:        queue,
		blobs:        blobs,
		bots:         bots,
		nsfw:         nsfw,
		screenshot:   screenshot,
		quality:      quality,
		exif:         exif,
		maxDistance:  maxDistance,
		log:          log,
	}
}

// Submit runs the chain and returns the decision. Infrastructure errors
// abort the chain and bubble up; only policy outcomes produce a Decision.
func (s *AdmissionService) Submit(ctx context.Context, req *AdmissionRequest) (*Decision, error) {
	if err := s.reputation.users.EnsureUser(ctx, req.UserID); err != nil {
		return nil, err
	}
	user, err := s.reputation.Get(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("reputation row missing for user")
	}

	// Suspended accounts may read their history but not submit.
	if user.AccountStatus == model.AccountSuspended {
		return s.reject(ctx, req, ReasonAccountSuspended, model.ViolationSuspended,
			"Your account is suspended and cannot submit new reports.", 0)
	}

	// Shadow-banned users get a quiet accept; the submission is quarantined
	// and never queued, and no further checks run.
	if user.IsShadowBanned {
		return s.shadowAccept(ctx, req)
	}

	if ban, err := s.ipbans.Active(ctx, req.IPHash); err != nil {
		return nil, err
	} else if ban != nil {
		return s.reject(ctx, req, ReasonIPBanned, model.ViolationIPBanned,
			"Submissions from this network are currently blocked.", 0)
	}

	if d, err := s.checkUserRateLimit(ctx, req, user.TrustScore); err != nil || d != nil {
		return d, err
	}
	if d, err := s.checkIPRateLimit(ctx, req); err != nil || d != nil {
		return d, err
	}

	img, err := imghash.Decode(req.ImageBytes)
	if err != nil {
		return s.reject(ctx, req, ReasonInvalidImage, model.ViolationGarbage,
			"The uploaded file could not be read as a JPEG or PNG image.", 0)
	}
	payload := &heuristics.Payload{Bytes: req.ImageBytes, Image: img}

	if d, err := s.runCheck(ctx, req, s.nsfw, payload, ReasonNSFW, model.ViolationNSFW,
		"The image appears to contain explicit content."); err != nil || d != nil {
		return d, err
	}

	triple, err := imghash.Compute(img)
	if err != nil {
		return nil, err
	}
	match, err := s.fingerprints.FindNearMatch(ctx, triple.Perceptual, triple.Average, triple.Difference,
		s.maxDistance, time.Now().Add(-model.FingerprintRetention))
	if err != nil {
		return nil, err
	}
	if match != nil {
		return s.reject(ctx, req, ReasonDuplicate, model.ViolationDuplicate,
			"This image was already submitted.", 0)
	}

	if d, err := s.runCheck(ctx, req, s.screenshot, payload, ReasonScreenshot, model.ViolationScreenshot,
		"Screenshots and memes cannot be submitted as civic reports."); err != nil || d != nil {
		return d, err
	}
	if d, err := s.runCheck(ctx, req, s.quality, payload, ReasonGarbage, model.ViolationGarbage,
		"The image is unrecognizable. Please retake the photo."); err != nil || d != nil {
		return d, err
	}

	annotations := map[string]string{}
	if res, err := s.exif.Evaluate(ctx, payload); err == nil && res.Annotations != nil {
		annotations = res.Annotations
	}

	return s.admit(ctx, req, triple, annotations)
}

// Status is the submitter's view of a queued submission.
func (s *AdmissionService) Status(ctx context.Context, id string) (*model.Submission, error) {
	return s.queue.Get(ctx, id)
}

func (s *AdmissionService) checkUserRateLimit(ctx context.Context, req *AdmissionRequest, trustScore int) (*Decision, error) {
	tier := TierFor(trustScore)
	subject := "user:" + req.UserID

	hourly, err := s.limits.Increment(ctx, subject, model.ActionSubmit, model.WindowHour)
	if err != nil {
		return nil, err
	}
	daily, err := s.limits.Increment(ctx, subject, model.ActionSubmit, model.WindowDay)
	if err != nil {
		return nil, err
	}

	if hourly > tier.Hourly {
		return s.reject(ctx, req, ReasonRateLimited, model.ViolationRateLimit,
			"Hourly submission limit reached.", retryAfter(model.WindowHour))
	}
	if daily > tier.Daily {
		return s.reject(ctx, req, ReasonRateLimited, model.ViolationRateLimit,
			"Daily submission limit reached.", retryAfter(model.WindowDay))
	}
	return nil, nil
}

func (s *AdmissionService) checkIPRateLimit(ctx context.Context, req *AdmissionRequest) (*Decision, error) {
	subject := "ip:" + req.IPHash

	hourly, err := s.limits.Increment(ctx, subject, model.ActionSubmit, model.WindowHour)
	if err != nil {
		return nil, err
	}
	daily, err := s.limits.Increment(ctx, subject, model.ActionSubmit, model.WindowDay)
	if err != nil {
		return nil, err
	}

	if hourly > ipHourlyLimit {
		return s.reject(ctx, req, ReasonRateLimited, model.ViolationRateLimit,
			"Too many submissions from this network this hour.", retryAfter(model.WindowHour))
	}
	if daily > ipDailyLimit {
		return s.reject(ctx, req, ReasonRateLimited, model.ViolationRateLimit,
			"Too many submissions from this network today.", retryAfter(model.WindowDay))
	}
	return nil, nil
}

// runCheck evaluates one heuristic and converts a reject outcome into a
// chain decision. Detector errors on fail-open checks are logged as
// warnings and pass through.
func (s *AdmissionService) runCheck(ctx context.Context, req *AdmissionRequest, check heuristics.Check,
	payload *heuristics.Payload, reason, violation, message string) (*Decision, error) {

	res, err := check.Evaluate(ctx, payload)
	if err != nil && res.Outcome == heuristics.OutcomeSkipped {
		s.log.Warn().Err(err).Str("check", check.Name()).Msg("admission: detector unavailable, failing open")
	}
	if res.Outcome == heuristics.OutcomeReject {
		return s.reject(ctx, req, reason, violation, message, 0)
	}
	return nil, nil
}

func (s *AdmissionService) admit(ctx context.Context, req *AdmissionRequest, triple imghash.Triple,
	annotations map[string]string) (*Decision, error) {

	id := uuid.NewString()
	key := "submissions/" + id + ".img"
	if err := s.blobs.Put(ctx, key, req.ImageBytes); err != nil {
		return nil, err
	}

	fp := &model.ImageFingerprint{
		SubmissionID: id,
		OwnerUserID:  req.UserID,
		Perceptual:   triple.Perceptual,
		Average:      triple.Average,
		Difference:   triple.Difference,
		IPHash:       req.IPHash,
	}
	if err := s.fingerprints.Insert(ctx, fp); err != nil {
		return nil, err
	}

	sub := &model.Submission{
		ID:          id,
		OwnerUserID: req.UserID,
		ImageKey:    key,
		Description: req.Description,
		Category:    req.Category,
		Status:      model.StatusPending,
		IPHash:      req.IPHash,
	}
	if err := s.queue.Enqueue(ctx, sub); err != nil {
		return nil, err
	}

	// Opportunistic coordinated-upload scan; never affects this decision.
	if s.bots != nil {
		if err := s.bots.Scan(ctx, triple.Perceptual, req.IPHash); err != nil {
			s.log.Warn().Err(err).Msg("admission: bot pattern scan failed")
		}
	}

	s.log.Info().Str("submission", id).Int("annotations", len(annotations)).Msg("admission: admitted")
	return &Decision{Outcome: OutcomeAdmit, SubmissionID: id}, nil
}

// shadowAccept quarantines the bytes and reports success without queueing
// anything. No error surfaces to the caller.
func (s *AdmissionService) shadowAccept(ctx context.Context, req *AdmissionRequest) (*Decision, error) {
	id := uuid.NewString()
	key := "quarantine/" + id + ".img"
	if err := s.blobs.Put(ctx, key, req.ImageBytes); err != nil {
		s.log.Error().Err(err).Msg("admission: quarantine write failed")
	}

	if _, err := s.reputation.RecordViolation(ctx, &req.UserID, req.IPHash,
		model.ViolationShadowBan, "submission silently discarded", "shadow_accept"); err != nil {
		s.log.Error().Err(err).Msg("admission: shadow-accept audit failed")
	}

	return &Decision{Outcome: OutcomeShadowAccept, SubmissionID: id}, nil
}

// reject records the abuse event and trust delta for the triggering check,
// counts the rejected attempt against the IP's probing budget, and builds
// the user-visible decision.
func (s *AdmissionService) reject(ctx context.Context, req *AdmissionRequest, reason, violation, message string,
	retryAfterSec int) (*Decision, error) {

	if _, err := s.reputation.RecordViolation(ctx, &req.UserID, req.IPHash, violation, reason, "reject"); err != nil {
		return nil, err
	}
	s.trackRejectedAttempt(ctx, req.IPHash)

	return &Decision{
		Outcome:    OutcomeReject,
		Reason:     reason,
		Message:    message,
		RetryAfter: retryAfterSec,
	}, nil
}

// trackRejectedAttempt counts a rejection against the IP's stricter
// probing ceilings; crossing one escalates the IP ban ladder.
func (s *AdmissionService) trackRejectedAttempt(ctx context.Context, ipHash string) {
	subject := "ip:" + ipHash

	hourly, err := s.limits.Increment(ctx, subject, model.ActionSubmitRejected, model.WindowHour)
	if err != nil {
		s.log.Warn().Err(err).Msg("admission: rejected-attempt counter failed")
		return
	}
	daily, err := s.limits.Increment(ctx, subject, model.ActionSubmitRejected, model.WindowDay)
	if err != nil {
		s.log.Warn().Err(err).Msg("admission: rejected-attempt counter failed")
		return
	}

	if hourly == ipRejectedHourlyLimit || daily == ipRejectedDailyLimit {
		if _, err := s.ipbans.RecordViolation(ctx, ipHash, "rejected-attempt ceiling exceeded"); err != nil {
			s.log.Error().Err(err).Msg("admission: ip ban escalation failed")
		}
	}
}

func retryAfter(kind string) int {
	return int(time.Until(repository.WindowEnd(kind, time.Now())).Seconds()) + 1
}
