package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/civiclens/civiclens-go/internal/classifier"
	"github.com/civiclens/civiclens-go/internal/collab"
	"github.com/civiclens/civiclens-go/internal/model"
)

// fakeTaskQueue mimics the submission table's state machine in memory.
type fakeTaskQueue struct {
	subs    map[string]*model.Submission
	reports map[string]*model.PublicReport
}

func newFakeTaskQueue() *fakeTaskQueue {
	return &fakeTaskQueue{subs: map[string]*model.Submission{}, reports: map[string]*model.PublicReport{}}
}

func (q *fakeTaskQueue) add(id, owner string, retries int) *model.Submission {
	s := &model.Submission{
		ID:          id,
		OwnerUserID: owner,
		ImageKey:    "submissions/" + id + ".img",
		Description: "pothole",
		Status:      model.StatusPending,
		RetryCount:  retries,
	}
	q.subs[id] = s
	return s
}

func (q *fakeTaskQueue) NextPending(_ context.Context, limit, maxRetries int) ([]string, error) {
	var ids []string
	for id, s := range q.subs {
		if s.Status == model.StatusPending && s.RetryCount < maxRetries && len(ids) < limit {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (q *fakeTaskQueue) Claim(_ context.Context, id string) (*model.Submission, bool, error) {
	s, ok := q.subs[id]
	if !ok || s.Status != model.StatusPending {
		return nil, false, nil
	}
	s.Status = model.StatusProcessing
	s.RetryCount++
	cp := *s
	return &cp, true, nil
}

func (q *fakeTaskQueue) MarkVerified(_ context.Context, id string) (bool, error) {
	s := q.subs[id]
	if s.Status != model.StatusProcessing {
		return false, nil
	}
	s.Status = model.StatusVerified
	return true, nil
}

func (q *fakeTaskQueue) MarkRejected(_ context.Context, id, reason string) (bool, error) {
	s := q.subs[id]
	if s.Status != model.StatusProcessing {
		return false, nil
	}
	s.Status = model.StatusRejected
	s.RejectionReason = &reason
	return true, nil
}

func (q *fakeTaskQueue) MarkFailed(_ context.Context, id string) error {
	q.subs[id].Status = model.StatusFailed
	return nil
}

func (q *fakeTaskQueue) ReturnToPending(_ context.Context, id string, revertIncrement bool) error {
	s := q.subs[id]
	s.Status = model.StatusPending
	if revertIncrement && s.RetryCount > 0 {
		s.RetryCount--
	}
	return nil
}

func (q *fakeTaskQueue) Stats(_ context.Context, maxRetries int) (*model.QueueStats, error) {
	stats := &model.QueueStats{}
	for _, s := range q.subs {
		switch s.Status {
		case model.StatusPending:
			if s.RetryCount >= maxRetries {
				stats.ExhaustedPending++
			} else {
				stats.Pending++
			}
		case model.StatusProcessing:
			stats.Processing++
		case model.StatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

func (q *fakeTaskQueue) InsertPublicReport(_ context.Context, rep *model.PublicReport) error {
	if _, ok := q.reports[rep.SubmissionID]; ok {
		return nil
	}
	q.reports[rep.SubmissionID] = rep
	return nil
}

// scriptedClassifier returns canned responses per submission ID.
type scriptedClassifier struct {
	verdicts map[string]*classifier.Verdict
	errs     map[string]error
	calls    map[string]int
}

func newScriptedClassifier() *scriptedClassifier {
	return &scriptedClassifier{
		verdicts: map[string]*classifier.Verdict{},
		errs:     map[string]error{},
		calls:    map[string]int{},
	}
}

func (c *scriptedClassifier) Classify(_ context.Context, req *classifier.Request) (*classifier.Verdict, error) {
	c.calls[req.SubmissionID]++
	if err, ok := c.errs[req.SubmissionID]; ok {
		return nil, err
	}
	if v, ok := c.verdicts[req.SubmissionID]; ok {
		return v, nil
	}
	return &classifier.Verdict{IsGenuine: true, Confidence: 0.9}, nil
}

type recordingNotifier struct {
	verified []string
	rejected []string
	penalty  *collab.PenaltyInfo
}

func (n *recordingNotifier) NotifyVerified(_ context.Context, _ string, sub *model.Submission) {
	n.verified = append(n.verified, sub.ID)
}

func (n *recordingNotifier) NotifyRejected(_ context.Context, _ string, sub *model.Submission, p *collab.PenaltyInfo) {
	n.rejected = append(n.rejected, sub.ID)
	n.penalty = p
}

type workerFixture struct {
	worker   *VerifyWorker
	queue    *fakeTaskQueue
	cls      *scriptedClassifier
	notifier *recordingNotifier
	users    *fakeReputationStore
	blobs    *memBlobs
	results  []string
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()
	log := zerolog.Nop()
	queue := newFakeTaskQueue()
	cls := newScriptedClassifier()
	notifier := &recordingNotifier{}
	users := newFakeReputationStore()
	blobs := newMemBlobs()
	cache := NewCacheService("")

	rep := NewReputationService(users, &fakeAbuseLog{}, cache, log)
	pen := NewPenaltyService(newFakePenaltyStore())

	fx := &workerFixture{queue: queue, cls: cls, notifier: notifier, users: users, blobs: blobs}
	fx.worker = NewVerifyWorker(queue, blobs, cls, notifier, rep, pen, rep, 0, 10, log)
	fx.worker.SetResultHook(func(result string) { fx.results = append(fx.results, result) })
	return fx
}

func (fx *workerFixture) seed(t *testing.T, id, owner string, retries int) {
	t.Helper()
	fx.queue.add(id, owner, retries)
	if err := fx.blobs.Put(context.Background(), "submissions/"+id+".img", []byte("img")); err != nil {
		t.Fatal(err)
	}
}

func TestWorkerVerifiesGenuineSubmission(t *testing.T) {
	fx := newWorkerFixture(t)
	ctx := context.Background()

	fx.seed(t, "sub-1", "owner-a", 0)
	fx.cls.verdicts["sub-1"] = &classifier.Verdict{
		IsGenuine:      true,
		Confidence:     0.97,
		Severity:       "medium",
		GeneratedTitle: "Pothole on main street",
		Tags:           []string{"road", "pothole"},
	}

	fx.worker.processOne(ctx, "sub-1")

	if got := fx.queue.subs["sub-1"].Status; got != model.StatusVerified {
		t.Fatalf("status = %q, want verified", got)
	}
	rep := fx.queue.reports["sub-1"]
	if rep == nil {
		t.Fatal("no public report published")
	}
	if rep.Title != "Pothole on main street" {
		t.Errorf("report title %q", rep.Title)
	}
	if len(fx.notifier.verified) != 1 {
		t.Errorf("verified notifications = %d, want 1", len(fx.notifier.verified))
	}
	u := fx.users.users["owner-a"]
	if u == nil || u.Points != 50 {
		t.Errorf("owner points = %+v, want 50", u)
	}
	if u.TrustScore != model.TrustScoreDefault+2 {
		t.Errorf("trust score = %d, want %d", u.TrustScore, model.TrustScoreDefault+2)
	}
}

func TestWorkerRejectionPriority(t *testing.T) {
	tests := []struct {
		name       string
		verdict    classifier.Verdict
		wantReason string
	}{
		{"nsfw wins over everything", classifier.Verdict{IsNSFW: true, IsScreenshot: true, IsGenuine: false}, classifier.ReasonNSFW},
		{"screenshot before not-genuine", classifier.Verdict{IsScreenshot: true, IsGenuine: false}, classifier.ReasonScreenshot},
		{"not genuine alone", classifier.Verdict{IsGenuine: false}, classifier.ReasonNotGenuine},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newWorkerFixture(t)
			ctx := context.Background()
			id := "sub-" + tt.wantReason

			fx.seed(t, id, "owner-b", 0)
			v := tt.verdict
			fx.cls.verdicts[id] = &v

			fx.worker.processOne(ctx, id)

			sub := fx.queue.subs[id]
			if sub.Status != model.StatusRejected {
				t.Fatalf("status = %q, want rejected", sub.Status)
			}
			if sub.RejectionReason == nil || *sub.RejectionReason != tt.wantReason {
				t.Errorf("reason = %v, want %q", sub.RejectionReason, tt.wantReason)
			}
		})
	}
}

func TestWorkerRejectionAppliesPenalty(t *testing.T) {
	fx := newWorkerFixture(t)
	ctx := context.Background()

	fx.seed(t, "sub-r1", "owner-c", 0)
	fx.cls.verdicts["sub-r1"] = &classifier.Verdict{IsGenuine: false}

	fx.worker.processOne(ctx, "sub-r1")

	if len(fx.notifier.rejected) != 1 {
		t.Fatalf("rejected notifications = %d, want 1", len(fx.notifier.rejected))
	}
	if fx.notifier.penalty == nil || fx.notifier.penalty.PenaltyType != model.PenaltyWarning {
		t.Errorf("first rejection penalty = %+v, want warning", fx.notifier.penalty)
	}
}

func TestWorkerTransientErrorRequeues(t *testing.T) {
	fx := newWorkerFixture(t)
	ctx := context.Background()

	fx.seed(t, "sub-t1", "owner-d", 0)
	fx.cls.errs["sub-t1"] = fmt.Errorf("classifier http 503: %w", classifier.ErrTransient)

	fx.worker.processOne(ctx, "sub-t1")

	sub := fx.queue.subs["sub-t1"]
	if sub.Status != model.StatusPending {
		t.Fatalf("status = %q, want pending", sub.Status)
	}
	// Attempt consumed: the claim's increment stands.
	if sub.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", sub.RetryCount)
	}
	if fx.worker.Held() {
		t.Error("transient error must not hold the worker")
	}
}

func TestWorkerPermanentErrorHolds(t *testing.T) {
	fx := newWorkerFixture(t)
	ctx := context.Background()

	fx.seed(t, "sub-p1", "owner-e", 1)
	fx.cls.errs["sub-p1"] = fmt.Errorf("classifier http 402: %w", classifier.ErrPermanent)

	fx.worker.processOne(ctx, "sub-p1")

	sub := fx.queue.subs["sub-p1"]
	if sub.Status != model.StatusPending {
		t.Fatalf("status = %q, want pending", sub.Status)
	}
	// Permanent failures do not consume the retry budget.
	if sub.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1 (increment reverted)", sub.RetryCount)
	}
	if !fx.worker.Held() {
		t.Fatal("permanent error must hold the worker")
	}

	fx.worker.Resume()
	if fx.worker.Held() {
		t.Error("Resume did not clear the hold")
	}
}

func TestWorkerExhaustedRetriesFailsWithoutClassifier(t *testing.T) {
	fx := newWorkerFixture(t)
	ctx := context.Background()

	// Two prior attempts; the claim makes it three.
	fx.seed(t, "sub-x1", "owner-f", model.MaxRetries-1)

	fx.worker.processOne(ctx, "sub-x1")

	if got := fx.queue.subs["sub-x1"].Status; got != model.StatusFailed {
		t.Fatalf("status = %q, want failed", got)
	}
	if fx.cls.calls["sub-x1"] != 0 {
		t.Error("classifier called for an exhausted submission")
	}
}

func TestWorkerLostClaimIsNoop(t *testing.T) {
	fx := newWorkerFixture(t)
	ctx := context.Background()

	fx.seed(t, "sub-c1", "owner-g", 0)
	fx.queue.subs["sub-c1"].Status = model.StatusProcessing // another worker holds it

	fx.worker.processOne(ctx, "sub-c1")

	if fx.cls.calls["sub-c1"] != 0 {
		t.Error("classifier called despite losing the claim")
	}
	if len(fx.results) != 0 {
		t.Errorf("results observed: %v", fx.results)
	}
}

func TestWorkerVerifiedSideEffectsIdempotent(t *testing.T) {
	fx := newWorkerFixture(t)
	ctx := context.Background()

	fx.seed(t, "sub-i1", "owner-h", 0)

	fx.worker.processOne(ctx, "sub-i1")

	// Simulate a duplicate delivery of the same row.
	fx.queue.subs["sub-i1"].Status = model.StatusVerified
	sub := *fx.queue.subs["sub-i1"]
	fx.worker.handleVerified(ctx, &sub, &classifier.Verdict{IsGenuine: true})

	if got := fx.users.users["owner-h"].Points; got != 50 {
		t.Errorf("points = %d after duplicate processing, want 50", got)
	}
	if len(fx.notifier.verified) != 1 {
		t.Errorf("verified notifications = %d, want 1", len(fx.notifier.verified))
	}
}

func TestWorkerBlobReadFailureIsTransient(t *testing.T) {
	fx := newWorkerFixture(t)
	ctx := context.Background()

	fx.queue.add("sub-b1", "owner-i", 0) // no blob seeded
	blobFail := &failingBlobs{inner: fx.blobs}
	fx.worker.blobs = blobFail

	fx.worker.processOne(ctx, "sub-b1")

	if got := fx.queue.subs["sub-b1"].Status; got != model.StatusPending {
		t.Fatalf("status = %q, want pending", got)
	}
	if fx.worker.Held() {
		t.Error("storage failure must not hold the worker")
	}
}

type failingBlobs struct {
	inner *memBlobs
}

func (f *failingBlobs) Put(ctx context.Context, key string, data []byte) error {
	return f.inner.Put(ctx, key, data)
}

func (f *failingBlobs) Get(_ context.Context, _ string) ([]byte, error) {
	return nil, errors.New("blob store unavailable")
}

func (f *failingBlobs) Delete(ctx context.Context, key string) error {
	return f.inner.Delete(ctx, key)
}
