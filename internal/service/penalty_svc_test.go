package service

import (
	"context"
	"testing"

	"github.com/civiclens/civiclens-go/internal/model"
	"github.com/civiclens/civiclens-go/internal/repository"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name        string
		n           int
		wantType    string
		wantPoints  int
		wantSuspend bool
	}{
		{"first rejection warns", 1, model.PenaltyWarning, 0, false},
		{"second rejection warns", 2, model.PenaltyWarning, 0, false},
		{"third deducts 10", 3, model.PenaltyDeduction, 10, false},
		{"fourth deducts 25", 4, model.PenaltyDeduction, 25, false},
		{"fifth suspends", 5, model.PenaltySuspend, 50, true},
		{"beyond fifth keeps suspending", 9, model.PenaltySuspend, 50, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.n)
			if got.Type != tt.wantType {
				t.Errorf("Decide(%d).Type = %q, want %q", tt.n, got.Type, tt.wantType)
			}
			if got.PointsDeducted != tt.wantPoints {
				t.Errorf("Decide(%d).PointsDeducted = %d, want %d", tt.n, got.PointsDeducted, tt.wantPoints)
			}
			if got.Suspend != tt.wantSuspend {
				t.Errorf("Decide(%d).Suspend = %v, want %v", tt.n, got.Suspend, tt.wantSuspend)
			}
		})
	}
}

// fakePenaltyStore counts prior penalties in memory and enforces the
// one-penalty-per-submission rule the way the real store does.
type fakePenaltyStore struct {
	perUser map[string]int
	seen    map[string]bool
}

func newFakePenaltyStore() *fakePenaltyStore {
	return &fakePenaltyStore{perUser: map[string]int{}, seen: map[string]bool{}}
}

func (f *fakePenaltyStore) ApplyOnce(_ context.Context, userID, submissionID, reason string,
	decide func(int) repository.PenaltyDecision) (*model.PenaltyRecord, bool, error) {
	if f.seen[submissionID] {
		return nil, false, nil
	}
	f.seen[submissionID] = true
	f.perUser[userID]++
	n := f.perUser[userID]
	d := decide(n)
	return &model.PenaltyRecord{
		UserID:               userID,
		SubmissionID:         submissionID,
		PenaltyType:          d.Type,
		PointsDeducted:       d.PointsDeducted,
		RejectionCountAtTime: n,
	}, true, nil
}

func TestPenaltyApplyProgression(t *testing.T) {
	svc := NewPenaltyService(newFakePenaltyStore())
	ctx := context.Background()

	subs := []string{"s1", "s2", "s3", "s4", "s5"}
	wantTypes := []string{
		model.PenaltyWarning, model.PenaltyWarning,
		model.PenaltyDeduction, model.PenaltyDeduction,
		model.PenaltySuspend,
	}

	for i, sub := range subs {
		info, err := svc.Apply(ctx, "user-a", sub, "nsfw_content_detected")
		if err != nil {
			t.Fatalf("Apply(%s): %v", sub, err)
		}
		if info == nil {
			t.Fatalf("Apply(%s) returned nil info", sub)
		}
		if info.PenaltyType != wantTypes[i] {
			t.Errorf("rejection %d: type %q, want %q", i+1, info.PenaltyType, wantTypes[i])
		}
		if info.RejectionCount != i+1 {
			t.Errorf("rejection %d: count %d", i+1, info.RejectionCount)
		}
	}
}

func TestPenaltyApplyIdempotent(t *testing.T) {
	svc := NewPenaltyService(newFakePenaltyStore())
	ctx := context.Background()

	var hookCalls int
	svc.SetHook(func(string) { hookCalls++ })

	first, err := svc.Apply(ctx, "user-b", "sub-1", "screenshot_or_meme")
	if err != nil || first == nil {
		t.Fatalf("first Apply: info=%v err=%v", first, err)
	}

	// Reprocessing the same rejection must not stack another penalty.
	second, err := svc.Apply(ctx, "user-b", "sub-1", "screenshot_or_meme")
	if err != nil {
		t.Fatalf("second Apply: %v", err)
	}
	if second != nil {
		t.Errorf("second Apply returned info %+v, want nil", second)
	}
	if hookCalls != 1 {
		t.Errorf("hook fired %d times, want 1", hookCalls)
	}
}
