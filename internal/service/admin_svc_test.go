package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/civiclens/civiclens-go/internal/model"
	"github.com/civiclens/civiclens-go/internal/repository"
)

// The admin service's stores are the repositories main wires in.
var (
	_ AdminReputationStore = (*repository.ReputationRepo)(nil)
	_ AdminAbuseLog        = (*repository.AbuseRepo)(nil)
	_ PenaltyHistoryStore  = (*repository.PenaltyRepo)(nil)
)

type fakeAdminUsers struct {
	users map[string]*model.UserReputation
}

func (f *fakeAdminUsers) Get(_ context.Context, userID string) (*model.UserReputation, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeAdminUsers) ClearShadowBan(_ context.Context, userID string) error {
	f.users[userID].IsShadowBanned = false
	return nil
}

func (f *fakeAdminUsers) SetTrustScore(_ context.Context, userID string, score int) (int, error) {
	f.users[userID].TrustScore = score
	return score, nil
}

func (f *fakeAdminUsers) Suspend(_ context.Context, userID string) error {
	f.users[userID].AccountStatus = model.AccountSuspended
	return nil
}

type adminAbuseLog struct {
	fakeAbuseLog
}

func (f *adminAbuseLog) RecentForUser(_ context.Context, userID string, limit int) ([]model.AbuseEvent, error) {
	var out []model.AbuseEvent
	for i := len(f.events) - 1; i >= 0 && len(out) < limit; i-- {
		ev := f.events[i]
		if ev.UserID != nil && *ev.UserID == userID {
			out = append(out, *ev)
		}
	}
	return out, nil
}

type fakePenaltyHistory struct {
	records []model.PenaltyRecord
}

func (f *fakePenaltyHistory) RejectionCount(_ context.Context, userID string) (int, error) {
	n := 0
	for _, rec := range f.records {
		if rec.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (f *fakePenaltyHistory) HistoryForUser(_ context.Context, userID string, limit int) ([]model.PenaltyRecord, error) {
	var out []model.PenaltyRecord
	for i := len(f.records) - 1; i >= 0 && len(out) < limit; i-- {
		if f.records[i].UserID == userID {
			out = append(out, f.records[i])
		}
	}
	return out, nil
}

type adminFixture struct {
	svc       *AdminService
	users     *fakeAdminUsers
	abuse     *adminAbuseLog
	penalties *fakePenaltyHistory
}

func newAdminFixture() *adminFixture {
	users := &fakeAdminUsers{users: map[string]*model.UserReputation{}}
	abuse := &adminAbuseLog{}
	penalties := &fakePenaltyHistory{}
	svc := NewAdminService(users, newFakeIPBans(), abuse, penalties, NewCacheService(""), zerolog.Nop())
	return &adminFixture{svc: svc, users: users, abuse: abuse, penalties: penalties}
}

func (fx *adminFixture) seedUser(userID string) {
	fx.users.users[userID] = &model.UserReputation{
		UserID:        userID,
		TrustScore:    model.TrustScoreDefault,
		AccountStatus: model.AccountActive,
	}
}

func TestSuspendOverride(t *testing.T) {
	fx := newAdminFixture()
	fx.seedUser("u1")
	ctx := context.Background()

	if err := fx.svc.Suspend(ctx, "u1", "admin-1"); err != nil {
		t.Fatal(err)
	}
	if got := fx.users.users["u1"].AccountStatus; got != model.AccountSuspended {
		t.Errorf("account status = %q, want %q", got, model.AccountSuspended)
	}
	if len(fx.abuse.events) != 1 {
		t.Fatalf("audit events = %d, want 1", len(fx.abuse.events))
	}
	ev := fx.abuse.events[0]
	if ev.ActionTaken != "manual_override:suspend" {
		t.Errorf("action taken = %q", ev.ActionTaken)
	}
	if ev.UserID == nil || *ev.UserID != "u1" {
		t.Error("audit event not attributed to the user")
	}
}

func TestSuspendUnknownUser(t *testing.T) {
	fx := newAdminFixture()
	if err := fx.svc.Suspend(context.Background(), "nobody", "admin-1"); err == nil {
		t.Fatal("expected error for unknown user")
	}
	if len(fx.abuse.events) != 0 {
		t.Error("no audit event should be written for an unknown user")
	}
}

func TestUserHistoryAggregates(t *testing.T) {
	fx := newAdminFixture()
	fx.seedUser("u1")
	ctx := context.Background()

	u1 := "u1"
	for _, vt := range []string{model.ViolationNSFW, model.ViolationDuplicate} {
		if err := fx.abuse.Insert(ctx, &model.AbuseEvent{UserID: &u1, ViolationType: vt}); err != nil {
			t.Fatal(err)
		}
	}
	fx.penalties.records = append(fx.penalties.records,
		model.PenaltyRecord{UserID: "u1", SubmissionID: "s1", PenaltyType: model.PenaltyWarning},
		model.PenaltyRecord{UserID: "u1", SubmissionID: "s2", PenaltyType: model.PenaltyWarning},
		model.PenaltyRecord{UserID: "other", SubmissionID: "s3", PenaltyType: model.PenaltyWarning},
	)

	hist, err := fx.svc.UserHistory(ctx, "u1", 50)
	if err != nil {
		t.Fatal(err)
	}
	if hist.Reputation == nil || hist.Reputation.UserID != "u1" {
		t.Fatal("missing reputation in history")
	}
	if hist.RejectionCount != 2 {
		t.Errorf("rejection count = %d, want 2", hist.RejectionCount)
	}
	if len(hist.Penalties) != 2 {
		t.Errorf("penalties = %d, want 2", len(hist.Penalties))
	}
	if len(hist.Penalties) > 0 && hist.Penalties[0].SubmissionID != "s2" {
		t.Errorf("penalties not newest first, got %q", hist.Penalties[0].SubmissionID)
	}
	if len(hist.AbuseEvents) != 2 {
		t.Errorf("abuse events = %d, want 2", len(hist.AbuseEvents))
	}
	if len(hist.AbuseEvents) > 0 && hist.AbuseEvents[0].ViolationType != model.ViolationDuplicate {
		t.Errorf("abuse events not newest first, got %q", hist.AbuseEvents[0].ViolationType)
	}
}

func TestUserHistoryUnknownUser(t *testing.T) {
	fx := newAdminFixture()
	if _, err := fx.svc.UserHistory(context.Background(), "nobody", 50); err == nil {
		t.Fatal("expected error for unknown user")
	}
}
