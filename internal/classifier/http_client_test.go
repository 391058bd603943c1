package classifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClassifyDecodesVerdict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing auth header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"isGenuine":true,"confidence":0.93,"generatedTitle":"Broken bench","tags":["park"]}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "test-key", 5*time.Second)
	v, err := c.Classify(context.Background(), &Request{SubmissionID: "s1", ImageBase64: "aGk="})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !v.IsGenuine || v.Confidence != 0.93 || v.GeneratedTitle != "Broken bench" {
		t.Errorf("verdict = %+v", v)
	}
}

func TestClassifyErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantPermanent bool
	}{
		{"unauthorized", http.StatusUnauthorized, true},
		{"quota exhausted", http.StatusPaymentRequired, true},
		{"forbidden", http.StatusForbidden, true},
		{"rate limited upstream", http.StatusTooManyRequests, true},
		{"server error", http.StatusInternalServerError, false},
		{"bad gateway", http.StatusBadGateway, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := NewHTTPClient(srv.URL, "", 5*time.Second)
			_, err := c.Classify(context.Background(), &Request{SubmissionID: "s1"})
			if err == nil {
				t.Fatal("expected error")
			}
			if IsPermanent(err) != tt.wantPermanent {
				t.Errorf("IsPermanent = %v, want %v (err: %v)", IsPermanent(err), tt.wantPermanent, err)
			}
			if IsTransient(err) == tt.wantPermanent {
				t.Errorf("IsTransient = %v, want %v", IsTransient(err), !tt.wantPermanent)
			}
		})
	}
}

func TestClassifyTimeoutIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", 20*time.Millisecond)
	_, err := c.Classify(context.Background(), &Request{SubmissionID: "s1"})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !IsTransient(err) {
		t.Errorf("timeout not classified as transient: %v", err)
	}
}

func TestClassifyConnectionRefusedIsTransient(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:1", "", time.Second)
	_, err := c.Classify(context.Background(), &Request{SubmissionID: "s1"})
	if err == nil {
		t.Fatal("expected connection error")
	}
	if !IsTransient(err) {
		t.Errorf("connection failure not classified as transient: %v", err)
	}
}

func TestRejectionReasonPriority(t *testing.T) {
	tests := []struct {
		name string
		v    Verdict
		want string
	}{
		{"all clear", Verdict{IsGenuine: true}, ""},
		{"nsfw beats screenshot", Verdict{IsNSFW: true, IsScreenshot: true, IsGenuine: true}, ReasonNSFW},
		{"screenshot beats not-genuine", Verdict{IsScreenshot: true}, ReasonScreenshot},
		{"not genuine", Verdict{}, ReasonNotGenuine},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RejectionReason(&tt.v); got != tt.want {
				t.Errorf("RejectionReason = %q, want %q", got, tt.want)
			}
		})
	}
}
