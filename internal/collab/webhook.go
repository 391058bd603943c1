package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/civiclens/civiclens-go/internal/model"
)

// WebhookNotifier posts outcome events to a configured webhook. Delivery is
// best effort: errors are logged and dropped.
type WebhookNotifier struct {
	url    string
	client *http.Client
	log    zerolog.Logger
}

func NewWebhookNotifier(url string, log zerolog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
		log:    log,
	}
}

type webhookEvent struct {
	Event        string       `json:"event"`
	UserID       string       `json:"userId"`
	SubmissionID string       `json:"submissionId"`
	Reason       string       `json:"reason,omitempty"`
	Penalty      *PenaltyInfo `json:"penalty,omitempty"`
}

func (n *WebhookNotifier) NotifyVerified(ctx context.Context, userID string, sub *model.Submission) {
	n.post(ctx, webhookEvent{Event: "submission_verified", UserID: userID, SubmissionID: sub.ID})
}

func (n *WebhookNotifier) NotifyRejected(ctx context.Context, userID string, sub *model.Submission, penalty *PenaltyInfo) {
	ev := webhookEvent{Event: "submission_rejected", UserID: userID, SubmissionID: sub.ID, Penalty: penalty}
	if sub.RejectionReason != nil {
		ev.Reason = *sub.RejectionReason
	}
	n.post(ctx, ev)
}

func (n *WebhookNotifier) post(ctx context.Context, ev webhookEvent) {
	body, err := json.Marshal(ev)
	if err != nil {
		n.log.Error().Err(err).Str("event", ev.Event).Msg("notify: encode failed")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		n.log.Error().Err(err).Str("event", ev.Event).Msg("notify: build request failed")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.log.Warn().Err(err).Str("event", ev.Event).Msg("notify: delivery failed")
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		n.log.Warn().Int("status", resp.StatusCode).Str("event", ev.Event).Msg("notify: webhook rejected event")
	}
}

// LogNotifier writes notifications to the log only. Used when no webhook is
// configured.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) NotifyVerified(ctx context.Context, userID string, sub *model.Submission) {
	n.log.Info().Str("submission", sub.ID).Msg("notify: submission verified")
}

func (n *LogNotifier) NotifyRejected(ctx context.Context, userID string, sub *model.Submission, penalty *PenaltyInfo) {
	evt := n.log.Info().Str("submission", sub.ID)
	if penalty != nil {
		evt = evt.Str("penalty", penalty.PenaltyType).Int("pointsDeducted", penalty.PointsDeducted)
	}
	evt.Msg("notify: submission rejected")
}
