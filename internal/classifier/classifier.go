// Package classifier wraps the external vision-classification service the
// verification worker depends on. The service is a black box; this package
// only knows its request/response contract and how to tell transient
// failures (retry) from permanent ones (stop and wait for an operator).
package classifier

import (
	"context"
	"errors"
)

// Sentinel markers for error classification. Callers test with errors.Is;
// conflating the two either retries forever against a dead quota or
// silently starves rows that a retry would have saved.
var (
	ErrTransient = errors.New("transient classifier failure")
	ErrPermanent = errors.New("permanent classifier failure")
)

// Request carries one submission to the classifier.
type Request struct {
	SubmissionID string `json:"submissionId"`
	ImageBase64  string `json:"image"`
	Description  string `json:"description"`
	Category     string `json:"category,omitempty"`
}

// Verdict is the structured response.
type Verdict struct {
	IsGenuine            bool     `json:"isGenuine"`
	IsNSFW               bool     `json:"isNsfw"`
	IsScreenshot         bool     `json:"isScreenshot"`
	Confidence           float64  `json:"confidence"`
	Severity             string   `json:"severity"`
	GeneratedTitle       string   `json:"generatedTitle"`
	GeneratedDescription string   `json:"generatedDescription"`
	Tags                 []string `json:"tags"`
}

// Rejection reasons, in priority order. NSFW always wins so that NSFW
// content can never surface under "not genuine but otherwise fine"
// messaging.
const (
	ReasonNSFW       = "nsfw_content_detected"
	ReasonScreenshot = "screenshot_or_meme"
	ReasonNotGenuine = "not_genuine_civic_issue"
)

// RejectionReason maps a verdict to a rejection reason, or "" when the
// submission should be verified. Priority: NSFW > screenshot > not-genuine,
// independent of IsGenuine.
func RejectionReason(v *Verdict) string {
	switch {
	case v.IsNSFW:
		return ReasonNSFW
	case v.IsScreenshot:
		return ReasonScreenshot
	case !v.IsGenuine:
		return ReasonNotGenuine
	default:
		return ""
	}
}

// Client is the verification worker's view of the service.
type Client interface {
	Classify(ctx context.Context, req *Request) (*Verdict, error)
}

// IsTransient reports whether the worker should retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsPermanent reports whether the worker should hold until an operator
// intervenes.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}
