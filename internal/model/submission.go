package model

import "time"

// Submission lifecycle statuses. Transitions form a strict state machine:
// pending -> processing -> verified|rejected|pending(retry), and
// pending -> failed once the retry budget is exhausted.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusVerified   = "verified"
	StatusRejected   = "rejected"
	StatusFailed     = "failed"
)

// MaxRetries is the processing-attempt budget per submission. A claim that
// pushes retry_count to this value marks the row failed without calling
// the classifier.
const MaxRetries = 3

// Submission is a queued photo report awaiting (or past) verification.
type Submission struct {
	ID              string     `json:"id"`
	OwnerUserID     string     `json:"userId"`
	ImageKey        string     `json:"-"`
	Description     string     `json:"description"`
	Category        string     `json:"category,omitempty"`
	Status          string     `json:"status"`
	RetryCount      int        `json:"-"`
	RejectionReason *string    `json:"rejectionReason,omitempty"`
	IPHash          string     `json:"-"`
	CreatedAt       time.Time  `json:"createdAt"`
	ProcessedAt     *time.Time `json:"processedAt,omitempty"`
}

// SubmitRequest is the API request body for creating a submission.
// The image itself arrives as a multipart file part.
type SubmitRequest struct {
	UserID      string `json:"userId" form:"userId"`
	Description string `json:"description" form:"description"`
	Category    string `json:"category,omitempty" form:"category"`
}

// SubmitResponse is returned to the caller after admission control runs.
// Shadow-accepted submissions receive the same shape as admitted ones.
type SubmitResponse struct {
	Accepted     bool   `json:"accepted"`
	SubmissionID string `json:"submissionId,omitempty"`
	Reason       string `json:"reason,omitempty"`
	Message      string `json:"message,omitempty"`
	RetryAfter   int    `json:"retryAfter,omitempty"`
}

// PublicReport is the denormalized public-facing record produced when a
// submission is verified. Title/description/tags come from the classifier.
type PublicReport struct {
	SubmissionID string    `json:"submissionId"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Tags         []string  `json:"tags"`
	Severity     string    `json:"severity"`
	Confidence   float64   `json:"confidence"`
	PublishedAt  time.Time `json:"publishedAt"`
}

// QueueStats is the operator view of the verification backlog.
// ExhaustedPending rows need a manual retry reset before they are
// picked up again.
type QueueStats struct {
	Pending          int `json:"pending"`
	ExhaustedPending int `json:"exhaustedPending"`
	Processing       int `json:"processing"`
	Failed           int `json:"failed"`
}
