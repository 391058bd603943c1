// Package heuristics holds the stateless content checks the admission chain
// runs before a submission can touch expensive resources. Each check is
// independent and swappable; a check whose underlying detector is
// unavailable degrades according to its fail-open flag rather than
// blocking all submissions.
package heuristics

import (
	"context"
	"image"
)

// Outcomes of a single check.
const (
	OutcomePass    = "pass"
	OutcomeReject  = "reject"
	OutcomeSkipped = "skipped"
)

// Payload is the decoded submission image handed to every check.
type Payload struct {
	Bytes []byte
	Image image.Image
}

// Result is one check's judgement. Annotations carry informational
// metadata (EXIF fields) that never affect the decision.
type Result struct {
	Check       string
	Outcome     string
	Reason      string
	Score       float64
	Annotations map[string]string
}

// Check is a single stateless content heuristic.
type Check interface {
	Name() string
	Evaluate(ctx context.Context, p *Payload) (Result, error)
}

// Pass builds a passing result for a check.
func Pass(name string) Result {
	return Result{Check: name, Outcome: OutcomePass}
}

// Reject builds a rejecting result with a reason code.
func Reject(name, reason string, score float64) Result {
	return Result{Check: name, Outcome: OutcomeReject, Reason: reason, Score: score}
}

// Skipped builds a result for a check that could not run.
func Skipped(name, reason string) Result {
	return Result{Check: name, Outcome: OutcomeSkipped, Reason: reason}
}
