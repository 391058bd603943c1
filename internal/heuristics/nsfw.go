package heuristics

import "context"

// NSFWCheck rejects on a high-confidence NSFW score from its detector.
// With FailOpen set (the default), an unavailable detector passes the
// submission through — the external classifier acts as the layered
// fallback later in the pipeline.
type NSFWCheck struct {
	detector  Detector
	threshold float64
	failOpen  bool
}

func NewNSFWCheck(detector Detector, threshold float64, failOpen bool) *NSFWCheck {
	return &NSFWCheck{detector: detector, threshold: threshold, failOpen: failOpen}
}

func (c *NSFWCheck) Name() string { return "nsfw" }

func (c *NSFWCheck) Evaluate(ctx context.Context, p *Payload) (Result, error) {
	if c.detector == nil {
		if c.failOpen {
			return Skipped(c.Name(), "detector not configured"), nil
		}
		return Reject(c.Name(), "nsfw_check_unavailable", 0), nil
	}

	score, err := c.detector.Detect(ctx, p.Bytes)
	if err != nil {
		if c.failOpen {
			return Skipped(c.Name(), "detector unavailable"), err
		}
		return Reject(c.Name(), "nsfw_check_unavailable", 0), err
	}

	if score >= c.threshold {
		return Reject(c.Name(), "nsfw_content", score), nil
	}
	return Pass(c.Name()), nil
}
