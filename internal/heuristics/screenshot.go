package heuristics

import "context"

// ScreenshotCheck rejects screen captures and memes. Same fail-open policy
// as the NSFW check.
type ScreenshotCheck struct {
	detector  Detector
	threshold float64
	failOpen  bool
}

func NewScreenshotCheck(detector Detector, threshold float64, failOpen bool) *ScreenshotCheck {
	return &ScreenshotCheck{detector: detector, threshold: threshold, failOpen: failOpen}
}

func (c *ScreenshotCheck) Name() string { return "screenshot" }

func (c *ScreenshotCheck) Evaluate(ctx context.Context, p *Payload) (Result, error) {
	if c.detector == nil {
		if c.failOpen {
			return Skipped(c.Name(), "detector not configured"), nil
		}
		return Reject(c.Name(), "screenshot_check_unavailable", 0), nil
	}

	score, err := c.detector.Detect(ctx, p.Bytes)
	if err != nil {
		if c.failOpen {
			return Skipped(c.Name(), "detector unavailable"), err
		}
		return Reject(c.Name(), "screenshot_check_unavailable", 0), err
	}

	if score >= c.threshold {
		return Reject(c.Name(), "screenshot_content", score), nil
	}
	return Pass(c.Name()), nil
}
