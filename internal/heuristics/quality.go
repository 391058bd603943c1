package heuristics

import (
	"context"
	"image"
	"image/color"
	"math"
)

// Lenient by design: low-end cameras produce dark, noisy, slightly blurred
// photos that must pass. Only images with near-zero information content or
// extreme blur are rejected; anything borderline goes through and is left
// to the classifier.
const (
	minEntropy      = 1.0  // bits; a flat single-color frame scores ~0
	minEdgeEnergy   = 1.5  // mean absolute neighbor difference in gray levels
	qualitySampleXY = 4    // evaluate every 4th pixel
)

// QualityCheck rejects unrecognizable images locally, with no detector
// dependency.
type QualityCheck struct {
	enabled bool
}

func NewQualityCheck(enabled bool) *QualityCheck {
	return &QualityCheck{enabled: enabled}
}

func (c *QualityCheck) Name() string { return "quality" }

func (c *QualityCheck) Evaluate(ctx context.Context, p *Payload) (Result, error) {
	if !c.enabled {
		return Skipped(c.Name(), "disabled"), nil
	}

	entropy, edge := grayStats(p.Image)
	if entropy < minEntropy {
		return Reject(c.Name(), "garbage_image", entropy), nil
	}
	if edge < minEdgeEnergy {
		return Reject(c.Name(), "garbage_image", edge), nil
	}
	return Pass(c.Name()), nil
}

// grayStats computes the grayscale histogram entropy and the mean absolute
// horizontal neighbor difference over a sampled pixel grid. Entropy
// approximates information content; the neighbor difference approximates
// sharpness.
func grayStats(img image.Image) (entropy, edgeEnergy float64) {
	bounds := img.Bounds()
	if bounds.Empty() {
		return 0, 0
	}

	var hist [256]int
	var total int
	var diffSum float64
	var diffCount int

	for y := bounds.Min.Y; y < bounds.Max.Y; y += qualitySampleXY {
		var prev int
		hasPrev := false
		for x := bounds.Min.X; x < bounds.Max.X; x += qualitySampleXY {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
			hist[g]++
			total++
			if hasPrev {
				diffSum += math.Abs(float64(int(g) - prev))
				diffCount++
			}
			prev = int(g)
			hasPrev = true
		}
	}
	if total == 0 {
		return 0, 0
	}

	for _, count := range hist {
		if count == 0 {
			continue
		}
		p := float64(count) / float64(total)
		entropy -= p * math.Log2(p)
	}
	if diffCount > 0 {
		edgeEnergy = diffSum / float64(diffCount)
	}
	return entropy, edgeEnergy
}
