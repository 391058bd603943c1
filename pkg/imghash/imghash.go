package imghash

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math/bits"

	"github.com/corona10/goimagehash"
)

// Triple holds the three hash variants computed for every accepted image.
// Perceptual survives recompression and mild cropping; average and
// difference catch cheaper re-encodes.
type Triple struct {
	Perceptual uint64
	Average    uint64
	Difference uint64
}

// Decode parses JPEG or PNG bytes into an image.
func Decode(data []byte) (image.Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if format != "jpeg" && format != "png" {
		return nil, fmt.Errorf("unsupported image format %q", format)
	}
	return img, nil
}

// Compute calculates all three hash variants for an image.
func Compute(img image.Image) (Triple, error) {
	var t Triple

	p, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return t, fmt.Errorf("perceptual hash: %w", err)
	}
	a, err := goimagehash.AverageHash(img)
	if err != nil {
		return t, fmt.Errorf("average hash: %w", err)
	}
	d, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return t, fmt.Errorf("difference hash: %w", err)
	}

	t.Perceptual = p.GetHash()
	t.Average = a.GetHash()
	t.Difference = d.GetHash()
	return t, nil
}

// Distance returns the Hamming distance between two 64-bit hashes.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// WithinDistance reports whether any of the three variants of a and b are
// within maxDist bits of each other.
func WithinDistance(a, b Triple, maxDist int) bool {
	return Distance(a.Perceptual, b.Perceptual) <= maxDist ||
		Distance(a.Average, b.Average) <= maxDist ||
		Distance(a.Difference, b.Difference) <= maxDist
}
