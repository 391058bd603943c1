package heuristics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"
)

// Detector scores an image for one dimension (NSFW likelihood, screenshot
// likelihood). A detector returning an error means "unavailable", which the
// owning check resolves through its fail-open policy.
type Detector interface {
	Detect(ctx context.Context, imageBytes []byte) (float64, error)
}

// HTTPDetector posts the image to a scoring endpoint and expects
// {"score": <0..1>} back.
type HTTPDetector struct {
	url    string
	client *http.Client
}

func NewHTTPDetector(url string) *HTTPDetector {
	return &HTTPDetector{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (d *HTTPDetector) Detect(ctx context.Context, imageBytes []byte) (float64, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "image")
	if err != nil {
		return 0, err
	}
	if _, err := part.Write(imageBytes); err != nil {
		return 0, err
	}
	if err := mw.Close(); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("detector unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("detector returned %d", resp.StatusCode)
	}

	var out struct {
		Score float64 `json:"score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode detector response: %w", err)
	}
	return out.Score, nil
}
