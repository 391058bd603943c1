package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// HTTPClient calls the classifier over HTTP. The per-call timeout is the
// only bound on a stuck call; expiry counts as a transient failure.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	timeout time.Duration
}

func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{},
		timeout: timeout,
	}
}

func (c *HTTPClient) Classify(ctx context.Context, req *Request) (*Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %w", ErrPermanent, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrPermanent, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		// Timeouts and connection failures are retryable.
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, fmt.Errorf("%w: timeout: %w", ErrTransient, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var v Verdict
		if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
			return nil, fmt.Errorf("%w: decode verdict: %w", ErrTransient, err)
		}
		return &v, nil
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusPaymentRequired,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusTooManyRequests:
		// Auth and quota problems don't fix themselves by retrying.
		return nil, fmt.Errorf("%w: classifier returned %d", ErrPermanent, resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: classifier returned %d", ErrTransient, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: unexpected status %d", ErrPermanent, resp.StatusCode)
	}
}
