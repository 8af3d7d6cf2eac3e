package host

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxPayloadBytes caps configuration payload downloads.
const maxPayloadBytes = 1 << 20

// HTTPClient returns a client whose connections originate from h.
func HTTPClient(h Host, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext:         h.Dial,
			TLSHandshakeTimeout: timeout,
			ForceAttemptHTTP2:   true,
		},
	}
}

// Fetch downloads a small payload over HTTP(S) from the host's network view.
// Any non-2xx status is an error.
func Fetch(ctx context.Context, h Host, url string, timeout time.Duration) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}

	resp, err := HTTPClient(h, timeout).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if len(body) > maxPayloadBytes {
		return nil, fmt.Errorf("fetch %s: payload exceeds %d bytes", url, maxPayloadBytes)
	}
	return body, nil
}
