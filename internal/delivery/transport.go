package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrPermanent marks failures that resending cannot fix, such as an
// envelope the ingest endpoint rejected as malformed.
var ErrPermanent = errors.New("permanent delivery failure")

// Transport ships one compressed envelope.
type Transport interface {
	Send(ctx context.Context, encoding string, body []byte) error
}

// HTTPTransport posts envelopes to the ingest endpoint.
type HTTPTransport struct {
	url      string
	apiKey   string
	serverID string
	client   *http.Client
}

// NewHTTPTransport creates a transport with a bounded per-request timeout.
func NewHTTPTransport(url, apiKey, serverID string, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		url:      url,
		apiKey:   apiKey,
		serverID: serverID,
		client:   &http.Client{Timeout: timeout},
	}
}

// Send posts body. Non-2xx responses are errors; malformed-envelope
// statuses wrap ErrPermanent.
func (t *HTTPTransport) Send(ctx context.Context, encoding string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", encoding)
	req.Header.Set("X-Server-Id", t.serverID)
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("ingest request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if isMalformedStatus(resp.StatusCode) {
		return fmt.Errorf("%w: ingest returned %d", ErrPermanent, resp.StatusCode)
	}
	return fmt.Errorf("ingest returned %d", resp.StatusCode)
}

func isMalformedStatus(code int) bool {
	switch code {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

func isPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}
