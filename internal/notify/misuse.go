// Package notify delivers out-of-band security alerts.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"lattice-agent/internal/model"

	"golang.org/x/time/rate"
)

// Config holds notifier settings.
type Config struct {
	URL       string
	APIKey    string
	Rate      float64 // alerts per second
	Burst     int
	Timeout   time.Duration
	QueueSize int
	Logger    *slog.Logger
}

// Stats reports notifier counters.
type Stats struct {
	Sent    uint64 `json:"sent"`
	Failed  uint64 `json:"failed"`
	Dropped uint64 `json:"dropped"`
	Limited uint64 `json:"rate_limited"`
	Queued  int    `json:"queued"`
}

// HTTPNotifier posts misuse events to a remote endpoint from a background
// worker. Notify never blocks.
type HTTPNotifier struct {
	url     string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan model.MisuseEvent
	doneCh chan struct{}

	sent    atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
	limited atomic.Uint64
}

// NewHTTPNotifier creates a notifier and starts its worker.
func NewHTTPNotifier(cfg Config) *HTTPNotifier {
	if cfg.Rate <= 0 {
		cfg.Rate = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	n := &HTTPNotifier{
		url:     cfg.URL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
		logger:  cfg.Logger.With("component", "MisuseNotifier"),
		queue:   make(chan model.MisuseEvent, cfg.QueueSize),
		doneCh:  make(chan struct{}),
	}
	go n.run()
	return n
}

// Notify queues ev for delivery. Events are dropped when the queue is full.
func (n *HTTPNotifier) Notify(ev model.MisuseEvent) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		n.dropped.Add(1)
		return
	}
	select {
	case n.queue <- ev:
	default:
		n.dropped.Add(1)
		n.logger.Warn("alert queue full, dropping misuse event", "token_id", ev.TokenID)
	}
}

func (n *HTTPNotifier) run() {
	defer close(n.doneCh)

	for ev := range n.queue {
		if !n.limiter.Allow() {
			n.limited.Add(1)
			n.logger.Warn("misuse alert rate limited", "token_id", ev.TokenID,
				"owner_actor_id", ev.OwnerActorID, "offender_actor_id", ev.OffenderActor)
			continue
		}
		if err := n.post(ev); err != nil {
			n.failed.Add(1)
			n.logger.Error("failed to send misuse alert", "token_id", ev.TokenID, "error", err)
			continue
		}
		n.sent.Add(1)
	}
}

func (n *HTTPNotifier) post(ev model.MisuseEvent) error {
	if n.url == "" {
		n.logger.Warn("misuse detected, no alert endpoint configured",
			"token_id", ev.TokenID, "owner_actor_id", ev.OwnerActorID, "offender_actor_id", ev.OffenderActor)
		return nil
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if n.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+n.apiKey)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("alert endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// Stats returns current counters.
func (n *HTTPNotifier) Stats() Stats {
	return Stats{
		Sent:    n.sent.Load(),
		Failed:  n.failed.Load(),
		Dropped: n.dropped.Load(),
		Limited: n.limited.Load(),
		Queued:  len(n.queue),
	}
}

// Close stops accepting events and waits for queued ones until ctx expires.
func (n *HTTPNotifier) Close(ctx context.Context) error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()

	select {
	case <-n.doneCh:
		return nil
	case <-ctx.Done():
		n.logger.Warn("shutdown deadline reached, abandoning queued alerts", "queued", len(n.queue))
		return ctx.Err()
	}
}
