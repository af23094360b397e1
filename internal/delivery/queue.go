// Package delivery buffers event records and ships them to the ingest
// endpoint, spooling batches that fail to send.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"lattice-agent/internal/model"
	"lattice-agent/internal/spool"
)

// Defaults applied to zero Config fields.
const (
	DefaultFlushTick    = 250 * time.Millisecond
	DefaultResendCohort = 5
	DefaultBatchSize    = 200
	DefaultCapacity     = 10000
	DefaultSendTimeout  = 10 * time.Second
)

// Config holds queue settings.
type Config struct {
	ServerID      string
	BatchSize     int
	BatchInterval time.Duration
	Capacity      int
	FlushTick     time.Duration
	ResendCohort  int
	Encoding      string
	SendTimeout   time.Duration
	Now           func() time.Time
	Logger        *slog.Logger
}

// Stats is a point-in-time view of queue counters.
type Stats struct {
	Buffered     int    `json:"buffered"`
	Enqueued     uint64 `json:"enqueued"`
	Dropped      uint64 `json:"dropped"`
	SentBatches  uint64 `json:"sent_batches"`
	SentEvents   uint64 `json:"sent_events"`
	FailedSends  uint64 `json:"failed_sends"`
	Spooled      uint64 `json:"spooled"`
	Resent       uint64 `json:"resent"`
	Rejected     uint64 `json:"rejected"`
	SpoolErrors  uint64 `json:"spool_errors"`
	LastFlushErr string `json:"last_flush_error,omitempty"`
}

// Queue is a bounded buffer drained by a background flush loop.
// Enqueue is safe to call from the tick thread; all I/O happens in Flush.
type Queue struct {
	cfg       Config
	buf       *ring
	transport Transport
	spool     spool.Spool
	logger    *slog.Logger

	flushMu   sync.Mutex
	lastBatch time.Time

	enqueued    atomic.Uint64
	dropped     atomic.Uint64
	sentBatches atomic.Uint64
	sentEvents  atomic.Uint64
	failedSends atomic.Uint64
	spooled     atomic.Uint64
	resent      atomic.Uint64
	rejected    atomic.Uint64
	spoolErrors atomic.Uint64
	lastErr     atomic.Value // string

	stopCh   chan struct{}
	doneCh   chan struct{}
	started  atomic.Bool
	stopOnce sync.Once
}

// NewQueue creates a queue. Call Start to run the flush loop.
func NewQueue(cfg Config, transport Transport, sp spool.Spool) (*Queue, error) {
	if transport == nil || sp == nil {
		return nil, errors.New("delivery queue requires a transport and a spool")
	}
	if cfg.ServerID == "" {
		return nil, errors.New("delivery queue requires a server id")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.FlushTick <= 0 {
		cfg.FlushTick = DefaultFlushTick
	}
	if cfg.ResendCohort <= 0 {
		cfg.ResendCohort = DefaultResendCohort
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	if cfg.Encoding == "" {
		cfg.Encoding = EncodingGzip
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Queue{
		cfg:       cfg,
		buf:       newRing(cfg.Capacity),
		transport: transport,
		spool:     sp,
		logger:    cfg.Logger.With("component", "DeliveryQueue"),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}, nil
}

// Enqueue buffers rec. When the buffer is full the oldest record is dropped.
func (q *Queue) Enqueue(rec *model.EventRecord) {
	q.enqueued.Add(1)
	if q.buf.push(rec) {
		if n := q.dropped.Add(1); n == 1 || n%1000 == 0 {
			q.logger.Warn("buffer full, dropping oldest records", "dropped_total", n, "capacity", q.cfg.Capacity)
		}
	}
}

// Len returns the number of buffered records.
func (q *Queue) Len() int {
	return q.buf.len()
}

// Start launches the background flush loop.
func (q *Queue) Start() {
	if !q.started.CompareAndSwap(false, true) {
		return
	}
	q.logger.Info("started",
		"flush_tick", q.cfg.FlushTick,
		"batch_interval", q.cfg.BatchInterval,
		"batch_size", q.cfg.BatchSize,
		"capacity", q.cfg.Capacity,
		"encoding", q.cfg.Encoding)
	go q.run()
}

func (q *Queue) run() {
	defer close(q.doneCh)

	ticker := time.NewTicker(q.cfg.FlushTick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), q.cycleTimeout())
			q.Flush(ctx)
			cancel()
		case <-q.stopCh:
			return
		}
	}
}

// cycleTimeout bounds a full cycle: one resend per cohort slot plus one batch.
func (q *Queue) cycleTimeout() time.Duration {
	return time.Duration(q.cfg.ResendCohort+1) * q.cfg.SendTimeout
}

// Flush runs one cycle: resend the oldest spooled batches, then send a new
// batch if the batch interval has elapsed.
func (q *Queue) Flush(ctx context.Context) {
	q.flushMu.Lock()
	defer q.flushMu.Unlock()

	q.resendPass(ctx)
	q.batchPass(ctx)
}

func (q *Queue) resendPass(ctx context.Context) {
	entries, err := q.spool.Oldest(ctx, q.cfg.ResendCohort)
	if err != nil {
		q.recordErr(fmt.Errorf("read spool: %w", err))
		q.logger.Error("failed to read spool", "error", err)
	}

	for _, e := range entries {
		err := q.send(ctx, e.Encoding, e.Data)
		if err != nil && !isPermanent(err) {
			q.logger.Debug("resend failed, keeping spool entry", "id", e.ID, "error", err)
			continue
		}
		if err != nil {
			q.rejected.Add(1)
			q.logger.Error("spooled batch rejected, discarding", "id", e.ID, "error", err)
		} else {
			q.resent.Add(1)
		}
		if err := q.spool.Delete(ctx, e.ID); err != nil && !errors.Is(err, spool.ErrNotFound) {
			q.spoolErrors.Add(1)
			q.logger.Error("failed to delete spool entry", "id", e.ID, "error", err)
		}
	}
}

func (q *Queue) batchPass(ctx context.Context) {
	if q.buf.len() == 0 {
		return
	}
	now := q.cfg.Now()
	if !q.lastBatch.IsZero() && now.Sub(q.lastBatch) < q.cfg.BatchInterval {
		return
	}
	q.lastBatch = now

	events := q.buf.popN(q.cfg.BatchSize)
	body, err := EncodeEnvelope(model.NewEnvelope(q.cfg.ServerID, events), q.cfg.Encoding)
	if err != nil {
		q.rejected.Add(1)
		q.recordErr(err)
		q.logger.Error("failed to encode envelope, discarding batch", "events", len(events), "error", err)
		return
	}

	err = q.send(ctx, q.cfg.Encoding, body)
	switch {
	case err == nil:
		q.sentEvents.Add(uint64(len(events)))
	case isPermanent(err):
		q.rejected.Add(1)
		q.logger.Error("batch rejected by ingest, discarding", "events", len(events), "error", err)
	default:
		q.spoolBatch(ctx, body, len(events))
	}
}

func (q *Queue) send(ctx context.Context, encoding string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, q.cfg.SendTimeout)
	defer cancel()

	if err := q.transport.Send(ctx, encoding, body); err != nil {
		q.failedSends.Add(1)
		q.recordErr(err)
		return err
	}
	q.sentBatches.Add(1)
	return nil
}

func (q *Queue) spoolBatch(ctx context.Context, body []byte, events int) {
	id, err := q.spool.Put(ctx, q.cfg.Encoding, body)
	if err != nil {
		q.spoolErrors.Add(1)
		q.logger.Error("failed to spool batch, events lost", "events", events, "error", err)
		return
	}
	q.spooled.Add(1)
	q.logger.Debug("batch spooled", "id", id, "events", events)
}

func (q *Queue) recordErr(err error) {
	q.lastErr.Store(err.Error())
}

// Stats returns current counters.
func (q *Queue) Stats() Stats {
	s := Stats{
		Buffered:    q.buf.len(),
		Enqueued:    q.enqueued.Load(),
		Dropped:     q.dropped.Load(),
		SentBatches: q.sentBatches.Load(),
		SentEvents:  q.sentEvents.Load(),
		FailedSends: q.failedSends.Load(),
		Spooled:     q.spooled.Load(),
		Resent:      q.resent.Load(),
		Rejected:    q.rejected.Load(),
		SpoolErrors: q.spoolErrors.Load(),
	}
	if v, ok := q.lastErr.Load().(string); ok {
		s.LastFlushErr = v
	}
	return s
}

// SpoolCount returns the number of spooled batches.
func (q *Queue) SpoolCount(ctx context.Context) (int, error) {
	return q.spool.Count(ctx)
}

// Close stops the flush loop and spools whatever is still buffered until
// ctx expires. Records left after that are lost.
func (q *Queue) Close(ctx context.Context) error {
	q.stopOnce.Do(func() {
		close(q.stopCh)
	})
	if q.started.Load() {
		select {
		case <-q.doneCh:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	q.flushMu.Lock()
	defer q.flushMu.Unlock()

	saved := 0
	for q.buf.len() > 0 {
		if ctx.Err() != nil {
			q.logger.Warn("shutdown deadline reached, dropping buffered records", "remaining", q.buf.len())
			return ctx.Err()
		}
		events := q.buf.popN(q.cfg.BatchSize)
		body, err := EncodeEnvelope(model.NewEnvelope(q.cfg.ServerID, events), q.cfg.Encoding)
		if err != nil {
			q.logger.Error("failed to encode envelope on shutdown", "error", err)
			continue
		}
		q.spoolBatch(ctx, body, len(events))
		saved += len(events)
	}
	q.logger.Info("stopped", "spooled_on_shutdown", saved)
	return nil
}
