package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// GrantPruner removes expired grants and revocations.
type GrantPruner interface {
	Prune(ctx context.Context) int
}

// PruneConfig holds configuration for the prune scheduler.
type PruneConfig struct {
	// Interval is how often the prune runs. Default: 10 minutes
	Interval time.Duration
	// Timeout bounds a single run. Default: 30 seconds
	Timeout time.Duration
	Logger  *slog.Logger
}

// PruneScheduler periodically prunes the grant store so expired grants leave
// durable storage even when nobody reads them.
type PruneScheduler struct {
	pruner    GrantPruner
	config    PruneConfig
	logger    *slog.Logger
	ticker    *time.Ticker
	stopCh    chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
}

// NewPruneScheduler creates a new prune scheduler.
func NewPruneScheduler(pruner GrantPruner, config PruneConfig) *PruneScheduler {
	if config.Interval <= 0 {
		config.Interval = 10 * time.Minute
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &PruneScheduler{
		pruner: pruner,
		config: config,
		logger: config.Logger.With("component", "PruneScheduler"),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start begins the scheduler. It is a no-op when already running.
func (s *PruneScheduler) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.config.Interval)
	s.mu.Unlock()

	s.logger.Info("started", "interval", s.config.Interval)

	go s.run()
}

func (s *PruneScheduler) run() {
	defer close(s.done)
	for {
		select {
		case <-s.ticker.C:
			s.RunNow()
		case <-s.stopCh:
			s.logger.Info("stopped")
			return
		}
	}
}

// RunNow prunes immediately and returns the number of removed entries.
func (s *PruneScheduler) RunNow() int {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
	defer cancel()

	removed := s.pruner.Prune(ctx)
	if removed > 0 {
		s.logger.Info("pruned expired grants", "removed", removed)
	} else {
		s.logger.Debug("nothing to prune")
	}
	return removed
}

// Stop stops the scheduler and waits for the loop to exit.
func (s *PruneScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		running := s.isRunning
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
		s.mu.Unlock()

		if running {
			<-s.done
		}
	})
}
