package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingPruner struct {
	calls atomic.Int32
}

func (p *countingPruner) Prune(ctx context.Context) int {
	p.calls.Add(1)
	return 3
}

func TestRunNow(t *testing.T) {
	p := &countingPruner{}
	s := NewPruneScheduler(p, PruneConfig{})

	assert.Equal(t, 3, s.RunNow())
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestSchedulerTicks(t *testing.T) {
	p := &countingPruner{}
	s := NewPruneScheduler(p, PruneConfig{Interval: 10 * time.Millisecond})
	s.Start()
	s.Start()

	assert.Eventually(t, func() bool { return p.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	s.Stop()
	after := p.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, p.calls.Load())
}

func TestStopWithoutStart(t *testing.T) {
	s := NewPruneScheduler(&countingPruner{}, PruneConfig{})
	s.Stop()
	s.Stop()
}
