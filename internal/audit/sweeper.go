// Package audit compares full inventory snapshots to catch acquisitions no
// live hook reported.
package audit

import (
	"sync"

	"lattice-agent/internal/event"
	"lattice-agent/internal/host"
	"lattice-agent/internal/model"
)

// Recorder is the part of the event factory the sweeper needs.
type Recorder interface {
	Tag(obj host.Object, src host.Source)
	Fingerprint(obj host.Object) string
	OnAuditAcquire(actor host.Actor, obj host.Object, count int) *model.EventRecord
}

// Sweeper keeps the last inventory snapshot per actor.
type Sweeper struct {
	recorder Recorder

	mu        sync.Mutex
	snapshots map[string]map[string]int
}

// NewSweeper creates a sweeper reporting through recorder.
func NewSweeper(recorder Recorder) *Sweeper {
	return &Sweeper{
		recorder:  recorder,
		snapshots: make(map[string]map[string]int),
	}
}

// Compare diffs objects against the actor's previous snapshot and records an
// audit acquisition for every fingerprint whose count grew. The first
// snapshot for an actor only sets the baseline. Untagged objects are tagged
// with the audit origin so their fingerprints stay stable between sweeps.
func (s *Sweeper) Compare(actor host.Actor, objects []host.Object) []*model.EventRecord {
	counts := make(map[string]int, len(objects))
	sample := make(map[string]host.Object, len(objects))
	for _, obj := range objects {
		if obj == nil || obj.Count() <= 0 {
			continue
		}
		s.recorder.Tag(obj, host.Source{Type: event.SourceAudit})
		fp := s.recorder.Fingerprint(obj)
		counts[fp] += obj.Count()
		if _, ok := sample[fp]; !ok {
			sample[fp] = obj
		}
	}

	s.mu.Lock()
	prev, seen := s.snapshots[actor.ID()]
	s.snapshots[actor.ID()] = counts
	s.mu.Unlock()

	if !seen {
		return nil
	}

	var out []*model.EventRecord
	for fp, n := range counts {
		if delta := n - prev[fp]; delta > 0 {
			out = append(out, s.recorder.OnAuditAcquire(actor, sample[fp], delta))
		}
	}
	return out
}

// Observe raises the actor's baseline for fp by count so an acquisition a
// live hook already reported is not reported again by the next sweep. Actors
// without a snapshot are ignored; their first snapshot is the baseline.
func (s *Sweeper) Observe(actorID, fp string, count int) {
	if count <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.snapshots[actorID]; ok {
		prev[fp] += count
	}
}

// Forget drops the actor's snapshot.
func (s *Sweeper) Forget(actorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.snapshots, actorID)
}

// Tracked returns the number of actors with a snapshot.
func (s *Sweeper) Tracked() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.snapshots)
}
