package delivery

import (
	"sync"

	"lattice-agent/internal/model"
)

// ring is a bounded FIFO that overwrites its oldest record when full.
// Push never blocks beyond a short critical section.
type ring struct {
	mu    sync.Mutex
	items []*model.EventRecord
	head  int
	size  int
}

func newRing(capacity int) *ring {
	return &ring{items: make([]*model.EventRecord, capacity)}
}

// push appends rec and reports whether the oldest record was dropped.
func (r *ring) push(rec *model.EventRecord) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	capacity := len(r.items)
	if r.size == capacity {
		r.items[r.head] = rec
		r.head = (r.head + 1) % capacity
		return true
	}
	r.items[(r.head+r.size)%capacity] = rec
	r.size++
	return false
}

// popN removes and returns up to n records, oldest first.
func (r *ring) popN(n int) []*model.EventRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n > r.size {
		n = r.size
	}
	if n == 0 {
		return nil
	}

	out := make([]*model.EventRecord, n)
	capacity := len(r.items)
	for i := 0; i < n; i++ {
		out[i] = r.items[r.head]
		r.items[r.head] = nil
		r.head = (r.head + 1) % capacity
	}
	r.size -= n
	return out
}

func (r *ring) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}
