// Package tracking holds the per-actor interaction and suppression tables
// consulted on the tick thread.
package tracking

import (
	"time"

	"lattice-agent/internal/cache"
	"lattice-agent/internal/model"
)

// ContextTable records which interaction each actor is currently inside.
// One live context per actor; the most recent interaction wins.
type ContextTable struct {
	slots *cache.TTLMap[string, model.InteractionContext]
	now   func() time.Time
}

// NewContextTable creates a table whose contexts expire after window.
func NewContextTable(window time.Duration, now func() time.Time) *ContextTable {
	if now == nil {
		now = time.Now
	}
	return &ContextTable{
		slots: cache.NewTTLMap[string, model.InteractionContext](window, now),
		now:   now,
	}
}

// Set overwrites the actor's context and stamps its creation time.
func (t *ContextTable) Set(actorID string, ctx model.InteractionContext) {
	ctx.CreatedAt = t.now()
	t.slots.Set(actorID, ctx)
}

// Peek returns the actor's context unless it is older than the window.
func (t *ContextTable) Peek(actorID string) (model.InteractionContext, bool) {
	return t.slots.Peek(actorID)
}

// Clear drops the actor's context.
func (t *ContextTable) Clear(actorID string) {
	t.slots.Delete(actorID)
}

// Window returns the configured attribution window.
func (t *ContextTable) Window() time.Duration {
	return t.slots.TTL()
}

// Sweep evicts expired contexts for actors that never read them again.
func (t *ContextTable) Sweep() int {
	return t.slots.Sweep()
}
