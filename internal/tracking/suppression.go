package tracking

import (
	"time"

	"lattice-agent/internal/cache"
	"lattice-agent/internal/fingerprint"
	"lattice-agent/internal/host"
	"lattice-agent/internal/model"
	"lattice-agent/internal/origin"
)

// SuppressionTTL bridges a specific hook and the generic hook fired for the
// same movement in the same tick.
const SuppressionTTL = time.Second

// SuppressionTable stops a generic acquisition hook from re-reporting a
// movement a more specific hook already reported.
type SuppressionTable struct {
	slots   *cache.TTLMap[string, model.SuppressionRecord]
	origins *origin.Store
	now     func() time.Time
}

// NewSuppressionTable creates a table using origins to fingerprint objects.
func NewSuppressionTable(origins *origin.Store, now func() time.Time) *SuppressionTable {
	if now == nil {
		now = time.Now
	}
	return &SuppressionTable{
		slots:   cache.NewTTLMap[string, model.SuppressionRecord](SuppressionTTL, now),
		origins: origins,
		now:     now,
	}
}

// Mark records that fp was just reported for the actor.
func (t *SuppressionTable) Mark(actorID, fp string) {
	t.slots.Set(actorID, model.SuppressionRecord{Fingerprint: fp, CreatedAt: t.now()})
}

// Consume reports whether obj matches the actor's live suppression record.
// A match removes the record; a mismatch leaves it untouched.
func (t *SuppressionTable) Consume(actorID string, obj host.Object) bool {
	fp := fingerprint.Of(obj.TypeID(), obj.ContentHash(), t.origins.OriginID(obj))
	_, ok := t.slots.TakeIf(actorID, func(r model.SuppressionRecord) bool {
		return r.Fingerprint == fp
	})
	return ok
}

// Sweep evicts expired records.
func (t *SuppressionTable) Sweep() int {
	return t.slots.Sweep()
}
