// Package origin reads and writes provenance tags embedded in objects.
package origin

import (
	"encoding/json"
	"time"

	"lattice-agent/internal/host"
	"lattice-agent/internal/model"
	"lattice-agent/pkg/uid"
)

// DataKey is the persisted-data key holding the encoded origin tag.
const DataKey = "lattice:origin"

// Store writes origin tags on first observation and reads them back.
type Store struct {
	now func() time.Time
}

// NewStore creates an origin tag store. A nil now uses time.Now.
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{now: now}
}

// Ensure tags obj with a fresh origin unless it already carries one.
// Objects without a writable persisted-data slot are left untouched.
func (s *Store) Ensure(obj host.Object, originType, originRef string) {
	data := obj.PersistentData()
	if data == nil {
		return
	}
	if _, ok := s.Read(obj); ok {
		return
	}

	tag := model.OriginTag{
		OriginID:   uid.New(),
		OriginType: originType,
		OriginRef:  originRef,
		OriginTime: s.now().UTC(),
	}
	raw, err := json.Marshal(tag)
	if err != nil {
		return
	}
	data.Set(DataKey, string(raw))
}

// Read returns the object's origin tag if it has a valid one.
func (s *Store) Read(obj host.Object) (model.OriginTag, bool) {
	data := obj.PersistentData()
	if data == nil {
		return model.OriginTag{}, false
	}
	raw, ok := data.Get(DataKey)
	if !ok || raw == "" {
		return model.OriginTag{}, false
	}

	var tag model.OriginTag
	if err := json.Unmarshal([]byte(raw), &tag); err != nil || tag.OriginID == "" {
		return model.OriginTag{}, false
	}
	return tag, true
}

// OriginID returns the object's origin id, or "" when untagged.
func (s *Store) OriginID(obj host.Object) string {
	tag, _ := s.Read(obj)
	return tag.OriginID
}
