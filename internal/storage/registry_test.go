package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chest struct{ pos string }

func (c chest) StorageKind() string { return "chest" }
func (c chest) StorageID() string   { return c.pos }

type drawer struct{ slot int }

type terminal struct{ network string }

func drawerProbe() (Adapter, error) {
	return Func("drawers", func(d drawer) Descriptor {
		return Descriptor{Kind: "drawer", ID: "slot-" + string(rune('0'+d.slot))}
	}), nil
}

func missingProbe() (Adapter, error) {
	return nil, ErrUnavailable
}

func TestDescribeBuiltinContainer(t *testing.T) {
	r := NewRegistry(nil)

	d := r.Describe(chest{pos: "world:1,2,3"})
	assert.Equal(t, Descriptor{Kind: "chest", ID: "world:1,2,3"}, d)
}

func TestDescribeUnknown(t *testing.T) {
	r := NewRegistry(nil)

	assert.Equal(t, Descriptor{Kind: KindUnknown}, r.Describe(terminal{network: "me"}))
	assert.Equal(t, Descriptor{Kind: KindUnknown}, r.Describe(nil))
}

func TestDetectRegistersAvailableAdapters(t *testing.T) {
	r := NewRegistry(nil)

	require.NoError(t, r.Detect(drawerProbe, missingProbe))
	assert.Equal(t, []string{"drawers", "builtin"}, r.Adapters())
	assert.Equal(t, Descriptor{Kind: "drawer", ID: "slot-4"}, r.Describe(drawer{slot: 4}))
}

func TestDetectReportsFailures(t *testing.T) {
	r := NewRegistry(nil)
	boom := errors.New("class mismatch")

	err := r.Detect(
		func() (Adapter, error) { return nil, boom },
		drawerProbe,
	)
	assert.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, ErrUnavailable))
	assert.Equal(t, []string{"drawers", "builtin"}, r.Adapters(), "later probes still run")
}

func TestAdaptersRunBeforeBuiltin(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(Func("override", func(c chest) Descriptor {
		return Descriptor{Kind: "locked_chest", ID: c.pos}
	}))

	assert.Equal(t, "locked_chest", r.Describe(chest{pos: "p"}).Kind)
}
