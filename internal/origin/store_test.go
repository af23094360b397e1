package origin

import (
	"testing"
	"time"

	"lattice-agent/internal/host/hosttest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureFirstWriteWins(t *testing.T) {
	s := NewStore(nil)
	item := hosttest.NewItem("minecraft:iron_ingot", 3, "h1")

	s.Ensure(item, "container", "chest@1,2,3")
	first, ok := s.Read(item)
	require.True(t, ok)

	s.Ensure(item, "smelt", "furnace@4,5,6")
	s.Ensure(item, "craft", "")
	second, ok := s.Read(item)
	require.True(t, ok)

	assert.Equal(t, first, second)
	assert.Equal(t, "container", second.OriginType)
	assert.Equal(t, "chest@1,2,3", second.OriginRef)
}

func TestEnsureUsesClock(t *testing.T) {
	at := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	s := NewStore(func() time.Time { return at })
	item := hosttest.NewItem("minecraft:stone", 1, "h")

	s.Ensure(item, "mined", "")
	tag, ok := s.Read(item)
	require.True(t, ok)
	assert.True(t, at.Equal(tag.OriginTime))
	assert.NotEmpty(t, tag.OriginID)
}

func TestEnsureWithoutDataSlot(t *testing.T) {
	s := NewStore(nil)
	item := hosttest.NewItem("minecraft:stone", 1, "h")
	item.NoTag = true

	s.Ensure(item, "mined", "")
	_, ok := s.Read(item)
	assert.False(t, ok)
	assert.Equal(t, "", s.OriginID(item))
}

func TestReadIgnoresCorruptTag(t *testing.T) {
	s := NewStore(nil)
	item := hosttest.NewItem("minecraft:stone", 1, "h")
	item.Data[DataKey] = "{not json"

	_, ok := s.Read(item)
	assert.False(t, ok)
}
