package tracking

import (
	"testing"
	"time"

	"lattice-agent/internal/fingerprint"
	"lattice-agent/internal/host/hosttest"
	"lattice-agent/internal/model"
	"lattice-agent/internal/origin"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newClock() *clock {
	return &clock{t: time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)}
}

func TestContextTableWindow(t *testing.T) {
	clk := newClock()
	table := NewContextTable(3*time.Second, clk.now)

	table.Set("p1", model.InteractionContext{StorageKind: "chest", StorageID: "c1", ActorType: model.ActorPlayer, TraceID: "t1"})

	clk.t = clk.t.Add(3 * time.Second)
	got, ok := table.Peek("p1")
	require.True(t, ok)
	assert.Equal(t, "c1", got.StorageID)

	clk.t = clk.t.Add(time.Millisecond)
	_, ok = table.Peek("p1")
	assert.False(t, ok)
}

func TestContextTableLatestWins(t *testing.T) {
	table := NewContextTable(time.Minute, nil)

	table.Set("p1", model.InteractionContext{StorageID: "first"})
	table.Set("p1", model.InteractionContext{StorageID: "second"})

	got, ok := table.Peek("p1")
	require.True(t, ok)
	assert.Equal(t, "second", got.StorageID)
}

func TestContextTableIsolatesActors(t *testing.T) {
	table := NewContextTable(time.Minute, nil)
	table.Set("p1", model.InteractionContext{StorageID: "c1"})

	_, ok := table.Peek("p2")
	assert.False(t, ok)
}

func TestContextTableStampsCreatedAt(t *testing.T) {
	clk := newClock()
	table := NewContextTable(time.Second, clk.now)
	table.Set("p1", model.InteractionContext{StorageID: "c1", CreatedAt: clk.t.Add(-time.Hour)})

	got, ok := table.Peek("p1")
	require.True(t, ok)
	assert.True(t, clk.t.Equal(got.CreatedAt))
}

func TestSuppressionConsumedOnce(t *testing.T) {
	origins := origin.NewStore(nil)
	table := NewSuppressionTable(origins, nil)

	item := hosttest.NewItem("minecraft:iron_ingot", 2, "h")
	origins.Ensure(item, "smelt", "furnace")
	table.Mark("p1", fingerprint.Of(item.TypeID(), item.ContentHash(), origins.OriginID(item)))

	assert.True(t, table.Consume("p1", item))
	assert.False(t, table.Consume("p1", item))
}

func TestSuppressionMismatchKeepsRecord(t *testing.T) {
	origins := origin.NewStore(nil)
	table := NewSuppressionTable(origins, nil)

	smelted := hosttest.NewItem("minecraft:iron_ingot", 2, "h")
	origins.Ensure(smelted, "smelt", "furnace")
	other := hosttest.NewItem("minecraft:gold_ingot", 2, "h")

	table.Mark("p1", fingerprint.Of(smelted.TypeID(), smelted.ContentHash(), origins.OriginID(smelted)))

	assert.False(t, table.Consume("p1", other))
	assert.True(t, table.Consume("p1", smelted))
}

func TestSuppressionExpires(t *testing.T) {
	clk := newClock()
	origins := origin.NewStore(nil)
	table := NewSuppressionTable(origins, clk.now)

	item := hosttest.NewItem("minecraft:iron_ingot", 2, "h")
	table.Mark("p1", fingerprint.Of(item.TypeID(), item.ContentHash(), ""))

	clk.t = clk.t.Add(SuppressionTTL + time.Millisecond)
	assert.False(t, table.Consume("p1", item))
}
