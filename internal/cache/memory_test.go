package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestTTLMapPeekWithinWindow(t *testing.T) {
	clk := newClock()
	m := NewTTLMap[string, int](time.Second, clk.Now)

	m.Set("a", 1)
	clk.Advance(time.Second)

	v, ok := m.Peek("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestTTLMapPeekEvictsExpired(t *testing.T) {
	clk := newClock()
	m := NewTTLMap[string, int](time.Second, clk.Now)

	m.Set("a", 1)
	clk.Advance(time.Second + time.Millisecond)

	_, ok := m.Peek("a")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestTTLMapSetOverwrites(t *testing.T) {
	clk := newClock()
	m := NewTTLMap[string, string](time.Second, clk.Now)

	m.Set("a", "first")
	clk.Advance(900 * time.Millisecond)
	m.Set("a", "second")
	clk.Advance(900 * time.Millisecond)

	v, ok := m.Peek("a")
	assert.True(t, ok)
	assert.Equal(t, "second", v)
}

func TestTTLMapTakeOnce(t *testing.T) {
	m := NewTTLMap[string, int](time.Second, nil)
	m.Set("a", 7)

	v, ok := m.Take("a")
	assert.True(t, ok)
	assert.Equal(t, 7, v)

	_, ok = m.Take("a")
	assert.False(t, ok)
}

func TestTTLMapTakeIfLeavesNonMatching(t *testing.T) {
	m := NewTTLMap[string, int](time.Second, nil)
	m.Set("a", 7)

	_, ok := m.TakeIf("a", func(v int) bool { return v == 8 })
	assert.False(t, ok)

	v, ok := m.Peek("a")
	assert.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestTTLMapSweep(t *testing.T) {
	clk := newClock()
	m := NewTTLMap[string, int](time.Second, clk.Now)

	m.Set("old", 1)
	clk.Advance(2 * time.Second)
	m.Set("new", 2)

	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 1, m.Len())
}
