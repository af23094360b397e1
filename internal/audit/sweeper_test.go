package audit

import (
	"testing"
	"time"

	"lattice-agent/internal/event"
	"lattice-agent/internal/host"
	"lattice-agent/internal/host/hosttest"
	"lattice-agent/internal/model"
	"lattice-agent/internal/origin"
	"lattice-agent/internal/tracking"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sink struct{ records []*model.EventRecord }

func (s *sink) Enqueue(rec *model.EventRecord) { s.records = append(s.records, rec) }

var alex = hosttest.Player{UUID: "p-2", User: "Alex", Pos: "world:0,70,0"}

func newSweeper() (*Sweeper, *sink) {
	now := func() time.Time { return time.Date(2026, 7, 4, 10, 0, 0, 0, time.UTC) }
	out := &sink{}
	f := event.NewFactory("srv-1", origin.NewStore(now), tracking.NewContextTable(5*time.Second, now), out, now)
	return NewSweeper(f), out
}

func TestFirstSnapshotIsBaseline(t *testing.T) {
	s, out := newSweeper()

	recs := s.Compare(alex, []host.Object{hosttest.NewItem("minecraft:diamond", 3, "h1")})
	assert.Empty(t, recs)
	assert.Empty(t, out.records)
	assert.Equal(t, 1, s.Tracked())
}

func TestGrowthIsReportedAsDelta(t *testing.T) {
	s, out := newSweeper()
	diamonds := hosttest.NewItem("minecraft:diamond", 3, "h1")
	dirt := hosttest.NewItem("minecraft:dirt", 64, "h2")

	s.Compare(alex, []host.Object{diamonds, dirt})

	diamonds.N = 5
	dirt.N = 10
	recs := s.Compare(alex, []host.Object{diamonds, dirt})

	require.Len(t, recs, 1)
	assert.Equal(t, "minecraft:diamond", recs[0].TypeID)
	assert.Equal(t, 2, recs[0].Count)
	assert.Equal(t, event.SourceAudit, recs[0].SourceType)
	assert.Equal(t, model.StorageUnattributed, recs[0].StorageKind)
	assert.Len(t, out.records, 1)
}

func TestNewStackWithSameFingerprintAggregates(t *testing.T) {
	s, _ := newSweeper()
	a := hosttest.NewItem("minecraft:iron_ingot", 10, "h")
	s.Compare(alex, []host.Object{a})

	b := hosttest.NewItem("minecraft:iron_ingot", 4, "h")
	b.Data[origin.DataKey] = a.Data[origin.DataKey]

	recs := s.Compare(alex, []host.Object{a, b})
	require.Len(t, recs, 1)
	assert.Equal(t, 4, recs[0].Count)
}

func TestUntaggableObjectsStayStable(t *testing.T) {
	s, _ := newSweeper()
	item := hosttest.NewItem("minecraft:stick", 1, "h")
	item.NoTag = true

	s.Compare(alex, []host.Object{item})
	assert.Empty(t, s.Compare(alex, []host.Object{item}))
}

func TestForget(t *testing.T) {
	s, _ := newSweeper()
	s.Compare(alex, []host.Object{hosttest.NewItem("minecraft:diamond", 1, "h")})

	s.Forget(alex.ID())
	assert.Equal(t, 0, s.Tracked())

	recs := s.Compare(alex, []host.Object{hosttest.NewItem("minecraft:diamond", 9, "h")})
	assert.Empty(t, recs, "snapshot after forget is a new baseline")
}

func TestObserveRaisesBaseline(t *testing.T) {
	s, out := newSweeper()
	gems := hosttest.NewItem("minecraft:emerald", 2, "h")
	s.Compare(alex, []host.Object{gems})

	gems.N = 7
	s.Observe(alex.ID(), s.recorder.Fingerprint(gems), 3)
	recs := s.Compare(alex, []host.Object{gems})

	require.Len(t, recs, 1)
	assert.Equal(t, 2, recs[0].Count)
	assert.Len(t, out.records, 1)
}

func TestObserveWithoutBaselineIsIgnored(t *testing.T) {
	s, _ := newSweeper()
	s.Observe(alex.ID(), "fp", 5)
	assert.Equal(t, 0, s.Tracked())
}
