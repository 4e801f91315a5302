package marker

import (
	"math"
	"sync"
	"testing"

	"github.com/fieldpath/pathedit/internal/fieldmap"
	"github.com/fieldpath/pathedit/internal/waypoint"
	"github.com/fieldpath/pathedit/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMapper() fieldmap.Mapper {
	return fieldmap.New(fieldmap.Rect{Size: fieldmap.Vec{X: 1000, Y: 500}}, core.Pos(10, 5))
}

func seeded(n int) *waypoint.Store {
	s := waypoint.NewStore(waypoint.DefaultPositions())
	s.Seed(n)
	return s
}

func key(kind Kind, routine, slot int) Key {
	return Key{Kind: kind, ID: core.WaypointID{Routine: routine, Slot: slot}}
}

func TestRegistry_NewRegistry(t *testing.T) {
	r := NewRegistry()

	require.NotNil(t, r)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_SyncSpawnsBothHandles(t *testing.T) {
	s := seeded(2)
	r := NewRegistry()

	assert.Equal(t, 8, r.Sync(s))
	assert.Equal(t, 0, r.Sync(s), "second sync is a no-op")

	_, ok := r.Get(key(KindAnchor, 1, 1))
	assert.True(t, ok)
}

func TestRegistry_SyncAfterAdd(t *testing.T) {
	s := seeded(1)
	r := NewRegistry()
	r.Sync(s)
	before, _ := r.Get(key(KindWaypoint, 0, 1))

	s.AddWaypoint(core.PoseWaypoint(core.Pos(1, 1), 0), 0)

	assert.Equal(t, 2, r.Sync(s))
	after, ok := r.Get(key(KindWaypoint, 0, 1))
	require.True(t, ok)
	assert.Equal(t, before, after, "existing slots keep their marker")
}

func TestRegistry_ReconcileRetiresOutOfRange(t *testing.T) {
	s := seeded(2)
	s.AddWaypoint(core.PoseWaypoint(core.Pos(1, 1), 0), 0)
	r := NewRegistry()
	r.Sync(s)
	require.Equal(t, 10, r.Len())

	require.True(t, s.RemoveLastWaypoint(0))
	assert.Equal(t, 2, r.Reconcile(s))
	_, ok := r.Get(key(KindWaypoint, 0, 2))
	assert.False(t, ok)

	require.True(t, s.RemoveRoutine(1))
	assert.Equal(t, 4, r.Reconcile(s))
	assert.Equal(t, 4, r.Len())
}

func TestRegistry_Placements(t *testing.T) {
	s := seeded(2)
	s.AddWaypoint(core.PoseWaypoint(core.Pos(2, 2), 0), 0)
	r := NewRegistry()
	r.Sync(s)
	m := testMapper()

	got := r.Placements(s, m, 25)
	require.Len(t, got, 10)

	byKey := make(map[Key]Placement, len(got))
	for _, p := range got {
		byKey[p.Key] = p
	}

	start := byKey[key(KindWaypoint, 0, 0)]
	assert.True(t, start.Visible)
	assert.Equal(t, StyleStart, start.Style)
	assert.Equal(t, fieldmap.Vec{X: 100, Y: 100}, start.Screen)

	startAnchor := byKey[key(KindAnchor, 0, 0)]
	assert.True(t, startAnchor.Visible)
	assert.InDelta(t, 125, startAnchor.Screen.X, 1e-9)

	mid := byKey[key(KindWaypoint, 0, 1)]
	assert.True(t, mid.Visible)
	assert.Equal(t, StyleWaypoint, mid.Style)
	assert.False(t, byKey[key(KindAnchor, 0, 1)].Visible, "translations have no anchor")

	assert.False(t, byKey[key(KindWaypoint, 1, 0)].Visible, "inactive routine is hidden")
	assert.False(t, byKey[key(KindAnchor, 1, 1)].Visible)

	assert.Equal(t, key(KindWaypoint, 0, 0), got[0].Key)
	assert.Equal(t, key(KindAnchor, 0, 0), got[1].Key)
}

func TestRegistry_PlacementsHideStubs(t *testing.T) {
	s := seeded(1)
	s.AddWaypoint(core.PoseWaypoint(core.Pos(2, 2), 0), 0)
	require.True(t, s.SoftDelete(core.WaypointID{Routine: 0, Slot: 1}))
	r := NewRegistry()
	r.Sync(s)

	for _, p := range r.Placements(s, testMapper(), 25) {
		if p.Key.ID.Slot == 1 {
			assert.False(t, p.Visible, "%v", p.Key)
		}
	}
}

func TestRegistry_AnchorFollowsHeading(t *testing.T) {
	s := seeded(1)
	s.Set(core.WaypointID{Routine: 0, Slot: 1}, core.PoseWaypoint(core.Pos(6, 1), math.Pi/2))
	r := NewRegistry()
	r.Sync(s)

	for _, p := range r.Placements(s, testMapper(), 25) {
		if p.Key == key(KindAnchor, 0, 1) {
			assert.InDelta(t, 600, p.Screen.X, 1e-9)
			assert.InDelta(t, 125, p.Screen.Y, 1e-9)
			assert.InDelta(t, math.Pi/2, p.Heading, 1e-9)
		}
	}
}

func TestRegistry_Reset(t *testing.T) {
	r := NewRegistry()
	r.Sync(seeded(1))

	r.Reset()

	assert.Equal(t, 0, r.Len())
}

func TestRegistry_ConcurrentReads(t *testing.T) {
	s := seeded(2)
	r := NewRegistry()
	r.Sync(s)
	m := testMapper()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = r.Placements(s, m, 25)
				_, _ = r.Get(key(KindWaypoint, 0, 0))
			}
		}()
	}
	wg.Wait()
}
