package interaction

import (
	"math"
	"testing"

	"github.com/fieldpath/pathedit/internal/fieldmap"
	"github.com/fieldpath/pathedit/internal/waypoint"
	"github.com/fieldpath/pathedit/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 100 px per meter on a 10 x 5 m field with the rectangle at the origin.
func testMapper() fieldmap.Mapper {
	return fieldmap.New(fieldmap.Rect{Size: fieldmap.Vec{X: 1000, Y: 500}}, core.Pos(10, 5))
}

func at(x, y float64) MoveEvent {
	return MoveEvent{Screen: fieldmap.Vec{X: x * 100, Y: y * 100}}
}

var (
	press   = ButtonEvent{Button: ButtonPrimary, State: Pressed}
	release = ButtonEvent{Button: ButtonPrimary, State: Released}
)

func storeWith(t *testing.T, slots ...core.Waypoint) *waypoint.Store {
	t.Helper()
	s := waypoint.NewStore(waypoint.DefaultPositions())
	for _, w := range slots {
		s.AddWaypoint(w, 0)
	}
	return s
}

func TestController_DragTranslation(t *testing.T) {
	s := storeWith(t,
		core.PoseWaypoint(core.Pos(1, 1), 0),
		core.PoseWaypoint(core.Pos(2, 2), 0),
		core.PoseWaypoint(core.Pos(8, 4), 0),
	)
	id := core.WaypointID{Routine: 0, Slot: 1}
	w, _ := s.Resolve(id)
	require.Equal(t, core.Translation(core.Pos(2, 2)), w)
	c := New(DefaultRadii())
	m := testMapper()

	res := c.Step(s, m, Batch{Moves: []MoveEvent{at(2, 2)}, Buttons: []ButtonEvent{press}})
	assert.True(t, res.GrabChanged)
	assert.False(t, res.Changed)
	assert.Equal(t, Grab{Kind: GrabPosition, ID: id}, c.Grab())

	res = c.Step(s, m, Batch{Moves: []MoveEvent{at(3, 4)}})
	assert.True(t, res.Changed)
	assert.Equal(t, []int{0}, res.Routines)
	w, _ = s.Resolve(id)
	assert.Equal(t, core.Translation(core.Pos(3, 4)), w)

	c.Step(s, m, Batch{Buttons: []ButtonEvent{release}})
	assert.False(t, c.Grab().Active())

	res = c.Step(s, m, Batch{Moves: []MoveEvent{at(5, 1)}})
	assert.False(t, res.Changed)
	w, _ = s.Resolve(id)
	assert.Equal(t, core.Translation(core.Pos(3, 4)), w)
}

func TestController_DragPoseKeepsHeading(t *testing.T) {
	s := storeWith(t,
		core.PoseWaypoint(core.Pos(1, 1), 1.2),
		core.PoseWaypoint(core.Pos(8, 4), 0),
	)
	c := New(DefaultRadii())
	m := testMapper()

	c.Step(s, m, Batch{Moves: []MoveEvent{at(1, 1)}, Buttons: []ButtonEvent{press}})
	require.Equal(t, GrabPosition, c.Grab().Kind)
	c.Step(s, m, Batch{Moves: []MoveEvent{at(2, 3)}})

	w, _ := s.Resolve(core.WaypointID{Routine: 0, Slot: 0})
	assert.Equal(t, core.PoseWaypoint(core.Pos(2, 3), 1.2), w)
}

func TestController_AnchorBeatsPosition(t *testing.T) {
	// Slot 1's position circle overlaps slot 2's rotation handle at (1.25, 1).
	s := storeWith(t,
		core.PoseWaypoint(core.Pos(5, 4), 0),
		core.PoseWaypoint(core.Pos(1.25, 1.05), 0),
		core.PoseWaypoint(core.Pos(1, 1), 0),
	)
	c := New(DefaultRadii())
	m := testMapper()

	c.Step(s, m, Batch{Moves: []MoveEvent{at(1.25, 1)}, Buttons: []ButtonEvent{press}})

	assert.Equal(t, Grab{Kind: GrabRotation, ID: core.WaypointID{Routine: 0, Slot: 2}}, c.Grab())
}

func TestController_RotationDrag(t *testing.T) {
	s := storeWith(t,
		core.PoseWaypoint(core.Pos(1, 1), 0),
		core.PoseWaypoint(core.Pos(8, 4), 0),
	)
	c := New(DefaultRadii())
	m := testMapper()

	c.Step(s, m, Batch{Moves: []MoveEvent{at(1.25, 1)}, Buttons: []ButtonEvent{press}})
	require.Equal(t, GrabRotation, c.Grab().Kind)

	res := c.Step(s, m, Batch{Moves: []MoveEvent{at(1, 3)}})
	require.True(t, res.Changed)

	w, _ := s.Resolve(core.WaypointID{Routine: 0, Slot: 0})
	assert.Equal(t, core.Pos(1, 1), w.Position)
	assert.InDelta(t, math.Pi/2, w.Rotation, 1e-9)
}

func TestController_OnlyActiveRoutine(t *testing.T) {
	s := waypoint.NewStore(waypoint.DefaultPositions())
	s.Seed(2)
	require.True(t, s.SetActive(1))
	c := New(DefaultRadii())
	m := testMapper()

	c.Step(s, m, Batch{Moves: []MoveEvent{at(6, 1)}, Buttons: []ButtonEvent{press}})

	assert.Equal(t, core.WaypointID{Routine: 1, Slot: 1}, c.Grab().ID)
}

func TestController_PressMisses(t *testing.T) {
	s := storeWith(t,
		core.PoseWaypoint(core.Pos(1, 1), 0),
		core.PoseWaypoint(core.Pos(8, 4), 0),
	)
	c := New(DefaultRadii())
	m := testMapper()

	tests := []struct {
		name  string
		batch Batch
	}{
		{"empty field", Batch{Moves: []MoveEvent{at(5, 2.5)}, Buttons: []ButtonEvent{press}}},
		{"just outside radius", Batch{Moves: []MoveEvent{at(1, 1.16)}, Buttons: []ButtonEvent{press}}},
		{"secondary button", Batch{Moves: []MoveEvent{at(1, 1)}, Buttons: []ButtonEvent{{Button: ButtonSecondary, State: Pressed}}}},
		{"cursor off field", Batch{Moves: []MoveEvent{{Screen: fieldmap.Vec{X: -50, Y: -50}}}, Buttons: []ButtonEvent{press}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := c.Step(s, m, tt.batch)
			assert.False(t, c.Grab().Active())
			assert.False(t, res.GrabChanged)
		})
	}
}

func TestController_PressWhileGrabbedKeepsGrab(t *testing.T) {
	s := storeWith(t,
		core.PoseWaypoint(core.Pos(1, 1), 0),
		core.PoseWaypoint(core.Pos(8, 4), 0),
	)
	c := New(DefaultRadii())
	m := testMapper()

	c.Step(s, m, Batch{Moves: []MoveEvent{at(1, 1)}, Buttons: []ButtonEvent{press}})
	first := c.Grab()
	c.Step(s, m, Batch{Moves: []MoveEvent{at(8, 4)}, Buttons: []ButtonEvent{press}})

	assert.Equal(t, first, c.Grab())
}

func TestController_MovesBeforeButtons(t *testing.T) {
	s := storeWith(t,
		core.PoseWaypoint(core.Pos(1, 1), 0),
		core.PoseWaypoint(core.Pos(8, 4), 0),
	)
	c := New(DefaultRadii())
	m := testMapper()

	// The press lands on the last move of the frame even though it arrived first.
	c.Step(s, m, Batch{
		Moves:   []MoveEvent{at(5, 2), at(8, 4)},
		Buttons: []ButtonEvent{press},
	})

	assert.Equal(t, core.WaypointID{Routine: 0, Slot: 1}, c.Grab().ID)
}

func TestController_OffFieldMoveIgnored(t *testing.T) {
	s := storeWith(t,
		core.PoseWaypoint(core.Pos(1, 1), 0),
		core.PoseWaypoint(core.Pos(8, 4), 0),
	)
	c := New(DefaultRadii())
	m := testMapper()

	c.Step(s, m, Batch{Moves: []MoveEvent{at(1, 1)}, Buttons: []ButtonEvent{press}})
	res := c.Step(s, m, Batch{Moves: []MoveEvent{{Screen: fieldmap.Vec{X: 2000, Y: 100}}}})

	assert.False(t, res.Changed)
	assert.False(t, c.Cursor().OnField)
	w, _ := s.Resolve(core.WaypointID{Routine: 0, Slot: 0})
	assert.Equal(t, core.Pos(1, 1), w.Position)
}

type staleStore struct {
	*waypoint.Store
	sets int
}

func (s *staleStore) Set(id core.WaypointID, w core.Waypoint) bool {
	s.sets++
	return s.Store.Set(id, w)
}

func TestController_StaleGrabIsNoop(t *testing.T) {
	s := &staleStore{Store: storeWith(t,
		core.PoseWaypoint(core.Pos(1, 1), 0),
		core.PoseWaypoint(core.Pos(2, 2), 0),
		core.PoseWaypoint(core.Pos(8, 4), 0),
	)}
	c := New(DefaultRadii())
	m := testMapper()

	c.Step(s, m, Batch{Moves: []MoveEvent{at(8, 4)}, Buttons: []ButtonEvent{press}})
	require.Equal(t, core.WaypointID{Routine: 0, Slot: 2}, c.Grab().ID)
	require.True(t, s.RemoveLastWaypoint(0))

	res := c.Step(s, m, Batch{Moves: []MoveEvent{at(4, 4)}})

	assert.False(t, res.Changed)
	assert.Zero(t, s.sets)
	assert.Equal(t, 2, s.SlotCount(0))

	c.Step(s, m, Batch{Buttons: []ButtonEvent{release}})
	assert.False(t, c.Grab().Active())
}

func TestController_EmptyStore(t *testing.T) {
	s := waypoint.NewStore(waypoint.DefaultPositions())
	c := New(DefaultRadii())

	res := c.Step(s, testMapper(), Batch{Moves: []MoveEvent{at(1, 1)}, Buttons: []ButtonEvent{press, release}})

	assert.False(t, res.Changed)
	assert.False(t, c.Grab().Active())
}
