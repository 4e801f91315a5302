// Package interaction turns pointer events into waypoint edits. It tracks one
// drag at a time and writes through to the store on every move.
package interaction

import (
	"slices"

	"github.com/fieldpath/pathedit/internal/fieldmap"
	"github.com/fieldpath/pathedit/pkg/core"
)

// Radii are the pointer hit radii in screen pixels.
type Radii struct {
	// Waypoint is the pick radius around a waypoint's position.
	Waypoint float64 `mapstructure:"waypoint" validate:"gt=0"`
	// AnchorHit is the pick radius around a rotation handle.
	AnchorHit float64 `mapstructure:"anchorHit" validate:"gt=0"`
	// AnchorRevolution is how far the rotation handle sits from its pose.
	AnchorRevolution float64 `mapstructure:"anchorRevolution" validate:"gt=0"`
}

// DefaultRadii returns the stock pick radii.
func DefaultRadii() Radii {
	return Radii{Waypoint: 15, AnchorHit: 10, AnchorRevolution: 25}
}

// Store is the slice of the waypoint store the controller reads and writes.
type Store interface {
	Len() int
	Active() int
	Routine(i int) []core.Waypoint
	Resolve(id core.WaypointID) (core.Waypoint, bool)
	Set(id core.WaypointID, w core.Waypoint) bool
}

// StepResult summarizes what a Step changed.
type StepResult struct {
	// Changed is true when any waypoint was rewritten.
	Changed bool
	// Routines lists the routine indices that were rewritten, ascending.
	Routines []int
	// GrabChanged is true when a drag started or ended.
	GrabChanged bool
}

func (r *StepResult) touch(routine int) {
	r.Changed = true
	if !slices.Contains(r.Routines, routine) {
		r.Routines = append(r.Routines, routine)
		slices.Sort(r.Routines)
	}
}

// Controller is the pointer state machine. The zero value is not usable; build
// one with New.
type Controller struct {
	radii  Radii
	cursor Cursor
}

// New returns a controller with no grab and the cursor off the field.
func New(radii Radii) *Controller {
	return &Controller{radii: radii}
}

// Cursor returns the current cursor state.
func (c *Controller) Cursor() Cursor {
	return c.cursor
}

// Grab returns the current drag target.
func (c *Controller) Grab() Grab {
	return c.cursor.Grab
}

// Radii returns the configured hit radii.
func (c *Controller) Radii() Radii {
	return c.radii
}

// Cancel drops any drag in progress.
func (c *Controller) Cancel() {
	c.cursor.Grab = Grab{}
}

// Step applies one frame of events. All moves are handled before any button so
// a press acts on the latest cursor position of the frame.
func (c *Controller) Step(store Store, m fieldmap.Mapper, batch Batch) StepResult {
	var res StepResult
	for _, ev := range batch.Moves {
		c.move(store, m, ev, &res)
	}
	for _, ev := range batch.Buttons {
		c.button(store, m, ev, &res)
	}
	return res
}

func (c *Controller) move(store Store, m fieldmap.Mapper, ev MoveEvent, res *StepResult) {
	pos, ok := m.ToField(ev.Screen)
	c.cursor.OnField = ok
	if !ok {
		return
	}
	c.cursor.Pos = pos

	g := c.cursor.Grab
	if !g.Active() {
		return
	}
	w, ok := store.Resolve(g.ID)
	if !ok {
		return
	}
	var next core.Waypoint
	switch g.Kind {
	case GrabPosition:
		next = w.WithPosition(pos)
	case GrabRotation:
		if !w.IsPose() {
			return
		}
		next = w.WithRotation(w.Position.HeadingTo(pos))
	}
	if next == w {
		return
	}
	if store.Set(g.ID, next) {
		res.touch(g.ID.Routine)
	}
}

func (c *Controller) button(store Store, m fieldmap.Mapper, ev ButtonEvent, res *StepResult) {
	if ev.Button != ButtonPrimary {
		return
	}
	switch ev.State {
	case Pressed:
		if c.cursor.Grab.Active() || !c.cursor.OnField {
			return
		}
		if g, ok := c.HitTest(store, m, c.cursor.Pos); ok {
			c.cursor.Grab = g
			res.GrabChanged = true
		}
	case Released:
		if c.cursor.Grab.Active() {
			res.GrabChanged = true
		}
		c.cursor.Grab = Grab{}
	}
}

// HitTest finds what a press at pos would grab in the active routine. Rotation
// handles are checked across the whole routine before any position, so a handle
// always wins over an overlapping waypoint. Within a pass the lowest slot wins.
func (c *Controller) HitTest(store Store, m fieldmap.Mapper, pos core.Position) (Grab, bool) {
	if store.Len() == 0 {
		return Grab{}, false
	}
	active := store.Active()
	slots := store.Routine(active)

	for i, w := range slots {
		if !w.IsPose() {
			continue
		}
		anchor := m.Anchor(w.Pose(), c.radii.AnchorRevolution)
		if m.ToScreenDistance(pos.Dist(anchor)) <= c.radii.AnchorHit {
			return Grab{Kind: GrabRotation, ID: core.WaypointID{Routine: active, Slot: i}}, true
		}
	}
	for i, w := range slots {
		if w.Empty() {
			continue
		}
		if m.ToScreenDistance(pos.Dist(w.Position)) <= c.radii.Waypoint {
			return Grab{Kind: GrabPosition, ID: core.WaypointID{Routine: active, Slot: i}}, true
		}
	}
	return Grab{}, false
}
