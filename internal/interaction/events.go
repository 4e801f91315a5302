package interaction

import (
	"fmt"

	"github.com/fieldpath/pathedit/internal/fieldmap"
	"github.com/fieldpath/pathedit/pkg/core"
)

// Button identifies a pointer button. Only ButtonPrimary drives grabs.
type Button uint8

const (
	ButtonPrimary Button = iota
	ButtonSecondary
	ButtonMiddle
)

// ButtonState is the edge a ButtonEvent reports.
type ButtonState uint8

const (
	Pressed ButtonState = iota
	Released
)

// MoveEvent reports the pointer at a screen position in pixels.
type MoveEvent struct {
	Screen fieldmap.Vec
}

// ButtonEvent reports a button edge.
type ButtonEvent struct {
	Button Button
	State  ButtonState
}

// Batch is every pointer event that arrived since the previous step, each
// list in arrival order.
type Batch struct {
	Moves   []MoveEvent
	Buttons []ButtonEvent
}

// Empty reports whether the batch carries no events.
func (b Batch) Empty() bool {
	return len(b.Moves) == 0 && len(b.Buttons) == 0
}

// GrabKind says what a drag is currently editing.
type GrabKind uint8

const (
	GrabNone GrabKind = iota
	GrabPosition
	GrabRotation
)

func (k GrabKind) String() string {
	switch k {
	case GrabPosition:
		return "position"
	case GrabRotation:
		return "rotation"
	default:
		return "none"
	}
}

// Grab is the controller's drag target. ID is meaningless for GrabNone.
type Grab struct {
	Kind GrabKind
	ID   core.WaypointID
}

func (g Grab) String() string {
	if g.Kind == GrabNone {
		return "none"
	}
	return fmt.Sprintf("%s(%s)", g.Kind, g.ID)
}

// Active reports whether a drag is in progress.
func (g Grab) Active() bool {
	return g.Kind != GrabNone
}

// Cursor is the last known pointer position in field space. OnField is false
// when the pointer left the field rectangle; Pos then holds its last on-field
// value.
type Cursor struct {
	Pos     core.Position
	OnField bool
	Grab    Grab
}
