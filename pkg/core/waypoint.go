package core

import "fmt"

// Kind tags the variant held by a Waypoint slot.
type Kind uint8

const (
	// KindEmpty marks a soft-deleted slot kept so later indices stay stable.
	KindEmpty Kind = iota
	// KindTranslation is a bare position with no heading.
	KindTranslation
	// KindPose is a position with a heading; only path termini carry one.
	KindPose
)

// String returns the kind name for logs.
func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindTranslation:
		return "translation"
	case KindPose:
		return "pose"
	default:
		return "unknown"
	}
}

// Waypoint is an immutable tagged value. The zero value is an empty slot.
// Rotation is only meaningful when Kind is KindPose.
type Waypoint struct {
	Kind     Kind
	Position Position
	Rotation float64
}

// Translation builds a heading-less waypoint.
func Translation(p Position) Waypoint {
	return Waypoint{Kind: KindTranslation, Position: p}
}

// PoseWaypoint builds a waypoint that carries a heading.
func PoseWaypoint(p Position, rotation float64) Waypoint {
	return Waypoint{Kind: KindPose, Position: p, Rotation: rotation}
}

// Empty reports whether the slot holds no waypoint.
func (w Waypoint) Empty() bool {
	return w.Kind == KindEmpty
}

// IsPose reports whether the waypoint carries a heading.
func (w Waypoint) IsPose() bool {
	return w.Kind == KindPose
}

// Pose returns the waypoint as a pose. Translations report a zero heading.
func (w Waypoint) Pose() Pose {
	if w.Kind != KindPose {
		return Pose{Translation: w.Position}
	}
	return Pose{Translation: w.Position, Rotation: w.Rotation}
}

// WithPosition returns a copy moved to p, keeping kind and heading.
func (w Waypoint) WithPosition(p Position) Waypoint {
	w.Position = p
	return w
}

// WithRotation returns a copy with a new heading. Non-pose waypoints are returned unchanged.
func (w Waypoint) WithRotation(r float64) Waypoint {
	if w.Kind != KindPose {
		return w
	}
	w.Rotation = r
	return w
}

func (w Waypoint) String() string {
	switch w.Kind {
	case KindTranslation:
		return fmt.Sprintf("Translation(%.3g,%.3g)", w.Position.X, w.Position.Y)
	case KindPose:
		return fmt.Sprintf("Pose(%.3g,%.3g,%.3grad)", w.Position.X, w.Position.Y, w.Rotation)
	default:
		return "Empty"
	}
}

// WaypointID addresses a slot by position: routine index and slot index.
// IDs are positional, so any insertion or removal may make an ID point elsewhere
// or nowhere. Re-derive them from the store every frame.
type WaypointID struct {
	Routine int `json:"routine"`
	Slot    int `json:"slot"`
}

func (id WaypointID) String() string {
	return fmt.Sprintf("%d:%d", id.Routine, id.Slot)
}
