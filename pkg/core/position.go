package core

import (
	"math"

	geom "github.com/peterstace/simplefeatures/geom"
)

// Position is a point on the field in meters, origin at the field's lower-left corner.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pose is a field position plus a heading in radians, counter-clockwise from +X.
type Pose struct {
	Translation Position `json:"translation"`
	Rotation    float64  `json:"rotation"`
}

// Pos is shorthand for building a Position.
func Pos(x, y float64) Position {
	return Position{X: x, Y: y}
}

// NewPose builds a Pose.
func NewPose(p Position, rotation float64) Pose {
	return Pose{Translation: p, Rotation: rotation}
}

// XY converts the position to a simplefeatures vector.
func (p Position) XY() geom.XY {
	return geom.XY{X: p.X, Y: p.Y}
}

// Dist returns the Euclidean distance between two positions in meters.
func (p Position) Dist(o Position) float64 {
	return p.XY().Sub(o.XY()).Length()
}

// HeadingTo returns the angle of the vector from p to o.
func (p Position) HeadingTo(o Position) float64 {
	return math.Atan2(o.Y-p.Y, o.X-p.X)
}

// Offset returns the position moved along heading, scaled by rx on X and ry on Y.
// Pass the same value twice for an isotropic move.
func (p Position) Offset(heading, rx, ry float64) Position {
	return Position{
		X: p.X + math.Cos(heading)*rx,
		Y: p.Y + math.Sin(heading)*ry,
	}
}
