package core

import (
	geom "github.com/peterstace/simplefeatures/geom"
)

// Trajectory is the split form of a routine sent to the solver:
// start pose, interior positions, end pose.
type Trajectory struct {
	Start  Pose       `json:"start"`
	Points []Position `json:"points"`
	End    Pose       `json:"end"`
}

// Polyline is the ordered list of field positions returned by the solver.
type Polyline []Position

// LineString converts the polyline to a simplefeatures geometry.
func (p Polyline) LineString() geom.LineString {
	flat := make([]float64, 0, len(p)*2)
	for _, pos := range p {
		flat = append(flat, pos.X, pos.Y)
	}
	return geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
}

// Length returns the path length in meters. Fewer than two points has length zero.
func (p Polyline) Length() float64 {
	if len(p) < 2 {
		return 0
	}
	return p.LineString().Length()
}

// Clone returns an independent copy.
func (p Polyline) Clone() Polyline {
	if p == nil {
		return nil
	}
	out := make(Polyline, len(p))
	copy(out, p)
	return out
}
