// Package geo parses field coordinates from text and samples straight paths.
package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/fieldpath/pathedit/pkg/core"
)

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

func parseFloats(coords string) ([]float64, error) {
	parts := strings.Split(coords, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, ErrInvalidCoordinates
		}
		out = append(out, v)
	}
	return out, nil
}

// PositionFromString parses "x,y" in meters.
func PositionFromString(coords string) (core.Position, error) {
	v, err := parseFloats(coords)
	if err != nil {
		return core.Position{}, err
	}
	if len(v) != 2 {
		return core.Position{}, ErrInvalidCoordinates
	}
	return core.Pos(v[0], v[1]), nil
}

// PoseFromString parses "x,y" or "x,y,heading" with the heading in radians.
func PoseFromString(coords string) (core.Pose, error) {
	v, err := parseFloats(coords)
	if err != nil {
		return core.Pose{}, err
	}
	if len(v) < 2 || len(v) > 3 {
		return core.Pose{}, ErrInvalidCoordinates
	}
	var heading float64
	if len(v) == 3 {
		heading = v[2]
	}
	return core.NewPose(core.Pos(v[0], v[1]), heading), nil
}

// Finite reports whether every coordinate of the positions is a real number.
func Finite(points ...core.Position) bool {
	for _, p := range points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return false
		}
	}
	return true
}
