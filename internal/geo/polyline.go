package geo

import (
	"encoding/json"
	"fmt"

	"github.com/fieldpath/pathedit/pkg/core"
)

// ParsePoints parses a JSON array of coordinates into field positions.
// Input format: "[[x1,y1],[x2,y2],...]". An empty string yields no points.
func ParsePoints(input string) ([]core.Position, error) {
	if input == "" {
		return nil, nil
	}
	var coords [][]float64
	if err := json.Unmarshal([]byte(input), &coords); err != nil {
		return nil, fmt.Errorf("failed to parse points JSON: %w", err)
	}

	points := make([]core.Position, len(coords))
	for i, coord := range coords {
		if len(coord) != 2 {
			return nil, fmt.Errorf("coordinate %d: want 2 values, got %d", i, len(coord))
		}
		points[i] = core.Pos(coord[0], coord[1])
	}
	if !Finite(points...) {
		return nil, ErrInvalidCoordinates
	}
	return points, nil
}

// Sample walks path as straight segments and emits samples evenly spaced
// points per segment, segment ends included. The first point is always kept.
// A path of one point yields that point; an empty path yields an empty polyline.
func Sample(path []core.Position, samples int) core.Polyline {
	if samples < 1 {
		samples = 1
	}
	out := make(core.Polyline, 0, 1+max(len(path)-1, 0)*samples)
	if len(path) == 0 {
		return out
	}

	out = append(out, path[0])
	for i := 1; i < len(path); i++ {
		a, b := path[i-1].XY(), path[i].XY()
		step := b.Sub(a)
		for j := 1; j < samples; j++ {
			p := a.Add(step.Scale(float64(j) / float64(samples)))
			out = append(out, core.Pos(p.X, p.Y))
		}
		out = append(out, path[i])
	}
	return out
}
