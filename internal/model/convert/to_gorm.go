package convert

import (
	"encoding/json"

	"github.com/fieldpath/pathedit/internal/model"
	"github.com/fieldpath/pathedit/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

// positionToPoint converts a field position to a PostGIS point.
func positionToPoint(p core.Position) geom.Point {
	return geom.NewPoint(geom.Coordinates{XY: geom.XY{X: p.X, Y: p.Y}, Type: geom.DimXY})
}

// polylineToJSON encodes a polyline for the JSON column. A nil polyline encodes as an empty array.
func polylineToJSON(p core.Polyline) datatypes.JSON {
	if len(p) == 0 {
		return datatypes.JSON("[]")
	}
	data, _ := json.Marshal(p)
	return datatypes.JSON(data)
}

// CoreToSession converts a core.Session to the GORM model. ID is left for the database.
func CoreToSession(s core.Session) model.Session {
	m := model.Session{
		UUID:        s.ID.String(),
		Mode:        s.Mode,
		SolverAddr:  s.SolverAddr,
		FieldWidth:  s.FieldWidth,
		FieldHeight: s.FieldHeight,
		Routines:    s.Routines,
		StartTime:   s.StartTime,
	}
	if s.Ended() {
		end := s.EndTime
		m.EndTime = &end
	}
	return m
}

// CoreToGeneration converts a generation record. sessionID is the database ID of the
// owning session row.
func CoreToGeneration(g core.Generation, sessionID uint) model.Generation {
	return model.Generation{
		SessionID:      sessionID,
		Time:           g.Started,
		Routine:        g.Routine,
		Revision:       g.Revision,
		InteriorPoints: len(g.Request.Points),
		StartHeading:   g.Request.Start.Rotation,
		EndHeading:     g.Request.End.Rotation,
		PolylinePoints: len(g.Polyline),
		Length:         g.Polyline.Length(),
		DurationMs:     float64(g.Duration.Microseconds()) / 1000,
		Success:        g.OK(),
		Error:          g.Error,
		Polyline:       polylineToJSON(g.Polyline),
	}
}

// CoreToGenerationPath builds the geometry row for a successful generation.
// Polylines with fewer than two points have no line geometry and report false.
func CoreToGenerationPath(g core.Generation) (model.GenerationPath, bool) {
	if !g.OK() || len(g.Polyline) < 2 {
		return model.GenerationPath{}, false
	}
	return model.GenerationPath{
		Start: positionToPoint(g.Polyline[0]),
		End:   positionToPoint(g.Polyline[len(g.Polyline)-1]),
		Path:  g.Polyline.LineString(),
	}, true
}
