// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"
	"time"

	"github.com/fieldpath/pathedit/internal/model"
	"github.com/fieldpath/pathedit/pkg/core"
	"github.com/google/uuid"
	geom "github.com/peterstace/simplefeatures/geom"
)

// pointToPosition converts a PostGIS point back to a field position.
func pointToPosition(p geom.Point) core.Position {
	c, ok := p.Coordinates()
	if !ok {
		return core.Position{}
	}
	return core.Pos(c.X, c.Y)
}

// lineStringToPolyline converts a PostGIS line back to a polyline.
func lineStringToPolyline(ls geom.LineString) core.Polyline {
	seq := ls.Coordinates()
	n := seq.Length()
	if n == 0 {
		return nil
	}
	out := make(core.Polyline, n)
	for i := 0; i < n; i++ {
		xy := seq.GetXY(i)
		out[i] = core.Pos(xy.X, xy.Y)
	}
	return out
}

// SessionToCore converts a GORM Session to a core.Session.
func SessionToCore(m model.Session) core.Session {
	id, err := uuid.Parse(m.UUID)
	if err != nil {
		id = uuid.Nil
	}
	s := core.Session{
		ID:          id,
		Mode:        m.Mode,
		SolverAddr:  m.SolverAddr,
		FieldWidth:  m.FieldWidth,
		FieldHeight: m.FieldHeight,
		Routines:    m.Routines,
		StartTime:   m.StartTime,
	}
	if m.EndTime != nil {
		s.EndTime = *m.EndTime
	}
	return s
}

// GenerationToCore converts a GORM Generation to a core.Generation. The journal does not
// keep request waypoints, so only the termini headings of Request are restored.
func GenerationToCore(m model.Generation, session uuid.UUID) core.Generation {
	g := core.Generation{
		Session:  session,
		Routine:  m.Routine,
		Revision: m.Revision,
		Error:    m.Error,
		Started:  m.Time,
		Duration: time.Duration(m.DurationMs * float64(time.Millisecond)),
	}
	g.Request.Start.Rotation = m.StartHeading
	g.Request.End.Rotation = m.EndHeading
	if len(m.Polyline) > 0 {
		var pl core.Polyline
		if err := json.Unmarshal(m.Polyline, &pl); err == nil && len(pl) > 0 {
			g.Polyline = pl
		}
	}
	return g
}

// GenerationPathToCore extracts the polyline and its endpoints from a geometry row.
func GenerationPathToCore(m model.GenerationPath) (start, end core.Position, path core.Polyline) {
	return pointToPosition(m.Start), pointToPosition(m.End), lineStringToPolyline(m.Path)
}
