package core

import (
	"time"

	"github.com/google/uuid"
)

// Generation is the outcome of one trajectory request for one routine revision.
type Generation struct {
	Session  uuid.UUID     `json:"session"`
	Routine  int           `json:"routine"`
	Revision uint64        `json:"revision"`
	Request  Trajectory    `json:"request"`
	Polyline Polyline      `json:"polyline,omitempty"`
	Error    string        `json:"error,omitempty"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
}

// OK reports whether the request produced a polyline.
func (g Generation) OK() bool {
	return g.Error == ""
}
