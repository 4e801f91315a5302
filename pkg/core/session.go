package core

import (
	"time"

	"github.com/google/uuid"
)

// Session describes one editor run. Journal backends key generation records by it.
type Session struct {
	ID          uuid.UUID `json:"id"`
	Mode        string    `json:"mode"`
	SolverAddr  string    `json:"solverAddr"`
	FieldWidth  float64   `json:"fieldWidth"`
	FieldHeight float64   `json:"fieldHeight"`
	Routines    int       `json:"routines"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime,omitzero"`
}

// Ended reports whether EndTime has been stamped.
func (s Session) Ended() bool {
	return !s.EndTime.IsZero()
}
