package storage

import (
	"errors"

	"github.com/fieldpath/pathedit/pkg/core"
	"github.com/google/uuid"
)

// ErrNoSession is returned when a generation is recorded before StartSession.
var ErrNoSession = errors.New("storage: no session started")

// Backend is the interface all journal implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(s *core.Session) error
	EndSession() error

	RecordGeneration(g *core.Generation) error
}

// Reader is implemented by backends that can list what they recorded.
type Reader interface {
	Sessions() ([]core.Session, error)
	Generations(session uuid.UUID) ([]core.Generation, error)
}

// Flusher is implemented by backends that buffer writes.
type Flusher interface {
	Flush() error
}
