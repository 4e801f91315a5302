package storage

import (
	"context"
	"sync/atomic"

	"github.com/fieldpath/pathedit/pkg/core"
	"github.com/rs/zerolog"
)

// Recorder adapts a Backend to the editor's generation sink. Write errors are logged and
// counted, never returned to the frame loop.
type Recorder struct {
	backend Backend
	log     zerolog.Logger
	failed  atomic.Uint64
	onFail  func()
}

// NewRecorder wraps b.
func NewRecorder(b Backend, log zerolog.Logger) *Recorder {
	return &Recorder{backend: b, log: log.With().Str("component", "journal").Logger()}
}

// Observe records g.
func (r *Recorder) Observe(_ context.Context, g core.Generation) {
	if err := r.backend.RecordGeneration(&g); err != nil {
		r.failed.Add(1)
		if r.onFail != nil {
			r.onFail()
		}
		r.log.Warn().Err(err).Int("routine", g.Routine).Uint64("revision", g.Revision).Msg("Failed to record generation")
	}
}

// OnFailure sets a callback run after each rejected record. Set it before the first Observe.
func (r *Recorder) OnFailure(f func()) {
	r.onFail = f
}

// Failed returns how many records were rejected by the backend.
func (r *Recorder) Failed() uint64 {
	return r.failed.Load()
}

// Backend returns the wrapped backend.
func (r *Recorder) Backend() Backend {
	return r.backend
}
