package memory

import (
	"slices"
	"sync"

	"github.com/fieldpath/pathedit/internal/config"
	"github.com/fieldpath/pathedit/internal/storage"
	"github.com/fieldpath/pathedit/pkg/core"
	"github.com/google/uuid"
)

// RoutineRecord groups the generations recorded for one routine index
type RoutineRecord struct {
	Routine     int
	Generations []core.Generation
	Failures    int
}

// Latest returns the most recent generation.
func (r *RoutineRecord) Latest() (core.Generation, bool) {
	if len(r.Generations) == 0 {
		return core.Generation{}, false
	}
	return r.Generations[len(r.Generations)-1], true
}

// LastGood returns the most recent successful generation.
func (r *RoutineRecord) LastGood() (core.Generation, bool) {
	for i := len(r.Generations) - 1; i >= 0; i-- {
		if r.Generations[i].OK() {
			return r.Generations[i], true
		}
	}
	return core.Generation{}, false
}

type sessionRecord struct {
	session  core.Session
	routines map[int]*RoutineRecord
	count    int
}

// Backend keeps the journal in memory. Each routine holds at most cfg.Limit generations
// when the limit is positive.
type Backend struct {
	cfg      config.MemoryConfig
	sessions []*sessionRecord
	current  *sessionRecord
	mu       sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins a new session; any open one is implicitly ended.
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec := &sessionRecord{session: *s, routines: make(map[int]*RoutineRecord)}
	b.sessions = append(b.sessions, rec)
	b.current = rec
	return nil
}

// EndSession stops accepting generations for the current session.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = nil
	return nil
}

// RecordGeneration appends g under its routine.
func (b *Backend) RecordGeneration(g *core.Generation) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return storage.ErrNoSession
	}

	rec := b.current.routines[g.Routine]
	if rec == nil {
		rec = &RoutineRecord{Routine: g.Routine}
		b.current.routines[g.Routine] = rec
	}

	cp := *g
	cp.Polyline = g.Polyline.Clone()
	cp.Request.Points = slices.Clone(g.Request.Points)
	rec.Generations = append(rec.Generations, cp)
	if !cp.OK() {
		rec.Failures++
	}
	if b.cfg.Limit > 0 && len(rec.Generations) > b.cfg.Limit {
		rec.Generations = slices.Delete(rec.Generations, 0, len(rec.Generations)-b.cfg.Limit)
	}
	b.current.count++
	return nil
}

// Sessions returns every recorded session in start order.
func (b *Backend) Sessions() ([]core.Session, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.Session, len(b.sessions))
	for i, rec := range b.sessions {
		out[i] = rec.session
	}
	return out, nil
}

// Generations returns the kept generations of a session ordered by routine, then arrival.
func (b *Backend) Generations(session uuid.UUID) ([]core.Generation, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec := b.find(session)
	if rec == nil {
		return nil, nil
	}
	keys := make([]int, 0, len(rec.routines))
	for k := range rec.routines {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var out []core.Generation
	for _, k := range keys {
		out = append(out, rec.routines[k].Generations...)
	}
	return out, nil
}

// GetRoutine returns a copy of the current session's record for routine.
func (b *Backend) GetRoutine(routine int) (*RoutineRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.current == nil {
		return nil, false
	}
	rec, ok := b.current.routines[routine]
	if !ok {
		return nil, false
	}
	cp := *rec
	cp.Generations = slices.Clone(rec.Generations)
	return &cp, true
}

// Count returns the total number of generations recorded in the current session,
// including those evicted by the limit.
func (b *Backend) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.current == nil {
		return 0
	}
	return b.current.count
}

func (b *Backend) find(id uuid.UUID) *sessionRecord {
	for _, rec := range b.sessions {
		if rec.session.ID == id {
			return rec
		}
	}
	return nil
}
