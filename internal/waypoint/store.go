// Package waypoint owns the routines being edited and enforces the rule that
// only the two ends of a routine carry a heading.
package waypoint

import (
	"github.com/fieldpath/pathedit/pkg/core"
)

// Defaults holds the literal field positions used when the editor has to
// invent a waypoint.
type Defaults struct {
	// Start is used as the first pose of a routine when there is no previous
	// routine to continue from.
	Start core.Position `mapstructure:"start"`
	// SeedEnd is the end pose of each routine created by Seed.
	SeedEnd core.Position `mapstructure:"seedEnd"`
	// NewWaypoint is where AddWaypoint commands place the new terminus.
	NewWaypoint core.Position `mapstructure:"newWaypoint"`
	// NewRoutineEnd is the end pose of a routine created by AddRoutine.
	NewRoutineEnd core.Position `mapstructure:"newRoutineEnd"`
}

// DefaultPositions returns the stock editor positions in meters.
func DefaultPositions() Defaults {
	return Defaults{
		Start:         core.Pos(1, 1),
		SeedEnd:       core.Pos(6, 1),
		NewWaypoint:   core.Pos(1, 1),
		NewRoutineEnd: core.Pos(2, 1),
	}
}

type routine struct {
	slots    []core.Waypoint
	revision uint64
}

// Store is the single source of truth for waypoint existence, position and
// heading. It is not safe for concurrent use; the editing loop owns it.
//
// Indexing a routine that does not exist is a caller bug and panics like any
// out-of-range slice access. Slot lookups through Resolve are bounds-checked.
type Store struct {
	routines []*routine
	active   int
	clock    uint64
	defaults Defaults
}

// NewStore returns an empty store.
func NewStore(d Defaults) *Store {
	return &Store{defaults: d}
}

// Seed appends n routines of [Pose(Start), Pose(SeedEnd)].
func (s *Store) Seed(n int) {
	for i := 0; i < n; i++ {
		idx := len(s.routines)
		s.append(idx, core.PoseWaypoint(s.defaults.Start, 0))
		s.append(idx, core.PoseWaypoint(s.defaults.SeedEnd, 0))
	}
}

// Defaults returns the literal positions the store was built with.
func (s *Store) Defaults() Defaults {
	return s.defaults
}

// Len returns the number of routines.
func (s *Store) Len() int {
	return len(s.routines)
}

// Active returns the active routine index. It is meaningless when Len is 0.
func (s *Store) Active() int {
	return s.active
}

// IsActive reports whether id belongs to the active routine.
func (s *Store) IsActive(id core.WaypointID) bool {
	return len(s.routines) > 0 && id.Routine == s.active
}

// Routine returns a copy of the slots of routine i.
func (s *Store) Routine(i int) []core.Waypoint {
	out := make([]core.Waypoint, len(s.routines[i].slots))
	copy(out, s.routines[i].slots)
	return out
}

// Routines returns a copy of every routine.
func (s *Store) Routines() [][]core.Waypoint {
	out := make([][]core.Waypoint, len(s.routines))
	for i := range s.routines {
		out[i] = s.Routine(i)
	}
	return out
}

// SlotCount returns the number of slots, empty ones included, in routine i.
func (s *Store) SlotCount(i int) int {
	return len(s.routines[i].slots)
}

// Revision returns a counter that changes every time routine i is mutated.
// Revisions are unique across the store, so a routine created at a reused
// index never shares a revision with its predecessor.
func (s *Store) Revision(i int) uint64 {
	return s.routines[i].revision
}

// Slot returns the raw slot at id, which may be empty. It reports false when
// the id is out of range.
func (s *Store) Slot(id core.WaypointID) (core.Waypoint, bool) {
	if id.Routine < 0 || id.Routine >= len(s.routines) {
		return core.Waypoint{}, false
	}
	slots := s.routines[id.Routine].slots
	if id.Slot < 0 || id.Slot >= len(slots) {
		return core.Waypoint{}, false
	}
	return slots[id.Slot], true
}

// Resolve returns the waypoint at id if the routine and slot exist and the
// slot is populated.
func (s *Store) Resolve(id core.WaypointID) (core.Waypoint, bool) {
	w, ok := s.Slot(id)
	if !ok || w.Empty() {
		return core.Waypoint{}, false
	}
	return w, true
}

// Set replaces the waypoint at id. The replacement must have the same kind as
// the slot it replaces so that a drag can never break continuity. It reports
// whether the slot was written.
func (s *Store) Set(id core.WaypointID, w core.Waypoint) bool {
	cur, ok := s.Resolve(id)
	if !ok || cur.Kind != w.Kind {
		return false
	}
	if cur == w {
		return true
	}
	s.routines[id.Routine].slots[id.Slot] = w
	s.touch(id.Routine)
	return true
}

// AddWaypoint appends w to routine i, creating the routine when i == Len().
// The previous end of the routine loses its heading since it is no longer a
// terminus, and the appended waypoint becomes the new end pose. A waypoint added
// to an empty routine is stored exactly as given.
func (s *Store) AddWaypoint(w core.Waypoint, i int) {
	if i == len(s.routines) {
		s.routines = append(s.routines, &routine{})
	}
	r := s.routines[i]
	if populated(r.slots) == 0 {
		s.append(i, w)
		return
	}
	// A lone waypoint is both start and end; it keeps its heading as the start.
	if populated(r.slots) > 1 {
		last := lastPopulated(r.slots)
		r.slots[last] = Demote(r.slots[last])
	}
	s.append(i, Promote(w))
}

// RemoveLastWaypoint pops the end of routine i and promotes the new end to a
// pose with zero heading. A routine always keeps its start and end, so the call
// is a no-op returning false when two or fewer waypoints remain.
func (s *Store) RemoveLastWaypoint(i int) bool {
	r := s.routines[i]
	if populated(r.slots) <= 2 {
		return false
	}
	r.slots = trimEmpty(r.slots[:lastPopulated(r.slots)])
	last := len(r.slots) - 1
	r.slots[last] = Promote(r.slots[last])
	s.touch(i)
	return true
}

// AddRoutine creates a routine continuing from the end of the last one and
// makes it active. It returns the new routine's index.
func (s *Store) AddRoutine() int {
	start := s.defaults.Start
	if n := len(s.routines); n > 0 {
		prev := s.routines[n-1].slots
		if last := lastPopulated(prev); last >= 0 {
			start = prev[last].Position
		}
	}
	idx := len(s.routines)
	s.append(idx, core.PoseWaypoint(start, 0))
	s.append(idx, core.PoseWaypoint(s.defaults.NewRoutineEnd, 0))
	s.active = idx
	return idx
}

// RemoveRoutine deletes routine i. The last remaining routine cannot be
// removed. The active index is shifted so that it keeps pointing at the same
// routine, or at the nearest one if the active routine was removed.
func (s *Store) RemoveRoutine(i int) bool {
	if len(s.routines) <= 1 || i < 0 || i >= len(s.routines) {
		return false
	}
	s.routines = append(s.routines[:i], s.routines[i+1:]...)
	if s.active > i || s.active >= len(s.routines) {
		s.active--
	}
	return true
}

// CycleActiveRoutine moves the active index by the sign of dir, wrapping in both
// directions. It does nothing when there are no routines or dir is zero.
func (s *Store) CycleActiveRoutine(dir int) {
	n := len(s.routines)
	if n == 0 || dir == 0 {
		return
	}
	step := 1
	if dir < 0 {
		step = -1
	}
	s.active = ((s.active+step)%n + n) % n
}

// SetActive selects routine i if it exists.
func (s *Store) SetActive(i int) bool {
	if i < 0 || i >= len(s.routines) {
		return false
	}
	s.active = i
	return true
}

// SoftDelete empties an interior slot, leaving a stub so the indices of later
// slots stay valid until Compact runs. Termini cannot be deleted.
func (s *Store) SoftDelete(id core.WaypointID) bool {
	if _, ok := s.Resolve(id); !ok {
		return false
	}
	slots := s.routines[id.Routine].slots
	first, last := bounds(slots)
	if id.Slot == first || id.Slot == last {
		return false
	}
	slots[id.Slot] = core.Waypoint{}
	s.touch(id.Routine)
	return true
}

// Compact drops empty slots from routine i. It reports whether any slot moved,
// in which case every WaypointID into the routine past the first stub is stale.
func (s *Store) Compact(i int) bool {
	r := s.routines[i]
	out := r.slots[:0]
	for _, w := range r.slots {
		if !w.Empty() {
			out = append(out, w)
		}
	}
	if len(out) == len(r.slots) {
		return false
	}
	clear(r.slots[len(out):])
	r.slots = out
	s.touch(i)
	return true
}

// Split returns routine i in the solver's (start, interior, end) form.
func (s *Store) Split(i int) (core.Trajectory, bool) {
	return Split(s.routines[i].slots)
}

// Check runs CheckContinuity against routine i.
func (s *Store) Check(i int) error {
	return CheckContinuity(s.routines[i].slots)
}

// append adds a slot without applying any continuity rule. Used for seeding
// where the caller provides both termini.
func (s *Store) append(i int, w core.Waypoint) {
	for len(s.routines) <= i {
		s.routines = append(s.routines, &routine{})
	}
	s.routines[i].slots = append(s.routines[i].slots, w)
	s.touch(i)
}

func (s *Store) touch(i int) {
	s.clock++
	s.routines[i].revision = s.clock
}

func trimEmpty(slots []core.Waypoint) []core.Waypoint {
	for len(slots) > 0 && slots[len(slots)-1].Empty() {
		slots = slots[:len(slots)-1]
	}
	return slots
}
