// Package marker keeps the on-screen handles for waypoints in step with the
// store. Markers hold positional ids, so every frame reconciles them against
// the store and retires the ones whose slot no longer exists.
package marker

import (
	"cmp"
	"math"
	"slices"
	"sync"

	"github.com/fieldpath/pathedit/internal/fieldmap"
	"github.com/fieldpath/pathedit/pkg/core"
)

// Kind distinguishes the two handles every slot owns.
type Kind uint8

const (
	KindWaypoint Kind = iota
	KindAnchor
)

func (k Kind) String() string {
	if k == KindAnchor {
		return "anchor"
	}
	return "waypoint"
}

// Key identifies a marker.
type Key struct {
	Kind Kind
	ID   core.WaypointID
}

// Style selects how a visible marker is drawn.
type Style uint8

const (
	StyleStart Style = iota
	StyleWaypoint
	StyleAnchor
)

// Placement is where and whether to draw one marker this frame.
type Placement struct {
	Key     Key
	Screen  fieldmap.Vec
	Heading float64
	Visible bool
	Style   Style
}

// Store is the read side of the waypoint store the registry needs.
type Store interface {
	Len() int
	Active() int
	SlotCount(i int) int
	Slot(id core.WaypointID) (core.Waypoint, bool)
}

// Registry maps marker keys to the serial they were spawned with. A new serial
// for a key means the host should treat it as a new handle.
type Registry struct {
	mu      sync.RWMutex
	markers map[Key]uint64
	serial  uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		markers: make(map[Key]uint64),
	}
}

// Get returns the spawn serial for a key.
func (r *Registry) Get(k Key) (uint64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.markers[k]
	return s, ok
}

// Len returns the number of live markers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.markers)
}

// Reset drops every marker.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markers = make(map[Key]uint64)
}

// Sync spawns a waypoint and an anchor marker for every slot that lacks one and
// returns how many markers it spawned.
func (r *Registry) Sync(s Store) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	spawned := 0
	for i := 0; i < s.Len(); i++ {
		for slot := 0; slot < s.SlotCount(i); slot++ {
			id := core.WaypointID{Routine: i, Slot: slot}
			for _, k := range []Key{{KindWaypoint, id}, {KindAnchor, id}} {
				if _, ok := r.markers[k]; ok {
					continue
				}
				r.serial++
				r.markers[k] = r.serial
				spawned++
			}
		}
	}
	return spawned
}

// Reconcile retires markers whose routine or slot index is out of range and
// returns how many it retired.
func (r *Registry) Reconcile(s Store) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	retired := 0
	for k := range r.markers {
		if _, ok := s.Slot(k.ID); ok {
			continue
		}
		delete(r.markers, k)
		retired++
	}
	return retired
}

// Placements lays out every live marker for drawing, ordered by routine, slot
// and kind. Only markers of the active routine are visible; empty slots hide
// both handles and translations hide their anchor. The anchor orbits its pose
// at revolution pixels.
func (r *Registry) Placements(s Store, m fieldmap.Mapper, revolution float64) []Placement {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Placement, 0, len(r.markers))
	for k := range r.markers {
		out = append(out, place(k, s, m, revolution))
	}
	slices.SortFunc(out, func(a, b Placement) int {
		return cmp.Or(
			cmp.Compare(a.Key.ID.Routine, b.Key.ID.Routine),
			cmp.Compare(a.Key.ID.Slot, b.Key.ID.Slot),
			cmp.Compare(a.Key.Kind, b.Key.Kind),
		)
	})
	return out
}

func place(k Key, s Store, m fieldmap.Mapper, revolution float64) Placement {
	p := Placement{Key: k, Style: StyleWaypoint}
	if k.Kind == KindAnchor {
		p.Style = StyleAnchor
	} else if k.ID.Slot == 0 {
		p.Style = StyleStart
	}
	w, ok := s.Slot(k.ID)
	if !ok || w.Empty() || s.Len() == 0 || k.ID.Routine != s.Active() {
		return p
	}
	pose := w.Pose()
	p.Heading = pose.Rotation
	p.Screen = m.ToScreen(pose.Translation)
	switch k.Kind {
	case KindWaypoint:
		p.Visible = true
	case KindAnchor:
		if !w.IsPose() {
			return p
		}
		p.Screen.X += math.Cos(pose.Rotation) * revolution
		p.Screen.Y += math.Sin(pose.Rotation) * revolution
		p.Visible = true
	}
	return p
}
