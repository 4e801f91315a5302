package trajectory

import (
	"sync"
	"time"

	"github.com/fieldpath/pathedit/pkg/core"
)

// Status describes how far a cache entry can be trusted.
type Status uint8

const (
	// StatusEmpty means no polyline was ever generated for the routine.
	StatusEmpty Status = iota
	// StatusFresh means the polyline matches the routine revision it was built from.
	StatusFresh
	// StatusPending means a request for a newer revision is in flight.
	StatusPending
	// StatusStale means the last request failed; Polyline is the last good one.
	StatusStale
)

func (s Status) String() string {
	switch s {
	case StatusFresh:
		return "fresh"
	case StatusPending:
		return "pending"
	case StatusStale:
		return "stale"
	default:
		return "empty"
	}
}

// Entry is the cached trajectory of one routine.
type Entry struct {
	Polyline  core.Polyline
	Revision  uint64
	Requested uint64
	Status    Status
	Err       error
	UpdatedAt time.Time

	settled Status
}

// Ticket identifies one outstanding request. A ticket issued before a routine
// was retired no longer matches any entry and its result is dropped.
type Ticket struct {
	Routine  int
	Revision uint64
	epoch    uint64
}

// Cache holds one Entry per routine index. Reads return copies so a renderer
// can hold them across frames.
type Cache struct {
	mu      sync.RWMutex
	entries []Entry
	epoch   uint64
	now     func() time.Time
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{now: time.Now}
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Get returns the entry for routine i. Missing entries read as StatusEmpty.
func (c *Cache) Get(i int) Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i < 0 || i >= len(c.entries) {
		return Entry{}
	}
	e := c.entries[i]
	e.Polyline = e.Polyline.Clone()
	return e
}

// All returns a copy of every entry.
func (c *Cache) All() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, len(c.entries))
	for i, e := range c.entries {
		e.Polyline = e.Polyline.Clone()
		out[i] = e
	}
	return out
}

// Stale reports whether routine i needs a request for revision rev, i.e. no
// result or request for that revision exists yet.
func (c *Cache) Stale(i int, rev uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i >= len(c.entries) {
		return true
	}
	e := c.entries[i]
	return e.Revision != rev && e.Requested != rev
}

// MarkPending records that a request for rev was issued.
func (c *Cache) MarkPending(i int, rev uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markPendingLocked(i, rev)
}

func (c *Cache) markPendingLocked(i int, rev uint64) {
	e := c.grow(i)
	e.Requested = rev
	if e.Status != StatusPending {
		e.settled = e.Status
	}
	if e.Status != StatusEmpty {
		e.Status = StatusPending
	}
}

// Request marks rev pending and returns the ticket to complete it with.
func (c *Cache) Request(i int, rev uint64) Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markPendingLocked(i, rev)
	return Ticket{Routine: i, Revision: rev, epoch: c.epoch}
}

// Complete stores the result of a ticket. It reports false when the result was
// dropped as outdated.
func (c *Cache) Complete(t Ticket, p core.Polyline) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.epoch != c.epoch {
		return false
	}
	return c.storeLocked(t.Routine, t.Revision, p)
}

// Release withdraws a ticket whose request was never sent, so the revision is
// requested again on the next pass.
func (c *Cache) Release(t Ticket) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.epoch != c.epoch || t.Routine >= len(c.entries) {
		return
	}
	e := &c.entries[t.Routine]
	if e.Requested != t.Revision {
		return
	}
	e.Requested = 0
	if e.Status == StatusPending {
		e.Status = e.settled
	}
}

// Abort records the failure of a ticket.
func (c *Cache) Abort(t Ticket, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.epoch != c.epoch {
		return false
	}
	return c.failLocked(t.Routine, t.Revision, err)
}

// Store records a successful result for rev. Results older than what the
// entry already holds are dropped and Store reports false.
func (c *Cache) Store(i int, rev uint64, p core.Polyline) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.storeLocked(i, rev, p)
}

func (c *Cache) storeLocked(i int, rev uint64, p core.Polyline) bool {
	e := c.grow(i)
	if rev < e.Revision {
		return false
	}
	e.Polyline = p.Clone()
	e.Revision = rev
	e.Status = StatusFresh
	e.Err = nil
	e.UpdatedAt = c.now()
	if e.Requested > rev {
		e.settled = StatusFresh
		e.Status = StatusPending
	}
	return true
}

// Fail records a failed request for rev. The previous polyline is kept. The
// failed revision counts as handled so it is not retried until the routine
// changes again.
func (c *Cache) Fail(i int, rev uint64, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failLocked(i, rev, err)
}

func (c *Cache) failLocked(i int, rev uint64, err error) bool {
	e := c.grow(i)
	if rev < e.Revision {
		return false
	}
	e.Revision = rev
	e.Status = StatusStale
	e.Err = err
	e.UpdatedAt = c.now()
	if e.Requested > rev {
		e.settled = StatusStale
		e.Status = StatusPending
	}
	return true
}

// Retire splices out routine i so later entries shift down with their
// routines. Outstanding tickets are invalidated and their revisions become
// stale again so they are re-requested.
func (c *Cache) Retire(i int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.entries) {
		return
	}
	c.entries = append(c.entries[:i], c.entries[i+1:]...)
	c.invalidateLocked()
}

// Truncate drops entries at index n and above.
func (c *Cache) Truncate(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < len(c.entries) {
		clear(c.entries[n:])
		c.entries = c.entries[:n]
		c.invalidateLocked()
	}
}

func (c *Cache) invalidateLocked() {
	c.epoch++
	for i := range c.entries {
		e := &c.entries[i]
		if e.Status == StatusPending {
			e.Status = e.settled
		}
		e.Requested = 0
	}
}

func (c *Cache) grow(i int) *Entry {
	for len(c.entries) <= i {
		c.entries = append(c.entries, Entry{})
	}
	return &c.entries[i]
}
