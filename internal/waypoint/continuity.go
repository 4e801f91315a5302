package waypoint

import (
	"errors"
	"fmt"

	"github.com/fieldpath/pathedit/pkg/core"
)

// ErrContinuity is returned when a routine breaks the terminus rules.
var ErrContinuity = errors.New("routine continuity violated")

// Demote strips the heading from a terminus that is about to become interior.
func Demote(w core.Waypoint) core.Waypoint {
	if w.Kind == core.KindPose {
		return core.Translation(w.Position)
	}
	return w
}

// Promote gives a zero heading to a slot that has become a terminus.
// Existing poses keep their heading.
func Promote(w core.Waypoint) core.Waypoint {
	if w.Kind == core.KindTranslation {
		return core.PoseWaypoint(w.Position, 0)
	}
	return w
}

// CheckContinuity verifies that the first and last populated slots are poses and
// every populated slot between them is a translation. A routine holding a single
// waypoint only needs that waypoint to be a pose.
func CheckContinuity(slots []core.Waypoint) error {
	first, last := bounds(slots)
	if first < 0 {
		return nil
	}
	for i := first; i <= last; i++ {
		w := slots[i]
		if w.Empty() {
			continue
		}
		terminus := i == first || i == last
		switch {
		case terminus && !w.IsPose():
			return fmt.Errorf("%w: slot %d is a terminus but holds %s", ErrContinuity, i, w.Kind)
		case !terminus && w.IsPose():
			return fmt.Errorf("%w: interior slot %d holds a pose", ErrContinuity, i)
		}
	}
	return nil
}

// bounds returns the first and last populated slot, or -1, -1 when none are.
func bounds(slots []core.Waypoint) (first, last int) {
	first, last = -1, -1
	for i, w := range slots {
		if w.Empty() {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	return first, last
}

// lastPopulated returns the index of the last populated slot, or -1.
func lastPopulated(slots []core.Waypoint) int {
	_, last := bounds(slots)
	return last
}

// populated counts non-empty slots.
func populated(slots []core.Waypoint) int {
	n := 0
	for _, w := range slots {
		if !w.Empty() {
			n++
		}
	}
	return n
}

// Split turns a routine into the solver's (start, interior, end) form.
// It reports false when fewer than two waypoints are populated.
func Split(slots []core.Waypoint) (core.Trajectory, bool) {
	first, last := bounds(slots)
	if first < 0 || first == last {
		return core.Trajectory{}, false
	}
	t := core.Trajectory{
		Start:  slots[first].Pose(),
		End:    slots[last].Pose(),
		Points: make([]core.Position, 0, last-first-1),
	}
	for _, w := range slots[first+1 : last] {
		if w.Empty() {
			continue
		}
		t.Points = append(t.Points, w.Position)
	}
	return t, true
}
