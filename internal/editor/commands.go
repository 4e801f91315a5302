package editor

import (
	"github.com/fieldpath/pathedit/internal/dispatcher"
	"github.com/fieldpath/pathedit/internal/interaction"
	"github.com/fieldpath/pathedit/pkg/core"
)

// Editing command names.
const (
	CmdAddWaypoint    = "waypoint.add"
	CmdRemoveWaypoint = "waypoint.remove"
	CmdDeleteWaypoint = "waypoint.delete"
	CmdNextRoutine    = "routine.next"
	CmdPrevRoutine    = "routine.prev"
	CmdAddRoutine     = "routine.add"
	CmdRemoveRoutine  = "routine.remove"

	cmdGenerate = "trajectory.generate"
)

// Command builds a command addressed at the active routine. A waypoint.delete
// built this way targets whatever the cursor hovers when the command runs.
func Command(name string) dispatcher.Command {
	return dispatcher.Command{Name: name, Routine: -1}
}

// DeleteCommand builds a waypoint.delete command for id.
func DeleteCommand(id core.WaypointID) dispatcher.Command {
	return dispatcher.Command{Name: CmdDeleteWaypoint, Routine: id.Routine, Slot: id.Slot}
}

func (s *Session) registerCommands() {
	s.disp.Register(CmdAddWaypoint, s.addWaypoint, dispatcher.Logged())
	s.disp.Register(CmdRemoveWaypoint, s.removeWaypoint, dispatcher.Logged())
	s.disp.Register(CmdDeleteWaypoint, s.deleteWaypoint, dispatcher.Logged())
	s.disp.Register(CmdNextRoutine, s.cycle(1), dispatcher.Logged())
	s.disp.Register(CmdPrevRoutine, s.cycle(-1), dispatcher.Logged())
	s.disp.Register(CmdAddRoutine, s.addRoutine, dispatcher.Logged())
	s.disp.Register(CmdRemoveRoutine, s.removeRoutine, dispatcher.Logged())
}

// target resolves the routine a command addresses; negative means active.
func (s *Session) target(c dispatcher.Command) (int, bool) {
	if s.store.Len() == 0 {
		return 0, false
	}
	i := c.Routine
	if i < 0 {
		i = s.store.Active()
	}
	return i, i < s.store.Len()
}

func (s *Session) addWaypoint(c dispatcher.Command) (any, error) {
	i, ok := s.target(c)
	if !ok && s.store.Len() > 0 {
		return false, nil
	}
	s.store.AddWaypoint(core.PoseWaypoint(s.store.Defaults().NewWaypoint, 0), i)
	return true, nil
}

func (s *Session) removeWaypoint(c dispatcher.Command) (any, error) {
	i, ok := s.target(c)
	if !ok {
		return false, nil
	}
	return s.store.RemoveLastWaypoint(i), nil
}

func (s *Session) deleteWaypoint(c dispatcher.Command) (any, error) {
	id := core.WaypointID{Routine: c.Routine, Slot: c.Slot}
	if c.Routine < 0 {
		g, ok := s.Hover()
		if !ok || g.Kind != interaction.GrabPosition {
			return false, nil
		}
		id = g.ID
	}
	return s.store.SoftDelete(id), nil
}

func (s *Session) cycle(dir int) dispatcher.HandlerFunc {
	return func(dispatcher.Command) (any, error) {
		s.store.CycleActiveRoutine(dir)
		return s.store.Active(), nil
	}
}

func (s *Session) addRoutine(dispatcher.Command) (any, error) {
	return s.store.AddRoutine(), nil
}

func (s *Session) removeRoutine(c dispatcher.Command) (any, error) {
	i, ok := s.target(c)
	if !ok || !s.store.RemoveRoutine(i) {
		return false, nil
	}
	s.cache.Retire(i)
	if g := s.ctrl.Grab(); g.Active() && g.ID.Routine >= i {
		s.ctrl.Cancel()
	}
	return true, nil
}
