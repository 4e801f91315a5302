package term

import (
	"github.com/fieldpath/pathedit/internal/dispatcher"
	"github.com/fieldpath/pathedit/internal/editor"
	"github.com/fieldpath/pathedit/internal/robot"
	"github.com/gdamore/tcell/v2"
)

// KeyHelp is shown in the side panel.
var KeyHelp = []string{
	"a      add waypoint",
	"x      remove last waypoint",
	"d      delete hovered waypoint",
	"tab/n  next routine",
	"p      previous routine",
	"r      add routine",
	"R      remove routine",
	"q      quit",
}

// RobotKeyHelp is appended to KeyHelp when a robot is on the field.
var RobotKeyHelp = []string{
	"t      teleop on/off",
	"g      drive active routine",
	"space  disable robot",
	"arrows drive robot",
	"[ ]    turn robot",
}

type robotCommand int

const (
	robotNone robotCommand = iota
	robotToggle
	robotDisable
	robotAuto
)

var driveKeys = map[tcell.Key]robot.Drive{
	tcell.KeyLeft:  robot.DriveLeft,
	tcell.KeyRight: robot.DriveRight,
	tcell.KeyDown:  robot.DriveBack,
	tcell.KeyUp:    robot.DriveForward,
}

// robotKey records a robot control key and reports whether ev was one.
func (h *Host) robotKey(ev *tcell.EventKey) bool {
	if d, ok := driveKeys[ev.Key()]; ok {
		h.drive |= d
		return true
	}
	if ev.Key() != tcell.KeyRune {
		return false
	}
	switch ev.Rune() {
	case '[':
		h.drive |= robot.TurnLeft
	case ']':
		h.drive |= robot.TurnRight
	case 't':
		h.robotCmd = robotToggle
	case 'g':
		h.robotCmd = robotAuto
	case ' ':
		h.robotCmd = robotDisable
	default:
		return false
	}
	return true
}

func isQuit(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyCtrlC, tcell.KeyEscape:
		return true
	case tcell.KeyRune:
		return ev.Rune() == 'q'
	}
	return false
}

func (h *Host) keyCommand(ev *tcell.EventKey) (dispatcher.Command, bool) {
	switch ev.Key() {
	case tcell.KeyTab:
		return editor.Command(editor.CmdNextRoutine), true
	case tcell.KeyBacktab:
		return editor.Command(editor.CmdPrevRoutine), true
	case tcell.KeyInsert:
		return editor.Command(editor.CmdAddWaypoint), true
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		return editor.Command(editor.CmdRemoveWaypoint), true
	case tcell.KeyDelete:
		return editor.Command(editor.CmdDeleteWaypoint), true
	case tcell.KeyRune:
	default:
		return dispatcher.Command{}, false
	}

	switch ev.Rune() {
	case 'a':
		return editor.Command(editor.CmdAddWaypoint), true
	case 'x':
		return editor.Command(editor.CmdRemoveWaypoint), true
	case 'd':
		return editor.Command(editor.CmdDeleteWaypoint), true
	case 'n':
		return editor.Command(editor.CmdNextRoutine), true
	case 'p':
		return editor.Command(editor.CmdPrevRoutine), true
	case 'r':
		return editor.Command(editor.CmdAddRoutine), true
	case 'R':
		return editor.Command(editor.CmdRemoveRoutine), true
	}
	return dispatcher.Command{}, false
}
