// Package term hosts an editing session in a terminal. Mouse and key events
// from tcell are queued as they arrive and handed to the session once per
// frame; each frame then redraws the field, the markers and the trajectories.
package term

import (
	"context"
	"math"
	"time"

	"github.com/fieldpath/pathedit/internal/editor"
	"github.com/fieldpath/pathedit/internal/fieldmap"
	"github.com/fieldpath/pathedit/internal/interaction"
	"github.com/fieldpath/pathedit/internal/queue"
	"github.com/fieldpath/pathedit/internal/robot"
	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"
)

// A terminal cell stands for CellWidth x CellHeight screen pixels, so pixel
// radii and layout margins keep their proportions.
const (
	CellWidth  = 8
	CellHeight = 16
)

// DefaultFrameInterval paces the frame loop.
const DefaultFrameInterval = 33 * time.Millisecond

// Options configures a Host.
type Options struct {
	Settings      fieldmap.Settings
	FrameInterval time.Duration
	Logger        zerolog.Logger
	// OnFrame runs after every session frame.
	OnFrame func(editor.FrameResult)
	// Robot is stepped once per Step when set.
	Robot *robot.Robot
	// Link receives the robot status after every Step.
	Link Publisher
}

// Publisher sends robot status somewhere outside the editor.
type Publisher interface {
	Publish(ctx context.Context, s robot.Status) error
}

// Host drives one editor session from a tcell screen.
type Host struct {
	screen tcell.Screen
	sess   *editor.Session
	opts   Options
	log    zerolog.Logger
	events *queue.Queue[tcell.Event]

	cols, rows int
	buttons    tcell.ButtonMask
	lastErr    error

	// robot controls collected since the last Step
	drive    robot.Drive
	robotCmd robotCommand
}

// ScreenMapper returns the mapper for a terminal of cols x rows cells.
func ScreenMapper(s fieldmap.Settings, cols, rows int) fieldmap.Mapper {
	return fieldmap.ForLayout(fieldmap.Build(s, float64(cols*CellWidth), float64(rows*CellHeight)))
}

// New attaches sess to an initialized screen and sizes its mapper to it.
func New(screen tcell.Screen, sess *editor.Session, opts Options) *Host {
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = DefaultFrameInterval
	}
	h := &Host{
		screen: screen,
		sess:   sess,
		opts:   opts,
		log:    opts.Logger.With().Str("component", "term").Logger(),
		events: queue.New[tcell.Event](),
	}
	cols, rows := screen.Size()
	h.resize(cols, rows)
	return h
}

// Enqueue adds an event for the next frame. Safe for concurrent use.
func (h *Host) Enqueue(ev tcell.Event) {
	h.events.Push(ev)
}

// LastError returns the most recent non-fatal frame error.
func (h *Host) LastError() error {
	return h.lastErr
}

// Run polls the screen and steps frames until ctx is done, the user quits or a
// frame fails fatally. The caller owns the screen and must Fini it afterwards,
// which also stops the poller.
func (h *Host) Run(ctx context.Context) error {
	go h.poll()

	ticker := time.NewTicker(h.opts.FrameInterval)
	defer ticker.Stop()

	h.Draw()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		quit, err := h.Step(ctx)
		if err != nil {
			return err
		}
		if quit {
			h.log.Info().Msg("Quit requested")
			return nil
		}
	}
}

func (h *Host) poll() {
	for {
		ev := h.screen.PollEvent()
		if ev == nil {
			return
		}
		h.Enqueue(ev)
	}
}

// Step drains the queued events, runs the session frames they make up and
// redraws. It reports whether a quit key was pressed.
func (h *Host) Step(ctx context.Context) (bool, error) {
	h.drive, h.robotCmd = 0, robotNone
	inputs, quit := h.collect(h.events.Drain())
	for _, in := range inputs {
		res := h.sess.Frame(ctx, in)
		for _, err := range res.Errors {
			if editor.IsFatal(err) {
				return true, err
			}
			h.lastErr = err
		}
		if h.opts.OnFrame != nil {
			h.opts.OnFrame(res)
		}
	}
	h.stepRobot(ctx)
	h.Draw()
	return quit, nil
}

// stepRobot applies the robot keys of this Step and advances the robot by one
// frame interval.
func (h *Host) stepRobot(ctx context.Context) {
	r := h.opts.Robot
	if r == nil {
		return
	}
	switch h.robotCmd {
	case robotToggle:
		if r.State().Mode == robot.Teleop {
			r.Disable()
		} else {
			r.Teleop()
		}
	case robotDisable:
		r.Disable()
	case robotAuto:
		active := h.sess.Store().Active()
		if !r.Autonomous(active, h.sess.Cache().Get(active).Polyline) {
			h.log.Debug().Int("routine", active).Msg("No trajectory to drive")
		}
	}
	r.Step(h.opts.FrameInterval, h.drive)

	if h.opts.Link != nil {
		if err := h.opts.Link.Publish(ctx, r.Status()); err != nil {
			h.log.Debug().Err(err).Msg("Robot status not published")
		}
	}
}

// collect turns raw events into session inputs. The controller handles a
// frame's moves before its buttons, so a move that follows a button edge
// starts a new input to keep press, drag and release in order. There is
// always at least one input so an idle frame still refreshes trajectories.
func (h *Host) collect(events []tcell.Event) ([]editor.Input, bool) {
	inputs := []editor.Input{{}}
	cur := func() *editor.Input { return &inputs[len(inputs)-1] }
	quit := false

	for _, ev := range events {
		switch ev := ev.(type) {
		case *tcell.EventResize:
			cols, rows := ev.Size()
			h.resize(cols, rows)
			h.screen.Sync()

		case *tcell.EventMouse:
			if len(cur().Pointer.Buttons) > 0 {
				inputs = append(inputs, editor.Input{})
			}
			x, y := ev.Position()
			in := cur()
			in.Pointer.Moves = append(in.Pointer.Moves, interaction.MoveEvent{Screen: h.cellToScreen(x, y)})
			in.Pointer.Buttons = append(in.Pointer.Buttons, h.buttonEdges(ev.Buttons())...)

		case *tcell.EventKey:
			if isQuit(ev) {
				quit = true
				continue
			}
			if h.opts.Robot != nil && h.robotKey(ev) {
				continue
			}
			if c, ok := h.keyCommand(ev); ok {
				cur().Commands = append(cur().Commands, c)
			}
		}
	}
	return inputs, quit
}

var buttonMap = []struct {
	mask   tcell.ButtonMask
	button interaction.Button
}{
	{tcell.Button1, interaction.ButtonPrimary},
	{tcell.Button2, interaction.ButtonSecondary},
	{tcell.Button3, interaction.ButtonMiddle},
}

// buttonEdges compares mask with the previous mouse event's buttons.
func (h *Host) buttonEdges(mask tcell.ButtonMask) []interaction.ButtonEvent {
	var out []interaction.ButtonEvent
	for _, b := range buttonMap {
		was, is := h.buttons&b.mask != 0, mask&b.mask != 0
		switch {
		case is && !was:
			out = append(out, interaction.ButtonEvent{Button: b.button, State: interaction.Pressed})
		case was && !is:
			out = append(out, interaction.ButtonEvent{Button: b.button, State: interaction.Released})
		}
	}
	h.buttons = mask
	return out
}

func (h *Host) resize(cols, rows int) {
	h.cols, h.rows = cols, rows
	h.sess.SetMapper(ScreenMapper(h.opts.Settings, cols, rows))
	h.log.Debug().Int("cols", cols).Int("rows", rows).Msg("Resized")
}

// cellToScreen returns the pixel center of a cell. Screen pixels grow upwards
// from the bottom-left corner while rows grow downwards.
func (h *Host) cellToScreen(col, row int) fieldmap.Vec {
	return fieldmap.Vec{
		X: (float64(col) + 0.5) * CellWidth,
		Y: (float64(h.rows-row) - 0.5) * CellHeight,
	}
}

// screenToCell returns the cell containing a pixel.
func (h *Host) screenToCell(v fieldmap.Vec) (col, row int) {
	col = int(math.Floor(v.X / CellWidth))
	row = h.rows - 1 - int(math.Floor(v.Y/CellHeight))
	return col, row
}
