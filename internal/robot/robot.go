// Package robot simulates the robot on the field. In teleop it is driven from
// the keyboard; in autonomous it drives along the trajectory of one routine.
package robot

import (
	"fmt"
	"math"
	"time"

	"github.com/fieldpath/pathedit/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Footprint and speeds.
const (
	// Size is the side of the square robot frame, 29 in.
	Size = 29 * 0.0254

	LinearSpeed  = 5.0 // m/s
	AngularSpeed = 3.0 // rad/s
)

// DefaultStart is where the robot is placed when a session starts.
var DefaultStart = core.NewPose(core.Pos(10, 5), 0)

// Mode is what the robot is currently doing.
type Mode int

const (
	Disabled Mode = iota
	Teleop
	Autonomous
)

func (m Mode) String() string {
	switch m {
	case Teleop:
		return "teleop"
	case Autonomous:
		return "autonomous"
	default:
		return "disabled"
	}
}

// State is the mode plus, in autonomous, the routine being driven.
type State struct {
	Mode    Mode
	Routine int
}

func (s State) String() string {
	if s.Mode == Autonomous {
		return fmt.Sprintf("autonomous(%d)", s.Routine+1)
	}
	return s.Mode.String()
}

// Drive is the set of teleop controls held during a frame.
type Drive uint8

const (
	DriveLeft Drive = 1 << iota
	DriveRight
	DriveBack
	DriveForward
	TurnLeft
	TurnRight
)

// Robot is owned by the frame loop and is not safe for concurrent use.
type Robot struct {
	pose  core.Pose
	state State
	field core.Position

	path      geom.LineString
	length    float64
	travelled float64
}

// New places a disabled robot at start. Teleop keeps its center inside a
// field of the given size; a zero size leaves it unbounded.
func New(start core.Pose, field core.Position) *Robot {
	return &Robot{pose: start, field: field}
}

// Pose returns the robot's field pose.
func (r *Robot) Pose() core.Pose {
	return r.pose
}

// State returns the current state.
func (r *Robot) State() State {
	return r.state
}

// Disable stops the robot where it is.
func (r *Robot) Disable() {
	r.clearPath()
	r.state = State{Mode: Disabled}
}

// Teleop hands the robot to the keyboard.
func (r *Robot) Teleop() {
	r.clearPath()
	r.state = State{Mode: Teleop}
}

// Autonomous moves the robot to the start of path and drives it along at
// LinearSpeed. It reports false and changes nothing when path has no length.
func (r *Robot) Autonomous(routine int, path core.Polyline) bool {
	length := path.Length()
	if length == 0 {
		return false
	}
	r.path = path.LineString()
	r.length = length
	r.travelled = 0
	r.pose.Translation = path[0]
	r.pose.Rotation = path[0].HeadingTo(path[1])
	r.state = State{Mode: Autonomous, Routine: routine}
	return true
}

// Progress returns the fraction of the autonomous path already driven.
func (r *Robot) Progress() float64 {
	if r.state.Mode != Autonomous || r.length == 0 {
		return 0
	}
	return r.travelled / r.length
}

// Step advances the robot by dt. Drive is only read in teleop. An autonomous
// run that reaches the end of its path falls back to teleop.
func (r *Robot) Step(dt time.Duration, d Drive) {
	secs := dt.Seconds()
	if secs <= 0 {
		return
	}
	switch r.state.Mode {
	case Teleop:
		r.drive(secs, d)
	case Autonomous:
		r.follow(secs)
	}
}

func (r *Robot) drive(secs float64, d Drive) {
	v := LinearSpeed * secs
	p := r.pose.Translation
	if d&DriveLeft != 0 {
		p.X -= v
	}
	if d&DriveRight != 0 {
		p.X += v
	}
	if d&DriveBack != 0 {
		p.Y -= v
	}
	if d&DriveForward != 0 {
		p.Y += v
	}
	r.pose.Translation = r.clamp(p)

	w := AngularSpeed * secs
	if d&TurnLeft != 0 {
		r.pose.Rotation += w
	}
	if d&TurnRight != 0 {
		r.pose.Rotation -= w
	}
	r.pose.Rotation = math.Remainder(r.pose.Rotation, 2*math.Pi)
}

func (r *Robot) follow(secs float64) {
	r.travelled = min(r.travelled+LinearSpeed*secs, r.length)
	xy, ok := r.path.InterpolatePoint(r.travelled / r.length).XY()
	if ok {
		next := core.Pos(xy.X, xy.Y)
		if next.Dist(r.pose.Translation) > 0 {
			r.pose.Rotation = r.pose.Translation.HeadingTo(next)
		}
		r.pose.Translation = next
	}
	if r.travelled >= r.length {
		r.Teleop()
	}
}

func (r *Robot) clearPath() {
	r.path = geom.LineString{}
	r.length, r.travelled = 0, 0
}

func (r *Robot) clamp(p core.Position) core.Position {
	if r.field.X <= 0 || r.field.Y <= 0 {
		return p
	}
	return core.Pos(min(max(p.X, 0), r.field.X), min(max(p.Y, 0), r.field.Y))
}

// Corners returns the footprint corners counter-clockwise, starting at the
// front left.
func (r *Robot) Corners() [4]core.Position {
	h := Size / 2
	c := r.pose.Translation
	sin, cos := math.Sincos(r.pose.Rotation)
	var out [4]core.Position
	for i, o := range [4][2]float64{{h, h}, {-h, h}, {-h, -h}, {h, -h}} {
		out[i] = core.Pos(c.X+o[0]*cos-o[1]*sin, c.Y+o[0]*sin+o[1]*cos)
	}
	return out
}

// Status is the robot state as published over the link.
type Status struct {
	State   string    `json:"state"`
	Routine *int      `json:"routine,omitempty"`
	Pose    core.Pose `json:"pose"`
}

// Status snapshots the robot for publishing.
func (r *Robot) Status() Status {
	s := Status{State: r.state.Mode.String(), Pose: r.pose}
	if r.state.Mode == Autonomous {
		routine := r.state.Routine
		s.Routine = &routine
	}
	return s
}
