// Package editor runs one editing session: it owns the waypoint store, the
// pointer controller, the markers and the trajectory cache, and advances them
// one frame at a time.
package editor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fieldpath/pathedit/internal/dispatcher"
	"github.com/fieldpath/pathedit/internal/fieldmap"
	"github.com/fieldpath/pathedit/internal/interaction"
	"github.com/fieldpath/pathedit/internal/logging"
	"github.com/fieldpath/pathedit/internal/marker"
	"github.com/fieldpath/pathedit/internal/trajectory"
	"github.com/fieldpath/pathedit/internal/waypoint"
	"github.com/fieldpath/pathedit/pkg/core"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Mode selects where trajectory requests run.
type Mode string

const (
	// ModeSync blocks the frame until every stale routine is regenerated.
	ModeSync Mode = "sync"
	// ModeAsync hands requests to a single worker; frames show the last
	// completed result.
	ModeAsync Mode = "async"
)

// Generator produces the polyline for a split routine.
type Generator interface {
	Generate(ctx context.Context, t core.Trajectory) (core.Polyline, error)
}

// Sink receives every finished generation.
type Sink interface {
	Observe(ctx context.Context, g core.Generation)
}

// Options configures a Session.
type Options struct {
	Mode     Mode
	Radii    interaction.Radii
	Defaults waypoint.Defaults
	// Routines is the number of routines seeded at start.
	Routines int
	// QueueSize bounds pending requests in async mode.
	QueueSize int
	Logger    zerolog.Logger
	Sinks     []Sink
}

// DefaultOptions returns a synchronous session seeded with two routines.
func DefaultOptions() Options {
	return Options{
		Mode:      ModeSync,
		Radii:     interaction.DefaultRadii(),
		Defaults:  waypoint.DefaultPositions(),
		Routines:  2,
		QueueSize: 64,
		Logger:    zerolog.Nop(),
	}
}

// Input is everything that happened since the previous frame.
type Input struct {
	Pointer  interaction.Batch
	Commands []dispatcher.Command
}

// FrameResult summarizes one frame.
type FrameResult struct {
	// Edited lists routines rewritten by the pointer or by commands.
	Edited []int
	// Requested lists routines a trajectory request was issued for.
	Requested []int
	// Errors holds command and generation failures. None of them are fatal.
	Errors []error
}

type generateJob struct {
	ticket  trajectory.Ticket
	request core.Trajectory
}

// Session is one editing session. Frame, the command handlers and every store
// access run on the caller's goroutine; only the async worker runs elsewhere
// and it touches nothing but the generator, the cache and the sinks.
type Session struct {
	id      uuid.UUID
	opts    Options
	log     zerolog.Logger
	store   *waypoint.Store
	ctrl    *interaction.Controller
	markers *marker.Registry
	cache   *trajectory.Cache
	disp    *dispatcher.Dispatcher
	gen     Generator
	mapper  fieldmap.Mapper
	ctx     context.Context
}

// New builds a session around gen. The context bounds async requests; cancel
// it and call Close to stop the worker.
func New(ctx context.Context, gen Generator, m fieldmap.Mapper, opts Options) (*Session, error) {
	if opts.Mode == "" {
		opts.Mode = ModeSync
	}
	if opts.Mode != ModeSync && opts.Mode != ModeAsync {
		return nil, fmt.Errorf("unknown generation mode %q", opts.Mode)
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}

	s := &Session{
		id:      uuid.New(),
		opts:    opts,
		store:   waypoint.NewStore(opts.Defaults),
		ctrl:    interaction.New(opts.Radii),
		markers: marker.NewRegistry(),
		cache:   trajectory.NewCache(),
		gen:     gen,
		mapper:  m,
		ctx:     ctx,
	}
	s.log = opts.Logger.With().Str("session", s.id.String()).Logger()

	d, err := dispatcher.New(logging.NewDispatcherLogger(s.log))
	if err != nil {
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}
	s.disp = d
	s.registerCommands()
	if opts.Mode == ModeAsync {
		s.disp.Register(cmdGenerate, s.generateAsync, dispatcher.Buffered(opts.QueueSize))
	}

	s.store.Seed(opts.Routines)
	s.markers.Sync(s.store)
	return s, nil
}

// ID returns the session id stamped on every generation.
func (s *Session) ID() uuid.UUID { return s.id }

// Store returns the waypoint store. Callers must not use it concurrently with Frame.
func (s *Session) Store() *waypoint.Store { return s.store }

// Controller returns the pointer controller.
func (s *Session) Controller() *interaction.Controller { return s.ctrl }

// Markers returns the marker registry.
func (s *Session) Markers() *marker.Registry { return s.markers }

// Cache returns the trajectory cache.
func (s *Session) Cache() *trajectory.Cache { return s.cache }

// Mapper returns the current coordinate mapper.
func (s *Session) Mapper() fieldmap.Mapper { return s.mapper }

// SetMapper replaces the mapper after a resize.
func (s *Session) SetMapper(m fieldmap.Mapper) { s.mapper = m }

// Mode returns the generation mode.
func (s *Session) Mode() Mode { return s.opts.Mode }

// Hover returns what a press at the current cursor would grab.
func (s *Session) Hover() (interaction.Grab, bool) {
	c := s.ctrl.Cursor()
	if !c.OnField {
		return interaction.Grab{}, false
	}
	return s.ctrl.HitTest(s.store, s.mapper, c.Pos)
}

// Placements lays out the markers for drawing.
func (s *Session) Placements() []marker.Placement {
	return s.markers.Placements(s.store, s.mapper, s.opts.Radii.AnchorRevolution)
}

// Close stops the async worker after it drains its queue.
func (s *Session) Close() {
	s.disp.Close()
}

// Frame advances the session by one frame: pointer edits, then commands, then
// marker upkeep, then trajectory requests for every routine whose revision
// moved past its cached result.
func (s *Session) Frame(ctx context.Context, in Input) FrameResult {
	var res FrameResult
	before := s.revisions()

	step := s.ctrl.Step(s.store, s.mapper, in.Pointer)
	if step.GrabChanged {
		s.log.Debug().Stringer("grab", s.ctrl.Grab()).Msg("Grab changed")
	}

	for _, c := range in.Commands {
		if _, err := s.disp.Dispatch(c); err != nil {
			res.Errors = append(res.Errors, err)
		}
	}

	if !s.ctrl.Grab().Active() {
		for i := 0; i < s.store.Len(); i++ {
			s.store.Compact(i)
		}
	}
	s.markers.Reconcile(s.store)
	s.markers.Sync(s.store)
	s.cache.Truncate(s.store.Len())

	after := s.revisions()
	for i, rev := range after {
		if i >= len(before) || before[i] != rev {
			res.Edited = append(res.Edited, i)
		}
	}

	for i := 0; i < s.store.Len(); i++ {
		rev := s.store.Revision(i)
		if !s.cache.Stale(i, rev) {
			continue
		}
		t, ok := s.store.Split(i)
		if !ok {
			s.cache.Store(i, rev, nil)
			continue
		}
		if err := s.request(ctx, i, rev, t); err != nil {
			res.Errors = append(res.Errors, err)
			continue
		}
		res.Requested = append(res.Requested, i)
	}
	return res
}

func (s *Session) revisions() []uint64 {
	out := make([]uint64, s.store.Len())
	for i := range out {
		out[i] = s.store.Revision(i)
	}
	return out
}

func (s *Session) request(ctx context.Context, i int, rev uint64, t core.Trajectory) error {
	if s.opts.Mode == ModeSync {
		tk := s.cache.Request(i, rev)
		return s.generate(ctx, generateJob{ticket: tk, request: t})
	}

	tk := s.cache.Request(i, rev)
	_, err := s.disp.Dispatch(dispatcher.Command{Name: cmdGenerate, Routine: i, Payload: generateJob{ticket: tk, request: t}})
	if err != nil {
		s.cache.Release(tk)
		return fmt.Errorf("queue trajectory request for routine %d: %w", i, err)
	}
	return nil
}

func (s *Session) generateAsync(c dispatcher.Command) (any, error) {
	job, ok := c.Payload.(generateJob)
	if !ok {
		return nil, fmt.Errorf("unexpected payload %T", c.Payload)
	}
	return nil, s.generate(s.ctx, job)
}

func (s *Session) generate(ctx context.Context, job generateJob) error {
	start := time.Now()
	poly, err := s.gen.Generate(ctx, job.request)
	g := core.Generation{
		Session:  s.id,
		Routine:  job.ticket.Routine,
		Revision: job.ticket.Revision,
		Request:  job.request,
		Polyline: poly,
		Started:  start.UTC(),
		Duration: time.Since(start),
	}

	if err != nil {
		g.Error = err.Error()
		s.cache.Abort(job.ticket, err)
		s.log.Warn().Err(err).Int("routine", g.Routine).Uint64("revision", g.Revision).Msg("Trajectory generation failed, keeping last good trajectory")
	} else if !s.cache.Complete(job.ticket, poly) {
		s.log.Debug().Int("routine", g.Routine).Uint64("revision", g.Revision).Msg("Dropped outdated trajectory")
		return nil
	} else {
		s.log.Debug().Int("routine", g.Routine).Int("points", len(poly)).Dur("took", g.Duration).Msg("Trajectory generated")
	}

	for _, sink := range s.opts.Sinks {
		sink.Observe(ctx, g)
	}
	if err != nil {
		return fmt.Errorf("generate routine %d: %w", g.Routine, err)
	}
	return nil
}

// IsFatal reports whether err from a Frame should end the session. Only a lost
// context is; generation failures leave the last good trajectory in place.
func IsFatal(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, dispatcher.ErrClosed)
}
