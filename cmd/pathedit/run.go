package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fieldpath/pathedit/internal/config"
	"github.com/fieldpath/pathedit/internal/editor"
	"github.com/fieldpath/pathedit/internal/fieldmap"
	"github.com/fieldpath/pathedit/internal/influx"
	"github.com/fieldpath/pathedit/internal/logging"
	"github.com/fieldpath/pathedit/internal/monitor"
	"github.com/fieldpath/pathedit/internal/robot"
	"github.com/fieldpath/pathedit/internal/storage"
	"github.com/fieldpath/pathedit/internal/storage/factory"
	"github.com/fieldpath/pathedit/internal/telemetry"
	"github.com/fieldpath/pathedit/internal/term"
	"github.com/fieldpath/pathedit/internal/trajectory"
	"github.com/fieldpath/pathedit/pkg/core"
	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Open the editor in the terminal",
		Long: `Connects to the trajectory service, then opens the editor. The process exits
with status 1 if the service cannot be reached at startup.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configDir)
			if err != nil {
				return err
			}
			return runEditor(cmd.Context(), cfg)
		},
	}
	return cmd
}

// journal is a started backend and the recorder feeding it.
type journal struct {
	name     string
	backend  storage.Backend
	recorder *storage.Recorder
}

// sinks collects everything that observes generations, in close order.
type sinks struct {
	log      zerolog.Logger
	journals []journal
	influx   *influx.Manager
	metrics  *telemetry.Metrics
}

func (s *sinks) editorSinks() []editor.Sink {
	var out []editor.Sink
	for _, j := range s.journals {
		out = append(out, j.recorder)
	}
	if s.influx != nil {
		out = append(out, s.influx)
	}
	if s.metrics != nil {
		out = append(out, s.metrics)
	}
	return out
}

func (s *sinks) addJournal(name string, b storage.Backend) {
	if err := b.Init(); err != nil {
		s.log.Warn().Err(err).Str("journal", name).Msg("Journal unavailable, continuing without it")
		return
	}
	r := storage.NewRecorder(b, s.log)
	if s.metrics != nil {
		r.OnFailure(func() { s.metrics.SinkFailed(name) })
	}
	s.journals = append(s.journals, journal{name: name, backend: b, recorder: r})
}

func (s *sinks) startSession(sess *core.Session) {
	for _, j := range s.journals {
		if err := j.backend.StartSession(sess); err != nil {
			s.log.Warn().Err(err).Str("journal", j.name).Msg("Failed to start journal session")
		}
	}
}

func (s *sinks) endSession(ctx context.Context) {
	for _, j := range s.journals {
		if err := j.backend.EndSession(); err != nil {
			s.log.Warn().Err(err).Str("journal", j.name).Msg("Failed to end journal session")
		}
		if err := j.backend.Close(); err != nil {
			s.log.Warn().Err(err).Str("journal", j.name).Msg("Failed to close journal")
		}
	}
	if s.influx != nil {
		if err := s.influx.Close(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to close InfluxDB client")
		}
	}
	if s.metrics != nil {
		if err := s.metrics.Shutdown(ctx); err != nil {
			s.log.Warn().Err(err).Msg("Failed to stop metrics server")
		}
	}
}

func (s *sinks) monitorDeps() monitor.Dependencies {
	var deps monitor.Dependencies
	for _, j := range s.journals {
		if p, ok := j.backend.(monitor.Pender); ok && deps.Backlog == nil {
			deps.Backlog = p
		}
		if st, ok := j.backend.(monitor.Streamer); ok {
			deps.Stream = st
		} else if deps.Journal == nil {
			deps.Journal = j.recorder
		}
	}
	if s.influx != nil {
		deps.Influx = s.influx
	}
	return deps
}

// openSinks builds every configured sink. Only a bad storage type is an error;
// unreachable services are logged and skipped.
func openSinks(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*sinks, error) {
	s := &sinks{log: log}

	if cfg.Telemetry.Enabled {
		m := telemetry.NewMetrics(log)
		if err := m.Start(cfg.Telemetry.Address); err != nil {
			log.Warn().Err(err).Msg("Metrics server not started")
		}
		s.metrics = m
	}

	backend, err := factory.NewBackend(cfg.Storage, log)
	if err != nil {
		return nil, err
	}
	if backend != nil {
		s.addJournal(cfg.Storage.Type, backend)
	}
	if cfg.Storage.WebSocket.Enabled && cfg.Storage.Type != "websocket" {
		s.addJournal("websocket", factory.NewStream(cfg.Storage.WebSocket, log))
	}

	if cfg.Influx.Enabled {
		m := influx.NewManager(cfg.Influx, log)
		if err := m.Connect(ctx); err != nil {
			log.Warn().Err(err).Msg("InfluxDB unavailable, continuing without it")
		} else {
			s.influx = m
		}
	}
	return s, nil
}

func runEditor(ctx context.Context, cfg *config.Config) error {
	start := time.Now().UTC()

	logFile, err := logging.OpenFile(cfg.LogsDir, appName, start)
	if err != nil {
		return err
	}
	defer logFile.Close()

	graylog := ""
	if cfg.Graylog.Enabled {
		graylog = cfg.Graylog.Address
	}
	// the terminal belongs to the editor, so nothing logs to the console
	lm, err := logging.Setup(logging.Options{Level: cfg.LogLevel, File: logFile, GraylogAddr: graylog})
	if err != nil {
		lg := lm.Logger()
		lg.Warn().Err(err).Msg("Graylog unavailable")
	}
	defer lm.Close()
	log := lm.Logger()
	if cfg.File != "" {
		log.Info().Str("file", cfg.File).Msg("Loaded config")
	}

	client, err := trajectory.Connect(ctx, cfg.Solver.Address,
		trajectory.WithBackoff(cfg.Solver.Backoff),
		trajectory.WithAttempts(cfg.Solver.Attempts),
		trajectory.WithRequestTimeout(cfg.Solver.RequestTimeout),
		trajectory.WithLogger(log),
	)
	if err != nil {
		return fmt.Errorf("connect to trajectory service: %w", err)
	}
	defer client.Close()

	s, err := openSinks(ctx, cfg, log)
	if err != nil {
		return err
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		s.endSession(context.Background())
		return fmt.Errorf("open terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		s.endSession(context.Background())
		return fmt.Errorf("init terminal: %w", err)
	}
	screen.EnableMouse()
	defer screen.Fini()

	settings := fieldmap.Settings{
		Margin:     cfg.Field.Margin,
		BorderSize: cfg.Field.BorderSize,
		Width:      cfg.Field.Width,
		Height:     cfg.Field.Height,
	}
	cols, rows := screen.Size()
	sess, err := editor.New(ctx, client, term.ScreenMapper(settings, cols, rows), editor.Options{
		Mode:      editor.Mode(cfg.Editor.Mode),
		Radii:     cfg.Editor.Radii,
		Defaults:  cfg.Editor.Defaults,
		Routines:  cfg.Editor.Routines,
		QueueSize: cfg.Editor.QueueSize,
		Logger:    lm.Sampled(20, time.Second, 50),
		Sinks:     s.editorSinks(),
	})
	if err != nil {
		s.endSession(context.Background())
		return err
	}

	session := core.Session{
		ID:          sess.ID(),
		Mode:        cfg.Editor.Mode,
		SolverAddr:  client.Addr(),
		FieldWidth:  cfg.Field.Width,
		FieldHeight: cfg.Field.Height,
		Routines:    cfg.Editor.Routines,
		StartTime:   start,
	}
	s.startSession(&session)
	log.Info().Str("session", session.ID.String()).Str("mode", session.Mode).Msg("Session started")

	deps := s.monitorDeps()
	deps.Cache = sess.Cache()
	deps.StatusPath = filepath.Join(cfg.LogsDir, "status.txt")
	deps.Logger = log
	mon := monitor.NewService(deps)
	if err := mon.Start(); err != nil {
		log.Warn().Err(err).Msg("Status monitor not started")
	}

	hostOpts := term.Options{
		Settings: settings,
		Logger:   log,
		OnFrame: func(editor.FrameResult) {
			if s.metrics != nil {
				s.metrics.SetRoutines(sess.Store().Len())
			}
		},
	}
	if cfg.Robot.Enabled {
		hostOpts.Robot = robot.New(robot.DefaultStart, settings.FieldSize())
		if cfg.Robot.Link.Enabled {
			link, err := robot.DialLink(ctx, cfg.Robot.Link.Address, cfg.Robot.Link.Timeout, log)
			if err != nil {
				log.Warn().Err(err).Msg("Robot link unavailable")
			} else {
				defer link.Close()
				hostOpts.Link = link
			}
		}
	}
	host := term.New(screen, sess, hostOpts)
	runErr := host.Run(ctx)

	mon.Stop()
	sess.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.endSession(shutdownCtx)

	log.Info().Str("session", session.ID.String()).Msg("Session ended")
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}
