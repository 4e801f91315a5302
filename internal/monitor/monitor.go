// Package monitor periodically reports session health: the trajectory cache,
// journal backlog and failures, stream drops and influx points. Each report is
// logged at debug level and rewritten to a status file.
package monitor

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fieldpath/pathedit/internal/trajectory"
	"github.com/rs/zerolog"
)

// DefaultInterval is used when Dependencies.Interval is zero.
const DefaultInterval = time.Second

// Pender is a journal backend with a write backlog.
type Pender interface {
	Pending() int
}

// Failer counts rejected journal records.
type Failer interface {
	Failed() uint64
}

// Streamer reports messages sent and dropped.
type Streamer interface {
	Stats() (sent, dropped uint64)
}

// PointWriter reports points written.
type PointWriter interface {
	Written() uint64
}

// Dependencies holds all dependencies for the monitor service. Every one but
// Cache may be nil.
type Dependencies struct {
	Cache      *trajectory.Cache
	Backlog    Pender
	Journal    Failer
	Stream     Streamer
	Influx     PointWriter
	StatusPath string
	Interval   time.Duration
	Logger     zerolog.Logger
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	deps.Logger = deps.Logger.With().Str("component", "monitor").Logger()
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Status returns the current report, one line per concern.
func (s *Service) Status() []string {
	var out []string

	counts := map[trajectory.Status]int{}
	for _, e := range s.deps.Cache.All() {
		counts[e.Status]++
	}
	out = append(out, fmt.Sprintf("routines: %d (fresh %d, pending %d, stale %d, empty %d)",
		s.deps.Cache.Len(),
		counts[trajectory.StatusFresh], counts[trajectory.StatusPending],
		counts[trajectory.StatusStale], counts[trajectory.StatusEmpty]))

	for i, e := range s.deps.Cache.All() {
		if e.Status == trajectory.StatusStale && e.Err != nil {
			out = append(out, fmt.Sprintf("routine %d: %v", i, e.Err))
		}
	}

	if s.deps.Backlog != nil {
		out = append(out, fmt.Sprintf("journal backlog: %d", s.deps.Backlog.Pending()))
	}
	if s.deps.Journal != nil {
		out = append(out, fmt.Sprintf("journal failures: %d", s.deps.Journal.Failed()))
	}
	if s.deps.Stream != nil {
		sent, dropped := s.deps.Stream.Stats()
		out = append(out, fmt.Sprintf("stream: sent %d, dropped %d", sent, dropped))
	}
	if s.deps.Influx != nil {
		out = append(out, fmt.Sprintf("influx points: %d", s.deps.Influx.Written()))
	}
	return out
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	var statusFile *os.File
	if s.deps.StatusPath != "" {
		f, err := os.Create(s.deps.StatusPath)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("error creating status file: %w", err)
		}
		statusFile = f
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer func() {
			if statusFile != nil {
				_ = statusFile.Close()
			}
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
			close(done)
		}()

		logger := s.deps.Logger
		logger.Debug().Dur("interval", s.deps.Interval).Msg("Starting status monitor")

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
			}

			lines := s.Status()
			logger.Debug().Strs("status", lines).Msg("Status")
			if statusFile == nil {
				continue
			}
			if err := statusFile.Truncate(0); err != nil {
				logger.Error().Err(err).Msg("Error truncating status file")
				continue
			}
			if _, err := statusFile.Seek(0, 0); err != nil {
				logger.Error().Err(err).Msg("Error rewinding status file")
				continue
			}
			if _, err := statusFile.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
				logger.Error().Err(err).Msg("Error writing status file")
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for the goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
