// Package logging sets up the process logger: a colored console, a plain log
// file and an optional Graylog sink, all fed from one zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
)

// LogFilePath builds a log file path using OS-appropriate path separators.
func LogFilePath(logsDir, appName string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", appName, sessionStart.Format("20060102_150405")),
	)
}

// ParseLevel maps a config level name to a zerolog level. Unknown names are Info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Options selects the log outputs.
type Options struct {
	Level string
	// Console receives colored output. Nil disables it.
	Console io.Writer
	// File receives uncolored output. Nil disables it.
	File io.Writer
	// GraylogAddr is a host:port for GELF over UDP. Empty disables it.
	GraylogAddr string
}

// Manager owns the outputs of the process logger.
type Manager struct {
	logger  zerolog.Logger
	graylog *gelf.Writer
}

// Setup builds the logger. Timestamps are UTC. A Graylog address that cannot
// be resolved is reported but does not stop the other outputs.
func Setup(opts Options) (*Manager, error) {
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	var writers []io.Writer
	if opts.Console != nil {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        opts.Console,
			TimeFormat: time.RFC3339,
		})
	}
	if opts.File != nil {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        opts.File,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		})
	}

	m := &Manager{}
	var gelfErr error
	if opts.GraylogAddr != "" {
		w, err := gelf.NewWriter(opts.GraylogAddr)
		if err != nil {
			gelfErr = fmt.Errorf("graylog writer %s: %w", opts.GraylogAddr, err)
		} else {
			m.graylog = w
			writers = append(writers, w)
		}
	}

	lvl := ParseLevel(opts.Level)
	m.logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(lvl).
		With().Timestamp().Logger()

	m.logger.Info().Str("loglevel", lvl.String()).Bool("graylog", m.graylog != nil).Msg("Logging set up")
	return m, gelfErr
}

// Logger returns the process logger.
func (m *Manager) Logger() zerolog.Logger {
	return m.logger
}

// Sampled returns a child logger for per-frame chatter: at most burst entries
// per period, then one in every n.
func (m *Manager) Sampled(burst uint32, period time.Duration, n uint32) zerolog.Logger {
	return m.logger.With().Bool("sampled", true).Logger().Sample(&zerolog.BurstSampler{
		Burst:       burst,
		Period:      period,
		NextSampler: &zerolog.BasicSampler{N: n},
	})
}

// Close releases the Graylog connection.
func (m *Manager) Close() error {
	if m.graylog == nil {
		return nil
	}
	return m.graylog.Close()
}

// OpenFile creates the logs directory and opens a fresh log file in it.
func OpenFile(logsDir, appName string, sessionStart time.Time) (*os.File, error) {
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create logs dir: %w", err)
	}
	path := LogFilePath(logsDir, appName, sessionStart)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}
