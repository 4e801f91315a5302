package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFilePath(t *testing.T) {
	sessionStart := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

	tests := []struct {
		name    string
		logsDir string
		appName string
		want    string
	}{
		{
			name:    "basic path",
			logsDir: "logs",
			appName: "pathedit",
			want:    filepath.Join("logs", "pathedit.20260212_213836.log"),
		},
		{
			name:    "relative path with dot",
			logsDir: "./logs",
			appName: "pathedit",
			want:    filepath.Join(".", "logs", "pathedit.20260212_213836.log"),
		},
		{
			name:    "absolute path",
			logsDir: filepath.Join("/var", "log", "pathedit"),
			appName: "pathedit",
			want:    filepath.Join("/var", "log", "pathedit", "pathedit.20260212_213836.log"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LogFilePath(tt.logsDir, tt.appName, sessionStart)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"DEBUG":   zerolog.DebugLevel,
		"Info":    zerolog.InfoLevel,
		"warn":    zerolog.WarnLevel,
		"ERROR":   zerolog.ErrorLevel,
		"verbose": zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
	}

	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestSetup_WritesConsoleAndFile(t *testing.T) {
	var console, file bytes.Buffer

	m, err := Setup(Options{Level: "debug", Console: &console, File: &file})
	require.NoError(t, err)
	defer m.Close()

	lg := m.Logger()
	lg.Debug().Str("routine", "0").Msg("frame")

	assert.Contains(t, file.String(), "frame")
	assert.Contains(t, file.String(), "routine=0")
	assert.NotContains(t, file.String(), "\x1b[", "file output is uncolored")
	assert.Contains(t, console.String(), "frame")
}

func TestSetup_LevelFilters(t *testing.T) {
	var file bytes.Buffer

	m, err := Setup(Options{Level: "warn", File: &file})
	require.NoError(t, err)

	lg := m.Logger()
	lg.Info().Msg("hidden")
	lg.Warn().Msg("shown")

	assert.NotContains(t, file.String(), "hidden")
	assert.Contains(t, file.String(), "shown")
}

func TestSetup_BadGraylogAddr(t *testing.T) {
	var file bytes.Buffer

	m, err := Setup(Options{Level: "info", File: &file, GraylogAddr: "not a host:port:really"})

	require.Error(t, err)
	require.NotNil(t, m)
	lg := m.Logger()
	lg.Info().Msg("still logging")
	assert.Contains(t, file.String(), "still logging")
	assert.NoError(t, m.Close())
}

func TestSampled(t *testing.T) {
	var file bytes.Buffer
	m, err := Setup(Options{Level: "debug", File: &file})
	require.NoError(t, err)
	file.Reset()

	l := m.Sampled(2, time.Hour, 1000)
	for i := 0; i < 10; i++ {
		l.Debug().Msg("tick")
	}

	n := strings.Count(file.String(), "tick")
	assert.GreaterOrEqual(t, n, 2)
	assert.LessOrEqual(t, n, 3)
}

func TestOpenFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	f, err := OpenFile(dir, "pathedit", start)
	require.NoError(t, err)
	defer f.Close()

	_, err = os.Stat(LogFilePath(dir, "pathedit", start))
	assert.NoError(t, err)
}
