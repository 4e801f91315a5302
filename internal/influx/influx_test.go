package influx

import (
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fieldpath/pathedit/internal/config"
	"github.com/fieldpath/pathedit/pkg/core"
	"github.com/google/uuid"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unreachable(backupDir string) config.InfluxConfig {
	return config.InfluxConfig{
		Enabled:   true,
		Host:      "127.0.0.1",
		Port:      "1",
		Protocol:  "http",
		Org:       "pathedit",
		Bucket:    "trajectories",
		BackupDir: backupDir,
	}
}

func sample() core.Generation {
	return core.Generation{
		Session:  uuid.MustParse("00000000-0000-4000-8000-00000000abcd"),
		Routine:  1,
		Revision: 12,
		Polyline: core.Polyline{core.Pos(0, 0), core.Pos(3, 4)},
		Started:  time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		Duration: 4 * time.Millisecond,
	}
}

func TestGenerationPoint(t *testing.T) {
	line := influxdb2_write.PointToLineProtocol(GenerationPoint(sample()), time.Nanosecond)

	assert.True(t, strings.HasPrefix(line, Measurement+","))
	assert.Contains(t, line, "routine=1")
	assert.Contains(t, line, "status=ok")
	assert.Contains(t, line, "session=00000000-0000-4000-8000-00000000abcd")
	assert.Contains(t, line, "length_m=5")
	assert.Contains(t, line, "duration_ms=4")
	assert.Contains(t, line, "revision=12i")
	assert.Contains(t, line, "polyline_points=2i")
}

func TestGenerationPoint_Failure(t *testing.T) {
	g := sample()
	g.Polyline = nil
	g.Error = "solver: boom"

	line := influxdb2_write.PointToLineProtocol(GenerationPoint(g), time.Nanosecond)
	assert.Contains(t, line, "status=error")
	assert.Contains(t, line, "polyline_points=0i")
}

func TestConnect_Disabled(t *testing.T) {
	m := NewManager(config.InfluxConfig{}, zerolog.Nop())
	assert.True(t, errors.Is(m.Connect(context.Background()), ErrDisabled))
}

func TestConnect_UnreachableWithoutBackup(t *testing.T) {
	m := NewManager(unreachable(""), zerolog.Nop())
	require.Error(t, m.Connect(context.Background()))
	assert.False(t, m.Valid())
	assert.Error(t, m.WritePoint(GenerationPoint(sample())))
	require.NoError(t, m.Close())
}

func TestBackupFile(t *testing.T) {
	m := NewManager(unreachable(t.TempDir()), zerolog.Nop())
	require.NoError(t, m.Connect(context.Background()))
	assert.False(t, m.Valid())

	path := m.BackupPath()
	require.NotEmpty(t, path)

	m.Observe(context.Background(), sample())
	m.Observe(context.Background(), sample())
	assert.Equal(t, uint64(2), m.Written())
	require.NoError(t, m.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)

	var lines []string
	sc := bufio.NewScanner(gz)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], Measurement))
}

func TestURL(t *testing.T) {
	m := NewManager(config.InfluxConfig{Protocol: "https", Host: "metrics", Port: "8086"}, zerolog.Nop())
	assert.Equal(t, "https://metrics:8086", m.URL())
}
