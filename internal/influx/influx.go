// Package influx writes one point per trajectory generation to InfluxDB. When the server
// cannot be reached the points go to a gzipped line-protocol backup file instead.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fieldpath/pathedit/internal/config"
	"github.com/fieldpath/pathedit/pkg/core"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
)

// Measurement is the measurement name of generation points.
const Measurement = "trajectory_generation"

// ErrDisabled is returned by Connect when influx.enabled is false.
var ErrDisabled = errors.New("influx: disabled")

// Manager handles InfluxDB connections and writes.
type Manager struct {
	cfg    config.InfluxConfig
	log    zerolog.Logger
	client influxdb2.Client
	writer influxdb2_api.WriteAPI

	mu         sync.Mutex
	backupFile *os.File
	backup     *gzip.Writer
	valid      bool
	written    uint64
}

// NewManager creates a new InfluxDB manager.
func NewManager(cfg config.InfluxConfig, log zerolog.Logger) *Manager {
	return &Manager{cfg: cfg, log: log.With().Str("component", "influx").Logger()}
}

// URL returns the server URL built from the config.
func (m *Manager) URL() string {
	return fmt.Sprintf("%s://%s:%s", m.cfg.Protocol, m.cfg.Host, m.cfg.Port)
}

// Valid reports whether points go to the server rather than the backup file.
func (m *Manager) Valid() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.valid
}

// Connect pings the server and prepares the bucket. If the server is unreachable and a
// backup directory is configured, the backup file is opened instead and Connect succeeds.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.client = influxdb2.NewClientWithOptions(m.URL(), m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000))

	running, err := m.client.Ping(ctx)
	if err != nil || !running {
		if err == nil {
			err = errors.New("server not ready")
		}
		m.log.Warn().Err(err).Str("url", m.URL()).Msg("InfluxDB unreachable")
		return m.openBackup()
	}

	if err := m.setupBucket(ctx); err != nil {
		return err
	}

	m.writer = m.client.WriteAPI(m.cfg.Org, m.cfg.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			m.log.Error().Err(writeErr).Str("bucket", m.cfg.Bucket).Msg("Error sending data to InfluxDB")
		}
	}(m.writer.Errors())

	m.mu.Lock()
	m.valid = true
	m.mu.Unlock()
	m.log.Info().Str("url", m.URL()).Str("bucket", m.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	if m.cfg.BackupDir == "" {
		return fmt.Errorf("influx unreachable and no backup directory configured")
	}
	if err := os.MkdirAll(m.cfg.BackupDir, 0o755); err != nil {
		return fmt.Errorf("error creating backup dir: %w", err)
	}
	path := filepath.Join(m.cfg.BackupDir,
		fmt.Sprintf("influx.%s.lp.gz", time.Now().UTC().Format("20060102-150405")))
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}

	m.mu.Lock()
	m.backupFile = file
	m.backup = gzip.NewWriter(file)
	m.mu.Unlock()
	m.log.Info().Str("backupPath", path).Msg("Writing InfluxDB points to backup file")
	return nil
}

// BackupPath returns the open backup file path, if any.
func (m *Manager) BackupPath() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backupFile == nil {
		return ""
	}
	return m.backupFile.Name()
}

func (m *Manager) setupBucket(ctx context.Context) error {
	org, err := m.client.OrganizationsAPI().FindOrganizationByName(ctx, m.cfg.Org)
	if err != nil {
		m.log.Info().Str("org", m.cfg.Org).Msg("Organization not found, creating")
		org, err = m.client.OrganizationsAPI().CreateOrganizationWithName(ctx, m.cfg.Org)
		if err != nil {
			return fmt.Errorf("create organization %q: %w", m.cfg.Org, err)
		}
	}

	if _, err := m.client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err != nil {
		m.log.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")
		rule := domain.RetentionRuleTypeExpire
		_, err = m.client.BucketsAPI().CreateBucketWithName(ctx, org, m.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: 60 * 60 * 24 * 30,
		})
		if err != nil {
			return fmt.Errorf("create bucket %q: %w", m.cfg.Bucket, err)
		}
	}
	return nil
}

// GenerationPoint builds the point recorded for g.
func GenerationPoint(g core.Generation) *influxdb2_write.Point {
	status := "ok"
	if !g.OK() {
		status = "error"
	}
	ts := g.Started
	if ts.IsZero() {
		ts = time.Now()
	}
	return influxdb2_write.NewPoint(Measurement,
		map[string]string{
			"session": g.Session.String(),
			"routine": strconv.Itoa(g.Routine),
			"status":  status,
		},
		map[string]interface{}{
			"revision":        int64(g.Revision),
			"duration_ms":     float64(g.Duration.Microseconds()) / 1000,
			"length_m":        g.Polyline.Length(),
			"polyline_points": len(g.Polyline),
			"interior_points": len(g.Request.Points),
		},
		ts)
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.valid:
		m.writer.WritePoint(point)
	case m.backup != nil:
		line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
		line = strings.TrimRight(line, "\n") + "\n"
		if _, err := m.backup.Write([]byte(line)); err != nil {
			return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
		}
	default:
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}
	m.written++
	return nil
}

// Written returns the number of points accepted.
func (m *Manager) Written() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written
}

// Observe records one generation point.
func (m *Manager) Observe(_ context.Context, g core.Generation) {
	if err := m.WritePoint(GenerationPoint(g)); err != nil {
		m.log.Warn().Err(err).Int("routine", g.Routine).Msg("Failed to write generation point")
	}
}

// Close flushes pending points and releases the client and backup file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writer != nil {
		m.writer.Flush()
	}
	if m.client != nil {
		m.client.Close()
	}
	m.valid = false

	var errs []error
	if m.backup != nil {
		errs = append(errs, m.backup.Close())
		m.backup = nil
	}
	if m.backupFile != nil {
		errs = append(errs, m.backupFile.Close())
		m.backupFile = nil
	}
	return errors.Join(errs...)
}
