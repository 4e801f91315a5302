// Package telemetry exposes generation counters and latencies to Prometheus.
package telemetry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/fieldpath/pathedit/pkg/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Namespace prefixes every metric name.
const Namespace = "pathedit"

// MetricsPath is where the handler is mounted.
const MetricsPath = "/metrics"

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	generations      *prometheus.CounterVec
	generationTime   *prometheus.HistogramVec
	polylinePoints   prometheus.Histogram
	polylineLength   prometheus.Histogram
	routines         prometheus.Gauge
	sinkFailures     *prometheus.CounterVec
	lastGenerationTS prometheus.Gauge

	log zerolog.Logger

	mu     sync.Mutex
	server *http.Server
	addr   string
}

// NewMetrics registers the collectors on a new registry.
func NewMetrics(log zerolog.Logger) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		log:      log.With().Str("component", "telemetry").Logger(),

		generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "generations_total",
				Help:      "Trajectory generations by routine and outcome",
			},
			[]string{"routine", "status"},
		),
		generationTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "generation_duration_seconds",
				Help:      "Solver round trip time",
				Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"status"},
		),
		polylinePoints: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "polyline_points",
				Help:      "Points per returned polyline",
				Buckets:   prometheus.ExponentialBuckets(2, 2, 10),
			},
		),
		polylineLength: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "polyline_length_meters",
				Help:      "Length of returned polylines",
				Buckets:   prometheus.LinearBuckets(0, 5, 10),
			},
		),
		routines: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "routines",
				Help:      "Routines in the current session",
			},
		),
		sinkFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "sink_failures_total",
				Help:      "Generations a journal sink failed to record",
			},
			[]string{"sink"},
		),
		lastGenerationTS: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "last_generation_timestamp_seconds",
				Help:      "Unix time of the most recent generation",
			},
		),
	}

	m.registry.MustRegister(
		m.generations,
		m.generationTime,
		m.polylinePoints,
		m.polylineLength,
		m.routines,
		m.sinkFailures,
		m.lastGenerationTS,
	)
	return m
}

// Registry returns the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records one generation.
func (m *Metrics) Observe(_ context.Context, g core.Generation) {
	status := "ok"
	if !g.OK() {
		status = "error"
	}
	m.generations.WithLabelValues(strconv.Itoa(g.Routine), status).Inc()
	m.generationTime.WithLabelValues(status).Observe(g.Duration.Seconds())
	if g.OK() {
		m.polylinePoints.Observe(float64(len(g.Polyline)))
		m.polylineLength.Observe(g.Polyline.Length())
	}
	ts := g.Started
	if ts.IsZero() {
		ts = time.Now()
	}
	m.lastGenerationTS.Set(float64(ts.UnixNano()) / 1e9)
}

// SetRoutines updates the routine gauge.
func (m *Metrics) SetRoutines(n int) {
	m.routines.Set(float64(n))
}

// SinkFailed counts one failed write by the named sink.
func (m *Metrics) SinkFailed(sink string) {
	m.sinkFailures.WithLabelValues(sink).Inc()
}

// Handler returns the HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Start listens on addr and serves MetricsPath in the background. Use port 0 to pick
// a free port; Addr reports the bound address.
func (m *Metrics) Start(addr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.server != nil {
		return errors.New("metrics server already running")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle(MetricsPath, m.Handler())
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.server = server
	m.addr = ln.Addr().String()

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Error().Err(err).Msg("Metrics server error")
		}
	}()
	m.log.Info().Str("addr", m.addr).Msg("Serving metrics")
	return nil
}

// Addr returns the address the server is bound to, or "" when not running.
func (m *Metrics) Addr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addr
}

// Shutdown stops the server. It is a no-op if Start was never called.
func (m *Metrics) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	server := m.server
	m.server = nil
	m.addr = ""
	m.mu.Unlock()

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}
