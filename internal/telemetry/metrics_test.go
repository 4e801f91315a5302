package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fieldpath/pathedit/pkg/core"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generation(routine int, err string) core.Generation {
	g := core.Generation{
		Routine:  routine,
		Revision: 1,
		Started:  time.Unix(1700000000, 0),
		Duration: 20 * time.Millisecond,
	}
	if err != "" {
		g.Error = err
	} else {
		g.Polyline = core.Polyline{core.Pos(0, 0), core.Pos(1, 0), core.Pos(2, 0)}
	}
	return g
}

func TestObserve(t *testing.T) {
	m := NewMetrics(zerolog.Nop())
	ctx := context.Background()

	m.Observe(ctx, generation(0, ""))
	m.Observe(ctx, generation(0, ""))
	m.Observe(ctx, generation(1, "solver: no path"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.generations.WithLabelValues("0", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.generations.WithLabelValues("1", "error")))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.lastGenerationTS))

	// failed generations carry no polyline
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var samples uint64
	for _, f := range families {
		if f.GetName() == "pathedit_polyline_points" {
			samples = f.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	assert.Equal(t, uint64(2), samples)
}

func TestGauges(t *testing.T) {
	m := NewMetrics(zerolog.Nop())
	m.SetRoutines(3)
	m.SinkFailed("sqlite")
	m.SinkFailed("sqlite")

	assert.Equal(t, 3.0, testutil.ToFloat64(m.routines))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.sinkFailures.WithLabelValues("sqlite")))
}

func TestHandler(t *testing.T) {
	m := NewMetrics(zerolog.Nop())
	m.Observe(context.Background(), generation(2, ""))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, MetricsPath, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `pathedit_generations_total{routine="2",status="ok"} 1`)
	assert.Contains(t, body, "pathedit_generation_duration_seconds_bucket")
}

func TestServer(t *testing.T) {
	m := NewMetrics(zerolog.Nop())
	require.NoError(t, m.Start("127.0.0.1:0"))
	assert.Error(t, m.Start("127.0.0.1:0"))

	addr := m.Addr()
	require.NotEmpty(t, addr)

	resp, err := http.Get("http://" + addr + MetricsPath)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "pathedit_routines"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))
	assert.Empty(t, m.Addr())
	assert.NoError(t, m.Shutdown(ctx))
}
