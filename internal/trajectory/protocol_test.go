package trajectory

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/fieldpath/pathedit/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrajectory() core.Trajectory {
	return core.Trajectory{
		Start:  core.NewPose(core.Pos(1, 1), 0),
		Points: []core.Position{core.Pos(3, 2)},
		End:    core.NewPose(core.Pos(6, 1), 1.5),
	}
}

func TestEncoder_RequestDocument(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, NewEncoder(&buf).Encode(NewRequest(sampleTrajectory())))

	assert.JSONEq(t, `{
		"units": {"length": "meter", "angle": "radian"},
		"start": {"translation": {"x": 1, "y": 1}, "rotation": 0},
		"points": [{"x": 3, "y": 2}],
		"end": {"translation": {"x": 6, "y": 1}, "rotation": 1.5}
	}`, strings.TrimSpace(buf.String()))
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}

func TestNewRequest_EmptyInteriorIsArray(t *testing.T) {
	var buf bytes.Buffer
	tr := sampleTrajectory()
	tr.Points = nil

	require.NoError(t, NewEncoder(&buf).Encode(NewRequest(tr)))

	assert.Contains(t, buf.String(), `"points":[]`)
}

func TestDecoder_RequestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(NewRequest(sampleTrajectory())))

	req, err := NewDecoder(&buf).DecodeRequest()

	require.NoError(t, err)
	assert.Equal(t, sampleTrajectory(), req.Trajectory())
}

func TestDecoder_RejectsUnits(t *testing.T) {
	in := `{"units":{"length":"foot","angle":"degree"},"start":{},"points":[],"end":{}}` + "\n"

	_, err := NewDecoder(strings.NewReader(in)).DecodeRequest()

	assert.ErrorContains(t, err, "unsupported units")
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    core.Polyline
		wantErr error
	}{
		{"polyline", `[{"x":1,"y":1},{"x":2,"y":1.5}]`, core.Polyline{core.Pos(1, 1), core.Pos(2, 1.5)}, nil},
		{"empty polyline", `[]`, core.Polyline{}, nil},
		{"solver error", `{"error":"infeasible"}`, nil, ErrSolver},
		{"object without error", `{"foo":1}`, nil, ErrMalformedResponse},
		{"truncated", `[{"x":1,"y"`, nil, ErrMalformedResponse},
		{"garbage", `hello`, nil, ErrMalformedResponse},
		{"blank", `  `, nil, ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResponse([]byte(tt.line))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecoder_SkipsBlankLines(t *testing.T) {
	d := NewDecoder(strings.NewReader("\n\n[{\"x\":1,\"y\":2}]\n"))

	got, err := d.DecodeResponse()

	require.NoError(t, err)
	assert.Equal(t, core.Polyline{core.Pos(1, 2)}, got)

	_, err = d.DecodeResponse()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecoder_LineTooLong(t *testing.T) {
	huge := "[" + strings.Repeat(" ", MaxLineSize+1) + "]\n"

	_, err := NewDecoder(strings.NewReader(huge)).DecodeResponse()

	assert.ErrorIs(t, err, ErrMalformedResponse)
}
