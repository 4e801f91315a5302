package waypoint

import (
	"testing"

	"github.com/fieldpath/pathedit/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemotePromote(t *testing.T) {
	p := core.PoseWaypoint(core.Pos(1, 2), 1.5)
	tr := core.Translation(core.Pos(1, 2))

	assert.Equal(t, tr, Demote(p))
	assert.Equal(t, tr, Demote(tr))
	assert.Equal(t, core.PoseWaypoint(core.Pos(1, 2), 0), Promote(tr))
	assert.Equal(t, p, Promote(p), "poses keep their heading")
	assert.True(t, Promote(core.Waypoint{}).Empty())
}

func TestCheckContinuity(t *testing.T) {
	pose := func(x, y float64) core.Waypoint { return core.PoseWaypoint(core.Pos(x, y), 0) }
	tr := func(x, y float64) core.Waypoint { return core.Translation(core.Pos(x, y)) }

	tests := []struct {
		name    string
		slots   []core.Waypoint
		wantErr bool
	}{
		{"empty routine", nil, false},
		{"single pose", []core.Waypoint{pose(1, 1)}, false},
		{"single translation", []core.Waypoint{tr(1, 1)}, true},
		{"two poses", []core.Waypoint{pose(1, 1), pose(2, 2)}, false},
		{"interior translations", []core.Waypoint{pose(1, 1), tr(2, 2), tr(3, 3), pose(4, 4)}, false},
		{"interior pose", []core.Waypoint{pose(1, 1), pose(2, 2), pose(4, 4)}, true},
		{"translation end", []core.Waypoint{pose(1, 1), tr(2, 2)}, true},
		{"stub in interior", []core.Waypoint{pose(1, 1), {}, tr(2, 2), pose(4, 4)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckContinuity(tt.slots)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrContinuity)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSplit(t *testing.T) {
	_, ok := Split([]core.Waypoint{core.PoseWaypoint(core.Pos(1, 1), 0)})
	assert.False(t, ok)

	_, ok = Split(nil)
	assert.False(t, ok)

	tr, ok := Split([]core.Waypoint{
		core.PoseWaypoint(core.Pos(1, 1), 0.25),
		core.Translation(core.Pos(2, 2)),
		{},
		core.Translation(core.Pos(3, 3)),
		core.PoseWaypoint(core.Pos(4, 4), -1),
	})
	require.True(t, ok)
	assert.Equal(t, core.NewPose(core.Pos(1, 1), 0.25), tr.Start)
	assert.Equal(t, []core.Position{core.Pos(2, 2), core.Pos(3, 3)}, tr.Points)
	assert.Equal(t, core.NewPose(core.Pos(4, 4), -1), tr.End)
}
