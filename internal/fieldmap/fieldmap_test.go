package fieldmap

import (
	"math"
	"testing"

	"github.com/fieldpath/pathedit/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMapper() Mapper {
	return New(Rect{Pos: Vec{X: 35, Y: 120}, Size: Vec{X: 800, Y: 400}}, core.Pos(FieldWidth, FieldHeight))
}

func TestToScreen_Corners(t *testing.T) {
	m := testMapper()

	assert.Equal(t, Vec{X: 35, Y: 120}, m.ToScreen(core.Pos(0, 0)))
	got := m.ToScreen(core.Pos(FieldWidth, FieldHeight))
	assert.InDelta(t, 835, got.X, 1e-9)
	assert.InDelta(t, 520, got.Y, 1e-9)
}

func TestRoundTrip(t *testing.T) {
	m := testMapper()

	for _, p := range []core.Position{
		core.Pos(0.01, 0.01),
		core.Pos(1, 1),
		core.Pos(6, 1),
		core.Pos(8.2296, 4.1148),
		core.Pos(16.4, 8.2),
	} {
		back, ok := m.ToField(m.ToScreen(p))
		require.True(t, ok, "expected %v to map back inside the field", p)
		assert.InDelta(t, p.X, back.X, 1e-9)
		assert.InDelta(t, p.Y, back.Y, 1e-9)
	}
}

func TestToField_Outside(t *testing.T) {
	m := testMapper()

	tests := []struct {
		name string
		v    Vec
	}{
		{"left of field", Vec{X: 10, Y: 200}},
		{"right of field", Vec{X: 900, Y: 200}},
		{"below field", Vec{X: 100, Y: 100}},
		{"above field", Vec{X: 100, Y: 600}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := m.ToField(tt.v)
			assert.False(t, ok)
		})
	}
}

func TestToField_ZeroSizedLayout(t *testing.T) {
	m := New(Rect{}, core.Pos(FieldWidth, FieldHeight))
	_, ok := m.ToField(Vec{})
	assert.False(t, ok)
}

func TestPixelsPerMeter(t *testing.T) {
	m := testMapper()

	assert.InDelta(t, 800/FieldWidth, m.PixelsPerMeter(), 1e-12)
	assert.InDelta(t, 800/FieldWidth*2, m.ToScreenDistance(2), 1e-12)

	mx, my := m.MetersPerPixel()
	assert.InDelta(t, FieldWidth/800, mx, 1e-12)
	assert.InDelta(t, FieldHeight/400, my, 1e-12)
}

func TestBuild_KeepsAspectRatio(t *testing.T) {
	l := Build(DefaultSettings(), 1280, 720)

	// Border inset removes the same amount from both axes, so compare the
	// outer rectangle instead.
	outerW := l.Field.Size.X + 2*15
	outerH := l.Field.Size.Y + 2*15
	assert.InDelta(t, AspectRatio, outerW/outerH, 1e-9)
	assert.LessOrEqual(t, outerW, 0.7*(1280-40)+1e-9)
	assert.Equal(t, Vec{X: 1280, Y: 720}, l.Screen)
}

func TestBuild_ConfiguredFieldSize(t *testing.T) {
	s := DefaultSettings()
	s.Width, s.Height = 10, 8
	l := Build(s, 1280, 720)

	outerW := l.Field.Size.X + 2*15
	outerH := l.Field.Size.Y + 2*15
	assert.InDelta(t, 10.0/8.0, outerW/outerH, 1e-9)
	assert.Equal(t, core.Pos(10, 8), l.FieldSize)

	m := ForLayout(l)
	assert.Equal(t, core.Pos(10, 8), m.FieldSize())
	p, ok := m.ToField(Vec{X: l.Field.Pos.X + l.Field.Size.X, Y: l.Field.Pos.Y + l.Field.Size.Y})
	require.True(t, ok)
	assert.InDelta(t, 10, p.X, 1e-9)
	assert.InDelta(t, 8, p.Y, 1e-9)
}

func TestSettings_FieldSizeFallsBack(t *testing.T) {
	assert.Equal(t, core.Pos(FieldWidth, FieldHeight), Settings{Margin: 20}.FieldSize())
	assert.Equal(t, core.Pos(FieldWidth, FieldHeight), ForLayout(Layout{}).FieldSize())
}

func TestBuild_PanelRightOfField(t *testing.T) {
	l := Build(DefaultSettings(), 1280, 720)

	assert.Greater(t, l.Panel.Pos.X, l.Field.Pos.X+l.Field.Size.X)
	assert.InDelta(t, l.Field.Pos.Y, l.Panel.Pos.Y, 1e-9)
	assert.Less(t, l.Console.Pos.Y, l.Field.Pos.Y)
}

func TestBuild_TinyScreen(t *testing.T) {
	l := Build(DefaultSettings(), 10, 10)
	assert.GreaterOrEqual(t, l.Field.Size.X, 0.0)
	assert.GreaterOrEqual(t, l.Field.Size.Y, 0.0)
}

func TestAnchor(t *testing.T) {
	m := New(Rect{Size: Vec{X: 1000, Y: 500}}, core.Pos(10, 5))

	a := m.Anchor(core.NewPose(core.Pos(1, 1), 0), 25)
	assert.InDelta(t, 1.25, a.X, 1e-9)
	assert.InDelta(t, 1, a.Y, 1e-9)

	a = m.Anchor(core.NewPose(core.Pos(1, 1), math.Pi/2), 25)
	assert.InDelta(t, 1, a.X, 1e-9)
	assert.InDelta(t, 1.25, a.Y, 1e-9)
}
