// Package fieldmap maps between field-space meters and screen-space pixels.
// It holds no state beyond the layout it is built from.
package fieldmap

import (
	"math"

	"github.com/fieldpath/pathedit/pkg/core"
)

// Field dimensions of the competition field in meters.
const (
	FieldWidth  = 16.4592
	FieldHeight = 8.2296

	// AspectRatio is the width:height ratio the field rectangle is laid out with.
	AspectRatio = 2.0
)

// Vec is a screen-space vector in pixels.
type Vec struct {
	X, Y float64
}

// Rect is a screen-space rectangle. Pos is the minimum corner.
type Rect struct {
	Pos  Vec
	Size Vec
}

// Contains reports whether v lies inside the rectangle, edges inclusive.
func (r Rect) Contains(v Vec) bool {
	return v.X >= r.Pos.X && v.X <= r.Pos.X+r.Size.X &&
		v.Y >= r.Pos.Y && v.Y <= r.Pos.Y+r.Size.Y
}

// Mapper converts between field and screen coordinates for one layout.
// The zero value is not usable; build one with New.
type Mapper struct {
	field Rect
	size  core.Position
}

// New returns a mapper for a field rectangle on screen and the field's physical size.
func New(fieldRect Rect, fieldSize core.Position) Mapper {
	return Mapper{field: fieldRect, size: fieldSize}
}

// ForLayout returns a mapper for the field drawn into l.Field. A layout built
// without a field size maps the competition field.
func ForLayout(l Layout) Mapper {
	size := l.FieldSize
	if size.X <= 0 || size.Y <= 0 {
		size = core.Pos(FieldWidth, FieldHeight)
	}
	return New(l.Field, size)
}

// FieldRect returns the screen rectangle the field occupies.
func (m Mapper) FieldRect() Rect {
	return m.field
}

// FieldSize returns the physical field size in meters.
func (m Mapper) FieldSize() core.Position {
	return m.size
}

// ToScreen maps a field position to screen pixels.
func (m Mapper) ToScreen(p core.Position) Vec {
	return Vec{
		X: m.field.Pos.X + m.field.Size.X*(p.X/m.size.X),
		Y: m.field.Pos.Y + m.field.Size.Y*(p.Y/m.size.Y),
	}
}

// ToField maps a screen point back to the field. It reports false when the
// point lies outside the field rectangle.
func (m Mapper) ToField(v Vec) (core.Position, bool) {
	if !m.field.Contains(v) || m.field.Size.X == 0 || m.field.Size.Y == 0 {
		return core.Position{}, false
	}
	return core.Position{
		X: (v.X - m.field.Pos.X) / m.field.Size.X * m.size.X,
		Y: (v.Y - m.field.Pos.Y) / m.field.Size.Y * m.size.Y,
	}, true
}

// PixelsPerMeter is the horizontal field/screen scale ratio.
// Hit-testing converts field distances to pixels with it.
func (m Mapper) PixelsPerMeter() float64 {
	if m.size.X == 0 {
		return 0
	}
	return m.field.Size.X / m.size.X
}

// ToScreenDistance converts a field distance in meters to pixels.
func (m Mapper) ToScreenDistance(meters float64) float64 {
	return meters * m.PixelsPerMeter()
}

// MetersPerPixel returns the per-axis inverse scale, used to push a pixel
// offset out into field space.
func (m Mapper) MetersPerPixel() (x, y float64) {
	if m.field.Size.X == 0 || m.field.Size.Y == 0 {
		return math.Inf(1), math.Inf(1)
	}
	return m.size.X / m.field.Size.X, m.size.Y / m.field.Size.Y
}

// Anchor returns the field position of a pose's rotation handle, which orbits
// the pose at radius pixels in the direction of its heading.
func (m Mapper) Anchor(p core.Pose, radius float64) core.Position {
	mx, my := m.MetersPerPixel()
	return p.Translation.Offset(p.Rotation, radius*mx, radius*my)
}
