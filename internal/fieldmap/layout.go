package fieldmap

import "github.com/fieldpath/pathedit/pkg/core"

// Settings controls the spacing of the editor layout in pixels and the
// physical field size in meters. A zero size means the competition field.
type Settings struct {
	Margin     float64
	BorderSize float64
	Width      float64
	Height     float64
}

// DefaultSettings matches the stock editor spacing.
func DefaultSettings() Settings {
	return Settings{Margin: 20, BorderSize: 15, Width: FieldWidth, Height: FieldHeight}
}

// FieldSize returns the configured field size, falling back to the
// competition field when either side is unset.
func (s Settings) FieldSize() core.Position {
	if s.Width <= 0 || s.Height <= 0 {
		return core.Pos(FieldWidth, FieldHeight)
	}
	return core.Pos(s.Width, s.Height)
}

// Layout splits the screen into the field, the routine config panel to its
// right, and the console strip underneath.
type Layout struct {
	Field   Rect
	Panel   Rect
	Console Rect
	Screen  Vec
	// FieldSize is the physical size drawn into Field.
	FieldSize core.Position
}

// Build lays out a screen of width x height pixels with the origin at the
// lower-left corner. The field keeps the aspect ratio of its physical size
// (AspectRatio for the competition field) and never takes more than 70% of the
// usable width or height.
func Build(s Settings, width, height float64) Layout {
	size := s.FieldSize()
	ratio := size.X / size.Y
	usableW := width - 2*s.Margin
	usableH := height - 2*s.Margin

	fieldW := min(usableW, usableH*0.7*ratio, 0.7*usableW)
	if fieldW < 0 {
		fieldW = 0
	}
	fieldH := fieldW / ratio
	top := s.Margin + (usableH - fieldH)

	return Layout{
		Field:     inset(s.Margin, top, fieldW, fieldH, s.BorderSize),
		Panel:     inset(s.Margin+fieldW+s.Margin, top, usableW-fieldW-s.Margin, fieldH, s.BorderSize),
		Console:   inset(s.Margin, s.Margin, usableW, usableH-fieldH-s.Margin, s.BorderSize),
		Screen:    Vec{X: width, Y: height},
		FieldSize: size,
	}
}

func inset(x, y, w, h, border float64) Rect {
	return Rect{
		Pos:  Vec{X: x + border, Y: y + border},
		Size: Vec{X: max(w-2*border, 0), Y: max(h-2*border, 0)},
	}
}
