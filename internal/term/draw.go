package term

import (
	"fmt"
	"math"

	"github.com/fieldpath/pathedit/internal/fieldmap"
	"github.com/fieldpath/pathedit/internal/marker"
	"github.com/fieldpath/pathedit/internal/robot"
	"github.com/fieldpath/pathedit/internal/trajectory"
	"github.com/fieldpath/pathedit/pkg/core"
	"github.com/gdamore/tcell/v2"
)

var routineColors = []tcell.Color{
	tcell.ColorGreen,
	tcell.ColorAqua,
	tcell.ColorYellow,
	tcell.ColorFuchsia,
	tcell.ColorOrange,
	tcell.ColorBlue,
}

var (
	styleBorder = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleText   = tcell.StyleDefault
	styleError  = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleStatus = tcell.StyleDefault.Reverse(true)
)

// Marker glyphs.
const (
	glyphStart    = 'S'
	glyphWaypoint = 'o'
	glyphAnchor   = '+'
	glyphPath     = '·'
	glyphActive   = '•'
	glyphRobot    = '#'
	glyphCenter   = '@'
)

var styleRobot = tcell.StyleDefault.Foreground(tcell.ColorSilver)

func routineStyle(i int) tcell.Style {
	return tcell.StyleDefault.Foreground(routineColors[i%len(routineColors)])
}

// Draw renders the current session state and shows it.
func (h *Host) Draw() {
	h.screen.Clear()
	m := h.sess.Mapper()
	l := fieldmap.Build(h.opts.Settings, float64(h.cols*CellWidth), float64(h.rows*CellHeight))

	h.drawBox(l.Field)
	h.drawBox(l.Panel)
	h.drawBox(l.Console)

	active := h.sess.Store().Active()
	entries := h.sess.Cache().All()
	for i, e := range entries {
		if i != active {
			h.drawPolyline(m, e, routineStyle(i).Dim(true), glyphPath)
		}
	}
	if active < len(entries) {
		h.drawPolyline(m, entries[active], routineStyle(active).Bold(true), glyphActive)
	}

	h.drawRobot(m)

	hover, hovering := h.sess.Hover()
	for _, p := range h.sess.Placements() {
		if !p.Visible {
			continue
		}
		style := routineStyle(p.Key.ID.Routine).Bold(true)
		if hovering && hover.ID == p.Key.ID {
			style = style.Reverse(true)
		}
		h.drawMarker(p, style)
	}

	h.drawPanel(l.Panel, entries)
	h.drawConsole(l.Console)
	h.drawStatus(entries)
	h.screen.Show()
}

// cellRect converts a pixel rectangle to inclusive cell bounds.
func (h *Host) cellRect(r fieldmap.Rect) (x0, y0, x1, y1 int) {
	x0, y1 = h.screenToCell(r.Pos)
	x1, y0 = h.screenToCell(fieldmap.Vec{X: r.Pos.X + r.Size.X, Y: r.Pos.Y + r.Size.Y})
	return x0, y0, x1, y1
}

func (h *Host) drawBox(r fieldmap.Rect) {
	if r.Size.X <= 0 || r.Size.Y <= 0 {
		return
	}
	x0, y0, x1, y1 := h.cellRect(r)
	x0, y0, x1, y1 = x0-1, y0-1, x1+1, y1+1
	for x := x0 + 1; x < x1; x++ {
		h.screen.SetContent(x, y0, tcell.RuneHLine, nil, styleBorder)
		h.screen.SetContent(x, y1, tcell.RuneHLine, nil, styleBorder)
	}
	for y := y0 + 1; y < y1; y++ {
		h.screen.SetContent(x0, y, tcell.RuneVLine, nil, styleBorder)
		h.screen.SetContent(x1, y, tcell.RuneVLine, nil, styleBorder)
	}
	h.screen.SetContent(x0, y0, tcell.RuneULCorner, nil, styleBorder)
	h.screen.SetContent(x1, y0, tcell.RuneURCorner, nil, styleBorder)
	h.screen.SetContent(x0, y1, tcell.RuneLLCorner, nil, styleBorder)
	h.screen.SetContent(x1, y1, tcell.RuneLRCorner, nil, styleBorder)
}

// drawPolyline rasterizes consecutive points as straight cell runs.
func (h *Host) drawPolyline(m fieldmap.Mapper, e trajectory.Entry, style tcell.Style, glyph rune) {
	if e.Status == trajectory.StatusStale || e.Status == trajectory.StatusPending {
		style = style.Dim(true)
	}
	var prevX, prevY int
	for i, p := range e.Polyline {
		x, y := h.screenToCell(m.ToScreen(p))
		if i == 0 {
			h.screen.SetContent(x, y, glyph, nil, style)
		} else {
			h.line(prevX, prevY, x, y, glyph, style)
		}
		prevX, prevY = x, y
	}
}

func (h *Host) line(x0, y0, x1, y1 int, glyph rune, style tcell.Style) {
	dx, dy := x1-x0, y1-y0
	steps := max(abs(dx), abs(dy))
	if steps == 0 {
		h.screen.SetContent(x1, y1, glyph, nil, style)
		return
	}
	for s := 1; s <= steps; s++ {
		t := float64(s) / float64(steps)
		x := x0 + int(math.Round(float64(dx)*t))
		y := y0 + int(math.Round(float64(dy)*t))
		h.screen.SetContent(x, y, glyph, nil, style)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func (h *Host) drawRobot(m fieldmap.Mapper) {
	r := h.opts.Robot
	if r == nil {
		return
	}
	style := styleRobot
	if r.State().Mode == robot.Disabled {
		style = style.Dim(true)
	}
	corners := r.Corners()
	for i, c := range corners {
		x0, y0 := h.screenToCell(m.ToScreen(c))
		x1, y1 := h.screenToCell(m.ToScreen(corners[(i+1)%len(corners)]))
		h.line(x0, y0, x1, y1, glyphRobot, style)
	}
	x, y := h.screenToCell(m.ToScreen(r.Pose().Translation))
	h.screen.SetContent(x, y, glyphCenter, nil, style.Bold(true))
}

func (h *Host) drawMarker(p marker.Placement, style tcell.Style) {
	x, y := h.screenToCell(p.Screen)
	glyph := glyphWaypoint
	switch p.Style {
	case marker.StyleStart:
		glyph = glyphStart
	case marker.StyleAnchor:
		glyph = glyphAnchor
	}
	h.screen.SetContent(x, y, glyph, nil, style)
}

func (h *Host) text(x, y, maxWidth int, s string, style tcell.Style) {
	for i, r := range []rune(s) {
		if maxWidth > 0 && i >= maxWidth {
			return
		}
		h.screen.SetContent(x+i, y, r, nil, style)
	}
}

func (h *Host) drawPanel(r fieldmap.Rect, entries []trajectory.Entry) {
	if r.Size.X <= 0 || r.Size.Y <= 0 {
		return
	}
	x0, y0, x1, y1 := h.cellRect(r)
	width := x1 - x0 + 1
	y := y0

	store := h.sess.Store()
	for i := 0; i < store.Len() && y <= y1; i++ {
		status := trajectory.StatusEmpty
		length := 0.0
		if i < len(entries) {
			status = entries[i].Status
			length = entries[i].Polyline.Length()
		}
		mark := " "
		if i == store.Active() {
			mark = ">"
		}
		line := fmt.Sprintf("%s routine %d  %d pts  %.2fm  %s", mark, i+1, store.SlotCount(i), length, status)
		h.text(x0, y, width, line, routineStyle(i))
		y++
	}
	y++
	help := KeyHelp
	if h.opts.Robot != nil {
		help = append(append([]string(nil), KeyHelp...), RobotKeyHelp...)
	}
	for _, line := range help {
		if y > y1 {
			return
		}
		h.text(x0, y, width, line, styleText)
		y++
	}
}

func (h *Host) drawConsole(r fieldmap.Rect) {
	if h.lastErr == nil || r.Size.X <= 0 || r.Size.Y <= 0 {
		return
	}
	x0, y0, x1, _ := h.cellRect(r)
	h.text(x0, y0, x1-x0+1, h.lastErr.Error(), styleError)
}

func (h *Host) drawStatus(entries []trajectory.Entry) {
	if h.rows == 0 {
		return
	}
	y := h.rows - 1
	for x := 0; x < h.cols; x++ {
		h.screen.SetContent(x, y, ' ', nil, styleStatus)
	}

	store := h.sess.Store()
	active := store.Active()
	status := trajectory.StatusEmpty
	var entryErr error
	if active < len(entries) {
		status = entries[active].Status
		entryErr = entries[active].Err
	}
	line := fmt.Sprintf(" routine %d/%d  %s  trajectory %s", active+1, store.Len(), h.sess.Mode(), status)
	if store.Len() == 0 {
		line = fmt.Sprintf(" no routines  %s", h.sess.Mode())
	}

	c := h.sess.Controller().Cursor()
	if c.OnField {
		line += fmt.Sprintf("  cursor %s", formatPos(c.Pos))
	}
	if g, ok := h.sess.Hover(); ok {
		line += fmt.Sprintf("  hover %s", g)
	}
	if r := h.opts.Robot; r != nil {
		line += fmt.Sprintf("  robot %s %s", r.State(), formatPos(r.Pose().Translation))
	}
	if entryErr != nil {
		line += "  error: " + entryErr.Error()
	}
	h.text(0, y, h.cols, line, styleStatus)
}

func formatPos(p core.Position) string {
	return fmt.Sprintf("(%.2f, %.2f)", p.X, p.Y)
}
