// Package bar draws per-monitor status bars: workspace tags, shortcuts,
// the focused window title, optional status text, and the tab bar of
// tabbed workspaces. Font rasterization is consumed as an opaque service;
// this layer only decides which boxes to paint in which color.
package bar

import (
	"github.com/jezek/xgb/xproto"
	"github.com/sirupsen/logrus"

	"github.com/canopywm/canopy/internal/geometry"
)

// FontDrawer rasterizes text onto a drawable. Implementations own fonts,
// glyph caching and the RENDER plumbing.
type FontDrawer interface {
	TextExtents(text string) (width, height int)
	Draw(target xproto.Window, text string, r geometry.Rect, fg, bg uint32) error
}

// Surface paints solid rectangles onto a drawable.
type Surface interface {
	FillRect(target xproto.Window, r geometry.Rect, pixel uint32) error
}

// TargetKind is the bar component a pointer press landed on.
type TargetKind int

const (
	TargetClientWindow TargetKind = iota
	TargetWorkspaceTag
	TargetShortcut
	TargetStatus
	TargetWindowTitle
)

// Target is a hit-test result: the component kind and, for indexed
// sections, which component.
type Target struct {
	Kind  TargetKind
	Index int
}

// box is one clickable segment of a bar section.
type box struct {
	X     int
	Width int
}

func (b box) hit(x int) bool { return x >= b.X && x < b.X+b.Width }

// Geometry is the computed horizontal split of one monitor's bar.
type Geometry struct {
	Tags      []box
	Shortcuts []box
	Title     box
	Status    box
}

// HitOnClick resolves a bar-relative x coordinate to a component.
func (g *Geometry) HitOnClick(x int) (Target, bool) {
	for i, b := range g.Tags {
		if b.hit(x) {
			return Target{Kind: TargetWorkspaceTag, Index: i}, true
		}
	}
	for i, b := range g.Shortcuts {
		if b.hit(x) {
			return Target{Kind: TargetShortcut, Index: i}, true
		}
	}
	if g.Status.Width > 0 && g.Status.hit(x) {
		return Target{Kind: TargetStatus}, true
	}
	if g.Title.hit(x) {
		return Target{Kind: TargetWindowTitle}, true
	}
	return Target{}, false
}

// Palette is the pixel palette the bar paints with.
type Palette struct {
	Background     uint32
	Text           uint32
	FocusedTag     uint32
	UrgentTag      uint32
	TabFocused     uint32
	TabUnfocused   uint32
	ShortcutColor  uint32
	StatusBackdrop uint32
}

// Config is the static bar layout configuration.
type Config struct {
	Height       int
	TabBarHeight int
	TagPadding   int
	Palette      Palette
}

// Manager owns bar drawing for every monitor.
type Manager struct {
	logger *logrus.Logger
	font   FontDrawer
	paint  Surface
	cfg    Config
}

// NewManager creates a bar manager.
func NewManager(logger *logrus.Logger, font FontDrawer, paint Surface, cfg Config) *Manager {
	return &Manager{logger: logger, font: font, paint: paint, cfg: cfg}
}

// ComputeGeometry splits a bar of the given width between the workspace
// tags, the shortcut labels, the window title and the status section.
// Status occupies statusWidth pixels at the right edge.
func (m *Manager) ComputeGeometry(width int, wsNames, shortcuts []string, statusWidth int) Geometry {
	g := Geometry{}
	x := 0
	for _, name := range wsNames {
		w, _ := m.font.TextExtents(name)
		w += 2 * m.cfg.TagPadding
		g.Tags = append(g.Tags, box{X: x, Width: w})
		x += w
	}
	for _, s := range shortcuts {
		w, _ := m.font.TextExtents(s)
		w += 2 * m.cfg.TagPadding
		g.Shortcuts = append(g.Shortcuts, box{X: x, Width: w})
		x += w
	}
	if statusWidth > width-x {
		statusWidth = width - x
	}
	if statusWidth < 0 {
		statusWidth = 0
	}
	g.Status = box{X: width - statusWidth, Width: statusWidth}
	g.Title = box{X: x, Width: width - x - statusWidth}
	return g
}

// DrawTags paints the workspace tag boxes. The hosted workspace of the
// focused monitor gets the highlight color and urgent workspaces the
// urgency color.
func (m *Manager) DrawTags(barWin xproto.Window, g *Geometry, names []string, hosted int, focusedMon bool, urgent []bool) error {
	for i, b := range g.Tags {
		bg := m.cfg.Palette.Background
		switch {
		case i < len(urgent) && urgent[i]:
			bg = m.cfg.Palette.UrgentTag
		case i == hosted && focusedMon:
			bg = m.cfg.Palette.FocusedTag
		}
		r := geometry.Rect{X: b.X, Y: 0, Width: b.Width, Height: m.cfg.Height}
		if err := m.paint.FillRect(barWin, r, bg); err != nil {
			return err
		}
		tw, th := m.font.TextExtents(names[i])
		text := geometry.Rect{
			X:      b.X + (b.Width-tw)/2,
			Y:      (m.cfg.Height - th) / 2,
			Width:  tw,
			Height: th,
		}
		if err := m.font.Draw(barWin, names[i], text, m.cfg.Palette.Text, bg); err != nil {
			return err
		}
	}
	return nil
}

// DrawShortcuts paints the shortcut labels.
func (m *Manager) DrawShortcuts(barWin xproto.Window, g *Geometry, labels []string) error {
	for i, b := range g.Shortcuts {
		r := geometry.Rect{X: b.X, Y: 0, Width: b.Width, Height: m.cfg.Height}
		if err := m.paint.FillRect(barWin, r, m.cfg.Palette.ShortcutColor); err != nil {
			return err
		}
		tw, th := m.font.TextExtents(labels[i])
		text := geometry.Rect{X: b.X + (b.Width-tw)/2, Y: (m.cfg.Height - th) / 2, Width: tw, Height: th}
		if err := m.font.Draw(barWin, labels[i], text, m.cfg.Palette.Text, m.cfg.Palette.ShortcutColor); err != nil {
			return err
		}
	}
	return nil
}

// DrawTitle paints the focused window's title into the title section.
func (m *Manager) DrawTitle(barWin xproto.Window, g *Geometry, title string) error {
	r := geometry.Rect{X: g.Title.X, Y: 0, Width: g.Title.Width, Height: m.cfg.Height}
	if err := m.paint.FillRect(barWin, r, m.cfg.Palette.Background); err != nil {
		return err
	}
	if title == "" || g.Title.Width <= 0 {
		return nil
	}
	tw, th := m.font.TextExtents(title)
	if tw > g.Title.Width {
		tw = g.Title.Width
	}
	text := geometry.Rect{X: g.Title.X + m.cfg.TagPadding, Y: (m.cfg.Height - th) / 2, Width: tw, Height: th}
	return m.font.Draw(barWin, title, text, m.cfg.Palette.Text, m.cfg.Palette.Background)
}

// DrawStatus paints pre-rendered status text into the status section.
func (m *Manager) DrawStatus(barWin xproto.Window, g *Geometry, status string) error {
	if g.Status.Width <= 0 {
		return nil
	}
	r := geometry.Rect{X: g.Status.X, Y: 0, Width: g.Status.Width, Height: m.cfg.Height}
	if err := m.paint.FillRect(barWin, r, m.cfg.Palette.StatusBackdrop); err != nil {
		return err
	}
	if status == "" {
		return nil
	}
	tw, th := m.font.TextExtents(status)
	if tw > g.Status.Width {
		tw = g.Status.Width
	}
	text := geometry.Rect{X: g.Status.X, Y: (m.cfg.Height - th) / 2, Width: tw, Height: th}
	return m.font.Draw(barWin, status, text, m.cfg.Palette.Text, m.cfg.Palette.StatusBackdrop)
}

// StatusWidth returns the pixel width the given status text needs.
func (m *Manager) StatusWidth(status string) int {
	if status == "" {
		return 0
	}
	w, _ := m.font.TextExtents(status)
	return w + 2*m.cfg.TagPadding
}

// DrawTabBar paints one segment per tabbed window, highlighting the
// focused tab. Segment widths distribute remainder pixels leftward.
func (m *Manager) DrawTabBar(tabWin xproto.Window, width int, names []string, focused int) error {
	segs := geometry.TabSegments(width, len(names))
	for i, seg := range segs {
		bg := m.cfg.Palette.TabUnfocused
		if i == focused {
			bg = m.cfg.Palette.TabFocused
		}
		r := geometry.Rect{X: seg.X, Y: 0, Width: seg.Width, Height: m.cfg.TabBarHeight}
		if err := m.paint.FillRect(tabWin, r, bg); err != nil {
			return err
		}
		tw, th := m.font.TextExtents(names[i])
		if tw > seg.Width {
			tw = seg.Width
		}
		text := geometry.Rect{X: seg.X + (seg.Width-tw)/2, Y: (m.cfg.TabBarHeight - th) / 2, Width: tw, Height: th}
		if err := m.font.Draw(tabWin, names[i], text, m.cfg.Palette.Text, bg); err != nil {
			return err
		}
	}
	return nil
}

// TabIndexAt resolves a click x coordinate on a tab bar of the given
// width to a tab index.
func (m *Manager) TabIndexAt(width, n, x int) (int, bool) {
	for i, seg := range geometry.TabSegments(width, n) {
		if x >= seg.X && x < seg.X+seg.Width {
			return i, true
		}
	}
	return 0, false
}
