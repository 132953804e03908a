package bar

import (
	"testing"

	"github.com/jezek/xgb/xproto"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopywm/canopy/internal/geometry"
)

type fakeFont struct{ drawn []string }

func (f *fakeFont) TextExtents(text string) (int, int) { return 8 * len(text), 12 }

func (f *fakeFont) Draw(_ xproto.Window, text string, _ geometry.Rect, _, _ uint32) error {
	f.drawn = append(f.drawn, text)
	return nil
}

type fill struct {
	rect  geometry.Rect
	pixel uint32
}

type fakeSurface struct{ fills []fill }

func (s *fakeSurface) FillRect(_ xproto.Window, r geometry.Rect, pixel uint32) error {
	s.fills = append(s.fills, fill{rect: r, pixel: pixel})
	return nil
}

func newTestManager() (*Manager, *fakeFont, *fakeSurface) {
	font := &fakeFont{}
	surface := &fakeSurface{}
	cfg := Config{
		Height:       20,
		TabBarHeight: 15,
		TagPadding:   4,
		Palette: Palette{
			Background: 1, Text: 2, FocusedTag: 3, UrgentTag: 4,
			TabFocused: 5, TabUnfocused: 6, ShortcutColor: 7, StatusBackdrop: 8,
		},
	}
	return NewManager(logrus.New(), font, surface, cfg), font, surface
}

func TestComputeGeometryAndHitTest(t *testing.T) {
	m, _, _ := newTestManager()
	g := m.ComputeGeometry(1000, []string{"1", "2", "3"}, []string{"x"}, 100)

	require.Len(t, g.Tags, 3)
	// "1" is 8px wide plus padding on both sides.
	assert.Equal(t, 16, g.Tags[0].Width)
	assert.Equal(t, 16, g.Tags[1].X)

	target, ok := g.HitOnClick(2)
	require.True(t, ok)
	assert.Equal(t, Target{Kind: TargetWorkspaceTag, Index: 0}, target)

	target, ok = g.HitOnClick(17)
	require.True(t, ok)
	assert.Equal(t, Target{Kind: TargetWorkspaceTag, Index: 1}, target)

	target, ok = g.HitOnClick(g.Shortcuts[0].X + 1)
	require.True(t, ok)
	assert.Equal(t, Target{Kind: TargetShortcut, Index: 0}, target)

	target, ok = g.HitOnClick(500)
	require.True(t, ok)
	assert.Equal(t, TargetWindowTitle, target.Kind)

	target, ok = g.HitOnClick(950)
	require.True(t, ok)
	assert.Equal(t, TargetStatus, target.Kind)

	_, ok = g.HitOnClick(1500)
	assert.False(t, ok)
}

func TestDrawTagsColors(t *testing.T) {
	m, font, surface := newTestManager()
	g := m.ComputeGeometry(1000, []string{"1", "2", "3"}, nil, 0)
	err := m.DrawTags(10, &g, []string{"1", "2", "3"}, 1, true, []bool{false, false, true})
	require.NoError(t, err)
	require.Len(t, surface.fills, 3)
	assert.Equal(t, uint32(1), surface.fills[0].pixel)
	// Hosted workspace on the focused monitor highlights.
	assert.Equal(t, uint32(3), surface.fills[1].pixel)
	// Urgency wins over everything.
	assert.Equal(t, uint32(4), surface.fills[2].pixel)
	assert.Equal(t, []string{"1", "2", "3"}, font.drawn)
}

func TestDrawTitleClearsEvenWhenEmpty(t *testing.T) {
	m, font, surface := newTestManager()
	g := m.ComputeGeometry(1000, []string{"1"}, nil, 0)
	require.NoError(t, m.DrawTitle(10, &g, ""))
	require.Len(t, surface.fills, 1)
	assert.Empty(t, font.drawn)
	require.NoError(t, m.DrawTitle(10, &g, "hello"))
	assert.Equal(t, []string{"hello"}, font.drawn)
}

func TestDrawTabBarHighlightsFocused(t *testing.T) {
	m, _, surface := newTestManager()
	err := m.DrawTabBar(11, 100, []string{"a", "b", "c"}, 1)
	require.NoError(t, err)
	require.Len(t, surface.fills, 3)
	assert.Equal(t, uint32(6), surface.fills[0].pixel)
	assert.Equal(t, uint32(5), surface.fills[1].pixel)
	assert.Equal(t, uint32(6), surface.fills[2].pixel)
}

func TestTabIndexAt(t *testing.T) {
	m, _, _ := newTestManager()
	i, ok := m.TabIndexAt(100, 3, 0)
	require.True(t, ok)
	assert.Equal(t, 0, i)
	i, ok = m.TabIndexAt(100, 3, 35)
	require.True(t, ok)
	assert.Equal(t, 1, i)
	i, ok = m.TabIndexAt(100, 3, 99)
	require.True(t, ok)
	assert.Equal(t, 2, i)
	_, ok = m.TabIndexAt(100, 3, 120)
	assert.False(t, ok)
	_, ok = m.TabIndexAt(100, 0, 10)
	assert.False(t, ok)
}

func TestStatusWidth(t *testing.T) {
	m, _, _ := newTestManager()
	assert.Equal(t, 0, m.StatusWidth(""))
	assert.Equal(t, 8*5+8, m.StatusWidth("12:00"))
}
