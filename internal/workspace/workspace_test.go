package workspace

import (
	"testing"

	"github.com/jezek/xgb/xproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopywm/canopy/internal/geometry"
	"github.com/canopywm/canopy/internal/properties"
)

func emptyWorkspaces() *Workspaces {
	configs := make([]Config, 9)
	for i := range configs {
		configs[i] = Config{Name: string(rune('1' + i)), DefaultMode: Tiled(geometry.LeftLeader)}
	}
	configs[1].ClassNames = []string{"browser"}
	return New(configs, TilingModifiers{
		LeftLeader:      2.0,
		CenterLeader:    2.0,
		VerticallyTiled: []float32{1, 1, 1, 1, 1, 1, 1, 1},
	})
}

func noFloat() Arrange { return Arrange{Kind: NoFloat} }

func addTiled(w *Workspaces, win xproto.Window, ws int) {
	w.AddChild(win, ws, noFloat(), properties.Passive, &properties.WindowProperties{})
}

func TestInitEmpty(t *testing.T) {
	w := emptyWorkspaces()
	assert.Equal(t, 9, w.Len())
	for i := 0; i < 9; i++ {
		assert.Empty(t, w.WindowsInWs(i))
		assert.Empty(t, w.TiledWindows(i))
	}
	assert.Empty(t, w.AllManagedWindows())
}

func TestClassNameMapping(t *testing.T) {
	w := emptyWorkspaces()
	ws, ok := w.FindWsForClassNames("browser")
	require.True(t, ok)
	assert.Equal(t, 1, ws)
	_, ok = w.FindWsForClassNames("unknown")
	assert.False(t, ok)
	ws, ok = w.FindWsForClassNames("unknown", "browser")
	require.True(t, ok)
	assert.Equal(t, 1, ws)
}

func TestIndexDoesNotLeak(t *testing.T) {
	w := emptyWorkspaces()
	addTiled(w, 10, 0)
	require.NotNil(t, w.FindManaged(10))
	assert.Nil(t, w.FindManaged(11))
	assert.Equal(t, 1, w.ManagedCount())

	w.AddChild(11, 0, Arrange{Kind: FloatingActive}, properties.Passive, &properties.WindowProperties{})
	assert.Equal(t, 2, w.ManagedCount())
	assert.Len(t, w.WindowsInWs(0), 2)
	assert.Len(t, w.TiledWindows(0), 1)
	assert.Nil(t, w.FindAttached(10))

	require.True(t, w.AddAttached(10, 12, Arrange{Kind: FloatingInactive}, properties.Passive, &properties.WindowProperties{}))
	assert.Equal(t, 3, w.ManagedCount())
	assert.Len(t, w.WindowsInWs(0), 3)
	assert.Len(t, w.TiledWindows(0), 1)
	assert.Len(t, w.FindAttached(10), 1)

	res := w.Delete(10)
	assert.Equal(t, DeletedTiledTopLevel, res.Kind)
	// Attached windows leave the index with their parent.
	assert.Nil(t, w.FindManaged(12))
	assert.Equal(t, 1, w.ManagedCount())

	res = w.Delete(11)
	assert.Equal(t, DeletedFloatingTopLevel, res.Kind)
	assert.Equal(t, 0, w.ManagedCount())

	assert.Equal(t, DeleteNone, w.Delete(10).Kind)
}

func TestAddChildTwiceUpdatesArrangeInPlace(t *testing.T) {
	w := emptyWorkspaces()
	addTiled(w, 10, 0)
	addTiled(w, 11, 0)
	w.AddChild(10, 0, Arrange{Kind: FloatingActive}, properties.Passive, &properties.WindowProperties{})
	assert.Len(t, w.WindowsInWs(0), 2)
	assert.True(t, w.IsManagedFloating(10))
}

func TestAttachedToUnknownParent(t *testing.T) {
	w := emptyWorkspaces()
	assert.False(t, w.AddAttached(99, 12, Arrange{Kind: FloatingInactive}, properties.Passive, &properties.WindowProperties{}))
	assert.Equal(t, 0, w.ManagedCount())
}

func TestDeleteAttachedReportsParent(t *testing.T) {
	w := emptyWorkspaces()
	addTiled(w, 10, 0)
	require.True(t, w.AddAttached(10, 12, Arrange{Kind: FloatingInactive}, properties.Passive, &properties.WindowProperties{}))
	res := w.Delete(12)
	assert.Equal(t, DeletedAttachedFloating, res.Kind)
	assert.Equal(t, uint32(10), uint32(res.Parent.Window))
	require.NotNil(t, w.FindManaged(10))
	assert.Equal(t, 1, w.ManagedCount())
}

func TestAddThenDeleteIsIdentity(t *testing.T) {
	w := emptyWorkspaces()
	addTiled(w, 10, 0)
	res := w.Delete(10)
	assert.Equal(t, DeletedTiledTopLevel, res.Kind)
	assert.Empty(t, w.WindowsInWs(0))
	assert.Equal(t, 0, w.ManagedCount())
}

func TestInsertionOrderIsFrontFirst(t *testing.T) {
	w := emptyWorkspaces()
	addTiled(w, 10, 0)
	addTiled(w, 11, 0)
	addTiled(w, 12, 0)
	wins := w.WindowsInWs(0)
	require.Len(t, wins, 3)
	assert.Equal(t, uint32(12), uint32(wins[0].Window))
	assert.Equal(t, uint32(10), uint32(wins[2].Window))
}

func TestSendToFront(t *testing.T) {
	w := emptyWorkspaces()
	addTiled(w, 10, 0)
	addTiled(w, 11, 0)
	w.SendToFront(0, 10)
	assert.Equal(t, uint32(10), uint32(w.WindowsInWs(0)[0].Window))
	// No-op on floating windows.
	w.AddChild(12, 0, Arrange{Kind: FloatingActive}, properties.Passive, &properties.WindowProperties{})
	w.SendToFront(0, 12)
	assert.Equal(t, uint32(10), uint32(w.WindowsInWs(0)[1].Window))
}

func TestCycleTilingMode(t *testing.T) {
	w := emptyWorkspaces()
	assert.Equal(t, Tiled(geometry.LeftLeader), w.EffectiveDrawMode(0))
	w.CycleTilingMode(0)
	assert.Equal(t, Tiled(geometry.CenterLeader), w.EffectiveDrawMode(0))
	w.CycleTilingMode(0)
	assert.Equal(t, Tiled(geometry.LeftLeader), w.EffectiveDrawMode(0))
}

func TestFullscreenRoundTrip(t *testing.T) {
	w := emptyWorkspaces()
	w.SetDrawMode(0, Tabbed(2))
	w.SetFullscreen(0, 10)
	mode := w.Get(0).DrawMode
	assert.Equal(t, DrawFullscreen, mode.Kind)
	assert.Equal(t, uint32(10), uint32(mode.Window))
	// Idempotent while fullscreen.
	w.SetFullscreen(0, 11)
	assert.Equal(t, uint32(10), uint32(w.Get(0).DrawMode.Window))
	require.True(t, w.UnsetFullscreen(0))
	assert.Equal(t, Tabbed(2), w.Get(0).DrawMode)
	assert.False(t, w.UnsetFullscreen(0))
}

func TestEffectiveDrawModeClampsTabIndex(t *testing.T) {
	w := emptyWorkspaces()
	w.SetDrawMode(0, Tabbed(5))
	assert.Equal(t, 0, w.EffectiveDrawMode(0).TabIndex)
	// The stored index survives the clamp.
	assert.Equal(t, 5, w.Get(0).DrawMode.TabIndex)
	for win := xproto.Window(10); win < 17; win++ {
		addTiled(w, win, 0)
	}
	assert.Equal(t, 5, w.EffectiveDrawMode(0).TabIndex)
}

func TestSwitchTabFocus(t *testing.T) {
	w := emptyWorkspaces()
	assert.False(t, w.SwitchTabFocusIndex(0, 1))
	w.SetDrawMode(0, Tabbed(0))
	addTiled(w, 10, 0)
	addTiled(w, 11, 0)
	assert.True(t, w.SwitchTabFocusIndex(0, 1))
	assert.False(t, w.SwitchTabFocusIndex(0, 1))
	assert.True(t, w.TabFocusWindow(10))
	assert.False(t, w.TabFocusWindow(99))
	// Not tabbed: no mutation.
	w.SetDrawMode(0, Tiled(geometry.LeftLeader))
	assert.False(t, w.TabFocusWindow(10))
}

func TestUpdateSizeModifier(t *testing.T) {
	w := emptyWorkspaces()
	assert.False(t, w.UpdateSizeModifier(10, 0.1))
	addTiled(w, 10, 0)
	addTiled(w, 11, 0)
	// Window 11 is at the front, so window 10 occupies slot 1.
	base := w.Get(0).Modifiers.VerticallyTiled[0]
	assert.True(t, w.UpdateSizeModifier(10, 0.1))
	assert.InDelta(t, base+0.1, w.Get(0).Modifiers.VerticallyTiled[0], 1e-6)

	leaderBase := w.Get(0).Modifiers.LeftLeader
	assert.True(t, w.UpdateSizeModifier(11, 0.5))
	assert.InDelta(t, leaderBase+0.5, w.Get(0).Modifiers.LeftLeader, 1e-6)
}

func TestResizePastZeroRejected(t *testing.T) {
	w := emptyWorkspaces()
	addTiled(w, 10, 0)
	addTiled(w, 11, 0)
	base := w.Get(0).Modifiers.VerticallyTiled[0]
	assert.False(t, w.UpdateSizeModifier(10, -10.0))
	assert.InDelta(t, base, w.Get(0).Modifiers.VerticallyTiled[0], 1e-6)
}

func TestClearSizeModifiers(t *testing.T) {
	w := emptyWorkspaces()
	addTiled(w, 10, 0)
	addTiled(w, 11, 0)
	require.True(t, w.UpdateSizeModifier(10, 0.3))
	w.ClearSizeModifiers(0)
	assert.InDelta(t, 1.0, w.Get(0).Modifiers.VerticallyTiled[0], 1e-6)
}

func TestSizeModifierOnlyInTiledMode(t *testing.T) {
	w := emptyWorkspaces()
	addTiled(w, 10, 0)
	w.SetDrawMode(0, Tabbed(0))
	assert.False(t, w.UpdateSizeModifier(10, 0.1))
}

func TestWantsFocus(t *testing.T) {
	w := emptyWorkspaces()
	_, changed := w.SetWantsFocus(10, true)
	assert.False(t, changed)
	addTiled(w, 10, 0)
	ws, changed := w.SetWantsFocus(10, true)
	assert.True(t, changed)
	assert.Equal(t, 0, ws)
	bitmap := w.WantsFocusWorkspaces()
	assert.True(t, bitmap[0])
	assert.False(t, bitmap[1])
	_, changed = w.SetWantsFocus(10, true)
	assert.False(t, changed)
	w.SetWantsFocus(10, false)
	assert.False(t, w.WantsFocusWorkspaces()[0])
}

func TestNextAndPrevWindow(t *testing.T) {
	w := emptyWorkspaces()
	_, ok := w.NextWindow(10)
	assert.False(t, ok)
	addTiled(w, 10, 0)
	_, ok = w.NextWindow(10)
	assert.False(t, ok)
	w.AddChild(11, 0, Arrange{Kind: FloatingActive}, properties.Passive, &properties.WindowProperties{})
	next, ok := w.NextWindow(11)
	require.True(t, ok)
	assert.Equal(t, uint32(10), uint32(next.Window))
	prev, ok := w.PrevWindow(11)
	require.True(t, ok)
	assert.Equal(t, uint32(10), uint32(prev.Window))
	addTiled(w, 12, 0)
	next, _ = w.NextWindow(12)
	assert.Equal(t, uint32(11), uint32(next.Window))
	prev, _ = w.PrevWindow(12)
	assert.Equal(t, uint32(10), uint32(prev.Window))
}

func TestFloatToggles(t *testing.T) {
	w := emptyWorkspaces()
	addTiled(w, 10, 0)
	assert.False(t, w.IsManagedFloating(10))
	assert.True(t, w.IsManagedTiled(10))
	assert.True(t, w.ToggleFloat(10, Arrange{Kind: FloatingInactive, RelX: 0.25, RelY: 0.5}))
	assert.True(t, w.IsManagedFloating(10))
	assert.False(t, w.ToggleFloat(10, Arrange{Kind: FloatingInactive, RelX: 0.25, RelY: 0.5}))
	assert.True(t, w.UnFloat(10))
	assert.False(t, w.UnFloat(10))
	assert.True(t, w.IsManagedTiled(10))
	assert.False(t, w.IsManagedTiled(99))
	assert.False(t, w.IsManagedFloating(99))
}

func TestFindFirstTiled(t *testing.T) {
	w := emptyWorkspaces()
	_, ok := w.FindFirstTiled(0)
	assert.False(t, ok)
	w.AddChild(10, 0, Arrange{Kind: FloatingInactive}, properties.Passive, &properties.WindowProperties{})
	_, ok = w.FindFirstTiled(0)
	assert.False(t, ok)
	require.True(t, w.AddAttached(10, 11, noFloat(), properties.Passive, &properties.WindowProperties{}))
	first, ok := w.FindFirstTiled(0)
	require.True(t, ok)
	assert.Equal(t, uint32(11), uint32(first.Window))
}
