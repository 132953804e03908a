package state

import (
	"math"
	"testing"
	"time"

	"github.com/jezek/xgb/xproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopywm/canopy/internal/geometry"
	"github.com/canopywm/canopy/internal/properties"
	"github.com/canopywm/canopy/internal/workspace"
)

var testScreen = xproto.ScreenInfo{Root: 1, WidthInPixels: 2000, HeightInPixels: 1000}

func baseState() *State {
	configs := make([]workspace.Config, 9)
	for i := range configs {
		configs[i] = workspace.Config{Name: string(rune('1' + i)), DefaultMode: workspace.Tiled(geometry.LeftLeader)}
	}
	ws := workspace.New(configs, workspace.TilingModifiers{
		LeftLeader: 2, CenterLeader: 2, VerticallyTiled: []float32{1, 1, 1, 1, 1, 1, 1, 1},
	})
	s := New(&testScreen, ws, nil, 2, 4)
	s.Monitors = []Monitor{
		{Dimensions: geometry.Rect{X: 0, Y: 0, Width: 1000, Height: 1000}, HostedWorkspace: 0},
		{Dimensions: geometry.Rect{X: 1000, Y: 0, Width: 1000, Height: 1000}, HostedWorkspace: 1},
	}
	return s
}

func TestIgnoreSequences(t *testing.T) {
	s := baseState()
	s.PushSequence(55)
	assert.False(t, s.ShouldIgnoreSequence(54))
	assert.True(t, s.ShouldIgnoreSequence(55))
	// Sequence numbers can repeat across events, keep ignoring.
	assert.True(t, s.ShouldIgnoreSequence(55))
	assert.False(t, s.ShouldIgnoreSequence(56))
	// Processing a later sequence drained the stale entry.
	assert.False(t, s.ShouldIgnoreSequence(55))
}

func TestIgnoreSequencesWraparound(t *testing.T) {
	s := baseState()
	s.PushSequence(math.MaxUint16 - 3)
	// Events slightly before the head do not drain it, even though a
	// naive comparison would see them as "greater".
	assert.False(t, s.ShouldIgnoreSequence(math.MaxUint16-5))
	assert.Equal(t, 1, s.IgnoredSequenceCount())
	assert.True(t, s.ShouldIgnoreSequence(math.MaxUint16-3))
	// An event past the head across the wrap point drains it.
	assert.False(t, s.ShouldIgnoreSequence(2))
	assert.Equal(t, 0, s.IgnoredSequenceCount())

	// A sequence recorded after the counter wrapped still filters.
	s.PushSequence(2)
	assert.True(t, s.ShouldIgnoreSequence(2))
	assert.False(t, s.ShouldIgnoreSequence(7))
	assert.Equal(t, 0, s.IgnoredSequenceCount())
}

func TestFindMonitor(t *testing.T) {
	s := baseState()
	s.Workspaces.AddChild(15, 0, workspace.Arrange{Kind: workspace.NoFloat}, properties.Passive, &properties.WindowProperties{})

	_, ok := s.FindMonitorFocusingWindow(15)
	assert.False(t, ok)
	s.Monitors[0].LastFocus = 15
	mon, ok := s.FindMonitorFocusingWindow(15)
	require.True(t, ok)
	assert.Equal(t, 0, mon)

	mon, ok = s.FindMonitorIndexOfWindow(15)
	require.True(t, ok)
	assert.Equal(t, 0, mon)
	_, ok = s.FindMonitorIndexOfWindow(99)
	assert.False(t, ok)

	mon, ok = s.FindMonitorHostingWorkspace(1)
	require.True(t, ok)
	assert.Equal(t, 1, mon)
	_, ok = s.FindMonitorHostingWorkspace(5)
	assert.False(t, ok)

	mon, _ = s.FindMonitorAt(0, 0)
	assert.Equal(t, 0, mon)
	mon, _ = s.FindMonitorAt(1000, 500)
	assert.Equal(t, 0, mon)
	mon, _ = s.FindMonitorAt(1001, 0)
	assert.Equal(t, 1, mon)
	_, ok = s.FindMonitorAt(5000, 0)
	assert.False(t, ok)
}

func TestFirstFocusCandidate(t *testing.T) {
	s := baseState()
	_, ok := s.FindFirstFocusCandidate(0)
	assert.False(t, ok)

	s.Workspaces.AddChild(10, 0, workspace.Arrange{Kind: workspace.NoFloat}, properties.Passive, &properties.WindowProperties{})
	s.Workspaces.AddChild(11, 0, workspace.Arrange{Kind: workspace.NoFloat}, properties.Passive, &properties.WindowProperties{})
	win, ok := s.FindFirstFocusCandidate(0)
	require.True(t, ok)
	assert.Equal(t, uint32(11), uint32(win))

	// Remembered focus wins.
	s.Monitors[0].LastFocus = 10
	win, _ = s.FindFirstFocusCandidate(0)
	assert.Equal(t, uint32(10), uint32(win))

	// Tabbed workspaces focus the focused tab.
	s.Monitors[0].LastFocus = None
	s.Workspaces.SetDrawMode(0, workspace.Tabbed(1))
	win, _ = s.FindFirstFocusCandidate(0)
	assert.Equal(t, uint32(10), uint32(win))
}

func TestDyingWindows(t *testing.T) {
	s := baseState()
	now := time.Now()
	s.MarkForDeath(10, 2*time.Second, now)
	require.Len(t, s.DyingWindows, 1)
	d := s.DyingWindows[0]
	assert.False(t, d.ShouldDestroy(now))
	assert.True(t, d.ShouldDestroy(now.Add(2*time.Second)))
	assert.False(t, d.ShouldKill(now.Add(10*time.Second), 5*time.Second))
	d.SentDestroy = true
	assert.False(t, d.ShouldKill(now.Add(6*time.Second), 5*time.Second))
	assert.True(t, d.ShouldKill(now.Add(7*time.Second), 5*time.Second))

	deadline, ok := s.NextDeathDeadline(5 * time.Second)
	require.True(t, ok)
	assert.Equal(t, now.Add(2*time.Second), deadline)
	s.DyingWindows[0].SentDestroy = true
	deadline, _ = s.NextDeathDeadline(5 * time.Second)
	assert.Equal(t, now.Add(7*time.Second), deadline)

	assert.True(t, s.UnmarkForDeath(10))
	assert.False(t, s.UnmarkForDeath(10))
	_, ok = s.NextDeathDeadline(5 * time.Second)
	assert.False(t, ok)
}

func TestUpdateFocusedMon(t *testing.T) {
	s := baseState()
	_, changed := s.UpdateFocusedMon(0)
	assert.False(t, changed)
	prev, changed := s.UpdateFocusedMon(1)
	require.True(t, changed)
	assert.Equal(t, 0, prev)
	assert.Equal(t, 1, s.FocusedMon)
}

func TestInternCreatedWindows(t *testing.T) {
	s := baseState()
	assert.False(t, s.IsInternCreated(42))
	s.MarkInternCreated(42)
	assert.True(t, s.IsInternCreated(42))
}

func TestDragPosition(t *testing.T) {
	d := DragPosition{OriginX: 100, OriginY: 200, EventOriginX: 110, EventOriginY: 220}
	x, y := d.CurrentPosition(150, 250)
	assert.Equal(t, 140, x)
	assert.Equal(t, 230, y)
}
