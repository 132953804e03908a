package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testParams = Params{
	MonitorWidth:  1000,
	MonitorHeight: 1000,
	Pad:           5,
	Border:        10,
	BarHeight:     20,
	PadOnSingle:   true,
}

func calculate(t *testing.T, l Layout, p Params, n int) []Rect {
	t.Helper()
	vMods := []float32{1, 1, 1, 1, 1, 1, 1, 1, 1}
	dims := CalculateDimensions(l, p, n, vMods, 2.0, 2.0)
	require.Len(t, dims, n)
	return dims
}

func TestNoWindows(t *testing.T) {
	assert.Empty(t, CalculateDimensions(LeftLeader, testParams, 0, nil, 2.0, 2.0))
}

func TestSingleWindowPadded(t *testing.T) {
	dims := calculate(t, LeftLeader, testParams, 1)
	single := dims[0]
	assert.Equal(t, 1000-2*5-2*10, single.Width)
	assert.Equal(t, 1000-2*5-2*10-20, single.Height)
	assert.Equal(t, 5, single.X)
	assert.Equal(t, 5+20, single.Y)
}

func TestSingleWindowNoPad(t *testing.T) {
	p := testParams
	p.PadOnSingle = false
	dims := calculate(t, LeftLeader, p, 1)
	single := dims[0]
	assert.Equal(t, 1000, single.Width)
	assert.Equal(t, 1000-20, single.Height)
	assert.Equal(t, 0, single.X)
	assert.Equal(t, 20, single.Y)
}

func TestLeftLeaderTwoWindows(t *testing.T) {
	dims := calculate(t, LeftLeader, testParams, 2)
	expectedHeight := 1000 - 20 - 2*5 - 2*10
	assert.Equal(t, expectedHeight, dims[0].Height)
	assert.Equal(t, expectedHeight, dims[1].Height)
	expectedY := 20 + 5
	assert.Equal(t, expectedY, dims[0].Y)
	assert.Equal(t, expectedY, dims[1].Y)
	rightX := dims[0].X + dims[0].Width + 2*10 + 5
	assert.Equal(t, rightX, dims[1].X)
	// Tiles edge to edge: no leaked pixels on the right side.
	assert.Equal(t, 1000, rightX+10+dims[1].Width+10+5)
}

func TestLeftLeaderGeometryExact(t *testing.T) {
	p := Params{MonitorWidth: 1000, MonitorHeight: 800, Pad: 5, Border: 10, BarHeight: 20, PadOnSingle: true}
	dims := CalculateDimensions(LeftLeader, p, 2, []float32{1}, 2.0, 2.0)
	require.Len(t, dims, 2)
	// Inner width 1000 - 3*5 - 4*10 = 945, split 2:1.
	assert.Equal(t, 630, dims[0].Width)
	assert.Equal(t, 315, dims[1].Width)
	assert.Equal(t, 750, dims[0].Height)
	assert.Equal(t, 750, dims[1].Height)
}

func TestLeftLeaderThreeWindowsStacksRight(t *testing.T) {
	dims := calculate(t, LeftLeader, testParams, 3)
	assert.Equal(t, 20+5, dims[0].Y)
	assert.Equal(t, 20+5, dims[1].Y)
	rightX := dims[0].X + dims[0].Width + 2*10 + 5
	assert.Equal(t, rightX, dims[1].X)
	assert.Equal(t, rightX, dims[2].X)
	assert.Greater(t, dims[2].Y, dims[1].Y)
	// Rows fill the column exactly.
	assert.Equal(t, 1000, dims[2].Y+dims[2].Height+10+10+5)
}

func TestWidthsSumExactly(t *testing.T) {
	for n := 2; n <= 9; n++ {
		dims := calculate(t, LeftLeader, testParams, n)
		last := dims[len(dims)-1]
		assert.Equal(t, 1000, last.X+last.Width+2*10+5, "n=%d", n)
	}
}

func TestCenterLeaderFallsBackBelowThree(t *testing.T) {
	left := calculate(t, LeftLeader, testParams, 2)
	center := calculate(t, CenterLeader, testParams, 2)
	assert.Equal(t, left, center)
}

func TestCenterLeaderAlternatesSides(t *testing.T) {
	dims := calculate(t, CenterLeader, testParams, 5)
	leader := dims[0]
	// Window 1 right of leader, window 2 left of it, and so on.
	assert.Greater(t, dims[1].X, leader.X)
	assert.Less(t, dims[2].X, leader.X)
	assert.Equal(t, dims[1].X, dims[3].X)
	assert.Equal(t, dims[2].X, dims[4].X)
	// Center column is widest with modifier 2.
	assert.Greater(t, leader.Width, dims[1].Width)
}

func TestFullscreenDimensions(t *testing.T) {
	r := FullscreenDimensions(1920, 1080)
	assert.Equal(t, Rect{X: 0, Y: 0, Width: 1920, Height: 1080}, r)
}

func TestTabbedDimensions(t *testing.T) {
	p := testParams
	p.PadOnSingle = false
	r := TabbedDimensions(p, 15)
	assert.Equal(t, 20+15, r.Y)
	assert.Equal(t, 1000-20-15, r.Height)
	assert.Equal(t, 1000, r.Width)
}

func TestTabSegmentsDistributesRemainderLeft(t *testing.T) {
	segs := TabSegments(100, 3)
	require.Len(t, segs, 3)
	assert.Equal(t, 34, segs[0].Width)
	assert.Equal(t, 33, segs[1].Width)
	assert.Equal(t, 33, segs[2].Width)
	assert.Equal(t, 0, segs[0].X)
	assert.Equal(t, 34, segs[1].X)
	assert.Equal(t, 67, segs[2].X)
}

func TestRectHelpers(t *testing.T) {
	outer := Rect{X: 100, Y: 100, Width: 500, Height: 400}
	inner := Rect{X: 0, Y: 0, Width: 200, Height: 150}
	assert.False(t, inner.ContainedIn(outer))
	centered := inner.CenteredIn(outer)
	assert.Equal(t, Rect{X: 250, Y: 225, Width: 200, Height: 150}, centered)
	assert.True(t, centered.ContainedIn(outer))
	assert.True(t, outer.Contains(300, 300))
	assert.False(t, outer.Contains(50, 300))
}
