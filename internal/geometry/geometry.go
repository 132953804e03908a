// Package geometry computes tile rectangles for the layout regimes a
// workspace can present. All functions are pure; the manager feeds them
// monitor dimensions and per-workspace size modifiers and issues the
// resulting configure requests.
package geometry

// Rect is a window rectangle in monitor coordinates, excluding borders.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ContainedIn reports whether r lies entirely inside outer.
func (r Rect) ContainedIn(outer Rect) bool {
	return r.X >= outer.X && r.Y >= outer.Y &&
		r.X+r.Width <= outer.X+outer.Width &&
		r.Y+r.Height <= outer.Y+outer.Height
}

// CenteredIn returns r moved so its center coincides with outer's center.
func (r Rect) CenteredIn(outer Rect) Rect {
	return Rect{
		X:      outer.X + (outer.Width-r.Width)/2,
		Y:      outer.Y + (outer.Height-r.Height)/2,
		Width:  r.Width,
		Height: r.Height,
	}
}

// Contains reports whether the point (x, y) is inside r.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

// Layout selects how tiled windows share a monitor.
type Layout int

const (
	// LeftLeader places the first window in a left column and stacks the
	// rest in a right column.
	LeftLeader Layout = iota
	// CenterLeader places the first window in a center column and
	// alternates the rest between left and right columns.
	CenterLeader
)

// Next cycles to the other layout.
func (l Layout) Next() Layout {
	if l == LeftLeader {
		return CenterLeader
	}
	return LeftLeader
}

func (l Layout) String() string {
	if l == CenterLeader {
		return "center-leader"
	}
	return "left-leader"
}

// Params carries the monitor- and workspace-level inputs to a layout pass.
type Params struct {
	MonitorWidth  int
	MonitorHeight int
	Pad           int
	Border        int
	BarHeight     int
	PadOnSingle   bool
}

// CalculateDimensions returns one rectangle per tiled window, in workspace
// child order. vMods holds the vertical size modifier for each stacked
// window (window i+1 uses vMods[i]); leaderMod scales the leader column of
// a LeftLeader layout and centerMod the center column of a CenterLeader
// layout. CenterLeader falls back to LeftLeader below three windows.
func CalculateDimensions(l Layout, p Params, n int, vMods []float32, leaderMod, centerMod float32) []Rect {
	if n == 0 {
		return nil
	}
	height := p.MonitorHeight - p.BarHeight
	if l == CenterLeader && n >= 3 {
		return centerLeaderDimensions(p, height, n, vMods, centerMod)
	}
	return leftLeaderDimensions(p, height, n, vMods, leaderMod)
}

func leftLeaderDimensions(p Params, height, n int, vMods []float32, leaderMod float32) []Rect {
	if n == 1 {
		return []Rect{singleWindow(p, height)}
	}
	dims := make([]Rect, 0, n)
	cols := offsetAndLengths(p.MonitorWidth, p.Pad, p.Border, []float32{leaderMod, 1})
	rows := offsetAndLengths(height, p.Pad, p.Border, vMods[:n-1])
	leaderHeight := sameLengthLen(1, height, p.Pad, p.Border)
	dims = append(dims, Rect{
		X:      cols[0].offset,
		Y:      p.Pad + p.BarHeight,
		Width:  cols[0].length,
		Height: leaderHeight,
	})
	for _, row := range rows {
		dims = append(dims, Rect{
			X:      cols[1].offset,
			Y:      row.offset + p.BarHeight,
			Width:  cols[1].length,
			Height: row.length,
		})
	}
	return dims
}

func centerLeaderDimensions(p Params, height, n int, vMods []float32, centerMod float32) []Rect {
	dims := make([]Rect, 0, n)
	cols := offsetAndLengths(p.MonitorWidth, p.Pad, p.Border, []float32{1, centerMod, 1})
	var leftMods, rightMods []float32
	for i := 1; i < n; i++ {
		if i%2 == 0 {
			leftMods = append(leftMods, vMods[i-1])
		} else {
			rightMods = append(rightMods, vMods[i-1])
		}
	}
	leftRows := offsetAndLengths(height, p.Pad, p.Border, leftMods)
	rightRows := offsetAndLengths(height, p.Pad, p.Border, rightMods)
	dims = append(dims, Rect{
		X:      cols[1].offset,
		Y:      p.Pad + p.BarHeight,
		Width:  cols[1].length,
		Height: sameLengthLen(1, height, p.Pad, p.Border),
	})
	for i := 1; i < n; i++ {
		if i%2 == 0 {
			row := leftRows[i/2-1]
			dims = append(dims, Rect{
				X:      cols[0].offset,
				Y:      row.offset + p.BarHeight,
				Width:  cols[0].length,
				Height: row.length,
			})
		} else {
			row := rightRows[i/2]
			dims = append(dims, Rect{
				X:      cols[2].offset,
				Y:      row.offset + p.BarHeight,
				Width:  cols[2].length,
				Height: row.length,
			})
		}
	}
	return dims
}

func singleWindow(p Params, height int) Rect {
	if !p.PadOnSingle {
		return Rect{X: 0, Y: p.BarHeight, Width: p.MonitorWidth, Height: height}
	}
	w := sameLengthLen(1, p.MonitorWidth, p.Pad, p.Border)
	h := sameLengthLen(1, height, p.Pad, p.Border)
	return Rect{X: p.Pad, Y: p.BarHeight + p.Pad, Width: w, Height: h}
}

// FullscreenDimensions covers the whole monitor, ignoring bar and padding.
func FullscreenDimensions(monitorWidth, monitorHeight int) Rect {
	return Rect{X: 0, Y: 0, Width: monitorWidth, Height: monitorHeight}
}

// TabbedDimensions returns the single rectangle shared by all tabbed
// windows: the n=1 tile shifted down to make room for the tab bar.
func TabbedDimensions(p Params, tabBarHeight int) Rect {
	r := singleWindow(p, p.MonitorHeight-p.BarHeight)
	r.Y += tabBarHeight
	r.Height -= tabBarHeight
	return r
}

// TabSegments splits a tab bar of the given width into n equal segments,
// distributing remainder pixels to the leftmost segments. Returned values
// are x offsets and widths relative to the bar window.
func TabSegments(width, n int) []Rect {
	if n <= 0 {
		return nil
	}
	base := width / n
	rem := width % n
	segs := make([]Rect, 0, n)
	x := 0
	for i := 0; i < n; i++ {
		w := base
		if i < rem {
			w++
		}
		segs = append(segs, Rect{X: x, Width: w})
		x += w
	}
	return segs
}

type span struct {
	offset int
	length int
}

// offsetAndLengths splits totalSpace into one span per modifier, widths
// proportional to the modifiers, leaving pad between spans and room for
// two borders around each. Rounding remainder is handed out one pixel at a
// time to the earliest spans so the lengths sum exactly.
func offsetAndLengths(totalSpace, pad, border int, mods []float32) []span {
	n := len(mods)
	if n == 0 {
		return nil
	}
	available := availableSpace(totalSpace, n, pad, border)
	var sum float32
	for _, m := range mods {
		sum += m
	}
	lengths := make([]int, n)
	used := 0
	for i, m := range mods {
		lengths[i] = int(m / sum * float32(available))
		used += lengths[i]
	}
	for i := 0; i < available-used; i++ {
		lengths[i%n]++
	}
	spans := make([]span, 0, n)
	placed := 0
	for i, length := range lengths {
		spans = append(spans, span{offset: lineOffset(i, pad, border, placed), length: length})
		placed += length
	}
	return spans
}

func sameLengthLen(n, total, pad, border int) int {
	return (total - 2*(pad+border) - (n-1)*(2*border+pad)) / n
}

func lineOffset(order, pad, border, placed int) int {
	return (order+1)*pad + order*2*border + placed
}

func availableSpace(total, n, pad, border int) int {
	s := total - ((n+1)*pad + 2*n*border)
	if s < 0 {
		return 0
	}
	return s
}
