// Package state holds the process-wide runtime state of the window
// manager. One event-loop goroutine owns a State exclusively; every other
// component borrows it for the duration of one event's handling.
package state

import (
	"container/heap"
	"math"
	"time"

	"github.com/jezek/xgb/xproto"

	"github.com/canopywm/canopy/internal/bar"
	"github.com/canopywm/canopy/internal/geometry"
	"github.com/canopywm/canopy/internal/workspace"
	"github.com/canopywm/canopy/pkg/config"
)

// None is the X11 null window.
const None xproto.Window = 0

// Monitor is one output with its hosted workspace and bar surfaces.
type Monitor struct {
	BarWin          xproto.Window
	TabBarWin       xproto.Window
	BarGeometry     bar.Geometry
	Dimensions      geometry.Rect
	HostedWorkspace int
	// LastFocus is the window to restore focus to when the monitor
	// regains it; None when the monitor never held a focused window.
	LastFocus   xproto.Window
	ShowBar     bool
	WindowTitle string
	// Status is the last rendered status text for this monitor's bar.
	Status string
}

// DragPosition remembers where a drag started so motion events can be
// turned into window positions.
type DragPosition struct {
	OriginX      int
	OriginY      int
	EventOriginX int
	EventOriginY int
}

// CurrentPosition translates a cursor position into the dragged window's
// new origin.
func (d DragPosition) CurrentPosition(cursorX, cursorY int) (int, int) {
	return d.OriginX + cursorX - d.EventOriginX, d.OriginY + cursorY - d.EventOriginY
}

// Drag is an in-progress pointer drag of a floating window.
type Drag struct {
	Window   xproto.Window
	Position DragPosition
}

// DyingWindow is one entry in the close-escalation queue.
type DyingWindow struct {
	Win         xproto.Window
	DieAt       time.Time
	SentDestroy bool
}

// ShouldDestroy reports whether the delete grace period has elapsed.
func (d DyingWindow) ShouldDestroy(now time.Time) bool {
	return !now.Before(d.DieAt)
}

// ShouldKill reports whether the destroy grace period has also elapsed.
func (d DyingWindow) ShouldKill(now time.Time, killAfter time.Duration) bool {
	return d.SentDestroy && !now.Before(d.DieAt.Add(killAfter))
}

// KeyBindingKey identifies a grabbed key chord.
type KeyBindingKey struct {
	Code uint8
	Mods uint16
}

// MouseBindingKey identifies a bound button press on a target.
type MouseBindingKey struct {
	Button uint8
	Mods   uint16
	Target bar.TargetKind
}

// State is the singleton runtime state.
type State struct {
	Screen     *xproto.ScreenInfo
	WMCheckWin xproto.Window
	// InternCreatedWindows tracks windows the WM created for itself (bar,
	// tab bar, check window) so the startup scan never adopts them.
	InternCreatedWindows map[xproto.Window]struct{}

	Monitors   []Monitor
	Workspaces *workspace.Workspaces

	FocusedMon int
	// InputFocus is the window currently holding input focus; None when
	// focus is on no managed window.
	InputFocus     xproto.Window
	DragWindow     *Drag
	PointerGrabbed bool
	LastTimestamp  xproto.Timestamp

	DyingWindows  []DyingWindow
	ignoredSeqs   seqHeap
	KeyBindings   map[KeyBindingKey]config.Action
	MouseBindings map[MouseBindingKey]config.Action

	Palette     *config.Palette
	BorderWidth int
	Padding     int
}

// New creates runtime state around the given workspaces and bindings.
func New(screen *xproto.ScreenInfo, ws *workspace.Workspaces, palette *config.Palette, borderWidth, padding int) *State {
	return &State{
		Screen:               screen,
		InternCreatedWindows: make(map[xproto.Window]struct{}),
		Workspaces:           ws,
		KeyBindings:          make(map[KeyBindingKey]config.Action),
		MouseBindings:        make(map[MouseBindingKey]config.Action),
		Palette:              palette,
		BorderWidth:          borderWidth,
		Padding:              padding,
	}
}

// MarkInternCreated records a WM-owned auxiliary window.
func (s *State) MarkInternCreated(win xproto.Window) {
	s.InternCreatedWindows[win] = struct{}{}
}

// IsInternCreated reports whether win is WM-owned.
func (s *State) IsInternCreated(win xproto.Window) bool {
	_, ok := s.InternCreatedWindows[win]
	return ok
}

// PushSequence records an outgoing request whose echoed EnterNotify or
// UnmapNotify must be dropped.
func (s *State) PushSequence(seq uint16) {
	heap.Push(&s.ignoredSeqs, seq)
}

// ShouldIgnoreSequence reports whether an incoming event with the given
// sequence number was self-induced. Sequence numbers wrap, so the head
// comparison uses modular tolerance: head values within half the range
// above the event count as "not yet reached". Stale heads are drained.
func (s *State) ShouldIgnoreSequence(seq uint16) bool {
	for s.ignoredSeqs.Len() > 0 {
		head := s.ignoredSeqs[0]
		if head-seq <= math.MaxUint16/2 {
			return head == seq
		}
		heap.Pop(&s.ignoredSeqs)
	}
	return false
}

// IgnoredSequenceCount returns the number of pending ignored sequences.
func (s *State) IgnoredSequenceCount() int { return s.ignoredSeqs.Len() }

// MarkForDeath queues win for the destroy/kill escalation.
func (s *State) MarkForDeath(win xproto.Window, destroyAfter time.Duration, now time.Time) {
	s.DyingWindows = append(s.DyingWindows, DyingWindow{Win: win, DieAt: now.Add(destroyAfter)})
}

// UnmarkForDeath removes win from the escalation queue, reporting whether
// it was queued.
func (s *State) UnmarkForDeath(win xproto.Window) bool {
	for i := range s.DyingWindows {
		if s.DyingWindows[i].Win == win {
			s.DyingWindows = append(s.DyingWindows[:i], s.DyingWindows[i+1:]...)
			return true
		}
	}
	return false
}

// NextDeathDeadline returns the earliest pending escalation deadline.
func (s *State) NextDeathDeadline(killAfter time.Duration) (time.Time, bool) {
	if len(s.DyingWindows) == 0 {
		return time.Time{}, false
	}
	head := s.DyingWindows[0]
	if head.SentDestroy {
		return head.DieAt.Add(killAfter), true
	}
	return head.DieAt, true
}

// FindMonitorAt returns the monitor containing the point, matching on the
// horizontal extent the way multi-head strips are laid out.
func (s *State) FindMonitorAt(x, y int) (int, bool) {
	for i := range s.Monitors {
		d := s.Monitors[i].Dimensions
		if x >= d.X && x <= d.X+d.Width {
			return i, true
		}
	}
	return 0, false
}

// FindMonitorHostingWorkspace returns the monitor hosting workspace ws.
func (s *State) FindMonitorHostingWorkspace(ws int) (int, bool) {
	for i := range s.Monitors {
		if s.Monitors[i].HostedWorkspace == ws {
			return i, true
		}
	}
	return 0, false
}

// FindMonitorFocusingWindow returns the monitor whose last focus is win.
func (s *State) FindMonitorFocusingWindow(win xproto.Window) (int, bool) {
	for i := range s.Monitors {
		if s.Monitors[i].LastFocus == win && win != None {
			return i, true
		}
	}
	return 0, false
}

// FindMonitorIndexOfWindow returns the monitor currently displaying win.
func (s *State) FindMonitorIndexOfWindow(win xproto.Window) (int, bool) {
	ws, ok := s.Workspaces.FindWsContaining(win)
	if !ok {
		return 0, false
	}
	return s.FindMonitorHostingWorkspace(ws)
}

// FindFirstFocusCandidate picks the window focus should land on when a
// monitor gains focus: its remembered focus, else the draw-mode-relevant
// first tiled window.
func (s *State) FindFirstFocusCandidate(monIdx int) (xproto.Window, bool) {
	mon := &s.Monitors[monIdx]
	if mon.LastFocus != None {
		return mon.LastFocus, true
	}
	tiled := s.Workspaces.TiledWindows(mon.HostedWorkspace)
	if len(tiled) == 0 {
		return None, false
	}
	mode := s.Workspaces.EffectiveDrawMode(mon.HostedWorkspace)
	switch mode.Kind {
	case workspace.DrawTabbed:
		return tiled[mode.TabIndex].Window, true
	case workspace.DrawFullscreen:
		if mw := s.Workspaces.FindManaged(mode.Window); mw != nil {
			return mw.Window, true
		}
		return tiled[0].Window, true
	default:
		return tiled[0].Window, true
	}
}

// UpdateFocusedMon switches the focused monitor, returning the previous
// one, or false when it did not change.
func (s *State) UpdateFocusedMon(newFocus int) (int, bool) {
	if s.FocusedMon == newFocus {
		return 0, false
	}
	prev := s.FocusedMon
	s.FocusedMon = newFocus
	return prev, true
}

// GetKeyAction looks up the action bound to a key chord.
func (s *State) GetKeyAction(code uint8, mods uint16) (config.Action, bool) {
	a, ok := s.KeyBindings[KeyBindingKey{Code: code, Mods: mods}]
	return a, ok
}

// GetMouseAction looks up the action bound to a button press on a target.
func (s *State) GetMouseAction(button uint8, mods uint16, target bar.TargetKind) (config.Action, bool) {
	a, ok := s.MouseBindings[MouseBindingKey{Button: button, Mods: mods, Target: target}]
	return a, ok
}

// GetHitBarComponent hit-tests a click at absolute x against a monitor's
// bar window.
func (s *State) GetHitBarComponent(clicked xproto.Window, x, monIdx int) (bar.Target, bool) {
	mon := &s.Monitors[monIdx]
	if mon.BarWin == None || clicked != mon.BarWin {
		return bar.Target{}, false
	}
	return mon.BarGeometry.HitOnClick(x - mon.Dimensions.X)
}

// seqHeap is a min-heap of 16-bit sequence numbers.
type seqHeap []uint16

func (h seqHeap) Len() int            { return len(h) }
func (h seqHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h seqHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *seqHeap) Push(x interface{}) { *h = append(*h, x.(uint16)) }
func (h *seqHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}
