// Package workspace holds the window data model: workspaces, their
// top-level and attached windows, draw-mode state and per-workspace size
// modifiers. Windows are keyed by identifier through a reverse index, so
// no component holds pointers across workspaces.
package workspace

import (
	"github.com/jezek/xgb/xproto"

	"github.com/canopywm/canopy/internal/geometry"
	"github.com/canopywm/canopy/internal/properties"
)

// ArrangeKind is how a managed window participates in layout.
type ArrangeKind int

const (
	// NoFloat means the window is tiled.
	NoFloat ArrangeKind = iota
	// FloatingActive means the window floats and is being interacted with.
	FloatingActive
	// FloatingInactive means the window floats at a stored position.
	FloatingInactive
)

// Arrange couples an ArrangeKind with the monitor-relative anchor kept for
// FloatingInactive windows. The anchor survives moves between monitors.
type Arrange struct {
	Kind ArrangeKind
	// RelX, RelY are the window origin relative to its monitor, in [0,1].
	RelX float32
	RelY float32
}

// Floating reports whether the arrangement is any floating kind.
func (a Arrange) Floating() bool { return a.Kind != NoFloat }

// DrawKind is the layout regime a workspace presents.
type DrawKind int

const (
	DrawTiled DrawKind = iota
	DrawTabbed
	DrawFullscreen
)

// DrawMode is a workspace's current draw state. Fullscreen remembers the
// exact prior tiled/tabbed mode so toggling restores it losslessly.
type DrawMode struct {
	Kind     DrawKind
	Layout   geometry.Layout
	TabIndex int
	// Window is the fullscreened window when Kind is DrawFullscreen.
	Window xproto.Window
	// PriorKind/PriorLayout/PriorTab describe the mode to restore when
	// fullscreen is unset.
	PriorKind   DrawKind
	PriorLayout geometry.Layout
	PriorTab    int
}

// Tiled is a tiled draw mode with the given layout.
func Tiled(l geometry.Layout) DrawMode {
	return DrawMode{Kind: DrawTiled, Layout: l}
}

// Tabbed is a tabbed draw mode focusing tab i.
func Tabbed(i int) DrawMode {
	return DrawMode{Kind: DrawTabbed, TabIndex: i}
}

// ManagedWindow is one client window under WM control.
type ManagedWindow struct {
	Window     xproto.Window
	Arrange    Arrange
	FocusStyle properties.FocusStyle
	WantsFocus bool
	Properties *properties.WindowProperties
}

// Child is a top-level window plus the transients and group members that
// share its placement but draw floating above it.
type Child struct {
	Managed  ManagedWindow
	Attached []ManagedWindow
}

// TilingModifiers are the user-adjustable size weights of a workspace.
// All values are strictly positive.
type TilingModifiers struct {
	LeftLeader      float32
	CenterLeader    float32
	VerticallyTiled []float32
}

func (t TilingModifiers) clone() TilingModifiers {
	vt := make([]float32, len(t.VerticallyTiled))
	copy(vt, t.VerticallyTiled)
	return TilingModifiers{
		LeftLeader:      t.LeftLeader,
		CenterLeader:    t.CenterLeader,
		VerticallyTiled: vt,
	}
}

// Workspace is an ordered set of children under one draw mode. Ordering is
// insertion order (new windows in front) with a send-to-front operation.
type Workspace struct {
	Name      string
	DrawMode  DrawMode
	Children  []Child
	Modifiers TilingModifiers
}

// DeleteKind classifies what Delete removed, so the caller knows whether a
// redraw (tiled kinds) or a parent refocus (attached kinds) is due.
type DeleteKind int

const (
	DeleteNone DeleteKind = iota
	DeletedTiledTopLevel
	DeletedFloatingTopLevel
	DeletedAttachedTiled
	DeletedAttachedFloating
)

// DeleteResult reports what Delete removed. For attached kinds, Parent is
// the top-level window the removed window was attached to.
type DeleteResult struct {
	Kind    DeleteKind
	Removed ManagedWindow
	Parent  ManagedWindow
}

// Config seeds one workspace.
type Config struct {
	Name        string
	DefaultMode DrawMode
	// ClassNames maps WM_CLASS instance/class names onto this workspace.
	ClassNames []string
}

// Workspaces owns every workspace and the window-to-workspace reverse
// index. It is the arena every other component looks windows up in.
type Workspaces struct {
	spaces        []Workspace
	winToWs       map[xproto.Window]int
	nameToWs      map[string]int
	baseModifiers TilingModifiers
}

// New creates empty workspaces from configuration.
func New(configs []Config, modifiers TilingModifiers) *Workspaces {
	w := &Workspaces{
		spaces:        make([]Workspace, 0, len(configs)),
		winToWs:       make(map[xproto.Window]int),
		nameToWs:      make(map[string]int),
		baseModifiers: modifiers,
	}
	for i, cfg := range configs {
		w.spaces = append(w.spaces, Workspace{
			Name:      cfg.Name,
			DrawMode:  cfg.DefaultMode,
			Modifiers: modifiers.clone(),
		})
		for _, name := range cfg.ClassNames {
			w.nameToWs[name] = i
		}
	}
	return w
}

// Len returns the number of workspaces.
func (w *Workspaces) Len() int { return len(w.spaces) }

// Get returns the workspace at index ws.
func (w *Workspaces) Get(ws int) *Workspace { return &w.spaces[ws] }

// Names returns the workspace names in order.
func (w *Workspaces) Names() []string {
	names := make([]string, len(w.spaces))
	for i := range w.spaces {
		names[i] = w.spaces[i].Name
	}
	return names
}

// FindWsForClassNames returns the workspace a WM_CLASS name is mapped to.
func (w *Workspaces) FindWsForClassNames(names ...string) (int, bool) {
	for _, n := range names {
		if ws, ok := w.nameToWs[n]; ok {
			return ws, true
		}
	}
	return 0, false
}

// FindWsContaining returns the workspace holding win.
func (w *Workspaces) FindWsContaining(win xproto.Window) (int, bool) {
	ws, ok := w.winToWs[win]
	return ws, ok
}

// AllManagedWindows returns every window in the reverse index.
func (w *Workspaces) AllManagedWindows() []xproto.Window {
	wins := make([]xproto.Window, 0, len(w.winToWs))
	for win := range w.winToWs {
		wins = append(wins, win)
	}
	return wins
}

// ManagedCount returns the number of managed windows.
func (w *Workspaces) ManagedCount() int { return len(w.winToWs) }

// AddChild inserts win at the front of workspace ws and records it in the
// reverse index. A window already present in that workspace only has its
// arrangement updated in place.
func (w *Workspaces) AddChild(win xproto.Window, ws int, arrange Arrange, style properties.FocusStyle, props *properties.WindowProperties) {
	w.winToWs[win] = ws
	space := &w.spaces[ws]
	for i := range space.Children {
		if space.Children[i].Managed.Window == win {
			space.Children[i].Managed.Arrange = arrange
			return
		}
	}
	space.Children = append([]Child{{
		Managed: ManagedWindow{Window: win, Arrange: arrange, FocusStyle: style, Properties: props},
	}}, space.Children...)
}

// AddAttached records win behind parent's child record. Returns false when
// parent is unknown; the caller then promotes win to a top-level child.
func (w *Workspaces) AddAttached(parent, win xproto.Window, arrange Arrange, style properties.FocusStyle, props *properties.WindowProperties) bool {
	ws, ok := w.winToWs[parent]
	if !ok {
		return false
	}
	space := &w.spaces[ws]
	for i := range space.Children {
		if space.Children[i].Managed.Window != parent {
			continue
		}
		ch := &space.Children[i]
		for j := range ch.Attached {
			if ch.Attached[j].Window == win {
				ch.Attached[j].Arrange = arrange
				w.winToWs[win] = ws
				return true
			}
		}
		ch.Attached = append([]ManagedWindow{{
			Window: win, Arrange: arrange, FocusStyle: style, Properties: props,
		}}, ch.Attached...)
		w.winToWs[win] = ws
		return true
	}
	return false
}

// Delete removes win wherever it is. Deleting a top-level child also drops
// its attached windows from the reverse index.
func (w *Workspaces) Delete(win xproto.Window) DeleteResult {
	ws, ok := w.winToWs[win]
	if !ok {
		return DeleteResult{Kind: DeleteNone}
	}
	delete(w.winToWs, win)
	space := &w.spaces[ws]
	for i := range space.Children {
		if space.Children[i].Managed.Window == win {
			ch := space.Children[i]
			for _, att := range ch.Attached {
				delete(w.winToWs, att.Window)
			}
			space.Children = append(space.Children[:i], space.Children[i+1:]...)
			kind := DeletedTiledTopLevel
			if ch.Managed.Arrange.Floating() {
				kind = DeletedFloatingTopLevel
			}
			return DeleteResult{Kind: kind, Removed: ch.Managed}
		}
	}
	for i := range space.Children {
		ch := &space.Children[i]
		for j := range ch.Attached {
			if ch.Attached[j].Window == win {
				removed := ch.Attached[j]
				ch.Attached = append(ch.Attached[:j], ch.Attached[j+1:]...)
				kind := DeletedAttachedTiled
				if removed.Arrange.Floating() {
					kind = DeletedAttachedFloating
				}
				return DeleteResult{Kind: kind, Removed: removed, Parent: ch.Managed}
			}
		}
	}
	return DeleteResult{Kind: DeleteNone}
}

// FindManaged returns the managed window record for win. The pointer is
// valid until the next structural mutation.
func (w *Workspaces) FindManaged(win xproto.Window) *ManagedWindow {
	ws, ok := w.winToWs[win]
	if !ok {
		return nil
	}
	space := &w.spaces[ws]
	for i := range space.Children {
		if space.Children[i].Managed.Window == win {
			return &space.Children[i].Managed
		}
		for j := range space.Children[i].Attached {
			if space.Children[i].Attached[j].Window == win {
				return &space.Children[i].Attached[j]
			}
		}
	}
	return nil
}

// FindManagedParent returns the top-level window an attached child hangs
// off, or nil when win is not attached.
func (w *Workspaces) FindManagedParent(win xproto.Window) *ManagedWindow {
	ws, ok := w.winToWs[win]
	if !ok {
		return nil
	}
	space := &w.spaces[ws]
	for i := range space.Children {
		for j := range space.Children[i].Attached {
			if space.Children[i].Attached[j].Window == win {
				return &space.Children[i].Managed
			}
		}
	}
	return nil
}

// FindAttached returns the windows attached to parent, or nil.
func (w *Workspaces) FindAttached(parent xproto.Window) []ManagedWindow {
	ws, ok := w.winToWs[parent]
	if !ok {
		return nil
	}
	space := &w.spaces[ws]
	for i := range space.Children {
		if space.Children[i].Managed.Window == parent {
			return space.Children[i].Attached
		}
	}
	return nil
}

// WindowsInWs returns every window in workspace ws, top-level first, each
// top-level followed by its attached windows.
func (w *Workspaces) WindowsInWs(ws int) []ManagedWindow {
	space := &w.spaces[ws]
	var all []ManagedWindow
	for i := range space.Children {
		all = append(all, space.Children[i].Managed)
		all = append(all, space.Children[i].Attached...)
	}
	return all
}

// TiledWindows returns the NoFloat windows of workspace ws in child order.
func (w *Workspaces) TiledWindows(ws int) []ManagedWindow {
	var tiled []ManagedWindow
	for _, mw := range w.WindowsInWs(ws) {
		if mw.Arrange.Kind == NoFloat {
			tiled = append(tiled, mw)
		}
	}
	return tiled
}

// NumTiled counts the NoFloat windows of workspace ws.
func (w *Workspaces) NumTiled(ws int) int { return len(w.TiledWindows(ws)) }

// FindFirstTiled returns the first tiled window of workspace ws.
func (w *Workspaces) FindFirstTiled(ws int) (ManagedWindow, bool) {
	tiled := w.TiledWindows(ws)
	if len(tiled) == 0 {
		return ManagedWindow{}, false
	}
	return tiled[0], true
}

// IsManagedFloating reports whether win is managed and floating.
func (w *Workspaces) IsManagedFloating(win xproto.Window) bool {
	mw := w.FindManaged(win)
	return mw != nil && mw.Arrange.Floating()
}

// IsManagedTiled reports whether win is managed and tiled.
func (w *Workspaces) IsManagedTiled(win xproto.Window) bool {
	mw := w.FindManaged(win)
	return mw != nil && !mw.Arrange.Floating()
}

// SendToFront moves a tiled top-level window to index 0 by swapping. It is
// a no-op on floating or attached windows.
func (w *Workspaces) SendToFront(ws int, win xproto.Window) {
	space := &w.spaces[ws]
	for i := range space.Children {
		if space.Children[i].Managed.Window == win && space.Children[i].Managed.Arrange.Kind == NoFloat {
			space.Children[0], space.Children[i] = space.Children[i], space.Children[0]
			return
		}
	}
}

// ToggleFloat sets win's arrangement, reporting whether it changed.
func (w *Workspaces) ToggleFloat(win xproto.Window, arrange Arrange) bool {
	mw := w.FindManaged(win)
	if mw == nil || mw.Arrange == arrange {
		return false
	}
	mw.Arrange = arrange
	return true
}

// UnFloat tiles a floating window, reporting whether anything changed.
func (w *Workspaces) UnFloat(win xproto.Window) bool {
	mw := w.FindManaged(win)
	if mw == nil || mw.Arrange.Kind == NoFloat {
		return false
	}
	mw.Arrange = Arrange{Kind: NoFloat}
	return true
}

// SetWantsFocus flags win as urgent (or not). Returns the workspace index
// and whether the flag changed.
func (w *Workspaces) SetWantsFocus(win xproto.Window, wants bool) (int, bool) {
	ws, ok := w.winToWs[win]
	if !ok {
		return 0, false
	}
	mw := w.FindManaged(win)
	if mw == nil {
		return 0, false
	}
	changed := mw.WantsFocus != wants
	mw.WantsFocus = wants
	return ws, changed
}

// WantsFocusWorkspaces returns, per workspace, whether any window is
// flagged urgent. The bar uses this bitmap to color tags.
func (w *Workspaces) WantsFocusWorkspaces() []bool {
	out := make([]bool, len(w.spaces))
	for i := range w.spaces {
		for _, mw := range w.WindowsInWs(i) {
			if mw.WantsFocus {
				out[i] = true
				break
			}
		}
	}
	return out
}

// UpdateSizeModifier resizes the tiled slot occupied by win: slot 0 maps
// to the leader modifier of the current layout, slot i to the vertical
// modifier i-1. Changes driving a modifier to zero or below are rejected.
// Returns whether any value changed.
func (w *Workspaces) UpdateSizeModifier(win xproto.Window, diff float32) bool {
	ws, ok := w.winToWs[win]
	if !ok {
		return false
	}
	space := &w.spaces[ws]
	if space.DrawMode.Kind != DrawTiled {
		return false
	}
	tiled := w.TiledWindows(ws)
	index := -1
	for i, mw := range tiled {
		if mw.Window == win {
			index = i
			break
		}
	}
	if index < 0 {
		return false
	}
	if index == 0 {
		if space.DrawMode.Layout == geometry.LeftLeader {
			old := space.Modifiers.LeftLeader
			space.Modifiers.LeftLeader = resizeSafe(old, diff)
			return space.Modifiers.LeftLeader != old
		}
		old := space.Modifiers.CenterLeader
		space.Modifiers.CenterLeader = resizeSafe(old, diff)
		return space.Modifiers.CenterLeader != old
	}
	if index-1 < len(space.Modifiers.VerticallyTiled) {
		old := space.Modifiers.VerticallyTiled[index-1]
		space.Modifiers.VerticallyTiled[index-1] = resizeSafe(old, diff)
		return space.Modifiers.VerticallyTiled[index-1] != old
	}
	return false
}

// ClearSizeModifiers restores workspace ws to the configured base values.
func (w *Workspaces) ClearSizeModifiers(ws int) {
	w.spaces[ws].Modifiers = w.baseModifiers.clone()
}

// SetDrawMode sets workspace ws's draw mode, reporting whether it changed.
func (w *Workspaces) SetDrawMode(ws int, mode DrawMode) bool {
	if w.spaces[ws].DrawMode == mode {
		return false
	}
	w.spaces[ws].DrawMode = mode
	return true
}

// CycleTilingMode flips a tiled workspace between layouts.
func (w *Workspaces) CycleTilingMode(ws int) {
	space := &w.spaces[ws]
	if space.DrawMode.Kind == DrawTiled {
		space.DrawMode.Layout = space.DrawMode.Layout.Next()
	}
}

// EffectiveDrawMode returns workspace ws's draw mode with the tabbed index
// clamped: Tabbed(i) reads as Tabbed(0) when i is at or past the tiled
// count. The stored index is preserved for later.
func (w *Workspaces) EffectiveDrawMode(ws int) DrawMode {
	mode := w.spaces[ws].DrawMode
	if mode.Kind == DrawTabbed && mode.TabIndex >= w.NumTiled(ws) {
		mode.TabIndex = 0
	}
	return mode
}

// SwitchTabFocusIndex focuses tab index i of a tabbed workspace. Reports
// whether the focused tab changed; no-op outside tabbed mode.
func (w *Workspaces) SwitchTabFocusIndex(ws, i int) bool {
	space := &w.spaces[ws]
	if space.DrawMode.Kind != DrawTabbed {
		return false
	}
	changed := space.DrawMode.TabIndex != i
	space.DrawMode.TabIndex = i
	return changed
}

// TabFocusWindow focuses win's tab when its workspace is tabbed. Reports
// whether win was found among that workspace's tiled windows and its index
// written as the tab index, also when that index was already focused.
func (w *Workspaces) TabFocusWindow(win xproto.Window) bool {
	ws, ok := w.winToWs[win]
	if !ok {
		return false
	}
	space := &w.spaces[ws]
	if space.DrawMode.Kind != DrawTabbed {
		return false
	}
	for i, mw := range w.TiledWindows(ws) {
		if mw.Window == win {
			space.DrawMode.TabIndex = i
			return true
		}
	}
	return false
}

// SetFullscreen puts workspace ws in fullscreen on win, remembering the
// prior mode. Idempotent when already fullscreen.
func (w *Workspaces) SetFullscreen(ws int, win xproto.Window) {
	space := &w.spaces[ws]
	if space.DrawMode.Kind == DrawFullscreen {
		return
	}
	prior := space.DrawMode
	space.DrawMode = DrawMode{
		Kind:        DrawFullscreen,
		Window:      win,
		PriorKind:   prior.Kind,
		PriorLayout: prior.Layout,
		PriorTab:    prior.TabIndex,
	}
}

// UnsetFullscreen restores the stored prior mode. Reports whether the
// workspace was fullscreen.
func (w *Workspaces) UnsetFullscreen(ws int) bool {
	space := &w.spaces[ws]
	if space.DrawMode.Kind != DrawFullscreen {
		return false
	}
	mode := space.DrawMode
	space.DrawMode = DrawMode{Kind: mode.PriorKind, Layout: mode.PriorLayout, TabIndex: mode.PriorTab}
	return true
}

// NextWindow returns the window after cur in its workspace, wrapping.
func (w *Workspaces) NextWindow(cur xproto.Window) (ManagedWindow, bool) {
	return w.neighbor(cur, 1)
}

// PrevWindow returns the window before cur in its workspace, wrapping.
func (w *Workspaces) PrevWindow(cur xproto.Window) (ManagedWindow, bool) {
	return w.neighbor(cur, -1)
}

func (w *Workspaces) neighbor(cur xproto.Window, dir int) (ManagedWindow, bool) {
	ws, ok := w.winToWs[cur]
	if !ok {
		return ManagedWindow{}, false
	}
	all := w.WindowsInWs(ws)
	if len(all) <= 1 {
		return ManagedWindow{}, false
	}
	for i, mw := range all {
		if mw.Window == cur {
			return all[(i+dir+len(all))%len(all)], true
		}
	}
	return ManagedWindow{}, false
}

func resizeSafe(old, diff float32) float32 {
	if next := old + diff; next > 0 {
		return next
	}
	return old
}
