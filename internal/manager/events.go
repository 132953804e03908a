package manager

import (
	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/sirupsen/logrus"

	"github.com/canopywm/canopy/internal/atoms"
	"github.com/canopywm/canopy/internal/bar"
	"github.com/canopywm/canopy/internal/geometry"
	"github.com/canopywm/canopy/internal/properties"
	"github.com/canopywm/canopy/internal/state"
	"github.com/canopywm/canopy/internal/workspace"
)

// Dispatch routes one event to its handler. Self-induced EnterNotify and
// UnmapNotify events are filtered against the ignored-sequence heap
// before any handler runs.
func (m *Manager) Dispatch(ev xgb.Event) error {
	switch e := ev.(type) {
	case xproto.MapRequestEvent:
		return m.OnMapRequest(e)
	case xproto.UnmapNotifyEvent:
		if m.state.ShouldIgnoreSequence(e.Sequence) {
			return nil
		}
		return m.OnUnmapNotify(e)
	case xproto.DestroyNotifyEvent:
		return m.OnDestroyNotify(e)
	case xproto.ConfigureNotifyEvent:
		return m.OnConfigureNotify(e)
	case xproto.ConfigureRequestEvent:
		return m.OnConfigureRequest(e)
	case xproto.EnterNotifyEvent:
		if m.state.ShouldIgnoreSequence(e.Sequence) {
			return nil
		}
		return m.OnEnterNotify(e)
	case xproto.ButtonPressEvent:
		return m.OnButtonPress(e)
	case xproto.ButtonReleaseEvent:
		return m.OnButtonRelease(e)
	case xproto.MotionNotifyEvent:
		return m.OnMotionNotify(e)
	case xproto.KeyPressEvent:
		return m.OnKeyPress(e)
	case xproto.PropertyNotifyEvent:
		return m.OnPropertyNotify(e)
	case xproto.ClientMessageEvent:
		return m.OnClientMessage(e)
	default:
		return nil
	}
}

// OnMapRequest manages a window asking to be shown, unless it handles its
// own placement.
func (m *Manager) OnMapRequest(ev xproto.MapRequestEvent) error {
	overrideRedirect, _, err := m.x.WindowAttributes(ev.Window)
	if err != nil {
		m.logger.WithError(err).WithField("window", ev.Window).Debug("Window vanished before map")
		return nil
	}
	if overrideRedirect {
		return nil
	}
	if err := m.manage(ev.Window); err != nil {
		m.logger.WithError(err).WithField("window", ev.Window).Warn("Failed to manage window")
	}
	return nil
}

// OnUnmapNotify unmanages a known window that went away.
func (m *Manager) OnUnmapNotify(ev xproto.UnmapNotifyEvent) error {
	m.unmanage(ev.Window, true)
	return nil
}

// OnDestroyNotify unmanages and clears any pending close escalation.
func (m *Manager) OnDestroyNotify(ev xproto.DestroyNotifyEvent) error {
	m.unmanage(ev.Window, false)
	m.state.UnmarkForDeath(ev.Window)
	return nil
}

// OnConfigureNotify reacts only to root geometry changes, which
// invalidate all monitor-dependent state.
func (m *Manager) OnConfigureNotify(ev xproto.ConfigureNotifyEvent) error {
	root := m.x.Root()
	if ev.Window != root || ev.Event != root {
		return nil
	}
	m.logger.WithFields(logrus.Fields{
		"width": ev.Width, "height": ev.Height,
	}).Info("Root geometry changed, rebuilding state")
	for i := range m.state.Monitors {
		mon := &m.state.Monitors[i]
		if mon.BarWin != state.None {
			m.unmapIgnoringNotify(mon.BarWin)
		}
		if mon.TabBarWin != state.None {
			m.unmapIgnoringNotify(mon.TabBarWin)
		}
	}
	return ErrStateInvalidated
}

// OnConfigureRequest honors geometry wishes of non-tiled windows only;
// tiled geometry is WM-controlled.
func (m *Manager) OnConfigureRequest(ev xproto.ConfigureRequestEvent) error {
	if m.state.Workspaces.IsManagedTiled(ev.Window) {
		return nil
	}
	geom, err := m.x.WindowGeometry(ev.Window)
	if err != nil {
		return nil
	}
	if ev.ValueMask&xproto.ConfigWindowX != 0 {
		geom.X = int(ev.X)
	}
	if ev.ValueMask&xproto.ConfigWindowY != 0 {
		geom.Y = int(ev.Y)
	}
	if ev.ValueMask&xproto.ConfigWindowWidth != 0 {
		geom.Width = int(ev.Width)
	}
	if ev.ValueMask&xproto.ConfigWindowHeight != 0 {
		geom.Height = int(ev.Height)
	}
	border := m.state.BorderWidth
	if !m.state.Workspaces.IsManagedFloating(ev.Window) {
		border = int(ev.BorderWidth)
	}
	seq, _ := m.x.ConfigureWindow(ev.Window, geom, border)
	m.state.PushSequence(seq)
	return nil
}

// OnEnterNotify focuses the entered window: focus follows pointer.
func (m *Manager) OnEnterNotify(ev xproto.EnterNotifyEvent) error {
	m.state.LastTimestamp = ev.Time
	if ev.Mode == xproto.NotifyModeGrab || ev.Event == m.x.Root() {
		return nil
	}
	if ev.Event != m.state.InputFocus && m.state.Workspaces.FindManaged(ev.Event) != nil {
		m.focusWindow(ev.Event)
	}
	return nil
}

// OnButtonPress resolves what was clicked: a tab-bar slot, a bar
// component with a bound action, or a client window.
func (m *Manager) OnButtonPress(ev xproto.ButtonPressEvent) error {
	m.state.LastTimestamp = ev.Time
	monIdx, ok := m.state.FindMonitorAt(int(ev.RootX), int(ev.RootY))
	if !ok {
		monIdx = m.state.FocusedMon
	}
	mon := &m.state.Monitors[monIdx]

	if mon.TabBarWin != state.None && (ev.Event == mon.TabBarWin || ev.Child == mon.TabBarWin) {
		ws := mon.HostedWorkspace
		if m.state.Workspaces.EffectiveDrawMode(ws).Kind == workspace.DrawTabbed {
			tiled := m.state.Workspaces.TiledWindows(ws)
			relX := int(ev.RootX) - mon.Dimensions.X
			if idx, hit := m.bar.TabIndexAt(mon.Dimensions.Width, len(tiled), relX); hit {
				if m.state.Workspaces.SwitchTabFocusIndex(ws, idx) {
					m.drawMonitor(monIdx)
					m.focusWindow(tiled[idx].Window)
				}
			}
		}
		return nil
	}

	clicked := ev.Child
	if clicked == state.None {
		clicked = ev.Event
	}
	if target, hit := m.state.GetHitBarComponent(clicked, int(ev.RootX), monIdx); hit {
		m.focusMonitor(monIdx)
		if action, bound := m.state.GetMouseAction(byte(ev.Detail), maskedMods(ev.State), target.Kind); bound {
			return m.runAction(action, actionContext{window: m.state.InputFocus, target: target, monIdx: monIdx, rootX: int(ev.RootX), rootY: int(ev.RootY)})
		}
		return nil
	}

	if m.state.PointerGrabbed && m.state.Workspaces.FindManaged(clicked) != nil {
		m.focusWindow(clicked)
		return nil
	}
	if m.state.Workspaces.FindManaged(clicked) != nil {
		if action, bound := m.state.GetMouseAction(byte(ev.Detail), maskedMods(ev.State), bar.TargetClientWindow); bound {
			return m.runAction(action, actionContext{window: clicked, monIdx: monIdx, rootX: int(ev.RootX), rootY: int(ev.RootY)})
		}
		m.focusWindow(clicked)
	}
	return nil
}

// OnButtonRelease ends an in-progress drag, persisting the drop position
// as the window's monitor-relative anchor.
func (m *Manager) OnButtonRelease(ev xproto.ButtonReleaseEvent) error {
	m.state.LastTimestamp = ev.Time
	drag := m.state.DragWindow
	if drag == nil {
		return nil
	}
	m.state.DragWindow = nil
	x, y := drag.Position.CurrentPosition(int(ev.RootX), int(ev.RootY))
	monIdx, ok := m.state.FindMonitorAt(int(ev.RootX), int(ev.RootY))
	if !ok {
		monIdx = m.state.FocusedMon
	}
	arrange := m.floatingArrange(monIdx, geometryAt(x, y))
	m.state.Workspaces.ToggleFloat(drag.Window, arrange)
	if m.state.PointerGrabbed {
		m.x.UngrabPointer()
		m.state.PointerGrabbed = false
	}
	return nil
}

// OnMotionNotify moves a dragged window, or follows focus across windows
// and monitors under a grab.
func (m *Manager) OnMotionNotify(ev xproto.MotionNotifyEvent) error {
	m.state.LastTimestamp = ev.Time
	if drag := m.state.DragWindow; drag != nil {
		x, y := drag.Position.CurrentPosition(int(ev.RootX), int(ev.RootY))
		m.x.MoveWindow(drag.Window, x, y)
		return nil
	}
	if m.state.PointerGrabbed && ev.Child != state.None && ev.Child != m.state.InputFocus {
		if m.state.Workspaces.FindManaged(ev.Child) != nil {
			m.focusWindow(ev.Child)
			return nil
		}
	}
	if ev.Event == m.x.Root() && ev.Child == state.None {
		if monIdx, ok := m.state.FindMonitorAt(int(ev.RootX), int(ev.RootY)); ok && monIdx != m.state.FocusedMon {
			m.focusMonitor(monIdx)
		}
	}
	return nil
}

// OnKeyPress runs the bound action, if any.
func (m *Manager) OnKeyPress(ev xproto.KeyPressEvent) error {
	m.state.LastTimestamp = ev.Time
	action, bound := m.state.GetKeyAction(byte(ev.Detail), maskedMods(ev.State))
	if !bound {
		return nil
	}
	return m.runAction(action, actionContext{
		window: m.state.InputFocus,
		monIdx: m.state.FocusedMon,
		rootX:  int(ev.RootX),
		rootY:  int(ev.RootY),
	})
}

// OnPropertyNotify keeps the stored view of client properties current.
func (m *Manager) OnPropertyNotify(ev xproto.PropertyNotifyEvent) error {
	capability, known := m.registry.Capability(ev.Atom)
	if !known {
		return nil
	}
	mw := m.state.Workspaces.FindManaged(ev.Window)
	if mw == nil {
		return nil
	}
	switch capability {
	case atoms.WmClass:
		return m.onClassChanged(ev.Window, mw)
	case atoms.WmName:
		if name, err := m.x.GetWmName(ev.Window); err == nil && mw.Properties.Name.SetWmName(name) {
			m.onNameChanged(ev.Window, mw)
		}
	case atoms.NetWmName:
		if name, err := m.x.GetNetWmName(ev.Window); err == nil && mw.Properties.Name.SetNetWmName(name) {
			m.onNameChanged(ev.Window, mw)
		}
	case atoms.WmHints:
		hints, err := m.x.GetWmHints(ev.Window)
		if err != nil {
			return nil
		}
		mw.Properties.Hints = hints
		mw.FocusStyle = properties.DeduceFocusStyle(hints, mw.Properties.Protocols)
		if hints != nil && hints.Urgent && ev.Window != m.state.InputFocus {
			if _, changed := m.state.Workspaces.SetWantsFocus(ev.Window, true); changed {
				m.drawBars()
			}
		}
	case atoms.WmState:
		value, present, err := m.x.GetWmState(ev.Window)
		if err == nil && present && value == atoms.StateWithdrawn {
			m.unmanage(ev.Window, false)
		}
	case atoms.NetWmWindowType:
		return m.onWindowTypeChanged(ev.Window, mw)
	}
	return nil
}

// onClassChanged re-evaluates the workspace mapping when a client renames
// its class.
func (m *Manager) onClassChanged(win xproto.Window, mw *workspace.ManagedWindow) error {
	class, err := m.x.GetWmClass(win)
	if err != nil {
		return nil
	}
	if equalStrings(class, mw.Properties.Class) {
		return nil
	}
	mw.Properties.Class = class
	targetWs, mapped := m.state.Workspaces.FindWsForClassNames(class...)
	currentWs, _ := m.state.Workspaces.FindWsContaining(win)
	if mapped && targetWs != currentWs {
		m.moveWindowToWorkspace(win, targetWs)
	}
	return nil
}

func (m *Manager) onNameChanged(win xproto.Window, mw *workspace.ManagedWindow) {
	if win != m.state.InputFocus {
		return
	}
	if monIdx, ok := m.state.FindMonitorIndexOfWindow(win); ok {
		m.state.Monitors[monIdx].WindowTitle = mw.Properties.Name.Name
		m.drawTitle(monIdx)
	}
}

// onWindowTypeChanged re-deduces float status at runtime: docked windows
// float in place at their current geometry, floating windows get tiled.
func (m *Manager) onWindowTypeChanged(win xproto.Window, mw *workspace.ManagedWindow) error {
	types, err := m.x.GetWindowTypes(win)
	if err != nil {
		return nil
	}
	mw.Properties.WindowTypes = types
	deduction := properties.DeduceFloatStatus(mw.Properties, m.x.Root())
	floating := mw.Arrange.Floating()
	switch {
	case deduction.Floating && !floating:
		monIdx, ok := m.state.FindMonitorIndexOfWindow(win)
		if !ok {
			// Cross-workspace edge case: no host monitor yet, anchor
			// against monitor 0.
			monIdx = 0
		}
		geom, err := m.x.WindowGeometry(win)
		if err != nil {
			return nil
		}
		m.state.Workspaces.ToggleFloat(win, m.floatingArrange(monIdx, geom))
		if idx, hosted := m.state.FindMonitorHostingWorkspace(mustWs(m.state, win)); hosted {
			m.drawMonitor(idx)
		}
		m.x.RaiseWindow(win)
	case !deduction.Floating && floating:
		m.state.Workspaces.UnFloat(win)
		if idx, hosted := m.state.FindMonitorHostingWorkspace(mustWs(m.state, win)); hosted {
			m.drawMonitor(idx)
		}
	}
	return nil
}

// OnClientMessage handles the EWMH requests clients may send.
func (m *Manager) OnClientMessage(ev xproto.ClientMessageEvent) error {
	capability, known := m.registry.Capability(ev.Type)
	if !known {
		return nil
	}
	switch capability {
	case atoms.NetCloseWindow:
		if m.state.Workspaces.FindManaged(ev.Window) != nil {
			m.closeWindow(ev.Window)
		}
	case atoms.NetActiveWindow:
		if ev.Window != m.state.InputFocus {
			if _, changed := m.state.Workspaces.SetWantsFocus(ev.Window, true); changed {
				m.drawBars()
			}
		}
	case atoms.NetRequestFrameExtents:
		m.x.SetFrameExtents(ev.Window, m.state.BorderWidth)
	case atoms.NetWmState:
		m.onNetWmStateMessage(ev)
	}
	return nil
}

// onNetWmStateMessage applies a _NET_WM_STATE change request: an action
// and up to three state atoms.
func (m *Manager) onNetWmStateMessage(ev xproto.ClientMessageEvent) {
	data := ev.Data.Data32
	if len(data) < 4 {
		return
	}
	action := data[0]
	for _, raw := range data[1:4] {
		if raw == 0 {
			continue
		}
		capability, known := m.registry.Capability(xproto.Atom(raw))
		if !known {
			continue
		}
		switch capability {
		case atoms.NetWmStateFullscreen:
			m.applyFullscreenChange(ev.Window, action)
		case atoms.NetWmStateModal:
			m.applyModalChange(ev.Window, action)
		case atoms.NetWmStateDemandsAttention:
			m.applyUrgencyChange(ev.Window, action)
		}
	}
}

func (m *Manager) applyFullscreenChange(win xproto.Window, action uint32) {
	ws, ok := m.state.Workspaces.FindWsContaining(win)
	if !ok {
		return
	}
	fullscreen := m.state.Workspaces.Get(ws).DrawMode.Kind == workspace.DrawFullscreen
	set := action == atoms.NetWmStateAdd || (action == atoms.NetWmStateToggle && !fullscreen)
	if set {
		m.state.Workspaces.SetFullscreen(ws, win)
	} else {
		if !m.state.Workspaces.UnsetFullscreen(ws) {
			return
		}
	}
	if mw := m.state.Workspaces.FindManaged(win); mw != nil {
		mw.Properties.NetWmState.Fullscreen = set
		m.x.SetNetWmState(win, mw.Properties.NetWmState)
	}
	if monIdx, hosted := m.state.FindMonitorHostingWorkspace(ws); hosted {
		m.drawMonitor(monIdx)
	}
}

func (m *Manager) applyModalChange(win xproto.Window, action uint32) {
	mw := m.state.Workspaces.FindManaged(win)
	if mw == nil {
		return
	}
	floating := mw.Arrange.Floating()
	set := action == atoms.NetWmStateAdd || (action == atoms.NetWmStateToggle && !floating)
	mw.Properties.NetWmState.Modal = set
	m.x.SetNetWmState(win, mw.Properties.NetWmState)
	ws, _ := m.state.Workspaces.FindWsContaining(win)
	if set && !floating {
		monIdx, ok := m.state.FindMonitorHostingWorkspace(ws)
		if !ok {
			monIdx = 0
		}
		geom, err := m.x.WindowGeometry(win)
		if err != nil {
			return
		}
		m.state.Workspaces.ToggleFloat(win, m.floatingArrange(monIdx, geom))
		m.x.RaiseWindow(win)
	} else if !set && floating {
		m.state.Workspaces.UnFloat(win)
	} else {
		return
	}
	if monIdx, hosted := m.state.FindMonitorHostingWorkspace(ws); hosted {
		m.drawMonitor(monIdx)
	}
}

func (m *Manager) applyUrgencyChange(win xproto.Window, action uint32) {
	mw := m.state.Workspaces.FindManaged(win)
	if mw == nil {
		return
	}
	set := action == atoms.NetWmStateAdd || (action == atoms.NetWmStateToggle && !mw.WantsFocus)
	if win == m.state.InputFocus {
		set = false
	}
	mw.Properties.NetWmState.DemandsAttention = set
	if _, changed := m.state.Workspaces.SetWantsFocus(win, set); changed {
		m.x.SetNetWmState(win, mw.Properties.NetWmState)
		m.drawBars()
	}
}

// focusMonitor makes monIdx the focused monitor and focuses its best
// candidate window.
func (m *Manager) focusMonitor(monIdx int) {
	if _, changed := m.state.UpdateFocusedMon(monIdx); !changed {
		return
	}
	if win, ok := m.state.FindFirstFocusCandidate(monIdx); ok {
		m.focusWindow(win)
	} else {
		m.focusRootFallback(monIdx)
	}
	m.drawBars()
}

// maskedMods drops button and lock bits from a modifier state so binding
// lookups only see real modifiers.
func maskedMods(stateMask uint16) uint16 {
	return stateMask & (xproto.ModMaskShift | xproto.ModMaskControl |
		xproto.ModMask1 | xproto.ModMask4)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func mustWs(s *state.State, win xproto.Window) int {
	ws, _ := s.Workspaces.FindWsContaining(win)
	return ws
}

func geometryAt(x, y int) geometry.Rect {
	return geometry.Rect{X: x, Y: y}
}
