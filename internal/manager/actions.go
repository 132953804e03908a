package manager

import (
	"os/exec"

	"github.com/jezek/xgb/xproto"

	"github.com/canopywm/canopy/internal/atoms"
	"github.com/canopywm/canopy/internal/bar"
	"github.com/canopywm/canopy/internal/state"
	"github.com/canopywm/canopy/internal/workspace"
	"github.com/canopywm/canopy/pkg/config"
)

// actionContext carries the event context an action runs against.
type actionContext struct {
	window xproto.Window
	target bar.Target
	monIdx int
	rootX  int
	rootY  int
}

// runAction executes one bound action. Quit and restart surface as
// sentinel errors for the event loop.
func (m *Manager) runAction(action config.Action, ctx actionContext) error {
	switch action.Kind {
	case config.ActionQuit:
		return ErrGracefulShutdown
	case config.ActionRestart:
		return ErrFullRestart
	case config.ActionSpawn:
		m.spawn(action.Command)
	case config.ActionCloseWindow:
		if ctx.window != state.None {
			m.closeWindow(ctx.window)
		}
	case config.ActionFocusNextWindow:
		if next, ok := m.state.Workspaces.NextWindow(m.state.InputFocus); ok {
			m.focusWindow(next.Window)
		}
	case config.ActionFocusPrevWindow:
		if prev, ok := m.state.Workspaces.PrevWindow(m.state.InputFocus); ok {
			m.focusWindow(prev.Window)
		}
	case config.ActionFocusNextMonitor:
		if len(m.state.Monitors) > 1 {
			m.focusMonitor((m.state.FocusedMon + 1) % len(m.state.Monitors))
		}
	case config.ActionSendToFront:
		m.sendToFront(ctx.window)
	case config.ActionCycleLayout:
		ws := m.state.Monitors[m.state.FocusedMon].HostedWorkspace
		m.state.Workspaces.CycleTilingMode(ws)
		m.drawMonitor(m.state.FocusedMon)
	case config.ActionToggleTabbed:
		m.toggleTabbed()
	case config.ActionToggleFloating:
		m.toggleFloating(ctx)
	case config.ActionToggleFullscreen:
		if ctx.window != state.None {
			m.applyFullscreenChange(ctx.window, atoms.NetWmStateToggle)
		}
	case config.ActionResizeWindow:
		if ctx.window != state.None && m.state.Workspaces.UpdateSizeModifier(ctx.window, action.Diff) {
			if monIdx, ok := m.state.FindMonitorIndexOfWindow(ctx.window); ok {
				m.drawMonitor(monIdx)
			}
		}
	case config.ActionSendToWorkspace:
		if ctx.window != state.None {
			m.moveWindowToWorkspace(ctx.window, m.actionWorkspace(action, ctx))
		}
	case config.ActionToggleWorkspace:
		m.toggleWorkspace(m.actionWorkspace(action, ctx))
	case config.ActionToggleBar:
		m.toggleBar(m.state.FocusedMon)
	case config.ActionDragMove:
		m.startDrag(ctx)
	default:
		m.logger.WithField("action", action.Kind).Warn("Unknown action")
	}
	return nil
}

// actionWorkspace resolves the action's workspace argument: clicks on a
// workspace tag use the clicked tag.
func (m *Manager) actionWorkspace(action config.Action, ctx actionContext) int {
	if ctx.target.Kind == bar.TargetWorkspaceTag {
		return ctx.target.Index
	}
	return action.Index
}

func (m *Manager) spawn(argv []string) {
	if len(argv) == 0 {
		return
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		m.logger.WithError(err).WithField("command", argv[0]).Warn("Failed to spawn")
		return
	}
	go cmd.Wait()
}

func (m *Manager) sendToFront(win xproto.Window) {
	ws, ok := m.state.Workspaces.FindWsContaining(win)
	if !ok {
		return
	}
	m.state.Workspaces.SendToFront(ws, win)
	if monIdx, hosted := m.state.FindMonitorHostingWorkspace(ws); hosted {
		m.drawMonitor(monIdx)
	}
}

func (m *Manager) toggleTabbed() {
	ws := m.state.Monitors[m.state.FocusedMon].HostedWorkspace
	mode := m.state.Workspaces.EffectiveDrawMode(ws)
	switch mode.Kind {
	case workspace.DrawTabbed:
		m.state.Workspaces.SetDrawMode(ws, workspace.Tiled(mode.PriorLayout))
	case workspace.DrawTiled:
		m.state.Workspaces.SetDrawMode(ws, workspace.Tabbed(0))
	default:
		return
	}
	m.drawMonitor(m.state.FocusedMon)
}

// toggleFloating floats a tiled window at its current size, centered on its
// monitor, or tiles a floating one.
func (m *Manager) toggleFloating(ctx actionContext) {
	win := ctx.window
	if win == state.None {
		return
	}
	if m.state.Workspaces.IsManagedFloating(win) {
		m.state.Workspaces.UnFloat(win)
	} else if m.state.Workspaces.IsManagedTiled(win) {
		geom, err := m.x.WindowGeometry(win)
		if err != nil {
			return
		}
		mon := &m.state.Monitors[ctx.monIdx]
		centered := geom.CenteredIn(mon.Dimensions)
		seq, _ := m.x.ConfigureWindow(win, centered, m.state.BorderWidth)
		m.state.PushSequence(seq)
		m.state.Workspaces.ToggleFloat(win, m.floatingArrange(ctx.monIdx, centered))
		m.x.RaiseWindow(win)
	} else {
		return
	}
	if monIdx, ok := m.state.FindMonitorIndexOfWindow(win); ok {
		m.drawMonitor(monIdx)
	}
}

// moveWindowToWorkspace reparents a window's membership: delete, re-add
// on the target, unmap when the target is not on screen.
func (m *Manager) moveWindowToWorkspace(win xproto.Window, targetWs int) {
	if targetWs < 0 || targetWs >= m.state.Workspaces.Len() {
		return
	}
	currentWs, ok := m.state.Workspaces.FindWsContaining(win)
	if !ok || currentWs == targetWs {
		return
	}
	mw := m.state.Workspaces.FindManaged(win)
	if mw == nil {
		return
	}
	arrange, style, props := mw.Arrange, mw.FocusStyle, mw.Properties
	m.unmanageFromModelOnly(win)
	m.state.Workspaces.AddChild(win, targetWs, arrange, style, props)
	m.x.SetClientList(m.state.Workspaces.AllManagedWindows())
	if monIdx, hosted := m.state.FindMonitorHostingWorkspace(currentWs); hosted {
		m.drawMonitor(monIdx)
		if m.state.Monitors[monIdx].LastFocus == win {
			m.state.Monitors[monIdx].LastFocus = state.None
		}
	}
	if monIdx, hosted := m.state.FindMonitorHostingWorkspace(targetWs); hosted {
		m.drawMonitor(monIdx)
		m.mapIgnoringEnter(win)
	} else {
		m.unmapIgnoringNotify(win)
		if m.state.InputFocus == win {
			m.state.InputFocus = state.None
			if candidate, ok := m.state.FindFirstFocusCandidate(m.state.FocusedMon); ok {
				m.focusWindow(candidate)
			} else {
				m.focusRootFallback(m.state.FocusedMon)
			}
		}
	}
}

// unmanageFromModelOnly removes a window from the workspace model without
// touching its X state, for workspace moves.
func (m *Manager) unmanageFromModelOnly(win xproto.Window) {
	m.state.Workspaces.Delete(win)
}

// toggleWorkspace hosts targetWs on the focused monitor. A workspace
// hosted on another monitor is swapped over; otherwise the previous
// workspace's windows unmap and the target's map.
func (m *Manager) toggleWorkspace(targetWs int) {
	if targetWs < 0 || targetWs >= m.state.Workspaces.Len() {
		return
	}
	monIdx := m.state.FocusedMon
	mon := &m.state.Monitors[monIdx]
	if mon.HostedWorkspace == targetWs {
		return
	}
	if otherIdx, hosted := m.state.FindMonitorHostingWorkspace(targetWs); hosted {
		other := &m.state.Monitors[otherIdx]
		mon.HostedWorkspace, other.HostedWorkspace = other.HostedWorkspace, mon.HostedWorkspace
		mon.LastFocus, other.LastFocus = state.None, state.None
		m.showWorkspace(otherIdx)
		m.drawMonitor(otherIdx)
	} else {
		for _, mw := range m.state.Workspaces.WindowsInWs(mon.HostedWorkspace) {
			m.unmapIgnoringNotify(mw.Window)
		}
		mon.HostedWorkspace = targetWs
		mon.LastFocus = state.None
		m.showWorkspace(monIdx)
	}
	m.drawMonitor(monIdx)
	if win, ok := m.state.FindFirstFocusCandidate(monIdx); ok {
		m.focusWindow(win)
	} else {
		m.focusRootFallback(monIdx)
	}
	m.drawBars()
}

// showWorkspace maps every window of a monitor's hosted workspace.
func (m *Manager) showWorkspace(monIdx int) {
	ws := m.state.Monitors[monIdx].HostedWorkspace
	for _, mw := range m.state.Workspaces.WindowsInWs(ws) {
		m.mapIgnoringEnter(mw.Window)
	}
}

// toggleBar shows or hides a monitor's bar and relayouts.
func (m *Manager) toggleBar(monIdx int) {
	mon := &m.state.Monitors[monIdx]
	if mon.BarWin == state.None {
		return
	}
	mon.ShowBar = !mon.ShowBar
	if mon.ShowBar {
		m.mapIgnoringEnter(mon.BarWin)
	} else {
		m.unmapIgnoringNotify(mon.BarWin)
	}
	m.drawMonitor(monIdx)
}

// startDrag begins dragging a floating window under the pointer grab.
func (m *Manager) startDrag(ctx actionContext) {
	win := ctx.window
	if win == state.None || !m.state.Workspaces.IsManagedFloating(win) {
		return
	}
	geom, err := m.x.WindowGeometry(win)
	if err != nil {
		return
	}
	m.state.Workspaces.ToggleFloat(win, workspace.Arrange{Kind: workspace.FloatingActive})
	m.state.DragWindow = &state.Drag{
		Window: win,
		Position: state.DragPosition{
			OriginX:      geom.X,
			OriginY:      geom.Y,
			EventOriginX: ctx.rootX,
			EventOriginY: ctx.rootY,
		},
	}
	if !m.state.PointerGrabbed {
		if err := m.x.GrabPointer(); err == nil {
			m.state.PointerGrabbed = true
		}
	}
	m.x.RaiseWindow(win)
}
