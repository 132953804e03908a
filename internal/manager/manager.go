// Package manager is the event-driven orchestrator: one method per X11
// event kind, coordinating the workspace model, the X11 facade and the
// bar. It owns the focus state machine and the close escalation.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jezek/xgb/xproto"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/canopywm/canopy/internal/atoms"
	"github.com/canopywm/canopy/internal/bar"
	"github.com/canopywm/canopy/internal/geometry"
	"github.com/canopywm/canopy/internal/properties"
	"github.com/canopywm/canopy/internal/state"
	"github.com/canopywm/canopy/internal/workspace"
	"github.com/canopywm/canopy/pkg/config"
)

// Sentinel results the event loop inspects. Everything else is either
// logged and survived (transient X errors) or fatal.
var (
	// ErrStateInvalidated means screen geometry changed and
	// monitor-dependent state must be rebuilt before resuming.
	ErrStateInvalidated = errors.New("screen changed, state invalidated")
	// ErrGracefulShutdown is the user-requested clean exit.
	ErrGracefulShutdown = errors.New("graceful shutdown")
	// ErrFullRestart asks the supervisor to re-exec the process.
	ErrFullRestart = errors.New("full restart")
)

// XClient is the slice of the X11 facade the manager drives. The concrete
// implementation is x11.CallWrapper; tests substitute a recorder.
type XClient interface {
	Root() xproto.Window
	Flush() error
	QueryTree() ([]xproto.Window, error)
	WindowAttributes(win xproto.Window) (overrideRedirect, viewable bool, err error)
	WindowGeometry(win xproto.Window) (geometry.Rect, error)
	QueryPointer() (x, y int, child xproto.Window, err error)
	MapWindow(win xproto.Window) (uint16, error)
	UnmapWindow(win xproto.Window) (uint16, error)
	ConfigureWindow(win xproto.Window, r geometry.Rect, borderWidth int) (uint16, error)
	MoveWindow(win xproto.Window, x, y int) error
	RaiseWindow(win xproto.Window) error
	SetBorderColor(win xproto.Window, pixel uint32) error
	SetBaseEventMask(win xproto.Window) error
	SetInputFocus(win xproto.Window) error
	FocusRoot() error
	GrabPointer() error
	UngrabPointer() error
	DestroyWindow(win xproto.Window) error
	KillClient(win xproto.Window) error
	SendDelete(win xproto.Window) error
	SendTakeFocus(win xproto.Window, ts xproto.Timestamp) error
	GetWindowProperties(win xproto.Window) (*properties.WindowProperties, error)
	GetWmClass(win xproto.Window) ([]string, error)
	GetWmName(win xproto.Window) (string, error)
	GetNetWmName(win xproto.Window) (string, error)
	GetWmHints(win xproto.Window) (*properties.WmHints, error)
	GetWmState(win xproto.Window) (value uint32, present bool, err error)
	GetWindowTypes(win xproto.Window) ([]properties.WindowType, error)
	SetWmState(win xproto.Window, value uint32) error
	SetNetWmState(win xproto.Window, st properties.NetWmState) error
	SetFrameExtents(win xproto.Window, borderWidth int) error
	SetAllowedActions(win xproto.Window) error
	SetClientList(wins []xproto.Window) error
	PushToClientList(win xproto.Window) error
	SetActiveWindow(win xproto.Window) error
	ClearClientList() error
}

// Manager drives the window manager from the X event stream.
type Manager struct {
	logger   *logrus.Logger
	tracer   trace.Tracer
	x        XClient
	state    *state.State
	bar      *bar.Manager
	registry *atoms.Registry
	cfg      *config.Config
	now      func() time.Time

	statusFn     func() string
	nextStatusAt time.Time

	mu      sync.RWMutex
	running bool
}

// New creates a manager around already-built state.
func New(logger *logrus.Logger, x XClient, st *state.State, barMgr *bar.Manager, registry *atoms.Registry, cfg *config.Config) *Manager {
	return &Manager{
		logger:   logger,
		tracer:   otel.Tracer("window-manager"),
		x:        x,
		state:    st,
		bar:      barMgr,
		registry: registry,
		cfg:      cfg,
		now:      time.Now,
	}
}

// State exposes the runtime state for the outer loop and tests.
func (m *Manager) State() *state.State { return m.state }

// Scan adopts pre-existing viewable windows at startup. Windows the WM
// created for itself are never adopted.
func (m *Manager) Scan() error {
	children, err := m.x.QueryTree()
	if err != nil {
		return fmt.Errorf("failed to scan existing windows: %w", err)
	}
	for _, win := range children {
		if m.state.IsInternCreated(win) {
			continue
		}
		overrideRedirect, viewable, err := m.x.WindowAttributes(win)
		if err != nil || overrideRedirect || !viewable {
			continue
		}
		if err := m.manage(win); err != nil {
			m.logger.WithError(err).WithField("window", win).Warn("Failed to adopt window during scan")
		}
	}
	return nil
}

// manage takes a new client window under control: deduce float status,
// pick a workspace, place and focus it.
func (m *Manager) manage(win xproto.Window) error {
	if m.state.Workspaces.FindManaged(win) != nil {
		return nil
	}
	m.x.SetWmState(win, atoms.StateNormal)
	props, err := m.x.GetWindowProperties(win)
	if err != nil {
		return fmt.Errorf("failed to read properties: %w", err)
	}
	deduction := properties.DeduceFloatStatus(props, m.x.Root())
	style := properties.DeduceFocusStyle(props.Hints, props.Protocols)
	ws, mapped := m.state.Workspaces.FindWsForClassNames(props.Class...)
	if !mapped {
		ws = m.state.Monitors[m.state.FocusedMon].HostedWorkspace
	}
	m.logger.WithFields(logrus.Fields{
		"window":    win,
		"class":     props.Class,
		"workspace": ws,
		"floating":  deduction.Floating,
		"style":     style.String(),
	}).Debug("Managing window")
	if deduction.Floating {
		return m.manageFloating(win, ws, style, props, deduction)
	}
	return m.manageTiled(win, ws, style, props)
}

func (m *Manager) manageTiled(win xproto.Window, ws int, style properties.FocusStyle, props *properties.WindowProperties) error {
	m.state.Workspaces.AddChild(win, ws, workspace.Arrange{Kind: workspace.NoFloat}, style, props)
	m.adoptClient(win)
	if monIdx, hosted := m.state.FindMonitorHostingWorkspace(ws); hosted {
		m.drawMonitor(monIdx)
		m.mapIgnoringEnter(win)
		m.focusWindow(win)
	}
	return nil
}

func (m *Manager) manageFloating(win xproto.Window, ws int, style properties.FocusStyle, props *properties.WindowProperties, deduction properties.FloatDeduction) error {
	parent := deduction.Parent
	if props.TransientFor != 0 && props.TransientFor == m.x.Root() {
		// Transient on the root is not truly transient; attach to what
		// the user is looking at instead.
		switch {
		case m.state.InputFocus != state.None && m.state.Workspaces.FindManaged(m.state.InputFocus) != nil:
			parent = m.state.InputFocus
		default:
			first, ok := m.state.Workspaces.FindFirstTiled(m.state.Monitors[m.state.FocusedMon].HostedWorkspace)
			if !ok {
				return m.manageTiled(win, ws, style, props)
			}
			parent = first.Window
		}
	}
	geom, err := m.x.WindowGeometry(win)
	if err != nil {
		return fmt.Errorf("failed to read geometry: %w", err)
	}
	if parent != state.None {
		if parentGeom, err := m.x.WindowGeometry(parent); err == nil && !geom.ContainedIn(parentGeom) {
			geom = geom.CenteredIn(parentGeom)
		}
		if parentWs, ok := m.state.Workspaces.FindWsContaining(parent); ok {
			ws = parentWs
		}
	}
	monIdx, hosted := m.state.FindMonitorHostingWorkspace(ws)
	if !hosted {
		monIdx = 0
	}
	arrange := m.floatingArrange(monIdx, geom)
	if parent == state.None || !m.state.Workspaces.AddAttached(parent, win, arrange, style, props) {
		m.state.Workspaces.AddChild(win, ws, arrange, style, props)
	}
	m.adoptClient(win)
	seq, _ := m.x.ConfigureWindow(win, geom, m.state.BorderWidth)
	m.state.PushSequence(seq)
	m.mapIgnoringEnter(win)
	m.x.RaiseWindow(win)
	m.focusWindow(win)
	return nil
}

// adoptClient applies the per-client bookkeeping shared by tiled and
// floating paths.
func (m *Manager) adoptClient(win xproto.Window) {
	m.x.PushToClientList(win)
	m.x.SetBaseEventMask(win)
	m.x.SetFrameExtents(win, m.state.BorderWidth)
	m.x.SetAllowedActions(win)
}

// floatingArrange computes the monitor-relative anchor for a floating
// window at the given geometry.
func (m *Manager) floatingArrange(monIdx int, geom geometry.Rect) workspace.Arrange {
	mon := &m.state.Monitors[monIdx]
	relX := float32(geom.X-mon.Dimensions.X) / float32(mon.Dimensions.Width)
	relY := float32(geom.Y-mon.Dimensions.Y) / float32(mon.Dimensions.Height)
	return workspace.Arrange{Kind: workspace.FloatingInactive, RelX: relX, RelY: relY}
}

// unmanage drops a window from WM control. Reports whether it was known.
func (m *Manager) unmanage(win xproto.Window, setWithdrawn bool) bool {
	ws, known := m.state.Workspaces.FindWsContaining(win)
	res := m.state.Workspaces.Delete(win)
	if !known || res.Kind == workspace.DeleteNone {
		return false
	}
	m.x.SetClientList(m.state.Workspaces.AllManagedWindows())
	if setWithdrawn {
		m.x.SetWmState(win, atoms.StateWithdrawn)
	}
	if m.state.Workspaces.Get(ws).DrawMode.Kind == workspace.DrawFullscreen &&
		m.state.Workspaces.Get(ws).DrawMode.Window == win {
		m.state.Workspaces.UnsetFullscreen(ws)
	}
	monIdx, hosted := m.state.FindMonitorHostingWorkspace(ws)
	tiledKind := res.Kind == workspace.DeletedTiledTopLevel || res.Kind == workspace.DeletedAttachedTiled
	if hosted && tiledKind {
		m.drawMonitor(monIdx)
	}
	wasFocus := m.state.InputFocus == win
	for i := range m.state.Monitors {
		if m.state.Monitors[i].LastFocus == win {
			m.state.Monitors[i].LastFocus = state.None
			wasFocus = true
			monIdx, hosted = i, true
		}
	}
	if !wasFocus {
		return true
	}
	m.state.InputFocus = state.None
	if !hosted {
		monIdx = m.state.FocusedMon
	}
	// Attached windows refocus their parent; everything else falls back
	// to the monitor's focus candidate.
	refocus := state.None
	if res.Kind == workspace.DeletedAttachedTiled || res.Kind == workspace.DeletedAttachedFloating {
		refocus = res.Parent.Window
	} else if candidate, ok := m.state.FindFirstFocusCandidate(monIdx); ok {
		refocus = candidate
	}
	if refocus != state.None {
		m.focusWindow(refocus)
	} else {
		m.focusRootFallback(monIdx)
	}
	return true
}

// focusWindow is the focus state machine entry point: delivers focus per
// the window's style, repaints borders, publishes _NET_ACTIVE_WINDOW.
func (m *Manager) focusWindow(win xproto.Window) {
	mw := m.state.Workspaces.FindManaged(win)
	if mw == nil {
		m.focusRootFallback(m.state.FocusedMon)
		return
	}
	switch mw.FocusStyle {
	case properties.NoInput:
		// Never receives input focus; leave focus wherever it is.
		return
	case properties.Passive:
		m.x.SetInputFocus(win)
	case properties.LocallyActive:
		m.x.SetInputFocus(win)
		m.x.SendTakeFocus(win, m.state.LastTimestamp)
	case properties.GloballyActive:
		m.x.SendTakeFocus(win, m.state.LastTimestamp)
	}
	prev := m.state.InputFocus
	if prev != state.None && prev != win {
		m.x.SetBorderColor(prev, m.paletteBorder(false))
	}
	m.x.SetBorderColor(win, m.paletteBorder(true))
	m.state.InputFocus = win
	if ws, ok := m.state.Workspaces.FindWsContaining(win); ok {
		if monIdx, hosted := m.state.FindMonitorHostingWorkspace(ws); hosted {
			m.state.Monitors[monIdx].LastFocus = win
			m.state.UpdateFocusedMon(monIdx)
			m.state.Monitors[monIdx].WindowTitle = mw.Properties.Name.Name
			m.drawTitle(monIdx)
		}
		if _, changed := m.state.Workspaces.SetWantsFocus(win, false); changed {
			m.drawBars()
		}
		if m.state.Workspaces.TabFocusWindow(win) {
			if monIdx, hosted := m.state.FindMonitorHostingWorkspace(ws); hosted {
				m.drawMonitor(monIdx)
			}
		}
	}
	m.x.SetActiveWindow(win)
}

// focusRootFallback parks input focus on the root of a monitor that has
// no focusable window.
func (m *Manager) focusRootFallback(monIdx int) {
	m.x.FocusRoot()
	m.state.InputFocus = state.None
	if monIdx < len(m.state.Monitors) {
		m.state.Monitors[monIdx].WindowTitle = ""
		m.drawTitle(monIdx)
	}
	m.x.SetActiveWindow(state.None)
}

func (m *Manager) paletteBorder(focused bool) uint32 {
	if m.state.Palette == nil {
		return 0
	}
	if focused {
		return m.state.Palette.WindowBorderFocused
	}
	return m.state.Palette.WindowBorder
}

// mapIgnoringEnter maps a window and records the request sequence so the
// echoed EnterNotify does not steal focus.
func (m *Manager) mapIgnoringEnter(win xproto.Window) {
	seq, err := m.x.MapWindow(win)
	if err != nil {
		m.logger.WithError(err).WithField("window", win).Warn("Map request failed")
		return
	}
	m.state.PushSequence(seq)
}

// unmapIgnoringNotify unmaps a window and records the sequence so the
// echoed UnmapNotify does not unmanage it.
func (m *Manager) unmapIgnoringNotify(win xproto.Window) {
	seq, err := m.x.UnmapWindow(win)
	if err != nil {
		m.logger.WithError(err).WithField("window", win).Warn("Unmap request failed")
		return
	}
	m.state.PushSequence(seq)
}

// layoutParams builds the geometry inputs for one monitor.
func (m *Manager) layoutParams(mon *state.Monitor) geometry.Params {
	barHeight := 0
	if mon.ShowBar {
		barHeight = m.cfg.Bar.Height
	}
	return geometry.Params{
		MonitorWidth:  mon.Dimensions.Width,
		MonitorHeight: mon.Dimensions.Height,
		Pad:           m.state.Padding,
		Border:        m.state.BorderWidth,
		BarHeight:     barHeight,
		PadOnSingle:   m.cfg.Windowing.PadOnSingle,
	}
}

// drawMonitor recomputes and applies geometry for everything on a
// monitor's hosted workspace.
func (m *Manager) drawMonitor(monIdx int) {
	mon := &m.state.Monitors[monIdx]
	ws := mon.HostedWorkspace
	tiled := m.state.Workspaces.TiledWindows(ws)
	mode := m.state.Workspaces.EffectiveDrawMode(ws)
	params := m.layoutParams(mon)
	space := m.state.Workspaces.Get(ws)

	switch mode.Kind {
	case workspace.DrawTiled:
		if mon.TabBarWin != state.None {
			m.unmapIgnoringNotify(mon.TabBarWin)
		}
		dims := geometry.CalculateDimensions(mode.Layout, params, len(tiled),
			space.Modifiers.VerticallyTiled, space.Modifiers.LeftLeader, space.Modifiers.CenterLeader)
		for i, mw := range tiled {
			r := dims[i]
			r.X += mon.Dimensions.X
			r.Y += mon.Dimensions.Y
			border := m.state.BorderWidth
			if len(tiled) == 1 && !params.PadOnSingle {
				border = 0
			}
			seq, _ := m.x.ConfigureWindow(mw.Window, r, border)
			m.state.PushSequence(seq)
		}
	case workspace.DrawTabbed:
		rect := geometry.TabbedDimensions(params, m.cfg.Bar.TabBarHeight)
		rect.X += mon.Dimensions.X
		rect.Y += mon.Dimensions.Y
		for _, mw := range tiled {
			seq, _ := m.x.ConfigureWindow(mw.Window, rect, 0)
			m.state.PushSequence(seq)
		}
		if len(tiled) > 0 {
			m.x.RaiseWindow(tiled[mode.TabIndex].Window)
		}
		m.drawTabBar(monIdx, tiled, mode.TabIndex)
	case workspace.DrawFullscreen:
		// Everything else keeps its tiled geometry underneath so
		// toggling back is immediate.
		prior := workspace.DrawMode{Kind: mode.PriorKind, Layout: mode.PriorLayout, TabIndex: mode.PriorTab}
		if prior.Kind == workspace.DrawTiled {
			dims := geometry.CalculateDimensions(prior.Layout, params, len(tiled),
				space.Modifiers.VerticallyTiled, space.Modifiers.LeftLeader, space.Modifiers.CenterLeader)
			for i, mw := range tiled {
				r := dims[i]
				r.X += mon.Dimensions.X
				r.Y += mon.Dimensions.Y
				seq, _ := m.x.ConfigureWindow(mw.Window, r, m.state.BorderWidth)
				m.state.PushSequence(seq)
			}
		}
		full := geometry.FullscreenDimensions(mon.Dimensions.Width, mon.Dimensions.Height)
		full.X += mon.Dimensions.X
		full.Y += mon.Dimensions.Y
		seq, _ := m.x.ConfigureWindow(mode.Window, full, 0)
		m.state.PushSequence(seq)
		m.x.RaiseWindow(mode.Window)
	}
	// Floating windows always stay above the tiled plane.
	for _, mw := range m.state.Workspaces.WindowsInWs(ws) {
		if mw.Arrange.Floating() {
			m.x.RaiseWindow(mw.Window)
		}
	}
	m.drawBar(monIdx)
}

// drawTabBar maps and repaints a monitor's tab-bar strip.
func (m *Manager) drawTabBar(monIdx int, tiled []workspace.ManagedWindow, focused int) {
	mon := &m.state.Monitors[monIdx]
	if mon.TabBarWin == state.None || m.bar == nil {
		return
	}
	m.mapIgnoringEnter(mon.TabBarWin)
	names := make([]string, len(tiled))
	for i, mw := range tiled {
		names[i] = mw.Properties.Name.Name
	}
	if err := m.bar.DrawTabBar(mon.TabBarWin, mon.Dimensions.Width, names, focused); err != nil {
		m.logger.WithError(err).Warn("Failed to draw tab bar")
	}
}

// drawBar repaints one monitor's bar.
func (m *Manager) drawBar(monIdx int) {
	mon := &m.state.Monitors[monIdx]
	if mon.BarWin == state.None || !mon.ShowBar || m.bar == nil {
		return
	}
	urgent := m.state.Workspaces.WantsFocusWorkspaces()
	err := m.bar.DrawTags(mon.BarWin, &mon.BarGeometry, m.state.Workspaces.Names(),
		mon.HostedWorkspace, monIdx == m.state.FocusedMon, urgent)
	if err != nil {
		m.logger.WithError(err).Warn("Failed to draw workspace tags")
	}
	if err := m.bar.DrawShortcuts(mon.BarWin, &mon.BarGeometry, m.cfg.Bar.Shortcuts); err != nil {
		m.logger.WithError(err).Warn("Failed to draw shortcuts")
	}
	m.drawTitle(monIdx)
	if err := m.bar.DrawStatus(mon.BarWin, &mon.BarGeometry, mon.Status); err != nil {
		m.logger.WithError(err).Warn("Failed to draw status")
	}
}

func (m *Manager) drawTitle(monIdx int) {
	mon := &m.state.Monitors[monIdx]
	if mon.BarWin == state.None || !mon.ShowBar || m.bar == nil {
		return
	}
	if err := m.bar.DrawTitle(mon.BarWin, &mon.BarGeometry, mon.WindowTitle); err != nil {
		m.logger.WithError(err).Warn("Failed to draw window title")
	}
}

func (m *Manager) drawBars() {
	for i := range m.state.Monitors {
		m.drawBar(i)
	}
}

// SetStatus publishes new status text on every bar that shows one.
func (m *Manager) SetStatus(text string) {
	for i := range m.state.Monitors {
		m.state.Monitors[i].Status = text
		m.drawBar(i)
	}
}

// closeWindow starts the close escalation: a WM_DELETE_WINDOW message,
// immediate unmanage, and a queue entry for the destroy/kill stages.
func (m *Manager) closeWindow(win xproto.Window) {
	m.logger.WithField("window", win).Debug("Closing window")
	m.x.SendDelete(win)
	m.state.MarkForDeath(win, m.cfg.Windowing.DestroyAfter, m.now())
	m.unmanage(win, false)
}

// CheckDyingWindows advances the close escalation by at most one step:
// destroy the queue head when its delete deadline elapsed, kill it when
// the destroy grace period elapsed too.
func (m *Manager) CheckDyingWindows() {
	if len(m.state.DyingWindows) == 0 {
		return
	}
	now := m.now()
	head := &m.state.DyingWindows[0]
	if head.ShouldKill(now, m.cfg.Windowing.KillAfter) {
		m.logger.WithField("window", head.Win).Warn("Client ignored destroy, killing")
		m.x.KillClient(head.Win)
		m.state.DyingWindows = m.state.DyingWindows[1:]
		return
	}
	if !head.SentDestroy && head.ShouldDestroy(now) {
		m.logger.WithField("window", head.Win).Debug("Client ignored delete, destroying")
		m.x.DestroyWindow(head.Win)
		head.SentDestroy = true
	}
}

// Cleanup is the shutdown path: release every managed window back to the
// server's care and clear the WM's footprint from the root.
func (m *Manager) Cleanup() {
	_, span := m.tracer.Start(context.Background(), "manager.Cleanup")
	defer span.End()
	for _, win := range m.state.Workspaces.AllManagedWindows() {
		m.x.SetWmState(win, atoms.StateWithdrawn)
	}
	if m.state.PointerGrabbed {
		m.x.UngrabPointer()
		m.state.PointerGrabbed = false
	}
	m.x.ClearClientList()
	m.x.FocusRoot()
	m.x.SetActiveWindow(state.None)
	m.x.Flush()
}
