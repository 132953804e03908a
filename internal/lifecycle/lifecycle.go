// Package lifecycle builds and tears down the monitor-dependent runtime
// state: monitors from the screen query, per-monitor bar surfaces, the
// supporting check window, key and button grabs, and the root EWMH
// properties. A screen change destroys the per-monitor bar and tab-bar
// windows and runs Build again, which creates a new check window and
// repeats the grabs and root property writes; the X connection and atom
// registry survive.
package lifecycle

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/canopywm/canopy/internal/bar"
	"github.com/canopywm/canopy/internal/geometry"
	"github.com/canopywm/canopy/internal/state"
	"github.com/canopywm/canopy/internal/workspace"
	"github.com/canopywm/canopy/internal/x11"
	"github.com/canopywm/canopy/pkg/config"
)

// WMName is what the supporting check window advertises.
const WMName = "canopy"

// Build assembles runtime state: workspaces from configuration, monitors
// from the screen query, bar surfaces and grabs.
func Build(logger *logrus.Logger, calls *x11.CallWrapper, cfg *config.Config, barMgr *bar.Manager) (*state.State, error) {
	palette, err := config.ParseColors(&cfg.Colors)
	if err != nil {
		return nil, err
	}
	ws := workspace.New(workspaceConfigs(cfg), workspace.TilingModifiers{
		LeftLeader:      cfg.TilingModifiers.LeftLeader,
		CenterLeader:    cfg.TilingModifiers.CenterLeader,
		VerticallyTiled: cfg.TilingModifiers.VerticallyTiled,
	})
	st := state.New(calls.Screen(), ws, palette, cfg.Windowing.BorderWidth, cfg.Windowing.Padding)

	rects, err := calls.QueryMonitors()
	if err != nil {
		return nil, fmt.Errorf("failed to query monitors: %w", err)
	}
	if len(rects) > ws.Len() {
		rects = rects[:ws.Len()]
	}
	for i, rect := range rects {
		mon := state.Monitor{
			Dimensions:      rect,
			HostedWorkspace: i,
			ShowBar:         cfg.Bar.ShowOnStartup,
		}
		barWin, err := calls.CreateBarWindow(geometry.Rect{
			X: rect.X, Y: rect.Y, Width: rect.Width, Height: cfg.Bar.Height,
		}, palette.BarBackground)
		if err != nil {
			return nil, fmt.Errorf("failed to create bar window: %w", err)
		}
		tabWin, err := calls.CreateBarWindow(geometry.Rect{
			X: rect.X, Y: rect.Y + cfg.Bar.Height, Width: rect.Width, Height: cfg.Bar.TabBarHeight,
		}, palette.TabBarUnfocused)
		if err != nil {
			return nil, fmt.Errorf("failed to create tab bar window: %w", err)
		}
		mon.BarWin = barWin
		mon.TabBarWin = tabWin
		st.MarkInternCreated(barWin)
		st.MarkInternCreated(tabWin)
		if barMgr != nil {
			mon.BarGeometry = barMgr.ComputeGeometry(rect.Width, ws.Names(), cfg.Bar.Shortcuts, 0)
		}
		if mon.ShowBar {
			if seq, err := calls.MapWindow(barWin); err == nil {
				st.PushSequence(seq)
			}
		}
		st.Monitors = append(st.Monitors, mon)
		logger.WithFields(logrus.Fields{
			"monitor":   i,
			"geometry":  rect,
			"workspace": i,
		}).Info("Monitor configured")
	}

	checkWin, err := calls.CreateWMCheckWindow(WMName)
	if err != nil {
		return nil, fmt.Errorf("failed to create check window: %w", err)
	}
	st.WMCheckWin = checkWin
	st.MarkInternCreated(checkWin)

	if err := calls.SetDesktopProperties(ws.Names()); err != nil {
		return nil, fmt.Errorf("failed to write desktop properties: %w", err)
	}
	if err := grabBindings(calls, cfg, st); err != nil {
		return nil, err
	}
	return st, nil
}

// TearDown releases per-monitor resources: the bar and tab-bar windows. The
// connection and registry survive a rebuild; the check window is not
// destroyed here, and each Build call creates a new one.
func TearDown(calls *x11.CallWrapper, st *state.State) {
	for i := range st.Monitors {
		mon := &st.Monitors[i]
		if mon.BarWin != state.None {
			calls.UnmapWindow(mon.BarWin)
			calls.DestroyWindow(mon.BarWin)
		}
		if mon.TabBarWin != state.None {
			calls.UnmapWindow(mon.TabBarWin)
			calls.DestroyWindow(mon.TabBarWin)
		}
	}
	calls.Flush()
}

func workspaceConfigs(cfg *config.Config) []workspace.Config {
	out := make([]workspace.Config, 0, len(cfg.Workspaces))
	for _, ws := range cfg.Workspaces {
		mode := workspace.Tiled(geometry.LeftLeader)
		switch ws.DefaultDrawMode {
		case "center-leader":
			mode = workspace.Tiled(geometry.CenterLeader)
		case "tabbed":
			mode = workspace.Tabbed(0)
		}
		out = append(out, workspace.Config{
			Name:        ws.Name,
			DefaultMode: mode,
			ClassNames:  ws.ClassNames,
		})
	}
	return out
}

func grabBindings(calls *x11.CallWrapper, cfg *config.Config, st *state.State) error {
	keymap, err := calls.LoadKeymap()
	if err != nil {
		return err
	}
	for _, binding := range cfg.Keys {
		code, ok := keymap.Keycode(binding.Keysym)
		if !ok {
			continue
		}
		if err := calls.GrabKey(binding.Mods, code); err != nil {
			return err
		}
		st.KeyBindings[state.KeyBindingKey{Code: byte(code), Mods: binding.Mods}] = binding.Action
	}
	for _, binding := range cfg.Mouse {
		if binding.Target == config.TargetClientWindow {
			if err := calls.GrabButton(binding.Mods, binding.Button); err != nil {
				return err
			}
		}
		st.MouseBindings[state.MouseBindingKey{
			Button: binding.Button,
			Mods:   binding.Mods,
			Target: targetKind(binding.Target),
		}] = binding.Action
	}
	return nil
}

func targetKind(t config.MouseTarget) bar.TargetKind {
	switch t {
	case config.TargetWorkspaceTag:
		return bar.TargetWorkspaceTag
	case config.TargetShortcut:
		return bar.TargetShortcut
	case config.TargetStatus:
		return bar.TargetStatus
	case config.TargetWindowTitle:
		return bar.TargetWindowTitle
	default:
		return bar.TargetClientWindow
	}
}
