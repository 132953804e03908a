// Package x11 is the request-building facade over the X connection. It
// owns cookie management, sequence capture for the self-induced-event
// filter, property reads and the EWMH property writes. Everything above
// it speaks in terms of these calls, never raw protocol.
package x11

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xinerama"
	"github.com/jezek/xgb/xproto"
	"github.com/sirupsen/logrus"

	"github.com/canopywm/canopy/internal/atoms"
	"github.com/canopywm/canopy/internal/geometry"
)

// ErrBecomeWM means another window manager already owns substructure
// redirection on the root window.
var ErrBecomeWM = errors.New("failed to become the window manager, is another one running")

// baseClientEventMask is what the WM listens for on every managed window.
const baseClientEventMask = xproto.EventMaskEnterWindow |
	xproto.EventMaskFocusChange |
	xproto.EventMaskPropertyChange |
	xproto.EventMaskStructureNotify

// CallWrapper wraps the X connection with typed request builders.
type CallWrapper struct {
	conn     *xgb.Conn
	screen   *xproto.ScreenInfo
	registry *atoms.Registry
	logger   *logrus.Logger
}

// Connect opens the display and picks the default screen.
func Connect(logger *logrus.Logger, display string) (*CallWrapper, error) {
	conn, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}
	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)
	return &CallWrapper{conn: conn, screen: screen, logger: logger}, nil
}

// SetRegistry attaches the interned atom registry. Property calls are
// invalid until this has been done.
func (c *CallWrapper) SetRegistry(r *atoms.Registry) { c.registry = r }

// Registry returns the attached atom registry.
func (c *CallWrapper) Registry() *atoms.Registry { return c.registry }

// Conn exposes the underlying connection for the event loop.
func (c *CallWrapper) Conn() *xgb.Conn { return c.conn }

// Root returns the root window of the managed screen.
func (c *CallWrapper) Root() xproto.Window { return c.screen.Root }

// Screen returns the managed screen.
func (c *CallWrapper) Screen() *xproto.ScreenInfo { return c.screen }

// Close shuts the connection down.
func (c *CallWrapper) Close() { c.conn.Close() }

// Flush forces buffered requests onto the wire.
func (c *CallWrapper) Flush() error {
	c.conn.Sync()
	return nil
}

// InternAtoms resolves the whole batch of names pipelined: all requests
// go out before the first reply is collected.
func (c *CallWrapper) InternAtoms(names []string) ([]xproto.Atom, error) {
	cookies := make([]xproto.InternAtomCookie, len(names))
	for i, name := range names {
		cookies[i] = xproto.InternAtom(c.conn, false, uint16(len(name)), name)
	}
	out := make([]xproto.Atom, len(names))
	for i, cookie := range cookies {
		reply, err := cookie.Reply()
		if err != nil {
			return nil, fmt.Errorf("failed to intern %q: %w", names[i], err)
		}
		out[i] = reply.Atom
	}
	return out, nil
}

// BecomeWM acquires substructure redirection on root. This is the single
// operation that can detect a competing window manager.
func (c *CallWrapper) BecomeWM() error {
	mask := uint32(xproto.EventMaskSubstructureRedirect |
		xproto.EventMaskSubstructureNotify |
		xproto.EventMaskButtonPress |
		xproto.EventMaskPointerMotion |
		xproto.EventMaskStructureNotify)
	err := xproto.ChangeWindowAttributesChecked(c.conn, c.screen.Root,
		xproto.CwEventMask, []uint32{mask}).Check()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBecomeWM, err)
	}
	return nil
}

// QueryTree returns the root's children in stacking order.
func (c *CallWrapper) QueryTree() ([]xproto.Window, error) {
	reply, err := xproto.QueryTree(c.conn, c.screen.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to query tree: %w", err)
	}
	return reply.Children, nil
}

// WindowAttributes reads the override-redirect flag and viewability.
func (c *CallWrapper) WindowAttributes(win xproto.Window) (overrideRedirect, viewable bool, err error) {
	reply, err := xproto.GetWindowAttributes(c.conn, win).Reply()
	if err != nil {
		return false, false, fmt.Errorf("failed to get window attributes: %w", err)
	}
	return reply.OverrideRedirect, reply.MapState == xproto.MapStateViewable, nil
}

// WindowGeometry reads a window's current rectangle.
func (c *CallWrapper) WindowGeometry(win xproto.Window) (geometry.Rect, error) {
	reply, err := xproto.GetGeometry(c.conn, xproto.Drawable(win)).Reply()
	if err != nil {
		return geometry.Rect{}, fmt.Errorf("failed to get geometry: %w", err)
	}
	return geometry.Rect{
		X: int(reply.X), Y: int(reply.Y),
		Width: int(reply.Width), Height: int(reply.Height),
	}, nil
}

// QueryPointer returns the pointer position and the child window under it.
func (c *CallWrapper) QueryPointer() (x, y int, child xproto.Window, err error) {
	reply, err := xproto.QueryPointer(c.conn, c.screen.Root).Reply()
	if err != nil {
		return 0, 0, None, fmt.Errorf("failed to query pointer: %w", err)
	}
	return int(reply.RootX), int(reply.RootY), reply.Child, nil
}

// None is the X11 null resource.
const None xproto.Window = 0

// MapWindow requests a map and returns the request's sequence number for
// the ignored-sequence heap.
func (c *CallWrapper) MapWindow(win xproto.Window) (uint16, error) {
	cookie := xproto.MapWindow(c.conn, win)
	return cookie.Sequence, nil
}

// UnmapWindow requests an unmap and returns the sequence number.
func (c *CallWrapper) UnmapWindow(win xproto.Window) (uint16, error) {
	cookie := xproto.UnmapWindow(c.conn, win)
	return cookie.Sequence, nil
}

// ConfigureWindow moves and resizes win, setting its border width, and
// returns the sequence number.
func (c *CallWrapper) ConfigureWindow(win xproto.Window, r geometry.Rect, borderWidth int) (uint16, error) {
	mask := uint16(xproto.ConfigWindowX | xproto.ConfigWindowY |
		xproto.ConfigWindowWidth | xproto.ConfigWindowHeight |
		xproto.ConfigWindowBorderWidth)
	cookie := xproto.ConfigureWindow(c.conn, win, mask, []uint32{
		uint32(int32(r.X)), uint32(int32(r.Y)),
		uint32(clampDim(r.Width)), uint32(clampDim(r.Height)),
		uint32(borderWidth),
	})
	return cookie.Sequence, nil
}

// MoveWindow repositions win without touching its size.
func (c *CallWrapper) MoveWindow(win xproto.Window, x, y int) error {
	mask := uint16(xproto.ConfigWindowX | xproto.ConfigWindowY)
	xproto.ConfigureWindow(c.conn, win, mask, []uint32{uint32(int32(x)), uint32(int32(y))})
	return nil
}

// ResizeWindow resizes win in place.
func (c *CallWrapper) ResizeWindow(win xproto.Window, width, height int) error {
	mask := uint16(xproto.ConfigWindowWidth | xproto.ConfigWindowHeight)
	xproto.ConfigureWindow(c.conn, win, mask, []uint32{uint32(clampDim(width)), uint32(clampDim(height))})
	return nil
}

// RaiseWindow brings win to the top of the stacking order.
func (c *CallWrapper) RaiseWindow(win xproto.Window) error {
	xproto.ConfigureWindow(c.conn, win, xproto.ConfigWindowStackMode,
		[]uint32{xproto.StackModeAbove})
	return nil
}

// SetBorderColor paints win's border.
func (c *CallWrapper) SetBorderColor(win xproto.Window, pixel uint32) error {
	xproto.ChangeWindowAttributes(c.conn, win, xproto.CwBorderPixel, []uint32{pixel})
	return nil
}

// SetBaseEventMask subscribes the WM to the events it tracks per client.
func (c *CallWrapper) SetBaseEventMask(win xproto.Window) error {
	xproto.ChangeWindowAttributes(c.conn, win, xproto.CwEventMask,
		[]uint32{uint32(baseClientEventMask)})
	return nil
}

// SetInputFocus gives win the input focus.
func (c *CallWrapper) SetInputFocus(win xproto.Window) error {
	xproto.SetInputFocus(c.conn, xproto.InputFocusPointerRoot, win, xproto.TimeCurrentTime)
	return nil
}

// FocusRoot resets input focus to the root window.
func (c *CallWrapper) FocusRoot() error {
	return c.SetInputFocus(c.screen.Root)
}

// GrabPointer takes the WM-global exclusive grab on root pointer events.
func (c *CallWrapper) GrabPointer() error {
	_, err := xproto.GrabPointer(c.conn, true, c.screen.Root,
		uint16(xproto.EventMaskButtonPress|xproto.EventMaskButtonRelease|xproto.EventMaskPointerMotion),
		xproto.GrabModeAsync, xproto.GrabModeAsync, None, xproto.CursorNone,
		xproto.TimeCurrentTime).Reply()
	if err != nil {
		return fmt.Errorf("failed to grab pointer: %w", err)
	}
	return nil
}

// UngrabPointer releases the pointer grab.
func (c *CallWrapper) UngrabPointer() error {
	xproto.UngrabPointer(c.conn, xproto.TimeCurrentTime)
	return nil
}

// DestroyWindow asks the server to destroy win.
func (c *CallWrapper) DestroyWindow(win xproto.Window) error {
	xproto.DestroyWindow(c.conn, win)
	return nil
}

// KillClient force-disconnects the client owning win.
func (c *CallWrapper) KillClient(win xproto.Window) error {
	xproto.KillClient(c.conn, uint32(win))
	return nil
}

// SendDelete sends a WM_DELETE_WINDOW client message.
func (c *CallWrapper) SendDelete(win xproto.Window) error {
	return c.sendProtocol(win, atoms.WmDeleteWindow, xproto.TimeCurrentTime)
}

// SendTakeFocus sends a WM_TAKE_FOCUS client message stamped with the
// last event timestamp.
func (c *CallWrapper) SendTakeFocus(win xproto.Window, timestamp xproto.Timestamp) error {
	return c.sendProtocol(win, atoms.WmTakeFocus, timestamp)
}

func (c *CallWrapper) sendProtocol(win xproto.Window, protocol atoms.Capability, timestamp xproto.Timestamp) error {
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: win,
		Type:   c.registry.Atom(atoms.WmProtocols),
		Data: xproto.ClientMessageDataUnionData32New([]uint32{
			uint32(c.registry.Atom(protocol)), uint32(timestamp), 0, 0, 0,
		}),
	}
	xproto.SendEvent(c.conn, false, win, xproto.EventMaskNoEvent, string(ev.Bytes()))
	return nil
}

func clampDim(v int) uint16 {
	if v < 1 {
		return 1
	}
	if v > 0xffff {
		return 0xffff
	}
	return uint16(v)
}

// QueryMonitors returns the physical monitor rectangles, through XINERAMA
// when the extension is active, otherwise the whole screen.
func (c *CallWrapper) QueryMonitors() ([]geometry.Rect, error) {
	whole := []geometry.Rect{{
		X: 0, Y: 0,
		Width:  int(c.screen.WidthInPixels),
		Height: int(c.screen.HeightInPixels),
	}}
	if err := xinerama.Init(c.conn); err != nil {
		return whole, nil
	}
	active, err := xinerama.IsActive(c.conn).Reply()
	if err != nil || active.State == 0 {
		return whole, nil
	}
	screens, err := xinerama.QueryScreens(c.conn).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to query xinerama screens: %w", err)
	}
	if len(screens.ScreenInfo) == 0 {
		return whole, nil
	}
	rects := make([]geometry.Rect, 0, len(screens.ScreenInfo))
	for _, si := range screens.ScreenInfo {
		rects = append(rects, geometry.Rect{
			X: int(si.XOrg), Y: int(si.YOrg),
			Width: int(si.Width), Height: int(si.Height),
		})
	}
	return rects, nil
}

// CreateBarWindow creates an override-redirect bar surface at the top of
// a monitor.
func (c *CallWrapper) CreateBarWindow(r geometry.Rect, background uint32) (xproto.Window, error) {
	win, err := xproto.NewWindowId(c.conn)
	if err != nil {
		return None, fmt.Errorf("failed to allocate window id: %w", err)
	}
	xproto.CreateWindow(c.conn, c.screen.RootDepth, win, c.screen.Root,
		int16(r.X), int16(r.Y), uint16(r.Width), uint16(r.Height), 0,
		xproto.WindowClassInputOutput, c.screen.RootVisual,
		xproto.CwBackPixel|xproto.CwOverrideRedirect|xproto.CwEventMask,
		[]uint32{background, 1, uint32(xproto.EventMaskButtonPress | xproto.EventMaskExposure)})
	return win, nil
}

// CreateWMCheckWindow creates the invisible _NET_SUPPORTING_WM_CHECK
// window carrying the WM's name.
func (c *CallWrapper) CreateWMCheckWindow(name string) (xproto.Window, error) {
	win, err := xproto.NewWindowId(c.conn)
	if err != nil {
		return None, fmt.Errorf("failed to allocate window id: %w", err)
	}
	xproto.CreateWindow(c.conn, c.screen.RootDepth, win, c.screen.Root,
		-1, -1, 1, 1, 0,
		xproto.WindowClassInputOutput, c.screen.RootVisual,
		xproto.CwOverrideRedirect, []uint32{1})
	c.changeProp32(win, atoms.NetSupportingWmCheck, xproto.AtomWindow, uint32(win))
	c.changePropUtf8(win, atoms.NetWmName, name)
	c.changeProp32(c.screen.Root, atoms.NetSupportingWmCheck, xproto.AtomWindow, uint32(win))
	return win, nil
}

func get32(buf []byte) []uint32 {
	out := make([]uint32, 0, len(buf)/4)
	for i := 0; i+4 <= len(buf); i += 4 {
		out = append(out, binary.LittleEndian.Uint32(buf[i:]))
	}
	return out
}
