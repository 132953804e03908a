package x11

import (
	"fmt"
	"strings"

	"github.com/jezek/xgb/xproto"

	"github.com/canopywm/canopy/internal/atoms"
	"github.com/canopywm/canopy/internal/properties"
)

const propLengthMax = 1024

// GetWindowProperties reads every client property the manager consumes.
// All GetProperty requests are issued up front and the replies collected
// afterwards, so the reads pipeline into one round trip.
func (c *CallWrapper) GetWindowProperties(win xproto.Window) (*properties.WindowProperties, error) {
	classCookie := c.getProp(win, xproto.AtomWmClass, xproto.AtomString)
	nameCookie := c.getProp(win, xproto.AtomWmName, xproto.GetPropertyTypeAny)
	netNameCookie := c.getProp(win, c.registry.Atom(atoms.NetWmName), c.registry.Atom(atoms.Utf8String))
	hintsCookie := c.getProp(win, xproto.AtomWmHints, xproto.AtomWmHints)
	normalCookie := c.getProp(win, xproto.AtomWmNormalHints, xproto.AtomWmSizeHints)
	stateCookie := c.getProp(win, c.registry.Atom(atoms.NetWmState), xproto.AtomAtom)
	typeCookie := c.getProp(win, c.registry.Atom(atoms.NetWmWindowType), xproto.AtomAtom)
	protoCookie := c.getProp(win, c.registry.Atom(atoms.WmProtocols), xproto.AtomAtom)
	transientCookie := c.getProp(win, xproto.AtomWmTransientFor, xproto.AtomWindow)
	leaderCookie := c.getProp(win, c.registry.Atom(atoms.WmClientLeader), xproto.AtomWindow)
	pidCookie := c.getProp(win, c.registry.Atom(atoms.NetWmPid), xproto.AtomCardinal)

	p := &properties.WindowProperties{}
	if reply, err := classCookie.Reply(); err == nil {
		p.Class = parseNullSeparated(reply.Value)
	}
	if reply, err := nameCookie.Reply(); err == nil && len(reply.Value) > 0 {
		p.Name.SetWmName(string(reply.Value))
	}
	if reply, err := netNameCookie.Reply(); err == nil && len(reply.Value) > 0 {
		p.Name.SetNetWmName(string(reply.Value))
	}
	if reply, err := hintsCookie.Reply(); err == nil {
		p.Hints = properties.ParseWmHints(get32(reply.Value))
	}
	if reply, err := normalCookie.Reply(); err == nil {
		p.SizeHints = properties.ParseSizeHints(get32(reply.Value))
	}
	if reply, err := stateCookie.Reply(); err == nil {
		p.NetWmState = c.parseNetWmState(get32(reply.Value))
	}
	if reply, err := typeCookie.Reply(); err == nil {
		p.WindowTypes = c.parseWindowTypes(get32(reply.Value))
	}
	if reply, err := protoCookie.Reply(); err == nil {
		p.Protocols = c.parseProtocols(get32(reply.Value))
	}
	if reply, err := transientCookie.Reply(); err == nil {
		if vals := get32(reply.Value); len(vals) > 0 {
			p.TransientFor = xproto.Window(vals[0])
		}
	}
	if reply, err := leaderCookie.Reply(); err == nil {
		if vals := get32(reply.Value); len(vals) > 0 {
			p.Leader = xproto.Window(vals[0])
		}
	}
	if reply, err := pidCookie.Reply(); err == nil {
		if vals := get32(reply.Value); len(vals) > 0 {
			p.Pid = vals[0]
		}
	}
	return p, nil
}

// GetWmClass reads only WM_CLASS.
func (c *CallWrapper) GetWmClass(win xproto.Window) ([]string, error) {
	reply, err := c.getProp(win, xproto.AtomWmClass, xproto.AtomString).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to read WM_CLASS: %w", err)
	}
	return parseNullSeparated(reply.Value), nil
}

// GetWmName reads WM_NAME.
func (c *CallWrapper) GetWmName(win xproto.Window) (string, error) {
	reply, err := c.getProp(win, xproto.AtomWmName, xproto.GetPropertyTypeAny).Reply()
	if err != nil {
		return "", fmt.Errorf("failed to read WM_NAME: %w", err)
	}
	return string(reply.Value), nil
}

// GetNetWmName reads _NET_WM_NAME.
func (c *CallWrapper) GetNetWmName(win xproto.Window) (string, error) {
	reply, err := c.getProp(win, c.registry.Atom(atoms.NetWmName), c.registry.Atom(atoms.Utf8String)).Reply()
	if err != nil {
		return "", fmt.Errorf("failed to read _NET_WM_NAME: %w", err)
	}
	return string(reply.Value), nil
}

// GetWmHints reads and parses WM_HINTS.
func (c *CallWrapper) GetWmHints(win xproto.Window) (*properties.WmHints, error) {
	reply, err := c.getProp(win, xproto.AtomWmHints, xproto.AtomWmHints).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to read WM_HINTS: %w", err)
	}
	return properties.ParseWmHints(get32(reply.Value)), nil
}

// GetWmState reads the ICCCM WM_STATE value, reporting ok=false when the
// property is absent.
func (c *CallWrapper) GetWmState(win xproto.Window) (uint32, bool, error) {
	reply, err := c.getProp(win, c.registry.Atom(atoms.WmState), c.registry.Atom(atoms.WmState)).Reply()
	if err != nil {
		return 0, false, fmt.Errorf("failed to read WM_STATE: %w", err)
	}
	vals := get32(reply.Value)
	if len(vals) == 0 {
		return 0, false, nil
	}
	return vals[0], true, nil
}

// GetWindowTypes reads and parses _NET_WM_WINDOW_TYPE.
func (c *CallWrapper) GetWindowTypes(win xproto.Window) ([]properties.WindowType, error) {
	reply, err := c.getProp(win, c.registry.Atom(atoms.NetWmWindowType), xproto.AtomAtom).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to read _NET_WM_WINDOW_TYPE: %w", err)
	}
	return c.parseWindowTypes(get32(reply.Value)), nil
}

func (c *CallWrapper) getProp(win xproto.Window, prop, typ xproto.Atom) xproto.GetPropertyCookie {
	return xproto.GetProperty(c.conn, false, win, prop, typ, 0, propLengthMax)
}

func (c *CallWrapper) parseNetWmState(vals []uint32) properties.NetWmState {
	st := properties.NetWmState{}
	for _, v := range vals {
		switch capability, ok := c.registry.Capability(xproto.Atom(v)); {
		case !ok:
		case capability == atoms.NetWmStateModal:
			st.Modal = true
		case capability == atoms.NetWmStateFullscreen:
			st.Fullscreen = true
		case capability == atoms.NetWmStateDemandsAttention:
			st.DemandsAttention = true
		}
	}
	return st
}

func (c *CallWrapper) parseWindowTypes(vals []uint32) []properties.WindowType {
	var out []properties.WindowType
	for _, v := range vals {
		capability, ok := c.registry.Capability(xproto.Atom(v))
		if !ok {
			out = append(out, properties.WindowTypeOther)
			continue
		}
		switch capability {
		case atoms.NetWmWindowTypeNormal:
			out = append(out, properties.WindowTypeNormal)
		case atoms.NetWmWindowTypeDialog:
			out = append(out, properties.WindowTypeDialog)
		case atoms.NetWmWindowTypeDock:
			out = append(out, properties.WindowTypeDock)
		case atoms.NetWmWindowTypeToolbar:
			out = append(out, properties.WindowTypeToolbar)
		case atoms.NetWmWindowTypeMenu:
			out = append(out, properties.WindowTypeMenu)
		case atoms.NetWmWindowTypeUtility:
			out = append(out, properties.WindowTypeUtility)
		case atoms.NetWmWindowTypeSplash:
			out = append(out, properties.WindowTypeSplash)
		default:
			out = append(out, properties.WindowTypeOther)
		}
	}
	return out
}

func (c *CallWrapper) parseProtocols(vals []uint32) properties.Protocols {
	p := properties.Protocols{}
	for _, v := range vals {
		switch capability, ok := c.registry.Capability(xproto.Atom(v)); {
		case !ok:
		case capability == atoms.WmTakeFocus:
			p.TakeFocus = true
		case capability == atoms.WmDeleteWindow:
			p.DeleteWindow = true
		}
	}
	return p
}

// parseNullSeparated splits a STRING property into its components,
// dropping every empty entry.
func parseNullSeparated(value []byte) []string {
	parts := strings.Split(string(value), "\x00")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SetWmState writes the ICCCM WM_STATE property (Normal, Withdrawn...).
func (c *CallWrapper) SetWmState(win xproto.Window, state uint32) error {
	atom := c.registry.Atom(atoms.WmState)
	c.changePropValues(win, atom, atom, []uint32{state, uint32(None)})
	return nil
}

// SetNetWmState mirrors the WM's view of a client's state flags.
func (c *CallWrapper) SetNetWmState(win xproto.Window, st properties.NetWmState) error {
	var vals []uint32
	if st.Modal {
		vals = append(vals, uint32(c.registry.Atom(atoms.NetWmStateModal)))
	}
	if st.Fullscreen {
		vals = append(vals, uint32(c.registry.Atom(atoms.NetWmStateFullscreen)))
	}
	if st.DemandsAttention {
		vals = append(vals, uint32(c.registry.Atom(atoms.NetWmStateDemandsAttention)))
	}
	c.changePropValues(win, c.registry.Atom(atoms.NetWmState), xproto.AtomAtom, vals)
	return nil
}

// SetFrameExtents writes the border width as all four frame extents.
func (c *CallWrapper) SetFrameExtents(win xproto.Window, borderWidth int) error {
	b := uint32(borderWidth)
	c.changePropValues(win, c.registry.Atom(atoms.NetFrameExtents), xproto.AtomCardinal,
		[]uint32{b, b, b, b})
	return nil
}

// SetAllowedActions advertises the actions the WM honors on a client.
func (c *CallWrapper) SetAllowedActions(win xproto.Window) error {
	c.changePropValues(win, c.registry.Atom(atoms.NetWmAllowedActions), xproto.AtomAtom, []uint32{
		uint32(c.registry.Atom(atoms.NetWmActionFullscreen)),
		uint32(c.registry.Atom(atoms.NetWmActionClose)),
	})
	return nil
}

// SetClientList replaces _NET_CLIENT_LIST on root.
func (c *CallWrapper) SetClientList(wins []xproto.Window) error {
	vals := make([]uint32, len(wins))
	for i, w := range wins {
		vals[i] = uint32(w)
	}
	c.changePropValues(c.screen.Root, c.registry.Atom(atoms.NetClientList), xproto.AtomWindow, vals)
	return nil
}

// PushToClientList appends one window to _NET_CLIENT_LIST.
func (c *CallWrapper) PushToClientList(win xproto.Window) error {
	xproto.ChangeProperty(c.conn, xproto.PropModeAppend, c.screen.Root,
		c.registry.Atom(atoms.NetClientList), xproto.AtomWindow, 32, 1, u32Bytes([]uint32{uint32(win)}))
	return nil
}

// SetActiveWindow publishes the focused window; pass None to clear.
func (c *CallWrapper) SetActiveWindow(win xproto.Window) error {
	c.changeProp32(c.screen.Root, atoms.NetActiveWindow, xproto.AtomWindow, uint32(win))
	return nil
}

// SetDesktopProperties writes the static EWMH desktop description: this
// WM exposes workspaces per monitor, not as a global desktop set, so the
// desktop count is published as zero.
func (c *CallWrapper) SetDesktopProperties(wsNames []string) error {
	root := c.screen.Root
	c.changePropValues(root, c.registry.Atom(atoms.NetSupported), xproto.AtomAtom,
		atomsToU32(c.registry.Supported()))
	c.changeProp32(root, atoms.NetNumberOfDesktops, xproto.AtomCardinal, 0)
	c.changeProp32(root, atoms.NetCurrentDesktop, xproto.AtomCardinal, 0)
	c.changePropValues(root, c.registry.Atom(atoms.NetDesktopViewport), xproto.AtomCardinal,
		[]uint32{0, 0})
	c.changePropValues(root, c.registry.Atom(atoms.NetDesktopGeometry), xproto.AtomCardinal,
		[]uint32{uint32(c.screen.WidthInPixels), uint32(c.screen.HeightInPixels)})
	c.changePropValues(root, c.registry.Atom(atoms.NetWorkarea), xproto.AtomCardinal,
		[]uint32{0, 0, uint32(c.screen.WidthInPixels), uint32(c.screen.HeightInPixels)})
	c.changePropUtf8List(root, atoms.NetDesktopNames, wsNames)
	return nil
}

// ClearClientList removes _NET_CLIENT_LIST, part of the shutdown path.
func (c *CallWrapper) ClearClientList() error {
	xproto.DeleteProperty(c.conn, c.screen.Root, c.registry.Atom(atoms.NetClientList))
	return nil
}

func (c *CallWrapper) changeProp32(win xproto.Window, cap atoms.Capability, typ xproto.Atom, value uint32) {
	c.changePropValues(win, c.registry.Atom(cap), typ, []uint32{value})
}

func (c *CallWrapper) changePropValues(win xproto.Window, prop, typ xproto.Atom, values []uint32) {
	xproto.ChangeProperty(c.conn, xproto.PropModeReplace, win, prop, typ, 32,
		uint32(len(values)), u32Bytes(values))
}

func (c *CallWrapper) changePropUtf8(win xproto.Window, cap atoms.Capability, value string) {
	xproto.ChangeProperty(c.conn, xproto.PropModeReplace, win,
		c.registry.Atom(cap), c.registry.Atom(atoms.Utf8String), 8,
		uint32(len(value)), []byte(value))
}

func (c *CallWrapper) changePropUtf8List(win xproto.Window, cap atoms.Capability, values []string) {
	joined := strings.Join(values, "\x00") + "\x00"
	xproto.ChangeProperty(c.conn, xproto.PropModeReplace, win,
		c.registry.Atom(cap), c.registry.Atom(atoms.Utf8String), 8,
		uint32(len(joined)), []byte(joined))
}

func atomsToU32(in []xproto.Atom) []uint32 {
	out := make([]uint32, len(in))
	for i, a := range in {
		out[i] = uint32(a)
	}
	return out
}

func u32Bytes(vals []uint32) []byte {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		buf[4*i] = byte(v)
		buf[4*i+1] = byte(v >> 8)
		buf[4*i+2] = byte(v >> 16)
		buf[4*i+3] = byte(v >> 24)
	}
	return buf
}
