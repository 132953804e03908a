// Package properties holds the typed view of client window attributes and
// the deduction rules that turn raw ICCCM/EWMH hints into the decisions
// the manager acts on: how focus is delivered and whether a window floats.
package properties

import (
	"github.com/jezek/xgb/xproto"
)

// FocusStyle describes how input focus is delivered to a client, per the
// ICCCM input-focus protocol.
type FocusStyle int

const (
	// Passive clients get focus assigned by the WM directly.
	Passive FocusStyle = iota
	// LocallyActive clients get focus assigned and a WM_TAKE_FOCUS message.
	LocallyActive
	// GloballyActive clients only ever take focus themselves; the WM sends
	// WM_TAKE_FOCUS and leaves SetInputFocus alone.
	GloballyActive
	// NoInput clients never receive input focus.
	NoInput
)

func (f FocusStyle) String() string {
	switch f {
	case LocallyActive:
		return "locally-active"
	case GloballyActive:
		return "globally-active"
	case NoInput:
		return "no-input"
	default:
		return "passive"
	}
}

// WindowType is a parsed _NET_WM_WINDOW_TYPE entry.
type WindowType int

const (
	WindowTypeNormal WindowType = iota
	WindowTypeDialog
	WindowTypeDock
	WindowTypeToolbar
	WindowTypeMenu
	WindowTypeUtility
	WindowTypeSplash
	WindowTypeOther
)

// WmName is a client window title. _NET_WM_NAME wins over WM_NAME once
// seen, so the source is tracked alongside the value.
type WmName struct {
	Name string
	Net  bool
}

// SetWmName applies a WM_NAME update, which loses to an already-seen
// _NET_WM_NAME. Reports whether the stored value changed.
func (n *WmName) SetWmName(name string) bool {
	if n.Net || n.Name == name {
		return false
	}
	n.Name = name
	return true
}

// SetNetWmName applies a _NET_WM_NAME update. Reports whether the stored
// value changed.
func (n *WmName) SetNetWmName(name string) bool {
	changed := !n.Net || n.Name != name
	n.Name = name
	n.Net = true
	return changed
}

// WmHints is the parsed WM_HINTS property. Input is nil when the client
// did not set the input flag.
type WmHints struct {
	Input       *bool
	Urgent      bool
	WindowGroup xproto.Window
}

// SizeHints is the parsed WM_NORMAL_HINTS property. Unset fields are nil.
type SizeHints struct {
	MinWidth  *int
	MinHeight *int
	MaxWidth  *int
	MaxHeight *int
}

// Fixed reports whether the hints pin the window to a fixed width or
// height (min equals max in either dimension).
func (s *SizeHints) Fixed() bool {
	if s == nil || s.MinWidth == nil || s.MinHeight == nil || s.MaxWidth == nil || s.MaxHeight == nil {
		return false
	}
	return *s.MinWidth == *s.MaxWidth || *s.MinHeight == *s.MaxHeight
}

// NetWmState is the subset of _NET_WM_STATE flags the manager tracks.
type NetWmState struct {
	Modal            bool
	Fullscreen       bool
	DemandsAttention bool
}

// Protocols is the parsed WM_PROTOCOLS property.
type Protocols struct {
	TakeFocus    bool
	DeleteWindow bool
}

// WindowProperties is everything the manager reads off a client window.
type WindowProperties struct {
	Name         WmName
	Class        []string
	Hints        *WmHints
	SizeHints    *SizeHints
	NetWmState   NetWmState
	Protocols    Protocols
	WindowTypes  []WindowType
	TransientFor xproto.Window
	Leader       xproto.Window
	Pid          uint32
}

// ClassMatches reports whether any WM_CLASS entry equals name.
func (p *WindowProperties) ClassMatches(name string) bool {
	for _, c := range p.Class {
		if c == name {
			return true
		}
	}
	return false
}

// DeduceFocusStyle applies the ICCCM input-focus table. Clients that leave
// the input field unset and advertise no WM_TAKE_FOCUS default to Passive:
// the stricter NoInput reading breaks real clients that omit the field but
// still expect input.
func DeduceFocusStyle(hints *WmHints, protocols Protocols) FocusStyle {
	var input *bool
	if hints != nil {
		input = hints.Input
	}
	switch {
	case input == nil && protocols.TakeFocus:
		return GloballyActive
	case input == nil:
		return Passive
	case *input && protocols.TakeFocus:
		return LocallyActive
	case *input:
		return Passive
	case protocols.TakeFocus:
		return GloballyActive
	default:
		return NoInput
	}
}

// FloatDeduction is the outcome of DeduceFloatStatus. Parent is zero when
// the window has no usable parent reference.
type FloatDeduction struct {
	Floating bool
	Parent   xproto.Window
}

// DeduceFloatStatus decides float-vs-tile from the client's hints:
// fixed-size windows float, modal windows float attached to their
// transient-for or group leader, dialogs float, windows with a
// transient-for but no recognized type are treated as dialogs. The parent
// reference never points at the root.
func DeduceFloatStatus(p *WindowProperties, root xproto.Window) FloatDeduction {
	parent := p.TransientFor
	if parent == root {
		parent = 0
	}
	if p.SizeHints.Fixed() {
		return FloatDeduction{Floating: true, Parent: parent}
	}
	if p.NetWmState.Modal {
		modalParent := parent
		if modalParent == 0 && p.Hints != nil && p.Hints.WindowGroup != 0 && p.Hints.WindowGroup != root {
			modalParent = p.Hints.WindowGroup
		}
		return FloatDeduction{Floating: true, Parent: modalParent}
	}
	for _, wt := range p.WindowTypes {
		switch wt {
		case WindowTypeNormal:
			return FloatDeduction{Floating: false, Parent: parent}
		case WindowTypeDialog:
			return FloatDeduction{Floating: true, Parent: parent}
		}
	}
	if p.TransientFor != 0 {
		return FloatDeduction{Floating: true, Parent: parent}
	}
	return FloatDeduction{Floating: false, Parent: parent}
}

// WM_HINTS wire flags.
const (
	hintInput       = 1 << 0
	hintWindowGroup = 1 << 6
	hintUrgency     = 1 << 8
)

// ParseWmHints decodes a raw WM_HINTS payload (32-bit formatted, at least
// nine words). Returns nil on malformed payloads.
func ParseWmHints(data []uint32) *WmHints {
	if len(data) < 9 {
		return nil
	}
	flags := data[0]
	h := &WmHints{Urgent: flags&hintUrgency != 0}
	if flags&hintInput != 0 {
		input := data[1] != 0
		h.Input = &input
	}
	if flags&hintWindowGroup != 0 {
		h.WindowGroup = xproto.Window(data[8])
	}
	return h
}

// WM_NORMAL_HINTS wire flags.
const (
	sizeHintPMinSize = 1 << 4
	sizeHintPMaxSize = 1 << 5
)

// ParseSizeHints decodes a raw WM_NORMAL_HINTS payload (32-bit formatted,
// at least nine words). Returns nil on malformed payloads.
func ParseSizeHints(data []uint32) *SizeHints {
	if len(data) < 9 {
		return nil
	}
	flags := data[0]
	s := &SizeHints{}
	if flags&sizeHintPMinSize != 0 {
		minW, minH := int(int32(data[5])), int(int32(data[6]))
		s.MinWidth, s.MinHeight = &minW, &minH
	}
	if flags&sizeHintPMaxSize != 0 {
		maxW, maxH := int(int32(data[7])), int(int32(data[8]))
		s.MaxWidth, s.MaxHeight = &maxW, &maxH
	}
	return s
}
