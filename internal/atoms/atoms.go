// Package atoms maps the protocol atoms the WM speaks to an enumerated
// capability set, interned in one pipelined batch at startup, with reverse
// lookup for dispatching property and client-message events.
package atoms

import (
	"fmt"

	"github.com/jezek/xgb/xproto"
)

// Capability is one named protocol atom the WM understands.
type Capability int

const (
	WmProtocols Capability = iota
	WmDeleteWindow
	WmTakeFocus
	WmState
	WmName
	WmClass
	WmHints
	WmNormalHints
	WmTransientFor
	WmClientLeader
	NetSupported
	NetClientList
	NetNumberOfDesktops
	NetDesktopNames
	NetDesktopGeometry
	NetDesktopViewport
	NetCurrentDesktop
	NetWorkarea
	NetActiveWindow
	NetSupportingWmCheck
	NetWmName
	NetWmPid
	NetWmState
	NetWmStateModal
	NetWmStateFullscreen
	NetWmStateDemandsAttention
	NetWmWindowType
	NetWmWindowTypeNormal
	NetWmWindowTypeDialog
	NetWmWindowTypeDock
	NetWmWindowTypeToolbar
	NetWmWindowTypeMenu
	NetWmWindowTypeUtility
	NetWmWindowTypeSplash
	NetWmAllowedActions
	NetWmActionFullscreen
	NetWmActionClose
	NetCloseWindow
	NetRequestFrameExtents
	NetFrameExtents
	Utf8String

	capabilityCount int = iota
)

var capabilityNames = map[Capability]string{
	WmProtocols:                     "WM_PROTOCOLS",
	WmDeleteWindow:                  "WM_DELETE_WINDOW",
	WmTakeFocus:                     "WM_TAKE_FOCUS",
	WmState:                         "WM_STATE",
	WmName:                          "WM_NAME",
	WmClass:                         "WM_CLASS",
	WmHints:                         "WM_HINTS",
	WmNormalHints:                   "WM_NORMAL_HINTS",
	WmTransientFor:                  "WM_TRANSIENT_FOR",
	WmClientLeader:                  "WM_CLIENT_LEADER",
	NetSupported:                    "_NET_SUPPORTED",
	NetClientList:                   "_NET_CLIENT_LIST",
	NetNumberOfDesktops:             "_NET_NUMBER_OF_DESKTOPS",
	NetDesktopNames:                 "_NET_DESKTOP_NAMES",
	NetDesktopGeometry:              "_NET_DESKTOP_GEOMETRY",
	NetDesktopViewport:              "_NET_DESKTOP_VIEWPORT",
	NetCurrentDesktop:               "_NET_CURRENT_DESKTOP",
	NetWorkarea:                     "_NET_WORKAREA",
	NetActiveWindow:                 "_NET_ACTIVE_WINDOW",
	NetSupportingWmCheck:            "_NET_SUPPORTING_WM_CHECK",
	NetWmName:                       "_NET_WM_NAME",
	NetWmPid:                        "_NET_WM_PID",
	NetWmState:                      "_NET_WM_STATE",
	NetWmStateModal:                 "_NET_WM_STATE_MODAL",
	NetWmStateFullscreen:            "_NET_WM_STATE_FULLSCREEN",
	NetWmStateDemandsAttention:      "_NET_WM_STATE_DEMANDS_ATTENTION",
	NetWmWindowType:                 "_NET_WM_WINDOW_TYPE",
	NetWmWindowTypeNormal:           "_NET_WM_WINDOW_TYPE_NORMAL",
	NetWmWindowTypeDialog:           "_NET_WM_WINDOW_TYPE_DIALOG",
	NetWmWindowTypeDock:             "_NET_WM_WINDOW_TYPE_DOCK",
	NetWmWindowTypeToolbar:          "_NET_WM_WINDOW_TYPE_TOOLBAR",
	NetWmWindowTypeMenu:             "_NET_WM_WINDOW_TYPE_MENU",
	NetWmWindowTypeUtility:          "_NET_WM_WINDOW_TYPE_UTILITY",
	NetWmWindowTypeSplash:           "_NET_WM_WINDOW_TYPE_SPLASH",
	NetWmAllowedActions:             "_NET_WM_ALLOWED_ACTIONS",
	NetWmActionFullscreen:           "_NET_WM_ACTION_FULLSCREEN",
	NetWmActionClose:                "_NET_WM_ACTION_CLOSE",
	NetCloseWindow:                  "_NET_CLOSE_WINDOW",
	NetRequestFrameExtents:          "_NET_REQUEST_FRAME_EXTENTS",
	NetFrameExtents:                 "_NET_FRAME_EXTENTS",
	Utf8String:                      "UTF8_STRING",
}

// String returns the protocol name of the capability.
func (c Capability) String() string { return capabilityNames[c] }

// ewmh reports whether the capability is advertised in _NET_SUPPORTED.
func (c Capability) ewmh() bool {
	name := capabilityNames[c]
	return len(name) > 5 && name[:5] == "_NET_"
}

// Interner resolves protocol atom names to server atoms. Implementations
// are expected to pipeline the whole batch.
type Interner interface {
	InternAtoms(names []string) ([]xproto.Atom, error)
}

// Registry is the symbolic two-way mapping between capabilities and the
// server's atom values.
type Registry struct {
	atoms   [capabilityCount]xproto.Atom
	reverse map[xproto.Atom]Capability
}

// NewRegistry interns every capability through the given interner.
func NewRegistry(in Interner) (*Registry, error) {
	names := make([]string, capabilityCount)
	for c := Capability(0); int(c) < capabilityCount; c++ {
		names[c] = capabilityNames[c]
	}
	resolved, err := in.InternAtoms(names)
	if err != nil {
		return nil, fmt.Errorf("failed to intern atoms: %w", err)
	}
	if len(resolved) != capabilityCount {
		return nil, fmt.Errorf("interned %d atoms, want %d", len(resolved), capabilityCount)
	}
	r := &Registry{reverse: make(map[xproto.Atom]Capability, capabilityCount)}
	for c, atom := range resolved {
		r.atoms[c] = atom
		if _, taken := r.reverse[atom]; !taken {
			r.reverse[atom] = Capability(c)
		}
	}
	return r, nil
}

// Atom returns the server atom for a capability.
func (r *Registry) Atom(c Capability) xproto.Atom { return r.atoms[c] }

// Capability returns the capability a server atom maps to.
func (r *Registry) Capability(a xproto.Atom) (Capability, bool) {
	c, ok := r.reverse[a]
	return c, ok
}

// Supported returns the atoms advertised in _NET_SUPPORTED, in capability
// order.
func (r *Registry) Supported() []xproto.Atom {
	var out []xproto.Atom
	for c := Capability(0); int(c) < capabilityCount; c++ {
		if c.ewmh() {
			out = append(out, r.atoms[c])
		}
	}
	return out
}

// WM_STATE property values from the ICCCM.
const (
	StateWithdrawn uint32 = 0
	StateNormal    uint32 = 1
	StateIconic    uint32 = 3
)

// _NET_WM_STATE client-message actions.
const (
	NetWmStateRemove uint32 = 0
	NetWmStateAdd    uint32 = 1
	NetWmStateToggle uint32 = 2
)
