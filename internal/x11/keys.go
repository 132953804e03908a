package x11

import (
	"fmt"

	"github.com/jezek/xgb/xproto"
)

// Keymap resolves keysyms to keycodes for the connected display.
type Keymap struct {
	symToCode map[uint32]xproto.Keycode
}

// LoadKeymap reads the server's keyboard mapping. Only the first keysym
// column is considered; that is the unshifted binding plane.
func (c *CallWrapper) LoadKeymap() (*Keymap, error) {
	setup := xproto.Setup(c.conn)
	min := setup.MinKeycode
	count := byte(setup.MaxKeycode - min + 1)
	reply, err := xproto.GetKeyboardMapping(c.conn, min, count).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to load keyboard mapping: %w", err)
	}
	km := &Keymap{symToCode: make(map[uint32]xproto.Keycode)}
	per := int(reply.KeysymsPerKeycode)
	for i := 0; i < int(count); i++ {
		if i*per >= len(reply.Keysyms) {
			break
		}
		sym := uint32(reply.Keysyms[i*per])
		if sym == 0 {
			continue
		}
		if _, taken := km.symToCode[sym]; !taken {
			km.symToCode[sym] = min + xproto.Keycode(i)
		}
	}
	return km, nil
}

// Keycode resolves a keysym.
func (k *Keymap) Keycode(sym uint32) (xproto.Keycode, bool) {
	code, ok := k.symToCode[sym]
	return code, ok
}

// GrabKey registers a passive grab for a key chord on root. The chord is
// grabbed with and without Mod2 so num-lock does not mask bindings.
func (c *CallWrapper) GrabKey(mods uint16, code xproto.Keycode) error {
	for _, m := range []uint16{mods, mods | xproto.ModMask2} {
		xproto.GrabKey(c.conn, true, c.screen.Root, m, code,
			xproto.GrabModeAsync, xproto.GrabModeAsync)
	}
	return nil
}

// GrabButton registers a passive grab for a pointer button on root.
func (c *CallWrapper) GrabButton(mods uint16, button byte) error {
	for _, m := range []uint16{mods, mods | xproto.ModMask2} {
		xproto.GrabButton(c.conn, true, c.screen.Root,
			uint16(xproto.EventMaskButtonPress|xproto.EventMaskButtonRelease),
			xproto.GrabModeAsync, xproto.GrabModeAsync, None, xproto.CursorNone,
			button, m)
	}
	return nil
}

// UngrabAllKeys drops every passive key grab on root.
func (c *CallWrapper) UngrabAllKeys() error {
	xproto.UngrabKey(c.conn, xproto.GrabAny, c.screen.Root, xproto.ModMaskAny)
	return nil
}
