package x11

import (
	"fmt"

	"github.com/jezek/xgb/xproto"

	"github.com/canopywm/canopy/internal/geometry"
)

// CoreFontDrawer draws bar text with a core-protocol server-side font. It
// satisfies the bar's font-drawer interface; richer stacks (client-side
// rasterization through RENDER) plug in behind the same interface.
type CoreFontDrawer struct {
	calls   *CallWrapper
	font    xproto.Font
	ascent  int
	descent int
	widths  map[rune]int
}

// NewCoreFontDrawer opens the named server font ("fixed" is always
// available) and caches its metrics.
func NewCoreFontDrawer(calls *CallWrapper, fontName string) (*CoreFontDrawer, error) {
	font, err := xproto.NewFontId(calls.conn)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate font id: %w", err)
	}
	if err := xproto.OpenFontChecked(calls.conn, font, uint16(len(fontName)), fontName).Check(); err != nil {
		return nil, fmt.Errorf("failed to open font %q: %w", fontName, err)
	}
	info, err := xproto.QueryFont(calls.conn, xproto.Fontable(font)).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to query font %q: %w", fontName, err)
	}
	d := &CoreFontDrawer{
		calls:   calls,
		font:    font,
		ascent:  int(info.FontAscent),
		descent: int(info.FontDescent),
		widths:  make(map[rune]int),
	}
	return d, nil
}

// Close frees the server font.
func (d *CoreFontDrawer) Close() {
	xproto.CloseFont(d.calls.conn, d.font)
}

// TextExtents measures text. Extents queries are answered by the server,
// so results are cached per rune to keep bar redraws off the wire.
func (d *CoreFontDrawer) TextExtents(text string) (int, int) {
	width := 0
	height := d.ascent + d.descent
	var uncached []rune
	for _, r := range text {
		if w, ok := d.widths[r]; ok {
			width += w
		} else {
			uncached = append(uncached, r)
		}
	}
	for _, r := range uncached {
		w := d.measureRune(r)
		d.widths[r] = w
		width += w
	}
	return width, height
}

func (d *CoreFontDrawer) measureRune(r rune) int {
	ch := xproto.Char2b{Byte1: byte(uint16(r) >> 8), Byte2: byte(r)}
	reply, err := xproto.QueryTextExtents(d.calls.conn, xproto.Fontable(d.font), []xproto.Char2b{ch}, 1).Reply()
	if err != nil {
		return 0
	}
	return int(reply.OverallWidth)
}

// Draw renders text into the rectangle on target with the given colors.
func (d *CoreFontDrawer) Draw(target xproto.Window, text string, r geometry.Rect, fg, bg uint32) error {
	gc, err := xproto.NewGcontextId(d.calls.conn)
	if err != nil {
		return fmt.Errorf("failed to allocate gcontext: %w", err)
	}
	xproto.CreateGC(d.calls.conn, gc, xproto.Drawable(target),
		xproto.GcForeground|xproto.GcBackground|xproto.GcFont,
		[]uint32{fg, bg, uint32(d.font)})
	defer xproto.FreeGC(d.calls.conn, gc)
	if len(text) > 254 {
		text = text[:254]
	}
	baseline := r.Y + (r.Height+d.ascent-d.descent)/2
	xproto.ImageText8(d.calls.conn, byte(len(text)), xproto.Drawable(target), gc,
		int16(r.X), int16(baseline), text)
	return nil
}

// FillRect paints a solid rectangle, satisfying the bar surface
// interface.
func (c *CallWrapper) FillRect(target xproto.Window, r geometry.Rect, pixel uint32) error {
	gc, err := xproto.NewGcontextId(c.conn)
	if err != nil {
		return fmt.Errorf("failed to allocate gcontext: %w", err)
	}
	xproto.CreateGC(c.conn, gc, xproto.Drawable(target), xproto.GcForeground, []uint32{pixel})
	xproto.PolyFillRectangle(c.conn, xproto.Drawable(target), gc, []xproto.Rectangle{{
		X: int16(r.X), Y: int16(r.Y), Width: uint16(r.Width), Height: uint16(r.Height),
	}})
	xproto.FreeGC(c.conn, gc)
	return nil
}
