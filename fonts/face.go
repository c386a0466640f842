// Package fonts provides the bitmap faces of the boot screens.
package fonts

import (
	"image"

	"github.com/embeddedgo/display/font/subfont"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var basic = basicfont.Face7x13

// First and Last are the runes covered by Basic. Labels are folded to this
// range before drawing.
const (
	First rune = 0x20
	Last  rune = 0x7e
)

// Basic returns a face with the printable ASCII glyphs of the 7x13 basic
// font.
func Basic() *subfont.Face {
	return &subfont.Face{
		Height: int16(basic.Height),
		Ascent: int16(basic.Ascent),
		Subfonts: []*subfont.Subfont{{
			First: First,
			Last:  Last,
			Data:  maskData{first: First},
		}},
	}
}

// maskData implements [subfont.Data] on the glyph mask of a basicfont. Glyph
// images are a full line high, origin is their left end of the baseline.
type maskData struct {
	first rune
}

func (d maskData) Advance(i int) int {
	return basic.Advance
}

func (d maskData) Glyph(i int) (img image.Image, origin image.Point, advance int) {
	dot := image.Pt(0, basic.Ascent)
	dr, mask, mp, _, ok := basic.Glyph(fixed.P(dot.X, dot.Y), d.first+rune(i))
	if !ok {
		return nil, image.Point{}, basic.Advance
	}
	sub, ok := mask.(interface {
		SubImage(image.Rectangle) image.Image
	})
	if !ok {
		return nil, image.Point{}, basic.Advance
	}
	img = sub.SubImage(image.Rectangle{mp, mp.Add(dr.Size())})
	origin = mp.Add(dot.Sub(dr.Min))
	return img, origin, basic.Advance
}
