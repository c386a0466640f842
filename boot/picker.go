package boot

import (
	"fmt"
	"image"
	"image/color"

	"github.com/embeddedgo/display/pix"
	"golang.org/x/image/draw"

	"github.com/clktmr/rvfm/drivers/carts"
	"github.com/clktmr/rvfm/drivers/gpu"
	"github.com/clktmr/rvfm/drivers/input"
	"github.com/clktmr/rvfm/fonts"
	"github.com/clktmr/rvfm/hw/cartloader"
)

type Action int

const (
	ActionNone Action = iota
	ActionLoad
	ActionRefresh
)

// Layout of the picker in pixels.
const (
	headerHeight = 20
	rowHeight    = 40
	iconSize     = 32
	margin       = 4
)

var (
	colorBackground = color.RGBA{0x10, 0x10, 0x18, 0xff}
	colorHeader     = color.RGBA{0x30, 0x30, 0x48, 0xff}
	colorSelected   = color.RGBA{0x40, 0x60, 0xa0, 0xff}
	colorText       = color.RGBA{0xe0, 0xe0, 0xe0, 0xff}
	colorDim        = color.RGBA{0x90, 0x90, 0xa0, 0xff}
)

// Picker is the cart selection list.
type Picker struct {
	Records  []*cartloader.Record
	Selected int
	top      int
}

// SetRecords replaces the list. The selection follows the selected record if
// it's still present, otherwise it's clamped.
func (p *Picker) SetRecords(recs []*cartloader.Record) {
	if p.Selected < len(p.Records) {
		if i := carts.Find(recs, carts.Digest(p.Records[p.Selected])); i >= 0 {
			p.Selected = i
		}
	}
	p.Records = recs
	p.Selected = max(0, min(p.Selected, len(recs)-1))
	p.scroll()
}

// Handle applies a set of pressed keys.
func (p *Picker) Handle(pressed input.Keys) Action {
	switch {
	case pressed.Has(input.KeyReturn):
		if len(p.Records) > 0 {
			return ActionLoad
		}
	case pressed.Has(input.KeyR):
		return ActionRefresh
	case pressed.Has(input.KeyUp):
		if p.Selected > 0 {
			p.Selected--
		}
	case pressed.Has(input.KeyDown):
		if p.Selected < len(p.Records)-1 {
			p.Selected++
		}
	}
	p.scroll()
	return ActionNone
}

func rows(dst image.Rectangle) int {
	return max(1, (dst.Dy()-headerHeight)/rowHeight)
}

func (p *Picker) scroll() {
	n := rows(gpu.Bounds)
	if p.Selected < p.top {
		p.top = p.Selected
	} else if p.Selected >= p.top+n {
		p.top = p.Selected - n + 1
	}
}

// face is shared by all pickers, glyph images are immutable.
var face = fonts.Basic()

// text writes s with the top of its line at pt, clipped to the row of text.
func text(d *pix.Display, pt image.Point, c color.Color, s string) {
	line := image.Rectangle{pt, image.Pt(d.Bounds().Max.X, pt.Y+int(face.Height))}
	a := d.NewArea(line)
	tw := a.NewTextWriter(face)
	tw.SetColor(c)
	tw.Pos = a.Bounds().Min
	tw.WriteString(s)
}

func fill(a *pix.Area, r image.Rectangle, c color.Color) {
	a.SetColor(c)
	a.Fill(r)
}

// Draw renders the picker on d.
func (p *Picker) Draw(d *pix.Display) {
	b := d.Bounds()
	a := d.NewArea(b)
	fill(a, b, colorBackground)

	header := image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+headerHeight)
	fill(a, header, colorHeader)
	text(d, image.Pt(b.Min.X+margin, b.Min.Y+3), colorText,
		fmt.Sprintf("Select a cart (%d)", len(p.Records)))

	icon := image.NewRGBA(image.Rect(0, 0, iconSize, iconSize))
	for i := p.top; i < len(p.Records) && i < p.top+rows(b); i++ {
		rec := p.Records[i]
		y := b.Min.Y + headerHeight + (i-p.top)*rowHeight
		if i == p.Selected {
			fill(a, image.Rect(b.Min.X, y, b.Max.X, y+rowHeight), colorSelected)
		}

		draw.ApproxBiLinear.Scale(icon, icon.Bounds(), rec.IconImage(), image.Rect(0, 0, cartloader.IconSize, cartloader.IconSize), draw.Src, nil)
		r := icon.Bounds().Add(image.Pt(b.Min.X+margin, y+margin))
		a.Draw(r, icon, image.Point{}, nil, image.Point{}, draw.Over)

		x := r.Max.X + margin
		text(d, image.Pt(x, y+5), colorText, carts.Label(rec.Name))
		text(d, image.Pt(x, y+21), colorDim, carts.Label(fmt.Sprintf("v%s %s", rec.Version, rec.Developer)))
	}
}
