package boot_test

import (
	"image"
	"image/color"
	"testing"

	"github.com/embeddedgo/display/pix"

	"github.com/clktmr/rvfm/boot"
	"github.com/clktmr/rvfm/drivers/gpu"
	"github.com/clktmr/rvfm/drivers/input"
	"github.com/clktmr/rvfm/hw/cartloader"
)

func keys(ks ...input.Key) (k input.Keys) {
	for _, key := range ks {
		k[key/32] |= 1 << (key % 32)
	}
	return k
}

func records(names ...string) []*cartloader.Record {
	recs := make([]*cartloader.Record, len(names))
	for i, name := range names {
		recs[i] = &cartloader.Record{Name: name, Version: cartloader.Version{Major: 1}}
	}
	return recs
}

func TestPickerNavigate(t *testing.T) {
	var p boot.Picker
	p.SetRecords(records("a", "b", "c"))

	steps := []struct {
		keys     input.Keys
		action   boot.Action
		selected int
	}{
		{keys(input.KeyUp), boot.ActionNone, 0},
		{keys(input.KeyDown), boot.ActionNone, 1},
		{keys(input.KeyDown), boot.ActionNone, 2},
		{keys(input.KeyDown), boot.ActionNone, 2},
		{keys(input.KeyUp), boot.ActionNone, 1},
		{keys(), boot.ActionNone, 1},
		{keys(input.KeyLeft), boot.ActionNone, 1},
		{keys(input.KeyR), boot.ActionRefresh, 1},
		{keys(input.KeyReturn), boot.ActionLoad, 1},
	}
	for i, s := range steps {
		if a := p.Handle(s.keys); a != s.action {
			t.Errorf("step %d: got action %d, want %d", i, a, s.action)
		}
		if p.Selected != s.selected {
			t.Errorf("step %d: selected %d, want %d", i, p.Selected, s.selected)
		}
	}
}

func TestPickerEmpty(t *testing.T) {
	var p boot.Picker
	p.SetRecords(nil)
	if a := p.Handle(keys(input.KeyReturn)); a != boot.ActionNone {
		t.Errorf("load with empty list: %d", a)
	}
	if a := p.Handle(keys(input.KeyDown)); a != boot.ActionNone || p.Selected != 0 {
		t.Errorf("got %d, selected %d", a, p.Selected)
	}
}

func TestPickerKeepsSelection(t *testing.T) {
	var p boot.Picker
	recs := records("a", "b", "c")
	p.SetRecords(recs)
	p.Selected = 2

	p.SetRecords([]*cartloader.Record{recs[2], recs[0]})
	if p.Selected != 0 {
		t.Errorf("selection didn't follow record: %d", p.Selected)
	}

	p.SetRecords(records("x"))
	if p.Selected != 0 {
		t.Errorf("selection not clamped: %d", p.Selected)
	}

	p.Selected = 0
	p.SetRecords(records("a", "b", "c", "d"))
	p.Selected = 3
	p.SetRecords(records("a", "b"))
	if p.Selected != 1 {
		t.Errorf("selection not clamped to end: %d", p.Selected)
	}
}

func TestPickerDraw(t *testing.T) {
	var p boot.Picker
	p.SetRecords(records("Pong", "Tetris"))
	p.Handle(keys(input.KeyDown))

	img := image.NewRGBA(gpu.Bounds)
	p.Draw(pix.NewDisplay(gpu.NewCanvas(img)))

	tests := []struct {
		x, y int
		want color.RGBA
	}{
		{gpu.Width - 1, 1, color.RGBA{0x30, 0x30, 0x48, 0xff}},              // header
		{gpu.Width - 1, 21, color.RGBA{0x10, 0x10, 0x18, 0xff}},             // first row
		{gpu.Width - 1, 61, color.RGBA{0x40, 0x60, 0xa0, 0xff}},             // selected row
		{gpu.Width - 1, gpu.Height - 1, color.RGBA{0x10, 0x10, 0x18, 0xff}}, // empty
	}
	for _, tc := range tests {
		if got := img.RGBAAt(tc.x, tc.y); got != tc.want {
			t.Errorf("(%d,%d): got %v, want %v", tc.x, tc.y, got, tc.want)
		}
	}
}

func TestPickerScroll(t *testing.T) {
	names := make([]string, 20)
	for i := range names {
		names[i] = string(rune('a' + i))
	}
	var p boot.Picker
	p.SetRecords(records(names...))
	for range 10 {
		p.Handle(keys(input.KeyDown))
	}
	img := image.NewRGBA(gpu.Bounds)
	p.Draw(pix.NewDisplay(gpu.NewCanvas(img)))

	// four rows fit below the header, the selection is in the last one
	if got := img.RGBAAt(gpu.Width-1, 20+3*40+1); got != (color.RGBA{0x40, 0x60, 0xa0, 0xff}) {
		t.Errorf("selected row not visible: %v", got)
	}
}

func TestPickerLabels(t *testing.T) {
	var p boot.Picker
	p.SetRecords(records("Pokémon", "Tetris"))

	img := image.NewRGBA(gpu.Bounds)
	p.Draw(pix.NewDisplay(gpu.NewCanvas(img)))

	// count text pixels in a part of a row
	inked := func(r image.Rectangle, c color.RGBA) (n int) {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				if img.RGBAAt(x, y) == c {
					n++
				}
			}
		}
		return n
	}
	text := color.RGBA{0xe0, 0xe0, 0xe0, 0xff}
	dim := color.RGBA{0x90, 0x90, 0xa0, 0xff}

	header := image.Rect(0, 0, gpu.Width, 20)
	name := image.Rect(40, 20+5, gpu.Width, 20+18)
	version := image.Rect(40, 20+21, gpu.Width, 20+34)
	for _, tc := range []struct {
		r    image.Rectangle
		c    color.RGBA
		what string
	}{
		{header, text, "header"},
		{name, text, "name"},
		{version, dim, "version"},
		{name.Add(image.Pt(0, 40)), text, "second name"},
	} {
		if inked(tc.r, tc.c) == 0 {
			t.Errorf("%s not drawn", tc.what)
		}
	}
	if n := inked(image.Rect(0, 20, 40, 60), text); n != 0 {
		t.Errorf("%d text pixels over the icon", n)
	}
}
