package carts_test

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/clktmr/rvfm/drivers/carts"
	"github.com/clktmr/rvfm/hw/cartloader"
	"github.com/clktmr/rvfm/sim"
	rvfmtesting "github.com/clktmr/rvfm/testing"
)

func TestMain(m *testing.M) { rvfmtesting.TestMain(m) }

func TestLabel(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Pong", "Pong"},
		{"Pokémon Café", "Pokemon Cafe"},
		{"Ångström", "Angstrom"},
		{"日本", "??"},
		{"tab\there", "tab?here"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := carts.Label(tc.in); got != tc.want {
			t.Errorf("Label(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDigest(t *testing.T) {
	a := &cartloader.Record{Name: "Pong", Version: cartloader.Version{Major: 1}}
	b := &cartloader.Record{Name: "Pong", Version: cartloader.Version{Major: 2}}
	c := *a

	if carts.Digest(a) != carts.Digest(&c) {
		t.Error("equal records differ")
	}
	if carts.Digest(a) == carts.Digest(b) {
		t.Error("versions not distinguished")
	}

	recs := []*cartloader.Record{b, a}
	if i := carts.Find(recs, carts.Digest(a)); i != 1 {
		t.Errorf("Find: got %d", i)
	}
	if i := carts.Find(recs[:1], carts.Digest(a)); i != -1 {
		t.Errorf("Find missing: got %d", i)
	}
}

func TestList(t *testing.T) {
	red := image.NewNRGBA(image.Rect(0, 0, cartloader.IconSize, cartloader.IconSize))
	draw.Draw(red, red.Bounds(), image.NewUniform(color.NRGBA{R: 0xff, A: 0xff}), image.Point{}, draw.Src)

	pong := rvfmtesting.Simple("a", "Pong")
	pong.Manifest.Icon = "icon.png"
	pong.Icon = red
	tetris := rvfmtesting.Simple("b", "Tetris")
	tetris.Manifest.Version = "2.1.0"
	tetris.Manifest.DeveloperURL = "https://example.org"
	m := rvfmtesting.NewMachine(t, rvfmtesting.NewLibrary(t, pong, tetris), sim.Config{})

	rvfmtesting.RunFirmware(t, m, func(f *rvfmtesting.Firmware) {
		recs, err := f.Carts.List()
		if err != nil {
			t.Error(err)
			return
		}
		if len(recs) != 2 || f.Carts.Count() != 2 {
			t.Errorf("got %d records, count %d", len(recs), f.Carts.Count())
			return
		}
		if recs[0].Name != "Pong" || recs[1].Name != "Tetris" {
			t.Errorf("got %q, %q", recs[0].Name, recs[1].Name)
		}
		if px := recs[0].Icon[0]; px != 0xff0000ff {
			t.Errorf("icon pixel %#08x", px)
		}
		if px := recs[0].Icon[len(recs[0].Icon)-1]; px != 0xff0000ff {
			t.Errorf("last icon pixel %#08x", px)
		}
		if recs[1].Version.String() != "2.1.0" || recs[1].DeveloperURL != "https://example.org" {
			t.Errorf("got %+v", recs[1].Version)
		}
		if _, err := f.Carts.Metadata(2); !errors.Is(err, cartloader.CartIndexOutOfBounds) {
			t.Errorf("Metadata(2): %v", err)
		}
	})
}

func TestLoadFailure(t *testing.T) {
	broken := rvfmtesting.Simple("a", "Broken")
	broken.Binary = []byte{0x7f, 'E', 'L', 'F'}
	m := rvfmtesting.NewMachine(t, rvfmtesting.NewLibrary(t, broken), sim.Config{})

	returned := rvfmtesting.RunFirmware(t, m, func(f *rvfmtesting.Firmware) {
		if err := f.Carts.Load(0); !errors.Is(err, cartloader.CartIndexOutOfBounds) {
			t.Errorf("load before enumerate: %v", err)
		}
		if _, err := f.Carts.Enumerate(); err != nil {
			t.Error(err)
			return
		}
		if err := f.Carts.Load(0); !errors.Is(err, cartloader.FailedReadingBinary) {
			t.Errorf("load broken binary: %v", err)
		}
	})
	if !returned {
		t.Error("firmware reset by failed load")
	}
}
