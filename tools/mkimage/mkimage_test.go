package mkimage_test

import (
	"path/filepath"
	"slices"
	"testing"

	"github.com/clktmr/rvfm/sim"
	rvfmtesting "github.com/clktmr/rvfm/testing"
	"github.com/clktmr/rvfm/tools/mkimage"
)

func TestMain(m *testing.M) { rvfmtesting.TestMain(m) }

func TestPack(t *testing.T) {
	save := rvfmtesting.Simple("b-save", "Saver")
	save.Manifest.Data = &sim.DataSpec{Format: sim.DataFsRO, RootDir: "data"}
	save.Files = map[string][]byte{"data/level1.txt": []byte("level one")}
	dir := rvfmtesting.NewLibrary(t, rvfmtesting.Simple("a-pong", "Pong"), save)

	image := filepath.Join(t.TempDir(), "carts.img")
	n, err := mkimage.Pack(dir, image, 64<<20, "RVFM")
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Errorf("packed %d files", n)
	}
	if _, err := mkimage.Pack(dir, image, 64<<20, "RVFM"); err == nil {
		t.Error("overwrote existing image")
	}

	lib, err := sim.OpenImage(image)
	if err != nil {
		t.Fatal(err)
	}
	defer lib.Close()

	names, err := lib.ReadDir("")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(names, []string{"a-pong", "b-save"}) {
		t.Errorf("got dirs %q", names)
	}

	f, err := lib.Open("b-save/data/level1.txt")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	p := make([]byte, 32)
	n, _ = f.ReadAt(p, 0)
	if string(p[:n]) != "level one" {
		t.Errorf("read %q", p[:n])
	}

	m := sim.New(sim.Config{Library: lib})
	defer m.Stop()
	rvfmtesting.RunFirmware(t, m, func(f *rvfmtesting.Firmware) {
		recs, err := f.Carts.List()
		if err != nil {
			t.Error(err)
			return
		}
		if len(recs) != 2 || recs[1].Name != "Saver" {
			t.Errorf("got %d records", len(recs))
		}
		if err := m.CartLoader.Insert(1); err != nil {
			t.Error(err)
			return
		}
		s, err := f.Slots.OpenFile(0, "level1.txt", false)
		if err != nil {
			t.Error(err)
			return
		}
		defer s.Close()
		if size, err := s.Size(); size != 9 || err != nil {
			t.Errorf("Size: %d, %v", size, err)
		}
	})
}
