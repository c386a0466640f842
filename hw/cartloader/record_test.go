package cartloader_test

import (
	"encoding/binary"
	"errors"
	"image/color"
	"strings"
	"testing"

	"github.com/clktmr/rvfm/hw/cartloader"
)

func TestRecordLayout(t *testing.T) {
	if cartloader.RecordSize != 4*256+64*64*4+3*4 {
		t.Fatalf("unexpected record size %d", cartloader.RecordSize)
	}

	rec := cartloader.Record{
		Name:      "Pong",
		Developer: "rvfm",
		Version:   cartloader.Version{Major: 1, Minor: 2, Revision: 3},
	}
	rec.Icon[0] = 0x11223344
	p, err := rec.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if len(p) != cartloader.RecordSize {
		t.Fatalf("got %d bytes", len(p))
	}
	if string(p[:5]) != "Pong\x00" || string(p[256:261]) != "rvfm\x00" {
		t.Error("strings not at expected offsets")
	}
	if v := binary.LittleEndian.Uint32(p[0x400:]); v != 0x11223344 {
		t.Errorf("icon: got %#x", v)
	}
	version := p[0x4400:]
	for i, want := range []uint32{3, 2, 1} {
		if v := binary.LittleEndian.Uint32(version[i*4:]); v != want {
			t.Errorf("version word %d: got %d, want %d", i, v, want)
		}
	}

	var got cartloader.Record
	if err := got.UnmarshalBinary(p); err != nil {
		t.Fatal(err)
	}
	if got != rec {
		t.Errorf("got %+v", got.Version)
	}
}

func TestRecordTruncate(t *testing.T) {
	rec := cartloader.Record{Name: strings.Repeat("x", 300)}
	p, _ := rec.MarshalBinary()
	var got cartloader.Record
	got.UnmarshalBinary(p)
	if len(got.Name) != cartloader.StringLen-1 {
		t.Errorf("got name of %d bytes", len(got.Name))
	}
}

func TestRecordShort(t *testing.T) {
	var rec cartloader.Record
	if err := rec.UnmarshalBinary(make([]byte, 100)); !errors.Is(err, cartloader.ErrShortRecord) {
		t.Errorf("expected ErrShortRecord, got %v", err)
	}
}

func TestPackPixel(t *testing.T) {
	px := cartloader.PackPixel(color.NRGBA{R: 1, G: 2, B: 3, A: 4})
	if px != 0x04030201 {
		t.Errorf("got %#08x", px)
	}

	var rec cartloader.Record
	rec.Icon[1] = px
	img := rec.IconImage()
	if c := img.NRGBAAt(1, 0); c != (color.NRGBA{1, 2, 3, 4}) {
		t.Errorf("IconImage: got %v", c)
	}
}
