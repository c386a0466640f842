package sim_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/clktmr/rvfm/hw/cartloader"
	"github.com/clktmr/rvfm/sim"
)

func TestParseManifest(t *testing.T) {
	m, err := sim.ParseManifest(strings.NewReader(`{
		"name": "Pong",
		"version": "1.2.3",
		"developer": "rvfm",
		"binary": "pong.elf",
		"data": {"format": "fs-rw", "root_dir": "save"}
	}`))
	if err != nil {
		t.Fatal(err)
	}
	if m.Name != "Pong" || m.Binary != "pong.elf" {
		t.Errorf("got %+v", m)
	}
	v, err := m.ParseVersion()
	if err != nil {
		t.Fatal(err)
	}
	if v != (cartloader.Version{Major: 1, Minor: 2, Revision: 3}) {
		t.Errorf("got version %v", v)
	}
	if m.Data.Format != sim.DataFsRW || !m.Data.Format.IsFs() || m.Data.RootDir != "save" {
		t.Errorf("got data %+v", m.Data)
	}
}

func TestParseManifestDefaults(t *testing.T) {
	m, err := sim.ParseManifest(strings.NewReader(`{"name": "x", "binary": "x.elf"}`))
	if err != nil {
		t.Fatal(err)
	}
	if m.Data == nil || m.Data.Format != sim.DataNone {
		t.Errorf("got data %+v", m.Data)
	}
	if v, _ := m.ParseVersion(); v != (cartloader.Version{}) {
		t.Errorf("got version %v", v)
	}
}

func TestParseManifestInvalid(t *testing.T) {
	tests := []struct {
		json string
		err  error
	}{
		{`{"name": "x"}`, sim.ErrNoBinary},
		{`{"binary": "x", "version": "1.2"}`, sim.ErrBadVersion},
		{`{"binary": "x", "version": "1.2.3-rc1"}`, sim.ErrBadVersion},
		{`{"binary": "x", "data": {"format": "tape"}}`, sim.ErrBadFormat},
	}
	for _, tc := range tests {
		if _, err := sim.ParseManifest(strings.NewReader(tc.json)); !errors.Is(err, tc.err) {
			t.Errorf("%s: got %v, want %v", tc.json, err, tc.err)
		}
	}
	if _, err := sim.ParseManifest(strings.NewReader(`{`)); err == nil {
		t.Error("accepted truncated json")
	}
}

func TestDataFormat(t *testing.T) {
	for _, f := range []sim.DataFormat{sim.DataBinaryRO, sim.DataBinaryRW} {
		if !f.IsBinary() || f.IsFs() {
			t.Errorf("%s: wrong kind", f)
		}
	}
	if sim.DataNone.IsBinary() || sim.DataNone.IsFs() {
		t.Error("none has a kind")
	}
}
