// Package rvfmtesting provides a simulated machine and cart libraries for
// tests.
package rvfmtesting

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"encoding/json"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/clktmr/rvfm/sim"
)

// TestMain should be used as TestMain for tests using the simulator. The log
// level of the simulator is taken from RVFM_LOG, defaulting to warn.
func TestMain(m *testing.M) {
	log.SetLevel(LogLevel())
	os.Exit(m.Run())
}

func LogLevel() log.Level {
	if lvl, err := log.ParseLevel(os.Getenv("RVFM_LOG")); err == nil {
		return lvl
	}
	return log.WarnLevel
}

// LoadAddr is where the binaries written by ELF are loaded.
const LoadAddr = 0x0001_0000

// ELF returns a minimal RISC-V executable with a single segment holding text,
// loaded and entered at LoadAddr.
func ELF(text []byte) []byte {
	const (
		ehsize    = 52
		phentsize = 32
	)
	hdr := elf.Header32{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_RISCV),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     LoadAddr,
		Phoff:     ehsize,
		Ehsize:    ehsize,
		Phentsize: phentsize,
		Phnum:     1,
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS32)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	prog := elf.Prog32{
		Type:   uint32(elf.PT_LOAD),
		Off:    ehsize + phentsize,
		Vaddr:  LoadAddr,
		Paddr:  LoadAddr,
		Filesz: uint32(len(text)),
		Memsz:  uint32(len(text)),
		Flags:  uint32(elf.PF_R | elf.PF_X),
		Align:  4,
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, &hdr)
	binary.Write(&buf, binary.LittleEndian, &prog)
	buf.Write(text)
	return buf.Bytes()
}

// Cart describes a cart written by NewLibrary.
type Cart struct {
	Dir      string
	Manifest sim.Manifest

	// Binary overrides the ELF written to Manifest.Binary.
	Binary []byte

	// Icon is written as PNG to Manifest.Icon.
	Icon image.Image

	// Files are written relative to the cart directory.
	Files map[string][]byte
}

// Simple returns a cart with a valid binary and no data.
func Simple(dir, name string) Cart {
	return Cart{
		Dir: dir,
		Manifest: sim.Manifest{
			Name:      name,
			Version:   "1.0.0",
			Developer: "rvfm",
			Binary:    "cart.elf",
		},
	}
}

func write(t testing.TB, name string, p []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(name, p, 0o644); err != nil {
		t.Fatal(err)
	}
}

// NewLibrary writes carts to a temporary directory and returns its path.
// Cart directories are enumerated in lexical order.
func NewLibrary(t testing.TB, carts ...Cart) string {
	t.Helper()
	root := t.TempDir()
	for _, c := range carts {
		dir := filepath.Join(root, c.Dir)

		manifest, err := json.MarshalIndent(&c.Manifest, "", "  ")
		if err != nil {
			t.Fatal(err)
		}
		write(t, filepath.Join(dir, sim.ManifestName), manifest)

		bin := c.Binary
		if bin == nil {
			bin = ELF([]byte{0x6f, 0x00, 0x00, 0x00}) // j .
		}
		if c.Manifest.Binary != "" {
			write(t, filepath.Join(dir, c.Manifest.Binary), bin)
		}

		if c.Icon != nil && c.Manifest.Icon != "" {
			var buf bytes.Buffer
			if err := png.Encode(&buf, c.Icon); err != nil {
				t.Fatal(err)
			}
			write(t, filepath.Join(dir, c.Manifest.Icon), buf.Bytes())
		}

		for name, p := range c.Files {
			write(t, filepath.Join(dir, name), p)
		}
	}
	return root
}

// NewMachine returns a machine using the library at dir. The machine is
// stopped when the test ends.
func NewMachine(t testing.TB, dir string, cfg sim.Config) *sim.Machine {
	t.Helper()
	if dir != "" {
		lib, err := sim.OpenDir(dir)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { lib.Close() })
		cfg.Library = lib
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New()
		cfg.Logger.SetLevel(LogLevel())
	}
	m := sim.New(cfg)
	t.Cleanup(m.Stop)
	return m
}
