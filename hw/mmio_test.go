package hw_test

import (
	"bytes"
	"testing"

	"github.com/clktmr/rvfm/hw"
)

// wordMem is a word addressed memory which fails the test on unaligned
// accesses.
type wordMem struct {
	t     testing.TB
	words map[hw.Addr]uint32
}

func newWordMem(t testing.TB) *wordMem {
	return &wordMem{t: t, words: make(map[hw.Addr]uint32)}
}

func (m *wordMem) Load32(addr hw.Addr) uint32 {
	if addr&0x3 != 0 {
		m.t.Fatalf("unaligned load at %#x", addr)
	}
	return m.words[addr]
}

func (m *wordMem) Store32(addr hw.Addr, v uint32) {
	if addr&0x3 != 0 {
		m.t.Fatalf("unaligned store at %#x", addr)
	}
	m.words[addr] = v
}

// TestReadWriteIO writes a cart path at every byte offset and length into a
// pattern and checks that only the addressed bytes changed.
func TestReadWriteIO(t *testing.T) {
	const base hw.Addr = 0x0100_0000
	path := []byte("carts/tetris/cart.json")
	pattern := make([]byte, 40)
	for i := range pattern {
		pattern[i] = 0xa0 + byte(i)
	}

	for off := range 5 {
		for n := range len(path) + 1 {
			mem := newWordMem(t)
			hw.WriteIO(mem, base, pattern)
			hw.WriteIO(mem, base+hw.Addr(off), path[:n])

			got := make([]byte, n)
			hw.ReadIO(mem, base+hw.Addr(off), got)
			if !bytes.Equal(got, path[:n]) {
				t.Fatalf("offset %d, len %d: read back %q", off, n, got)
			}

			want := bytes.Clone(pattern)
			copy(want[off:], path[:n])
			all := make([]byte, len(pattern))
			hw.ReadIO(mem, base, all)
			if !bytes.Equal(all, want) {
				t.Fatalf("offset %d, len %d: surrounding bytes changed\ngot  %x\nwant %x", off, n, all, want)
			}
		}
	}
}

func TestRegAt(t *testing.T) {
	bus := newWordMem(t)
	r := hw.Reg(0x100)
	r.At(8).Store(bus, 42)
	if got := bus.words[0x108]; got != 42 {
		t.Fatalf("got %d, want 42", got)
	}
	if got := hw.Reg(0x108).Load(bus); got != 42 {
		t.Fatalf("load: got %d, want 42", got)
	}
}
