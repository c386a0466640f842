package hw

import (
	"io"
)

// Addr is a physical address on the 32-bit system bus.
type Addr uint32

// WordBus is the minimal interface a bus must implement. All accesses are 32
// bits wide and aligned.
type WordBus interface {
	Load32(addr Addr) uint32
	Store32(addr Addr, v uint32)
}

// Bus provides word and byte granular access to the system bus. The offset
// passed to ReadAt and WriteAt is the physical address.
type Bus interface {
	WordBus
	io.ReaderAt
	io.WriterAt
}

// NewBus adds byte granular access to a word only bus.
func NewBus(w WordBus) Bus {
	if b, ok := w.(Bus); ok {
		return b
	}
	return &wordBus{w}
}

type wordBus struct {
	WordBus
}

func (b *wordBus) ReadAt(p []byte, off int64) (n int, err error) {
	if off < 0 || off+int64(len(p)) > 1<<32 {
		return 0, io.EOF
	}
	ReadIO(b.WordBus, Addr(off), p)
	return len(p), nil
}

func (b *wordBus) WriteAt(p []byte, off int64) (n int, err error) {
	if off < 0 || off+int64(len(p)) > 1<<32 {
		return 0, io.ErrShortWrite
	}
	WriteIO(b.WordBus, Addr(off), p)
	return len(p), nil
}

// Reg is a 32-bit register at a fixed address.
type Reg Addr

func (r Reg) Load(bus WordBus) uint32     { return bus.Load32(Addr(r)) }
func (r Reg) Store(bus WordBus, v uint32) { bus.Store32(Addr(r), v) }

// At returns the register at offset off relative to r.
func (r Reg) At(off uint32) Reg { return r + Reg(off) }
