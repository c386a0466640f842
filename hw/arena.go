package hw

import (
	"errors"
	"io"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/clktmr/rvfm/debug"
)

var (
	ErrNoSpace       = errors.New("arena: out of memory")
	ErrBufferBusy    = errors.New("buffer owned by device")
	ErrForeignBuffer = errors.New("buffer not allocated from this arena")
)

const align = 4

// Buffer describes a region of device visible memory. While a buffer is
// leased its address has been passed to a device: the firmware must not
// access it and the arena refuses to free it.
type Buffer struct {
	arena  *Arena
	addr   Addr
	size   uint32
	leases atomic.Int32
}

func (b *Buffer) Addr() Addr { return b.addr }
func (b *Buffer) Len() int   { return int(b.size) }

// Busy reports whether the buffer is leased to a device.
func (b *Buffer) Busy() bool { return b.leases.Load() > 0 }

// Lease marks the buffer as owned by a device until the matching Release.
func (b *Buffer) Lease() { b.leases.Add(1) }

func (b *Buffer) Release() {
	n := b.leases.Add(-1)
	debug.Assert(n >= 0, "buffer released more often than leased")
}

func (b *Buffer) ReadAt(p []byte, off int64) (n int, err error) {
	if b.Busy() {
		return 0, ErrBufferBusy
	}
	if off < 0 || off > int64(b.size) {
		return 0, io.EOF
	}
	left := int(b.size) - int(off)
	if len(p) > left {
		p = p[:left]
		err = io.EOF
	}
	n, rerr := b.arena.bus.ReadAt(p, int64(b.addr)+off)
	if rerr != nil {
		err = rerr
	}
	return
}

func (b *Buffer) WriteAt(p []byte, off int64) (n int, err error) {
	if b.Busy() {
		return 0, ErrBufferBusy
	}
	if off < 0 || off > int64(b.size) {
		return 0, io.ErrShortWrite
	}
	left := int(b.size) - int(off)
	if len(p) > left {
		p = p[:left]
		err = io.ErrShortWrite
	}
	n, werr := b.arena.bus.WriteAt(p, int64(b.addr)+off)
	if werr != nil {
		err = werr
	}
	return
}

// Load32 reads the word at offset off. Unlike ReadAt it's allowed while the
// buffer is leased, since the device writes words atomically.
func (b *Buffer) Load32(off uint32) uint32 {
	debug.AssertAligned(off, 4, "word offset")
	debug.Assertf(off+4 <= b.size, "word at %d outside %d byte buffer", off, b.size)
	return b.arena.bus.Load32(b.addr + Addr(off))
}

func (b *Buffer) Store32(off uint32, v uint32) error {
	if b.Busy() {
		return ErrBufferBusy
	}
	debug.AssertAligned(off, 4, "word offset")
	debug.Assertf(off+4 <= b.size, "word at %d outside %d byte buffer", off, b.size)
	b.arena.bus.Store32(b.addr+Addr(off), v)
	return nil
}

type span struct {
	addr Addr
	size uint32
}

// Arena is a first fit allocator for device visible memory. Arena is safe for
// concurrent use.
type Arena struct {
	mtx  sync.Mutex
	bus  Bus
	free []span // sorted by addr, never adjacent
	base Addr
	size uint32
}

func NewArena(bus Bus, base Addr, size uint32) *Arena {
	debug.AssertAligned(uint32(base), align, "arena base")
	return &Arena{
		bus:  bus,
		free: []span{{base, size &^ (align - 1)}},
		base: base,
		size: size,
	}
}

func (a *Arena) Bus() Bus { return a.bus }

// Alloc returns a zeroed buffer of n bytes, 4 byte aligned.
func (a *Arena) Alloc(n int) (*Buffer, error) {
	size := (uint32(n) + align - 1) &^ (align - 1)
	if size == 0 {
		size = align
	}

	a.mtx.Lock()
	defer a.mtx.Unlock()

	for i, s := range a.free {
		if s.size < size {
			continue
		}
		b := &Buffer{arena: a, addr: s.addr, size: uint32(n)}
		if s.size == size {
			a.free = slices.Delete(a.free, i, i+1)
		} else {
			a.free[i] = span{s.addr + Addr(size), s.size - size}
		}
		a.bus.WriteAt(make([]byte, size), int64(b.addr))
		return b, nil
	}
	return nil, ErrNoSpace
}

// Free returns b to the arena. It fails with ErrBufferBusy while the buffer
// is leased to a device.
func (a *Arena) Free(b *Buffer) error {
	if b.arena != a {
		return ErrForeignBuffer
	}
	if b.Busy() {
		return ErrBufferBusy
	}

	a.mtx.Lock()
	defer a.mtx.Unlock()

	s := span{b.addr, (b.size + align - 1) &^ (align - 1)}
	if s.size == 0 {
		s.size = align
	}
	i, _ := slices.BinarySearchFunc(a.free, s.addr, func(e span, t Addr) int {
		return int(int64(e.addr) - int64(t))
	})
	debug.Assert(i == len(a.free) || a.free[i].addr >= s.addr+Addr(s.size), "double free")
	debug.Assertf(i == 0 || a.free[i-1].addr+Addr(a.free[i-1].size) <= s.addr, "double free of %#08x", s.addr)
	a.free = slices.Insert(a.free, i, s)

	// merge with successor, then predecessor
	if i+1 < len(a.free) && a.free[i].addr+Addr(a.free[i].size) == a.free[i+1].addr {
		a.free[i].size += a.free[i+1].size
		a.free = slices.Delete(a.free, i+1, i+2)
	}
	if i > 0 && a.free[i-1].addr+Addr(a.free[i-1].size) == a.free[i].addr {
		a.free[i-1].size += a.free[i].size
		a.free = slices.Delete(a.free, i, i+1)
	}
	b.arena = nil
	return nil
}

// Available returns the number of free bytes.
func (a *Arena) Available() (n int) {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	for _, s := range a.free {
		n += int(s.size)
	}
	return
}
