// Package slots provides access to the data slots of the cart loader.
//
// A data slot is a stream opened either from the loaded cart's data directory
// or from a window of its binary data file. The device is the authority on a
// slot's state, Manager only mirrors it to refuse opening a slot twice.
package slots

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/clktmr/rvfm/hw"
	"github.com/clktmr/rvfm/hw/cartloader"
)

// ChunkSize is the maximum number of bytes moved by a single command.
const ChunkSize = 0x1000

var (
	ErrSlotInUse   = errors.New("slots: slot already open")
	ErrClosed      = errors.New("slots: slot closed")
	ErrOutOfBounds = errors.New("slots: offset out of range")
)

// Backing is the state of a slot.
type Backing int

const (
	Closed Backing = iota
	Filesystem
	CartridgeBinary
)

func (b Backing) String() string {
	switch b {
	case Filesystem:
		return "filesystem"
	case CartridgeBinary:
		return "binary"
	}
	return "closed"
}

// Manager issues data slot commands through a dispatcher. Manager is safe for
// concurrent use.
type Manager struct {
	d     *cartloader.Dispatcher
	arena *hw.Arena

	mtx     sync.Mutex
	state   [cartloader.SlotCount]Backing
	opening [cartloader.SlotCount]bool
}

func New(d *cartloader.Dispatcher, arena *hw.Arena) *Manager {
	return &Manager{d: d, arena: arena}
}

func valid(slot int) bool {
	return slot >= 0 && slot < cartloader.SlotCount
}

// State returns the last known state of slot.
func (m *Manager) State(slot int) Backing {
	if !valid(slot) {
		return Closed
	}
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.state[slot]
}

func (m *Manager) setState(slot int, b Backing) {
	if !valid(slot) {
		return
	}
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.state[slot] = b
}

// reserve fails if slot is known to be open or another open of slot is in
// flight. Invalid slots are left for the device to reject. A successful
// reserve must be followed by opened.
func (m *Manager) reserve(slot int) error {
	if !valid(slot) {
		return nil
	}
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.state[slot] != Closed || m.opening[slot] {
		return ErrSlotInUse
	}
	m.opening[slot] = true
	return nil
}

// opened ends a reservation. b is Closed if the open failed.
func (m *Manager) opened(slot int, b Backing) {
	if !valid(slot) {
		return
	}
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.opening[slot] = false
	m.state[slot] = b
}

// transfer holds the buffers of a single command.
type transfer struct {
	arena *hw.Arena
	cell  *cartloader.Cell
	data  *hw.Buffer
	out   *hw.Buffer
}

func (m *Manager) newTransfer(n int) (t *transfer, err error) {
	t = &transfer{arena: m.arena}
	if t.cell, err = cartloader.NewCell(m.arena); err != nil {
		return nil, err
	}
	if t.out, err = m.arena.Alloc(4); err != nil {
		t.free()
		return nil, err
	}
	if n > 0 {
		if t.data, err = m.arena.Alloc(n); err != nil {
			t.free()
			return nil, err
		}
	}
	return t, nil
}

// free returns all buffers. Buffers still leased after a timeout stay
// allocated, the device may still write them.
func (t *transfer) free() {
	if t.cell != nil {
		t.cell.Free(t.arena)
	}
	for _, b := range []*hw.Buffer{t.out, t.data} {
		if b != nil {
			t.arena.Free(b)
		}
	}
}

// OpenFile opens path in the cart's data directory.
func (m *Manager) OpenFile(slot int, path string, writable bool) (s *Slot, err error) {
	if err := m.reserve(slot); err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			m.opened(slot, Closed)
		}
	}()
	t, err := m.newTransfer(len(path) + 1)
	if err != nil {
		return nil, err
	}
	defer t.free()

	if _, err := t.data.WriteAt(append([]byte(path), 0), 0); err != nil {
		return nil, err
	}
	var flags uint32
	if writable {
		flags |= cartloader.FlagWritable
	}
	if _, err := m.d.Run(cartloader.OpenSlotFs(uint32(slot), t.data, flags, t.cell)); err != nil {
		return nil, fmt.Errorf("slots: open %q: %w", path, err)
	}
	m.opened(slot, Filesystem)
	return &Slot{m: m, index: slot, backing: Filesystem, writable: writable}, nil
}

// OpenBinary opens a window of the cart's binary data. A length of zero
// extends the window to the end of the data.
func (m *Manager) OpenBinary(slot int, offset, length uint32) (s *Slot, err error) {
	if err := m.reserve(slot); err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			m.opened(slot, Closed)
		}
	}()
	t, err := m.newTransfer(0)
	if err != nil {
		return nil, err
	}
	defer t.free()

	if _, err := m.d.Run(cartloader.OpenSlotBinary(uint32(slot), offset, length, t.cell)); err != nil {
		return nil, fmt.Errorf("slots: open binary: %w", err)
	}
	m.opened(slot, CartridgeBinary)
	return &Slot{m: m, index: slot, backing: CartridgeBinary}, nil
}

// Close closes slot. Closing a closed slot succeeds.
func (m *Manager) Close(slot int) error {
	t, err := m.newTransfer(0)
	if err != nil {
		return err
	}
	defer t.free()

	if _, err := m.d.Run(cartloader.CloseSlot(uint32(slot), t.cell)); err != nil {
		return fmt.Errorf("slots: close %d: %w", slot, err)
	}
	m.setState(slot, Closed)
	return nil
}

// Extents returns the length of the stream open in slot.
func (m *Manager) Extents(slot int) (uint32, error) {
	t, err := m.newTransfer(0)
	if err != nil {
		return 0, err
	}
	defer t.free()

	if _, err := m.d.Run(cartloader.GetExtents(uint32(slot), t.out, t.cell)); err != nil {
		return 0, fmt.Errorf("slots: extents %d: %w", slot, err)
	}
	return t.out.Load32(0), nil
}

// Read issues a single read of up to len(p) bytes at offset. The returned
// count is the number of bytes the device read, which is less than len(p) if
// the stream ends early.
func (m *Manager) Read(slot int, p []byte, offset uint32) (int, error) {
	t, err := m.newTransfer(max(len(p), 1))
	if err != nil {
		return 0, err
	}
	defer t.free()

	cmd := cartloader.ReadData(uint32(slot), offset, uint32(len(p)), t.data, t.out, t.cell)
	if _, err := m.d.Run(cmd); err != nil {
		return 0, fmt.Errorf("slots: read %d: %w", slot, err)
	}
	n := min(int(t.out.Load32(0)), len(p))
	if _, err := t.data.ReadAt(p[:n], 0); err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}
	return n, nil
}

// Write issues a single write of p at offset and returns the number of bytes
// the device wrote.
func (m *Manager) Write(slot int, p []byte, offset uint32) (int, error) {
	t, err := m.newTransfer(max(len(p), 1))
	if err != nil {
		return 0, err
	}
	defer t.free()

	if _, err := t.data.WriteAt(p, 0); err != nil {
		return 0, err
	}
	cmd := cartloader.WriteData(uint32(slot), offset, uint32(len(p)), t.data, t.out, t.cell)
	if _, err := m.d.Run(cmd); err != nil {
		return int(t.out.Load32(0)), fmt.Errorf("slots: write %d: %w", slot, err)
	}
	return int(t.out.Load32(0)), nil
}

// Slot is an open data slot. It implements io.ReaderAt and io.WriterAt,
// transferring at most ChunkSize bytes per command.
type Slot struct {
	m        *Manager
	index    int
	backing  Backing
	writable bool
	closed   bool
}

func (s *Slot) Index() int       { return s.index }
func (s *Slot) Backing() Backing { return s.backing }
func (s *Slot) Writable() bool   { return s.writable }

func (s *Slot) Size() (int64, error) {
	if s.closed {
		return 0, ErrClosed
	}
	n, err := s.m.Extents(s.index)
	return int64(n), err
}

func checkOffset(off int64, n int) error {
	if off < 0 || off+int64(n) > math.MaxUint32 {
		return ErrOutOfBounds
	}
	return nil
}

func (s *Slot) ReadAt(p []byte, off int64) (n int, err error) {
	if s.closed {
		return 0, ErrClosed
	}
	if err := checkOffset(off, len(p)); err != nil {
		return 0, err
	}
	for n < len(p) {
		chunk := p[n:min(n+ChunkSize, len(p))]
		nn, err := s.m.Read(s.index, chunk, uint32(off)+uint32(n))
		n += nn
		if err != nil {
			return n, err
		}
		if nn < len(chunk) {
			return n, io.EOF
		}
	}
	return n, nil
}

func (s *Slot) WriteAt(p []byte, off int64) (n int, err error) {
	if s.closed {
		return 0, ErrClosed
	}
	if err := checkOffset(off, len(p)); err != nil {
		return 0, err
	}
	for n < len(p) {
		chunk := p[n:min(n+ChunkSize, len(p))]
		nn, err := s.m.Write(s.index, chunk, uint32(off)+uint32(n))
		n += nn
		if err != nil {
			return n, err
		}
		if nn < len(chunk) {
			return n, io.ErrShortWrite
		}
	}
	return n, nil
}

// Close closes the slot. Further calls return nil.
func (s *Slot) Close() error {
	if s.closed {
		return nil
	}
	if err := s.m.Close(s.index); err != nil {
		return err
	}
	s.closed = true
	return nil
}
