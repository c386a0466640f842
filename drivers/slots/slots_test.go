package slots_test

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/clktmr/rvfm/drivers/slots"
	"github.com/clktmr/rvfm/hw/cartloader"
	"github.com/clktmr/rvfm/sim"
	rvfmtesting "github.com/clktmr/rvfm/testing"
)

func TestMain(m *testing.M) { rvfmtesting.TestMain(m) }

func pattern(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i * 7)
	}
	return p
}

func library(t *testing.T, format sim.DataFormat, data []byte) string {
	c := rvfmtesting.Simple("cart", "Cart")
	switch {
	case format.IsFs():
		c.Manifest.Data = &sim.DataSpec{Format: format, RootDir: "save"}
		c.Files = map[string][]byte{"save/data.bin": data}
	case format.IsBinary():
		c.Manifest.Data = &sim.DataSpec{Format: format, DataFile: "data.bin"}
		c.Files = map[string][]byte{"data.bin": data}
	}
	return rvfmtesting.NewLibrary(t, c)
}

func run(t *testing.T, lib string, fn func(f *rvfmtesting.Firmware)) {
	m := rvfmtesting.NewMachine(t, lib, sim.Config{})
	rvfmtesting.RunFirmware(t, m, func(f *rvfmtesting.Firmware) {
		if _, err := f.Carts.Enumerate(); err != nil {
			t.Error(err)
			return
		}
		if err := m.CartLoader.Insert(0); err != nil {
			t.Error(err)
			return
		}
		fn(f)
	})
}

func TestSlotInUse(t *testing.T) {
	run(t, library(t, sim.DataFsRW, pattern(16)), func(f *rvfmtesting.Firmware) {
		s, err := f.Slots.OpenFile(3, "data.bin", true)
		if err != nil {
			t.Error(err)
			return
		}
		if s.Backing() != slots.Filesystem || !s.Writable() || s.Index() != 3 {
			t.Errorf("got slot %d %v writable %v", s.Index(), s.Backing(), s.Writable())
		}
		if _, err := f.Slots.OpenFile(3, "data.bin", false); !errors.Is(err, slots.ErrSlotInUse) {
			t.Errorf("reopen: %v", err)
		}
		if err := s.Close(); err != nil {
			t.Error(err)
		}
		if f.Slots.State(3) != slots.Closed {
			t.Errorf("state after close: %v", f.Slots.State(3))
		}
		if _, err := f.Slots.OpenFile(3, "data.bin", false); err != nil {
			t.Errorf("open after close: %v", err)
		}
		if _, err := s.ReadAt(make([]byte, 1), 0); !errors.Is(err, slots.ErrClosed) {
			t.Errorf("read closed slot: %v", err)
		}
		if err := s.Close(); err != nil {
			t.Errorf("second close: %v", err)
		}
	})
}

// nestingWaiter runs once before the first wait, while a command is in
// flight.
type nestingWaiter struct {
	cartloader.Waiter
	once func()
}

func (w *nestingWaiter) Wait(done func() bool, timeout time.Duration) bool {
	if fn := w.once; fn != nil {
		w.once = nil
		fn()
	}
	return w.Waiter.Wait(done, timeout)
}

func TestOpenInFlight(t *testing.T) {
	run(t, library(t, sim.DataFsRW, pattern(16)), func(f *rvfmtesting.Firmware) {
		if _, err := f.Slots.OpenFile(1, "missing.bin", false); err == nil {
			t.Error("opened missing file")
		}

		var nested error
		f.Loader.SetWaiter(&nestingWaiter{Waiter: f.Delay, once: func() {
			_, nested = f.Slots.OpenFile(1, "data.bin", false)
		}})
		if _, err := f.Slots.OpenFile(1, "data.bin", false); err != nil {
			t.Errorf("failed open left slot reserved: %v", err)
		}
		if !errors.Is(nested, slots.ErrSlotInUse) {
			t.Errorf("open while in flight: %v", nested)
		}
		if f.Slots.State(1) != slots.Filesystem {
			t.Errorf("state: %v", f.Slots.State(1))
		}
	})
}

func TestChunkedReadAt(t *testing.T) {
	data := pattern(3*slots.ChunkSize + 100)
	run(t, library(t, sim.DataFsRO, data), func(f *rvfmtesting.Firmware) {
		s, err := f.Slots.OpenFile(0, "data.bin", false)
		if err != nil {
			t.Error(err)
			return
		}
		defer s.Close()
		if size, err := s.Size(); size != int64(len(data)) || err != nil {
			t.Errorf("Size: %d, %v", size, err)
		}

		p := make([]byte, len(data))
		n, err := s.ReadAt(p, 0)
		if n != len(data) || err != nil {
			t.Errorf("ReadAt: %d, %v", n, err)
		}
		if !bytes.Equal(p, data) {
			t.Error("data differs")
		}

		p = make([]byte, 2*slots.ChunkSize)
		n, err = s.ReadAt(p, int64(2*slots.ChunkSize))
		if n != slots.ChunkSize+100 || err != io.EOF {
			t.Errorf("ReadAt near end: %d, %v", n, err)
		}
		if !bytes.Equal(p[:n], data[2*slots.ChunkSize:]) {
			t.Error("tail differs")
		}

		if _, err := s.ReadAt(p, -1); !errors.Is(err, slots.ErrOutOfBounds) {
			t.Errorf("negative offset: %v", err)
		}
	})
}

func TestChunkedWriteAt(t *testing.T) {
	data := pattern(2*slots.ChunkSize + 5)
	run(t, library(t, sim.DataFsRW, nil), func(f *rvfmtesting.Firmware) {
		s, err := f.Slots.OpenFile(0, "data.bin", true)
		if err != nil {
			t.Error(err)
			return
		}
		defer s.Close()
		n, err := s.WriteAt(data, 10)
		if n != len(data) || err != nil {
			t.Errorf("WriteAt: %d, %v", n, err)
		}
		if size, _ := s.Size(); size != int64(len(data)+10) {
			t.Errorf("size after write: %d", size)
		}
		p := make([]byte, len(data))
		if _, err := s.ReadAt(p, 10); err != nil {
			t.Error(err)
		}
		if !bytes.Equal(p, data) {
			t.Error("read back differs")
		}
	})
}

func TestBinarySlot(t *testing.T) {
	data := pattern(256)
	run(t, library(t, sim.DataBinaryRO, data), func(f *rvfmtesting.Firmware) {
		s, err := f.Slots.OpenBinary(7, 200, 0)
		if err != nil {
			t.Error(err)
			return
		}
		if s.Backing() != slots.CartridgeBinary || s.Writable() {
			t.Errorf("got %v writable %v", s.Backing(), s.Writable())
		}
		if size, _ := s.Size(); size != 56 {
			t.Errorf("window size %d", size)
		}
		p := make([]byte, 64)
		n, err := s.ReadAt(p, 0)
		if n != 56 || err != io.EOF {
			t.Errorf("ReadAt: %d, %v", n, err)
		}
		if !bytes.Equal(p[:n], data[200:]) {
			t.Error("window differs")
		}
		if _, err := s.WriteAt([]byte{1}, 0); !errors.Is(err, cartloader.BadOperationForDataFormat) {
			t.Errorf("WriteAt: %v", err)
		}
		if _, err := f.Slots.OpenFile(7, "data.bin", false); !errors.Is(err, slots.ErrSlotInUse) {
			t.Errorf("open over binary slot: %v", err)
		}
	})
}

func TestInvalidSlot(t *testing.T) {
	run(t, library(t, sim.DataFsRO, pattern(4)), func(f *rvfmtesting.Firmware) {
		if _, err := f.Slots.OpenFile(-1, "data.bin", false); !errors.Is(err, cartloader.DataSlotIndexOutOfBounds) {
			t.Errorf("OpenFile(-1): %v", err)
		}
		if _, err := f.Slots.OpenBinary(cartloader.SlotCount, 0, 0); !errors.Is(err, cartloader.DataSlotIndexOutOfBounds) {
			t.Errorf("OpenBinary: %v", err)
		}
		if f.Slots.State(-1) != slots.Closed {
			t.Error("invalid slot not closed")
		}
	})
}

func TestBackingString(t *testing.T) {
	for b, want := range map[slots.Backing]string{
		slots.Closed:          "closed",
		slots.Filesystem:      "filesystem",
		slots.CartridgeBinary: "binary",
	} {
		if b.String() != want {
			t.Errorf("%d: got %q", b, b.String())
		}
	}
}
