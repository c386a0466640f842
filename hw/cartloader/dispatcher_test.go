package cartloader_test

import (
	"errors"
	"testing"
	"time"

	"github.com/clktmr/rvfm/hw"
	"github.com/clktmr/rvfm/hw/cartloader"
)

type store struct {
	addr hw.Addr
	v    uint32
}

// device records stores and completes a command by writing result to cell
// when the command register is written.
type device struct {
	words  map[hw.Addr]uint32
	stores []store

	cell     hw.Addr
	result   cartloader.Result
	complete bool
}

func newDevice() *device {
	return &device{words: make(map[hw.Addr]uint32), result: cartloader.OK, complete: true}
}

func (d *device) Load32(addr hw.Addr) uint32 { return d.words[addr] }

func (d *device) Store32(addr hw.Addr, v uint32) {
	d.stores = append(d.stores, store{addr, v})
	d.words[addr] = v
	if addr == hw.CartLoaderBase && d.complete {
		d.words[d.cell] = uint32(d.result)
	}
}

func isReg(a hw.Addr) bool {
	return a >= hw.CartLoaderBase && a < hw.CartLoaderBase+0x24
}

// waiter polls without halting.
type waiter struct {
	timeouts int
}

func (w *waiter) Wait(done func() bool, timeout time.Duration) bool {
	if done() {
		return true
	}
	w.timeouts++
	return false
}

func setup(t *testing.T) (*device, *hw.Arena, *cartloader.Dispatcher, *waiter) {
	dev := newDevice()
	w := &waiter{}
	arena := hw.NewArena(hw.NewBus(dev), 0x1000, 0x10000)
	return dev, arena, cartloader.New(dev, w), w
}

func TestBeginOrder(t *testing.T) {
	dev, arena, d, _ := setup(t)
	buf, _ := arena.Alloc(64)
	out, _ := arena.Alloc(4)
	cell, _ := cartloader.NewCell(arena)

	cmds := []cartloader.Command{
		cartloader.Enumerate(cell),
		cartloader.ReadMetadata(1, buf, cell),
		cartloader.LoadCart(2, cell),
		cartloader.OpenSlotFs(3, buf, cartloader.FlagWritable, cell),
		cartloader.OpenSlotBinary(4, 16, 32, cell),
		cartloader.CloseSlot(5, cell),
		cartloader.ReadData(6, 1, 2, buf, out, cell),
		cartloader.WriteData(7, 1, 2, buf, out, cell),
		cartloader.GetExtents(0, out, cell),
	}
	for _, cmd := range cmds {
		dev.stores = nil
		dev.cell = cell.Addr()
		if _, err := d.Run(cmd); err != nil {
			t.Fatalf("%v: %v", cmd.Op, err)
		}

		var regs []store
		resetAt, firstParam := -1, -1
		for i, s := range dev.stores {
			if s.addr == cell.Addr() && resetAt < 0 {
				resetAt = i
			}
			if isReg(s.addr) {
				if firstParam < 0 {
					firstParam = i
				}
				regs = append(regs, s)
			}
		}
		if resetAt < 0 || resetAt > firstParam {
			t.Errorf("%v: cell not reset before parameters", cmd.Op)
		}
		if len(regs) != len(cmd.Params)+1 {
			t.Fatalf("%v: got %d register stores, want %d", cmd.Op, len(regs), len(cmd.Params)+1)
		}
		for i, p := range cmd.Params {
			want := hw.CartLoaderBase + 4 + hw.Addr(i)*4
			if regs[i].addr != want || regs[i].v != p {
				t.Errorf("%v: param %d: got %#x=%d, want %#x=%d", cmd.Op, i, regs[i].addr, regs[i].v, want, p)
			}
		}
		last := regs[len(regs)-1]
		if last.addr != hw.CartLoaderBase || last.v != uint32(cmd.Op) {
			t.Errorf("%v: trigger not written last: %#x=%d", cmd.Op, last.addr, last.v)
		}
	}
}

func TestRunError(t *testing.T) {
	dev, arena, d, _ := setup(t)
	cell, _ := cartloader.NewCell(arena)
	dev.cell = cell.Addr()
	dev.result = cartloader.CartIndexOutOfBounds

	res, err := d.Run(cartloader.LoadCart(999, cell))
	if res != cartloader.CartIndexOutOfBounds {
		t.Errorf("got result %v", res)
	}
	if !errors.Is(err, cartloader.CartIndexOutOfBounds) {
		t.Errorf("got error %v", err)
	}
	if !cell.IsError() {
		t.Error("cell doesn't report error")
	}
}

func TestBuffersLeased(t *testing.T) {
	dev, arena, d, _ := setup(t)
	dev.complete = false
	buf, _ := arena.Alloc(16)
	cell, _ := cartloader.NewCell(arena)
	dev.cell = cell.Addr()

	p, err := d.Begin(cartloader.ReadMetadata(0, buf, cell))
	if err != nil {
		t.Fatal(err)
	}
	if !buf.Busy() {
		t.Fatal("buffer not leased while pending")
	}
	if err := arena.Free(buf); !errors.Is(err, hw.ErrBufferBusy) {
		t.Fatalf("freed pending buffer: %v", err)
	}
	if p.Poll() {
		t.Fatal("completed before device wrote the cell")
	}

	dev.words[cell.Addr()] = uint32(cartloader.OK)
	if !p.Poll() {
		t.Fatal("completion not observed")
	}
	if buf.Busy() {
		t.Fatal("buffer still leased after completion")
	}
}

func TestTimeout(t *testing.T) {
	dev, arena, d, w := setup(t)
	d.Timeout = 10 * time.Millisecond
	dev.complete = false
	cell, _ := cartloader.NewCell(arena)
	dev.cell = cell.Addr()

	p, err := d.Begin(cartloader.Enumerate(cell))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Wait(); !errors.Is(err, cartloader.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}

	// the channel stays reserved
	cell2, _ := cartloader.NewCell(arena)
	if _, err := d.Begin(cartloader.Enumerate(cell2)); !errors.Is(err, cartloader.ErrTimeout) {
		t.Fatalf("expected ErrTimeout while busy, got %v", err)
	}
	if w.timeouts != 2 {
		t.Errorf("got %d timeouts, want 2", w.timeouts)
	}

	// the late completion frees the channel
	dev.words[cell.Addr()] = uint32(cartloader.OK)
	dev.complete = true
	dev.cell = cell2.Addr()
	if _, err := d.Run(cartloader.Enumerate(cell2)); err != nil {
		t.Fatal(err)
	}
	if res, err := p.Wait(); res != cartloader.OK || err != nil {
		t.Errorf("late wait: %v, %v", res, err)
	}
}

func TestCartCount(t *testing.T) {
	dev, _, d, _ := setup(t)
	dev.words[hw.CartLoaderBase+0x1c] = 3
	if n := d.CartCount(); n != 3 {
		t.Errorf("got %d carts", n)
	}
}
