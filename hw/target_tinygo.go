//go:build tinygo && riscv

package hw

import (
	"device/riscv"
	"runtime/volatile"
	"unsafe"
)

// Target is the bus and core of the hart the firmware runs on.
var Target Core = &target{}

var trapHandler func()

// rvfmTrap is called from the machine mode trap vector set up by the startup
// code.
//
//export rvfm_trap
func rvfmTrap() {
	if h := trapHandler; h != nil {
		h()
	}
}

type target struct{}

func (t *target) Load32(addr Addr) uint32 {
	return volatile.LoadUint32((*uint32)(unsafe.Pointer(uintptr(addr))))
}

func (t *target) Store32(addr Addr, v uint32) {
	volatile.StoreUint32((*uint32)(unsafe.Pointer(uintptr(addr))), v)
}

func (t *target) ReadAt(p []byte, off int64) (int, error) {
	ReadIO(t, Addr(off), p)
	return len(p), nil
}

func (t *target) WriteAt(p []byte, off int64) (int, error) {
	WriteIO(t, Addr(off), p)
	return len(p), nil
}

func (t *target) ID() int { return int(riscv.MHARTID.Get()) }

func (t *target) SetHandler(h func()) { trapHandler = h }

func (t *target) EnableInterrupts()  { riscv.MSTATUS.SetBits(1 << 3) }
func (t *target) DisableInterrupts() { riscv.MSTATUS.ClearBits(1 << 3) }

func (t *target) EnableIRQ(irq IRQ)  { riscv.MIE.SetBits(uintptr(irq)) }
func (t *target) DisableIRQ(irq IRQ) { riscv.MIE.ClearBits(uintptr(irq)) }
func (t *target) Enabled() IRQ       { return IRQ(riscv.MIE.Get()) }

func (t *target) Pending() IRQ { return IRQ(riscv.MIP.Get()) }
func (t *target) Ack(irq IRQ)  { riscv.MIP.ClearBits(uintptr(irq)) }

func (t *target) Halt() { riscv.Asm("wfi") }
