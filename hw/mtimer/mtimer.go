// Package mtimer drives the per core machine timer. The timer counts
// milliseconds and raises the machine timer interrupt once mtime reaches
// mtimecmp.
package mtimer

import (
	"time"

	"github.com/clktmr/rvfm/hw"
)

const (
	base = hw.Reg(hw.MTimerBase)

	regMtime             = base + 0x00
	regMtimeH            = base + 0x04
	regMtimeBuf          = base + 0x08
	regMtimeHBuf         = base + 0x0c
	regMtimeReadTrigger  = base + 0x10
	regMtimeWriteTrigger = base + 0x14
	regMtimecmp          = base + 0x20
	regMtimecmpH         = base + 0x24
	regMtimecmpBuf       = base + 0x28
	regMtimecmpHBuf      = base + 0x2c
	regDualWriteTrigger  = base + 0x40
)

// Timer is the machine timer of a single core.
type Timer struct {
	bus hw.WordBus
}

func New(bus hw.WordBus) *Timer {
	return &Timer{bus}
}

// Now returns mtime in milliseconds.
func (t *Timer) Now() uint64 {
	regMtimeReadTrigger.Store(t.bus, 1)
	lo := regMtimeBuf.Load(t.bus)
	hi := regMtimeHBuf.Load(t.bus)
	return uint64(hi)<<32 | uint64(lo)
}

// Schedule resets mtime and sets mtimecmp, so the timer interrupt becomes
// pending after d. Both are written atomically.
func (t *Timer) Schedule(d time.Duration) {
	ms := uint64(max(d.Milliseconds(), 1))
	regMtimeHBuf.Store(t.bus, 0)
	regMtimeBuf.Store(t.bus, 0)
	regMtimecmpBuf.Store(t.bus, uint32(ms))
	regMtimecmpHBuf.Store(t.bus, uint32(ms>>32))
	regDualWriteTrigger.Store(t.bus, 1)
}
