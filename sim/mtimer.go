package sim

import (
	"sync"
	"time"

	"github.com/clktmr/rvfm/hw"
)

// mtimer counts milliseconds and raises the timer interrupt of its core once
// mtime reaches mtimecmp.
type mtimer struct {
	core *Core

	mtx     sync.Mutex
	epoch   time.Time // mtime is zero at epoch
	cmp     uint64
	bufTime uint64
	bufCmp  uint64
	t       *time.Timer
	stopped bool
}

func newMTimer(c *Core) *mtimer {
	return &mtimer{core: c, epoch: time.Now(), cmp: ^uint64(0)}
}

// must hold t.mtx
func (t *mtimer) now() uint64 {
	return uint64(time.Since(t.epoch).Milliseconds())
}

func setLo(v *uint64, lo uint32) { *v = *v&^0xffff_ffff | uint64(lo) }
func setHi(v *uint64, hi uint32) { *v = *v&0xffff_ffff | uint64(hi)<<32 }

func (t *mtimer) load(off uint32) uint32 {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	switch off {
	case 0x00:
		return uint32(t.now())
	case 0x04:
		return uint32(t.now() >> 32)
	case 0x08:
		return uint32(t.bufTime)
	case 0x0c:
		return uint32(t.bufTime >> 32)
	case 0x20:
		return uint32(t.cmp)
	case 0x24:
		return uint32(t.cmp >> 32)
	case 0x28:
		return uint32(t.bufCmp)
	case 0x2c:
		return uint32(t.bufCmp >> 32)
	}
	return 0
}

func (t *mtimer) store(off uint32, v uint32) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	switch off {
	case 0x08:
		setLo(&t.bufTime, v)
	case 0x0c:
		setHi(&t.bufTime, v)
	case 0x10: // mtime read trigger
		t.bufTime = t.now()
	case 0x14: // mtime write trigger
		t.setTime(t.bufTime)
	case 0x28:
		setLo(&t.bufCmp, v)
	case 0x2c:
		setHi(&t.bufCmp, v)
	case 0x30: // mtimecmp read trigger
		t.bufCmp = t.cmp
	case 0x34: // mtimecmp write trigger
		t.cmp = t.bufCmp
	case 0x40: // dual write trigger
		t.setTime(t.bufTime)
		t.cmp = t.bufCmp
	default:
		return
	}
	t.schedule()
}

// must hold t.mtx
func (t *mtimer) setTime(mtime uint64) {
	t.epoch = time.Now().Add(-time.Duration(mtime) * time.Millisecond)
}

// must hold t.mtx
func (t *mtimer) schedule() {
	if t.t != nil {
		t.t.Stop()
		t.t = nil
	}
	if t.stopped || t.cmp == ^uint64(0) {
		return
	}
	now := t.now()
	if now >= t.cmp {
		t.core.Raise(hw.IRQTimer)
		return
	}
	t.t = time.AfterFunc(time.Duration(t.cmp-now)*time.Millisecond, func() {
		t.core.Raise(hw.IRQTimer)
	})
}

func (t *mtimer) stop() {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.stopped = true
	if t.t != nil {
		t.t.Stop()
	}
}
