package sim

import (
	"runtime"
	"sync"

	"github.com/clktmr/rvfm/hw"
)

// Core implements hw.Core. Its bus view is the machine's, except for the
// machine timer which every core has on its own.
type Core struct {
	m     *Machine
	id    int
	timer *mtimer

	mtx     sync.Mutex
	cond    sync.Cond
	mip     hw.IRQ
	mie     hw.IRQ
	enabled bool // mstatus.MIE
	inTrap  bool
	handler func()
	killed  bool
}

func newCore(m *Machine, id int) *Core {
	c := &Core{m: m, id: id}
	c.cond.L = &c.mtx
	c.timer = newMTimer(c)
	return c
}

func (c *Core) ID() int { return c.id }

func (c *Core) Load32(addr hw.Addr) uint32 {
	if addr >= hw.MTimerBase && addr < hw.MTimerBase+0x50 {
		return c.timer.load(uint32(addr - hw.MTimerBase))
	}
	return c.m.Load32(addr)
}

func (c *Core) Store32(addr hw.Addr, v uint32) {
	if addr >= hw.MTimerBase && addr < hw.MTimerBase+0x50 {
		c.timer.store(uint32(addr-hw.MTimerBase), v)
		return
	}
	c.m.Store32(addr, v)
}

func (c *Core) ReadAt(p []byte, off int64) (int, error)  { return c.m.ReadAt(p, off) }
func (c *Core) WriteAt(p []byte, off int64) (int, error) { return c.m.WriteAt(p, off) }

func (c *Core) SetHandler(h func()) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.handler = h
}

func (c *Core) EnableInterrupts() {
	c.mtx.Lock()
	c.enabled = true
	take := c.trapPending()
	c.mtx.Unlock()
	if take {
		c.trap()
	}
}

func (c *Core) DisableInterrupts() {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.enabled = false
}

func (c *Core) EnableIRQ(irq hw.IRQ) {
	c.mtx.Lock()
	c.mie |= irq
	take := c.trapPending()
	c.mtx.Unlock()
	if take {
		c.trap()
	}
}

func (c *Core) DisableIRQ(irq hw.IRQ) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.mie &^= irq
}

func (c *Core) Enabled() hw.IRQ {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.mie
}

func (c *Core) Pending() hw.IRQ {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.mip
}

func (c *Core) Ack(irq hw.IRQ) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.mip &^= irq
}

// Raise sets bits in mip, waking the core if they're enabled.
func (c *Core) Raise(irq hw.IRQ) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.mip |= irq
	c.cond.Broadcast()
}

// Halt waits for an enabled interrupt. It never returns if the core is
// killed, the calling goroutine exits instead.
func (c *Core) Halt() {
	c.mtx.Lock()
	for c.mip&c.mie == 0 && !c.killed {
		c.cond.Wait()
	}
	if c.killed {
		c.mtx.Unlock()
		runtime.Goexit()
	}
	take := c.trapPending()
	c.mtx.Unlock()
	if take {
		c.trap()
	}
}

// must hold c.mtx
func (c *Core) trapPending() bool {
	return c.enabled && !c.inTrap && c.handler != nil && c.mip&c.mie != 0
}

func (c *Core) trap() {
	c.mtx.Lock()
	if !c.trapPending() {
		c.mtx.Unlock()
		return
	}
	h := c.handler
	c.enabled, c.inTrap = false, true
	c.mtx.Unlock()

	h()

	c.mtx.Lock()
	c.enabled, c.inTrap = true, false
	c.mtx.Unlock()
}

func (c *Core) kill() {
	c.timer.stop()
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.killed = true
	c.cond.Broadcast()
}
