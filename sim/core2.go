package sim

import (
	"fmt"
	"sync"

	"github.com/clktmr/rvfm/hw"
)

// core2Controller starts the second core at a linked entry point.
type core2Controller struct {
	m *Machine

	mtx     sync.Mutex
	start   uint32
	running bool
}

func (c *core2Controller) load(off uint32) uint32 {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	switch off {
	case 0x0:
		return c.start
	case 0x8:
		if c.running {
			return 1
		}
	}
	return 0
}

func (c *core2Controller) store(off uint32, v uint32) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	switch off {
	case 0x0:
		c.start = v
	case 0x4:
		if v == 0 || c.running {
			return
		}
		entry := c.m.lookup(hw.Addr(c.start))
		if entry == nil {
			c.m.log.WithField("pc", fmt.Sprintf("%#08x", c.start)).Error("core 2 started at unknown address")
			return
		}
		c.running = true
		c.m.Run(1, entry)
	}
}

func (c *core2Controller) reset() {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.running = false
}
