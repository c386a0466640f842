package rvfmtesting

import (
	"testing"
	"time"

	"github.com/clktmr/rvfm/drivers/carts"
	"github.com/clktmr/rvfm/drivers/slots"
	"github.com/clktmr/rvfm/hw"
	"github.com/clktmr/rvfm/hw/cartloader"
	"github.com/clktmr/rvfm/hw/mtimer"
	"github.com/clktmr/rvfm/sim"
)

// Timeout bounds RunFirmware.
var Timeout = 10 * time.Second

// Firmware holds the drivers of test code running on a core.
type Firmware struct {
	Core   hw.Core
	Vector *hw.Vector
	Delay  *mtimer.Delay
	Arena  *hw.Arena
	Loader *cartloader.Dispatcher
	Carts  *carts.Directory
	Slots  *slots.Manager
}

func NewFirmware(m *sim.Machine, core hw.Core) *Firmware {
	f := &Firmware{Core: core}
	f.Vector = hw.NewVector(core)
	f.Delay = mtimer.NewDelay(f.Vector, mtimer.DefaultQuantum)
	f.Arena = m.Arena(core)
	f.Loader = cartloader.New(core, f.Delay)
	f.Carts = carts.New(f.Loader, f.Arena)
	f.Slots = slots.New(f.Loader, f.Arena)
	return f
}

// RunFirmware runs fn on core 0 and waits until it returns or the core is
// reset by a cart load. It reports whether fn returned.
func RunFirmware(t testing.TB, m *sim.Machine, fn func(f *Firmware)) bool {
	t.Helper()
	e := m.Run(0, func(core hw.Core) {
		fn(NewFirmware(m, core))
	})
	select {
	case <-e.Done():
	case <-time.After(Timeout):
		t.Fatal("firmware didn't finish")
	}
	return e.Returned()
}
