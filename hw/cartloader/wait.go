package cartloader

import (
	"errors"
	"time"

	"github.com/clktmr/rvfm/hw"
)

// Forever disables the timeout of a wait.
const Forever time.Duration = -1

var ErrTimeout = errors.New("cartloader: timeout waiting for completion")

// Waiter blocks until done reports true or timeout expires, in which case it
// returns false. A negative timeout never expires.
type Waiter interface {
	Wait(done func() bool, timeout time.Duration) bool
}

// IRQWaiter wakes on the completion interrupt of the device instead of
// rechecking once per quantum. Waits with a timeout are passed to the
// fallback waiter, which must wake on any interrupt as well.
type IRQWaiter struct {
	core     hw.Core
	fallback Waiter
}

// NewIRQWaiter enables the completion interrupt of d and chains its handler to
// the external interrupt handlers of v.
func NewIRQWaiter(v *hw.Vector, d *Dispatcher, fallback Waiter) *IRQWaiter {
	core := v.Core()
	v.Chain(hw.IRQExternal, func() {
		if hw.CartIntrState.Load(core) != 0 {
			hw.CartIntrState.Store(core, 0)
		}
	})
	regIRQEnable.Store(d.bus, 1)
	core.EnableIRQ(hw.IRQExternal)
	core.EnableInterrupts()
	return &IRQWaiter{core, fallback}
}

// Wait calls done with interrupts disabled, an interrupt arriving after the
// check ends the following halt.
func (w *IRQWaiter) Wait(done func() bool, timeout time.Duration) bool {
	if timeout >= 0 && w.fallback != nil {
		return w.fallback.Wait(done, timeout)
	}
	w.core.DisableInterrupts()
	defer w.core.EnableInterrupts()
	for !done() {
		w.core.Halt()
		w.core.EnableInterrupts()
		w.core.DisableInterrupts()
	}
	return true
}
