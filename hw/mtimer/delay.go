package mtimer

import (
	"time"

	"github.com/clktmr/rvfm/hw"
)

// DefaultQuantum is the recheck interval of a Delay used by the boot
// firmware.
const DefaultQuantum = time.Millisecond

// Delay implements cooperative waiting on a core. It owns the core's timer
// interrupt and the flag the interrupt handler sets.
type Delay struct {
	core    hw.Core
	timer   *Timer
	fired   hw.Flag
	quantum time.Duration
}

// NewDelay installs the timer interrupt handler on v. The quantum bounds how
// long a Wait halts before checking its condition again.
func NewDelay(v *hw.Vector, quantum time.Duration) *Delay {
	d := &Delay{
		core:    v.Core(),
		timer:   New(v.Core()),
		quantum: max(quantum, time.Millisecond),
	}
	v.SetHandler(hw.IRQTimer, d.Interrupt)
	return d
}

func (d *Delay) Quantum() time.Duration { return d.quantum }

// Interrupt must be called from the timer interrupt handler.
func (d *Delay) Interrupt() {
	d.fired.Set()
}

// schedule must be called with interrupts disabled.
func (d *Delay) schedule(dur time.Duration) {
	d.fired.Clear()
	d.timer.Schedule(dur)
	d.core.EnableIRQ(hw.IRQTimer)
}

// halt must be called with interrupts disabled. An interrupt pending ends the
// halt but is taken only when interrupts are enabled again, so a condition
// checked before halt can't miss its wakeup.
func (d *Delay) halt() {
	d.core.Halt()
	d.core.EnableInterrupts()
	d.core.DisableInterrupts()
}

// Sleep halts the core for dur.
func (d *Delay) Sleep(dur time.Duration) {
	d.core.DisableInterrupts()
	defer d.core.EnableInterrupts()
	d.schedule(dur)
	for !d.fired.IsSet() {
		d.halt()
	}
}

// Wait halts the core until done returns true. It's rechecked after every
// interrupt, at the latest when the quantum expires. Wait returns false if the
// timeout expires first, a negative timeout waits forever. done is called with
// interrupts disabled.
func (d *Delay) Wait(done func() bool, timeout time.Duration) bool {
	if timeout == 0 {
		return done()
	}
	d.core.DisableInterrupts()
	defer d.core.EnableInterrupts()
	var elapsed time.Duration
	armed := false
	for !done() {
		if !armed {
			d.schedule(d.quantum)
			armed = true
		}
		d.halt()
		if d.fired.TakeSet() {
			armed = false
			elapsed += d.quantum
			if timeout > 0 && elapsed >= timeout {
				return done()
			}
		}
	}
	return true
}
