package hw

// Vector dispatches the trap of a core to per source handlers.
type Vector struct {
	core     Core
	handlers [3]func()
}

var sources = [...]IRQ{IRQSoftware, IRQTimer, IRQExternal}

// NewVector installs a trap handler on core which dispatches to the handlers
// registered with SetHandler.
func NewVector(core Core) *Vector {
	v := &Vector{core: core}
	core.SetHandler(v.dispatch)
	return v
}

func (v *Vector) Core() Core { return v.core }

func (v *Vector) dispatch() {
	pending := v.core.Pending() & v.core.Enabled()
	for i, irq := range sources {
		if pending&irq == 0 {
			continue
		}
		handler := v.handlers[i]
		if handler == nil {
			panic("unhandled interrupt")
		}
		// Acknowledge before handling, a device raising again while the
		// handler runs will trap again.
		v.core.Ack(irq)
		handler()
	}
}

// SetHandler sets the handler for a single interrupt source. External
// interrupts are shared by multiple devices, use Chain to add a handler
// without replacing an existing one.
func (v *Vector) SetHandler(irq IRQ, handler func()) {
	v.core.DisableInterrupts()
	defer v.core.EnableInterrupts()
	for i, src := range sources {
		if src&irq != 0 {
			v.handlers[i] = handler
			return
		}
	}
}

func (v *Vector) Handler(irq IRQ) func() {
	for i, src := range sources {
		if src&irq != 0 {
			return v.handlers[i]
		}
	}
	return nil
}

// Chain adds handler to the handlers of irq.
func (v *Vector) Chain(irq IRQ, handler func()) {
	prev := v.Handler(irq)
	if prev == nil {
		v.SetHandler(irq, handler)
		return
	}
	v.SetHandler(irq, func() {
		prev()
		handler()
	})
}
