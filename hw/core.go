package hw

// IRQ is a bit mask of machine mode interrupt sources as found in the mip and
// mie registers.
type IRQ uint32

const (
	IRQSoftware IRQ = 1 << 3
	IRQTimer    IRQ = 1 << 7
	IRQExternal IRQ = 1 << 11

	IRQAll = IRQSoftware | IRQTimer | IRQExternal
)

// Core is a single hart and its view of the bus. Each core sees its own
// machine timer at [MTimerBase].
type Core interface {
	Bus

	// ID returns the hart id, 0 for the boot core.
	ID() int

	// SetHandler installs the machine mode trap handler. The handler runs
	// with interrupts globally disabled.
	SetHandler(h func())

	EnableInterrupts()
	DisableInterrupts()

	// EnableIRQ and DisableIRQ set and clear bits in mie.
	EnableIRQ(irq IRQ)
	DisableIRQ(irq IRQ)
	Enabled() IRQ

	// Pending returns mip, Ack clears the given bits in mip.
	Pending() IRQ
	Ack(irq IRQ)

	// Halt waits for an enabled interrupt (wfi). If interrupts are globally
	// enabled the trap handler has run when Halt returns, otherwise the
	// interrupt stays pending until they are.
	Halt()
}

// Linker resolves a core entry function to the address the core controller
// starts executing at.
type Linker interface {
	Link(entry func(Core)) Addr
}
