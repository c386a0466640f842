package hw

// Base addresses of the memory mapped peripherals.
const (
	DebugBase      Addr = 0xf000_0000
	GPUBase        Addr = 0xf001_0000
	DMABase        Addr = 0xf002_0000
	IntrStateBase  Addr = 0xf003_0000
	Core2Base      Addr = 0xf004_0000
	SoundBase      Addr = 0xf005_0000
	MTimerBase     Addr = 0xf006_0000
	MathAccelBase  Addr = 0xf007_0000
	CartLoaderBase Addr = 0xf008_0000
	InputBase      Addr = 0xf009_0000

	Framebuffer Addr = 0x0200_0000
)

// Interrupt state registers. Writing a register acknowledges the interrupt.
const (
	GPUIntrState   Reg = Reg(IntrStateBase) + 0x0
	SoundIntrState Reg = Reg(IntrStateBase) + 0x4
	CartIntrState  Reg = Reg(IntrStateBase) + 0x8
)
