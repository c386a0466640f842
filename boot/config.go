package boot

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clktmr/rvfm/hw"
	"github.com/clktmr/rvfm/hw/cartloader"
	"github.com/clktmr/rvfm/hw/mtimer"
)

// Config controls the firmware. The zero value is not usable, start with
// DefaultConfig.
type Config struct {
	// Quantum bounds how long a waiting core halts before it rechecks.
	Quantum time.Duration

	// Timeout applies to each cart loader command. cartloader.Forever
	// waits for a stuck device indefinitely.
	Timeout time.Duration

	LogLevel logrus.Level

	// WakeOnCompletion waits on the cart loader's completion interrupt
	// instead of rechecking once per quantum.
	WakeOnCompletion bool

	// VSync synchronizes the picker to the display's vertical blank.
	VSync bool

	// Chime plays the startup melody on the second core.
	Chime bool

	// Select loads the cart at this index right after enumeration. A
	// negative value shows the picker.
	Select int

	// Each core gets ArenaSize bytes of device visible memory, starting at
	// ArenaBase for the boot core.
	ArenaBase hw.Addr
	ArenaSize uint32
}

func DefaultConfig() Config {
	return Config{
		Quantum:          mtimer.DefaultQuantum,
		Timeout:          cartloader.Forever,
		LogLevel:         logrus.InfoLevel,
		WakeOnCompletion: true,
		VSync:            true,
		Chime:            true,
		Select:           -1,
		ArenaBase:        0x0100_0000,
		ArenaSize:        0x10_0000,
	}
}

func (c *Config) arena(core hw.Core) *hw.Arena {
	return hw.NewArena(core, c.ArenaBase+hw.Addr(core.ID())*hw.Addr(c.ArenaSize), c.ArenaSize)
}
