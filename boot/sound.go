package boot

import (
	"github.com/clktmr/rvfm/drivers/sound"
	"github.com/clktmr/rvfm/hw"
)

// SoundEntry returns the second core's entry point, which plays the startup
// chime and then keeps the FIFO filled with silence.
func SoundEntry(cfg Config) func(hw.Core) {
	return func(c hw.Core) {
		v := hw.NewVector(c)
		p, err := sound.NewPlayer(v, cfg.arena(c))
		if err != nil {
			c.DisableInterrupts()
			for {
				c.Halt()
			}
		}
		p.SetSource(sound.NewMelody(sound.Chime()))
		p.Run()
	}
}
