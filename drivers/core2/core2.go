// Package core2 starts the second core.
package core2

import (
	"errors"

	"github.com/clktmr/rvfm/hw"
)

var (
	regStart  = hw.Reg(hw.Core2Base) + 0x0
	regRun    = hw.Reg(hw.Core2Base) + 0x4
	regStatus = hw.Reg(hw.Core2Base) + 0x8
)

var ErrRunning = errors.New("core2: already running")

// Start links entry and lets the second core execute it. The second core can
// only be started once per machine reset.
func Start(bus hw.WordBus, l hw.Linker, entry func(hw.Core)) error {
	if Running(bus) {
		return ErrRunning
	}
	regStart.Store(bus, uint32(l.Link(entry)))
	regRun.Store(bus, 1)
	return nil
}

func Running(bus hw.WordBus) bool {
	return regStatus.Load(bus) != 0
}
