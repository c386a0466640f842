// Package input reads the keyboard and mouse state.
package input

import (
	"github.com/clktmr/rvfm/hw"
)

type Key int

const (
	KeyEscape Key = 0
	KeyReturn Key = 3
	KeyUp     Key = 4
	KeyDown   Key = 5
	KeyLeft   Key = 6
	KeyRight  Key = 7
	KeyR      Key = 48
)

var (
	regEvents = hw.Reg(hw.InputBase) + 0x00
	regStates = hw.Reg(hw.InputBase) + 0x0c
	regMouse  = hw.Reg(hw.InputBase) + 0x20
)

const keyWords = 3

// Keys is a snapshot of all key bits.
type Keys [keyWords]uint32

func (k Keys) Has(key Key) bool {
	if key < 0 || int(key) >= keyWords*32 {
		return false
	}
	return k[key/32]&(1<<(key%32)) != 0
}

type Device struct {
	bus hw.WordBus
}

func New(bus hw.WordBus) *Device {
	return &Device{bus}
}

// Down returns the keys currently held.
func (d *Device) Down() (k Keys) {
	for i := range k {
		k[i] = regStates.At(uint32(i) * 4).Load(d.bus)
	}
	return
}

// Events returns the keys which changed since the last call. Reading clears
// the events.
func (d *Device) Events() (k Keys) {
	for i := range k {
		k[i] = regEvents.At(uint32(i) * 4).Load(d.bus)
	}
	return
}

// Pressed returns the keys which went down since the last call to Events or
// Pressed.
func (d *Device) Pressed() (k Keys) {
	ev, down := d.Events(), d.Down()
	for i := range k {
		k[i] = ev[i] & down[i]
	}
	return
}

func (d *Device) KeyDown(key Key) bool {
	return d.Down().Has(key)
}

// Mouse returns the pointer position and button bits.
func (d *Device) Mouse() (x, y int32, buttons uint32) {
	x = int32(regMouse.Load(d.bus))
	y = int32(regMouse.At(4).Load(d.bus))
	buttons = regMouse.At(8).Load(d.bus)
	return
}
