package sim

import (
	"sync"
)

// Input holds key and mouse state. Keys are numbered as by the input driver.
type Input struct {
	m *Machine

	mtx    sync.Mutex
	events [3]uint32
	states [3]uint32
	mouse  [3]uint32
}

func newInput(m *Machine) *Input {
	return &Input{m: m}
}

func (in *Input) load(off uint32) uint32 {
	in.mtx.Lock()
	defer in.mtx.Unlock()
	switch {
	case off < 0x0c:
		// events are cleared on read
		v := in.events[off/4]
		in.events[off/4] = 0
		return v
	case off < 0x18:
		return in.states[(off-0x0c)/4]
	case off >= 0x20 && off < 0x2c:
		return in.mouse[(off-0x20)/4]
	}
	return 0
}

func (in *Input) store(off uint32, v uint32) {}

// SetKey sets the state of key.
func (in *Input) SetKey(key int, down bool) {
	in.mtx.Lock()
	defer in.mtx.Unlock()
	w, bit := key/32, uint32(1)<<(key%32)
	if down {
		in.states[w] |= bit
	} else {
		in.states[w] &^= bit
	}
	in.events[w] |= bit
}

func (in *Input) Press(key int)   { in.SetKey(key, true) }
func (in *Input) Release(key int) { in.SetKey(key, false) }
