package hw

// WriteIO copies slice p to address addr using 32-bit bus accesses. It needs to
// read from the bus if p's start or end aren't 4 byte aligned. This might lead
// to unexpected behaviour of write-only address ranges.
func WriteIO(bus WordBus, addr Addr, p []byte) {
	shift := int(addr & 0x3)
	word := addr &^ 0x3
	for len(p) > 0 {
		n := min(4-shift, len(p))
		mask := uint32(0xffff_ffff)
		if n < 4 {
			mask = (uint32(1)<<(n*8) - 1) << (shift * 8)
		}
		var data uint32
		if mask != 0xffff_ffff { // read data before writing
			data = bus.Load32(word) &^ mask
		}
		for i := range n {
			data |= uint32(p[i]) << ((shift + i) * 8)
		}
		bus.Store32(word, data)

		p = p[n:]
		shift = 0
		word += 4
	}
}

// ReadIO copies from address addr to slice p using 32-bit bus accesses.
func ReadIO(bus WordBus, addr Addr, p []byte) {
	shift := int(addr & 0x3)
	word := addr &^ 0x3
	for len(p) > 0 {
		n := min(4-shift, len(p))
		data := bus.Load32(word)
		for i := range n {
			p[i] = byte(data >> ((shift + i) * 8))
		}

		p = p[n:]
		shift = 0
		word += 4
	}
}
