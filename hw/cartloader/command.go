package cartloader

import (
	"github.com/clktmr/rvfm/hw"
)

// Command is a single encoded operation. Buffers whose addresses are passed in
// Params are listed in Buffers, they are leased to the device until the
// completion is observed.
type Command struct {
	Op      Opcode
	Params  []uint32
	Cell    *Cell
	Buffers []*hw.Buffer
}

func addr(b *hw.Buffer) uint32 { return uint32(b.Addr()) }

func Enumerate(c *Cell) Command {
	return Command{
		Op:     OpEnumerate,
		Params: []uint32{uint32(c.Addr())},
		Cell:   c,
	}
}

// ReadMetadata fills rec with the record of cart index. rec must be at least
// RecordSize bytes.
func ReadMetadata(index uint32, rec *hw.Buffer, c *Cell) Command {
	return Command{
		Op:      OpReadMetadata,
		Params:  []uint32{index, addr(rec), uint32(c.Addr())},
		Cell:    c,
		Buffers: []*hw.Buffer{rec},
	}
}

func LoadCart(index uint32, c *Cell) Command {
	return Command{
		Op:     OpLoadCart,
		Params: []uint32{index, uint32(c.Addr())},
		Cell:   c,
	}
}

// OpenSlotFs opens the file at path, a zero terminated string with '/'
// separators relative to the cart's data directory.
func OpenSlotFs(slot uint32, path *hw.Buffer, flags uint32, c *Cell) Command {
	return Command{
		Op:      OpOpenSlotFs,
		Params:  []uint32{slot, addr(path), uint32(c.Addr()), flags},
		Cell:    c,
		Buffers: []*hw.Buffer{path},
	}
}

// OpenSlotBinary opens a window of the loaded cart's data file. A length of
// zero extends the window to the end of the file.
func OpenSlotBinary(slot, offset, length uint32, c *Cell) Command {
	return Command{
		Op:     OpOpenSlotBinary,
		Params: []uint32{slot, uint32(c.Addr()), offset, length},
		Cell:   c,
	}
}

func CloseSlot(slot uint32, c *Cell) Command {
	return Command{
		Op:     OpCloseSlot,
		Params: []uint32{slot, uint32(c.Addr())},
		Cell:   c,
	}
}

// ReadData reads up to length bytes at offset into buf and stores the number
// of bytes read in n.
func ReadData(slot, offset, length uint32, buf, n *hw.Buffer, c *Cell) Command {
	return Command{
		Op:      OpReadData,
		Params:  []uint32{slot, offset, length, addr(buf), addr(n), uint32(c.Addr())},
		Cell:    c,
		Buffers: []*hw.Buffer{buf, n},
	}
}

// WriteData writes length bytes from buf at offset and stores the number of
// bytes written in n.
func WriteData(slot, offset, length uint32, buf, n *hw.Buffer, c *Cell) Command {
	return Command{
		Op:      OpWriteData,
		Params:  []uint32{slot, offset, length, addr(buf), addr(n), uint32(c.Addr())},
		Cell:    c,
		Buffers: []*hw.Buffer{buf, n},
	}
}

// GetExtents stores the length of the slot's stream in extents.
func GetExtents(slot uint32, extents *hw.Buffer, c *Cell) Command {
	return Command{
		Op:      OpGetExtents,
		Params:  []uint32{slot, addr(extents), uint32(c.Addr())},
		Cell:    c,
		Buffers: []*hw.Buffer{extents},
	}
}
