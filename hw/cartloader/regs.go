package cartloader

import (
	"strconv"

	"github.com/clktmr/rvfm/hw"
)

const (
	base = hw.Reg(hw.CartLoaderBase)

	regCommand   = base + 0x00
	regParam0    = base + 0x04
	regCartCount = base + 0x1c
	regIRQEnable = base + 0x20

	maxParams = 6
)

func regParam(i int) hw.Reg {
	return regParam0.At(uint32(i) * 4)
}

// Opcode selects the operation executed by the device.
type Opcode uint32

const (
	OpEnumerate Opcode = iota
	OpReadMetadata
	OpLoadCart
	OpOpenSlotFs
	OpOpenSlotBinary
	OpCloseSlot
	OpReadData
	OpWriteData
	OpGetExtents
)

var opcodeNames = [...]string{
	"Enumerate", "ReadMetadata", "LoadCart", "OpenSlotFs", "OpenSlotBinary",
	"CloseSlot", "ReadData", "WriteData", "GetExtents",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}
	return "Opcode(" + strconv.FormatUint(uint64(op), 10) + ")"
}

// OpenFlags are passed with OpOpenSlotFs.
const (
	FlagWritable uint32 = 1 << 0
)

// SlotCount is the number of data slots the device provides.
const SlotCount = 8

// MaxPath is the longest path, including the terminating zero, the device
// reads for OpOpenSlotFs.
const MaxPath = 1024
