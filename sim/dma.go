package sim

import (
	"encoding/binary"
	"sync"
)

// Register layout of the DMA engine, in bytes.
const (
	dmaType         = 0x00
	dmaIndex        = 0x04
	dmaParam0       = 0x08
	dmaCommand      = 0x20
	dmaTransferSize = 0x24
	dmaError        = 0x28
	dmaErrorParam0  = 0x2c
	dmaErrorParam2  = 0x34
	dmaRegsEnd      = 0x38
)

const (
	dmaProgramSize = 0x100
	dmaBlockSize   = 0x400
	dmaIBuffers    = 16
	dmaChannels    = 4
	dmaMaxTransfer = 0x10000
)

const (
	dmaCmdTrigger = iota
	dmaCmdSource
	dmaCmdDest
	dmaCmdOp
)

const (
	dmaMemNone = iota
	dmaMem8
	dmaMem16
	dmaMem32
	dmaMem8Blit
	dmaMem16Blit
	dmaMem32Blit
)

const (
	dmaOpEnd = iota
	dmaOpCopy
	dmaOpAdd
	dmaOpSub
	dmaOpMul
	dmaOpDiv
	dmaOpRem
	dmaOpAnd
	dmaOpOr
	dmaOpXor
	dmaOpCondCopy
	dmaOpLShift
	dmaOpRShift
	dmaOpARShift
)

const (
	dmaOperandChannel = iota
	dmaOperandIBuffer
	dmaOperandConst
)

// Error codes of the DMA engine.
const (
	dmaErrNone           = 0
	dmaErrIndex          = 1
	dmaErrType           = 2
	dmaErrTransferSize   = 8
	dmaErrBadCommand     = 9
	dmaErrOperandRange   = 10
	dmaErrOperandType    = 12
	dmaErrNullSource     = 14
	dmaErrNullDest       = 15
	dmaErrMemoryAccess   = 80
	dmaMemAccessErrRead  = 0
	dmaMemAccessErrWrite = 1
)

// dmaMem describes one memory channel. Blit channels skip skip elements after
// every width elements. A restart of 0 never wraps.
type dmaMem struct {
	kind      uint32
	addr      uint32
	increment int32
	restart   uint32
	width     uint32
	skip      uint32
}

func (c *dmaMem) elemSize() uint32 {
	switch c.kind {
	case dmaMem8, dmaMem8Blit:
		return 1
	case dmaMem16, dmaMem16Blit:
		return 2
	}
	return 4
}

func (c *dmaMem) addrOf(transfer uint32) uint32 {
	if c.kind >= dmaMem8Blit && c.width != 0 {
		transfer += c.skip * (transfer / c.width)
	}
	if c.restart != 0 {
		transfer %= c.restart
	}
	return c.addr + uint32(int32(transfer)*c.increment)
}

type dmaOperand struct {
	kind uint32
	val  uint32
}

type dmaOp struct {
	kind     uint32
	a, b     dmaOperand
	dst      dmaOperand
	operands int
}

// DMA implements the programmable DMA engine. A program of up to 256 ops is
// run over the transfer in blocks of 1024 elements; each op combines whole
// blocks of its operands.
type DMA struct {
	m *Machine

	mtx     sync.Mutex
	regs    [dmaRegsEnd / 4]uint32
	sources [dmaChannels]dmaMem
	dests   [dmaChannels]dmaMem
	program [dmaProgramSize]dmaOp
	ibuf    [dmaIBuffers][dmaBlockSize]uint32
	tmp     [3][dmaBlockSize]uint32
}

func newDMA(m *Machine) *DMA {
	return &DMA{m: m}
}

func (d *DMA) load(off uint32) uint32 {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if off >= dmaRegsEnd || off == dmaCommand {
		return 0
	}
	return d.regs[off/4]
}

func (d *DMA) store(off uint32, val uint32) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	switch {
	case off < dmaCommand:
		d.regs[off/4] = val
	case off == dmaTransferSize:
		if val > dmaMaxTransfer {
			d.fail(dmaErrTransferSize, val, 0, 0)
			return
		}
		d.regs[off/4] = val
	case off == dmaCommand:
		d.command(val)
	case off == dmaError:
		d.regs[dmaError/4] = 0
		d.regs[dmaErrorParam0/4] = 0
		d.regs[dmaErrorParam0/4+1] = 0
		d.regs[dmaErrorParam2/4] = 0
	}
}

// must hold d.mtx
func (d *DMA) fail(code, p0, p1, p2 uint32) {
	d.regs[dmaError/4] = code
	d.regs[dmaErrorParam0/4] = p0
	d.regs[dmaErrorParam0/4+1] = p1
	d.regs[dmaErrorParam2/4] = p2
	d.m.log.WithField("error", code).Debug("dma command failed")
}

func (d *DMA) param(i int) uint32 { return d.regs[dmaParam0/4+i] }

// must hold d.mtx
func (d *DMA) command(cmd uint32) {
	typ, idx := d.regs[dmaType/4], d.regs[dmaIndex/4]
	switch cmd {
	case dmaCmdTrigger:
		d.run()
	case dmaCmdSource, dmaCmdDest:
		if idx >= dmaChannels {
			d.fail(dmaErrIndex, idx, 0, 0)
			return
		}
		if typ > dmaMem32Blit {
			d.fail(dmaErrType, typ, 0, 0)
			return
		}
		c := dmaMem{
			kind:      typ,
			addr:      d.param(0),
			increment: int32(d.param(1)),
			restart:   d.param(2),
		}
		if typ >= dmaMem8Blit {
			c.width, c.skip = d.param(3), d.param(4)
		}
		if cmd == dmaCmdSource {
			d.sources[idx] = c
		} else {
			d.dests[idx] = c
		}
	case dmaCmdOp:
		if idx >= dmaProgramSize {
			d.fail(dmaErrIndex, idx, 0, 0)
			return
		}
		op := dmaOp{kind: typ}
		switch {
		case typ == dmaOpEnd:
		case typ == dmaOpCopy:
			op.operands = 1
		case typ <= dmaOpARShift:
			op.operands = 2
		default:
			d.fail(dmaErrType, typ, 0, 0)
			return
		}
		for i := range op.operands {
			o, ok := d.operand(d.param(2*i), d.param(2*i+1), false)
			if !ok {
				return
			}
			if i == 0 {
				op.a = o
			} else {
				op.b = o
			}
		}
		if op.operands > 0 {
			o, ok := d.operand(d.param(2*op.operands), d.param(2*op.operands+1), true)
			if !ok {
				return
			}
			op.dst = o
		}
		d.program[idx] = op
	default:
		d.fail(dmaErrBadCommand, cmd, 0, 0)
	}
}

// must hold d.mtx
func (d *DMA) operand(kind, val uint32, dest bool) (dmaOperand, bool) {
	var limit uint32
	switch {
	case kind == dmaOperandChannel:
		limit = dmaChannels
	case kind == dmaOperandIBuffer:
		limit = dmaIBuffers
	case kind == dmaOperandConst && !dest:
		return dmaOperand{kind, val}, true
	default:
		d.fail(dmaErrOperandType, kind, 0, 0)
		return dmaOperand{}, false
	}
	if val >= limit {
		d.fail(dmaErrOperandRange, val, 0, 0)
		return dmaOperand{}, false
	}
	return dmaOperand{kind, val}, true
}

// must hold d.mtx
func (d *DMA) run() {
	size := d.regs[dmaTransferSize/4]
	for start := uint32(0); start < size; start += dmaBlockSize {
		n := min(size-start, dmaBlockSize)
		for pc := range d.program {
			op := &d.program[pc]
			if op.kind == dmaOpEnd {
				break
			}
			a := d.tmp[0][:n]
			if !d.read(op.a, start, a) {
				return
			}
			var b []uint32
			if op.operands > 1 {
				b = d.tmp[1][:n]
				if !d.read(op.b, start, b) {
					return
				}
			}
			out := d.tmp[2][:n]
			var mask []uint32
			switch op.kind {
			case dmaOpCopy:
				copy(out, a)
			case dmaOpCondCopy:
				copy(out, a)
				mask = b
			default:
				for i := range out {
					out[i] = dmaALU(op.kind, a[i], b[i])
				}
			}
			if !d.write(op.dst, start, out, mask) {
				return
			}
		}
	}
}

func dmaALU(kind, a, b uint32) uint32 {
	switch kind {
	case dmaOpAdd:
		return a + b
	case dmaOpSub:
		return a - b
	case dmaOpMul:
		return a * b
	case dmaOpDiv:
		if b == 0 {
			return 0xffff_ffff
		}
		return a / b
	case dmaOpRem:
		if b == 0 {
			return a
		}
		return a % b
	case dmaOpAnd:
		return a & b
	case dmaOpOr:
		return a | b
	case dmaOpXor:
		return a ^ b
	case dmaOpLShift:
		return a << (b & 31)
	case dmaOpRShift:
		return a >> (b & 31)
	case dmaOpARShift:
		return uint32(int32(a) >> (b & 31))
	}
	return 0
}

// must hold d.mtx
func (d *DMA) read(o dmaOperand, start uint32, buf []uint32) bool {
	switch o.kind {
	case dmaOperandConst:
		for i := range buf {
			buf[i] = o.val
		}
		return true
	case dmaOperandIBuffer:
		copy(buf, d.ibuf[o.val][:])
		return true
	}
	c := &d.sources[o.val]
	if c.kind == dmaMemNone {
		d.fail(dmaErrNullSource, o.val, 0, 0)
		return false
	}
	var p [4]byte
	size := c.elemSize()
	for i := range buf {
		addr := c.addrOf(start + uint32(i))
		if _, err := d.m.ReadAt(p[:size], int64(addr)); err != nil {
			d.fail(dmaErrMemoryAccess, dmaMemAccessErrRead, addr, o.val)
			return false
		}
		switch size {
		case 1:
			buf[i] = uint32(p[0])
		case 2:
			buf[i] = uint32(binary.LittleEndian.Uint16(p[:]))
		default:
			buf[i] = binary.LittleEndian.Uint32(p[:])
		}
	}
	return true
}

// must hold d.mtx. Elements with a zero mask entry are skipped.
func (d *DMA) write(o dmaOperand, start uint32, buf, mask []uint32) bool {
	if o.kind == dmaOperandIBuffer {
		for i := range buf {
			if mask == nil || mask[i] != 0 {
				d.ibuf[o.val][i] = buf[i]
			}
		}
		return true
	}
	c := &d.dests[o.val]
	if c.kind == dmaMemNone {
		d.fail(dmaErrNullDest, o.val, 0, 0)
		return false
	}
	var p [4]byte
	size := c.elemSize()
	for i, v := range buf {
		if mask != nil && mask[i] == 0 {
			continue
		}
		binary.LittleEndian.PutUint32(p[:], v)
		addr := c.addrOf(start + uint32(i))
		if _, err := d.m.WriteAt(p[:size], int64(addr)); err != nil {
			d.fail(dmaErrMemoryAccess, dmaMemAccessErrWrite, addr, o.val)
			return false
		}
	}
	return true
}
