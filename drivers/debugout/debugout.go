// Package debugout writes to the machine's debug print device.
package debugout

import (
	"math"
	"sync"

	"github.com/clktmr/rvfm/hw"
)

const bufferSize = 512

var (
	regAddr  = hw.Reg(hw.DebugBase) + 0x0
	regLen   = hw.Reg(hw.DebugBase) + 0x4
	regWrite = hw.Reg(hw.DebugBase) + 0x8
)

const (
	typeString = iota
	typeU32
	typeF32
	typeHex
)

// Writer is an io.Writer on the debug print device. The device copies the
// message synchronously, so a single staging buffer is reused.
type Writer struct {
	mtx sync.Mutex
	bus hw.Bus
	buf *hw.Buffer
}

func New(arena *hw.Arena) (*Writer, error) {
	buf, err := arena.Alloc(bufferSize)
	if err != nil {
		return nil, err
	}
	return &Writer{bus: arena.Bus(), buf: buf}, nil
}

func (w *Writer) Write(p []byte) (n int, err error) {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	for len(p) > 0 {
		chunk := p[:min(len(p), bufferSize)]
		nn, err := w.buf.WriteAt(chunk, 0)
		if err != nil {
			return n, err
		}
		regAddr.Store(w.bus, uint32(w.buf.Addr()))
		regLen.Store(w.bus, uint32(nn))
		regWrite.Store(w.bus, typeString)
		n += nn
		p = p[nn:]
	}
	return n, nil
}

func (w *Writer) value(typ, v uint32) {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	regAddr.Store(w.bus, v)
	regWrite.Store(w.bus, typ)
}

// U32 prints v in decimal followed by a newline.
func (w *Writer) U32(v uint32) { w.value(typeU32, v) }

func (w *Writer) F32(v float32) { w.value(typeF32, math.Float32bits(v)) }

// Hex prints v as hexadecimal followed by a newline.
func (w *Writer) Hex(v uint32) { w.value(typeHex, v) }
