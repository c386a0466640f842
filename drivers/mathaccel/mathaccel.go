// Package mathaccel drives the vector math accelerator.
//
// The accelerator has 64 scalar and 16 vector registers. Vectors are moved
// between memory and registers by writing an address to a load or store
// register.
package mathaccel

import (
	"encoding/binary"
	"errors"
	"math"
	"sync"

	"github.com/clktmr/rvfm/hw"
)

const (
	Scalars = 64
	Vectors = 16
)

const (
	wordLoadV2  = 64
	wordStoreV2 = 80
	wordError   = 254
	wordCmd     = 255
)

type Op uint32

const (
	OpAdd2   Op = 0x00
	OpSub2   Op = 0x03
	OpMul2   Op = 0x06
	OpDot2   Op = 0x20
	OpLen2   Op = 0x40
	OpScale2 Op = 0x60
	OpRotate Op = 0x64
	OpRAdd   Op = 0x80
	OpRSub   Op = 0x81
	OpRMul   Op = 0x82
	OpRDiv   Op = 0x83
	OpSin    Op = 0xa0
	OpCos    Op = 0xa1
)

// Command encodings.
func VV(op Op, a, b, dst int) uint32 {
	return uint32(op) | uint32(a)<<8 | uint32(b)<<12 | uint32(dst)<<16
}
func VR(op Op, v, r int) uint32 { return uint32(op) | uint32(v)<<8 | uint32(r)<<12 }
func VROpV(op Op, v, r, dst int) uint32 {
	return uint32(op) | uint32(v)<<8 | uint32(r)<<12 | uint32(dst)<<18
}
func RR(op Op, a, b, dst int) uint32 {
	return uint32(op) | uint32(a)<<8 | uint32(b)<<14 | uint32(dst)<<20
}
func R(op Op, a, dst int) uint32 { return uint32(op) | uint32(a)<<8 | uint32(dst)<<14 }

var ErrCommand = errors.New("mathaccel: command failed")

var base = hw.Reg(hw.MathAccelBase)

func reg(word uint32) hw.Reg { return base.At(word * 4) }

// Accel serializes access to the accelerator. Vector transfers go through a
// small arena buffer.
type Accel struct {
	mtx sync.Mutex
	bus hw.WordBus
	buf *hw.Buffer
}

func New(arena *hw.Arena) (*Accel, error) {
	buf, err := arena.Alloc(8)
	if err != nil {
		return nil, err
	}
	return &Accel{bus: arena.Bus(), buf: buf}, nil
}

func (a *Accel) SetReg(r int, v float32) {
	reg(uint32(r)).Store(a.bus, math.Float32bits(v))
}

func (a *Accel) Reg(r int) float32 {
	return math.Float32frombits(reg(uint32(r)).Load(a.bus))
}

// Execute runs a single command and reports the error register.
func (a *Accel) Execute(cmd uint32) error {
	reg(wordCmd).Store(a.bus, cmd)
	if reg(wordError).Load(a.bus) != 0 {
		reg(wordError).Store(a.bus, 0)
		return ErrCommand
	}
	return nil
}

func (a *Accel) SetV2(v int, x, y float32) {
	var p [8]byte
	binary.LittleEndian.PutUint32(p[0:], math.Float32bits(x))
	binary.LittleEndian.PutUint32(p[4:], math.Float32bits(y))
	a.buf.WriteAt(p[:], 0)
	reg(wordLoadV2+uint32(v)).Store(a.bus, uint32(a.buf.Addr()))
}

func (a *Accel) V2(v int) (x, y float32) {
	reg(wordStoreV2+uint32(v)).Store(a.bus, uint32(a.buf.Addr()))
	return math.Float32frombits(a.buf.Load32(0)), math.Float32frombits(a.buf.Load32(4))
}

// Rotate2 rotates (x, y) by angle radians.
func (a *Accel) Rotate2(x, y, angle float32) (float32, float32, error) {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	a.SetV2(0, x, y)
	a.SetReg(0, angle)
	if err := a.Execute(VROpV(OpRotate, 0, 0, 1)); err != nil {
		return 0, 0, err
	}
	rx, ry := a.V2(1)
	return rx, ry, nil
}

// Len2 returns the length of (x, y).
func (a *Accel) Len2(x, y float32) (float32, error) {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	a.SetV2(0, x, y)
	if err := a.Execute(VR(OpLen2, 0, 0)); err != nil {
		return 0, err
	}
	return a.Reg(0), nil
}
