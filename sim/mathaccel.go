package sim

import (
	"encoding/binary"
	"math"
	"sync"
)

// Register file layout of the math accelerator, in words.
const (
	maScalars = 64
	maVectors = 16

	maLoadV2  = 64
	maStoreV2 = 80
	maLoadV3  = 96
	maStoreV3 = 112
	maLoadV4  = 128
	maStoreV4 = 144
	maError   = 254
	maCmd     = 255
)

// Operations implemented by the simulated accelerator.
const (
	maAdd2   = 0x00
	maSub2   = 0x03
	maMul2   = 0x06
	maDot2   = 0x20
	maLen2   = 0x40
	maScale2 = 0x60
	maRotate = 0x64
	maRAdd   = 0x80
	maRSub   = 0x81
	maRMul   = 0x82
	maRDiv   = 0x83
	maSin    = 0xa0
	maCos    = 0xa1
)

// MathAccel implements a subset of the vector math accelerator. Unknown
// operations set the error register.
type MathAccel struct {
	m *Machine

	mtx  sync.Mutex
	r    [maScalars]float32
	v    [maVectors][4]float32
	fail uint32
}

func newMathAccel(m *Machine) *MathAccel {
	return &MathAccel{m: m}
}

func (a *MathAccel) load(off uint32) uint32 {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	w := off / 4
	switch {
	case w < maScalars:
		return math.Float32bits(a.r[w])
	case w == maError:
		return a.fail
	}
	return 0
}

func (a *MathAccel) store(off uint32, val uint32) {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	w := off / 4
	switch {
	case w < maScalars:
		a.r[w] = math.Float32frombits(val)
	case w >= maLoadV2 && w < maStoreV4+maVectors:
		n := int(w-maLoadV2) / 32 // 0: v2, 1: v3, 2: v4
		store := (w-maLoadV2)%32 >= maVectors
		a.transfer(int((w-maLoadV2)%maVectors), n+2, val, store)
	case w == maError:
		a.fail = 0
	case w == maCmd:
		a.exec(val)
	}
}

// must hold a.mtx
func (a *MathAccel) transfer(reg, dim int, addr uint32, store bool) {
	p := make([]byte, dim*4)
	if store {
		for i := range dim {
			binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(a.v[reg][i]))
		}
		if _, err := a.m.WriteAt(p, int64(addr)); err != nil {
			a.fail = 1
		}
		return
	}
	if _, err := a.m.ReadAt(p, int64(addr)); err != nil {
		a.fail = 1
		return
	}
	a.v[reg] = [4]float32{}
	for i := range dim {
		a.v[reg][i] = math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
	}
}

// must hold a.mtx
func (a *MathAccel) exec(cmd uint32) {
	op := cmd & 0xff
	va, vb := (cmd>>8)&0xf, (cmd>>12)&0xf
	switch op {
	case maAdd2, maSub2, maMul2:
		dst := &a.v[(cmd>>16)&0xf]
		x, y := a.v[va], a.v[vb]
		for i := range 2 {
			switch op {
			case maAdd2:
				dst[i] = x[i] + y[i]
			case maSub2:
				dst[i] = x[i] - y[i]
			case maMul2:
				dst[i] = x[i] * y[i]
			}
		}
	case maDot2:
		a.r[(cmd>>16)&0x3f] = a.v[va][0]*a.v[vb][0] + a.v[va][1]*a.v[vb][1]
	case maLen2:
		v := a.v[va]
		a.r[(cmd>>12)&0x3f] = float32(math.Hypot(float64(v[0]), float64(v[1])))
	case maScale2, maRotate:
		r := a.r[(cmd>>12)&0x3f]
		v := a.v[va]
		dst := &a.v[(cmd>>18)&0xf]
		if op == maScale2 {
			dst[0], dst[1] = v[0]*r, v[1]*r
			break
		}
		sin, cos := math.Sincos(float64(r))
		x, y := float64(v[0]), float64(v[1])
		dst[0], dst[1] = float32(x*cos-y*sin), float32(x*sin+y*cos)
	case maRAdd, maRSub, maRMul, maRDiv:
		x, y := a.r[(cmd>>8)&0x3f], a.r[(cmd>>14)&0x3f]
		dst := &a.r[(cmd>>20)&0x3f]
		switch op {
		case maRAdd:
			*dst = x + y
		case maRSub:
			*dst = x - y
		case maRMul:
			*dst = x * y
		case maRDiv:
			*dst = x / y
		}
	case maSin, maCos:
		x := float64(a.r[(cmd>>8)&0x3f])
		dst := &a.r[(cmd>>14)&0x3f]
		if op == maSin {
			*dst = float32(math.Sin(x))
		} else {
			*dst = float32(math.Cos(x))
		}
	default:
		a.fail = 1
	}
}
