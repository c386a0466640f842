// Package dma drives the programmable DMA engine.
//
// The engine streams a transfer of up to 64Ki elements from up to four memory
// sources to up to four memory destinations. A program of at most 256 ops
// combines sources, constants and sixteen internal buffers on the way. The
// engine runs the program once per block of 1024 elements.
package dma

import (
	"fmt"
	"image"
	"sync"

	"github.com/clktmr/rvfm/hw"
)

const (
	Channels    = 4
	IBuffers    = 16
	ProgramSize = 256
	MaxTransfer = 0x10000
)

var base = hw.Reg(hw.DMABase)

var (
	regType         = base.At(0x00)
	regIndex        = base.At(0x04)
	regParam0       = base.At(0x08)
	regCommand      = base.At(0x20)
	regTransferSize = base.At(0x24)
	regError        = base.At(0x28)
	regErrorParam0  = base.At(0x2c)
)

const (
	cmdTrigger = iota
	cmdSource
	cmdDest
	cmdOp
)

// Kind is the element width and addressing of a memory channel.
type Kind uint32

const (
	KindNone Kind = iota
	KindMem8
	KindMem16
	KindMem32
	KindMem8Blit
	KindMem16Blit
	KindMem32Blit
)

// Channel configures a source or destination. Element i is read from or
// written to Addr + i*Increment. A non-zero Restart wraps i. Blit kinds
// address a rectangle Width elements wide in a surface Stride elements wide.
type Channel struct {
	Kind      Kind
	Addr      hw.Addr
	Increment int32
	Restart   uint32
	Width     uint32
	Stride    uint32
}

// Mem32 returns a channel over consecutive words at addr.
func Mem32(addr hw.Addr) Channel {
	return Channel{Kind: KindMem32, Addr: addr, Increment: 4}
}

// Rect32 returns a channel over a width elements wide rectangle of words
// starting at addr in a surface stride words wide.
func Rect32(addr hw.Addr, width, stride int) Channel {
	return Channel{
		Kind:      KindMem32Blit,
		Addr:      addr,
		Increment: 4,
		Width:     uint32(width),
		Stride:    uint32(stride),
	}
}

type OpKind uint32

const (
	OpEnd OpKind = iota
	OpCopy
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpAnd
	OpOr
	OpXor
	OpCondCopy
	OpLShift
	OpRShift
	OpARShift
)

// Operand selects where an op reads or writes a block.
type Operand struct {
	kind uint32
	val  uint32
}

func Source(i int) Operand   { return Operand{0, uint32(i)} }
func IBuffer(i int) Operand  { return Operand{1, uint32(i)} }
func Const(v uint32) Operand { return Operand{2, v} }
func Dest(i int) Operand     { return Operand{0, uint32(i)} }
func (o Operand) String() string {
	return fmt.Sprintf("%s(%d)", [...]string{"chan", "ibuf", "const"}[o.kind%3], o.val)
}

// Op is a single program step. Copy uses A only. CondCopy copies A where B is
// non-zero.
type Op struct {
	Kind OpKind
	A, B Operand
	Dst  Operand
}

func Copy(src, dst Operand) Op           { return Op{Kind: OpCopy, A: src, Dst: dst} }
func CondCopy(src, cond, dst Operand) Op { return Op{Kind: OpCondCopy, A: src, B: cond, Dst: dst} }
func Binary(k OpKind, a, b, dst Operand) Op {
	return Op{Kind: k, A: a, B: b, Dst: dst}
}

type ErrorCode uint32

const (
	ErrNone         ErrorCode = 0
	ErrIndex        ErrorCode = 1
	ErrType         ErrorCode = 2
	ErrTransferSize ErrorCode = 8
	ErrBadCommand   ErrorCode = 9
	ErrOperandRange ErrorCode = 10
	ErrOperandType  ErrorCode = 12
	ErrNullSource   ErrorCode = 14
	ErrNullDest     ErrorCode = 15
	ErrMemoryAccess ErrorCode = 80
)

var codeNames = map[ErrorCode]string{
	ErrIndex:        "index out of range",
	ErrType:         "type out of range",
	ErrTransferSize: "transfer size too large",
	ErrBadCommand:   "bad command",
	ErrOperandRange: "operand out of range",
	ErrOperandType:  "bad operand type",
	ErrNullSource:   "use of null source",
	ErrNullDest:     "use of null destination",
	ErrMemoryAccess: "memory access fault",
}

func (c ErrorCode) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("error %d", uint32(c))
}

// Error is the engine's error register after a failed command.
type Error struct {
	Code   ErrorCode
	Params [3]uint32
}

func (e *Error) Error() string {
	return fmt.Sprintf("dma: %v [%#x %#x %#x]", e.Code, e.Params[0], e.Params[1], e.Params[2])
}

// Engine serializes access to the DMA engine. A program set with SetProgram
// stays loaded until the next call, so SetProgram, SetSource, SetDest and Run
// must be used under Lock when the engine is shared.
type Engine struct {
	sync.Mutex
	bus hw.WordBus
}

func New(bus hw.WordBus) *Engine {
	return &Engine{bus: bus}
}

// check reads and clears the error register.
func (e *Engine) check() error {
	code := ErrorCode(regError.Load(e.bus))
	if code == ErrNone {
		return nil
	}
	err := &Error{Code: code}
	for i := range err.Params {
		err.Params[i] = regErrorParam0.At(uint32(i) * 4).Load(e.bus)
	}
	regError.Store(e.bus, 0)
	return err
}

func (e *Engine) command(cmd uint32, typ uint32, index int, params ...uint32) error {
	regType.Store(e.bus, typ)
	regIndex.Store(e.bus, uint32(index))
	for i, p := range params {
		regParam0.At(uint32(i)*4).Store(e.bus, p)
	}
	regCommand.Store(e.bus, cmd)
	return e.check()
}

func (c *Channel) params() []uint32 {
	p := []uint32{uint32(c.Addr), uint32(c.Increment), c.Restart}
	if c.Kind >= KindMem8Blit {
		p = append(p, c.Width, c.Stride-c.Width)
	}
	return p
}

func (e *Engine) SetSource(i int, c Channel) error {
	return e.command(cmdSource, uint32(c.Kind), i, c.params()...)
}

func (e *Engine) SetDest(i int, c Channel) error {
	return e.command(cmdDest, uint32(c.Kind), i, c.params()...)
}

// SetProgram loads ops followed by an end op.
func (e *Engine) SetProgram(ops ...Op) error {
	if len(ops) >= ProgramSize {
		return &Error{Code: ErrIndex, Params: [3]uint32{uint32(len(ops))}}
	}
	for i, op := range ops {
		var params []uint32
		switch op.Kind {
		case OpEnd:
		case OpCopy:
			params = []uint32{op.A.kind, op.A.val, op.Dst.kind, op.Dst.val}
		default:
			params = []uint32{op.A.kind, op.A.val, op.B.kind, op.B.val, op.Dst.kind, op.Dst.val}
		}
		if err := e.command(cmdOp, uint32(op.Kind), i, params...); err != nil {
			return err
		}
	}
	return e.command(cmdOp, uint32(OpEnd), len(ops))
}

// Run starts a transfer of n elements and returns when it is complete.
func (e *Engine) Run(n int) error {
	if n > MaxTransfer {
		return &Error{Code: ErrTransferSize, Params: [3]uint32{uint32(n)}}
	}
	regTransferSize.Store(e.bus, uint32(n))
	regCommand.Store(e.bus, cmdTrigger)
	return e.check()
}

// run loads a program and runs it over n elements in as many transfers as
// needed. Channels advance by at most MaxTransfer elements per transfer.
func (e *Engine) run(n int, src, dst []Channel, ops ...Op) error {
	e.Lock()
	defer e.Unlock()
	if err := e.SetProgram(ops...); err != nil {
		return err
	}
	for done := 0; done < n; done += MaxTransfer {
		for i, c := range src {
			c.Addr += hw.Addr(done * int(c.Increment))
			if err := e.SetSource(i, c); err != nil {
				return err
			}
		}
		for i, c := range dst {
			c.Addr += hw.Addr(done * int(c.Increment))
			if err := e.SetDest(i, c); err != nil {
				return err
			}
		}
		if err := e.Run(min(n-done, MaxTransfer)); err != nil {
			return err
		}
	}
	return nil
}

// Copy copies n words from src to dst.
func (e *Engine) Copy(dst, src hw.Addr, n int) error {
	return e.run(n, []Channel{Mem32(src)}, []Channel{Mem32(dst)},
		Copy(Source(0), Dest(0)))
}

// Fill sets n words at dst to v.
func (e *Engine) Fill(dst hw.Addr, n int, v uint32) error {
	return e.run(n, nil, []Channel{Mem32(dst)},
		Copy(Const(v), Dest(0)))
}

// Surface is a 32 bit per pixel image in memory.
type Surface struct {
	Addr hw.Addr
	Size image.Point
}

func (s Surface) Bounds() image.Rectangle {
	return image.Rectangle{Max: s.Size}
}

func (s Surface) pixAddr(pt image.Point) hw.Addr {
	return s.Addr + hw.Addr((pt.Y*s.Size.X+pt.X)*4)
}

// Blit copies src to dst with its top left corner at pt, clipped to dst. With
// cutout, source pixels with zero alpha are skipped.
func (e *Engine) Blit(dst, src Surface, pt image.Point, cutout bool) error {
	r := src.Bounds().Add(pt).Intersect(dst.Bounds())
	if r.Empty() {
		return nil
	}
	w, h := r.Dx(), r.Dy()
	if w*h > MaxTransfer {
		// Split by rows, blit channels can't be advanced linearly.
		rows := MaxTransfer / w
		for y := r.Min.Y; y < r.Max.Y; y += rows {
			part := image.Rect(r.Min.X, y, r.Max.X, min(y+rows, r.Max.Y))
			if err := e.blit(dst, src, pt, part, cutout); err != nil {
				return err
			}
		}
		return nil
	}
	return e.blit(dst, src, pt, r, cutout)
}

func (e *Engine) blit(dst, src Surface, pt image.Point, r image.Rectangle, cutout bool) error {
	w := r.Dx()
	s := Rect32(src.pixAddr(r.Min.Sub(pt)), w, src.Size.X)
	d := Rect32(dst.pixAddr(r.Min), w, dst.Size.X)
	ops := []Op{Copy(Source(0), Dest(0))}
	if cutout {
		ops = []Op{
			Binary(OpAnd, Source(0), Const(0xff00_0000), IBuffer(0)),
			CondCopy(Source(0), IBuffer(0), Dest(0)),
		}
	}
	e.Lock()
	defer e.Unlock()
	if err := e.SetProgram(ops...); err != nil {
		return err
	}
	if err := e.SetSource(0, s); err != nil {
		return err
	}
	if err := e.SetDest(0, d); err != nil {
		return err
	}
	return e.Run(w * r.Dy())
}
