// Package gpu drives the framebuffer display.
package gpu

import (
	"errors"
	"image"
	"image/color"
	"time"

	"golang.org/x/image/draw"

	"github.com/clktmr/rvfm/hw"
)

const (
	Width  = 256
	Height = 192
)

// Bounds of the framebuffer.
var Bounds = image.Rect(0, 0, Width, Height)

var (
	regMode    = hw.Reg(hw.GPUBase) + 0x0
	regPresent = hw.Reg(hw.GPUBase) + 0x4
	regVSync   = hw.Reg(hw.GPUBase) + 0x8
)

type Mode uint32

const (
	ModeOff Mode = iota
	ModeFramebuffer
)

var ErrVBlankTimeout = errors.New("gpu: vblank timeout")

// Waiter is implemented by mtimer.Delay.
type Waiter interface {
	Wait(done func() bool, timeout time.Duration) bool
}

// Display renders into a back buffer in main memory which Swap copies to the
// device's framebuffer. Pixels in the framebuffer are R | G<<8 | B<<16 | A<<24,
// which is the memory layout of image.RGBA.
//
// Display implements pix.Driver on the back buffer, Flush swaps.
type Display struct {
	Canvas

	bus  hw.Bus
	back *image.RGBA
	err  error

	vblank hw.Flag
	waiter Waiter

	start     time.Time
	frametime time.Duration
}

func NewDisplay(bus hw.Bus) *Display {
	p := &Display{
		bus:   bus,
		back:  image.NewRGBA(Bounds),
		start: time.Now(),
	}
	p.Canvas.dst = p.back
	regMode.Store(bus, uint32(ModeFramebuffer))
	return p
}

// EnableVSync makes Swap wait for the vertical blank interrupt.
func (p *Display) EnableVSync(v *hw.Vector, w Waiter) {
	core := v.Core()
	v.Chain(hw.IRQExternal, func() {
		if hw.GPUIntrState.Load(core) != 0 {
			hw.GPUIntrState.Store(core, 0)
			p.vblank.Set()
		}
	})
	p.waiter = w
	regVSync.Store(p.bus, 1)
	core.EnableIRQ(hw.IRQExternal)
	core.EnableInterrupts()
}

// Image returns the back buffer.
func (p *Display) Image() *image.RGBA { return p.back }

// Clear fills the back buffer with c.
func (p *Display) Clear(c color.Color) {
	draw.Draw(p.back, p.back.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

// Blit draws img with its top left corner at pt, blending by alpha.
func (p *Display) Blit(img image.Image, pt image.Point) {
	r := img.Bounds().Sub(img.Bounds().Min).Add(pt)
	draw.Draw(p.back, r, img, img.Bounds().Min, draw.Over)
}

// BlitScaled draws img scaled into r.
func (p *Display) BlitScaled(img image.Image, r image.Rectangle) {
	draw.NearestNeighbor.Scale(p.back, r, img, img.Bounds(), draw.Over, nil)
}

// Swap copies the back buffer to the framebuffer and presents it. With vsync
// enabled the copy happens during the vertical blank.
func (p *Display) Swap() error {
	if p.waiter != nil {
		p.vblank.Clear()
		if !p.waiter.Wait(p.vblank.TakeSet, time.Second) {
			return ErrVBlankTimeout
		}
	}
	if _, err := p.bus.WriteAt(p.back.Pix, int64(hw.Framebuffer)); err != nil {
		return err
	}
	regPresent.Store(p.bus, 1)

	p.frametime = time.Since(p.start)
	p.start = time.Now()
	return nil
}

// Flush presents the back buffer. A failure is kept for Err.
func (p *Display) Flush() {
	if err := p.Swap(); err != nil && p.err == nil {
		p.err = err
	}
}

// Err returns the first error of Flush since the last clear.
func (p *Display) Err(clear bool) error {
	err := p.err
	if clear {
		p.err = nil
	}
	return err
}

// Filler is implemented by dma.Engine.
type Filler interface {
	Fill(dst hw.Addr, n int, v uint32) error
}

// FillFrame sets the framebuffer to c with f and presents it. The back buffer
// is left untouched.
func (p *Display) FillFrame(f Filler, c color.Color) error {
	rgba := color.RGBAModel.Convert(c).(color.RGBA)
	v := uint32(rgba.R) | uint32(rgba.G)<<8 | uint32(rgba.B)<<16 | uint32(rgba.A)<<24
	if err := f.Fill(hw.Framebuffer, Width*Height, v); err != nil {
		return err
	}
	regPresent.Store(p.bus, 1)
	return nil
}

func (p *Display) FPS() float32 {
	return 1e9 / float32(p.frametime)
}
