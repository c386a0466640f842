package sim

import (
	"image"
	"sync"
	"time"

	"github.com/clktmr/rvfm/hw"
)

const (
	FramebufferWidth  = 256
	FramebufferHeight = 192
)

const vsyncPeriod = time.Second / 60

// GPU latches the raw framebuffer on every present.
type GPU struct {
	m *Machine

	mtx     sync.Mutex
	mode    uint32
	frame   *image.RGBA
	frames  int
	vsync   *time.Ticker
	vsyncCh chan struct{}
}

func newGPU(m *Machine) *GPU {
	return &GPU{m: m}
}

func (g *GPU) load(off uint32) uint32 {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	switch off {
	case 0x0:
		return g.mode
	case 0x8:
		if g.vsync != nil {
			return 1
		}
	}
	return 0
}

func (g *GPU) store(off uint32, v uint32) {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	switch off {
	case 0x0:
		g.mode = v
	case 0x4:
		if g.mode == 1 {
			g.present()
		}
	case 0x8:
		g.setVsync(v != 0)
	}
}

// must hold g.mtx
func (g *GPU) present() {
	img := image.NewRGBA(image.Rect(0, 0, FramebufferWidth, FramebufferHeight))
	if _, err := g.m.ReadAt(img.Pix, int64(hw.Framebuffer)); err != nil {
		return
	}
	// alpha is ignored by the display
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	g.frame = img
	g.frames++
}

// must hold g.mtx
func (g *GPU) setVsync(enable bool) {
	if g.vsync != nil {
		g.vsync.Stop()
		close(g.vsyncCh)
		g.vsync = nil
	}
	if !enable {
		return
	}
	t, done := time.NewTicker(vsyncPeriod), make(chan struct{})
	g.vsync, g.vsyncCh = t, done
	go func() {
		for {
			select {
			case <-t.C:
				g.m.raise(intrGPU, 0)
			case <-done:
				return
			}
		}
	}()
}

func (g *GPU) reset() {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	g.setVsync(false)
	g.mode = 0
}

// Frame returns the last presented frame and the number of presents.
func (g *GPU) Frame() (*image.RGBA, int) {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	return g.frame, g.frames
}
