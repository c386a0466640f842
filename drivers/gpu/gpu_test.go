package gpu_test

import (
	"image"
	"image/color"
	"image/draw"
	"testing"
	"time"

	"github.com/embeddedgo/display/pix"

	"github.com/clktmr/rvfm/drivers/dma"
	"github.com/clktmr/rvfm/drivers/gpu"
	"github.com/clktmr/rvfm/hw"
	"github.com/clktmr/rvfm/hw/mtimer"
	"github.com/clktmr/rvfm/sim"
	rvfmtesting "github.com/clktmr/rvfm/testing"
)

func TestMain(m *testing.M) { rvfmtesting.TestMain(m) }

var (
	red  = color.RGBA{0xff, 0, 0, 0xff}
	blue = color.RGBA{0, 0, 0xff, 0xff}
)

func run(t *testing.T, vsync bool, fn func(d *gpu.Display)) *sim.Machine {
	m := rvfmtesting.NewMachine(t, "", sim.Config{})
	e := m.Run(0, func(core hw.Core) {
		d := gpu.NewDisplay(core)
		if vsync {
			v := hw.NewVector(core)
			d.EnableVSync(v, mtimer.NewDelay(v, mtimer.DefaultQuantum))
		}
		fn(d)
	})
	select {
	case <-e.Done():
	case <-time.After(rvfmtesting.Timeout):
		t.Fatal("display test didn't finish")
	}
	return m
}

func TestSwap(t *testing.T) {
	square := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range square.Pix {
		square.Pix[i] = []byte{0, 0, 0xff, 0xff}[i%4]
	}

	m := run(t, false, func(d *gpu.Display) {
		d.Clear(red)
		d.Blit(square, image.Pt(10, 20))
		d.BlitScaled(square, image.Rect(100, 100, 132, 132))
		if err := d.Swap(); err != nil {
			t.Error(err)
		}
	})

	frame, n := m.GPU.Frame()
	if n != 1 {
		t.Fatalf("%d frames presented", n)
	}
	tests := []struct {
		x, y int
		want color.RGBA
	}{
		{0, 0, red},
		{10, 20, blue},
		{17, 27, blue},
		{18, 28, red},
		{131, 131, blue},
		{132, 132, red},
		{gpu.Width - 1, gpu.Height - 1, red},
	}
	for _, tc := range tests {
		if got := frame.RGBAAt(tc.x, tc.y); got != tc.want {
			t.Errorf("(%d,%d): got %v, want %v", tc.x, tc.y, got, tc.want)
		}
	}
}

func TestVSync(t *testing.T) {
	m := run(t, true, func(d *gpu.Display) {
		start := time.Now()
		for range 6 {
			d.Clear(blue)
			if err := d.Swap(); err != nil {
				t.Error(err)
				return
			}
		}
		if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
			t.Errorf("6 frames in %v", elapsed)
		}
		if fps := d.FPS(); fps > 100 {
			t.Errorf("fps %g", fps)
		}
	})
	if _, n := m.GPU.Frame(); n != 6 {
		t.Errorf("%d frames presented", n)
	}
}

func TestFillFrame(t *testing.T) {
	m := rvfmtesting.NewMachine(t, "", sim.Config{})
	e := m.Run(0, func(core hw.Core) {
		d := gpu.NewDisplay(core)
		d.Clear(red)
		if err := d.FillFrame(dma.New(core), blue); err != nil {
			t.Error(err)
		}
		if got := d.Image().RGBAAt(0, 0); got != red {
			t.Errorf("back buffer changed: %v", got)
		}
	})
	<-e.Done()

	frame, n := m.GPU.Frame()
	if n != 1 {
		t.Fatalf("%d frames presented", n)
	}
	for _, pt := range []image.Point{{0, 0}, {gpu.Width - 1, gpu.Height - 1}} {
		if got := frame.RGBAAt(pt.X, pt.Y); got != blue {
			t.Errorf("%v: got %v", pt, got)
		}
	}
}

func TestPixDriver(t *testing.T) {
	m := run(t, false, func(d *gpu.Display) {
		disp := pix.NewDisplay(d)
		if disp.Bounds() != gpu.Bounds {
			t.Errorf("bounds %v", disp.Bounds())
		}
		a := disp.NewArea(disp.Bounds())
		a.SetColor(red)
		a.Fill(a.Bounds())
		a.SetColor(blue)
		a.Fill(image.Rect(10, 10, 20, 20))
		a.Flush()
		if err := d.Err(true); err != nil {
			t.Error(err)
		}
	})

	frame, n := m.GPU.Frame()
	if n != 1 {
		t.Fatalf("%d frames presented", n)
	}
	for pt, want := range map[image.Point]color.RGBA{
		{0, 0}:   red,
		{10, 10}: blue,
		{19, 19}: blue,
		{20, 20}: red,
	} {
		if got := frame.RGBAAt(pt.X, pt.Y); got != want {
			t.Errorf("%v: got %v, want %v", pt, got, want)
		}
	}
}

func TestCanvas(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	c := gpu.NewCanvas(img)
	if c.SetDir(0) != img.Bounds() {
		t.Errorf("bounds %v", c.SetDir(0))
	}
	c.SetColor(red)
	c.Fill(image.Rect(1, 1, 3, 3))
	c.Draw(image.Rect(0, 0, 1, 1), image.NewUniform(blue), image.Point{}, nil, image.Point{}, draw.Over)
	if got := img.RGBAAt(2, 2); got != red {
		t.Errorf("fill: %v", got)
	}
	if got := img.RGBAAt(0, 0); got != blue {
		t.Errorf("draw: %v", got)
	}
	if got := img.RGBAAt(3, 3); got != (color.RGBA{}) {
		t.Errorf("outside: %v", got)
	}
}
