package boot

import (
	"errors"
	"image/color"
	"time"

	"github.com/embeddedgo/display/pix"
	"github.com/sirupsen/logrus"

	"github.com/clktmr/rvfm/drivers/carts"
	"github.com/clktmr/rvfm/drivers/core2"
	"github.com/clktmr/rvfm/drivers/debugout"
	"github.com/clktmr/rvfm/drivers/dma"
	"github.com/clktmr/rvfm/drivers/gpu"
	"github.com/clktmr/rvfm/drivers/input"
	"github.com/clktmr/rvfm/hw"
	"github.com/clktmr/rvfm/hw/cartloader"
	"github.com/clktmr/rvfm/hw/mtimer"
)

const framePeriod = time.Second / 60

// Shown when boot fails.
var failColor = color.RGBA{0x80, 0, 0, 0xff}

var ErrNoCarts = errors.New("boot: no carts found")

// Firmware holds the boot core's drivers.
type Firmware struct {
	cfg    Config
	core   hw.Core
	linker hw.Linker

	vector  *hw.Vector
	delay   *mtimer.Delay
	arena   *hw.Arena
	loader  *cartloader.Dispatcher
	dir     *carts.Directory
	display *gpu.Display
	dma     *dma.Engine
	input   *input.Device
	picker  Picker

	Log *logrus.Logger
}

// Entry returns the boot core's entry point.
func Entry(cfg Config, l hw.Linker) func(hw.Core) {
	return func(c hw.Core) {
		New(c, l, cfg).Run()
	}
}

func New(core hw.Core, l hw.Linker, cfg Config) *Firmware {
	return &Firmware{cfg: cfg, core: core, linker: l}
}

// Init sets up interrupts, the timer, logging and the cart loader.
func (f *Firmware) Init() error {
	f.vector = hw.NewVector(f.core)
	f.delay = mtimer.NewDelay(f.vector, f.cfg.Quantum)
	f.arena = f.cfg.arena(f.core)

	out, err := debugout.New(f.arena)
	if err != nil {
		return err
	}
	f.Log = logrus.New()
	f.Log.Out = out
	f.Log.Level = f.cfg.LogLevel
	f.Log.Formatter = &logrus.TextFormatter{
		DisableColors:    true,
		DisableTimestamp: true,
	}

	f.loader = cartloader.New(f.core, f.delay)
	f.loader.Timeout = f.cfg.Timeout
	f.loader.SetLogger(f.Log)
	if f.cfg.WakeOnCompletion {
		f.loader.SetWaiter(cartloader.NewIRQWaiter(f.vector, f.loader, f.delay))
	}
	f.dir = carts.New(f.loader, f.arena)

	f.dma = dma.New(f.core)
	f.display = gpu.NewDisplay(f.core)
	if f.cfg.VSync {
		f.display.EnableVSync(f.vector, f.delay)
	}
	f.input = input.New(f.core)
	return nil
}

// Dispatcher returns the cart loader dispatcher set up by Init.
func (f *Firmware) Dispatcher() *cartloader.Dispatcher { return f.loader }

func (f *Firmware) Arena() *hw.Arena { return f.arena }

// Run boots the machine. It only returns if a cart was loaded, which resets
// the core in the process. On failure it halts the boot core forever.
func (f *Firmware) Run() {
	if err := f.Init(); err != nil {
		f.fatal(err)
	}
	f.Log.Info("rvfm boot")

	if f.cfg.Chime {
		if err := core2.Start(f.core, f.linker, SoundEntry(f.cfg)); err != nil {
			f.Log.WithError(err).Warn("second core not started")
		}
	}

	if err := f.refresh(); err != nil {
		f.fatal(err)
	}

	if f.cfg.Select >= 0 {
		f.fatal(f.load(f.cfg.Select))
	}

	screen := pix.NewDisplay(f.display)
	for {
		f.picker.Draw(screen)
		screen.Flush()
		if err := f.display.Err(true); err != nil {
			f.Log.WithError(err).Warn("present")
		}
		if !f.cfg.VSync {
			f.delay.Sleep(framePeriod)
		}

		switch f.picker.Handle(f.input.Pressed()) {
		case ActionLoad:
			f.fatal(f.load(f.picker.Selected))
		case ActionRefresh:
			if err := f.refresh(); err != nil {
				f.fatal(err)
			}
		}
	}
}

// refresh enumerates the library and reads all records.
func (f *Firmware) refresh() error {
	recs, err := f.dir.List()
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return ErrNoCarts
	}
	f.picker.SetRecords(recs)
	f.Log.WithField("carts", len(recs)).Info("library enumerated")
	for i, rec := range recs {
		f.Log.WithFields(logrus.Fields{
			"index":   i,
			"name":    rec.Name,
			"version": rec.Version,
		}).Debug("cart")
	}
	return nil
}

// load only returns on failure.
func (f *Firmware) load(i int) error {
	f.Log.WithField("index", i).Info("loading cart")
	return f.dir.Load(i)
}

// fatal reports err and halts the boot core.
func (f *Firmware) fatal(err error) {
	if f.Log != nil {
		f.Log.WithError(err).Error("boot failed")
	}
	if f.display != nil {
		if err := f.display.FillFrame(f.dma, failColor); err != nil && f.Log != nil {
			f.Log.WithError(err).Warn("fail screen")
		}
	}
	f.core.DisableInterrupts()
	f.core.DisableIRQ(hw.IRQAll)
	for {
		f.core.Halt()
	}
}
