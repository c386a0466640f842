// Package boot runs the boot firmware on the simulator.
package boot

import (
	"fmt"
	"image/png"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	firmware "github.com/clktmr/rvfm/boot"
	"github.com/clktmr/rvfm/drivers/input"
	"github.com/clktmr/rvfm/hw"
	"github.com/clktmr/rvfm/sim"
	"github.com/clktmr/rvfm/tools/host"
)

var keyNames = map[string]input.Key{
	"up":     input.KeyUp,
	"down":   input.KeyDown,
	"left":   input.KeyLeft,
	"right":  input.KeyRight,
	"return": input.KeyReturn,
	"escape": input.KeyEscape,
	"r":      input.KeyR,
}

const keyInterval = 200 * time.Millisecond

type options struct {
	library  string
	logLevel string
	sel      int
	keys     string
	wav      string
	frame    string
	duration time.Duration
	poll     bool
}

func Command() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:   "boot",
		Short: "Run the boot firmware on the simulator",
		Long: `Boots the simulated machine with the given cart library and runs until a
cart is launched or the duration expires.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return run(&o, c.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.library, "library", "l", host.Getenv(host.EnvLibrary, ""), "cart library directory or FAT image")
	f.StringVar(&o.logLevel, "log", host.Getenv(host.EnvLog, "info"), "log level")
	f.IntVarP(&o.sel, "select", "s", -1, "load cart at index without showing the picker")
	f.StringVar(&o.keys, "keys", "", "comma separated keys to press, e.g. down,return")
	f.StringVar(&o.wav, "wav", "", "record audio to WAV file")
	f.StringVar(&o.frame, "frame", "", "write last presented frame to PNG file")
	f.DurationVarP(&o.duration, "duration", "d", 5*time.Second, "time to run before giving up")
	f.BoolVar(&o.poll, "poll", false, "poll the cart loader once per quantum instead of waiting for its interrupt")
	return cmd
}

func parseKeys(s string) (keys []input.Key, err error) {
	if s == "" {
		return nil, nil
	}
	for _, name := range strings.Split(s, ",") {
		k, ok := keyNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown key: %q", name)
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func run(o *options, out io.Writer) error {
	logger, err := host.Logger(o.logLevel)
	if err != nil {
		return err
	}
	keys, err := parseKeys(o.keys)
	if err != nil {
		return err
	}
	lib, err := host.OpenLibrary(o.library)
	if err != nil {
		return err
	}
	defer lib.Close()

	cfg := sim.Config{
		Library: lib,
		Logger:  logger,
		Cartridge: func(core hw.Core, l sim.Launch) {
			for {
				core.Halt()
			}
		},
	}
	if o.wav != "" {
		cfg.Sound = sim.NewWAVSink(o.wav)
	}
	m := sim.New(cfg)
	defer m.Stop()

	fw := firmware.DefaultConfig()
	fw.LogLevel = logger.Level
	fw.Select = o.sel
	fw.WakeOnCompletion = !o.poll
	m.Run(0, firmware.Entry(fw, m))

	go func() {
		for _, k := range keys {
			time.Sleep(keyInterval)
			m.Input.Press(int(k))
			time.Sleep(keyInterval / 2)
			m.Input.Release(int(k))
		}
	}()

	var launched *sim.Launch
	select {
	case l := <-m.Launches():
		launched = &l
	case <-time.After(o.duration):
	}

	if o.frame != "" {
		if err := writeFrame(out, m, o.frame); err != nil {
			return err
		}
	}
	if launched == nil {
		return fmt.Errorf("no cart launched within %v", o.duration)
	}
	fmt.Fprintf(out, "launched cart %d %q at %#08x\n", launched.Index, launched.Cart.Manifest.Name, launched.Entry)
	return nil
}

func writeFrame(out io.Writer, m *sim.Machine, name string) error {
	img, n := m.GPU.Frame()
	if img == nil {
		return fmt.Errorf("no frame presented")
	}
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote frame %d to %s\n", n, name)
	return f.Close()
}
