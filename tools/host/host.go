// Package host holds helpers shared by the rvfm subcommands.
package host

import (
	"errors"
	"io"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/clktmr/rvfm/drivers/carts"
	"github.com/clktmr/rvfm/drivers/slots"
	"github.com/clktmr/rvfm/hw"
	"github.com/clktmr/rvfm/hw/cartloader"
	"github.com/clktmr/rvfm/hw/mtimer"
	"github.com/clktmr/rvfm/sim"
)

// Environment variables used as flag defaults.
const (
	EnvLibrary = "RVFM_LIBRARY"
	EnvLog     = "RVFM_LOG"
)

func Getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

// Logger returns a logger at the named level.
func Logger(level string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	l := log.New()
	l.SetLevel(lvl)
	l.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
	return l, nil
}

// Library is a cart library that must be closed after use.
type Library interface {
	sim.Library
	io.Closer
}

var ErrNoLibrary = errors.New("no cart library given, use --library or " + EnvLibrary)

// OpenLibrary opens a library directory or a FAT disk image.
func OpenLibrary(path string) (Library, error) {
	if path == "" {
		return nil, ErrNoLibrary
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return sim.OpenDir(path)
	}
	return sim.OpenImage(path)
}

// Client runs functions on the boot core of a simulated machine, the way
// firmware would issue commands.
type Client struct {
	m    *sim.Machine
	reqs chan func()
	exec *sim.Execution

	Loader *cartloader.Dispatcher
	Carts  *carts.Directory
	Slots  *slots.Manager
}

func NewClient(m *sim.Machine) *Client {
	c := &Client{m: m}
	c.start()
	return c
}

func (c *Client) start() {
	ready := make(chan struct{})
	reqs := make(chan func())
	c.reqs = reqs
	c.exec = c.m.Run(0, func(core hw.Core) {
		v := hw.NewVector(core)
		d := mtimer.NewDelay(v, mtimer.DefaultQuantum)
		arena := c.m.Arena(core)
		c.Loader = cartloader.New(core, d)
		c.Carts = carts.New(c.Loader, arena)
		c.Slots = slots.New(c.Loader, arena)
		close(ready)
		for fn := range reqs {
			fn()
		}
	})
	<-ready
}

// ErrReset is returned by Do if fn loaded a cart, which resets the boot
// core.
var ErrReset = errors.New("boot core was reset")

// Do runs fn on the boot core and waits for it to return.
func (c *Client) Do(fn func()) error {
	done := make(chan struct{})
	c.reqs <- func() {
		fn()
		close(done)
	}
	select {
	case <-done:
		return nil
	case <-c.exec.Done():
		c.start()
		return ErrReset
	}
}

// Close stops the client. The machine must be stopped separately.
func (c *Client) Close() {
	close(c.reqs)
	<-c.exec.Done()
}
