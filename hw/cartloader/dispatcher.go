package cartloader

import (
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clktmr/rvfm/debug"
	"github.com/clktmr/rvfm/hw"
)

// Dispatcher owns the device's command registers. A command begun with Begin
// occupies the dispatcher until its completion was observed, other callers
// wait in Begin meanwhile.
//
// Dispatcher is safe for concurrent use.
type Dispatcher struct {
	mtx    sync.Mutex
	busy   *Pending
	bus    hw.WordBus
	waiter Waiter

	// Timeout applies to Begin, Wait and Run, defaults to Forever.
	Timeout time.Duration

	log logrus.FieldLogger
}

func New(bus hw.WordBus, w Waiter) *Dispatcher {
	l := logrus.New()
	l.Out = io.Discard
	return &Dispatcher{
		bus:     bus,
		waiter:  w,
		Timeout: Forever,
		log:     l,
	}
}

// SetLogger sets the logger for tracing commands at debug level.
func (d *Dispatcher) SetLogger(l logrus.FieldLogger) {
	d.log = l.WithField("dev", "cartloader")
}

// SetWaiter replaces the waiter. It must not be called while a command is
// outstanding.
func (d *Dispatcher) SetWaiter(w Waiter) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	d.waiter = w
}

// CartCount returns the number of carts found by the last OpEnumerate.
func (d *Dispatcher) CartCount() uint32 {
	return regCartCount.Load(d.bus)
}

// Pending is a command that was triggered but whose completion hasn't been
// observed yet.
type Pending struct {
	d    *Dispatcher
	cmd  Command
	done bool // guarded by d.mtx
}

// Begin triggers cmd. The cell is reset first and the opcode register is
// written last. If another command is outstanding, Begin waits for its
// completion first.
func (d *Dispatcher) Begin(cmd Command) (*Pending, error) {
	debug.Assert(len(cmd.Params) <= maxParams, "too many parameters")

	d.mtx.Lock()
	defer d.mtx.Unlock()

	for d.busy != nil {
		prev := d.busy
		d.mtx.Unlock()
		ok := d.waiter.Wait(prev.Poll, d.Timeout)
		d.mtx.Lock()
		if !ok {
			return nil, ErrTimeout
		}
	}

	if err := cmd.Cell.Reset(); err != nil {
		return nil, err
	}
	cmd.Cell.buf.Lease()
	for _, b := range cmd.Buffers {
		b.Lease()
	}

	for i, p := range cmd.Params {
		regParam(i).Store(d.bus, p)
	}
	d.log.WithField("op", cmd.Op).Debug("begin")
	regCommand.Store(d.bus, uint32(cmd.Op))

	d.busy = &Pending{d: d, cmd: cmd}
	return d.busy, nil
}

// must hold p.d.mtx
func (p *Pending) finish() {
	p.done = true
	for _, b := range p.cmd.Buffers {
		b.Release()
	}
	p.cmd.Cell.buf.Release()
	if p.d.busy == p {
		p.d.busy = nil
	}
	p.d.log.WithFields(logrus.Fields{
		"op":     p.cmd.Op,
		"result": p.cmd.Cell.Load(),
	}).Debug("complete")
}

// Poll reports if the command completed. Once it returns true, the buffers
// are released and the dispatcher accepts the next command.
func (p *Pending) Poll() bool {
	p.d.mtx.Lock()
	defer p.d.mtx.Unlock()
	if p.done {
		return true
	}
	if !p.cmd.Cell.Poll() {
		return false
	}
	p.finish()
	return true
}

// Wait blocks until the command completed and returns its result. The error
// is nil only for OK. On ErrTimeout the command is still pending, its buffers
// stay leased and Wait may be called again.
func (p *Pending) Wait() (Result, error) {
	if !p.d.waiter.Wait(p.Poll, p.d.Timeout) {
		return None, ErrTimeout
	}
	res := p.cmd.Cell.Load()
	return res, res.Err()
}

// Run begins cmd and waits for its completion.
func (d *Dispatcher) Run(cmd Command) (Result, error) {
	p, err := d.Begin(cmd)
	if err != nil {
		return None, err
	}
	return p.Wait()
}
