package sim

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Types written to the debug port's WRITE register.
const (
	DebugString = iota
	DebugU32
	DebugF32
	DebugHex
)

// DebugPort collects the firmware's debug output. Every complete line is
// logged as well.
type DebugPort struct {
	m   *Machine
	log *log.Entry

	mtx     sync.Mutex
	addr    uint32
	length  uint32
	out     bytes.Buffer
	partial strings.Builder
}

func newDebugPort(m *Machine) *DebugPort {
	return &DebugPort{m: m, log: m.cfg.Logger.WithField("dev", "debug")}
}

func (d *DebugPort) load(off uint32) uint32 {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	switch off {
	case 0x0:
		return d.addr
	case 0x4:
		return d.length
	}
	return 0
}

func (d *DebugPort) store(off uint32, v uint32) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	switch off {
	case 0x0:
		d.addr = v
	case 0x4:
		d.length = v
	case 0x8:
		d.write(v)
	}
}

// must hold d.mtx
func (d *DebugPort) write(typ uint32) {
	var s string
	switch typ {
	case DebugString:
		p := make([]byte, d.length)
		if _, err := d.m.ReadAt(p, int64(d.addr)); err != nil {
			d.log.WithError(err).Warn("bad message address")
			return
		}
		s = string(p)
	case DebugU32:
		s = fmt.Sprintf("%d\n", d.addr)
	case DebugF32:
		s = fmt.Sprintf("%g\n", math.Float32frombits(d.addr))
	case DebugHex:
		s = fmt.Sprintf("%#08x\n", d.addr)
	default:
		d.log.WithField("type", typ).Warn("unknown message type")
		return
	}
	d.out.WriteString(s)

	for {
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			d.partial.WriteString(s)
			return
		}
		d.partial.WriteString(s[:i])
		d.log.Info(d.partial.String())
		d.partial.Reset()
		s = s[i+1:]
	}
}

// Output returns everything written to the debug port.
func (d *DebugPort) Output() string {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	return d.out.String()
}
