package sim

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/clktmr/rvfm/hw"
)

const (
	DefaultRAMSize = 0x0400_0000

	// Firmware arena, reserved for buffers shared with devices.
	ArenaBase hw.Addr = 0x0100_0000
	ArenaSize         = 0x0010_0000

	entryBase hw.Addr = 0x0000_1000
)

var ErrBusFault = errors.New("sim: bus fault")

// Config configures a Machine. The zero value is a machine without carts.
type Config struct {
	RAMSize uint32
	Library Library
	Logger  *log.Logger

	// Cartridge stands in for the binary of a loaded cart, since the
	// simulator doesn't execute RISC-V code. It's started on core 0 after
	// a successful LoadCart.
	Cartridge func(core hw.Core, l Launch)

	// Sound receives every sample played, see NewWAVSink.
	Sound SampleSink
}

type region struct {
	start, end hw.Addr
	load       func(off uint32) uint32
	store      func(off uint32, v uint32)
}

// Machine is a simulated rvfm machine. Machine is safe for concurrent use.
type Machine struct {
	log *log.Entry

	ramMtx sync.RWMutex
	ram    []byte

	regions []region

	coreMtx sync.Mutex
	cores   [2]*Core
	wg      sync.WaitGroup

	linkMtx sync.Mutex
	entries []func(hw.Core)

	intrMtx   sync.Mutex
	intrState [3]uint32

	launches chan Launch
	cfg      Config

	Debug      *DebugPort
	CartLoader *CartLoader
	GPU        *GPU
	Sound      *Sound
	Input      *Input
	MathAccel  *MathAccel
	DMA        *DMA
	core2      *core2Controller
}

func New(cfg Config) *Machine {
	if cfg.RAMSize == 0 {
		cfg.RAMSize = DefaultRAMSize
	}
	if cfg.Logger == nil {
		cfg.Logger = log.StandardLogger()
	}
	m := &Machine{
		log:      cfg.Logger.WithField("sim", "machine"),
		ram:      make([]byte, cfg.RAMSize),
		launches: make(chan Launch, 1),
		cfg:      cfg,
	}
	for i := range m.cores {
		m.cores[i] = newCore(m, i)
	}

	m.Debug = newDebugPort(m)
	m.mapIO(hw.DebugBase, 0x10, m.Debug.load, m.Debug.store)
	m.GPU = newGPU(m)
	m.mapIO(hw.GPUBase, 0x10, m.GPU.load, m.GPU.store)
	m.mapIO(hw.IntrStateBase, 0x10, m.loadIntrState, m.storeIntrState)
	m.core2 = &core2Controller{m: m}
	m.mapIO(hw.Core2Base, 0x10, m.core2.load, m.core2.store)
	m.Sound = newSound(m, cfg.Sound)
	m.mapIO(hw.SoundBase, 0x20, m.Sound.load, m.Sound.store)
	m.MathAccel = newMathAccel(m)
	m.mapIO(hw.MathAccelBase, 0x400, m.MathAccel.load, m.MathAccel.store)
	m.DMA = newDMA(m)
	m.mapIO(hw.DMABase, 0x40, m.DMA.load, m.DMA.store)
	m.CartLoader = newCartLoader(m, cfg.Library)
	m.mapIO(hw.CartLoaderBase, 0x24, m.CartLoader.load, m.CartLoader.store)
	m.Input = newInput(m)
	m.mapIO(hw.InputBase, 0x30, m.Input.load, m.Input.store)

	return m
}

func (m *Machine) mapIO(base hw.Addr, size uint32, load func(uint32) uint32, store func(uint32, uint32)) {
	m.regions = append(m.regions, region{base, base + hw.Addr(size), load, store})
	slices.SortFunc(m.regions, func(a, b region) int { return int(int64(a.start) - int64(b.start)) })
}

func (m *Machine) findIO(addr hw.Addr) *region {
	for i := range m.regions {
		if addr >= m.regions[i].start && addr < m.regions[i].end {
			return &m.regions[i]
		}
	}
	return nil
}

// Core returns core id. The core is replaced by a new one when a cart is
// loaded.
func (m *Machine) Core(id int) *Core {
	m.coreMtx.Lock()
	defer m.coreMtx.Unlock()
	return m.cores[id]
}

func (m *Machine) inRAM(addr hw.Addr, n int) bool {
	return int64(addr)+int64(n) <= int64(len(m.ram))
}

func (m *Machine) Load32(addr hw.Addr) uint32 {
	addr &^= 0x3
	if r := m.findIO(addr); r != nil {
		return r.load(uint32(addr - r.start))
	}
	if !m.inRAM(addr, 4) {
		m.log.WithField("addr", fmt.Sprintf("%#08x", addr)).Warn("load from unmapped address")
		return 0
	}
	m.ramMtx.RLock()
	defer m.ramMtx.RUnlock()
	return binary.LittleEndian.Uint32(m.ram[addr:])
}

func (m *Machine) Store32(addr hw.Addr, v uint32) {
	addr &^= 0x3
	if r := m.findIO(addr); r != nil {
		r.store(uint32(addr-r.start), v)
		return
	}
	if !m.inRAM(addr, 4) {
		m.log.WithField("addr", fmt.Sprintf("%#08x", addr)).Warn("store to unmapped address")
		return
	}
	m.ramMtx.Lock()
	defer m.ramMtx.Unlock()
	binary.LittleEndian.PutUint32(m.ram[addr:], v)
}

// ReadAt reads RAM. Devices use it to access buffers passed by the firmware.
func (m *Machine) ReadAt(p []byte, off int64) (n int, err error) {
	if off < 0 || !m.inRAM(hw.Addr(off), len(p)) || off >= 1<<32 {
		return 0, ErrBusFault
	}
	m.ramMtx.RLock()
	defer m.ramMtx.RUnlock()
	return copy(p, m.ram[off:]), nil
}

func (m *Machine) WriteAt(p []byte, off int64) (n int, err error) {
	if off < 0 || !m.inRAM(hw.Addr(off), len(p)) || off >= 1<<32 {
		return 0, ErrBusFault
	}
	m.ramMtx.Lock()
	defer m.ramMtx.Unlock()
	return copy(m.ram[off:], p), nil
}

// readCString reads a zero terminated string of at most limit bytes.
func (m *Machine) readCString(addr hw.Addr, limit int) (string, error) {
	if !m.inRAM(addr, 1) {
		return "", ErrBusFault
	}
	m.ramMtx.RLock()
	defer m.ramMtx.RUnlock()
	end := min(int(addr)+limit, len(m.ram))
	for i := int(addr); i < end; i++ {
		if m.ram[i] == 0 {
			return string(m.ram[addr:i]), nil
		}
	}
	return "", io.ErrUnexpectedEOF
}

// Arena returns a new arena over the region reserved for firmware buffers.
func (m *Machine) Arena(core hw.Core) *hw.Arena {
	return hw.NewArena(core, ArenaBase+hw.Addr(core.ID())*ArenaSize, ArenaSize)
}

// Link implements hw.Linker.
func (m *Machine) Link(entry func(hw.Core)) hw.Addr {
	m.linkMtx.Lock()
	defer m.linkMtx.Unlock()
	m.entries = append(m.entries, entry)
	return entryBase + hw.Addr(len(m.entries)-1)*4
}

func (m *Machine) lookup(pc hw.Addr) func(hw.Core) {
	m.linkMtx.Lock()
	defer m.linkMtx.Unlock()
	i := int(pc-entryBase) / 4
	if pc < entryBase || i >= len(m.entries) {
		return nil
	}
	return m.entries[i]
}

// Execution tracks firmware running on a core.
type Execution struct {
	done     chan struct{}
	returned bool
}

// Done is closed when the firmware exits, either by returning or because its
// core was killed.
func (e *Execution) Done() <-chan struct{} { return e.done }

// Returned reports if the firmware returned. Only valid after Done is closed.
func (e *Execution) Returned() bool { return e.returned }

// Run starts fn on core id in a new goroutine.
func (m *Machine) Run(id int, fn func(hw.Core)) *Execution {
	core := m.Core(id)
	e := &Execution{done: make(chan struct{})}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(e.done)
		fn(core)
		e.returned = true
	}()
	return e
}

// Launches returns the carts launched by LoadCart.
func (m *Machine) Launches() <-chan Launch { return m.launches }

// reset kills both cores and replaces them with fresh ones.
func (m *Machine) reset() {
	m.coreMtx.Lock()
	for i, c := range m.cores {
		c.kill()
		m.cores[i] = newCore(m, i)
	}
	m.coreMtx.Unlock()
	m.core2.reset()
	m.Sound.reset()
	m.GPU.reset()
}

// Stop kills both cores and all devices. Firmware still running exits the
// next time it halts.
func (m *Machine) Stop() {
	m.coreMtx.Lock()
	for _, c := range m.cores {
		c.kill()
	}
	m.coreMtx.Unlock()
	m.CartLoader.stop()
	m.Sound.stop()
	m.wg.Wait()
	if err := m.Sound.close(); err != nil {
		m.log.WithError(err).Error("closing sound sink")
	}
}

const (
	intrGPU = iota
	intrSound
	intrCart
)

// raise sets a device's interrupt state and signals the external interrupt
// to core.
func (m *Machine) raise(src int, core int) {
	m.intrMtx.Lock()
	m.intrState[src] = 1
	m.intrMtx.Unlock()
	m.Core(core).Raise(hw.IRQExternal)
}

func (m *Machine) loadIntrState(off uint32) uint32 {
	m.intrMtx.Lock()
	defer m.intrMtx.Unlock()
	if i := off / 4; i < uint32(len(m.intrState)) {
		return m.intrState[i]
	}
	return 0
}

func (m *Machine) storeIntrState(off uint32, v uint32) {
	m.intrMtx.Lock()
	defer m.intrMtx.Unlock()
	if i := off / 4; i < uint32(len(m.intrState)) {
		m.intrState[i] = 0
	}
}
