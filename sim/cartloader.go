package sim

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/clktmr/rvfm/hw"
	"github.com/clktmr/rvfm/hw/cartloader"
)

// Launch describes a cart started by LoadCart.
type Launch struct {
	Index int
	Cart  *Cart
	Entry hw.Addr
}

type command struct {
	op     cartloader.Opcode
	params [6]uint32
}

type slotKind int

const (
	slotFs slotKind = iota + 1
	slotBinary
)

type dataSlot struct {
	kind     slotKind
	file     File
	writable bool
	off, len int64 // window of binary slots
}

// maxTransfer limits the bytes moved per ReadData and WriteData command.
const maxTransfer = 0x10_0000

// chunkSize is the granularity of file reads, a read ending early at a chunk
// boundary stops the transfer.
const chunkSize = 0x1000

// CartLoader is the simulated cart loader device. Commands are executed in
// order by a worker goroutine, the firmware observes completion through the
// cell passed with each command.
type CartLoader struct {
	m   *Machine
	log *log.Entry
	lib Library

	mtx       sync.Mutex
	params    [6]uint32
	irqEnable bool
	count     uint32
	carts     []*Cart
	current   *Cart
	slots     [cartloader.SlotCount]*dataSlot

	cmds chan command
	quit chan struct{}
	once sync.Once
}

func newCartLoader(m *Machine, lib Library) *CartLoader {
	d := &CartLoader{
		m:    m,
		log:  m.cfg.Logger.WithField("dev", "cartloader"),
		lib:  lib,
		cmds: make(chan command, 16),
		quit: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *CartLoader) load(off uint32) uint32 {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	switch {
	case off >= 0x04 && off < 0x1c:
		return d.params[(off-0x04)/4]
	case off == 0x1c:
		return d.count
	case off == 0x20:
		if d.irqEnable {
			return 1
		}
	}
	return 0
}

func (d *CartLoader) store(off uint32, v uint32) {
	if off == 0x00 {
		d.mtx.Lock()
		cmd := command{op: cartloader.Opcode(v), params: d.params}
		d.mtx.Unlock()
		select {
		case d.cmds <- cmd:
		case <-d.quit:
		}
		return
	}

	d.mtx.Lock()
	defer d.mtx.Unlock()
	switch {
	case off >= 0x04 && off < 0x1c:
		d.params[(off-0x04)/4] = v
	case off == 0x20:
		d.irqEnable = v&1 != 0
	}
}

func (d *CartLoader) stop() {
	d.once.Do(func() { close(d.quit) })
	d.mtx.Lock()
	defer d.mtx.Unlock()
	d.closeSlots()
}

func (d *CartLoader) run() {
	for {
		select {
		case cmd := <-d.cmds:
			d.exec(cmd)
		case <-d.quit:
			return
		}
	}
}

// complete writes the result into the command's cell.
func (d *CartLoader) complete(cell uint32, res cartloader.Result) {
	if !d.m.inRAM(hw.Addr(cell), 4) || cell&0x3 != 0 {
		d.log.WithField("cell", fmt.Sprintf("%#08x", cell)).Error("invalid completion cell")
		return
	}
	d.m.Store32(hw.Addr(cell), uint32(res))

	d.mtx.Lock()
	irq := d.irqEnable
	d.mtx.Unlock()
	if irq {
		d.m.raise(intrCart, 0)
	}
}

func (d *CartLoader) exec(cmd command) {
	p := cmd.params
	l := d.log.WithField("op", cmd.op)
	l.WithField("params", p).Debug("exec")

	var res cartloader.Result
	var cell uint32
	switch cmd.op {
	case cartloader.OpEnumerate:
		cell, res = p[0], d.enumerate()
	case cartloader.OpReadMetadata:
		cell, res = p[2], d.readMetadata(p[0], hw.Addr(p[1]))
	case cartloader.OpLoadCart:
		cell = p[1]
		if res = d.loadCart(p[0]); res == cartloader.OK {
			return // the cores were reset, nobody observes the cell
		}
	case cartloader.OpOpenSlotFs:
		cell, res = p[2], d.openFs(p[0], hw.Addr(p[1]), p[3]&cartloader.FlagWritable != 0)
	case cartloader.OpOpenSlotBinary:
		cell, res = p[1], d.openBinary(p[0], p[2], p[3])
	case cartloader.OpCloseSlot:
		cell, res = p[1], d.closeSlot(p[0])
	case cartloader.OpReadData:
		cell, res = p[5], d.readData(p[0], p[1], p[2], hw.Addr(p[3]), hw.Addr(p[4]))
	case cartloader.OpWriteData:
		cell, res = p[5], d.writeData(p[0], p[1], p[2], hw.Addr(p[3]), hw.Addr(p[4]))
	case cartloader.OpGetExtents:
		cell, res = p[2], d.getExtents(p[0], hw.Addr(p[1]))
	default:
		l.Warn("unknown command")
		return
	}
	if res.IsError() {
		l.WithField("result", res).Info("command failed")
	}
	d.complete(cell, res)
}

// Carts returns the carts found by the last enumeration.
func (d *CartLoader) Carts() []*Cart {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	return d.carts
}

// Current returns the loaded cart or nil.
func (d *CartLoader) Current() *Cart {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	return d.current
}

func (d *CartLoader) enumerate() cartloader.Result {
	if d.lib == nil {
		return cartloader.ErrorReadingDir
	}
	dirs, err := d.lib.ReadDir("")
	if err != nil {
		d.log.WithError(err).Error("reading library")
		return cartloader.ErrorReadingDir
	}
	var carts []*Cart
	for _, dir := range dirs {
		m, err := readManifest(d.lib, dir)
		if err != nil {
			d.log.WithError(err).WithField("cart", dir).Debug("skipping directory")
			continue
		}
		carts = append(carts, &Cart{Dir: dir, Manifest: m})
	}

	d.mtx.Lock()
	defer d.mtx.Unlock()
	d.carts = carts
	d.count = uint32(len(carts))
	return cartloader.OK
}

func (d *CartLoader) cart(index uint32) *Cart {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if index >= uint32(len(d.carts)) {
		return nil
	}
	return d.carts[index]
}

func (d *CartLoader) readMetadata(index uint32, buf hw.Addr) cartloader.Result {
	c := d.cart(index)
	if c == nil {
		return cartloader.CartIndexOutOfBounds
	}
	rec, err := c.Record(d.lib)
	if err != nil {
		d.log.WithError(err).WithField("cart", c.Dir).Debug("using blank icon")
	}
	p, _ := rec.MarshalBinary()
	if _, err := d.m.WriteAt(p, int64(buf)); err != nil {
		return cartloader.FailedReadingBinary
	}
	return cartloader.OK
}

func (d *CartLoader) readBinary(c *Cart) ([]byte, error) {
	name, err := cleanJoin(c.Dir, c.Manifest.Binary)
	if err != nil {
		return nil, err
	}
	f, err := d.lib.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	size, err := f.Size()
	if err != nil {
		return nil, err
	}
	p := make([]byte, size)
	if _, err := f.ReadAt(p, 0); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return p, nil
}

var ErrNotRISCV = errors.New("sim: not a RISC-V executable")

type segment struct {
	addr hw.Addr
	data []byte
}

// parseELF returns the loadable segments of bin and its entry point.
func (d *CartLoader) parseELF(bin []byte) ([]segment, hw.Addr, error) {
	f, err := elf.NewFile(byteReaderAt(bin))
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	if f.Machine != elf.EM_RISCV {
		return nil, 0, ErrNotRISCV
	}
	var segs []segment
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD || prog.Memsz == 0 {
			continue
		}
		if !d.m.inRAM(hw.Addr(prog.Paddr), int(prog.Memsz)) || prog.Filesz > prog.Memsz {
			return nil, 0, fmt.Errorf("segment at %#x exceeds RAM", prog.Paddr)
		}
		data := make([]byte, prog.Memsz)
		if _, err := io.ReadFull(prog.Open(), data[:prog.Filesz]); err != nil {
			return nil, 0, err
		}
		segs = append(segs, segment{hw.Addr(prog.Paddr), data})
	}
	return segs, hw.Addr(f.Entry), nil
}

type byteReaderAt []byte

func (b byteReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (d *CartLoader) loadCart(index uint32) cartloader.Result {
	c := d.cart(index)
	if c == nil {
		return cartloader.CartIndexOutOfBounds
	}
	bin, err := d.readBinary(c)
	if err != nil {
		d.log.WithError(err).WithField("cart", c.Dir).Error("reading binary")
		return cartloader.FailedReadingBinary
	}

	segs, entry, err := d.parseELF(bin)
	if err != nil {
		d.log.WithError(err).WithField("cart", c.Dir).Error("parsing binary")
		return cartloader.FailedReadingBinary
	}

	d.m.reset()
	for _, seg := range segs {
		d.m.WriteAt(seg.data, int64(seg.addr))
	}

	d.mtx.Lock()
	d.closeSlots()
	d.current = c
	d.irqEnable = false
	d.mtx.Unlock()

	l := Launch{Index: int(index), Cart: c, Entry: entry}
	d.log.WithFields(log.Fields{"cart": c.Manifest.Name, "entry": fmt.Sprintf("%#08x", entry)}).Info("launching")
	select {
	case d.m.launches <- l:
	default:
	}
	if fn := d.m.cfg.Cartridge; fn != nil {
		d.m.Run(0, func(core hw.Core) { fn(core, l) })
	}
	return cartloader.OK
}

// Insert makes c the loaded cart without resetting the machine.
func (d *CartLoader) Insert(index int) error {
	c := d.cart(uint32(index))
	if c == nil {
		return cartloader.CartIndexOutOfBounds
	}
	d.mtx.Lock()
	defer d.mtx.Unlock()
	d.closeSlots()
	d.current = c
	return nil
}

// must hold d.mtx
func (d *CartLoader) closeSlots() {
	for i, s := range d.slots {
		if s != nil {
			s.file.Close()
			d.slots[i] = nil
		}
	}
}

// setSlot replaces the slot's stream, closing a previously open one.
func (d *CartLoader) setSlot(i uint32, s *dataSlot) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if old := d.slots[i]; old != nil {
		old.file.Close()
	}
	d.slots[i] = s
}

func (d *CartLoader) slot(i uint32) (*dataSlot, cartloader.Result) {
	if i >= cartloader.SlotCount {
		return nil, cartloader.DataSlotIndexOutOfBounds
	}
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if d.slots[i] == nil {
		return nil, cartloader.DataSlotNotOpen
	}
	return d.slots[i], cartloader.OK
}

func (d *CartLoader) openFs(i uint32, pathAddr hw.Addr, writable bool) cartloader.Result {
	if i >= cartloader.SlotCount {
		return cartloader.DataSlotIndexOutOfBounds
	}
	path, err := d.m.readCString(pathAddr, cartloader.MaxPath)
	if err != nil {
		return cartloader.FilenameReadError
	}
	c := d.Current()
	if c == nil {
		return cartloader.NoCartLoaded
	}
	data := c.Manifest.Data
	if !data.Format.IsFs() || (writable && data.Format != DataFsRW) {
		return cartloader.BadOperationForDataFormat
	}
	name, err := cleanJoin(c.Dir, data.RootDir, path)
	if err != nil {
		return cartloader.FailedOpeningFile
	}
	f, err := d.lib.OpenFile(name, writable)
	if err != nil {
		d.log.WithError(err).WithField("path", name).Debug("open failed")
		return cartloader.FailedOpeningFile
	}
	d.setSlot(i, &dataSlot{kind: slotFs, file: f, writable: writable})
	return cartloader.OK
}

func (d *CartLoader) openBinary(i, off, length uint32) cartloader.Result {
	if i >= cartloader.SlotCount {
		return cartloader.DataSlotIndexOutOfBounds
	}
	c := d.Current()
	if c == nil {
		return cartloader.NoCartLoaded
	}
	data := c.Manifest.Data
	if !data.Format.IsBinary() {
		return cartloader.BadOperationForDataFormat
	}
	name, err := cleanJoin(c.Dir, data.DataFile)
	if err != nil {
		return cartloader.FailedOpeningFile
	}
	f, err := d.lib.Open(name)
	if err != nil {
		return cartloader.FailedOpeningFile
	}
	size, err := f.Size()
	if err != nil {
		f.Close()
		return cartloader.FailedOpeningFile
	}
	start := min(int64(off), size)
	end := size
	if length != 0 {
		end = min(start+int64(length), size)
	}
	d.setSlot(i, &dataSlot{kind: slotBinary, file: f, off: start, len: end - start})
	return cartloader.OK
}

func (d *CartLoader) closeSlot(i uint32) cartloader.Result {
	if i >= cartloader.SlotCount {
		return cartloader.DataSlotIndexOutOfBounds
	}
	d.setSlot(i, nil)
	return cartloader.OK
}

func (s *dataSlot) extents() (int64, error) {
	if s.kind == slotBinary {
		return s.len, nil
	}
	if err := s.file.Sync(); err != nil {
		return 0, err
	}
	return s.file.Size()
}

func (d *CartLoader) getExtents(i uint32, out hw.Addr) cartloader.Result {
	s, res := d.slot(i)
	if res != cartloader.OK {
		return res
	}
	n, err := s.extents()
	if err != nil {
		return cartloader.FailedReadingFile
	}
	if !d.m.inRAM(out, 4) {
		return cartloader.FailedReadingFile
	}
	d.m.Store32(out, uint32(n))
	return cartloader.OK
}

func (d *CartLoader) readData(i, off, length uint32, buf, out hw.Addr) cartloader.Result {
	s, res := d.slot(i)
	if res != cartloader.OK {
		return res
	}
	if length > maxTransfer || !d.m.inRAM(buf, int(length)) || !d.m.inRAM(out, 4) {
		return cartloader.FailedReadingFile
	}

	// Clamp to the stream, binary slots to their window.
	start, end := int64(off), int64(off)+int64(length)
	base := int64(0)
	if s.kind == slotBinary {
		base = s.off
		end = min(end, s.len)
	}
	p := make([]byte, max(end-start, 0))

	n := 0
	for n < len(p) {
		chunk := p[n:min(n+chunkSize, len(p))]
		nn, err := s.file.ReadAt(chunk, base+start+int64(n))
		n += nn
		if err != nil && !errors.Is(err, io.EOF) {
			d.log.WithError(err).Error("read failed")
			return cartloader.FailedReadingFile
		}
		if nn < len(chunk) {
			break
		}
	}
	if _, err := d.m.WriteAt(p[:n], int64(buf)); err != nil {
		return cartloader.FailedReadingFile
	}
	d.m.Store32(out, uint32(n))
	return cartloader.OK
}

func (d *CartLoader) writeData(i, off, length uint32, buf, out hw.Addr) cartloader.Result {
	s, res := d.slot(i)
	if res != cartloader.OK {
		return res
	}
	if s.kind != slotFs || !s.writable {
		return cartloader.BadOperationForDataFormat
	}
	if length > maxTransfer || !d.m.inRAM(out, 4) {
		return cartloader.FailedReadingFile
	}
	p := make([]byte, length)
	if _, err := d.m.ReadAt(p, int64(buf)); err != nil {
		return cartloader.FailedReadingFile
	}
	n, err := s.file.WriteAt(p, int64(off))
	d.m.Store32(out, uint32(n))
	if err != nil {
		d.log.WithError(err).Error("write failed")
		return cartloader.FailedReadingFile
	}
	return cartloader.OK
}
