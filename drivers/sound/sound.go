// Package sound plays 16-bit stereo PCM through the sound FIFO.
//
// The FIFO is refilled from its low watermark interrupt, so playback runs
// without help from the goroutine which started it. There is no mixing, a
// single Source is played at a time.
package sound

import (
	"encoding/binary"

	"github.com/clktmr/rvfm/hw"
)

const (
	SampleRate = 48000
	Channels   = 2
	FifoSize   = 512 // frames
)

var (
	regEnable      = hw.Reg(hw.SoundBase) + 0x00
	regFifoLength  = hw.Reg(hw.SoundBase) + 0x04
	regFifoIntEn   = hw.Reg(hw.SoundBase) + 0x08
	regFillPtr     = hw.Reg(hw.SoundBase) + 0x0c
	regFillTrigger = hw.Reg(hw.SoundBase) + 0x10
	regLastFill    = hw.Reg(hw.SoundBase) + 0x14
)

// Source produces interleaved stereo samples. ReadSamples fills p and returns
// the number of samples written, which is always even. Returning less than
// len(p) ends the source.
type Source interface {
	ReadSamples(p []int16) int
}

// Player owns the sound device.
type Player struct {
	core hw.Core
	buf  *hw.Buffer

	source  hw.Handoff[Source]
	current Source // owned by the interrupt handler
	samples []int16
	raw     []byte
	filled  int
}

// NewPlayer installs the FIFO interrupt handler on v. The FIFO interrupt is
// routed to the second core, so v must be that core's vector.
func NewPlayer(v *hw.Vector, arena *hw.Arena) (*Player, error) {
	buf, err := arena.Alloc(FifoSize * Channels * 2)
	if err != nil {
		return nil, err
	}
	p := &Player{
		core:    v.Core(),
		buf:     buf,
		samples: make([]int16, FifoSize*Channels),
		raw:     make([]byte, FifoSize*Channels*2),
	}
	v.Chain(hw.IRQExternal, p.handler)
	return p, nil
}

// SetSource replaces the played source. A nil source plays silence.
func (p *Player) SetSource(s Source) {
	p.source.Put(s)
}

// Start enables the device and its interrupt and fills the FIFO.
func (p *Player) Start() {
	p.core.DisableInterrupts()
	regEnable.Store(p.core, 1)
	regFifoIntEn.Store(p.core, 1)
	p.fill()
	p.core.EnableIRQ(hw.IRQExternal)
	p.core.EnableInterrupts()
}

func (p *Player) Stop() {
	regFifoIntEn.Store(p.core, 0)
	regEnable.Store(p.core, 0)
}

// Run waits for interrupts forever. It's the main loop of the sound core.
func (p *Player) Run() {
	p.Start()
	for {
		p.core.Halt()
	}
}

// Filled returns the number of samples passed to the device so far. Only
// valid on the core running the player.
func (p *Player) Filled() int { return p.filled }

func (p *Player) handler() {
	if hw.SoundIntrState.Load(p.core) == 0 {
		return
	}
	hw.SoundIntrState.Store(p.core, 0)
	p.fill()
}

// fill tops up the FIFO and returns the number of samples the device took.
func (p *Player) fill() int {
	if s, updated := p.source.Take(); updated {
		p.current = s
	}

	free := FifoSize - int(regFifoLength.Load(p.core))
	if free <= 0 {
		return 0
	}
	samples := p.samples[:free*Channels]
	n := 0
	if p.current != nil {
		n = p.current.ReadSamples(samples)
		if n < len(samples) {
			p.current = nil
		}
	}
	clear(samples[n:])

	raw := p.raw[:len(samples)*2]
	for i, s := range samples {
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(s))
	}
	if _, err := p.buf.WriteAt(raw, 0); err != nil {
		return 0
	}
	regFillPtr.Store(p.core, uint32(p.buf.Addr()))
	regFillTrigger.Store(p.core, uint32(len(samples)))
	taken := int(regLastFill.Load(p.core))
	p.filled += taken
	return taken
}
