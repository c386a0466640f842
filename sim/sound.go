package sim

import (
	"encoding/binary"
	"os"
	"sync"
	"time"

	"github.com/youpy/go-wav"
)

const (
	SampleRate   = 48000
	Channels     = 2
	FifoSize     = 512 // frames
	FifoMinFill  = 256
	drainPeriod  = 5 * time.Millisecond
	drainPerTick = SampleRate / 200 // frames per drainPeriod
)

// Frame is a single stereo sample.
type Frame [Channels]int16

// SampleSink receives the frames played by the sound device.
type SampleSink interface {
	WriteFrames(frames []Frame) error
	Close() error
}

// Sound is the sound FIFO. While enabled it's drained at the sample rate and
// raises its interrupt on core 2 when it runs low.
type Sound struct {
	m    *Machine
	sink SampleSink

	mtx       sync.Mutex
	enabled   bool
	intEnable bool
	fillPtr   uint32
	lastFill  uint32
	fifo      []Frame
	played    int
	quit      chan struct{}
	once      sync.Once
}

func newSound(m *Machine, sink SampleSink) *Sound {
	s := &Sound{m: m, sink: sink, quit: make(chan struct{})}
	go s.run()
	return s
}

func (s *Sound) load(off uint32) uint32 {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	switch off {
	case 0x00:
		return b2u(s.enabled)
	case 0x04:
		return uint32(len(s.fifo))
	case 0x08:
		return b2u(s.intEnable)
	case 0x0c:
		return s.fillPtr
	case 0x14:
		return s.lastFill
	}
	return 0
}

func (s *Sound) store(off uint32, v uint32) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	switch off {
	case 0x00:
		s.enabled = v != 0
	case 0x08:
		s.intEnable = v != 0
	case 0x0c:
		s.fillPtr = v
	case 0x10:
		s.fill(v)
	}
}

// must hold s.mtx
func (s *Sound) fill(samples uint32) {
	n := min(int(samples)/Channels, FifoSize-len(s.fifo))
	p := make([]byte, n*Channels*2)
	if _, err := s.m.ReadAt(p, int64(s.fillPtr)); err != nil {
		s.lastFill = 0
		return
	}
	for i := range n {
		var f Frame
		for ch := range Channels {
			f[ch] = int16(binary.LittleEndian.Uint16(p[(i*Channels+ch)*2:]))
		}
		s.fifo = append(s.fifo, f)
	}
	s.lastFill = uint32(n * Channels)
}

func (s *Sound) run() {
	t := time.NewTicker(drainPeriod)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.drain()
		case <-s.quit:
			return
		}
	}
}

func (s *Sound) drain() {
	s.mtx.Lock()
	if !s.enabled {
		s.mtx.Unlock()
		return
	}
	n := min(drainPerTick, len(s.fifo))
	played := append([]Frame(nil), s.fifo[:n]...)
	s.fifo = s.fifo[n:]
	s.played += n
	low := s.intEnable && len(s.fifo) < FifoMinFill
	s.mtx.Unlock()

	if s.sink != nil && len(played) > 0 {
		if err := s.sink.WriteFrames(played); err != nil {
			s.m.log.WithError(err).Error("writing samples")
		}
	}
	if low {
		s.m.raise(intrSound, 1)
	}
}

// Played returns the number of frames played so far.
func (s *Sound) Played() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.played
}

func (s *Sound) reset() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.enabled, s.intEnable = false, false
	s.fifo = nil
}

func (s *Sound) stop() {
	s.once.Do(func() { close(s.quit) })
}

func (s *Sound) close() error {
	if s.sink == nil {
		return nil
	}
	return s.sink.Close()
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// WAVSink records all frames and writes them to a WAV file when closed.
type WAVSink struct {
	name    string
	mtx     sync.Mutex
	samples []wav.Sample
}

func NewWAVSink(name string) *WAVSink {
	return &WAVSink{name: name}
}

func (w *WAVSink) WriteFrames(frames []Frame) error {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	for _, f := range frames {
		w.samples = append(w.samples, wav.Sample{Values: [2]int{int(f[0]), int(f[1])}})
	}
	return nil
}

func (w *WAVSink) Close() (rerr error) {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	f, err := os.Create(w.name)
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); err != nil && rerr == nil {
			rerr = err
		}
	}()
	enc := wav.NewWriter(f, uint32(len(w.samples)), Channels, SampleRate, 16)
	return enc.WriteSamples(w.samples)
}
