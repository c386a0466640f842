package sound

import (
	"encoding/binary"
	"io"
	"math"
)

// Tone is a sine tone with exponential decay, used for UI feedback.
type Tone struct {
	Hz       float64
	Volume   float64 // 0..1
	Duration int     // frames

	pos int
}

func (t *Tone) ReadSamples(p []int16) int {
	n := 0
	for ; n+1 < len(p) && t.pos < t.Duration; n += 2 {
		x := float64(t.pos) / SampleRate
		decay := math.Exp(-4 * float64(t.pos) / float64(t.Duration))
		v := int16(math.Sin(2*math.Pi*t.Hz*x) * decay * t.Volume * math.MaxInt16)
		p[n], p[n+1] = v, v
		t.pos++
	}
	return n
}

// Sequence plays sources one after another.
type Sequence []Source

func (s *Sequence) ReadSamples(p []int16) (n int) {
	for len(*s) > 0 && n < len(p) {
		nn := (*s)[0].ReadSamples(p[n:])
		n += nn
		if n < len(p) {
			*s = (*s)[1:]
		}
	}
	return n
}

// PCM reads little endian interleaved samples from r.
type PCM struct {
	r   io.Reader
	buf []byte
}

func NewPCM(r io.Reader) *PCM {
	return &PCM{r: r}
}

func (s *PCM) ReadSamples(p []int16) int {
	if cap(s.buf) < len(p)*2 {
		s.buf = make([]byte, len(p)*2)
	}
	buf := s.buf[:len(p)*2]
	n, _ := io.ReadFull(s.r, buf)
	n = n / (2 * Channels) * Channels
	for i := range n {
		p[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
	}
	return n
}
