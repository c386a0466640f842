package sound_test

import (
	"sync"
	"testing"
	"time"

	"github.com/clktmr/rvfm/drivers/sound"
	"github.com/clktmr/rvfm/hw"
	"github.com/clktmr/rvfm/sim"
	rvfmtesting "github.com/clktmr/rvfm/testing"
)

func TestMain(m *testing.M) { rvfmtesting.TestMain(m) }

type sink struct {
	mtx    sync.Mutex
	frames []sim.Frame
}

func (s *sink) WriteFrames(frames []sim.Frame) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.frames = append(s.frames, frames...)
	return nil
}

func (s *sink) Close() error { return nil }

func (s *sink) snapshot() []sim.Frame {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return append([]sim.Frame(nil), s.frames...)
}

func TestPlayer(t *testing.T) {
	out := new(sink)
	m := rvfmtesting.NewMachine(t, "", sim.Config{Sound: out})

	const frames = sound.SampleRate / 10
	m.Run(1, func(core hw.Core) {
		p, err := sound.NewPlayer(hw.NewVector(core), m.Arena(core))
		if err != nil {
			t.Error(err)
			return
		}
		p.SetSource(&sound.Tone{Hz: 440, Volume: 1, Duration: frames})
		p.Run()
	})

	deadline := time.Now().Add(rvfmtesting.Timeout)
	for len(out.snapshot()) < 2*frames {
		if time.Now().After(deadline) {
			t.Fatalf("played %d frames", len(out.snapshot()))
		}
		time.Sleep(20 * time.Millisecond)
	}

	played := out.snapshot()
	loud := 0
	for _, f := range played[:frames] {
		if f[0] != 0 {
			loud++
		}
		if f[0] != f[1] {
			t.Fatal("channels differ")
		}
	}
	if loud < frames/2 {
		t.Errorf("only %d of %d frames audible", loud, frames)
	}
	for i, f := range played[frames+1 : 2*frames] {
		if f != (sim.Frame{}) {
			t.Fatalf("frame %d after the tone ended: %v", frames+1+i, f)
		}
	}
}
