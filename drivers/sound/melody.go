package sound

import "time"

// VoiceCount is the number of voices a Melody mixes.
const VoiceCount = 4

type NoteKind int

const (
	NoteOn NoteKind = iota
	NoteOff
	NoteDelay
)

// Note is a single melody event. Voice and Hz apply to NoteOn and NoteOff,
// Delay to NoteDelay.
type Note struct {
	Kind  NoteKind
	Voice int
	Hz    int
	Delay time.Duration
}

func On(voice, hz int) Note     { return Note{Kind: NoteOn, Voice: voice, Hz: hz} }
func Off(voice int) Note        { return Note{Kind: NoteOff, Voice: voice} }
func Rest(d time.Duration) Note { return Note{Kind: NoteDelay, Delay: d} }

type voice struct {
	on    bool
	phase int
	hz    int
}

// Melody plays notes as triangle waves, mono on both channels. It ends after
// the last note.
type Melody struct {
	notes  []Note
	next   int
	now    int // frames
	until  int
	voices [VoiceCount]voice
}

func NewMelody(notes []Note) *Melody {
	return &Melody{notes: notes, until: -1}
}

func (v *voice) triangle() int {
	v.phase = (v.phase + v.hz) % SampleRate
	t := v.phase / (SampleRate / 2000)
	if t > 1000 {
		return 1500 - t
	}
	return t - 500
}

// advance handles events up to the next delay. It returns false after the
// last note.
func (m *Melody) advance() bool {
	for m.next < len(m.notes) {
		n := m.notes[m.next]
		switch n.Kind {
		case NoteOn, NoteOff:
			if n.Voice >= 0 && n.Voice < VoiceCount {
				m.voices[n.Voice] = voice{on: n.Kind == NoteOn, hz: n.Hz}
			}
			m.next++
		case NoteDelay:
			if m.until < 0 {
				m.until = m.now + int(n.Delay*SampleRate/time.Second)
			}
			if m.now < m.until {
				return true
			}
			m.until = -1
			m.next++
		}
	}
	return false
}

func (m *Melody) ReadSamples(p []int16) (n int) {
	for ; n+1 < len(p); n += 2 {
		if !m.advance() {
			return n
		}
		m.now++
		var s int
		for i := range m.voices {
			if m.voices[i].on {
				s += m.voices[i].triangle()
			}
		}
		p[n], p[n+1] = int16(s), int16(s)
	}
	return n
}

// Chime returns the startup arpeggio.
func Chime() []Note {
	const step = 100 * time.Millisecond
	var notes []Note
	for range 5 {
		for _, hz := range []int{262, 330, 392, 524} {
			notes = append(notes, Rest(step), On(0, hz), Rest(step), Off(0))
		}
	}
	return notes
}
