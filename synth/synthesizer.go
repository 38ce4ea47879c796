package synth

import (
	"sync/atomic"

	"github.com/faiface/beep"
	"github.com/robmorgan/metronome/logger"
)

// Output plays streamers without blocking the caller.
type Output interface {
	Play(s beep.Streamer) error
	SampleRate() beep.SampleRate
}

// Synthesizer turns beats into clicks on an Output.
type Synthesizer struct {
	out    Output
	accent Click
	normal Click
	warned atomic.Bool
}

func NewSynthesizer(out Output, accent, normal Click) *Synthesizer {
	return &Synthesizer{
		out:    out,
		accent: accent,
		normal: normal,
	}
}

// Emit starts one click and returns straight away. Output errors are logged, never returned: the
// metronome keeps counting even when nothing can be heard.
func (s *Synthesizer) Emit(accented bool) {
	click := s.normal
	if accented {
		click = s.accent
	}

	if err := s.out.Play(click.Streamer(s.out.SampleRate())); err != nil {
		log := logger.GetProjectLogger().WithError(err)
		if s.warned.CompareAndSwap(false, true) {
			log.Warn("Audio output unavailable, continuing without sound")
		} else {
			log.Debug("Click dropped")
		}
	}
}
