package synth

import (
	"math"
	"time"

	"github.com/faiface/beep"
	"github.com/fogleman/ease"
	"github.com/robmorgan/metronome/config"
)

const attackTime = 2 * time.Millisecond

// Click describes a single metronome pulse: a sine burst that rises over a couple of
// milliseconds and then decays to silence.
type Click struct {
	Frequency float64
	Decay     time.Duration
	Volume    float64
}

// ClicksFromConfig builds the accented and the normal click.
func ClicksFromConfig(cfg config.ClickConfig) (accent, normal Click) {
	decay := time.Duration(cfg.DecayMs) * time.Millisecond
	accent = Click{Frequency: cfg.AccentFrequency, Decay: decay, Volume: cfg.Volume}
	normal = Click{Frequency: cfg.NormalFrequency, Decay: decay, Volume: cfg.Volume}
	return accent, normal
}

// Samples returns the length of the pulse at the given sample rate.
func (c Click) Samples(sr beep.SampleRate) int {
	return sr.N(c.Decay)
}

// Streamer renders the pulse. Every call returns a streamer with its own position, so pulses can
// overlap in the mixer.
func (c Click) Streamer(sr beep.SampleRate) beep.Streamer {
	total := c.Samples(sr)
	attack := min(sr.N(attackTime), total/2)
	step := 2 * math.Pi * c.Frequency / float64(sr)
	pos := 0

	return beep.StreamerFunc(func(samples [][2]float64) (n int, ok bool) {
		if pos >= total {
			return 0, false
		}
		for i := range samples {
			if pos >= total {
				return i, true
			}
			v := c.Volume * envelope(pos, attack, total) * math.Sin(step*float64(pos))
			samples[i][0] = v
			samples[i][1] = v
			pos++
		}
		return len(samples), true
	})
}

func envelope(pos, attack, total int) float64 {
	if pos < attack {
		return ease.OutSine(float64(pos) / float64(attack))
	}
	p := float64(pos-attack) / float64(total-attack)
	return 1 - ease.OutExpo(p)
}
