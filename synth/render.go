package synth

import (
	"fmt"
	"math"
	"os"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
	goerrors "github.com/gruntwork-io/go-commons/errors"
	"github.com/robmorgan/metronome/rhythm"
)

// RenderClickTrack renders bars measures of clicks. Beat k starts at sample round(k*sr*60/bpm), so
// the track never drifts however long it is.
func RenderClickTrack(sr beep.SampleRate, tempo rhythm.Tempo, measureLength, bars int, accent, normal Click) beep.Streamer {
	counter := rhythm.NewBeatCounter(measureLength)
	samplesPerBeat := float64(sr) * 60 / float64(tempo)
	numBeats := measureLength * bars

	beats := make([]beep.Streamer, 0, numBeats)
	for k := 0; k < numBeats; k++ {
		length := int(math.Round(float64(k+1)*samplesPerBeat)) - int(math.Round(float64(k)*samplesPerBeat))

		click := normal
		if _, downbeat := counter.Advance(); downbeat {
			click = accent
		}

		pulse := min(length, click.Samples(sr))
		beats = append(beats, beep.Seq(beep.Take(pulse, click.Streamer(sr)), beep.Silence(length-pulse)))
	}

	return beep.Seq(beats...)
}

// WriteWAV encodes a click track into a 16-bit stereo WAV file at path.
func WriteWAV(path string, sr beep.SampleRate, s beep.Streamer) error {
	f, err := os.Create(path)
	if err != nil {
		return goerrors.WithStackTrace(err)
	}
	defer f.Close()

	format := beep.Format{SampleRate: sr, NumChannels: 2, Precision: 2}
	if err := wav.Encode(f, s, format); err != nil {
		return goerrors.WithStackTrace(fmt.Errorf("failed to encode %s: %w", path, err))
	}
	return nil
}
