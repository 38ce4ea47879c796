package rhythm

import (
	"math"
	"time"

	"github.com/robmorgan/metronome/utils"
)

// Tempo is a speed in beats per minute.
type Tempo float64

const DefaultTempo Tempo = 120

// Interval returns how long a single beat lasts at this tempo.
func (t Tempo) Interval() time.Duration {
	return time.Duration(beatsToMilliseconds(1, float64(t)) * float64(time.Millisecond))
}

// Clamp limits the tempo to [min, max].
func (t Tempo) Clamp(min, max Tempo) Tempo {
	return utils.Clamp(t, min, max)
}

// Valid reports whether the tempo can drive a schedule at all.
func (t Tempo) Valid() bool {
	f := float64(t)
	return f > 0 && !math.IsNaN(f) && !math.IsInf(f, 0)
}

// beatsToMilliseconds calculates milliseconds for given beats and tempo
func beatsToMilliseconds(beats int, tempo float64) float64 {
	return (60000.0 / tempo) * float64(beats)
}

// markerNumber calculates the 1-based marker number of instant on a timeline that began at start.
func markerNumber(instant, start time.Time, interval float64) int {
	return int(math.Floor(instant.Sub(start).Seconds()*1000/interval)) + 1
}

// markerPhase calculates how far instant is through its marker, in [0, 1).
func markerPhase(instant, start time.Time, interval float64) float64 {
	ratio := instant.Sub(start).Seconds() * 1000 / interval
	return ratio - math.Floor(ratio)
}
