package rhythm

import "time"

// Snapshot is a point-in-time view of the scheduler for display.
type Snapshot struct {
	// Instant is the point in time with respect to which the snapshot is computed.
	Instant time.Time

	Tempo         Tempo
	MeasureLength int
	Running       bool

	// Beat is the index of the last beat played, or IdleBeat when stopped.
	Beat int

	// BeatPhase is how far the timeline is through the current beat, in [0, 1). Zero when stopped.
	BeatPhase float64
}

// IsDownBeat checks whether the last beat played was the first beat in its bar.
func (s Snapshot) IsDownBeat() bool {
	return s.Running && s.Beat == 0
}

// GetBeatInterval gets the metronome's beat length in milliseconds.
func (s Snapshot) GetBeatInterval() float64 {
	return beatsToMilliseconds(1, float64(s.Tempo))
}

// GetBarInterval gets the metronome's bar length in milliseconds.
func (s Snapshot) GetBarInterval() float64 {
	return beatsToMilliseconds(s.MeasureLength, float64(s.Tempo))
}
