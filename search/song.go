package search

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/robmorgan/metronome/logger"
	"github.com/robmorgan/metronome/rhythm"
	"github.com/sirupsen/logrus"
)

type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Song is a single search hit. Tempo and TimeSig are kept as the raw strings the service returns.
type Song struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	URI     string `json:"uri"`
	Artist  Artist `json:"artist"`
	Tempo   string `json:"tempo"`
	KeyOf   string `json:"key_of"`
	TimeSig string `json:"time_sig"`
}

// BPM parses the tempo string.
func (s Song) BPM() (float64, error) {
	bpm, err := strconv.ParseFloat(strings.TrimSpace(s.Tempo), 64)
	if err != nil {
		return 0, fmt.Errorf("song %q has invalid tempo %q: %w", s.ID, s.Tempo, err)
	}
	return bpm, nil
}

// BeatsPerBar parses the time signature and returns its beat count.
func (s Song) BeatsPerBar() (int, error) {
	ts, err := rhythm.ParseTimeSignature(s.TimeSig)
	if err != nil {
		return 0, err
	}
	return ts.Beats, nil
}

func (s Song) ArtistName() string {
	if s.Artist.Name == "" {
		return "Unknown Artist"
	}
	return s.Artist.Name
}

func (s Song) String() string {
	details := []string{}
	if s.Tempo != "" {
		details = append(details, "BPM: "+s.Tempo)
	}
	if s.KeyOf != "" {
		details = append(details, "Key: "+s.KeyOf)
	}
	if s.TimeSig != "" {
		details = append(details, "Time: "+s.TimeSig)
	}
	return fmt.Sprintf("%s - %s (%s)", s.Title, s.ArtistName(), strings.Join(details, ", "))
}

// TempoTarget receives the tempo and meter of a chosen song.
type TempoTarget interface {
	ApplyDetectedTempo(bpm float64, beatsPerBar int)
}

// Apply forwards the song's tempo and meter to target. Values that fail to parse are passed as
// zero, which the target treats as unknown.
func Apply(target TempoTarget, song Song) {
	log := logger.GetProjectLogger().WithFields(logrus.Fields{"song": song.ID, "title": song.Title})

	bpm, err := song.BPM()
	if err != nil {
		log.WithError(err).Warn("Could not read song tempo")
		bpm = 0
	}

	beats, err := song.BeatsPerBar()
	if err != nil {
		log.WithError(err).Debug("Could not read song time signature")
		beats = 0
	}

	target.ApplyDetectedTempo(bpm, beats)
}
