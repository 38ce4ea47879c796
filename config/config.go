package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	goerrors "github.com/gruntwork-io/go-commons/errors"
)

var (
	ErrInvalidTempoRange = errors.New("invalid tempo range")
	ErrInvalidMeasure    = errors.New("invalid beats per bar")
	ErrInvalidClick      = errors.New("invalid click settings")
)

// MetronomeConfig represents options that configure the global behavior of the program
type MetronomeConfig struct {
	Tempo   TempoConfig   `toml:"tempo"`
	Measure MeasureConfig `toml:"measure"`
	Click   ClickConfig   `toml:"click"`
	Search  SearchConfig  `toml:"search"`
	OSC     OSCConfig     `toml:"osc"`
	DMX     DMXConfig     `toml:"dmx"`
}

// TempoConfig holds the tempo the metronome starts with and the bounds every change is clamped to.
type TempoConfig struct {
	Default float64 `toml:"default"`
	Min     float64 `toml:"min"`
	Max     float64 `toml:"max"`

	// Step is the size of a single coarse adjustment, e.g. the [ and ] keys.
	Step float64 `toml:"step"`
}

type MeasureConfig struct {
	BeatsPerBar int `toml:"beats_per_bar"`
}

// ClickConfig describes the two click sounds and the audio device they are played on.
type ClickConfig struct {
	AccentFrequency float64 `toml:"accent_frequency"`
	NormalFrequency float64 `toml:"normal_frequency"`
	DecayMs         int     `toml:"decay_ms"`
	Volume          float64 `toml:"volume"`
	SampleRate      int     `toml:"sample_rate"`
	BufferMs        int     `toml:"buffer_ms"`
}

type SearchConfig struct {
	APIKey            string  `toml:"api_key"`
	BaseURL           string  `toml:"base_url"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

type OSCConfig struct {
	Enabled bool   `toml:"enabled"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	Address string `toml:"address"`
}

type DMXConfig struct {
	Enabled  bool   `toml:"enabled"`
	OLAAddr  string `toml:"ola_addr"`
	Universe int    `toml:"universe"`
	Channel  int    `toml:"channel"`
	FPS      int    `toml:"fps"`
}

// NewMetronomeConfig creates a new MetronomeConfig object with reasonable defaults for real usage
func NewMetronomeConfig() MetronomeConfig {
	return MetronomeConfig{
		Tempo: TempoConfig{
			Default: 120,
			Min:     20,
			Max:     300,
			Step:    5,
		},
		Measure: MeasureConfig{
			BeatsPerBar: 4,
		},
		Click: ClickConfig{
			AccentFrequency: 1000,
			NormalFrequency: 800,
			DecayMs:         100,
			Volume:          0.3,
			SampleRate:      44100,
			BufferMs:        10,
		},
		Search: SearchConfig{
			BaseURL:           "https://api.getsongbpm.com",
			RequestsPerSecond: 1,
		},
		OSC: OSCConfig{
			Host:    "127.0.0.1",
			Port:    9000,
			Address: "/metronome/beat",
		},
		DMX: DMXConfig{
			OLAAddr:  "localhost:9010",
			Universe: 1,
			Channel:  1,
			FPS:      40,
		},
	}
}

// LoadConfig reads a TOML file and overlays it on top of the defaults.
func LoadConfig(path string) (MetronomeConfig, error) {
	cfg := NewMetronomeConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, goerrors.WithStackTrace(fmt.Errorf("failed to read config file: %w", err))
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, goerrors.WithStackTrace(fmt.Errorf("failed to parse config: %w", err))
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks the settings the metronome engine relies on.
func (c MetronomeConfig) Validate() error {
	t := c.Tempo
	if t.Min <= 0 || t.Max < t.Min {
		return fmt.Errorf("%w: min=%v max=%v", ErrInvalidTempoRange, t.Min, t.Max)
	}
	if t.Default < t.Min || t.Default > t.Max {
		return fmt.Errorf("%w: default %v outside [%v, %v]", ErrInvalidTempoRange, t.Default, t.Min, t.Max)
	}
	if t.Step <= 0 {
		return fmt.Errorf("%w: step must be positive", ErrInvalidTempoRange)
	}
	if c.Measure.BeatsPerBar < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidMeasure, c.Measure.BeatsPerBar)
	}
	ck := c.Click
	if ck.AccentFrequency <= 0 || ck.NormalFrequency <= 0 || ck.DecayMs <= 0 || ck.SampleRate <= 0 || ck.BufferMs <= 0 {
		return fmt.Errorf("%w: %+v", ErrInvalidClick, ck)
	}
	if ck.Volume < 0 || ck.Volume > 1 {
		return fmt.Errorf("%w: volume %v not in [0, 1]", ErrInvalidClick, ck.Volume)
	}
	return nil
}
