package metronome

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/robmorgan/metronome/config"
	"github.com/robmorgan/metronome/logger"
	"github.com/robmorgan/metronome/rhythm"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"
)

var ErrInvalidMeasureLength = errors.New("measure length must be at least 1")

// TickListener is notified of every beat. OnTick runs on the scheduler's tick path: it must not
// block and must not call back into the Controller.
type TickListener interface {
	OnTick(tick rhythm.Tick)
}

// TickListenerFunc adapts a plain function to a TickListener.
type TickListenerFunc func(tick rhythm.Tick)

func (f TickListenerFunc) OnTick(tick rhythm.Tick) { f(tick) }

// Controller is the entry point for everything that drives the metronome: user input, the
// terminal UI and detected song tempos. It owns the scheduler and is the only writer of tempo and
// measure length.
type Controller struct {
	mu            sync.Mutex
	scheduler     *rhythm.Scheduler
	tempoCfg      config.TempoConfig
	tempo         rhythm.Tempo
	measureLength int

	listenersMu sync.RWMutex
	listeners   map[int]TickListener
	nextID      int
}

// NewController validates cfg and creates a stopped metronome.
func NewController(cfg config.MetronomeConfig, clk clock.Clock, synth rhythm.Synthesizer) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Controller{
		tempoCfg:      cfg.Tempo,
		measureLength: cfg.Measure.BeatsPerBar,
		listeners:     make(map[int]TickListener),
	}
	c.tempo = c.clamp(rhythm.Tempo(cfg.Tempo.Default))
	c.scheduler = rhythm.NewScheduler(clk, synth, c.tempo, c.measureLength)
	c.scheduler.SetTickHandler(c.dispatch)

	return c, nil
}

func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scheduler.Start()
}

func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scheduler.Stop()
}

// Toggle starts a stopped metronome or stops a running one, and reports whether it is now running.
func (c *Controller) Toggle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.scheduler.IsRunning() {
		c.scheduler.Stop()
		return false
	}
	c.scheduler.Start()
	return true
}

func (c *Controller) IsRunning() bool {
	return c.scheduler.IsRunning()
}

// Close stops playback. The controller can still be started again afterwards.
func (c *Controller) Close() error {
	c.Stop()
	return nil
}

func (c *Controller) Tempo() rhythm.Tempo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tempo
}

func (c *Controller) MeasureLength() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.measureLength
}

// TempoRange returns the bounds every tempo change is clamped to.
func (c *Controller) TempoRange() (rhythm.Tempo, rhythm.Tempo) {
	return rhythm.Tempo(c.tempoCfg.Min), rhythm.Tempo(c.tempoCfg.Max)
}

// CurrentBeat returns the beat last played; ok is false while stopped.
func (c *Controller) CurrentBeat() (int, bool) {
	return c.scheduler.CurrentBeat()
}

func (c *Controller) Snapshot() rhythm.Snapshot {
	return c.scheduler.Snapshot()
}

// SetTempo clamps bpm to the configured range and applies it, restarting a running metronome on
// the downbeat. It returns the tempo now in effect. NaN is ignored.
func (c *Controller) SetTempo(bpm float64) rhythm.Tempo {
	c.mu.Lock()
	defer c.mu.Unlock()

	if math.IsNaN(bpm) {
		return c.tempo
	}
	c.applyLocked(c.clamp(rhythm.Tempo(bpm)), c.measureLength)
	return c.tempo
}

// AdjustTempo moves the tempo by delta beats per minute, with the same clamping as SetTempo.
func (c *Controller) AdjustTempo(delta float64) rhythm.Tempo {
	c.mu.Lock()
	defer c.mu.Unlock()

	if math.IsNaN(delta) {
		return c.tempo
	}
	c.applyLocked(c.clamp(c.tempo+rhythm.Tempo(delta)), c.measureLength)
	return c.tempo
}

// StepTempo adjusts the tempo by the configured step; direction is usually +1 or -1.
func (c *Controller) StepTempo(direction int) rhythm.Tempo {
	return c.AdjustTempo(float64(direction) * c.tempoCfg.Step)
}

// SetMeasureLength changes the number of beats per measure, restarting a running metronome on the
// downbeat.
func (c *Controller) SetMeasureLength(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidMeasureLength, n)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyLocked(c.tempo, n)
	return nil
}

// ApplyDetectedTempo takes the tempo and meter of a song picked from search results. A bpm that
// is not a positive finite number is ignored, and beatsPerBar below 1 means the meter is unknown;
// neither is an error.
func (c *Controller) ApplyDetectedTempo(bpm float64, beatsPerBar int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	log := logger.GetProjectLogger().WithFields(logrus.Fields{"bpm": bpm, "beats_per_bar": beatsPerBar})

	tempo := c.tempo
	if t := rhythm.Tempo(bpm); t.Valid() {
		tempo = c.clamp(t)
	} else {
		log.Debug("Ignoring detected tempo")
	}

	measureLength := c.measureLength
	if beatsPerBar >= 1 {
		measureLength = beatsPerBar
	}

	c.applyLocked(tempo, measureLength)
	log.WithFields(logrus.Fields{"tempo": float64(c.tempo), "measure_length": c.measureLength}).Info("Applied detected tempo")
}

// Subscribe registers l for every tick and returns a function that removes it again.
func (c *Controller) Subscribe(l TickListener) func() {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()

	id := c.nextID
	c.nextID++
	c.listeners[id] = l

	return func() {
		c.listenersMu.Lock()
		defer c.listenersMu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *Controller) applyLocked(tempo rhythm.Tempo, measureLength int) {
	if tempo == c.tempo && measureLength == c.measureLength {
		return
	}

	c.tempo = tempo
	c.measureLength = measureLength
	c.scheduler.Reconfigure(tempo, measureLength)

	logger.GetProjectLogger().WithFields(logrus.Fields{
		"tempo":          float64(tempo),
		"measure_length": measureLength,
		"running":        c.scheduler.IsRunning(),
	}).Debug("Metronome reconfigured")
}

func (c *Controller) clamp(t rhythm.Tempo) rhythm.Tempo {
	return t.Clamp(rhythm.Tempo(c.tempoCfg.Min), rhythm.Tempo(c.tempoCfg.Max))
}

func (c *Controller) dispatch(tick rhythm.Tick) {
	c.listenersMu.RLock()
	defer c.listenersMu.RUnlock()

	for _, l := range c.listeners {
		l.OnTick(tick)
	}
}
