// Package light flashes a DMX channel on every beat through OLA.
package light

import (
	"sync"
	"time"

	"github.com/robmorgan/metronome/config"
	"github.com/robmorgan/metronome/rhythm"
	"github.com/robmorgan/metronome/utils"
	"k8s.io/utils/clock"
)

const (
	DownbeatLevel = 255
	BeatLevel     = 127
)

// BeatFlash lights a channel at full on the downbeat and half on other beats, then fades it to
// zero over half a beat.
type BeatFlash struct {
	mu       sync.Mutex
	clock    clock.Clock
	state    *DMXState
	universe int
	channel  int
	frame    time.Duration

	level int
	start time.Time
	fade  time.Duration
}

func NewBeatFlash(cfg config.DMXConfig, clk clock.Clock, state *DMXState) *BeatFlash {
	fps := cfg.FPS
	if fps <= 0 {
		fps = config.NewMetronomeConfig().DMX.FPS
	}
	return &BeatFlash{
		clock:    clk,
		state:    state,
		universe: cfg.Universe,
		channel:  cfg.Channel,
		frame:    time.Second / time.Duration(fps),
	}
}

// FrameInterval is the time between two DMX frames.
func (f *BeatFlash) FrameInterval() time.Duration {
	return f.frame
}

func (f *BeatFlash) OnTick(tick rhythm.Tick) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.level = BeatLevel
	if tick.Downbeat {
		f.level = DownbeatLevel
	}
	f.start = f.clock.Now()
	f.fade = tick.Tempo.Interval() / 2
	_ = f.state.Set(f.universe, f.channel, byte(f.level))
}

// Level returns the channel value at now.
func (f *BeatFlash) Level(now time.Time) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.levelLocked(now)
}

// Update writes the faded level into the DMX state.
func (f *BeatFlash) Update(now time.Time) {
	f.mu.Lock()
	level := f.levelLocked(now)
	f.mu.Unlock()

	_ = f.state.Set(f.universe, f.channel, byte(level))
}

func (f *BeatFlash) levelLocked(now time.Time) int {
	if f.level == 0 || f.fade <= 0 {
		return 0
	}

	elapsed := now.Sub(f.start)
	if elapsed < 0 {
		elapsed = 0
	}
	numSteps := int(f.fade/f.frame) + 1
	step := int(elapsed / f.frame)

	return f.level - utils.GetDimmerFadeValue(f.level, step, numSteps)
}
