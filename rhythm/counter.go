package rhythm

import (
	"fmt"

	"github.com/robmorgan/metronome/utils"
)

// BeatCounter tracks the position within a measure. It is not safe for concurrent use; the
// Scheduler serializes access to it.
type BeatCounter struct {
	current       int
	measureLength int
}

// NewBeatCounter returns a counter positioned on the downbeat.
func NewBeatCounter(measureLength int) *BeatCounter {
	c := &BeatCounter{}
	c.SetMeasureLength(measureLength)
	return c
}

// Advance returns the beat that is being played and whether it is the downbeat, then moves on to
// the next beat. A position left beyond a shortened measure wraps back into it.
func (c *BeatCounter) Advance() (int, bool) {
	emitted := utils.Wrap(c.current, c.measureLength)
	c.current = utils.Wrap(emitted+1, c.measureLength)
	return emitted, emitted == 0
}

func (c *BeatCounter) Reset() {
	c.current = 0
}

// SetMeasureLength changes the number of beats per measure without touching the current position.
// It panics if n is less than 1.
func (c *BeatCounter) SetMeasureLength(n int) {
	if n < 1 {
		panic(fmt.Sprintf("rhythm: measure length must be at least 1, got %d", n))
	}
	c.measureLength = n
}

func (c *BeatCounter) Current() int {
	return c.current
}

func (c *BeatCounter) MeasureLength() int {
	return c.measureLength
}
