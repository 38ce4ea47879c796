package rhythm

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"
)

type recordingSynth struct {
	mu      sync.Mutex
	accents []bool
}

func (r *recordingSynth) Emit(accented bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accents = append(r.accents, accented)
}

func (r *recordingSynth) Accents() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.accents...)
}

type harness struct {
	t     *testing.T
	clock *testingclock.FakeClock
	synth *recordingSynth
	sched *Scheduler
	ticks chan Tick
}

func newHarness(t *testing.T, tempo Tempo, measureLength int) *harness {
	t.Helper()

	h := &harness{
		t:     t,
		clock: testingclock.NewFakeClock(time.Unix(0, 0)),
		synth: &recordingSynth{},
		ticks: make(chan Tick, 4096),
	}
	h.sched = NewScheduler(h.clock, h.synth, tempo, measureLength)
	h.sched.SetTickHandler(func(tick Tick) {
		h.ticks <- tick
	})
	t.Cleanup(h.sched.Stop)
	return h
}

// waitForTimer blocks until the scheduler goroutine has armed its timer.
func (h *harness) waitForTimer() {
	h.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !h.clock.HasWaiters() {
		if time.Now().After(deadline) {
			h.t.Fatal("scheduler never armed its timer")
		}
		time.Sleep(50 * time.Microsecond)
	}
}

func (h *harness) step(d time.Duration) {
	h.t.Helper()
	h.waitForTimer()
	h.clock.Step(d)
}

func (h *harness) nextTick() Tick {
	h.t.Helper()
	select {
	case tick := <-h.ticks:
		return tick
	case <-time.After(2 * time.Second):
		h.t.Fatal("timed out waiting for tick")
	}
	return Tick{}
}

func (h *harness) requireNoTick() {
	h.t.Helper()
	select {
	case tick := <-h.ticks:
		h.t.Fatalf("unexpected tick: %+v", tick)
	case <-time.After(20 * time.Millisecond):
	}
}

func (h *harness) drain() []Tick {
	var out []Tick
	for {
		select {
		case tick := <-h.ticks:
			out = append(out, tick)
		default:
			return out
		}
	}
}

func TestSchedulerBeatSequence(t *testing.T) {
	t.Parallel()

	for _, tempo := range []Tempo{20, 60, 120, 300} {
		for _, measureLength := range []int{1, 3, 4, 7} {
			tempo, measureLength := tempo, measureLength
			t.Run(fmt.Sprintf("%vbpm_%dbeats", float64(tempo), measureLength), func(t *testing.T) {
				t.Parallel()

				h := newHarness(t, tempo, measureLength)
				start := h.clock.Now()
				interval := tempo.Interval()

				h.sched.Start()

				const numTicks = 15
				var beats []int
				for k := 0; k < numTicks; k++ {
					if k > 0 {
						h.step(interval)
					}
					tick := h.nextTick()
					require.Equal(t, int64(k), tick.Ordinal)
					require.Equal(t, start.Add(time.Duration(k)*interval), tick.At)
					require.Equal(t, time.Duration(0), tick.Drift())
					beats = append(beats, tick.Beat)
				}

				expected := make([]int, numTicks)
				for k := range expected {
					expected[k] = k % measureLength
				}
				assert.Equal(t, expected, beats)
				assert.Equal(t, 0, beats[0])
			})
		}
	}
}

func TestSchedulerAccentsDownbeats(t *testing.T) {
	t.Parallel()

	// 120 bpm in 4/4: a tick every 500ms with the accent on every fourth beat
	h := newHarness(t, 120, 4)
	h.sched.Start()
	h.nextTick()

	for k := 1; k < 8; k++ {
		h.step(500 * time.Millisecond)
		tick := h.nextTick()
		assert.Equal(t, time.Duration(k)*500*time.Millisecond, tick.At.Sub(time.Unix(0, 0)))
		assert.Equal(t, k%4 == 0, tick.Downbeat)
	}

	assert.Equal(t, []bool{true, false, false, false, true, false, false, false}, h.synth.Accents())
}

func TestSchedulerStartIsIdempotent(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 120, 4)
	h.sched.Start()
	h.sched.Start()

	require.Equal(t, 0, h.nextTick().Beat)
	h.requireNoTick()

	for k := 1; k <= 4; k++ {
		h.step(500 * time.Millisecond)
		require.Equal(t, k%4, h.nextTick().Beat)
		h.sched.Start()
		h.requireNoTick()
	}
	assert.Len(t, h.synth.Accents(), 5)
}

func TestSchedulerStopWhenStoppedIsNoop(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 120, 4)
	require.NotPanics(t, h.sched.Stop)
	require.False(t, h.sched.IsRunning())

	h.sched.Start()
	h.sched.Stop()
	require.NotPanics(t, h.sched.Stop)

	beat, ok := h.sched.CurrentBeat()
	assert.False(t, ok)
	assert.Equal(t, IdleBeat, beat)
}

func TestSchedulerStopCancelsFutureTicks(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 120, 4)
	h.sched.Start()
	h.nextTick()
	h.step(500 * time.Millisecond)
	h.nextTick()

	beat, ok := h.sched.CurrentBeat()
	require.True(t, ok)
	require.Equal(t, 1, beat)

	h.sched.Stop()
	require.False(t, h.clock.HasWaiters())

	h.clock.Step(10 * time.Second)
	h.requireNoTick()

	beat, ok = h.sched.CurrentBeat()
	assert.False(t, ok)
	assert.Equal(t, IdleBeat, beat)

	// the next session starts again on the downbeat
	h.sched.Start()
	assert.Equal(t, 0, h.nextTick().Beat)
}

func TestSchedulerStopRacingWithFiringTimer(t *testing.T) {
	t.Parallel()

	for i := 0; i < 25; i++ {
		h := newHarness(t, 300, 4)
		h.sched.Start()
		h.nextTick()

		h.step(200 * time.Millisecond)
		h.sched.Stop()

		// the racing tick either completed before Stop or was discarded
		assert.LessOrEqual(t, len(h.drain()), 1)

		beat, ok := h.sched.CurrentBeat()
		require.False(t, ok)
		require.Equal(t, IdleBeat, beat)
		require.False(t, h.clock.HasWaiters())

		h.clock.Step(time.Second)
		h.requireNoTick()
	}
}

func TestSchedulerCompensatesLateFiring(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 120, 4)
	start := h.clock.Now()
	h.sched.Start()
	h.nextTick()

	// the first timer fires 30ms late
	h.step(530 * time.Millisecond)
	late := h.nextTick()
	assert.Equal(t, 30*time.Millisecond, late.Drift())

	// so the following wait is shortened to land back on the grid
	h.step(469 * time.Millisecond)
	h.requireNoTick()
	h.step(time.Millisecond)
	onTime := h.nextTick()
	assert.Equal(t, start.Add(time.Second), onTime.At)
	assert.Equal(t, time.Duration(0), onTime.Drift())
}

func TestSchedulerSkipsMissedBeats(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 120, 4)
	start := h.clock.Now()
	h.sched.Start()
	h.nextTick()

	// the process was suspended for several beats
	h.step(1600 * time.Millisecond)
	tick := h.nextTick()
	assert.Equal(t, int64(3), tick.Ordinal)
	assert.Equal(t, 1, tick.Beat)
	h.requireNoTick()

	h.step(400 * time.Millisecond)
	tick = h.nextTick()
	assert.Equal(t, int64(4), tick.Ordinal)
	assert.Equal(t, start.Add(2*time.Second), tick.At)
	assert.Equal(t, 2, tick.Beat)
}

func TestSessionDelayBoundsDrift(t *testing.T) {
	t.Parallel()

	interval := 500 * time.Millisecond
	sess := &session{start: time.Unix(0, 0), interval: interval}
	rng := rand.New(rand.NewSource(42))

	const numTicks = 10000
	now := sess.start
	naive := sess.start
	for k := int64(1); k <= numTicks; k++ {
		jitter := time.Duration(rng.Int63n(int64(interval * 9 / 10)))

		fired := now.Add(sess.delay(k, now)).Add(jitter)
		drift := fired.Sub(sess.target(k))
		require.GreaterOrEqual(t, drift, time.Duration(0))
		require.Less(t, drift, interval, "tick %d", k)
		now = fired

		// a fixed period measured from the previous firing
		naive = naive.Add(interval + jitter)
	}

	assert.Greater(t, naive.Sub(sess.target(numTicks)), 100*interval)
}

func TestSchedulerReconfigureChangesMeasure(t *testing.T) {
	t.Parallel()

	// running at 60 bpm in 4/4, switch to 3 beats per measure
	h := newHarness(t, 60, 4)
	h.sched.Start()
	h.nextTick()
	h.step(time.Second)
	h.nextTick()
	h.step(time.Second)
	require.Equal(t, 2, h.nextTick().Beat)

	h.step(500 * time.Millisecond)
	changedAt := h.clock.Now()
	h.sched.Reconfigure(60, 3)
	require.True(t, h.sched.IsRunning())
	require.Equal(t, 3, h.sched.MeasureLength())

	first := h.nextTick()
	assert.Equal(t, 0, first.Beat)
	assert.Equal(t, changedAt, first.At)

	var beats []int
	for k := 1; k <= 6; k++ {
		h.step(time.Second)
		tick := h.nextTick()
		assert.Equal(t, changedAt.Add(time.Duration(k)*time.Second), tick.At)
		beats = append(beats, tick.Beat)
	}
	assert.Equal(t, []int{1, 2, 0, 1, 2, 0}, beats)
}

func TestSchedulerReconfigureWhileStopped(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 120, 4)
	h.sched.Reconfigure(90, 6)

	require.False(t, h.sched.IsRunning())
	assert.Equal(t, Tempo(90), h.sched.Tempo())
	assert.Equal(t, 6, h.sched.MeasureLength())
	h.requireNoTick()
}

func TestSchedulerTempoChangeNeverDoubleFiresOrStalls(t *testing.T) {
	t.Parallel()

	const grid = 10 * time.Millisecond

	for _, newTempo := range []Tempo{60, 100, 240, 300} {
		for _, offset := range []time.Duration{0, 50, 100, 240, 250, 400, 490} {
			newTempo, offset := newTempo, offset*time.Millisecond
			t.Run(fmt.Sprintf("%vbpm_after_%v", float64(newTempo), offset), func(t *testing.T) {
				t.Parallel()

				oldInterval := Tempo(120).Interval()
				newInterval := newTempo.Interval()

				h := newHarness(t, 120, 4)
				h.sched.Start()
				h.step(oldInterval)
				h.waitForTimer()
				if offset > 0 {
					h.step(offset)
				}

				h.sched.Reconfigure(newTempo, 4)
				changedAt := h.clock.Now()

				for elapsed := time.Duration(0); elapsed < 4*max(oldInterval, newInterval); elapsed += grid {
					h.step(grid)
				}
				h.waitForTimer()

				ticks := h.drain()
				require.Greater(t, len(ticks), 3)

				lower := min(oldInterval, newInterval) / 2
				upper := max(oldInterval, newInterval) * 3 / 2
				for i := 1; i < len(ticks); i++ {
					gap := ticks[i].At.Sub(ticks[i-1].At)
					assert.GreaterOrEqual(t, gap, lower, "ticks %d and %d", i-1, i)
					assert.LessOrEqual(t, gap, upper, "ticks %d and %d", i-1, i)
				}

				// the restarted session begins on the downbeat and counts up from there
				var restarted []int
				for _, tick := range ticks {
					if !tick.At.Before(changedAt) && tick.Epoch == ticks[len(ticks)-1].Epoch {
						restarted = append(restarted, tick.Beat)
					}
				}
				require.NotEmpty(t, restarted)
				for i, beat := range restarted {
					assert.Equal(t, i%4, beat)
				}
			})
		}
	}
}

func TestSchedulerDeferredRestartCanBeStopped(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 120, 4)
	h.sched.Start()
	h.nextTick()

	// restarting right after a beat holds the new downbeat back by half an interval
	h.sched.Reconfigure(60, 4)
	h.requireNoTick()
	require.True(t, h.sched.IsRunning())

	h.sched.Stop()
	h.clock.Step(time.Second)
	h.requireNoTick()
}

func TestSchedulerSnapshot(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 120, 3)

	snap := h.sched.Snapshot()
	assert.False(t, snap.Running)
	assert.Equal(t, IdleBeat, snap.Beat)
	assert.False(t, snap.IsDownBeat())
	assert.Equal(t, 500.0, snap.GetBeatInterval())
	assert.Equal(t, 1500.0, snap.GetBarInterval())

	h.sched.Start()
	h.nextTick()
	h.clock.Step(250 * time.Millisecond)

	snap = h.sched.Snapshot()
	assert.True(t, snap.Running)
	assert.Equal(t, 0, snap.Beat)
	assert.True(t, snap.IsDownBeat())
	assert.InDelta(t, 0.5, snap.BeatPhase, 1e-9)
	assert.Equal(t, Tempo(120), snap.Tempo)
	assert.Equal(t, 3, snap.MeasureLength)
}

func TestNewSchedulerRejectsInvalidTempo(t *testing.T) {
	t.Parallel()

	clk := testingclock.NewFakeClock(time.Unix(0, 0))
	assert.Panics(t, func() { NewScheduler(clk, &recordingSynth{}, 0, 4) })
	assert.Panics(t, func() { NewScheduler(clk, &recordingSynth{}, 120, 0) })
}
