package rhythm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robmorgan/metronome/logger"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"
)

// IdleBeat is reported as the current beat while the scheduler is stopped.
const IdleBeat = -1

// Synthesizer plays a single click. Emit must return without waiting for the sound to finish.
type Synthesizer interface {
	Emit(accented bool)
}

// Tick describes one beat fired by the scheduler.
type Tick struct {
	Session uuid.UUID
	Epoch   uint64

	// Ordinal is the position of the tick on the session's ideal timeline, starting at 0.
	Ordinal int64

	Beat          int
	Downbeat      bool
	MeasureLength int
	Tempo         Tempo

	// Target is the ideal fire time and At is when the tick actually fired.
	Target time.Time
	At     time.Time
}

// Drift returns how late the tick fired relative to its ideal time.
func (t Tick) Drift() time.Duration {
	return t.At.Sub(t.Target)
}

// TickHandler is invoked for every tick while the scheduler lock is held. It must not block and
// must not call back into the Scheduler.
type TickHandler func(Tick)

// session owns the single timer goroutine of one play session.
type session struct {
	id       uuid.UUID
	epoch    uint64
	start    time.Time
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// target returns the ideal fire time of ordinal k.
func (s *session) target(k int64) time.Time {
	return s.start.Add(time.Duration(k) * s.interval)
}

// delay returns how long to wait at now before ordinal k is due. Because every target is measured
// from the session start, lateness of one firing shortens the following wait instead of pushing
// the whole timeline back.
func (s *session) delay(k int64, now time.Time) time.Duration {
	d := s.target(k).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Scheduler fires ticks at the interval implied by its tempo, driving a BeatCounter and a
// Synthesizer. At most one session is alive at a time.
type Scheduler struct {
	mu      sync.Mutex
	clock   clock.Clock
	synth   Synthesizer
	counter *BeatCounter
	tempo   Tempo
	onTick  TickHandler

	epoch    uint64
	session  *session
	current  int
	lastTick time.Time
}

// NewScheduler creates a stopped scheduler. It panics if tempo is not a positive finite number or
// measureLength is less than 1.
func NewScheduler(clk clock.Clock, synth Synthesizer, tempo Tempo, measureLength int) *Scheduler {
	if !tempo.Valid() {
		panic(fmt.Sprintf("rhythm: invalid tempo %v", float64(tempo)))
	}
	return &Scheduler{
		clock:   clk,
		synth:   synth,
		counter: NewBeatCounter(measureLength),
		tempo:   tempo,
		current: IdleBeat,
	}
}

// SetTickHandler registers the function called for every tick. Pass nil to remove it.
func (s *Scheduler) SetTickHandler(fn TickHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTick = fn
}

// Start plays the first beat immediately and keeps ticking until Stop. Calling Start while the
// scheduler is running does nothing.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil {
		return
	}
	s.startLocked(s.clock.Now())
}

// Stop cancels the running session. Once Stop returns no further tick fires and the current beat
// is IdleBeat. Calling Stop on a stopped scheduler does nothing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	old := s.stopLocked()
	s.mu.Unlock()

	if old != nil {
		<-old.done
	}
}

// Reconfigure applies a new tempo and measure length. A running scheduler is restarted on the
// downbeat; the first beat of the new session is held back so that it never lands closer than
// half the shorter interval to the previous beat.
func (s *Scheduler) Reconfigure(tempo Tempo, measureLength int) {
	if !tempo.Valid() {
		panic(fmt.Sprintf("rhythm: invalid tempo %v", float64(tempo)))
	}

	s.mu.Lock()
	oldInterval := s.tempo.Interval()
	s.tempo = tempo
	s.counter.SetMeasureLength(measureLength)

	if s.session == nil {
		s.mu.Unlock()
		return
	}

	old := s.stopLocked()
	s.startLocked(s.restartAt(oldInterval, tempo.Interval(), s.clock.Now()))
	s.mu.Unlock()

	<-old.done
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session != nil
}

// CurrentBeat returns the index of the last beat played. ok is false while stopped.
func (s *Scheduler) CurrentBeat() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil || s.current == IdleBeat {
		return IdleBeat, false
	}
	return s.current, true
}

func (s *Scheduler) Tempo() Tempo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tempo
}

func (s *Scheduler) MeasureLength() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counter.MeasureLength()
}

// Snapshot captures the scheduler state at the current instant.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	snap := Snapshot{
		Instant:       now,
		Tempo:         s.tempo,
		MeasureLength: s.counter.MeasureLength(),
		Beat:          IdleBeat,
	}
	if s.session == nil {
		return snap
	}

	snap.Running = true
	snap.Beat = s.current
	if now.After(s.session.start) {
		snap.BeatPhase = markerPhase(now, s.session.start, beatsToMilliseconds(1, float64(s.tempo)))
	}
	return snap
}

// restartAt picks the ideal start of a restarted session.
func (s *Scheduler) restartAt(oldInterval, newInterval time.Duration, now time.Time) time.Time {
	if s.lastTick.IsZero() {
		return now
	}
	if earliest := s.lastTick.Add(min(oldInterval, newInterval) / 2); now.Before(earliest) {
		return earliest
	}
	return now
}

func (s *Scheduler) startLocked(first time.Time) {
	s.epoch++
	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{
		id:       uuid.New(),
		epoch:    s.epoch,
		start:    first,
		interval: s.tempo.Interval(),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	s.session = sess
	s.counter.Reset()
	s.current = IdleBeat

	log := logger.GetProjectLogger()
	log.WithFields(logrus.Fields{
		"session":        sess.id,
		"bpm":            float64(s.tempo),
		"interval":       sess.interval,
		"measure_length": s.counter.MeasureLength(),
	}).Info("Metronome started")

	var next int64
	if now := s.clock.Now(); !first.After(now) {
		s.tickLocked(sess, 0, now)
		next = 1
	}

	go s.run(ctx, sess, next)
}

func (s *Scheduler) stopLocked() *session {
	sess := s.session
	if sess == nil {
		return nil
	}

	s.session = nil
	s.epoch++
	sess.cancel()
	s.counter.Reset()
	s.current = IdleBeat

	logger.GetProjectLogger().WithFields(logrus.Fields{"session": sess.id}).Info("Metronome stopped")
	return sess
}

func (s *Scheduler) tickLocked(sess *session, ordinal int64, now time.Time) {
	beat, downbeat := s.counter.Advance()
	s.current = beat
	s.lastTick = now

	s.synth.Emit(downbeat)

	tick := Tick{
		Session:       sess.id,
		Epoch:         sess.epoch,
		Ordinal:       ordinal,
		Beat:          beat,
		Downbeat:      downbeat,
		MeasureLength: s.counter.MeasureLength(),
		Tempo:         s.tempo,
		Target:        sess.target(ordinal),
		At:            now,
	}

	logger.GetProjectLogger().WithFields(logrus.Fields{
		"session": sess.id,
		"ordinal": ordinal,
		"beat":    beat,
		"drift":   tick.Drift(),
	}).Debug("Tick")

	if s.onTick != nil {
		s.onTick(tick)
	}
}

// run waits for each ordinal of the session in turn until the session is cancelled.
func (s *Scheduler) run(ctx context.Context, sess *session, next int64) {
	defer close(sess.done)

	t := s.clock.NewTimer(sess.delay(next, s.clock.Now()))
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			s.mu.Lock()
			if sess.epoch != s.epoch {
				// superseded while the timer was firing
				s.mu.Unlock()
				return
			}

			now := s.clock.Now()
			if late := now.Sub(sess.target(next)); late >= sess.interval {
				skipped := int64(late / sess.interval)
				logger.GetProjectLogger().WithFields(logrus.Fields{
					"session": sess.id,
					"skipped": skipped,
				}).Warn("Scheduler fell behind, skipping beats")
				next += skipped
			}

			s.tickLocked(sess, next, now)
			next++
			d := sess.delay(next, s.clock.Now())
			s.mu.Unlock()

			t.Reset(d)
		}
	}
}
