package ui

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/robmorgan/metronome/rhythm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMetronome struct {
	running   bool
	tempo     rhythm.Tempo
	measure   int
	steps     []int
	deltas    []float64
	snapshots int
}

func newFakeMetronome() *fakeMetronome {
	return &fakeMetronome{tempo: 120, measure: 4}
}

func (f *fakeMetronome) Toggle() bool {
	f.running = !f.running
	return f.running
}

func (f *fakeMetronome) StepTempo(direction int) rhythm.Tempo {
	f.steps = append(f.steps, direction)
	f.tempo += rhythm.Tempo(5 * direction)
	return f.tempo
}

func (f *fakeMetronome) AdjustTempo(delta float64) rhythm.Tempo {
	f.deltas = append(f.deltas, delta)
	f.tempo += rhythm.Tempo(delta)
	return f.tempo
}

func (f *fakeMetronome) SetMeasureLength(n int) error {
	if n < 1 {
		return errors.New("bad measure")
	}
	f.measure = n
	return nil
}

func (f *fakeMetronome) Snapshot() rhythm.Snapshot {
	f.snapshots++
	beat := rhythm.IdleBeat
	if f.running {
		beat = 0
	}
	return rhythm.Snapshot{
		Instant:       time.Unix(0, 0),
		Tempo:         f.tempo,
		MeasureLength: f.measure,
		Running:       f.running,
		Beat:          beat,
	}
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func press(t *testing.T, m model, msg tea.Msg) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	updated, ok := next.(model)
	require.True(t, ok)
	return updated, cmd
}

func TestUpdateToggle(t *testing.T) {
	t.Parallel()

	f := newFakeMetronome()
	m := newModel(f)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	assert.True(t, f.running)
	assert.True(t, m.snapshot.Running)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	assert.False(t, f.running)
	assert.False(t, m.snapshot.Running)
}

func TestUpdateTempoKeys(t *testing.T) {
	t.Parallel()

	f := newFakeMetronome()
	m := newModel(f)

	for _, r := range "]][-=+" {
		m, _ = press(t, m, runeKey(r))
	}

	assert.Equal(t, []int{1, 1, -1}, f.steps)
	assert.Equal(t, []float64{-1, 1, 1}, f.deltas)
	assert.Equal(t, rhythm.Tempo(126), m.snapshot.Tempo)
}

func TestUpdateMeasureKeys(t *testing.T) {
	t.Parallel()

	f := newFakeMetronome()
	m := newModel(f)

	m, _ = press(t, m, runeKey('3'))
	assert.Equal(t, 3, f.measure)
	assert.Equal(t, "3 beats per bar", m.status)

	m, _ = press(t, m, runeKey('9'))
	assert.Equal(t, 9, f.measure)

	// keys outside 3-9 are ignored
	m, _ = press(t, m, runeKey('2'))
	assert.Equal(t, 9, f.measure)
	assert.Equal(t, 9, m.snapshot.MeasureLength)
}

func TestUpdateQuit(t *testing.T) {
	t.Parallel()

	for _, msg := range []tea.KeyMsg{runeKey('q'), {Type: tea.KeyCtrlC}} {
		m := newModel(newFakeMetronome())
		m, cmd := press(t, m, msg)

		require.NotNil(t, cmd)
		assert.IsType(t, tea.QuitMsg{}, cmd())
		assert.True(t, m.quitting)
	}
}

func TestUpdateTickPollsSnapshot(t *testing.T) {
	t.Parallel()

	f := newFakeMetronome()
	m := newModel(f)
	before := f.snapshots

	f.tempo = 90
	m, cmd := press(t, m, tickMsg(time.Now()))

	assert.NotNil(t, cmd)
	assert.Equal(t, before+1, f.snapshots)
	assert.Equal(t, rhythm.Tempo(90), m.snapshot.Tempo)
}

func TestUpdateToggleHelp(t *testing.T) {
	t.Parallel()

	m := newModel(newFakeMetronome())
	m, _ = press(t, m, runeKey('?'))
	assert.True(t, m.help.ShowAll)
}

func TestView(t *testing.T) {
	t.Parallel()

	f := newFakeMetronome()
	f.measure = 3
	m := newModel(f)

	view := m.View()
	assert.Contains(t, view, "120 BPM")
	assert.Contains(t, view, "stopped")

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	assert.Contains(t, m.View(), "playing")
}

func TestBeatColorFades(t *testing.T) {
	t.Parallel()

	assert.Equal(t, accentColor.Hex(), beatColorAt(true, 0).Hex())
	assert.Equal(t, beatColor.Hex(), beatColorAt(false, 0).Hex())
	assert.Equal(t, idleColor.Hex(), beatColorAt(true, 1).Hex())
}
