// Package ui is the terminal front end of the metronome.
package ui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/robmorgan/metronome/rhythm"
)

// RefreshInterval is how often the display polls the metronome.
const RefreshInterval = 25 * time.Millisecond

// Metronome is the part of the controller the UI drives.
type Metronome interface {
	Toggle() bool
	StepTempo(direction int) rhythm.Tempo
	AdjustTempo(delta float64) rhythm.Tempo
	SetMeasureLength(n int) error
	Snapshot() rhythm.Snapshot
}

type model struct {
	metronome Metronome
	snapshot  rhythm.Snapshot
	keys      keyMap
	help      help.Model
	phase     progress.Model
	status    string
	quitting  bool
}

func newModel(m Metronome) model {
	return model{
		metronome: m,
		snapshot:  m.Snapshot(),
		keys:      newKeyMap(),
		help:      help.New(),
		phase: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(40),
			progress.WithoutPercentage(),
		),
	}
}

func (m model) Init() tea.Cmd {
	return tickCmd()
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Run shows the metronome until the user quits or ctx is cancelled.
func Run(ctx context.Context, m Metronome) error {
	_, err := tea.NewProgram(newModel(m), tea.WithContext(ctx), tea.WithAltScreen()).Run()
	return err
}
