package ui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		m.phase.Width = min(msg.Width-8, 60)
		return m, nil
	case tickMsg:
		m.snapshot = m.metronome.Snapshot()
		return m, tickCmd()
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggle):
		m.metronome.Toggle()
	case key.Matches(msg, m.keys.slower):
		m.metronome.StepTempo(-1)
	case key.Matches(msg, m.keys.faster):
		m.metronome.StepTempo(1)
	case key.Matches(msg, m.keys.nudgeDown):
		m.metronome.AdjustTempo(-1)
	case key.Matches(msg, m.keys.nudgeUp):
		m.metronome.AdjustTempo(1)
	case key.Matches(msg, m.keys.measure):
		n, _ := strconv.Atoi(msg.String())
		if err := m.metronome.SetMeasureLength(n); err != nil {
			m.status = err.Error()
		} else {
			m.status = fmt.Sprintf("%d beats per bar", n)
		}
	case key.Matches(msg, m.keys.help):
		m.help.ShowAll = !m.help.ShowAll
	default:
		return m, nil
	}

	m.snapshot = m.metronome.Snapshot()
	return m, nil
}
