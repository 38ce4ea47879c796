package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fogleman/ease"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/robmorgan/metronome/rhythm"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	tempoStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	beatStyle   = lipgloss.NewStyle().Padding(0, 2).Margin(0, 1, 0, 0)
	appStyle    = lipgloss.NewStyle().Margin(1, 2, 0, 2)

	accentColor = mustHex("#FF5F87")
	beatColor   = mustHex("#5FAFFF")
	idleColor   = mustHex("#3A3A3A")
)

func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// beatColorAt fades the lit beat back to the idle color as the beat progresses.
func beatColorAt(downbeat bool, phase float64) colorful.Color {
	lit := beatColor
	if downbeat {
		lit = accentColor
	}
	return lit.BlendLab(idleColor, ease.OutCubic(phase)).Clamped()
}

func (m model) View() string {
	snap := m.snapshot

	state := "stopped"
	if snap.Running {
		state = "playing"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("metronome"))
	b.WriteString("\n\n")
	b.WriteString(tempoStyle.Render(fmt.Sprintf("%.0f BPM", float64(snap.Tempo))))
	b.WriteString(statusStyle.Render(fmt.Sprintf("%d beats per bar  %s", snap.MeasureLength, state)))
	b.WriteString("\n\n")
	b.WriteString(m.beatsView(snap))
	b.WriteString("\n\n")
	b.WriteString(m.phase.ViewAs(snap.BeatPhase))
	b.WriteString("\n\n")
	if m.status != "" {
		b.WriteString(statusStyle.Render(m.status))
		b.WriteString("\n\n")
	}
	b.WriteString(m.help.View(m.keys))

	if m.quitting {
		b.WriteString("\n")
	}
	return appStyle.Render(b.String())
}

func (m model) beatsView(snap rhythm.Snapshot) string {
	cells := make([]string, 0, snap.MeasureLength)
	for i := 0; i < snap.MeasureLength; i++ {
		bg := idleColor
		if snap.Running && i == snap.Beat {
			bg = beatColorAt(i == 0, snap.BeatPhase)
		}
		style := beatStyle.Background(lipgloss.Color(bg.Hex()))
		cells = append(cells, style.Render(fmt.Sprintf("%d", i+1)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}
