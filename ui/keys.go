package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	toggle    key.Binding
	slower    key.Binding
	faster    key.Binding
	nudgeDown key.Binding
	nudgeUp   key.Binding
	measure   key.Binding
	help      key.Binding
	quit      key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		toggle:    key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "start/stop")),
		slower:    key.NewBinding(key.WithKeys("["), key.WithHelp("[", "slower")),
		faster:    key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "faster")),
		nudgeDown: key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "bpm -1")),
		nudgeUp:   key.NewBinding(key.WithKeys("=", "+"), key.WithHelp("+", "bpm +1")),
		measure: key.NewBinding(
			key.WithKeys("3", "4", "5", "6", "7", "8", "9"),
			key.WithHelp("3-9", "beats per bar"),
		),
		help: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
		quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.toggle, k.slower, k.faster, k.help, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.toggle, k.measure},
		{k.slower, k.faster, k.nudgeDown, k.nudgeUp},
		{k.help, k.quit},
	}
}
