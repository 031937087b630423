package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Next     key.Binding
	Previous key.Binding
	Back     key.Binding
	Restart  key.Binding
	Motion   key.Binding
	Act      key.Binding
	Up       key.Binding
	Down     key.Binding
	Type     key.Binding
	Quit     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Next: key.NewBinding(
			key.WithKeys("right", "n", "enter"),
			key.WithHelp("→", "next"),
		),
		Previous: key.NewBinding(
			key.WithKeys("left", "p"),
			key.WithHelp("←", "previous"),
		),
		Back: key.NewBinding(
			key.WithKeys("b", "backspace"),
			key.WithHelp("b", "undo"),
		),
		Restart: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "restart"),
		),
		Motion: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "reduce motion"),
		),
		Act: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "tap / tear"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓", "down"),
		),
		Type: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "answer"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Previous, k.Act, k.Back, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.Previous, k.Back, k.Restart},
		{k.Act, k.Up, k.Down, k.Type},
		{k.Motion, k.Quit},
	}
}
