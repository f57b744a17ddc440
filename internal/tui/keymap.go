package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the keys handled on every screen.
type KeyMap struct {
	Quit      key.Binding
	ForceQuit key.Binding
}

// DefaultKeyMap returns the default global key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "force quit"),
		),
	}
}
