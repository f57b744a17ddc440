package ask

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings for the question screen.
type KeyMap struct {
	Submit key.Binding
	Speak  key.Binding
	Cancel key.Binding
}

// DefaultKeyMap returns the default key bindings for the question screen.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "ask"),
		),
		Speak: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "speak"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "never mind"),
		),
	}
}
