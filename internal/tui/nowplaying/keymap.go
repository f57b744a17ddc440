package nowplaying

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings for the now-playing screen.
type KeyMap struct {
	PlayPause    key.Binding
	SkipForward  key.Binding
	SkipBackward key.Binding
	SeekForward  key.Binding
	SeekBackward key.Binding
	ScrollUp     key.Binding
	ScrollDown   key.Binding
	Select       key.Binding
	Ask          key.Binding
}

// DefaultKeyMap returns the default key bindings for the now-playing screen.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		PlayPause: key.NewBinding(
			key.WithKeys(" ", "space"),
			key.WithHelp("space", "play/pause"),
		),
		SkipForward: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→", "+15s"),
		),
		SkipBackward: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←", "-15s"),
		),
		SeekForward: key.NewBinding(
			key.WithKeys("shift+right", "L"),
			key.WithHelp("⇧→", "+1%"),
		),
		SeekBackward: key.NewBinding(
			key.WithKeys("shift+left", "H"),
			key.WithHelp("⇧←", "-1%"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/↓", "scroll"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("down", "j"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "jump to line"),
		),
		Ask: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "ask"),
		),
	}
}

// ShortHelp returns the short help bindings for the now-playing screen.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.PlayPause, k.SkipBackward, k.SkipForward, k.ScrollUp, k.Select, k.Ask}
}

// FullHelp returns the full help bindings for the now-playing screen.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.PlayPause, k.SkipBackward, k.SkipForward, k.SeekBackward, k.SeekForward},
		{k.ScrollUp, k.Select, k.Ask},
	}
}
