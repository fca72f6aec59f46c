package popup

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Reset   key.Binding
	Consent key.Binding
	Refresh key.Binding
	Quit    key.Binding
	Yes     key.Binding
	No      key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Reset: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reset stats"),
		),
		Consent: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "toggle trusted clicks"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("f5", "ctrl+r"),
			key.WithHelp("f5", "refresh"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Yes: key.NewBinding(
			key.WithKeys("y", "Y", "enter"),
			key.WithHelp("y", "confirm"),
		),
		No: key.NewBinding(
			key.WithKeys("n", "N", "esc"),
			key.WithHelp("n", "cancel"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Reset, k.Consent, k.Refresh, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

type confirmKeys struct{ keyMap }

func (k confirmKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Yes, k.No}
}
