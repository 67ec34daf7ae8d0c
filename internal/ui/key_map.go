package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	cancel key.Binding
	log    key.Binding
	quit   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		cancel: key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "cancel")),
		log:    key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "toggle steps")),
		quit:   key.NewBinding(key.WithKeys("q", "ctrl+c", "enter", "esc"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.cancel}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.cancel, k.log},
		{k.quit},
	}
}
