package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Submit   key.Binding
	Run      key.Binding
	Template key.Binding
	Theme    key.Binding
	Scroll   key.Binding
	Quit     key.Binding
}

var keys = keyMap{
	Submit:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
	Run:      key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "run")),
	Template: key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("ctrl+t", "next template")),
	Theme:    key.NewBinding(key.WithKeys("f2"), key.WithHelp("f2", "theme")),
	Scroll:   key.NewBinding(key.WithKeys("pgup", "pgdown"), key.WithHelp("pgup/pgdn", "scroll")),
	Quit:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
}

func (k keyMap) help() []key.Binding {
	return []key.Binding{k.Submit, k.Run, k.Template, k.Theme, k.Scroll, k.Quit}
}
