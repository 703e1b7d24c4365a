package main

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Select     key.Binding
	Back       key.Binding
	Rescan     key.Binding
	Devices    key.Binding
	Known      key.Binding
	Disconnect key.Binding
	Forget     key.Binding
	Details    key.Binding
	Help       key.Binding
	Quit       key.Binding

	// active decides which bindings the help bar offers.
	active screen
}

func (k keyMap) ShortHelp() []key.Binding {
	var b []key.Binding
	switch k.active {
	case screenNetworks:
		b = []key.Binding{k.Select, k.Rescan, k.Devices, k.Known}
	case screenKnown:
		b = []key.Binding{k.Forget, k.Back}
	case screenDevices:
		b = []key.Binding{k.Select, k.Rescan, k.Back}
	case screenLinkInfo, screenConnecting:
		b = []key.Binding{k.Back}
	default:
		b = []key.Binding{k.Select, k.Back}
	}
	return append(b, k.Help, k.Quit)
}

func (k keyMap) FullHelp() [][]key.Binding {
	if k.active != screenNetworks {
		return [][]key.Binding{k.ShortHelp()}
	}
	return [][]key.Binding{
		{k.Select, k.Rescan, k.Disconnect},
		{k.Devices, k.Known, k.Details},
		{k.Forget, k.Help, k.Quit},
	}
}

var defaultKeys = keyMap{
	Select:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
	Back:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Rescan:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rescan")),
	Devices:    key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "devices")),
	Known:      key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "known networks")),
	Disconnect: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "disconnect")),
	Forget:     key.NewBinding(key.WithKeys("x", "ctrl+f"), key.WithHelp("x", "forget")),
	Details:    key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "link details")),
	Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
	Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}
