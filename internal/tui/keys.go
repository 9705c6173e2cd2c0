package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up          key.Binding
	Down        key.Binding
	NextPage    key.Binding
	PrevPage    key.Binding
	NextChapter key.Binding
	PrevChapter key.Binding
	Read        key.Binding
	Stop        key.Binding
	Chapters    key.Binding
	Retry       key.Binding
	Help        key.Binding
	Quit        key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "previous verse")),
		Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "next verse")),
		NextPage:    key.NewBinding(key.WithKeys("right", "l", "pgdown"), key.WithHelp("→/l", "next page")),
		PrevPage:    key.NewBinding(key.WithKeys("left", "h", "pgup"), key.WithHelp("←/h", "previous page")),
		NextChapter: key.NewBinding(key.WithKeys("n", "]"), key.WithHelp("n", "next surah")),
		PrevChapter: key.NewBinding(key.WithKeys("p", "["), key.WithHelp("p", "previous surah")),
		Read:        key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "read aloud")),
		Stop:        key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop")),
		Chapters:    key.NewBinding(key.WithKeys("g", "/"), key.WithHelp("g", "surah list")),
		Retry:       key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
		Help:        key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextPage, k.PrevPage, k.NextChapter, k.PrevChapter, k.Read, k.Stop, k.Retry, k.Chapters, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Read, k.Stop},
		{k.NextPage, k.PrevPage},
		{k.NextChapter, k.PrevChapter, k.Chapters},
		{k.Retry, k.Help, k.Quit},
	}
}
