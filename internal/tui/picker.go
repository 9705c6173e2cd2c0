package tui

import (
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/csheth/tilawah/internal/directory"
	"github.com/csheth/tilawah/internal/quran"
)

// chapterPicker lists the directory. Filtering goes through
// directory.Filter so number prefixes match the way the reader expects.
type chapterPicker struct {
	list     list.Model
	dir      *directory.Directory
	chapters []quran.Chapter
}

func newChapterPicker(dir *directory.Directory) *chapterPicker {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(lipgloss.Color("#ffb347")).
		BorderForeground(lipgloss.Color("#ff8c00"))
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		BorderForeground(lipgloss.Color("#ff8c00"))

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "Surahs"
	l.SetShowHelp(false)
	l.SetFilteringEnabled(true)
	l.DisableQuitKeybindings()

	return &chapterPicker{list: l, dir: dir}
}

// refresh reloads the items from the directory.
func (p *chapterPicker) refresh() tea.Cmd {
	chapters := p.dir.Chapters()
	p.chapters = chapters
	items := make([]list.Item, len(chapters))
	for i, c := range chapters {
		items[i] = chapterItem{chapter: c}
	}
	p.list.Filter = directoryFilter(p.dir, chapters)
	return p.list.SetItems(items)
}

// directoryFilter ranks targets by position. The list runs filters off the
// UI goroutine, so the closure only reads the chapters it was built with.
func directoryFilter(dir *directory.Directory, chapters []quran.Chapter) list.FilterFunc {
	return func(term string, targets []string) []list.Rank {
		matches := dir.Filter(term)
		wanted := make(map[int]bool, len(matches))
		for _, c := range matches {
			wanted[c.Number] = true
		}
		ranks := make([]list.Rank, 0, len(matches))
		for i := range targets {
			if i < len(chapters) && wanted[chapters[i].Number] {
				ranks = append(ranks, list.Rank{Index: i})
			}
		}
		return ranks
	}
}

func (p *chapterPicker) setSize(width, height int) {
	p.list.SetSize(width, height)
}

// focus moves the selection onto chapter n and clears any filter.
func (p *chapterPicker) focus(n int) {
	p.list.ResetFilter()
	for i, c := range p.chapters {
		if c.Number == n {
			p.list.Select(i)
			return
		}
	}
}

func (p *chapterPicker) filtering() bool {
	return p.list.FilterState() == list.Filtering
}

func (p *chapterPicker) filtered() bool {
	return p.list.FilterState() == list.FilterApplied
}

func (p *chapterPicker) selected() (quran.Chapter, bool) {
	item, ok := p.list.SelectedItem().(chapterItem)
	if !ok {
		return quran.Chapter{}, false
	}
	return item.chapter, true
}

func (p *chapterPicker) empty() bool {
	return len(p.chapters) == 0
}

func (p *chapterPicker) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	p.list, cmd = p.list.Update(msg)
	return cmd
}

func (p *chapterPicker) view() string {
	return p.list.View()
}
