package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/csheth/tilawah/internal/quran"
	"github.com/csheth/tilawah/internal/session"
)

func (m *model) View() string {
	if m.quitting {
		return ""
	}
	var body string
	switch {
	case m.stage == stagePicker:
		body = m.picker.view()
	case m.helpVisible:
		body = m.helpView()
	default:
		m.refreshViewportIfDirty()
		body = m.viewport.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.headerView(), body, m.statusLine(), m.footerView())
}

func (m *model) headerView() string {
	title := lipgloss.JoinHorizontal(lipgloss.Top, brandStyle.Render("Tilawah"), " ", heroTitleStyle.Render(m.chapterTitle()))
	meta := []string{fmt.Sprintf("Surah %d of %d", m.session.Selected(), quran.ChapterCount)}
	if m.session.Status() == session.StatusReady {
		meta = append(meta, fmt.Sprintf("Page %d/%d", m.session.Page(), m.session.PageCount()))
	}
	if m.config.Reader != nil {
		meta = append(meta, "Reciter "+m.config.Reader.Reciter())
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, helperStyle.Render(strings.Join(meta, "  •  ")))
}

// chapterTitle prefers the loaded title, then the directory label, then
// the bare number.
func (m *model) chapterTitle() string {
	if title := m.session.Title(); title != "" {
		return title
	}
	if chapter, ok := m.config.Directory.Select(m.session.Selected()); ok {
		return chapter.Label()
	}
	return fmt.Sprintf("Surah %d", m.session.Selected())
}

func (m *model) statusLine() string {
	var line string
	switch {
	case m.session.Status() == session.StatusLoading:
		line = fmt.Sprintf("%s Loading surah %d…", m.spinner.View(), m.session.Selected())
	case m.session.Status() == session.StatusFailed:
		line = errorStyle.Render(fmt.Sprintf("Could not load surah %d: %v", m.session.Selected(), m.session.Err())) +
			helperStyle.Render("  Press r to retry.")
	case m.reading:
		line = fmt.Sprintf("%s %s, verse %d: %s", m.spinner.View(), m.readStep, m.readVerse.Ordinal,
			previewText(m.readVerse.TranslationText, 40))
	case m.errorMessage != "":
		line = errorStyle.Render(m.errorMessage)
		if m.infoMessage != "" {
			line += helperStyle.Render("  " + m.infoMessage)
		}
	default:
		line = helperStyle.Render(m.infoMessage)
	}
	if badges := m.jobStatusBadges(); len(badges) > 0 {
		line = lipgloss.JoinHorizontal(lipgloss.Top, line, "  ", statusBarStyle.Render(strings.Join(badges, "  •  ")))
	}
	return line
}

func (m *model) jobStatusBadges() []string {
	if len(m.activeJobs) == 0 {
		return nil
	}
	counts := map[jobKind]int{}
	for _, snapshot := range m.activeJobs {
		counts[snapshot.Kind]++
	}
	badges := make([]string, 0, len(counts))
	for kind, n := range counts {
		if n > 1 {
			badges = append(badges, fmt.Sprintf("%s ×%d", kind, n))
			continue
		}
		badges = append(badges, string(kind))
	}
	sort.Strings(badges)
	return badges
}

func (m *model) footerView() string {
	if m.stage == stagePicker {
		return helperStyle.Render("enter open • / filter • esc back")
	}
	m.syncKeys()
	return m.help.View(m.keys)
}

func (m *model) helpView() string {
	width := wrapWidth(m.viewport.Width, 8)
	lines := []string{
		sectionHeader.Render("Key Map"),
		m.help.FullHelpView(m.keys.FullHelp()),
		"",
		helperStyle.Render(wordwrap.String("Pages hold ten entries. Surahs other than the first open with the invocation, which is shown but not read aloud.", width)),
		helperStyle.Render(wordwrap.String("Read-aloud speaks the verse, then its translation, then plays the surah recitation. Starting another verse stops the current one.", width)),
		taglineStyle.Render(heroTagline),
	}
	return helpBoxStyle.Render(strings.Join(lines, "\n"))
}
