package tui

import (
	"strings"

	"github.com/muesli/reflow/wordwrap"

	"github.com/csheth/tilawah/internal/quran"
)

type pageLayout struct {
	windowWidth    int
	windowHeight   int
	viewportWidth  int
	viewportHeight int
}

func newPageLayout() pageLayout {
	return pageLayout{
		viewportWidth:  80,
		viewportHeight: 20,
	}
}

func (l *pageLayout) Update(width, height int) {
	l.windowWidth = width
	l.windowHeight = height
	innerWidth := width - viewportHorizontalPadding
	if innerWidth < minViewportWidth {
		innerWidth = minViewportWidth
	}
	l.viewportWidth = innerWidth
	contentHeight := height - headerHeight - footerHeight
	if contentHeight < minViewportHeight {
		contentHeight = minViewportHeight
	}
	l.viewportHeight = contentHeight
}

// renderedPage is the verse pane content plus the first line of every
// entry, used to keep the cursor in view.
type renderedPage struct {
	content    string
	entryLines []int
}

type contentBuilder struct {
	builder strings.Builder
	lines   int
}

func (cb *contentBuilder) WriteString(s string) {
	cb.builder.WriteString(s)
	cb.lines += strings.Count(s, "\n")
}

func (cb *contentBuilder) WriteRune(r rune) {
	cb.builder.WriteRune(r)
	if r == '\n' {
		cb.lines++
	}
}

func (cb *contentBuilder) String() string {
	return cb.builder.String()
}

func (cb *contentBuilder) Line() int {
	return cb.lines
}

// renderPage lays out one page of verses. The opener placeholder renders
// as the invocation phrase; every other entry shows its Arabic-Indic
// ordinal, the original text and the translation beneath it.
func renderPage(verses []quran.Verse, cursor, width int) renderedPage {
	cb := &contentBuilder{}
	lines := make([]int, 0, len(verses))
	wrap := wrapWidth(width, 6)
	for idx, verse := range verses {
		if idx > 0 {
			cb.WriteRune('\n')
		}
		lines = append(lines, cb.Line())
		marker := "  "
		if idx == cursor {
			marker = cursorStyle.Render("▸ ")
		}
		if verse.Opener {
			cb.WriteString(marker)
			cb.WriteString(basmalaStyle.Render(quran.Basmala))
			cb.WriteRune('\n')
			continue
		}

		cb.WriteString(marker)
		cb.WriteString(ordinalStyle.Render("﴿" + verse.DisplayOrdinal() + "﴾"))
		cb.WriteRune(' ')
		original := wordwrap.String(verse.OriginalText, wrap)
		if idx == cursor {
			original = currentVerseStyle.Render(original)
		} else {
			original = verseStyle.Render(original)
		}
		cb.WriteString(indentFollowing(original, "      "))
		cb.WriteRune('\n')
		if verse.TranslationText != "" {
			translation := wordwrap.String(verse.TranslationText, wrap)
			cb.WriteString(translationStyle.Render(indentMultiline(translation, "      ")))
			cb.WriteRune('\n')
		}
	}
	return renderedPage{content: cb.String(), entryLines: lines}
}

func indentMultiline(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

// indentFollowing indents every line but the first, which already sits
// after the ordinal.
func indentFollowing(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i := 1; i < len(lines); i++ {
		lines[i] = prefix + lines[i]
	}
	return strings.Join(lines, "\n")
}

func wrapWidth(width, padding int) int {
	if width <= 0 {
		width = 80
	}
	if padding < 0 {
		padding = 0
	}
	available := width - padding
	if available < 20 {
		available = 20
	}
	return available
}

func previewText(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return strings.TrimSpace(string(runes[:limit])) + "…"
}
