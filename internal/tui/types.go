package tui

import (
	"fmt"

	"github.com/csheth/tilawah/internal/quran"
)

type stage int

const (
	stageReading stage = iota
	stagePicker
)

const heroTagline = "Read, listen, and move through the Quran surah by surah."

const (
	minViewportWidth          = 40
	minViewportHeight         = 5
	viewportHorizontalPadding = 4
	headerHeight              = 2
	footerHeight              = 2
	progressBuffer            = 16
)

// chapterItem adapts a directory entry to the picker list.
type chapterItem struct {
	chapter quran.Chapter
}

func (i chapterItem) Title() string { return i.chapter.Label() }

func (i chapterItem) Description() string {
	return fmt.Sprintf("Surah %s", quran.ArabicIndic(i.chapter.Number))
}

func (i chapterItem) FilterValue() string { return i.chapter.Label() }
