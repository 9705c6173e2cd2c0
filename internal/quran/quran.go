// Package quran holds the chapter/verse model and the client for the
// content API that serves it.
package quran

import (
	"errors"
	"strconv"
	"strings"
)

// ChapterCount is the number of chapters; chapter numbers run 1..ChapterCount.
const ChapterCount = 114

// Basmala is the invocation phrase shown in place of the opener placeholder.
const Basmala = "بِسْمِ اللَّهِ الرَّحْمَٰنِ الرَّحِيمِ"

var (
	// ErrFetchFailed marks transport failures and unusable responses from
	// the remote services.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrMalformedResponse is wrapped together with ErrFetchFailed when a
	// response decodes but lacks required fields.
	ErrMalformedResponse = errors.New("malformed response")
)

// Chapter is one entry of the chapter directory.
type Chapter struct {
	Number          int
	Name            string
	Transliteration string
}

// Label is the directory display string, "12. Yusuf (يوسف)" style.
func (c Chapter) Label() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(c.Number))
	b.WriteString(". ")
	switch {
	case c.Transliteration != "" && c.Name != "":
		b.WriteString(c.Transliteration)
		b.WriteString(" (")
		b.WriteString(c.Name)
		b.WriteString(")")
	case c.Transliteration != "":
		b.WriteString(c.Transliteration)
	default:
		b.WriteString(c.Name)
	}
	return b.String()
}

// Verse is one entry of a chapter's verse sequence. The opener placeholder
// is a Verse with Opener set and every other field except ChapterNumber
// zero.
type Verse struct {
	ChapterNumber   int
	Ordinal         int
	OriginalText    string
	TranslationText string
	Opener          bool
}

// OpenerPlaceholder returns the synthetic entry prepended to every chapter
// except the first.
func OpenerPlaceholder(chapter int) Verse {
	return Verse{ChapterNumber: chapter, Opener: true}
}

// HasText reports whether the verse carries original-language text.
func (v Verse) HasText() bool {
	return !v.Opener && strings.TrimSpace(v.OriginalText) != ""
}

// DisplayOrdinal renders the ordinal in Arabic-Indic digits. The opener has
// no ordinal and renders as "".
func (v Verse) DisplayOrdinal() string {
	if v.Opener || v.Ordinal <= 0 {
		return ""
	}
	return ArabicIndic(v.Ordinal)
}

// VerseText is a verse as the content API returns it, before ordinals are
// assigned.
type VerseText struct {
	Arab        string
	Translation string
}

// Surah is the content API's answer for one chapter.
type Surah struct {
	Number int
	Name   string
	Verses []VerseText
}

// ValidChapter reports whether n is a chapter number.
func ValidChapter(n int) bool {
	return n >= 1 && n <= ChapterCount
}
