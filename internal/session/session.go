// Package session owns the selected chapter, its verse list and the
// paginated view over it.
//
// A Session is not safe for concurrent use. It is mutated only from the UI
// loop; the network half of a chapter change runs through Fetch, which
// touches no session state, and its Result is committed with Apply.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/csheth/tilawah/internal/quran"
)

// PageSize is the number of entries per page.
const PageSize = 10

// Status is the loading state of the current chapter.
type Status int

const (
	StatusLoading Status = iota
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Source fetches one chapter's content. *quran.Client implements it.
type Source interface {
	Surah(ctx context.Context, number int) (quran.Surah, error)
}

// Request identifies one chapter fetch. Generation increases with every
// selection so results of abandoned selections can be told apart.
type Request struct {
	Chapter    int
	Generation uint64
}

// Result is the outcome of Fetch, ready to be committed with Apply.
type Result struct {
	Request
	Title  string
	Verses []quran.Verse
	Err    error
}

// Session is the chapter navigation and pagination state machine.
type Session struct {
	selected   int
	generation uint64
	title      string
	verses     []quran.Verse
	page       int
	status     Status
	err        error
}

// New returns a session positioned on chapter 1 in the loading state. Call
// SelectChapter to obtain the first Request.
func New() *Session {
	return &Session{selected: 1, page: 1, status: StatusLoading}
}

// Wrap maps any integer onto 1..quran.ChapterCount circularly.
func Wrap(n int) int {
	m := (n - 1) % quran.ChapterCount
	if m < 0 {
		m += quran.ChapterCount
	}
	return m + 1
}

// SelectChapter makes n (wrapped into range) current, clears the verses and
// title, resets the page and returns the fetch the caller must run.
func (s *Session) SelectChapter(n int) Request {
	s.generation++
	s.selected = Wrap(n)
	s.title = ""
	s.verses = nil
	s.page = 1
	s.status = StatusLoading
	s.err = nil
	return Request{Chapter: s.selected, Generation: s.generation}
}

// NextChapter selects the following chapter, wrapping 114 to 1.
func (s *Session) NextChapter() Request {
	return s.SelectChapter(s.selected%quran.ChapterCount + 1)
}

// PreviousChapter selects the preceding chapter, wrapping 1 to 114.
func (s *Session) PreviousChapter() Request {
	if s.selected == 1 {
		return s.SelectChapter(quran.ChapterCount)
	}
	return s.SelectChapter(s.selected - 1)
}

// Retry restarts the fetch for the current chapter after a failure.
func (s *Session) Retry() (Request, bool) {
	if s.status != StatusFailed {
		return Request{}, false
	}
	return s.SelectChapter(s.selected), true
}

// CanNextPage reports whether entries exist beyond the current page.
func (s *Session) CanNextPage() bool {
	return s.page*PageSize < len(s.verses)
}

// CanPreviousPage reports whether the current page is past the first.
func (s *Session) CanPreviousPage() bool {
	return s.page > 1
}

// NextPage advances one page; it is a no-op on the last page.
func (s *Session) NextPage() bool {
	if !s.CanNextPage() {
		return false
	}
	s.page++
	return true
}

// PreviousPage goes back one page; it is a no-op on the first page.
func (s *Session) PreviousPage() bool {
	if !s.CanPreviousPage() {
		return false
	}
	s.page--
	return true
}

// CurrentPageVerses returns a copy of the entries on the current page.
func (s *Session) CurrentPageVerses() []quran.Verse {
	start := (s.page - 1) * PageSize
	if start >= len(s.verses) {
		return nil
	}
	end := start + PageSize
	if end > len(s.verses) {
		end = len(s.verses)
	}
	out := make([]quran.Verse, end-start)
	copy(out, s.verses[start:end])
	return out
}

// PageCount is the number of pages for the loaded verses, 0 while empty.
func (s *Session) PageCount() int {
	return (len(s.verses) + PageSize - 1) / PageSize
}

// Apply commits r if it answers the current selection and reports whether
// it did. Results for abandoned selections are discarded.
func (s *Session) Apply(r Result) bool {
	if r.Generation != s.generation || r.Chapter != s.selected {
		return false
	}
	if r.Err != nil {
		s.status = StatusFailed
		s.err = r.Err
		s.title = ""
		s.verses = nil
		return true
	}
	s.title = r.Title
	s.verses = r.Verses
	s.page = 1
	s.status = StatusReady
	s.err = nil
	return true
}

func (s *Session) Selected() int { return s.selected }
func (s *Session) Title() string { return s.title }
func (s *Session) Page() int { return s.page }
func (s *Session) Status() Status { return s.status }
func (s *Session) Err() error { return s.err }
func (s *Session) Generation() uint64 { return s.generation }
func (s *Session) Len() int { return len(s.verses) }

// Verses returns a copy of the full verse sequence, placeholder included.
func (s *Session) Verses() []quran.Verse {
	return append([]quran.Verse(nil), s.verses...)
}

// Fetch runs req against src and shapes the answer into a Result. It does
// not touch any Session and may run on any goroutine.
func Fetch(ctx context.Context, src Source, req Request) Result {
	res := Result{Request: req}
	surah, err := src.Surah(ctx, req.Chapter)
	if err != nil {
		if !errors.Is(err, quran.ErrFetchFailed) {
			err = fmt.Errorf("%w: %w", quran.ErrFetchFailed, err)
		}
		res.Err = err
		return res
	}
	title := strings.TrimSpace(surah.Name)
	if title == "" {
		res.Err = fmt.Errorf("%w: %w: chapter %d has no name", quran.ErrFetchFailed, quran.ErrMalformedResponse, req.Chapter)
		return res
	}
	if len(surah.Verses) == 0 {
		res.Err = fmt.Errorf("%w: %w: chapter %d has no verses", quran.ErrFetchFailed, quran.ErrMalformedResponse, req.Chapter)
		return res
	}
	res.Title = title
	res.Verses = BuildVerses(req.Chapter, surah.Verses)
	return res
}

// BuildVerses numbers raw verses 1..n in response order and prepends the
// opener placeholder for every chapter but the first.
func BuildVerses(chapter int, raw []quran.VerseText) []quran.Verse {
	offset := 0
	if chapter != 1 {
		offset = 1
	}
	verses := make([]quran.Verse, 0, len(raw)+offset)
	if offset == 1 {
		verses = append(verses, quran.OpenerPlaceholder(chapter))
	}
	for i, v := range raw {
		verses = append(verses, quran.Verse{
			ChapterNumber:   chapter,
			Ordinal:         i + 1,
			OriginalText:    v.Arab,
			TranslationText: v.Translation,
		})
	}
	return verses
}
