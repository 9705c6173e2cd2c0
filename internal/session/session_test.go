package session

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/csheth/tilawah/internal/quran"
)

type fakeSource struct {
	surahs map[int]quran.Surah
	err    error
	calls  []int
}

func (f *fakeSource) Surah(ctx context.Context, number int) (quran.Surah, error) {
	f.calls = append(f.calls, number)
	if f.err != nil {
		return quran.Surah{}, f.err
	}
	if s, ok := f.surahs[number]; ok {
		return s, nil
	}
	return makeSurah(number, 3), nil
}

func makeSurah(number, verses int) quran.Surah {
	raw := make([]quran.VerseText, verses)
	for i := range raw {
		raw[i] = quran.VerseText{
			Arab:        fmt.Sprintf("آية %d:%d", number, i+1),
			Translation: fmt.Sprintf("verse %d:%d", number, i+1),
		}
	}
	return quran.Surah{Number: number, Name: fmt.Sprintf("سورة %d", number), Verses: raw}
}

// load selects n and commits a synchronous fetch of it.
func load(t *testing.T, s *Session, src Source, n int) {
	t.Helper()
	req := s.SelectChapter(n)
	if !s.Apply(Fetch(context.Background(), src, req)) {
		t.Fatalf("fresh result for chapter %d was not applied", n)
	}
}

func TestWrapNavigationAcrossAllChapters(t *testing.T) {
	t.Parallel()

	for n := 1; n <= quran.ChapterCount; n++ {
		s := New()
		s.SelectChapter(n)
		next := s.NextChapter()
		want := n + 1
		if n == quran.ChapterCount {
			want = 1
		}
		if next.Chapter != want || s.Selected() != want {
			t.Fatalf("next from %d = %d, want %d", n, next.Chapter, want)
		}

		s.SelectChapter(n)
		prev := s.PreviousChapter()
		want = n - 1
		if n == 1 {
			want = quran.ChapterCount
		}
		if prev.Chapter != want || s.Selected() != want {
			t.Fatalf("previous from %d = %d, want %d", n, prev.Chapter, want)
		}
	}
}

func TestWrap(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want int }{
		{1, 1}, {114, 114}, {115, 1}, {0, 114}, {-1, 113}, {229, 1},
	}
	for _, tt := range tests {
		if got := Wrap(tt.in); got != tt.want {
			t.Fatalf("Wrap(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSelectChapterEntersLoadingState(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	s := New()
	load(t, s, src, 3)
	s.NextPage()

	req := s.SelectChapter(4)
	if req.Chapter != 4 || req.Generation != s.Generation() {
		t.Fatalf("unexpected request: %#v", req)
	}
	if s.Status() != StatusLoading || s.Len() != 0 || s.Title() != "" || s.Page() != 1 {
		t.Fatalf("selection did not reset state: status=%v len=%d title=%q page=%d", s.Status(), s.Len(), s.Title(), s.Page())
	}
}

func TestOpenerPlaceholderOnlyOutsideFirstChapter(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	for n := 1; n <= quran.ChapterCount; n++ {
		s := New()
		load(t, s, src, n)
		verses := s.Verses()
		openers := 0
		for _, v := range verses {
			if v.Opener {
				openers++
			}
		}
		if n == 1 {
			if openers != 0 {
				t.Fatalf("chapter 1 has %d placeholders", openers)
			}
			continue
		}
		if openers != 1 || !verses[0].Opener {
			t.Fatalf("chapter %d: placeholder count %d, first=%#v", n, openers, verses[0])
		}
	}
}

func TestOrdinalsAreDenseFromOne(t *testing.T) {
	t.Parallel()

	verses := BuildVerses(5, makeSurah(5, 12).Verses)
	if len(verses) != 13 {
		t.Fatalf("expected 13 entries, got %d", len(verses))
	}
	for i, v := range verses[1:] {
		if v.Ordinal != i+1 {
			t.Fatalf("entry %d has ordinal %d", i+1, v.Ordinal)
		}
		if v.ChapterNumber != 5 {
			t.Fatalf("entry %d has chapter %d", i+1, v.ChapterNumber)
		}
	}
}

func TestChapterTwoWithSevenVersesFitsOnePage(t *testing.T) {
	t.Parallel()

	src := &fakeSource{surahs: map[int]quran.Surah{2: makeSurah(2, 7)}}
	s := New()
	load(t, s, src, 2)

	if s.Len() != 8 {
		t.Fatalf("expected 8 entries (placeholder + 7), got %d", s.Len())
	}
	if s.PageCount() != 1 {
		t.Fatalf("expected 1 page, got %d", s.PageCount())
	}
	if got := len(s.CurrentPageVerses()); got != 8 {
		t.Fatalf("page holds %d entries, want 8", got)
	}
	if s.CanNextPage() || s.CanPreviousPage() {
		t.Fatal("both page moves should be disabled")
	}
	if s.NextPage() || s.PreviousPage() {
		t.Fatal("page moves should be no-ops")
	}
	if s.Page() != 1 {
		t.Fatalf("page moved to %d", s.Page())
	}
}

func TestPaginationBounds(t *testing.T) {
	t.Parallel()

	for _, count := range []int{1, 9, 10, 11, 23, 286} {
		count := count
		t.Run(fmt.Sprintf("%d verses", count), func(t *testing.T) {
			t.Parallel()
			src := &fakeSource{surahs: map[int]quran.Surah{3: makeSurah(3, count)}}
			s := New()
			load(t, s, src, 3)
			total := count + 1

			if s.PreviousPage() {
				t.Fatal("previous page should be a no-op on page 1")
			}
			seen := 0
			for {
				page := s.CurrentPageVerses()
				if len(page) > PageSize {
					t.Fatalf("page %d holds %d entries", s.Page(), len(page))
				}
				seen += len(page)
				if !s.NextPage() {
					break
				}
			}
			if seen != total {
				t.Fatalf("pages covered %d entries, want %d", seen, total)
			}
			last := len(s.CurrentPageVerses())
			want := total % PageSize
			if want == 0 {
				want = PageSize
			}
			if last != want {
				t.Fatalf("last page holds %d entries, want %d", last, want)
			}
			if s.Page() != s.PageCount() {
				t.Fatalf("stopped on page %d of %d", s.Page(), s.PageCount())
			}
			page := s.Page()
			if s.NextPage() || s.Page() != page {
				t.Fatal("next page should be a no-op on the last page")
			}
		})
	}
}

func TestCurrentPageVersesIsACopy(t *testing.T) {
	t.Parallel()

	s := New()
	load(t, s, &fakeSource{}, 1)
	page := s.CurrentPageVerses()
	page[0].OriginalText = "mutated"
	if s.CurrentPageVerses()[0].OriginalText == "mutated" {
		t.Fatal("page view shares storage with the session")
	}
}

func TestStaleFetchIsDiscarded(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	s := New()
	stale := s.SelectChapter(10)
	fresh := s.SelectChapter(11)

	staleResult := Fetch(context.Background(), src, stale)
	freshResult := Fetch(context.Background(), src, fresh)

	if !s.Apply(freshResult) {
		t.Fatal("fresh result was not applied")
	}
	if s.Apply(staleResult) {
		t.Fatal("stale result was applied")
	}
	if s.Selected() != 11 || s.Title() != "سورة 11" {
		t.Fatalf("session reflects %d/%q, want chapter 11", s.Selected(), s.Title())
	}
	for _, v := range s.Verses() {
		if v.ChapterNumber != 11 {
			t.Fatalf("verse from chapter %d leaked into chapter 11", v.ChapterNumber)
		}
	}
}

func TestStaleFetchArrivingFirstIsDiscarded(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	s := New()
	stale := s.SelectChapter(10)
	fresh := s.SelectChapter(11)

	if s.Apply(Fetch(context.Background(), src, stale)) {
		t.Fatal("stale result was applied")
	}
	if s.Status() != StatusLoading || s.Len() != 0 {
		t.Fatalf("stale result changed state: status=%v len=%d", s.Status(), s.Len())
	}
	if !s.Apply(Fetch(context.Background(), src, fresh)) {
		t.Fatal("fresh result was not applied")
	}
}

func TestReselectingSameChapterDiscardsOlderFetch(t *testing.T) {
	t.Parallel()

	s := New()
	first := s.SelectChapter(7)
	s.SelectChapter(8)
	s.SelectChapter(7)
	if s.Apply(Fetch(context.Background(), &fakeSource{}, first)) {
		t.Fatal("result from an earlier selection of the same chapter was applied")
	}
}

func TestFetchFailureEntersFailedStateAndRetries(t *testing.T) {
	t.Parallel()

	transport := fmt.Errorf("%w: connection refused", quran.ErrFetchFailed)
	src := &fakeSource{err: transport}
	s := New()
	req := s.SelectChapter(12)
	if !s.Apply(Fetch(context.Background(), src, req)) {
		t.Fatal("failure result was not applied")
	}
	if s.Status() != StatusFailed || !errors.Is(s.Err(), quran.ErrFetchFailed) {
		t.Fatalf("unexpected state: status=%v err=%v", s.Status(), s.Err())
	}
	if s.Len() != 0 || s.Title() != "" {
		t.Fatal("failure committed partial data")
	}

	src.err = nil
	retry, ok := s.Retry()
	if !ok || retry.Chapter != 12 {
		t.Fatalf("retry = %#v, %v", retry, ok)
	}
	if !s.Apply(Fetch(context.Background(), src, retry)) || s.Status() != StatusReady {
		t.Fatalf("retry did not recover, status=%v", s.Status())
	}
	if _, ok := s.Retry(); ok {
		t.Fatal("retry should only be offered after a failure")
	}
}

func TestFetchRejectsIncompleteContent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		surah quran.Surah
	}{
		{"no name", quran.Surah{Verses: []quran.VerseText{{Arab: "x"}}}},
		{"blank name", quran.Surah{Name: "  ", Verses: []quran.VerseText{{Arab: "x"}}}},
		{"no verses", quran.Surah{Name: "سورة"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			src := &fakeSource{surahs: map[int]quran.Surah{4: tt.surah}}
			s := New()
			req := s.SelectChapter(4)
			res := Fetch(context.Background(), src, req)
			if !errors.Is(res.Err, quran.ErrMalformedResponse) {
				t.Fatalf("expected ErrMalformedResponse, got %v", res.Err)
			}
			s.Apply(res)
			if s.Len() != 0 || s.Title() != "" {
				t.Fatal("incomplete content was committed")
			}
		})
	}
}

func TestStatusString(t *testing.T) {
	t.Parallel()
	if StatusReady.String() != "ready" || StatusFailed.String() != "failed" || StatusLoading.String() != "loading" {
		t.Fatal("unexpected status names")
	}
}
