package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"github.com/csheth/tilawah/internal/directory"
	"github.com/csheth/tilawah/internal/quran"
	"github.com/csheth/tilawah/internal/readaloud"
	"github.com/csheth/tilawah/internal/recitation"
	"github.com/csheth/tilawah/internal/session"
)

type fakeSource struct {
	verseCount map[int]int
	err        error
}

func (f *fakeSource) Surah(ctx context.Context, n int) (quran.Surah, error) {
	if f.err != nil {
		return quran.Surah{}, f.err
	}
	count, ok := f.verseCount[n]
	if !ok {
		count = 3
	}
	verses := make([]quran.VerseText, count)
	for i := range verses {
		verses[i] = quran.VerseText{Arab: fmt.Sprintf("آية %d", i+1), Translation: fmt.Sprintf("Verse %d of %d", i+1, n)}
	}
	return quran.Surah{Number: n, Name: fmt.Sprintf("Surah-%d", n), Verses: verses}, nil
}

type fakeFetcher struct {
	err error
}

func (f *fakeFetcher) Chapters(ctx context.Context) ([]quran.Chapter, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []quran.Chapter{
		{Number: 1, Name: "الفاتحة", Transliteration: "Al-Faatiha"},
		{Number: 2, Name: "البقرة", Transliteration: "Al-Baqara"},
		{Number: 3, Name: "آل عمران", Transliteration: "Aal-i-Imraan"},
		{Number: 114, Name: "الناس", Transliteration: "An-Naas"},
	}, nil
}

type quietResolver struct{}

func (quietResolver) Resolve(ctx context.Context, name string) (recitation.Recitation, error) {
	return recitation.Recitation{ID: 7, ReciterName: name}, nil
}

func (quietResolver) Stream(ctx context.Context, id, chapter int) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

type quietSpeaker struct{}

func (quietSpeaker) Speak(ctx context.Context, text string, lang language.Tag) error { return nil }

type quietPlayer struct{}

func (quietPlayer) Play(ctx context.Context, stream io.Reader) error { return nil }

func newTestModel(t *testing.T, src *fakeSource) *model {
	t.Helper()
	reader := readaloud.New(readaloud.Config{
		Resolver: quietResolver{},
		Speaker:  quietSpeaker{},
		Player:   quietPlayer{},
		Logger:   zerolog.Nop(),
	})
	m := newModel(Config{
		Directory:    directory.New(&fakeFetcher{}, zerolog.Nop()),
		Source:       src,
		Reader:       reader,
		StartChapter: 1,
		Logger:       zerolog.Nop(),
	})
	t.Cleanup(m.jobs.Shutdown)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m
}

// deliver runs the fetch for req synchronously and feeds the result back.
func deliver(m *model, src session.Source, req session.Request) {
	m.Update(surahResultMsg{result: session.Fetch(context.Background(), src, req)})
}

func currentRequest(m *model) session.Request {
	return session.Request{Chapter: m.session.Selected(), Generation: m.session.Generation()}
}

func press(m *model, keys ...string) tea.Cmd {
	var cmd tea.Cmd
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "right":
			msg = tea.KeyMsg{Type: tea.KeyRight}
		case "left":
			msg = tea.KeyMsg{Type: tea.KeyLeft}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case "up":
			msg = tea.KeyMsg{Type: tea.KeyUp}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		_, cmd = m.Update(msg)
	}
	return cmd
}

func TestInitialChapterLoads(t *testing.T) {
	src := &fakeSource{}
	m := newTestModel(t, src)
	if m.session.Status() != session.StatusLoading || m.session.Selected() != 1 {
		t.Fatalf("unexpected initial state %v %d", m.session.Status(), m.session.Selected())
	}
	if cmd := m.Init(); cmd == nil {
		t.Fatal("init should start the directory and surah jobs")
	}

	deliver(m, src, m.pending)
	if m.session.Status() != session.StatusReady || m.session.Title() != "Surah-1" {
		t.Fatalf("surah not applied: %v %q", m.session.Status(), m.session.Title())
	}
	view := m.View()
	if strings.Contains(view, quran.Basmala) {
		t.Fatal("first surah must not render the opener")
	}
	if !strings.Contains(view, "Verse 1 of 1") || !strings.Contains(view, "﴿١﴾") {
		t.Fatalf("verses missing from view:\n%s", view)
	}
}

func TestNextChapterShowsOpener(t *testing.T) {
	src := &fakeSource{}
	m := newTestModel(t, src)
	deliver(m, src, m.pending)

	if cmd := press(m, "n"); cmd == nil {
		t.Fatal("next surah should start a fetch")
	}
	if m.session.Selected() != 2 || m.session.Status() != session.StatusLoading {
		t.Fatalf("unexpected state after next: %d %v", m.session.Selected(), m.session.Status())
	}
	if !strings.Contains(m.View(), "Loading surah 2") {
		t.Fatal("loading status not shown")
	}

	deliver(m, src, currentRequest(m))
	verses := m.session.CurrentPageVerses()
	if len(verses) != 4 || !verses[0].Opener {
		t.Fatalf("expected opener plus 3 verses, got %+v", verses)
	}
	if !strings.Contains(m.View(), quran.Basmala) {
		t.Fatal("opener should render the invocation")
	}
}

func TestPreviousChapterWrapsFromFirst(t *testing.T) {
	src := &fakeSource{}
	m := newTestModel(t, src)
	deliver(m, src, m.pending)

	press(m, "p")
	if m.session.Selected() != quran.ChapterCount {
		t.Fatalf("expected wrap to %d, got %d", quran.ChapterCount, m.session.Selected())
	}
}

func TestStaleSurahResultIsDiscarded(t *testing.T) {
	src := &fakeSource{}
	m := newTestModel(t, src)
	deliver(m, src, m.pending)

	press(m, "n")
	stale := currentRequest(m)
	press(m, "n")
	fresh := currentRequest(m)

	deliver(m, src, stale)
	if m.session.Status() != session.StatusLoading || m.session.Title() != "" {
		t.Fatalf("stale result applied: %v %q", m.session.Status(), m.session.Title())
	}
	deliver(m, src, fresh)
	if m.session.Selected() != 3 || m.session.Title() != "Surah-3" {
		t.Fatalf("fresh result not applied: %d %q", m.session.Selected(), m.session.Title())
	}
}

func TestFailedSurahOffersRetry(t *testing.T) {
	src := &fakeSource{err: errors.New("connection refused")}
	m := newTestModel(t, src)
	deliver(m, src, m.pending)

	if m.session.Status() != session.StatusFailed {
		t.Fatalf("expected failed status, got %v", m.session.Status())
	}
	view := m.View()
	if !strings.Contains(view, "Could not load surah 1") || !strings.Contains(view, "Press r to retry") {
		t.Fatalf("failure not surfaced:\n%s", view)
	}

	src.err = nil
	if cmd := press(m, "r"); cmd == nil {
		t.Fatal("retry should start a fetch")
	}
	if m.session.Status() != session.StatusLoading {
		t.Fatalf("retry did not return to loading, got %v", m.session.Status())
	}
	deliver(m, src, currentRequest(m))
	if m.session.Status() != session.StatusReady {
		t.Fatalf("retry did not recover, got %v", m.session.Status())
	}
}

func TestPageKeysRespectBounds(t *testing.T) {
	src := &fakeSource{verseCount: map[int]int{1: 25}}
	m := newTestModel(t, src)
	deliver(m, src, m.pending)

	press(m, "left")
	if m.session.Page() != 1 {
		t.Fatalf("previous page on page 1 should be a no-op, got %d", m.session.Page())
	}
	press(m, "down", "down")
	press(m, "right")
	if m.session.Page() != 2 || m.cursor != 0 {
		t.Fatalf("expected page 2 with cursor reset, got page %d cursor %d", m.session.Page(), m.cursor)
	}
	press(m, "right", "right")
	if m.session.Page() != 3 {
		t.Fatalf("next page past the end should be a no-op, got %d", m.session.Page())
	}
	if got := len(m.session.CurrentPageVerses()); got != 5 {
		t.Fatalf("expected 5 verses on the last page, got %d", got)
	}
	press(m, "left")
	if m.session.Page() != 2 {
		t.Fatalf("expected page 2, got %d", m.session.Page())
	}
}

func TestCursorStaysOnPage(t *testing.T) {
	src := &fakeSource{verseCount: map[int]int{1: 3}}
	m := newTestModel(t, src)
	deliver(m, src, m.pending)

	press(m, "up")
	if m.cursor != 0 {
		t.Fatalf("cursor moved above the page: %d", m.cursor)
	}
	press(m, "down", "down", "down", "down")
	if m.cursor != 2 {
		t.Fatalf("cursor moved past the page: %d", m.cursor)
	}
}

func TestReadAloudSkipsOpener(t *testing.T) {
	src := &fakeSource{}
	m := newTestModel(t, src)
	deliver(m, src, m.pending)
	press(m, "n")
	deliver(m, src, currentRequest(m))

	if cmd := press(m, "enter"); cmd != nil {
		t.Fatal("reading the opener should not start a job")
	}
	if m.reading {
		t.Fatal("opener must not start read-aloud")
	}

	press(m, "down")
	if cmd := press(m, "enter"); cmd == nil {
		t.Fatal("reading a verse should start a job")
	}
	if !m.reading || m.readVerse.Ordinal != 1 {
		t.Fatalf("unexpected read state %v %+v", m.reading, m.readVerse)
	}
}

func TestReadAloudCompletionAndSupersession(t *testing.T) {
	src := &fakeSource{}
	m := newTestModel(t, src)
	deliver(m, src, m.pending)

	press(m, "enter")
	first := m.readToken
	press(m, "down", "enter")
	second := m.readToken
	if second == first {
		t.Fatal("second read should take a new token")
	}

	m.Update(readAloudDoneMsg{token: first, err: context.Canceled})
	if !m.reading {
		t.Fatal("superseded completion cleared the active read")
	}

	m.Update(readProgressMsg{event: readaloud.Event{Step: readaloud.StepRecitation, Verse: m.readVerse}})
	if m.readStep != readaloud.StepRecitation {
		t.Fatalf("progress not applied, got %v", m.readStep)
	}
	if !strings.Contains(m.View(), "playing recitation") {
		t.Fatal("read step missing from status line")
	}

	m.Update(readAloudDoneMsg{token: second, verse: m.readVerse})
	if m.reading || !strings.Contains(m.infoMessage, "Finished verse 2") {
		t.Fatalf("completion not applied: %v %q", m.reading, m.infoMessage)
	}
}

func TestReadAloudErrorsAreShown(t *testing.T) {
	src := &fakeSource{}
	m := newTestModel(t, src)
	deliver(m, src, m.pending)

	press(m, "enter")
	err := fmt.Errorf("%w: %w", readaloud.ErrRecitationUnavailable, recitation.ErrReciterNotFound)
	m.Update(readAloudDoneMsg{token: m.readToken, verse: m.readVerse, err: err})
	if !strings.Contains(m.errorMessage, "No recitation by") {
		t.Fatalf("unexpected error message %q", m.errorMessage)
	}
}

func TestPickerSelectsChapter(t *testing.T) {
	src := &fakeSource{}
	m := newTestModel(t, src)
	deliver(m, src, m.pending)

	press(m, "g")
	if m.stage != stageReading || !strings.Contains(m.infoMessage, "still loading") {
		t.Fatalf("picker opened before directory loaded: %v %q", m.stage, m.infoMessage)
	}

	if err := m.config.Directory.Load(context.Background()); err != nil {
		t.Fatalf("directory load: %v", err)
	}
	m.Update(directoryLoadedMsg{})
	press(m, "g")
	if m.stage != stagePicker {
		t.Fatalf("picker did not open, stage %v", m.stage)
	}
	if !strings.Contains(m.View(), "Al-Baqara") {
		t.Fatal("picker does not list chapters")
	}

	press(m, "down")
	if cmd := press(m, "enter"); cmd == nil {
		t.Fatal("selecting a chapter should start a fetch")
	}
	if m.stage != stageReading || m.session.Selected() != 2 {
		t.Fatalf("unexpected state after pick: %v %d", m.stage, m.session.Selected())
	}

	press(m, "g", "esc")
	if m.stage != stageReading {
		t.Fatal("esc should close the picker")
	}
}

func TestDirectoryFailureOffersRetry(t *testing.T) {
	src := &fakeSource{}
	m := newTestModel(t, src)
	deliver(m, src, m.pending)
	m.config.Directory = directory.New(&fakeFetcher{err: errors.New("timeout")}, zerolog.Nop())
	m.picker = newChapterPicker(m.config.Directory)

	err := m.config.Directory.Load(context.Background())
	m.Update(directoryLoadedMsg{err: err})
	if !strings.Contains(m.errorMessage, "Surah list unavailable") {
		t.Fatalf("directory failure not shown: %q", m.errorMessage)
	}
	press(m, "g")
	if m.stage != stageReading {
		t.Fatal("picker opened without chapters")
	}
	if cmd := press(m, "r"); cmd == nil {
		t.Fatal("retry should reload the directory")
	}
}

func TestJobEnvelopeDispatchesPayload(t *testing.T) {
	src := &fakeSource{}
	m := newTestModel(t, src)
	snapshot := jobSnapshot{ID: "surah-1", Kind: jobKindSurah, Status: jobStatusRunning}
	m.Update(jobSignalMsg{Snapshot: snapshot})
	if badges := m.jobStatusBadges(); len(badges) != 1 || badges[0] != "surah" {
		t.Fatalf("unexpected badges %v", badges)
	}

	result := session.Fetch(context.Background(), src, m.pending)
	snapshot.Status = jobStatusSucceeded
	m.Update(jobResultEnvelope{Snapshot: snapshot, Payload: surahResultMsg{result: result}})
	if len(m.activeJobs) != 0 {
		t.Fatalf("job not cleared: %v", m.activeJobs)
	}
	if m.session.Status() != session.StatusReady {
		t.Fatalf("payload not applied, status %v", m.session.Status())
	}
}

func TestQuitStopsEverything(t *testing.T) {
	m := newTestModel(t, &fakeSource{})
	cmd := press(m, "q")
	if cmd == nil {
		t.Fatal("quit should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("quit command should produce tea.QuitMsg")
	}
	if m.jobs.ctx.Err() == nil {
		t.Fatal("quit should cancel running jobs")
	}
	if m.View() != "" {
		t.Fatal("view should be empty after quit")
	}
}

func TestHelpToggle(t *testing.T) {
	src := &fakeSource{}
	m := newTestModel(t, src)
	deliver(m, src, m.pending)

	press(m, "?")
	if !m.helpVisible || !strings.Contains(m.View(), "Key Map") {
		t.Fatal("help overlay not shown")
	}
	press(m, "esc")
	if m.helpVisible {
		t.Fatal("esc should hide help")
	}
}
