package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/tilawah/internal/directory"
	"github.com/csheth/tilawah/internal/quran"
	"github.com/csheth/tilawah/internal/readaloud"
	"github.com/csheth/tilawah/internal/session"
)

const (
	directoryTimeout = 30 * time.Second
	surahTimeout     = 30 * time.Second
)

type directoryLoadedMsg struct {
	err error
}

type surahResultMsg struct {
	result session.Result
}

type readAloudDoneMsg struct {
	token int
	verse quran.Verse
	err   error
}

type readProgressMsg struct {
	event readaloud.Event
}

func loadDirectoryJob(dir *directory.Directory) jobRunner {
	return func(ctx context.Context) (tea.Msg, error) {
		err := dir.Load(ctx)
		return directoryLoadedMsg{err: err}, err
	}
}

func fetchSurahJob(src session.Source, req session.Request) jobRunner {
	return func(ctx context.Context) (tea.Msg, error) {
		result := session.Fetch(ctx, src, req)
		return surahResultMsg{result: result}, result.Err
	}
}

func readAloudJob(reader *readaloud.Orchestrator, token int, verse quran.Verse) jobRunner {
	return func(ctx context.Context) (tea.Msg, error) {
		err := reader.Read(ctx, verse)
		return readAloudDoneMsg{token: token, verse: verse, err: err}, err
	}
}

// waitForProgress delivers the next read-aloud step event. It is re-armed
// after every delivery.
func waitForProgress(events <-chan readaloud.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return nil
		}
		return readProgressMsg{event: event}
	}
}
