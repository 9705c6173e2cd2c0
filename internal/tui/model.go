package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/csheth/tilawah/internal/directory"
	"github.com/csheth/tilawah/internal/quran"
	"github.com/csheth/tilawah/internal/readaloud"
	"github.com/csheth/tilawah/internal/session"
)

// Config wires runtime options into the TUI program.
type Config struct {
	Directory    *directory.Directory
	Source       session.Source
	Reader       *readaloud.Orchestrator
	StartChapter int
	Logger       zerolog.Logger
}

// New returns a tea.Model ready to be mounted into a Program.
func New(config Config) tea.Model {
	return newModel(config)
}

func newModel(config Config) *model {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = spinnerStyle

	vp := viewport.New(80, 20)
	vp.MouseWheelEnabled = true

	m := &model{
		config:        config,
		log:           config.Logger.With().Str("component", "tui").Logger(),
		stage:         stageReading,
		jobs:          newJobBus(config.Logger),
		keys:          newKeyMap(),
		help:          help.New(),
		spinner:       spin,
		viewport:      vp,
		picker:        newChapterPicker(config.Directory),
		layout:        newPageLayout(),
		session:       session.New(),
		progress:      make(chan readaloud.Event, progressBuffer),
		activeJobs:    map[string]jobSnapshot{},
		viewportDirty: true,
	}

	start := config.StartChapter
	if !quran.ValidChapter(start) {
		start = 1
	}
	m.pending = m.session.SelectChapter(start)

	if config.Reader != nil {
		events := m.progress
		config.Reader.OnProgress(func(e readaloud.Event) {
			select {
			case events <- e:
			default:
			}
		})
	}
	return m
}

type model struct {
	config Config
	log    zerolog.Logger
	stage  stage
	jobs   *jobBus

	keys     keyMap
	help     help.Model
	spinner  spinner.Model
	viewport viewport.Model
	picker   *chapterPicker
	layout   pageLayout

	session       *session.Session
	pending       session.Request
	cursor        int
	page          renderedPage
	viewportDirty bool

	progress  chan readaloud.Event
	readToken int
	reading   bool
	readStep  readaloud.Step
	readVerse quran.Verse

	activeJobs   map[string]jobSnapshot
	infoMessage  string
	errorMessage string
	helpVisible  bool
	quitting     bool
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(
		m.jobs.Start(jobKindDirectory, directoryTimeout, loadDirectoryJob(m.config.Directory)),
		m.fetchCmd(m.pending),
		m.spinner.Tick,
		waitForProgress(m.progress),
	)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout.Update(msg.Width, msg.Height)
		m.viewport.Width = m.layout.viewportWidth
		m.viewport.Height = m.layout.viewportHeight
		m.picker.setSize(m.layout.viewportWidth, m.layout.viewportHeight)
		m.help.Width = msg.Width
		m.markViewportDirty()
		return m, nil
	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case jobSignalMsg:
		m.activeJobs[msg.Snapshot.ID] = msg.Snapshot
		return m, nil
	case jobResultEnvelope:
		delete(m.activeJobs, msg.Snapshot.ID)
		if msg.Payload == nil {
			return m, nil
		}
		return m.Update(msg.Payload)
	case directoryLoadedMsg:
		return m, m.handleDirectoryLoaded(msg)
	case surahResultMsg:
		m.handleSurahResult(msg)
		return m, nil
	case readProgressMsg:
		m.handleReadProgress(msg.event)
		return m, waitForProgress(m.progress)
	case readAloudDoneMsg:
		m.handleReadAloudDone(msg)
		return m, nil
	case tea.MouseMsg:
		if m.stage == stageReading {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	// Filter results and other list traffic.
	return m, m.picker.update(msg)
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, m.quit()
	}
	if m.stage == stagePicker {
		return m.handlePickerKey(msg)
	}

	m.syncKeys()
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, m.quit()
	case key.Matches(msg, m.keys.Help):
		m.helpVisible = !m.helpVisible
		return m, nil
	case msg.Type == tea.KeyEsc:
		m.helpVisible = false
		return m, nil
	case key.Matches(msg, m.keys.NextChapter):
		return m, m.startChapter(m.session.NextChapter())
	case key.Matches(msg, m.keys.PrevChapter):
		return m, m.startChapter(m.session.PreviousChapter())
	case key.Matches(msg, m.keys.NextPage):
		if m.session.NextPage() {
			m.resetPagePosition()
		}
		return m, nil
	case key.Matches(msg, m.keys.PrevPage):
		if m.session.PreviousPage() {
			m.resetPagePosition()
		}
		return m, nil
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
		return m, nil
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
		return m, nil
	case key.Matches(msg, m.keys.Read):
		return m, m.readAloud()
	case key.Matches(msg, m.keys.Stop):
		m.stopReading()
		return m, nil
	case key.Matches(msg, m.keys.Chapters):
		m.openPicker()
		return m, nil
	case key.Matches(msg, m.keys.Retry):
		return m, m.retry()
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.picker.filtering() {
		return m, m.picker.update(msg)
	}
	switch msg.String() {
	case "esc":
		if m.picker.filtered() {
			return m, m.picker.update(msg)
		}
		m.stage = stageReading
		return m, nil
	case "q":
		m.stage = stageReading
		return m, nil
	case "enter":
		picked, ok := m.picker.selected()
		if !ok {
			return m, nil
		}
		chapter, ok := m.config.Directory.Select(picked.Number)
		if !ok {
			return m, nil
		}
		m.stage = stageReading
		return m, m.startChapter(m.session.SelectChapter(chapter.Number))
	}
	return m, m.picker.update(msg)
}

// syncKeys mirrors availability onto the bindings so the help line hides
// actions that would do nothing.
func (m *model) syncKeys() {
	ready := m.session.Status() == session.StatusReady
	m.keys.NextPage.SetEnabled(m.session.CanNextPage())
	m.keys.PrevPage.SetEnabled(m.session.CanPreviousPage())
	m.keys.Up.SetEnabled(ready)
	m.keys.Down.SetEnabled(ready)
	m.keys.Read.SetEnabled(ready && m.config.Reader != nil)
	m.keys.Stop.SetEnabled(m.reading)
	m.keys.Retry.SetEnabled(m.session.Status() == session.StatusFailed || m.config.Directory.Status() == directory.StatusFailed)
}

func (m *model) fetchCmd(req session.Request) tea.Cmd {
	return m.jobs.Start(jobKindSurah, surahTimeout, fetchSurahJob(m.config.Source, req))
}

func (m *model) startChapter(req session.Request) tea.Cmd {
	m.log.Debug().Int("chapter", req.Chapter).Uint64("generation", req.Generation).Msg("selecting surah")
	m.errorMessage = ""
	m.infoMessage = ""
	m.resetPagePosition()
	return tea.Batch(m.fetchCmd(req), m.spinner.Tick)
}

func (m *model) resetPagePosition() {
	m.cursor = 0
	m.viewport.GotoTop()
	m.markViewportDirty()
}

func (m *model) handleSurahResult(msg surahResultMsg) {
	result := msg.result
	if !m.session.Apply(result) {
		m.log.Debug().Int("chapter", result.Chapter).Uint64("generation", result.Generation).Msg("discarded stale surah result")
		return
	}
	if result.Err != nil {
		m.infoMessage = ""
	} else {
		m.errorMessage = ""
		m.infoMessage = fmt.Sprintf("Loaded %s.", m.session.Title())
	}
	m.resetPagePosition()
}

func (m *model) handleDirectoryLoaded(msg directoryLoadedMsg) tea.Cmd {
	if msg.err != nil {
		m.errorMessage = fmt.Sprintf("Surah list unavailable: %v", msg.err)
		m.infoMessage = "Press r to retry."
		return nil
	}
	if m.errorMessage != "" && m.session.Status() != session.StatusFailed {
		m.errorMessage = ""
	}
	m.markViewportDirty()
	return m.picker.refresh()
}

func (m *model) openPicker() {
	if m.picker.empty() {
		switch m.config.Directory.Status() {
		case directory.StatusFailed:
			m.errorMessage = "Surah list failed to load."
			m.infoMessage = "Press r to retry."
		default:
			m.infoMessage = "Surah list is still loading…"
		}
		return
	}
	m.picker.focus(m.session.Selected())
	m.helpVisible = false
	m.stage = stagePicker
}

func (m *model) retry() tea.Cmd {
	var cmds []tea.Cmd
	if req, ok := m.session.Retry(); ok {
		cmds = append(cmds, m.startChapter(req))
	}
	if m.config.Directory.Status() == directory.StatusFailed {
		m.errorMessage = ""
		m.infoMessage = "Reloading surah list…"
		cmds = append(cmds, m.jobs.Start(jobKindDirectory, directoryTimeout, loadDirectoryJob(m.config.Directory)), m.spinner.Tick)
	}
	if len(cmds) == 0 {
		return nil
	}
	return tea.Batch(cmds...)
}

func (m *model) moveCursor(delta int) {
	count := len(m.session.CurrentPageVerses())
	if count == 0 {
		return
	}
	next := m.cursor + delta
	if next < 0 {
		next = 0
	}
	if next >= count {
		next = count - 1
	}
	if next == m.cursor {
		return
	}
	m.cursor = next
	m.markViewportDirty()
}

func (m *model) currentVerse() (quran.Verse, bool) {
	verses := m.session.CurrentPageVerses()
	if m.cursor < 0 || m.cursor >= len(verses) {
		return quran.Verse{}, false
	}
	return verses[m.cursor], true
}

func (m *model) readAloud() tea.Cmd {
	if m.config.Reader == nil {
		m.infoMessage = "Read-aloud is not configured."
		return nil
	}
	verse, ok := m.currentVerse()
	if !ok {
		m.infoMessage = "Nothing to read yet."
		return nil
	}
	if !verse.HasText() {
		m.infoMessage = "Move to a verse to read it aloud."
		return nil
	}
	m.readToken++
	m.reading = true
	m.readVerse = verse
	m.readStep = readaloud.StepResolve
	m.errorMessage = ""
	m.infoMessage = ""
	return tea.Batch(
		m.jobs.Start(jobKindRecite, 0, readAloudJob(m.config.Reader, m.readToken, verse)),
		m.spinner.Tick,
	)
}

func (m *model) stopReading() {
	if m.config.Reader != nil && m.config.Reader.Stop() {
		m.infoMessage = "Stopping…"
	}
}

func (m *model) handleReadProgress(event readaloud.Event) {
	if !m.reading || event.Verse != m.readVerse || event.Step == readaloud.StepDone {
		return
	}
	m.readStep = event.Step
}

func (m *model) handleReadAloudDone(msg readAloudDoneMsg) {
	if msg.token != m.readToken {
		return
	}
	m.reading = false
	ordinal := msg.verse.Ordinal
	switch {
	case msg.err == nil:
		m.errorMessage = ""
		m.infoMessage = fmt.Sprintf("Finished verse %d.", ordinal)
	case errors.Is(msg.err, context.Canceled):
		m.infoMessage = "Read-aloud stopped."
	case errors.Is(msg.err, readaloud.ErrRecitationUnavailable):
		m.errorMessage = fmt.Sprintf("No recitation by %q: %v", m.config.Reader.Reciter(), msg.err)
		m.infoMessage = "Set recitation.reciter to a name from the catalogue."
	default:
		m.errorMessage = fmt.Sprintf("Verse %d read with problems: %v", ordinal, msg.err)
		m.infoMessage = ""
	}
}

func (m *model) busy() bool {
	if m.session.Status() == session.StatusLoading || m.reading {
		return true
	}
	switch m.config.Directory.Status() {
	case directory.StatusIdle, directory.StatusLoading:
		return true
	}
	return false
}

func (m *model) quit() tea.Cmd {
	m.quitting = true
	if m.config.Reader != nil {
		m.config.Reader.Stop()
	}
	m.jobs.Shutdown()
	return tea.Quit
}

func (m *model) markViewportDirty() {
	m.viewportDirty = true
}

func (m *model) refreshViewportIfDirty() {
	if m.viewportDirty {
		m.refreshViewport()
	}
}

func (m *model) refreshViewport() {
	m.viewportDirty = false
	verses := m.session.CurrentPageVerses()
	if len(verses) == 0 {
		m.page = renderedPage{}
		m.viewport.SetContent(m.emptyPaneText())
		return
	}
	if m.cursor >= len(verses) {
		m.cursor = len(verses) - 1
	}
	m.page = renderPage(verses, m.cursor, m.viewport.Width)
	m.viewport.SetContent(m.page.content)
	m.ensureCursorVisible()
}

func (m *model) ensureCursorVisible() {
	if m.cursor < 0 || m.cursor >= len(m.page.entryLines) {
		return
	}
	line := m.page.entryLines[m.cursor]
	switch {
	case line < m.viewport.YOffset:
		m.viewport.SetYOffset(line)
	case line >= m.viewport.YOffset+m.viewport.Height:
		m.viewport.SetYOffset(line - m.viewport.Height + 1)
	}
}

func (m *model) emptyPaneText() string {
	switch m.session.Status() {
	case session.StatusFailed:
		return helperStyle.Render("This surah could not be loaded. Press r to retry.")
	default:
		return helperStyle.Render("Fetching verses…")
	}
}

var (
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helperStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	spinnerStyle  = lipgloss.NewStyle().Foreground(heroAccentColor)
	sectionHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))

	heroAccentColor        = lipgloss.Color("#ff8c00")
	heroEmberColor         = lipgloss.Color("#2b1400")
	heroTextColor          = lipgloss.Color("#fff4d0")
	heroSecondaryTextColor = lipgloss.Color("#ffb347")

	brandStyle        = lipgloss.NewStyle().Bold(true).Foreground(heroTextColor).Background(heroEmberColor).Padding(0, 1)
	heroTitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(heroAccentColor)
	taglineStyle      = lipgloss.NewStyle().Foreground(heroSecondaryTextColor).Italic(true)
	statusBarStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6")).Padding(0, 1)
	helpBoxStyle      = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("#7f5af0")).Padding(1, 2)
	cursorStyle       = lipgloss.NewStyle().Bold(true).Foreground(heroAccentColor)
	ordinalStyle      = lipgloss.NewStyle().Foreground(heroSecondaryTextColor)
	verseStyle        = lipgloss.NewStyle().Foreground(heroTextColor)
	currentVerseStyle = lipgloss.NewStyle().Bold(true).Foreground(heroTextColor)
	translationStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#c0b8a8")).Italic(true)
	basmalaStyle      = lipgloss.NewStyle().Bold(true).Foreground(heroAccentColor)
)
