package tui

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
)

type jobKind string

type jobStatus string

const (
	jobKindDirectory jobKind = "directory"
	jobKindSurah     jobKind = "surah"
	jobKindRecite    jobKind = "recite"
)

const (
	jobStatusRunning   jobStatus = "running"
	jobStatusSucceeded jobStatus = "succeeded"
	jobStatusFailed    jobStatus = "failed"
	jobStatusCancelled jobStatus = "cancelled"
)

type jobSnapshot struct {
	ID          string
	Kind        jobKind
	Status      jobStatus
	StartedAt   time.Time
	CompletedAt time.Time
	Err         string
	Duration    time.Duration
}

type jobSignalMsg struct {
	Snapshot jobSnapshot
}

type jobResultEnvelope struct {
	Snapshot jobSnapshot
	Payload  tea.Msg
}

type jobRunner func(context.Context) (tea.Msg, error)

// jobBus runs work off the UI goroutine. Every job derives its context from
// the bus, so Shutdown cancels whatever is still running.
type jobBus struct {
	counter int64
	log     zerolog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func newJobBus(log zerolog.Logger) *jobBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &jobBus{log: log.With().Str("component", "jobs").Logger(), ctx: ctx, cancel: cancel}
}

func (b *jobBus) nextID(kind jobKind) string {
	idx := atomic.AddInt64(&b.counter, 1)
	return fmt.Sprintf("%s-%d", kind, idx)
}

// Start returns a command that announces the job and then runs it. A
// timeout of zero leaves the job bounded only by Shutdown.
func (b *jobBus) Start(kind jobKind, timeout time.Duration, runner jobRunner) tea.Cmd {
	id := b.nextID(kind)
	started := time.Now()
	startSnapshot := jobSnapshot{ID: id, Kind: kind, Status: jobStatusRunning, StartedAt: started}
	startCmd := func() tea.Msg {
		return jobSignalMsg{Snapshot: startSnapshot}
	}

	return tea.Sequence(startCmd, b.runCmd(id, kind, started, timeout, runner))
}

func (b *jobBus) runCmd(id string, kind jobKind, started time.Time, timeout time.Duration, runner jobRunner) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := b.ctx, context.CancelFunc(func() {})
		if timeout > 0 {
			ctx, cancel = context.WithTimeout(b.ctx, timeout)
		}
		defer cancel()

		payload, err := runner(ctx)
		snapshot := jobSnapshot{
			ID:          id,
			Kind:        kind,
			StartedAt:   started,
			CompletedAt: time.Now(),
		}
		switch {
		case err == nil:
			snapshot.Status = jobStatusSucceeded
		case errors.Is(err, context.Canceled):
			snapshot.Status = jobStatusCancelled
			snapshot.Err = err.Error()
		default:
			snapshot.Status = jobStatusFailed
			snapshot.Err = err.Error()
		}
		snapshot.Duration = snapshot.CompletedAt.Sub(started)

		event := b.log.Info()
		if snapshot.Status == jobStatusFailed {
			event = b.log.Warn().Err(err)
		}
		event.Str("job", id).Str("kind", string(kind)).Str("status", string(snapshot.Status)).Dur("duration", snapshot.Duration).Msg("job finished")
		return jobResultEnvelope{Snapshot: snapshot, Payload: payload}
	}
}

// Shutdown cancels every running job.
func (b *jobBus) Shutdown() {
	b.cancel()
}
