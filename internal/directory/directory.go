// Package directory holds the chapter list and validates selections
// against it.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/csheth/tilawah/internal/quran"
)

// Status is the directory's load state.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
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

// Fetcher fetches the full chapter list. *quran.Client implements it.
type Fetcher interface {
	Chapters(ctx context.Context) ([]quran.Chapter, error)
}

// Directory is safe for concurrent use: Load may run on a job goroutine
// while the UI reads.
type Directory struct {
	fetcher Fetcher
	log     zerolog.Logger

	mu       sync.RWMutex
	chapters []quran.Chapter
	index    map[int]int
	status   Status
	err      error
}

// New returns an empty directory backed by fetcher.
func New(fetcher Fetcher, log zerolog.Logger) *Directory {
	return &Directory{
		fetcher: fetcher,
		log:     log.With().Str("component", "directory").Logger(),
		index:   map[int]int{},
	}
}

// Load fetches the chapter list once. On success the held list is swapped
// in one step; on failure the previous list is kept and the error, wrapping
// quran.ErrFetchFailed, is returned. There is no automatic retry.
func (d *Directory) Load(ctx context.Context) error {
	d.mu.Lock()
	d.status = StatusLoading
	d.mu.Unlock()

	chapters, err := d.fetcher.Chapters(ctx)
	if err == nil && len(chapters) == 0 {
		err = fmt.Errorf("%w: %w: empty chapter list", quran.ErrFetchFailed, quran.ErrMalformedResponse)
	}
	if err != nil {
		if !errors.Is(err, quran.ErrFetchFailed) {
			err = fmt.Errorf("%w: %w", quran.ErrFetchFailed, err)
		}
		d.mu.Lock()
		d.status = StatusFailed
		d.err = err
		kept := len(d.chapters)
		d.mu.Unlock()
		d.log.Error().Err(err).Int("kept", kept).Msg("chapter directory load failed")
		return err
	}

	list := append([]quran.Chapter(nil), chapters...)
	index := make(map[int]int, len(list))
	for i, c := range list {
		index[c.Number] = i
	}

	d.mu.Lock()
	d.chapters = list
	d.index = index
	d.status = StatusReady
	d.err = nil
	d.mu.Unlock()
	d.log.Info().Int("chapters", len(list)).Msg("chapter directory loaded")
	return nil
}

// Select looks n up in the loaded list. The second result is false when n
// is not a known chapter, in which case the caller does nothing.
func (d *Directory) Select(n int) (quran.Chapter, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	i, ok := d.index[n]
	if !ok {
		return quran.Chapter{}, false
	}
	return d.chapters[i], true
}

// Chapters returns a copy of the loaded list.
func (d *Directory) Chapters() []quran.Chapter {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]quran.Chapter(nil), d.chapters...)
}

// Filter returns chapters whose number starts with query or whose label
// contains it, case-insensitively. An empty query returns everything.
func (d *Directory) Filter(query string) []quran.Chapter {
	query = strings.ToLower(strings.TrimSpace(query))
	all := d.Chapters()
	if query == "" {
		return all
	}
	matches := make([]quran.Chapter, 0, len(all))
	for _, c := range all {
		if strings.HasPrefix(strconv.Itoa(c.Number), query) || strings.Contains(strings.ToLower(c.Label()), query) {
			matches = append(matches, c)
		}
	}
	return matches
}

// Status reports the load state.
func (d *Directory) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status
}

// Err is the last load error, nil after a successful load.
func (d *Directory) Err() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.err
}
