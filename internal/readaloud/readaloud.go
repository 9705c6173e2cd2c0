// Package readaloud runs the read-aloud sequence for one verse: resolve the
// reciter, speak the original text, speak the translation, then stream the
// chapter recitation.
package readaloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"github.com/csheth/tilawah/internal/quran"
	"github.com/csheth/tilawah/internal/recitation"
)

var (
	// ErrNothingToRead rejects the opener placeholder and verses without
	// text before any call is made.
	ErrNothingToRead = errors.New("nothing to read")
	// ErrRecitationUnavailable aborts the sequence when the reciter cannot
	// be resolved.
	ErrRecitationUnavailable = errors.New("recitation unavailable")
)

// Resolver finds a reciter's recitation and opens its chapter audio.
// *recitation.Client implements it.
type Resolver interface {
	Resolve(ctx context.Context, reciter string) (recitation.Recitation, error)
	Stream(ctx context.Context, recitationID, chapter int) (io.ReadCloser, error)
}

// Speaker speaks text in a language and returns once it has finished.
type Speaker interface {
	Speak(ctx context.Context, text string, lang language.Tag) error
}

// Player plays an audio stream to completion.
type Player interface {
	Play(ctx context.Context, stream io.Reader) error
}

// Step names a stage of the sequence.
type Step int

const (
	StepResolve Step = iota
	StepSpeakOriginal
	StepSpeakTranslation
	StepRecitation
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepResolve:
		return "resolving reciter"
	case StepSpeakOriginal:
		return "reading verse"
	case StepSpeakTranslation:
		return "reading translation"
	case StepRecitation:
		return "playing recitation"
	case StepDone:
		return "done"
	default:
		return fmt.Sprintf("Step(%d)", int(s))
	}
}

// Event reports that a sequence entered a step.
type Event struct {
	Sequence string
	Step     Step
	Verse    quran.Verse
}

// Config wires an Orchestrator.
type Config struct {
	Reciter         string
	OriginalLang    language.Tag
	TranslationLang language.Tag
	Resolver        Resolver
	Speaker         Speaker
	Player          Player
	Logger          zerolog.Logger
}

// Orchestrator runs at most one sequence at a time. Starting a new one
// cancels the previous one and waits for it to stop, so audio never
// overlaps.
type Orchestrator struct {
	reciter         string
	originalLang    language.Tag
	translationLang language.Tag
	resolver        Resolver
	speaker         Speaker
	player          Player
	log             zerolog.Logger

	mu       sync.Mutex
	current  *run
	progress func(Event)
}

type run struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds an Orchestrator. Empty language tags default to Arabic for
// the original text and English for the translation.
func New(cfg Config) *Orchestrator {
	original := cfg.OriginalLang
	if original == language.Und {
		original = language.Arabic
	}
	translation := cfg.TranslationLang
	if translation == language.Und {
		translation = language.English
	}
	reciter := cfg.Reciter
	if reciter == "" {
		reciter = recitation.DefaultReciter
	}
	return &Orchestrator{
		reciter:         reciter,
		originalLang:    original,
		translationLang: translation,
		resolver:        cfg.Resolver,
		speaker:         cfg.Speaker,
		player:          cfg.Player,
		log:             cfg.Logger.With().Str("component", "readaloud").Logger(),
	}
}

// OnProgress registers fn to receive step events. fn must not block.
func (o *Orchestrator) OnProgress(fn func(Event)) {
	o.mu.Lock()
	o.progress = fn
	o.mu.Unlock()
}

// Reciter is the name matched against the catalogue.
func (o *Orchestrator) Reciter() string {
	return o.reciter
}

// Read runs the sequence for v and blocks until it finishes, fails, or is
// superseded by another Read or Stop. A superseded run returns an error
// wrapping context.Canceled.
func (o *Orchestrator) Read(ctx context.Context, v quran.Verse) error {
	if !v.HasText() {
		o.log.Warn().Int("chapter", v.ChapterNumber).Int("verse", v.Ordinal).Bool("opener", v.Opener).Msg("nothing to read")
		return ErrNothingToRead
	}
	r := o.claim(ctx)
	defer o.release(r)
	return o.sequence(r, v)
}

// Stop cancels the running sequence, if any, without waiting for it.
func (o *Orchestrator) Stop() bool {
	o.mu.Lock()
	cur := o.current
	o.mu.Unlock()
	if cur == nil {
		return false
	}
	cur.cancel()
	return true
}

// Busy reports whether a sequence is running.
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current != nil
}

func (o *Orchestrator) claim(parent context.Context) *run {
	ctx, cancel := context.WithCancel(parent)
	r := &run{id: uuid.NewString(), ctx: ctx, cancel: cancel, done: make(chan struct{})}

	o.mu.Lock()
	prev := o.current
	o.current = r
	o.mu.Unlock()

	if prev != nil {
		o.log.Debug().Str("sequence", prev.id).Str("superseded_by", r.id).Msg("superseding read-aloud")
		prev.cancel()
		<-prev.done
	}
	return r
}

func (o *Orchestrator) release(r *run) {
	r.cancel()
	o.mu.Lock()
	if o.current == r {
		o.current = nil
	}
	o.mu.Unlock()
	close(r.done)
}

func (o *Orchestrator) sequence(r *run, v quran.Verse) error {
	ctx := r.ctx
	log := o.log.With().Str("sequence", r.id).Int("chapter", v.ChapterNumber).Int("verse", v.Ordinal).Logger()

	o.emit(r.id, StepResolve, v)
	rec, err := o.resolver.Resolve(ctx, o.reciter)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err = fmt.Errorf("%w: %w", ErrRecitationUnavailable, err)
		log.Error().Err(err).Str("reciter", o.reciter).Msg("read-aloud aborted")
		return err
	}

	var errs []error
	o.emit(r.id, StepSpeakOriginal, v)
	if err := o.speaker.Speak(ctx, v.OriginalText, o.originalLang); err != nil {
		if ctx.Err() != nil {
			return errors.Join(append(errs, ctx.Err())...)
		}
		log.Warn().Err(err).Msg("speaking original text failed")
		errs = append(errs, fmt.Errorf("speak original: %w", err))
	}

	if v.TranslationText != "" {
		o.emit(r.id, StepSpeakTranslation, v)
		if err := o.speaker.Speak(ctx, v.TranslationText, o.translationLang); err != nil {
			if ctx.Err() != nil {
				return errors.Join(append(errs, ctx.Err())...)
			}
			log.Warn().Err(err).Msg("speaking translation failed")
			errs = append(errs, fmt.Errorf("speak translation: %w", err))
		}
	}

	o.emit(r.id, StepRecitation, v)
	if err := o.playRecitation(ctx, rec.ID, v.ChapterNumber); err != nil {
		if ctx.Err() != nil {
			return errors.Join(append(errs, ctx.Err())...)
		}
		log.Warn().Err(err).Int("recitation_id", rec.ID).Msg("recitation playback failed")
		errs = append(errs, fmt.Errorf("recitation: %w", err))
	}

	o.emit(r.id, StepDone, v)
	log.Info().Int("failed_steps", len(errs)).Msg("read-aloud finished")
	return errors.Join(errs...)
}

func (o *Orchestrator) playRecitation(ctx context.Context, recitationID, chapter int) error {
	stream, err := o.resolver.Stream(ctx, recitationID, chapter)
	if err != nil {
		return err
	}
	defer stream.Close()
	return o.player.Play(ctx, stream)
}

func (o *Orchestrator) emit(id string, step Step, v quran.Verse) {
	o.mu.Lock()
	fn := o.progress
	o.mu.Unlock()
	if fn != nil {
		fn(Event{Sequence: id, Step: step, Verse: v})
	}
}
