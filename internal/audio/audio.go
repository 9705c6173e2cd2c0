// Package audio drives external speech and playback engines.
package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"
)

const (
	textPlaceholder = "{text}"
	langPlaceholder = "{lang}"
)

// Available reports whether command resolves on PATH.
func Available(command string) bool {
	if strings.TrimSpace(command) == "" {
		return false
	}
	_, err := exec.LookPath(command)
	return err == nil
}

// CommandSpeaker speaks text through an external text-to-speech command.
// Args may contain {text} and {lang}; when no argument carries {text} the
// text is written to the command's stdin.
type CommandSpeaker struct {
	Command string
	Args    []string
	Output  io.Writer
	Log     zerolog.Logger
}

// Speak runs the command and waits for it to finish. Cancelling ctx kills
// the process.
func (s *CommandSpeaker) Speak(ctx context.Context, text string, lang language.Tag) error {
	args, usesText := expandArgs(s.Args, text, lang)
	cmd := exec.CommandContext(ctx, s.Command, args...)
	if !usesText {
		cmd.Stdin = strings.NewReader(text)
	}
	var stderr bytes.Buffer
	cmd.Stdout = outputOrDiscard(s.Output)
	cmd.Stderr = &stderr

	s.Log.Debug().Str("command", s.Command).Str("lang", lang.String()).Int("chars", len(text)).Msg("speaking")
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("speak (%s): %w: %s", lang, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// CommandPlayer pipes an audio stream into an external player's stdin.
type CommandPlayer struct {
	Command string
	Args    []string
	Output  io.Writer
	Log     zerolog.Logger
}

// Play blocks until the player exits or ctx is cancelled.
func (p *CommandPlayer) Play(ctx context.Context, stream io.Reader) error {
	cmd := exec.CommandContext(ctx, p.Command, p.Args...)
	var stderr bytes.Buffer
	cmd.Stdin = stream
	cmd.Stdout = outputOrDiscard(p.Output)
	cmd.Stderr = &stderr

	p.Log.Debug().Str("command", p.Command).Msg("playing stream")
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("play: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// TranscriptSpeaker stands in when no speech engine is installed: it logs
// the text and hands it to Sink.
type TranscriptSpeaker struct {
	Log  zerolog.Logger
	Sink func(text string, lang language.Tag)
}

func (s *TranscriptSpeaker) Speak(ctx context.Context, text string, lang language.Tag) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.Log.Info().Str("lang", lang.String()).Str("text", text).Msg("transcript")
	if s.Sink != nil {
		s.Sink(text, lang)
	}
	return nil
}

// DiscardPlayer drains the stream without playing it, for machines with
// no player installed.
type DiscardPlayer struct {
	Log zerolog.Logger
}

func (p *DiscardPlayer) Play(ctx context.Context, stream io.Reader) error {
	n, err := io.Copy(io.Discard, contextReader{ctx: ctx, r: stream})
	p.Log.Info().Int64("bytes", n).Msg("audio stream drained without a player")
	if err != nil {
		return fmt.Errorf("drain stream: %w", err)
	}
	return nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func expandArgs(args []string, text string, lang language.Tag) ([]string, bool) {
	out := make([]string, len(args))
	usesText := false
	for i, arg := range args {
		if strings.Contains(arg, textPlaceholder) {
			usesText = true
		}
		arg = strings.ReplaceAll(arg, textPlaceholder, text)
		out[i] = strings.ReplaceAll(arg, langPlaceholder, lang.String())
	}
	return out, usesText
}

func outputOrDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
