package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/csheth/tilawah/internal/audio"
	"github.com/csheth/tilawah/internal/config"
	"github.com/csheth/tilawah/internal/directory"
	"github.com/csheth/tilawah/internal/logging"
	"github.com/csheth/tilawah/internal/quran"
	"github.com/csheth/tilawah/internal/readaloud"
	"github.com/csheth/tilawah/internal/recitation"
	"github.com/csheth/tilawah/internal/tui"
)

type flags struct {
	configPath    string
	noAltScreen   bool
	chapter       int
	reciter       string
	contentAPI    string
	recitationAPI string
}

func main() {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "path to a config file (default: ./config/config.yaml or the user config dir)")
	flag.BoolVar(&f.noAltScreen, "no-alt-screen", false, "disable the alternate screen buffer")
	flag.IntVar(&f.chapter, "chapter", 0, "surah to open on start (1-114)")
	flag.StringVar(&f.reciter, "reciter", "", "exact reciter name from the recitation catalogue")
	flag.StringVar(&f.contentAPI, "content-api", "", "override the chapter and verse content service")
	flag.StringVar(&f.recitationAPI, "recitation-api", "", "override the recitation service")
	flag.Parse()

	if err := run(f); err != nil {
		fmt.Fprintln(os.Stderr, "tilawah:", err)
		os.Exit(1)
	}
}

func run(f flags) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	applyFlags(cfg, f)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closer, err := logging.Init(cfg.Log.Path, cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer closer.Close()

	content := quran.NewClient(quran.Config{
		BaseURL:           cfg.Content.BaseURL,
		Timeout:           cfg.HTTP.Timeout,
		RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
		Logger:            logger,
	})
	recitations := recitation.NewClient(recitation.Config{
		BaseURL:           cfg.Recitation.BaseURL,
		AudioBaseURL:      cfg.Recitation.AudioBaseURL,
		Timeout:           cfg.HTTP.Timeout,
		RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
		Logger:            logger,
	})

	original, _ := cfg.Speech.OriginalTag()
	translation, _ := cfg.Speech.TranslationTag()
	reader := readaloud.New(readaloud.Config{
		Reciter:         cfg.Recitation.Reciter,
		OriginalLang:    original,
		TranslationLang: translation,
		Resolver:        recitations,
		Speaker:         pickSpeaker(cfg.Speech, logger),
		Player:          pickPlayer(cfg.Player, logger),
		Logger:          logger,
	})

	opts := []tea.ProgramOption{tea.WithMouseCellMotion()}
	if cfg.UI.AltScreen && !f.noAltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	program := tea.NewProgram(
		tui.New(tui.Config{
			Directory:    directory.New(content, logger),
			Source:       content,
			Reader:       reader,
			StartChapter: cfg.UI.StartChapter,
			Logger:       logger,
		}),
		opts...,
	)

	logger.Info().Int("chapter", cfg.UI.StartChapter).Str("reciter", cfg.Recitation.Reciter).Msg("starting")
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("program error: %w", err)
	}
	reader.Stop()
	return nil
}

// applyFlags lets command-line values win over files and environment.
func applyFlags(cfg *config.Config, f flags) {
	if f.chapter != 0 {
		cfg.UI.StartChapter = f.chapter
	}
	if f.reciter != "" {
		cfg.Recitation.Reciter = f.reciter
	}
	if f.contentAPI != "" {
		cfg.Content.BaseURL = f.contentAPI
	}
	if f.recitationAPI != "" {
		cfg.Recitation.BaseURL = f.recitationAPI
		cfg.Recitation.AudioBaseURL = f.recitationAPI
	}
}

func pickSpeaker(cfg config.Speech, logger zerolog.Logger) readaloud.Speaker {
	if audio.Available(cfg.Command) {
		return &audio.CommandSpeaker{Command: cfg.Command, Args: cfg.Args, Log: logger}
	}
	logger.Warn().Str("command", cfg.Command).Msg("speech engine not found; verses go to the log")
	return &audio.TranscriptSpeaker{Log: logger}
}

func pickPlayer(cfg config.Player, logger zerolog.Logger) readaloud.Player {
	if audio.Available(cfg.Command) {
		return &audio.CommandPlayer{Command: cfg.Command, Args: cfg.Args, Log: logger}
	}
	logger.Warn().Str("command", cfg.Command).Msg("audio player not found; recitations are drained")
	return &audio.DiscardPlayer{Log: logger}
}
