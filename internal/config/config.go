package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/text/language"

	"github.com/csheth/tilawah/internal/quran"
	"github.com/csheth/tilawah/internal/recitation"
)

var ErrInvalidConfig = errors.New("invalid configuration")

const envPrefix = "TILAWAH"

// Config holds application configuration loaded from files and environment variables.
type Config struct {
	Content    Content    `mapstructure:"content"`    // chapter and verse content service
	Recitation Recitation `mapstructure:"recitation"` // recitation catalogue and audio
	Speech     Speech     `mapstructure:"speech"`     // text-to-speech engine
	Player     Player     `mapstructure:"player"`     // audio player engine
	HTTP       HTTP       `mapstructure:"http"`       // shared HTTP client settings
	Log        Log        `mapstructure:"log"`        // log file settings
	UI         UI         `mapstructure:"ui"`         // terminal UI settings
}

type Content struct {
	BaseURL string `mapstructure:"base_url"`
}

type Recitation struct {
	BaseURL      string `mapstructure:"base_url"`
	AudioBaseURL string `mapstructure:"audio_base_url"`
	Reciter      string `mapstructure:"reciter"` // exact catalogue name, matched on every read-aloud
}

type Speech struct {
	Command         string   `mapstructure:"command"`
	Args            []string `mapstructure:"args"` // may contain {text} and {lang}
	OriginalLang    string   `mapstructure:"original_lang"`
	TranslationLang string   `mapstructure:"translation_lang"`
}

type Player struct {
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
}

type HTTP struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"` // 0 disables pacing
}

type Log struct {
	Path  string `mapstructure:"path"`
	Level string `mapstructure:"level"`
}

type UI struct {
	StartChapter int  `mapstructure:"start_chapter"`
	AltScreen    bool `mapstructure:"alt_screen"`
}

// OriginalTag parses Speech.OriginalLang.
func (s Speech) OriginalTag() (language.Tag, error) {
	return language.Parse(s.OriginalLang)
}

// TranslationTag parses Speech.TranslationLang.
func (s Speech) TranslationTag() (language.Tag, error) {
	return language.Parse(s.TranslationLang)
}

// Load reads configuration from an optional .env file, config files and
// environment variables. path names an explicit config file; when empty,
// config.yaml is looked up in ./config and the user config directory.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "tilawah"))
		}
	}

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var fileLookupErr viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &fileLookupErr) {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("content.base_url", quran.DefaultBaseURL)
	v.SetDefault("recitation.base_url", recitation.DefaultBaseURL)
	v.SetDefault("recitation.audio_base_url", recitation.DefaultBaseURL)
	v.SetDefault("recitation.reciter", recitation.DefaultReciter)
	v.SetDefault("speech.command", "espeak-ng")
	v.SetDefault("speech.args", []string{"-v", "{lang}", "{text}"})
	v.SetDefault("speech.original_lang", "ar")
	v.SetDefault("speech.translation_lang", "en")
	v.SetDefault("player.command", "mpv")
	v.SetDefault("player.args", []string{"--no-video", "--really-quiet", "-"})
	v.SetDefault("http.timeout", "15s")
	v.SetDefault("http.requests_per_second", 4)
	v.SetDefault("log.path", defaultLogPath())
	v.SetDefault("log.level", "info")
	v.SetDefault("ui.start_chapter", 1)
	v.SetDefault("ui.alt_screen", true)
}

// Validate rejects settings the reader cannot start with.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Content.BaseURL) == "" {
		problems = append(problems, "content.base_url is empty")
	}
	if strings.TrimSpace(c.Recitation.BaseURL) == "" {
		problems = append(problems, "recitation.base_url is empty")
	}
	if strings.TrimSpace(c.Recitation.Reciter) == "" {
		problems = append(problems, "recitation.reciter is empty")
	}
	if _, err := c.Speech.OriginalTag(); err != nil {
		problems = append(problems, fmt.Sprintf("speech.original_lang %q: %v", c.Speech.OriginalLang, err))
	}
	if _, err := c.Speech.TranslationTag(); err != nil {
		problems = append(problems, fmt.Sprintf("speech.translation_lang %q: %v", c.Speech.TranslationLang, err))
	}
	if !quran.ValidChapter(c.UI.StartChapter) {
		problems = append(problems, fmt.Sprintf("ui.start_chapter %d is outside 1..%d", c.UI.StartChapter, quran.ChapterCount))
	}
	if c.HTTP.RequestsPerSecond < 0 {
		problems = append(problems, "http.requests_per_second is negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func defaultLogPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "tilawah", "tilawah.log")
}
