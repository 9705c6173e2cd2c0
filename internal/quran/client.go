package quran

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public content API.
	DefaultBaseURL     = "https://api.quran.gading.dev"
	defaultHTTPTimeout = 15 * time.Second
	maxResponseBytes   = 8 << 20
	userAgent          = "tilawah/1.0"
)

// Config describes how to build a content API client.
type Config struct {
	BaseURL           string
	HTTPClient        *http.Client
	Timeout           time.Duration
	RequestsPerSecond float64
	Logger            zerolog.Logger
}

// Client talks to the content API. It is safe for concurrent use.
type Client struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewClient builds a content API client from cfg, filling defaults.
func NewClient(cfg Config) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		baseURL: base,
		client:  PickHTTPClient(cfg.HTTPClient, cfg.Timeout),
		limiter: NewLimiter(cfg.RequestsPerSecond),
		log:     cfg.Logger.With().Str("component", "content-api").Logger(),
	}
}

// PickHTTPClient returns custom when set, otherwise a client with the given
// timeout (or the package default).
func PickHTTPClient(custom *http.Client, timeout time.Duration) *http.Client {
	if custom != nil {
		return custom
	}
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}

// NewLimiter paces outgoing requests; a non-positive rate disables pacing.
func NewLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// Chapters fetches the full chapter directory, ordered by number.
func (c *Client) Chapters(ctx context.Context) ([]Chapter, error) {
	body, err := c.get(ctx, "/surah")
	if err != nil {
		return nil, err
	}
	var entries []apiChapter
	if err := json.Unmarshal(unwrapEnvelope(body), &entries); err != nil {
		return nil, malformed("decode chapter list: %v", err)
	}
	if len(entries) == 0 {
		return nil, malformed("chapter list is empty")
	}

	chapters := make([]Chapter, 0, len(entries))
	seen := make(map[int]bool, len(entries))
	for _, entry := range entries {
		if !ValidChapter(entry.Number) {
			return nil, malformed("chapter number %d out of range", entry.Number)
		}
		if seen[entry.Number] {
			return nil, malformed("duplicate chapter number %d", entry.Number)
		}
		seen[entry.Number] = true
		name := entry.Name.display()
		if name == "" {
			return nil, malformed("chapter %d has no name", entry.Number)
		}
		chapters = append(chapters, Chapter{
			Number:          entry.Number,
			Name:            name,
			Transliteration: entry.Name.Transliteration,
		})
	}
	sort.Slice(chapters, func(i, j int) bool { return chapters[i].Number < chapters[j].Number })
	c.log.Debug().Int("chapters", len(chapters)).Msg("chapter directory fetched")
	return chapters, nil
}

// Surah fetches one chapter's name and verses. It does not judge whether
// the result is complete; callers validate.
func (c *Client) Surah(ctx context.Context, number int) (Surah, error) {
	if !ValidChapter(number) {
		return Surah{}, fmt.Errorf("%w: chapter %d out of range", ErrFetchFailed, number)
	}
	body, err := c.get(ctx, "/surah/"+strconv.Itoa(number))
	if err != nil {
		return Surah{}, err
	}
	var payload apiSurah
	if err := json.Unmarshal(unwrapEnvelope(body), &payload); err != nil {
		return Surah{}, malformed("decode chapter %d: %v", number, err)
	}

	verses := make([]VerseText, 0, len(payload.Verses))
	for _, v := range payload.Verses {
		translation := v.Text.Translation
		if translation == "" {
			translation = v.Translation.En
		}
		verses = append(verses, VerseText{
			Arab:        strings.TrimSpace(v.Text.Arab),
			Translation: normalizeWhitespace(translation),
		})
	}
	n := payload.Number
	if n == 0 {
		n = number
	}
	c.log.Debug().Int("chapter", number).Int("verses", len(verses)).Msg("chapter fetched")
	return Surah{Number: n, Name: payload.Name.Long, Verses: verses}, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: content API error: %s (%s)", ErrFetchFailed, resp.Status, strings.TrimSpace(string(body)))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrFetchFailed, err)
	}
	return body, nil
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", ErrFetchFailed, ErrMalformedResponse, fmt.Sprintf(format, args...))
}

type apiChapter struct {
	Number int         `json:"number"`
	Name   chapterName `json:"name"`
}

type apiSurah struct {
	Number int         `json:"number"`
	Name   chapterName `json:"name"`
	Verses []apiVerse  `json:"verses"`
}

type apiVerse struct {
	Text struct {
		Arab        string `json:"arab"`
		Translation string `json:"translation"`
	} `json:"text"`
	Translation struct {
		En string `json:"en"`
	} `json:"translation"`
}

// chapterName accepts either a bare string or the service's name object.
type chapterName struct {
	Short           string
	Long            string
	Transliteration string
}

func (n *chapterName) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n.Long = strings.TrimSpace(s)
		return nil
	}
	var obj struct {
		Short           string `json:"short"`
		Long            string `json:"long"`
		Transliteration struct {
			En string `json:"en"`
		} `json:"transliteration"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	n.Short = strings.TrimSpace(obj.Short)
	n.Long = strings.TrimSpace(obj.Long)
	n.Transliteration = strings.TrimSpace(obj.Transliteration.En)
	return nil
}

func (n chapterName) display() string {
	if n.Long != "" {
		return n.Long
	}
	return n.Short
}

// unwrapEnvelope strips the service's {"code","status","data"} wrapper when
// present.
func unwrapEnvelope(body []byte) []byte {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return body
	}
	if len(env.Data) == 0 || bytes.Equal(bytes.TrimSpace(env.Data), []byte("null")) {
		return body
	}
	return env.Data
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
