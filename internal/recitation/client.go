// Package recitation resolves reciters against the recitation API and
// streams chapter audio.
package recitation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/csheth/tilawah/internal/quran"
)

const (
	// DefaultBaseURL is the public recitation API.
	DefaultBaseURL = "https://api.quran.com/api/v4"
	// DefaultReciter is matched when no reciter is configured.
	DefaultReciter = "Mishari Rashid al-`Afasy"

	maxCatalogueBytes = 2 << 20
	maxPointerBytes   = 64 << 10
)

// ErrReciterNotFound is returned by Resolve when no catalogue entry carries
// exactly the requested name.
var ErrReciterNotFound = errors.New("reciter not found")

// Recitation is one catalogue entry.
type Recitation struct {
	ID          int    `json:"id"`
	ReciterName string `json:"reciter_name"`
	Style       string `json:"style,omitempty"`
}

// Config describes how to build a recitation client.
type Config struct {
	BaseURL           string
	AudioBaseURL      string
	HTTPClient        *http.Client
	Timeout           time.Duration
	RequestsPerSecond float64
	Logger            zerolog.Logger
}

// Client talks to the recitation API.
type Client struct {
	baseURL      string
	audioBaseURL string
	client       *http.Client
	stream       *http.Client
	limiter      *rate.Limiter
	log          zerolog.Logger
}

// NewClient builds a recitation client. AudioBaseURL defaults to BaseURL.
func NewClient(cfg Config) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	audioBase := strings.TrimRight(strings.TrimSpace(cfg.AudioBaseURL), "/")
	if audioBase == "" {
		audioBase = base
	}
	return &Client{
		baseURL:      base,
		audioBaseURL: audioBase,
		client:       quran.PickHTTPClient(cfg.HTTPClient, cfg.Timeout),
		stream:       streamingClient(cfg.HTTPClient),
		limiter:      quran.NewLimiter(cfg.RequestsPerSecond),
		log:          cfg.Logger.With().Str("component", "recitation-api").Logger(),
	}
}

// streamingClient drops the whole-request timeout, which would cut long
// audio bodies; the caller's context bounds the stream instead.
func streamingClient(custom *http.Client) *http.Client {
	if custom != nil {
		return custom
	}
	return &http.Client{}
}

// Recitations fetches the reciter catalogue.
func (c *Client) Recitations(ctx context.Context) ([]Recitation, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", quran.ErrFetchFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/resources/recitations", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", quran.ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", quran.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: recitation API error: %s (%s)", quran.ErrFetchFailed, resp.Status, strings.TrimSpace(string(body)))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogueBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", quran.ErrFetchFailed, err)
	}
	return decodeCatalogue(body)
}

// Resolve fetches the catalogue and returns the entry whose reciter name
// equals name exactly. Nothing is cached between calls.
func (c *Client) Resolve(ctx context.Context, name string) (Recitation, error) {
	recitations, err := c.Recitations(ctx)
	if err != nil {
		return Recitation{}, err
	}
	for _, r := range recitations {
		if r.ReciterName == name {
			c.log.Debug().Int("recitation_id", r.ID).Str("reciter", name).Msg("reciter resolved")
			return r, nil
		}
	}
	return Recitation{}, fmt.Errorf("%w: %q among %d recitations", ErrReciterNotFound, name, len(recitations))
}

// AudioURL is the chapter audio resource for a recitation.
func (c *Client) AudioURL(recitationID, chapter int) string {
	return c.audioBaseURL + "/chapter_recitations/" + strconv.Itoa(recitationID) + "/" + strconv.Itoa(chapter)
}

// Stream opens the chapter audio. When the resource answers with a JSON
// pointer (audio_file.audio_url) the pointer is followed. The caller closes
// the returned body.
func (c *Client) Stream(ctx context.Context, recitationID, chapter int) (io.ReadCloser, error) {
	if !quran.ValidChapter(chapter) {
		return nil, fmt.Errorf("%w: chapter %d out of range", quran.ErrFetchFailed, chapter)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", quran.ErrFetchFailed, err)
	}
	source := c.AudioURL(recitationID, chapter)
	resp, err := c.open(ctx, source)
	if err != nil {
		return nil, err
	}
	if !isJSON(resp.Header.Get("Content-Type")) {
		return resp.Body, nil
	}

	pointer, err := decodeAudioPointer(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	target, err := resolveReference(source, pointer)
	if err != nil {
		return nil, err
	}
	c.log.Debug().Str("audio_url", target).Int("chapter", chapter).Msg("following audio pointer")
	resp, err = c.open(ctx, target)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) open(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", quran.ErrFetchFailed, err)
	}
	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", quran.ErrFetchFailed, err)
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: audio download failed: %s (%s)", quran.ErrFetchFailed, resp.Status, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

func decodeCatalogue(body []byte) ([]Recitation, error) {
	trimmed := bytes.TrimSpace(body)
	var recitations []Recitation
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &recitations); err != nil {
			return nil, fmt.Errorf("%w: %w: %v", quran.ErrFetchFailed, quran.ErrMalformedResponse, err)
		}
		return recitations, nil
	}
	var payload struct {
		Recitations []Recitation `json:"recitations"`
	}
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return nil, fmt.Errorf("%w: %w: %v", quran.ErrFetchFailed, quran.ErrMalformedResponse, err)
	}
	return payload.Recitations, nil
}

func decodeAudioPointer(r io.Reader) (string, error) {
	var payload struct {
		AudioFile struct {
			AudioURL string `json:"audio_url"`
		} `json:"audio_file"`
	}
	if err := json.NewDecoder(io.LimitReader(r, maxPointerBytes)).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: %w: audio pointer: %v", quran.ErrFetchFailed, quran.ErrMalformedResponse, err)
	}
	if strings.TrimSpace(payload.AudioFile.AudioURL) == "" {
		return "", fmt.Errorf("%w: %w: audio pointer has no audio_url", quran.ErrFetchFailed, quran.ErrMalformedResponse)
	}
	return strings.TrimSpace(payload.AudioFile.AudioURL), nil
}

func resolveReference(base, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: %w", quran.ErrFetchFailed, err)
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: %w: %v", quran.ErrFetchFailed, quran.ErrMalformedResponse, err)
	}
	return baseURL.ResolveReference(refURL).String(), nil
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
