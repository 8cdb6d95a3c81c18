// Package tts turns utterances into playable audio through the Fish Audio
// text-to-speech API.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/taskhunter/pkg/models"
)

// ErrSynthesis marks a failed synthesis call. The utterance is not delivered
// as audio.
var ErrSynthesis = errors.New("synthesis failure")

const (
	// DefaultBaseURL is the Fish Audio API root.
	DefaultBaseURL = "https://api.fish.audio"
	// CostPerMillionBytes is the Fish Audio price per million UTF-8 bytes.
	CostPerMillionBytes = 15.0
	// DefaultTimeout bounds a single synthesis call.
	DefaultTimeout = 60 * time.Second
)

// Artifact is a synthesized audio file.
type Artifact struct {
	Path string
	// Bytes is the UTF-8 length of the synthesized text.
	Bytes int
	Cost  float64
	// Cached is true when the artifact came from a cache.
	Cached bool
}

// Synthesizer turns text into an audio artifact.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*Artifact, error)
}

// Cost returns the synthesis price of text.
func Cost(text string) (int, float64) {
	n := len(text)
	return n, float64(n) / 1_000_000 * CostPerMillionBytes
}

// FishConfig configures a FishClient.
type FishConfig struct {
	APIKey string
	// ReferenceID selects the voice model.
	ReferenceID string
	// MediaDir receives the audio files.
	MediaDir string
	// BaseURL overrides DefaultBaseURL.
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// FishClient synthesizes mp3 files with Fish Audio.
type FishClient struct {
	cfg  FishConfig
	http *http.Client
}

// NewFishClient validates cfg and creates the media directory.
func NewFishClient(cfg FishConfig) (*FishClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("FISH_API_KEY is not set")
	}
	if cfg.MediaDir == "" {
		return nil, fmt.Errorf("media directory is not set")
	}
	if err := os.MkdirAll(cfg.MediaDir, 0755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &FishClient{cfg: cfg, http: client}, nil
}

var _ Synthesizer = (*FishClient)(nil)

type ttsRequest struct {
	Text        string `json:"text"`
	ReferenceID string `json:"reference_id,omitempty"`
	Format      string `json:"format"`
}

// Synthesize streams the audio for text to a new file in the media directory.
func (c *FishClient) Synthesize(ctx context.Context, text string) (*Artifact, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("synthesize: %w: empty text", ErrSynthesis)
	}

	size, cost := Cost(text)
	log.Printf("[tts] request content=%q bytes=%d cost=$%.6f", models.Preview(text), size, cost)

	body, err := json.Marshal(ttsRequest{Text: text, ReferenceID: c.cfg.ReferenceID, Format: "mp3"})
	if err != nil {
		return nil, fmt.Errorf("encode tts request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+"/v1/tts", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build tts request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w: %w", ErrSynthesis, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("synthesize: %w: status %d: %s", ErrSynthesis, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	path := filepath.Join(c.cfg.MediaDir, uuid.NewString()+".mp3")
	if err := writeStream(path, resp.Body); err != nil {
		return nil, fmt.Errorf("synthesize: %w: %w", ErrSynthesis, err)
	}

	log.Printf("[tts] wrote audio path=%s", path)
	return &Artifact{Path: path, Bytes: size, Cost: cost}, nil
}

// writeStream copies r into path via a temp file so a failed download never
// leaves a partial artifact behind.
func writeStream(path string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tts-*.part")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("download audio: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("empty audio response")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename audio file: %w", err)
	}
	committed = true
	return nil
}

// ArtifactCache stores artifact paths by text.
type ArtifactCache interface {
	Get(text string) (string, bool)
	Put(text, path string)
}

// CachedSynthesizer reuses earlier artifacts for equivalent text. A hit
// costs nothing.
type CachedSynthesizer struct {
	next  Synthesizer
	cache ArtifactCache
}

// NewCachedSynthesizer wraps next with cache.
func NewCachedSynthesizer(next Synthesizer, cache ArtifactCache) *CachedSynthesizer {
	return &CachedSynthesizer{next: next, cache: cache}
}

var _ Synthesizer = (*CachedSynthesizer)(nil)

// Synthesize returns a cached artifact or synthesizes and caches a new one.
func (c *CachedSynthesizer) Synthesize(ctx context.Context, text string) (*Artifact, error) {
	if path, ok := c.cache.Get(text); ok {
		log.Printf("[tts] cache hit content=%q", models.Preview(text))
		return &Artifact{Path: path, Bytes: len(text), Cached: true}, nil
	}

	art, err := c.next.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Put(text, art.Path)
	return art, nil
}
