package tts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ShayCichocki/taskhunter/internal/cache"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*FishClient, string) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	media := filepath.Join(t.TempDir(), "media")
	client, err := NewFishClient(FishConfig{
		APIKey:      "fish-key",
		ReferenceID: "voice-1",
		MediaDir:    media,
		BaseURL:     server.URL,
	})
	if err != nil {
		t.Fatalf("NewFishClient failed: %v", err)
	}
	return client, media
}

func TestCost(t *testing.T) {
	n, cost := Cost("hello")
	if n != 5 {
		t.Errorf("bytes = %d, want 5", n)
	}
	if math.Abs(cost-0.000075) > 1e-12 {
		t.Errorf("cost = %f, want 0.000075", cost)
	}

	// multi-byte runes are charged per byte
	if n, _ := Cost("café"); n != 5 {
		t.Errorf("bytes = %d, want 5", n)
	}
}

func TestNewFishClient_Validation(t *testing.T) {
	if _, err := NewFishClient(FishConfig{MediaDir: t.TempDir()}); err == nil {
		t.Error("expected error without API key")
	}
	if _, err := NewFishClient(FishConfig{APIKey: "k"}); err == nil {
		t.Error("expected error without media dir")
	}
}

func TestSynthesize(t *testing.T) {
	var got ttsRequest
	client, media := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/tts" {
			t.Errorf("path = %s, want /v1/tts", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer fish-key" {
			t.Errorf("Authorization = %q", auth)
		}
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &got)
		w.Header().Set("Content-Type", "audio/mpeg")
		io.WriteString(w, "ID3-fake-audio")
	})

	art, err := client.Synthesize(context.Background(), "Next task. Buy milk.")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if got.Text != "Next task. Buy milk." || got.ReferenceID != "voice-1" || got.Format != "mp3" {
		t.Errorf("request = %+v", got)
	}
	if filepath.Dir(art.Path) != media || !strings.HasSuffix(art.Path, ".mp3") {
		t.Errorf("Path = %q, want an mp3 in %s", art.Path, media)
	}
	data, err := os.ReadFile(art.Path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(data) != "ID3-fake-audio" {
		t.Errorf("artifact content = %q", data)
	}
	if art.Bytes != len("Next task. Buy milk.") || art.Cost == 0 {
		t.Errorf("artifact = %+v, want bytes and cost set", art)
	}
}

func TestSynthesize_ServerError(t *testing.T) {
	client, media := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusPaymentRequired)
	})

	_, err := client.Synthesize(context.Background(), "hello")
	if !errors.Is(err, ErrSynthesis) {
		t.Fatalf("err = %v, want ErrSynthesis", err)
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("err = %v, want server message", err)
	}

	entries, _ := os.ReadDir(media)
	if len(entries) != 0 {
		t.Errorf("media dir has %d files after failure, want 0", len(entries))
	}
}

func TestSynthesize_EmptyBody(t *testing.T) {
	client, media := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	if _, err := client.Synthesize(context.Background(), "hello"); !errors.Is(err, ErrSynthesis) {
		t.Fatalf("err = %v, want ErrSynthesis", err)
	}
	entries, _ := os.ReadDir(media)
	if len(entries) != 0 {
		t.Errorf("media dir has %d files after failure, want 0", len(entries))
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
	})

	if _, err := client.Synthesize(context.Background(), "   "); !errors.Is(err, ErrSynthesis) {
		t.Errorf("err = %v, want ErrSynthesis", err)
	}
	if calls != 0 {
		t.Errorf("server called %d times for empty text", calls)
	}
}

// countingSynth writes a file per call and counts calls.
type countingSynth struct {
	dir   string
	calls int
	err   error
}

func (s *countingSynth) Synthesize(ctx context.Context, text string) (*Artifact, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	path := filepath.Join(s.dir, strings.Repeat("x", s.calls)+".mp3")
	if err := os.WriteFile(path, []byte("ID3"), 0644); err != nil {
		return nil, err
	}
	n, cost := Cost(text)
	return &Artifact{Path: path, Bytes: n, Cost: cost}, nil
}

func TestCachedSynthesizer(t *testing.T) {
	dir := t.TempDir()
	inner := &countingSynth{dir: dir}
	s := NewCachedSynthesizer(inner, cache.NewSynthesisCache())
	ctx := context.Background()

	first, err := s.Synthesize(ctx, "Next task. Buy milk.")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if first.Cached || first.Cost == 0 {
		t.Errorf("first = %+v, want a paid miss", first)
	}

	second, err := s.Synthesize(ctx, "next task.  buy milk.")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if !second.Cached || second.Cost != 0 || second.Path != first.Path {
		t.Errorf("second = %+v, want a free hit on %s", second, first.Path)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}

	// A deleted artifact forces a fresh synthesis.
	if err := os.Remove(first.Path); err != nil {
		t.Fatalf("remove artifact: %v", err)
	}
	third, err := s.Synthesize(ctx, "Next task. Buy milk.")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if third.Cached || inner.calls != 2 {
		t.Errorf("third = %+v calls=%d, want a fresh synthesis", third, inner.calls)
	}
}

func TestCachedSynthesizer_ErrorNotCached(t *testing.T) {
	inner := &countingSynth{dir: t.TempDir(), err: ErrSynthesis}
	c := cache.NewSynthesisCache()
	s := NewCachedSynthesizer(inner, c)

	if _, err := s.Synthesize(context.Background(), "hello"); !errors.Is(err, ErrSynthesis) {
		t.Fatalf("err = %v, want ErrSynthesis", err)
	}
	if c.Len() != 0 {
		t.Errorf("cache Len = %d, want 0", c.Len())
	}
}
