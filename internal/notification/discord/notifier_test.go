package discord

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/plexnote/plexnote/internal/config"
	"github.com/plexnote/plexnote/internal/media"
	"github.com/plexnote/plexnote/internal/metadata"
)

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func newTestNotifier(url string) (*Notifier, *sleepRecorder) {
	n := New(config.DiscordConfig{
		WebhookURL:  url,
		Style:       config.StyleBoxed,
		Timeout:     5 * time.Second,
		MaxAttempts: 3,
	}, config.PlexConfig{BaseURL: "https://app.plex.tv", ServerID: "abc"}, nil, zerolog.Nop())
	rec := &sleepRecorder{}
	n.sleep = rec.sleep
	return n, rec
}

func TestNotifier_Notify(t *testing.T) {
	var got WebhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Method = %q, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("invalid payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n, rec := newTestNotifier(server.URL)
	ev, res := heatMovie()

	if err := n.Notify(context.Background(), ev, res); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if len(got.Embeds) != 1 {
		t.Fatalf("len(Embeds) = %d, want 1", len(got.Embeds))
	}
	if got.Embeds[0].Title != "🎬 Heat" {
		t.Errorf("Title = %q, want %q", got.Embeds[0].Title, "🎬 Heat")
	}
	if len(rec.delays) != 0 {
		t.Errorf("unexpected retries: %v", rec.delays)
	}
}

func TestNotifier_Send_HonoursRetryAfter(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0.5")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n, rec := newTestNotifier(server.URL)
	if err := n.Send(context.Background(), WebhookPayload{Embeds: []Embed{{Title: "x"}}}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
	if len(rec.delays) != 1 || rec.delays[0] != 500*time.Millisecond {
		t.Errorf("delays = %v, want [500ms]", rec.delays)
	}
}

func TestNotifier_Send_RateLimitDefaultDelay(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n, rec := newTestNotifier(server.URL)
	if err := n.Send(context.Background(), WebhookPayload{}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(rec.delays) != 1 || rec.delays[0] != defaultRetryAfter {
		t.Errorf("delays = %v, want [%v]", rec.delays, defaultRetryAfter)
	}
}

func TestNotifier_Send_BacksOffAndGivesUp(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	n, rec := newTestNotifier(server.URL)
	err := n.Send(context.Background(), WebhookPayload{})
	if !errors.Is(err, ErrSendFailed) {
		t.Fatalf("Send() error = %v, want ErrSendFailed", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(rec.delays) != len(want) || rec.delays[0] != want[0] || rec.delays[1] != want[1] {
		t.Errorf("delays = %v, want %v", rec.delays, want)
	}
}

func TestNotifier_Send_StopsOnCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n, _ := newTestNotifier(server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	n.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	err := n.Send(ctx, WebhookPayload{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Send() error = %v, want context.Canceled", err)
	}
}

func TestNotifier_Send_NoWebhook(t *testing.T) {
	n, _ := newTestNotifier("")
	if err := n.Send(context.Background(), WebhookPayload{}); !errors.Is(err, ErrWebhookMissing) {
		t.Errorf("Send() error = %v, want ErrWebhookMissing", err)
	}
}

func TestRetryAfter(t *testing.T) {
	tests := map[string]time.Duration{
		"":    defaultRetryAfter,
		"3":   3 * time.Second,
		"1.5": 1500 * time.Millisecond,
		"abc": defaultRetryAfter,
		"-1":  defaultRetryAfter,
	}
	for in, want := range tests {
		if got := retryAfter(in); got != want {
			t.Errorf("retryAfter(%q) = %v, want %v", in, got, want)
		}
	}
}

func field[T any](v T, p metadata.Provenance) metadata.Field[T] {
	return metadata.Field[T]{Value: v, Source: p}
}

func heatMovie() (media.Event, *metadata.Resolved) {
	ev := media.Event{
		RatingKey:       "42",
		Kind:            media.KindMovie,
		Title:           "Heat",
		Year:            1995,
		ContentRating:   "R",
		LibraryName:     "Filme",
		VideoCodec:      "HEVC",
		VideoResolution: "4K",
		AudioLanguages:  []string{"de", "en"},
		Writers:         []string{"Michael Mann"},
		Edition:         "Director's Cut",
	}
	p := metadata.ProvenancePrimary
	res := &metadata.Resolved{
		Title:       field("Heat", p),
		Plot:        field("Ein Meisterdieb plant seinen letzten Coup.", p),
		Genres:      field([]string{"Action", "Krimi", "Drama"}, p),
		ReleaseDate: field("1995-12-15", p),
		Runtime:     field(170, p),
		Status:      field(metadata.Unknown, metadata.ProvenancePlaceholder),
		Cast:        field([]string{"Al Pacino", "Robert De Niro"}, p),
		Studio:      field("Warner Bros.", p),
		Rating:      field(7.9, p),
		Poster:      field("https://image.tmdb.org/t/p/w500/poster.jpg", p),
		Backdrop:    field("https://image.tmdb.org/t/p/w780/backdrop.jpg", p),
		Image:       field("https://image.tmdb.org/t/p/w780/backdrop.jpg", p),
		Trailer:     field("https://www.youtube.com/watch?v=abc", p),
		PrimaryURL:  "https://www.themoviedb.org/movie/949?language=de-DE",
		State:       metadata.StateResolved,
	}
	return ev, res
}
