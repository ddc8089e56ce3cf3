package tvdb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/plexnote/plexnote/internal/config"
	"github.com/plexnote/plexnote/internal/media"
	"github.com/plexnote/plexnote/internal/metadata"
)

func newTestClient(server *httptest.Server) *Client {
	cfg := config.TVDBConfig{
		APIKey:  "test-api-key",
		BaseURL: server.URL,
		Timeout: 5,
	}
	client := NewClient(cfg, zerolog.Nop())
	// Pre-set a valid token to skip authentication in tests
	client.token = "test-token"
	client.tokenExpiry = time.Now().Add(24 * time.Hour)
	return client
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func breakingBad() SeriesDetail {
	return SeriesDetail{
		ID:               81189,
		Name:             "Breaking Bad",
		Slug:             "breaking-bad",
		FirstAired:       "2008-01-20",
		Status:           SeriesStatus{Name: "Ended"},
		OriginalLanguage: "eng",
		AverageRuntime:   47,
		Overview:         "A chemistry teacher.",
		Genres:           []Genre{{Name: "Drama"}, {Name: "Crime"}},
		OriginalNetwork:  &Company{Name: "AMC"},
		Artworks: []Artwork{
			{Image: "/banners/posters/en.jpg", Type: artworkPoster, Language: "eng", Score: 10},
			{Image: "/banners/posters/de.jpg", Type: artworkPoster, Language: "deu", Score: 1},
			{Image: "https://artworks.thetvdb.com/banners/fanart/bg.jpg", Type: artworkBackground, Score: 5},
		},
		Characters: []Character{
			{PersonName: "Aaron Paul", PeopleType: "Actor", Sort: 2},
			{PersonName: "Vince Gilligan", PeopleType: "Director", Sort: 0},
			{PersonName: "Bryan Cranston", PeopleType: "Actor", Sort: 1},
		},
		Seasons: []SeasonRef{
			{ID: 30272, Number: 5, Type: SeasonType{Type: "dvd"}},
			{ID: 490110, Number: 5, Type: SeasonType{Type: "official"}},
		},
		RemoteIDs: []RemoteID{
			{ID: "tt0903747", SourceName: "IMDB"},
			{ID: "1396", SourceName: "TheMovieDB.com"},
		},
	}
}

func TestClient_Name(t *testing.T) {
	client := NewClient(config.TVDBConfig{}, zerolog.Nop())
	if client.Name() != "tvdb" {
		t.Errorf("Name() = %q, want %q", client.Name(), "tvdb")
	}
}

func TestClient_IsConfigured(t *testing.T) {
	tests := []struct {
		name   string
		apiKey string
		want   bool
	}{
		{"with key", "abc123", true},
		{"without key", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(config.TVDBConfig{APIKey: tt.apiKey}, zerolog.Nop())
			if got := client.IsConfigured(); got != tt.want {
				t.Errorf("IsConfigured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClient_Lookup_Series(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-token" {
			t.Errorf("Authorization = %q", auth)
		}
		switch r.URL.Path {
		case "/series/81189/extended":
			writeJSON(w, SeriesResponse{Data: breakingBad()})
		case "/series/81189/translations/deu":
			writeJSON(w, TranslationResponse{Data: Translation{Name: "Breaking Bad", Overview: "Ein Chemielehrer."}})
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := newTestClient(server)
	rec, err := client.Lookup(context.Background(), metadata.Query{
		Kind:        media.KindShow,
		Title:       "Breaking Bad",
		ExternalIDs: media.ExternalIDs{TVDB: 81189},
		Locale:      "de-DE",
	})
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}

	if rec.Plot != "Ein Chemielehrer." {
		t.Errorf("Plot = %q, want German translation", rec.Plot)
	}
	if rec.PosterURL != "https://artworks.thetvdb.com/banners/posters/de.jpg" {
		t.Errorf("PosterURL = %q, want German poster made absolute", rec.PosterURL)
	}
	if rec.BackdropURL != "https://artworks.thetvdb.com/banners/fanart/bg.jpg" {
		t.Errorf("BackdropURL = %q", rec.BackdropURL)
	}
	if len(rec.Cast) != 2 || rec.Cast[0] != "Bryan Cranston" {
		t.Errorf("Cast = %v, want actors in sort order", rec.Cast)
	}
	if rec.Studio != "AMC" || rec.Status != "Ended" || rec.Runtime != 47 {
		t.Errorf("Studio/Status/Runtime = %q/%q/%d", rec.Studio, rec.Status, rec.Runtime)
	}
	if rec.PageURL != "https://thetvdb.com/series/breaking-bad" {
		t.Errorf("PageURL = %q", rec.PageURL)
	}
	if rec.ExternalIDs.TMDB != 1396 || rec.ExternalIDs.IMDB != "tt0903747" || rec.ExternalIDs.TVDB != 81189 {
		t.Errorf("ExternalIDs = %+v", rec.ExternalIDs)
	}
}

func TestClient_Lookup_MissingTranslationLeavesTextEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/series/81189/extended":
			writeJSON(w, SeriesResponse{Data: breakingBad()})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := newTestClient(server)
	rec, err := client.Lookup(context.Background(), metadata.Query{
		Kind: media.KindShow, ExternalIDs: media.ExternalIDs{TVDB: 81189}, Locale: "de-DE",
	})
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if rec.HasText() {
		t.Errorf("HasText() = true, want false so the caller falls back to another locale")
	}

	rec, err = client.Lookup(context.Background(), metadata.Query{
		Kind: media.KindShow, ExternalIDs: media.ExternalIDs{TVDB: 81189}, Locale: "en-US",
	})
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if rec.Title != "Breaking Bad" || rec.Plot != "A chemistry teacher." {
		t.Errorf("Title/Plot = %q/%q, want base English text", rec.Title, rec.Plot)
	}
}

func TestClient_Lookup_EpisodeBySeasonAndNumber(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			q := r.URL.Query()
			if q.Get("query") != "Breaking Bad" || q.Get("type") != "series" {
				t.Errorf("search query = %v", q)
			}
			if q.Get("year") != "" {
				t.Errorf("year = %q, want none for episodes", q.Get("year"))
			}
			writeJSON(w, SearchResponse{Data: []SearchResult{{Name: "Breaking Bad", TvdbID: "81189"}}})
		case "/series/81189/extended":
			writeJSON(w, SeriesResponse{Data: breakingBad()})
		case "/series/81189/translations/deu":
			writeJSON(w, TranslationResponse{Data: Translation{Name: "Breaking Bad", Overview: "Serie."}})
		case "/series/81189/episodes/default":
			q := r.URL.Query()
			if q.Get("season") != "5" || q.Get("episodeNumber") != "14" {
				t.Errorf("episode query = %v", q)
			}
			var resp EpisodesResponse
			resp.Data.Episodes = []Episode{{ID: 4639433, Name: "Ozymandias", SeasonNumber: 5, Number: 14, Aired: "2013-09-15", Runtime: 48, Image: "/banners/episodes/oz.jpg"}}
			writeJSON(w, resp)
		case "/episodes/4639433/translations/deu":
			writeJSON(w, TranslationResponse{Data: Translation{Name: "Ozymandias", Overview: "Walt flieht."}})
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := newTestClient(server)
	rec, err := client.Lookup(context.Background(), metadata.Query{
		Kind:          media.KindEpisode,
		Title:         "Ozymandias",
		ShowTitle:     "Breaking Bad",
		Year:          2013,
		SeasonNumber:  5,
		EpisodeNumber: 14,
		Locale:        "de-DE",
	})
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}

	if rec.Title != "Ozymandias" || rec.Plot != "Walt flieht." {
		t.Errorf("Title/Plot = %q/%q", rec.Title, rec.Plot)
	}
	if rec.ReleaseDate != "2013-09-15" || rec.Runtime != 48 {
		t.Errorf("ReleaseDate/Runtime = %q/%d", rec.ReleaseDate, rec.Runtime)
	}
	if rec.BackdropURL != "https://artworks.thetvdb.com/banners/episodes/oz.jpg" {
		t.Errorf("BackdropURL = %q", rec.BackdropURL)
	}
	if rec.PageURL != "https://thetvdb.com/series/breaking-bad/episodes/4639433" {
		t.Errorf("PageURL = %q", rec.PageURL)
	}
	if rec.ExternalIDs.TVDBEpisode != 4639433 {
		t.Errorf("ExternalIDs.TVDBEpisode = %d", rec.ExternalIDs.TVDBEpisode)
	}
}

func TestClient_Lookup_SeasonUsesOfficialOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/series/81189/extended":
			writeJSON(w, SeriesResponse{Data: breakingBad()})
		case "/seasons/490110/extended":
			writeJSON(w, SeasonResponse{Data: SeasonDetail{
				ID:     490110,
				Number: 5,
				Image:  "/banners/seasons/5.jpg",
				Episodes: []Episode{
					{Aired: "2013-08-11"},
					{Aired: "2012-07-15"},
				},
			}})
		case "/seasons/490110/translations/deu":
			writeJSON(w, TranslationResponse{Data: Translation{Name: "Staffel 5"}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := newTestClient(server)
	rec, err := client.Lookup(context.Background(), metadata.Query{
		Kind: media.KindSeason, SeasonNumber: 5, ExternalIDs: media.ExternalIDs{TVDB: 81189}, Locale: "de-DE",
	})
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if rec.Title != "Staffel 5" {
		t.Errorf("Title = %q", rec.Title)
	}
	if rec.ReleaseDate != "2012-07-15" {
		t.Errorf("ReleaseDate = %q, want earliest episode air date", rec.ReleaseDate)
	}
	if rec.PosterURL != "https://artworks.thetvdb.com/banners/seasons/5.jpg" {
		t.Errorf("PosterURL = %q", rec.PosterURL)
	}
	if rec.PageURL != "https://thetvdb.com/series/breaking-bad/seasons/official/5" {
		t.Errorf("PageURL = %q", rec.PageURL)
	}
}

func TestClient_Lookup_SeriesNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		writeJSON(w, ErrorResponse{Status: "failure", Message: "NotFoundException"})
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.Lookup(context.Background(), metadata.Query{
		Kind: media.KindShow, ExternalIDs: media.ExternalIDs{TVDB: 1},
	})
	if !errors.Is(err, metadata.ErrNotFound) {
		t.Errorf("Lookup() error = %v, want ErrNotFound", err)
	}
}

func TestClient_Authenticate(t *testing.T) {
	logins := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			logins++
			var req LoginRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.APIKey != "test-api-key" {
				t.Errorf("login body = %+v, err = %v", req, err)
			}
			response := LoginResponse{Status: "success"}
			response.Data.Token = "new-test-token"
			writeJSON(w, response)
			return
		}

		if auth := r.Header.Get("Authorization"); auth != "Bearer new-test-token" {
			t.Errorf("Authorization = %q, want Bearer token", auth)
		}
		writeJSON(w, SearchResponse{Status: "success"})
	}))
	defer server.Close()

	cfg := config.TVDBConfig{APIKey: "test-api-key", BaseURL: server.URL, Timeout: 5}
	client := NewClient(cfg, zerolog.Nop())

	q := metadata.Query{Kind: media.KindShow, ShowTitle: "test"}
	for i := 0; i < 2; i++ {
		if _, err := client.Lookup(context.Background(), q); !errors.Is(err, metadata.ErrNotFound) {
			t.Fatalf("Lookup() error = %v, want ErrNotFound for empty search", err)
		}
	}

	if client.token != "new-test-token" {
		t.Errorf("token = %q, want %q", client.token, "new-test-token")
	}
	if logins != 1 {
		t.Errorf("logins = %d, want token reuse", logins)
	}
}

func TestClient_AuthenticationFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		writeJSON(w, ErrorResponse{Status: "failure", Message: "Invalid API key"})
	}))
	defer server.Close()

	cfg := config.TVDBConfig{APIKey: "invalid-key", BaseURL: server.URL, Timeout: 5}
	client := NewClient(cfg, zerolog.Nop())

	_, err := client.Lookup(context.Background(), metadata.Query{Kind: media.KindShow, ShowTitle: "test"})
	if !errors.Is(err, ErrAuthFailed) {
		t.Errorf("Lookup() error = %v, want %v", err, ErrAuthFailed)
	}
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusServiceUnavailable, true},
		{"expired token", http.StatusUnauthorized, true},
		{"bad request", http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := newTestClient(server)
			_, err := client.Lookup(context.Background(), metadata.Query{
				Kind: media.KindShow, ExternalIDs: media.ExternalIDs{TVDB: 1},
			})
			if err == nil {
				t.Fatal("Lookup() error = nil")
			}
			if got := metadata.IsTransient(err); got != tt.transient {
				t.Errorf("IsTransient(%v) = %v, want %v", err, got, tt.transient)
			}
			if tt.status == http.StatusUnauthorized && client.token != "" {
				t.Errorf("token = %q, want cleared after 401", client.token)
			}
		})
	}
}

func TestISO639_3(t *testing.T) {
	tests := map[string]string{
		"de-DE": "deu",
		"en-US": "eng",
		"fr":    "fra",
		"???":   "",
	}
	for in, want := range tests {
		if got := iso639_3(in); got != want {
			t.Errorf("iso639_3(%q) = %q, want %q", in, got, want)
		}
	}
}
