package tvdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"github.com/plexnote/plexnote/internal/config"
	"github.com/plexnote/plexnote/internal/media"
	"github.com/plexnote/plexnote/internal/metadata"
)

var (
	ErrAPIKeyMissing = errors.New("TVDB API key is not configured")
	ErrAPIError      = errors.New("TVDB API error")
	ErrAuthFailed    = errors.New("TVDB authentication failed")
	ErrRateLimited   = errors.New("TVDB API rate limited")
)

const (
	artworkBaseURL = "https://artworks.thetvdb.com"
	pageBaseURL    = "https://thetvdb.com"

	artworkPoster     = 1
	artworkBackground = 3

	maxCast = 5
)

// Client is a TVDB API client.
type Client struct {
	httpClient *http.Client
	config     config.TVDBConfig
	logger     zerolog.Logger

	// Token management
	mu          sync.RWMutex
	token       string
	tokenExpiry time.Time
}

// NewClient creates a new TVDB client.
func NewClient(cfg config.TVDBConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config: cfg,
		logger: logger.With().Str("component", "tvdb").Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "tvdb"
}

// IsConfigured returns true if the API key is set.
func (c *Client) IsConfigured() bool {
	return c.config.APIKey != ""
}

// authenticate gets or refreshes the authentication token.
func (c *Client) authenticate(ctx context.Context) error {
	c.mu.RLock()
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		c.mu.RUnlock()
		return nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return nil
	}

	body, err := json.Marshal(LoginRequest{APIKey: c.config.APIKey})
	if err != nil {
		return fmt.Errorf("failed to marshal login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return metadata.Transient(c.Name(), fmt.Errorf("login request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error().Int("status", resp.StatusCode).Msg("TVDB authentication failed")
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return metadata.Transient(c.Name(), ErrAuthFailed)
		}
		return ErrAuthFailed
	}

	var loginResp LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return metadata.Transient(c.Name(), fmt.Errorf("failed to decode login response: %w", err))
	}

	c.token = loginResp.Data.Token
	// Tokens live for a month; refresh daily.
	c.tokenExpiry = time.Now().Add(24 * time.Hour)

	c.logger.Debug().Msg("TVDB authentication successful")
	return nil
}

// Lookup fetches the item described by q and its text in the query locale.
func (c *Client) Lookup(ctx context.Context, q metadata.Query) (*metadata.Record, error) {
	if !c.IsConfigured() {
		return nil, fmt.Errorf("%w: %w", metadata.ErrNotFound, ErrAPIKeyMissing)
	}
	if err := c.authenticate(ctx); err != nil {
		return nil, err
	}

	lang := iso639_3(q.Locale)

	if q.Kind == media.KindMovie {
		return c.lookupMovie(ctx, q, lang)
	}

	seriesID, err := c.resolveSeriesID(ctx, q)
	if err != nil {
		return nil, err
	}
	series, err := c.GetSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	rec := c.seriesRecord(series, lang)
	if err := c.translate(ctx, "series", series.ID, lang, rec); err != nil {
		return nil, err
	}

	switch q.Kind {
	case media.KindSeason:
		season, err := c.findSeason(ctx, series, q)
		if err != nil {
			return nil, err
		}
		rec.Title, rec.Plot = "", ""
		if err := c.translate(ctx, "seasons", season.ID, lang, rec); err != nil {
			return nil, err
		}
		if rec.Title == "" && season.Name != "" && lang == "eng" {
			rec.Title = season.Name
		}
		if img := bestArtwork(season.Artwork, artworkPoster, lang); img != "" {
			rec.PosterURL = img
		} else if season.Image != "" {
			rec.PosterURL = absoluteArtwork(season.Image)
		}
		rec.ReleaseDate = seasonAirDate(season)
		rec.PageURL = fmt.Sprintf("%s/series/%s/seasons/official/%d", pageBaseURL, series.Slug, season.Number)
	case media.KindEpisode:
		episode, err := c.findEpisode(ctx, series.ID, q)
		if err != nil {
			return nil, err
		}
		rec.Title, rec.Plot = "", ""
		if lang == "eng" {
			rec.Title, rec.Plot = episode.Name, episode.Overview
		}
		if err := c.translate(ctx, "episodes", episode.ID, lang, rec); err != nil {
			return nil, err
		}
		rec.ReleaseDate = episode.Aired
		if episode.Runtime > 0 {
			rec.Runtime = episode.Runtime
		}
		if episode.Image != "" {
			rec.BackdropURL = absoluteArtwork(episode.Image)
		}
		rec.ExternalIDs.TVDBEpisode = episode.ID
		rec.PageURL = fmt.Sprintf("%s/series/%s/episodes/%d", pageBaseURL, series.Slug, episode.ID)
	}

	c.logger.Debug().
		Str("kind", string(q.Kind)).
		Int("tvdbId", series.ID).
		Str("language", lang).
		Msg("Lookup completed")

	return rec, nil
}

// GetSeries fetches extended series details.
func (c *Client) GetSeries(ctx context.Context, id int) (*SeriesDetail, error) {
	var response SeriesResponse
	if err := c.doRequest(ctx, fmt.Sprintf("/series/%d/extended", id), nil, &response); err != nil {
		return nil, err
	}
	return &response.Data, nil
}

// GetSeason fetches extended season details.
func (c *Client) GetSeason(ctx context.Context, id int) (*SeasonDetail, error) {
	var response SeasonResponse
	if err := c.doRequest(ctx, fmt.Sprintf("/seasons/%d/extended", id), nil, &response); err != nil {
		return nil, err
	}
	return &response.Data, nil
}

// GetEpisode fetches extended episode details.
func (c *Client) GetEpisode(ctx context.Context, id int) (*Episode, error) {
	var response EpisodeResponse
	if err := c.doRequest(ctx, fmt.Sprintf("/episodes/%d/extended", id), nil, &response); err != nil {
		return nil, err
	}
	return &response.Data, nil
}

// GetMovie fetches extended movie details.
func (c *Client) GetMovie(ctx context.Context, id int) (*MovieDetail, error) {
	var response MovieResponse
	if err := c.doRequest(ctx, fmt.Sprintf("/movies/%d/extended", id), nil, &response); err != nil {
		return nil, err
	}
	return &response.Data, nil
}

func (c *Client) lookupMovie(ctx context.Context, q metadata.Query, lang string) (*metadata.Record, error) {
	id, err := c.search(ctx, metadata.CleanTitle(q.Title), "movie", q.Year)
	if err != nil {
		return nil, err
	}
	movie, err := c.GetMovie(ctx, id)
	if err != nil {
		return nil, err
	}

	rec := &metadata.Record{
		Source:      c.Name(),
		Genres:      genreNames(movie.Genres),
		Runtime:     movie.Runtime,
		Status:      movie.Status.Name,
		Cast:        actorNames(movie.Characters),
		PosterURL:   bestArtwork(movie.Artworks, artworkPoster, lang),
		BackdropURL: bestArtwork(movie.Artworks, artworkBackground, lang),
		TrailerURL:  pickTrailer(movie.Trailers, lang),
		PageURL:     fmt.Sprintf("%s/movies/%s", pageBaseURL, movie.Slug),
		ExternalIDs: remoteIDs(movie.RemoteIDs).Merge(media.ExternalIDs{TVDB: movie.ID}),
	}
	if rec.PosterURL == "" && movie.Image != "" {
		rec.PosterURL = absoluteArtwork(movie.Image)
	}
	if movie.FirstRelease != nil {
		rec.ReleaseDate = movie.FirstRelease.Date
	}
	if len(movie.Studios) > 0 {
		rec.Studio = movie.Studios[0].Name
	}
	if lang == "eng" || movie.OriginalLanguage == lang {
		rec.Title = movie.Name
	}
	if err := c.translate(ctx, "movies", movie.ID, lang, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (c *Client) resolveSeriesID(ctx context.Context, q metadata.Query) (int, error) {
	if q.ExternalIDs.TVDB > 0 {
		return q.ExternalIDs.TVDB, nil
	}
	year := 0
	if q.Kind == media.KindShow {
		year = q.Year
	}
	return c.search(ctx, metadata.CleanTitle(q.ShowTitle), "series", year)
}

func (c *Client) search(ctx context.Context, query, kind string, year int) (int, error) {
	if query == "" {
		return 0, metadata.ErrNotFound
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("type", kind)
	if year > 0 {
		params.Set("year", strconv.Itoa(year))
	}

	var response SearchResponse
	if err := c.doRequest(ctx, "/search", params, &response); err != nil {
		return 0, err
	}
	for _, item := range response.Data {
		if id, err := strconv.Atoi(item.TvdbID); err == nil && id > 0 {
			return id, nil
		}
	}
	return 0, metadata.ErrNotFound
}

func (c *Client) findSeason(ctx context.Context, series *SeriesDetail, q metadata.Query) (*SeasonDetail, error) {
	id := q.ExternalIDs.TVDBSeason
	if id == 0 {
		for _, s := range series.Seasons {
			if s.Number == q.SeasonNumber && (s.Type.Type == "official" || s.Type.Type == "") {
				id = s.ID
				break
			}
		}
	}
	if id == 0 {
		return nil, metadata.ErrNotFound
	}
	return c.GetSeason(ctx, id)
}

func (c *Client) findEpisode(ctx context.Context, seriesID int, q metadata.Query) (*Episode, error) {
	if q.ExternalIDs.TVDBEpisode > 0 {
		return c.GetEpisode(ctx, q.ExternalIDs.TVDBEpisode)
	}

	params := url.Values{}
	params.Set("page", "0")
	params.Set("season", strconv.Itoa(q.SeasonNumber))
	params.Set("episodeNumber", strconv.Itoa(q.EpisodeNumber))

	var response EpisodesResponse
	if err := c.doRequest(ctx, fmt.Sprintf("/series/%d/episodes/default", seriesID), params, &response); err != nil {
		return nil, err
	}
	for _, e := range response.Data.Episodes {
		if e.SeasonNumber == q.SeasonNumber && e.Number == q.EpisodeNumber {
			return &e, nil
		}
	}
	return nil, metadata.ErrNotFound
}

// translate overlays localized text. A missing translation leaves rec as is.
func (c *Client) translate(ctx context.Context, entity string, id int, lang string, rec *metadata.Record) error {
	if lang == "" || id == 0 {
		return nil
	}
	var response TranslationResponse
	err := c.doRequest(ctx, fmt.Sprintf("/%s/%d/translations/%s", entity, id, lang), nil, &response)
	if errors.Is(err, metadata.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if name := strings.TrimSpace(response.Data.Name); name != "" {
		rec.Title = name
	}
	if overview := strings.TrimSpace(response.Data.Overview); overview != "" {
		rec.Plot = overview
	}
	return nil
}

// doRequest performs an HTTP GET request with authentication.
func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values, result interface{}) error {
	reqURL := c.config.BaseURL + endpoint
	if len(params) > 0 {
		reqURL = fmt.Sprintf("%s?%s", reqURL, params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return metadata.Transient(c.Name(), fmt.Errorf("HTTP request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return metadata.ErrNotFound
		case resp.StatusCode == http.StatusUnauthorized:
			// Token might be expired; the retry logs in again.
			c.mu.Lock()
			c.token = ""
			c.mu.Unlock()
			return metadata.Transient(c.Name(), fmt.Errorf("%w: unauthorized", ErrAPIError))
		case resp.StatusCode == http.StatusTooManyRequests:
			return metadata.Transient(c.Name(), ErrRateLimited)
		case resp.StatusCode >= 500:
			return metadata.Transient(c.Name(), fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode))
		default:
			return fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return metadata.Transient(c.Name(), fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

func (c *Client) seriesRecord(s *SeriesDetail, lang string) *metadata.Record {
	rec := &metadata.Record{
		Source:      c.Name(),
		Genres:      genreNames(s.Genres),
		ReleaseDate: s.FirstAired,
		Runtime:     s.AverageRuntime,
		Status:      s.Status.Name,
		Cast:        actorNames(s.Characters),
		PosterURL:   bestArtwork(s.Artworks, artworkPoster, lang),
		BackdropURL: bestArtwork(s.Artworks, artworkBackground, lang),
		TrailerURL:  pickTrailer(s.Trailers, lang),
		PageURL:     fmt.Sprintf("%s/series/%s", pageBaseURL, s.Slug),
		ExternalIDs: remoteIDs(s.RemoteIDs).Merge(media.ExternalIDs{TVDB: s.ID}),
	}
	if rec.PosterURL == "" && s.Image != "" {
		rec.PosterURL = absoluteArtwork(s.Image)
	}
	if s.OriginalNetwork != nil {
		rec.Studio = s.OriginalNetwork.Name
	}
	// Base fields are in the original language.
	if lang == "eng" || s.OriginalLanguage == lang {
		rec.Title = s.Name
		rec.Plot = s.Overview
	}
	return rec
}

func seasonAirDate(s *SeasonDetail) string {
	earliest := ""
	for _, e := range s.Episodes {
		if e.Aired != "" && (earliest == "" || e.Aired < earliest) {
			earliest = e.Aired
		}
	}
	return earliest
}

// bestArtwork returns the highest scored artwork of the given type, preferring
// the requested language, then English, then language-neutral images.
func bestArtwork(artworks []Artwork, artworkType int, lang string) string {
	var best *Artwork
	rank := func(a Artwork) int {
		switch a.Language {
		case lang:
			return 3
		case "eng":
			return 2
		case "":
			return 1
		default:
			return 0
		}
	}
	for i := range artworks {
		a := artworks[i]
		if a.Type != artworkType || a.Image == "" {
			continue
		}
		if best == nil || rank(a) > rank(*best) || (rank(a) == rank(*best) && a.Score > best.Score) {
			best = &artworks[i]
		}
	}
	if best == nil {
		return ""
	}
	return absoluteArtwork(best.Image)
}

func absoluteArtwork(path string) string {
	if path == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return artworkBaseURL + "/" + strings.TrimPrefix(path, "/")
}

func pickTrailer(trailers []Trailer, lang string) string {
	for _, want := range []string{lang, "eng", ""} {
		for _, t := range trailers {
			if t.URL != "" && (want == "" || t.Language == want) {
				return t.URL
			}
		}
	}
	return ""
}

func actorNames(characters []Character) []string {
	var actors []Character
	for _, ch := range characters {
		if ch.PeopleType == "Actor" && ch.PersonName != "" {
			actors = append(actors, ch)
		}
	}
	sort.SliceStable(actors, func(i, j int) bool {
		return actors[i].Sort < actors[j].Sort
	})
	names := make([]string, 0, maxCast)
	for _, a := range actors {
		if len(names) == maxCast {
			break
		}
		names = append(names, a.PersonName)
	}
	return names
}

func genreNames(genres []Genre) []string {
	names := make([]string, 0, len(genres))
	for _, g := range genres {
		if g.Name != "" {
			names = append(names, g.Name)
		}
	}
	return names
}

func remoteIDs(ids []RemoteID) media.ExternalIDs {
	var out media.ExternalIDs
	for _, r := range ids {
		switch r.SourceName {
		case "IMDB":
			if out.IMDB == "" {
				out.IMDB = r.ID
			}
		case "TheMovieDB.com":
			if out.TMDB == 0 {
				out.TMDB, _ = strconv.Atoi(r.ID)
			}
		}
	}
	return out
}

// iso639_3 maps a BCP 47 locale such as "de-DE" to the three-letter code
// TVDB uses for translations.
func iso639_3(locale string) string {
	tag, err := language.Parse(locale)
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	return base.ISO3()
}
