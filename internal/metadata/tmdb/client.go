package tmdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/plexnote/plexnote/internal/config"
	"github.com/plexnote/plexnote/internal/media"
	"github.com/plexnote/plexnote/internal/metadata"
)

var (
	ErrAPIKeyMissing = errors.New("TMDB API key is not configured")
	ErrAPIError      = errors.New("TMDB API error")
	ErrRateLimited   = errors.New("TMDB API rate limited")
)

const (
	posterSize   = "w500"
	backdropSize = "w780"
	maxCast      = 5

	pageBaseURL    = "https://www.themoviedb.org"
	youtubeBaseURL = "https://www.youtube.com/watch?v="
)

// Client is a TMDB API client.
type Client struct {
	httpClient *http.Client
	config     config.TMDBConfig
	limiter    *rate.Limiter
	logger     zerolog.Logger
}

// NewClient creates a new TMDB client.
func NewClient(cfg config.TMDBConfig, logger zerolog.Logger) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 20
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config:  cfg,
		limiter: rate.NewLimiter(rate.Limit(rps), max(1, int(rps))),
		logger:  logger.With().Str("component", "tmdb").Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "tmdb"
}

// IsConfigured returns true if the API key is set.
func (c *Client) IsConfigured() bool {
	return c.config.APIKey != ""
}

// Test verifies connectivity to the TMDB API by making a configuration request.
func (c *Client) Test(ctx context.Context) error {
	if !c.IsConfigured() {
		return ErrAPIKeyMissing
	}

	var result struct {
		Images struct {
			BaseURL string `json:"base_url"`
		} `json:"images"`
	}
	return c.doRequest(ctx, "/configuration", url.Values{}, &result)
}

// Lookup fetches the item described by q in the query locale.
func (c *Client) Lookup(ctx context.Context, q metadata.Query) (*metadata.Record, error) {
	if !c.IsConfigured() {
		return nil, fmt.Errorf("%w: %w", metadata.ErrNotFound, ErrAPIKeyMissing)
	}

	if q.Kind == media.KindMovie {
		id, err := c.resolveMovieID(ctx, q)
		if err != nil {
			return nil, err
		}
		details, err := c.GetMovie(ctx, id, q.Locale)
		if err != nil {
			return nil, err
		}
		return c.movieRecord(details, q.Locale), nil
	}

	id, err := c.resolveSeriesID(ctx, q)
	if err != nil {
		return nil, err
	}
	series, err := c.GetSeries(ctx, id, q.Locale)
	if err != nil {
		return nil, err
	}
	rec := c.seriesRecord(series, q.Locale)

	switch q.Kind {
	case media.KindSeason:
		season, err := c.GetSeason(ctx, id, q.SeasonNumber, q.Locale)
		switch {
		case errors.Is(err, metadata.ErrNotFound):
			c.logger.Debug().Int("tmdbId", id).Int("season", q.SeasonNumber).Msg("Season not found, using series record")
			clearItemText(rec)
		case err != nil:
			return nil, err
		default:
			c.applySeason(rec, id, season, q.Locale)
		}
	case media.KindEpisode:
		episode, err := c.GetEpisode(ctx, id, q.SeasonNumber, q.EpisodeNumber, q.Locale)
		switch {
		case errors.Is(err, metadata.ErrNotFound):
			c.logger.Debug().Int("tmdbId", id).Int("season", q.SeasonNumber).Int("episode", q.EpisodeNumber).
				Msg("Episode not found, using series record")
			clearItemText(rec)
			rec.Plot = ""
		case err != nil:
			return nil, err
		default:
			c.applyEpisode(rec, id, episode, q.Locale)
		}
	}

	c.logger.Debug().
		Str("kind", string(q.Kind)).
		Int("tmdbId", id).
		Str("locale", q.Locale).
		Msg("Lookup completed")

	return rec, nil
}

// GetMovie fetches movie details with credits, videos, images and external ids.
func (c *Client) GetMovie(ctx context.Context, id int, locale string) (*MovieDetails, error) {
	var details MovieDetails
	if err := c.doRequest(ctx, fmt.Sprintf("/movie/%d", id), c.detailParams(locale), &details); err != nil {
		return nil, err
	}
	return &details, nil
}

// GetSeries fetches series details with credits, videos, images and external ids.
func (c *Client) GetSeries(ctx context.Context, id int, locale string) (*TVDetails, error) {
	var details TVDetails
	if err := c.doRequest(ctx, fmt.Sprintf("/tv/%d", id), c.detailParams(locale), &details); err != nil {
		return nil, err
	}
	return &details, nil
}

// GetSeason fetches a single season of a series.
func (c *Client) GetSeason(ctx context.Context, seriesID, season int, locale string) (*SeasonDetails, error) {
	params := url.Values{}
	params.Set("language", locale)

	var details SeasonDetails
	if err := c.doRequest(ctx, fmt.Sprintf("/tv/%d/season/%d", seriesID, season), params, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

// GetEpisode fetches a single episode of a series.
func (c *Client) GetEpisode(ctx context.Context, seriesID, season, episode int, locale string) (*EpisodeDetails, error) {
	params := url.Values{}
	params.Set("language", locale)

	var details EpisodeDetails
	endpoint := fmt.Sprintf("/tv/%d/season/%d/episode/%d", seriesID, season, episode)
	if err := c.doRequest(ctx, endpoint, params, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

// GetImageURL returns the full URL for an image path.
func (c *Client) GetImageURL(path, size string) string {
	if path == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s%s", c.config.ImageBaseURL, size, path)
}

func (c *Client) detailParams(locale string) url.Values {
	lang := languageCode(locale)
	params := url.Values{}
	params.Set("language", locale)
	params.Set("append_to_response", "credits,videos,images,external_ids")
	params.Set("include_image_language", lang+",null,en")
	params.Set("include_video_language", lang+",en,null")
	return params
}

func (c *Client) resolveMovieID(ctx context.Context, q metadata.Query) (int, error) {
	if q.ExternalIDs.TMDB > 0 {
		return q.ExternalIDs.TMDB, nil
	}
	if q.ExternalIDs.IMDB != "" {
		found, err := c.find(ctx, q.ExternalIDs.IMDB, "imdb_id")
		if err != nil && !errors.Is(err, metadata.ErrNotFound) {
			return 0, err
		}
		if found != nil && len(found.MovieResults) > 0 {
			return found.MovieResults[0].ID, nil
		}
	}

	title := metadata.CleanTitle(q.Title)
	if title == "" {
		return 0, metadata.ErrNotFound
	}
	params := url.Values{}
	params.Set("query", title)
	params.Set("include_adult", "false")
	params.Set("language", q.Locale)
	if q.Year > 0 {
		params.Set("year", strconv.Itoa(q.Year))
	}

	var response SearchMoviesResponse
	if err := c.doRequest(ctx, "/search/movie", params, &response); err != nil {
		return 0, err
	}
	if len(response.Results) == 0 {
		return 0, metadata.ErrNotFound
	}
	return response.Results[0].ID, nil
}

func (c *Client) resolveSeriesID(ctx context.Context, q metadata.Query) (int, error) {
	if q.ExternalIDs.TMDB > 0 {
		return q.ExternalIDs.TMDB, nil
	}

	lookups := []struct {
		id     string
		source string
	}{
		{intString(q.ExternalIDs.TVDB), "tvdb_id"},
		{q.ExternalIDs.IMDB, "imdb_id"},
	}
	for _, l := range lookups {
		if l.id == "" {
			continue
		}
		found, err := c.find(ctx, l.id, l.source)
		if err != nil && !errors.Is(err, metadata.ErrNotFound) {
			return 0, err
		}
		if found != nil && len(found.TVResults) > 0 {
			return found.TVResults[0].ID, nil
		}
	}

	title := metadata.CleanTitle(q.ShowTitle)
	if title == "" {
		return 0, metadata.ErrNotFound
	}
	params := url.Values{}
	params.Set("query", title)
	params.Set("include_adult", "false")
	params.Set("language", q.Locale)
	// The event year of a season or episode is not the series' first air year.
	if q.Kind == media.KindShow && q.Year > 0 {
		params.Set("first_air_date_year", strconv.Itoa(q.Year))
	}

	var response SearchTVResponse
	if err := c.doRequest(ctx, "/search/tv", params, &response); err != nil {
		return 0, err
	}
	if len(response.Results) == 0 {
		return 0, metadata.ErrNotFound
	}
	return response.Results[0].ID, nil
}

func (c *Client) find(ctx context.Context, externalID, source string) (*FindResponse, error) {
	params := url.Values{}
	params.Set("external_source", source)

	var response FindResponse
	if err := c.doRequest(ctx, "/find/"+url.PathEscape(externalID), params, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// doRequest performs a rate-limited GET against the API and decodes the body.
func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return metadata.Transient(c.Name(), err)
	}

	params.Set("api_key", c.config.APIKey)
	reqURL := fmt.Sprintf("%s%s?%s", c.config.BaseURL, endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return metadata.Transient(c.Name(), fmt.Errorf("HTTP request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.StatusMessage != "" {
			c.logger.Debug().
				Int("status", resp.StatusCode).
				Str("endpoint", endpoint).
				Str("message", errResp.StatusMessage).
				Msg("TMDB API error")
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return metadata.ErrNotFound
		case resp.StatusCode == http.StatusUnauthorized:
			return fmt.Errorf("%w: invalid API key", ErrAPIError)
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

func (c *Client) movieRecord(d *MovieDetails, locale string) *metadata.Record {
	rec := &metadata.Record{
		Source:      c.Name(),
		Title:       d.Title,
		Plot:        d.Overview,
		Genres:      genreNames(d.Genres),
		ReleaseDate: d.ReleaseDate,
		Runtime:     d.Runtime,
		Status:      d.Status,
		Cast:        castNames(d.Credits),
		Rating:      d.VoteAverage,
		PosterURL:   c.GetImageURL(imagePath(d.PosterPath, d.Images, false), posterSize),
		BackdropURL: c.GetImageURL(imagePath(d.BackdropPath, d.Images, true), backdropSize),
		TrailerURL:  pickTrailer(d.Videos, locale),
		PageURL:     pageURL(locale, "movie", d.ID),
		ExternalIDs: media.ExternalIDs{TMDB: d.ID, IMDB: d.ImdbID},
	}
	if len(d.ProductionCompanies) > 0 {
		rec.Studio = d.ProductionCompanies[0].Name
	}
	if d.ExternalIDs != nil {
		rec.ExternalIDs.TVDB = d.ExternalIDs.TvdbID
		if rec.ExternalIDs.IMDB == "" {
			rec.ExternalIDs.IMDB = d.ExternalIDs.ImdbID
		}
	}
	return rec
}

func (c *Client) seriesRecord(d *TVDetails, locale string) *metadata.Record {
	rec := &metadata.Record{
		Source:      c.Name(),
		Title:       d.Name,
		Plot:        d.Overview,
		Genres:      genreNames(d.Genres),
		ReleaseDate: d.FirstAirDate,
		Status:      d.Status,
		Cast:        castNames(d.Credits),
		Rating:      d.VoteAverage,
		PosterURL:   c.GetImageURL(imagePath(d.PosterPath, d.Images, false), posterSize),
		BackdropURL: c.GetImageURL(imagePath(d.BackdropPath, d.Images, true), backdropSize),
		TrailerURL:  pickTrailer(d.Videos, locale),
		PageURL:     pageURL(locale, "tv", d.ID),
		ExternalIDs: media.ExternalIDs{TMDB: d.ID},
	}
	if len(d.EpisodeRunTime) > 0 {
		rec.Runtime = d.EpisodeRunTime[0]
	}
	if len(d.Networks) > 0 {
		rec.Studio = d.Networks[0].Name
	}
	if d.ExternalIDs != nil {
		rec.ExternalIDs.TVDB = d.ExternalIDs.TvdbID
		rec.ExternalIDs.IMDB = d.ExternalIDs.ImdbID
	}
	return rec
}

func (c *Client) applySeason(rec *metadata.Record, seriesID int, s *SeasonDetails, locale string) {
	rec.Title = s.Name
	if strings.TrimSpace(s.Overview) != "" {
		rec.Plot = s.Overview
	}
	rec.ReleaseDate = s.AirDate
	if s.VoteAverage > 0 {
		rec.Rating = s.VoteAverage
	}
	if s.PosterPath != nil && *s.PosterPath != "" {
		rec.PosterURL = c.GetImageURL(*s.PosterPath, posterSize)
	}
	rec.PageURL = pageURL(locale, fmt.Sprintf("tv/%d/season", seriesID), s.SeasonNumber)
}

func (c *Client) applyEpisode(rec *metadata.Record, seriesID int, e *EpisodeDetails, locale string) {
	rec.Title = e.Name
	rec.Plot = e.Overview
	rec.ReleaseDate = e.AirDate
	if e.Runtime > 0 {
		rec.Runtime = e.Runtime
	}
	if e.VoteAverage > 0 {
		rec.Rating = e.VoteAverage
	}
	if e.StillPath != nil && *e.StillPath != "" {
		rec.BackdropURL = c.GetImageURL(*e.StillPath, backdropSize)
	}
	rec.PageURL = fmt.Sprintf("%s/tv/%d/season/%d/episode/%d?language=%s",
		pageBaseURL, seriesID, e.SeasonNumber, e.EpisodeNumber, locale)
}

// clearItemText drops the series title, date and rating from a record
// standing in for a season or episode TMDB does not know yet. Artwork,
// genres, status, cast and the series page stay.
func clearItemText(rec *metadata.Record) {
	rec.Title = ""
	rec.ReleaseDate = ""
	rec.Rating = 0
}

func pageURL(locale, kind string, id int) string {
	return fmt.Sprintf("%s/%s/%d?language=%s", pageBaseURL, kind, id, locale)
}

// pickTrailer selects a YouTube trailer in the preferred language, then
// English, then any language.
func pickTrailer(videos *VideosResponse, locale string) string {
	if videos == nil {
		return ""
	}
	var trailers []Video
	for _, v := range videos.Results {
		if v.Site == "YouTube" && v.Type == "Trailer" && v.Key != "" {
			trailers = append(trailers, v)
		}
	}
	for _, lang := range []string{languageCode(locale), "en", ""} {
		for _, v := range trailers {
			if lang == "" || v.Iso6391 == lang {
				return youtubeBaseURL + v.Key
			}
		}
	}
	return ""
}

// imagePath prefers the item's own path and otherwise the best-voted image
// from the appended images section.
func imagePath(own *string, images *ImagesResponse, backdrop bool) string {
	if own != nil && *own != "" {
		return *own
	}
	if images == nil {
		return ""
	}
	list := images.Posters
	if backdrop {
		list = images.Backdrops
	}
	if len(list) == 0 {
		return ""
	}
	best := list[0]
	for _, img := range list[1:] {
		if img.VoteAverage > best.VoteAverage {
			best = img
		}
	}
	return best.FilePath
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

func castNames(credits *CreditsResponse) []string {
	if credits == nil || len(credits.Cast) == 0 {
		return nil
	}
	cast := append([]CastMember(nil), credits.Cast...)
	sort.SliceStable(cast, func(i, j int) bool {
		return cast[i].Order < cast[j].Order
	})
	names := make([]string, 0, maxCast)
	for _, m := range cast {
		if len(names) == maxCast {
			break
		}
		names = append(names, m.Name)
	}
	return names
}

func languageCode(locale string) string {
	lang, _, _ := strings.Cut(locale, "-")
	return strings.ToLower(lang)
}

func intString(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}
