// Package metadata resolves a library event into a fully populated,
// provenance-tagged metadata record by consulting the primary catalog, then
// the secondary catalog, then the event itself, then fixed placeholders.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/plexnote/plexnote/internal/media"
)

// Unknown is the sentinel for text fields no source could fill.
const Unknown = "unknown"

// Provenance names the source of a resolved field.
type Provenance string

const (
	ProvenancePrimary     Provenance = "primary"
	ProvenanceSecondary   Provenance = "secondary"
	ProvenanceEvent       Provenance = "event"
	ProvenancePlaceholder Provenance = "placeholder"
)

// State is a step of a single resolution.
type State string

const (
	StatePending          State = "PENDING"
	StatePrimaryQueried   State = "PRIMARY_QUERIED"
	StateSecondaryQueried State = "SECONDARY_QUERIED"
	StateResolved         State = "RESOLVED"
)

// Field is a resolved value together with its source.
type Field[T any] struct {
	Value  T
	Source Provenance
}

// IsPlaceholder reports whether no real source supplied the value.
func (f Field[T]) IsPlaceholder() bool {
	return f.Source == ProvenancePlaceholder
}

// Resolved is the outcome of a resolution. Every field is populated, if only
// with a placeholder.
type Resolved struct {
	Title       Field[string]
	Plot        Field[string]
	Genres      Field[[]string]
	ReleaseDate Field[string]
	Runtime     Field[int]
	Status      Field[string]
	Cast        Field[[]string]
	Studio      Field[string]
	Rating      Field[float64]
	Poster      Field[string]
	Backdrop    Field[string]
	Image       Field[string]
	Trailer     Field[string]

	// PrimaryURL and SecondaryURL link to the catalog pages of the item when
	// that catalog supplied data.
	PrimaryURL   string
	SecondaryURL string

	ExternalIDs media.ExternalIDs
	State       State
	Path        []State
}

// Supplied reports whether any field came from the given source.
func (r *Resolved) Supplied(p Provenance) bool {
	sources := []Provenance{
		r.Title.Source, r.Plot.Source, r.Genres.Source, r.ReleaseDate.Source,
		r.Runtime.Source, r.Status.Source, r.Cast.Source, r.Studio.Source,
		r.Rating.Source, r.Poster.Source, r.Backdrop.Source, r.Trailer.Source,
	}
	for _, s := range sources {
		if s == p {
			return true
		}
	}
	return false
}

// Config holds pipeline settings.
type Config struct {
	PreferredLocale  string
	FallbackLocale   string
	RetryDelay       time.Duration
	CallTimeout      time.Duration
	PlaceholderImage string
	PreferPoster     bool
}

// DefaultConfig returns the standard pipeline settings.
func DefaultConfig() Config {
	return Config{
		PreferredLocale: "de-DE",
		FallbackLocale:  "en-US",
		RetryDelay:      500 * time.Millisecond,
		CallTimeout:     4 * time.Second,
	}
}

// Pipeline resolves events against a primary and a secondary catalog.
type Pipeline struct {
	primary   Catalog
	secondary Catalog
	cfg       Config
	cache     *Cache
	logger    zerolog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewPipeline creates a pipeline. Either catalog may be nil when it is not
// configured.
func NewPipeline(primary, secondary Catalog, cfg Config, logger zerolog.Logger) *Pipeline {
	def := DefaultConfig()
	if cfg.PreferredLocale == "" {
		cfg.PreferredLocale = def.PreferredLocale
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}

	return &Pipeline{
		primary:   primary,
		secondary: secondary,
		cfg:       cfg,
		logger:    logger.With().Str("component", "metadata").Logger(),
		sleep:     sleepContext,
	}
}

// SetCache enables lookup caching.
func (p *Pipeline) SetCache(c *Cache) {
	p.cache = c
}

// Resolve never fails: catalog errors are absorbed and missing fields fall
// back field by field down to placeholders.
func (p *Pipeline) Resolve(ctx context.Context, ev media.Event) *Resolved {
	res := &Resolved{State: StatePending, Path: []State{StatePending}}
	log := p.logger.With().Str("ratingKey", ev.RatingKey).Str("kind", string(ev.Kind)).Logger()

	q := QueryFromEvent(ev, p.cfg.PreferredLocale)

	primary := p.lookup(ctx, p.primary, q)
	res.advance(StatePrimaryQueried)
	if primary != nil {
		q.ExternalIDs = q.ExternalIDs.Merge(primary.ExternalIDs)
	}

	var secondary *Record
	if p.secondary != nil && needsSecondary(ev, primary) {
		secondary = p.lookup(ctx, p.secondary, q)
		res.advance(StateSecondaryQueried)
	}

	p.fill(res, ev, primary, secondary)
	res.advance(StateResolved)

	log.Debug().
		Bool("primary", primary != nil).
		Bool("secondary", secondary != nil).
		Str("title", res.Title.Value).
		Str("titleSource", string(res.Title.Source)).
		Str("imageSource", string(res.Image.Source)).
		Msg("Metadata resolved")

	return res
}

func (r *Resolved) advance(s State) {
	r.State = s
	r.Path = append(r.Path, s)
}

// needsSecondary reports whether any field is still empty after the primary
// lookup, including the title when the event's own title is unusable.
func needsSecondary(ev media.Event, primary *Record) bool {
	if primary == nil {
		return true
	}
	if IsGarbageTitle(CleanTitle(ev.Title)) && IsGarbageTitle(CleanTitle(primary.Title)) {
		return true
	}
	return primary.Plot == "" ||
		len(primary.Genres) == 0 ||
		primary.ReleaseDate == "" ||
		primary.Runtime == 0 ||
		primary.Status == "" && ev.Kind.IsTV() ||
		len(primary.Cast) == 0 ||
		primary.Studio == "" ||
		primary.Rating == 0 ||
		primary.PosterURL == "" ||
		primary.BackdropURL == "" ||
		primary.TrailerURL == ""
}

// provider supplies one candidate value for a field.
type provider[T any] struct {
	source Provenance
	get    func() T
}

// firstOf walks providers in order and returns the first value accepted by
// ok. If none is accepted the placeholder is used.
func firstOf[T any](providers []provider[T], ok func(T) bool, placeholder T) Field[T] {
	for _, pr := range providers {
		if pr.get == nil {
			continue
		}
		if v := pr.get(); ok(v) {
			return Field[T]{Value: v, Source: pr.source}
		}
	}
	return Field[T]{Value: placeholder, Source: ProvenancePlaceholder}
}

func nonEmptyString(s string) bool { return strings.TrimSpace(s) != "" }
func nonEmptySlice(s []string) bool { return len(s) > 0 }
func positiveInt(n int) bool        { return n > 0 }
func positiveFloat(f float64) bool  { return f > 0 }

// fromRecord builds a provider for a catalog record, or a no-op provider when
// the catalog supplied nothing.
func fromRecord[T any](rec *Record, source Provenance, get func(*Record) T) provider[T] {
	if rec == nil {
		return provider[T]{source: source}
	}
	return provider[T]{source: source, get: func() T { return get(rec) }}
}

func fromEvent[T any](v T) provider[T] {
	return provider[T]{source: ProvenanceEvent, get: func() T { return v }}
}

// chain returns primary, secondary and event providers for one field.
func chain[T any](primary, secondary *Record, get func(*Record) T, event T) []provider[T] {
	return []provider[T]{
		fromRecord(primary, ProvenancePrimary, get),
		fromRecord(secondary, ProvenanceSecondary, get),
		fromEvent(event),
	}
}

func (p *Pipeline) fill(res *Resolved, ev media.Event, primary, secondary *Record) {
	res.Title = resolveTitle(ev, primary, secondary)

	res.Plot = firstOf(chain(primary, secondary, func(r *Record) string { return r.Plot }, ev.Summary), nonEmptyString, Unknown)
	res.Genres = firstOf(chain(primary, secondary, func(r *Record) []string { return r.Genres }, ev.Genres), nonEmptySlice, []string{})
	res.ReleaseDate = firstOf(chain(primary, secondary, func(r *Record) string { return r.ReleaseDate }, ev.ReleaseDate), nonEmptyString, Unknown)
	res.Runtime = firstOf(chain(primary, secondary, func(r *Record) int { return r.Runtime }, ev.RuntimeMinutes()), positiveInt, 0)
	res.Status = firstOf(chain(primary, secondary, func(r *Record) string { return r.Status }, ""), nonEmptyString, Unknown)
	res.Cast = firstOf(chain(primary, secondary, func(r *Record) []string { return r.Cast }, ev.Actors), nonEmptySlice, []string{})
	res.Studio = firstOf(chain(primary, secondary, func(r *Record) string { return r.Studio }, ev.Studio), nonEmptyString, Unknown)
	res.Rating = firstOf(chain(primary, secondary, func(r *Record) float64 { return r.Rating }, ev.Rating), positiveFloat, 0)
	res.Trailer = firstOf(chain(primary, secondary, func(r *Record) string { return r.TrailerURL }, ""), nonEmptyString, Unknown)

	res.Poster = firstOf([]provider[string]{
		fromRecord(primary, ProvenancePrimary, func(r *Record) string { return r.PosterURL }),
		fromRecord(secondary, ProvenanceSecondary, func(r *Record) string { return r.PosterURL }),
	}, nonEmptyString, p.cfg.PlaceholderImage)
	res.Backdrop = firstOf([]provider[string]{
		fromRecord(primary, ProvenancePrimary, func(r *Record) string { return r.BackdropURL }),
		fromRecord(secondary, ProvenanceSecondary, func(r *Record) string { return r.BackdropURL }),
	}, nonEmptyString, p.cfg.PlaceholderImage)
	res.Image = p.selectImage(primary, secondary)

	if primary != nil {
		res.PrimaryURL = primary.PageURL
	}
	if secondary != nil {
		res.SecondaryURL = secondary.PageURL
	}

	res.ExternalIDs = ev.ExternalIDs
	if primary != nil {
		res.ExternalIDs = res.ExternalIDs.Merge(primary.ExternalIDs)
	}
	if secondary != nil {
		res.ExternalIDs = res.ExternalIDs.Merge(secondary.ExternalIDs)
	}
}

// selectImage prefers a backdrop over a poster within the same tier, and a
// higher tier over a lower one. With PreferPoster the in-tier order flips.
func (p *Pipeline) selectImage(primary, secondary *Record) Field[string] {
	var providers []provider[string]
	for _, tier := range []struct {
		rec    *Record
		source Provenance
	}{{primary, ProvenancePrimary}, {secondary, ProvenanceSecondary}} {
		backdrop := fromRecord(tier.rec, tier.source, func(r *Record) string { return r.BackdropURL })
		poster := fromRecord(tier.rec, tier.source, func(r *Record) string { return r.PosterURL })
		if p.cfg.PreferPoster {
			providers = append(providers, poster, backdrop)
		} else {
			providers = append(providers, backdrop, poster)
		}
	}
	return firstOf(providers, nonEmptyString, p.cfg.PlaceholderImage)
}

// resolveTitle keeps a usable event title and otherwise takes the first
// usable catalog title. If every candidate is unusable the raw event title
// is kept when present.
func resolveTitle(ev media.Event, primary, secondary *Record) Field[string] {
	cleaned := CleanTitle(ev.Title)
	title := func(r *Record) string { return CleanTitle(r.Title) }
	usable := func(s string) bool { return !IsGarbageTitle(s) }

	f := firstOf([]provider[string]{
		fromEvent(cleaned),
		fromRecord(primary, ProvenancePrimary, title),
		fromRecord(secondary, ProvenanceSecondary, title),
	}, usable, "")
	if !f.IsPlaceholder() {
		return f
	}
	if raw := strings.TrimSpace(ev.Title); raw != "" {
		return Field[string]{Value: raw, Source: ProvenanceEvent}
	}
	return Field[string]{Value: Unknown, Source: ProvenancePlaceholder}
}

// lookup queries one catalog with the retry and locale policy. It returns
// nil for not-found and for transient failures that survived the retry.
func (p *Pipeline) lookup(ctx context.Context, c Catalog, q Query) *Record {
	if c == nil {
		return nil
	}
	log := p.logger.With().Str("catalog", c.Name()).Logger()

	rec, err := p.lookupLocale(ctx, c, q)
	if err != nil {
		switch {
		case err == ErrNotFound:
			log.Debug().Str("locale", q.Locale).Msg("Not found in catalog")
		case errors.Is(err, ErrNotFound):
			log.Warn().Err(err).Str("locale", q.Locale).Msg("Catalog rejected lookup, treating as not found")
		default:
			log.Warn().Err(err).Str("locale", q.Locale).Msg("Catalog unavailable, treating as not found")
		}
		return nil
	}

	fallback := p.cfg.FallbackLocale
	if rec.HasText() || fallback == "" || fallback == q.Locale {
		return rec
	}

	alt := q
	alt.Locale = fallback
	altRec, err := p.lookupLocale(ctx, c, alt)
	if err != nil {
		log.Debug().Err(err).Str("locale", fallback).Msg("Fallback locale lookup failed")
		return rec
	}
	merged := rec.withText(altRec)
	log.Debug().Str("locale", fallback).Msg("Used fallback locale for text")
	return &merged
}

// lookupLocale performs one lookup, retrying a transient failure once after
// the configured delay. Results are served from and stored in the cache when
// one is set.
func (p *Pipeline) lookupLocale(ctx context.Context, c Catalog, q Query) (*Record, error) {
	key := cacheKey(c.Name(), q)
	if p.cache != nil {
		if rec, ok := p.cache.Get(key); ok {
			if rec == nil {
				return nil, ErrNotFound
			}
			return rec, nil
		}
	}

	rec, err := p.attempt(ctx, c, q)
	if IsTransient(err) {
		p.logger.Debug().Err(err).Str("catalog", c.Name()).Dur("delay", p.cfg.RetryDelay).Msg("Retrying catalog lookup")
		if sleepErr := p.sleep(ctx, p.cfg.RetryDelay); sleepErr != nil {
			return nil, err
		}
		rec, err = p.attempt(ctx, c, q)
	}

	if p.cache != nil {
		switch {
		case err == nil:
			p.cache.Set(key, rec)
		case errors.Is(err, ErrNotFound):
			p.cache.Set(key, nil)
		}
	}
	return rec, err
}

// attempt makes a single bounded call. Transient errors and call timeouts
// stay retryable; any other failure, such as a rejected API key, will not
// improve on retry and is reported as not-found.
func (p *Pipeline) attempt(ctx context.Context, c Catalog, q Query) (*Record, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
	defer cancel()

	rec, err := c.Lookup(callCtx, q)
	switch {
	case err == nil && rec == nil:
		return nil, ErrNotFound
	case err == nil:
		return rec, nil
	case errors.Is(err, ErrNotFound):
		return nil, err
	case IsTransient(err), errors.Is(err, context.DeadlineExceeded):
		return nil, Transient(c.Name(), err)
	default:
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
