package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/plexnote/plexnote/internal/media"
)

var (
	// ErrNotFound means the item does not exist in a catalog. It is an
	// expected outcome and never retried.
	ErrNotFound = errors.New("metadata not found")
)

// TransientError wraps failures that may succeed on a later attempt:
// network errors, timeouts, rate limits, server errors and malformed
// responses.
type TransientError struct {
	Catalog string
	Err     error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient error: %v", e.Catalog, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a *TransientError for the named catalog.
func Transient(catalog string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransientError
	if errors.As(err, &te) {
		return err
	}
	return &TransientError{Catalog: catalog, Err: err}
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Query describes the item to look up.
type Query struct {
	Kind          media.Kind
	Title         string
	ShowTitle     string
	Year          int
	SeasonNumber  int
	EpisodeNumber int
	ExternalIDs   media.ExternalIDs
	Locale        string
}

// QueryFromEvent builds the catalog query for an event.
func QueryFromEvent(ev media.Event, locale string) Query {
	return Query{
		Kind:          ev.Kind,
		Title:         strings.TrimSpace(ev.Title),
		ShowTitle:     strings.TrimSpace(ev.ShowTitle()),
		Year:          ev.Year,
		SeasonNumber:  ev.SeasonNumber,
		EpisodeNumber: ev.EpisodeNumber,
		ExternalIDs:   ev.ExternalIDs,
		Locale:        locale,
	}
}

// Record is a catalog response normalized at the client boundary.
type Record struct {
	Source      string
	Title       string
	Plot        string
	Genres      []string
	ReleaseDate string
	Runtime     int // minutes
	Status      string
	Cast        []string
	Studio      string
	Rating      float64
	PosterURL   string
	BackdropURL string
	TrailerURL  string
	PageURL     string
	ExternalIDs media.ExternalIDs
}

// HasText reports whether the record carries a localized plot. Catalogs
// often return a title without a translated overview, so the title alone
// does not count.
func (r *Record) HasText() bool {
	return r != nil && strings.TrimSpace(r.Plot) != ""
}

// withText returns a copy of r with its missing text filled from text. A
// localized title already present is kept.
func (r Record) withText(text *Record) Record {
	if text == nil {
		return r
	}
	if strings.TrimSpace(r.Title) == "" {
		r.Title = text.Title
	}
	if strings.TrimSpace(text.Plot) != "" {
		r.Plot = text.Plot
	}
	if len(r.Genres) == 0 {
		r.Genres = text.Genres
	}
	if r.TrailerURL == "" {
		r.TrailerURL = text.TrailerURL
	}
	return r
}

// Catalog is a metadata source. Implementations return ErrNotFound when the
// item is absent and a *TransientError for anything worth retrying.
type Catalog interface {
	Name() string
	Lookup(ctx context.Context, q Query) (*Record, error)
}
