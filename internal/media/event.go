// Package media defines the library event that flows from the trigger
// through deduplication, metadata resolution and notification.
package media

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind is the type of library item an event refers to.
type Kind string

const (
	KindMovie   Kind = "movie"
	KindShow    Kind = "show"
	KindSeason  Kind = "season"
	KindEpisode Kind = "episode"
)

// ParseKind maps a Tautulli media_type to a Kind. Unknown values are
// treated as shows, the same way Tautulli groups series-level items.
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "movie":
		return KindMovie
	case "season":
		return KindSeason
	case "episode":
		return KindEpisode
	default:
		return KindShow
	}
}

// IsTV reports whether the kind belongs to a series.
func (k Kind) IsTV() bool {
	return k == KindShow || k == KindSeason || k == KindEpisode
}

// ExternalIDs holds catalog identifiers known for an item. For TV items TMDB,
// TVDB and IMDB identify the series; TVDBSeason and TVDBEpisode identify the
// season or episode itself.
type ExternalIDs struct {
	TMDB        int    `json:"tmdb,omitempty"`
	TVDB        int    `json:"tvdb,omitempty"`
	IMDB        string `json:"imdb,omitempty"`
	TVDBSeason  int    `json:"tvdbSeason,omitempty"`
	TVDBEpisode int    `json:"tvdbEpisode,omitempty"`
}

// Merge fills zero fields of ids from other.
func (ids ExternalIDs) Merge(other ExternalIDs) ExternalIDs {
	if ids.TMDB == 0 {
		ids.TMDB = other.TMDB
	}
	if ids.TVDB == 0 {
		ids.TVDB = other.TVDB
	}
	if ids.IMDB == "" {
		ids.IMDB = other.IMDB
	}
	if ids.TVDBSeason == 0 {
		ids.TVDBSeason = other.TVDBSeason
	}
	if ids.TVDBEpisode == 0 {
		ids.TVDBEpisode = other.TVDBEpisode
	}
	return ids
}

// Event is a newly added library item as delivered by the trigger.
// It is treated as immutable once built.
type Event struct {
	RatingKey            string
	Kind                 Kind
	Title                string
	ParentTitle          string
	GrandparentTitle     string
	ParentRatingKey      string
	GrandparentRatingKey string

	SeasonNumber  int
	EpisodeNumber int
	SeasonCount   int

	Year        int
	ReleaseDate string // YYYY-MM-DD
	Duration    time.Duration

	Summary       string
	Genres        []string
	Actors        []string
	Directors     []string
	Writers       []string
	Studio        string
	ContentRating string
	Rating        float64
	LibraryName   string
	Edition       string

	VideoCodec        string
	VideoResolution   string
	AudioLanguages    []string
	SubtitleLanguages []string

	ExternalIDs ExternalIDs
}

// ShowTitle returns the series title for TV items.
func (e Event) ShowTitle() string {
	switch e.Kind {
	case KindEpisode:
		if e.GrandparentTitle != "" {
			return e.GrandparentTitle
		}
		return e.ParentTitle
	case KindSeason:
		return e.ParentTitle
	case KindShow:
		return e.Title
	default:
		return ""
	}
}

// RuntimeMinutes returns the duration rounded down to whole minutes.
func (e Event) RuntimeMinutes() int {
	return int(e.Duration / time.Minute)
}

var guidPattern = regexp.MustCompile(`^([a-z-]+)://(\w+)`)

// ParseGUIDs extracts catalog identifiers from Plex agent GUIDs such as
// "tmdb://1396", "tvdb://81189" or "imdb://tt0903747".
func ParseGUIDs(guids []string) ExternalIDs {
	var ids ExternalIDs
	for _, g := range guids {
		m := guidPattern.FindStringSubmatch(strings.TrimSpace(g))
		if m == nil {
			continue
		}
		scheme, value := m[1], m[2]
		switch scheme {
		case "imdb":
			if ids.IMDB == "" && strings.HasPrefix(value, "tt") {
				ids.IMDB = value
			}
		case "tmdb":
			setInt(&ids.TMDB, value)
		case "tvdb":
			setInt(&ids.TVDB, value)
		case "tvdb-season":
			setInt(&ids.TVDBSeason, value)
		case "tvdb-episode":
			setInt(&ids.TVDBEpisode, value)
		}
	}
	return ids
}

func setInt(dst *int, value string) {
	if *dst != 0 {
		return
	}
	if n, err := strconv.Atoi(value); err == nil && n > 0 {
		*dst = n
	}
}
