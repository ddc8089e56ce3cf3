package tautulli

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/plexnote/plexnote/internal/media"
)

// fileLanguages matches release tags such as "[DE+EN]" in file names.
var fileLanguages = regexp.MustCompile(`\[([A-Za-z]{2}(?:\+[A-Za-z]{2})*)\]`)

// BuildEvent fetches the item with its season and series and assembles the
// event. Parent lookups are best effort.
func (c *Client) BuildEvent(ctx context.Context, ratingKey string) (media.Event, error) {
	item, err := c.GetMetadata(ctx, ratingKey)
	if err != nil {
		return media.Event{}, err
	}

	var parent, grandparent *Metadata
	kind := media.ParseKind(item.MediaType)
	if kind == media.KindEpisode || kind == media.KindSeason {
		parent = c.optionalMetadata(ctx, item.ParentRatingKey)
	}
	if kind == media.KindEpisode {
		grandparent = c.optionalMetadata(ctx, item.GrandparentRatingKey)
	}

	return NewEvent(item, parent, grandparent), nil
}

func (c *Client) optionalMetadata(ctx context.Context, ratingKey string) *Metadata {
	if strings.TrimSpace(ratingKey) == "" {
		return nil
	}
	m, err := c.GetMetadata(ctx, ratingKey)
	if err != nil {
		level := c.logger.Warn()
		if errors.Is(err, ErrNotFound) {
			level = c.logger.Debug()
		}
		level.Err(err).Str("ratingKey", ratingKey).Msg("Parent metadata unavailable")
		return nil
	}
	return m
}

// NewEvent maps Tautulli metadata to an event. parent and grandparent are
// the season and series of an episode, or the series of a season; either may
// be nil.
func NewEvent(item, parent, grandparent *Metadata) media.Event {
	kind := media.ParseKind(item.MediaType)
	ev := media.Event{
		RatingKey:            strings.TrimSpace(item.RatingKey),
		Kind:                 kind,
		Title:                strings.TrimSpace(item.Title),
		ParentTitle:          strings.TrimSpace(item.ParentTitle),
		GrandparentTitle:     strings.TrimSpace(item.GrandparentTitle),
		ParentRatingKey:      item.ParentRatingKey,
		GrandparentRatingKey: item.GrandparentRatingKey,
		Year:                 int(item.Year),
		ReleaseDate:          strings.TrimSpace(item.OriginallyAvailableAt),
		Duration:             time.Duration(item.Duration) * time.Millisecond,
		Summary:              strings.TrimSpace(item.Summary),
		Genres:               item.Genres,
		Actors:               item.Actors,
		Directors:            item.Directors,
		Writers:              item.Writers,
		Studio:               item.Studio,
		ContentRating:        item.ContentRating,
		Rating:               float64(item.AudienceRating),
		LibraryName:          item.LibraryName,
		Edition:              strings.TrimSpace(item.EditionTitle),
	}
	if ev.Rating == 0 {
		ev.Rating = float64(item.Rating)
	}

	own := media.ParseGUIDs(guids(item))
	switch kind {
	case media.KindEpisode:
		ev.SeasonNumber = int(item.ParentMediaIndex)
		ev.EpisodeNumber = int(item.MediaIndex)
		ev.ExternalIDs = media.ExternalIDs{TVDBEpisode: own.TVDB}
		if parent != nil {
			ev.ExternalIDs.TVDBSeason = media.ParseGUIDs(guids(parent)).TVDB
		}
		if grandparent != nil {
			ev.ExternalIDs = ev.ExternalIDs.Merge(seriesIDs(grandparent))
		}
	case media.KindSeason:
		ev.SeasonNumber = int(item.MediaIndex)
		ev.ExternalIDs = media.ExternalIDs{TVDBSeason: own.TVDB}
		if parent != nil {
			ev.ExternalIDs = ev.ExternalIDs.Merge(seriesIDs(parent))
		}
	case media.KindShow:
		ev.SeasonCount = int(item.ChildrenCount)
		ev.ExternalIDs = own
	default:
		ev.ExternalIDs = own
	}

	// Seasons and episodes often lack series-level fields.
	for _, p := range []*Metadata{parent, grandparent} {
		if p == nil {
			continue
		}
		if ev.Studio == "" {
			ev.Studio = p.Studio
		}
		if ev.ContentRating == "" {
			ev.ContentRating = p.ContentRating
		}
		if len(ev.Genres) == 0 {
			ev.Genres = p.Genres
		}
		if len(ev.Actors) == 0 {
			ev.Actors = p.Actors
		}
	}

	ev.VideoCodec, ev.VideoResolution = videoFormat(item.MediaInfo)
	ev.AudioLanguages, ev.SubtitleLanguages = languages(item.MediaInfo)
	return ev
}

func seriesIDs(m *Metadata) media.ExternalIDs {
	ids := media.ParseGUIDs(guids(m))
	return media.ExternalIDs{TMDB: ids.TMDB, TVDB: ids.TVDB, IMDB: ids.IMDB}
}

func guids(m *Metadata) []string {
	out := append([]string(nil), m.Guids...)
	if m.GUID != "" {
		out = append(out, m.GUID)
	}
	return out
}

// videoFormat returns the codec in upper case and the resolution as "1080p"
// or "4K".
func videoFormat(infos []MediaInfo) (string, string) {
	for _, mi := range infos {
		codec := strings.ToUpper(strings.TrimSpace(mi.VideoCodec))
		res := strings.TrimSpace(mi.VideoResolution)
		if res == "" && mi.Height > 0 {
			res = strconv.Itoa(int(mi.Height))
		}
		switch {
		case res == "":
		case strings.EqualFold(res, "4k"):
			res = "4K"
		case strings.EqualFold(res, "sd"):
			res = "SD"
		case isDigits(res):
			res += "p"
		case strings.Contains(res, "x"):
			if h := res[strings.LastIndex(res, "x")+1:]; isDigits(h) {
				res = h + "p"
			}
		}
		if codec != "" || res != "" {
			return codec, res
		}
	}
	return "", ""
}

// languages collects audio and subtitle language codes. Without audio
// stream tags it falls back to a "[DE+EN]" style tag in the file name.
func languages(infos []MediaInfo) ([]string, []string) {
	audio := map[string]struct{}{}
	subs := map[string]struct{}{}
	var files []string
	for _, mi := range infos {
		for _, part := range mi.Parts {
			files = append(files, part.File)
			for _, st := range part.Streams {
				code := st.Code()
				if code == "" {
					continue
				}
				switch int(st.Type) {
				case StreamAudio:
					audio[code] = struct{}{}
				case StreamSubtitle:
					subs[code] = struct{}{}
				}
			}
		}
	}
	if len(audio) == 0 {
		for _, f := range files {
			if m := fileLanguages.FindStringSubmatch(f); m != nil {
				for _, code := range strings.Split(m[1], "+") {
					audio[strings.ToLower(code)] = struct{}{}
				}
				break
			}
		}
	}
	return sortedKeys(audio), sortedKeys(subs)
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
