package tautulli

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Int decodes Tautulli numbers, which arrive as JSON numbers, numeric
// strings or empty strings depending on the field and server version.
type Int int

func (n *Int) UnmarshalJSON(data []byte) error {
	s, err := numericText(data)
	if err != nil || s == "" {
		*n = 0
		return err
	}
	if v, err := strconv.Atoi(s); err == nil {
		*n = Int(v)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*n = 0
		return nil
	}
	*n = Int(f)
	return nil
}

// Float decodes Tautulli decimals the same way as Int.
type Float float64

func (f *Float) UnmarshalJSON(data []byte) error {
	s, err := numericText(data)
	if err != nil || s == "" {
		*f = 0
		return err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = Float(v)
	return nil
}

func numericText(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	}
	return string(data), nil
}

// Response is the envelope every Tautulli API command returns.
type Response[T any] struct {
	Response struct {
		Result  string  `json:"result"`
		Message *string `json:"message,omitempty"`
		Data    T       `json:"data"`
	} `json:"response"`
}

// Metadata is the data of get_metadata.
type Metadata struct {
	MediaType             string      `json:"media_type"`
	RatingKey             string      `json:"rating_key"`
	ParentRatingKey       string      `json:"parent_rating_key"`
	GrandparentRatingKey  string      `json:"grandparent_rating_key"`
	Title                 string      `json:"title"`
	ParentTitle           string      `json:"parent_title"`
	GrandparentTitle      string      `json:"grandparent_title"`
	MediaIndex            Int         `json:"media_index"`
	ParentMediaIndex      Int         `json:"parent_media_index"`
	ChildrenCount         Int         `json:"children_count"`
	LibraryName           string      `json:"library_name"`
	Studio                string      `json:"studio"`
	ContentRating         string      `json:"content_rating"`
	Summary               string      `json:"summary"`
	Rating                Float       `json:"rating"`
	AudienceRating        Float       `json:"audience_rating"`
	Duration              Int         `json:"duration"` // milliseconds
	Year                  Int         `json:"year"`
	OriginallyAvailableAt string      `json:"originally_available_at"`
	EditionTitle          string      `json:"edition_title"`
	GUID                  string      `json:"guid"`
	Guids                 []string    `json:"guids"`
	Directors             []string    `json:"directors"`
	Writers               []string    `json:"writers"`
	Actors                []string    `json:"actors"`
	Genres                []string    `json:"genres"`
	MediaInfo             []MediaInfo `json:"media_info"`
}

// IsEmpty reports whether Tautulli returned no item. Unknown rating keys
// produce a successful response with an empty object.
func (m *Metadata) IsEmpty() bool {
	return m == nil || strings.TrimSpace(m.RatingKey) == ""
}

// MediaInfo describes one version of an item.
type MediaInfo struct {
	VideoCodec      string      `json:"video_codec"`
	VideoResolution string      `json:"video_resolution"`
	Height          Int         `json:"height"`
	Parts           []MediaPart `json:"parts"`
}

// MediaPart is a file of a media version.
type MediaPart struct {
	File    string   `json:"file"`
	Streams []Stream `json:"streams"`
}

// Stream types as reported by Plex.
const (
	StreamVideo    = 1
	StreamAudio    = 2
	StreamSubtitle = 3
)

// Stream is a single audio, video or subtitle track.
type Stream struct {
	Type                 Int    `json:"type"`
	LanguageCode         string `json:"language_code"`
	AudioLanguageCode    string `json:"audio_language_code"`
	SubtitleLanguageCode string `json:"subtitle_language_code"`
	Language             string `json:"language"`
}

// Code returns the first language code set on the stream.
func (s Stream) Code() string {
	for _, c := range []string{s.LanguageCode, s.AudioLanguageCode, s.SubtitleLanguageCode, s.Language} {
		if c = strings.TrimSpace(c); c != "" {
			return strings.ToLower(c)
		}
	}
	return ""
}

// RecentlyAdded is the data of get_recently_added.
type RecentlyAdded struct {
	RecordsTotal  Int                 `json:"records_total"`
	RecentlyAdded []RecentlyAddedItem `json:"recently_added"`
}

// RecentlyAddedItem is a summary row of get_recently_added.
type RecentlyAddedItem struct {
	RatingKey            string `json:"rating_key"`
	ParentRatingKey      string `json:"parent_rating_key"`
	GrandparentRatingKey string `json:"grandparent_rating_key"`
	Title                string `json:"title"`
	ParentTitle          string `json:"parent_title"`
	GrandparentTitle     string `json:"grandparent_title"`
	MediaType            string `json:"media_type"`
	Year                 Int    `json:"year"`
	AddedAt              Int    `json:"added_at"`
	LibraryName          string `json:"library_name"`
}
