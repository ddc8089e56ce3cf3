package tautulli

import (
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// RatingKeyNames are the names a rating key is passed under, in order of
// preference, by Tautulli script and webhook notification agents.
var RatingKeyNames = []string{"rating_key", "TAUTULLI_RATING_KEY", "RATING_KEY", "ratingKey"}

// RatingKeyFromPayload extracts a rating key from a notification payload:
// either bare digits or a JSON object carrying one of RatingKeyNames as a
// string or number.
func RatingKeyFromPayload(data []byte) (string, bool) {
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return "", false
	}
	if isDigits(raw) {
		return raw, true
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return "", false
	}
	for _, name := range RatingKeyNames {
		v, ok := obj[name]
		if !ok {
			continue
		}
		if key := ratingKeyValue(v); key != "" {
			return key, true
		}
	}
	return "", false
}

func ratingKeyValue(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		s = strings.TrimSpace(s)
		if isDigits(s) {
			return s
		}
		return ""
	}
	var n int64
	if err := json.Unmarshal(v, &n); err == nil && n > 0 {
		return strconv.FormatInt(n, 10)
	}
	return ""
}

// ValidRatingKey reports whether s looks like a Plex rating key.
func ValidRatingKey(s string) bool {
	return isDigits(strings.TrimSpace(s))
}
