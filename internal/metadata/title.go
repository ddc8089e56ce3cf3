package metadata

import (
	"html"
	"regexp"
	"strings"
	"unicode"
)

var (
	genericTitle = regexp.MustCompile(`(?i)^(folge|episode|ep|teil|chapter)\.?\s*#?\d*$|^(tba|tbd|unknown|unbekannt|no title|n\.a\.|not available)$`)
	numericTitle = regexp.MustCompile(`^[\d\s.#-]+$`)
	codeTitle    = regexp.MustCompile(`(?i)^(s\d{1,2}\s*e\d{1,3}|e\d{1,3}|tt\d{5,}|[a-z]{1,4}[-_]\d{3,})$`)
	yearSuffix   = regexp.MustCompile(`\s*\(\d{4}\)`)
	episodeCode  = regexp.MustCompile(`(?i)S\d{1,2}E\d{1,3}`)
)

// IsGarbageTitle reports whether a title is unusable for display: missing,
// too short, purely numeric, an internal catalog code, a generic placeholder
// phrase, or predominantly non-Latin script.
func IsGarbageTitle(title string) bool {
	t := strings.TrimSpace(html.UnescapeString(title))
	switch {
	case len([]rune(t)) < 2:
		return true
	case numericTitle.MatchString(t):
		return true
	case codeTitle.MatchString(t):
		return true
	case genericTitle.MatchString(t):
		return true
	case isNonLatin(t):
		return true
	}
	return false
}

// CleanTitle strips year suffixes and episode codes that some agents embed
// in titles.
func CleanTitle(title string) string {
	t := yearSuffix.ReplaceAllString(title, "")
	t = episodeCode.ReplaceAllString(t, "")
	return strings.Trim(strings.TrimSpace(t), " -–:|")
}

func isNonLatin(s string) bool {
	count := 0
	for _, r := range s {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana) {
			count++
		}
	}
	return count > 3
}
