package discord

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	plotLimit      = 150
	maxLineLen     = 45
	maxLines       = 4
	maxWordLen     = 60
	titleLimit     = 36
	subtitleMaxLen = 40
	subtitleMinLen = 36

	zeroWidthSpace = "​"
	ellipsis       = "…"
)

var (
	indent       = strings.Repeat(" ", 6)
	lineBreakTag = regexp.MustCompile(`(?i)<br\s*/?>`)
	subtitleHead = regexp.MustCompile(`^(.+?:\s*)`)
	breakChars   = regexp.MustCompile(`[-:|.,]`)
)

// contentRatings maps certifications to German FSK labels.
var contentRatings = map[string]string{
	"TV-Y": "FSK 0", "TV-Y7": "FSK 6", "TV-G": "FSK 0", "TV-PG": "FSK 6", "TV-14": "FSK 12", "TV-MA": "FSK 16",
	"G": "FSK 0", "PG": "FSK 6", "PG-13": "FSK 12", "R": "FSK 16", "NC-17": "FSK 18", "UR": "Ungeprüft",
	"BPjM Restricted": "FSK 18+ (indiziert)",
	"de": "FSK 0", "de/0": "FSK 0", "de/6": "FSK 6", "de/12": "FSK 12", "de/12+": "FSK 12+",
	"de/16": "FSK 16", "de/18": "FSK 18",
}

// seriesStatus translates catalog series states.
var seriesStatus = map[string]string{
	"Returning Series": "Laufend",
	"Continuing":       "Laufend",
	"Ended":            "Beendet",
	"Canceled":         "Abgesetzt",
	"In Production":    "In Produktion",
	"Planned":          "Geplant",
	"Upcoming":         "Geplant",
	"Pilot":            "Pilotfolge",
}

func fskLabel(contentRating string) string {
	cr := strings.TrimSpace(contentRating)
	if cr == "" {
		return ""
	}
	if label, ok := contentRatings[cr]; ok {
		return label
	}
	return cr
}

func germanStatus(status string) string {
	return seriesStatus[strings.TrimSpace(status)]
}

// formatRuntime renders minutes as "1 Std. 47 Min" or "47 Min".
func formatRuntime(minutes int) string {
	switch {
	case minutes <= 0:
		return ""
	case minutes >= 60:
		return fmt.Sprintf("%d Std. %d Min", minutes/60, minutes%60)
	default:
		return fmt.Sprintf("%d Min", minutes)
	}
}

// formatDate turns an ISO date into the German dd.mm.yyyy form.
func formatDate(iso string) string {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(iso))
	if err != nil {
		return ""
	}
	return t.Format("02.01.2006")
}

// plainText strips markup and entities from a catalog plot and collapses
// whitespace.
func plainText(s string) string {
	s = lineBreakTag.ReplaceAllString(s, " ")
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
		s = doc.Text()
	}
	s = strings.ReplaceAll(s, "|", " ")
	s = strings.ReplaceAll(s, zeroWidthSpace, " ")
	return strings.Join(strings.Fields(s), " ")
}

// formatPlot cuts the plot to plotLimit runes, wraps it into at most
// maxLines lines and marks any cut with an ellipsis.
func formatPlot(plot string) string {
	text := plainText(plot)
	runes := []rune(text)
	cut := len(runes) > plotLimit
	if cut {
		text = strings.TrimRight(string(runes[:plotLimit]), " ")
	}

	lines := wrapLines(text, maxLineLen, maxLines)
	if strings.Join(lines, " ") != text && len([]rune(strings.Join(lines, " "))) < len([]rune(text)) {
		cut = true
	}
	if cut && len(lines) > 0 {
		last := lines[len(lines)-1]
		if !strings.HasSuffix(last, ellipsis) && !strings.HasSuffix(last, "...") {
			lines[len(lines)-1] = strings.TrimRight(last, " .") + " " + ellipsis
		}
	}
	return strings.Join(lines, "\n")
}

// wrapLines breaks text at word boundaries. Words longer than maxWordLen
// are hyphenated.
func wrapLines(text string, width, limit int) []string {
	var lines []string
	var cur []rune
	flush := func() bool {
		if len(lines) >= limit {
			return false
		}
		lines = append(lines, strings.TrimRight(string(cur), " "))
		cur = cur[:0]
		return true
	}

	for _, word := range strings.Fields(text) {
		w := []rune(word)
		if len(w) > maxWordLen {
			for len(w) > width {
				if len(lines) >= limit {
					return lines
				}
				lines = append(lines, string(w[:width-1])+"-")
				w = w[width-1:]
			}
			cur = append(cur, w...)
			cur = append(cur, ' ')
		} else if len(cur)+len(w)+1 > width {
			if !flush() {
				return lines
			}
			cur = append(cur, w...)
			cur = append(cur, ' ')
		} else {
			cur = append(cur, w...)
			cur = append(cur, ' ')
		}
		if len(lines) >= limit {
			return lines
		}
	}
	if len(cur) > 0 && len(lines) < limit {
		lines = append(lines, strings.TrimRight(string(cur), " "))
	}
	return lines
}

// indentBlock indents every line with non-breaking spaces. The leading zero
// width space keeps Discord from trimming the first indent.
func indentBlock(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = indent + l
	}
	return zeroWidthSpace + strings.Join(lines, "\n")
}

// shortenTitle cuts a title at the last word boundary before limit runes.
func shortenTitle(title string, limit int) string {
	runes := []rune(title)
	if len(runes) <= limit {
		return title
	}
	head := string(runes[:limit])
	if i := strings.LastIndex(head, " "); i > 0 {
		head = head[:i]
	}
	return head + " " + ellipsis
}

// breakSubtitle wraps a "Aus: <show>" line once, preferring punctuation in
// the window between subtitleMinLen and subtitleMaxLen, and aligns the
// continuation under the text after the prefix.
func breakSubtitle(text string) string {
	runes := []rune(text)
	if len(runes) <= subtitleMaxLen {
		return text
	}

	prefix := ""
	if m := subtitleHead.FindString(text); m != "" {
		prefix = m
	}
	body := []rune(strings.TrimPrefix(text, prefix))
	prefixLen := len([]rune(prefix))
	maxBody := subtitleMaxLen - prefixLen
	minBody := max(0, subtitleMinLen-prefixLen)

	split := -1
	for i, r := range body {
		if breakChars.MatchString(string(r)) && i+1 >= minBody && i+1 <= maxBody {
			split = i + 1
		}
	}
	if split == -1 {
		for i, r := range body {
			if r == ' ' && i >= minBody && i <= maxBody {
				split = i
			}
		}
	}
	if split == -1 {
		limit := min(maxBody, len(body))
		for i := limit - 1; i >= 0; i-- {
			if body[i] == ' ' {
				split = i
				break
			}
		}
	}
	if split <= 0 || split >= len(body)-4 {
		return text
	}

	head := strings.TrimRight(string(body[:split]), " -:|.,")
	tail := strings.TrimSpace(strings.TrimLeft(string(body[split:]), " -:|.,"))
	return prefix + head + "\n" + strings.Repeat(" ", prefixLen) + tail
}
