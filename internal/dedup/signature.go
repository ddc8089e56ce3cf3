package dedup

import (
	"encoding/hex"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/plexnote/plexnote/internal/media"
)

const (
	// sentinel replaces a missing signature field.
	sentinel = "-"
	// unknownID replaces a missing identifier in the key.
	unknownID = "unknown"

	signatureBytes = 16
	fieldSep       = "\x1f"
)

var folder = cases.Fold()

// Signature derives the content signature of an event from its identifier,
// kind, title, runtime and air/release date. Equal events always produce
// equal signatures; changing any of those fields changes the signature.
func Signature(ev media.Event) string {
	fields := []string{
		orSentinel(strings.TrimSpace(ev.RatingKey)),
		orSentinel(string(ev.Kind)),
		orSentinel(normalizeTitle(ev.Title)),
		orSentinel(runtimeField(ev)),
		orSentinel(dateField(ev)),
	}

	sum := blake2b.Sum256([]byte(strings.Join(fields, fieldSep)))
	return hex.EncodeToString(sum[:signatureBytes])
}

// Key returns the store key for an event: identifier + ":" + signature.
func Key(ev media.Event) string {
	id := strings.TrimSpace(ev.RatingKey)
	if id == "" {
		id = unknownID
	}
	return id + ":" + Signature(ev)
}

func normalizeTitle(title string) string {
	title = norm.NFC.String(strings.TrimSpace(title))
	title = strings.Join(strings.Fields(title), " ")
	return folder.String(title)
}

func runtimeField(ev media.Event) string {
	if m := ev.RuntimeMinutes(); m > 0 {
		return strconv.Itoa(m)
	}
	return ""
}

func dateField(ev media.Event) string {
	if d := strings.TrimSpace(ev.ReleaseDate); d != "" {
		return d
	}
	if ev.Year > 0 {
		return strconv.Itoa(ev.Year)
	}
	return ""
}

func orSentinel(s string) string {
	if s == "" {
		return sentinel
	}
	return s
}
