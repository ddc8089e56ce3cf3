package discord

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/plexnote/plexnote/internal/config"
	"github.com/plexnote/plexnote/internal/media"
	"github.com/plexnote/plexnote/internal/metadata"
)

// Embed colors per media kind
const (
	ColorMovie  = 0x1abc9c
	ColorSeason = 0x3498db
	ColorShow   = 0xe67e22
)

const missingPlot = "_Leider liegen zu diesem Titel noch_\n_keine weiteren Informationen vor._"

// Options controls embed layout.
type Options struct {
	Style        string
	PlexBaseURL  string
	PlexServerID string
	Now          time.Time
}

// BuildEmbed renders a resolved event as a Discord embed.
func BuildEmbed(ev media.Event, res *metadata.Resolved, opts Options) Embed {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	v := newView(ev, res)

	embed := Embed{
		Title: buildTitle(ev, v.title),
		Color: colorFor(ev.Kind),
	}

	switch opts.Style {
	case config.StyleTelegram:
		embed.Description = v.telegramInfo(ev)
	case config.StyleKlassisch:
		embed.Fields = append(embed.Fields, v.classicFields(ev)...)
	default:
		embed.Fields = append(embed.Fields, v.boxedField())
	}

	embed.Fields = append(embed.Fields, v.plotField(opts.Style), v.detailsField(ev, res, opts))

	if v.image != "" {
		embed.Image = &EmbedImage{URL: v.image}
	}
	embed.Footer = &EmbedFooter{Text: joinNonEmpty(" • ",
		v.studio, ev.VideoCodec, ev.VideoResolution, opts.Now.Format("02.01.2006, 15:04"))}
	return embed
}

// view holds the display strings derived from an event and its resolution.
type view struct {
	title   string
	library string
	release string
	rating  string
	fsk     string
	runtime string
	genre   string
	status  string
	actor   string
	plot    string
	studio  string
	image   string
}

func newView(ev media.Event, res *metadata.Resolved) view {
	v := view{
		title:   res.Title.Value,
		library: ev.LibraryName,
		fsk:     fskLabel(ev.ContentRating),
		runtime: formatRuntime(res.Runtime.Value),
		image:   res.Image.Value,
	}
	if !res.ReleaseDate.IsPlaceholder() {
		v.release = formatDate(res.ReleaseDate.Value)
	}
	if res.Rating.Value > 0 {
		v.rating = fmt.Sprintf("%.1f/10", res.Rating.Value)
	}
	if genres := res.Genres.Value; len(genres) > 0 {
		v.genre = strings.Join(genres[:min(2, len(genres))], ", ")
	}
	if ev.Kind.IsTV() && !res.Status.IsPlaceholder() {
		v.status = germanStatus(res.Status.Value)
		if v.status == "" {
			v.status = res.Status.Value
		}
	}
	if (ev.Kind == media.KindMovie || ev.Kind == media.KindEpisode) && len(res.Cast.Value) > 0 {
		v.actor = res.Cast.Value[0]
	}
	if !res.Plot.IsPlaceholder() {
		v.plot = res.Plot.Value
	}
	if !res.Studio.IsPlaceholder() {
		v.studio = res.Studio.Value
	}
	return v
}

func colorFor(kind media.Kind) int {
	switch kind {
	case media.KindMovie:
		return ColorMovie
	case media.KindSeason:
		return ColorSeason
	default:
		return ColorShow
	}
}

// buildTitle prefixes the title by kind and adds the series as a subtitle
// for seasons and episodes unless the title already names it.
func buildTitle(ev media.Event, title string) string {
	title = shortenTitle(strings.TrimSpace(title), titleLimit)
	show := strings.TrimSpace(ev.ShowTitle())
	mentions := func(t string) bool {
		return strings.Contains(strings.ToLower(t), strings.ToLower(show))
	}

	switch ev.Kind {
	case media.KindMovie:
		return "🎬 " + title
	case media.KindEpisode:
		if show != "" && !mentions(title) {
			return "🍿 " + title + "\n📺 " + breakSubtitle("Aus: "+show)
		}
		return "🍿 " + title
	case media.KindSeason:
		if title == "" {
			return "📦 " + show
		}
		if show != "" && !mentions(title) {
			return "📦 " + title + "\n📺 " + breakSubtitle("Aus: "+show)
		}
		return "📦 " + title
	default:
		return "📺 " + title
	}
}

// combinedRating renders "8.7/10 (FSK 12)", or whichever part exists.
func (v view) combinedRating() string {
	switch {
	case v.rating != "" && v.fsk != "":
		return v.rating + " (" + v.fsk + ")"
	case v.rating != "":
		return v.rating
	default:
		return v.fsk
	}
}

func (v view) boxedField() EmbedField {
	var lines []string
	add := func(label, value string) {
		if value != "" {
			lines = append(lines, fmt.Sprintf("[**%s**]  %s", label, value))
		}
	}
	add("Genre", v.genre)
	add("Jahr", v.release)
	add("Status", v.status)
	add("Bewertung", v.combinedRating())
	add("Dauer", v.runtime)

	name := "📌 **Media-Info:**"
	if v.library != "" {
		name += " " + v.library
	}
	return EmbedField{Name: name, Value: indentBlock(strings.Join(lines, "\n"))}
}

func (v view) telegramInfo(ev media.Event) string {
	var lines []string
	add := func(label, value string) {
		if value != "" {
			lines = append(lines, fmt.Sprintf("%s → **%s**", label, value))
		}
	}
	add("Bereich", v.library)
	add("Release", v.release)
	add("Bewertung", joinNonEmpty(", ", v.fsk, v.rating))
	add("Dauer", v.runtime)
	add("Genre", v.genre)
	add("Status", v.status)
	if ev.Kind == media.KindMovie {
		add("Starring", v.actor)
	}
	if len(lines) == 0 {
		return ""
	}
	return indentBlock(strings.Join(lines, "\n"))
}

func (v view) classicFields(ev media.Event) []EmbedField {
	var fields []EmbedField
	add := func(name, value string) {
		if value != "" {
			fields = append(fields, EmbedField{Name: name, Value: value, Inline: true})
		}
	}
	add("Library", v.library)
	add("Veröffentlicht", v.release)
	add("Bewertung", joinNonEmpty(", ", v.fsk, v.rating))
	add("Dauer", v.runtime)
	add("Genre", v.genre)
	add("Status", v.status)
	if ev.Kind == media.KindMovie {
		add("Starring", v.actor)
	}
	return fields
}

func (v view) plotField(style string) EmbedField {
	text := missingPlot
	if v.plot != "" {
		if p := formatPlot(v.plot); p != "" {
			text = p
		}
	}
	name := "📝 Handlung"
	if style == config.StyleBoxed && v.actor != "" {
		name += " – Starring ▸ " + v.actor
	}
	return EmbedField{Name: name, Value: indentBlock(text)}
}

func (v view) detailsField(ev media.Event, res *metadata.Resolved, opts Options) EmbedField {
	var parts []string
	if subs := ev.SubtitleLanguages; len(subs) > 0 {
		shown := subs[:min(4, len(subs))]
		line := "Untertitel: " + strings.Join(shown, ", ")
		if rest := len(subs) - len(shown); rest > 0 {
			line += fmt.Sprintf(" + %d weitere", rest)
		}
		parts = append(parts, line)
	}
	if ev.Edition != "" {
		parts = append(parts, "Edition: "+ev.Edition)
	}

	links := strings.Join(catalogLinks(ev, res, opts), " | ")
	if credit := mainCredit(ev); credit != "" {
		parts = append(parts, joinNonEmpty(" • ", credit, links))
	} else if links != "" {
		parts = append(parts, links)
	}

	value := strings.Join(parts, "\n")
	if value == "" {
		value = "-"
	}
	if opts.Style == config.StyleBoxed || opts.Style == config.StyleTelegram || opts.Style == "" {
		value = indentBlock(value)
	}
	return EmbedField{Name: detailsLabel(ev), Value: value}
}

func detailsLabel(ev media.Event) string {
	label := "🎞️ Details"
	switch ev.Kind {
	case media.KindMovie:
		label += " – Film"
		if ev.Year > 0 {
			label += fmt.Sprintf(" → %d", ev.Year)
		}
	case media.KindSeason:
		label += fmt.Sprintf(" – Staffel → %d", ev.SeasonNumber)
		if ev.SeasonCount > 0 {
			label += fmt.Sprintf(" von %d", ev.SeasonCount)
		}
	case media.KindEpisode:
		label += fmt.Sprintf(" – Serie → S%02dE%02d", ev.SeasonNumber, ev.EpisodeNumber)
	case media.KindShow:
		label += " – Serie"
		if ev.SeasonCount > 0 {
			label += fmt.Sprintf(" → %d Staffeln", ev.SeasonCount)
		}
	}
	if len(ev.AudioLanguages) > 0 {
		label += " ← " + strings.Join(ev.AudioLanguages, ", ")
	}
	return label
}

// mainCredit names the writer, or the director when no writer is known.
func mainCredit(ev media.Event) string {
	switch {
	case len(ev.Writers) > 0:
		return "Autor: " + ev.Writers[0]
	case len(ev.Directors) > 0:
		return "Regie: " + ev.Directors[0]
	default:
		return ""
	}
}

// catalogLinks links the primary catalog page when the primary catalog
// supplied data, otherwise the secondary one, then Plex and the trailer.
func catalogLinks(ev media.Event, res *metadata.Resolved, opts Options) []string {
	var links []string
	switch {
	case res.Supplied(metadata.ProvenancePrimary) && res.PrimaryURL != "":
		links = append(links, fmt.Sprintf("[TMDB](%s)", res.PrimaryURL))
	case res.Supplied(metadata.ProvenanceSecondary) && res.SecondaryURL != "":
		links = append(links, fmt.Sprintf("[TVDB](%s)", res.SecondaryURL))
	}
	if link := plexLink(opts.PlexBaseURL, opts.PlexServerID, ev.RatingKey); link != "" {
		links = append(links, fmt.Sprintf("[PLEX](%s)", link))
	}
	if !res.Trailer.IsPlaceholder() && res.Trailer.Value != "" {
		links = append(links, fmt.Sprintf("▶️ [Trailer](%s)", res.Trailer.Value))
	}
	return links
}

// plexLink builds a Plex Web deep link to the item.
func plexLink(baseURL, serverID, ratingKey string) string {
	if baseURL == "" || serverID == "" || ratingKey == "" {
		return ""
	}
	key := url.QueryEscape("/library/metadata/" + ratingKey)
	return fmt.Sprintf("%s/desktop/#!/server/%s/details?key=%s", strings.TrimRight(baseURL, "/"), serverID, key)
}

func joinNonEmpty(sep string, parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
