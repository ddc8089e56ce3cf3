package tvdb

// LoginRequest is the request body for TVDB authentication.
type LoginRequest struct {
	APIKey string `json:"apikey"`
}

// LoginResponse is the response from TVDB authentication.
type LoginResponse struct {
	Status string `json:"status"`
	Data   struct {
		Token string `json:"token"`
	} `json:"data"`
}

// SearchResponse is the response from TVDB search.
type SearchResponse struct {
	Status string         `json:"status"`
	Data   []SearchResult `json:"data"`
}

// SearchResult is a search result from TVDB.
type SearchResult struct {
	ObjectID string `json:"objectID"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Type     string `json:"type"` // "series", "movie", etc.
	Year     string `json:"year"`
	TvdbID   string `json:"tvdb_id"`
}

// SeriesResponse is the response for a single series.
type SeriesResponse struct {
	Status string       `json:"status"`
	Data   SeriesDetail `json:"data"`
}

// SeriesDetail contains extended series information.
type SeriesDetail struct {
	ID               int          `json:"id"`
	Name             string       `json:"name"`
	Slug             string       `json:"slug"`
	Image            string       `json:"image"`
	FirstAired       string       `json:"firstAired"`
	Status           SeriesStatus `json:"status"`
	OriginalLanguage string       `json:"originalLanguage"`
	AverageRuntime   int          `json:"averageRuntime"`
	Overview         string       `json:"overview"`
	Year             string       `json:"year"`
	Artworks         []Artwork    `json:"artworks"`
	Genres           []Genre      `json:"genres"`
	Characters       []Character  `json:"characters"`
	Trailers         []Trailer    `json:"trailers"`
	OriginalNetwork  *Company     `json:"originalNetwork"`
	Seasons          []SeasonRef  `json:"seasons"`
	RemoteIDs        []RemoteID   `json:"remoteIds"`
}

// MovieResponse is the response for a single movie.
type MovieResponse struct {
	Status string      `json:"status"`
	Data   MovieDetail `json:"data"`
}

// MovieDetail contains extended movie information.
type MovieDetail struct {
	ID               int          `json:"id"`
	Name             string       `json:"name"`
	Slug             string       `json:"slug"`
	Image            string       `json:"image"`
	Runtime          int          `json:"runtime"`
	Status           SeriesStatus `json:"status"`
	OriginalLanguage string       `json:"originalLanguage"`
	Year             string       `json:"year"`
	FirstRelease     *Release     `json:"first_release"`
	Artworks         []Artwork    `json:"artworks"`
	Genres           []Genre      `json:"genres"`
	Characters       []Character  `json:"characters"`
	Trailers         []Trailer    `json:"trailers"`
	Studios          []Company    `json:"studios"`
	RemoteIDs        []RemoteID   `json:"remoteIds"`
}

// SeasonResponse is the response for a single season.
type SeasonResponse struct {
	Status string       `json:"status"`
	Data   SeasonDetail `json:"data"`
}

// SeasonDetail contains extended season information.
type SeasonDetail struct {
	ID       int        `json:"id"`
	SeriesID int        `json:"seriesId"`
	Number   int        `json:"number"`
	Name     string     `json:"name"`
	Image    string     `json:"image"`
	Year     string     `json:"year"`
	Type     SeasonType `json:"type"`
	Artwork  []Artwork  `json:"artwork"`
	Episodes []Episode  `json:"episodes"`
}

// SeasonRef is a season summary embedded in a series.
type SeasonRef struct {
	ID     int        `json:"id"`
	Number int        `json:"number"`
	Type   SeasonType `json:"type"`
}

// SeasonType names the ordering a season belongs to.
type SeasonType struct {
	ID   int    `json:"id"`
	Type string `json:"type"` // "official", "dvd", "absolute", ...
}

// EpisodeResponse is the response for a single episode.
type EpisodeResponse struct {
	Status string  `json:"status"`
	Data   Episode `json:"data"`
}

// EpisodesResponse is the response for series episodes.
type EpisodesResponse struct {
	Status string `json:"status"`
	Data   struct {
		Series   SeriesDetail `json:"series"`
		Episodes []Episode    `json:"episodes"`
	} `json:"data"`
}

// Episode represents a TV episode.
type Episode struct {
	ID           int    `json:"id"`
	SeriesID     int    `json:"seriesId"`
	Name         string `json:"name"`
	Aired        string `json:"aired"`
	Runtime      int    `json:"runtime"`
	Overview     string `json:"overview"`
	Image        string `json:"image"`
	SeasonNumber int    `json:"seasonNumber"`
	Number       int    `json:"number"`
	Year         string `json:"year"`
}

// TranslationResponse is the response for a translation of any record.
type TranslationResponse struct {
	Status string      `json:"status"`
	Data   Translation `json:"data"`
}

// Translation holds localized text.
type Translation struct {
	Name     string `json:"name"`
	Overview string `json:"overview"`
	Language string `json:"language"`
}

// SeriesStatus represents the status of a series or movie.
type SeriesStatus struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Genre represents a genre.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Artwork represents artwork for a record.
type Artwork struct {
	ID       int     `json:"id"`
	Image    string  `json:"image"`
	Language string  `json:"language"`
	Type     int     `json:"type"`
	Score    float64 `json:"score"`
}

// Character is a cast or crew credit.
type Character struct {
	Name       string `json:"name"`
	PersonName string `json:"personName"`
	PeopleType string `json:"peopleType"`
	Sort       int    `json:"sort"`
}

// Trailer is a trailer link.
type Trailer struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Language string `json:"language"`
}

// Company is a network or studio.
type Company struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Release is a regional release date.
type Release struct {
	Country string `json:"country"`
	Date    string `json:"date"`
}

// RemoteID represents an external ID.
type RemoteID struct {
	ID         string `json:"id"`
	Type       int    `json:"type"`
	SourceName string `json:"sourceName"`
}

// ErrorResponse is an error from the TVDB API.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
