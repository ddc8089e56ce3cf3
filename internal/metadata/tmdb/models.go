package tmdb

// SearchMoviesResponse is the response from TMDB movie search.
type SearchMoviesResponse struct {
	Page         int           `json:"page"`
	Results      []MovieResult `json:"results"`
	TotalPages   int           `json:"total_pages"`
	TotalResults int           `json:"total_results"`
}

// MovieResult is a single movie search result.
type MovieResult struct {
	ID            int     `json:"id"`
	Title         string  `json:"title"`
	OriginalTitle string  `json:"original_title"`
	Overview      string  `json:"overview"`
	ReleaseDate   string  `json:"release_date"`
	PosterPath    *string `json:"poster_path"`
	BackdropPath  *string `json:"backdrop_path"`
	VoteAverage   float64 `json:"vote_average"`
}

// MovieDetails is the movie detail response, including appended sections.
type MovieDetails struct {
	ID                  int                 `json:"id"`
	Title               string              `json:"title"`
	OriginalTitle       string              `json:"original_title"`
	Overview            string              `json:"overview"`
	ReleaseDate         string              `json:"release_date"`
	PosterPath          *string             `json:"poster_path"`
	BackdropPath        *string             `json:"backdrop_path"`
	VoteAverage         float64             `json:"vote_average"`
	Runtime             int                 `json:"runtime"`
	Status              string              `json:"status"`
	ImdbID              string              `json:"imdb_id"`
	Genres              []Genre             `json:"genres"`
	ProductionCompanies []ProductionCompany `json:"production_companies,omitempty"`
	ExternalIDs         *ExternalIDs        `json:"external_ids,omitempty"`
	Credits             *CreditsResponse    `json:"credits,omitempty"`
	Videos              *VideosResponse     `json:"videos,omitempty"`
	Images              *ImagesResponse     `json:"images,omitempty"`
}

// SearchTVResponse is the response from TMDB TV search.
type SearchTVResponse struct {
	Page         int        `json:"page"`
	Results      []TVResult `json:"results"`
	TotalPages   int        `json:"total_pages"`
	TotalResults int        `json:"total_results"`
}

// TVResult is a single TV search result.
type TVResult struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	OriginalName string  `json:"original_name"`
	Overview     string  `json:"overview"`
	FirstAirDate string  `json:"first_air_date"`
	PosterPath   *string `json:"poster_path"`
	BackdropPath *string `json:"backdrop_path"`
	VoteAverage  float64 `json:"vote_average"`
}

// TVDetails is the series detail response, including appended sections.
type TVDetails struct {
	ID              int              `json:"id"`
	Name            string           `json:"name"`
	OriginalName    string           `json:"original_name"`
	Overview        string           `json:"overview"`
	FirstAirDate    string           `json:"first_air_date"`
	PosterPath      *string          `json:"poster_path"`
	BackdropPath    *string          `json:"backdrop_path"`
	VoteAverage     float64          `json:"vote_average"`
	Status          string           `json:"status"`
	Genres          []Genre          `json:"genres"`
	Networks        []Network        `json:"networks"`
	NumberOfSeasons int              `json:"number_of_seasons"`
	EpisodeRunTime  []int            `json:"episode_run_time"`
	ExternalIDs     *ExternalIDs     `json:"external_ids,omitempty"`
	Credits         *CreditsResponse `json:"credits,omitempty"`
	Videos          *VideosResponse  `json:"videos,omitempty"`
	Images          *ImagesResponse  `json:"images,omitempty"`
}

// Genre is a TMDB genre.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Network is a TV network.
type Network struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// ProductionCompany represents a production company from TMDB.
type ProductionCompany struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// ExternalIDs are the cross-catalog identifiers TMDB knows for an item.
type ExternalIDs struct {
	ImdbID string `json:"imdb_id"`
	TvdbID int    `json:"tvdb_id"`
}

// SeasonDetails is the season detail response.
type SeasonDetails struct {
	ID           int              `json:"id"`
	Name         string           `json:"name"`
	Overview     string           `json:"overview"`
	AirDate      string           `json:"air_date"`
	PosterPath   *string          `json:"poster_path"`
	SeasonNumber int              `json:"season_number"`
	VoteAverage  float64          `json:"vote_average"`
	Episodes     []EpisodeDetails `json:"episodes"`
}

// EpisodeDetails is the episode detail response.
type EpisodeDetails struct {
	ID            int              `json:"id"`
	Name          string           `json:"name"`
	Overview      string           `json:"overview"`
	AirDate       string           `json:"air_date"`
	EpisodeNumber int              `json:"episode_number"`
	SeasonNumber  int              `json:"season_number"`
	StillPath     *string          `json:"still_path"`
	Runtime       int              `json:"runtime"`
	VoteAverage   float64          `json:"vote_average"`
	GuestStars    []CastMember     `json:"guest_stars,omitempty"`
	Credits       *CreditsResponse `json:"credits,omitempty"`
}

// FindResponse is the response from /find/{external_id}.
type FindResponse struct {
	MovieResults []MovieResult `json:"movie_results"`
	TVResults    []TVResult    `json:"tv_results"`
}

// CreditsResponse is the credits section.
type CreditsResponse struct {
	Cast []CastMember `json:"cast"`
	Crew []CrewMember `json:"crew"`
}

// CastMember represents a cast member from TMDB credits.
type CastMember struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Character string `json:"character"`
	Order     int    `json:"order"`
}

// CrewMember represents a crew member from TMDB credits.
type CrewMember struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Job  string `json:"job"`
}

// VideosResponse is the videos section.
type VideosResponse struct {
	Results []Video `json:"results"`
}

// Video represents a video (trailer, teaser, etc.) from TMDB.
type Video struct {
	Key      string `json:"key"`
	Site     string `json:"site"`
	Type     string `json:"type"`
	Name     string `json:"name"`
	Iso6391  string `json:"iso_639_1"`
	Official bool   `json:"official"`
}

// ImagesResponse is the images section.
type ImagesResponse struct {
	Backdrops []ImageResult `json:"backdrops"`
	Posters   []ImageResult `json:"posters"`
}

// ImageResult represents a single image from TMDB images endpoint.
type ImageResult struct {
	FilePath    string  `json:"file_path"`
	VoteAverage float64 `json:"vote_average"`
	Iso6391     *string `json:"iso_639_1"`
}

// ErrorResponse is the TMDB error body.
type ErrorResponse struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
	Success       bool   `json:"success"`
}
