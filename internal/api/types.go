package api

// User identifies the authenticated account.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Movie is the catalog representation returned by the service.
type Movie struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	VoteAverage  float64 `json:"vote_average"`
	ReleaseDate  string  `json:"release_date"`
	GenreIDs     []int64 `json:"genre_ids"`
}

// ListItem is one favorites or watchlist entry as the service stores it.
// AddedAt is epoch milliseconds, assigned by whichever device persisted the
// entry; reconciliation treats it as the last-writer timestamp.
type ListItem struct {
	Movie   Movie `json:"movie"`
	AddedAt int64 `json:"added_at"`
}

// listResponse is the wire shape of a full list fetch.
type listResponse struct {
	Items []ListItem `json:"items"`
}
