package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// Movie is the locally cached projection of a catalog movie. The full snapshot
// is stored alongside favorites/watchlist rows so lists render without a
// network round trip.
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

// ListEntry is one favorites or watchlist row: a movie snapshot plus the
// epoch-millisecond timestamp of when the user added it.
type ListEntry struct {
	Movie   Movie
	AddedAt int64
}

// ListKind selects the favorites or watchlist table. The two tables share a
// shape; every list operation takes a kind instead of duplicating methods.
type ListKind string

const (
	Favorites ListKind = "favorites"
	Watchlist ListKind = "watchlist"
)

// Valid reports whether k names a known list table.
func (k ListKind) Valid() bool {
	return k == Favorites || k == Watchlist
}

// MutationType discriminates queued mutations. The values are stable and
// serializable; they double as the drain loop's dispatch key.
type MutationType string

const (
	AddFavorite     MutationType = "ADD_FAVORITE"
	RemoveFavorite  MutationType = "REMOVE_FAVORITE"
	ToggleFavorite  MutationType = "TOGGLE_FAVORITE"
	AddWatchlist    MutationType = "ADD_WATCHLIST"
	RemoveWatchlist MutationType = "REMOVE_WATCHLIST"
)

// AddPayload is the typed payload for ADD_* and TOGGLE_* mutations. The full
// movie snapshot travels with the mutation so a drain can push it even after
// the catalog cache has expired.
type AddPayload struct {
	Movie   Movie `json:"movie"`
	AddedAt int64 `json:"added_at"`
}

// RemovePayload is the typed payload for REMOVE_* mutations.
type RemovePayload struct {
	MovieID int64 `json:"movie_id"`
}

// Mutation is one pending write recorded while the remote was unreachable.
// Variables holds the JSON-encoded typed payload for the mutation's type.
type Mutation struct {
	ID         string
	Type       MutationType
	Variables  []byte
	Timestamp  int64
	RetryCount int
}

// DecodeAdd decodes the mutation's payload as an AddPayload.
func (m *Mutation) DecodeAdd() (AddPayload, error) {
	var p AddPayload
	if err := json.Unmarshal(m.Variables, &p); err != nil {
		return AddPayload{}, fmt.Errorf("store: decoding %s payload: %w", m.Type, err)
	}

	return p, nil
}

// DecodeRemove decodes the mutation's payload as a RemovePayload.
func (m *Mutation) DecodeRemove() (RemovePayload, error) {
	var p RemovePayload
	if err := json.Unmarshal(m.Variables, &p); err != nil {
		return RemovePayload{}, fmt.Errorf("store: decoding %s payload: %w", m.Type, err)
	}

	return p, nil
}

// NowMillis returns the current time as epoch milliseconds, the timestamp
// format used throughout the database.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
