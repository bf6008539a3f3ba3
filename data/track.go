package data

// A Track only exists inside its Album. The whole list is rewritten whenever
// the album is.
type Track struct {
	SpotifyID       string `json:"spotify_id"`
	Name            string `json:"name"`
	DurationSeconds int64  `json:"duration_seconds"`

	// 1-based
	Position int `json:"position"`
}
