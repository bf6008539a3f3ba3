package data

import "time"

// Artists holds the artists we've seen on Spotify, whether from new releases,
// genre searches, or someone looking one up.
type Artist struct {
	SpotifyID  string `gorm:"primaryKey"`
	Name       string
	ImageURL   string
	SpotifyURL string

	// Unordered, possibly empty.
	Genres []string `gorm:"serializer:json"`

	UpdatedAt time.Time `gorm:"index"`
}
