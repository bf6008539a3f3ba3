package data

import "time"

// The album kinds Spotify reports as album_type.
const (
	KindAlbum       = "album"
	KindSingle      = "single"
	KindCompilation = "compilation"
)

// ValidKind reports whether kind is one of the album kinds we store.
func ValidKind(kind string) bool {
	switch kind {
	case KindAlbum, KindSingle, KindCompilation:
		return true
	}
	return false
}

// Albums are fetched from Spotify, either in full (with tracks) or as a
// lightweight refresh that only touches popularity and display fields.
type Album struct {
	SpotifyID string `gorm:"primaryKey"`
	Name      string

	// Denormalized from the album's first credited artist. The artist row
	// might not exist yet; it shows up on that artist's next sync.
	ArtistName      string
	ArtistSpotifyID string `gorm:"index"`

	ImageURL   string
	SpotifyURL string
	Kind       string
	Popularity int64

	// Stored exactly as Spotify reports it: "1999-04-12", "1999-04", or
	// "1999".
	ReleaseDate          string
	ReleaseDatePrecision string

	TotalTracks int64
	Tracks      []Track `gorm:"serializer:json"`

	UpdatedAt time.Time `gorm:"index"`
}
