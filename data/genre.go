package data

import "time"

// Genres holds the list of genres extracted from everynoise.com. They are the
// pool that artist discovery picks its search genre from.
type Genre struct {
	// like "pop"
	Name string `gorm:"primaryKey"`

	// like "3nzVSyaYk0KNrahyNQS0Ur"
	Key string

	// Like `Budapest Chorus "Let the Light Shine on Me"`
	//
	// We can't safely parse this into artist/track, because quote marks
	// -within- artist and track names are not guaranteed to be matched
	// properly.
	Example string

	// A value in the range [0, 4096], derived from the font size in the
	// ENAO visualization.
	Popularity int64

	UpdatedAt time.Time
}
