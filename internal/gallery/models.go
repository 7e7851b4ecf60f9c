package gallery

import (
	"io"
	"time"

	"gallery-service/internal/player"
)

const (
	BucketMemories = "memories"
	BucketMusic    = "music"
)

const (
	maxTitleLen       = 300
	maxArtistLen      = 200
	maxDescriptionLen = 2000
)

type Memory struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"imageUrl"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Track is the row shape of music_tracks; the player consumes it as is.
type Track = player.Track

// Upload is a file received from a form. Body is nil when no file was sent.
type Upload struct {
	Body        io.ReadSeeker
	Filename    string
	ContentType string
}

type deletedPayload struct {
	ID string `json:"id"`
}
