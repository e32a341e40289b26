package history

import (
	"fmt"
	"time"

	"github.com/songdl-cli/songdl/source"
)

// SavedTrack represents a single completed download preserved in the user's history.
type SavedTrack struct {
	SourceID     string    `json:"source_id"`
	Identifier   string    `json:"identifier"`
	Title        string    `json:"title"`
	Artist       string    `json:"artist"`
	Album        string    `json:"album"`
	SavedPath    string    `json:"saved_path"`
	Extension    string    `json:"extension"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

func (s *SavedTrack) encode() string {
	return fmt.Sprintf("%s (%s)", s.Identifier, s.SourceID)
}

func (s *SavedTrack) String() string {
	return fmt.Sprintf("%s - %s", s.Artist, s.Title)
}

func newSavedTrack(result *source.DownloadResult) *SavedTrack {
	return &SavedTrack{
		SourceID:     result.Song.SourceName,
		Identifier:   result.Song.Identifier,
		Title:        result.Song.Title,
		Artist:       source.ArtistOf(result.Song),
		Album:        source.AlbumOf(result.Song),
		SavedPath:    result.SavedPath,
		Extension:    result.FinalExtension,
		DownloadedAt: time.Now(),
	}
}
