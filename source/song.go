// Package source defines the domain models and interfaces for music discovery and retrieval.
package source

import (
	"fmt"
	"path/filepath"

	"github.com/samber/mo"
	"github.com/songdl-cli/songdl/util"
)

// SongInfo is the identity and resolution record for one candidate track.
//
// Identifier uniquely determines membership in a result set: two SongInfo with
// equal Identifier are the same logical track regardless of which search URL
// produced them.
type SongInfo struct {
	// Provider-unique track identifier, used for deduplication.
	Identifier string `json:"identifier"`
	// Source name that produced this record.
	SourceName string `json:"source"`
	// Display title, as reported by the provider.
	Title string `json:"title"`
	// Ordered raw artist name candidates, before resolution.
	ArtistCandidates []string `json:"artists"`
	Album            string   `json:"album"`

	TrackNumber mo.Option[int] `json:"track_number"`
	DiscNumber  mo.Option[int] `json:"disc_number"`

	// Track length, in whole seconds.
	DurationSeconds int `json:"duration_seconds"`
	// Rendered duration for display ("M:SS").
	Duration string `json:"duration"`

	// Target container extension (e.g. ".flac"), decided at resolution time.
	Extension string `json:"ext"`
	// Declared stream size in bytes, when the reachability probe reported one.
	FileSize int64 `json:"file_size,omitempty"`

	Lyrics string `json:"lyrics,omitempty"`
	ISRC   string `json:"isrc,omitempty"`
	Genre  string `json:"genre,omitempty"`
	Date   string `json:"date,omitempty"`

	// Resolved playable stream. Nil until quality negotiation succeeds.
	Stream *StreamDescriptor `json:"stream"`

	// Raw provider payload, kept only for name/metadata resolution fallback.
	RawPayload []byte `json:"-"`

	// Work directory, assigned exactly once after deduplication.
	workDir string
}

// WorkDir returns the assigned work directory, empty until assignment.
func (s *SongInfo) WorkDir() string {
	return s.workDir
}

// AssignWorkDir sets the work directory. The first assignment wins; later calls are ignored,
// keeping the directory immutable for the rest of the pipeline.
func (s *SongInfo) AssignWorkDir(dir string) {
	if s.workDir == "" {
		s.workDir = dir
	}
}

// FileBase returns the final file name stem for this track, optionally
// prefixed with a zero-padded track number.
func (s *SongInfo) FileBase(withTrackNumber bool) string {
	base := util.SanitizeFilenameOr(s.Title, "Unknown Title")
	if n, ok := s.TrackNumber.Get(); ok && withTrackNumber {
		return filepath.Clean(fmt.Sprintf("%02d - %s", n, base))
	}
	return base
}

func (s *SongInfo) String() string {
	return s.Title
}

// DownloadResult is produced exactly once per successfully completed download.
// Ownership transfers to the caller; the record is never mutated afterwards.
type DownloadResult struct {
	Song *SongInfo `json:"song"`
	// Absolute path of the finalized file.
	SavedPath string `json:"saved_path"`
	// Extension the file actually ended up with (remux may downgrade the target).
	FinalExtension string `json:"final_extension"`
}
