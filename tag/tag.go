// Package tag persists track metadata into finished audio files. Containers
// without a supported tagger are skipped, never failed.
package tag

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/songdl-cli/songdl/log"
	"github.com/songdl-cli/songdl/source"
)

// Fields assembles the canonical tag map for a song. Keys follow vorbis
// comment naming; writers translate to their container's atoms.
func Fields(song *source.SongInfo) map[string][]string {
	fields := make(map[string][]string)

	set := func(name string, values ...string) {
		var kept []string
		for _, v := range values {
			if v = strings.TrimSpace(v); v != "" {
				kept = append(kept, v)
			}
		}
		if len(kept) > 0 {
			fields[name] = kept
		}
	}

	artist := source.ArtistOf(song)
	album := source.AlbumOf(song)

	set("title", song.Title)
	set("artist", song.ArtistCandidates...)
	if len(song.ArtistCandidates) == 0 {
		set("artist", artist)
	}
	set("albumartist", artist)
	set("album", album)
	if n, ok := song.TrackNumber.Get(); ok {
		set("tracknumber", strconv.Itoa(n))
	}
	if n, ok := song.DiscNumber.Get(); ok {
		set("discnumber", strconv.Itoa(n))
	}
	set("date", song.Date)
	set("isrc", song.ISRC)
	set("genre", song.Genre)
	set("lyrics", song.Lyrics)
	if song.Stream != nil {
		set("comment", song.Stream.Quality)
	}

	return fields
}

// Write tags the file at path with the song's metadata. Unsupported
// containers are skipped silently; the caller treats all failures as
// non-fatal.
func Write(path string, song *source.SongInfo) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".flac":
		return writeFlac(path, Fields(song))
	case ".m4a", ".m4b", ".mp4":
		return writeMP4(path, song)
	default:
		log.Debugf("no tagger for %s, skipping", path)
		return nil
	}
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
