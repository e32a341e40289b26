package source

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/mo"
	"github.com/tidwall/gjson"
)

// Accessor strategies for raw provider payloads. Providers disagree on where
// metadata lives, so each field is probed through an ordered list of JSON
// paths and the first hit wins.

var (
	artistPaths = []string{
		"artist.name",
		"artists.0.name",
		"artists.#.name",
		"performer.name",
		"singer",
	}
	albumPaths = []string{
		"album.title",
		"album.name",
		"album",
		"albumName",
	}
	titlePaths = []string{
		"title",
		"name",
		"songName",
	}
	trackNumberPaths = []string{
		"trackNumber",
		"track_number",
		"track",
		"trackNo",
	}
	discNumberPaths = []string{
		"volumeNumber",
		"discNumber",
		"disc_number",
		"disc",
	}
	durationPaths = []string{
		"duration",
		"durationSeconds",
		"length",
	}
)

var featuredArtistRe = regexp.MustCompile(`(?i)\s*[(\[]\s*(?:feat|ft|featuring|with)\.?\s+[^)\]]*[)\]]`)

// Tokens that introduce a featured or secondary artist in a bare name.
var featureTokens = []string{
	" feat.", " featuring", " ft.", " ft ", " with ", " x ", " × ", " presents ", " pres. ",
}

// StripFeaturedArtists reduces an artist name to its primary artist: bracketed
// "(feat. X)" annotations, bare feature tokens and comma-separated co-artists
// are cut off.
func StripFeaturedArtists(name string) string {
	cleaned := strings.TrimSpace(featuredArtistRe.ReplaceAllString(name, ""))

	lowered := strings.ToLower(cleaned)
	for _, token := range featureTokens {
		if idx := strings.Index(lowered, token); idx != -1 {
			cleaned = cleaned[:idx]
			lowered = strings.ToLower(cleaned)
		}
	}

	for _, separator := range []string{",", "，", "、"} {
		if idx := strings.Index(cleaned, separator); idx != -1 {
			cleaned = cleaned[:idx]
			break
		}
	}

	return strings.Trim(cleaned, " -&")
}

// ProbeString returns the first non-empty string found at the given paths.
func ProbeString(raw []byte, paths ...string) string {
	for _, path := range paths {
		result := gjson.GetBytes(raw, path)
		if !result.Exists() {
			continue
		}
		if result.IsArray() {
			for _, item := range result.Array() {
				if s := strings.TrimSpace(item.String()); s != "" {
					return s
				}
			}
			continue
		}
		if s := strings.TrimSpace(result.String()); s != "" {
			return s
		}
	}
	return ""
}

// ProbeStrings collects every non-empty string the given paths yield, in
// order, without duplicates.
func ProbeStrings(raw []byte, paths ...string) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	for _, path := range paths {
		result := gjson.GetBytes(raw, path)
		if !result.Exists() {
			continue
		}
		if result.IsArray() {
			for _, item := range result.Array() {
				add(item.String())
			}
			continue
		}
		add(result.String())
	}
	return out
}

// ProbeInt returns the first value at the given paths that normalizes to a
// positive integer. Handles plain numbers, numeric strings and "n/total"
// notation.
func ProbeInt(raw []byte, paths ...string) mo.Option[int] {
	for _, path := range paths {
		result := gjson.GetBytes(raw, path)
		if !result.Exists() {
			continue
		}
		if n, ok := NormalizeTrackNumber(result.String()); ok {
			return mo.Some(n)
		}
	}
	return mo.None[int]()
}

// NormalizeTrackNumber parses track number notation into a positive integer.
// Accepts "7", "07" and "n of total" forms split on the first of "/-. ";
// rejects zero, negatives and garbage.
func NormalizeTrackNumber(value string) (int, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	for _, sep := range []string{"/", "-", ".", " "} {
		if idx := strings.Index(value, sep); idx >= 0 {
			value = strings.TrimSpace(value[:idx])
			break
		}
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// ArtistOf resolves the primary artist from the candidate list, falling back
// to probing the raw payload. Featured-artist annotations are stripped;
// candidates that strip to nothing are skipped.
func ArtistOf(song *SongInfo) string {
	for _, candidate := range song.ArtistCandidates {
		if stripped := StripFeaturedArtists(candidate); stripped != "" {
			return stripped
		}
	}
	if artist := StripFeaturedArtists(ProbeString(song.RawPayload, artistPaths...)); artist != "" {
		return artist
	}
	return "Unknown Artist"
}

// AlbumOf resolves the album title, falling back to probing the raw payload.
func AlbumOf(song *SongInfo) string {
	if album := strings.TrimSpace(song.Album); album != "" {
		return album
	}
	if album := ProbeString(song.RawPayload, albumPaths...); album != "" {
		return album
	}
	return "Unknown Album"
}

// FillFromRaw populates missing SongInfo fields by probing the raw payload
// with the default accessor strategies.
func FillFromRaw(song *SongInfo) {
	if song.RawPayload == nil {
		return
	}
	if song.Title == "" {
		song.Title = ProbeString(song.RawPayload, titlePaths...)
	}
	if len(song.ArtistCandidates) == 0 {
		song.ArtistCandidates = ProbeStrings(song.RawPayload, artistPaths...)
	}
	if song.Album == "" {
		song.Album = ProbeString(song.RawPayload, albumPaths...)
	}
	if song.TrackNumber.IsAbsent() {
		song.TrackNumber = ProbeInt(song.RawPayload, trackNumberPaths...)
	}
	if song.DiscNumber.IsAbsent() {
		song.DiscNumber = ProbeInt(song.RawPayload, discNumberPaths...)
	}
	if song.DurationSeconds == 0 {
		if n, ok := ProbeInt(song.RawPayload, durationPaths...).Get(); ok {
			song.DurationSeconds = n
		}
	}
}
