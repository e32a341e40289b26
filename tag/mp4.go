package tag

import (
	"github.com/songdl-cli/songdl/source"
	mp4tag "github.com/zhaarey/go-mp4tag"
)

// writeMP4 tags an MP4-family container.
func writeMP4(path string, song *source.SongInfo) error {
	fields := Fields(song)

	tags := &mp4tag.MP4Tags{
		Title:       first(fields["title"]),
		Artist:      first(fields["artist"]),
		AlbumArtist: first(fields["albumartist"]),
		Album:       first(fields["album"]),
		Date:        first(fields["date"]),
		Lyrics:      first(fields["lyrics"]),
		CustomGenre: first(fields["genre"]),
		Comment:     first(fields["comment"]),
		Custom: map[string]string{
			"ISRC": first(fields["isrc"]),
		},
	}
	if n, ok := song.TrackNumber.Get(); ok {
		tags.TrackNumber = int16(n)
	}
	if n, ok := song.DiscNumber.Get(); ok {
		tags.DiscNumber = int16(n)
	}

	file, err := mp4tag.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return file.Write(tags, []string{})
}
