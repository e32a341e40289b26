package tag

import (
	"strings"

	"github.com/go-flac/flacvorbis/v2"
	goflac "github.com/go-flac/go-flac/v2"
)

// writeFlac replaces the vorbis comment block of a FLAC file with the given
// tag map.
func writeFlac(path string, fields map[string][]string) error {
	file, err := goflac.ParseFile(path)
	if err != nil {
		return err
	}

	comment := flacvorbis.New()
	for name, values := range fields {
		for _, value := range values {
			if err := comment.Add(strings.ToUpper(name), value); err != nil {
				return err
			}
		}
	}

	block := comment.Marshal()

	replaced := false
	for i, meta := range file.Meta {
		if meta.Type == goflac.VorbisComment {
			file.Meta[i] = &block
			replaced = true
			break
		}
	}
	if !replaced {
		file.Meta = append(file.Meta, &block)
	}

	return file.Save(path)
}
