// Package cmd implements the command-line interface for songdl.
package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/songdl-cli/songdl/source"
	"github.com/songdl-cli/songdl/style"
)

const maxTitleWidth = 48

// printSongs renders a result listing with one row per track.
func printSongs(songs []*source.SongInfo) {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Title", "Artist", "Album", "Length", "Source"})

	truncate := style.Truncate(maxTitleWidth)
	for i, song := range songs {
		tw.AppendRow(table.Row{
			i + 1,
			truncate(song.Title),
			source.ArtistOf(song),
			source.AlbumOf(song),
			song.Duration,
			song.SourceName,
		})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})

	fmt.Println(tw.Render())
}
