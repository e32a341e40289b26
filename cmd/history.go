// Package cmd implements the command-line interface for songdl.
package cmd

import (
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/songdl-cli/songdl/history"
	"github.com/songdl-cli/songdl/icon"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().BoolP("raw", "r", false, "Print one saved path per line without decoration")
}

// historyCmd displays the registry of completed downloads.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Display the registry of completed downloads",
	Run: func(cmd *cobra.Command, args []string) {
		saved, err := history.Get()
		handleErr(err)

		if len(saved) == 0 {
			fmt.Printf("%s history is empty\n", icon.Get(icon.Note))
			return
		}

		tracks := lo.Values(saved)
		sort.Slice(tracks, func(i, j int) bool {
			return tracks[i].DownloadedAt.Before(tracks[j].DownloadedAt)
		})

		if lo.Must(cmd.Flags().GetBool("raw")) {
			for _, track := range tracks {
				fmt.Println(track.SavedPath)
			}
			return
		}

		tw := table.NewWriter()
		tw.SetStyle(table.StyleRounded)
		tw.AppendHeader(table.Row{"Track", "Album", "Source", "Saved At"})
		for _, track := range tracks {
			tw.AppendRow(table.Row{
				track.String(),
				track.Album,
				track.SourceID,
				track.DownloadedAt.Format("2006-01-02 15:04"),
			})
		}
		fmt.Println(tw.Render())
	},
}
