// Package cmd implements the command-line interface for songdl.
package cmd

import (
	"fmt"

	"github.com/songdl-cli/songdl/color"
	"github.com/songdl-cli/songdl/icon"
	"github.com/songdl-cli/songdl/orchestrator"
	"github.com/songdl-cli/songdl/provider"
	"github.com/songdl-cli/songdl/source"
	"github.com/songdl-cli/songdl/style"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().BoolP("list", "l", false, "Only list resolved tracks without downloading them")
}

// downloadCmd resolves track, album, or playlist URLs and downloads their tracks.
var downloadCmd = &cobra.Command{
	Use:     "download [url...]",
	Aliases: []string{"dl", "url"},
	Short:   "Resolve track, album, or playlist URLs and download them",
	Args:    cobra.MinimumNArgs(1),
	Example: "  songdl download https://tidal.com/browse/album/77610756",
	Run: func(cmd *cobra.Command, args []string) {
		CheckDependencies()

		orch, err := defaultOrchestrator()
		handleErr(err)

		var songs []*source.SongInfo
		for _, rawURL := range args {
			resolved, err := orch.Resolve(cmd.Context(), rawURL)
			handleErr(err)
			songs = append(songs, resolved...)
		}

		songs = orchestrator.Dedup(songs)
		if len(songs) == 0 {
			fmt.Printf("%s nothing to download\n", icon.Get(icon.Fail))
			return
		}

		if lo.Must(cmd.Flags().GetBool("list")) {
			printSongs(songs)
			return
		}

		fmt.Printf(
			"%s downloading %s\n",
			icon.Get(icon.Download),
			style.Fg(color.Yellow)(fmt.Sprintf("%d tracks", len(songs))),
		)

		printSummary(len(songs), downloadAll(cmd.Context(), orch, songs))
	},
}

// defaultOrchestrator builds an orchestrator over the configured default sources.
func defaultOrchestrator() (*orchestrator.Orchestrator, error) {
	providers, err := provider.Defaults()
	if err != nil {
		return nil, err
	}

	sources := make([]source.Source, 0, len(providers))
	for _, p := range providers {
		src, err := p.CreateSource()
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", p.Name, err)
		}
		sources = append(sources, src)
	}

	return orchestrator.New(sources...), nil
}
