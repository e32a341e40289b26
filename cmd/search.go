// Package cmd implements the command-line interface for songdl.
package cmd

import (
	"fmt"
	"strings"

	"github.com/songdl-cli/songdl/color"
	"github.com/songdl-cli/songdl/icon"
	"github.com/songdl-cli/songdl/key"
	"github.com/songdl-cli/songdl/query"
	"github.com/songdl-cli/songdl/style"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().BoolP("list", "l", false, "Only list matching tracks without downloading them")
	searchCmd.Flags().IntP("limit", "n", 0, "Limit the number of tracks fetched per source")
	lo.Must0(viper.BindPFlag(key.SearchLimit, searchCmd.Flags().Lookup("limit")))
}

// searchCmd resolves a keyword query against the configured sources and downloads the matches.
var searchCmd = &cobra.Command{
	Use:     "search [query]",
	Short:   "Search the configured sources and download matching tracks",
	Args:    cobra.MinimumNArgs(1),
	Example: `  songdl search "pink floyd time"`,
	Run: func(cmd *cobra.Command, args []string) {
		q := strings.Join(args, " ")

		if viper.GetBool(key.SearchShowQuerySuggestions) {
			if suggestion := query.Suggest(q); suggestion.IsPresent() && suggestion.MustGet() != q {
				fmt.Printf(
					"%s did you mean %s?\n",
					icon.Get(icon.Search),
					style.Fg(color.Yellow)(suggestion.MustGet()),
				)
			}
		}

		CheckDependencies()

		orch, err := defaultOrchestrator()
		handleErr(err)

		songs := orch.Search(cmd.Context(), q)
		if len(songs) == 0 {
			fmt.Printf("%s nothing found for %s\n", icon.Get(icon.Fail), style.Fg(color.Yellow)(q))
			return
		}

		_ = query.Remember(q, len(songs))

		if lo.Must(cmd.Flags().GetBool("list")) {
			printSongs(songs)
			return
		}

		printSummary(len(songs), downloadAll(cmd.Context(), orch, songs))
	},
}
