// Package cmd implements the command-line interface for songdl.
package cmd

import (
	"os"

	"github.com/songdl-cli/songdl/color"
	"github.com/songdl-cli/songdl/provider"
	"github.com/songdl-cli/songdl/style"
	"github.com/songdl-cli/songdl/tidal"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

// sourcesCmd provides a parent command for inspecting streaming providers.
var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Inspect the available streaming providers",
}

func init() {
	sourcesCmd.AddCommand(sourcesListCmd)

	sourcesListCmd.Flags().BoolP("raw", "r", false, "Suppress header and status annotations in the output")
	sourcesListCmd.SetOut(os.Stdout)
}

// sourcesListCmd displays a summary of all registered streaming providers.
var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Display a collection of all registered streaming providers",
	Run: func(cmd *cobra.Command, args []string) {
		raw := lo.Must(cmd.Flags().GetBool("raw"))

		if !raw {
			cmd.Println(style.New().Foreground(color.HiBlue).Bold(true).Render("Builtin:"))
		}

		for _, p := range provider.Builtins() {
			if raw {
				cmd.Println(p.ID)
				continue
			}

			status := style.Fg(color.Red)("logged out")
			if sessionUsable(p.ID) {
				status = style.Fg(color.Green)("logged in")
			}
			cmd.Printf("%s (%s)\n", p.Name, status)
		}
	},
}

// sessionUsable reports whether a provider has a session that can produce a source.
func sessionUsable(providerID string) bool {
	switch providerID {
	case "tidal":
		session := &tidal.Session{}
		return session.Load()
	default:
		return false
	}
}
