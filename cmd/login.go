// Package cmd implements the command-line interface for songdl.
package cmd

import (
	"fmt"

	"github.com/songdl-cli/songdl/color"
	"github.com/songdl-cli/songdl/icon"
	"github.com/songdl-cli/songdl/open"
	"github.com/songdl-cli/songdl/style"
	"github.com/songdl-cli/songdl/tidal"
	"github.com/songdl-cli/songdl/util"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().BoolP("no-browser", "n", false, "Do not open the verification page in a browser")
}

// loginCmd authorizes the application against TIDAL using the device flow.
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize access to TIDAL through device authorization",
	Long: `Start the TIDAL device authorization flow. A verification link and a short code
are displayed; confirming them in a browser grants the application a session.`,
	Run: func(cmd *cobra.Command, args []string) {
		session := &tidal.Session{}
		if session.Load() && session.Valid() {
			fmt.Printf("%s already logged in\n", icon.Get(icon.Success))
			return
		}

		code, err := session.StartDeviceFlow(cmd.Context())
		handleErr(err)

		link := "https://" + code.VerificationURI
		fmt.Printf(
			"%s visit %s and enter the code %s\n",
			icon.Get(icon.Note),
			style.Fg(color.HiBlue)(link),
			style.New().Bold(true).Foreground(color.Yellow).Render(code.UserCode),
		)

		noBrowser, _ := cmd.Flags().GetBool("no-browser")
		if !noBrowser {
			_ = open.Start(link)
		}

		eraser := util.PrintErasable(fmt.Sprintf("%s Waiting for confirmation...", icon.Get(icon.Progress)))
		err = session.WaitForToken(cmd.Context(), code)
		eraser()
		handleErr(err)

		fmt.Printf("%s logged in to TIDAL\n", icon.Get(icon.Success))
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

// logoutCmd discards the stored TIDAL session and refresh token.
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discard the stored TIDAL session",
	Run: func(cmd *cobra.Command, args []string) {
		session := &tidal.Session{}
		session.Invalidate()
		fmt.Printf("%s logged out\n", icon.Get(icon.Success))
	},
}
