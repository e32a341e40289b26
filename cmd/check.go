// Package cmd implements the command-line interface for songdl.
package cmd

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/charmbracelet/lipgloss"
	"github.com/songdl-cli/songdl/color"
	"github.com/songdl-cli/songdl/icon"
	"github.com/songdl-cli/songdl/style"
)

// CheckDependencies reports on optional system dependencies. Downloads work without
// ffmpeg, but containers are then kept in whatever format the provider serves.
func CheckDependencies() {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		printMissingDependencyWarning("ffmpeg")
	}
}

func printMissingDependencyWarning(dep string) {
	var installCmd string
	switch runtime.GOOS {
	case "darwin":
		installCmd = "brew install ffmpeg"
	case "linux":
		installCmd = "sudo apt install ffmpeg" // Generic, maybe check distro
	case "windows":
		installCmd = "scoop install ffmpeg"
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color.Yellow).
		Padding(1, 2).
		Margin(1, 0)

	title := style.New().Bold(true).Foreground(color.Yellow).Render(fmt.Sprintf("%s Warning: Missing Dependency", icon.Get(icon.Fail)))
	body := style.New().Render(fmt.Sprintf("'%s' was not found in your PATH. Downloads will keep their native container format.", dep))

	suggestion := ""
	if installCmd != "" {
		suggestion = fmt.Sprintf("\n\nTo install it, try running:\n  %s", style.New().Foreground(color.Orange).Bold(true).Render(installCmd))
	}

	fmt.Println(box.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			title,
			"\n",
			body,
			suggestion,
		),
	))
}
