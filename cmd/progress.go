// Package cmd implements the command-line interface for songdl.
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/songdl-cli/songdl/icon"
	"github.com/songdl-cli/songdl/orchestrator"
	"github.com/songdl-cli/songdl/source"
	"github.com/songdl-cli/songdl/util"
)

const progressPollInterval = 150 * time.Millisecond

// downloadAll runs the download phase with live terminal progress and returns the results.
func downloadAll(ctx context.Context, orch *orchestrator.Orchestrator, songs []*source.SongInfo) []*source.DownloadResult {
	pw := progress.NewWriter()
	pw.SetStyle(progress.StyleDefault)
	pw.SetTrackerPosition(progress.PositionRight)
	pw.SetAutoStop(false)
	pw.Style().Visibility.ETA = true
	if width, _, err := util.TerminalSize(); err == nil && width >= 100 {
		pw.SetTrackerLength(util.Max(25, width/4))
	}
	go pw.Render()

	done := make(chan []*source.DownloadResult, 1)
	go func() {
		done <- orch.Download(ctx, songs)
	}()

	bars := make(map[int]*progress.Tracker)
	ticker := time.NewTicker(progressPollInterval)
	defer ticker.Stop()

	var results []*source.DownloadResult
	for results == nil {
		select {
		case results = <-done:
		case <-ticker.C:
		}
		syncProgress(pw, orch.Tracker(), bars)
	}

	pw.Stop()
	for pw.IsRenderInProgress() {
		time.Sleep(progressPollInterval)
	}

	return results
}

// syncProgress mirrors the orchestrator's task states onto terminal progress
// bars. Bars are keyed by task id so equal titles stay separate.
func syncProgress(pw progress.Writer, tracker *orchestrator.Tracker, bars map[int]*progress.Tracker) {
	for _, state := range tracker.Snapshot() {
		bar, ok := bars[state.ID]
		if !ok {
			bar = &progress.Tracker{
				Message: state.Description,
				Units:   progress.UnitsBytes,
			}
			if state.Total > 0 {
				bar.Total = state.Total
			}
			bars[state.ID] = bar
			pw.AppendTracker(bar)
		}

		if state.Total > 0 && bar.Total != state.Total {
			bar.UpdateTotal(state.Total)
		}
		bar.SetValue(state.Completed)

		switch state.Status {
		case orchestrator.StatusSuccess:
			bar.MarkAsDone()
		case orchestrator.StatusFailed:
			bar.MarkAsErrored()
		}
	}
}

// printSummary reports the outcome of a finished download batch. The failed
// count is derived from the batch itself so unrelated tasks never inflate it.
func printSummary(requested int, results []*source.DownloadResult) {
	failed := requested - len(results)

	fmt.Printf(
		"%s downloaded %s\n",
		icon.Get(icon.Success),
		util.Quantify(len(results), "track", "tracks"),
	)
	if failed > 0 {
		fmt.Printf("%s %s failed\n", icon.Get(icon.Fail), util.Quantify(failed, "track", "tracks"))
	}

	for _, result := range results {
		fmt.Printf("  %s %s\n", icon.Get(icon.Note), result.SavedPath)
	}
}
