package acceptor

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/infra-ci/integ-acceptor/types"
)

// printResultsTable prints the per-integration run outcomes to the console.
func printResultsTable(runID string, results []*types.RunResult) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("Integration Run Results (%s)", runID))

	t.AppendHeader(table.Row{
		"Integration", "Status", "Attempts", "Duration", "Exit Code", "Warnings",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Integration", WidthMax: 40, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Attempts", Align: text.AlignRight},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Exit Code", Align: text.AlignRight},
		{Name: "Warnings", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	anyFailed := false
	var totalDuration time.Duration
	for _, result := range results {
		if result.Status != types.RunStatusSuccess {
			anyFailed = true
		}
		totalDuration += result.Duration
		t.AppendRow(table.Row{
			result.Integration,
			getResultString(result.Status),
			len(result.Attempts),
			formatDuration(result.Duration),
			result.ExitCode,
			warningFor(result),
		})
	}

	if anyFailed {
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	} else {
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL", "", "", formatDuration(totalDuration), "", "",
	})

	t.Render()
}

// warningFor surfaces secondary failures that did not decide the outcome.
func warningFor(result *types.RunResult) string {
	switch {
	case result.Status == types.RunStatusStartFailed && result.StopError != "":
		return fmt.Sprintf("%s (stop also failed: %s)", result.StartError, result.StopError)
	case result.Status == types.RunStatusStartFailed:
		return result.StartError
	case result.StopError != "":
		return "environment stop failed: " + result.StopError
	default:
		return ""
	}
}

// getResultString returns a short string representing the run outcome.
func getResultString(status types.RunStatus) string {
	switch status {
	case types.RunStatusSuccess:
		return "✓ pass"
	case types.RunStatusStartFailed:
		return "✗ env start"
	case types.RunStatusStopFailed:
		return "✗ env stop"
	default:
		return "✗ fail"
	}
}

// formatDuration formats a duration to seconds with 1 decimal place.
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
