package parabatch

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/parabatch/parabatch/types"
)

// ResultFormatter is responsible for formatting and displaying run results.
type ResultFormatter interface {
	FormatResults(result *RunResult) error
}

// ConsoleResultFormatter implements the ResultFormatter interface. It renders
// one per-batch results table after the summary.
type ConsoleResultFormatter struct {
	out    io.Writer
	logger log.Logger
}

// NewConsoleResultFormatter creates a new ConsoleResultFormatter writing to
// stdout.
func NewConsoleResultFormatter(logger log.Logger) *ConsoleResultFormatter {
	return &ConsoleResultFormatter{
		out:    os.Stdout,
		logger: logger,
	}
}

// FormatResults formats and displays the per-batch results table.
func (f *ConsoleResultFormatter) FormatResults(result *RunResult) error {
	f.logger.Debug("Printing batch results", "run_id", result.RunID)
	t := table.NewWriter()
	t.SetOutputMirror(f.out)
	title := "Batch Results"
	if result.Suite != "" {
		title = fmt.Sprintf("Batch Results: %s", result.Suite)
	}
	t.SetTitle(fmt.Sprintf("%s (%s)", title, formatDuration(result.Usage.Elapsed)))

	// Configure columns
	t.AppendHeader(table.Row{
		"Batch", "Duration", "Tests", "Assertions", "Failures", "Errors", "Skipped", "Status", "Detail",
	})

	// Set column configurations for better readability
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Batch", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Tests", Align: text.AlignRight},
		{Name: "Assertions", Align: text.AlignRight},
		{Name: "Failures", Align: text.AlignRight},
		{Name: "Errors", Align: text.AlignRight},
		{Name: "Skipped", Align: text.AlignRight},
		{Name: "Detail", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, batch := range result.Snapshot.Batches {
		t.AppendRow(table.Row{
			batch.Name,
			formatDuration(batch.Duration),
			batch.Tests,
			batch.Assertions,
			batch.Failures,
			batch.Errors,
			batch.Skipped,
			getResultString(batch.Status()),
			compactDetail(batch.Detail),
		})
	}

	// Update the table style setting based on the run verdict
	verdict := result.Verdict()
	if verdict == types.CaseStatusPass {
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	} else if verdict == types.CaseStatusSkip {
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	} else {
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}

	// Add summary footer
	t.AppendFooter(table.Row{
		"TOTAL",
		formatDuration(result.Usage.Elapsed),
		result.Snapshot.CasesProcessed,
		result.Snapshot.Assertions,
		result.Snapshot.Failures,
		result.Snapshot.Errors,
		result.Snapshot.SkippedOrIncomplete,
		getResultString(verdict),
		"",
	})

	t.Render()
	return nil
}

// getResultString returns a short string representing a batch or run outcome
func getResultString(status types.CaseStatus) string {
	switch status {
	case types.CaseStatusPass:
		return "✓ pass"
	case types.CaseStatusSkip:
		return "- skip"
	case types.CaseStatusError:
		return "✗ error"
	default:
		return "✗ fail"
	}
}

// compactDetail reduces a multi-line failure detail to its first line so the
// table stays scannable; the full text lives in the summary.
func compactDetail(detail string) string {
	if detail == "" {
		return ""
	}
	if idx := strings.Index(detail, "\n"); idx != -1 {
		detail = detail[:idx]
	}
	if len(detail) > 80 {
		return detail[:70] + "..."
	}
	return detail
}

// Helper function to format duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
