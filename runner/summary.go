package runner

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
)

// ResourceUsage snapshots wall time and peak memory for the summary header.
type ResourceUsage struct {
	Elapsed    time.Duration
	PeakMemory uint64
}

// CaptureResourceUsage builds the header snapshot for a run started at
// start. Peak memory is what the Go runtime has obtained from the OS.
func CaptureResourceUsage(start time.Time) ResourceUsage {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return ResourceUsage{
		Elapsed:    time.Since(start),
		PeakMemory: m.Sys,
	}
}

// IsSuccessful mirrors the store's verdict: zero failures, zero errors and
// zero warnings. Skipped and incomplete counts do not affect it.
func (s Snapshot) IsSuccessful() bool {
	return s.Failures == 0 && s.Errors == 0 && len(s.Warnings) == 0
}

// SummaryConfig configures a SummaryRenderer.
type SummaryConfig struct {
	// Colors enables terminal styling of the footer. The wording is
	// identical with colors off.
	Colors bool
}

// SummaryRenderer renders the final report: resource header, enumerated
// failures, errors and warnings, and the verdict footer.
type SummaryRenderer struct {
	colors bool
}

// NewSummaryRenderer creates a renderer. Enabling colors forces ANSI output
// even when stdout is not a terminal, so the flag behaves the same under CI
// log capture.
func NewSummaryRenderer(cfg SummaryConfig) *SummaryRenderer {
	if cfg.Colors {
		text.EnableColors()
	}
	return &SummaryRenderer{colors: cfg.Colors}
}

var (
	successStyle = text.Colors{text.FgBlack, text.BgGreen}
	failureStyle = text.Colors{text.FgWhite, text.BgRed}
)

// Render is a pure function of the final aggregate state and the captured
// resource usage.
func (r *SummaryRenderer) Render(snap Snapshot, usage ResourceUsage) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Time: %s, Memory: %s\n",
		formatDuration(usage.Elapsed), formatBytes(usage.PeakMemory))

	writeEntryList(&b, "failure", "failures", snap.FailureMessages)
	writeEntryList(&b, "error", "errors", snap.ErrorMessages)
	writeEntryList(&b, "warning", "warnings", snap.Warnings)

	b.WriteString("\n")
	b.WriteString(r.footer(snap))
	b.WriteString("\n")
	return b.String()
}

// writeEntryList renders one enumerated section, 1-indexed, entries
// separated by blank lines. Empty lists render nothing.
func writeEntryList(b *strings.Builder, singular, plural string, entries []string) {
	if len(entries) == 0 {
		return
	}
	verb, noun := "were", plural
	if len(entries) == 1 {
		verb, noun = "was", singular
	}
	fmt.Fprintf(b, "\nThere %s %d %s:\n", verb, len(entries), noun)
	for i, entry := range entries {
		fmt.Fprintf(b, "\n%d) %s\n", i+1, entry)
	}
}

func (r *SummaryRenderer) footer(snap Snapshot) string {
	switch {
	case !snap.IsSuccessful():
		return r.paint(failureStyle, fmt.Sprintf("Tests: %d, Assertions: %d, Failures: %d, Errors: %d.",
			snap.CasesProcessed, snap.Assertions, snap.Failures, snap.Errors))
	case snap.SkippedOrIncomplete == 0:
		return r.paint(successStyle, fmt.Sprintf("OK (%d %s, %d %s)",
			snap.CasesProcessed, pluralize("test", snap.CasesProcessed),
			snap.Assertions, pluralize("assertion", snap.Assertions)))
	default:
		return fmt.Sprintf("OK, but incomplete, skipped, or risky tests!\nTests: %d, Assertions: %d, Incomplete: %d.",
			snap.CasesProcessed, snap.Assertions, snap.SkippedOrIncomplete)
	}
}

func (r *SummaryRenderer) paint(style text.Colors, s string) string {
	if !r.colors {
		return s
	}
	return style.Sprint(s)
}

func pluralize(word string, n int) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%d ms", d.Milliseconds())
	}
	return fmt.Sprintf("%.2f seconds", d.Seconds())
}

func formatBytes(b uint64) string {
	return fmt.Sprintf("%.2f MB", float64(b)/(1024*1024))
}
