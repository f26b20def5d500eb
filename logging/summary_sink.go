package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/parabatch/parabatch/junitxml"
	"github.com/parabatch/parabatch/types"
)

const breakdownFilename = "summary.txt"

// SummarySink writes a per-batch breakdown of the run. Batch totals are
// collected as documents arrive and written out once the run has been
// aggregated. Batches whose worker produced no parsable document never reach
// the sink and are absent from the breakdown.
type SummarySink struct {
	logger *FileLogger

	mu      sync.Mutex
	batches []batchBreakdown
}

type batchBreakdown struct {
	name       string
	tests      int
	assertions int
	failures   int
	errors     int
	skipped    int
}

// Consume records one batch's totals for the breakdown.
func (s *SummarySink) Consume(batch *types.Batch, doc *junitxml.Document) error {
	skipped := 0
	for _, c := range doc.Cases {
		if c.Status.CountsAsSkipped() {
			skipped++
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.batches = append(s.batches, batchBreakdown{
		name:       batch.Name,
		tests:      doc.Totals.Tests,
		assertions: doc.Totals.Assertions,
		failures:   doc.Totals.Failures,
		errors:     doc.Totals.Errors,
		skipped:    skipped,
	})
	return nil
}

// Complete writes the collected breakdown into the run directory.
func (s *SummarySink) Complete(runID string) error {
	outputDir, err := s.logger.GetDirectoryForRunID(runID)
	if err != nil {
		return err
	}

	// Create the output directory if it doesn't exist
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	s.mu.Lock()
	lines := make([]batchBreakdown, len(s.batches))
	copy(lines, s.batches)
	s.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "Batch breakdown for run %s\n\n", runID)

	var tests, assertions int
	for _, line := range lines {
		fmt.Fprintf(&b, "%s: %d tests, %d assertions, %d failures, %d errors, %d skipped\n",
			line.name, line.tests, line.assertions, line.failures, line.errors, line.skipped)
		tests += line.tests
		assertions += line.assertions
	}
	fmt.Fprintf(&b, "\n%d batches, %d tests, %d assertions\n", len(lines), tests, assertions)

	breakdownFile := filepath.Join(outputDir, breakdownFilename)
	if err := os.WriteFile(breakdownFile, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write breakdown file: %w", err)
	}
	return nil
}
