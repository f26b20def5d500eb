package runner

import (
	"fmt"

	"github.com/parabatch/parabatch/junitxml"
	"github.com/parabatch/parabatch/types"
)

// ResultStore accumulates parsed result documents across all batches into
// run totals and ordered failure/error/warning lists. Every mutation happens
// on the pool's controller goroutine, so the store needs no locking.
type ResultStore struct {
	casesExpected       int
	casesProcessed      int
	assertions          int
	failures            int
	errors              int
	skippedOrIncomplete int

	failureMessages []string
	errorMessages   []string
	warnings        []string

	batches []types.BatchResult
}

// Snapshot is a read-only copy of the aggregate state.
type Snapshot struct {
	CasesExpected       int
	CasesProcessed      int
	Assertions          int
	Failures            int
	Errors              int
	SkippedOrIncomplete int
	FailureMessages     []string
	ErrorMessages       []string
	Warnings            []string
	Batches             []types.BatchResult
}

// NewResultStore seeds the store with the partitioner's total expected case
// count. The total is corrected batch by batch as documents arrive.
func NewResultStore(totalExpected int) *ResultStore {
	return &ResultStore{casesExpected: totalExpected}
}

// AddResult merges one batch's parsed document into the aggregate. Message
// lists keep batch-completion order across batches and document order within
// one batch. Explicit skipped or incomplete cases only count when skip
// tracking is on; with it off, filtering makes skip accounting unreliable.
func (s *ResultStore) AddResult(expected int, doc *junitxml.Document, trackSkipped bool) {
	actual := doc.Totals.Tests
	s.casesProcessed += actual
	s.assertions += doc.Totals.Assertions
	s.failures += doc.Totals.Failures
	s.errors += doc.Totals.Errors

	for _, c := range doc.Cases {
		switch c.Status {
		case types.CaseStatusFail:
			s.failureMessages = append(s.failureMessages, formatCaseEntry(c))
		case types.CaseStatusError:
			s.errorMessages = append(s.errorMessages, formatCaseEntry(c))
		default:
			if trackSkipped && c.Status.CountsAsSkipped() {
				s.skippedOrIncomplete++
			}
		}
	}

	s.ReconcileOverhead(expected, actual, trackSkipped)
}

// ReconcileOverhead folds the signed difference between a batch's predicted
// and actual case counts into the run totals. With skip tracking on, extra
// cases grow the expected total (a data-driven case expanded into more
// reported results) and missing cases are presumed skipped or incomplete.
// With it off, the difference is folded straight into the expected total.
func (s *ResultStore) ReconcileOverhead(expected, actual int, trackSkipped bool) {
	overhead := actual - expected
	if !trackSkipped {
		s.casesExpected += overhead
		return
	}
	if overhead > 0 {
		s.casesExpected += overhead
	} else {
		s.skippedOrIncomplete -= overhead
	}
}

// AddFatalFailure records a batch whose worker exited without leaving a
// parsable result document behind. The entry names the exact invocation so
// the failure can be reproduced outside the pool.
func (s *ResultStore) AddFatalFailure(command, detail string) {
	entry := fmt.Sprintf("The worker command %q exited without writing a result document.", command)
	if detail != "" {
		entry += "\n" + detail
	}
	s.failureMessages = append(s.failureMessages, entry)
	s.failures++
}

// AddWarning records an externally supplied diagnostic. Warnings make the
// run unsuccessful.
func (s *ResultStore) AddWarning(msg string) {
	s.warnings = append(s.warnings, msg)
}

// RecordBatch appends one completed batch to the per-batch log used by the
// results table, metrics and artifact sinks.
func (s *ResultStore) RecordBatch(res types.BatchResult) {
	s.batches = append(s.batches, res)
}

// IsSuccessful reports whether the run recorded zero failures, zero errors
// and zero warnings. Skipped and incomplete counts do not affect it.
func (s *ResultStore) IsSuccessful() bool {
	return s.failures == 0 && s.errors == 0 && len(s.warnings) == 0
}

// CasesExpected returns the current corrected expected case count.
func (s *ResultStore) CasesExpected() int {
	return s.casesExpected
}

// CasesProcessed returns the number of cases merged so far.
func (s *ResultStore) CasesProcessed() int {
	return s.casesProcessed
}

// Snapshot copies the aggregate state for rendering. The copy stays valid
// after further mutation.
func (s *ResultStore) Snapshot() Snapshot {
	return Snapshot{
		CasesExpected:       s.casesExpected,
		CasesProcessed:      s.casesProcessed,
		Assertions:          s.assertions,
		Failures:            s.failures,
		Errors:              s.errors,
		SkippedOrIncomplete: s.skippedOrIncomplete,
		FailureMessages:     append([]string(nil), s.failureMessages...),
		ErrorMessages:       append([]string(nil), s.errorMessages...),
		Warnings:            append([]string(nil), s.warnings...),
		Batches:             append([]types.BatchResult(nil), s.batches...),
	}
}

// formatCaseEntry renders one failed or errored case for the summary list:
// the case name on its own line, then the worker's diagnostic.
func formatCaseEntry(c types.CaseOutcome) string {
	if c.Message == "" {
		return c.Name
	}
	return c.Name + "\n" + c.Message
}
