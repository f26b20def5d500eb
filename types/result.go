package types

import "time"

// BatchResult records one completed batch for results tables, metrics and
// artifact sinks. The zero value means "nothing ran".
type BatchResult struct {
	Name       string
	Tests      int
	Assertions int
	Failures   int
	Errors     int
	Skipped    int
	Duration   time.Duration
	// Fatal marks a batch whose worker exited without leaving a parsable
	// result document behind.
	Fatal bool
	// Detail carries the fatal failure description, including the worker
	// invocation command.
	Detail string
}

// Status summarizes the batch outcome for display. Errors take precedence
// over failures, failures over skips.
func (r BatchResult) Status() CaseStatus {
	switch {
	case r.Fatal || r.Errors > 0:
		return CaseStatusError
	case r.Failures > 0:
		return CaseStatusFail
	case r.Tests > 0 && r.Skipped == r.Tests:
		return CaseStatusSkip
	default:
		return CaseStatusPass
	}
}
