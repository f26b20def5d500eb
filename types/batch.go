// Package types contains shared types used across the parabatch runner.
package types

// Batch is one schedulable unit of test work, executed by a single worker
// process. Batches are produced by the partitioner in suite order; the
// scheduler owns them from launch to completion.
type Batch struct {
	// Name identifies the batch in logs, summaries and artifact files.
	Name string
	// Args select the batch's tests on the worker command line.
	Args []string
	// ExpectedCount is the predicted number of test cases, computed at
	// partition time. The actual count may differ and is reconciled by the
	// aggregator.
	ExpectedCount int
	// ResultPath is the file the worker writes its result document to.
	// The file is deleted once the document has been consumed.
	ResultPath string
	// LastCommand is the full invocation recorded at launch, used to
	// attribute fatal failures to a concrete command.
	LastCommand string
	// Warnings collects diagnostics surfaced by collaborators, such as
	// stderr output from a worker that otherwise exited cleanly.
	Warnings []string
}

// AddWarning appends a diagnostic message to the batch.
func (b *Batch) AddWarning(msg string) {
	b.Warnings = append(b.Warnings, msg)
}
