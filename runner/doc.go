// Package runner schedules test batches across worker processes and merges
// their results into one report.
//
// The main components are:
//   - WorkerPool: dispatches batches to a bounded number of worker slots and
//     observes process exits from a single controller goroutine
//   - Launcher: starts one worker process per batch and captures its exit
//     status and stderr
//   - ResultStore: accumulates parsed result documents into run totals and
//     ordered failure/error/warning lists
//   - StreamingReporter: renders live glyph progress as batches complete and
//     feeds each document to the store and artifact sinks
//   - SummaryRenderer: renders the final report from the aggregate state
//
// All aggregation and rendering happens on the pool's controller goroutine;
// the only true concurrency is between the worker processes themselves.
package runner
