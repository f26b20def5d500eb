package parabatch

import (
	"github.com/parabatch/parabatch/metrics"
)

// MetricsReporter is responsible for reporting metrics from run results.
type MetricsReporter interface {
	ReportResults(runID string, result *RunResult)
}

// DefaultMetricsReporter implements the MetricsReporter interface.
type DefaultMetricsReporter struct{}

// NewDefaultMetricsReporter creates a new DefaultMetricsReporter.
func NewDefaultMetricsReporter() *DefaultMetricsReporter {
	return &DefaultMetricsReporter{}
}

// ReportResults reports the run results to metrics systems.
func (r *DefaultMetricsReporter) ReportResults(runID string, result *RunResult) {
	metrics.RecordRun(
		result.Suite,
		runID,
		string(result.Verdict()),
		result.Snapshot.CasesExpected,
		result.Snapshot.CasesProcessed,
		result.Snapshot.Assertions,
		result.Snapshot.Failures,
		result.Snapshot.Errors,
		result.Snapshot.SkippedOrIncomplete,
		result.Usage.Elapsed,
	)
	for _, batch := range result.Snapshot.Batches {
		metrics.RecordBatch(result.Suite, runID, batch.Name, batch.Status())
	}
}
