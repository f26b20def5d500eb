package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/parabatch/parabatch/types"
)

const (
	MetricsNamespace = "parabatch"
)

var (
	Debug             bool = true
	validBatchResults      = []types.CaseStatus{
		types.CaseStatusPass,
		types.CaseStatusFail,
		types.CaseStatusError,
		types.CaseStatusSkip,
	}
	nonAlphanumericRegex = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	batchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "batches_total",
		Help:      "Count of executed batches",
	}, []string{
		"suite",
		"run_id",
		"name",
		"result",
	})

	runResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Verdict of suite runs",
	}, []string{
		"suite",
		"run_id",
		"verdict",
	})

	runCasesExpected = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_cases_expected",
		Help:      "Reconciled expected case count of a run",
	}, []string{
		"suite",
		"run_id",
	})

	runCasesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_cases_processed",
		Help:      "Number of cases reported by workers",
	}, []string{
		"suite",
		"run_id",
	})

	runAssertions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_assertions",
		Help:      "Number of assertions reported by workers",
	}, []string{
		"suite",
		"run_id",
	})

	runCasesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_cases_failed",
		Help:      "Number of failed cases",
	}, []string{
		"suite",
		"run_id",
	})

	runCasesErrored = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_cases_errored",
		Help:      "Number of errored cases",
	}, []string{
		"suite",
		"run_id",
	})

	runCasesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_cases_skipped",
		Help:      "Number of skipped or incomplete cases",
	}, []string{
		"suite",
		"run_id",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration",
		Help:      "Duration of suite runs in seconds",
	}, []string{
		"suite",
		"run_id",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

func RecordBatch(suite string, runID string, name string, result types.CaseStatus) {
	if !isValidBatchResult(result) {
		log.Error("RecordBatch - invalid result", "result", result)
		return
	}
	if Debug {
		log.Debug("metric inc",
			"m", "batches_total",
			"suite", suite,
			"run_id", runID,
			"batch", name,
			"result", result)
	}
	batchesTotal.WithLabelValues(suite, runID, name, string(result)).Inc()
}

func RecordRun(
	suite string,
	runID string,
	verdict string,
	expected int,
	processed int,
	assertions int,
	failed int,
	errored int,
	skipped int,
	duration time.Duration,
) {
	runResults.WithLabelValues(suite, runID, verdict).Set(1)
	runCasesExpected.WithLabelValues(suite, runID).Set(float64(expected))
	runCasesProcessed.WithLabelValues(suite, runID).Add(float64(processed))
	runAssertions.WithLabelValues(suite, runID).Add(float64(assertions))
	runCasesFailed.WithLabelValues(suite, runID).Add(float64(failed))
	runCasesErrored.WithLabelValues(suite, runID).Add(float64(errored))
	runCasesSkipped.WithLabelValues(suite, runID).Add(float64(skipped))
	runDuration.WithLabelValues(suite, runID).Set(duration.Seconds())
}

func isValidBatchResult(result types.CaseStatus) bool {
	return slices.Contains(validBatchResults, result)
}
