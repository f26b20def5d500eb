package parabatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/parabatch/parabatch/logging"
	"github.com/parabatch/parabatch/partition"
	"github.com/parabatch/parabatch/runner"
	"github.com/parabatch/parabatch/types"
)

// defaultWatchInterval is how often the pool logs batches still in flight.
const defaultWatchInterval = 30 * time.Second

// RunResult is the outcome of one complete suite run.
type RunResult struct {
	RunID    string
	Suite    string
	Snapshot runner.Snapshot
	Usage    runner.ResourceUsage
	Summary  string
}

// IsSuccessful reports whether the run recorded zero failures, zero errors
// and zero warnings.
func (r *RunResult) IsSuccessful() bool {
	return r.Snapshot.IsSuccessful()
}

// Verdict summarizes the run for table styling and metrics labels. A
// successful run that skipped work is a skip verdict, not a pass.
func (r *RunResult) Verdict() types.CaseStatus {
	switch {
	case !r.Snapshot.IsSuccessful():
		return types.CaseStatusFail
	case r.Snapshot.SkippedOrIncomplete > 0:
		return types.CaseStatusSkip
	default:
		return types.CaseStatusPass
	}
}

// String renders a compact one-line digest of the run.
func (r *RunResult) String() string {
	return fmt.Sprintf("run %s: %d/%d cases, %d assertions, %d failures, %d errors, %d skipped or incomplete",
		r.RunID, r.Snapshot.CasesProcessed, r.Snapshot.CasesExpected, r.Snapshot.Assertions,
		r.Snapshot.Failures, r.Snapshot.Errors, r.Snapshot.SkippedOrIncomplete)
}

// SuiteExecutor is responsible for running the suite once.
type SuiteExecutor interface {
	RunSuite(ctx context.Context, runID string) (*RunResult, error)
}

// DefaultSuiteExecutor implements the SuiteExecutor interface. One call plans
// the manifest, drives the worker pool with streaming progress, renders the
// summary and leaves the run's artifacts behind in the log directory.
type DefaultSuiteExecutor struct {
	manifest *partition.Manifest
	config   *Config
	workDir  string
	out      io.Writer
	logger   log.Logger
	tracer   trace.Tracer
}

// NewDefaultSuiteExecutor creates a new DefaultSuiteExecutor. Workers run
// with the manifest's directory as their working directory, so batch
// arguments may use manifest-relative paths.
func NewDefaultSuiteExecutor(config *Config, manifest *partition.Manifest) (*DefaultSuiteExecutor, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if manifest == nil {
		return nil, errors.New("manifest is required")
	}
	logger := config.Log
	if logger == nil {
		logger = log.New()
	}
	return &DefaultSuiteExecutor{
		manifest: manifest,
		config:   config,
		workDir:  filepath.Dir(config.Manifest),
		out:      os.Stdout,
		logger:   logger,
		tracer:   otel.Tracer("suite executor"),
	}, nil
}

// RunSuite runs every batch of the suite once and renders the report.
func (e *DefaultSuiteExecutor) RunSuite(ctx context.Context, runID string) (*RunResult, error) {
	ctx, span := e.tracer.Start(ctx, fmt.Sprintf("suite run %s", runID))
	defer span.End()

	start := time.Now()

	fileLogger, err := logging.NewFileLogger(e.config.LogDir, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to create file logger: %w", err)
	}

	resultDir := filepath.Join(os.TempDir(), "parabatch-"+runID)
	defer os.RemoveAll(resultDir)

	plan, err := partition.NewPlan(e.manifest, partition.Options{
		Functional:    e.config.Functional,
		Groups:        e.config.Groups,
		ExcludeGroups: e.config.ExcludeGroups,
		ResultDir:     resultDir,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to plan suite run: %w", err)
	}
	e.logger.Info("Planned suite run", "run_id", runID, "suite", plan.Suite,
		"batches", len(plan.Batches), "expectedCases", plan.TotalExpected)

	launcher, err := runner.NewCommandLauncher(runner.LauncherConfig{
		Command:      plan.Worker,
		WorkDir:      e.workDir,
		BatchTimeout: e.config.BatchTimeout,
		Log:          e.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create worker launcher: %w", err)
	}

	pool, err := runner.NewWorkerPool(runner.PoolConfig{
		Launcher:      launcher,
		Workers:       e.config.Workers,
		Log:           e.logger,
		WatchInterval: defaultWatchInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	store := runner.NewResultStore(plan.TotalExpected)

	progressOut := e.out
	if pw, err := fileLogger.ProgressWriter(); err != nil {
		e.logger.Warn("Progress stream will not be mirrored to disk", "error", err)
	} else {
		progressOut = io.MultiWriter(e.out, pw)
	}

	reporter, err := runner.NewStreamingReporter(runner.ReporterConfig{
		Writer:       progressOut,
		Store:        store,
		Width:        e.config.Columns,
		TrackSkipped: plan.TrackSkipped,
		Sinks:        []runner.ResultSink{fileLogger},
		Log:          e.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create streaming reporter: %w", err)
	}

	reporter.Begin(plan.TotalExpected)
	runErr := pool.Run(ctx, plan.Batches, reporter.Complete)
	reporter.End()
	if runErr != nil {
		span.RecordError(runErr)
		return nil, fmt.Errorf("suite run failed: %w", runErr)
	}

	usage := runner.CaptureResourceUsage(start)
	snap := store.Snapshot()
	summary := runner.NewSummaryRenderer(runner.SummaryConfig{Colors: e.config.Color}).Render(snap, usage)

	fmt.Fprintln(e.out)
	fmt.Fprint(e.out, summary)

	if err := fileLogger.LogSummary(summary, runID); err != nil {
		e.logger.Error("Failed to write summary artifact", "run_id", runID, "error", err)
	}
	if err := fileLogger.Complete(runID); err != nil {
		e.logger.Error("Failed to complete artifact sinks", "run_id", runID, "error", err)
	}

	return &RunResult{
		RunID:    runID,
		Suite:    plan.Suite,
		Snapshot: snap,
		Usage:    usage,
		Summary:  summary,
	}, nil
}
