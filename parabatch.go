// Package parabatch wires the manifest, worker pool, reporter and artifact
// sinks into a long-lived service that runs a test suite across parallel
// worker processes.
package parabatch

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/parabatch/parabatch/exitcodes"
	"github.com/parabatch/parabatch/partition"
	"github.com/parabatch/parabatch/service"
)

// Service runs a test suite across parallel worker processes. The manifest
// is loaded once at construction; the suite then runs on the configured
// schedule until the service is stopped.
type Service struct {
	ctx      context.Context
	config   *Config
	version  string
	manifest *partition.Manifest

	scheduler Scheduler
	executor  SuiteExecutor
	formatter ResultFormatter
	reporter  MetricsReporter
	http      *service.Service

	result *RunResult

	shutdownCallback func(error) // Callback to signal application shutdown
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*Service, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating parabatch service with config",
		"manifest", config.Manifest,
		"workers", config.Workers,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce,
		"logDir", config.LogDir)

	manifest, err := partition.LoadManifest(config.Manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}

	executor, err := NewDefaultSuiteExecutor(config, manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to create suite executor: %w", err)
	}

	s := &Service{
		ctx:              ctx,
		config:           config,
		version:          version,
		manifest:         manifest,
		scheduler:        NewRunScheduler(config.RunInterval, config.RunOnce, config.Log),
		executor:         executor,
		formatter:        NewConsoleResultFormatter(config.Log),
		reporter:         NewDefaultMetricsReporter(),
		shutdownCallback: shutdownCallback,
	}
	if !config.RunOnce {
		// Healthz and metrics endpoints only make sense for a long-lived
		// service; run-once invocations stay off the network.
		s.http = service.New()
	}
	s.scheduler.RegisterCallback(s.runSuite)

	config.Log.Info("parabatch.New: loaded manifest", "suite", manifest.Suite, "batches", len(manifest.Batches))
	return s, nil
}

// Start runs the suite on the configured schedule.
func (s *Service) Start(ctx context.Context) error {
	// Set up panic recovery to ensure we exit with code 2 for runtime errors
	defer func() {
		if r := recover(); r != nil {
			s.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	s.ctx = ctx

	if s.config.RunOnce {
		s.config.Log.Info("Starting parabatch in run-once mode")
	} else {
		s.config.Log.Info("Starting parabatch in continuous mode", "interval", s.config.RunInterval)
		if s.http != nil {
			s.http.Start(ctx)
		}
	}

	if err := s.scheduler.Start(ctx); err != nil {
		s.config.Log.Error("Runtime error running suite", "error", err)
		return err
	}

	// If in run-once mode, trigger shutdown and return
	if s.config.RunOnce {
		s.config.Log.Info("Suite completed, exiting (run-once mode)")

		// Check if the run failed and return the appropriate exit code
		if s.result != nil && !s.result.IsSuccessful() {
			s.config.Log.Warn("Run-once suite run completed with failures, returning exit code 1")
			return NewTestFailureError(s.result.String())
		}

		// Only needed when we're in run-once mode and the suite passed
		go func() {
			s.shutdownCallback(nil)
		}()
		return nil
	}

	s.config.Log.Debug("parabatch started successfully")
	return nil
}

// runSuite runs the suite once and processes the results
func (s *Service) runSuite() error {
	runID := uuid.New().String()
	s.config.Log.Info("Running suite...", "run_id", runID)

	result, err := s.executor.RunSuite(s.ctx, runID)
	if err != nil {
		// This is a runtime error (not a test failure)
		s.config.Log.Error("Runtime error running suite", "error", err)
		return NewRuntimeError(err)
	}
	s.result = result

	if err := s.formatter.FormatResults(result); err != nil {
		s.config.Log.Error("Error formatting results", "error", err)
	}
	s.reporter.ReportResults(runID, result)

	s.config.Log.Info("Suite run completed", "run_id", runID, "verdict", result.Verdict())
	return nil
}

// Stop stops the parabatch service.
func (s *Service) Stop(ctx context.Context) error {
	s.config.Log.Info("Stopping parabatch")

	// Check if we're already stopped
	if s.scheduler.Stopped() {
		s.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}

	if err := s.scheduler.Stop(); err != nil {
		s.config.Log.Error("Error stopping scheduler", "error", err)
	}
	if s.http != nil {
		s.http.Shutdown()
	}

	s.config.Log.Info("parabatch stopped successfully")
	return nil
}

// Stopped returns true if the parabatch service is stopped. The scheduler
// owns the run loop, so its state is the service's state.
func (s *Service) Stopped() bool {
	return s.scheduler.Stopped()
}

// Result returns the most recent run result, or nil before the first run.
func (s *Service) Result() *RunResult {
	return s.result
}

// WaitForShutdown blocks until all scheduler goroutines have terminated.
// This is useful in tests to ensure complete cleanup before moving to the next test.
func (s *Service) WaitForShutdown(ctx context.Context) error {
	return s.scheduler.WaitForShutdown(ctx)
}
