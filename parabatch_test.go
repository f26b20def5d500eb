package parabatch

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/parabatch/parabatch/runner"
)

// trackedMockExecutor is a mock executor that counts executions and provides
// synchronization
type trackedMockExecutor struct {
	mock.Mock
	execCount atomic.Int32  // Count of RunSuite executions
	execCh    chan struct{} // Channel for signaling on each execution
}

// newTrackedMockExecutor creates a new executor with execution tracking
func newTrackedMockExecutor() *trackedMockExecutor {
	return &trackedMockExecutor{
		execCh: make(chan struct{}, 100), // Buffer to prevent blocking
	}
}

// RunSuite implements the SuiteExecutor interface
func (m *trackedMockExecutor) RunSuite(ctx context.Context, runID string) (*RunResult, error) {
	m.execCount.Add(1)
	args := m.Called(ctx, runID)

	// Signal that an execution has happened
	select {
	case m.execCh <- struct{}{}:
	default:
		// Non-blocking send, just in case no one is listening
	}

	if res := args.Get(0); res != nil {
		return res.(*RunResult), args.Error(1)
	}
	return nil, args.Error(1)
}

// waitForExecutions waits for a specific number of executions with timeout
func (m *trackedMockExecutor) waitForExecutions(ctx context.Context, count int32) bool {
	timeoutCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if m.execCount.Load() >= count {
			return true
		}

		select {
		case <-m.execCh:
			// An execution signal received, immediately recheck the count
			continue
		case <-ticker.C:
			continue
		case <-timeoutCtx.Done():
			return false
		}
	}
}

// passingResult builds a RunResult for a suite where every case passed.
func passingResult() *RunResult {
	return &RunResult{
		RunID: "test-run",
		Suite: "demo",
		Snapshot: runner.Snapshot{
			CasesExpected:  3,
			CasesProcessed: 3,
			Assertions:     3,
		},
		Usage: runner.ResourceUsage{Elapsed: 120 * time.Millisecond},
	}
}

// failingResult builds a RunResult with one recorded failure.
func failingResult() *RunResult {
	return &RunResult{
		RunID: "test-run",
		Suite: "demo",
		Snapshot: runner.Snapshot{
			CasesExpected:   3,
			CasesProcessed:  3,
			Assertions:      3,
			Failures:        1,
			FailureMessages: []string{"DemoTest::testThing\nexpected true"},
		},
		Usage: runner.ResourceUsage{Elapsed: 120 * time.Millisecond},
	}
}

// setupTest creates a test service with a tracked mock executor
func setupTest(t *testing.T, runOnce bool, interval time.Duration) (*trackedMockExecutor, *Service, context.Context, context.CancelFunc) {
	t.Helper()

	// Create a clean context for each test with a generous timeout to prevent hangs
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

	mockExecutor := newTrackedMockExecutor()
	logger := log.NewLogger(log.DiscardHandler())

	// Create service with the mock
	service := &Service{
		ctx: ctx,
		config: &Config{
			Log:         logger,
			RunInterval: interval,
			RunOnce:     runOnce,
		},
		scheduler: NewRunScheduler(interval, runOnce, logger),
		executor:  mockExecutor,
		formatter: &ConsoleResultFormatter{out: io.Discard, logger: logger},
		reporter:  NewDefaultMetricsReporter(),
		// Add a no-op shutdown callback for tests
		shutdownCallback: func(error) {},
	}
	service.scheduler.RegisterCallback(service.runSuite)

	return mockExecutor, service, ctx, cancel
}

// teardownTest ensures the service is fully stopped before test completion
func teardownTest(t *testing.T, service *Service, cancel context.CancelFunc) {
	t.Helper()

	// Cancel context first to stop background activities
	cancel()

	// Then properly stop the service
	if !service.Stopped() {
		err := service.Stop(context.Background())
		assert.NoError(t, err, "Service should stop cleanly during teardown")
	}

	// Ensure all goroutines have terminated
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := service.WaitForShutdown(ctx)
	if err != nil {
		t.Logf("Warning: Service did not shut down cleanly in teardown: %v", err)
	}
}

// TestServiceStartRunsSuiteImmediately tests that the suite runs immediately on start
func TestServiceStartRunsSuiteImmediately(t *testing.T) {
	// A long interval so only the immediate run can have happened by the
	// time we assert
	mockExecutor, service, ctx, cancel := setupTest(t, false, 500*time.Millisecond)
	defer teardownTest(t, service, cancel)

	mockExecutor.On("RunSuite", mock.Anything, mock.Anything).Return(passingResult(), nil)

	err := service.Start(ctx)
	require.NoError(t, err)

	execCompleted := mockExecutor.waitForExecutions(ctx, 1)
	require.True(t, execCompleted, "First execution should have completed")

	mockExecutor.AssertNumberOfCalls(t, "RunSuite", 1)
	assert.NotNil(t, service.Result(), "Service should retain the latest result")
}

// TestServiceStartRunsSuitePeriodically tests that the suite runs periodically
func TestServiceStartRunsSuitePeriodically(t *testing.T) {
	mockExecutor, service, ctx, cancel := setupTest(t, false, 25*time.Millisecond)
	defer teardownTest(t, service, cancel)

	mockExecutor.On("RunSuite", mock.Anything, mock.Anything).Return(passingResult(), nil)

	err := service.Start(ctx)
	require.NoError(t, err)

	// Wait for multiple executions (at least 3)
	execCompleted := mockExecutor.waitForExecutions(ctx, 3)
	require.True(t, execCompleted, "Multiple executions should have completed")

	callCount := mockExecutor.execCount.Load()
	assert.GreaterOrEqual(t, callCount, int32(3), "Executor should be called at least 3 times")
}

// TestServiceContextCancellation tests that the service stops on context cancellation
func TestServiceContextCancellation(t *testing.T) {
	mockExecutor, service, ctx, cancel := setupTest(t, false, 25*time.Millisecond)
	defer teardownTest(t, service, cancel)

	mockExecutor.On("RunSuite", mock.Anything, mock.Anything).Return(passingResult(), nil)

	err := service.Start(ctx)
	require.NoError(t, err)

	execCompleted := mockExecutor.waitForExecutions(ctx, 1)
	require.True(t, execCompleted, "First execution should have completed")

	// Cancel the context and wait for the cancellation to propagate
	cancel()
	require.Eventually(t, service.Stopped, time.Second, 10*time.Millisecond,
		"Service should be stopped after context cancellation")

	// Verify no additional executions occur after stopping
	execCountAfterCancel := mockExecutor.execCount.Load()
	time.Sleep(3 * service.config.RunInterval)
	assert.Equal(t, execCountAfterCancel, mockExecutor.execCount.Load(),
		"No additional suite runs should occur after context cancellation")
}

// TestServiceRunOnceMode tests that the service runs once and triggers shutdown
func TestServiceRunOnceMode(t *testing.T) {
	mockExecutor, service, ctx, cancel := setupTest(t, true, 0)
	defer cancel()

	// Capture the shutdown callback invocation
	shutdownCh := make(chan error, 1)
	service.shutdownCallback = func(err error) { shutdownCh <- err }

	mockExecutor.On("RunSuite", mock.Anything, mock.Anything).Return(passingResult(), nil).Once()

	err := service.Start(ctx)
	require.NoError(t, err)

	select {
	case err := <-shutdownCh:
		assert.NoError(t, err, "Shutdown callback should receive nil on success")
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for shutdown callback")
	}

	// Verify the executor was called exactly once and doesn't continue running
	time.Sleep(100 * time.Millisecond)
	mockExecutor.AssertNumberOfCalls(t, "RunSuite", 1)
}

// TestServiceRunOnceModeFailure tests the exit code contract for failing suites
func TestServiceRunOnceModeFailure(t *testing.T) {
	mockExecutor, service, ctx, cancel := setupTest(t, true, 0)
	defer cancel()

	mockExecutor.On("RunSuite", mock.Anything, mock.Anything).Return(failingResult(), nil).Once()

	err := service.Start(ctx)
	require.Error(t, err)
	assert.True(t, IsTestFailureError(err), "A failing suite should surface as a test failure error")
	assert.False(t, IsRuntimeError(err))
}

// TestServiceRunOnceModeRuntimeError tests that executor errors surface as runtime errors
func TestServiceRunOnceModeRuntimeError(t *testing.T) {
	mockExecutor, service, ctx, cancel := setupTest(t, true, 0)
	defer cancel()

	mockExecutor.On("RunSuite", mock.Anything, mock.Anything).
		Return(nil, errors.New("manifest gone missing")).Once()

	err := service.Start(ctx)
	require.Error(t, err)
	assert.True(t, IsRuntimeError(err), "An executor error should surface as a runtime error")
	assert.Contains(t, err.Error(), "manifest gone missing")
}

// TestServiceStop tests that Stop halts periodic runs
func TestServiceStop(t *testing.T) {
	mockExecutor, service, ctx, cancel := setupTest(t, false, 25*time.Millisecond)
	defer cancel()

	mockExecutor.On("RunSuite", mock.Anything, mock.Anything).Return(passingResult(), nil)

	err := service.Start(ctx)
	require.NoError(t, err)

	execCompleted := mockExecutor.waitForExecutions(ctx, 1)
	require.True(t, execCompleted, "First execution should have completed")

	err = service.Stop(context.Background())
	require.NoError(t, err)
	assert.True(t, service.Stopped())

	// Stop again should be a no-op
	err = service.Stop(context.Background())
	require.NoError(t, err)

	execCountAfterStop := mockExecutor.execCount.Load()
	time.Sleep(3 * service.config.RunInterval)
	assert.Equal(t, execCountAfterStop, mockExecutor.execCount.Load(),
		"No additional suite runs should occur after Stop")
}

// TestNewServiceLoadsManifest tests service construction against a real manifest
func TestNewServiceLoadsManifest(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "suite.yaml")
	manifest := `suite: demo
worker:
  binary: phpunit-worker
  result_flag: --log-junit
batches:
  - name: alpha
    tests: 3
  - name: beta
    tests: 2
`
	require.NoError(t, os.WriteFile(manifestPath, []byte(manifest), 0o644))

	cfg := &Config{
		Manifest: manifestPath,
		LogDir:   filepath.Join(dir, "logs"),
		RunOnce:  true,
		Log:      log.NewLogger(log.DiscardHandler()),
	}

	service, err := New(context.Background(), cfg, "v0.1.0-test", func(error) {})
	require.NoError(t, err)
	require.NotNil(t, service)
	assert.True(t, service.Stopped(), "Service should not be running before Start")
	assert.Nil(t, service.Result())
}

// TestNewServiceRequiresConfig tests the nil-config guard
func TestNewServiceRequiresConfig(t *testing.T) {
	_, err := New(context.Background(), nil, "v0.1.0-test", func(error) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config is required")
}

// TestNewServiceManifestError tests that a missing manifest fails construction
func TestNewServiceManifestError(t *testing.T) {
	cfg := &Config{
		Manifest: filepath.Join(t.TempDir(), "nope.yaml"),
		LogDir:   t.TempDir(),
		RunOnce:  true,
		Log:      log.NewLogger(log.DiscardHandler()),
	}

	_, err := New(context.Background(), cfg, "v0.1.0-test", func(error) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load manifest")
}
