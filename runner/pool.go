package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/parabatch/parabatch/types"
)

// CompleteFunc is invoked on the controller goroutine for every finished
// batch, before the freed slot starts the next one. Completion order across
// slots is non-deterministic.
type CompleteFunc func(batch *types.Batch, res ProcessResult)

// PoolConfig configures a WorkerPool.
type PoolConfig struct {
	Launcher Launcher
	// Workers is the number of concurrent worker slots. Zero means
	// auto-determine from the machine and queue size.
	Workers int
	Log     log.Logger
	// WatchInterval controls how often in-flight batches are logged while
	// the pool waits. Zero disables the watchdog.
	WatchInterval time.Duration
}

// WorkerPool dispatches batches to a bounded number of worker process slots.
// A single controller goroutine fills idle slots in FIFO order, blocks on
// the next process exit, and reports each completion synchronously before
// reusing the slot. Reaper goroutines share nothing with the controller
// except the exit channel.
type WorkerPool struct {
	launcher      Launcher
	workers       int
	watchInterval time.Duration
	log           log.Logger
	tracer        trace.Tracer
}

// NewWorkerPool creates a pool after validating its configuration.
func NewWorkerPool(cfg PoolConfig) (*WorkerPool, error) {
	if cfg.Launcher == nil {
		return nil, errors.New("launcher is required")
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("invalid worker count %d", cfg.Workers)
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	return &WorkerPool{
		launcher:      cfg.Launcher,
		workers:       cfg.Workers,
		watchInterval: cfg.WatchInterval,
		log:           cfg.Log,
		tracer:        otel.Tracer("worker pool"),
	}, nil
}

// slotExit carries one process exit from a reaper goroutine back to the
// controller.
type slotExit struct {
	batch *types.Batch
	res   ProcessResult
}

// Run executes every batch and returns once the queue is empty and all
// slots are idle. Batches start in queue order; onComplete fires in
// completion order. A launch failure stops further dispatch, lets in-flight
// workers finish, and is returned to the caller. Worker exit codes are not
// errors here: result files speak for the batches.
func (p *WorkerPool) Run(ctx context.Context, batches []*types.Batch, onComplete CompleteFunc) error {
	if len(batches) == 0 {
		p.log.Debug("No batches to run")
		return nil
	}

	workers := p.determineWorkers(len(batches))
	p.log.Info("Starting worker pool", "batches", len(batches), "workers", workers)

	watch := newWatchdog(p.log, p.watchInterval)
	defer watch.stop()

	exits := make(chan slotExit, workers)
	spans := make(map[*types.Batch]trace.Span, workers)

	next := 0
	inflight := 0
	var launchErr error

	start := func() bool {
		batch := batches[next]
		next++

		_, span := p.tracer.Start(ctx, fmt.Sprintf("batch %s", batch.Name))
		proc, err := p.launcher.Launch(ctx, batch)
		if err != nil {
			span.RecordError(err)
			span.End()
			launchErr = err
			return false
		}
		spans[batch] = span
		inflight++
		watch.started(batch.Name)

		go func() {
			exits <- slotExit{batch: batch, res: proc.Wait()}
		}()
		return true
	}

	for next < len(batches) && inflight < workers {
		if !start() {
			break
		}
	}

	for inflight > 0 {
		exit := <-exits // the only suspension point in the loop
		inflight--
		watch.finished(exit.batch.Name)
		if span, ok := spans[exit.batch]; ok {
			span.End()
			delete(spans, exit.batch)
		}

		onComplete(exit.batch, exit.res)

		if launchErr == nil && ctx.Err() == nil && next < len(batches) {
			start()
		}
	}

	if launchErr != nil {
		p.log.Error("Aborting run, worker could not be started", "err", launchErr)
		return launchErr
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run interrupted: %w", err)
	}
	p.log.Info("Worker pool drained", "batches", len(batches))
	return nil
}

// determineWorkers picks the effective slot count. A user preference is
// honored but never exceeds the queue length; auto mode sizes from the CPU
// count, capped at MaxWorkers.
func (p *WorkerPool) determineWorkers(numBatches int) int {
	workers := p.workers
	if workers <= 0 {
		workers = runtime.NumCPU()
		if workers > MaxWorkers {
			workers = MaxWorkers
		}
		p.log.Debug("Auto-determined worker count", "workers", workers, "numCPU", runtime.NumCPU())
	}
	if workers > numBatches {
		workers = numBatches
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}
