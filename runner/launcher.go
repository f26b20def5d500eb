package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/parabatch/parabatch/types"
)

// ProcessResult captures how one worker process ended. A non-zero exit code
// is data, not an error: workers exit non-zero whenever their tests fail.
type ProcessResult struct {
	ExitCode int
	Stderr   string
	Duration time.Duration
	// Err is set for wait-level problems other than a non-zero exit, such
	// as a killed process whose state could not be collected.
	Err error
}

// Process is a handle on one live worker. Wait blocks until the process
// exits and may be called from a goroutine other than the launching one.
type Process interface {
	Wait() ProcessResult
}

// Launcher starts one worker process for a batch. The sole contract with a
// launched worker is that on exit the batch's result path either holds a
// complete, parsable document or the batch counts as a fatal failure.
type Launcher interface {
	Launch(ctx context.Context, batch *types.Batch) (Process, error)
}

// WorkerCommand describes how any batch is turned into a worker invocation:
// binary, fixed arguments, then the flag that tells the worker where to
// write its result document, then the batch's own selection arguments.
type WorkerCommand struct {
	Binary     string   `yaml:"binary"`
	BaseArgs   []string `yaml:"args"`
	ResultFlag string   `yaml:"result_flag"`
}

// Argv renders the full argument vector for a batch, excluding the binary.
func (w WorkerCommand) Argv(b *types.Batch) []string {
	argv := make([]string, 0, len(w.BaseArgs)+2+len(b.Args))
	argv = append(argv, w.BaseArgs...)
	argv = append(argv, w.ResultFlag, b.ResultPath)
	argv = append(argv, b.Args...)
	return argv
}

// LauncherConfig configures a CommandLauncher.
type LauncherConfig struct {
	Command WorkerCommand
	// WorkDir is the working directory workers run in. Empty means the
	// current directory.
	WorkDir string
	// BatchTimeout bounds one worker's runtime. Zero means no deadline;
	// a hung worker then blocks its slot, which is the documented default.
	BatchTimeout time.Duration
	Log          log.Logger
}

// CommandLauncher launches workers with os/exec. It records the full
// invocation on the batch and keeps a bounded tail of worker stderr.
type CommandLauncher struct {
	cfg LauncherConfig
	log log.Logger
}

var _ Launcher = (*CommandLauncher)(nil)

// NewCommandLauncher creates a launcher after validating its configuration.
func NewCommandLauncher(cfg LauncherConfig) (*CommandLauncher, error) {
	if cfg.Command.Binary == "" {
		return nil, errors.New("worker binary is required")
	}
	if cfg.Command.ResultFlag == "" {
		return nil, errors.New("worker result flag is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	return &CommandLauncher{cfg: cfg, log: cfg.Log}, nil
}

// Launch starts the worker process for batch without waiting for it.
func (l *CommandLauncher) Launch(ctx context.Context, batch *types.Batch) (Process, error) {
	cctx := ctx
	cancel := context.CancelFunc(func() {})
	if l.cfg.BatchTimeout > 0 {
		cctx, cancel = context.WithTimeout(ctx, l.cfg.BatchTimeout)
	}

	argv := l.cfg.Command.Argv(batch)
	cmd := exec.CommandContext(cctx, l.cfg.Command.Binary, argv...)
	cmd.Dir = l.cfg.WorkDir
	stderr := newTailBuffer(stderrTailBytes)
	cmd.Stderr = stderr
	cmd.Stdout = io.Discard

	batch.LastCommand = strings.Join(append([]string{l.cfg.Command.Binary}, argv...), " ")
	l.log.Debug("Launching worker", "batch", batch.Name, "command", batch.LastCommand)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("starting worker for batch %q: %w", batch.Name, err)
	}

	return &execProcess{
		cmd:    cmd,
		stderr: stderr,
		start:  start,
		cancel: cancel,
		batch:  batch,
	}, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stderr *tailBuffer
	start  time.Time
	cancel context.CancelFunc
	batch  *types.Batch
}

// Wait collects the process exit. Stderr from a worker that exited cleanly
// is surfaced as a batch warning rather than swallowed.
func (p *execProcess) Wait() ProcessResult {
	err := p.cmd.Wait()
	p.cancel()

	res := ProcessResult{
		Duration: time.Since(p.start),
		Stderr:   p.stderr.String(),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		if res.Stderr != "" {
			p.batch.AddWarning(fmt.Sprintf("batch %s: worker wrote to stderr: %s", p.batch.Name, res.Stderr))
		}
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		res.Err = err
	}
	return res
}
