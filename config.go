package parabatch

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ethereum/go-ethereum/log"
	"github.com/parabatch/parabatch/flags"
)

// Config holds the application configuration
type Config struct {
	Manifest      string        // Path to the suite manifest file
	Workers       int           // Number of concurrent worker processes (0 = auto-determine)
	Functional    bool          // Run the whole suite regardless of group filters
	Groups        []string      // Only run batches carrying one of these group labels
	ExcludeGroups []string      // Drop batches carrying any of these group labels
	Columns       int           // Terminal width the progress stream wraps at
	Color         bool          // Force ANSI colors in the summary footer
	LogDir        string        // Directory to store run artifacts
	RunInterval   time.Duration // Interval between suite runs
	RunOnce       bool          // Indicates if the service should exit after one suite run
	BatchTimeout  time.Duration // Maximum runtime for one worker process (0 = no deadline)
	Log           log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	// Parse flags
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	manifest := ctx.String(flags.Manifest.Name)
	absManifest, err := filepath.Abs(manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for manifest '%s': %w", manifest, err)
	}

	workers := ctx.Int(flags.Workers.Name)
	if workers < 0 {
		return nil, fmt.Errorf("invalid worker count %d: must be zero or positive", workers)
	}

	columns := ctx.Int(flags.Columns.Name)
	if columns < 0 {
		return nil, fmt.Errorf("invalid column count %d: must be zero or positive", columns)
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)
	runOnce := runInterval == 0

	// Get log directory, default to "logs" if not specified
	logDir := ctx.String(flags.LogDir.Name)
	if logDir == "" {
		logDir = "logs"
	}
	logDir, err = filepath.Abs(logDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for log directory '%s': %w", logDir, err)
	}

	return &Config{
		Manifest:      absManifest,
		Workers:       workers,
		Functional:    ctx.Bool(flags.Functional.Name),
		Groups:        ctx.StringSlice(flags.Group.Name),
		ExcludeGroups: ctx.StringSlice(flags.ExcludeGroup.Name),
		Columns:       columns,
		Color:         ctx.Bool(flags.Color.Name),
		LogDir:        logDir,
		RunInterval:   runInterval,
		RunOnce:       runOnce,
		BatchTimeout:  ctx.Duration(flags.BatchTimeout.Name),
		Log:           log,
	}, nil
}
