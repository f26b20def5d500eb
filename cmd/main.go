package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	parabatch "github.com/parabatch/parabatch"
	"github.com/parabatch/parabatch/exitcodes"
	"github.com/parabatch/parabatch/flags"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Default logger so failures before the configured handler is installed
	// still produce output.
	log.SetDefault(log.NewLogger(slog.NewJSONHandler(
		os.Stderr,
		&slog.HandlerOptions{Level: slog.LevelInfo},
	)))

	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "parabatch"
	app.Usage = "Parallel batch runner for PHPUnit-style test suites"
	app.Description = "parabatch partitions a test suite into batches and runs them across a pool of worker processes"
	app.Flags = flags.Flags
	app.Action = run
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			// Use the exit code from the ExitCoder
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			// Check for typed runtime errors
			if parabatch.IsRuntimeError(err) {
				// For runtime errors, use exit code 2
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.RuntimeErr))
			} else if parabatch.IsTestFailureError(err) {
				// For test failures, use exit code 1
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.TestFailure))
			} else {
				// For other unspecified errors, default to exit code 1
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.TestFailure))
			}
		}
	}

	// Start telemetry
	otelShutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer otelShutdown()

	if err := app.Run(os.Args); err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func run(cliCtx *cli.Context) error {
	logger, err := newLogger(cliCtx)
	if err != nil {
		return parabatch.NewRuntimeError(fmt.Errorf("failed to configure logging: %w", err))
	}
	log.SetDefault(logger)

	cfg, err := parabatch.NewConfig(cliCtx, logger)
	if err != nil {
		// Wrap in RuntimeError to signal this should exit with code 2
		return parabatch.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}

	logger.Debug("Config loaded",
		"manifest", cfg.Manifest,
		"workers", cfg.Workers,
		"runOnce", cfg.RunOnce,
		"logDir", cfg.LogDir,
	)

	shutdownCh := make(chan error, 1)
	svc, err := parabatch.New(cliCtx.Context, cfg, Version, func(cause error) {
		shutdownCh <- cause
	})
	if err != nil {
		// Wrap in RuntimeError to signal this should exit with code 2
		return parabatch.NewRuntimeError(fmt.Errorf("failed to create service: %w", err))
	}

	if err := svc.Start(cliCtx.Context); err != nil {
		if stopErr := svc.Stop(context.Background()); stopErr != nil {
			logger.Error("Failed to stop service after start error", "err", stopErr)
		}
		return err
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case cause := <-shutdownCh:
		logger.Info("Service requested shutdown")
		shutdownService(logger, svc)
		return cause
	case recvSig := <-sig:
		logger.Info("Caught signal, shutting down", "signal", recvSig.String())
		shutdownService(logger, svc)
		return nil
	}
}

// shutdownService stops the service and waits for its goroutines, bounded by
// shutdownTimeout so a stuck worker cannot hold the process open.
func shutdownService(logger log.Logger, svc *parabatch.Service) {
	if err := svc.Stop(context.Background()); err != nil {
		logger.Error("Failed to stop service cleanly", "err", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := svc.WaitForShutdown(ctx); err != nil {
		logger.Warn("Shutdown did not complete in time", "err", err)
	}
}

// newLogger builds the root logger from the log.* flags.
func newLogger(cliCtx *cli.Context) (log.Logger, error) {
	logLevel, err := parseLogLevel(cliCtx.String(flags.LogLevel.Name))
	if err != nil {
		return nil, err
	}

	var handler slog.Handler
	switch format := cliCtx.String(flags.LogFormat.Name); format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	case "terminal":
		handler = log.NewTerminalHandlerWithLevel(os.Stderr, logLevel, cliCtx.Bool(flags.LogColor.Name))
	default:
		return nil, fmt.Errorf("unknown log format: %s", format)
	}
	return log.NewLogger(handler), nil
}

func parseLogLevel(lvlString string) (slog.Level, error) {
	switch strings.ToLower(lvlString) {
	case "trace", "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error", "crit":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level: %v", lvlString)
	}
}
