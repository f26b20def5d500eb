package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

const EnvVarPrefix = "PARABATCH"

func prefixEnvVar(suffix string) []string {
	return []string{EnvVarPrefix + "_" + suffix}
}

var (
	Manifest = &cli.StringFlag{
		Name:     "manifest",
		Value:    "",
		Required: true,
		EnvVars:  prefixEnvVar("MANIFEST"),
		Usage:    "Path to the suite manifest file (eg. 'parabatch.yaml')",
	}
	Workers = &cli.IntFlag{
		Name:    "workers",
		Value:   0,
		EnvVars: prefixEnvVar("WORKERS"),
		Usage:   "Number of concurrent worker processes. Set to 0 to size from the host CPU count.",
	}
	Functional = &cli.BoolFlag{
		Name:    "functional",
		Value:   false,
		EnvVars: prefixEnvVar("FUNCTIONAL"),
		Usage:   "Run every batch in the manifest regardless of group filters",
	}
	Group = &cli.StringSliceFlag{
		Name:    "group",
		EnvVars: prefixEnvVar("GROUP"),
		Usage:   "Only run batches labeled with this group. May be repeated.",
	}
	ExcludeGroup = &cli.StringSliceFlag{
		Name:    "exclude-group",
		EnvVars: prefixEnvVar("EXCLUDE_GROUP"),
		Usage:   "Skip batches labeled with this group. May be repeated.",
	}
	Columns = &cli.IntFlag{
		Name:    "columns",
		Value:   0,
		EnvVars: prefixEnvVar("COLUMNS"),
		Usage:   "Terminal width the progress stream wraps at. Set to 0 for the default width.",
	}
	Color = &cli.BoolFlag{
		Name:    "color",
		Value:   false,
		EnvVars: prefixEnvVar("COLOR"),
		Usage:   "Force ANSI colors in the run summary",
	}
	LogDir = &cli.StringFlag{
		Name:    "log-dir",
		Value:   "",
		EnvVars: prefixEnvVar("LOG_DIR"),
		Usage:   "Directory to store run artifacts in (defaults to 'logs')",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: prefixEnvVar("RUN_INTERVAL"),
		Usage:   "Interval between suite runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	BatchTimeout = &cli.DurationFlag{
		Name:    "batch-timeout",
		Value:   0,
		EnvVars: prefixEnvVar("BATCH_TIMEOUT"),
		Usage:   "Maximum runtime for a single worker process. Set to 0 or omit for no deadline.",
	}
	LogLevel = &cli.StringFlag{
		Name:    "log.level",
		Value:   "info",
		EnvVars: prefixEnvVar("LOG_LEVEL"),
		Usage:   "The lowest log level that will be output",
	}
	LogFormat = &cli.StringFlag{
		Name:    "log.format",
		Value:   "terminal",
		EnvVars: prefixEnvVar("LOG_FORMAT"),
		Usage:   "Format the log output. Supported formats: 'terminal', 'json'",
	}
	LogColor = &cli.BoolFlag{
		Name:    "log.color",
		Value:   false,
		EnvVars: prefixEnvVar("LOG_COLOR"),
		Usage:   "Color the log output if in terminal mode",
	}
)

var requiredFlags = []cli.Flag{
	Manifest,
}

var optionalFlags = []cli.Flag{
	Workers,
	Functional,
	Group,
	ExcludeGroup,
	Columns,
	Color,
	LogDir,
	RunInterval,
	BatchTimeout,
	LogLevel,
	LogFormat,
	LogColor,
}

var Flags []cli.Flag

func init() {
	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
