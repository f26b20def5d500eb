package main

import (
	"flag"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/parabatch/parabatch/flags"
)

func TestParseLogLevel(t *testing.T) {
	testCases := []struct {
		input    string
		expected slog.Level
	}{
		{"trace", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"crit", slog.LevelError},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			lvl, err := parseLogLevel(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, lvl)
		})
	}

	_, err := parseLogLevel("loud")
	assert.ErrorContains(t, err, "unknown log level")
}

// newLoggingContext builds a cli context carrying only the log.* flags.
func newLoggingContext(t *testing.T, pairs ...string) *cli.Context {
	t.Helper()

	set := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range []cli.Flag{flags.LogLevel, flags.LogFormat, flags.LogColor} {
		require.NoError(t, f.Apply(set))
	}
	for i := 0; i < len(pairs); i += 2 {
		require.NoError(t, set.Set(pairs[i], pairs[i+1]))
	}
	return cli.NewContext(&cli.App{}, set, nil)
}

func TestNewLoggerFormats(t *testing.T) {
	logger, err := newLogger(newLoggingContext(t))
	require.NoError(t, err, "flag defaults must yield a working logger")
	assert.NotNil(t, logger)

	logger, err = newLogger(newLoggingContext(t, "log.format", "json", "log.level", "debug"))
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = newLogger(newLoggingContext(t, "log.format", "xml"))
	assert.ErrorContains(t, err, "unknown log format")

	_, err = newLogger(newLoggingContext(t, "log.level", "loud"))
	assert.ErrorContains(t, err, "unknown log level")
}
