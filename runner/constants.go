package runner

// Scheduling and rendering constants
const (
	// DefaultWidth is the terminal width progress output wraps at.
	DefaultWidth = 80

	// MaxWorkers caps auto-determined worker counts to avoid resource
	// exhaustion on large suites.
	MaxWorkers = 32

	// stderrTailBytes bounds how much worker stderr is kept in memory per
	// batch. Only the most recent bytes are attached to failure entries.
	stderrTailBytes = 64 * 1024
)
