// Package logging persists one run's artifacts: the raw result documents
// workers produced, a mirror of the glyph progress stream, and the rendered
// summary, all under a per-run directory.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/parabatch/parabatch/junitxml"
	"github.com/parabatch/parabatch/types"
)

const (
	RunDirectoryPrefix = "run-" // Standardized prefix for run directories

	summaryFilename  = "summary.log"
	progressFilename = "progress.log"
	resultsDirname   = "results"
)

// Sink is one way of consuming batch results. Consume runs while the
// worker's result document is still on disk; Complete fires once the whole
// run has been aggregated.
type Sink interface {
	// Consume processes a single batch result
	Consume(batch *types.Batch, doc *junitxml.Document) error
	// Complete is called when all results have been consumed
	Complete(runID string) error
}

// FileLogger handles writing run artifacts to files. It fans each batch
// result out to its sinks and is itself a sink, so the reporter can be wired
// straight to it.
type FileLogger struct {
	baseDir      string                // Base directory for all runs
	logDir       string                // Directory of the current run
	resultsDir   string                // Directory for archived result documents
	summaryFile  string                // Path to the summary file
	progressFile string                // Path to the progress stream mirror
	mu           sync.Mutex            // Protects concurrent file operations
	sinks        []Sink                // Collection of result consumers
	asyncWriters map[string]*AsyncFile // Map of async file writers
	runID        string                // Current run ID
}

// AsyncFile provides non-blocking file writing capabilities
type AsyncFile struct {
	file    *os.File
	queue   chan []byte
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

// NewAsyncFile creates a new AsyncFile for non-blocking writes
func NewAsyncFile(filepath string) (*AsyncFile, error) {
	file, err := os.Create(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", filepath, err)
	}

	af := &AsyncFile{
		file:  file,
		queue: make(chan []byte, 100), // Buffer channel to reduce blocking
	}

	// Start the background writer
	af.wg.Add(1)
	go af.processQueue()

	return af, nil
}

// Write queues data to be written asynchronously
func (af *AsyncFile) Write(data []byte) error {
	af.mu.Lock()
	defer af.mu.Unlock()

	if af.stopped {
		return fmt.Errorf("async file is closed")
	}

	// Make a copy of the data to avoid race conditions
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	// Send data to the queue
	af.queue <- dataCopy
	return nil
}

// processQueue processes the write queue in the background
func (af *AsyncFile) processQueue() {
	defer af.wg.Done()

	for data := range af.queue {
		_, err := af.file.Write(data)
		if err != nil {
			// Log the error but continue processing
			fmt.Fprintf(os.Stderr, "Error writing to file: %v\n", err)
		}
	}
}

// Close stops the async writer and closes the file
func (af *AsyncFile) Close() error {
	af.mu.Lock()
	if !af.stopped {
		af.stopped = true
		close(af.queue)
	}
	af.mu.Unlock()

	// Wait for all writes to complete
	af.wg.Wait()
	return af.file.Close()
}

// asyncFileWriterAdapter adapts an AsyncFile to io.Writer.
type asyncFileWriterAdapter struct {
	writer *AsyncFile
}

func (a asyncFileWriterAdapter) Write(p []byte) (int, error) {
	if err := a.writer.Write(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// NewFileLogger creates a new FileLogger rooted at baseDir for one run
func NewFileLogger(baseDir string, runID string) (*FileLogger, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}

	if baseDir == "" {
		return nil, fmt.Errorf("baseDir cannot be empty")
	}

	// Use the standardized prefix for the run directory
	logDir := filepath.Join(baseDir, RunDirectoryPrefix+runID)
	resultsDir := filepath.Join(logDir, resultsDirname)
	summaryFile := filepath.Join(logDir, summaryFilename)
	progressFile := filepath.Join(logDir, progressFilename)

	// Create directories if they don't exist
	dirs := []string{
		baseDir,
		logDir,
		resultsDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	logger := &FileLogger{
		baseDir:      baseDir,
		logDir:       logDir,
		resultsDir:   resultsDir,
		summaryFile:  summaryFile,
		progressFile: progressFile,
		sinks:        make([]Sink, 0),
		asyncWriters: make(map[string]*AsyncFile),
		runID:        runID,
	}

	// Initialize the built-in sinks
	rawSink := &RawResultSink{logger: logger}
	summarySink := &SummarySink{logger: logger}
	logger.sinks = append(logger.sinks, rawSink, summarySink)

	return logger, nil
}

// getAsyncWriter gets or creates an AsyncFile for the given path
func (l *FileLogger) getAsyncWriter(path string) (*AsyncFile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Check if we already have a writer for this path
	if writer, exists := l.asyncWriters[path]; exists {
		return writer, nil
	}

	// Create a new writer
	writer, err := NewAsyncFile(path)
	if err != nil {
		return nil, err
	}

	// Store it for future use
	l.asyncWriters[path] = writer
	return writer, nil
}

// closeAllWriters closes all async writers
func (l *FileLogger) closeAllWriters() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, writer := range l.asyncWriters {
		_ = writer.Close() // Ignore errors on close
	}
	l.asyncWriters = make(map[string]*AsyncFile)
}

// GetDirectoryForRunID returns the path for a specific runID
// The runID must be provided, otherwise an error is returned
func (l *FileLogger) GetDirectoryForRunID(runID string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("runID cannot be empty")
	}
	// If the runID matches the logger's current runID, return logDir
	if runID == l.runID {
		return l.logDir, nil
	}
	// Always use the standardized prefix for run directories
	return filepath.Join(l.baseDir, RunDirectoryPrefix+runID), nil
}

// Consume feeds one batch result to all registered sinks. The reporter
// invokes it before the result document is deleted.
func (l *FileLogger) Consume(batch *types.Batch, doc *junitxml.Document) error {
	for _, sink := range l.sinks {
		if err := sink.Consume(batch, doc); err != nil {
			return fmt.Errorf("error in sink: %w", err)
		}
	}
	return nil
}

// LogSummary writes the rendered summary of the run to a file
// The runID must be provided, otherwise an error is returned
func (l *FileLogger) LogSummary(summary string, runID string) error {
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}

	// Get the summary file path for this runID
	summaryFile, err := l.GetSummaryFileForRunID(runID)
	if err != nil {
		return err
	}

	// Get or create the async writer
	writer, err := l.getAsyncWriter(summaryFile)
	if err != nil {
		return err
	}

	// Write the summary
	return writer.Write([]byte(summary))
}

// ProgressWriter returns a writer mirroring the glyph progress stream into
// the run directory. The reporter tees its output through it.
func (l *FileLogger) ProgressWriter() (io.Writer, error) {
	writer, err := l.getAsyncWriter(l.progressFile)
	if err != nil {
		return nil, err
	}
	return asyncFileWriterAdapter{writer: writer}, nil
}

// Complete finalizes all sinks and closes all file writers
func (l *FileLogger) Complete(runID string) error {
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}

	for _, sink := range l.sinks {
		if err := sink.Complete(runID); err != nil {
			return fmt.Errorf("error completing sink: %w", err)
		}
	}

	// Close all writers after completion
	l.closeAllWriters()

	return nil
}

// GetBaseDir returns the directory of this run
func (l *FileLogger) GetBaseDir() string {
	return l.logDir
}

// GetResultsDir returns the directory holding archived result documents
func (l *FileLogger) GetResultsDir() string {
	return l.resultsDir
}

// GetSummaryFile returns the path to the summary file
func (l *FileLogger) GetSummaryFile() string {
	return l.summaryFile
}

// GetProgressFile returns the path to the progress stream mirror
func (l *FileLogger) GetProgressFile() string {
	return l.progressFile
}

// GetSummaryFileForRunID returns the summary file for a specific runID
// The runID must be provided, otherwise an error is returned
func (l *FileLogger) GetSummaryFileForRunID(runID string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("runID cannot be empty")
	}
	baseDir, err := l.GetDirectoryForRunID(runID)
	if err != nil {
		return "", err
	}
	return filepath.Join(baseDir, summaryFilename), nil
}

// GetResultsDirForRunID returns the archived results directory for a runID
func (l *FileLogger) GetResultsDirForRunID(runID string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("runID cannot be empty")
	}
	baseDir, err := l.GetDirectoryForRunID(runID)
	if err != nil {
		return "", err
	}
	return filepath.Join(baseDir, resultsDirname), nil
}

// safeFilename converts a string to a safe filename by replacing problematic characters
func safeFilename(s string) string {
	// Replace characters that might be problematic in filenames
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, ":", "_")
	s = strings.ReplaceAll(s, "*", "_")
	s = strings.ReplaceAll(s, "?", "_")
	s = strings.ReplaceAll(s, "\"", "_")
	s = strings.ReplaceAll(s, "<", "_")
	s = strings.ReplaceAll(s, ">", "_")
	s = strings.ReplaceAll(s, "|", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
