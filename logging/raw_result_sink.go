package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/parabatch/parabatch/junitxml"
	"github.com/parabatch/parabatch/types"
)

// RawResultSink archives each batch's result document exactly as the worker
// wrote it. The reporter deletes result files once consumed, so this archive
// is the only place the raw XML survives a run.
type RawResultSink struct {
	logger *FileLogger

	mu       sync.Mutex
	archived map[string]string // Map of [batch name] -> archived file path
}

// Consume copies the batch's result document into the run's results
// directory. It must run before the reporter deletes the file.
func (s *RawResultSink) Consume(batch *types.Batch, doc *junitxml.Document) error {
	if batch.ResultPath == "" {
		return nil
	}

	src, err := os.Open(batch.ResultPath)
	if err != nil {
		return fmt.Errorf("failed to open result document %s: %w", batch.ResultPath, err)
	}
	defer func() {
		_ = src.Close()
	}()

	destPath := filepath.Join(s.logger.GetResultsDir(), safeFilename(batch.Name)+".xml")
	dest, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create archive file %s: %w", destPath, err)
	}

	if _, err := io.Copy(dest, src); err != nil {
		_ = dest.Close()
		return fmt.Errorf("failed to archive result document: %w", err)
	}
	if err := dest.Close(); err != nil {
		return fmt.Errorf("failed to close archive file: %w", err)
	}

	s.storePath(batch.Name, destPath)
	return nil
}

// Complete ensures the results directory exists even for runs where no
// batch produced a document.
func (s *RawResultSink) Complete(runID string) error {
	resultsDir, err := s.logger.GetResultsDirForRunID(runID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(resultsDir, 0755); err != nil {
		return fmt.Errorf("failed to create results directory: %w", err)
	}
	return nil
}

// ArchivedPath returns where a batch's raw document was archived.
func (s *RawResultSink) ArchivedPath(batchName string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.archived == nil {
		return "", false
	}
	path, ok := s.archived[batchName]
	return path, ok
}

func (s *RawResultSink) storePath(batchName, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.archived == nil {
		s.archived = make(map[string]string)
	}
	s.archived[batchName] = path
}
