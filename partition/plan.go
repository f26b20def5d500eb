package partition

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/parabatch/parabatch/runner"
	"github.com/parabatch/parabatch/types"
)

// Options select and shape the batches for one run.
type Options struct {
	// Functional runs the whole suite regardless of group filters.
	Functional bool
	// Groups keeps only batches carrying at least one of these labels.
	Groups []string
	// ExcludeGroups drops batches carrying any of these labels.
	ExcludeGroups []string
	// ResultDir is where per-batch result documents land. Empty means a
	// fresh temp directory.
	ResultDir string
}

// Plan is the executable shape of a manifest for one run: the filtered
// batches in manifest order, each with its result path assigned.
type Plan struct {
	Suite   string
	Worker  runner.WorkerCommand
	Batches []*types.Batch
	// TotalExpected is the sum of the predicted test counts of the kept
	// batches. It seeds the result store and fixes the progress counter
	// width.
	TotalExpected int
	// TrackSkipped is true when the run covers the whole suite, so a
	// shortfall against a batch's prediction means skipped work rather
	// than filtered work.
	TrackSkipped bool
}

// NewPlan filters and materializes a manifest for one run. Manifest order is
// preserved.
func NewPlan(m *Manifest, opts Options) (*Plan, error) {
	selected := selectBatches(m.Batches, opts)
	if len(selected) == 0 {
		return nil, fmt.Errorf("no batches match the group filters")
	}

	dir := opts.ResultDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "parabatch-results-")
		if err != nil {
			return nil, fmt.Errorf("creating result directory: %w", err)
		}
		dir = tmp
	} else if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating result directory: %w", err)
	}

	plan := &Plan{
		Suite:        m.Suite,
		Worker:       m.Worker,
		TrackSkipped: opts.Functional || (len(opts.Groups) == 0 && len(opts.ExcludeGroups) == 0),
	}
	for i, mb := range selected {
		plan.Batches = append(plan.Batches, &types.Batch{
			Name:          mb.Name,
			Args:          append([]string(nil), mb.Args...),
			ExpectedCount: mb.Tests,
			ResultPath:    filepath.Join(dir, fmt.Sprintf("%03d-%s.xml", i+1, safeFilename(mb.Name))),
		})
		plan.TotalExpected += mb.Tests
	}
	return plan, nil
}

// selectBatches applies the group filters. Functional mode keeps everything:
// it exists precisely to run the whole suite.
func selectBatches(batches []ManifestBatch, opts Options) []ManifestBatch {
	if opts.Functional {
		return batches
	}

	var kept []ManifestBatch
	for _, b := range batches {
		if len(opts.Groups) > 0 && !matchesAny(b, opts.Groups) {
			continue
		}
		if matchesAny(b, opts.ExcludeGroups) {
			continue
		}
		kept = append(kept, b)
	}
	return kept
}

func matchesAny(b ManifestBatch, groups []string) bool {
	for _, g := range groups {
		if b.hasGroup(g) {
			return true
		}
	}
	return false
}

// safeFilename converts a batch name to a safe filename by replacing
// problematic characters.
func safeFilename(s string) string {
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
