// Package partition turns a suite manifest into the ordered set of batches
// one run executes: it loads the YAML manifest, resolves discovery backends,
// applies group filters, and assigns each batch its result document path.
package partition

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/parabatch/parabatch/runner"
)

// Manifest describes one test suite: the worker command used to execute a
// batch, and the ordered batches the suite splits into.
type Manifest struct {
	Suite    string               `yaml:"suite"`
	Worker   runner.WorkerCommand `yaml:"worker"`
	Batches  []ManifestBatch      `yaml:"batches"`
	Discover *DiscoverConfig      `yaml:"discover,omitempty"`
}

// ManifestBatch is one batch entry as written in the manifest. Tests is the
// author's predicted case count; the run reconciles it against what the
// worker actually reports.
type ManifestBatch struct {
	Name   string   `yaml:"name"`
	Args   []string `yaml:"args"`
	Tests  int      `yaml:"tests"`
	Groups []string `yaml:"groups,omitempty"`
}

// DiscoverConfig selects a discovery backend whose generated batches are
// appended after the manifest's own.
type DiscoverConfig struct {
	Go *GoDiscoverConfig `yaml:"go,omitempty"`
}

// GoDiscoverConfig discovers one batch per Go package under Dir. Dir is
// relative to the manifest file.
type GoDiscoverConfig struct {
	Dir string `yaml:"dir"`
}

// LoadManifest reads, validates, and resolves a manifest file. Discovery
// backends run here so every caller sees the complete batch list.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest file: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest file: %w", err)
	}

	if m.Discover != nil && m.Discover.Go != nil {
		dir := m.Discover.Go.Dir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(filepath.Dir(path), dir)
		}
		discovered, err := DiscoverGo(dir)
		if err != nil {
			return nil, fmt.Errorf("discovering go packages: %w", err)
		}
		m.Batches = append(m.Batches, discovered...)
	}

	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	if m.Worker.Binary == "" {
		return fmt.Errorf("worker binary is required")
	}
	if m.Worker.ResultFlag == "" {
		return fmt.Errorf("worker result_flag is required")
	}
	if len(m.Batches) == 0 {
		return fmt.Errorf("no batches defined or discovered")
	}

	seen := make(map[string]bool, len(m.Batches))
	for i, b := range m.Batches {
		if b.Name == "" {
			return fmt.Errorf("batch %d has no name", i)
		}
		if seen[b.Name] {
			return fmt.Errorf("duplicate batch name %q", b.Name)
		}
		seen[b.Name] = true
		if b.Tests < 0 {
			return fmt.Errorf("batch %q has negative test count %d", b.Name, b.Tests)
		}
	}
	return nil
}

// hasGroup reports whether the batch carries the given group label.
func (b ManifestBatch) hasGroup(group string) bool {
	for _, g := range b.Groups {
		if g == group {
			return true
		}
	}
	return false
}
