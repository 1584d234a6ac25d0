// Package artifact manages the per-run output directory that holds one
// captured-output file per trial.
package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// maxAttempts bounds the suffix search when a directory name is taken.
const maxAttempts = 1000

// Dir is a created run directory.
type Dir struct {
	path string
}

// Create makes a new directory named <prefix>-<unix seconds> under parent.
// If that name already exists a numeric suffix is appended, so two runs
// started in the same second never share a directory.
func Create(parent, prefix string, now time.Time) (*Dir, error) {
	if parent == "" {
		parent = "."
	}
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("creating output parent %s: %w", parent, err)
	}

	base := filepath.Join(parent, fmt.Sprintf("%s-%d", prefix, now.Unix()))
	for i := 0; i < maxAttempts; i++ {
		path := base
		if i > 0 {
			path = fmt.Sprintf("%s-%d", base, i)
		}
		err := os.Mkdir(path, 0o755)
		if err == nil {
			return &Dir{path: path}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("creating output directory: %w", err)
		}
	}
	return nil, fmt.Errorf("creating output directory: no free name for %s", base)
}

// Open wraps an existing directory, e.g. one recorded in a run summary.
func Open(path string) *Dir {
	return &Dir{path: path}
}

// Path returns the directory path.
func (d *Dir) Path() string {
	return d.path
}

// FileName returns the artifact name for the trial at offset within the
// batch starting at batchStart.
func FileName(batchStart, offset int) string {
	return fmt.Sprintf("output-%d-%d.txt", batchStart, offset)
}

// Write stores data under name. Callers write disjoint names, so no
// locking is needed.
func (d *Dir) Write(name string, data []byte) error {
	if err := os.WriteFile(filepath.Join(d.path, name), data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// Read returns the contents of a previously written artifact.
func (d *Dir) Read(name string) ([]byte, error) {
	if name != filepath.Base(name) {
		return nil, fmt.Errorf("invalid artifact name %q", name)
	}
	data, err := os.ReadFile(filepath.Join(d.path, name))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}
