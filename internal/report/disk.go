package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DiskStore writes summaries as JSON files to a directory. Without an
// explicit root, a temp directory is created lazily.
type DiskStore struct {
	mu  sync.Mutex
	dir string
}

// NewDiskStore creates a new DiskStore rooted at dir. When dir is empty
// the underlying temp directory is created lazily on the first Save.
func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{dir: dir}
}

// Save writes a Summary as a JSON file to disk.
func (s *DiskStore) Save(summary *Summary) error {
	dir, err := s.ensureDir()
	if err != nil {
		return err
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshalling summary %s: %w", summary.ID, err)
	}
	path := filepath.Join(dir, summary.ID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing summary %s: %w", summary.ID, err)
	}
	return nil
}

// Load reads a Summary from disk.
func (s *DiskStore) Load(runID string) (*Summary, error) {
	dir, err := s.ensureDir()
	if err != nil {
		return nil, err
	}
	if runID == "" || runID != filepath.Base(runID) {
		return nil, fmt.Errorf("invalid run id %q", runID)
	}
	path := filepath.Join(dir, runID+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading summary %s: %w", runID, err)
	}
	var summary Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("unmarshalling summary %s: %w", runID, err)
	}
	return &summary, nil
}

func (s *DiskStore) ensureDir() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir != "" {
		if err := os.MkdirAll(s.dir, 0o755); err != nil {
			return "", fmt.Errorf("creating summary directory: %w", err)
		}
		return s.dir, nil
	}
	dir, err := os.MkdirTemp("", "tally-runs-*")
	if err != nil {
		return "", fmt.Errorf("creating summary directory: %w", err)
	}
	s.dir = dir
	return dir, nil
}
