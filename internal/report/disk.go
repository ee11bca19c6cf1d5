package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DiskStore writes batches as JSON files to a directory. With no
// directory configured, a temp directory is created lazily on first use.
type DiskStore struct {
	mu  sync.Mutex
	dir string
}

// NewDiskStore creates a DiskStore rooted at dir. An empty dir selects a
// fresh temp directory on the first Save or Load.
func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{dir: dir}
}

// Dir returns the directory the store writes to, creating it if needed.
func (s *DiskStore) Dir() (string, error) {
	return s.ensureDir()
}

// Save writes a batch as a JSON file to disk.
func (s *DiskStore) Save(batch *Batch) error {
	dir, err := s.ensureDir()
	if err != nil {
		return err
	}
	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshalling batch %s: %w", batch.ID, err)
	}
	path := filepath.Join(dir, batch.ID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing batch %s: %w", batch.ID, err)
	}
	return nil
}

// Load reads a batch from disk.
func (s *DiskStore) Load(batchID string) (*Batch, error) {
	if batchID == "" || filepath.Base(batchID) != batchID {
		return nil, fmt.Errorf("invalid batch id %q", batchID)
	}
	dir, err := s.ensureDir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, batchID+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading batch %s: %w", batchID, err)
	}
	var batch Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("unmarshalling batch %s: %w", batchID, err)
	}
	return &batch, nil
}

func (s *DiskStore) ensureDir() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir != "" {
		if err := os.MkdirAll(s.dir, 0o755); err != nil {
			return "", fmt.Errorf("creating batch directory: %w", err)
		}
		return s.dir, nil
	}
	dir, err := os.MkdirTemp("", "repeat-batches-*")
	if err != nil {
		return "", fmt.Errorf("creating batch directory: %w", err)
	}
	s.dir = dir
	return dir, nil
}
