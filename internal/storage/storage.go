// Package storage persists snapshot documents as JSON files. The raw
// snapshot is the hand-off artifact between extraction and enrichment;
// the enriched snapshot is the pipeline's final output.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/marketintel/stealth-scraper/internal/models"
)

type SnapshotStore struct {
	mu sync.Mutex
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

// Write persists a snapshot atomically: marshal to a temp file in the
// target directory, then rename over the destination.
func (s *SnapshotStore) Write(path string, snapshot *models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	if err := os.Rename(tmpFile, path); err != nil {
		return fmt.Errorf("failed to finalize snapshot: %w", err)
	}

	return nil
}

// Read loads a previously written snapshot.
func (s *SnapshotStore) Read(path string) (*models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snapshot models.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	return &snapshot, nil
}
