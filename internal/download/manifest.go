package download

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rescale-labs/turbodownload/internal/constants"
)

// Store persists a Plan as a manifest file adjacent to the destination
// file. The manifest path is destFile + constants.ManifestSuffix. The
// format is pretty-printed JSON: self-describing, round-trips exactly,
// and is readable across processes and Go versions.
type Store struct {
	destFile string
}

// NewStore returns a Store for the manifest belonging to destFile.
func NewStore(destFile string) *Store {
	return &Store{destFile: destFile}
}

// Path returns the manifest file path for the store's destination file.
func (s *Store) Path() string {
	return s.destFile + constants.ManifestSuffix
}

// Load returns the plan on disk if it exists, parses, and its resume
// identity matches the probe result; otherwise it returns (nil, nil).
// A missing or corrupt manifest is treated as absence, not an error —
// the download proceeds as a fresh plan (§4.2).
func (s *Store) Load(totalSize int64, acceptRanges bool) (*Plan, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, nil
	}

	var plan Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, nil
	}

	if !plan.MatchesProbe(totalSize, acceptRanges) {
		return nil, nil
	}

	return &plan, nil
}

// Save atomically replaces the manifest with the serialized plan, via a
// write-to-temp-then-rename sequence so a concurrent reader (or a crash
// mid-write) never observes a partially written manifest.
func (s *Store) Save(plan *Plan) error {
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}

	path := s.Path()
	tmpPath := path + ".tmp"

	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write temp manifest: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename manifest: %w", err)
	}

	return nil
}

// Delete removes the manifest if present. Idempotent.
func (s *Store) Delete() error {
	err := os.Remove(s.Path())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete manifest: %w", err)
	}
	return nil
}

// Exists reports whether a manifest file is currently present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.Path())
	return err == nil
}
