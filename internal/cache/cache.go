// Package cache persists raw and extracted page artifacts keyed by a
// stable digest of the source URL, scoped under a run directory.
package cache

import (
	"fmt"
	"os"
	"path/filepath"

	"tradewatch/internal/textkit"
)

// Store owns the on-disk layout {dataDir}/{runID}/raw/{key}.html and
// {dataDir}/{runID}/text/{key}.txt. Directories are created lazily.
type Store struct {
	dataDir string
}

// New returns a Store rooted at dataDir.
func New(dataDir string) *Store {
	return &Store{dataDir: dataDir}
}

// Key returns the stable 16-hex digest used as the artifact filename
// stem. Addressing is by URL, not by content: the same URL within a run
// always maps to the same key.
func (s *Store) Key(url string) string {
	return textkit.StableHash(url)
}

// RawPath returns the raw artifact path for (runID, url).
func (s *Store) RawPath(runID, url string) string {
	return filepath.Join(s.dataDir, runID, "raw", s.Key(url)+".html")
}

// TextPath returns the extracted-text artifact path for (runID, url).
func (s *Store) TextPath(runID, url string) string {
	return filepath.Join(s.dataDir, runID, "text", s.Key(url)+".txt")
}

// RunDir returns the root directory for a run's artifacts.
func (s *Store) RunDir(runID string) string {
	return filepath.Join(s.dataDir, runID)
}

// OutputPath returns the final output artifact path for a run.
func (s *Store) OutputPath(runID string) string {
	return filepath.Join(s.dataDir, runID, "output.json")
}

// WriteOutput persists the final serialized run output.
func (s *Store) WriteOutput(runID string, data []byte) error {
	return writeFile(s.OutputPath(runID), data)
}

// WriteRaw persists raw page markup.
func (s *Store) WriteRaw(runID, url string, data []byte) error {
	return writeFile(s.RawPath(runID, url), data)
}

// WriteText persists extracted page text.
func (s *Store) WriteText(runID, url, text string) error {
	return writeFile(s.TextPath(runID, url), []byte(text))
}

// ReadRaw loads the raw artifact. The boolean reports whether it exists.
func (s *Store) ReadRaw(runID, url string) (string, bool, error) {
	return readFile(s.RawPath(runID, url))
}

// ReadText loads the extracted-text artifact.
func (s *Store) ReadText(runID, url string) (string, bool, error) {
	return readFile(s.TextPath(runID, url))
}

// HasPair reports whether both the raw and text artifacts exist. Dry-run
// replay serves a page only when the pair is complete.
func (s *Store) HasPair(runID, url string) bool {
	if _, err := os.Stat(s.RawPath(runID, url)); err != nil {
		return false
	}
	if _, err := os.Stat(s.TextPath(runID, url)); err != nil {
		return false
	}
	return true
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create artifact dir for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write artifact %s: %w", path, err)
	}
	return nil
}

func readFile(path string) (string, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read artifact %s: %w", path, err)
	}
	return string(data), true, nil
}
