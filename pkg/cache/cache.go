// Package cache decides whether a previously built local artifact can be
// reused instead of rebuilt. Entries record (sha256, mtime, size) per local
// path; reads trust a cheap (mtime, size) comparison and the hash is only
// recomputed when an entry is recorded after a (re)build. The metadata store
// is a single JSON file replaced atomically on every write, so concurrent
// readers observe either the old or the new state, never a partial write.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"example.com/convoy/pkg/logger"
)

const metadataFile = "metadata.json"

// Entry is one cached artifact.
type Entry struct {
	LocalPath string `json:"local_path"`
	SHA256    string `json:"sha256"`
	MTime     int64  `json:"mtime"` // unix nanoseconds
	SizeBytes int64  `json:"size_bytes"`
}

// Store is the process-wide artifact metadata store. Safe for concurrent use.
type Store struct {
	root string
	path string
	mu   sync.Mutex // serializes writers within the process
}

// NewStore opens (creating if needed) the metadata store rooted at root.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Store{root: root, path: filepath.Join(root, metadataFile)}, nil
}

// ShouldRebuild reports whether the artifact at localPath must be rebuilt.
// True when no entry exists, the file is gone, or its current (mtime, size)
// disagree with the recorded values. The hash is never recomputed here.
func (s *Store) ShouldRebuild(localPath string) bool {
	entries, err := s.load()
	if err != nil {
		logger.Logger.Warn("cache metadata unreadable, forcing rebuild", "error", err)
		return true
	}
	entry, ok := entries[localPath]
	if !ok {
		logger.Logger.Debug("no cache entry", "path", localPath)
		return true
	}
	info, err := os.Stat(localPath)
	if err != nil {
		logger.Logger.Debug("cached artifact missing", "path", localPath)
		return true
	}
	if info.ModTime().UnixNano() != entry.MTime || info.Size() != entry.SizeBytes {
		logger.Logger.Debug("cache entry stale", "path", localPath,
			"mtime_match", info.ModTime().UnixNano() == entry.MTime,
			"size_match", info.Size() == entry.SizeBytes)
		return true
	}
	return false
}

// Record hashes the artifact at localPath and persists a fresh entry for it.
// Called immediately after a (re)build.
func (s *Store) Record(localPath string) (Entry, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return Entry{}, fmt.Errorf("stat artifact: %w", err)
	}
	sum, err := hashFile(localPath)
	if err != nil {
		return Entry{}, err
	}
	entry := Entry{
		LocalPath: localPath,
		SHA256:    sum,
		MTime:     info.ModTime().UnixNano(),
		SizeBytes: info.Size(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.load()
	if err != nil {
		logger.Logger.Warn("cache metadata unreadable, starting fresh", "error", err)
		entries = map[string]Entry{}
	}
	entries[localPath] = entry
	if err := s.save(entries); err != nil {
		return Entry{}, err
	}
	logger.Logger.Info("cache entry recorded", "path", localPath, "sha256", sum[:16])
	return entry, nil
}

// Entries lists all cached artifacts.
func (s *Store) Entries() ([]Entry, error) {
	entries, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	return out, nil
}

// TotalSize sums the recorded artifact sizes.
func (s *Store) TotalSize() (int64, error) {
	entries, err := s.load()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range entries {
		total += e.SizeBytes
	}
	return total, nil
}

// Clear removes the entire metadata store.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

func (s *Store) load() (map[string]Entry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]Entry{}, nil
	}
	if err != nil {
		return nil, err
	}
	entries := map[string]Entry{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode cache metadata: %w", err)
	}
	return entries, nil
}

// save stages to a temp file in the same directory and renames it into place.
func (s *Store) save(entries map[string]Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.root, metadataFile+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hash artifact: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash artifact: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
