// Package resume persists partial-transfer progress so an interrupted upload
// continues where it stopped on the next run. One JSON file per resume key; a
// record exists exactly while a transfer is incomplete and is removed, not
// zeroed, on success.
package resume

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"example.com/convoy/pkg/logger"
)

// DefaultRetention is how long untouched records stay eligible for resumption.
const DefaultRetention = 7 * 24 * time.Hour

// Record is the persisted progress of one transfer.
type Record struct {
	LocalPath        string  `json:"local_path"`
	RemoteHost       string  `json:"remote_host"`
	RemotePath       string  `json:"remote_path"`
	TransferredBytes int64   `json:"transferred_bytes"`
	TotalBytes       int64   `json:"total_bytes"`
	Percentage       float64 `json:"percentage"`
	FileSize         int64   `json:"file_size"` // equals TotalBytes
	LocalMTime       int64   `json:"local_mtime"`
}

// Key derives the deterministic resume key for a transfer. The artifact
// basename is used (not the full path) so a relocated build tree keeps its
// progress.
func Key(localPath, remoteHost, remotePath string) string {
	sum := sha256.Sum256([]byte(filepath.Base(localPath) + ":" + remoteHost + ":" + remotePath))
	return hex.EncodeToString(sum[:])[:16]
}

// Store is the file-backed resume record store. Safe for concurrent use:
// each record is a separate file written with atomic replace, and a mutex
// serializes read-modify-write cycles within the process.
type Store struct {
	root string
	mu   sync.Mutex
}

// NewStore opens (creating if needed) the store rooted at root.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create resume dir: %w", err)
	}
	return &Store{root: root}, nil
}

// Load returns the record for key, if present.
func (s *Store) Load(key string) (Record, bool, error) {
	data, err := os.ReadFile(s.recordPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false, fmt.Errorf("decode resume record %s: %w", key, err)
	}
	return rec, true, nil
}

// Save persists rec under its key, recomputing the derived percentage.
// TransferredBytes is monotonically non-decreasing for a live record: a save
// that would lower it against an otherwise-matching record is ignored.
func (s *Store) Save(rec Record) error {
	if rec.TotalBytes <= 0 {
		return fmt.Errorf("resume record needs total_bytes > 0")
	}
	rec.FileSize = rec.TotalBytes
	rec.Percentage = math.Round(float64(rec.TransferredBytes)/float64(rec.TotalBytes)*100*100) / 100

	key := Key(rec.LocalPath, rec.RemoteHost, rec.RemotePath)

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok, err := s.Load(key); err == nil && ok &&
		prev.LocalMTime == rec.LocalMTime && prev.TotalBytes == rec.TotalBytes &&
		prev.TransferredBytes > rec.TransferredBytes {
		logger.Logger.Debug("resume record already further along, keeping it",
			"key", key, "have", prev.TransferredBytes, "got", rec.TransferredBytes)
		return nil
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.root, key+".*")
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
	return os.Rename(tmp.Name(), s.recordPath(key))
}

// Delete removes the record for key. Missing records are not an error.
func (s *Store) Delete(key string) error {
	err := os.Remove(s.recordPath(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Offset returns the byte offset a transfer of localPath to host:remotePath
// may resume at. A stored record is only usable when its local_mtime and
// total_bytes match the current file; a mismatched record is deleted and the
// transfer restarts at 0.
func (s *Store) Offset(localPath, remoteHost, remotePath string, size, mtime int64) int64 {
	key := Key(localPath, remoteHost, remotePath)
	rec, ok, err := s.Load(key)
	if err != nil {
		logger.Logger.Warn("unreadable resume record, restarting transfer", "key", key, "error", err)
		s.Delete(key)
		return 0
	}
	if !ok {
		return 0
	}
	if rec.TotalBytes != size || rec.LocalMTime != mtime {
		logger.Logger.Warn("local file changed since last transfer, cannot resume",
			"path", localPath, "host", remoteHost)
		s.Delete(key)
		return 0
	}
	return rec.TransferredBytes
}

// Pending lists all incomplete transfers.
func (s *Store) Pending() ([]Record, error) {
	names, err := s.recordFiles()
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(s.root, name))
		if err != nil {
			continue
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			logger.Logger.Warn("skipping unreadable resume record", "file", name)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// PurgeOlderThan removes records not touched for longer than age and returns
// how many were removed.
func (s *Store) PurgeOlderThan(age time.Duration) (int, error) {
	names, err := s.recordFiles()
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-age)
	removed := 0
	for _, name := range names {
		path := filepath.Join(s.root, name)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err == nil {
				removed++
				logger.Logger.Debug("purged stale resume record", "file", name)
			}
		}
	}
	return removed, nil
}

func (s *Store) recordPath(key string) string {
	return filepath.Join(s.root, key+".json")
}

func (s *Store) recordFiles() ([]string, error) {
	dirents, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, d := range dirents {
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			continue
		}
		names = append(names, d.Name())
	}
	return names, nil
}
