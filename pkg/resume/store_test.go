package resume

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyDependsOnBasenameOnly(t *testing.T) {
	a := Key("/build/out/images.tar.gz", "10.0.0.5", "/tmp/images.tar.gz")
	b := Key("/home/ci/images.tar.gz", "10.0.0.5", "/tmp/images.tar.gz")
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)

	c := Key("/build/out/images.tar.gz", "10.0.0.6", "/tmp/images.tar.gz")
	assert.NotEqual(t, a, c)
}

func TestSaveComputesPercentage(t *testing.T) {
	store, err := NewStore(t.TempDir())
	assert.NoError(t, err)

	rec := Record{
		LocalPath:        "/build/images.tar.gz",
		RemoteHost:       "10.0.0.5",
		RemotePath:       "/tmp/images.tar.gz",
		TransferredBytes: 524288000,
		TotalBytes:       1073741824,
		LocalMTime:       1700000000,
	}
	assert.NoError(t, store.Save(rec))

	got, ok, err := store.Load(Key(rec.LocalPath, rec.RemoteHost, rec.RemotePath))
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 48.83, got.Percentage)
	assert.Equal(t, rec.TotalBytes, got.FileSize)
}

func TestSaveRejectsZeroTotal(t *testing.T) {
	store, err := NewStore(t.TempDir())
	assert.NoError(t, err)
	assert.Error(t, store.Save(Record{LocalPath: "a", RemoteHost: "h", RemotePath: "p"}))
}

func TestSaveKeepsFurtherProgress(t *testing.T) {
	store, err := NewStore(t.TempDir())
	assert.NoError(t, err)

	rec := Record{
		LocalPath:        "images.tar.gz",
		RemoteHost:       "10.0.0.5",
		RemotePath:       "/tmp/images.tar.gz",
		TransferredBytes: 100,
		TotalBytes:       1000,
		LocalMTime:       42,
	}
	assert.NoError(t, store.Save(rec))

	rec.TransferredBytes = 50
	assert.NoError(t, store.Save(rec))

	got, ok, err := store.Load(Key(rec.LocalPath, rec.RemoteHost, rec.RemotePath))
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(100), got.TransferredBytes)

	// A changed file invalidates the guard and the lower offset wins.
	rec.LocalMTime = 43
	rec.TransferredBytes = 50
	assert.NoError(t, store.Save(rec))
	got, _, err = store.Load(Key(rec.LocalPath, rec.RemoteHost, rec.RemotePath))
	assert.NoError(t, err)
	assert.Equal(t, int64(50), got.TransferredBytes)
}

func TestOffsetValidatesLocalFile(t *testing.T) {
	store, err := NewStore(t.TempDir())
	assert.NoError(t, err)

	rec := Record{
		LocalPath:        "images.tar.gz",
		RemoteHost:       "10.0.0.5",
		RemotePath:       "/tmp/images.tar.gz",
		TransferredBytes: 300,
		TotalBytes:       1000,
		LocalMTime:       42,
	}
	assert.NoError(t, store.Save(rec))

	assert.Equal(t, int64(300), store.Offset(rec.LocalPath, rec.RemoteHost, rec.RemotePath, 1000, 42))

	// A new mtime means the artifact was rebuilt: restart and drop the record.
	assert.Equal(t, int64(0), store.Offset(rec.LocalPath, rec.RemoteHost, rec.RemotePath, 1000, 99))
	_, ok, err := store.Load(Key(rec.LocalPath, rec.RemoteHost, rec.RemotePath))
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestOffsetUnknownTransfer(t *testing.T) {
	store, err := NewStore(t.TempDir())
	assert.NoError(t, err)
	assert.Equal(t, int64(0), store.Offset("x", "h", "p", 10, 10))
}

func TestDeleteMissingRecord(t *testing.T) {
	store, err := NewStore(t.TempDir())
	assert.NoError(t, err)
	assert.NoError(t, store.Delete("deadbeefdeadbeef"))
}

func TestPendingListsAllRecords(t *testing.T) {
	store, err := NewStore(t.TempDir())
	assert.NoError(t, err)

	for _, host := range []string{"a", "b", "c"} {
		assert.NoError(t, store.Save(Record{
			LocalPath:        "images.tar.gz",
			RemoteHost:       host,
			RemotePath:       "/tmp/images.tar.gz",
			TransferredBytes: 10,
			TotalBytes:       100,
		}))
	}
	records, err := store.Pending()
	assert.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestPurgeOlderThan(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	assert.NoError(t, err)

	assert.NoError(t, store.Save(Record{
		LocalPath:        "old.tar.gz",
		RemoteHost:       "a",
		RemotePath:       "/tmp/x",
		TransferredBytes: 1,
		TotalBytes:       10,
	}))
	assert.NoError(t, store.Save(Record{
		LocalPath:        "new.tar.gz",
		RemoteHost:       "b",
		RemotePath:       "/tmp/x",
		TransferredBytes: 1,
		TotalBytes:       10,
	}))

	// Age the first record past the retention window.
	oldPath := filepath.Join(dir, Key("old.tar.gz", "a", "/tmp/x")+".json")
	stale := time.Now().Add(-8 * 24 * time.Hour)
	assert.NoError(t, os.Chtimes(oldPath, stale, stale))

	removed, err := store.PurgeOlderThan(DefaultRetention)
	assert.NoError(t, err)
	assert.Equal(t, 1, removed)

	records, err := store.Pending()
	assert.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, "b", records[0].RemoteHost)
}
