package transport

import (
	"bytes"
	"context"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"example.com/convoy/pkg/resume"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLocalArtifact(t *testing.T, size int) (string, []byte) {
	t.Helper()
	content := make([]byte, size)
	_, err := rand.Read(content)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "images.tar.gz")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path, content
}

func TestTransferFileFresh(t *testing.T) {
	ts := startServer(t, "sesame")
	sess := openSession(t, ts)
	store, err := resume.NewStore(t.TempDir())
	require.NoError(t, err)

	local, content := writeLocalArtifact(t, 64*1024)
	remote := filepath.Join(t.TempDir(), "nested", "dir", "images.tar.gz")

	sent, err := sess.TransferFile(context.Background(), Transfer{
		LocalPath:  local,
		RemotePath: remote,
		RemoteHost: sess.Host(),
		Store:      store,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), sent)

	got, err := os.ReadFile(remote)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(content, got), "remote content differs from local")

	// Completion removes the record entirely.
	_, ok, err := store.Load(resume.Key(local, sess.Host(), remote))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTransferFileResumesAtOffset(t *testing.T) {
	ts := startServer(t, "sesame")
	sess := openSession(t, ts)
	store, err := resume.NewStore(t.TempDir())
	require.NoError(t, err)

	local, content := writeLocalArtifact(t, 96*1024)
	info, err := os.Stat(local)
	require.NoError(t, err)

	// An earlier run left the first 32 KiB on the remote side plus a record.
	const offset = 32 * 1024
	remote := filepath.Join(t.TempDir(), "images.tar.gz")
	require.NoError(t, os.WriteFile(remote, content[:offset], 0o644))
	require.NoError(t, store.Save(resume.Record{
		LocalPath:        local,
		RemoteHost:       sess.Host(),
		RemotePath:       remote,
		TransferredBytes: offset,
		TotalBytes:       info.Size(),
		LocalMTime:       info.ModTime().UnixNano(),
	}))

	sent, err := sess.TransferFile(context.Background(), Transfer{
		LocalPath:  local,
		RemotePath: remote,
		RemoteHost: sess.Host(),
		Store:      store,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)-offset), sent)

	got, err := os.ReadFile(remote)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(content, got), "resumed upload corrupted the remote file")

	_, ok, err := store.Load(resume.Key(local, sess.Host(), remote))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTransferFileRestartsWhenRemoteMissing(t *testing.T) {
	ts := startServer(t, "sesame")
	sess := openSession(t, ts)
	store, err := resume.NewStore(t.TempDir())
	require.NoError(t, err)

	local, content := writeLocalArtifact(t, 48*1024)
	info, err := os.Stat(local)
	require.NoError(t, err)

	// The record claims progress but the remote file is gone, so the
	// offset falls back to what actually landed: nothing.
	remote := filepath.Join(t.TempDir(), "images.tar.gz")
	require.NoError(t, store.Save(resume.Record{
		LocalPath:        local,
		RemoteHost:       sess.Host(),
		RemotePath:       remote,
		TransferredBytes: 4096,
		TotalBytes:       info.Size(),
		LocalMTime:       info.ModTime().UnixNano(),
	}))

	sent, err := sess.TransferFile(context.Background(), Transfer{
		LocalPath:  local,
		RemotePath: remote,
		RemoteHost: sess.Host(),
		Store:      store,
	})
	require.NoError(t, err)
	assert.Equal(t, info.Size(), sent)

	got, err := os.ReadFile(remote)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(content, got))
}

func TestTransferFileWithoutStore(t *testing.T) {
	ts := startServer(t, "sesame")
	sess := openSession(t, ts)

	local, content := writeLocalArtifact(t, 16*1024)
	remote := filepath.Join(t.TempDir(), "images.tar.gz")

	sent, err := sess.TransferFile(context.Background(), Transfer{
		LocalPath:  local,
		RemotePath: remote,
		RemoteHost: sess.Host(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), sent)
}
