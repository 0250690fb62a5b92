package transport

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"example.com/convoy/global"
	"example.com/convoy/pkg/logger"
	"example.com/convoy/pkg/resume"
	"github.com/pkg/sftp"
	"github.com/schollz/progressbar/v3"
)

const (
	// transferChunkSize matches the sftp packet size sweet spot.
	transferChunkSize = 32 * 1024
	// persistEvery bounds how much progress can be lost on a crash.
	persistEvery = 8 * 1024 * 1024
)

// Transfer describes one upload over an open session.
type Transfer struct {
	LocalPath  string
	RemotePath string
	// RemoteHost keys the resume record; it is the target host as configured,
	// not the possibly-rewritten dial address, so the key stays stable.
	RemoteHost string
	// Store, when set, persists progress for resumption. Nil disables resume.
	Store        *resume.Store
	ShowProgress bool
}

// TransferFile uploads the local file, resuming at the persisted offset when
// a valid resume record exists. Progress is persisted incrementally as chunks
// are acknowledged, so an interrupted transfer leaves a usable record. On
// success the record is removed. Returns the bytes sent during this call.
func (s *Session) TransferFile(ctx context.Context, t Transfer) (int64, error) {
	info, err := os.Stat(t.LocalPath)
	if err != nil {
		return 0, &TransferError{Host: s.host, Path: t.LocalPath, Err: err}
	}
	size := info.Size()
	mtime := info.ModTime().UnixNano()

	var offset int64
	if t.Store != nil && size > 0 {
		offset = t.Store.Offset(t.LocalPath, t.RemoteHost, t.RemotePath, size, mtime)
		if offset > size {
			offset = size
		}
	}

	client, err := sftp.NewClient(s.client)
	if err != nil {
		return 0, &TransferError{Host: s.host, Path: t.LocalPath,
			Err: fmt.Errorf("create sftp subsystem: %w", err)}
	}
	defer client.Close()

	if dir := path.Dir(t.RemotePath); dir != "." && dir != "/" {
		if err := client.MkdirAll(dir); err != nil {
			return 0, &TransferError{Host: s.host, Path: t.LocalPath,
				Err: fmt.Errorf("create remote dir %s: %w", dir, err)}
		}
	}

	flags := os.O_WRONLY | os.O_CREATE
	if offset == 0 {
		flags |= os.O_TRUNC
	}
	dst, err := client.OpenFile(t.RemotePath, flags)
	if err != nil {
		return 0, &TransferError{Host: s.host, Path: t.LocalPath,
			Err: fmt.Errorf("open remote file: %w", err)}
	}
	defer dst.Close()

	if offset > 0 {
		// The remote side may have less than the record claims (partial
		// flush); resume from what actually landed.
		if rinfo, err := client.Stat(t.RemotePath); err == nil && rinfo.Size() < offset {
			logger.Logger.Debug("remote shorter than resume record, adjusting",
				"host", s.host, "recorded", offset, "remote", rinfo.Size())
			offset = rinfo.Size()
		}
		if _, err := dst.Seek(offset, io.SeekStart); err != nil {
			return 0, &TransferError{Host: s.host, Path: t.LocalPath, Err: err}
		}
		logger.Logger.Info("resuming transfer", "host", s.host,
			"path", t.RemotePath, "offset", offset, "total", size)
	}

	src, err := os.Open(t.LocalPath)
	if err != nil {
		return 0, &TransferError{Host: s.host, Path: t.LocalPath, Err: err}
	}
	defer src.Close()
	if _, err := src.Seek(offset, io.SeekStart); err != nil {
		return 0, &TransferError{Host: s.host, Path: t.LocalPath, Err: err}
	}

	saveProgress := func(transferred int64) {
		if t.Store == nil {
			return
		}
		err := t.Store.Save(resume.Record{
			LocalPath:        t.LocalPath,
			RemoteHost:       t.RemoteHost,
			RemotePath:       t.RemotePath,
			TransferredBytes: transferred,
			TotalBytes:       size,
			LocalMTime:       mtime,
		})
		if err != nil {
			logger.Logger.Warn("failed to save resume progress", "host", s.host, "error", err)
		}
	}
	if size > 0 {
		saveProgress(offset)
	}

	var bar *progressbar.ProgressBar
	if t.ShowProgress && global.IsTerminal {
		bar = progressbar.DefaultBytes(size, fmt.Sprintf("upload %s", filepath.Base(t.LocalPath)))
		_ = bar.Set64(offset)
	}

	var sent int64
	sinceSave := int64(0)
	buf := make([]byte, transferChunkSize)
	for {
		select {
		case <-ctx.Done():
			saveProgress(offset + sent)
			return sent, &TransferError{Host: s.host, Path: t.LocalPath, Err: ctx.Err()}
		default:
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				saveProgress(offset + sent)
				return sent, &TransferError{Host: s.host, Path: t.LocalPath, Err: writeErr}
			}
			sent += int64(n)
			sinceSave += int64(n)
			if bar != nil {
				_ = bar.Add(n)
			}
			if sinceSave >= persistEvery {
				saveProgress(offset + sent)
				sinceSave = 0
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			saveProgress(offset + sent)
			return sent, &TransferError{Host: s.host, Path: t.LocalPath, Err: readErr}
		}
	}

	if t.Store != nil {
		key := resume.Key(t.LocalPath, t.RemoteHost, t.RemotePath)
		if err := t.Store.Delete(key); err != nil {
			logger.Logger.Warn("failed to clear resume record", "key", key, "error", err)
		}
	}
	logger.Logger.Info("transfer complete", "host", s.host,
		"path", t.RemotePath, "bytes", offset+sent)
	return sent, nil
}
