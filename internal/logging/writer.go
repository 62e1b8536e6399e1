// Package logging builds the daemon's slog logger from configuration and
// provides a rotating file writer for structured log output. The writer
// implements io.WriteCloser and rotates log files by size, keeping a
// configurable number of backups and removing files older than a maximum age.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// RotatingWriter is an io.WriteCloser that rotates log files by size.
// Rotated files live next to the active file as <base>-<timestamp><ext>.
type RotatingWriter struct {
	mu         sync.Mutex
	file       *os.File
	size       int64
	maxBytes   int64
	maxBackups int
	maxAgeDays int

	// Path split once at construction; rotate and cleanup reuse it.
	dir  string
	base string
	ext  string
}

// NewRotatingWriter opens the log file (creating it and its directory if
// needed) and returns a writer that rotates when the file exceeds maxSizeMB.
// At most maxBackups rotated files are kept, and rotated files older than
// maxAgeDays are removed.
func NewRotatingWriter(filePath string, maxSizeMB, maxBackups, maxAgeDays int) (*RotatingWriter, error) {
	ext := filepath.Ext(filePath)
	base := strings.TrimSuffix(filepath.Base(filePath), ext)
	if ext == "" {
		ext = ".log"
	}

	rw := &RotatingWriter{
		maxBytes:   int64(maxSizeMB) * 1024 * 1024,
		maxBackups: maxBackups,
		maxAgeDays: maxAgeDays,
		dir:        filepath.Dir(filePath),
		base:       base,
		ext:        ext,
	}

	if err := os.MkdirAll(rw.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	if err := rw.openFile(); err != nil {
		return nil, err
	}

	return rw, nil
}

func (rw *RotatingWriter) activePath() string {
	return filepath.Join(rw.dir, rw.base+rw.ext)
}

func (rw *RotatingWriter) openFile() error {
	f, err := os.OpenFile(rw.activePath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}

	rw.file = f
	rw.size = info.Size()
	return nil
}

// Write implements io.Writer. It rotates the file if writing would exceed the
// size limit.
func (rw *RotatingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.size+int64(len(p)) > rw.maxBytes {
		if err := rw.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := rw.file.Write(p)
	rw.size += int64(n)
	return n, err
}

// Close closes the underlying file.
func (rw *RotatingWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.file != nil {
		return rw.file.Close()
	}
	return nil
}

func (rw *RotatingWriter) rotate() error {
	if rw.file != nil {
		rw.file.Close()
	}

	rotated := filepath.Join(rw.dir, fmt.Sprintf("%s-%s%s", rw.base, time.Now().Format("20060102-150405"), rw.ext))
	os.Rename(rw.activePath(), rotated) //nolint:errcheck

	if err := rw.openFile(); err != nil {
		return err
	}

	// Cleanup old files in background (non-blocking)
	go rw.cleanup()

	return nil
}

func (rw *RotatingWriter) cleanup() {
	entries, err := os.ReadDir(rw.dir)
	if err != nil {
		return
	}

	// Collect rotated files matching <base>-<timestamp><ext>
	prefix := rw.base + "-"
	active := rw.base + rw.ext
	var rotated []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, rw.ext) && name != active {
			rotated = append(rotated, name)
		}
	}

	// Sort ascending (oldest first)
	sort.Strings(rotated)

	cutoff := time.Now().AddDate(0, 0, -rw.maxAgeDays)

	// Remove files exceeding max backups (keep the newest maxBackups)
	for len(rotated) > rw.maxBackups {
		os.Remove(filepath.Join(rw.dir, rotated[0])) //nolint:errcheck
		rotated = rotated[1:]
	}

	// Remove files older than maxAgeDays
	for _, name := range rotated {
		path := filepath.Join(rw.dir, name)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(path) //nolint:errcheck
		}
	}
}
