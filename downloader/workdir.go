package downloader

import (
	"os"
	"sync"
)

// WorkDir is a scratch directory for a single download request. Every request
// gets its own directory so cleanup can never touch another request's files,
// and Cleanup is safe to call from multiple exit paths.
type WorkDir struct {
	path string

	mu      sync.Mutex
	removed bool
}

// NewWorkDir creates a fresh scratch directory under base. An empty base
// falls back to the system temp directory.
func NewWorkDir(base string) (*WorkDir, error) {
	if base != "" {
		if err := os.MkdirAll(base, 0o755); err != nil {
			return nil, NewDownloadErrorWithCause(ErrorFileSystemError, "failed to create download directory", err)
		}
	}

	path, err := os.MkdirTemp(base, "track_")
	if err != nil {
		return nil, NewDownloadErrorWithCause(ErrorFileSystemError, "failed to create scratch directory", err)
	}

	return &WorkDir{path: path}, nil
}

// Path returns the directory path.
func (w *WorkDir) Path() string {
	return w.path
}

// Cleanup removes the directory and everything in it. Idempotent: duplicate
// calls (deferred plus explicit) are no-ops after the first.
func (w *WorkDir) Cleanup() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.removed {
		return nil
	}
	w.removed = true
	return os.RemoveAll(w.path)
}
