package logging

import (
	"os"
	"sync"
)

// cappedLogFile appends to one log file and truncates it in place once the
// next write would push it past the cap. Old lines are dropped, not rotated:
// the arcade server treats its file log as a recent-history buffer, and
// anything that must survive ships through stdout collection instead.
type cappedLogFile struct {
	mu      sync.Mutex
	path    string
	limit   int64
	f       *os.File
	written int64
}

func openCappedLogFile(path string, maxMB int) (*cappedLogFile, error) {
	if maxMB <= 0 {
		maxMB = 10
	}
	w := &cappedLogFile{path: path, limit: int64(maxMB) * 1024 * 1024}
	if err := w.open(os.O_APPEND); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *cappedLogFile) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		if err := w.open(os.O_APPEND); err != nil {
			return 0, err
		}
	}
	if w.written+int64(len(p)) > w.limit {
		if w.f != nil {
			_ = w.f.Close()
			w.f = nil
		}
		if err := w.open(os.O_TRUNC); err != nil {
			return 0, err
		}
	}
	n, err := w.f.Write(p)
	w.written += int64(n)
	return n, err
}

func (w *cappedLogFile) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

// open (re)opens the file with the given mode flag and refreshes the size
// counter from disk, so restarts pick up where the previous process left off.
func (w *cappedLogFile) open(modeFlag int) error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|modeFlag, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.written = info.Size()
	return nil
}
