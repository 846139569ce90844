package misc

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	HistoryFileName = ".qtty_history"
	DefaultHistory  = 500
)

// DefaultHistoryPath is ~/.qtty_history, or the bare file name in the
// working directory when no home directory is known.
func DefaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return HistoryFileName
	}
	return filepath.Join(home, HistoryFileName)
}

// FileHistory is a line history persisted to a plain text file, one entry
// per line, oldest first. It satisfies term.History.
type FileHistory struct {
	mu      sync.Mutex
	path    string
	max     int
	entries []string
}

// OpenHistory loads path if it exists. An empty path keeps the history in
// memory only.
func OpenHistory(path string, max int) (*FileHistory, error) {
	if max <= 0 {
		max = DefaultHistory
	}
	h := &FileHistory{path: path, max: max}
	if path == "" {
		return h, nil
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return h, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimRight(sc.Text(), "\r"); line != "" {
			h.entries = append(h.entries, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(h.entries) > max {
		h.entries = append([]string(nil), h.entries[len(h.entries)-max:]...)
	}
	return h, nil
}

// Add records entry unless it is empty or repeats the newest one.
func (h *FileHistory) Add(entry string) {
	if strings.TrimSpace(entry) == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if n := len(h.entries); n > 0 && h.entries[n-1] == entry {
		return
	}
	h.entries = append(h.entries, entry)
	if len(h.entries) > h.max {
		h.entries = h.entries[len(h.entries)-h.max:]
	}
}

func (h *FileHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// At returns the idx-th most recent entry, 0 being the newest.
func (h *FileHistory) At(idx int) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[len(h.entries)-1-idx]
}

// Save rewrites the history file with the retained entries.
func (h *FileHistory) Save() error {
	if h.path == "" {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	tmp := h.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, e := range h.entries {
		w.WriteString(e)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, h.path)
}
