package changesync

import (
	"os"
	"path/filepath"
	"strings"
)

// Cursor persists the last-applied changes-feed sequence to a single-line
// text file, written only after a batch's effects are durable in the cache.
type Cursor struct {
	path string
}

// NewCursor returns a Cursor backed by the file at path.
func NewCursor(path string) *Cursor {
	return &Cursor{path: path}
}

// Read returns the persisted cursor, or "0" if the file is absent or empty.
func (c *Cursor) Read() string {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return "0"
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return "0"
	}
	return value
}

// Write durably persists seq via temp-file-then-rename.
func (c *Cursor) Write(seq string) error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".sync-seq-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	_, writeErr := tmp.WriteString(seq)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpName)
		return writeErr
	}
	if closeErr != nil {
		os.Remove(tmpName)
		return closeErr
	}

	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
