package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// NewStore builds a disk-backed Store rooted at basePath. The raw staging
// sub-store lives at basePath/raw and is reachable via Store.Raw().
func NewStore(basePath string) (Store, error) {
	if basePath == "" {
		return nil, errors.New("cache dir required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve cache dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	store := &fileStore{dir: abs, locks: xsync.NewMapOf[string, *sync.Mutex]()}

	rawDir := filepath.Join(abs, "raw")
	if err := os.MkdirAll(rawDir, 0o755); err != nil {
		return nil, fmt.Errorf("create raw staging dir: %w", err)
	}
	store.raw = &fileStore{dir: rawDir, locks: xsync.NewMapOf[string, *sync.Mutex](), isRaw: true}

	return store, nil
}

// fileStore implements Store against a single directory; concurrent writes
// to the same key are serialized by a per-key mutex held in locks.
type fileStore struct {
	dir   string
	locks *xsync.MapOf[string, *sync.Mutex]
	raw   *fileStore
	isRaw bool
}

func (s *fileStore) Raw() Store {
	if s.isRaw {
		return s
	}
	return s.raw
}

func (s *fileStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	filePath, err := s.entryPath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *fileStore) Size(ctx context.Context, name string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	filePath, err := s.entryPath(name)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	if info.IsDir() {
		return 0, ErrNotFound
	}
	return info.Size(), nil
}

func (s *fileStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	filePath, err := s.entryPath(name)
	if err != nil {
		return err
	}

	unlock := s.lockFor(name)
	defer unlock()

	tempFile, err := os.CreateTemp(s.dir, ".cache-*")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()

	_, writeErr := tempFile.Write(data)
	closeErr := tempFile.Close()
	if writeErr != nil {
		os.Remove(tempName)
		return writeErr
	}
	if closeErr != nil {
		os.Remove(tempName)
		return closeErr
	}

	if err := os.Rename(tempName, filePath); err != nil {
		os.Remove(tempName)
		return err
	}
	return nil
}

func (s *fileStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	filePath, err := s.entryPath(name)
	if err != nil {
		return err
	}

	unlock := s.lockFor(name)
	defer unlock()

	if err := os.Remove(filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *fileStore) lockFor(name string) func() {
	mu, _ := s.locks.LoadOrCompute(name, func() *sync.Mutex { return &sync.Mutex{} })
	mu.Lock()
	return mu.Unlock
}

func (s *fileStore) entryPath(name string) (string, error) {
	encoded, err := EncodeName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, encoded+".json"), nil
}

// EncodeName maps a package name to a single filesystem-safe segment.
// Scoped names (`@scope/name`) have their `@` and `/` percent-encoded so
// they never create a nested directory. Names containing "." or ".."
// segments, or that are empty, are rejected as path-traversal attempts.
func EncodeName(name string) (string, error) {
	if name == "" {
		return "", ErrInvalidName
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", ErrInvalidName
		}
	}
	encoded := strings.ReplaceAll(name, "/", "%2f")
	encoded = strings.ReplaceAll(encoded, "@", "%40")
	return encoded, nil
}
