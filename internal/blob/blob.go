// Package blob stores uploaded media bytes as flat files under one directory.
package blob

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrTooLarge is returned by Save when the reader yields more than the limit.
var ErrTooLarge = errors.New("blob exceeds size limit")

// ErrNotFound is returned when a named blob does not exist.
var ErrNotFound = errors.New("blob not found")

// Storage is the blob store used by the media service.
type Storage interface {
	Save(r io.Reader, name string, limit int64) (int64, error)
	Open(name string) (*os.File, error)
	Remove(name string) error
}

type LocalStorage struct {
	BaseDir string
}

var _ Storage = (*LocalStorage)(nil)

func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, err
	}
	return &LocalStorage{BaseDir: baseDir}, nil
}

// path confines name to BaseDir.
func (s *LocalStorage) path(name string) (string, error) {
	base := filepath.Base(name)
	if base != name || base == "." || base == ".." || base == string(filepath.Separator) {
		return "", fmt.Errorf("invalid blob name %q", name)
	}
	return filepath.Join(s.BaseDir, base), nil
}

// Save streams r into name, writing at most limit bytes. A partial file is
// removed when the copy fails or the limit is exceeded.
func (s *LocalStorage) Save(r io.Reader, name string, limit int64) (int64, error) {
	path, err := s.path(name)
	if err != nil {
		return 0, err
	}

	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, err
	}

	written, err := io.Copy(out, io.LimitReader(r, limit+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && written > limit {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, err
	}
	return written, nil
}

func (s *LocalStorage) Open(name string) (*os.File, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, ErrNotFound
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if fi, err := f.Stat(); err != nil || fi.IsDir() {
		f.Close()
		return nil, ErrNotFound
	}
	return f, nil
}

// Remove deletes name. A blob that is already gone is not an error.
func (s *LocalStorage) Remove(name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
