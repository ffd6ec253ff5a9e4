package jsonstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"

	"gallery/internal/logging"
)

// collection is one JSON array file plus a <name>.seq file holding the
// highest id ever issued, so ids are not reused across restarts. Callers
// hold mu for the whole read-modify-write cycle.
type collection[T any] struct {
	mu      sync.Mutex
	path    string
	seqPath string
	idOf    func(T) int64
	lastID  int64
	savedID int64
	seqRead bool
}

func newCollection[T any](dir, name string, idOf func(T) int64) *collection[T] {
	return &collection[T]{
		path:    filepath.Join(dir, name+".json"),
		seqPath: filepath.Join(dir, name+".seq"),
		idOf:    idOf,
	}
}

// load returns the stored items. A missing or unparsable file reads as empty.
func (c *collection[T]) load() []T {
	items := []T{}
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logging.Warn().Err(err).Str("file", c.path).Msg("unreadable collection, treating as empty")
		}
		return items
	}
	if err := json.Unmarshal(data, &items); err != nil {
		logging.Warn().Err(err).Str("file", c.path).Msg("corrupt collection, treating as empty")
		return []T{}
	}
	if items == nil {
		items = []T{}
	}
	return items
}

// loadSeq reads the persisted high-water mark once per process.
func (c *collection[T]) loadSeq() {
	if c.seqRead {
		return
	}
	c.seqRead = true
	data, err := os.ReadFile(c.seqPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logging.Warn().Err(err).Str("file", c.seqPath).Msg("unreadable id sequence, falling back to stored ids")
		}
		return
	}
	var id int64
	if err := json.Unmarshal(data, &id); err != nil {
		logging.Warn().Err(err).Str("file", c.seqPath).Msg("corrupt id sequence, falling back to stored ids")
		return
	}
	if id > c.lastID {
		c.lastID = id
	}
	c.savedID = id
}

// save persists a raised id sequence, then replaces the collection file with
// a pretty-printed array. The sequence goes first so a failed collection
// write can only leave a gap in ids, never a reused one.
func (c *collection[T]) save(items []T) error {
	c.loadSeq()
	if c.lastID > c.savedID {
		seq, err := json.Marshal(c.lastID)
		if err != nil {
			return fmt.Errorf("encode %s: %w", filepath.Base(c.seqPath), err)
		}
		if err := writeAtomic(c.seqPath, seq); err != nil {
			return err
		}
		c.savedID = c.lastID
	}

	if items == nil {
		items = []T{}
	}
	data, err := json.MarshalIndent(items, "", "    ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(c.path), err)
	}
	return writeAtomic(c.path, data)
}

// writeAtomic replaces path through a synced temp file and a rename.
func writeAtomic(path string, data []byte) error {
	name := filepath.Base(path)
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+name+".*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", name, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

// nextID never hands out an id at or below one already stored or issued,
// including ids issued before a restart.
func (c *collection[T]) nextID(items []T) int64 {
	c.loadSeq()
	maxID := c.lastID
	for _, it := range items {
		if id := c.idOf(it); id > maxID {
			maxID = id
		}
	}
	c.lastID = maxID + 1
	return c.lastID
}
