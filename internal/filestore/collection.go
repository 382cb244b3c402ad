// Package filestore keeps checkout records in JSON files on local disk.
//
// Every collection is a single JSON array. A mutation reads the whole file,
// changes it and writes it back through a temp file and rename, all while
// holding the collection lock, so concurrent writers in one process never
// lose updates.
package filestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Collection is a JSON array of T persisted at path.
type Collection[T any] struct {
	mu   sync.Mutex
	path string
}

// NewCollection opens the collection at path, creating an empty one if needed.
func NewCollection[T any](path string) (*Collection[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create data dir: %w", err)
	}
	c := &Collection[T]{path: path}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := c.write([]T{}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("filestore: stat %s: %w", path, err)
	}
	return c, nil
}

// Path returns the backing file path.
func (c *Collection[T]) Path() string { return c.path }

// List returns every item.
func (c *Collection[T]) List() ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.read()
}

// Get returns the first item matching match.
func (c *Collection[T]) Get(match func(T) bool) (T, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	items, err := c.read()
	if err != nil {
		return zero, false, err
	}
	for _, item := range items {
		if match(item) {
			return item, true, nil
		}
	}
	return zero, false, nil
}

// Put appends item.
func (c *Collection[T]) Put(item T) error {
	return c.Mutate(func(items []T) ([]T, error) {
		return append(items, item), nil
	})
}

// UpdateWhere applies update to every item matching match and returns how
// many items were updated. Nothing is written when update fails or nothing matches.
func (c *Collection[T]) UpdateWhere(match func(T) bool, update func(*T) error) (int, error) {
	n := 0
	err := c.Mutate(func(items []T) ([]T, error) {
		for i := range items {
			if !match(items[i]) {
				continue
			}
			if err := update(&items[i]); err != nil {
				return nil, err
			}
			n++
		}
		if n == 0 {
			return nil, nil
		}
		return items, nil
	})
	return n, err
}

// Mutate runs fn over the full collection under the lock and persists the
// returned slice. Returning a nil slice and nil error skips the write.
func (c *Collection[T]) Mutate(fn func(items []T) ([]T, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.read()
	if err != nil {
		return err
	}
	updated, err := fn(items)
	if err != nil {
		return err
	}
	if updated == nil {
		return nil
	}
	return c.write(updated)
}

func (c *Collection[T]) read() ([]T, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("filestore: read %s: %w", c.path, err)
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("filestore: decode %s: %w", c.path, err)
	}
	return items, nil
}

func (c *Collection[T]) write(items []T) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("filestore: encode %s: %w", c.path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("filestore: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("filestore: write %s: %w", c.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filestore: close %s: %w", c.path, err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("filestore: replace %s: %w", c.path, err)
	}
	return nil
}
