// Package folders keeps the registry of folders the assistant can index and
// which of them are currently selected for answering.
package folders

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/codesage/sage/internal/storage"
)

var bucketFolders = []byte("folders")

var (
	// ErrExists is returned when adding a folder that is already registered.
	ErrExists = errors.New("folder already registered")
	// ErrNotFound is returned for operations on an unregistered folder.
	ErrNotFound = errors.New("folder not registered")
)

// Folder is a registered folder.
type Folder struct {
	ID       uint64    `json:"id"`
	Path     string    `json:"path"`
	Selected bool      `json:"selected"`
	AddedAt  time.Time `json:"added_at"`
}

// Registry stores folders in bbolt keyed by an auto-assigned id.
type Registry struct {
	db *bbolt.DB
}

// NewRegistry prepares the folders bucket in db.
func NewRegistry(db *bbolt.DB) (*Registry, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketFolders)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("init folders: %w", err)
	}
	return &Registry{db: db}, nil
}

// Add registers path. Paths are cleaned before comparison.
func (r *Registry) Add(path string) (*Folder, error) {
	path = filepath.Clean(path)
	f := &Folder{Path: path, AddedAt: time.Now().UTC()}
	err := r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketFolders)
		if k, _, err := find(b, path); err != nil {
			return err
		} else if k != nil {
			return fmt.Errorf("%s: %w", path, ErrExists)
		}
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		f.ID = id
		data, err := json.Marshal(f)
		if err != nil {
			return err
		}
		return b.Put(storage.Itob(id), data)
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Remove unregisters path.
func (r *Registry) Remove(path string) error {
	path = filepath.Clean(path)
	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketFolders)
		k, _, err := find(b, path)
		if err != nil {
			return err
		}
		if k == nil {
			return fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return b.Delete(k)
	})
}

// List returns every registered folder ordered by path.
func (r *Registry) List() ([]*Folder, error) {
	var out []*Folder
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketFolders).ForEach(func(_, v []byte) error {
			var f Folder
			if err := json.Unmarshal(v, &f); err != nil {
				return err
			}
			out = append(out, &f)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Select marks exactly the given paths as selected. Every path must be
// registered; on error the selection is left unchanged.
func (r *Registry) Select(paths []string) error {
	want := make(map[string]bool, len(paths))
	for _, p := range paths {
		want[filepath.Clean(p)] = true
	}
	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketFolders)
		type entry struct {
			key []byte
			f   Folder
		}
		var entries []entry
		err := b.ForEach(func(k, v []byte) error {
			var f Folder
			if err := json.Unmarshal(v, &f); err != nil {
				return err
			}
			entries = append(entries, entry{key: append([]byte(nil), k...), f: f})
			return nil
		})
		if err != nil {
			return err
		}

		known := make(map[string]bool, len(entries))
		for _, e := range entries {
			known[e.f.Path] = true
		}
		for p := range want {
			if !known[p] {
				return fmt.Errorf("%s: %w", p, ErrNotFound)
			}
		}

		for _, e := range entries {
			e.f.Selected = want[e.f.Path]
			data, err := json.Marshal(e.f)
			if err != nil {
				return err
			}
			if err := b.Put(e.key, data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Selected returns the paths of the selected folders ordered by path.
func (r *Registry) Selected() ([]string, error) {
	all, err := r.List()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, f := range all {
		if f.Selected {
			out = append(out, f.Path)
		}
	}
	return out, nil
}

func find(b *bbolt.Bucket, path string) ([]byte, *Folder, error) {
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var f Folder
		if err := json.Unmarshal(v, &f); err != nil {
			return nil, nil, err
		}
		if f.Path == path {
			return k, &f, nil
		}
	}
	return nil, nil, nil
}
