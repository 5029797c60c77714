package index

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Filter decides which files of a folder take part in indexing and ranking.
type Filter struct {
	Extensions    []string
	IgnoreFolders []string
	IgnoreFiles   []string
}

// HasExtension reports whether name ends with one of the allowed extensions.
func (f Filter) HasExtension(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range f.Extensions {
		if ext != "" && strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// IgnoresFile reports whether the identifier or its base name is ignored.
// The store file itself is always ignored.
func (f Filter) IgnoresFile(identifier string) bool {
	base := path.Base(identifier)
	if base == StoreFileName {
		return true
	}
	for _, name := range f.IgnoreFiles {
		if name == base || name == identifier {
			return true
		}
	}
	return false
}

// IgnoresFolder reports whether any directory segment of identifier is an
// ignored folder name.
func (f Filter) IgnoresFolder(identifier string) bool {
	segments := strings.Split(identifier, "/")
	for _, seg := range segments[:len(segments)-1] {
		if f.ignoredDir(seg) {
			return true
		}
	}
	return false
}

// Accepts applies all three rules to a relative identifier.
func (f Filter) Accepts(identifier string) bool {
	return f.HasExtension(identifier) && !f.IgnoresFile(identifier) && !f.IgnoresFolder(identifier)
}

func (f Filter) ignoredDir(name string) bool {
	for _, d := range f.IgnoreFolders {
		if d == name {
			return true
		}
	}
	return false
}

// Discover walks folder and returns the identifiers of every accepted file,
// relative to folder with forward slashes, in lexical order. Ignored
// directories are not descended into. Unreadable entries are skipped.
func Discover(folder string, f Filter) ([]string, error) {
	info, err := os.Stat(folder)
	if err != nil {
		return nil, fmt.Errorf("stat folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", folder)
	}

	var files []string
	err = filepath.WalkDir(folder, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == folder {
				return err
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if p != folder && f.ignoredDir(d.Name()) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(folder, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if f.HasExtension(rel) && !f.IgnoresFile(rel) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", folder, err)
	}
	sort.Strings(files)
	return files, nil
}
