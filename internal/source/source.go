// Package source enumerates the page images of an expanded volume and the
// per-page documents of its cache directory.
package source

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/MeKo-Tech/mokugo/internal/utils"
)

// ErrNotDirectory is returned when the volume input has not been expanded to a
// directory.
var ErrNotDirectory = errors.New("input is not a directory")

// Entry is one page of a volume. Key is the slash-separated relative path
// without extension; RelPath keeps the extension.
type Entry struct {
	Key     string
	RelPath string
}

// List returns every supported image below root in natural order of its
// relative path.
func List(root string) ([]Entry, error) {
	return list(root, utils.IsSupportedImage, true)
}

// ListJSON returns every .json document below root in natural order. A missing
// root yields an empty list.
func ListJSON(root string) ([]Entry, error) {
	return list(root, func(p string) bool {
		return strings.EqualFold(filepath.Ext(p), ".json")
	}, false)
}

func list(root string, match func(string) bool, mustExist bool) ([]Entry, error) {
	info, err := os.Stat(root)
	if err != nil {
		if !mustExist && errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotDirectory, root)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, root)
	}

	var rels []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.Type().IsRegular() || !match(p) {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rels = append(rels, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	slices.SortStableFunc(rels, Compare)

	// One entry per key: the first occurrence fixes the position, the last one
	// in natural order supplies the path.
	entries := make([]Entry, 0, len(rels))
	index := make(map[string]int, len(rels))
	for _, rel := range rels {
		key := strings.TrimSuffix(rel, path.Ext(rel))
		if i, ok := index[key]; ok {
			entries[i].RelPath = rel
			continue
		}
		index[key] = len(entries)
		entries = append(entries, Entry{Key: key, RelPath: rel})
	}
	return entries, nil
}

// Keys returns the keys of entries in order.
func Keys(entries []Entry) []string {
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys
}
