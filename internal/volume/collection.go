package volume

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/MeKo-Tech/mokugo/internal/archive"
	"github.com/MeKo-Tech/mokugo/internal/source"
)

// Collection groups input paths into volumes and titles. Inputs that map to
// the same manifest are one volume.
type Collection struct {
	volumes map[string]*Volume
	titles  map[string]*Title
}

// NewCollection returns an empty collection.
func NewCollection() *Collection {
	return &Collection{volumes: make(map[string]*Volume), titles: make(map[string]*Title)}
}

// Add registers an input path.
func (c *Collection) Add(path string) error {
	key, err := CacheKey(path)
	if err != nil {
		return err
	}

	v, ok := c.volumes[key]
	if ok {
		if err := v.AddPath(path); err != nil {
			return err
		}
	} else {
		if v, err = New(path); err != nil {
			return err
		}
		c.volumes[key] = v
	}

	t, ok := c.titles[v.TitleDir]
	if !ok {
		t = NewTitle(v.TitleDir)
		c.titles[v.TitleDir] = t
	}
	v.Title = t
	return nil
}

// Len returns the number of volumes.
func (c *Collection) Len() int { return len(c.volumes) }

// Volumes returns the volumes in natural order of their input paths.
func (c *Collection) Volumes() []*Volume {
	out := make([]*Volume, 0, len(c.volumes))
	for _, v := range c.volumes {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b *Volume) int { return source.Compare(a.InputPath(), b.InputPath()) })
	return out
}

// Titles returns the titles in natural order of their directories.
func (c *Collection) Titles() []*Title {
	out := make([]*Title, 0, len(c.titles))
	for _, t := range c.titles {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b *Title) int { return source.Compare(a.Dir, b.Dir) })
	return out
}

// ScanParent lists the volume candidates directly inside dir: subdirectories
// other than the cache directory, and supported archives.
func ScanParent(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnsupportedInput, dir, err)
	}

	var paths []string
	for _, e := range entries {
		name := e.Name()
		p := filepath.Join(dir, name)
		switch {
		case e.IsDir() && name != CacheDirName:
			paths = append(paths, p)
		case e.Type().IsRegular() && archive.IsArchive(name):
			paths = append(paths, p)
		}
	}
	slices.SortFunc(paths, source.Compare)
	return paths, nil
}
