// Package volume models manga volumes and titles on disk: where their
// manifests and caches live, which input form to read, and how far
// processing has progressed.
package volume

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/MeKo-Tech/mokugo/internal/archive"
	"github.com/MeKo-Tech/mokugo/internal/cache"
	"github.com/MeKo-Tech/mokugo/internal/source"
)

const (
	// ManifestExt is the extension of volume manifests.
	ManifestExt = ".mokuro"
	// CacheDirName is the per-title directory holding page caches.
	CacheDirName = "_ocr"
)

// ErrUnsupportedInput is returned for paths that are neither directories nor
// supported archives.
var ErrUnsupportedInput = errors.New("unsupported input")

// Status is how far a volume has been processed.
type Status int

const (
	Unprocessed Status = iota
	PartiallyProcessed
	Processed
)

// DisplayStatus renders s for listings.
func DisplayStatus(s Status) string {
	switch s {
	case Unprocessed:
		return "unprocessed"
	case PartiallyProcessed:
		return "partially processed"
	case Processed:
		return "already processed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// CacheKey returns the manifest path identifying the volume stored at path.
// A directory maps to a sibling "<name>.mokuro"; an archive has its extension
// replaced. The result is absolute.
func CacheKey(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrUnsupportedInput, path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrUnsupportedInput, path, err)
	}
	switch {
	case info.IsDir():
		return filepath.Join(filepath.Dir(abs), filepath.Base(abs)+ManifestExt), nil
	case info.Mode().IsRegular() && archive.IsArchive(abs):
		return strings.TrimSuffix(abs, filepath.Ext(abs)) + ManifestExt, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedInput, path)
	}
}

// Volume is one logical book, possibly present in several input forms.
type Volume struct {
	UUID         string
	Name         string
	ManifestPath string
	TitleDir     string
	CacheDir     string
	Status       Status
	Title        *Title
	// Prior is the manifest found at construction time, if any.
	Prior *cache.Manifest

	inputs map[string]int
}

// New creates the volume whose input is path, reading an existing manifest.
func New(path string) (*Volume, error) {
	key, err := CacheKey(path)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSuffix(filepath.Base(key), ManifestExt)
	titleDir := filepath.Dir(key)
	v := &Volume{
		Name:         name,
		ManifestPath: key,
		TitleDir:     titleDir,
		CacheDir:     filepath.Join(titleDir, CacheDirName, name),
		inputs:       make(map[string]int),
	}

	if fileExists(key) {
		m, dropped, err := cache.LoadManifestLenient(key)
		switch {
		case err != nil:
			slog.Warn("Ignoring unreadable manifest", "path", key, "error", err)
		default:
			if dropped > 0 {
				slog.Warn("Dropped invalid pages from manifest", "path", key, "pages", dropped)
			}
			v.Prior = m
			v.UUID = m.VolumeUUID
		}
	}
	if v.UUID == "" {
		v.UUID = uuid.NewString()
	}

	if err := v.AddPath(path); err != nil {
		return nil, err
	}
	v.RefreshStatus()
	return v, nil
}

// AddPath records another input form of the volume.
func (v *Volume) AddPath(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnsupportedInput, path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnsupportedInput, path, err)
	}
	v.inputs[abs] = formatRank(abs, info.IsDir())
	return nil
}

// formatRank orders input forms: a directory is preferred over .cbz, which is
// preferred over .zip.
func formatRank(path string, isDir bool) int {
	if isDir {
		return 0
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cbz":
		return 1
	case ".zip":
		return 2
	default:
		return 3
	}
}

// InputPath returns the preferred input form.
func (v *Volume) InputPath() string {
	best, bestRank := "", -1
	for p, rank := range v.inputs {
		if bestRank < 0 || rank < bestRank || (rank == bestRank && source.Less(p, best)) {
			best, bestRank = p, rank
		}
	}
	return best
}

// InputPaths returns every known input form in preference order.
func (v *Volume) InputPaths() []string {
	paths := make([]string, 0, len(v.inputs))
	for p := range v.inputs {
		paths = append(paths, p)
	}
	byPreference := func(a, b string) int {
		if d := v.inputs[a] - v.inputs[b]; d != 0 {
			return d
		}
		return source.Compare(a, b)
	}
	slices.SortFunc(paths, byPreference)
	return paths
}

// LockPath is the advisory lock file guarding the volume's cache.
func (v *Volume) LockPath() string {
	return filepath.Join(v.TitleDir, CacheDirName, v.Name+".lock")
}

// Images lists the page images of the preferred input, which must be a
// directory.
func (v *Volume) Images() ([]source.Entry, error) {
	return source.List(v.InputPath())
}

// CachedPages lists the cached page documents.
func (v *Volume) CachedPages() ([]source.Entry, error) {
	return source.ListJSON(v.CacheDir)
}

// Store returns the page cache of the volume.
func (v *Volume) Store() cache.Store {
	return cache.Store{Root: v.CacheDir}
}

// Expand extracts an archive input so Images can read it. With tmpDir empty
// the archive is extracted next to itself; otherwise into tmpDir/<uuid>.
// Directory inputs are left alone.
func (v *Volume) Expand(tmpDir string) error {
	in := v.InputPath()
	info, err := os.Stat(in)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", in, err)
	}
	if info.IsDir() || !archive.IsArchive(in) {
		return nil
	}

	dst := strings.TrimSuffix(in, filepath.Ext(in))
	if tmpDir != "" {
		dst = filepath.Join(tmpDir, v.UUID)
	}

	slog.Info("Unzipping", "path", in, "destination", dst)
	if err := archive.Extract(in, dst, archive.Options{CorrectDuplicatedRoot: true}); err != nil {
		return fmt.Errorf("failed to unzip %s: %w", in, err)
	}
	return v.AddPath(dst)
}

// RefreshStatus derives Status from the manifest and cache directory.
func (v *Volume) RefreshStatus() {
	switch {
	case fileExists(v.ManifestPath):
		v.Status = Processed
	case dirExists(v.CacheDir):
		v.Status = PartiallyProcessed
	default:
		v.Status = Unprocessed
	}
}

func (v *Volume) String() string {
	return fmt.Sprintf("%s (%s)", v.InputPath(), DisplayStatus(v.Status))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
