package cache

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// ErrCacheRead marks a cache entry that could not be used. Callers treat it
// as a miss.
var ErrCacheRead = errors.New("cache read failed")

// Store is a directory of per-page JSON documents keyed by image key.
type Store struct {
	Root string
}

// Path returns the document path for key. Keys are slash-separated.
func (s Store) Path(key string) string {
	return filepath.Join(s.Root, filepath.FromSlash(key)+".json")
}

// Exists reports whether a document for key is present.
func (s Store) Exists(key string) bool {
	info, err := os.Stat(s.Path(key))
	return err == nil && info.Mode().IsRegular()
}

// Load reads the page stored under key. Every failure wraps ErrCacheRead.
func (s Store) Load(key string) (*Page, error) {
	path := s.Path(key)
	data, err := os.ReadFile(path) //nolint:gosec // G304: cache paths derive from the volume layout
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCacheRead, path, err)
	}
	p, err := DecodePage(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCacheRead, path, err)
	}
	return p, nil
}

// Save writes p under key atomically, creating parent directories.
func (s Store) Save(key string, p *Page) error {
	data, err := EncodePage(p)
	if err != nil {
		return err
	}
	path := s.Path(key)
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save cache entry %s: %w", key, err)
	}
	slog.Debug("Saved cache entry", "path", path, "blocks", len(p.Blocks))
	return nil
}

// LoadManifest reads and decodes a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: manifest paths derive from the volume layout
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	m, err := DecodeManifest(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", path, err)
	}
	return m, nil
}

// LoadManifestLenient is LoadManifest for a manifest that may be damaged.
// When strict decoding fails it falls back to SalvageManifest and reports how
// many pages were dropped.
func LoadManifestLenient(path string) (*Manifest, int, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: manifest paths derive from the volume layout
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	if m, err := DecodeManifest(data); err == nil {
		return m, 0, nil
	}
	m, dropped, err := SalvageManifest(data)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode manifest %s: %w", path, err)
	}
	return m, dropped, nil
}

// SaveManifest writes m to path atomically.
func SaveManifest(path string, m *Manifest) error {
	data, err := EncodeManifest(m)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save manifest %s: %w", path, err)
	}
	return nil
}

// WriteFileAtomic replaces path with data via a synced temp file in the same
// directory.
func WriteFileAtomic(path string, data []byte) error {
	return writeFileAtomic(path, data, 0o644)
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	fail := func(step string, err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%s temp file: %w", step, err)
	}
	if _, err := tmp.Write(data); err != nil {
		return fail("write", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fail("chmod", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
