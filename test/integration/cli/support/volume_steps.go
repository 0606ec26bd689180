package support

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/mokugo/internal/cache"
	"github.com/MeKo-Tech/mokugo/internal/testutil"
	"github.com/MeKo-Tech/mokugo/internal/volume"
	"github.com/disintegration/imaging"
)

func pageConfig() testutil.PageConfig {
	cfg := testutil.DefaultPageConfig()
	cfg.Size = testutil.SmallSize
	return cfg
}

// aVolumeOfPages writes n page images into <title>/<name>/.
func (s *Scenario) aVolumeOfPages(title, name string, n int) error {
	dir := s.Path(filepath.Join(title, name))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create volume directory: %w", err)
	}
	for _, p := range testutil.NumberedPages(n, ".png") {
		if err := imaging.Save(testutil.GeneratePage(pageConfig()), filepath.Join(dir, p)); err != nil {
			return fmt.Errorf("failed to write page %s: %w", p, err)
		}
	}
	return nil
}

// anArchivedVolumeOfPages writes <title>/<name>.cbz holding n page images.
func (s *Scenario) anArchivedVolumeOfPages(title, name string, n int) error {
	var page bytes.Buffer
	if err := imaging.Encode(&page, testutil.GeneratePage(pageConfig()), imaging.PNG); err != nil {
		return fmt.Errorf("failed to encode page: %w", err)
	}

	path := s.Path(filepath.Join(title, name+".cbz"))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create title directory: %w", err)
	}
	out, err := os.Create(path) //nolint:gosec // G304: scenario file with controlled path
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	zw := zip.NewWriter(out)
	for _, p := range testutil.NumberedPages(n, ".png") {
		w, err := zw.Create(p)
		if err != nil {
			_ = out.Close()
			return fmt.Errorf("failed to add %s: %w", p, err)
		}
		if _, err := w.Write(page.Bytes()); err != nil {
			_ = out.Close()
			return fmt.Errorf("failed to write %s: %w", p, err)
		}
	}
	if err := zw.Close(); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	return out.Close()
}

// aFileContaining writes content to a path under the library root.
func (s *Scenario) aFileContaining(rel, content string) error {
	path := s.Path(rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// iDeleteTheFile removes a file under the library root.
func (s *Scenario) iDeleteTheFile(rel string) error {
	return os.Remove(s.Path(rel))
}

func (s *Scenario) theFileShouldExist(rel string) error {
	if _, err := os.Stat(s.Path(rel)); err != nil {
		return fmt.Errorf("expected %s to exist: %w", rel, err)
	}
	return nil
}

func (s *Scenario) theFileShouldNotExist(rel string) error {
	if _, err := os.Stat(s.Path(rel)); err == nil {
		return fmt.Errorf("expected %s not to exist", rel)
	}
	return nil
}

// theManifestShouldListPages loads a .mokuro file and checks its page count.
func (s *Scenario) theManifestShouldListPages(rel string, n int) error {
	m, err := cache.LoadManifest(s.Path(rel))
	if err != nil {
		return fmt.Errorf("failed to load manifest %s: %w", rel, err)
	}
	if len(m.Pages) != n {
		return fmt.Errorf("manifest %s lists %d pages, expected %d", rel, len(m.Pages), n)
	}
	return nil
}

// theManifestsShouldShareTitleUUID checks that two manifests agree on their
// title identifier.
func (s *Scenario) theManifestsShouldShareTitleUUID(a, b string) error {
	ma, err := cache.LoadManifest(s.Path(a))
	if err != nil {
		return err
	}
	mb, err := cache.LoadManifest(s.Path(b))
	if err != nil {
		return err
	}
	if ma.TitleUUID == "" || ma.TitleUUID != mb.TitleUUID {
		return fmt.Errorf("title uuids differ: %q vs %q", ma.TitleUUID, mb.TitleUUID)
	}
	return nil
}

// theCacheShouldHoldPages counts the decodable page documents of a volume.
func (s *Scenario) theCacheShouldHoldPages(title, name string, n int) error {
	dir := s.Path(filepath.Join(title, volume.CacheDirName, name))
	store := cache.Store{Root: dir}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}
	count := 0
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		key := e.Name()[:len(e.Name())-len(".json")]
		if _, err := store.Load(key); err != nil {
			return fmt.Errorf("cached page %s is not readable: %w", e.Name(), err)
		}
		count++
	}
	if count != n {
		return fmt.Errorf("cache holds %d pages, expected %d", count, n)
	}
	return nil
}

// iRememberTheFile snapshots a file for a later comparison.
func (s *Scenario) iRememberTheFile(rel string) error {
	data, err := os.ReadFile(s.Path(rel))
	if err != nil {
		return err
	}
	s.snapshots[rel] = data
	return nil
}

func (s *Scenario) theFileShouldBeUnchanged(rel string) error {
	before, ok := s.snapshots[rel]
	if !ok {
		return fmt.Errorf("no snapshot of %s", rel)
	}
	after, err := os.ReadFile(s.Path(rel))
	if err != nil {
		return err
	}
	if !bytes.Equal(before, after) {
		return fmt.Errorf("%s changed", rel)
	}
	return nil
}
