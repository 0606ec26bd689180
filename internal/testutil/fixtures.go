package testutil

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image/png"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// VolumeFixture describes a synthetic volume on disk.
type VolumeFixture struct {
	// Title is the title directory name under the parent directory.
	Title string
	// Name is the volume name (directory name or archive stem).
	Name string
	// Pages are slash-separated page paths relative to the volume root.
	Pages []string
	// Archive is "" for a directory or ".zip"/".cbz" for a packed volume.
	Archive string
	// NestedRoot wraps archived pages in a single directory named like the volume.
	NestedRoot bool
	// Page is the page image template. Zero value renders DefaultPageConfig.
	Page PageConfig
}

// NumberedPages returns n page names like "001.png".
func NumberedPages(n int, ext string) []string {
	pages := make([]string, n)
	for i := range pages {
		pages[i] = fmt.Sprintf("%03d%s", i+1, ext)
	}
	return pages
}

// BuildVolume materializes f under parentDir and returns the volume's input
// path: the directory or the archive file.
func BuildVolume(t *testing.T, parentDir string, f VolumeFixture) string {
	t.Helper()

	titleDir := filepath.Join(parentDir, f.Title)
	require.NoError(t, EnsureDir(titleDir))

	cfg := f.Page
	if cfg.FontFace == nil {
		cfg = DefaultPageConfig()
		cfg.Size = SmallSize
	}

	if f.Archive == "" {
		dir := filepath.Join(titleDir, f.Name)
		for _, p := range f.Pages {
			SaveImage(t, GeneratePage(cfg), filepath.Join(dir, filepath.FromSlash(p)))
		}
		return dir
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, GeneratePage(cfg)))
	files := make(map[string][]byte, len(f.Pages))
	for _, p := range f.Pages {
		name := p
		if f.NestedRoot {
			name = path.Join(f.Name, p)
		}
		files[name] = buf.Bytes()
	}

	archivePath := filepath.Join(titleDir, f.Name+f.Archive)
	WriteZip(t, archivePath, files)
	return archivePath
}

// WriteZip writes a zip archive containing files. Names ending in "/" become
// directory entries.
func WriteZip(t *testing.T, archivePath string, files map[string][]byte) {
	t.Helper()

	require.NoError(t, EnsureDir(filepath.Dir(archivePath)))
	out, err := os.Create(archivePath) //nolint:gosec // G304: test file creation with controlled path
	require.NoError(t, err)

	zw := zip.NewWriter(out)
	for name, data := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		if !strings.HasSuffix(name, "/") {
			_, err = w.Write(data)
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())
}
