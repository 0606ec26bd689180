package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/mokugo/internal/cache"
	"github.com/MeKo-Tech/mokugo/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithoutPaths(t *testing.T) {
	_, err := executeCommand(t, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no input paths")
}

func TestRunNoVolumes(t *testing.T) {
	empty := t.TempDir()
	_, err := executeCommand(t, "run", "--disable-ocr", "--parent-dir", empty)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no volumes")
}

func TestRunHelpListsAcceptedInputs(t *testing.T) {
	out, err := executeCommand(t, "run", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "directory of page")
	assert.Contains(t, out, ".zip/.cbz archive")
	assert.NotContains(t, out, "existing .mokuro")
}

func TestRunRejectsManifestPath(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "vol1.mokuro")
	require.NoError(t, os.WriteFile(manifest, []byte(`{"pages":[]}`), 0o644))

	_, err := executeCommand(t, "run", "--disable-ocr", "--yes", manifest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no volumes")
}

func TestRunDisableOCR(t *testing.T) {
	parent := t.TempDir()
	volDir := testutil.BuildVolume(t, parent, testutil.VolumeFixture{
		Title: "Title",
		Name:  "Volume 1",
		Pages: testutil.NumberedPages(2, ".png"),
	})
	metricsFile := filepath.Join(t.TempDir(), "mokugo.prom")

	out, err := executeCommand(t, "run", "--disable-ocr", "--yes", "--metrics-textfile", metricsFile, volDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Found 1 volume(s)")
	assert.Contains(t, out, "Volume 1")
	assert.Contains(t, out, "Processed successfully: 1/1")

	manifestPath := filepath.Join(parent, "Title", "Volume 1.mokuro")
	m, err := cache.LoadManifest(manifestPath)
	require.NoError(t, err)
	assert.Equal(t, "Title", m.Title)
	assert.Equal(t, "Volume 1", m.Volume)
	require.Len(t, m.Pages, 2)
	assert.Equal(t, "001.png", m.Pages[0].ImgPath)
	assert.Empty(t, m.Pages[0].Blocks)

	for _, key := range []string{"001", "002"} {
		assert.FileExists(t, filepath.Join(parent, "Title", "_ocr", "Volume 1", key+".json"))
	}

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `mokugo_volumes_total{status="succeeded"} 1`)
}

func TestRunIsIdempotent(t *testing.T) {
	parent := t.TempDir()
	volDir := testutil.BuildVolume(t, parent, testutil.VolumeFixture{
		Title: "Title",
		Name:  "Volume 1",
		Pages: testutil.NumberedPages(3, ".png"),
	})
	manifestPath := filepath.Join(parent, "Title", "Volume 1.mokuro")

	_, err := executeCommand(t, "run", "--disable-ocr", "--yes", volDir)
	require.NoError(t, err)
	first, err := os.ReadFile(manifestPath)
	require.NoError(t, err)

	out, err := executeCommand(t, "run", "--disable-ocr", "--yes", volDir)
	require.NoError(t, err)
	assert.Contains(t, out, "already processed")
	second, err := os.ReadFile(manifestPath)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRunArchiveFromParentDir(t *testing.T) {
	parent := t.TempDir()
	testutil.BuildVolume(t, parent, testutil.VolumeFixture{
		Title:   "Title",
		Name:    "Volume 2",
		Pages:   testutil.NumberedPages(2, ".png"),
		Archive: ".cbz",
	})

	out, err := executeCommand(t, "run", "--disable-ocr", "--yes", "--parent-dir", filepath.Join(parent, "Title"))
	require.NoError(t, err)
	assert.Contains(t, out, "Processed successfully: 1/1")
	assert.FileExists(t, filepath.Join(parent, "Title", "Volume 2.mokuro"))
	assert.NoDirExists(t, filepath.Join(parent, "Title", "Volume 2"))
}

func TestRunReportsFailedVolumes(t *testing.T) {
	parent := t.TempDir()
	volDir := testutil.BuildVolume(t, parent, testutil.VolumeFixture{
		Title: "Title",
		Name:  "Volume 1",
		Pages: testutil.NumberedPages(1, ".png"),
	})
	broken := filepath.Join(parent, "Title", "Volume 2.zip")
	testutil.WriteFile(t, broken, []byte("not a zip"))

	out, err := executeCommand(t, "run", "--disable-ocr", "--yes", volDir, broken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 volume(s) failed")
	assert.Contains(t, out, "Processed successfully: 1/2")
	assert.FileExists(t, filepath.Join(parent, "Title", "Volume 1.mokuro"))
}

func TestAskYesNo(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"yes", true},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		got := askYesNo(strings.NewReader(tt.input), &out, "Continue?")
		assert.Equal(t, tt.want, got, "input %q", tt.input)
		assert.Contains(t, out.String(), "Continue? [y/N]")
	}
}
