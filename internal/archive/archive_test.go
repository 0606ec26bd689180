package archive

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/mokugo/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, path string, names ...string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for _, n := range names {
		w, err := zw.Create(n)
		require.NoError(t, err)
		_, err = w.Write([]byte(n))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestIsArchive(t *testing.T) {
	assert.True(t, IsArchive("vol.zip"))
	assert.True(t, IsArchive("vol.CBZ"))
	assert.False(t, IsArchive("vol.rar"))
	assert.False(t, IsArchive("vol"))
}

func TestExtract(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	src := filepath.Join(dir, "vol.cbz")
	writeZip(t, src, "p1.jpg", "sub/p2.jpg")

	dst := filepath.Join(dir, "out")
	require.NoError(t, Extract(src, dst, Options{}))
	assert.True(t, testutil.FileExists(filepath.Join(dst, "p1.jpg")))
	assert.True(t, testutil.FileExists(filepath.Join(dst, "sub", "p2.jpg")))
}

func TestExtractCorrectsDuplicatedRoot(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	src := filepath.Join(dir, "vol.zip")
	writeZip(t, src, "vol/p1.jpg", "vol/vol/p2.jpg")

	dst := filepath.Join(dir, "vol")
	require.NoError(t, Extract(src, dst, Options{CorrectDuplicatedRoot: true}))
	assert.True(t, testutil.FileExists(filepath.Join(dst, "p1.jpg")))
	assert.True(t, testutil.FileExists(filepath.Join(dst, "vol", "p2.jpg")))
	assert.False(t, testutil.FileExists(filepath.Join(dst, "vol", "p1.jpg")))
}

func TestExtractCorrectsDuplicatedRootIntoOtherDir(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	src := filepath.Join(dir, "vol 3.cbz")
	writeZip(t, src, "vol 3/001.jpg", "vol 3/002.jpg")

	dst := filepath.Join(dir, "tmp", "0f1e")
	require.NoError(t, Extract(src, dst, Options{CorrectDuplicatedRoot: true}))
	assert.True(t, testutil.FileExists(filepath.Join(dst, "001.jpg")))
	assert.True(t, testutil.FileExists(filepath.Join(dst, "002.jpg")))
	assert.False(t, testutil.DirExists(filepath.Join(dst, "vol 3")))
}

func TestExtractKeepsDistinctRoot(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	src := filepath.Join(dir, "vol.zip")
	writeZip(t, src, "chapter/p1.jpg")

	dst := filepath.Join(dir, "vol")
	require.NoError(t, Extract(src, dst, Options{CorrectDuplicatedRoot: true}))
	assert.True(t, testutil.FileExists(filepath.Join(dst, "chapter", "p1.jpg")))
}

func TestExtractRejectsZipSlip(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	src := filepath.Join(dir, "evil.zip")
	writeZip(t, src, "../escape.jpg")

	err := Extract(src, filepath.Join(dir, "out"), Options{})
	require.Error(t, err)
	assert.False(t, testutil.FileExists(filepath.Join(dir, "escape.jpg")))
}

func TestExtractInvalidArchive(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	src := filepath.Join(dir, "bad.zip")
	require.NoError(t, os.WriteFile(src, []byte("nope"), 0o600))
	assert.Error(t, Extract(src, filepath.Join(dir, "out"), Options{}))
}
