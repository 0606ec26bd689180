package volume

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/mokugo/internal/cache"
	"github.com/MeKo-Tech/mokugo/internal/testutil"
)

func TestDisplayStatus(t *testing.T) {
	assert.Equal(t, "unprocessed", DisplayStatus(Unprocessed))
	assert.Equal(t, "partially processed", DisplayStatus(PartiallyProcessed))
	assert.Equal(t, "already processed", DisplayStatus(Processed))
}

func TestCacheKey(t *testing.T) {
	parent := testutil.CreateTempDir(t)
	dir := testutil.BuildVolume(t, parent, testutil.VolumeFixture{Title: "T", Name: "vol 1", Pages: []string{"a.png"}})
	zipPath := testutil.BuildVolume(t, parent, testutil.VolumeFixture{Title: "T", Name: "vol 2", Pages: []string{"a.png"}, Archive: ".ZIP"})
	other := filepath.Join(parent, "T", "notes.txt")
	testutil.WriteFile(t, other, []byte("x"))

	key, err := CacheKey(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(parent, "T", "vol 1.mokuro"), key)

	key, err = CacheKey(zipPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(parent, "T", "vol 2.mokuro"), key)

	_, err = CacheKey(other)
	assert.True(t, errors.Is(err, ErrUnsupportedInput))
	_, err = CacheKey(filepath.Join(parent, "missing"))
	assert.True(t, errors.Is(err, ErrUnsupportedInput))
}

func TestNew_DerivedPathsAndStatus(t *testing.T) {
	parent := testutil.CreateTempDir(t)
	dir := testutil.BuildVolume(t, parent, testutil.VolumeFixture{Title: "T", Name: "v1", Pages: []string{"a.png"}})

	v, err := New(dir)
	require.NoError(t, err)
	assert.Equal(t, "v1", v.Name)
	assert.Equal(t, filepath.Join(parent, "T"), v.TitleDir)
	assert.Equal(t, filepath.Join(parent, "T", "_ocr", "v1"), v.CacheDir)
	assert.Equal(t, filepath.Join(parent, "T", "_ocr", "v1.lock"), v.LockPath())
	assert.NotEmpty(t, v.UUID)
	assert.Nil(t, v.Prior)
	assert.Equal(t, Unprocessed, v.Status)

	require.NoError(t, os.MkdirAll(v.CacheDir, 0o750))
	v.RefreshStatus()
	assert.Equal(t, PartiallyProcessed, v.Status)

	require.NoError(t, cache.SaveManifest(v.ManifestPath, &cache.Manifest{VolumeUUID: "prior-uuid"}))
	v.RefreshStatus()
	assert.Equal(t, Processed, v.Status)

	again, err := New(dir)
	require.NoError(t, err)
	assert.Equal(t, "prior-uuid", again.UUID)
	require.NotNil(t, again.Prior)
}

func TestNew_UnreadableManifestIsIgnored(t *testing.T) {
	parent := testutil.CreateTempDir(t)
	dir := testutil.BuildVolume(t, parent, testutil.VolumeFixture{Title: "T", Name: "v1", Pages: []string{"a.png"}})
	testutil.WriteFile(t, filepath.Join(parent, "T", "v1.mokuro"), []byte("{broken"))

	v, err := New(dir)
	require.NoError(t, err)
	assert.Nil(t, v.Prior)
	assert.NotEmpty(t, v.UUID)
	assert.Equal(t, Processed, v.Status)
}

func TestNew_ManifestWithInvalidPageKeepsIdentity(t *testing.T) {
	parent := testutil.CreateTempDir(t)
	dir := testutil.BuildVolume(t, parent, testutil.VolumeFixture{Title: "T", Name: "v1", Pages: []string{"001.png", "002.png"}})
	testutil.WriteFile(t, filepath.Join(parent, "T", "v1.mokuro"), []byte(`{
  "volume_uuid": "KEEP-ME",
  "pages": [
    {"img_width": 4, "img_height": 4, "blocks": [], "img_path": "001.png"},
    {"img_width": 4, "img_height": 4, "img_path": "002.png",
     "blocks": [{"box": [0, 0, 1, 1], "vertical": true, "lines": ["a"]}]}
  ]
}`))

	v, err := New(dir)
	require.NoError(t, err)
	assert.Equal(t, "KEEP-ME", v.UUID)
	require.NotNil(t, v.Prior)
	require.Len(t, v.Prior.Pages, 1)
	assert.Equal(t, "001.png", v.Prior.Pages[0].ImgPath)
}

func TestInputPath_Preference(t *testing.T) {
	parent := testutil.CreateTempDir(t)
	zipPath := testutil.BuildVolume(t, parent, testutil.VolumeFixture{Title: "T", Name: "v", Pages: []string{"a.png"}, Archive: ".zip"})
	cbzPath := testutil.BuildVolume(t, parent, testutil.VolumeFixture{Title: "T", Name: "v", Pages: []string{"a.png"}, Archive: ".cbz"})
	dir := testutil.BuildVolume(t, parent, testutil.VolumeFixture{Title: "T", Name: "v", Pages: []string{"a.png"}})

	c := NewCollection()
	require.NoError(t, c.Add(zipPath))
	assert.Equal(t, zipPath, c.Volumes()[0].InputPath())
	require.NoError(t, c.Add(cbzPath))
	assert.Equal(t, cbzPath, c.Volumes()[0].InputPath())
	require.NoError(t, c.Add(dir))
	require.Equal(t, 1, c.Len())
	v := c.Volumes()[0]
	assert.Equal(t, dir, v.InputPath())
	assert.Equal(t, []string{dir, cbzPath, zipPath}, v.InputPaths())
}

func TestImagesAndCachedPages(t *testing.T) {
	parent := testutil.CreateTempDir(t)
	dir := testutil.BuildVolume(t, parent, testutil.VolumeFixture{
		Title: "T", Name: "v", Pages: []string{"p10.png", "p2.jpg", "sub/p1.png"},
	})
	v, err := New(dir)
	require.NoError(t, err)

	images, err := v.Images()
	require.NoError(t, err)
	keys := make([]string, len(images))
	for i, e := range images {
		keys[i] = e.Key
	}
	assert.Equal(t, []string{"p2", "p10", "sub/p1"}, keys)

	cached, err := v.CachedPages()
	require.NoError(t, err)
	assert.Empty(t, cached)

	require.NoError(t, v.Store().Save("p2", cache.NewPage(1, 1)))
	cached, err = v.CachedPages()
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, "p2", cached[0].Key)
}

func TestExpand(t *testing.T) {
	parent := testutil.CreateTempDir(t)
	zipPath := testutil.BuildVolume(t, parent, testutil.VolumeFixture{
		Title: "T", Name: "v", Pages: []string{"001.png", "002.png"}, Archive: ".cbz", NestedRoot: true,
	})

	t.Run("into temp dir", func(t *testing.T) {
		v, err := New(zipPath)
		require.NoError(t, err)
		tmp := testutil.CreateTempDir(t)

		require.NoError(t, v.Expand(tmp))
		assert.Equal(t, filepath.Join(tmp, v.UUID), v.InputPath())
		images, err := v.Images()
		require.NoError(t, err)
		assert.Len(t, images, 2)
		assert.Equal(t, "001", images[0].Key)

		want := testutil.DefaultPageConfig()
		want.Size = testutil.SmallSize
		got := testutil.LoadImage(t, filepath.Join(v.InputPath(), images[0].RelPath))
		assert.True(t, testutil.CompareImages(testutil.GeneratePage(want), got, 0), "extracted page differs from the archived one")
	})

	t.Run("next to archive", func(t *testing.T) {
		v, err := New(zipPath)
		require.NoError(t, err)

		require.NoError(t, v.Expand(""))
		assert.Equal(t, filepath.Join(parent, "T", "v"), v.InputPath())
		assert.True(t, testutil.FileExists(filepath.Join(parent, "T", "v", "001.png")))
	})

	t.Run("directory is untouched", func(t *testing.T) {
		v, err := New(filepath.Join(parent, "T", "v"))
		require.NoError(t, err)
		before := v.InputPath()
		require.NoError(t, v.Expand(testutil.CreateTempDir(t)))
		assert.Equal(t, before, v.InputPath())
	})
}

func TestCollection_TitlesAndOrder(t *testing.T) {
	parent := testutil.CreateTempDir(t)
	v10 := testutil.BuildVolume(t, parent, testutil.VolumeFixture{Title: "A", Name: "vol10", Pages: []string{"a.png"}})
	v2 := testutil.BuildVolume(t, parent, testutil.VolumeFixture{Title: "A", Name: "vol2", Pages: []string{"a.png"}})
	b1 := testutil.BuildVolume(t, parent, testutil.VolumeFixture{Title: "B", Name: "vol1", Pages: []string{"a.png"}})

	c := NewCollection()
	for _, p := range []string{v10, b1, v2, v2} {
		require.NoError(t, c.Add(p))
	}
	assert.Equal(t, 3, c.Len())

	vols := c.Volumes()
	assert.Equal(t, []string{v2, v10, b1}, []string{vols[0].InputPath(), vols[1].InputPath(), vols[2].InputPath()})
	assert.Same(t, vols[0].Title, vols[1].Title)

	titles := c.Titles()
	require.Len(t, titles, 2)
	assert.Equal(t, "A", titles[0].Name)
	assert.Equal(t, "B", titles[1].Name)

	assert.Error(t, c.Add(filepath.Join(parent, "missing")))
}

func TestScanParent(t *testing.T) {
	parent := testutil.CreateTempDir(t)
	require.NoError(t, os.MkdirAll(filepath.Join(parent, "_ocr", "x"), 0o750))
	require.NoError(t, os.MkdirAll(filepath.Join(parent, "vol10"), 0o750))
	require.NoError(t, os.MkdirAll(filepath.Join(parent, "vol2"), 0o750))
	testutil.WriteFile(t, filepath.Join(parent, "vol3.cbz"), []byte("zip"))
	testutil.WriteFile(t, filepath.Join(parent, "vol2.mokuro"), []byte("{}"))
	testutil.WriteFile(t, filepath.Join(parent, "notes.txt"), []byte("x"))

	paths, err := ScanParent(parent)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(parent, "vol2"),
		filepath.Join(parent, "vol3.cbz"),
		filepath.Join(parent, "vol10"),
	}, paths)

	_, err = ScanParent(filepath.Join(parent, "missing"))
	assert.True(t, errors.Is(err, ErrUnsupportedInput))
}

func writeManifest(t *testing.T, path string, fields map[string]any) {
	t.Helper()
	data, err := json.Marshal(fields)
	require.NoError(t, err)
	testutil.WriteFile(t, path, data)
}

func readTitleUUID(t *testing.T, path string) string {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.Unmarshal(testutil.ReadFile(t, path), &doc))
	id, _ := doc["title_uuid"].(string)
	return id
}

func TestTitle_ResolveUUID(t *testing.T) {
	t.Run("mints when empty", func(t *testing.T) {
		title := NewTitle(testutil.CreateTempDir(t))
		id, err := title.ResolveUUID(true)
		require.NoError(t, err)
		assert.NotEmpty(t, id)
		assert.Equal(t, id, title.UUID())
		assert.Zero(t, title.Warnings())
	})

	t.Run("adopts single value", func(t *testing.T) {
		dir := testutil.CreateTempDir(t)
		writeManifest(t, filepath.Join(dir, "a.mokuro"), map[string]any{"title_uuid": "abc", "pages": []any{}})
		writeManifest(t, filepath.Join(dir, "b.mokuro"), map[string]any{"pages": []any{}})

		title := NewTitle(dir)
		assert.Equal(t, "abc", title.UUID())
		assert.Equal(t, "abc", readTitleUUID(t, filepath.Join(dir, "b.mokuro")))
	})

	t.Run("without update leaves files alone", func(t *testing.T) {
		dir := testutil.CreateTempDir(t)
		writeManifest(t, filepath.Join(dir, "a.mokuro"), map[string]any{"pages": []any{}})

		id, err := NewTitle(dir).ResolveUUID(false)
		require.NoError(t, err)
		assert.NotEmpty(t, id)
		assert.Empty(t, readTitleUUID(t, filepath.Join(dir, "a.mokuro")))
	})
}

func TestTitle_ConvergenceAndStability(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	a, b := filepath.Join(dir, "a.mokuro"), filepath.Join(dir, "b.mokuro")
	writeManifest(t, a, map[string]any{"title_uuid": "one", "volume": "a", "custom": 42.0, "pages": []any{}})
	writeManifest(t, b, map[string]any{"title_uuid": "two", "volume": "b", "pages": []any{}})

	title := NewTitle(dir)
	id, err := title.ResolveUUID(true)
	require.NoError(t, err)
	assert.NotEqual(t, "one", id)
	assert.NotEqual(t, "two", id)
	assert.Equal(t, 1, title.Warnings())
	assert.Equal(t, id, readTitleUUID(t, a))
	assert.Equal(t, id, readTitleUUID(t, b))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(testutil.ReadFile(t, a), &doc))
	assert.InDelta(t, 42.0, doc["custom"], 0, "unknown fields survive the rewrite")

	infoA, err := os.Stat(a)
	require.NoError(t, err)
	before := testutil.ReadFile(t, a)

	again, err := NewTitle(dir).ResolveUUID(true)
	require.NoError(t, err)
	assert.Equal(t, id, again)
	infoA2, err := os.Stat(a)
	require.NoError(t, err)
	assert.Equal(t, infoA.ModTime(), infoA2.ModTime(), "stable resolution makes no writes")
	assert.Equal(t, before, testutil.ReadFile(t, a))
}
