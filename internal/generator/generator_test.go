package generator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/mokugo/internal/cache"
	"github.com/MeKo-Tech/mokugo/internal/metrics"
	"github.com/MeKo-Tech/mokugo/internal/page"
	"github.com/MeKo-Tech/mokugo/internal/testutil"
	"github.com/MeKo-Tech/mokugo/internal/version"
	"github.com/MeKo-Tech/mokugo/internal/volume"
)

var errBoom = errors.New("boom")

// fakeProcessor writes the page file name as the only line of one block.
type fakeProcessor struct {
	mu     sync.Mutex
	calls  []string
	fail   map[string]bool
	closed bool
}

func (f *fakeProcessor) Process(_ context.Context, path string) (*cache.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := filepath.Base(path)
	f.calls = append(f.calls, name)
	if f.fail[name] {
		return nil, errBoom
	}
	p := cache.NewPage(320, 240)
	p.Blocks = []cache.Block{{
		Box:         [4]float64{1, 2, 30, 40},
		FontSize:    12,
		LinesCoords: [][][2]float64{{{1, 2}, {30, 2}, {30, 40}, {1, 40}}},
		Lines:       []string{name},
	}}
	return p, nil
}

func (f *fakeProcessor) Close() error {
	f.closed = true
	return nil
}

// harness counts factory invocations.
type harness struct {
	proc      *fakeProcessor
	factories int
}

func newHarness() *harness { return &harness{proc: &fakeProcessor{}} }

func (h *harness) factory(context.Context) (PageProcessor, error) {
	h.factories++
	return h.proc, nil
}

func buildVolume(t *testing.T, parent, name string, pages int) *volume.Volume {
	t.Helper()
	dir := testutil.BuildVolume(t, parent, testutil.VolumeFixture{
		Title: "title",
		Name:  name,
		Pages: testutil.NumberedPages(pages, ".png"),
	})
	return loadVolume(t, dir)
}

func loadVolume(t *testing.T, path string) *volume.Volume {
	t.Helper()
	vc := volume.NewCollection()
	require.NoError(t, vc.Add(path))
	return vc.Volumes()[0]
}

// fileState is what a rewrite would change: content and modification time.
type fileState struct {
	Data    string
	ModTime time.Time
}

func snapshotFiles(t *testing.T, dir string, names ...string) map[string]fileState {
	t.Helper()
	out := make(map[string]fileState, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		require.NoError(t, err)
		out[name] = fileState{Data: string(testutil.ReadFile(t, path)), ModTime: info.ModTime()}
	}
	return out
}

func TestProcessVolume(t *testing.T) {
	v := buildVolume(t, t.TempDir(), "vol1", 3)
	h := newHarness()
	g := New(h.factory)

	require.NoError(t, g.ProcessVolume(context.Background(), v, false, false))
	assert.Equal(t, 1, h.factories)
	assert.Equal(t, []string{"001.png", "002.png", "003.png"}, h.proc.calls)
	assert.Equal(t, volume.Processed, v.Status)
	assert.True(t, g.Initialized())

	m, err := cache.LoadManifest(v.ManifestPath)
	require.NoError(t, err)
	assert.Equal(t, version.Format, m.Version)
	assert.Equal(t, "title", m.Title)
	assert.Equal(t, v.Title.UUID(), m.TitleUUID)
	assert.Equal(t, "vol1", m.Volume)
	assert.Equal(t, v.UUID, m.VolumeUUID)
	require.Len(t, m.Pages, 3)
	for i, p := range m.Pages {
		assert.Equal(t, testutil.NumberedPages(3, ".png")[i], p.ImgPath)
		assert.Equal(t, []string{p.ImgPath}, p.Blocks[0].Lines)
	}

	assert.FileExists(t, filepath.Join(v.CacheDir, "001.json"))
	require.NoError(t, g.Close())
	assert.True(t, h.proc.closed)
}

func TestProcessVolumeIsIdempotent(t *testing.T) {
	parent := t.TempDir()
	v := buildVolume(t, parent, "vol1", 3)
	require.NoError(t, New(newHarness().factory).ProcessVolume(context.Background(), v, false, false))
	first := testutil.ReadFile(t, v.ManifestPath)
	pages := snapshotFiles(t, v.CacheDir, "001.json", "002.json", "003.json")

	again := loadVolume(t, v.InputPath())
	assert.Equal(t, volume.Processed, again.Status)
	h := newHarness()
	g := New(h.factory)
	require.NoError(t, g.ProcessVolume(context.Background(), again, false, false))

	assert.Zero(t, h.factories, "models are never loaded when every page is cached")
	assert.Empty(t, h.proc.calls)
	assert.False(t, g.Initialized())
	assert.Equal(t, string(first), string(testutil.ReadFile(t, again.ManifestPath)))
	assert.Equal(t, pages, snapshotFiles(t, v.CacheDir, "001.json", "002.json", "003.json"))
}

func TestProcessVolumeRecomputesMissingEntry(t *testing.T) {
	v := buildVolume(t, t.TempDir(), "vol1", 3)
	require.NoError(t, New(newHarness().factory).ProcessVolume(context.Background(), v, false, false))
	require.NoError(t, os.Remove(filepath.Join(v.CacheDir, "002.json")))
	siblings := snapshotFiles(t, v.CacheDir, "001.json", "003.json")

	h := newHarness()
	require.NoError(t, New(h.factory).ProcessVolume(context.Background(), loadVolume(t, v.InputPath()), false, false))
	assert.Equal(t, []string{"002.png"}, h.proc.calls)
	assert.Equal(t, siblings, snapshotFiles(t, v.CacheDir, "001.json", "003.json"), "cached pages are not rewritten")
	assert.FileExists(t, filepath.Join(v.CacheDir, "002.json"))

	m, err := cache.LoadManifest(v.ManifestPath)
	require.NoError(t, err)
	assert.Len(t, m.Pages, 3)
}

func TestProcessVolumeRecomputesMalformedEntry(t *testing.T) {
	v := buildVolume(t, t.TempDir(), "vol1", 2)
	require.NoError(t, New(newHarness().factory).ProcessVolume(context.Background(), v, false, false))
	testutil.WriteFile(t, filepath.Join(v.CacheDir, "001.json"), []byte(`{"version": "0.2.1", "blocks": [`))

	h := newHarness()
	require.NoError(t, New(h.factory).ProcessVolume(context.Background(), loadVolume(t, v.InputPath()), false, false))
	assert.Equal(t, []string{"001.png"}, h.proc.calls)

	_, err := v.Store().Load("001")
	assert.NoError(t, err)
}

func TestProcessVolumeNoCache(t *testing.T) {
	v := buildVolume(t, t.TempDir(), "vol1", 2)
	require.NoError(t, New(newHarness().factory).ProcessVolume(context.Background(), v, false, false))

	h := newHarness()
	require.NoError(t, New(h.factory).ProcessVolume(context.Background(), loadVolume(t, v.InputPath()), false, true))
	assert.Len(t, h.proc.calls, 2)
	assert.Equal(t, 1, h.factories)
}

func TestProcessVolumePageErrors(t *testing.T) {
	t.Run("ignored", func(t *testing.T) {
		v := buildVolume(t, t.TempDir(), "vol1", 3)
		h := newHarness()
		h.proc.fail = map[string]bool{"002.png": true}
		m := metrics.New()

		require.NoError(t, New(h.factory, WithMetrics(m)).ProcessVolume(context.Background(), v, true, false))
		assert.Len(t, h.proc.calls, 3)

		manifest, err := cache.LoadManifest(v.ManifestPath)
		require.NoError(t, err)
		require.Len(t, manifest.Pages, 2)
		assert.Equal(t, "001.png", manifest.Pages[0].ImgPath)
		assert.Equal(t, "003.png", manifest.Pages[1].ImgPath)
		require.Equal(t, volume.PartiallyProcessed, v.Status)
	})

	t.Run("fatal", func(t *testing.T) {
		v := buildVolume(t, t.TempDir(), "vol1", 3)
		h := newHarness()
		h.proc.fail = map[string]bool{"002.png": true}

		err := New(h.factory).ProcessVolume(context.Background(), v, false, false)
		require.ErrorIs(t, err, errBoom)
		assert.Contains(t, err.Error(), "002.png")
		assert.Equal(t, []string{"001.png", "002.png"}, h.proc.calls)
		assert.NoFileExists(t, v.ManifestPath)
	})
}

func TestProcessVolumeInitFailure(t *testing.T) {
	v := buildVolume(t, t.TempDir(), "vol1", 2)
	calls := 0
	g := New(func(context.Context) (PageProcessor, error) {
		calls++
		return nil, errBoom
	})
	err := g.ProcessVolume(context.Background(), v, false, false)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, calls)
	assert.False(t, g.Initialized())
}

func TestProcessVolumeMigratesManifestPages(t *testing.T) {
	parent := t.TempDir()
	v := buildVolume(t, parent, "vol1", 2)
	require.NoError(t, New(newHarness().factory).ProcessVolume(context.Background(), v, false, false))
	require.NoError(t, os.RemoveAll(v.CacheDir))

	migrated := loadVolume(t, v.InputPath())
	require.NotNil(t, migrated.Prior)
	assert.Equal(t, volume.Processed, migrated.Status)

	h := newHarness()
	require.NoError(t, New(h.factory).ProcessVolume(context.Background(), migrated, false, false))
	assert.Empty(t, h.proc.calls)
	assert.Zero(t, h.factories)

	p, err := migrated.Store().Load("002")
	require.NoError(t, err)
	assert.Equal(t, []string{"002.png"}, p.Blocks[0].Lines)
	assert.NotContains(t, string(testutil.ReadFile(t, migrated.Store().Path("002"))), "img_path")
}

func TestProcessVolumeKeepsIdentityOfDamagedManifest(t *testing.T) {
	v := buildVolume(t, t.TempDir(), "vol1", 2)
	testutil.WriteFile(t, v.ManifestPath, []byte(`{
  "volume_uuid": "KEEP-ME",
  "pages": [
    {"img_width": 7, "img_height": 7, "blocks": [], "img_path": "001.png"},
    {"img_width": 7, "img_height": 7, "img_path": "002.png", "blocks": [{"lines": ["x"]}]}
  ]
}`))

	damaged := loadVolume(t, v.InputPath())
	h := newHarness()
	require.NoError(t, New(h.factory).ProcessVolume(context.Background(), damaged, false, false))
	assert.Equal(t, []string{"002.png"}, h.proc.calls, "the valid page is migrated, the broken one recomputed")

	m, err := cache.LoadManifest(v.ManifestPath)
	require.NoError(t, err)
	assert.Equal(t, "KEEP-ME", m.VolumeUUID)
	require.Len(t, m.Pages, 2)
	assert.Equal(t, 7, m.Pages[0].ImgWidth)
}

func TestMigrateKeepsExistingEntries(t *testing.T) {
	v := buildVolume(t, t.TempDir(), "vol1", 1)
	require.NoError(t, New(newHarness().factory).ProcessVolume(context.Background(), v, false, false))

	// A newer cache entry must not be overwritten by the manifest copy.
	newer := cache.NewPage(1, 1)
	require.NoError(t, v.Store().Save("001", newer))

	again := loadVolume(t, v.InputPath())
	require.NoError(t, migrate(again))
	p, err := again.Store().Load("001")
	require.NoError(t, err)
	assert.Equal(t, 1, p.ImgWidth)
}

func TestGenerateManifest(t *testing.T) {
	v := buildVolume(t, t.TempDir(), "vol1", 2)
	store := v.Store()
	require.NoError(t, store.Save("001", cache.NewPage(10, 10)))
	require.NoError(t, store.Save("orphan", cache.NewPage(10, 10)))

	require.NoError(t, GenerateManifest(v, false))
	m, err := cache.LoadManifest(v.ManifestPath)
	require.NoError(t, err)
	require.Len(t, m.Pages, 1, "only entries with an image are listed")
	assert.Equal(t, "001.png", m.Pages[0].ImgPath)

	assert.Equal(t, volume.Processed, v.Status)

	testutil.WriteFile(t, store.Path("002"), []byte("not json"))
	assert.ErrorIs(t, GenerateManifest(v, false), cache.ErrCacheRead)
	assert.NoError(t, GenerateManifest(v, true))
	assert.Equal(t, volume.PartiallyProcessed, v.Status)
}

func TestEndToEndEmptyPage(t *testing.T) {
	v := buildVolume(t, t.TempDir(), "vol1", 1)
	det := &testutil.FakeDetector{}
	rec := &testutil.FakeRecognizer{}
	g := New(func(context.Context) (PageProcessor, error) {
		return page.NewProcessor(det, rec, page.DefaultOptions()), nil
	})

	require.NoError(t, g.ProcessVolume(context.Background(), v, false, false))
	assert.Equal(t, 1, det.Calls())
	assert.Zero(t, rec.Calls())

	raw := string(testutil.ReadFile(t, v.ManifestPath))
	assert.Contains(t, raw, `"blocks":[]`)
	assert.Contains(t, raw, `"img_path":"001.png"`)
	assert.True(t, strings.HasPrefix(raw, "{"))

	m, err := cache.LoadManifest(v.ManifestPath)
	require.NoError(t, err)
	require.Len(t, m.Pages, 1)
	assert.Empty(t, m.Pages[0].Blocks)
	assert.Equal(t, 320, m.Pages[0].ImgWidth)
}

func TestProcessVolumeNestedPages(t *testing.T) {
	dir := testutil.BuildVolume(t, t.TempDir(), testutil.VolumeFixture{
		Title: "title",
		Name:  "vol1",
		Pages: []string{"ch2/p1.png", "ch10/p1.png", "ch1/p1.png"},
	})
	v := loadVolume(t, dir)
	require.NoError(t, New(newHarness().factory).ProcessVolume(context.Background(), v, false, false))

	m, err := cache.LoadManifest(v.ManifestPath)
	require.NoError(t, err)
	var got []string
	for _, p := range m.Pages {
		got = append(got, p.ImgPath)
	}
	assert.Equal(t, []string{"ch1/p1.png", "ch2/p1.png", "ch10/p1.png"}, got)
	assert.FileExists(t, filepath.Join(v.CacheDir, "ch10", "p1.json"))
}
