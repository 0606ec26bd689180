// Package generator drives OCR over whole volumes: it reuses cached pages,
// computes the missing ones and writes the volume manifest.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/mokugo/internal/cache"
	"github.com/MeKo-Tech/mokugo/internal/metrics"
	"github.com/MeKo-Tech/mokugo/internal/source"
	"github.com/MeKo-Tech/mokugo/internal/version"
	"github.com/MeKo-Tech/mokugo/internal/volume"
)

// PageProcessor computes the OCR result of one page image.
type PageProcessor interface {
	Process(ctx context.Context, path string) (*cache.Page, error)
	Close() error
}

// PageProcessorFactory builds the processor, loading models as needed. It is
// called at most once per successful Generator initialization.
type PageProcessorFactory func(ctx context.Context) (PageProcessor, error)

// Option configures a Generator.
type Option func(*Generator)

// WithMetrics records page statistics in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Generator) { g.metrics = m }
}

// WithProgress reports page progress to p.
func WithProgress(p ProgressCallback) Option {
	return func(g *Generator) { g.progress = p }
}

// Generator processes volumes sequentially. It is not safe for concurrent use.
type Generator struct {
	factory  PageProcessorFactory
	metrics  *metrics.Metrics
	progress ProgressCallback

	initialized bool
	proc        PageProcessor
}

// New creates a generator. The factory is not called until a page actually
// needs computing.
func New(factory PageProcessorFactory, opts ...Option) *Generator {
	g := &Generator{factory: factory, progress: NoOpProgress{}}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SetProgress replaces the progress reporter.
func (g *Generator) SetProgress(p ProgressCallback) {
	if p == nil {
		p = NoOpProgress{}
	}
	g.progress = p
}

// Initialized reports whether the page processor has been built.
func (g *Generator) Initialized() bool { return g.initialized }

func (g *Generator) init(ctx context.Context) error {
	if g.initialized {
		return nil
	}
	start := time.Now()
	proc, err := g.factory(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize models: %w", err)
	}
	g.proc = proc
	g.initialized = true
	slog.Info("Models initialized", "duration", time.Since(start))
	return nil
}

// Close releases the page processor if it was built.
func (g *Generator) Close() error {
	if g.proc == nil {
		return nil
	}
	err := g.proc.Close()
	g.proc = nil
	g.initialized = false
	return err
}

// ProcessVolume brings the cache of v up to date and writes its manifest.
// With ignoreErrors page failures are logged and skipped; with noCache every
// page is recomputed.
func (g *Generator) ProcessVolume(ctx context.Context, v *volume.Volume, ignoreErrors, noCache bool) error {
	if err := os.MkdirAll(v.CacheDir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := migrate(v); err != nil {
		return err
	}

	images, err := v.Images()
	if err != nil {
		return fmt.Errorf("failed to list images: %w", err)
	}

	store := v.Store()
	root := v.InputPath()
	failed := 0
	g.progress.OnStart(v.Name, len(images))
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := g.processPage(ctx, store, root, img, noCache); err != nil {
			g.metrics.PageFailed()
			g.progress.OnError(i+1, err)
			if !ignoreErrors {
				return fmt.Errorf("failed to process page %s of %s: %w", img.RelPath, v.Name, err)
			}
			slog.Error("Failed to process page", "volume", v.Name, "page", img.RelPath, "error", err)
			failed++
		}
		g.progress.OnProgress(i+1, len(images))
	}
	g.progress.OnComplete()

	if err := GenerateManifest(v, ignoreErrors); err != nil {
		return err
	}
	if failed > 0 {
		slog.Warn("Volume partially processed", "volume", v.Name, "failed_pages", failed, "pages", len(images))
		v.Status = volume.PartiallyProcessed
	}
	return nil
}

func (g *Generator) processPage(ctx context.Context, store cache.Store, root string, img source.Entry, noCache bool) error {
	if !noCache {
		_, err := store.Load(img.Key)
		if err == nil {
			g.metrics.PageCached()
			return nil
		}
		if store.Exists(img.Key) {
			slog.Warn("Recomputing unreadable cache entry", "page", img.RelPath, "error", err)
		}
	}

	if err := g.init(ctx); err != nil {
		return err
	}
	start := time.Now()
	page, err := g.proc.Process(ctx, filepath.Join(root, filepath.FromSlash(img.RelPath)))
	if err != nil {
		return err
	}
	lines := 0
	for _, b := range page.Blocks {
		lines += len(b.Lines)
	}
	g.metrics.ObservePage(time.Since(start), len(page.Blocks), lines)
	return store.Save(img.Key, page)
}

// migrate seeds the cache from pages embedded in a manifest found at load
// time. Existing cache entries win.
func migrate(v *volume.Volume) error {
	if v.Prior == nil {
		return nil
	}
	store := v.Store()
	migrated := 0
	for _, p := range v.Prior.Pages {
		if p.ImgPath == "" {
			continue
		}
		key := strings.TrimSuffix(p.ImgPath, path.Ext(p.ImgPath))
		if store.Exists(key) {
			continue
		}
		page := p.Page
		if err := store.Save(key, &page); err != nil {
			return fmt.Errorf("failed to migrate page %s: %w", p.ImgPath, err)
		}
		migrated++
	}
	if migrated > 0 {
		slog.Info("Migrated pages from manifest", "volume", v.Name, "pages", migrated)
	}
	return nil
}

// GenerateManifest assembles every cached page that still has an image into
// the volume manifest and marks the volume processed, or partially processed
// when unreadable pages were skipped.
func GenerateManifest(v *volume.Volume, ignoreErrors bool) error {
	cached, err := v.CachedPages()
	if err != nil {
		return fmt.Errorf("failed to list cache entries: %w", err)
	}
	images, err := v.Images()
	if err != nil {
		return fmt.Errorf("failed to list images: %w", err)
	}
	imgPaths := make(map[string]string, len(images))
	for _, img := range images {
		imgPaths[img.Key] = img.RelPath
	}

	title := v.Title
	if title == nil {
		title = volume.NewTitle(v.TitleDir)
	}
	m := &cache.Manifest{
		Version:    version.Format,
		Title:      title.Name,
		TitleUUID:  title.UUID(),
		Volume:     v.Name,
		VolumeUUID: v.UUID,
		Pages:      make([]cache.ManifestPage, 0, len(cached)),
	}

	store := v.Store()
	skipped := 0
	for _, entry := range cached {
		imgPath, ok := imgPaths[entry.Key]
		if !ok {
			slog.Debug("Skipping cache entry without image", "volume", v.Name, "page", entry.Key)
			continue
		}
		page, err := store.Load(entry.Key)
		if err != nil {
			if !ignoreErrors {
				return fmt.Errorf("failed to load page %s of %s: %w", entry.Key, v.Name, err)
			}
			slog.Error("Skipping unreadable page", "volume", v.Name, "page", entry.Key, "error", err)
			skipped++
			continue
		}
		m.Pages = append(m.Pages, cache.ManifestPage{Page: *page, ImgPath: imgPath})
	}

	if err := cache.SaveManifest(v.ManifestPath, m); err != nil {
		return err
	}
	v.Status = volume.Processed
	if skipped > 0 {
		v.Status = volume.PartiallyProcessed
	}
	slog.Info("Manifest written", "volume", v.Name, "path", v.ManifestPath, "pages", len(m.Pages))
	return nil
}
