// Package page runs detection, line chunking and recognition on a single
// page image.
package page

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"time"

	"github.com/MeKo-Tech/mokugo/internal/cache"
	"github.com/MeKo-Tech/mokugo/internal/chunker"
	"github.com/MeKo-Tech/mokugo/internal/detector"
	"github.com/MeKo-Tech/mokugo/internal/recognizer"
	"github.com/MeKo-Tech/mokugo/internal/utils"
)

// ErrInvalidImage reports a page file that cannot be decoded.
var ErrInvalidImage = errors.New("invalid image")

// Options controls page processing.
type Options struct {
	TextHeight         int
	MaxRatioVertical   float64
	MaxRatioHorizontal float64
	AnchorWindow       float64
	// DisableOCR skips both models and reports pages without blocks.
	DisableOCR bool
}

// DefaultOptions returns the standard chunking parameters.
func DefaultOptions() Options {
	return Options{
		TextHeight:         chunker.DefaultTextHeight,
		MaxRatioVertical:   chunker.DefaultMaxRatioVertical,
		MaxRatioHorizontal: chunker.DefaultMaxRatioHorizontal,
		AnchorWindow:       chunker.DefaultAnchorWindow,
	}
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.TextHeight <= 0 {
		return fmt.Errorf("text height must be positive, got %d", o.TextHeight)
	}
	if o.MaxRatioVertical <= 0 || o.MaxRatioHorizontal <= 0 {
		return errors.New("max ratios must be positive")
	}
	if o.AnchorWindow <= 0 {
		return errors.New("anchor window must be positive")
	}
	return nil
}

func (o Options) chunkOptions(vertical bool) chunker.Options {
	ratio := o.MaxRatioHorizontal
	if vertical {
		ratio = o.MaxRatioVertical
	}
	return chunker.Options{TextHeight: o.TextHeight, MaxAspectRatio: ratio, AnchorWindow: o.AnchorWindow}
}

// Processor turns a page image into a cache.Page.
type Processor struct {
	det  detector.Detector
	rec  recognizer.Recognizer
	opts Options
}

// NewProcessor creates a processor. det and rec may be nil when
// opts.DisableOCR is set.
func NewProcessor(det detector.Detector, rec recognizer.Recognizer, opts Options) *Processor {
	return &Processor{det: det, rec: rec, opts: opts}
}

// Close releases both collaborators.
func (p *Processor) Close() error {
	var errs []error
	if p.det != nil {
		errs = append(errs, p.det.Close())
	}
	if p.rec != nil {
		errs = append(errs, p.rec.Close())
	}
	return errors.Join(errs...)
}

// Process reads the image at path and returns its OCR result.
func (p *Processor) Process(ctx context.Context, path string) (*cache.Page, error) {
	img, meta, err := utils.LoadImage(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	return p.ProcessImage(ctx, img, meta.Width, meta.Height)
}

// ProcessImage runs the pipeline on an already decoded page.
func (p *Processor) ProcessImage(ctx context.Context, img image.Image, width, height int) (*cache.Page, error) {
	page := cache.NewPage(width, height)
	if p.opts.DisableOCR {
		return page, nil
	}
	if p.det == nil || p.rec == nil {
		return nil, errors.New("processor has no detector or recognizer")
	}

	start := time.Now()
	res, err := p.det.Detect(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("failed to detect text: %w", err)
	}
	slog.Debug("Detection completed", "blocks", len(res.Blocks), "duration", time.Since(start))

	var mask image.Image
	switch {
	case res.RefinedMask != nil:
		mask = res.RefinedMask
	case res.Mask != nil:
		mask = res.Mask
	}

	start = time.Now()
	fw, fh := float64(width), float64(height)
	for _, blk := range res.Blocks {
		box := blk.Box.Clamp(fw, fh)
		out := cache.Block{
			Box:         [4]float64{box.MinX, box.MinY, box.MaxX, box.MaxY},
			Vertical:    blk.Vertical,
			FontSize:    blk.FontSize,
			LinesCoords: make([][][2]float64, 0, len(blk.Lines)),
			Lines:       make([]string, 0, len(blk.Lines)),
		}
		for _, quad := range blk.Lines {
			text, err := p.recognizeLine(ctx, img, mask, quad, blk)
			if err != nil {
				return nil, err
			}
			out.LinesCoords = append(out.LinesCoords, polygon(quad))
			out.Lines = append(out.Lines, text)
		}
		page.Blocks = append(page.Blocks, out)
	}
	slog.Debug("Recognition completed", "blocks", len(page.Blocks), "duration", time.Since(start))
	return page, nil
}

func (p *Processor) recognizeLine(ctx context.Context, img, mask image.Image, quad utils.Quad, blk detector.Block) (string, error) {
	line := utils.TransformLine(img, quad, blk.Vertical, blk.FontSize, p.opts.TextHeight)
	if line == nil {
		return "", nil
	}
	var lineMask image.Image
	if mask != nil {
		lineMask = utils.TransformLine(mask, quad, blk.Vertical, blk.FontSize, p.opts.TextHeight)
	}

	var sb strings.Builder
	for _, chunk := range chunker.Chunk(line, lineMask, p.opts.chunkOptions(blk.Vertical)).Chunks() {
		if blk.Vertical {
			chunk = utils.Rotate90CW(chunk)
		}
		text, err := p.rec.Recognize(ctx, chunk)
		if err != nil {
			return "", fmt.Errorf("failed to recognize line: %w", err)
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}

func polygon(q utils.Quad) [][2]float64 {
	out := make([][2]float64, len(q))
	for i, pt := range q {
		out[i] = [2]float64{pt.X, pt.Y}
	}
	return out
}
