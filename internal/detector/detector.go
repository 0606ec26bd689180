// Package detector finds text blocks and their lines on a manga page.
package detector

import (
	"context"
	"image"

	"github.com/MeKo-Tech/mokugo/internal/utils"
)

// Detector locates text on a page image.
type Detector interface {
	Detect(ctx context.Context, img image.Image) (*Result, error)
	Close() error
}

// Result is the detection output for one page. Masks have the page's size.
type Result struct {
	// Mask is the raw text segmentation.
	Mask *image.Gray
	// RefinedMask keeps only mask pixels inside detected blocks. Line chunking
	// reads glyph density from it.
	RefinedMask *image.Gray
	Blocks      []Block
}

// Block is one text region.
type Block struct {
	Box      utils.Box
	Vertical bool
	FontSize float64
	// Lines are line quads in reading order, corners ordered TL, TR, BR, BL.
	Lines []utils.Quad
}
