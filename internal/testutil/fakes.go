package testutil

import (
	"context"
	"image"
	"sync"

	"github.com/MeKo-Tech/mokugo/internal/detector"
	"github.com/MeKo-Tech/mokugo/internal/utils"
)

// FakeDetector returns Blocks for every page and counts calls.
type FakeDetector struct {
	Blocks []detector.Block
	Err    error

	mu     sync.Mutex
	calls  int
	closed bool
}

// Detect implements detector.Detector.
func (d *FakeDetector) Detect(_ context.Context, img image.Image) (*detector.Result, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	b := img.Bounds()
	mask := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	blocks := make([]detector.Block, len(d.Blocks))
	copy(blocks, d.Blocks)
	return &detector.Result{Mask: mask, RefinedMask: mask, Blocks: blocks}, nil
}

// Close implements detector.Detector.
func (d *FakeDetector) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

// Calls returns the number of Detect calls.
func (d *FakeDetector) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// Closed reports whether Close was called.
func (d *FakeDetector) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// FakeRecognizer answers every chunk with Text and counts calls.
type FakeRecognizer struct {
	Text string
	Err  error

	mu     sync.Mutex
	calls  int
	widths []int
}

// Recognize implements recognizer.Recognizer.
func (r *FakeRecognizer) Recognize(_ context.Context, img image.Image) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.widths = append(r.widths, img.Bounds().Dx())
	if r.Err != nil {
		return "", r.Err
	}
	return r.Text, nil
}

// Close implements recognizer.Recognizer.
func (r *FakeRecognizer) Close() error { return nil }

// Calls returns the number of Recognize calls.
func (r *FakeRecognizer) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// Widths returns the width of every recognized chunk in call order.
func (r *FakeRecognizer) Widths() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.widths...)
}

// RectQuad returns the axis-aligned quad x0,y0 to x1,y1.
func RectQuad(x0, y0, x1, y1 float64) utils.Quad {
	return utils.Quad{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
}

// TextBlock is a block of one line spanning box.
func TextBlock(box utils.Box, vertical bool) detector.Block {
	return detector.Block{
		Box:      box,
		Vertical: vertical,
		FontSize: min(box.Width(), box.Height()),
		Lines:    []utils.Quad{RectQuad(box.MinX, box.MinY, box.MaxX, box.MaxY)},
	}
}
