// Package chunker splits overlong text lines into crops that a recognition
// model can read. Cut points are placed at gaps between glyphs, found as
// minima of a smoothed foreground density profile.
package chunker

import (
	"image"
	"image/color"
	"iter"
	"math"

	"github.com/disintegration/imaging"
)

// Defaults used for canonical line crops.
const (
	DefaultTextHeight         = 64
	DefaultMaxRatioHorizontal = 8
	DefaultMaxRatioVertical   = 16
	DefaultAnchorWindow       = 2
)

// Options controls how a line is split.
type Options struct {
	// TextHeight is the canonical line height the crop was resampled to.
	TextHeight int
	// MaxAspectRatio is the widest width/height ratio passed to recognition.
	MaxAspectRatio float64
	// AnchorWindow is the search window around each anchor, in text heights.
	AnchorWindow float64
}

// DefaultOptions returns the options for horizontal or vertical lines.
// Vertical lines get a larger allowance.
func DefaultOptions(vertical bool) Options {
	opts := Options{
		TextHeight:     DefaultTextHeight,
		MaxAspectRatio: DefaultMaxRatioHorizontal,
		AnchorWindow:   DefaultAnchorWindow,
	}
	if vertical {
		opts.MaxAspectRatio = DefaultMaxRatioVertical
	}
	return opts
}

// Result is a split line. Sub-images are produced lazily by Chunks.
type Result struct {
	line image.Image
	// Cuts are the x offsets (relative to the line's left edge) where the line
	// is split, in ascending order.
	Cuts []int
}

// Len returns the number of chunks.
func (r Result) Len() int { return len(r.Cuts) + 1 }

// Chunks yields the sub-images left to right. Without cuts it yields the
// original line image itself.
func (r Result) Chunks() iter.Seq2[int, image.Image] {
	return func(yield func(int, image.Image) bool) {
		if len(r.Cuts) == 0 {
			yield(0, r.line)
			return
		}
		b := r.line.Bounds()
		start := 0
		for i := 0; i <= len(r.Cuts); i++ {
			end := b.Dx()
			if i < len(r.Cuts) {
				end = r.Cuts[i]
			}
			rect := image.Rect(b.Min.X+start, b.Min.Y, b.Min.X+end, b.Max.Y)
			if !yield(i, subImage(r.line, rect)) {
				return
			}
			start = end
		}
	}
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

func subImage(img image.Image, r image.Rectangle) image.Image {
	if s, ok := img.(subImager); ok {
		return s.SubImage(r)
	}
	return imaging.Crop(img, r)
}

// Chunk splits line if its aspect ratio exceeds opts.MaxAspectRatio. mask is
// the foreground mask transformed exactly like line; it is only read when a
// split is needed.
func Chunk(line, mask image.Image, opts Options) Result {
	b := line.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return Result{line: line}
	}
	ratio := float64(w) / float64(h)
	if ratio <= opts.MaxAspectRatio {
		return Result{line: line}
	}

	n := int(math.Ceil(ratio / opts.MaxAspectRatio))
	density := Density(mask, w, opts.TextHeight)
	half := int(opts.AnchorWindow*float64(opts.TextHeight)) / 2

	cuts := make([]int, 0, n-1)
	for k := 1; k < n; k++ {
		anchor := int(float64(k) * float64(w) / float64(n))
		n0 := clamp(anchor-half, 0, w)
		n1 := clamp(anchor+half, 0, w)
		p := anchor
		if n1 > n0 {
			p = n0 + argmin(density[n0:n1])
		}
		cuts = append(cuts, p)
	}

	return Result{line: line, Cuts: normalizeCuts(cuts, w)}
}

// normalizeCuts makes cuts strictly increasing and strictly inside (0, w),
// dropping cuts that cannot fit.
func normalizeCuts(cuts []int, w int) []int {
	out := cuts[:0]
	prev := 0
	for i, c := range cuts {
		lo := prev + 1
		hi := w - (len(cuts) - i)
		if lo > hi {
			if lo >= w {
				break
			}
			hi = lo
		}
		c = clamp(c, lo, hi)
		out = append(out, c)
		prev = c
	}
	return out
}

// Density returns the per-column foreground profile of mask over width
// columns, smoothed with a Gaussian of textHeight samples and normalized to a
// maximum of 1. A nil or empty mask yields all zeros.
func Density(mask image.Image, width, textHeight int) []float64 {
	raw := make([]float64, width)
	if mask != nil {
		columnSums(mask, raw)
	}
	smoothed := convolveSame(raw, gaussianKernel(textHeight, float64(textHeight)/8))

	peak := 0.0
	for _, v := range smoothed {
		peak = math.Max(peak, v)
	}
	if peak > 0 {
		for i := range smoothed {
			smoothed[i] /= peak
		}
	}
	return smoothed
}

func columnSums(mask image.Image, out []float64) {
	b := mask.Bounds()
	cols := min(b.Dx(), len(out))
	if g, ok := mask.(*image.Gray); ok {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := g.Pix[g.PixOffset(b.Min.X, y):]
			for x := range cols {
				out[x] += float64(row[x]) / 255
			}
		}
		return
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := range cols {
			c, _ := color.GrayModel.Convert(mask.At(b.Min.X+x, y)).(color.Gray)
			out[x] += float64(c.Y) / 255
		}
	}
}

// gaussianKernel returns m samples of a Gaussian with the given standard
// deviation, centered on the middle of the window and peaking at 1.
func gaussianKernel(m int, std float64) []float64 {
	if m <= 0 {
		return []float64{1}
	}
	if std <= 0 {
		k := make([]float64, m)
		k[(m-1)/2] = 1
		return k
	}
	k := make([]float64, m)
	center := float64(m-1) / 2
	for i := range k {
		d := (float64(i) - center) / std
		k[i] = math.Exp(-0.5 * d * d)
	}
	return k
}

// convolveSame convolves a with k and returns the central len(a) samples of
// the full convolution.
func convolveSame(a, k []float64) []float64 {
	out := make([]float64, len(a))
	off := (len(k) - 1) / 2
	for i := range out {
		j := i + off
		var s float64
		for t := max(0, j-len(k)+1); t <= j && t < len(a); t++ {
			s += a[t] * k[j-t]
		}
		out[i] = s
	}
	return out
}

func argmin(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] < v[best] {
			best = i
		}
	}
	return best
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
