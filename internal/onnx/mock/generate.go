// Package mock builds synthetic model outputs for exercising post-processing
// without ONNX Runtime.
package mock

import (
	"image"
)

// ImageMap is a single-channel map with NCHW shape [1,1,H,W].
type ImageMap struct {
	Data   []float32
	Width  int
	Height int
}

// NewUniformMap creates a WxH map filled with value clamped to [0,1].
func NewUniformMap(w, h int, value float32) ImageMap {
	if w <= 0 || h <= 0 {
		return ImageMap{}
	}
	data := make([]float32, w*h)
	for i := range data {
		data[i] = clamp01(value)
	}
	return ImageMap{Data: data, Width: w, Height: h}
}

// NewRectMap creates a map that is hi inside any of rects and lo elsewhere.
func NewRectMap(w, h int, rects []image.Rectangle, hi, lo float32) ImageMap {
	m := NewUniformMap(w, h, lo)
	bounds := image.Rect(0, 0, w, h)
	for _, r := range rects {
		r = r.Intersect(bounds)
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				m.Data[y*w+x] = clamp01(hi)
			}
		}
	}
	return m
}

// Stack concatenates maps of equal size into one [1,C,H,W] buffer.
func Stack(maps ...ImageMap) []float32 {
	var out []float32
	for _, m := range maps {
		out = append(out, m.Data...)
	}
	return out
}

// BlockRow is one candidate in a YOLO-style block output: center, size,
// objectness and class scores.
type BlockRow struct {
	CX, CY, W, H float32
	Objectness   float32
	Classes      []float32
}

// NewBlockOutput flattens rows into a [1,N,5+classes] buffer.
func NewBlockOutput(rows []BlockRow, classes int) ([]float32, []int64) {
	stride := 5 + classes
	data := make([]float32, 0, len(rows)*stride)
	for _, r := range rows {
		data = append(data, r.CX, r.CY, r.W, r.H, r.Objectness)
		for c := range classes {
			var v float32
			if c < len(r.Classes) {
				v = r.Classes[c]
			}
			data = append(data, v)
		}
	}
	return data, []int64{1, int64(len(rows)), int64(stride)}
}

// Logits is a synthetic decoder output with shape [1, T, V].
type Logits struct {
	Data  []float32
	Shape []int64
}

// NewStepLogits builds logits whose argmax at step t is indices[t].
func NewStepLogits(indices []int, vocab int, high, low float32) Logits {
	if vocab <= 0 || len(indices) == 0 {
		return Logits{Shape: []int64{}}
	}
	steps := len(indices)
	data := make([]float32, steps*vocab)
	for i := range data {
		data[i] = low
	}
	for t, c := range indices {
		if c >= 0 && c < vocab {
			data[t*vocab+c] = high
		}
	}
	return Logits{Data: data, Shape: []int64{1, int64(steps), int64(vocab)}}
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
