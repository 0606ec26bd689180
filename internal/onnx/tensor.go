package onnx

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// Tensor is a row-major float32 tensor, NCHW for images.
type Tensor struct {
	Data  []float32
	Shape []int64
}

// NewImageTensor builds a single-image tensor with shape [1, C, H, W].
func NewImageTensor(data []float32, c, h, w int) (Tensor, error) {
	if data == nil {
		return Tensor{}, errors.New("nil data")
	}
	if expected := c * h * w; len(data) != expected {
		return Tensor{}, fmt.Errorf("unexpected data length: got %d, want %d", len(data), expected)
	}
	return Tensor{Data: data, Shape: []int64{1, int64(c), int64(h), int64(w)}}, nil
}

// ValidateNCHW ensures a shape is [N, C, H, W] with positive dimensions.
func ValidateNCHW(shape []int64) error {
	if len(shape) != 4 {
		return fmt.Errorf("shape rank %d != 4", len(shape))
	}
	for i, v := range shape {
		if v <= 0 {
			return fmt.Errorf("dimension %d must be > 0, got %d", i, v)
		}
	}
	return nil
}

// VerifyImageTensor checks that the data length matches the NCHW shape.
func VerifyImageTensor(t Tensor) error {
	if err := ValidateNCHW(t.Shape); err != nil {
		return err
	}
	expected := int(t.Shape[0] * t.Shape[1] * t.Shape[2] * t.Shape[3])
	if len(t.Data) != expected {
		return fmt.Errorf("tensor data length %d != expected %d for shape %v", len(t.Data), expected, t.Shape)
	}
	return nil
}

// Normalization maps 8-bit channel values v to (v/255 - Mean) / Std.
type Normalization struct {
	Mean [3]float32
	Std  [3]float32
}

// UnitScale maps channels to [0, 1].
var UnitScale = Normalization{Std: [3]float32{1, 1, 1}}

// SymmetricScale maps channels to [-1, 1].
var SymmetricScale = Normalization{Mean: [3]float32{0.5, 0.5, 0.5}, Std: [3]float32{0.5, 0.5, 0.5}}

// ImageToCHW converts img to RGB planes in CHW order. Pixels outside img
// (when w or h exceed its bounds) are zero before normalization.
func ImageToCHW(img image.Image, w, h int, norm Normalization) []float32 {
	out := make([]float32, 3*w*h)
	b := img.Bounds()
	plane := w * h
	for y := range h {
		for x := range w {
			var r, g, bl uint8
			if x < b.Dx() && y < b.Dy() {
				c, _ := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				r, g, bl = c.R, c.G, c.B
			}
			i := y*w + x
			out[i] = (float32(r)/255 - norm.Mean[0]) / norm.Std[0]
			out[plane+i] = (float32(g)/255 - norm.Mean[1]) / norm.Std[1]
			out[2*plane+i] = (float32(bl)/255 - norm.Mean[2]) / norm.Std[2]
		}
	}
	return out
}

// TensorStats returns min, max and mean of data for debug output.
func TensorStats(data []float32) (float32, float32, float32) {
	if len(data) == 0 {
		return 0, 0, 0
	}
	minVal, maxVal := data[0], data[0]
	var sum float64
	for _, v := range data {
		minVal = min(minVal, v)
		maxVal = max(maxVal, v)
		sum += float64(v)
	}
	return minVal, maxVal, float32(sum / float64(len(data)))
}
