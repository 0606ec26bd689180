package recognizer

import (
	"errors"
	"image"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/mokugo/internal/onnx"
)

// InputSize is the square side of the encoder input.
const InputSize = 224

// preprocess converts a line chunk to the encoder's [1,3,224,224] input:
// grayscale replicated to three channels, resized without keeping the aspect
// ratio, scaled to [-1,1].
func preprocess(img image.Image) (onnx.Tensor, error) {
	if img == nil {
		return onnx.Tensor{}, errors.New("input image is nil")
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return onnx.Tensor{}, errors.New("input image is empty")
	}
	gray := imaging.Grayscale(img)
	resized := imaging.Resize(gray, InputSize, InputSize, imaging.Linear)
	return onnx.NewImageTensor(onnx.ImageToCHW(resized, InputSize, InputSize, onnx.SymmetricScale), 3, InputSize, InputSize)
}
