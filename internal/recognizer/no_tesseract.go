//go:build !tesseract

package recognizer

import "fmt"

// NewTesseract reports ErrNoBackend; build with -tags=tesseract to link the
// Tesseract recognizer.
func NewTesseract(string) (Recognizer, error) {
	return nil, fmt.Errorf("%w: build with -tags=tesseract", ErrNoBackend)
}
