//go:build tesseract

package recognizer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract recognizes chunks with a local Tesseract installation. Vertical
// chunks arrive rotated, so the horizontal language model is used.
type Tesseract struct {
	client *gosseract.Client
}

// NewTesseract creates a Tesseract recognizer for language.
func NewTesseract(language string) (Recognizer, error) {
	c := gosseract.NewClient()
	if err := c.SetLanguage(language); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("set language: %w", err)
	}
	if err := c.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("set page segmentation mode: %w", err)
	}
	return &Tesseract{client: c}, nil
}

// Recognize reads the text of one chunk.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode chunk: %w", err)
	}
	if err := t.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := t.client.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return PostProcessText(strings.TrimSpace(text)), nil
}

// Close releases the Tesseract client.
func (t *Tesseract) Close() error {
	return t.client.Close()
}
