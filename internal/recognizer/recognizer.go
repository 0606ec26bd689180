// Package recognizer turns cropped text-line images into text.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/mokugo/internal/onnx"
)

// Backend names accepted by New.
const (
	BackendONNX      = "onnx"
	BackendTesseract = "tesseract"
	BackendNone      = "none"
)

// ErrNoBackend is returned when the requested backend is not linked in.
var ErrNoBackend = errors.New("recognizer: backend not available in this build")

// Recognizer reads the text of one line chunk.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
	Close() error
}

// Config holds configuration for the text recognizer.
type Config struct {
	Backend     string
	EncoderPath string
	DecoderPath string
	VocabPath   string
	LibraryPath string
	// MaxLength caps the number of decoded tokens, start token included.
	MaxLength  int
	NumThreads int
	// Language is the Tesseract language pack.
	Language string
	GPU      onnx.GPUConfig
}

// DefaultConfig returns a default recognizer configuration.
func DefaultConfig() Config {
	return Config{
		Backend:   BackendONNX,
		MaxLength: 300,
		Language:  "jpn",
		GPU:       onnx.DefaultGPUConfig(),
	}
}

// Validate checks the configuration for the selected backend.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendONNX:
		if c.EncoderPath == "" || c.DecoderPath == "" || c.VocabPath == "" {
			return errors.New("onnx backend needs encoder, decoder and vocab paths")
		}
		if c.MaxLength < 2 {
			return fmt.Errorf("max length must be at least 2, got %d", c.MaxLength)
		}
	case BackendTesseract:
		if c.Language == "" {
			return errors.New("tesseract backend needs a language")
		}
	case BackendNone:
	default:
		return fmt.Errorf("unknown recognizer backend %q", c.Backend)
	}
	if c.NumThreads < 0 {
		return errors.New("num threads must be non-negative")
	}
	return onnx.ValidateGPUConfig(c.GPU)
}

// New builds the recognizer selected by cfg.Backend.
func New(cfg Config) (Recognizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid recognizer config: %w", err)
	}
	switch cfg.Backend {
	case BackendTesseract:
		return NewTesseract(cfg.Language)
	case BackendNone:
		return Nop{}, nil
	default:
		return NewMangaOCR(cfg)
	}
}

// Nop recognizes nothing.
type Nop struct{}

// Recognize returns an empty string.
func (Nop) Recognize(context.Context, image.Image) (string, error) { return "", nil }

// Close is a no-op.
func (Nop) Close() error { return nil }
