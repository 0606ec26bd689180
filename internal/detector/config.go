package detector

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/mokugo/internal/onnx"
)

// Config holds comic text detector settings.
type Config struct {
	ModelPath   string
	LibraryPath string
	// InputSize is the square letterbox size fed to the model.
	InputSize int
	// ConfThreshold drops block candidates below objectness x class score.
	ConfThreshold float64
	// NMSThreshold is the IoU above which overlapping blocks are suppressed.
	NMSThreshold float64
	// MaskThreshold binarizes the segmentation map.
	MaskThreshold float64
	// LineThreshold binarizes the line probability map.
	LineThreshold float64
	// MinLineArea drops line components with fewer pixels, in model resolution.
	MinLineArea int
	NumThreads  int
	GPU         onnx.GPUConfig
}

// DefaultConfig returns the settings the comic text detector was trained with.
func DefaultConfig() Config {
	return Config{
		InputSize:     1024,
		ConfThreshold: 0.4,
		NMSThreshold:  0.35,
		MaskThreshold: 0.3,
		LineThreshold: 0.3,
		MinLineArea:   16,
		GPU:           onnx.DefaultGPUConfig(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.InputSize <= 0 || c.InputSize%32 != 0 {
		return fmt.Errorf("input size must be a positive multiple of 32, got %d", c.InputSize)
	}
	for name, v := range map[string]float64{
		"confidence threshold": c.ConfThreshold,
		"nms threshold":        c.NMSThreshold,
		"mask threshold":       c.MaskThreshold,
		"line threshold":       c.LineThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0,1], got %f", name, v)
		}
	}
	if c.MinLineArea < 0 {
		return errors.New("min line area must be non-negative")
	}
	if c.NumThreads < 0 {
		return errors.New("num threads must be non-negative")
	}
	return onnx.ValidateGPUConfig(c.GPU)
}
