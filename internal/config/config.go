// Package config loads mokugo settings and converts them into the option
// types of the processing packages.
package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/mokugo/internal/detector"
	"github.com/MeKo-Tech/mokugo/internal/models"
	"github.com/MeKo-Tech/mokugo/internal/onnx"
	"github.com/MeKo-Tech/mokugo/internal/page"
	"github.com/MeKo-Tech/mokugo/internal/recognizer"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	det := detector.DefaultConfig()
	rec := recognizer.DefaultConfig()
	opts := page.DefaultOptions()
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		Models: ModelsConfig{
			Detector:         ArtifactConfig{Name: models.Detector().Name, URL: models.Detector().URL},
			Encoder:          ArtifactConfig{Name: models.Encoder().Name, URL: models.Encoder().URL},
			Decoder:          ArtifactConfig{Name: models.Decoder().Name, URL: models.Decoder().URL},
			Vocab:            ArtifactConfig{Name: models.Vocab().Name, URL: models.Vocab().URL},
			DownloadAttempts: models.DefaultAttempts,
		},
		Detector: DetectorConfig{
			InputSize:     det.InputSize,
			ConfThreshold: det.ConfThreshold,
			NMSThreshold:  det.NMSThreshold,
			MaskThreshold: det.MaskThreshold,
			LineThreshold: det.LineThreshold,
			MinLineArea:   det.MinLineArea,
		},
		Recognizer: RecognizerConfig{
			Backend:   rec.Backend,
			MaxLength: rec.MaxLength,
			Language:  rec.Language,
		},
		Chunker: ChunkerConfig{
			TextHeight:         opts.TextHeight,
			MaxRatioVertical:   opts.MaxRatioVertical,
			MaxRatioHorizontal: opts.MaxRatioHorizontal,
			AnchorWindow:       opts.AnchorWindow,
		},
		Run: RunConfig{
			Lock: true,
		},
		GPU: GPUConfig{
			MemoryLimit: "auto",
		},
	}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}
	validFormats := []string{"text", "json"}
	if !slices.Contains(validFormats, c.LogFormat) {
		return fmt.Errorf("invalid log format: %s (must be one of: %s)", c.LogFormat, strings.Join(validFormats, ", "))
	}

	for name, a := range map[string]ArtifactConfig{
		"detector": c.Models.Detector,
		"encoder":  c.Models.Encoder,
		"decoder":  c.Models.Decoder,
		"vocab":    c.Models.Vocab,
	} {
		if a.Name == "" {
			return fmt.Errorf("invalid models.%s.name: must not be empty", name)
		}
	}
	if c.Models.DownloadAttempts <= 0 {
		return fmt.Errorf("invalid models.download_attempts: %d (must be positive)", c.Models.DownloadAttempts)
	}

	if c.Detector.InputSize <= 0 || c.Detector.InputSize%32 != 0 {
		return fmt.Errorf("invalid detector.input_size: %d (must be a positive multiple of 32)", c.Detector.InputSize)
	}
	if err := validateThreshold(c.Detector.ConfThreshold, "detector.conf_threshold"); err != nil {
		return err
	}
	if err := validateThreshold(c.Detector.NMSThreshold, "detector.nms_threshold"); err != nil {
		return err
	}
	if err := validateThreshold(c.Detector.MaskThreshold, "detector.mask_threshold"); err != nil {
		return err
	}
	if err := validateThreshold(c.Detector.LineThreshold, "detector.line_threshold"); err != nil {
		return err
	}
	if c.Detector.NumThreads < 0 || c.Recognizer.NumThreads < 0 {
		return fmt.Errorf("invalid num_threads: must be non-negative")
	}

	validBackends := []string{recognizer.BackendONNX, recognizer.BackendTesseract, recognizer.BackendNone}
	if !slices.Contains(validBackends, c.Recognizer.Backend) {
		return fmt.Errorf("invalid recognizer backend: %s (must be one of: %s)", c.Recognizer.Backend, strings.Join(validBackends, ", "))
	}
	if c.Recognizer.MaxLength < 2 {
		return fmt.Errorf("invalid recognizer.max_length: %d (must be at least 2)", c.Recognizer.MaxLength)
	}
	if c.Recognizer.Backend == recognizer.BackendTesseract && c.Recognizer.Language == "" {
		return fmt.Errorf("invalid recognizer.language: required by the tesseract backend")
	}

	if err := c.PageOptions().Validate(); err != nil {
		return fmt.Errorf("invalid chunker settings: %w", err)
	}

	if c.GPU.Device < 0 {
		return fmt.Errorf("invalid GPU device: %d (must be non-negative)", c.GPU.Device)
	}
	if _, err := parseMemoryLimit(c.GPU.MemoryLimit); err != nil {
		return fmt.Errorf("invalid GPU memory limit: %w", err)
	}

	return nil
}

// Resolver returns the model resolver for the configured cache directory.
func (c *Config) Resolver() *models.Resolver {
	r := models.NewResolver(c.Models.CacheDir)
	if c.Models.DownloadAttempts > 0 {
		r.Attempts = uint(c.Models.DownloadAttempts)
	}
	return r
}

// Artifacts returns the detector, encoder, decoder and vocab artifacts.
func (c *Config) Artifacts() (det, enc, dec, vocab models.Artifact) {
	return c.Models.Detector.artifact(), c.Models.Encoder.artifact(), c.Models.Decoder.artifact(), c.Models.Vocab.artifact()
}

func (a ArtifactConfig) artifact() models.Artifact {
	return models.Artifact{Name: a.Name, URL: a.URL}
}

// ToGPUConfig converts to onnx.GPUConfig. An unparsable memory limit is
// treated as unlimited; Validate reports it.
func (c *Config) ToGPUConfig() onnx.GPUConfig {
	cfg := onnx.DefaultGPUConfig()
	cfg.UseGPU = c.GPU.Enabled
	cfg.DeviceID = c.GPU.Device
	if limit, err := parseMemoryLimit(c.GPU.MemoryLimit); err == nil {
		cfg.GPUMemLimit = limit
	}
	return cfg
}

// ToDetectorConfig converts to detector.Config for the model at modelPath.
func (c *Config) ToDetectorConfig(modelPath string) detector.Config {
	cfg := detector.DefaultConfig()
	cfg.ModelPath = modelPath
	cfg.LibraryPath = c.Models.LibraryPath
	cfg.InputSize = c.Detector.InputSize
	cfg.ConfThreshold = c.Detector.ConfThreshold
	cfg.NMSThreshold = c.Detector.NMSThreshold
	cfg.MaskThreshold = c.Detector.MaskThreshold
	cfg.LineThreshold = c.Detector.LineThreshold
	cfg.MinLineArea = c.Detector.MinLineArea
	cfg.NumThreads = c.Detector.NumThreads
	cfg.GPU = c.ToGPUConfig()
	return cfg
}

// ToRecognizerConfig converts to recognizer.Config for the given model files.
func (c *Config) ToRecognizerConfig(encoderPath, decoderPath, vocabPath string) recognizer.Config {
	cfg := recognizer.DefaultConfig()
	cfg.Backend = c.Recognizer.Backend
	cfg.EncoderPath = encoderPath
	cfg.DecoderPath = decoderPath
	cfg.VocabPath = vocabPath
	cfg.LibraryPath = c.Models.LibraryPath
	cfg.MaxLength = c.Recognizer.MaxLength
	cfg.NumThreads = c.Recognizer.NumThreads
	cfg.Language = c.Recognizer.Language
	cfg.GPU = c.ToGPUConfig()
	return cfg
}

// PageOptions converts the chunker and run settings to page.Options.
func (c *Config) PageOptions() page.Options {
	return page.Options{
		TextHeight:         c.Chunker.TextHeight,
		MaxRatioVertical:   c.Chunker.MaxRatioVertical,
		MaxRatioHorizontal: c.Chunker.MaxRatioHorizontal,
		AnchorWindow:       c.Chunker.AnchorWindow,
		DisableOCR:         c.Run.DisableOCR,
	}
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}

// parseMemoryLimit parses limits like "512MB" or "1.5GB" into bytes.
// "" and "auto" mean unlimited.
func parseMemoryLimit(limit string) (uint64, error) {
	if limit == "" || limit == "auto" {
		return 0, nil
	}
	upper := strings.ToUpper(strings.TrimSpace(limit))
	units := []struct {
		suffix string
		factor float64
	}{
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	}
	for _, u := range units {
		if !strings.HasSuffix(upper, u.suffix) {
			continue
		}
		n, err := strconv.ParseFloat(strings.TrimSuffix(upper, u.suffix), 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid number in memory limit: %s", limit)
		}
		return uint64(n * u.factor), nil
	}
	return 0, fmt.Errorf("memory limit must end with one of: B, KB, MB, GB")
}
