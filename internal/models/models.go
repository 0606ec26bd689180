// Package models locates model artifacts in the local cache and downloads the
// ones that are missing.
package models

import (
	"os"
	"path/filepath"
)

// Model file names.
const (
	DetectorFile = "comictextdetector.pt.onnx"
	EncoderFile  = "encoder_model.onnx"
	DecoderFile  = "decoder_model.onnx"
	VocabFile    = "vocab.txt"
)

// Download locations of the published artifacts.
const (
	DetectorURL = "https://github.com/zyddnys/manga-image-translator/releases/download/beta-0.3/comictextdetector.pt.onnx"
	VocabURL    = "https://huggingface.co/kha-white/manga-ocr-base/resolve/main/vocab.txt"
)

// EnvModelsDir overrides the cache root.
const EnvModelsDir = "MOKUGO_MODELS_DIR"

// cacheSubdir is shared with other manga-ocr tools.
const cacheSubdir = "manga-ocr"

// Artifact is one model file. An empty URL means the file must already be
// present in the cache.
type Artifact struct {
	Name string
	URL  string
}

// Detector returns the text detector artifact.
func Detector() Artifact { return Artifact{Name: DetectorFile, URL: DetectorURL} }

// Encoder returns the recognizer encoder artifact.
func Encoder() Artifact { return Artifact{Name: EncoderFile} }

// Decoder returns the recognizer decoder artifact.
func Decoder() Artifact { return Artifact{Name: DecoderFile} }

// Vocab returns the recognizer vocabulary artifact.
func Vocab() Artifact { return Artifact{Name: VocabFile, URL: VocabURL} }

// DefaultRoot returns the model cache directory.
// Priority: 1. explicit dir, 2. MOKUGO_MODELS_DIR, 3. $XDG_CACHE_HOME/manga-ocr,
// 4. ~/.cache/manga-ocr.
func DefaultRoot(dir string) string {
	if dir != "" {
		return dir
	}
	if env := os.Getenv(EnvModelsDir); env != "" {
		return env
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, cacheSubdir)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", cacheSubdir)
	}
	return filepath.Join(".cache", cacheSubdir)
}
