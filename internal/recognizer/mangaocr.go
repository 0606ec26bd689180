package recognizer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/MeKo-Tech/mokugo/internal/onnx"
)

// Tensor names of the manga-ocr encoder and decoder exports.
var (
	encoderInputs  = []string{"pixel_values"}
	encoderOutputs = []string{"last_hidden_state"}
	decoderInputs  = []string{"input_ids", "encoder_hidden_states"}
	decoderOutputs = []string{"logits"}
)

// MangaOCR runs the manga-ocr vision encoder-decoder with greedy decoding.
type MangaOCR struct {
	config  Config
	vocab   *Vocab
	encoder *ort.DynamicAdvancedSession
	decoder *ort.DynamicAdvancedSession
	mu      sync.Mutex
}

// NewMangaOCR loads the encoder, decoder and vocabulary named in config.
func NewMangaOCR(config Config) (*MangaOCR, error) {
	vocab, err := LoadVocab(config.VocabPath)
	if err != nil {
		return nil, err
	}
	slog.Debug("Vocab loaded", "path", config.VocabPath, "size", vocab.Size())

	encoder, err := onnx.NewSession(onnx.SessionConfig{
		ModelPath:   config.EncoderPath,
		Inputs:      encoderInputs,
		Outputs:     encoderOutputs,
		NumThreads:  config.NumThreads,
		GPU:         config.GPU,
		LibraryPath: config.LibraryPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load encoder: %w", err)
	}
	decoder, err := onnx.NewSession(onnx.SessionConfig{
		ModelPath:   config.DecoderPath,
		Inputs:      decoderInputs,
		Outputs:     decoderOutputs,
		NumThreads:  config.NumThreads,
		GPU:         config.GPU,
		LibraryPath: config.LibraryPath,
	})
	if err != nil {
		_ = encoder.Destroy()
		return nil, fmt.Errorf("failed to load decoder: %w", err)
	}
	return &MangaOCR{config: config, vocab: vocab, encoder: encoder, decoder: decoder}, nil
}

// Recognize reads the text of one chunk.
func (m *MangaOCR) Recognize(ctx context.Context, img image.Image) (string, error) {
	start := time.Now()
	tensor, err := preprocess(img)
	if err != nil {
		return "", fmt.Errorf("preprocess: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.encoder == nil || m.decoder == nil {
		return "", errors.New("recognizer is closed")
	}

	hidden, err := m.encode(tensor)
	if err != nil {
		return "", err
	}
	defer onnx.Destroy(hidden)

	ids, err := greedyDecode(ctx, func(ids []int64) ([]float32, []int64, error) {
		return m.step(ids, hidden)
	}, m.config.MaxLength)
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}

	text := PostProcessText(m.vocab.Decode(ids))
	slog.Debug("Recognized chunk", "tokens", len(ids), "text", text, "duration", time.Since(start))
	return text, nil
}

func (m *MangaOCR) encode(tensor onnx.Tensor) (ort.Value, error) {
	input, err := ort.NewTensor(ort.NewShape(tensor.Shape...), tensor.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer onnx.Destroy(input)

	outputs := []ort.Value{nil}
	if err := m.encoder.Run([]ort.Value{input}, outputs); err != nil {
		onnx.Destroy(outputs[0])
		return nil, fmt.Errorf("encoder inference failed: %w", err)
	}
	return outputs[0], nil
}

func (m *MangaOCR) step(ids []int64, hidden ort.Value) ([]float32, []int64, error) {
	input, err := ort.NewTensor(ort.NewShape(1, int64(len(ids))), ids)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create ids tensor: %w", err)
	}
	defer onnx.Destroy(input)

	outputs := []ort.Value{nil}
	if err := m.decoder.Run([]ort.Value{input, hidden}, outputs); err != nil {
		onnx.Destroy(outputs[0])
		return nil, nil, fmt.Errorf("decoder inference failed: %w", err)
	}
	defer onnx.Destroy(outputs[0])

	data, shape, err := onnx.Float32Output(outputs[0])
	if err != nil {
		return nil, nil, err
	}
	if len(shape) != 3 || shape[2] <= 0 || len(data) < int(shape[2]) {
		return nil, nil, fmt.Errorf("unexpected logits shape %v", shape)
	}
	// The tensor is destroyed on return; keep only the last step.
	vocab := int(shape[2])
	last := make([]float32, vocab)
	copy(last, data[len(data)-vocab:])
	return last, []int64{1, 1, int64(vocab)}, nil
}

// Close releases both sessions.
func (m *MangaOCR) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	if m.encoder != nil {
		errs = append(errs, m.encoder.Destroy())
		m.encoder = nil
	}
	if m.decoder != nil {
		errs = append(errs, m.decoder.Destroy())
		m.decoder = nil
	}
	return errors.Join(errs...)
}
