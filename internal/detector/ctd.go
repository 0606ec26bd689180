package detector

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/MeKo-Tech/mokugo/internal/onnx"
)

// Model input and output names of the comic text detector export.
var (
	ctdInputs  = []string{"images"}
	ctdOutputs = []string{"blk", "seg", "det"}
)

// CTD runs the comic text detector ONNX model.
type CTD struct {
	config  Config
	session *ort.DynamicAdvancedSession
	mu      sync.Mutex
}

// NewCTD loads the model at config.ModelPath.
func NewCTD(config Config) (*CTD, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detector config: %w", err)
	}

	slog.Debug("Initializing detector",
		"model_path", config.ModelPath,
		"input_size", config.InputSize,
		"gpu_enabled", config.GPU.UseGPU)

	session, err := onnx.NewSession(onnx.SessionConfig{
		ModelPath:   config.ModelPath,
		Inputs:      ctdInputs,
		Outputs:     ctdOutputs,
		NumThreads:  config.NumThreads,
		GPU:         config.GPU,
		LibraryPath: config.LibraryPath,
	})
	if err != nil {
		return nil, err
	}
	return &CTD{config: config, session: session}, nil
}

// Detect runs the model on img.
func (d *CTD) Detect(ctx context.Context, img image.Image) (*Result, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	b := img.Bounds()
	size := d.config.InputSize
	lb := newLetterbox(b.Dx(), b.Dy(), size)
	resized := imaging.Resize(img, lb.w, lb.h, imaging.Linear)

	tensor, err := onnx.NewImageTensor(onnx.ImageToCHW(resized, size, size, onnx.UnitScale), 3, size, size)
	if err != nil {
		return nil, fmt.Errorf("failed to create tensor: %w", err)
	}
	input, err := ort.NewTensor(ort.NewShape(tensor.Shape...), tensor.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer onnx.Destroy(input)

	outputs := make([]ort.Value, len(ctdOutputs))
	d.mu.Lock()
	if d.session == nil {
		d.mu.Unlock()
		return nil, errors.New("detector session is closed")
	}
	err = d.session.Run([]ort.Value{input}, outputs)
	d.mu.Unlock()
	defer func() {
		for _, o := range outputs {
			onnx.Destroy(o)
		}
	}()
	if err != nil {
		return nil, fmt.Errorf("detector inference failed: %w", err)
	}

	raw, err := readOutputs(outputs)
	if err != nil {
		return nil, err
	}
	result := postprocess(raw, lb, b.Dx(), b.Dy(), d.config)

	slog.Debug("Detection finished",
		"blocks", len(result.Blocks),
		"duration_ms", time.Since(start).Milliseconds())
	return result, nil
}

func readOutputs(outputs []ort.Value) (rawOutput, error) {
	var raw rawOutput
	var err error
	if raw.blocks, raw.blockShape, err = onnx.Float32Output(outputs[0]); err != nil {
		return raw, fmt.Errorf("blk output: %w", err)
	}

	seg, segShape, err := onnx.Float32Output(outputs[1])
	if err != nil {
		return raw, fmt.Errorf("seg output: %w", err)
	}
	if err := onnx.ValidateNCHW(segShape); err != nil {
		return raw, fmt.Errorf("seg output: %w", err)
	}
	raw.seg, raw.segH, raw.segW = seg, int(segShape[2]), int(segShape[3])

	det, detShape, err := onnx.Float32Output(outputs[2])
	if err != nil {
		return raw, fmt.Errorf("det output: %w", err)
	}
	if err := onnx.ValidateNCHW(detShape); err != nil {
		return raw, fmt.Errorf("det output: %w", err)
	}
	raw.linesH, raw.linesW = int(detShape[2]), int(detShape[3])
	raw.lines = det[:raw.linesW*raw.linesH]
	return raw, nil
}

// Close releases the session.
func (d *CTD) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil {
		return nil
	}
	err := d.session.Destroy()
	d.session = nil
	return err
}
