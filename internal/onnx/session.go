package onnx

import (
	"fmt"
	"log/slog"
	"os"

	ort "github.com/yalue/onnxruntime_go"
)

// SessionConfig configures one inference session.
type SessionConfig struct {
	ModelPath   string
	Inputs      []string
	Outputs     []string
	NumThreads  int
	GPU         GPUConfig
	LibraryPath string
}

// NewSession initializes the runtime if needed and opens a session over the
// named inputs and outputs.
func NewSession(cfg SessionConfig) (*ort.DynamicAdvancedSession, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %w", err)
	}
	if err := Init(cfg.LibraryPath, cfg.GPU.UseGPU); err != nil {
		return nil, err
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer func() {
		if err := opts.Destroy(); err != nil {
			slog.Warn("Failed to destroy session options", "error", err)
		}
	}()

	if err := ConfigureSessionForGPU(opts, cfg.GPU); err != nil {
		return nil, fmt.Errorf("failed to configure GPU: %w", err)
	}
	if cfg.NumThreads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, cfg.Inputs, cfg.Outputs, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session for %s: %w", cfg.ModelPath, err)
	}
	slog.Debug("ONNX session created", "model", cfg.ModelPath, "inputs", cfg.Inputs, "outputs", cfg.Outputs)
	return session, nil
}

// Destroy releases a runtime value, logging failures.
func Destroy(v ort.Value) {
	if v == nil {
		return
	}
	if err := v.Destroy(); err != nil {
		slog.Warn("Failed to destroy ONNX value", "error", err)
	}
}

// Float32Output returns the data and shape of a float32 output value.
func Float32Output(v ort.Value) ([]float32, []int64, error) {
	t, ok := v.(*ort.Tensor[float32])
	if !ok {
		return nil, nil, fmt.Errorf("expected float32 tensor, got %T", v)
	}
	return t.GetData(), t.GetShape(), nil
}
