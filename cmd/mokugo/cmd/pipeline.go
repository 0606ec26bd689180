package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/mokugo/internal/config"
	"github.com/MeKo-Tech/mokugo/internal/detector"
	"github.com/MeKo-Tech/mokugo/internal/generator"
	"github.com/MeKo-Tech/mokugo/internal/page"
	"github.com/MeKo-Tech/mokugo/internal/recognizer"
)

// newProcessorFactory returns the factory the generator calls the first time
// a page needs computing. It fetches missing models before loading them.
func newProcessorFactory(cfg *config.Config) generator.PageProcessorFactory {
	return func(ctx context.Context) (generator.PageProcessor, error) {
		opts := cfg.PageOptions()
		if opts.DisableOCR {
			slog.Info("OCR disabled, pages will have no text blocks")
			return page.NewProcessor(nil, nil, opts), nil
		}

		resolver := cfg.Resolver()
		detArtifact, encArtifact, decArtifact, vocabArtifact := cfg.Artifacts()

		slog.Info("Initializing models", "dir", resolver.Root)
		detPath, err := resolver.Ensure(ctx, detArtifact)
		if err != nil {
			return nil, err
		}

		var encPath, decPath, vocabPath string
		if cfg.Recognizer.Backend == recognizer.BackendONNX {
			if encPath, err = resolver.Ensure(ctx, encArtifact); err != nil {
				return nil, err
			}
			if decPath, err = resolver.Ensure(ctx, decArtifact); err != nil {
				return nil, err
			}
			if vocabPath, err = resolver.Ensure(ctx, vocabArtifact); err != nil {
				return nil, err
			}
		}

		det, err := detector.NewCTD(cfg.ToDetectorConfig(detPath))
		if err != nil {
			return nil, fmt.Errorf("failed to create detector: %w", err)
		}
		rec, err := recognizer.New(cfg.ToRecognizerConfig(encPath, decPath, vocabPath))
		if err != nil {
			if cerr := det.Close(); cerr != nil {
				slog.Warn("Failed to close detector", "error", cerr)
			}
			return nil, fmt.Errorf("failed to create recognizer: %w", err)
		}
		return page.NewProcessor(det, rec, opts), nil
	}
}
