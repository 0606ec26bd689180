package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/avast/retry-go/v4"
)

// ErrDownload reports that an artifact could not be fetched.
var ErrDownload = errors.New("model download failed")

// DefaultAttempts is the number of download attempts per artifact.
const DefaultAttempts = 3

// Resolver maps artifacts to files under Root, downloading missing ones.
type Resolver struct {
	Root     string
	Client   *http.Client
	Attempts uint
	// Delay is the base backoff between attempts.
	Delay time.Duration
}

// NewResolver returns a resolver rooted at DefaultRoot(dir).
func NewResolver(dir string) *Resolver {
	return &Resolver{
		Root:     DefaultRoot(dir),
		Client:   &http.Client{Timeout: 10 * time.Minute},
		Attempts: DefaultAttempts,
		Delay:    time.Second,
	}
}

// Path returns where a would be stored.
func (r *Resolver) Path(a Artifact) string {
	return filepath.Join(r.Root, a.Name)
}

// Ensure returns the local path of a, downloading it first if needed.
func (r *Resolver) Ensure(ctx context.Context, a Artifact) (string, error) {
	path := r.Path(a)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if a.URL == "" {
		return "", fmt.Errorf("%w: %s not found in %s and has no download location", ErrDownload, a.Name, r.Root)
	}
	if err := os.MkdirAll(r.Root, 0o755); err != nil {
		return "", fmt.Errorf("failed to create model directory: %w", err)
	}

	slog.Info("Downloading model", "name", a.Name, "url", a.URL)
	start := time.Now()
	err := retry.Do(
		func() error { return r.download(ctx, a.URL, path) },
		retry.Context(ctx),
		retry.Attempts(max(r.Attempts, 1)),
		retry.Delay(r.Delay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("Model download attempt failed", "name", a.Name, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrDownload, a.Name, err)
	}
	slog.Info("Model downloaded", "name", a.Name, "path", path, "duration", time.Since(start))
	return path, nil
}

func (r *Resolver) download(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return retry.Unrecoverable(err)
	}
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("unexpected status: %s", resp.Status)
	default:
		return retry.Unrecoverable(fmt.Errorf("unexpected status: %s", resp.Status))
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("create temp file: %w", err))
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return retry.Unrecoverable(fmt.Errorf("rename temp file: %w", err))
	}
	return nil
}
