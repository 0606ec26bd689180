package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/MeKo-Tech/mokugo/internal/metrics"
	"github.com/MeKo-Tech/mokugo/internal/volume"
)

var (
	// ErrNoVolumes is returned when no input path names a volume.
	ErrNoVolumes = errors.New("found no volumes to process")
	// ErrVolumeLocked is returned when another process holds a volume's lock.
	ErrVolumeLocked = errors.New("volume is locked by another process")
)

// RunOptions controls a batch run.
type RunOptions struct {
	// ParentDir adds every volume candidate directly inside it.
	ParentDir    string
	IgnoreErrors bool
	NoCache      bool
	// Unzip extracts archives next to themselves instead of a temp dir.
	Unzip bool
	// Lock takes an advisory lock per volume.
	Lock bool
	// Confirm is shown the volumes before processing; false aborts the run.
	// Nil proceeds.
	Confirm  func([]*volume.Volume) bool
	Progress ProgressCallback
}

// Summary reports the outcome of a run.
type Summary struct {
	Total     int
	Succeeded int
	// Failed lists the input paths of volumes that failed.
	Failed  []string
	Aborted bool
}

// Runner processes a set of input paths volume by volume.
type Runner struct {
	Generator *Generator
	Metrics   *metrics.Metrics
}

// Collect builds the volume collection for paths and, when set, parentDir.
// Paths that are not volumes are logged and skipped.
func Collect(paths []string, parentDir string) (*volume.Collection, error) {
	all := append([]string(nil), paths...)
	if parentDir != "" {
		found, err := volume.ScanParent(parentDir)
		if err != nil {
			return nil, err
		}
		all = append(all, found...)
	}

	vc := volume.NewCollection()
	for _, p := range all {
		if err := vc.Add(p); err != nil {
			slog.Warn("Skipping path", "path", p, "error", err)
		}
	}
	return vc, nil
}

// Run processes every volume named by paths. A failing volume is recorded
// and never stops the ones after it.
func (r *Runner) Run(ctx context.Context, paths []string, opts RunOptions) (Summary, error) {
	slog.Info("Scanning paths")
	vc, err := Collect(paths, opts.ParentDir)
	if err != nil {
		return Summary{}, err
	}
	if vc.Len() == 0 {
		return Summary{}, ErrNoVolumes
	}

	for _, t := range vc.Titles() {
		if _, err := t.ResolveUUID(true); err != nil {
			slog.Warn("Failed to update title identifiers", "title", t.Dir, "error", err)
		}
	}

	volumes := vc.Volumes()
	summary := Summary{Total: len(volumes)}
	if opts.Confirm != nil && !opts.Confirm(volumes) {
		slog.Info("Aborted")
		summary.Aborted = true
		return summary, nil
	}

	tmpDir := ""
	if !opts.Unzip {
		tmpDir, err = os.MkdirTemp("", "mokugo-")
		if err != nil {
			return summary, fmt.Errorf("failed to create temp directory: %w", err)
		}
		defer func() {
			if err := os.RemoveAll(tmpDir); err != nil {
				slog.Warn("Failed to remove temp directory", "path", tmpDir, "error", err)
			}
		}()
	}

	if opts.Progress != nil {
		r.Generator.SetProgress(opts.Progress)
	}

	for i, v := range volumes {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		slog.Info(fmt.Sprintf("Processing %d/%d", i+1, len(volumes)), "path", v.InputPath())

		start := time.Now()
		err := r.processVolume(ctx, v, tmpDir, opts)
		r.Metrics.ObserveVolume(time.Since(start), err == nil)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return summary, err
			}
			slog.Error("Error while processing volume", "path", v.InputPath(), "error", err)
			summary.Failed = append(summary.Failed, v.InputPath())
			continue
		}
		summary.Succeeded++
	}

	slog.Info(fmt.Sprintf("Processed successfully: %d/%d", summary.Succeeded, summary.Total))
	return summary, nil
}

func (r *Runner) processVolume(ctx context.Context, v *volume.Volume, tmpDir string, opts RunOptions) error {
	if opts.Lock {
		unlock, err := lockVolume(v)
		if err != nil {
			return err
		}
		defer unlock()
	}
	if err := v.Expand(tmpDir); err != nil {
		return err
	}
	return r.Generator.ProcessVolume(ctx, v, opts.IgnoreErrors, opts.NoCache)
}

// lockVolume takes the advisory lock of v without blocking.
func lockVolume(v *volume.Volume) (func(), error) {
	path := v.LockPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrVolumeLocked, path)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("Failed to release volume lock", "path", path, "error", err)
		}
	}, nil
}
