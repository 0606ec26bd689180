// Package archive expands zipped volumes (.zip, .cbz) into directories before
// their pages are enumerated.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Extensions lists the archive formats accepted as volume inputs.
var Extensions = []string{".zip", ".cbz"}

// ErrUnsafePath is returned for archive members that would escape the
// destination directory.
var ErrUnsafePath = errors.New("archive member escapes destination")

// IsArchive reports whether path has a supported archive extension.
func IsArchive(path string) bool {
	return slices.Contains(Extensions, strings.ToLower(filepath.Ext(path)))
}

// Options controls extraction.
type Options struct {
	// CorrectDuplicatedRoot flattens archives whose only top-level entry is a
	// directory named like the archive itself.
	CorrectDuplicatedRoot bool
}

// Extract unpacks the archive at src into dst, creating dst if needed.
func Extract(src, dst string, opts Options) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", src, err)
	}
	defer func() {
		if cerr := r.Close(); cerr != nil {
			slog.Warn("Failed to close archive", "path", src, "error", cerr)
		}
	}()

	if err := os.MkdirAll(dst, 0o750); err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	for _, f := range r.File {
		if err := extractFile(f, dst); err != nil {
			return fmt.Errorf("failed to extract %s from %s: %w", f.Name, src, err)
		}
	}

	if opts.CorrectDuplicatedRoot {
		stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
		if err := flattenDuplicatedRoot(dst, stem); err != nil {
			return fmt.Errorf("failed to flatten %s: %w", dst, err)
		}
	}
	return nil
}

func extractFile(f *zip.File, dst string) error {
	target := filepath.Join(dst, filepath.FromSlash(f.Name))
	rel, err := filepath.Rel(dst, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", ErrUnsafePath, f.Name)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o750)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return err
	}

	in, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600) //nolint:gosec // G304: target checked above
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil { //nolint:gosec // G110: page archives are user-provided local files
		_ = out.Close()
		return err
	}
	return out.Close()
}

// flattenDuplicatedRoot moves the contents of dst/<name> up into dst when that
// directory is the only entry of dst.
func flattenDuplicatedRoot(dst, name string) error {
	entries, err := os.ReadDir(dst)
	if err != nil {
		return err
	}
	if len(entries) != 1 || !entries[0].IsDir() || entries[0].Name() != name {
		return nil
	}

	inner := filepath.Join(dst, entries[0].Name())
	// Rename the inner directory first so a child with the same name cannot
	// collide with it.
	staging := inner + ".flatten"
	if err := os.Rename(inner, staging); err != nil {
		return err
	}
	children, err := os.ReadDir(staging)
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := os.Rename(filepath.Join(staging, c.Name()), filepath.Join(dst, c.Name())); err != nil {
			return err
		}
	}
	return os.Remove(staging)
}
