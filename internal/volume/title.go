package volume

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/google/uuid"

	"github.com/MeKo-Tech/mokugo/internal/cache"
	"github.com/MeKo-Tech/mokugo/internal/source"
)

// ErrInconsistentTitleIdentifier is logged when a title's manifests disagree
// on its identifier.
var ErrInconsistentTitleIdentifier = errors.New("inconsistent title identifiers")

// Title is a directory of volumes sharing one identifier.
type Title struct {
	Dir  string
	Name string

	uuid     string
	warnings int
}

// NewTitle returns the title rooted at dir. Its identifier is resolved on
// first use.
func NewTitle(dir string) *Title {
	return &Title{Dir: dir, Name: filepath.Base(dir)}
}

// UUID returns the title identifier, resolving and propagating it on first
// call.
func (t *Title) UUID() string {
	if t.uuid == "" {
		if _, err := t.ResolveUUID(true); err != nil {
			slog.Warn("Failed to update title identifiers", "title", t.Dir, "error", err)
		}
	}
	return t.uuid
}

// Warnings returns how many inconsistent-identifier conditions were seen.
func (t *Title) Warnings() int { return t.warnings }

// ResolveUUID reconciles the identifier across the manifests directly inside
// the title directory. No recorded identifier mints a new one, a single
// distinct identifier is adopted, and conflicting identifiers are replaced by
// a fresh one. With updateExisting every manifest carrying a different value
// is rewritten; other fields are preserved.
func (t *Title) ResolveUUID(updateExisting bool) (string, error) {
	docs, err := t.manifests()
	if err != nil {
		return "", err
	}

	seen := make(map[string]struct{})
	for _, d := range docs {
		if d.titleUUID != "" {
			seen[d.titleUUID] = struct{}{}
		}
	}

	switch len(seen) {
	case 0:
		t.uuid = uuid.NewString()
	case 1:
		for id := range seen {
			t.uuid = id
		}
	default:
		t.warnings++
		slog.Warn("Inconsistent title uuids; generating a new one",
			"title", t.Dir, "found", len(seen), "error", ErrInconsistentTitleIdentifier)
		t.uuid = uuid.NewString()
	}

	if !updateExisting {
		return t.uuid, nil
	}

	var errs []error
	for _, d := range docs {
		if d.titleUUID == t.uuid {
			continue
		}
		if err := rewriteTitleUUID(d, t.uuid); err != nil {
			errs = append(errs, err)
		}
	}
	return t.uuid, errors.Join(errs...)
}

type manifestDoc struct {
	path      string
	fields    map[string]json.RawMessage
	titleUUID string
}

// manifests reads every *.mokuro file directly inside the title directory.
// Unreadable files are logged and skipped.
func (t *Title) manifests() ([]manifestDoc, error) {
	entries, err := os.ReadDir(t.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list manifests in %s: %w", t.Dir, err)
	}
	var matches []string
	for _, e := range entries {
		if e.Type().IsRegular() && filepath.Ext(e.Name()) == ManifestExt {
			matches = append(matches, filepath.Join(t.Dir, e.Name()))
		}
	}
	slices.SortFunc(matches, source.Compare)

	docs := make([]manifestDoc, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path) //nolint:gosec // G304: manifests found in the title directory
		if err != nil {
			slog.Warn("Skipping unreadable manifest", "path", path, "error", err)
			continue
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(data, &fields); err != nil {
			slog.Warn("Skipping malformed manifest", "path", path, "error", err)
			continue
		}
		d := manifestDoc{path: path, fields: fields}
		if raw, ok := fields["title_uuid"]; ok {
			_ = json.Unmarshal(raw, &d.titleUUID)
		}
		docs = append(docs, d)
	}
	return docs, nil
}

func rewriteTitleUUID(d manifestDoc, id string) error {
	raw, err := json.Marshal(id)
	if err != nil {
		return err
	}
	d.fields["title_uuid"] = raw
	data, err := cache.Marshal(d.fields)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", d.path, err)
	}
	if err := cache.WriteFileAtomic(d.path, data); err != nil {
		return fmt.Errorf("failed to rewrite %s: %w", d.path, err)
	}
	slog.Debug("Updated title uuid", "path", d.path, "title_uuid", id)
	return nil
}
