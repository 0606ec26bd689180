package cache

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/MeKo-Tech/mokugo/internal/version"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const (
	schemaBase     = "https://github.com/MeKo-Tech/mokugo/schemas/"
	pageSchemaURL  = schemaBase + "page.schema.json"
	manifestSchema = schemaBase + "manifest.schema.json"
)

type schemas struct {
	page     *jsonschema.Schema
	manifest *jsonschema.Schema
}

var loadSchemas = sync.OnceValues(func() (schemas, error) {
	compiler := jsonschema.NewCompiler()
	for _, name := range []string{"page.schema.json", "manifest.schema.json"} {
		data, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return schemas{}, fmt.Errorf("failed to read schema %s: %w", name, err)
		}
		if err := compiler.AddResource(schemaBase+name, bytes.NewReader(data)); err != nil {
			return schemas{}, fmt.Errorf("failed to load schema %s: %w", name, err)
		}
	}

	var s schemas
	var err error
	if s.page, err = compiler.Compile(pageSchemaURL); err != nil {
		return schemas{}, fmt.Errorf("failed to compile page schema: %w", err)
	}
	if s.manifest, err = compiler.Compile(manifestSchema); err != nil {
		return schemas{}, fmt.Errorf("failed to compile manifest schema: %w", err)
	}
	return s, nil
})

// ErrLineMismatch reports a block whose lines and lines_coords differ in length.
var ErrLineMismatch = errors.New("lines and lines_coords differ in length")

func validate(schema func(schemas) *jsonschema.Schema, data []byte) error {
	if !utf8.Valid(data) {
		return errors.New("invalid UTF-8")
	}
	s, err := loadSchemas()
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("malformed JSON: %w", err)
	}
	if err := schema(s).Validate(doc); err != nil {
		return fmt.Errorf("schema violation: %w", err)
	}
	return nil
}

// DecodePage validates and decodes a page document, upgrading older layouts:
// a missing version becomes the current one and a missing lines_coords is
// filled with one empty polygon per line.
func DecodePage(data []byte) (*Page, error) {
	if err := validate(func(s schemas) *jsonschema.Schema { return s.page }, data); err != nil {
		return nil, err
	}
	var p Page
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode page: %w", err)
	}
	if err := migratePage(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DecodeManifest validates and decodes a manifest, upgrading every page the
// same way DecodePage does.
func DecodeManifest(data []byte) (*Manifest, error) {
	if err := validate(func(s schemas) *jsonschema.Schema { return s.manifest }, data); err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	if m.Pages == nil {
		m.Pages = []ManifestPage{}
	}
	for i := range m.Pages {
		if err := migratePage(&m.Pages[i].Page); err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
	}
	return &m, nil
}

// SalvageManifest reads what it can of a manifest that DecodeManifest rejects:
// the top-level identifiers and every page that decodes on its own. dropped
// counts the pages left out. Only unparseable JSON is an error.
func SalvageManifest(data []byte) (m *Manifest, dropped int, err error) {
	if !utf8.Valid(data) {
		return nil, 0, errors.New("invalid UTF-8")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, 0, fmt.Errorf("malformed JSON: %w", err)
	}

	m = &Manifest{Pages: []ManifestPage{}}
	for key, dst := range map[string]*string{
		"version":     &m.Version,
		"title":       &m.Title,
		"title_uuid":  &m.TitleUUID,
		"volume":      &m.Volume,
		"volume_uuid": &m.VolumeUUID,
	} {
		if raw, ok := fields[key]; ok {
			_ = json.Unmarshal(raw, dst)
		}
	}

	var pages []json.RawMessage
	if raw, ok := fields["pages"]; ok {
		_ = json.Unmarshal(raw, &pages)
	}
	for _, raw := range pages {
		var ref struct {
			ImgPath string `json:"img_path"`
		}
		if json.Unmarshal(raw, &ref) != nil || ref.ImgPath == "" {
			dropped++
			continue
		}
		p, err := DecodePage(raw)
		if err != nil {
			dropped++
			continue
		}
		m.Pages = append(m.Pages, ManifestPage{Page: *p, ImgPath: ref.ImgPath})
	}
	return m, dropped, nil
}

func migratePage(p *Page) error {
	if p.Version == "" {
		p.Version = version.Format
	}
	for i := range p.Blocks {
		b := &p.Blocks[i]
		if b.LinesCoords == nil {
			b.LinesCoords = make([][][2]float64, len(b.Lines))
		}
		if len(b.LinesCoords) != len(b.Lines) {
			return fmt.Errorf("block %d: %w", i, ErrLineMismatch)
		}
	}
	p.normalize()
	return nil
}

// EncodePage renders a page document. Non-ASCII text is written verbatim.
func EncodePage(p *Page) ([]byte, error) {
	if p.Version == "" {
		p.Version = version.Format
	}
	p.normalize()
	return encode(p)
}

// EncodeManifest renders a manifest document.
func EncodeManifest(m *Manifest) ([]byte, error) {
	if m.Pages == nil {
		m.Pages = []ManifestPage{}
	}
	for i := range m.Pages {
		m.Pages[i].normalize()
	}
	return encode(m)
}

// Marshal encodes v as compact JSON without HTML escaping.
func Marshal(v any) ([]byte, error) { return encode(v) }

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
