// Package cache stores per-page OCR results as JSON documents and assembles
// them into volume manifests.
package cache

import "github.com/MeKo-Tech/mokugo/internal/version"

// Block is one detected text region on a page.
type Block struct {
	// Box is xmin, ymin, xmax, ymax in page pixels.
	Box         [4]float64     `json:"box"`
	Vertical    bool           `json:"vertical"`
	FontSize    float64        `json:"font_size"`
	LinesCoords [][][2]float64 `json:"lines_coords"`
	Lines       []string       `json:"lines"`
}

// Area returns the box area.
func (b Block) Area() float64 {
	return max(0, b.Box[2]-b.Box[0]) * max(0, b.Box[3]-b.Box[1])
}

// Page is the cached result for one image.
type Page struct {
	Version   string  `json:"version"`
	ImgWidth  int     `json:"img_width"`
	ImgHeight int     `json:"img_height"`
	Blocks    []Block `json:"blocks"`
}

// NewPage returns an empty page of the current format version.
func NewPage(width, height int) *Page {
	return &Page{Version: version.Format, ImgWidth: width, ImgHeight: height, Blocks: []Block{}}
}

// ManifestPage is a page entry inside a manifest.
type ManifestPage struct {
	Page
	ImgPath string `json:"img_path"`
}

// Manifest aggregates every page of a volume.
type Manifest struct {
	Version    string         `json:"version"`
	Title      string         `json:"title"`
	TitleUUID  string         `json:"title_uuid"`
	Volume     string         `json:"volume"`
	VolumeUUID string         `json:"volume_uuid"`
	Pages      []ManifestPage `json:"pages"`
}

// normalize replaces nil slices so documents encode as [] rather than null.
func (p *Page) normalize() {
	if p.Blocks == nil {
		p.Blocks = []Block{}
	}
	for i := range p.Blocks {
		b := &p.Blocks[i]
		if b.Lines == nil {
			b.Lines = []string{}
		}
		if b.LinesCoords == nil {
			b.LinesCoords = [][][2]float64{}
		}
		for j := range b.LinesCoords {
			if b.LinesCoords[j] == nil {
				b.LinesCoords[j] = [][2]float64{}
			}
		}
	}
}
