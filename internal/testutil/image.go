package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ImageSize represents common image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// Common page sizes.
	SmallSize  = ImageSize{320, 240}
	MediumSize = ImageSize{640, 480}
	PageSize   = ImageSize{800, 1200}
)

// PageConfig describes a synthetic page.
type PageConfig struct {
	Lines      []string
	Size       ImageSize
	Background color.Color
	Foreground color.Color
	FontFace   font.Face
	// Vertical stacks glyphs top to bottom in columns placed right to left.
	Vertical bool
	// Scale enlarges the rendered text by an integer factor.
	Scale int
}

// DefaultPageConfig returns a blank white page with one horizontal line.
func DefaultPageConfig() PageConfig {
	return PageConfig{
		Lines:      []string{"Sample Text"},
		Size:       MediumSize,
		Background: color.White,
		Foreground: color.Black,
		FontFace:   basicfont.Face7x13,
		Scale:      1,
	}
}

// GeneratePage renders a synthetic page.
func GeneratePage(cfg PageConfig) *image.NRGBA {
	scale := max(cfg.Scale, 1)
	w, h := cfg.Size.Width/scale, cfg.Size.Height/scale
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{cfg.Background}, image.Point{}, draw.Src)

	drawer := &font.Drawer{Dst: img, Src: &image.Uniform{cfg.Foreground}, Face: cfg.FontFace}
	lineHeight := cfg.FontFace.Metrics().Height.Ceil()

	if cfg.Vertical {
		advance := font.MeasureString(cfg.FontFace, "M").Ceil() * 2
		x := w - advance
		for _, line := range cfg.Lines {
			y := lineHeight
			for _, r := range line {
				drawer.Dot = fixed.P(x, y)
				drawer.DrawString(string(r))
				y += lineHeight
			}
			x -= advance
		}
	} else {
		y := (h - len(cfg.Lines)*lineHeight) / 2
		for _, line := range cfg.Lines {
			y += lineHeight
			textWidth := font.MeasureString(cfg.FontFace, line).Ceil()
			drawer.Dot = fixed.P((w-textWidth)/2, y)
			drawer.DrawString(line)
		}
	}

	if scale == 1 {
		return imaging.Clone(img)
	}
	return imaging.Resize(img, cfg.Size.Width, cfg.Size.Height, imaging.NearestNeighbor)
}

// BlankPage returns a uniformly colored page.
func BlankPage(width, height int, c color.Color) *image.NRGBA {
	return imaging.New(width, height, c)
}

// SaveImage encodes img as PNG or JPEG depending on the path extension.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	require.NoError(t, EnsureDir(filepath.Dir(path)))

	file, err := os.Create(path) //nolint:gosec // G304: test file creation with controlled path
	require.NoError(t, err, "Failed to create file %s", path)
	defer func() {
		require.NoError(t, file.Close())
	}()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
	default:
		err = png.Encode(file, img)
	}
	require.NoError(t, err, "Failed to encode %s", path)
}

// LoadImage loads an image from the specified path.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()

	img, err := imaging.Open(path)
	require.NoError(t, err, "Failed to open image %s", path)
	return img
}

// CompareImages reports whether two images differ by at most tolerance, a
// fraction of the largest possible per-pixel difference.
func CompareImages(img1, img2 image.Image, tolerance float64) bool {
	b1, b2 := img1.Bounds(), img2.Bounds()
	if b1.Dx() != b2.Dx() || b1.Dy() != b2.Dy() {
		return false
	}
	if b1.Empty() {
		return true
	}

	var total float64
	for y := range b1.Dy() {
		for x := range b1.Dx() {
			r1, g1, bl1, a1 := img1.At(b1.Min.X+x, b1.Min.Y+y).RGBA()
			r2, g2, bl2, a2 := img2.At(b2.Min.X+x, b2.Min.Y+y).RGBA()
			dr := float64(r1) - float64(r2)
			dg := float64(g1) - float64(g2)
			db := float64(bl1) - float64(bl2)
			da := float64(a1) - float64(a2)
			total += math.Sqrt(dr*dr + dg*dg + db*db + da*da)
		}
	}

	avg := total / float64(b1.Dx()*b1.Dy())
	return avg/math.Sqrt(4*65535*65535) <= tolerance
}
