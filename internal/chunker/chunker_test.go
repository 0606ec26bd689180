package chunker

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// glyphMask draws vertical glyph bars of width glyph separated by gap columns.
func glyphMask(w, h, glyph, gap int) *image.Gray {
	m := image.NewGray(image.Rect(0, 0, w, h))
	for x := range w {
		if x%(glyph+gap) >= glyph {
			continue
		}
		for y := range h {
			m.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return m
}

func collect(r Result) []image.Image {
	var out []image.Image
	for _, img := range r.Chunks() {
		out = append(out, img)
	}
	return out
}

func TestChunk_ShortLineIsUnchanged(t *testing.T) {
	line := image.NewGray(image.Rect(0, 0, 512, 64))
	r := Chunk(line, nil, DefaultOptions(false))

	assert.Empty(t, r.Cuts)
	assert.Equal(t, 1, r.Len())
	chunks := collect(r)
	require.Len(t, chunks, 1)
	assert.Same(t, line, chunks[0])
}

func TestChunk_VerticalAllowance(t *testing.T) {
	line := image.NewGray(image.Rect(0, 0, 1000, 64))
	assert.Empty(t, Chunk(line, nil, DefaultOptions(true)).Cuts)
	assert.Len(t, Chunk(line, nil, DefaultOptions(false)).Cuts, 1)
}

func TestChunk_SplitsLongLine(t *testing.T) {
	const w, h = 1500, 64
	line := image.NewGray(image.Rect(0, 0, w, h))
	mask := glyphMask(w, h, 50, 14)

	r := Chunk(line, mask, DefaultOptions(false))
	require.Equal(t, 3, r.Len())

	total := 0
	for i, c := range r.Chunks() {
		b := c.Bounds()
		assert.Equal(t, h, b.Dy(), "chunk %d height", i)
		total += b.Dx()
	}
	assert.Equal(t, w, total)
	for _, c := range r.Cuts {
		assert.Greater(t, c, 0)
		assert.Less(t, c, w)
	}
}

func TestChunk_CutsLandInGaps(t *testing.T) {
	const w, h = 1280, 64
	line := image.NewGray(image.Rect(0, 0, w, h))
	// Wide glyphs with narrow gaps make gap columns the clear density minima.
	mask := glyphMask(w, h, 100, 28)

	r := Chunk(line, mask, DefaultOptions(false))
	require.NotEmpty(t, r.Cuts)
	for _, c := range r.Cuts {
		assert.GreaterOrEqual(t, c%128, 100, "cut %d should fall in a gap", c)
	}
}

func TestChunk_ChunksCanStopEarly(t *testing.T) {
	line := image.NewGray(image.Rect(0, 0, 2000, 64))
	r := Chunk(line, nil, DefaultOptions(false))
	require.Greater(t, r.Len(), 2)

	seen := 0
	for range r.Chunks() {
		seen++
		break
	}
	assert.Equal(t, 1, seen)
}

func TestChunk_NonGraySource(t *testing.T) {
	line := image.NewRGBA(image.Rect(10, 5, 1010, 69))
	mask := image.NewRGBA(image.Rect(0, 0, 1000, 64))
	r := Chunk(line, mask, DefaultOptions(false))
	require.Equal(t, 2, r.Len())
	for _, c := range r.Chunks() {
		assert.Equal(t, 64, c.Bounds().Dy())
	}
}

func TestDensity(t *testing.T) {
	t.Run("empty mask is flat zero", func(t *testing.T) {
		d := Density(nil, 100, 64)
		require.Len(t, d, 100)
		for _, v := range d {
			assert.Zero(t, v)
		}
	})

	t.Run("normalized to one", func(t *testing.T) {
		d := Density(glyphMask(400, 64, 40, 20), 400, 64)
		peak := 0.0
		for _, v := range d {
			assert.GreaterOrEqual(t, v, 0.0)
			peak = math.Max(peak, v)
		}
		assert.InDelta(t, 1.0, peak, 1e-9)
	})
}

func TestGaussianKernel(t *testing.T) {
	k := gaussianKernel(64, 8)
	require.Len(t, k, 64)
	assert.InDelta(t, k[31], k[32], 1e-12)
	assert.InDelta(t, k[0], k[63], 1e-12)
	assert.Less(t, k[0], k[31])
}

func TestNormalizeCuts(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3}, normalizeCuts([]int{0, 0, 0}, 10))
	assert.Equal(t, []int{7, 8, 9}, normalizeCuts([]int{12, 12, 12}, 10))
	assert.Equal(t, []int{3, 6}, normalizeCuts([]int{3, 6}, 10))
}

func TestChunkProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("chunk count and widths", prop.ForAll(
		func(w, glyph, gap int) bool {
			line := image.NewGray(image.Rect(0, 0, w, 64))
			opts := DefaultOptions(false)
			r := Chunk(line, glyphMask(w, 64, glyph, gap), opts)

			ratio := float64(w) / 64
			want := 1
			if ratio > opts.MaxAspectRatio {
				want = int(math.Ceil(ratio / opts.MaxAspectRatio))
			}
			if r.Len() != want {
				return false
			}
			sum, prev := 0, 0
			for _, c := range r.Cuts {
				if c <= prev || c >= w {
					return false
				}
				prev = c
			}
			for _, c := range r.Chunks() {
				sum += c.Bounds().Dx()
			}
			return sum == w
		},
		gen.IntRange(64, 4000),
		gen.IntRange(5, 80),
		gen.IntRange(1, 30),
	))

	properties.TestingRun(t)
}
