package utils

import (
	"image"
	"image/color"
	"math"
)

// TransformLine cuts a text line out of img and resamples it to a canonical
// height. quad holds the line corners in image coordinates. The result always
// runs along the reading direction on its X axis: vertical lines are warped
// upright and then rotated 90 degrees counter-clockwise.
//
// Horizontal lines are padded by a third of the font size on every side
// before warping so ascenders and descenders are not clipped.
func TransformLine(img image.Image, quad Quad, vertical bool, fontSize float64, textHeight int) image.Image {
	if textHeight <= 0 {
		return nil
	}
	b := img.Bounds()
	src := quad
	if !vertical && fontSize > 0 {
		e := fontSize / 3
		src[0].X, src[0].Y = src[0].X-e, src[0].Y-e
		src[1].X, src[1].Y = src[1].X+e, src[1].Y-e
		src[2].X, src[2].Y = src[2].X+e, src[2].Y+e
		src[3].X, src[3].Y = src[3].X-e, src[3].Y+e
		src = src.Clamp(float64(b.Dx()), float64(b.Dy()))
	}

	hLen, vLen := src.Edges()
	if hLen <= 0 || vLen <= 0 {
		return nil
	}
	ratio := vLen / hLen

	var w, h int
	if vertical {
		w = textHeight
		h = max(1, int(math.Round(float64(textHeight)*ratio)))
	} else {
		h = textHeight
		w = max(1, int(math.Round(float64(textHeight)/ratio)))
	}

	region := WarpPerspective(img, src, w, h)
	if region == nil {
		return nil
	}
	if vertical {
		return Rotate90CCW(region)
	}
	return region
}

// WarpPerspective warps the quadrilateral srcQuad of src into a dstW x dstH
// rectangle using the inverse homography and bilinear sampling.
func WarpPerspective(src image.Image, srcQuad Quad, dstW, dstH int) image.Image {
	if dstW <= 0 || dstH <= 0 {
		return nil
	}

	dst := Quad{
		{X: 0, Y: 0},
		{X: float64(dstW - 1), Y: 0},
		{X: float64(dstW - 1), Y: float64(dstH - 1)},
		{X: 0, Y: float64(dstH - 1)},
	}
	H, ok := computeHomography(dst, srcQuad)
	if !ok {
		return nil
	}

	sb := src.Bounds()
	gray, isGray := src.(*image.Gray)
	if isGray {
		out := image.NewGray(image.Rect(0, 0, dstW, dstH))
		for y := range dstH {
			for x := range dstW {
				sx, sy := applyHomography(H, float64(x), float64(y))
				out.SetGray(x, y, color.Gray{Y: sampleGray(gray, sx+float64(sb.Min.X), sy+float64(sb.Min.Y))})
			}
		}
		return out
	}

	out := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	for y := range dstH {
		for x := range dstW {
			sx, sy := applyHomography(H, float64(x), float64(y))
			out.Set(x, y, bilinearSample(src, sx+float64(sb.Min.X), sy+float64(sb.Min.Y)))
		}
	}
	return out
}

// computeHomography computes the 3x3 matrix H mapping p[i] -> q[i].
func computeHomography(p, q Quad) ([9]float64, bool) {
	// 8x8 system A*h = b for h00..h21 with h22 = 1.
	var A [8][8]float64
	var b [8]float64
	for i := range 4 {
		X, Y := p[i].X, p[i].Y
		x, y := q[i].X, q[i].Y
		r := 2 * i
		A[r] = [8]float64{X, Y, 1, 0, 0, 0, -X * x, -Y * x}
		b[r] = x
		A[r+1] = [8]float64{0, 0, 0, X, Y, 1, -X * y, -Y * y}
		b[r+1] = y
	}

	h, ok := solve8x8(A, b)
	if !ok {
		return [9]float64{}, false
	}
	return [9]float64{h[0], h[1], h[2], h[3], h[4], h[5], h[6], h[7], 1}, true
}

// solve8x8 runs Gauss-Jordan elimination with partial pivoting.
func solve8x8(a [8][8]float64, b [8]float64) ([8]float64, bool) {
	for col := range 8 {
		pivot := col
		for r := col + 1; r < 8; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return [8]float64{}, false
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		div := a[col][col]
		for c := col; c < 8; c++ {
			a[col][c] /= div
		}
		b[col] /= div

		for r := range 8 {
			if r == col || a[r][col] == 0 {
				continue
			}
			f := a[r][col]
			for c := col; c < 8; c++ {
				a[r][c] -= f * a[col][c]
			}
			b[r] -= f * b[col]
		}
	}
	return b, true
}

func applyHomography(h [9]float64, x, y float64) (float64, float64) {
	denom := h[6]*x + h[7]*y + h[8]
	if denom == 0 {
		return -1e9, -1e9
	}
	return (h[0]*x + h[1]*y + h[2]) / denom, (h[3]*x + h[4]*y + h[5]) / denom
}

// bilinearSample reads src at a fractional position. Out-of-bounds samples are
// black.
func bilinearSample(src image.Image, x, y float64) color.Color {
	b := src.Bounds()
	if x < float64(b.Min.X) || y < float64(b.Min.Y) || x > float64(b.Max.X-1) || y > float64(b.Max.Y-1) {
		return color.RGBA{0, 0, 0, 255}
	}
	x0, y0 := int(x), int(y)
	x1, y1 := min(x0+1, b.Max.X-1), min(y0+1, b.Max.Y-1)
	fx, fy := x-float64(x0), y-float64(y0)

	c00 := toRGBA(src.At(x0, y0))
	c10 := toRGBA(src.At(x1, y0))
	c01 := toRGBA(src.At(x0, y1))
	c11 := toRGBA(src.At(x1, y1))
	mix := func(a, b, c, d float64) uint8 {
		return uint8(lerp(lerp(a, b, fx), lerp(c, d, fx), fy) + 0.5)
	}
	return color.RGBA{
		R: mix(c00.R, c10.R, c01.R, c11.R),
		G: mix(c00.G, c10.G, c01.G, c11.G),
		B: mix(c00.B, c10.B, c01.B, c11.B),
		A: mix(c00.A, c10.A, c01.A, c11.A),
	}
}

func sampleGray(src *image.Gray, x, y float64) uint8 {
	b := src.Bounds()
	if x < float64(b.Min.X) || y < float64(b.Min.Y) || x > float64(b.Max.X-1) || y > float64(b.Max.Y-1) {
		return 0
	}
	x0, y0 := int(x), int(y)
	x1, y1 := min(x0+1, b.Max.X-1), min(y0+1, b.Max.Y-1)
	fx, fy := x-float64(x0), y-float64(y0)
	v := lerp(
		lerp(float64(src.GrayAt(x0, y0).Y), float64(src.GrayAt(x1, y0).Y), fx),
		lerp(float64(src.GrayAt(x0, y1).Y), float64(src.GrayAt(x1, y1).Y), fx),
		fy,
	)
	return uint8(v + 0.5)
}

type rgba struct{ R, G, B, A float64 }

func toRGBA(c color.Color) rgba {
	r, g, b, a := c.RGBA()
	return rgba{R: float64(r >> 8), G: float64(g >> 8), B: float64(b >> 8), A: float64(a >> 8)}
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }
