package utils

import (
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"
)

// Point represents a 2D coordinate in float space.
type Point struct {
	X float64
	Y float64
}

// Quad is a four-corner polygon ordered top-left, top-right, bottom-right,
// bottom-left.
type Quad [4]Point

// Box represents an axis-aligned bounding box in float coordinates.
type Box struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// NewBox constructs a Box from min/max coordinates ensuring ordering.
func NewBox(x1, y1, x2, y2 float64) Box {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return Box{MinX: x1, MinY: y1, MaxX: x2, MaxY: y2}
}

// Width returns the box width.
func (b Box) Width() float64 { return b.MaxX - b.MinX }

// Height returns the box height.
func (b Box) Height() float64 { return b.MaxY - b.MinY }

// Area returns the box area.
func (b Box) Area() float64 { return b.Width() * b.Height() }

// Center returns the box center.
func (b Box) Center() Point { return Point{X: (b.MinX + b.MaxX) / 2, Y: (b.MinY + b.MaxY) / 2} }

// Contains reports whether p lies inside the box (edges inclusive).
func (b Box) Contains(p Point) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}

// Clamp restricts the box to [0,w] x [0,h].
func (b Box) Clamp(w, h float64) Box {
	return Box{
		MinX: clampFloat(b.MinX, 0, w),
		MinY: clampFloat(b.MinY, 0, h),
		MaxX: clampFloat(b.MaxX, 0, w),
		MaxY: clampFloat(b.MaxY, 0, h),
	}
}

// IoU returns the intersection over union of two boxes.
func (b Box) IoU(o Box) float64 {
	ix := math.Min(b.MaxX, o.MaxX) - math.Max(b.MinX, o.MinX)
	iy := math.Min(b.MaxY, o.MaxY) - math.Max(b.MinY, o.MinY)
	if ix <= 0 || iy <= 0 {
		return 0
	}
	inter := ix * iy
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// BoundingBox returns the axis-aligned bounds of a point set.
func BoundingBox(pts []Point) Box {
	if len(pts) == 0 {
		return Box{}
	}
	b := Box{MinX: pts[0].X, MinY: pts[0].Y, MaxX: pts[0].X, MaxY: pts[0].Y}
	for _, p := range pts[1:] {
		b.MinX = math.Min(b.MinX, p.X)
		b.MinY = math.Min(b.MinY, p.Y)
		b.MaxX = math.Max(b.MaxX, p.X)
		b.MaxY = math.Max(b.MaxY, p.Y)
	}
	return b
}

// Bounds returns the axis-aligned bounds of the quad.
func (q Quad) Bounds() Box { return BoundingBox(q[:]) }

// Scale multiplies every corner by (sx, sy).
func (q Quad) Scale(sx, sy float64) Quad {
	var out Quad
	for i, p := range q {
		out[i] = Point{X: p.X * sx, Y: p.Y * sy}
	}
	return out
}

// Clamp restricts every corner to [0,w] x [0,h].
func (q Quad) Clamp(w, h float64) Quad {
	var out Quad
	for i, p := range q {
		out[i] = Point{X: clampFloat(p.X, 0, w), Y: clampFloat(p.Y, 0, h)}
	}
	return out
}

// Edges returns the length of the top edge and of the left edge, measured
// between edge midpoints.
func (q Quad) Edges() (horizontal, vertical float64) {
	mid := func(a, b Point) Point { return Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2} }
	top, right := mid(q[0], q[1]), mid(q[1], q[2])
	bottom, left := mid(q[2], q[3]), mid(q[3], q[0])
	return math.Hypot(right.X-left.X, right.Y-left.Y), math.Hypot(bottom.X-top.X, bottom.Y-top.Y)
}

// OrderQuad sorts four corners into top-left, top-right, bottom-right,
// bottom-left order.
func OrderQuad(pts []Point) Quad {
	var q Quad
	if len(pts) != 4 {
		return q
	}
	sorted := make([]Point, 4)
	copy(sorted, pts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X == sorted[j].X {
			return sorted[i].Y < sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})
	left, right := sorted[:2], sorted[2:]
	if left[0].Y > left[1].Y {
		left[0], left[1] = left[1], left[0]
	}
	if right[0].Y > right[1].Y {
		right[0], right[1] = right[1], right[0]
	}
	return Quad{left[0], right[0], right[1], left[1]}
}

// ConvexHull computes the convex hull using the monotone chain algorithm.
func ConvexHull(pts []Point) []Point {
	if len(pts) < 3 {
		out := make([]Point, len(pts))
		copy(out, pts)
		return out
	}
	p := make([]Point, len(pts))
	copy(p, pts)
	sort.Slice(p, func(i, j int) bool {
		if p[i].X == p[j].X {
			return p[i].Y < p[j].Y
		}
		return p[i].X < p[j].X
	})

	lower := make([]Point, 0, len(p))
	for _, pt := range p {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], pt) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, pt)
	}
	upper := make([]Point, 0, len(p))
	for i := len(p) - 1; i >= 0; i-- {
		pt := p[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], pt) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, pt)
	}
	return append(lower[:len(lower)-1], upper[:len(upper)-1]...)
}

func cross(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// MinimumAreaRectangle computes the minimum-area enclosing rectangle using a
// rotating calipers approach over the convex hull.
// Falls back to an axis-aligned rectangle for degenerate inputs.
func MinimumAreaRectangle(pts []Point) []Point {
	hull := ConvexHull(pts)
	if len(hull) < 3 {
		b := BoundingBox(pts)
		return []Point{{b.MinX, b.MinY}, {b.MaxX, b.MinY}, {b.MaxX, b.MaxY}, {b.MinX, b.MaxY}}
	}

	bestArea := math.Inf(1)
	var bestU, bestV Point
	var minS, maxS, minT, maxT float64
	for i := range hull {
		a, b := hull[i], hull[(i+1)%len(hull)]
		l := math.Hypot(b.X-a.X, b.Y-a.Y)
		if l == 0 {
			continue
		}
		u := Point{X: (b.X - a.X) / l, Y: (b.Y - a.Y) / l}
		v := Point{X: -u.Y, Y: u.X}
		s0, s1 := math.Inf(1), math.Inf(-1)
		t0, t1 := math.Inf(1), math.Inf(-1)
		for _, p := range hull {
			s := p.X*u.X + p.Y*u.Y
			t := p.X*v.X + p.Y*v.Y
			s0, s1 = math.Min(s0, s), math.Max(s1, s)
			t0, t1 = math.Min(t0, t), math.Max(t1, t)
		}
		if area := (s1 - s0) * (t1 - t0); area < bestArea {
			bestArea = area
			bestU, bestV = u, v
			minS, maxS, minT, maxT = s0, s1, t0, t1
		}
	}
	corner := func(s, t float64) Point {
		return Point{X: bestU.X*s + bestV.X*t, Y: bestU.Y*s + bestV.Y*t}
	}
	return []Point{corner(minS, minT), corner(maxS, minT), corner(maxS, maxT), corner(minS, maxT)}
}

// Rotate90CW rotates an image 90 degrees clockwise.
func Rotate90CW(img image.Image) image.Image { return imaging.Rotate270(img) }

// Rotate90CCW rotates an image 90 degrees counter-clockwise.
func Rotate90CCW(img image.Image) image.Image { return imaging.Rotate90(img) }
