package detector

import (
	"container/list"

	"github.com/MeKo-Tech/mokugo/internal/mempool"
	"github.com/MeKo-Tech/mokugo/internal/utils"
)

// component is a 4-connected foreground region with its per-row extents.
type component struct {
	count      int
	minX, minY int
	maxX, maxY int
	// rows maps y to the leftmost and rightmost x on that row.
	rows map[int][2]int
}

// binarize thresholds a probability map. The mask comes from mempool.Bools;
// callers return it once they are done with it.
func binarize(prob []float32, t float32) []bool {
	mask := mempool.Bools.Get(len(prob))
	for i, p := range prob {
		mask[i] = p >= t
	}
	return mask
}

// connectedComponents labels 4-connected foreground regions of a w x h mask.
func connectedComponents(mask []bool, w, h int) []component {
	visited := mempool.Bools.Get(w * h)
	defer mempool.Bools.Put(visited)
	var comps []component
	for y := range h {
		for x := range w {
			idx := y*w + x
			if mask[idx] && !visited[idx] {
				comps = append(comps, floodComponent(mask, visited, w, h, x, y))
			}
		}
	}
	return comps
}

func floodComponent(mask, visited []bool, w, h, startX, startY int) component {
	c := component{minX: startX, minY: startY, maxX: startX, maxY: startY, rows: make(map[int][2]int)}
	q := list.New()
	start := startY*w + startX
	visited[start] = true
	q.PushBack(start)

	dirs := [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	for q.Len() > 0 {
		e := q.Front()
		q.Remove(e)
		ci, ok := e.Value.(int)
		if !ok {
			continue
		}
		cx, cy := ci%w, ci/w
		c.add(cx, cy)

		for _, d := range dirs {
			nx, ny := cx+d[0], cy+d[1]
			if nx < 0 || nx >= w || ny < 0 || ny >= h {
				continue
			}
			ni := ny*w + nx
			if mask[ni] && !visited[ni] {
				visited[ni] = true
				q.PushBack(ni)
			}
		}
	}
	return c
}

func (c *component) add(x, y int) {
	c.count++
	c.minX, c.maxX = min(c.minX, x), max(c.maxX, x)
	c.minY, c.maxY = min(c.minY, y), max(c.maxY, y)
	if r, ok := c.rows[y]; ok {
		c.rows[y] = [2]int{min(r[0], x), max(r[1], x)}
	} else {
		c.rows[y] = [2]int{x, x}
	}
}

// outline returns the pixel-corner extremes of each row, enough to rebuild
// the component's convex hull.
func (c *component) outline() []utils.Point {
	pts := make([]utils.Point, 0, len(c.rows)*4)
	for y, r := range c.rows {
		x0, x1 := float64(r[0]), float64(r[1]+1)
		fy := float64(y)
		pts = append(pts,
			utils.Point{X: x0, Y: fy}, utils.Point{X: x1, Y: fy},
			utils.Point{X: x0, Y: fy + 1}, utils.Point{X: x1, Y: fy + 1},
		)
	}
	return pts
}

// quad returns the minimum-area rectangle around the component.
func (c *component) quad() utils.Quad {
	return utils.OrderQuad(utils.MinimumAreaRectangle(c.outline()))
}
