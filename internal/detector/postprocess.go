package detector

import (
	"cmp"
	"image"
	"math"
	"slices"

	"github.com/MeKo-Tech/mokugo/internal/mempool"
	"github.com/MeKo-Tech/mokugo/internal/utils"
)

// letterbox records how a page was scaled into the square model input. The
// page sits in the top-left corner; the rest is padding.
type letterbox struct {
	size  int
	scale float64
	w, h  int
}

func newLetterbox(imgW, imgH, size int) letterbox {
	scale := float64(size) / float64(max(imgW, imgH, 1))
	return letterbox{
		size:  size,
		scale: scale,
		w:     min(size, max(1, int(math.Round(float64(imgW)*scale)))),
		h:     min(size, max(1, int(math.Round(float64(imgH)*scale)))),
	}
}

// rawOutput holds model outputs in letterbox space.
type rawOutput struct {
	// blocks is [1, N, 5+classes]: cx, cy, w, h, objectness, class scores.
	blocks     []float32
	blockShape []int64
	// seg is the text segmentation map.
	seg        []float32
	segW, segH int
	// lines is the line probability map.
	lines          []float32
	linesW, linesH int
}

// postprocess turns raw model output into a page-sized result.
func postprocess(out rawOutput, lb letterbox, imgW, imgH int, cfg Config) *Result {
	fw, fh := float64(imgW), float64(imgH)

	cands := nonMaxSuppression(decodeBlocks(out.blocks, out.blockShape, cfg.ConfThreshold), cfg.NMSThreshold)
	boxes := make([]utils.Box, len(cands))
	for i, c := range cands {
		boxes[i] = utils.NewBox(c.Box.MinX/lb.scale, c.Box.MinY/lb.scale, c.Box.MaxX/lb.scale, c.Box.MaxY/lb.scale).Clamp(fw, fh)
	}

	var quads []utils.Quad
	if out.linesW > 0 && out.linesH > 0 {
		sx := float64(lb.size) / float64(out.linesW) / lb.scale
		sy := float64(lb.size) / float64(out.linesH) / lb.scale
		lineMask := binarize(out.lines, float32(cfg.LineThreshold))
		for _, c := range connectedComponents(lineMask, out.linesW, out.linesH) {
			if c.count < cfg.MinLineArea {
				continue
			}
			quads = append(quads, c.quad().Scale(sx, sy).Clamp(fw, fh))
		}
		mempool.Bools.Put(lineMask)
	}

	blocks := assemble(boxes, quads)
	mask := upsampleMask(out.seg, out.segW, out.segH, lb, imgW, imgH, float32(cfg.MaskThreshold))
	return &Result{Mask: mask, RefinedMask: refineMask(mask, blocks), Blocks: blocks}
}

// decodeBlocks reads YOLO-style rows and keeps those scoring at least thresh.
func decodeBlocks(data []float32, shape []int64, thresh float64) []candidate {
	if len(shape) != 3 || shape[2] < 5 {
		return nil
	}
	n, stride := int(shape[1]), int(shape[2])
	if len(data) < n*stride {
		return nil
	}

	var out []candidate
	for i := range n {
		row := data[i*stride : (i+1)*stride]
		score := float64(row[4])
		if stride > 5 {
			score *= float64(slices.Max(row[5:]))
		}
		if score < thresh {
			continue
		}
		cx, cy, w, h := float64(row[0]), float64(row[1]), float64(row[2]), float64(row[3])
		out = append(out, candidate{Box: utils.NewBox(cx-w/2, cy-h/2, cx+w/2, cy+h/2), Score: score})
	}
	return out
}

// assemble assigns each line to the smallest block containing its center and
// derives writing direction and font size per block. Blocks left without
// lines are dropped; block order is preserved.
func assemble(boxes []utils.Box, quads []utils.Quad) []Block {
	lines := make([][]utils.Quad, len(boxes))
	for _, q := range quads {
		center := q.Bounds().Center()
		best := -1
		for i, b := range boxes {
			if b.Contains(center) && (best < 0 || b.Area() < boxes[best].Area()) {
				best = i
			}
		}
		if best >= 0 {
			lines[best] = append(lines[best], q)
		}
	}

	blocks := make([]Block, 0, len(boxes))
	for i, b := range boxes {
		if len(lines[i]) == 0 {
			continue
		}
		blk := Block{Box: b, Lines: lines[i]}
		blk.Vertical = isVertical(b, blk.Lines)
		blk.FontSize = fontSize(blk.Lines, blk.Vertical)
		sortLines(blk.Lines, blk.Vertical)
		blocks = append(blocks, blk)
	}
	return blocks
}

// isVertical reports whether most lines are taller than wide. Ties fall back
// to the block shape.
func isVertical(box utils.Box, lines []utils.Quad) bool {
	tall := 0
	for _, q := range lines {
		w, h := q.Edges()
		if h > w {
			tall++
		}
	}
	switch {
	case 2*tall > len(lines):
		return true
	case 2*tall < len(lines):
		return false
	default:
		return box.Height() > box.Width()
	}
}

// fontSize is the median line thickness across the reading direction.
func fontSize(lines []utils.Quad, vertical bool) float64 {
	sizes := make([]float64, len(lines))
	for i, q := range lines {
		w, h := q.Edges()
		if vertical {
			sizes[i] = w
		} else {
			sizes[i] = h
		}
	}
	slices.Sort(sizes)
	mid := len(sizes) / 2
	if len(sizes)%2 == 1 {
		return sizes[mid]
	}
	return (sizes[mid-1] + sizes[mid]) / 2
}

// sortLines orders vertical lines right to left and horizontal lines top to
// bottom.
func sortLines(lines []utils.Quad, vertical bool) {
	slices.SortStableFunc(lines, func(a, b utils.Quad) int {
		ca, cb := a.Bounds().Center(), b.Bounds().Center()
		if vertical {
			return cmp.Compare(cb.X, ca.X)
		}
		return cmp.Compare(ca.Y, cb.Y)
	})
}

// upsampleMask maps the segmentation output back onto the page and binarizes
// it to 0/255.
func upsampleMask(seg []float32, segW, segH int, lb letterbox, imgW, imgH int, thresh float32) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, imgW, imgH))
	if segW <= 0 || segH <= 0 || len(seg) < segW*segH {
		return mask
	}
	kx := lb.scale * float64(segW) / float64(lb.size)
	ky := lb.scale * float64(segH) / float64(lb.size)
	for y := range imgH {
		my := min(segH-1, int((float64(y)+0.5)*ky))
		row := seg[my*segW:]
		for x := range imgW {
			mx := min(segW-1, int((float64(x)+0.5)*kx))
			if row[mx] >= thresh {
				mask.Pix[y*mask.Stride+x] = 255
			}
		}
	}
	return mask
}

// refineMask keeps mask pixels inside any block box.
func refineMask(mask *image.Gray, blocks []Block) *image.Gray {
	refined := image.NewGray(mask.Rect)
	for _, b := range blocks {
		r := image.Rect(
			int(math.Floor(b.Box.MinX)), int(math.Floor(b.Box.MinY)),
			int(math.Ceil(b.Box.MaxX)), int(math.Ceil(b.Box.MaxY)),
		).Intersect(mask.Rect)
		for y := r.Min.Y; y < r.Max.Y; y++ {
			off := y * mask.Stride
			copy(refined.Pix[off+r.Min.X:off+r.Max.X], mask.Pix[off+r.Min.X:off+r.Max.X])
		}
	}
	return refined
}
