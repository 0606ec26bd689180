package cache

import (
	"cmp"
	"slices"
)

// StackingBase is the z-index of the largest block.
const StackingBase = 10

// StackingOrder returns a z-index per block so smaller regions render above
// larger overlapping ones. Blocks are ranked by box area, largest first,
// keeping input order on ties; block i gets StackingBase plus its rank.
func StackingOrder(blocks []Block) []int {
	idx := make([]int, len(blocks))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return cmp.Compare(blocks[b].Area(), blocks[a].Area())
	})

	z := make([]int, len(blocks))
	for rank, i := range idx {
		z[i] = rank + StackingBase
	}
	return z
}
