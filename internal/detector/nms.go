package detector

import (
	"cmp"
	"slices"

	"github.com/MeKo-Tech/mokugo/internal/utils"
)

// candidate is a scored block proposal.
type candidate struct {
	Box   utils.Box
	Score float64
}

// nonMaxSuppression keeps the highest scoring candidates, dropping any that
// overlap a kept one by more than iouThreshold. Output is score descending,
// stable on ties.
func nonMaxSuppression(cands []candidate, iouThreshold float64) []candidate {
	if len(cands) <= 1 {
		return cands
	}
	sorted := slices.Clone(cands)
	slices.SortStableFunc(sorted, func(a, b candidate) int { return cmp.Compare(b.Score, a.Score) })

	kept := make([]candidate, 0, len(sorted))
	for _, c := range sorted {
		keep := true
		for _, k := range kept {
			if k.Box.IoU(c.Box) > iouThreshold {
				keep = false
				break
			}
		}
		if keep {
			kept = append(kept, c)
		}
	}
	return kept
}
