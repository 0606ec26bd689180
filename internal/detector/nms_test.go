package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/mokugo/internal/utils"
)

func TestNonMaxSuppression(t *testing.T) {
	cands := []candidate{
		{Box: utils.NewBox(0, 0, 10, 10), Score: 0.5},
		{Box: utils.NewBox(1, 1, 11, 11), Score: 0.9},
		{Box: utils.NewBox(50, 50, 60, 60), Score: 0.7},
	}
	kept := nonMaxSuppression(cands, 0.3)
	require.Len(t, kept, 2)
	assert.InDelta(t, 0.9, kept[0].Score, 1e-9)
	assert.InDelta(t, 0.7, kept[1].Score, 1e-9)
	assert.InDelta(t, 0.5, cands[0].Score, 1e-9, "input order untouched")

	assert.Len(t, nonMaxSuppression(cands, 1), 3)
	assert.Empty(t, nonMaxSuppression(nil, 0.3))
}
