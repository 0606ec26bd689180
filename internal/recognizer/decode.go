package recognizer

import (
	"context"
	"fmt"
)

// Special token ids of the manga-ocr decoder.
const (
	startTokenID int64 = 2
	endTokenID   int64 = 3
)

// stepFunc runs the decoder on the ids produced so far and returns logits of
// shape [1, len(ids), vocab].
type stepFunc func(ids []int64) ([]float32, []int64, error)

// greedyDecode extends the start token with the most likely next token until
// the end token appears or maxLength ids exist. The returned ids include the
// start token and, when reached, the end token.
func greedyDecode(ctx context.Context, step stepFunc, maxLength int) ([]int64, error) {
	ids := make([]int64, 1, maxLength)
	ids[0] = startTokenID
	for len(ids) < maxLength {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logits, shape, err := step(ids)
		if err != nil {
			return nil, err
		}
		next, err := lastArgmax(logits, shape)
		if err != nil {
			return nil, err
		}
		ids = append(ids, next)
		if next == endTokenID {
			break
		}
	}
	return ids, nil
}

// lastArgmax returns the argmax over the vocabulary at the final step of a
// [1, T, V] logits tensor.
func lastArgmax(logits []float32, shape []int64) (int64, error) {
	if len(shape) != 3 || shape[1] <= 0 || shape[2] <= 0 {
		return 0, fmt.Errorf("unexpected logits shape %v", shape)
	}
	steps, vocab := int(shape[1]), int(shape[2])
	if len(logits) < steps*vocab {
		return 0, fmt.Errorf("logits length %d does not match shape %v", len(logits), shape)
	}
	row := logits[(steps-1)*vocab : steps*vocab]
	best := 0
	for i, v := range row {
		if v > row[best] {
			best = i
		}
	}
	return int64(best), nil
}
