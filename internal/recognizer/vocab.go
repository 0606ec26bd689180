package recognizer

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Vocab maps decoder token ids to text. The id of a token is its line number
// in the vocabulary file, starting at zero.
type Vocab struct {
	Tokens []string
}

// LoadVocab reads a WordPiece vocabulary file, one token per line.
func LoadVocab(path string) (*Vocab, error) {
	if path == "" {
		return nil, errors.New("vocab path cannot be empty")
	}
	f, err := os.Open(path) //nolint:gosec // G304: vocab path comes from config
	if err != nil {
		return nil, fmt.Errorf("failed to open vocab: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("Failed to close vocab file", "path", path, "error", err)
		}
	}()

	tokens := make([]string, 0, 8192)
	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if first {
			line = strings.TrimPrefix(line, "\uFEFF")
			first = false
		}
		tokens = append(tokens, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed reading vocab: %w", err)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("vocab is empty: %s", path)
	}
	return &Vocab{Tokens: tokens}, nil
}

// Size returns the number of tokens.
func (v *Vocab) Size() int { return len(v.Tokens) }

// Decode joins token ids into text. Special tokens like [CLS] and unknown ids
// are skipped and WordPiece continuation markers are removed.
func (v *Vocab) Decode(ids []int64) string {
	var b strings.Builder
	for _, id := range ids {
		if id < 0 || int(id) >= len(v.Tokens) {
			continue
		}
		tok := v.Tokens[id]
		if isSpecial(tok) {
			continue
		}
		b.WriteString(strings.TrimPrefix(tok, "##"))
	}
	return b.String()
}

func isSpecial(tok string) bool {
	return len(tok) > 2 && strings.HasPrefix(tok, "[") && strings.HasSuffix(tok, "]")
}
