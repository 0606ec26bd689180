package recognizer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeVocab(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vocab.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadVocab(t *testing.T) {
	v, err := LoadVocab(writeVocab(t, "\uFEFF[PAD]\r\n[UNK]\n[CLS]\n[SEP]\n[MASK]\n漫\n##画\n!\n"))
	require.NoError(t, err)
	assert.Equal(t, 8, v.Size())
	assert.Equal(t, "[PAD]", v.Tokens[0])
	assert.Equal(t, "##画", v.Tokens[6])
}

func TestLoadVocabErrors(t *testing.T) {
	_, err := LoadVocab("")
	assert.Error(t, err)
	_, err = LoadVocab(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
	_, err = LoadVocab(writeVocab(t, ""))
	assert.Error(t, err)
}

func TestVocabDecode(t *testing.T) {
	v := &Vocab{Tokens: []string{"[PAD]", "[UNK]", "[CLS]", "[SEP]", "[MASK]", "漫", "##画", "[", "!"}}
	assert.Equal(t, "漫画!", v.Decode([]int64{2, 5, 6, 8, 3}))
	assert.Equal(t, "[", v.Decode([]int64{7, 99, -1}), "lone bracket is text, out of range ids skipped")
	assert.Empty(t, v.Decode(nil))
}
