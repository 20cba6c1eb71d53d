package semantic

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadStatic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "neighbors.json")
	content := `{"cat": ["feline", "kitten"], "dog": ["canine"]}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	exp, err := LoadStatic(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"feline", "kitten"}, exp.Neighbors("cat"))
	assert.Equal(t, []string{"canine"}, exp.Neighbors("dog"))
	assert.Nil(t, exp.Neighbors("bird"))
}

func TestLoadStaticMissingFile(t *testing.T) {
	_, err := LoadStatic(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoadStaticMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "neighbors.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err := LoadStatic(path)
	assert.Error(t, err)
}
