package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirCatalogListsImagesSorted(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"tote.png", "mug.jpg", "tee.jpeg", "notes.txt", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.png"), 0755))

	c, err := NewDirCatalog(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"mug.jpg", "tee.jpeg", "tote.png"}, c.IDs())
}

func TestDirCatalogResolve(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mug.png"), []byte("png-bytes"), 0644))

	c, err := NewDirCatalog(dir)
	require.NoError(t, err)

	data, err := c.Resolve("mug.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)

	_, err = c.Resolve("missing.png")
	assert.Error(t, err)

	for _, id := range []string{"", ".", "..", "../mug.png", "sub/mug.png"} {
		_, err := c.Resolve(id)
		assert.Error(t, err, "id %q must be rejected", id)
	}
}

func TestDirCatalogMissingDir(t *testing.T) {
	_, err := NewDirCatalog("/does/not/exist")
	assert.Error(t, err)
}
