package misc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/term"
)

var _ term.History = (*FileHistory)(nil)

func TestHistoryMissingFile(t *testing.T) {
	h, err := OpenHistory(filepath.Join(t.TempDir(), "none"), 10)
	require.NoError(t, err)
	assert.Zero(t, h.Len())
}

func TestHistoryAddAt(t *testing.T) {
	h, err := OpenHistory("", 3)
	require.NoError(t, err)

	for _, l := range []string{"ls", "ls", "", "get a b", "put c d", "dir"} {
		h.Add(l)
	}
	require.Equal(t, 3, h.Len())
	assert.Equal(t, "dir", h.At(0))
	assert.Equal(t, "put c d", h.At(1))
	assert.Equal(t, "get a b", h.At(2))
	assert.NoError(t, h.Save())
}

func TestHistoryPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), HistoryFileName)
	require.NoError(t, os.WriteFile(path, []byte("one\r\ntwo\n\nthree\n"), 0600))

	h, err := OpenHistory(path, 2)
	require.NoError(t, err)
	require.Equal(t, 2, h.Len())
	assert.Equal(t, "three", h.At(0))
	assert.Equal(t, "two", h.At(1))

	h.Add("four")
	require.NoError(t, h.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "three\nfour\n", string(data))
}
