package storage

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	n, err := store.SaveStream("certification/01HX.pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)

	f, err := store.Open("certification/01HX.pdf")
	require.NoError(t, err)
	body, err := io.ReadAll(f)
	require.NoError(t, f.Close())
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(body))

	_, err = store.SaveStream("certification/01HX.pdf", strings.NewReader("again"))
	assert.Error(t, err, "existing files are never overwritten")

	require.NoError(t, store.Delete("certification/01HX.pdf"))
	require.NoError(t, store.Delete("certification/01HX.pdf"))
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"../etc/passwd", "/etc/passwd", "..", ""} {
		_, err := store.Open(name)
		assert.ErrorIs(t, err, ErrInvalidPath, name)
	}
}
