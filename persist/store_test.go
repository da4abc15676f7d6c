package persist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStoreSaveLoadDelete(t *testing.T) {
	store := NewMemStore()

	got, err := store.Load("missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	state := &BufferedServerState{RawStreamPos: 42}
	require.NoError(t, store.Save("k", state))

	got, err = store.Load("k")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uint64(42), got.RawStreamPos)

	require.NoError(t, store.Delete("k"))
	got, err = store.Load("k")
	require.NoError(t, err)
	assert.Nil(t, got)
}
