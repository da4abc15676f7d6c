package encoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConverterIdentityForUTF8(t *testing.T) {
	c, err := NewConverter("utf-8")
	require.NoError(t, err)
	res, err := c.Convert([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(res.Text))
	assert.Equal(t, 5, res.RawConsumed)
	assert.Zero(t, res.Leftover)
}

func TestNewConverterEmptyNameIsIdentity(t *testing.T) {
	c, err := NewConverter("")
	require.NoError(t, err)
	res, err := c.Convert([]byte("raw bytes"))
	require.NoError(t, err)
	assert.Equal(t, "raw bytes", string(res.Text))
}

func TestNewConverterASCIIIsFixedWidth(t *testing.T) {
	c, err := NewConverter("us-ascii")
	require.NoError(t, err)
	res, err := c.Convert([]byte("plain"))
	require.NoError(t, err)
	assert.Equal(t, "plain", string(res.Text))
}

func TestNewConverterUnknownCharsetErrors(t *testing.T) {
	_, err := NewConverter("not-a-real-charset")
	assert.Error(t, err)
}

func TestConverterResetClearsLeftover(t *testing.T) {
	c, err := NewConverter("utf-16be")
	require.NoError(t, err)
	// One lone high byte of a UTF-16 pair: should be held as leftover.
	_, err = c.Convert([]byte{0x00})
	require.NoError(t, err)
	c.Reset()
	assert.Empty(t, c.leftover)
}
