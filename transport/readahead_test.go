package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadAheadCacheFillAndDrain(t *testing.T) {
	var c readAheadCache
	c.fill([]byte("hello"))
	assert.Equal(t, 5, c.pending())

	dst := make([]byte, 3)
	n := c.drain(dst)
	assert.Equal(t, 3, n)
	assert.Equal(t, "hel", string(dst))
	assert.Equal(t, 2, c.pending())

	dst2 := make([]byte, 2)
	n = c.drain(dst2)
	assert.Equal(t, 2, n)
	assert.Equal(t, "lo", string(dst2))
	assert.Equal(t, 0, c.pending())
}

func TestReadAheadCacheFillCompactsConsumedPrefix(t *testing.T) {
	var c readAheadCache
	c.fill([]byte("abcd"))
	_ = c.drain(make([]byte, 2)) // consume "ab", leaves "cd" at pos=2
	c.fill([]byte("ef"))
	assert.Equal(t, "cdef", string(c.peeked()))
}

func TestMockTransportFeedAndRead(t *testing.T) {
	mt := NewMockTransport()
	mt.Feed([]byte("hello"))
	mt.SetEOF()

	buf := make([]byte, 5)
	n, _, status, err := mt.Read(buf)
	assert.NoError(t, err)
	assert.Equal(t, StatusOK, status)
	assert.Equal(t, "hello", string(buf[:n]))

	n, _, status, err = mt.Read(buf)
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, StatusEOF, status)
}

func TestMockTransportReadAheadDoesNotConsume(t *testing.T) {
	mt := NewMockTransport()
	mt.Feed([]byte("peekme"))

	peek := make([]byte, 4)
	n, _, _, status, err := mt.ReadAhead(peek)
	assert.NoError(t, err)
	assert.Equal(t, StatusOK, status)
	assert.Equal(t, "peek", string(peek[:n]))

	rest := make([]byte, 2)
	n, _, status, err = mt.Read(rest)
	assert.NoError(t, err)
	assert.Equal(t, StatusOK, status)
	assert.Equal(t, "pe", string(rest[:n]), "a read after a peek must start with the peeked bytes")
}

func TestMockTransportWritten(t *testing.T) {
	mt := NewMockTransport()
	_, _, err := mt.Write([]byte("abc"))
	assert.NoError(t, err)
	_, _, err = mt.Write([]byte("def"))
	assert.NoError(t, err)
	assert.Equal(t, "abcdef", string(mt.Written()))
}
