package persist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := &BufferedServerState{
		RawBufferLeftoverSize: 3,
		BufferPos:             10,
		PendingBufferEnd:      20,
		BufferSize:            4096,
		RawStreamPos:          123456789,
		FileSize:              999,
		FileInode:             42,
	}
	copy(in.RawBufferLeftover[:], []byte{0xAA, 0xBB, 0xCC})

	buf := Encode(in)
	out, err := Decode(buf)
	require.NoError(t, err)

	assert.Equal(t, in.RawBufferLeftoverSize, out.RawBufferLeftoverSize)
	assert.Equal(t, in.RawBufferLeftover, out.RawBufferLeftover)
	assert.Equal(t, in.BufferPos, out.BufferPos)
	assert.Equal(t, in.RawStreamPos, out.RawStreamPos)
	assert.Equal(t, in.FileSize, out.FileSize)
	assert.Equal(t, in.FileInode, out.FileInode)
	assert.Equal(t, currentStateVersion, out.Header.Version)
}

func TestDecodeRejectsUnsupportedVersion(t *testing.T) {
	_, err := Decode([]byte{0, 0, 0, 0, 0, 0, 0, 0})
	assert.Error(t, err)
}

func TestDecodeHonorsExplicitByteOrderFlag(t *testing.T) {
	in := &BufferedServerState{RawStreamPos: 0x0102030405060708}
	buf := Encode(in)

	// Flip the recorded flag and verify the opposite order round-trips
	// differently, proving Decode actually consults the flag rather
	// than guessing from the bytes.
	flipped := append([]byte(nil), buf...)
	if flipped[1] == 0 {
		flipped[1] = 1
	} else {
		flipped[1] = 0
	}
	out, err := Decode(flipped)
	require.NoError(t, err)
	assert.NotEqual(t, in.RawStreamPos, out.RawStreamPos)
}

func TestDecodeRejectsTruncatedBuffer(t *testing.T) {
	in := &BufferedServerState{}
	buf := Encode(in)
	_, err := Decode(buf[:len(buf)-4])
	assert.Error(t, err)
}

func TestMatchesFile(t *testing.T) {
	s := &BufferedServerState{FileSize: 100, FileInode: 7}
	assert.True(t, s.MatchesFile(100, 7))
	assert.True(t, s.MatchesFile(200, 7))
	assert.False(t, s.MatchesFile(50, 7))
	assert.False(t, s.MatchesFile(100, 8))
}
