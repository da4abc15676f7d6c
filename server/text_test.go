package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractLineBasic(t *testing.T) {
	consumed, line, kind := extractLine([]byte("hello\nworld"), false, 1024, true, 0, false)
	require.Equal(t, KindNone, kind)
	assert.Equal(t, "hello", string(line))
	assert.Equal(t, 6, consumed)
}

func TestExtractLineTrimsCR(t *testing.T) {
	_, line, kind := extractLine([]byte("hello\r\n"), false, 1024, true, 0, false)
	require.Equal(t, KindNone, kind)
	assert.Equal(t, "hello", string(line))
}

func TestExtractLineAgainWithoutNewline(t *testing.T) {
	_, _, kind := extractLine([]byte("partial"), false, 1024, true, 0, false)
	assert.Equal(t, KindAgain, kind)
}

func TestExtractLineTrailingPartialAtEOF(t *testing.T) {
	consumed, line, kind := extractLine([]byte("no newline"), true, 1024, true, 0, false)
	require.Equal(t, KindNone, kind)
	assert.Equal(t, "no newline", string(line))
	assert.Equal(t, 10, consumed)
}

func TestExtractLineRejectsTrailingPartialWhenDisallowed(t *testing.T) {
	_, _, kind := extractLine([]byte("no newline"), true, 1024, false, 0, false)
	assert.Equal(t, KindPartial, kind)
}

// TestExtractLineOverlongBufferFullStillDelivered covers spec's
// "no EOL and len == buffer_size" case: the buffer has nowhere left
// to grow, so the whole window is still delivered as a record
// (KindOverlongLine signals a one-time warning, not a fatal error),
// here with trim disabled so the record is delivered in full.
func TestExtractLineOverlongBufferFullStillDelivered(t *testing.T) {
	consumed, line, kind := extractLine([]byte("xxxxxxxxxx"), false, 4, true, 0, false)
	assert.Equal(t, KindOverlongLine, kind)
	assert.Equal(t, "xxxxxxxxxx", string(line))
	assert.Equal(t, 10, consumed)
}

func TestExtractLineOverlongBufferNotYetFullIsAgain(t *testing.T) {
	_, _, kind := extractLine([]byte("xxxxxxxxxx"), false, 1024, true, 0, false)
	assert.Equal(t, KindAgain, kind)
}

// TestExtractLineTrimsOverMaxMessageSize covers T3: a terminated line
// exceeding max_msg_size is trimmed to exactly max_msg_size bytes when
// trim_large_messages is set.
func TestExtractLineTrimsOverMaxMessageSize(t *testing.T) {
	_, line, kind := extractLine([]byte("0123456789ABCDEF\n"), false, 1024, true, 8, true)
	require.Equal(t, KindNone, kind)
	assert.Equal(t, "01234567", string(line))
}

func TestExtractLineDeliversFullWhenTrimDisabled(t *testing.T) {
	_, line, kind := extractLine([]byte("0123456789ABCDEF\n"), false, 1024, true, 8, false)
	require.Equal(t, KindNone, kind)
	assert.Equal(t, "0123456789ABCDEF", string(line))
}

func TestTextServerMultipleLinesOneBuffer(t *testing.T) {
	opts, err := BuildOptions()
	require.NoError(t, err)
	ts := NewTextServer(opts)

	buf := []byte("one\ntwo\nthree")
	consumed, rec, kind := ts.Extract(buf, false)
	require.Equal(t, KindNone, kind)
	assert.Equal(t, "one", string(rec))

	consumed2, rec2, kind2 := ts.Extract(buf[consumed:], false)
	require.Equal(t, KindNone, kind2)
	assert.Equal(t, "two", string(rec2))
	assert.Equal(t, 4, consumed2)
}
