package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFramedExtractorBasic(t *testing.T) {
	f := NewFramedExtractor(1024, false)
	msg := "11 hello world"
	consumed, rec, kind := f.Extract([]byte(msg), false)
	require.Equal(t, KindNone, kind)
	assert.Equal(t, "hello world", string(rec))
	assert.Equal(t, len(msg), consumed)
}

func TestFramedExtractorAgainOnPartialHeader(t *testing.T) {
	f := NewFramedExtractor(1024, false)
	_, _, kind := f.Extract([]byte("1"), false)
	assert.Equal(t, KindAgain, kind)
}

func TestFramedExtractorAgainOnPartialBody(t *testing.T) {
	f := NewFramedExtractor(1024, false)
	_, _, kind := f.Extract([]byte("11 hello"), false)
	assert.Equal(t, KindAgain, kind)
}

func TestFramedExtractorZeroLengthFrameAccepted(t *testing.T) {
	f := NewFramedExtractor(1024, false)
	consumed, rec, kind := f.Extract([]byte("0 "), false)
	require.Equal(t, KindNone, kind)
	assert.Empty(t, rec)
	assert.Equal(t, 2, consumed)
}

func TestFramedExtractorRejectsOversizedLength(t *testing.T) {
	f := NewFramedExtractor(10, false)
	_, _, kind := f.Extract([]byte("100 xxxxxxxxxxxxxxxxxxxxxxx"), false)
	assert.Equal(t, KindInvalidFraming, kind)
}

func TestFramedExtractorRejectsMissingSeparator(t *testing.T) {
	f := NewFramedExtractor(1024, false)
	_, _, kind := f.Extract([]byte("11xhello world"), false)
	assert.Equal(t, KindInvalidFraming, kind)
}

// TestFramedExtractorTrimsOversizedLength is the literal end-to-end
// scenario: "48 " + 48 X's, max_msg_size=32, trim on -> 32 X's.
func TestFramedExtractorTrimsOversizedLength(t *testing.T) {
	f := NewFramedExtractor(32, true)
	payload := "48 " + string(bytes32X(48))
	consumed, rec, kind := f.Extract([]byte(payload), true)
	require.Equal(t, KindOverlongLine, kind)
	assert.Equal(t, string(bytes32X(32)), string(rec))
	assert.Equal(t, len(payload), consumed)
}

func bytes32X(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'X'
	}
	return b
}

func TestAutoExtractorDetectsFramedThenSticks(t *testing.T) {
	a := NewAutoExtractor(1024, false)
	consumed, rec, kind := a.Extract([]byte("5 hello5 world"), false)
	require.Equal(t, KindNone, kind)
	assert.Equal(t, "hello", string(rec))

	_, rec2, kind2 := a.Extract([]byte("5 hello5 world")[consumed:], false)
	require.Equal(t, KindNone, kind2)
	assert.Equal(t, "world", string(rec2))
}

func TestAutoExtractorDetectsNonTransparent(t *testing.T) {
	a := NewAutoExtractor(1024, false)
	_, rec, kind := a.Extract([]byte("<34>1 hello\n"), false)
	require.Equal(t, KindNone, kind)
	assert.Equal(t, "<34>1 hello", string(rec))
}

// TestAutoExtractorNonDigitLeadByteChoosesText covers the literal
// end-to-end scenario: "abcdefghij\n..." must classify as text, not
// error, even though none of its first 10 bytes is a digit.
func TestAutoExtractorNonDigitLeadByteChoosesText(t *testing.T) {
	a := NewAutoExtractor(1024, false)
	_, rec, kind := a.Extract([]byte("abcdefghij\nnext"), false)
	require.Equal(t, KindNone, kind)
	assert.Equal(t, "abcdefghij", string(rec))
}

func TestAutoExtractorDigitRunTooLongIsError(t *testing.T) {
	a := NewAutoExtractor(1024, false)
	_, _, kind := a.Extract([]byte("12345678901"), true)
	assert.Equal(t, KindInvalidFraming, kind)
}
