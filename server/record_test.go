package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordExtractorBinaryDeliversVerbatim(t *testing.T) {
	r := NewRecordExtractor(8, 0, false)
	buf := []byte("ab\x00cd\nef")
	consumed, rec, kind := r.Extract(buf, false)
	require.Equal(t, KindNone, kind)
	assert.Equal(t, 8, consumed)
	assert.Equal(t, buf[:8], rec)
}

func TestRecordExtractorPaddedTruncatesAtNewline(t *testing.T) {
	r := NewRecordExtractor(8, 0, true)
	buf := []byte("ab\ncdefgh")
	consumed, rec, kind := r.Extract(buf, false)
	require.Equal(t, KindNone, kind)
	assert.Equal(t, 8, consumed)
	assert.Equal(t, "ab", string(rec))
}

func TestRecordExtractorPaddedTruncatesAtNUL(t *testing.T) {
	r := NewRecordExtractor(8, 0, true)
	buf := []byte("ab\x00cdefgh")
	_, rec, kind := r.Extract(buf, false)
	require.Equal(t, KindNone, kind)
	assert.Equal(t, "ab", string(rec))
}

func TestRecordExtractorPaddedWithoutTerminatorDeliversFull(t *testing.T) {
	r := NewRecordExtractor(8, 0, true)
	buf := []byte("abcdefgh")
	_, rec, kind := r.Extract(buf, false)
	require.Equal(t, KindNone, kind)
	assert.Equal(t, "abcdefgh", string(rec))
}

func TestRecordExtractorRoundsUpToPadSize(t *testing.T) {
	r := NewRecordExtractor(5, 4, false)
	buf := []byte("abcde---x") // frame = 8 (next multiple of 4 >= 5)
	consumed, rec, kind := r.Extract(buf, false)
	require.Equal(t, KindNone, kind)
	assert.Equal(t, 8, consumed)
	assert.Equal(t, "abcde", string(rec))
}

func TestRecordExtractorAgainOnShortBuffer(t *testing.T) {
	r := NewRecordExtractor(8, 0, false)
	_, _, kind := r.Extract([]byte("short"), false)
	assert.Equal(t, KindAgain, kind)
}

func TestRecordExtractorPartialAtEOF(t *testing.T) {
	r := NewRecordExtractor(8, 0, false)
	_, _, kind := r.Extract([]byte("short"), true)
	assert.Equal(t, KindPartial, kind)
}
