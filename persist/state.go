// Package persist implements the exact on-disk byte layout a
// BufferedServer checkpoints so a restarted process can resume reading
// a stream-based source (most importantly, a tailed file) from the
// position it last confirmed as delivered, rather than from the start.
package persist

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// currentStateVersion is the only on-disk layout version this package
// writes. A future incompatible layout would bump this and Decode
// would reject anything else.
const currentStateVersion uint8 = 4

// nativeBigEndian reports whether this host's native byte order is
// big-endian, determined by probing binary.NativeEndian rather than
// assuming one order, so Encode can record an explicit, truthful
// big_endian flag instead of a guess.
var nativeBigEndian = func() bool {
	probe := [2]byte{0x12, 0x34}
	return binary.NativeEndian.Uint16(probe[:]) == 0x1234
}()

// PersistableStateHeader precedes every encoded BufferedServerState on
// disk: a version byte and an explicit big_endian flag recording the
// byte order every multi-byte field below was written in. Decode uses
// BigEndian, not a magic-number guess, to choose how to read them.
type PersistableStateHeader struct {
	Version   uint8
	BigEndian uint8
}

// BufferedServerState is the exact set of fields a BufferedServer must
// persist to resume a stream at the same logical position after a
// restart, laid out in the same field order on every encode so a
// decoder can validate size without guessing padding.
type BufferedServerState struct {
	Header PersistableStateHeader

	// RawBufferLeftoverSize is the number of bytes carried in
	// RawBufferLeftover: undecoded trailing bytes of a partial
	// multi-byte character at the last confirmed raw_stream_pos.
	RawBufferLeftoverSize uint32
	RawBufferLeftover     [8]byte

	// BufferPos/PendingBufferEnd describe the decoded-text buffer
	// window at the last confirmed position.
	BufferPos        uint32
	PendingBufferEnd uint32

	// BufferSize/PendingBufferPos/PendingBufferSize describe the
	// decoded-text buffer's total capacity and a second, in-flight
	// window used while the buffer is being grown or shifted.
	BufferSize        uint32
	PendingBufferPos  uint32
	PendingBufferSize uint32

	// RawStreamPos is the confirmed (acknowledged) raw byte offset
	// into the underlying transport, used to seek on restart.
	// PendingRawStreamPos is the raw offset of bytes already read
	// from the transport but not yet acknowledged by every consumer;
	// it is informational only; restart always reseeks to
	// RawStreamPos, never PendingRawStreamPos, so an unacknowledged
	// tail is re-delivered rather than lost.
	RawStreamPos        uint64
	PendingRawStreamPos uint64

	// RawBufferSize/PendingRawBufferSize mirror BufferSize/
	// PendingBufferSize for the raw (pre-decode) buffer.
	RawBufferSize        uint32
	PendingRawBufferSize uint32

	// FileSize/FileInode identify the specific file this state was
	// checkpointed against; RestartWithState must refuse to resume if
	// they do not match the file being reopened (it was rotated).
	FileSize  int64
	FileInode int64
}

// encodedSize is the fixed wire size of BufferedServerState, computed
// field by field so Decode can validate a buffer's length up front.
const encodedSize = 1 + 1 + // version + big_endian
	4 + 8 + // leftover size + leftover bytes
	4 + 4 + // buffer pos + pending buffer end
	4 + 4 + 4 + // buffer size + pending buffer pos + pending buffer size
	8 + 8 + // raw stream pos + pending raw stream pos
	4 + 4 + // raw buffer size + pending raw buffer size
	8 + 8 // file size + file inode

// Encode serializes s in this host's native byte order, recording
// that order in Header.BigEndian so Decode can read it back correctly
// regardless of which host performs the read.
func Encode(s *BufferedServerState) []byte {
	buf := make([]byte, encodedSize)

	order := binary.ByteOrder(binary.NativeEndian)

	s.Header.Version = currentStateVersion
	if nativeBigEndian {
		s.Header.BigEndian = 1
	} else {
		s.Header.BigEndian = 0
	}

	buf[0] = s.Header.Version
	buf[1] = s.Header.BigEndian

	off := 2
	putU32 := func(v uint32) {
		order.PutUint32(buf[off:], v)
		off += 4
	}
	putU64 := func(v uint64) {
		order.PutUint64(buf[off:], v)
		off += 8
	}

	putU32(s.RawBufferLeftoverSize)
	copy(buf[off:off+8], s.RawBufferLeftover[:])
	off += 8
	putU32(s.BufferPos)
	putU32(s.PendingBufferEnd)
	putU32(s.BufferSize)
	putU32(s.PendingBufferPos)
	putU32(s.PendingBufferSize)
	putU64(s.RawStreamPos)
	putU64(s.PendingRawStreamPos)
	putU32(s.RawBufferSize)
	putU32(s.PendingRawBufferSize)
	putU64(uint64(s.FileSize))
	putU64(uint64(s.FileInode))

	return buf
}

// Decode parses a BufferedServerState from buf, byte-swapping every
// multi-byte field according to the explicit Header.BigEndian flag
// recorded by Encode rather than inferring byte order from the data.
func Decode(buf []byte) (*BufferedServerState, error) {
	if len(buf) < 2 {
		return nil, errors.New("persist: buffer too short for header")
	}

	s := &BufferedServerState{}
	s.Header.Version = buf[0]
	s.Header.BigEndian = buf[1]

	if s.Header.Version != currentStateVersion {
		return nil, errors.Errorf("persist: unsupported state version %d", s.Header.Version)
	}

	var order binary.ByteOrder = binary.LittleEndian
	if s.Header.BigEndian != 0 {
		order = binary.BigEndian
	}

	if len(buf) < encodedSize {
		return nil, errors.New("persist: buffer too short for BufferedServerState")
	}

	off := 2
	getU32 := func() uint32 {
		v := order.Uint32(buf[off:])
		off += 4
		return v
	}
	getU64 := func() uint64 {
		v := order.Uint64(buf[off:])
		off += 8
		return v
	}

	s.RawBufferLeftoverSize = getU32()
	copy(s.RawBufferLeftover[:], buf[off:off+8])
	off += 8
	s.BufferPos = getU32()
	s.PendingBufferEnd = getU32()
	s.BufferSize = getU32()
	s.PendingBufferPos = getU32()
	s.PendingBufferSize = getU32()
	s.RawStreamPos = getU64()
	s.PendingRawStreamPos = getU64()
	s.RawBufferSize = getU32()
	s.PendingRawBufferSize = getU32()
	s.FileSize = int64(getU64())
	s.FileInode = int64(getU64())

	if s.RawBufferLeftoverSize > uint32(len(s.RawBufferLeftover)) {
		return nil, errors.New("persist: leftover size exceeds fixed leftover buffer")
	}

	return s, nil
}

// WriteTo encodes s and writes it to w, matching io.WriterTo for use
// with a Store that accepts a plain io.Writer.
func (s *BufferedServerState) WriteTo(w io.Writer) (int64, error) {
	buf := Encode(s)
	n, err := w.Write(buf)
	return int64(n), err
}

// ReadState decodes a BufferedServerState from r in full.
func ReadState(r io.Reader) (*BufferedServerState, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "persist: reading state")
	}
	return Decode(buf)
}

// MatchesFile reports whether s was checkpointed against a file with
// the given identity, per RestartWithState's rotation check.
func (s *BufferedServerState) MatchesFile(size, inode int64) bool {
	return s.FileSize <= size && s.FileInode == inode
}
