package server

import (
	"strconv"

	"github.com/pkg/errors"
)

// FramedExtractor implements RFC 6587 octet-counting framing:
// "<digits> <msgLen bytes>", a decimal length prefix followed by a
// single space and exactly that many bytes of message. It is grounded
// on the reference syslog reader's readOctetCounted: a bounded digit
// scan with an explicit overflow guard, then either a zero-copy
// fast-path slice when the whole frame is already buffered or an
// again/partial report otherwise.
type FramedExtractor struct {
	maxMsgLen int
	maxDigits int
	trim      bool
}

// NewFramedExtractor builds a FramedExtractor accepting messages up to
// maxMsgLen bytes. When trim is true, a frame whose declared length
// exceeds maxMsgLen is still accepted: the first maxMsgLen bytes are
// delivered and the remainder of the frame is consumed and discarded.
// When trim is false, such a frame is a protocol error.
func NewFramedExtractor(maxMsgLen int, trim bool) *FramedExtractor {
	return &FramedExtractor{maxMsgLen: maxMsgLen, maxDigits: 9, trim: trim}
}

func (f *FramedExtractor) Extract(buf []byte, atEOF bool) (int, []byte, Kind) {
	i := 0
	for i < len(buf) && buf[i] >= '0' && buf[i] <= '9' {
		i++
		if i > f.maxDigits {
			return 0, nil, KindInvalidFraming
		}
	}

	if i == 0 {
		if len(buf) == 0 {
			if atEOF {
				return 0, nil, KindEOF
			}
			return 0, nil, KindAgain
		}
		return 0, nil, KindInvalidFraming
	}

	if i == len(buf) {
		if atEOF {
			return 0, nil, KindInvalidFraming
		}
		return 0, nil, KindAgain
	}

	if buf[i] != ' ' {
		return 0, nil, KindInvalidFraming
	}

	msgLen, err := strconv.Atoi(string(buf[:i]))
	if err != nil {
		return 0, nil, KindInvalidFraming
	}
	if msgLen > f.maxMsgLen && !f.trim {
		return 0, nil, KindInvalidFraming
	}

	headerLen := i + 1
	need := headerLen + msgLen
	if len(buf) < need {
		if atEOF {
			return 0, nil, KindPartial
		}
		return 0, nil, KindAgain
	}

	if msgLen > f.maxMsgLen {
		// trim is set: accept the full frame but only emit the first
		// maxMsgLen bytes of it, discarding the rest.
		return need, buf[headerLen : headerLen+f.maxMsgLen], KindOverlongLine
	}

	return need, buf[headerLen:need], KindNone
}

// NonTransparentExtractor implements RFC 6587's non-transparent
// framing: plain newline-delimited messages, identical in wire shape
// to TextServer's default mode but kept as a distinct type so
// AutoExtractor can name it explicitly in diagnostics.
type NonTransparentExtractor struct {
	maxSize int
	trim    bool
}

// NewNonTransparentExtractor builds a NonTransparentExtractor bounded
// to maxSize bytes per message: an over-long message is truncated to
// maxSize when trim is set and delivered in full otherwise.
func NewNonTransparentExtractor(maxSize int, trim bool) *NonTransparentExtractor {
	return &NonTransparentExtractor{maxSize: maxSize, trim: trim}
}

func (n *NonTransparentExtractor) Extract(buf []byte, atEOF bool) (int, []byte, Kind) {
	return extractLine(buf, atEOF, n.maxSize, true, n.maxSize, n.trim)
}

var errUnrecognizedFraming = errors.New("server: stream does not begin with a recognized framing")
