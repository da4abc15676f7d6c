package server

// AutoExtractor classifies an RFC 6587 stream's framing by peeking at
// its first bytes, grounded on the reference syslog reader's
// ReadFrame dispatch. Per the peek-and-classify algorithm: an ASCII
// digit at the very first byte starts a candidate octet-count header;
// if that digit run is terminated by a space within the first 10
// bytes, the stream is framed (RFC-6587 octet counting). Any other
// first byte, or a digit run terminated by anything other than a
// space or another digit, falls back to TextServer — RFC 6587
// non-transparent framing is just newline-delimited text. A digit run
// that consumes all 10 lookahead bytes without resolving to a space
// is a protocol error ("initial framing too long"): the header is
// longer than any legal octet count.
//
// Once classified, an AutoExtractor delegates to the chosen Extractor
// for the lifetime of the connection; RFC 6587 does not permit
// switching framing mid-stream.
type AutoExtractor struct {
	framed    *FramedExtractor
	nonTransp *NonTransparentExtractor
	chosen    Extractor
}

// maxClassifyLookahead bounds how many leading bytes AutoExtractor
// will inspect before giving up on resolving a candidate octet-count
// header, per §4.7's 10-byte peek window.
const maxClassifyLookahead = 10

// NewAutoExtractor builds an AutoExtractor bounded to maxMsgLen bytes
// per message under either framing. With trim set, over-long messages
// are truncated; without it, an over-long line is delivered in full
// and an over-long octet-counted frame is KindInvalidFraming.
func NewAutoExtractor(maxMsgLen int, trim bool) *AutoExtractor {
	return &AutoExtractor{
		framed:    NewFramedExtractor(maxMsgLen, trim),
		nonTransp: NewNonTransparentExtractor(maxMsgLen, trim),
	}
}

func (a *AutoExtractor) Extract(buf []byte, atEOF bool) (int, []byte, Kind) {
	if a.chosen != nil {
		return a.chosen.Extract(buf, atEOF)
	}

	if len(buf) == 0 {
		if atEOF {
			return 0, nil, KindEOF
		}
		return 0, nil, KindAgain
	}

	if buf[0] < '0' || buf[0] > '9' {
		a.chosen = a.nonTransp
		return a.chosen.Extract(buf, atEOF)
	}

	limit := maxClassifyLookahead
	if len(buf) < limit {
		limit = len(buf)
	}
	for i := 1; i < limit; i++ {
		switch {
		case buf[i] >= '0' && buf[i] <= '9':
			continue
		case buf[i] == ' ':
			a.chosen = a.framed
			return a.chosen.Extract(buf, atEOF)
		default:
			a.chosen = a.nonTransp
			return a.chosen.Extract(buf, atEOF)
		}
	}

	if limit >= maxClassifyLookahead {
		return 0, nil, KindInvalidFraming
	}

	if atEOF {
		return 0, nil, KindInvalidFraming
	}
	return 0, nil, KindAgain
}
