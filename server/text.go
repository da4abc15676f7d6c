package server

import "bytes"

// TextServer extracts newline-delimited lines, grounded on the
// general buffer-scan shape of the reference syslog reader's
// readNonTransparent: search the unconsumed window for a delimiter,
// and only fall back to treating a trailing run as a record if the
// caller reports end of stream.
type TextServer struct {
	opts  Options
	multi multilineState
}

// NewTextServer builds a TextServer Extractor from opts.
func NewTextServer(opts Options) *TextServer {
	return &TextServer{opts: opts, multi: newMultilineState(opts)}
}

func (t *TextServer) Extract(buf []byte, atEOF bool) (int, []byte, Kind) {
	if t.opts.Multiline != MultilineNone {
		return t.multi.extract(buf, atEOF)
	}
	return extractLine(buf, atEOF, t.opts.MaxBufferSize, t.opts.TrailingPartialIsRecord, t.opts.MaxMessageSize, t.opts.TrimLargeMessages)
}

// extractLine finds the first '\n' in buf, trims an immediately
// preceding '\r', and reports the consumed length including the
// newline itself. If no newline is found and atEOF is true, the
// remaining bytes are delivered as a final unterminated record when
// allowTrailingPartial is set; otherwise KindPartial/KindAgain.
//
// If the unconsumed window has filled maxSize bytes with no
// terminator in sight, the whole window is still delivered as a
// record (the buffer has nowhere left to grow) — trimmed to
// maxMsgSize when trim is set, in full otherwise — reported as
// KindOverlongLine so the caller can log a one-time warning; this is
// a successful delivery, not a fatal condition. Any record, however
// terminated, exceeding maxMsgSize is trimmed the same way when trim
// is set.
func extractLine(buf []byte, atEOF bool, maxSize int, allowTrailingPartial bool, maxMsgSize int, trim bool) (int, []byte, Kind) {
	if idx := bytes.IndexByte(buf, '\n'); idx >= 0 {
		line := trimCR(buf[:idx])
		return idx + 1, capMessage(line, maxMsgSize, trim), KindNone
	}

	if maxSize > 0 && len(buf) >= maxSize {
		return len(buf), capMessage(trimCR(buf), maxMsgSize, trim), KindOverlongLine
	}

	if atEOF {
		if len(buf) == 0 {
			return 0, nil, KindEOF
		}
		if allowTrailingPartial {
			return len(buf), capMessage(trimCR(buf), maxMsgSize, trim), KindNone
		}
		return 0, nil, KindPartial
	}

	return 0, nil, KindAgain
}

// capMessage enforces maxMsgSize on an extracted line: when trim is
// set, an over-long line is truncated to exactly maxMsgSize bytes;
// otherwise it is delivered in full.
func capMessage(line []byte, maxMsgSize int, trim bool) []byte {
	if maxMsgSize > 0 && trim && len(line) > maxMsgSize {
		return line[:maxMsgSize]
	}
	return line
}

func trimCR(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == '\r' {
		return line[:n-1]
	}
	return line
}
