package server

import "bytes"

// RecordExtractor extracts fixed-size records read in exactly
// record_size-byte chunks, in one of two flavours: binary delivers
// the chunk verbatim (embedded NULs preserved); padded truncates the
// chunk at its first '\n' or NUL byte, for sources that pad a short
// logical record out to the fixed chunk size. A non-zero pad rounds
// the chunk itself up to the next multiple of pad before either
// flavour is applied, for disk-block-aligned binary sources.
type RecordExtractor struct {
	size   int
	pad    int
	padded bool
}

// NewRecordExtractor builds a RecordExtractor for fixed-width records
// of size bytes, padded to the next multiple of padSize when padSize
// is non-zero. padded selects the padded-record flavour (truncate at
// the first '\n' or NUL); false selects binary (verbatim).
func NewRecordExtractor(size, padSize int, padded bool) *RecordExtractor {
	return &RecordExtractor{size: size, pad: padSize, padded: padded}
}

func (r *RecordExtractor) frameSize() int {
	if r.pad <= 0 {
		return r.size
	}
	// Round r.size up to the next multiple of pad.
	rem := r.size % r.pad
	if rem == 0 {
		return r.size
	}
	return r.size + (r.pad - rem)
}

func (r *RecordExtractor) Extract(buf []byte, atEOF bool) (int, []byte, Kind) {
	frame := r.frameSize()
	if len(buf) >= frame {
		chunk := buf[:r.size]
		if r.padded {
			if idx := bytes.IndexAny(chunk, "\n\x00"); idx >= 0 {
				chunk = chunk[:idx]
			}
		}
		return frame, chunk, KindNone
	}
	if atEOF {
		if len(buf) == 0 {
			return 0, nil, KindEOF
		}
		return 0, nil, KindPartial
	}
	return 0, nil, KindAgain
}
