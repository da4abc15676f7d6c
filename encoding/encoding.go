// Package encoding provides the charset-aware byte buffer used by
// stream-based servers to track how many raw input bytes a decoded
// run of UTF-8 characters consumed, so partial multi-byte characters
// at a buffer boundary can be carried over instead of corrupted.
package encoding

import (
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

// MaxLeftover is the largest number of undecodable trailing raw bytes
// a Converter will carry over to the next Convert call. No supported
// encoding's longest code unit exceeds this.
const MaxLeftover = 8

// fixedWidthWidths lists case-insensitive name prefixes handled without
// a golang.org/x/text codec, with the code unit width of each. Width-2
// and width-4 units are decoded as big-endian code points; width-1
// names are passed through byte for byte, so bytes above 0x7F are not
// translated to UTF-8.
var fixedWidthWidths = []struct {
	prefix string
	width  int
}{
	{"ascii", 1},
	{"us-ascii", 1},
	{"iso-8859", 1},
	{"iso8859", 1},
	{"latin", 1},
	{"koi", 1},
	{"windows", 1},
	{"ucs-2", 2},
	{"ucs2", 2},
	{"unicode", 2},
	{"wchar_t", 4},
	{"ucs-4", 4},
	{"ucs4", 4},
}

func fixedWidthOf(name string) (int, bool) {
	lower := strings.ToLower(name)
	for _, fw := range fixedWidthWidths {
		if strings.HasPrefix(lower, fw.prefix) {
			return fw.width, true
		}
	}
	return 0, false
}

// Converter decodes raw bytes in some named encoding to UTF-8 (see
// fixedWidthWidths for the width-1 passthrough), tracking the total
// raw byte count each Convert call consumed. It is not safe for
// concurrent use.
type Converter struct {
	name       string
	width      int // 0 means variable-width (iconv-style) path
	dec        *encoding.Decoder
	leftover   []byte
}

// NewConverter builds a Converter for the named IANA/MIME charset. The
// empty string, "utf-8" and "utf8" (case-insensitively) select the
// identity converter, since the wire format is always decoded
// against a UTF-8 view internally regardless of the declared source
// charset.
func NewConverter(name string) (*Converter, error) {
	if name == "" || strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8") {
		return &Converter{name: name, width: 1}, nil
	}
	if width, ok := fixedWidthOf(name); ok {
		return &Converter{name: name, width: width}, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding: unknown charset %q", name)
	}
	if enc == nil {
		return nil, errors.Errorf("encoding: unsupported charset %q", name)
	}
	return &Converter{name: name, dec: enc.NewDecoder()}, nil
}

// Name returns the charset name the Converter was built for.
func (c *Converter) Name() string { return c.name }

// Reset discards any carried-over leftover bytes, e.g. after a framing
// resync following a protocol error.
func (c *Converter) Reset() {
	c.leftover = c.leftover[:0]
	if c.dec != nil {
		c.dec.Reset()
	}
}

// Leftover returns the undecoded trailing bytes currently carried
// over from the last Convert call, for checkpointing via
// persist.BufferedServerState.RawBufferLeftover.
func (c *Converter) Leftover() []byte {
	return append([]byte(nil), c.leftover...)
}

// SetLeftover restores previously checkpointed leftover bytes,
// letting a restarted process resume decoding a partial multi-byte
// character that spanned the last confirmed raw_stream_pos.
func (c *Converter) SetLeftover(b []byte) {
	c.leftover = append([]byte(nil), b...)
}

// Result is one Convert call's output: the decoded UTF-8 text, the
// total number of raw bytes consumed, and the leftover count. It holds
// no per-rune mapping, so the raw-byte size of a prefix of Text cannot
// be derived from it.
type Result struct {
	Text []byte
	// RawConsumed is the total number of bytes from the raw input
	// passed to Convert (not counting leftover carried in) that were
	// consumed producing Text.
	RawConsumed int
	// Leftover is the number of undecodable trailing bytes retained
	// for the next Convert call.
	Leftover int
}

// Convert decodes raw, which is assumed to be a suffix of the stream
// immediately following whatever was consumed by the previous
// Convert call. It never reports a leftover byte count that would
// split a complete fixed-width code unit.
func (c *Converter) Convert(raw []byte) (Result, error) {
	if c.width > 0 {
		return c.convertFixedWidth(raw)
	}
	return c.convertVariableWidth(raw)
}

func (c *Converter) convertFixedWidth(raw []byte) (Result, error) {
	combined := raw
	if len(c.leftover) > 0 {
		combined = append(append([]byte(nil), c.leftover...), raw...)
	}

	usable := (len(combined) / c.width) * c.width

	var text []byte
	if c.width == 1 {
		text = combined[:usable]
	} else {
		text = decodeFixedWidthToUTF8(combined[:usable], c.width)
	}

	consumedFromRaw := usable - len(c.leftover)
	if consumedFromRaw < 0 {
		consumedFromRaw = 0
	}

	leftover := append([]byte(nil), combined[usable:]...)
	if len(leftover) > MaxLeftover {
		return Result{}, errors.New("encoding: leftover exceeds maximum carry-over size")
	}
	c.leftover = leftover

	return Result{Text: text, RawConsumed: consumedFromRaw, Leftover: len(leftover)}, nil
}

// decodeFixedWidthToUTF8 treats each width-byte group as a big-endian
// code point and re-encodes it as UTF-8. This is a reasonable
// approximation for the UCS-2/UCS-4/wchar_t family of declared
// encodings where no narrower x/text codec applies cleanly.
func decodeFixedWidthToUTF8(b []byte, width int) []byte {
	out := make([]byte, 0, len(b))
	var buf [utf8.UTFMax]byte
	for i := 0; i+width <= len(b); i += width {
		var r rune
		for j := 0; j < width; j++ {
			r = r<<8 | rune(b[i+j])
		}
		n := utf8.EncodeRune(buf[:], r)
		out = append(out, buf[:n]...)
	}
	return out
}

func (c *Converter) convertVariableWidth(raw []byte) (Result, error) {
	combined := raw
	if len(c.leftover) > 0 {
		combined = append(append([]byte(nil), c.leftover...), raw...)
	}

	dst := make([]byte, 0, len(combined)*2)
	var totalSrc int
	buf := make([]byte, 4096)
	src := combined
	for len(src) > 0 {
		// atEOF is always false here: a trailing incomplete sequence is
		// reported as ErrShortSrc and carried over as leftover rather
		// than treated as a hard decode error, since more bytes may
		// still arrive on the stream.
		nDst, nSrc, err := c.dec.Transform(buf, src, false)
		dst = append(dst, buf[:nDst]...)
		totalSrc += nSrc
		src = src[nSrc:]
		if err == nil {
			break
		}
		if err == transform.ErrShortSrc {
			// Remaining bytes are an incomplete trailing sequence;
			// carry them over.
			break
		}
		if err == transform.ErrShortDst {
			continue
		}
		return Result{}, errors.Wrap(err, "encoding: decode error")
	}

	leftoverLen := len(combined) - totalSrc
	if leftoverLen > MaxLeftover {
		return Result{}, errors.New("encoding: leftover exceeds maximum carry-over size")
	}

	consumedFromRaw := totalSrc - len(c.leftover)
	if consumedFromRaw < 0 {
		consumedFromRaw = 0
	}

	c.leftover = append([]byte(nil), combined[totalSrc:]...)

	return Result{Text: dst, RawConsumed: consumedFromRaw, Leftover: len(c.leftover)}, nil
}
