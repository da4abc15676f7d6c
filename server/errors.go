package server

import (
	"github.com/pkg/errors"
)

// Kind classifies why a Fetch failed, mirroring the taxonomy a
// BufferedServer reports so callers can decide whether a condition is
// recoverable (retry later), a protocol violation (drop the
// connection), or fatal (give up on the transport entirely).
type Kind int

const (
	// KindNone indicates no error; used as the zero value.
	KindNone Kind = iota
	// KindAgain means no complete record is available yet; the caller
	// should retry after more input arrives.
	KindAgain
	// KindEOF means the transport reached end of stream with no
	// partial record pending.
	KindEOF
	// KindPartial means the transport reached end of stream with an
	// incomplete record buffered; whether this is reported depends on
	// the server's trailing-partial-record policy.
	KindPartial
	// KindOverlongLine means an unterminated non-transparent line (or
	// oversized decoded record) exceeded the configured maximum and
	// was rejected or truncated per policy.
	KindOverlongLine
	// KindInvalidFraming means an RFC-6587 framed stream's length
	// prefix or separator violated the protocol grammar.
	KindInvalidFraming
	// KindInvalidEncoding means the declared character encoding could
	// not decode the buffered bytes.
	KindInvalidEncoding
	// KindProxyProtocol means a PROXY protocol pre-handshake header
	// was malformed.
	KindProxyProtocol
	// KindIO wraps a lower-level transport I/O error.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindAgain:
		return "again"
	case KindEOF:
		return "eof"
	case KindPartial:
		return "partial"
	case KindOverlongLine:
		return "overlong-line"
	case KindInvalidFraming:
		return "invalid-framing"
	case KindInvalidEncoding:
		return "invalid-encoding"
	case KindProxyProtocol:
		return "proxy-protocol"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// FetchError is returned by Fetch to report a non-success outcome. A
// BufferedServer caches the most recent sticky error (one that should
// be re-reported on every subsequent Fetch until the server is reset
// or restarted) so a caller that calls Fetch again after a fatal
// condition gets the same answer rather than undefined behavior.
type FetchError struct {
	Kind Kind
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return "server: " + e.Kind.String()
	}
	return "server: " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *FetchError) Unwrap() error { return e.Err }

// newError builds a FetchError, wrapping err with a stack trace via
// github.com/pkg/errors when err is non-nil and not already annotated.
func newError(kind Kind, err error) *FetchError {
	if err != nil {
		err = errors.WithStack(err)
	}
	return &FetchError{Kind: kind, Err: err}
}

// IsSticky reports whether a FetchError kind represents a terminal
// condition that a BufferedServer should keep reporting on every
// subsequent Fetch rather than re-attempting the underlying read.
func (k Kind) IsSticky() bool {
	switch k {
	case KindInvalidFraming, KindInvalidEncoding, KindProxyProtocol, KindIO:
		return true
	default:
		return false
	}
}
