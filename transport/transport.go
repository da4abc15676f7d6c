// Package transport defines the byte-oriented transport abstraction that
// sits below the framing servers in package server. A Transport knows
// nothing about record boundaries: it reads and writes bytes, optionally
// peeks ahead a handful of bytes, and carries per-read auxiliary metadata
// (peer address, timestamps, proxied source/destination) alongside the
// data it returns.
package transport

import (
	"net"
	"time"

	"github.com/pkg/errors"
)

// IOStatus is the result space shared by Read, Write and ReadAhead.
type IOStatus int

const (
	// StatusOK indicates the call made progress (n > 0) or, for Write,
	// fully wrote its buffer.
	StatusOK IOStatus = iota
	// StatusAgain indicates no progress was possible without waiting;
	// the caller should retry after the scheduler observes readiness.
	StatusAgain
	// StatusEOF indicates a clean end of stream. Sticky: once returned,
	// all later reads on the same Transport also return StatusEOF.
	StatusEOF
	// StatusError indicates a permanent failure; see ErrKind for detail.
	StatusError
)

func (s IOStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusAgain:
		return "again"
	case StatusEOF:
		return "eof"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// ErrKind distinguishes permanent failure causes, per spec §4.1.
type ErrKind int

const (
	ErrKindNone ErrKind = iota
	ErrKindIO
	ErrKindIOEagainStuck
	ErrKindHandshakeFailed
	ErrKindTLSError
	ErrKindClosedByPeer
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindIO:
		return "io"
	case ErrKindIOEagainStuck:
		return "io_eagain_stuck"
	case ErrKindHandshakeFailed:
		return "handshake_failed"
	case ErrKindTLSError:
		return "tls_error"
	case ErrKindClosedByPeer:
		return "closed_by_peer"
	default:
		return "none"
	}
}

// TransportError wraps a permanent transport failure with its Kind.
type TransportError struct {
	Kind ErrKind
	Err  error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Err.Error()
	}
	return e.Kind.String()
}

func (e *TransportError) Unwrap() error { return e.Err }

// NewError wraps err as a permanent TransportError of the given kind.
func NewError(kind ErrKind, err error) error {
	return &TransportError{Kind: kind, Err: errors.WithStack(err)}
}

// ErrAgain is returned (unwrapped) by implementations that have no
// underlying error to report alongside a transient failure.
var ErrAgain = errors.New("transport: operation would block")

// ProxiedAddrPair carries the original source/destination addresses
// recovered from a PROXY protocol pre-handshake (spec §4.8).
type ProxiedAddrPair struct {
	Source      net.Addr
	Destination net.Addr
}

// AuxData is per-read metadata attached to every extracted record.
// Value semantics: callers may copy it freely.
type AuxData struct {
	PeerAddr    net.Addr
	LocalAddr   net.Addr
	Timestamp   time.Time
	HasTimestamp bool
	Proxied     *ProxiedAddrPair
}

// Transport is the byte-oriented capability contract of spec §4.1.
//
// Implementations are not safe for concurrent use: spec §5 requires every
// Transport to be owned by exactly one scheduler task at a time.
type Transport interface {
	// Read reads up to len(buf) bytes, reporting status and, on StatusOK,
	// the auxiliary metadata captured for this read (peer address,
	// timestamp, ...).
	Read(buf []byte) (n int, aux AuxData, status IOStatus, err error)

	// Write writes buf in full or returns an error; partial writes are
	// only reported via err, never silently.
	Write(buf []byte) (n int, status IOStatus, err error)

	// Writev writes each buffer in iov, in order, as if concatenated.
	Writev(iov [][]byte) (n int, status IOStatus, err error)

	// ReadAhead peeks up to len(buf) bytes (at most 16) without consuming
	// them from the stream; a subsequent Read must return the same bytes
	// first. moved_forward reports whether the peek had to read new bytes
	// from the underlying source (false if fully served from cache).
	// Peeking more than 16 bytes is a programming error and panics.
	ReadAhead(buf []byte) (n int, movedForward bool, aux AuxData, status IOStatus, err error)

	// Close releases the underlying handle. After Close, Read returns
	// StatusEOF.
	Close() error
}

// MaxReadAhead is the fixed size of the read-ahead cache (spec §4.1).
const MaxReadAhead = 16
