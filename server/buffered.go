// Package server implements the framing/record-extraction state
// machines that sit between a transport.Transport and a sink.Sink:
// BufferedServer holds the shared buffer-management algorithm, and
// TextServer, FramedExtractor, NonTransparentExtractor, DGramExtractor,
// RecordExtractor, and AutoExtractor each implement Extractor, the
// policy for recognizing one complete record inside the buffer.
package server

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/corvidwatch/logproto/ack"
	"github.com/corvidwatch/logproto/diag"
	"github.com/corvidwatch/logproto/encoding"
	"github.com/corvidwatch/logproto/persist"
	"github.com/corvidwatch/logproto/sink"
	"github.com/corvidwatch/logproto/transport"
)

// Extractor recognizes zero or one complete record at the front of
// buf[:end]. It returns the number of raw-decoded bytes consumed
// (which must be removed from the front of the buffer on success),
// the extracted record bytes (a view into buf, valid only until the
// next call), and a Kind describing the outcome: KindNone on success,
// KindAgain if no complete record is present yet, or any other Kind
// on a terminal condition for this buffer's content.
//
// atEOF is true when the transport has signaled end of stream and no
// further bytes will arrive; an Extractor uses this to decide whether
// to treat a trailing, unterminated run of bytes as a final record.
type Extractor interface {
	Extract(buf []byte, atEOF bool) (consumed int, record []byte, kind Kind)
}

// BufferedServer implements the shared fetch algorithm described by
// the teacher's framing decoders (bufio.Scanner-driven split
// functions) generalized to operate over a persistent, growable
// buffer instead of a one-shot token stream, since a syslog source
// must be resumable across restarts.
//
// Position tracking distinguishes bytes read from the transport
// (rawStreamPos, advanced as soon as they are decoded) from bytes
// whose record has actually been acknowledged (tracker.Confirmed()):
// only the latter is ever persisted, so an unacknowledged tail is
// re-delivered rather than lost across a restart.
type BufferedServer struct {
	opts      Options
	transport transport.Transport
	extractor Extractor
	sink      sink.Sink
	converter *encoding.Converter
	store     persist.Store
	storeKey  string
	tracker   ack.Tracker

	buf    []byte // decoded text awaiting extraction
	bufPos int    // start of unconsumed data in buf

	rawStreamPos uint64 // raw bytes decoded from the transport so far
	eof          bool
	stickyErr    *FetchError

	warnOverlongOnce sync.Once
}

// NewBufferedServer wires t, an Extractor implementing one server's
// record-recognition policy, and a delivery Sink into a BufferedServer
// ready for Fetch. store and storeKey may be nil/empty to disable
// persistence.
func NewBufferedServer(t transport.Transport, extractor Extractor, snk sink.Sink, opts Options, store persist.Store, storeKey string) (*BufferedServer, error) {
	conv, err := opts.newConverter()
	if err != nil {
		return nil, err
	}
	return &BufferedServer{
		opts:      opts,
		transport: t,
		extractor: extractor,
		sink:      snk,
		converter: conv,
		store:     store,
		storeKey:  storeKey,
		tracker:   ack.NewInOrderTracker(),
		buf:       make([]byte, 0, opts.InitialBufferSize),
	}, nil
}

// RestartWithState seeks the underlying transport (if it supports
// Pos/Identity, i.e. is a *transport.FileTransport) to the position
// recorded in a previously persisted BufferedServerState, refusing to
// resume if the file's identity no longer matches (it was rotated or
// truncated below the checkpoint). The decoded buffer is discarded
// (it will be rebuilt from the reseeked raw offset) and the encoding
// converter's partial-character leftover is restored, so decoding
// resumes exactly where it left off rather than re-splitting a
// multi-byte character at the restart boundary.
func (s *BufferedServer) RestartWithState(state *persist.BufferedServerState) error {
	ft, ok := s.transport.(*transport.FileTransport)
	if !ok {
		return errors.New("server: RestartWithState requires a FileTransport")
	}
	size, inode, err := ft.Identity()
	if err != nil {
		return err
	}
	if !state.MatchesFile(size, inode) {
		return errors.New("server: persisted state does not match current file identity")
	}

	if err := ft.Seek(int64(state.RawStreamPos)); err != nil {
		return err
	}

	s.rawStreamPos = state.RawStreamPos
	s.buf = s.buf[:0]
	s.bufPos = 0
	s.eof = false
	s.stickyErr = nil
	s.tracker = ack.NewInOrderTracker()

	s.converter.Reset()
	if state.RawBufferLeftoverSize > 0 {
		leftover := state.RawBufferLeftover[:state.RawBufferLeftoverSize]
		s.converter.SetLeftover(leftover)
	}
	return nil
}

// Prepare reports whether Fetch can make progress from what the server
// already holds: true if the decoded buffer still has unconsumed bytes
// or the transport has reported EOF. It does not look at the
// transport's read-ahead cache and never performs a read itself; a
// caller polls the transport's readiness externally (e.g. via
// sched.Loop) to learn when new bytes are available.
func (s *BufferedServer) Prepare() bool {
	return len(s.buf) > s.bufPos || s.eof
}

// Fetch performs the buffered-server algorithm: (1) if the decoded
// buffer already holds a complete record, extract and return it
// without touching the transport; (2) otherwise read more raw bytes;
// (3) decode them, accounting for any leftover partial character from
// the previous read; (4) append to the decoded buffer, growing it if
// needed up to MaxBufferSize; (5) retry extraction.
func (s *BufferedServer) Fetch(ctx context.Context) (sink.Record, error) {
	if s.stickyErr != nil {
		return sink.Record{}, s.stickyErr
	}

	trace := diag.ContextTrace(ctx)
	if trace != nil && trace.FetchStart != nil {
		trace.FetchStart()
	}

	rec, err := s.fetch(ctx)

	if trace != nil && trace.FetchDone != nil {
		n := 0
		if err == nil {
			n = len(rec.Data)
		}
		trace.FetchDone(n, err)
	}
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) && fe.Kind.IsSticky() {
			s.stickyErr = fe
		}
		if trace != nil && trace.Error != nil {
			trace.Error(err)
		}
	} else if trace != nil && trace.RecordExtracted != nil {
		trace.RecordExtracted(len(rec.Data), rec.Aux)
	}
	return rec, err
}

func (s *BufferedServer) fetch(ctx context.Context) (sink.Record, error) {
	// Step 1: try the buffer we already have.
	if rec, ok, err := s.tryExtract(ctx); ok || err != nil {
		return rec, err
	}

	var lastAux transport.AuxData

	for {
		// Step 2: pull more raw bytes from the transport.
		readBuf := make([]byte, 4096)
		n, aux, status, err := s.transport.Read(readBuf)
		if err != nil {
			return sink.Record{}, newError(KindIO, err)
		}
		lastAux = aux

		switch status {
		case transport.StatusAgain:
			return sink.Record{}, newError(KindAgain, nil)
		case transport.StatusError:
			return sink.Record{}, newError(KindIO, errors.New("transport read error"))
		case transport.StatusEOF:
			s.eof = true
		}

		if n > 0 {
			// Step 3: decode, carrying over any partial character.
			result, err := s.converter.Convert(readBuf[:n])
			if err != nil {
				return sink.Record{}, newError(KindInvalidEncoding, err)
			}
			s.rawStreamPos += uint64(result.RawConsumed)

			// Step 4: append to the decoded buffer, growing if needed.
			if err := s.appendDecoded(ctx, result.Text); err != nil {
				return sink.Record{}, err
			}
		}

		// Step 5: retry extraction.
		if rec, ok, err := s.tryExtract(ctx); ok || err != nil {
			if ok {
				rec.Aux = lastAux
			}
			return rec, err
		}

		if s.eof {
			return sink.Record{}, newError(KindEOF, nil)
		}
	}
}

func (s *BufferedServer) appendDecoded(ctx context.Context, text []byte) error {
	needed := len(s.buf) - s.bufPos + len(text)
	if cap(s.buf)-s.bufPos < len(text) {
		newCap := cap(s.buf) * 2
		if newCap < needed {
			newCap = needed
		}
		if newCap > s.opts.MaxBufferSize {
			newCap = s.opts.MaxBufferSize
		}
		if needed > s.opts.MaxBufferSize {
			return newError(KindOverlongLine, errors.New("buffer exceeds configured maximum"))
		}

		trace := diag.ContextTrace(ctx)
		if trace != nil && trace.BufferGrow != nil {
			trace.BufferGrow(cap(s.buf), newCap)
		}

		grown := make([]byte, len(s.buf)-s.bufPos, newCap)
		copy(grown, s.buf[s.bufPos:])
		s.buf = grown
		s.bufPos = 0
	} else if s.bufPos > 0 {
		// Shift left to reclaim space already consumed, matching the
		// teacher's scanner buffer compaction on each Scan.
		copy(s.buf, s.buf[s.bufPos:])
		s.buf = s.buf[:len(s.buf)-s.bufPos]
		s.bufPos = 0
	}
	s.buf = append(s.buf, text...)
	return nil
}

func (s *BufferedServer) tryExtract(ctx context.Context) (sink.Record, bool, error) {
	consumed, record, kind := s.extractor.Extract(s.buf[s.bufPos:], s.eof)
	switch kind {
	case KindNone, KindOverlongLine:
		if kind == KindOverlongLine {
			s.warnOnce(ctx, "record exceeded max_msg_size")
		}
		out := make([]byte, len(record))
		copy(out, record)
		s.bufPos += consumed
		bm := s.tracker.Issue(s.rawStreamPos)
		return sink.Record{Data: out, RawStreamPos: s.rawStreamPos, Bookmark: bm}, true, nil
	case KindAgain:
		return sink.Record{}, false, nil
	default:
		return sink.Record{}, true, newError(kind, nil)
	}
}

func (s *BufferedServer) warnOnce(ctx context.Context, msg string) {
	s.warnOverlongOnce.Do(func() {
		if trace := diag.ContextTrace(ctx); trace != nil && trace.Warning != nil {
			trace.Warning(msg)
		}
	})
}

// Ack confirms that bm's record has been durably handled, letting the
// position tracker advance the persisted raw_stream_pos up to (and
// including) bm, provided every bookmark issued before it has also
// been acked. A Sink that defers acknowledgment past Deliver returning
// (e.g. hands the record to an async queue) must call this once the
// record is actually committed downstream.
func (s *BufferedServer) Ack(bm ack.Bookmark) {
	s.tracker.Ack(bm)
}

// Checkpoint builds a BufferedServerState reflecting the server's
// last acknowledged position, suitable for persist.Store.Save. Only
// the tracker-confirmed raw_stream_pos is ever persisted as the
// resumable position; rawStreamPos (bytes decoded but not necessarily
// acked) is recorded only in the pending_raw_stream_pos field, purely
// informational.
func (s *BufferedServer) Checkpoint() *persist.BufferedServerState {
	confirmed, _ := s.tracker.Confirmed()

	leftover := s.converter.Leftover()
	state := &persist.BufferedServerState{
		RawStreamPos:          confirmed,
		PendingRawStreamPos:   s.rawStreamPos,
		BufferPos:             uint32(s.bufPos),
		PendingBufferPos:      uint32(s.bufPos),
		PendingBufferEnd:      uint32(len(s.buf)),
		BufferSize:            uint32(cap(s.buf)),
		RawBufferLeftoverSize: uint32(len(leftover)),
	}
	copy(state.RawBufferLeftover[:], leftover)
	if ft, ok := s.transport.(*transport.FileTransport); ok {
		if size, inode, err := ft.Identity(); err == nil {
			state.FileSize = size
			state.FileInode = inode
		}
	}
	return state
}

// SaveCheckpoint persists the server's current state via its
// configured Store, a no-op if no Store was configured or if no
// record has been acknowledged yet (nothing confirmed to advance to).
func (s *BufferedServer) SaveCheckpoint(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	if _, ok := s.tracker.Confirmed(); !ok {
		return nil
	}
	err := s.store.Save(s.storeKey, s.Checkpoint())
	if trace := diag.ContextTrace(ctx); trace != nil && trace.StateSaved != nil {
		trace.StateSaved(s.storeKey, err)
	}
	return err
}

// Deliver forwards rec to the configured Sink and, on success,
// immediately acknowledges rec's bookmark. A Sink that hands the
// record off for asynchronous processing should instead call Ack
// itself once delivery is truly durable, rather than relying on this
// auto-ack.
func (s *BufferedServer) Deliver(ctx context.Context, rec sink.Record) error {
	if err := s.sink.Deliver(ctx, rec); err != nil {
		return err
	}
	s.Ack(rec.Bookmark)
	return nil
}

// ResetError clears a cached sticky error so the next Fetch reads from
// the transport again instead of replaying it.
func (s *BufferedServer) ResetError() { s.stickyErr = nil }

// Close closes the underlying transport.
func (s *BufferedServer) Close() error { return s.transport.Close() }
