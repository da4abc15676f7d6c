package transport

import (
	"errors"
	"io"
	"net"
	"os"
)

// streamBase implements the read-ahead cache and EOF-stickiness shared by
// every byte-stream Transport (stream, file, tls, systemd). Concrete
// variants supply rawRead/rawWrite and the AuxData to attach to each read.
type streamBase struct {
	cache   readAheadCache
	raw     io.ReadWriteCloser
	eof     bool
	auxFunc func() AuxData
}

func newStreamBase(raw io.ReadWriteCloser, auxFunc func() AuxData) *streamBase {
	if auxFunc == nil {
		auxFunc = func() AuxData { return AuxData{} }
	}
	return &streamBase{raw: raw, auxFunc: auxFunc}
}

func classifyReadErr(err error) (IOStatus, error) {
	if err == nil {
		return StatusOK, nil
	}
	if errors.Is(err, io.EOF) {
		return StatusEOF, nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return StatusAgain, nil
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return StatusAgain, nil
	}
	return StatusError, NewError(ErrKindIO, err)
}

func (b *streamBase) Read(buf []byte) (int, AuxData, IOStatus, error) {
	if b.cache.pending() > 0 {
		n := b.cache.drain(buf)
		return n, b.auxFunc(), StatusOK, nil
	}

	if b.eof {
		return 0, AuxData{}, StatusEOF, nil
	}

	n, err := b.raw.Read(buf)
	aux := b.auxFunc()
	if n > 0 {
		// A non-empty read with a trailing error (e.g. io.EOF) still
		// reports the bytes now and defers the terminal status to the
		// next call, matching io.Reader's own contract.
		return n, aux, StatusOK, nil
	}
	status, wrapped := classifyReadErr(err)
	if status == StatusEOF {
		b.eof = true
	}
	return 0, aux, status, wrapped
}

func (b *streamBase) ReadAhead(buf []byte) (int, bool, AuxData, IOStatus, error) {
	if len(buf) > MaxReadAhead {
		panic("transport: ReadAhead request exceeds 16-byte cache")
	}
	if b.eof {
		n := copy(buf, b.cache.peeked())
		if n > 0 {
			return n, false, b.auxFunc(), StatusOK, nil
		}
		return 0, false, AuxData{}, StatusEOF, nil
	}

	if b.cache.pending() >= len(buf) {
		saved := b.cache.pos
		n := copy(buf, b.cache.buf[b.cache.pos:b.cache.len])
		b.cache.pos = saved // ReadAhead must not consume.
		return n, false, b.auxFunc(), StatusOK, nil
	}

	need := len(buf) - b.cache.pending()
	tmp := make([]byte, need)
	n, err := b.raw.Read(tmp)
	aux := b.auxFunc()
	if n > 0 {
		b.cache.fill(tmp[:n])
	}
	if n > 0 || err == nil {
		got := copy(buf, b.cache.buf[b.cache.pos:b.cache.len])
		return got, true, aux, StatusOK, nil
	}
	status, wrapped := classifyReadErr(err)
	if status == StatusEOF {
		b.eof = true
		got := copy(buf, b.cache.buf[b.cache.pos:b.cache.len])
		if got > 0 {
			return got, true, aux, StatusOK, nil
		}
	}
	return 0, false, aux, status, wrapped
}

func (b *streamBase) Write(buf []byte) (int, IOStatus, error) {
	n, err := b.raw.Write(buf)
	if err != nil {
		status, wrapped := classifyReadErr(err)
		if status == StatusEOF {
			status, wrapped = StatusError, NewError(ErrKindClosedByPeer, err)
		}
		return n, status, wrapped
	}
	return n, StatusOK, nil
}

func (b *streamBase) Writev(iov [][]byte) (int, IOStatus, error) {
	total := 0
	for _, chunk := range iov {
		n, status, err := b.Write(chunk)
		total += n
		if err != nil || status != StatusOK {
			return total, status, err
		}
	}
	return total, StatusOK, nil
}

func (b *streamBase) Close() error {
	b.eof = true
	return b.raw.Close()
}
