package transport

import (
	"errors"
	"net"
)

// DgramTransport wraps a net.PacketConn (UDP, unix datagram, ...). Each
// Read returns at most one whole datagram; ReadAhead's 16-byte cache
// still applies, but spanning a read-ahead across packet boundaries is
// meaningless for datagram transports, so read-ahead never triggers a
// second recvfrom.
//
// Per spec §4.1, dgram transports may mask EOF as Again to allow the
// socket to be rebound without the server treating the stream as
// permanently closed.
type DgramTransport struct {
	conn      net.PacketConn
	remote    net.Addr
	cache     readAheadCache
	maskEOF   bool
	closed    bool
}

// NewDgramTransport wraps conn. If maskEOF is true, a closed-by-peer style
// condition is reported as StatusAgain instead of StatusEOF. remote, if
// non-nil, is the fixed peer address used by Write/Writev (a "connected"
// datagram socket); if nil, Write returns an error since there is no
// implicit destination.
func NewDgramTransport(conn net.PacketConn, remote net.Addr, maskEOF bool) *DgramTransport {
	return &DgramTransport{conn: conn, remote: remote, maskEOF: maskEOF}
}

func (t *DgramTransport) Read(buf []byte) (int, AuxData, IOStatus, error) {
	if t.cache.pending() > 0 {
		n := t.cache.drain(buf)
		return n, AuxData{}, StatusOK, nil
	}
	if t.closed {
		return 0, AuxData{}, StatusEOF, nil
	}
	n, peer, err := t.conn.ReadFrom(buf)
	if err != nil {
		return t.classify(err)
	}
	return n, AuxData{PeerAddr: peer, LocalAddr: t.conn.LocalAddr()}, StatusOK, nil
}

func (t *DgramTransport) ReadAhead(buf []byte) (int, bool, AuxData, IOStatus, error) {
	if len(buf) > MaxReadAhead {
		panic("transport: ReadAhead request exceeds 16-byte cache")
	}
	if t.cache.pending() > 0 {
		n := copy(buf, t.cache.peeked())
		return n, false, AuxData{}, StatusOK, nil
	}
	if t.closed {
		n := t.cache.drain(buf)
		if n > 0 {
			return n, false, AuxData{}, StatusOK, nil
		}
		return 0, false, AuxData{}, StatusEOF, nil
	}

	tmp := make([]byte, MaxReadAhead)
	n, peer, err := t.conn.ReadFrom(tmp)
	if err != nil {
		n, aux, status, werr := t.classify(err)
		return n, true, aux, status, werr
	}
	t.cache.fill(tmp[:n])
	got := copy(buf, t.cache.buf[t.cache.pos:t.cache.len])
	return got, true, AuxData{PeerAddr: peer, LocalAddr: t.conn.LocalAddr()}, StatusOK, nil
}

func (t *DgramTransport) classify(err error) (int, AuxData, IOStatus, error) {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return 0, AuxData{}, StatusAgain, nil
	}
	if t.maskEOF {
		return 0, AuxData{}, StatusAgain, nil
	}
	return 0, AuxData{}, StatusError, NewError(ErrKindIO, err)
}

func (t *DgramTransport) Write(buf []byte) (int, IOStatus, error) {
	if t.remote == nil {
		return 0, StatusError, NewError(ErrKindIO, errors.New("dgram transport has no peer address to write to"))
	}
	n, err := t.conn.WriteTo(buf, t.remote)
	if err != nil {
		return n, StatusError, NewError(ErrKindIO, err)
	}
	return n, StatusOK, nil
}

func (t *DgramTransport) Writev(iov [][]byte) (int, IOStatus, error) {
	total := 0
	for _, chunk := range iov {
		n, status, err := t.Write(chunk)
		total += n
		if err != nil || status != StatusOK {
			return total, status, err
		}
	}
	return total, StatusOK, nil
}

func (t *DgramTransport) Close() error {
	t.closed = true
	return t.conn.Close()
}
