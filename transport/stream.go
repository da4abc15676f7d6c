package transport

import "net"

// StreamTransport wraps a net.Conn (TCP, Unix stream socket, ...) as a
// non-seekable byte Transport.
type StreamTransport struct {
	conn net.Conn
	base *streamBase
}

// NewStreamTransport wraps conn. The returned Transport owns conn and
// closes it on Close.
func NewStreamTransport(conn net.Conn) *StreamTransport {
	t := &StreamTransport{conn: conn}
	t.base = newStreamBase(conn, func() AuxData {
		return AuxData{PeerAddr: conn.RemoteAddr(), LocalAddr: conn.LocalAddr()}
	})
	return t
}

func (t *StreamTransport) Read(buf []byte) (int, AuxData, IOStatus, error) {
	return t.base.Read(buf)
}

func (t *StreamTransport) ReadAhead(buf []byte) (int, bool, AuxData, IOStatus, error) {
	return t.base.ReadAhead(buf)
}

func (t *StreamTransport) Write(buf []byte) (int, IOStatus, error) { return t.base.Write(buf) }

func (t *StreamTransport) Writev(iov [][]byte) (int, IOStatus, error) { return t.base.Writev(iov) }

func (t *StreamTransport) Close() error { return t.base.Close() }
