package transport

import (
	"crypto/tls"
	"io"
	"os"
	"sync"
)

// keylogWriter serializes writes to a debug TLS keylog file with a
// per-context mutex, per spec §5 ("The TLS keylog file (debug-only) is
// append-only; writes must be serialized with a per-context mutex").
type keylogWriter struct {
	mu sync.Mutex
	f  *os.File
}

func (k *keylogWriter) Write(p []byte) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.f.Write(p)
}

// NewTLSKeyLogWriter opens (creating/appending) the named file as a
// tls.Config.KeyLogWriter suitable for sharing across many TLSTransports
// in the same process.
func NewTLSKeyLogWriter(path string) (io.Writer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, NewError(ErrKindIO, err)
	}
	return &keylogWriter{f: f}, nil
}

// TLSTransport treats an established *tls.Conn as an opaque byte
// transport: per spec §1, the framing core "does not manage TLS
// handshakes beyond treating an established TLS channel as an opaque
// byte transport."
type TLSTransport struct {
	conn *tls.Conn
	base *streamBase
}

// NewTLSTransport wraps conn, which must already be handshaked (or will
// lazily handshake on first Read/Write, per crypto/tls's own contract).
// A failure reported by Handshake has kind ErrKindHandshakeFailed; a
// lazy handshake failing inside Read or Write surfaces as ErrKindIO.
func NewTLSTransport(conn *tls.Conn) *TLSTransport {
	t := &TLSTransport{conn: conn}
	t.base = newStreamBase(tlsReadWriteCloser{conn}, func() AuxData {
		return AuxData{PeerAddr: conn.RemoteAddr(), LocalAddr: conn.LocalAddr()}
	})
	return t
}

// tlsReadWriteCloser adapts *tls.Conn to io.ReadWriteCloser for streamBase.
type tlsReadWriteCloser struct{ conn *tls.Conn }

func (t tlsReadWriteCloser) Read(p []byte) (int, error)  { return t.conn.Read(p) }
func (t tlsReadWriteCloser) Write(p []byte) (int, error) { return t.conn.Write(p) }
func (t tlsReadWriteCloser) Close() error                { return t.conn.Close() }

func (t *TLSTransport) Read(buf []byte) (int, AuxData, IOStatus, error) {
	return t.base.Read(buf)
}

func (t *TLSTransport) ReadAhead(buf []byte) (int, bool, AuxData, IOStatus, error) {
	return t.base.ReadAhead(buf)
}

func (t *TLSTransport) Write(buf []byte) (int, IOStatus, error) { return t.base.Write(buf) }

func (t *TLSTransport) Writev(iov [][]byte) (int, IOStatus, error) { return t.base.Writev(iov) }

func (t *TLSTransport) Close() error { return t.base.Close() }

// Handshake forces the TLS handshake to complete now, reporting a
// HandshakeFailed-kinded error if it fails, matching spec §4.1's error
// taxonomy for pre-handshake transports.
func (t *TLSTransport) Handshake() error {
	if err := t.conn.Handshake(); err != nil {
		return NewError(ErrKindHandshakeFailed, err)
	}
	return nil
}
