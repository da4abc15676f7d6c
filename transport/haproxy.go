package transport

import (
	"encoding/binary"
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ProxyProtoTransport wraps an inner Transport and consumes a PROXY
// protocol (v1 or v2) header from the front of the stream during an
// explicit Handshake call, then passes all subsequent reads straight
// through to the inner transport. The parsed source/destination
// addresses are exposed via Proxied and are attached to every
// subsequent Read's AuxData.
type ProxyProtoTransport struct {
	inner   Transport
	proxied *ProxiedAddrPair
	done    bool
}

// NewProxyProtoTransport wraps inner. Handshake must be called before
// any Read.
func NewProxyProtoTransport(inner Transport) *ProxyProtoTransport {
	return &ProxyProtoTransport{inner: inner}
}

var proxyV2Signature = [12]byte{0x0D, 0x0A, 0x0D, 0x0A, 0x00, 0x0D, 0x0A, 0x51, 0x55, 0x49, 0x54, 0x0A}

// Proxied returns the source/destination pair parsed during Handshake,
// or nil if the header declared UNKNOWN/LOCAL or Handshake has not run.
func (t *ProxyProtoTransport) Proxied() *ProxiedAddrPair { return t.proxied }

func (t *ProxyProtoTransport) withProxied(aux AuxData) AuxData {
	if t.proxied != nil {
		aux.Proxied = t.proxied
	}
	return aux
}

func (t *ProxyProtoTransport) Read(buf []byte) (int, AuxData, IOStatus, error) {
	n, aux, status, err := t.inner.Read(buf)
	return n, t.withProxied(aux), status, err
}

func (t *ProxyProtoTransport) ReadAhead(buf []byte) (int, bool, AuxData, IOStatus, error) {
	n, moved, aux, status, err := t.inner.ReadAhead(buf)
	return n, moved, t.withProxied(aux), status, err
}

func (t *ProxyProtoTransport) Write(buf []byte) (int, IOStatus, error) { return t.inner.Write(buf) }

func (t *ProxyProtoTransport) Writev(iov [][]byte) (int, IOStatus, error) {
	return t.inner.Writev(iov)
}

func (t *ProxyProtoTransport) Close() error { return t.inner.Close() }

// Handshake reads and strips the PROXY header from the front of the
// stream. It recognizes the v2 binary signature by peeking 12 bytes;
// absent that, it falls back to the v1 ASCII "PROXY ..." line.
func (t *ProxyProtoTransport) Handshake() error {
	var sig [12]byte
	n, moved, _, status, err := t.inner.ReadAhead(sig[:])
	if err != nil {
		return err
	}
	if status != StatusOK || n < 12 {
		_ = moved
		return NewError(ErrKindHandshakeFailed, errors.New("proxy protocol: short read on header probe"))
	}

	if sig == proxyV2Signature {
		return t.handshakeV2()
	}
	return t.handshakeV1()
}

func (t *ProxyProtoTransport) handshakeV2() error {
	var hdr [16]byte
	n, _, status, err := readFull(t.inner, hdr[:])
	if err != nil || status != StatusOK || n != 16 {
		return NewError(ErrKindHandshakeFailed, errors.New("proxy protocol: truncated v2 header"))
	}

	verCmd := hdr[12]
	if verCmd>>4 != 2 {
		return NewError(ErrKindHandshakeFailed, errors.New("proxy protocol: unsupported v2 version"))
	}
	cmd := verCmd & 0x0F

	famProto := hdr[13]
	family := famProto >> 4
	addrLen := int(binary.BigEndian.Uint16(hdr[14:16]))

	body := make([]byte, addrLen)
	if addrLen > 0 {
		n, _, status, err := readFull(t.inner, body)
		if err != nil || status != StatusOK || n != addrLen {
			return NewError(ErrKindHandshakeFailed, errors.New("proxy protocol: truncated v2 address block"))
		}
	}

	if cmd == 0x0 {
		// LOCAL command: connection was issued by the proxy itself for
		// health checks; no address rewrite.
		t.done = true
		return nil
	}

	switch family {
	case 0x0: // AF_UNSPEC
		t.done = true
		return nil
	case 0x1: // AF_INET
		if len(body) < 12 {
			return NewError(ErrKindHandshakeFailed, errors.New("proxy protocol: short v2 IPv4 address block"))
		}
		src := net.IP(body[0:4])
		dst := net.IP(body[4:8])
		srcPort := binary.BigEndian.Uint16(body[8:10])
		dstPort := binary.BigEndian.Uint16(body[10:12])
		t.proxied = &ProxiedAddrPair{
			Source:      &net.TCPAddr{IP: src, Port: int(srcPort)},
			Destination: &net.TCPAddr{IP: dst, Port: int(dstPort)},
		}
	case 0x2: // AF_INET6
		if len(body) < 36 {
			return NewError(ErrKindHandshakeFailed, errors.New("proxy protocol: short v2 IPv6 address block"))
		}
		src := net.IP(body[0:16])
		dst := net.IP(body[16:32])
		srcPort := binary.BigEndian.Uint16(body[32:34])
		dstPort := binary.BigEndian.Uint16(body[34:36])
		t.proxied = &ProxiedAddrPair{
			Source:      &net.TCPAddr{IP: src, Port: int(srcPort)},
			Destination: &net.TCPAddr{IP: dst, Port: int(dstPort)},
		}
	case 0x3: // AF_UNIX
		if len(body) < 216 {
			return NewError(ErrKindHandshakeFailed, errors.New("proxy protocol: short v2 unix address block"))
		}
		src := string(trimZero(body[0:108]))
		dst := string(trimZero(body[108:216]))
		t.proxied = &ProxiedAddrPair{
			Source:      &net.UnixAddr{Name: src, Net: "unix"},
			Destination: &net.UnixAddr{Name: dst, Net: "unix"},
		}
	default:
		return NewError(ErrKindHandshakeFailed, errors.New("proxy protocol: unknown v2 address family"))
	}

	t.done = true
	return nil
}

func trimZero(b []byte) []byte {
	for i, c := range b {
		if c == 0 {
			return b[:i]
		}
	}
	return b
}

// readFull drives Transport.Read in a loop until buf is full or an
// error, EOF or an unknown status ends the sequence; StatusAgain is
// retried at once, without waiting for readiness. Used only during the
// pre-handshake PROXY header parse, where the scheduler's normal
// cooperative Prepare/Fetch contract does not yet apply.
func readFull(t Transport, buf []byte) (int, AuxData, IOStatus, error) {
	total := 0
	var aux AuxData
	for total < len(buf) {
		n, a, status, err := t.Read(buf[total:])
		total += n
		aux = a
		if err != nil {
			return total, aux, status, err
		}
		switch status {
		case StatusOK:
			continue
		case StatusEOF:
			return total, aux, status, nil
		case StatusAgain:
			continue
		default:
			return total, aux, status, nil
		}
	}
	return total, aux, StatusOK, nil
}

// handshakeV1 parses the ASCII "PROXY TCP4 <src> <dst> <sport> <dport>\r\n"
// (or "PROXY UNKNOWN\r\n") line per the PROXY protocol v1 grammar.
func (t *ProxyProtoTransport) handshakeV1() error {
	br := &byteReader{t: t.inner}
	line, err := br.readLine()
	if err != nil {
		return NewError(ErrKindHandshakeFailed, errors.Wrap(err, "proxy protocol: reading v1 header line"))
	}
	if !strings.HasPrefix(line, "PROXY ") {
		return NewError(ErrKindHandshakeFailed, errors.New("proxy protocol: missing PROXY prefix"))
	}
	fields := strings.Split(strings.TrimRight(line, "\r\n"), " ")
	if len(fields) < 2 {
		return NewError(ErrKindHandshakeFailed, errors.New("proxy protocol: malformed v1 header"))
	}

	if fields[1] == "UNKNOWN" {
		t.done = true
		return nil
	}
	if len(fields) != 6 {
		return NewError(ErrKindHandshakeFailed, errors.New("proxy protocol: malformed v1 address fields"))
	}
	proto := fields[1]
	if proto != "TCP4" && proto != "TCP6" {
		return NewError(ErrKindHandshakeFailed, errors.Errorf("proxy protocol: unsupported v1 protocol %q", proto))
	}
	srcIP := net.ParseIP(fields[2])
	dstIP := net.ParseIP(fields[3])
	if srcIP == nil || dstIP == nil {
		return NewError(ErrKindHandshakeFailed, errors.New("proxy protocol: invalid v1 address"))
	}
	srcPort, err1 := strconv.Atoi(fields[4])
	dstPort, err2 := strconv.Atoi(fields[5])
	if err1 != nil || err2 != nil || srcPort < 0 || srcPort > 65535 || dstPort < 0 || dstPort > 65535 {
		return NewError(ErrKindHandshakeFailed, errors.New("proxy protocol: invalid v1 port"))
	}

	t.proxied = &ProxiedAddrPair{
		Source:      &net.TCPAddr{IP: srcIP, Port: srcPort},
		Destination: &net.TCPAddr{IP: dstIP, Port: dstPort},
	}
	t.done = true
	return nil
}

// byteReader reads a single CRLF-terminated line from a Transport one
// byte at a time via Read, bounded to the PROXY v1 spec's
// maximum 107-byte header line to avoid unbounded buffering on a
// misbehaving peer.
type byteReader struct {
	t Transport
}

const maxProxyV1Line = 107

func (r *byteReader) readLine() (string, error) {
	var sb strings.Builder
	one := make([]byte, 1)
	for sb.Len() < maxProxyV1Line {
		n, _, status, err := r.t.Read(one)
		if err != nil {
			return "", err
		}
		if status != StatusOK || n == 0 {
			return "", errors.New("short read")
		}
		sb.WriteByte(one[0])
		if strings.HasSuffix(sb.String(), "\r\n") {
			return sb.String(), nil
		}
	}
	return "", errors.New("proxy protocol: v1 header line too long")
}
