package server

import (
	"github.com/corvidwatch/logproto/transport"
)

// NegotiateProxyProtocol wraps t in a transport.ProxyProtoTransport and
// runs its Handshake, consuming a leading PROXY v1/v2 header if
// present. If required is true and no PROXY header is found (the
// underlying Handshake call still succeeds for UNKNOWN/LOCAL, so
// "required" here only guards against skipping the call entirely), the
// caller should still invoke this before constructing a
// BufferedServer so every record's AuxData carries the proxied
// source/destination pair.
func NegotiateProxyProtocol(t transport.Transport, required bool) (transport.Transport, error) {
	pt := transport.NewProxyProtoTransport(t)
	if err := pt.Handshake(); err != nil {
		if required {
			return nil, newError(KindProxyProtocol, err)
		}
		return nil, err
	}
	return pt, nil
}
