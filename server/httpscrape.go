package server

import (
	"bufio"
	"bytes"
	"fmt"
	"net/http"
	"net/textproto"

	"github.com/pkg/errors"

	"github.com/corvidwatch/logproto/transport"
)

// HTTPScrapeResponder answers a single inbound HTTP/1.x request on a
// stream Transport with a canned response, for sources that are
// periodically "scraped" over a plain request/response exchange
// rather than pushed to continuously (e.g. a healthcheck or metrics
// puller probing the same port a syslog listener accepts connections
// on). It is not a general HTTP server: it reads exactly one request,
// writes exactly one response, and closes.
type HTTPScrapeResponder struct {
	transport transport.Transport
	status    int
	header    http.Header
	body      []byte
}

// NewHTTPScrapeResponder builds a responder that replies with status,
// header, and body to the next request read from t.
func NewHTTPScrapeResponder(t transport.Transport, status int, header http.Header, body []byte) *HTTPScrapeResponder {
	if header == nil {
		header = make(http.Header)
	}
	return &HTTPScrapeResponder{transport: t, status: status, header: header, body: body}
}

// transportReader adapts a transport.Transport to io.Reader for use
// with bufio/textproto, which the stdlib net/http request parser
// expects.
type transportReader struct {
	t transport.Transport
}

func (r transportReader) Read(p []byte) (int, error) {
	n, _, status, err := r.t.Read(p)
	if err != nil {
		return n, err
	}
	switch status {
	case transport.StatusEOF:
		if n == 0 {
			return 0, errEOF
		}
	case transport.StatusAgain:
		return 0, errAgain
	}
	return n, nil
}

var errEOF = errors.New("server: transport at EOF")
var errAgain = errors.New("server: transport would block")

// Respond reads one HTTP request from the transport and writes the
// configured canned response, matching the minimal scrape-responder
// behavior: it never inspects the request method or path, since its
// only purpose is to keep a health-checking scraper from treating the
// listener as down.
func (h *HTTPScrapeResponder) Respond() error {
	br := bufio.NewReader(transportReader{h.transport})
	tp := textproto.NewReader(br)

	if _, err := tp.ReadLine(); err != nil {
		return errors.Wrap(err, "server: reading HTTP request line")
	}
	if _, err := tp.ReadMIMEHeader(); err != nil && err.Error() != "EOF" {
		return errors.Wrap(err, "server: reading HTTP request headers")
	}

	var resp bytes.Buffer
	fmt.Fprintf(&resp, "HTTP/1.1 %d %s\r\n", h.status, http.StatusText(h.status))
	h.header.Set("Content-Length", fmt.Sprintf("%d", len(h.body)))
	if h.header.Get("Connection") == "" {
		h.header.Set("Connection", "close")
	}
	if err := h.header.Write(&resp); err != nil {
		return errors.Wrap(err, "server: writing response headers")
	}
	resp.WriteString("\r\n")
	resp.Write(h.body)

	if _, status, err := h.transport.Write(resp.Bytes()); err != nil {
		return err
	} else if status != transport.StatusOK {
		return errors.New("server: short write responding to scrape request")
	}
	return h.transport.Close()
}
