// Command logprotocat is a minimal example CLI demonstrating the
// logproto pipeline end to end: it listens on a TCP address, applies
// auto-detected RFC 6587 framing to each connection, and prints each
// extracted record to stdout, saving each connection's acknowledged
// position to a local bbolt database after every record. The saved
// checkpoints are never loaded, so a restart does not resume anything.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/corvidwatch/logproto/diag"
	"github.com/corvidwatch/logproto/persist"
	"github.com/corvidwatch/logproto/server"
	"github.com/corvidwatch/logproto/sink"
	"github.com/corvidwatch/logproto/transport"
)

func main() {
	addr := flag.String("listen", ":6514", "address to listen on")
	maxMsgLen := flag.Int("max-message-size", 64*1024, "maximum bytes per RFC 6587 message")
	statePath := flag.String("state", "logprotocat.db", "path to the bbolt checkpoint database")
	requireProxy := flag.Bool("require-proxy-protocol", false, "require a PROXY protocol v1/v2 header on every connection")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := persist.OpenBoltStore(*statePath)
	if err != nil {
		log.Fatalf("logprotocat: opening state store: %v", err)
	}
	defer store.Close()

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatalf("logprotocat: listen: %v", err)
	}
	defer ln.Close()

	log.Printf("logprotocat: listening on %s", *addr)

	opts, err := server.BuildOptions(
		server.WithMaxMessageSize(*maxMsgLen),
		server.WithMaxBufferSize(*maxMsgLen*2),
	)
	if err != nil {
		log.Fatalf("logprotocat: building options: %v", err)
	}

	ctx = diag.WithTrace(ctx, diag.DefaultLoggingHooks())

	go acceptLoop(ctx, ln, opts, store, *requireProxy)

	<-ctx.Done()
	log.Printf("logprotocat: shutting down")
}

func acceptLoop(ctx context.Context, ln net.Listener, opts server.Options, store persist.Store, requireProxy bool) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				log.Printf("logprotocat: accept: %v", err)
				continue
			}
		}
		go handleConn(ctx, conn, opts, store, requireProxy)
	}
}

func handleConn(ctx context.Context, conn net.Conn, opts server.Options, store persist.Store, requireProxy bool) {
	defer conn.Close()

	var t transport.Transport = transport.NewStreamTransport(conn)
	if requireProxy {
		wrapped, err := server.NegotiateProxyProtocol(t, requireProxy)
		if err != nil {
			log.Printf("logprotocat: %s: proxy protocol handshake failed: %v", conn.RemoteAddr(), err)
			return
		}
		t = wrapped
	}

	extractor := server.NewAutoExtractor(opts.MaxMessageSize, opts.TrimLargeMessages)
	snk := sink.FuncSink(func(_ context.Context, rec sink.Record) error {
		fmt.Println(string(rec.Data))
		return nil
	})

	bs, err := server.NewBufferedServer(t, extractor, snk, opts, store, conn.RemoteAddr().String())
	if err != nil {
		log.Printf("logprotocat: %s: building server: %v", conn.RemoteAddr(), err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		rec, err := bs.Fetch(ctx)
		if err != nil {
			var fe *server.FetchError
			if errors.As(err, &fe) && fe.Kind == server.KindAgain {
				continue
			}
			return
		}
		if err := bs.Deliver(ctx, rec); err != nil {
			log.Printf("logprotocat: %s: deliver: %v", conn.RemoteAddr(), err)
			return
		}
		if err := bs.SaveCheckpoint(ctx); err != nil {
			log.Printf("logprotocat: %s: checkpoint: %v", conn.RemoteAddr(), err)
		}
	}
}
