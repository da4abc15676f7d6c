// Package diag provides optional, composable hook-based tracing for
// the server pipeline, adapted from the teacher's netconf.ClientTrace:
// a struct of hook functions that can be nested via compose() so
// multiple observers (logging, metrics, debugging) can each attach
// their own hooks without overwriting one another.
package diag

import (
	"context"
	"log"
	"reflect"

	"github.com/corvidwatch/logproto/transport"
)

// Trace is a set of hooks invoked at points in a Server's Fetch loop
// and a Transport's handshake. Any field may be nil. Hooks must
// return quickly; they run inline on the Fetch goroutine.
type Trace struct {
	// ConnectStart/ConnectDone are hooks for a transport's initial
	// handshake (TLS handshake, PROXY protocol parse, etc.). No code in
	// this module invokes them; the default hook sets only log them.
	ConnectStart func(remote string)
	ConnectDone  func(remote string, err error)

	// FetchStart/FetchDone bracket one Server.Fetch call.
	FetchStart func()
	FetchDone  func(n int, err error)

	// RecordExtracted fires once per record delivered to a Sink.
	RecordExtracted func(size int, aux transport.AuxData)

	// BufferGrow fires whenever a BufferedServer grows its internal
	// buffer, reporting the old and new capacity.
	BufferGrow func(oldSize, newSize int)

	// StateSaved fires after BufferedServer.SaveCheckpoint stores state.
	// StateLoaded is not invoked by this module.
	StateSaved  func(key string, err error)
	StateLoaded func(key string, found bool, err error)

	// Error fires for any error a Server or Transport surfaces,
	// regardless of whether a more specific hook above also fired.
	Error func(err error)

	// Warning fires for a non-fatal, once-per-server condition; the
	// only one raised in this module is an over-long message.
	Warning func(msg string)
}

// compose returns a Trace whose hooks call old's hooks (if set) first,
// then t's own, for every field present on either. Grounded on the
// teacher's reflect-based ClientTrace.compose: it avoids hand-writing
// an O(n) chain function per field as the hook set grows.
func (t *Trace) compose(old *Trace) *Trace {
	if old == nil {
		return t
	}
	tv := reflect.ValueOf(t).Elem()
	ov := reflect.ValueOf(old).Elem()
	combined := reflect.New(tv.Type()).Elem()

	for i := 0; i < tv.NumField(); i++ {
		tf := tv.Field(i)
		of := ov.Field(i)
		if tf.IsNil() && of.IsNil() {
			continue
		}
		if tf.IsNil() {
			combined.Field(i).Set(of)
			continue
		}
		if of.IsNil() {
			combined.Field(i).Set(tf)
			continue
		}

		newFn := tf
		oldFn := of
		fn := reflect.MakeFunc(tf.Type(), func(args []reflect.Value) []reflect.Value {
			oldFn.Call(args)
			return newFn.Call(args)
		})
		combined.Field(i).Set(fn)
	}
	return combined.Addr().Interface().(*Trace)
}

type traceContextKey struct{}

// WithTrace attaches trace to ctx, composing with any Trace already
// present so nested calls accumulate hooks instead of replacing them.
func WithTrace(ctx context.Context, trace *Trace) context.Context {
	if existing := ContextTrace(ctx); existing != nil {
		trace = trace.compose(existing)
	}
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// ContextTrace retrieves the Trace attached to ctx, or nil if none.
func ContextTrace(ctx context.Context) *Trace {
	t, _ := ctx.Value(traceContextKey{}).(*Trace)
	return t
}

// DefaultLoggingHooks returns a Trace that logs each event at a terse,
// single-line level via the standard log package, matching the
// teacher's DefaultLoggingHooks verbosity.
func DefaultLoggingHooks() *Trace {
	return &Trace{
		ConnectDone: func(remote string, err error) {
			if err != nil {
				log.Printf("logproto: connect %s failed: %v", remote, err)
			}
		},
		Error: func(err error) {
			log.Printf("logproto: error: %v", err)
		},
		Warning: func(msg string) {
			log.Printf("logproto: warning: %s", msg)
		},
	}
}

// DiagnosticLoggingHooks returns a verbose Trace suitable for
// debugging a misbehaving source, logging every hook invocation.
func DiagnosticLoggingHooks() *Trace {
	return &Trace{
		ConnectStart: func(remote string) {
			log.Printf("logproto: connect start %s", remote)
		},
		ConnectDone: func(remote string, err error) {
			log.Printf("logproto: connect done %s err=%v", remote, err)
		},
		FetchStart: func() {
			log.Printf("logproto: fetch start")
		},
		FetchDone: func(n int, err error) {
			log.Printf("logproto: fetch done n=%d err=%v", n, err)
		},
		RecordExtracted: func(size int, aux transport.AuxData) {
			log.Printf("logproto: record extracted size=%d peer=%v", size, aux.PeerAddr)
		},
		BufferGrow: func(oldSize, newSize int) {
			log.Printf("logproto: buffer grow %d -> %d", oldSize, newSize)
		},
		StateSaved: func(key string, err error) {
			log.Printf("logproto: state saved key=%s err=%v", key, err)
		},
		StateLoaded: func(key string, found bool, err error) {
			log.Printf("logproto: state loaded key=%s found=%v err=%v", key, found, err)
		},
		Error: func(err error) {
			log.Printf("logproto: error: %v", err)
		},
		Warning: func(msg string) {
			log.Printf("logproto: warning: %s", msg)
		},
	}
}
