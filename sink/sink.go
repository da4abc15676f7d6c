// Package sink defines the destination interface a Server delivers
// extracted records to, decoupling record extraction from whatever
// downstream queue, channel, or callback consumes them.
package sink

import (
	"context"

	"github.com/corvidwatch/logproto/ack"
	"github.com/corvidwatch/logproto/transport"
)

// Record is one fully extracted, decoded message along with the
// transport metadata it arrived with.
type Record struct {
	Data []byte
	Aux  transport.AuxData
	// RawStreamPos is the raw byte offset immediately after this
	// record's last consumed byte, suitable for a Bookmark.
	RawStreamPos uint64
	// Bookmark identifies this record's position with the server's
	// ack.Tracker. A consumer that defers acknowledgment past Deliver
	// returning (e.g. queues the record for async delivery) must call
	// the owning BufferedServer's Ack with this value once the record
	// is durably handled, so persisted position only advances past
	// records actually delivered.
	Bookmark ack.Bookmark
}

// Sink receives extracted records. Deliver must not block
// indefinitely: a Server's Fetch loop calls it inline on its own
// goroutine, matching the teacher's non-blocking Prepare/Fetch
// contract.
type Sink interface {
	Deliver(ctx context.Context, rec Record) error
}

// FuncSink adapts a plain function to the Sink interface.
type FuncSink func(ctx context.Context, rec Record) error

func (f FuncSink) Deliver(ctx context.Context, rec Record) error { return f(ctx, rec) }

// ChannelSink delivers records onto a buffered channel, grounded on
// the teacher's channel-pool pattern for handing a completed unit of
// work from an I/O goroutine to a consumer goroutine without a shared
// lock. Deliver blocks until ctx is done or the channel accepts the
// record, giving the channel's buffer size as the only backpressure
// knob.
type ChannelSink struct {
	ch chan Record
}

// NewChannelSink returns a ChannelSink backed by a channel of the
// given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan Record, buffer)}
}

// C returns the channel records are delivered on.
func (s *ChannelSink) C() <-chan Record { return s.ch }

func (s *ChannelSink) Deliver(ctx context.Context, rec Record) error {
	select {
	case s.ch <- rec:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the underlying channel. Callers must ensure no further
// Deliver calls are in flight.
func (s *ChannelSink) Close() { close(s.ch) }
