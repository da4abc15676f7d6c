// Package sched provides a minimal cooperative scheduler gluing a set
// of pollable file descriptors to the Fetch method each
// server.BufferedServer exposes: Loop polls every registered
// descriptor for readiness and only calls the matching server's Fetch
// once the kernel reports data pending, so no goroutine blocks inside
// a Read that would otherwise stall every other registered source.
package sched

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/corvidwatch/logproto/diag"
	"github.com/corvidwatch/logproto/sink"
)

// Pollable pairs a raw file descriptor with the BufferedServer reading
// from it, so Loop can hand the descriptor to poll(2) and dispatch
// back to the right server on readiness.
type Pollable struct {
	FD     int
	Server interface {
		Prepare() bool
		Fetch(ctx context.Context) (sink.Record, error)
		Deliver(ctx context.Context, rec sink.Record) error
		SaveCheckpoint(ctx context.Context) error
	}
}

// Loop polls every entry in sources for readability, and for each
// ready descriptor, calls Fetch once, delivers the resulting record
// (if any), and checkpoints the server's state. It returns when ctx is
// done or a non-retryable error occurs. timeoutMillis bounds each
// poll(2) call so ctx cancellation is noticed promptly even with no
// sources ready.
func Loop(ctx context.Context, sources []Pollable, timeoutMillis int) error {
	if len(sources) == 0 {
		return errors.New("sched: no sources registered")
	}

	fds := make([]unix.PollFd, len(sources))
	for i, src := range sources {
		fds[i].Fd = int32(src.FD)
		fds[i].Events = unix.POLLIN
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := unix.Poll(fds, timeoutMillis)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return errors.Wrap(err, "sched: poll failed")
		}
		if n == 0 {
			continue
		}

		for i := range fds {
			if fds[i].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) == 0 {
				continue
			}
			src := sources[i]
			if err := dispatch(ctx, src); err != nil {
				if trace := diag.ContextTrace(ctx); trace != nil && trace.Error != nil {
					trace.Error(err)
				}
			}
		}
	}
}

func dispatch(ctx context.Context, src Pollable) error {
	rec, err := src.Server.Fetch(ctx)
	if err != nil {
		return err
	}
	if err := src.Server.Deliver(ctx, rec); err != nil {
		return err
	}
	return src.Server.SaveCheckpoint(ctx)
}
