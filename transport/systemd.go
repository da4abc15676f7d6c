package transport

import (
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// NewSystemdTransport wraps an inherited file descriptor (typically
// received via systemd socket activation) as a stream Transport. It
// validates the descriptor is usable before wrapping it.
func NewSystemdTransport(fd uintptr, name string) (*StreamTransport, error) {
	var st unix.Stat_t
	if err := unix.Fstat(int(fd), &st); err != nil {
		return nil, NewError(ErrKindIO, err)
	}

	f := os.NewFile(fd, name)
	if f == nil {
		return nil, NewError(ErrKindIO, os.ErrInvalid)
	}
	conn, err := net.FileConn(f)
	if err != nil {
		return nil, NewError(ErrKindIO, err)
	}
	return NewStreamTransport(conn), nil
}
