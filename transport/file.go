package transport

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// FileTransport wraps a seekable, position-tracking file. The current
// stream position and the file's identity (size, inode) are exposed so
// the owning BufferedServer can populate BufferedServerState for
// persistence across restarts.
type FileTransport struct {
	f    *os.File
	base *streamBase
}

// NewFileTransport opens path for reading as a position-tracking
// Transport.
func NewFileTransport(path string) (*FileTransport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, NewError(ErrKindIO, err)
	}
	return newFileTransport(f), nil
}

func newFileTransport(f *os.File) *FileTransport {
	t := &FileTransport{f: f}
	t.base = newStreamBase(f, func() AuxData { return AuxData{} })
	return t
}

func (t *FileTransport) Read(buf []byte) (int, AuxData, IOStatus, error) {
	return t.base.Read(buf)
}

func (t *FileTransport) ReadAhead(buf []byte) (int, bool, AuxData, IOStatus, error) {
	return t.base.ReadAhead(buf)
}

func (t *FileTransport) Write(buf []byte) (int, IOStatus, error) { return t.base.Write(buf) }

func (t *FileTransport) Writev(iov [][]byte) (int, IOStatus, error) { return t.base.Writev(iov) }

func (t *FileTransport) Close() error { return t.base.Close() }

// Pos returns the current read offset into the file, i.e. the number of
// bytes consumed via Read so far (not counting any pending read-ahead
// peek), suitable for raw_stream_pos bookkeeping.
func (t *FileTransport) Pos() (int64, error) {
	cur, err := t.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, NewError(ErrKindIO, err)
	}
	return cur - int64(t.base.cache.pending()), nil
}

// Identity returns the current size and inode of the underlying file, used
// to populate BufferedServerState.FileSize/FileInode.
func (t *FileTransport) Identity() (size int64, inode int64, err error) {
	var st unix.Stat_t
	if err = unix.Fstat(int(t.f.Fd()), &st); err != nil {
		return 0, 0, NewError(ErrKindIO, err)
	}
	return st.Size, int64(st.Ino), nil
}

// Seek repositions the file at the given absolute byte offset and
// discards any buffered read-ahead and EOF state, used to resume a
// file transport at a previously persisted raw_stream_pos.
func (t *FileTransport) Seek(pos int64) error {
	if _, err := t.f.Seek(pos, io.SeekStart); err != nil {
		return NewError(ErrKindIO, err)
	}
	t.base.cache = readAheadCache{}
	t.base.eof = false
	return nil
}
