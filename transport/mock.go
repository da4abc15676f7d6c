package transport

import "sync"

// MockTransport is an in-memory Transport for tests: bytes queued with
// Feed become readable via Read/ReadAhead, and Written bytes are
// retrievable via Written(). It is grounded on the teacher's general
// pattern of wrapping a plain in-memory buffer behind the Transport
// interface for unit tests.
type MockTransport struct {
	mu      sync.Mutex
	pending [][]byte // each Feed call is one "chunk" a raw Read would have returned
	cache   readAheadCache
	eof     bool
	eofSet  bool
	written []byte
	aux     AuxData
	closed  bool
}

// NewMockTransport returns an empty MockTransport.
func NewMockTransport() *MockTransport { return &MockTransport{} }

// Feed appends a chunk of bytes that will be returned by a future Read
// call, simulating one underlying read() returning exactly this chunk.
func (m *MockTransport) Feed(chunk []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	m.pending = append(m.pending, cp)
}

// SetAux sets the AuxData attached to all subsequent reads.
func (m *MockTransport) SetAux(aux AuxData) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aux = aux
}

// SetEOF arranges for Read to report StatusEOF once all fed chunks have
// been consumed.
func (m *MockTransport) SetEOF() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eofSet = true
}

// Written returns everything written via Write/Writev so far.
func (m *MockTransport) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.written...)
}

func (m *MockTransport) nextChunk() ([]byte, bool) {
	if len(m.pending) == 0 {
		return nil, false
	}
	chunk := m.pending[0]
	m.pending = m.pending[1:]
	return chunk, true
}

func (m *MockTransport) Read(buf []byte) (int, AuxData, IOStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cache.pending() > 0 {
		n := m.cache.drain(buf)
		return n, m.aux, StatusOK, nil
	}

	chunk, ok := m.nextChunk()
	if !ok {
		if m.eofSet || m.closed {
			m.eof = true
			return 0, m.aux, StatusEOF, nil
		}
		return 0, m.aux, StatusAgain, nil
	}
	n := copy(buf, chunk)
	if n < len(chunk) {
		// buf was smaller than the chunk; stash the remainder for the
		// next Read, preserving one-chunk-per-read-ahead semantics as
		// closely as an in-memory mock can.
		m.pending = append([][]byte{chunk[n:]}, m.pending...)
	}
	return n, m.aux, StatusOK, nil
}

func (m *MockTransport) ReadAhead(buf []byte) (int, bool, AuxData, IOStatus, error) {
	if len(buf) > MaxReadAhead {
		panic("transport: ReadAhead request exceeds 16-byte cache")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cache.pending() >= len(buf) {
		copy(buf, m.cache.buf[m.cache.pos:m.cache.pos+len(buf)])
		return len(buf), false, m.aux, StatusOK, nil
	}

	moved := false
	for m.cache.pending() < len(buf) {
		chunk, ok := m.nextChunk()
		if !ok {
			break
		}
		if free := MaxReadAhead - m.cache.pending(); len(chunk) > free {
			// Keep what does not fit in the cache for a later Read.
			m.pending = append([][]byte{chunk[free:]}, m.pending...)
			chunk = chunk[:free]
		}
		m.cache.fill(chunk)
		moved = true
	}

	n := copy(buf, m.cache.buf[m.cache.pos:m.cache.len])
	if n < len(buf) {
		if m.eofSet || m.closed {
			if n == 0 {
				return 0, moved, m.aux, StatusEOF, nil
			}
		} else {
			return n, moved, m.aux, StatusAgain, nil
		}
	}
	return n, moved, m.aux, StatusOK, nil
}

func (m *MockTransport) Write(buf []byte) (int, IOStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written = append(m.written, buf...)
	return len(buf), StatusOK, nil
}

func (m *MockTransport) Writev(iov [][]byte) (int, IOStatus, error) {
	total := 0
	for _, chunk := range iov {
		n, status, err := m.Write(chunk)
		total += n
		if err != nil || status != StatusOK {
			return total, status, err
		}
	}
	return total, StatusOK, nil
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
