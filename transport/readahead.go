package transport

// readAheadCache implements the 16-byte peek buffer shared by every
// Transport variant (spec §4.1): "read_ahead peeks up to 16 bytes,
// caching them internally; subsequent reads must return the same bytes
// (the cache is drained before any syscall)."
type readAheadCache struct {
	buf [MaxReadAhead]byte
	len int
	pos int
}

func (c *readAheadCache) pending() int { return c.len - c.pos }

// drain copies any cached bytes into dst, advancing pos, and reports how
// many bytes were consumed. The caller should top up dst from the
// underlying source only if the return is less than len(dst).
func (c *readAheadCache) drain(dst []byte) int {
	n := copy(dst, c.buf[c.pos:c.len])
	c.pos += n
	if c.pos == c.len {
		c.pos, c.len = 0, 0
	}
	return n
}

// fill grows the cache by appending newly read bytes, shifting any
// already-peeked-but-unconsumed bytes to the front first.
func (c *readAheadCache) fill(extra []byte) {
	if c.pos > 0 {
		copy(c.buf[:], c.buf[c.pos:c.len])
		c.len -= c.pos
		c.pos = 0
	}
	n := copy(c.buf[c.len:], extra)
	c.len += n
}

// peeked returns the currently cached, not-yet-consumed bytes.
func (c *readAheadCache) peeked() []byte { return c.buf[c.pos:c.len] }
