// Package ack tracks in-order persist-point advancement for records
// that may be acknowledged by downstream consumers out of order. A
// BufferedServer may only advance its persisted raw_stream_pos up to
// the highest bookmark that has been acked AND every bookmark issued
// before it has also been acked, mirroring the teacher's channel-pool
// response bookkeeping adapted from per-request correlation to
// per-record ordering.
package ack

import (
	"sync"

	"github.com/google/uuid"
)

// Bookmark is an opaque handle a server attaches to a delivered record
// so the record's eventual ack can be mapped back to a raw stream
// position.
type Bookmark struct {
	id  uuid.UUID
	pos uint64
}

// ID returns the bookmark's opaque token, suitable for embedding in a
// downstream acknowledgment protocol.
func (b Bookmark) ID() uuid.UUID { return b.id }

// Tracker issues Bookmarks for positions as records are produced and
// reports the highest position that may now be safely persisted once
// acks arrive, possibly out of order.
type Tracker interface {
	// Issue registers pos (the raw stream offset immediately after the
	// record just produced) and returns a Bookmark identifying it.
	Issue(pos uint64) Bookmark
	// Ack marks the bookmark acknowledged. It is safe to call Ack for
	// bookmarks in any order.
	Ack(b Bookmark)
	// Confirmed returns the highest position such that it, and every
	// position issued before it, has been acked. Returns (0, false) if
	// nothing has been confirmed yet.
	Confirmed() (uint64, bool)
}

// entry is one outstanding (or recently acked) bookmark in issue order.
type entry struct {
	pos    uint64
	acked  bool
}

// InOrderTracker is the default Tracker: it keeps a FIFO of issued
// bookmarks and advances the confirmed position only while the head of
// the queue is acked, so a single slow ack blocks persistence of
// everything issued after it, guaranteeing the persisted position
// never skips ahead of an unacknowledged record.
type InOrderTracker struct {
	mu        sync.Mutex
	byID      map[uuid.UUID]*entry
	queue     []*entry
	confirmed uint64
	hasConfirmed bool
}

// NewInOrderTracker returns an empty InOrderTracker.
func NewInOrderTracker() *InOrderTracker {
	return &InOrderTracker{byID: make(map[uuid.UUID]*entry)}
}

func (t *InOrderTracker) Issue(pos uint64) Bookmark {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := uuid.New()
	e := &entry{pos: pos}
	t.byID[id] = e
	t.queue = append(t.queue, e)
	return Bookmark{id: id, pos: pos}
}

func (t *InOrderTracker) Ack(b Bookmark) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.byID[b.id]
	if !ok {
		return
	}
	e.acked = true
	delete(t.byID, b.id)

	advanced := 0
	for _, head := range t.queue {
		if !head.acked {
			break
		}
		t.confirmed = head.pos
		t.hasConfirmed = true
		advanced++
	}
	t.queue = t.queue[advanced:]
}

func (t *InOrderTracker) Confirmed() (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.confirmed, t.hasConfirmed
}
