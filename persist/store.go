package persist

import (
	"sync"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// Store persists and retrieves BufferedServerState blobs keyed by an
// arbitrary opaque identifier, typically a source's bookmark key (e.g.
// a file path or listener name).
type Store interface {
	Save(key string, state *BufferedServerState) error
	Load(key string) (*BufferedServerState, error)
	Delete(key string) error
	Close() error
}

var stateBucket = []byte("logproto-state")

// BoltStore persists state in an embedded bbolt database file, one
// key/value pair per source, so a process restart can resume every
// tracked source from its last checkpoint without a separate database
// server.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (creating if absent) a bbolt database at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, errors.Wrap(err, "persist: opening bolt store")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(stateBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "persist: creating state bucket")
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Save(key string, state *BufferedServerState) error {
	buf := Encode(state)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(stateBucket).Put([]byte(key), buf)
	})
}

func (s *BoltStore) Load(key string) (*BufferedServerState, error) {
	var state *BufferedServerState
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(stateBucket).Get([]byte(key))
		if v == nil {
			return nil
		}
		decoded, err := Decode(v)
		if err != nil {
			return err
		}
		state = decoded
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "persist: loading state for %q", key)
	}
	return state, nil
}

func (s *BoltStore) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(stateBucket).Delete([]byte(key))
	})
}

func (s *BoltStore) Close() error { return s.db.Close() }

// MemStore is an in-memory Store for tests and for sources that do not
// need persistence across restarts.
type MemStore struct {
	mu   sync.RWMutex
	data map[string]*BufferedServerState
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string]*BufferedServerState)}
}

func (s *MemStore) Save(key string, state *BufferedServerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *state
	s.data[key] = &cp
	return nil
}

func (s *MemStore) Load(key string) (*BufferedServerState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (s *MemStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *MemStore) Close() error { return nil }
