package store

import (
	"sync"
)

// LockedStore guards a KVStore that is not safe for concurrent use. Reads
// share the lock, writes and batch commits take it exclusively, so a
// committed cache-wrap becomes visible to readers all at once.
type LockedStore struct {
	mu *sync.RWMutex
	kv KVStore
}

var _ CacheableKVStore = (*LockedStore)(nil)

// NewLockedStore wraps kv. mu may be nil, or shared with another component
// that must exclude writers, such as a commit.
func NewLockedStore(kv KVStore, mu *sync.RWMutex) *LockedStore {
	if mu == nil {
		mu = &sync.RWMutex{}
	}
	return &LockedStore{mu: mu, kv: kv}
}

func (s *LockedStore) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.kv.Get(key)
}

func (s *LockedStore) Has(key []byte) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.kv.Has(key)
}

func (s *LockedStore) Set(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Set(key, value)
}

func (s *LockedStore) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Delete(key)
}

// Iterator loads the whole range while holding the read lock.
func (s *LockedStore) Iterator(start, end []byte) (Iterator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, err := s.kv.Iterator(start, end)
	if err != nil {
		return nil, err
	}
	models, err := ReadAll(it)
	if err != nil {
		return nil, err
	}
	return NewSliceIterator(models), nil
}

// ReverseIterator loads the whole range while holding the read lock.
func (s *LockedStore) ReverseIterator(start, end []byte) (Iterator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, err := s.kv.ReverseIterator(start, end)
	if err != nil {
		return nil, err
	}
	models, err := ReadAll(it)
	if err != nil {
		return nil, err
	}
	return NewSliceIterator(models), nil
}

// CacheWrap returns a btree cache whose Write applies all operations under
// a single exclusive lock.
func (s *LockedStore) CacheWrap() KVCacheWrap {
	return NewBTreeCacheWrap(s, &lockedBatch{store: s}, nil)
}

type lockedBatch struct {
	store *LockedStore
	ops   []Op
}

func (b *lockedBatch) Set(key, value []byte) error {
	b.ops = append(b.ops, SetOp(key, value))
	return nil
}

func (b *lockedBatch) Delete(key []byte) error {
	b.ops = append(b.ops, DelOp(key))
	return nil
}

func (b *lockedBatch) Write() error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	for _, op := range b.ops {
		if err := op.Apply(b.store.kv); err != nil {
			return err
		}
	}
	b.ops = nil
	return nil
}

// MemStore returns an in-memory store that is safe for concurrent use.
// There is no persistence here.
func MemStore() CacheableKVStore {
	e := EmptyKVStore{}
	root := NewBTreeCacheWrap(e, NewNonAtomicBatch(e), nil)
	return NewLockedStore(root, nil)
}
