package store

import "github.com/iov-one/microchan"

// Move references for all storage types into this package for shorter
// names everywhere.

type (
	ReadOnlyKVStore  = microchan.ReadOnlyKVStore
	SetDeleter       = microchan.SetDeleter
	KVStore          = microchan.KVStore
	Iterator         = microchan.Iterator
	CacheableKVStore = microchan.CacheableKVStore
	KVCacheWrap      = microchan.KVCacheWrap
	CommitKVStore    = microchan.CommitKVStore
	CommitID         = microchan.CommitID
)

// Batch can write multiple ops atomically to an underlying store.
type Batch interface {
	SetDeleter
	Write() error
}

// Model groups together key and value to return.
type Model struct {
	Key   []byte
	Value []byte
}

// Pair constructs a model from a key-value pair.
func Pair(key, value []byte) Model {
	return Model{Key: key, Value: value}
}
