package store

import (
	"github.com/iov-one/microchan/errors"
	dbm "github.com/tendermint/tendermint/libs/db"
)

// DBStore adapts a tendermint database (goleveldb, memdb) to a
// CacheableKVStore. Cache-wraps are written with an atomic database batch.
type DBStore struct {
	db dbm.DB
}

var _ CacheableKVStore = DBStore{}

// NewDBStore wraps the given database.
func NewDBStore(db dbm.DB) DBStore {
	return DBStore{db: db}
}

// OpenLevelDB opens (or creates) a goleveldb database called name in dir.
func OpenLevelDB(name, dir string) (db DBStore, err error) {
	defer func() {
		// NewDB panics when the database cannot be opened.
		if r := recover(); r != nil {
			err = errors.Wrapf(errors.ErrDatabase, "open %s/%s: %v", dir, name, r)
		}
	}()
	return NewDBStore(dbm.NewDB(name, dbm.GoLevelDBBackend, dir)), nil
}

// Close closes the underlying database.
func (d DBStore) Close() {
	d.db.Close()
}

func (d DBStore) Get(key []byte) ([]byte, error) {
	return d.db.Get(key), nil
}

func (d DBStore) Has(key []byte) (bool, error) {
	return d.db.Has(key), nil
}

func (d DBStore) Set(key, value []byte) error {
	d.db.Set(key, value)
	return nil
}

func (d DBStore) Delete(key []byte) error {
	d.db.Delete(key)
	return nil
}

func (d DBStore) Iterator(start, end []byte) (Iterator, error) {
	return &dbIterator{it: d.db.Iterator(start, end)}, nil
}

func (d DBStore) ReverseIterator(start, end []byte) (Iterator, error) {
	return &dbIterator{it: d.db.ReverseIterator(start, end)}, nil
}

func (d DBStore) CacheWrap() KVCacheWrap {
	return NewBTreeCacheWrap(d, &dbBatch{b: d.db.NewBatch()}, nil)
}

type dbBatch struct {
	b dbm.Batch
}

func (d *dbBatch) Set(key, value []byte) error {
	d.b.Set(key, value)
	return nil
}

func (d *dbBatch) Delete(key []byte) error {
	d.b.Delete(key)
	return nil
}

func (d *dbBatch) Write() error {
	d.b.Write()
	return nil
}

type dbIterator struct {
	it dbm.Iterator
}

func (d *dbIterator) Next() (key, value []byte, err error) {
	if !d.it.Valid() {
		return nil, nil, errors.Wrap(errors.ErrIteratorDone, "db iterator")
	}
	key, value = d.it.Key(), d.it.Value()
	d.it.Next()
	return key, value, nil
}

func (d *dbIterator) Release() {
	d.it.Close()
}
