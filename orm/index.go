package orm

import (
	"bytes"
	"encoding/binary"

	"github.com/iov-one/microchan"
	"github.com/iov-one/microchan/errors"
)

const idxPrefix = "_i."

// Indexer calculates the secondary index key for a given object. A nil key
// means the object is not indexed.
type Indexer func(Object) ([]byte, error)

// Index stores one database entry per indexed object, so that all objects
// sharing an index value can be listed in primary key order.
//
//	_i.<bucket>_<name>:<len(value)><value><primary key>
type Index struct {
	name   string
	id     []byte
	unique bool
	index  Indexer
}

// NewIndex creates an index. If unique is set, two objects with the same
// index value cannot be saved.
func NewIndex(name string, indexer Indexer, unique bool) Index {
	return Index{
		name:   name,
		id:     []byte(idxPrefix + name + ":"),
		unique: unique,
		index:  indexer,
	}
}

// Name returns the name of this index.
func (i Index) Name() string {
	return i.name
}

func (i Index) valuePrefix(value []byte) []byte {
	out := make([]byte, 0, len(i.id)+2+len(value))
	out = append(out, i.id...)
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(value)))
	out = append(out, l[:]...)
	return append(out, value...)
}

func (i Index) refKey(value, ref []byte) []byte {
	return append(i.valuePrefix(value), ref...)
}

// Update updates the index. prev == nil means insert, save == nil means
// delete.
func (i Index) Update(db microchan.KVStore, prev Object, save Object) error {
	if prev == nil && save == nil {
		return errors.Wrap(errors.ErrHuman, "update requires at least one non-nil object")
	}
	if prev != nil && save != nil && !bytes.Equal(prev.Key(), save.Key()) {
		return errors.Wrap(errors.ErrHuman, "cannot change object key")
	}

	var prevVal, saveVal []byte
	var err error
	if prev != nil {
		if prevVal, err = i.index(prev); err != nil {
			return err
		}
	}
	if save != nil {
		if saveVal, err = i.index(save); err != nil {
			return err
		}
	}
	if prev != nil && save != nil && bytes.Equal(prevVal, saveVal) {
		return nil
	}

	if prev != nil && prevVal != nil {
		if err := db.Delete(i.refKey(prevVal, prev.Key())); err != nil {
			return err
		}
	}
	if save != nil && saveVal != nil {
		if i.unique {
			refs, err := i.Keys(db, saveVal)
			if err != nil {
				return err
			}
			if len(refs) > 0 {
				return errors.Wrapf(errors.ErrDuplicate, "index %s", i.name)
			}
		}
		if err := db.Set(i.refKey(saveVal, save.Key()), []byte{1}); err != nil {
			return err
		}
	}
	return nil
}

// Keys returns the primary keys of all objects indexed under value, in
// ascending order.
func (i Index) Keys(db microchan.ReadOnlyKVStore, value []byte) ([][]byte, error) {
	prefix := i.valuePrefix(value)
	it, err := db.Iterator(prefix, prefixEnd(prefix))
	if err != nil {
		return nil, err
	}
	defer it.Release()

	var refs [][]byte
	for {
		k, _, err := it.Next()
		if errors.ErrIteratorDone.Is(err) {
			return refs, nil
		}
		if err != nil {
			return nil, err
		}
		refs = append(refs, append([]byte(nil), k[len(prefix):]...))
	}
}

// prefixEnd returns the smallest key that is greater than all keys with
// given prefix, or nil if there is none.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] != 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
