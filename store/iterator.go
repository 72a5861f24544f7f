package store

import (
	"bytes"

	"github.com/iov-one/microchan/errors"
)

// mergeIterator combines a snapshot of cached items with the iterator of
// the backing store. Cached entries shadow parent entries with the same
// key and deleted entries hide them.
type mergeIterator struct {
	local []keyer
	idx   int

	parent     Iterator
	parentDone bool
	peeked     bool
	pkey, pval []byte

	descending bool
}

var _ Iterator = (*mergeIterator)(nil)

func newMergeIterator(local []keyer, parent Iterator, descending bool) *mergeIterator {
	return &mergeIterator{
		local:      local,
		parent:     parent,
		descending: descending,
	}
}

func (m *mergeIterator) peekParent() error {
	if m.peeked || m.parentDone {
		return nil
	}
	k, v, err := m.parent.Next()
	switch {
	case errors.ErrIteratorDone.Is(err):
		m.parentDone = true
		return nil
	case err != nil:
		return err
	}
	m.pkey, m.pval, m.peeked = k, v, true
	return nil
}

// Next returns the next visible key in iteration order.
func (m *mergeIterator) Next() (key, value []byte, err error) {
	for {
		if err := m.peekParent(); err != nil {
			return nil, nil, err
		}
		hasLocal := m.idx < len(m.local)
		if !hasLocal && !m.peeked {
			return nil, nil, errors.Wrap(errors.ErrIteratorDone, "merge iterator")
		}
		if !hasLocal {
			m.peeked = false
			return m.pkey, m.pval, nil
		}

		item := m.local[m.idx]
		if m.peeked {
			cmp := bytes.Compare(m.pkey, item.Key())
			if m.descending {
				cmp = -cmp
			}
			if cmp < 0 {
				m.peeked = false
				return m.pkey, m.pval, nil
			}
			if cmp == 0 {
				// shadowed by the cache
				m.peeked = false
			}
		}

		m.idx++
		if it, ok := item.(setItem); ok {
			return it.Key(), it.value, nil
		}
		// deleted entry, keep looking
	}
}

// Release releases the parent iterator.
func (m *mergeIterator) Release() {
	m.parent.Release()
	m.local = nil
}
