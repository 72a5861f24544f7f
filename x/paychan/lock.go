package paychan

import (
	"sort"
	"sync"

	"github.com/iov-one/microchan"
)

// keyedMutex serializes work on the same key while letting different keys
// proceed in parallel. Entries are dropped once nobody holds or waits for
// them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock acquires all keys in sorted order and returns the function that
// releases them. Duplicated keys are locked once.
func (k *keyedMutex) Lock(keys ...string) func() {
	keys = uniqueSorted(keys)
	held := make([]*refMutex, len(keys))
	for i, key := range keys {
		k.mu.Lock()
		m, ok := k.locks[key]
		if !ok {
			m = &refMutex{}
			k.locks[key] = m
		}
		m.refs++
		k.mu.Unlock()

		m.Lock()
		held[i] = m
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
			k.mu.Lock()
			held[i].refs--
			if held[i].refs == 0 {
				delete(k.locks, keys[i])
			}
			k.mu.Unlock()
		}
	}
}

// size returns the number of keys currently tracked.
func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

func uniqueSorted(keys []string) []string {
	res := append([]string(nil), keys...)
	sort.Strings(res)
	out := res[:0]
	for _, k := range res {
		if len(out) > 0 && out[len(out)-1] == k {
			continue
		}
		out = append(out, k)
	}
	return out
}

func channelLockKey(id string) string {
	return "chan:" + id
}

func walletLockKey(addr microchan.Address) string {
	return "wallet:" + string(addr)
}
