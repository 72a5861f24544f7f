package store

import (
	"testing"

	"github.com/iov-one/microchan/errors"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertGetHas(t testing.TB, kv ReadOnlyKVStore, key, val []byte, has bool) {
	t.Helper()
	got, err := kv.Get(key)
	require.NoError(t, err)
	assert.Equal(t, val, got)
	exists, err := kv.Has(key)
	require.NoError(t, err)
	assert.Equal(t, has, exists)
}

// TestBTreeCacheGetSet does basic sanity checks on our cache.
func TestBTreeCacheGetSet(t *testing.T) {
	base := MemStore()

	k, v := []byte("french"), []byte("fry")
	assertGetHas(t, base, k, nil, false)
	require.NoError(t, base.Set(k, v))
	assertGetHas(t, base, k, v, true)

	// writing more data is only visible in the cache
	cache := base.CacheWrap()
	assertGetHas(t, cache, k, v, true)
	k2, v2 := []byte("LA"), []byte("Dodgers")
	require.NoError(t, cache.Set(k2, v2))
	assertGetHas(t, cache, k2, v2, true)
	assertGetHas(t, base, k2, nil, false)

	require.NoError(t, cache.Write())
	assertGetHas(t, base, k2, v2, true)

	// we can discard one
	k3, v3 := []byte("Bayern"), []byte("Munich")
	c2 := base.CacheWrap()
	require.NoError(t, c2.Set(k3, v3))
	c2.Discard()
	assertGetHas(t, base, k3, nil, false)

	// and delete through another
	c3 := base.CacheWrap()
	require.NoError(t, c3.Delete(k))
	assertGetHas(t, c3, k, nil, false)
	assertGetHas(t, base, k, v, true)
	require.NoError(t, c3.Write())
	assertGetHas(t, base, k, nil, false)
	assertGetHas(t, base, k2, v2, true)
}

func TestCacheIteration(t *testing.T) {
	Convey("Given a base store with data and a cache on top", t, func() {
		base := MemStore()
		for _, k := range []string{"a", "c", "e", "g"} {
			So(base.Set([]byte(k), []byte("base-"+k)), ShouldBeNil)
		}
		cache := base.CacheWrap()
		So(cache.Set([]byte("b"), []byte("cache-b")), ShouldBeNil)
		So(cache.Set([]byte("c"), []byte("cache-c")), ShouldBeNil)
		So(cache.Delete([]byte("e")), ShouldBeNil)
		So(cache.Set([]byte("h"), []byte("cache-h")), ShouldBeNil)

		Convey("Ascending iteration merges and shadows", func() {
			it, err := cache.Iterator(nil, nil)
			So(err, ShouldBeNil)
			models, err := ReadAll(it)
			So(err, ShouldBeNil)
			So(models, ShouldResemble, []Model{
				Pair([]byte("a"), []byte("base-a")),
				Pair([]byte("b"), []byte("cache-b")),
				Pair([]byte("c"), []byte("cache-c")),
				Pair([]byte("g"), []byte("base-g")),
				Pair([]byte("h"), []byte("cache-h")),
			})
		})

		Convey("Descending iteration respects the range", func() {
			it, err := cache.ReverseIterator([]byte("b"), []byte("h"))
			So(err, ShouldBeNil)
			models, err := ReadAll(it)
			So(err, ShouldBeNil)
			So(models, ShouldResemble, []Model{
				Pair([]byte("g"), []byte("base-g")),
				Pair([]byte("c"), []byte("cache-c")),
				Pair([]byte("b"), []byte("cache-b")),
			})
		})

		Convey("A nested cache sees the parent cache", func() {
			nested := cache.CacheWrap()
			So(nested.Delete([]byte("a")), ShouldBeNil)
			it, err := nested.Iterator([]byte("a"), []byte("d"))
			So(err, ShouldBeNil)
			models, err := ReadAll(it)
			So(err, ShouldBeNil)
			So(models, ShouldHaveLength, 2)
			So(string(models[0].Key), ShouldEqual, "b")
		})

		Convey("An exhausted iterator keeps reporting done", func() {
			it, err := cache.Iterator([]byte("x"), nil)
			So(err, ShouldBeNil)
			_, _, err = it.Next()
			So(errors.ErrIteratorDone.Is(err), ShouldBeTrue)
			_, _, err = it.Next()
			So(errors.ErrIteratorDone.Is(err), ShouldBeTrue)
			it.Release()
		})
	})
}

func TestNilKeyRejected(t *testing.T) {
	cache := MemStore().CacheWrap()
	assert.True(t, errors.ErrDatabase.Is(cache.Set(nil, []byte("x"))))
	assert.True(t, errors.ErrDatabase.Is(cache.Delete(nil)))
}
