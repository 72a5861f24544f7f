package orm

import "github.com/iov-one/microchan"

// Model is implemented by all values stored in a bucket.
type Model interface {
	microchan.Persistent
	microchan.Validater
}

// Object is what is stored in the bucket. Key is joined with the prefix to
// set the full key, Value is the data stored.
type Object interface {
	Keyed
	Cloneable
	// Validate returns error if the object is not in a valid state to
	// save to the db (eg. field missing, out of range, ...)
	microchan.Validater
	Value() Model
}

// Keyed is anything that can identify itself.
type Keyed interface {
	Key() []byte
	SetKey([]byte)
}

// Cloneable will create a new object that can be loaded into.
type Cloneable interface {
	Clone() Object
}
