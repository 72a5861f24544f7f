package sigs

import (
	"github.com/iov-one/microchan"
	"github.com/iov-one/microchan/crypto"
	"github.com/iov-one/microchan/errors"
	"github.com/iov-one/microchan/orm"
)

// BucketName is where we store the registered keys.
const BucketName = "keys"

// UserData is the key registered for an address.
type UserData struct {
	Pubkey crypto.PublicKey
}

var _ orm.Model = (*UserData)(nil)

func (u *UserData) Marshal() ([]byte, error) {
	return microchan.MarshalBinary(u)
}

func (u *UserData) Unmarshal(raw []byte) error {
	return microchan.UnmarshalBinary(raw, u)
}

// Validate requires a well formed public key.
func (u *UserData) Validate() error {
	return errors.Field("Pubkey", u.Pubkey.Validate(), "invalid public key")
}

// AsUser will safely type-cast any value from Bucket.
func AsUser(obj orm.Object) *UserData {
	if obj == nil || obj.Value() == nil {
		return nil
	}
	return obj.Value().(*UserData)
}

// Bucket stores public keys by the address derived from them.
type Bucket struct {
	orm.Bucket
}

// NewBucket creates the proper bucket for this extension.
func NewBucket() Bucket {
	return Bucket{
		Bucket: orm.NewBucket(BucketName, orm.NewSimpleObj(nil, &UserData{})),
	}
}

// GetKey returns the public key registered for addr, or nil.
func (b Bucket) GetKey(db microchan.ReadOnlyKVStore, addr microchan.Address) (crypto.PublicKey, error) {
	obj, err := b.Get(db, addr)
	if err != nil {
		return nil, err
	}
	if u := AsUser(obj); u != nil {
		return u.Pubkey, nil
	}
	return nil, nil
}

// Register stores the public key under its address and returns that
// address. Registering the same key again is a noop.
func (b Bucket) Register(db microchan.KVStore, pub crypto.PublicKey) (microchan.Address, error) {
	if err := pub.Validate(); err != nil {
		return nil, err
	}
	addr := pub.Address()
	obj := orm.NewSimpleObj(addr, &UserData{Pubkey: pub})
	if err := b.Save(db, obj); err != nil {
		return nil, err
	}
	return addr, nil
}

// Registry binds the key bucket to a store.
type Registry struct {
	db     microchan.KVStore
	bucket Bucket
}

// NewRegistry returns a registry over db. db must be safe for concurrent
// use when the registry is shared.
func NewRegistry(db microchan.KVStore) Registry {
	return Registry{db: db, bucket: NewBucket()}
}

// Register stores pub and returns the address derived from it.
func (r Registry) Register(pub crypto.PublicKey) (microchan.Address, error) {
	return r.bucket.Register(r.db, pub)
}

// Key returns the public key registered for addr or errors.ErrNotFound.
func (r Registry) Key(addr microchan.Address) (crypto.PublicKey, error) {
	pub, err := r.bucket.GetKey(r.db, addr)
	if err != nil {
		return nil, err
	}
	if pub == nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "no key for %s", addr)
	}
	return pub, nil
}
