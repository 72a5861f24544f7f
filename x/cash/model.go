package cash

import (
	"github.com/iov-one/microchan"
	"github.com/iov-one/microchan/errors"
	"github.com/iov-one/microchan/orm"
)

// BucketName is where we store the balances.
const BucketName = "wallet"

// Set is the persisted content of a wallet.
type Set struct {
	Balance uint64
}

var _ orm.Model = (*Set)(nil)

func (s *Set) Marshal() ([]byte, error) {
	return microchan.MarshalBinary(s)
}

func (s *Set) Unmarshal(raw []byte) error {
	return microchan.UnmarshalBinary(raw, s)
}

// Validate is a noop, any balance is valid.
func (s *Set) Validate() error {
	return nil
}

// Wallet is the object that we pass around in our code. It is a type-safe
// wrapper around the address and its balance.
type Wallet struct {
	key   microchan.Address
	value *Set
}

var _ orm.Object = (*Wallet)(nil)

// NewWallet creates a wallet for this address holding given balance.
func NewWallet(addr microchan.Address, balance uint64) *Wallet {
	return &Wallet{key: addr, value: &Set{Balance: balance}}
}

func (w Wallet) Value() orm.Model {
	return w.value
}

func (w Wallet) Key() []byte {
	return w.key
}

func (w *Wallet) SetKey(key []byte) {
	w.key = key
}

// Validate requires a well formed address.
func (w Wallet) Validate() error {
	return errors.Field("Address", w.key.Validate(), "invalid wallet address")
}

// Clone will make an empty wallet that can be loaded into.
func (w *Wallet) Clone() orm.Object {
	res := &Wallet{value: &Set{}}
	if len(w.key) > 0 {
		res.key = append(microchan.Address(nil), w.key...)
	}
	return res
}

// Address returns the wallet owner.
func (w Wallet) Address() microchan.Address {
	return w.key
}

// Balance returns the held amount.
func (w Wallet) Balance() uint64 {
	return w.value.Balance
}

// Add increases the balance, failing on overflow.
func (w *Wallet) Add(amount uint64) error {
	sum := w.value.Balance + amount
	if sum < w.value.Balance {
		return errors.Wrapf(errors.ErrOverflow, "wallet %s", w.key)
	}
	w.value.Balance = sum
	return nil
}

// Subtract decreases the balance, failing when funds are insufficient.
func (w *Wallet) Subtract(amount uint64) error {
	if w.value.Balance < amount {
		return errors.Wrapf(errors.ErrInsufficientAmount,
			"wallet %s holds %d, needs %d", w.key, w.value.Balance, amount)
	}
	w.value.Balance -= amount
	return nil
}

// Bucket is a type-safe wrapper around orm.Bucket.
type Bucket struct {
	orm.Bucket
}

// NewBucket initializes a cash.Bucket with default name.
func NewBucket() Bucket {
	return Bucket{
		Bucket: orm.NewBucket(BucketName, NewWallet(nil, 0)),
	}
}

// GetWallet returns the wallet of given address or nil if it does not
// exist.
func (b Bucket) GetWallet(db microchan.ReadOnlyKVStore, addr microchan.Address) (*Wallet, error) {
	obj, err := b.Get(db, addr)
	if err != nil || obj == nil {
		return nil, err
	}
	w, ok := obj.(*Wallet)
	if !ok {
		return nil, errors.WithType(errors.ErrModel, obj)
	}
	return w, nil
}

// GetOrCreate returns the existing wallet or an empty one.
func (b Bucket) GetOrCreate(db microchan.ReadOnlyKVStore, addr microchan.Address) (*Wallet, error) {
	w, err := b.GetWallet(db, addr)
	if err != nil {
		return nil, err
	}
	if w == nil {
		w = NewWallet(addr, 0)
	}
	return w, nil
}
