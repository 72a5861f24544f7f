package cash

import (
	"github.com/iov-one/microchan"
	"github.com/iov-one/microchan/errors"
)

// Controller is the functionality needed by other extensions that want to
// move value.
type Controller interface {
	Balance(db microchan.ReadOnlyKVStore, addr microchan.Address) (uint64, error)
	MoveCoins(db microchan.KVStore, src, dest microchan.Address, amount uint64) error
	IssueCoins(db microchan.KVStore, dest microchan.Address, amount uint64) error
}

// BaseController is a simple implementation of Controller.
type BaseController struct {
	bucket Bucket
}

var _ Controller = BaseController{}

// NewController returns a basic controller implementation.
func NewController(bucket Bucket) BaseController {
	return BaseController{bucket: bucket}
}

// Balance returns the amount held by the address. Unknown addresses hold
// nothing.
func (c BaseController) Balance(db microchan.ReadOnlyKVStore, addr microchan.Address) (uint64, error) {
	w, err := c.bucket.GetWallet(db, addr)
	if err != nil || w == nil {
		return 0, err
	}
	return w.Balance(), nil
}

// MoveCoins moves the given amount from src to dest. If src doesn't exist,
// or doesn't have sufficient coins, it fails.
func (c BaseController) MoveCoins(db microchan.KVStore, src, dest microchan.Address, amount uint64) error {
	if amount == 0 {
		return errors.Wrap(errors.ErrAmount, "zero value move")
	}
	if src.Equals(dest) {
		return errors.Wrap(errors.ErrInput, "source and destination are the same")
	}
	sender, err := c.bucket.GetWallet(db, src)
	if err != nil {
		return err
	}
	if sender == nil {
		return errors.Wrapf(errors.ErrInsufficientAmount, "empty account %s", src)
	}
	recipient, err := c.bucket.GetOrCreate(db, dest)
	if err != nil {
		return err
	}
	if err := sender.Subtract(amount); err != nil {
		return err
	}
	if err := recipient.Add(amount); err != nil {
		return err
	}
	if err := c.bucket.Save(db, sender); err != nil {
		return err
	}
	return c.bucket.Save(db, recipient)
}

// IssueCoins adds the given amount of coins to the destination address.
// Fails if it overflows the wallet.
func (c BaseController) IssueCoins(db microchan.KVStore, dest microchan.Address, amount uint64) error {
	w, err := c.bucket.GetOrCreate(db, dest)
	if err != nil {
		return err
	}
	if err := w.Add(amount); err != nil {
		return err
	}
	return c.bucket.Save(db, w)
}

// Ledger reads balances from a fixed store.
type Ledger struct {
	db   microchan.ReadOnlyKVStore
	ctrl Controller
}

func NewLedger(db microchan.ReadOnlyKVStore, ctrl Controller) Ledger {
	return Ledger{db: db, ctrl: ctrl}
}

// Balance returns the amount held by addr.
func (l Ledger) Balance(addr microchan.Address) (uint64, error) {
	return l.ctrl.Balance(l.db, addr)
}
