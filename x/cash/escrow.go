package cash

import (
	"github.com/iov-one/microchan"
	"github.com/iov-one/microchan/errors"
)

// Escrow holds channel deposits. Both operations write into the given
// store, so a caller that passes a cache-wrap commits or discards the
// value transfer together with its own state changes.
type Escrow interface {
	// Deposit moves amount from the wallet of from into the channel
	// escrow account.
	Deposit(db microchan.KVStore, channelID string, from microchan.Address, amount uint64) error
	// Payout moves amount from the channel escrow account to the wallet
	// of to.
	Payout(db microchan.KVStore, channelID string, to microchan.Address, amount uint64) error
}

// EscrowCondition returns the condition owning the deposit of a channel.
func EscrowCondition(channelID string) microchan.Condition {
	return microchan.NewCondition("paychan", "escrow", []byte(channelID))
}

// EscrowAddress returns the ledger account holding the deposit of a
// channel.
func EscrowAddress(channelID string) microchan.Address {
	return EscrowCondition(channelID).Address()
}

// LedgerEscrow keeps channel deposits on the wallet ledger.
type LedgerEscrow struct {
	ctrl Controller
}

var _ Escrow = LedgerEscrow{}

// NewLedgerEscrow returns an escrow backed by given controller.
func NewLedgerEscrow(ctrl Controller) LedgerEscrow {
	return LedgerEscrow{ctrl: ctrl}
}

func (e LedgerEscrow) Deposit(db microchan.KVStore, channelID string, from microchan.Address, amount uint64) error {
	if err := e.ctrl.MoveCoins(db, from, EscrowAddress(channelID), amount); err != nil {
		return errors.Wrapf(err, "deposit into %q", channelID)
	}
	return nil
}

func (e LedgerEscrow) Payout(db microchan.KVStore, channelID string, to microchan.Address, amount uint64) error {
	if err := e.ctrl.MoveCoins(db, EscrowAddress(channelID), to, amount); err != nil {
		return errors.Wrapf(err, "payout from %q", channelID)
	}
	return nil
}

// Held returns the value currently held for the channel.
func (e LedgerEscrow) Held(db microchan.ReadOnlyKVStore, channelID string) (uint64, error) {
	return e.ctrl.Balance(db, EscrowAddress(channelID))
}
