package cash

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/iov-one/microchan"
	"github.com/iov-one/microchan/errors"
	"github.com/iov-one/microchan/store"
	"github.com/iov-one/microchan/weavetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func balance(t testing.TB, db microchan.ReadOnlyKVStore, c Controller, addr microchan.Address) uint64 {
	t.Helper()
	b, err := c.Balance(db, addr)
	require.NoError(t, err)
	return b
}

func TestIssueAndMoveCoins(t *testing.T) {
	db := store.MemStore()
	ctrl := NewController(NewBucket())
	alice := weavetest.RandomAddr(t)
	bob := weavetest.RandomAddr(t)

	assert.Equal(t, uint64(0), balance(t, db, ctrl, alice))
	require.NoError(t, ctrl.IssueCoins(db, alice, 500))
	assert.Equal(t, uint64(500), balance(t, db, ctrl, alice))

	require.NoError(t, ctrl.MoveCoins(db, alice, bob, 200))
	assert.Equal(t, uint64(300), balance(t, db, ctrl, alice))
	assert.Equal(t, uint64(200), balance(t, db, ctrl, bob))

	cases := map[string]struct {
		src, dest microchan.Address
		amount    uint64
		wantErr   *errors.Error
	}{
		"insufficient funds": {alice, bob, 301, errors.ErrInsufficientAmount},
		"unknown sender":     {weavetest.RandomAddr(t), bob, 1, errors.ErrInsufficientAmount},
		"zero amount":        {alice, bob, 0, errors.ErrAmount},
		"self transfer":      {alice, alice, 1, errors.ErrInput},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := ctrl.MoveCoins(db, tc.src, tc.dest, tc.amount)
			assert.True(t, tc.wantErr.Is(err), "got %v", err)
		})
	}
	// failed moves leave balances untouched
	assert.Equal(t, uint64(300), balance(t, db, ctrl, alice))
	assert.Equal(t, uint64(200), balance(t, db, ctrl, bob))
}

func TestIssueOverflow(t *testing.T) {
	db := store.MemStore()
	ctrl := NewController(NewBucket())
	addr := weavetest.RandomAddr(t)
	require.NoError(t, ctrl.IssueCoins(db, addr, ^uint64(0)))
	err := ctrl.IssueCoins(db, addr, 1)
	assert.True(t, errors.ErrOverflow.Is(err))
}

func TestLedgerEscrow(t *testing.T) {
	db := store.MemStore()
	ctrl := NewController(NewBucket())
	esc := NewLedgerEscrow(ctrl)
	payer := weavetest.RandomAddr(t)
	provider := weavetest.RandomAddr(t)
	weavetest.Fund(t, db, ctrl, 1000, payer)

	require.NoError(t, esc.Deposit(db, "chan-1", payer, 600))
	held, err := esc.Held(db, "chan-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(600), held)
	assert.Equal(t, uint64(400), balance(t, db, ctrl, payer))

	// escrow accounts are separate per channel
	held, err = esc.Held(db, "chan-2")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), held)

	require.NoError(t, esc.Payout(db, "chan-1", provider, 250))
	require.NoError(t, esc.Payout(db, "chan-1", payer, 350))
	assert.Equal(t, uint64(750), balance(t, db, ctrl, payer))
	assert.Equal(t, uint64(250), balance(t, db, ctrl, provider))

	err = esc.Payout(db, "chan-1", provider, 1)
	assert.True(t, errors.ErrInsufficientAmount.Is(err))
	err = esc.Deposit(db, "chan-3", payer, 751)
	assert.True(t, errors.ErrInsufficientAmount.Is(err))
}

func TestEscrowInsideCacheWrap(t *testing.T) {
	db := store.MemStore()
	ctrl := NewController(NewBucket())
	esc := NewLedgerEscrow(ctrl)
	payer := weavetest.RandomAddr(t)
	weavetest.Fund(t, db, ctrl, 100, payer)

	cache := db.CacheWrap()
	require.NoError(t, esc.Deposit(cache, "chan-1", payer, 100))
	cache.Discard()

	assert.Equal(t, uint64(100), balance(t, db, ctrl, payer))
	held, err := esc.Held(db, "chan-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), held)
}

func TestGenesis(t *testing.T) {
	alice := weavetest.RandomAddr(t)
	bob := weavetest.RandomAddr(t)
	raw := fmt.Sprintf(`[{"address": %q, "balance": 100}, {"address": %q, "balance": 7}]`, alice, bob)

	db := store.MemStore()
	opts := microchan.Options{"cash": json.RawMessage(raw)}
	require.NoError(t, Initializer{}.FromGenesis(opts, db))

	ctrl := NewController(NewBucket())
	assert.Equal(t, uint64(100), balance(t, db, ctrl, alice))
	assert.Equal(t, uint64(7), balance(t, db, ctrl, bob))

	bad := microchan.Options{"cash": json.RawMessage(`[{"address": "", "balance": 1}]`)}
	assert.Error(t, Initializer{}.FromGenesis(bad, store.MemStore()))
}

func TestLedger(t *testing.T) {
	db := store.MemStore()
	ctrl := NewController(NewBucket())
	alice := weavetest.RandomAddr(t)
	require.NoError(t, ctrl.IssueCoins(db, alice, 42))

	l := NewLedger(db, ctrl)
	got, err := l.Balance(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), got)

	got, err = l.Balance(weavetest.RandomAddr(t))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got)
}
