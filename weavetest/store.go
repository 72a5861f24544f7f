package weavetest

import (
	"testing"

	"github.com/iov-one/microchan"
)

// Issuer adds value to a wallet. It is implemented by the cash controller.
type Issuer interface {
	IssueCoins(db microchan.KVStore, dest microchan.Address, amount uint64) error
}

// Fund issues amount to every address or fails the test.
func Fund(t testing.TB, db microchan.KVStore, issuer Issuer, amount uint64, addrs ...microchan.Address) {
	t.Helper()
	for _, a := range addrs {
		if err := issuer.IssueCoins(db, a, amount); err != nil {
			t.Fatalf("cannot fund %s: %s", a, err)
		}
	}
}
