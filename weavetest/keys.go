package weavetest

import (
	"crypto/sha256"
	"testing"

	"github.com/iov-one/microchan"
	"github.com/iov-one/microchan/crypto"
)

// NewKey returns a random private key.
func NewKey() crypto.PrivateKey {
	return crypto.GenPrivKeyEd25519()
}

// KeyFor returns a private key derived from name. Calling it twice with
// the same name returns the same key.
func KeyFor(name string) crypto.PrivateKey {
	seed := sha256.Sum256([]byte("weavetest/" + name))
	return crypto.PrivKeyEd25519FromSeed(seed[:])
}

// NewCondition returns the condition of a random key.
func NewCondition() microchan.Condition {
	return NewKey().PublicKey().Condition()
}

// RandomAddr returns the address of a random key.
func RandomAddr(t testing.TB) microchan.Address {
	t.Helper()
	return NewKey().Address()
}

// ParseAddress takes an address in a human readable format and returns its
// binary representation.
func ParseAddress(t testing.TB, encodedAddress string) microchan.Address {
	t.Helper()
	addr, err := microchan.ParseAddress(encodedAddress)
	if err != nil {
		t.Fatalf("cannot parse %q address: %s", encodedAddress, err)
	}
	return addr
}
