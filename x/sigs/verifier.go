package sigs

import (
	"github.com/iov-one/microchan"
	"github.com/iov-one/microchan/crypto"
)

// Verifier checks that signature is a valid signature of digest by the key
// of party. It must be safe for concurrent use.
type Verifier interface {
	Verify(party microchan.Address, digest, signature []byte) bool
}

// VerifierFunc is an adapter to use a function as a Verifier.
type VerifierFunc func(party microchan.Address, digest, signature []byte) bool

func (fn VerifierFunc) Verify(party microchan.Address, digest, signature []byte) bool {
	return fn(party, digest, signature)
}

// Keyring verifies signatures with the ed25519 keys registered in the
// store.
type Keyring struct {
	db     microchan.ReadOnlyKVStore
	bucket Bucket
}

var _ Verifier = Keyring{}

// NewKeyring returns a verifier reading keys from db.
func NewKeyring(db microchan.ReadOnlyKVStore) Keyring {
	return Keyring{db: db, bucket: NewBucket()}
}

// Verify returns false for unknown parties.
func (k Keyring) Verify(party microchan.Address, digest, signature []byte) bool {
	pub, err := k.bucket.GetKey(k.db, party)
	if err != nil || pub == nil {
		return false
	}
	return pub.Verify(digest, signature)
}

// Sign is a helper that signs digest with given signer.
func Sign(signer crypto.Signer, digest []byte) ([]byte, error) {
	return signer.Sign(digest)
}
