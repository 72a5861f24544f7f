package sigs

import (
	"github.com/iov-one/microchan"
	"github.com/iov-one/microchan/crypto"
)

const optKey = "keys"

// GenesisKey is a public key registered from the genesis file.
type GenesisKey struct {
	Pubkey crypto.PublicKey `json:"pubkey"`
}

// Initializer fulfils the Initializer interface to load keys from the
// genesis file.
type Initializer struct{}

var _ microchan.Initializer = Initializer{}

// FromGenesis registers all listed keys.
func (Initializer) FromGenesis(opts microchan.Options, kv microchan.KVStore) error {
	var keys []GenesisKey
	if err := opts.ReadOptions(optKey, &keys); err != nil {
		return err
	}
	bucket := NewBucket()
	for _, k := range keys {
		if _, err := bucket.Register(kv, k.Pubkey); err != nil {
			return err
		}
	}
	return nil
}
