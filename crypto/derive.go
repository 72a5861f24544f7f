package crypto

import (
	"github.com/iov-one/microchan/errors"
	"github.com/stellar/go/exp/crypto/derivation"
)

// DefaultDerivationPath is the BIP44 path used when none is given.
const DefaultDerivationPath = "m/44'/234'/0'"

// DeriveKey deterministically derives an ed25519 private key from a master
// seed using SLIP-0010 hardened derivation along given path.
func DeriveKey(seed []byte, path string) (PrivateKey, error) {
	if len(seed) < 16 {
		return nil, errors.Wrap(errors.ErrInput, "seed too short")
	}
	if path == "" {
		path = DefaultDerivationPath
	}
	k, err := derivation.DeriveForPath(path, seed)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInput, "derive %q: %s", path, err)
	}
	return PrivKeyEd25519FromSeed(k.Key), nil
}
