package microchan

import (
	amino "github.com/tendermint/go-amino"

	"github.com/iov-one/microchan/errors"
)

// Codec is the binary codec used to persist all models. Extensions that
// store interface values register their concrete types on it during
// program initialization.
var Codec = amino.NewCodec()

// MarshalBinary serializes given value using the shared codec.
func MarshalBinary(o interface{}) ([]byte, error) {
	bz, err := Codec.MarshalBinaryBare(o)
	if err != nil {
		return nil, errors.Wrap(errors.ErrModel, err.Error())
	}
	return bz, nil
}

// UnmarshalBinary deserializes raw data into given pointer using the shared
// codec.
func UnmarshalBinary(raw []byte, ptr interface{}) error {
	if err := Codec.UnmarshalBinaryBare(raw, ptr); err != nil {
		return errors.Wrap(errors.ErrModel, err.Error())
	}
	return nil
}
