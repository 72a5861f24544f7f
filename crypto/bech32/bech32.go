// Package bech32 converts address payloads to and from their bech32 text
// form.
package bech32

import (
	"github.com/btcsuite/btcutil/bech32"
	"github.com/iov-one/microchan/errors"
)

// Decode returns the payload of raw. The human readable part must equal
// hrp. Malformed input returns errors.ErrInput.
func Decode(raw, hrp string) ([]byte, error) {
	got, data, err := bech32.Decode(raw)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInput, "bech32: %s", err)
	}
	if got != hrp {
		return nil, errors.Wrapf(errors.ErrInput, "prefix %q, want %q", got, hrp)
	}
	payload, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInput, "bech32 payload: %s", err)
	}
	return payload, nil
}

// Encode returns the bech32 text of payload under hrp.
func Encode(hrp string, payload []byte) (string, error) {
	data, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", errors.Wrapf(errors.ErrInput, "bech32 payload: %s", err)
	}
	raw, err := bech32.Encode(hrp, data)
	if err != nil {
		return "", errors.Wrapf(errors.ErrInput, "bech32: %s", err)
	}
	return raw, nil
}
