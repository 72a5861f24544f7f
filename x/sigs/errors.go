package sigs

import "github.com/iov-one/microchan/errors"

// x/sigs reserves 20 ~ 29.
var (
	// ErrUnknownKey is returned when no public key is registered for an
	// address.
	ErrUnknownKey = errors.Register(20, "unknown key")
)
