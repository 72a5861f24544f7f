package sigs

import (
	"crypto/sha512"
	"encoding/binary"
)

// SignCodeV1 is the current way to prefix the bytes we use to build a
// signature.
var SignCodeV1 = []byte{0, 0xCA, 0xFE, 0}

// SignBuilder accumulates the fields of an operation into the bytes that
// are hashed and signed. Variable length fields are length prefixed and
// numbers are encoded big endian.
type SignBuilder struct {
	buf []byte
}

// NewSignBuilder starts a digest for an operation identified by tag on the
// given subject (channel id) of the given chain.
func NewSignBuilder(chainID, tag, subject string) *SignBuilder {
	b := &SignBuilder{buf: append([]byte(nil), SignCodeV1...)}
	return b.String(chainID).String(tag).String(subject)
}

// Uint64 appends an 8 byte big endian number.
func (b *SignBuilder) Uint64(v uint64) *SignBuilder {
	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], v)
	b.buf = append(b.buf, raw[:]...)
	return b
}

// Int64 appends an 8 byte big endian number.
func (b *SignBuilder) Int64(v int64) *SignBuilder {
	return b.Uint64(uint64(v))
}

// Bytes appends a length prefixed byte slice.
func (b *SignBuilder) Bytes(v []byte) *SignBuilder {
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(v)))
	b.buf = append(b.buf, l[:]...)
	b.buf = append(b.buf, v...)
	return b
}

// String appends a length prefixed string.
func (b *SignBuilder) String(s string) *SignBuilder {
	return b.Bytes([]byte(s))
}

// Sum appends the sequence and returns the sha512 digest of everything
// written so far.
func (b *SignBuilder) Sum(sequence uint64) []byte {
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], sequence)
	hash := sha512.Sum512(append(b.buf, seq[:]...))
	return hash[:]
}
