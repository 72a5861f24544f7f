/*
Package crypto provides the ed25519 keys used by channel parties and the
arbitration authority.

A PublicKey is turned into a Condition and then into an Address, which is
the identity stored in a channel. Private keys can be generated randomly,
from a seed, or derived along a BIP44 path from a master seed.
*/
package crypto
