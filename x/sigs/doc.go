/*
Package sigs authenticates channel operations.

Every authenticated operation is signed over a digest built with
SignBuilder. The digest binds the signature to one chain, one operation
kind, one channel and one sequence number, so a signature cannot be
replayed in another context.

The Verifier interface checks that a digest was signed by the key of a
party. Keyring is the default implementation: it resolves an address to an
ed25519 public key registered in the store.
*/
package sigs
