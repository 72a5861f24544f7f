/*
Package paychan implements micropayment channels.

A payer locks a deposit in the escrow account of a channel and streams many
small signed payments to a service provider. Every accepted payment or
update increments the channel sequence number, so the latest signed state
always wins.

A channel is settled on the ledger either cooperatively, when both parties
sign the final state, or unilaterally: one party requests the close, a
challenge window opens during which a newer signed state can replace the
closing one, and after the window anyone can finalize. Settlement pays the
remaining balance back to the payer and the spent amount to the provider.

Either party can dispute a single payment. While the dispute is open the
channel accepts no payments, until the configured arbitration authority
resolves it.

All operations on one channel are serialized. Operations on different
channels run in parallel. Every accepted transition is recorded in an
append-only event log.
*/
package paychan
