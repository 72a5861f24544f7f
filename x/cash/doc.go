/*
Package cash implements the value ledger that channels settle against.

Every address owns a wallet holding a single denomination balance. Value is
only created by genesis accounts or IssueCoins and is otherwise moved
between wallets, so the sum of all balances is constant.

An escrow account is derived for every channel. Depositing moves value
from the payer wallet into the channel escrow account and payouts move it
back out to the payer or the provider.
*/
package cash
