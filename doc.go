/*
Package microchan defines the common interfaces shared by the micropayment
channel packages, as well as implementations of the simpler components
(when interfaces would be too much overhead).

The storage interfaces (KVStore, CacheableKVStore, Iterator) decouple the
channel state machine from the backing engine: an in-memory btree for tests,
a goleveldb database or a versioned iavl tree in the daemon.

Parties are identified by an Address, a collision free digest of a
Condition. Time is expressed as UnixTime and provided by a Clock.

Request scoped log fields travel in a context.Context from the API layer
to the extensions: the API sets them with WithLogInfo and the channel
controller logs through Logger(ctx, base).
*/
package microchan
