// Package store defines the transactional document store contract used by grove.
//
// The contract is deliberately narrow: individually addressable documents grouped
// in collections, optimistic read-modify-write transactions, and equality
// queries over registered index fields. Two implementations ship with the
// module:
//
//   - [github.com/jacentio/grove/store/dynamo] backed by DynamoDB
//   - [github.com/jacentio/grove/store/badger] backed by an embedded BadgerDB
//
// # Transactions
//
// [DB.RunTransaction] runs a function with a [Tx]. All reads must happen before
// the first write: a [Tx.Get] issued after a write fails with
// [ErrReadAfterWrite]. Writes are buffered and applied atomically at commit.
// Every document read inside the transaction (including documents that did not
// exist) is validated at commit time; if any of them changed concurrently the
// whole transaction is discarded and [ErrConflict] is returned. Callers are
// expected to retry on ErrConflict.
//
// Writes addressed to the same document within one transaction are coalesced
// into a single action:
//
//	tx.Update("nodes", parent, store.Inc("metadata.dir_count", 1))
//	tx.Update("nodes", parent, store.Inc("revision", 1))
//	// committed as one update carrying both increments
//
// # Errors
//
//   - [ErrNotFound] - document doesn't exist
//   - [ErrAlreadyExists] - create of an existing document
//   - [ErrConflict] - optimistic validation failed, retry the transaction
//   - [ErrReadAfterWrite] - read issued after the write phase began
//   - [ErrInvalidWrite] - incompatible writes to one document in a transaction
//   - [ErrTxnTooLarge] - the transaction exceeds the backend's action limit
package store
