// Package sqlstore implements the native transactional engine: a store.IStore over a single
// SQLite table (modernc.org/sqlite, no cgo).
//
// Schema:
//
//	KeyValueStore(key TEXT NOT NULL PRIMARY KEY COLLATE BINARY, value BLOB)
//
// The value column is dynamically typed. Integers (including booleans and widened int32),
// doubles (including widened float32), text and blobs are stored natively and read back with
// SQLite's column coercion, see package internal/value.
//
// Transactions:
//
// The store pins one connection and prepares six statements on it (select, upsert, delete,
// delete all, begin, commit). The first operation after a commit begins a transaction that stays
// open across operations. Every write requests a commit from a schedule.Coalescer, so any number
// of writes made before the loop runs end up in a single commit. Flush commits synchronously
// and Close performs a final commit.
//
// Failures of the native library are not recoverable: the store reports them as
// store.RetCBackendError and fails every later operation with store.RetCClosed until it is closed.
package sqlstore
