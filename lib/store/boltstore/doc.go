// Package boltstore implements store.IStore over a single bbolt bucket ("kvs").
//
// Values are encoded as [kind byte][payload] (see internal/value.Encode), so the same coercion
// rules as in the SQLite engine apply. Like sqlstore, the store keeps one writable transaction
// open across operations and commits it through a schedule.Coalescer, Flush or Close.
//
// Keys longer than bbolt.MaxKeySize are rejected with store.RetCInvalidKey without breaking the
// store. Every other bbolt failure is fatal: it is reported as store.RetCBackendError and later
// operations fail with store.RetCClosed.
package boltstore
