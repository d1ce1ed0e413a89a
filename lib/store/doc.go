// Package store provides a typed key-value interface with interchangeable backends and a unified
// error handling.
//
// The package focuses on:
//   - A unified interface (IStore) for typed get/set/delete/has/clear over flat string keys
//   - Savable contracts for stores that persist their state as a whole (ISavable, IStreamSavable)
//   - Generic object accessors that store arbitrary values through the serializer registry
//
// Key Components:
//
//   - IStore Interface: The Value Model. Values are booleans, 32/64-bit integers, 32/64-bit
//     floats, text and byte sequences. 32-bit values are widened to their 64-bit slot on write
//     and narrowed on read, booleans are stored as the integers 0 and 1. Reads return
//     (value, loaded, err): a missing key is loaded == false, never an error.
//
//   - Error System: Every failure is an *Error with a RetCode. Use IsCode to branch on the
//     code, errors.Is/As reach the wrapped cause.
//
//   - Object accessors: SetObject, TryGetObject and GetObject resolve a serializer for the
//     value's type (see package serializer) and store the encoded value as text or bytes.
//
// Implementations:
//
//   - sqlstore: SQLite engine with lazy transactions and coalesced commits
//   - boltstore: the same protocol over a bbolt bucket
//   - mapstore: in-memory map, saved and loaded as a stream (JSON or msgpack)
//   - filestore: binds a stream-savable store to a file through the persistence pipeline
//   - autosave: decorator that saves a savable store after every change
//
// Conformance tests for implementations live in package store/testing.
package store
