// Package mapstore implements an in-memory store.IStreamSavableStore on top of an xsync.MapOf.
//
// Values are kept as one of three kinds (int64, float64, string). Every typed setter maps onto
// one of them:
//   - bool, int32 and int64 are stored as int64 (false=0, true=1)
//   - float32 and float64 are stored as float64
//   - strings are stored as they are, byte sequences as standard base64 text
//
// Typed getters convert the stored kind to the requested one. A conversion that cannot succeed
// (text that is not a number, a long that does not fit an int32, text that is not base64) is
// reported as absent rather than as an error. Doubles read as integers are rounded half to even.
//
// The state is persisted as a whole through SaveTo/LoadFrom, either as a JSON object or as a
// msgpack map (see Format). Wrap a Store in a filestore.Store to persist it to a file.
package mapstore
