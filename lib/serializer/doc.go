// Package serializer turns arbitrary typed values into text or binary payloads so they can be
// stored through the primitive value model of a key-value store.
//
// Key Components:
//
//   - Capability contracts: TextSerializer and BinarySerializer work on any value through
//     reflection. TypedTextSerializer[T] and TypedBinarySerializer[T] are specialized for one
//     type and avoid reflection entirely.
//
//   - Registry: maps a type to a serializer. A type without a binding uses the registry's default
//     serializer. Default is the process-wide registry, independent registries can be created with
//     NewRegistry (useful in tests and for stores with a different wire format).
//
//   - Binding: the serializer resolved for a type, classified once into text or binary and
//     specialized or generic. The order is typed text, typed binary, generic text, generic
//     binary: a contract specialized for the type always wins. Bindings are cached per type and
//     invalidated by registration.
//
// Plug-ins:
//
//   - json (default): generic text, human readable values in the store.
//   - xml: generic text using encoding/xml, for structs without maps.
//   - gob: generic binary using encoding/gob.
//   - msgpack: generic binary using vmihailenco/msgpack, compact and fast.
//   - struct: generic binary for fixed-size values using encoding/binary.
//   - floats / ints: specialized text for []float64 / []int64 as comma separated lists.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use. The registry is
//	safe for concurrent use.
//
// Usage:
//
//	reg := serializer.NewRegistry(serializer.NewJSONSerializer())
//	_ = serializer.Register[Position](reg, serializer.NewStructSerializer())
//
//	b, err := serializer.Resolve[Position](reg)
//	payload, err := b.EncodeBinary(Position{X: 1, Y: 2})
package serializer
