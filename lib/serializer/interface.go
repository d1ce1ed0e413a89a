package serializer

import (
	"errors"
)

// Serializer is the base contract of every serializer plug-in. A usable serializer also
// implements at least one of TextSerializer, BinarySerializer, TypedTextSerializer or
// TypedBinarySerializer.
type Serializer interface {
	// Name identifies the serializer in logs and errors.
	Name() string
}

// TextSerializer converts values of any type to and from text.
type TextSerializer interface {
	Serializer
	// SerializeText returns the text form of v.
	SerializeText(v any) (string, error)
	// DeserializeText decodes text into the value pointed to by v.
	DeserializeText(text string, v any) error
}

// BinarySerializer converts values of any type to and from bytes.
type BinarySerializer interface {
	Serializer
	// SerializeBinary returns the binary form of v.
	SerializeBinary(v any) ([]byte, error)
	// DeserializeBinary decodes b into the value pointed to by v.
	DeserializeBinary(b []byte, v any) error
}

// TypedTextSerializer is a text serializer specialized for T. It takes precedence over a
// TextSerializer implemented by the same instance.
type TypedTextSerializer[T any] interface {
	Serializer
	EncodeText(v T) (string, error)
	DecodeText(text string) (T, error)
}

// TypedBinarySerializer is a binary serializer specialized for T. It takes precedence over a
// generic TextSerializer or BinarySerializer implemented by the same instance.
type TypedBinarySerializer[T any] interface {
	Serializer
	EncodeBinary(v T) ([]byte, error)
	DecodeBinary(b []byte) (T, error)
}

var (
	// ErrNoCapability is returned when the serializer resolved for a type implements neither a
	// text nor a binary contract usable for it.
	ErrNoCapability = errors.New("serializer has neither text nor binary capability")
	// ErrNilSerializer is returned when nil is registered.
	ErrNilSerializer = errors.New("serializer must not be nil")
	// ErrKindMismatch is returned when a binding is used with the wrong kind (text vs binary).
	ErrKindMismatch = errors.New("binding does not support this kind")
)
