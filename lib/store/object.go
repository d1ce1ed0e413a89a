package store

import (
	"github.com/ValentinKolb/kvs/lib/serializer"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("store")

// --------------------------------------------------------------------------
// Object accessors
// --------------------------------------------------------------------------

// SetObject stores v under key using the serializer bound to T in serializer.Default.
// Text serializers store through SetString, binary serializers through SetBytes.
func SetObject[T any](s IStore, key string, v T) error {
	return SetObjectWith(s, serializer.Default, key, v)
}

// SetObjectWith is SetObject with an explicit registry.
func SetObjectWith[T any](s IStore, reg *serializer.Registry, key string, v T) error {
	b, err := serializer.Resolve[T](reg)
	if err != nil {
		return WrapError(RetCConfigError, "no usable serializer", err)
	}

	switch b.Kind {
	case serializer.KindText:
		text, err := b.EncodeText(v)
		if err != nil {
			return WrapError(RetCInvalidOperation, "serializing "+key+" with "+b.Serializer.Name(), err)
		}
		return s.SetString(key, text)
	default:
		data, err := b.EncodeBinary(v)
		if err != nil {
			return WrapError(RetCInvalidOperation, "serializing "+key+" with "+b.Serializer.Name(), err)
		}
		return s.SetBytes(key, data)
	}
}

// TryGetObject reads the value stored under key and decodes it with the serializer bound to T in
// serializer.Default.
//
// A stored payload that does not decode as T is reported as absent, exactly like a missing key.
// The decode error is logged at debug level. Use Has to tell the two cases apart.
func TryGetObject[T any](s IStore, key string) (T, bool, error) {
	return TryGetObjectWith[T](s, serializer.Default, key)
}

// TryGetObjectWith is TryGetObject with an explicit registry.
func TryGetObjectWith[T any](s IStore, reg *serializer.Registry, key string) (value T, loaded bool, err error) {
	b, err := serializer.Resolve[T](reg)
	if err != nil {
		return value, false, WrapError(RetCConfigError, "no usable serializer", err)
	}

	var decodeErr error
	switch b.Kind {
	case serializer.KindText:
		text, ok, err := s.TryGetString(key)
		if err != nil || !ok {
			return value, false, err
		}
		value, decodeErr = b.DecodeText(text)
	default:
		data, ok, err := s.TryGetBytes(key)
		if err != nil || !ok {
			return value, false, err
		}
		value, decodeErr = b.DecodeBinary(data)
	}

	if decodeErr != nil {
		Logger.Debugf("value of %q does not decode as %T with %s: %v", key, value, b.Serializer.Name(), decodeErr)
		var zero T
		return zero, false, nil
	}
	return value, true, nil
}

// GetObject returns the object stored under key, or def if it is absent or does not decode.
func GetObject[T any](s IStore, key string, def T) (T, error) {
	return orDefault(TryGetObject[T](s, key))(def)
}
