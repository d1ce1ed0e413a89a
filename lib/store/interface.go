package store

import (
	"errors"
	"fmt"
	"io"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IStore is the typed value model every backend implements.
// Reads return the value together with a loaded flag. An absent key is never an error,
// it is reported as loaded == false with the zero value of the requested kind.
//
// 32-bit integers and floats are not separate kinds: SetInt/TryGetInt go through the
// 64-bit integer slot and SetFloat/TryGetFloat through the double slot. Booleans are
// stored as integer 0/1, so a value written with SetBool can be read with TryGetInt.
type IStore interface {
	// Has returns whether a value for the key exists.
	Has(key string) (loaded bool, err error)
	// Delete removes the key. Deleting a missing key is not an error.
	Delete(key string) (err error)
	// DeleteAll removes every key. Calling it on an empty store is a no-op.
	DeleteAll() (err error)

	TryGetBool(key string) (value bool, loaded bool, err error)
	TryGetInt(key string) (value int32, loaded bool, err error)
	TryGetLong(key string) (value int64, loaded bool, err error)
	TryGetFloat(key string) (value float32, loaded bool, err error)
	TryGetDouble(key string) (value float64, loaded bool, err error)
	TryGetString(key string) (value string, loaded bool, err error)
	// TryGetBytes returns a copy of the stored bytes. An empty stored sequence is
	// returned as a non-nil empty slice.
	TryGetBytes(key string) (value []byte, loaded bool, err error)

	// The setters insert the key or overwrite its previous value, regardless of the
	// kind that was stored before.
	SetBool(key string, value bool) (err error)
	SetInt(key string, value int32) (err error)
	SetLong(key string, value int64) (err error)
	SetFloat(key string, value float32) (err error)
	SetDouble(key string, value float64) (err error)
	SetString(key string, value string) (err error)
	SetBytes(key string, value []byte) (err error)
}

// ISavable is implemented by stores whose whole state lives behind an explicit Load/Save boundary.
type ISavable interface {
	// Load replaces the in-memory state with the persisted one.
	Load() error
	// Save persists the complete in-memory state.
	Save() error
}

// IStreamSavable is implemented by stores that can write their whole state to a stream
// and read it back.
type IStreamSavable interface {
	LoadFrom(r io.Reader) error
	SaveTo(w io.Writer) error
}

// ISavableStore is a value model with explicit Load/Save.
type ISavableStore interface {
	IStore
	ISavable
}

// IStreamSavableStore is a value model that can be streamed.
type IStreamSavableStore interface {
	IStore
	IStreamSavable
}

// IFlusher is implemented by stores that buffer writes. Flush returns once every
// write made before the call is durable.
type IFlusher interface {
	Flush() error
}

// CheckKey validates a key. Keys must be non-empty, anything else is allowed.
func CheckKey(key string) error {
	if key == "" {
		return NewError(RetCInvalidKey, "key must not be empty")
	}
	return nil
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode),
// an error message and an optional cause.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
	Err  error   // The underlying error, may be nil.
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("KVStoreError (code %s): %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("KVStoreError (code %s): %s", e.Code, e.Msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new KVStoreError with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// WrapError creates a new KVStoreError with the given code and message that wraps err.
func WrapError(code RetCode, msg string, err error) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
		Err:  err,
	}
}

// IsCode reports whether err (or any error it wraps) is an *Error with the given code.
func IsCode(err error, code RetCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// ErrClosed is returned by every operation on a store that was closed or broken by a backend failure.
var ErrClosed = NewError(RetCClosed, "store is closed")

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCConfigError                         // 4: Missing or unusable configuration (e.g. no serializer capability).
	RetCBackendError                        // 5: The storage backend failed, the store is unusable until closed.
	RetCClosed                              // 6: The store was closed.
	RetCInvalidKey                          // 7: The key is not acceptable (empty).
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCConfigError:
		return "ConfigError"
	case RetCBackendError:
		return "BackendError"
	case RetCClosed:
		return "Closed"
	case RetCInvalidKey:
		return "InvalidKey"
	default:
		return "Unknown"
	}
}
