package value

import (
	"github.com/ValentinKolb/kvs/lib/store"
)

// Backend is the cell level contract of a transactional engine.
type Backend interface {
	// ReadCell returns the cell stored for key. ok is false if the key does not exist.
	ReadCell(key string) (c Cell, ok bool, err error)
	// WriteCell inserts or replaces the cell stored for key.
	WriteCell(key string, c Cell) error
	// RemoveCell removes key.
	RemoveCell(key string) error
	// RemoveAll removes every key.
	RemoveAll() error
}

// Typed implements store.IStore on top of a Backend.
type Typed struct {
	backend Backend
}

// NewTyped returns the value model for b.
func NewTyped(b Backend) Typed {
	return Typed{backend: b}
}

var _ store.IStore = Typed{}

func (t Typed) read(key string) (Cell, bool, error) {
	if err := store.CheckKey(key); err != nil {
		return Cell{}, false, err
	}
	return t.backend.ReadCell(key)
}

func (t Typed) write(key string, c Cell) error {
	if err := store.CheckKey(key); err != nil {
		return err
	}
	return t.backend.WriteCell(key, c)
}

func (t Typed) Has(key string) (bool, error) {
	_, ok, err := t.read(key)
	return ok, err
}

func (t Typed) Delete(key string) error {
	if err := store.CheckKey(key); err != nil {
		return err
	}
	return t.backend.RemoveCell(key)
}

func (t Typed) DeleteAll() error {
	return t.backend.RemoveAll()
}

// --------------------------------------------------------------------------
// Reads
// --------------------------------------------------------------------------

func (t Typed) TryGetBool(key string) (bool, bool, error) {
	v, ok, err := t.TryGetLong(key)
	return v != 0, ok, err
}

func (t Typed) TryGetInt(key string) (int32, bool, error) {
	v, ok, err := t.TryGetLong(key)
	return int32(v), ok, err
}

func (t Typed) TryGetLong(key string) (int64, bool, error) {
	c, ok, err := t.read(key)
	if err != nil || !ok {
		return 0, false, err
	}
	return c.AsInt(), true, nil
}

func (t Typed) TryGetFloat(key string) (float32, bool, error) {
	v, ok, err := t.TryGetDouble(key)
	return float32(v), ok, err
}

func (t Typed) TryGetDouble(key string) (float64, bool, error) {
	c, ok, err := t.read(key)
	if err != nil || !ok {
		return 0, false, err
	}
	return c.AsDouble(), true, nil
}

func (t Typed) TryGetString(key string) (string, bool, error) {
	c, ok, err := t.read(key)
	if err != nil || !ok {
		return "", false, err
	}
	return c.AsText(), true, nil
}

func (t Typed) TryGetBytes(key string) ([]byte, bool, error) {
	c, ok, err := t.read(key)
	if err != nil || !ok {
		return nil, false, err
	}
	return c.AsBytes(), true, nil
}

// --------------------------------------------------------------------------
// Writes
// --------------------------------------------------------------------------

func (t Typed) SetBool(key string, v bool) error { return t.write(key, Bool(v)) }
func (t Typed) SetInt(key string, v int32) error { return t.write(key, Int(int64(v))) }
func (t Typed) SetLong(key string, v int64) error { return t.write(key, Int(v)) }
func (t Typed) SetFloat(key string, v float32) error { return t.write(key, Double(float64(v))) }
func (t Typed) SetDouble(key string, v float64) error { return t.write(key, Double(v)) }
func (t Typed) SetString(key string, v string) error { return t.write(key, Text(v)) }
func (t Typed) SetBytes(key string, v []byte) error { return t.write(key, Blob(v)) }
