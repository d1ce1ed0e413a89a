package store

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

// fakeStore answers every read with the configured result.
type fakeStore struct {
	IStore
	loaded bool
	err    error
}

func (f fakeStore) TryGetBool(string) (bool, bool, error) { return f.loaded, f.loaded, f.err }
func (f fakeStore) TryGetInt(string) (int32, bool, error) { return 7, f.loaded, f.err }
func (f fakeStore) TryGetLong(string) (int64, bool, error) { return 7, f.loaded, f.err }
func (f fakeStore) TryGetFloat(string) (float32, bool, error) { return 7, f.loaded, f.err }
func (f fakeStore) TryGetDouble(string) (float64, bool, error) { return 7, f.loaded, f.err }
func (f fakeStore) TryGetString(string) (string, bool, error) { return "stored", f.loaded, f.err }
func (f fakeStore) TryGetBytes(string) ([]byte, bool, error) { return []byte("stored"), f.loaded, f.err }

func TestDefaultHelpers(t *testing.T) {
	present := fakeStore{loaded: true}
	absent := fakeStore{}
	failing := fakeStore{err: io.ErrUnexpectedEOF}

	if v, err := GetLong(present, "k", 1); err != nil || v != 7 {
		t.Errorf("GetLong(present) = %d, %v", v, err)
	}
	if v, err := GetLong(absent, "k", 1); err != nil || v != 1 {
		t.Errorf("GetLong(absent) = %d, %v", v, err)
	}
	if v, err := GetLong(failing, "k", 1); !errors.Is(err, io.ErrUnexpectedEOF) || v != 1 {
		t.Errorf("GetLong(failing) = %d, %v", v, err)
	}

	if v, _ := GetBool(absent, "k", true); !v {
		t.Error("GetBool(absent) should return the default")
	}
	if v, _ := GetInt(absent, "k", -1); v != -1 {
		t.Errorf("GetInt(absent) = %d", v)
	}
	if v, _ := GetFloat(present, "k", 0); v != 7 {
		t.Errorf("GetFloat(present) = %v", v)
	}
	if v, _ := GetDouble(absent, "k", 0.5); v != 0.5 {
		t.Errorf("GetDouble(absent) = %v", v)
	}
	if v, _ := GetString(present, "k", "def"); v != "stored" {
		t.Errorf("GetString(present) = %q", v)
	}
	if v, _ := GetBytes(absent, "k", []byte("def")); string(v) != "def" {
		t.Errorf("GetBytes(absent) = %q", v)
	}
}

func TestErrors(t *testing.T) {
	cause := errors.New("disk on fire")
	err := WrapError(RetCBackendError, "committing", cause)

	if !IsCode(err, RetCBackendError) {
		t.Error("IsCode should match the code")
	}
	if IsCode(err, RetCClosed) {
		t.Error("IsCode should not match another code")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the cause")
	}

	// codes survive further wrapping
	wrapped := fmt.Errorf("saving settings: %w", err)
	if !IsCode(wrapped, RetCBackendError) {
		t.Error("IsCode should look through wrapped errors")
	}
	if IsCode(cause, RetCBackendError) || IsCode(nil, RetCSuccess) {
		t.Error("IsCode matched a plain error")
	}

	if got := NewError(RetCInvalidKey, "empty").Error(); got != "KVStoreError (code InvalidKey): empty" {
		t.Errorf("Unexpected message: %q", got)
	}
	if !IsCode(ErrClosed, RetCClosed) {
		t.Error("ErrClosed has the wrong code")
	}
}

func TestCheckKey(t *testing.T) {
	if err := CheckKey(""); !IsCode(err, RetCInvalidKey) {
		t.Errorf("CheckKey(\"\") = %v", err)
	}
	for _, key := range []string{" ", "a", "ключ", "with\x00nul"} {
		if err := CheckKey(key); err != nil {
			t.Errorf("CheckKey(%q) = %v", key, err)
		}
	}
}
