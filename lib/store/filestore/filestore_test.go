package filestore

import (
	"errors"
	"github.com/ValentinKolb/kvs/lib/pipeline"
	"github.com/ValentinKolb/kvs/lib/store"
	"github.com/ValentinKolb/kvs/lib/store/mapstore"
	storetesting "github.com/ValentinKolb/kvs/lib/store/testing"
	"os"
	"path/filepath"
	"testing"
)

var encrypted = pipeline.Options{
	Compression: pipeline.Zstd,
	Passphrase:  "correct horse battery staple",
	ScryptN:     1 << 10,
	ScryptR:     8,
	ScryptP:     1,
}

func newTemp(t testing.TB, opts pipeline.Options) *Store {
	t.Helper()
	s, err := New(mapstore.New(nil), filepath.Join(t.TempDir(), "state.json"), opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func TestStore(t *testing.T) {
	storetesting.RunStoreTests(t, "FileStore", func(t testing.TB) store.IStore {
		return newTemp(t, pipeline.Options{})
	})
}

func TestSaveLoad(t *testing.T) {
	tests := map[string]pipeline.Options{
		"plain":     {},
		"gzip":      {Compression: pipeline.Gzip},
		"encrypted": {Passphrase: "secret", ScryptN: 1 << 10, ScryptR: 8, ScryptP: 1},
		"zstd+enc":  encrypted,
	}

	for name, opts := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", "dir", "state.kvs")

			source, _ := New(mapstore.New(&mapstore.Options{Format: mapstore.FormatMsgpack}), path, opts)
			_ = source.SetString("name", "ada")
			_ = source.SetLong("level", 12)
			_ = source.SetBytes("blob", []byte{0, 1, 2})
			if err := source.Save(); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			target, _ := New(mapstore.New(&mapstore.Options{Format: mapstore.FormatMsgpack}), path, opts)
			if err := target.Load(); err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if v, ok, _ := target.TryGetString("name"); !ok || v != "ada" {
				t.Errorf("name = %q, %v", v, ok)
			}
			if v, ok, _ := target.TryGetLong("level"); !ok || v != 12 {
				t.Errorf("level = %d, %v", v, ok)
			}
			if v, ok, _ := target.TryGetBytes("blob"); !ok || len(v) != 3 || v[2] != 2 {
				t.Errorf("blob = %v, %v", v, ok)
			}

			info, err := target.Info()
			if err != nil || info.Path != path || info.SizeBytes == 0 || info.Keys != 3 {
				t.Errorf("Info = %+v, %v", info, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	s := newTemp(t, encrypted)
	_ = s.SetString("kept", "yes")

	if err := s.Load(); err != nil {
		t.Fatalf("Loading a missing file should not fail: %v", err)
	}
	if v, ok, _ := s.TryGetString("kept"); !ok || v != "yes" {
		t.Errorf("Missing file changed the store: %q, %v", v, ok)
	}
	if _, err := os.Stat(s.Path()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load created the file: %v", err)
	}
}

func TestWrongPassphrase(t *testing.T) {
	s := newTemp(t, encrypted)
	_ = s.SetString("secret", "value")
	if err := s.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	wrong := encrypted
	wrong.Passphrase = "wrong"
	other, _ := New(mapstore.New(nil), s.Path(), wrong)
	_ = other.SetString("kept", "yes")

	err := other.Load()
	if !errors.Is(err, pipeline.ErrDecrypt) {
		t.Fatalf("Expected ErrDecrypt, got %v", err)
	}
	if ok, _ := other.Has("secret"); ok {
		t.Error("Failed load leaked data into the store")
	}
	if ok, _ := other.Has("kept"); !ok {
		t.Error("Failed load changed the store")
	}

	// reading an encrypted file without a passphrase fails as well
	plain, _ := New(mapstore.New(nil), s.Path(), pipeline.Options{Compression: pipeline.Zstd})
	if err := plain.Load(); err == nil {
		t.Error("Expected an error when loading an encrypted file without passphrase")
	}
}

func TestNewErrors(t *testing.T) {
	if _, err := New(nil, "state.json", pipeline.Options{}); !store.IsCode(err, store.RetCConfigError) {
		t.Errorf("Expected RetCConfigError for a nil inner store, got %v", err)
	}
	if _, err := New(mapstore.New(nil), "", pipeline.Options{}); !store.IsCode(err, store.RetCConfigError) {
		t.Errorf("Expected RetCConfigError for an empty path, got %v", err)
	}
}
