package autosave

import (
	"bytes"
	"errors"
	"github.com/ValentinKolb/kvs/lib/pipeline"
	"github.com/ValentinKolb/kvs/lib/schedule"
	"github.com/ValentinKolb/kvs/lib/store"
	"github.com/ValentinKolb/kvs/lib/store/filestore"
	"github.com/ValentinKolb/kvs/lib/store/mapstore"
	storetesting "github.com/ValentinKolb/kvs/lib/store/testing"
	"path/filepath"
	"sync"
	"testing"
)

// countingStore saves into memory and counts the saves.
type countingStore struct {
	*mapstore.Store
	mu     sync.Mutex
	saves  int
	saved  bytes.Buffer
	fail   error
	closed bool
}

func newCounting() *countingStore {
	return &countingStore{Store: mapstore.New(nil)}
}

func (c *countingStore) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saves++
	if c.fail != nil {
		return c.fail
	}
	c.saved.Reset()
	return c.Store.SaveTo(&c.saved)
}

func (c *countingStore) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Store.LoadFrom(bytes.NewReader(c.saved.Bytes()))
}

func (c *countingStore) Close() error {
	c.closed = true
	return nil
}

func (c *countingStore) saveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saves
}

func TestStore(t *testing.T) {
	storetesting.RunStoreTests(t, "AutoSave", func(t testing.TB) store.IStore {
		s, err := New(newCounting(), schedule.NewManualLoop())
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		return s
	})
}

func TestCoalescedSave(t *testing.T) {
	loop := schedule.NewManualLoop()
	inner := newCounting()
	s, _ := New(inner, loop)

	for i := 0; i < 100; i++ {
		if err := s.SetLong("counter", int64(i)); err != nil {
			t.Fatalf("SetLong failed: %v", err)
		}
	}
	if n := inner.saveCount(); n != 0 {
		t.Fatalf("Saved %d times before the tick", n)
	}

	loop.Tick()
	if n := inner.saveCount(); n != 1 {
		t.Errorf("Expected 1 save for 100 sets, got %d", n)
	}
	if st := s.Stats(); st.Requests != 100 || st.Flushes != 1 {
		t.Errorf("Unexpected stats: %+v", st)
	}

	// reads do not schedule saves
	_, _, _ = s.TryGetLong("counter")
	_, _ = s.Has("counter")
	if loop.Pending() != 0 {
		t.Error("A read scheduled a save")
	}

	_ = s.Delete("counter")
	_ = s.DeleteAll()
	loop.Tick()
	if n := inner.saveCount(); n != 2 {
		t.Errorf("Expected 2 saves, got %d", n)
	}
}

func TestFailedMutationDoesNotSave(t *testing.T) {
	loop := schedule.NewManualLoop()
	s, _ := New(newCounting(), loop)

	if err := s.SetString("", "x"); !store.IsCode(err, store.RetCInvalidKey) {
		t.Fatalf("Expected RetCInvalidKey, got %v", err)
	}
	if loop.Pending() != 0 {
		t.Error("A rejected write scheduled a save")
	}
}

func TestSaveError(t *testing.T) {
	loop := schedule.NewManualLoop()
	inner := newCounting()
	inner.fail = errors.New("disk full")
	s, _ := New(inner, loop)

	var reported error
	s.OnSaveError(func(err error) { reported = err })

	_ = s.SetBool("flag", true)
	loop.Tick()
	if !errors.Is(reported, inner.fail) {
		t.Errorf("Expected the save error to be reported, got %v", reported)
	}

	// a failed save does not block later ones
	inner.mu.Lock()
	inner.fail = nil
	inner.mu.Unlock()
	_ = s.SetBool("flag", false)
	loop.Tick()
	if n := inner.saveCount(); n != 2 {
		t.Errorf("Expected 2 save attempts, got %d", n)
	}
}

func TestFlushAndClose(t *testing.T) {
	loop := schedule.NewManualLoop()
	inner := newCounting()
	s, _ := New(inner, loop)

	_ = s.SetString("name", "ada")
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if n := inner.saveCount(); n != 1 {
		t.Errorf("Expected Flush to save once, got %d", n)
	}

	_ = s.SetString("name", "grace")
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if n := inner.saveCount(); n != 2 || !inner.closed {
		t.Errorf("Close: %d saves, closed=%v", n, inner.closed)
	}

	// the scheduled save was cancelled by Close
	loop.Tick()
	if n := inner.saveCount(); n != 2 {
		t.Errorf("Scheduled save ran after Close: %d saves", n)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Second Close: %v", err)
	}
	if err := s.Flush(); !store.IsCode(err, store.RetCClosed) {
		t.Errorf("Flush after Close: %v", err)
	}
}

func TestClosedStore(t *testing.T) {
	inner := newCounting()
	s, _ := New(inner, nil)
	_ = s.SetLong("k", 1)
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	saves := inner.saveCount()

	mutations := map[string]func() error{
		"SetLong":   func() error { return s.SetLong("k", 42) },
		"SetBytes":  func() error { return s.SetBytes("b", []byte{1}) },
		"Delete":    func() error { return s.Delete("k") },
		"DeleteAll": s.DeleteAll,
		"Load":      s.Load,
		"Save":      s.Save,
	}
	for name, fn := range mutations {
		if err := fn(); !store.IsCode(err, store.RetCClosed) {
			t.Errorf("%s after Close: expected RetCClosed, got %v", name, err)
		}
	}
	if _, _, err := s.TryGetLong("k"); !store.IsCode(err, store.RetCClosed) {
		t.Errorf("TryGetLong after Close: expected RetCClosed, got %v", err)
	}
	if _, err := s.Has("k"); !store.IsCode(err, store.RetCClosed) {
		t.Errorf("Has after Close: expected RetCClosed, got %v", err)
	}

	if n := inner.saveCount(); n != saves {
		t.Errorf("Saved %d times after Close", n-saves)
	}
	// the inner store still holds the last saved value
	if v, ok, _ := inner.TryGetLong("k"); !ok || v != 1 {
		t.Errorf("Inner value changed after Close: %d, %v", v, ok)
	}
}

func TestWithFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	opts := pipeline.Options{Compression: pipeline.Gzip}

	inner, _ := filestore.New(mapstore.New(nil), path, opts)
	s, _ := New(inner, nil)
	_ = s.SetFloat("audio.master", 0.5)
	_ = s.SetString("player.name", "ada")

	// nil loop saves synchronously, the file is complete without Close
	reloaded, _ := filestore.New(mapstore.New(nil), path, opts)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if v, ok, _ := reloaded.TryGetFloat("audio.master"); !ok || v != 0.5 {
		t.Errorf("audio.master = %v, %v", v, ok)
	}
	if v, ok, _ := reloaded.TryGetString("player.name"); !ok || v != "ada" {
		t.Errorf("player.name = %q, %v", v, ok)
	}
	_ = s.Close()
}

func TestNewNil(t *testing.T) {
	if _, err := New(nil, nil); !store.IsCode(err, store.RetCConfigError) {
		t.Errorf("Expected RetCConfigError, got %v", err)
	}
}
