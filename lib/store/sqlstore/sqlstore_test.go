package sqlstore

import (
	"github.com/ValentinKolb/kvs/lib/schedule"
	"github.com/ValentinKolb/kvs/lib/store"
	storetesting "github.com/ValentinKolb/kvs/lib/store/testing"
	"path/filepath"
	"testing"
)

func openTemp(t testing.TB, loop schedule.Loop) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "kvs.sqlite"), &Options{Loop: loop})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore(t *testing.T) {
	storetesting.RunStoreTests(t, "SQLite/ManualLoop", func(t testing.TB) store.IStore {
		return openTemp(t, schedule.NewManualLoop())
	})

	storetesting.RunStoreTests(t, "SQLite/Immediate", func(t testing.TB) store.IStore {
		return openTemp(t, nil)
	})

	storetesting.RunStoreTests(t, "SQLite/GoroutineLoop", func(t testing.TB) store.IStore {
		loop := schedule.NewGoroutineLoop()
		t.Cleanup(loop.Close)
		return openTemp(t, loop)
	})
}

func TestCoalescedCommit(t *testing.T) {
	loop := schedule.NewManualLoop()
	s := openTemp(t, loop)

	for i := 0; i < 100; i++ {
		if err := s.SetLong("counter", int64(i)); err != nil {
			t.Fatalf("SetLong failed: %v", err)
		}
	}
	if st := s.Stats(); st.Commits != 0 || st.Begins != 1 {
		t.Errorf("Before tick: %+v, want 0 commits and 1 begin", st)
	}
	if n := loop.Pending(); n != 1 {
		t.Errorf("Expected 1 queued flush, got %d", n)
	}

	loop.Tick()
	if st := s.Stats(); st.Commits != 1 {
		t.Errorf("After tick: %d commits, want 1", st.Commits)
	}

	// the next write begins a new transaction
	if err := s.SetLong("counter", 100); err != nil {
		t.Fatalf("SetLong failed: %v", err)
	}
	loop.Tick()
	if st := s.Stats(); st.Commits != 2 || st.Begins != 2 {
		t.Errorf("Second round: %+v, want 2 commits and 2 begins", st)
	}
}

func TestImmediateCommit(t *testing.T) {
	s := openTemp(t, nil)
	for i := 0; i < 3; i++ {
		if err := s.SetInt("k", int32(i)); err != nil {
			t.Fatalf("SetInt failed: %v", err)
		}
	}
	if st := s.Stats(); st.Commits != 3 {
		t.Errorf("Expected a commit per write, got %d", st.Commits)
	}
}

func TestCoercion(t *testing.T) {
	s := openTemp(t, schedule.NewManualLoop())

	t.Run("Narrowing", func(t *testing.T) {
		_ = s.SetLong("wide", 1<<40+5)
		if v, ok, err := s.TryGetInt("wide"); err != nil || !ok || v != 5 {
			t.Errorf("TryGetInt = %d, %v, %v; want 5 (truncated)", v, ok, err)
		}
		_ = s.SetDouble("neg", -2.9)
		if v, _, _ := s.TryGetLong("neg"); v != -2 {
			t.Errorf("TryGetLong(-2.9) = %d, want -2", v)
		}
	})

	t.Run("Text", func(t *testing.T) {
		_ = s.SetString("prefix", "12abc")
		if v, ok, _ := s.TryGetLong("prefix"); !ok || v != 12 {
			t.Errorf("TryGetLong(12abc) = %d, %v; want 12", v, ok)
		}
		_ = s.SetString("word", "abc")
		if v, ok, _ := s.TryGetLong("word"); !ok || v != 0 {
			t.Errorf("TryGetLong(abc) = %d, %v; want 0, present", v, ok)
		}
		_ = s.SetDouble("half", 0.5)
		if v, _, _ := s.TryGetString("half"); v != "0.5" {
			t.Errorf("TryGetString(0.5) = %q", v)
		}
		_ = s.SetString("hi", "hi")
		if v, _, _ := s.TryGetBytes("hi"); string(v) != "hi" {
			t.Errorf("TryGetBytes(hi) = %q", v)
		}
	})
}

func TestPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kvs.sqlite")

	s, err := Open(path, &Options{Loop: schedule.NewManualLoop()})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	_ = s.SetString("name", "ada")
	_ = s.SetBytes("blob", []byte{1, 2, 3})
	// never ticked: Close has to commit
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s, err = Open(path, nil)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer s.Close()
	if v, ok, _ := s.TryGetString("name"); !ok || v != "ada" {
		t.Errorf("name = %q, %v", v, ok)
	}
	if v, ok, _ := s.TryGetBytes("blob"); !ok || len(v) != 3 || v[2] != 3 {
		t.Errorf("blob = %v, %v", v, ok)
	}
}

func TestFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kvs.sqlite")
	s, err := Open(path, &Options{Loop: schedule.NewManualLoop()})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	_ = s.SetLong("n", 42)
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if st := s.Stats(); st.Commits != 1 {
		t.Errorf("Expected 1 commit after Flush, got %d", st.Commits)
	}
	// nothing open, nothing to commit
	if err := s.Flush(); err != nil || s.Stats().Commits != 1 {
		t.Errorf("Second Flush: %v, %d commits", err, s.Stats().Commits)
	}

	other, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Opening a second handle failed: %v", err)
	}
	defer other.Close()
	if v, ok, _ := other.TryGetLong("n"); !ok || v != 42 {
		t.Errorf("Flushed value not visible to another handle: %d, %v", v, ok)
	}
}

func TestPragmaAndVacuum(t *testing.T) {
	s := openTemp(t, schedule.NewManualLoop())

	if _, err := s.Pragma("user_version = 7"); err != nil {
		t.Fatalf("Setting user_version failed: %v", err)
	}
	for _, p := range []string{"user_version", "PRAGMA user_version", "  pragma user_version  "} {
		got, err := s.Pragma(p)
		if err != nil || len(got) != 1 || got[0] != "7" {
			t.Errorf("Pragma(%q) = %v, %v; want [7]", p, got, err)
		}
	}

	if _, err := s.Pragma("user_version; DROP TABLE KeyValueStore"); !store.IsCode(err, store.RetCInvalidOperation) {
		t.Errorf("Expected RetCInvalidOperation for multiple statements, got %v", err)
	}
	if _, err := s.Pragma("user_version = = 1"); !store.IsCode(err, store.RetCInvalidOperation) {
		t.Errorf("Expected RetCInvalidOperation for a syntax error, got %v", err)
	}

	_ = s.SetString("kept", "yes")
	if err := s.Vacuum(); err != nil {
		t.Fatalf("Vacuum failed: %v", err)
	}
	if v, ok, _ := s.TryGetString("kept"); !ok || v != "yes" {
		t.Errorf("kept = %q, %v after vacuum", v, ok)
	}
}

func TestInfo(t *testing.T) {
	s := openTemp(t, schedule.NewManualLoop())
	_ = s.SetLong("a", 1)
	_ = s.SetLong("b", 2)

	info, err := s.Info()
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.Backend != store.ImplSQLite || info.Keys != 2 || info.Path != s.Path() {
		t.Errorf("Unexpected info: %+v", info)
	}
}

func TestClosed(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "kvs.sqlite"), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Second Close should be a no-op, got %v", err)
	}

	if err := s.SetLong("k", 1); !store.IsCode(err, store.RetCClosed) {
		t.Errorf("SetLong after Close: %v", err)
	}
	if _, _, err := s.TryGetLong("k"); !store.IsCode(err, store.RetCClosed) {
		t.Errorf("TryGetLong after Close: %v", err)
	}
	if err := s.Flush(); !store.IsCode(err, store.RetCClosed) {
		t.Errorf("Flush after Close: %v", err)
	}
}

func TestOpenErrors(t *testing.T) {
	if _, err := Open("", nil); !store.IsCode(err, store.RetCConfigError) {
		t.Errorf("Expected RetCConfigError for an empty path, got %v", err)
	}
	missing := filepath.Join(t.TempDir(), "no", "such", "dir", "kvs.sqlite")
	if _, err := Open(missing, nil); !store.IsCode(err, store.RetCBackendError) {
		t.Errorf("Expected RetCBackendError for a missing directory, got %v", err)
	}
	if _, err := Open(filepath.Join(t.TempDir(), "kvs.sqlite"), &Options{Pragmas: []string{"a; b"}}); !store.IsCode(err, store.RetCBackendError) {
		t.Errorf("Expected RetCBackendError for an invalid pragma, got %v", err)
	}
}
