package testing

import (
	"bytes"
	"fmt"
	"github.com/ValentinKolb/kvs/lib/serializer"
	"github.com/ValentinKolb/kvs/lib/store"
	"math"
	"sync"
	"testing"
)

// StoreFactory creates a new, empty store. Implementations register the cleanup of the store
// (closing files, removing directories) with t.Cleanup.
type StoreFactory func(t testing.TB) store.IStore

// StreamSavableFactory creates a new, empty stream-savable store.
type StreamSavableFactory func(t testing.TB) store.IStreamSavableStore

// RunStoreTests runs the conformance suite every value model implementation must pass.
func RunStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory(t))
		})

		t.Run("Overwrite", func(t *testing.T) {
			testOverwrite(t, factory(t))
		})

		t.Run("Widening", func(t *testing.T) {
			testWidening(t, factory(t))
		})

		t.Run("Bytes", func(t *testing.T) {
			testBytes(t, factory(t))
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory(t))
		})

		t.Run("DeleteAll", func(t *testing.T) {
			testDeleteAll(t, factory(t))
		})

		t.Run("Absent", func(t *testing.T) {
			testAbsent(t, factory(t))
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory(t))
		})

		t.Run("Objects", func(t *testing.T) {
			testObjects(t, factory(t))
		})

		t.Run("Concurrent", func(t *testing.T) {
			testConcurrent(t, factory(t))
		})

		t.Run("RealisticUsage", func(t *testing.T) {
			testRealisticUsage(t, factory(t))
		})
	})
}

// RunStreamSavableTests checks that the whole state survives SaveTo/LoadFrom.
func RunStreamSavableTests(t *testing.T, name string, factory StreamSavableFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("LoadReplacesState", func(t *testing.T) {
			testLoadReplacesState(t, factory)
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func must(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

func expectLong(t testing.TB, s store.IStore, key string, want int64) {
	t.Helper()
	got, ok, err := s.TryGetLong(key)
	if err != nil || !ok || got != want {
		t.Errorf("TryGetLong(%q) = %d, %v, %v; want %d", key, got, ok, err, want)
	}
}

func expectString(t testing.TB, s store.IStore, key string, want string) {
	t.Helper()
	got, ok, err := s.TryGetString(key)
	if err != nil || !ok || got != want {
		t.Errorf("TryGetString(%q) = %q, %v, %v; want %q", key, got, ok, err, want)
	}
}

func expectAbsent(t testing.TB, s store.IStore, key string) {
	t.Helper()
	ok, err := s.Has(key)
	if err != nil || ok {
		t.Errorf("Has(%q) = %v, %v; want false", key, ok, err)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, s store.IStore) {
	must(t, s.SetBool("bool", true))
	must(t, s.SetInt("int", -42))
	must(t, s.SetLong("long", math.MaxInt64))
	must(t, s.SetFloat("float", 1.5))
	must(t, s.SetDouble("double", math.Pi))
	must(t, s.SetString("string", "hällo wörld ✓"))
	must(t, s.SetBytes("bytes", []byte{0, 1, 2, 255}))

	if v, ok, err := s.TryGetBool("bool"); err != nil || !ok || !v {
		t.Errorf("TryGetBool = %v, %v, %v; want true", v, ok, err)
	}
	if v, ok, err := s.TryGetInt("int"); err != nil || !ok || v != -42 {
		t.Errorf("TryGetInt = %d, %v, %v; want -42", v, ok, err)
	}
	expectLong(t, s, "long", math.MaxInt64)
	if v, ok, err := s.TryGetFloat("float"); err != nil || !ok || v != 1.5 {
		t.Errorf("TryGetFloat = %v, %v, %v; want 1.5", v, ok, err)
	}
	if v, ok, err := s.TryGetDouble("double"); err != nil || !ok || v != math.Pi {
		t.Errorf("TryGetDouble = %v, %v, %v; want pi", v, ok, err)
	}
	expectString(t, s, "string", "hällo wörld ✓")
	if v, ok, err := s.TryGetBytes("bytes"); err != nil || !ok || !bytes.Equal(v, []byte{0, 1, 2, 255}) {
		t.Errorf("TryGetBytes = %v, %v, %v", v, ok, err)
	}

	for _, key := range []string{"bool", "int", "long", "float", "double", "string", "bytes"} {
		if ok, err := s.Has(key); err != nil || !ok {
			t.Errorf("Has(%q) = %v, %v; want true", key, ok, err)
		}
	}
}

func testOverwrite(t *testing.T, s store.IStore) {
	must(t, s.SetString("key", "first"))
	must(t, s.SetString("key", "second"))
	expectString(t, s, "key", "second")

	// a different kind replaces the value as well
	must(t, s.SetLong("key", 7))
	expectLong(t, s, "key", 7)

	// keys are case sensitive
	must(t, s.SetString("Key", "upper"))
	expectLong(t, s, "key", 7)
	expectString(t, s, "Key", "upper")
}

func testWidening(t *testing.T, s store.IStore) {
	must(t, s.SetInt("int", 123456))
	expectLong(t, s, "int", 123456)

	must(t, s.SetLong("long", -99))
	if v, ok, err := s.TryGetInt("long"); err != nil || !ok || v != -99 {
		t.Errorf("TryGetInt of long = %d, %v, %v; want -99", v, ok, err)
	}

	must(t, s.SetBool("true", true))
	must(t, s.SetBool("false", false))
	if v, ok, err := s.TryGetInt("true"); err != nil || !ok || v != 1 {
		t.Errorf("TryGetInt of true = %d, %v, %v; want 1", v, ok, err)
	}
	expectLong(t, s, "false", 0)

	must(t, s.SetLong("five", 5))
	if v, ok, err := s.TryGetBool("five"); err != nil || !ok || !v {
		t.Errorf("TryGetBool of 5 = %v, %v, %v; want true", v, ok, err)
	}

	must(t, s.SetFloat("float", 0.25))
	if v, ok, err := s.TryGetDouble("float"); err != nil || !ok || v != 0.25 {
		t.Errorf("TryGetDouble of float = %v, %v, %v; want 0.25", v, ok, err)
	}

	must(t, s.SetDouble("double", 2.5))
	if v, ok, err := s.TryGetFloat("double"); err != nil || !ok || v != 2.5 {
		t.Errorf("TryGetFloat of double = %v, %v, %v; want 2.5", v, ok, err)
	}

	must(t, s.SetLong("number", 42))
	expectString(t, s, "number", "42")
}

func testBytes(t *testing.T, s store.IStore) {
	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}

	tests := map[string][]byte{
		"empty":  {},
		"nil":    nil,
		"single": {0},
		"all":    all,
		"large":  bytes.Repeat([]byte("0123456789"), 10_000),
	}

	for name, value := range tests {
		must(t, s.SetBytes(name, value))
		got, ok, err := s.TryGetBytes(name)
		if err != nil || !ok {
			t.Errorf("%s: TryGetBytes = %v, %v", name, ok, err)
			continue
		}
		if got == nil {
			t.Errorf("%s: TryGetBytes returned nil instead of an empty slice", name)
		}
		if !bytes.Equal(got, value) {
			t.Errorf("%s: expected %d bytes, got %d", name, len(value), len(got))
		}
	}

	// returned slices must not alias the store
	got, _, _ := s.TryGetBytes("all")
	got[0] = 0xff
	again, _, _ := s.TryGetBytes("all")
	if again[0] != 0 {
		t.Error("Modifying a returned slice changed the stored value")
	}
}

func testDelete(t *testing.T, s store.IStore) {
	must(t, s.SetString("a", "1"))
	must(t, s.SetString("b", "2"))

	must(t, s.Delete("a"))
	expectAbsent(t, s, "a")
	expectString(t, s, "b", "2")

	// deleting a missing key is not an error
	must(t, s.Delete("a"))
	must(t, s.Delete("never-set"))

	must(t, s.SetString("a", "3"))
	expectString(t, s, "a", "3")
}

func testDeleteAll(t *testing.T, s store.IStore) {
	for i := 0; i < 50; i++ {
		must(t, s.SetLong(fmt.Sprintf("key-%d", i), int64(i)))
	}

	must(t, s.DeleteAll())
	must(t, s.DeleteAll())

	for i := 0; i < 50; i++ {
		expectAbsent(t, s, fmt.Sprintf("key-%d", i))
	}

	must(t, s.SetLong("key-1", 1))
	expectLong(t, s, "key-1", 1)
}

func testAbsent(t *testing.T, s store.IStore) {
	if v, ok, err := s.TryGetBool("missing"); err != nil || ok || v {
		t.Errorf("TryGetBool = %v, %v, %v", v, ok, err)
	}
	if v, ok, err := s.TryGetInt("missing"); err != nil || ok || v != 0 {
		t.Errorf("TryGetInt = %v, %v, %v", v, ok, err)
	}
	if v, ok, err := s.TryGetLong("missing"); err != nil || ok || v != 0 {
		t.Errorf("TryGetLong = %v, %v, %v", v, ok, err)
	}
	if v, ok, err := s.TryGetFloat("missing"); err != nil || ok || v != 0 {
		t.Errorf("TryGetFloat = %v, %v, %v", v, ok, err)
	}
	if v, ok, err := s.TryGetDouble("missing"); err != nil || ok || v != 0 {
		t.Errorf("TryGetDouble = %v, %v, %v", v, ok, err)
	}
	if v, ok, err := s.TryGetString("missing"); err != nil || ok || v != "" {
		t.Errorf("TryGetString = %q, %v, %v", v, ok, err)
	}
	if v, ok, err := s.TryGetBytes("missing"); err != nil || ok || v != nil {
		t.Errorf("TryGetBytes = %v, %v, %v", v, ok, err)
	}

	if v, err := store.GetLong(s, "missing", 17); err != nil || v != 17 {
		t.Errorf("GetLong default = %d, %v; want 17", v, err)
	}
	if v, err := store.GetString(s, "missing", "fallback"); err != nil || v != "fallback" {
		t.Errorf("GetString default = %q, %v", v, err)
	}
	must(t, s.SetBool("present", false))
	if v, err := store.GetBool(s, "present", true); err != nil || v {
		t.Errorf("GetBool of stored false = %v, %v; want false", v, err)
	}
}

func testEdgeCases(t *testing.T, s store.IStore) {
	if err := s.SetString("", "value"); !store.IsCode(err, store.RetCInvalidKey) {
		t.Errorf("Expected RetCInvalidKey for empty key, got %v", err)
	}
	if _, _, err := s.TryGetString(""); !store.IsCode(err, store.RetCInvalidKey) {
		t.Errorf("Expected RetCInvalidKey for empty key, got %v", err)
	}

	specialKeys := []string{" ", "with space", "with/slash", "with'quote", "with\"double", "ключ", "🔑", "a;DROP TABLE KeyValueStore"}
	for _, key := range specialKeys {
		must(t, s.SetString(key, key))
	}
	for _, key := range specialKeys {
		expectString(t, s, key, key)
	}

	must(t, s.SetString("empty-string", ""))
	expectString(t, s, "empty-string", "")
	if ok, _ := s.Has("empty-string"); !ok {
		t.Error("Empty string value should still be present")
	}

	must(t, s.SetLong("min", math.MinInt64))
	expectLong(t, s, "min", math.MinInt64)

	must(t, s.SetDouble("tiny", math.SmallestNonzeroFloat64))
	if v, _, _ := s.TryGetDouble("tiny"); v != math.SmallestNonzeroFloat64 {
		t.Errorf("Expected smallest float64, got %v", v)
	}

	longKey := string(bytes.Repeat([]byte("k"), 1000))
	longValue := string(bytes.Repeat([]byte("v"), 100_000))
	must(t, s.SetString(longKey, longValue))
	expectString(t, s, longKey, longValue)
}

type testSettings struct {
	Volume  float64  `json:"volume"`
	Muted   bool     `json:"muted"`
	Name    string   `json:"name"`
	Recent  []string `json:"recent"`
	Version int      `json:"version"`
}

type testVec3 struct {
	X, Y, Z float32
}

func testObjects(t *testing.T, s store.IStore) {
	settings := testSettings{Volume: 0.8, Name: "player", Recent: []string{"a", "b"}, Version: 3}

	// default registry: json text
	must(t, store.SetObject(s, "settings", settings))
	got, ok, err := store.TryGetObject[testSettings](s, "settings")
	if err != nil || !ok {
		t.Fatalf("TryGetObject = %v, %v", ok, err)
	}
	if got.Volume != settings.Volume || got.Name != settings.Name || len(got.Recent) != 2 || got.Version != 3 {
		t.Errorf("Object mismatch: %+v", got)
	}
	if text, _, _ := s.TryGetString("settings"); len(text) == 0 || text[0] != '{' {
		t.Errorf("Expected JSON text in the store, got %q", text)
	}

	// a binding for one type switches only that type
	reg := serializer.NewRegistry(nil)
	must(t, serializer.Register[testVec3](reg, serializer.NewStructSerializer()))
	must(t, serializer.RegisterNumberLists(reg))

	must(t, store.SetObjectWith(s, reg, "position", testVec3{1, 2, 3}))
	if raw, ok, _ := s.TryGetBytes("position"); !ok || len(raw) != 12 {
		t.Errorf("Expected 12 raw bytes for the struct binding, got %d", len(raw))
	}
	pos, ok, err := store.TryGetObjectWith[testVec3](s, reg, "position")
	if err != nil || !ok || pos != (testVec3{1, 2, 3}) {
		t.Errorf("TryGetObjectWith = %+v, %v, %v", pos, ok, err)
	}

	must(t, store.SetObjectWith(s, reg, "color", []float64{0.5, 1, 0}))
	expectString(t, s, "color", "0.5,1,0")

	must(t, store.SetObjectWith(s, reg, "settings-2", settings))
	if text, _, _ := s.TryGetString("settings-2"); len(text) == 0 || text[0] != '{' {
		t.Errorf("Unbound type should use the default serializer, got %q", text)
	}

	// a payload that does not decode is reported as absent
	must(t, s.SetString("broken", "{not json"))
	if _, ok, err := store.TryGetObject[testSettings](s, "broken"); err != nil || ok {
		t.Errorf("Broken payload: ok=%v err=%v, want absent", ok, err)
	}
	if v, err := store.GetObject(s, "broken", testSettings{Name: "default"}); err != nil || v.Name != "default" {
		t.Errorf("GetObject fallback = %+v, %v", v, err)
	}
	if _, ok, err := store.TryGetObject[testSettings](s, "missing"); err != nil || ok {
		t.Errorf("Missing object: ok=%v err=%v", ok, err)
	}
}

func testConcurrent(t *testing.T, s store.IStore) {
	const workers = 8
	const perWorker = 100

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				key := fmt.Sprintf("w%d-%d", w, i)
				if err := s.SetLong(key, int64(i)); err != nil {
					t.Errorf("SetLong failed: %v", err)
					return
				}
				if v, ok, err := s.TryGetLong(key); err != nil || !ok || v != int64(i) {
					t.Errorf("TryGetLong(%s) = %d, %v, %v", key, v, ok, err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	for w := 0; w < workers; w++ {
		expectLong(t, s, fmt.Sprintf("w%d-%d", w, perWorker-1), perWorker-1)
	}
}

func testRealisticUsage(t *testing.T, s store.IStore) {
	// a settings screen: many small writes, read back on the next start
	must(t, s.SetString("player.name", "ada"))
	must(t, s.SetInt("player.level", 1))
	must(t, s.SetFloat("audio.master", 0.75))
	must(t, s.SetBool("audio.muted", false))

	for level := int32(2); level <= 10; level++ {
		must(t, s.SetInt("player.level", level))
	}
	if v, err := store.GetInt(s, "player.level", 0); err != nil || v != 10 {
		t.Errorf("player.level = %d, %v; want 10", v, err)
	}

	must(t, s.SetBool("audio.muted", true))
	if v, err := store.GetBool(s, "audio.muted", false); err != nil || !v {
		t.Errorf("audio.muted = %v, %v; want true", v, err)
	}

	must(t, s.Delete("player.name"))
	if v, err := store.GetString(s, "player.name", "guest"); err != nil || v != "guest" {
		t.Errorf("player.name = %q, %v; want guest", v, err)
	}
	if v, err := store.GetFloat(s, "audio.master", 1); err != nil || v != 0.75 {
		t.Errorf("audio.master = %v, %v; want 0.75", v, err)
	}
}

func testSaveLoad(t *testing.T, factory StreamSavableFactory) {
	source := factory(t)
	must(t, source.SetBool("bool", true))
	must(t, source.SetLong("long", -1234567890123))
	must(t, source.SetDouble("double", 0.1))
	must(t, source.SetDouble("whole", 2))
	must(t, source.SetString("string", "text with \"quotes\" and\nnewlines"))
	must(t, source.SetBytes("bytes", []byte{0, 10, 255}))
	must(t, source.SetBytes("empty", []byte{}))

	var buf bytes.Buffer
	must(t, source.SaveTo(&buf))

	target := factory(t)
	must(t, target.LoadFrom(&buf))

	if v, ok, _ := target.TryGetBool("bool"); !ok || !v {
		t.Error("bool did not survive save/load")
	}
	expectLong(t, target, "long", -1234567890123)
	if v, _, _ := target.TryGetDouble("double"); v != 0.1 {
		t.Errorf("double = %v, want 0.1", v)
	}
	if v, _, _ := target.TryGetDouble("whole"); v != 2 {
		t.Errorf("whole = %v, want 2", v)
	}
	expectString(t, target, "string", "text with \"quotes\" and\nnewlines")
	if v, ok, _ := target.TryGetBytes("bytes"); !ok || !bytes.Equal(v, []byte{0, 10, 255}) {
		t.Errorf("bytes = %v, %v", v, ok)
	}
	if v, ok, _ := target.TryGetBytes("empty"); !ok || len(v) != 0 {
		t.Errorf("empty bytes = %v, %v", v, ok)
	}
}

func testLoadReplacesState(t *testing.T, factory StreamSavableFactory) {
	source := factory(t)
	must(t, source.SetString("kept", "1"))

	var buf bytes.Buffer
	must(t, source.SaveTo(&buf))

	target := factory(t)
	must(t, target.SetString("stale", "x"))
	must(t, target.LoadFrom(&buf))

	expectString(t, target, "kept", "1")
	expectAbsent(t, target, "stale")
}
