package mapstore

import (
	"bytes"
	"github.com/ValentinKolb/kvs/lib/store"
	storetesting "github.com/ValentinKolb/kvs/lib/store/testing"
	"github.com/vmihailenco/msgpack/v5"
	"math"
	"strings"
	"testing"
)

func TestStore(t *testing.T) {
	storetesting.RunStoreTests(t, "MapStore", func(t testing.TB) store.IStore {
		return New(nil)
	})
}

func TestStreamSavable(t *testing.T) {
	for _, f := range []Format{FormatJSON, FormatMsgpack} {
		storetesting.RunStreamSavableTests(t, "MapStore/"+f.String(), func(t testing.TB) store.IStreamSavableStore {
			return New(&Options{Format: f})
		})
	}
}

func TestConversions(t *testing.T) {
	s := New(nil)

	t.Run("TextAsNumber", func(t *testing.T) {
		_ = s.SetString("abc", "abc")
		if v, ok, err := s.TryGetLong("abc"); err != nil || ok || v != 0 {
			t.Errorf("TryGetLong(abc) = %d, %v, %v; want absent", v, ok, err)
		}
		if _, ok, _ := s.TryGetDouble("abc"); ok {
			t.Error("TryGetDouble(abc) should be absent")
		}
		if _, ok, _ := s.TryGetBool("abc"); ok {
			t.Error("TryGetBool(abc) should be absent")
		}
		// the key itself is still present
		if ok, _ := s.Has("abc"); !ok {
			t.Error("Has(abc) = false")
		}

		_ = s.SetString("numeric", " 42 ")
		if v, ok, _ := s.TryGetInt("numeric"); !ok || v != 42 {
			t.Errorf("TryGetInt(numeric) = %d, %v; want 42", v, ok)
		}
	})

	t.Run("Int32Overflow", func(t *testing.T) {
		_ = s.SetLong("big", math.MaxInt32+1)
		if _, ok, _ := s.TryGetInt("big"); ok {
			t.Error("TryGetInt of a value above MaxInt32 should be absent")
		}
		if v, ok, _ := s.TryGetLong("big"); !ok || v != math.MaxInt32+1 {
			t.Errorf("TryGetLong(big) = %d, %v", v, ok)
		}
	})

	t.Run("RoundHalfToEven", func(t *testing.T) {
		tests := map[float64]int64{2.5: 2, 3.5: 4, -2.5: -2, 1.4: 1, 1.6: 2}
		for in, want := range tests {
			_ = s.SetDouble("d", in)
			if v, ok, _ := s.TryGetLong("d"); !ok || v != want {
				t.Errorf("TryGetLong(%v) = %d, %v; want %d", in, v, ok, want)
			}
		}

		_ = s.SetDouble("huge", 1e300)
		if _, ok, _ := s.TryGetLong("huge"); ok {
			t.Error("TryGetLong(1e300) should be absent")
		}
	})

	t.Run("BytesAreBase64", func(t *testing.T) {
		_ = s.SetBytes("b", []byte("hi"))
		expectText(t, s, "b", "aGk=")

		_ = s.SetString("not-base64", "%%%")
		if v, ok, err := s.TryGetBytes("not-base64"); err != nil || ok || v != nil {
			t.Errorf("TryGetBytes(not-base64) = %v, %v, %v; want absent", v, ok, err)
		}
	})

	t.Run("NumbersAsText", func(t *testing.T) {
		_ = s.SetDouble("pi", 3.25)
		expectText(t, s, "pi", "3.25")
		_ = s.SetBool("yes", true)
		expectText(t, s, "yes", "1")
	})
}

func TestJSONFormat(t *testing.T) {
	s := New(nil)
	_ = s.SetDouble("whole", 2)
	_ = s.SetLong("long", 2)
	_ = s.SetString("text", "2")

	var buf bytes.Buffer
	if err := s.SaveTo(&buf); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}
	out := buf.String()
	for _, part := range []string{`"whole":2.0`, `"long":2`, `"text":"2"`} {
		if !strings.Contains(out, part) {
			t.Errorf("Expected %s in %s", part, out)
		}
	}

	// doubles that cannot be represented fail the save
	_ = s.SetDouble("nan", math.NaN())
	if err := s.SaveTo(&bytes.Buffer{}); !store.IsCode(err, store.RetCInternalError) {
		t.Errorf("Expected an internal error for NaN, got %v", err)
	}
}

func TestBytesEncoding(t *testing.T) {
	payload := []byte{0, 1, 254, 255}

	t.Run("JSON", func(t *testing.T) {
		s := New(nil)
		_ = s.SetBytes("b", payload)
		var buf bytes.Buffer
		if err := s.SaveTo(&buf); err != nil {
			t.Fatalf("SaveTo failed: %v", err)
		}
		if !strings.Contains(buf.String(), `"b":"AAH+/w=="`) {
			t.Errorf("Expected base64 text in %s", buf.String())
		}
	})

	t.Run("Msgpack", func(t *testing.T) {
		s := New(&Options{Format: FormatMsgpack})
		_ = s.SetBytes("b", payload)
		var buf bytes.Buffer
		if err := s.SaveTo(&buf); err != nil {
			t.Fatalf("SaveTo failed: %v", err)
		}

		var raw map[string]any
		if err := msgpack.Unmarshal(buf.Bytes(), &raw); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if b, ok := raw["b"].([]byte); !ok || !bytes.Equal(b, payload) {
			t.Errorf("Expected native binary, got %T %v", raw["b"], raw["b"])
		}

		loaded := New(&Options{Format: FormatMsgpack})
		if err := loaded.LoadFrom(&buf); err != nil {
			t.Fatalf("LoadFrom failed: %v", err)
		}
		if v, ok, _ := loaded.TryGetBytes("b"); !ok || !bytes.Equal(v, payload) {
			t.Errorf("TryGetBytes = %v, %v", v, ok)
		}
		expectText(t, loaded, "b", "AAH+/w==")
	})

	t.Run("MsgpackBase64Text", func(t *testing.T) {
		// bytes written as base64 strings still read back as bytes
		data, err := msgpack.Marshal(map[string]any{"b": "AAH+/w=="})
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		s := New(&Options{Format: FormatMsgpack})
		if err := s.LoadFrom(bytes.NewReader(data)); err != nil {
			t.Fatalf("LoadFrom failed: %v", err)
		}
		if v, ok, _ := s.TryGetBytes("b"); !ok || !bytes.Equal(v, payload) {
			t.Errorf("TryGetBytes = %v, %v", v, ok)
		}
	})
}

func TestLoadFromInvalid(t *testing.T) {
	tests := map[string]struct {
		format Format
		input  string
	}{
		"not json":     {FormatJSON, "{broken"},
		"json array":   {FormatJSON, "[1, 2]"},
		"nested value": {FormatJSON, `{"a": {"b": 1}}`},
		"empty key":    {FormatJSON, `{"": 1}`},
		"not msgpack":  {FormatMsgpack, "\xc1"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			s := New(&Options{Format: tc.format})
			_ = s.SetString("kept", "yes")

			if err := s.LoadFrom(strings.NewReader(tc.input)); err == nil {
				t.Fatal("Expected an error")
			}
			expectText(t, s, "kept", "yes")
		})
	}
}

func TestLoadFromJSON(t *testing.T) {
	s := New(nil)
	input := `{"int": 7, "double": 1.5, "exp": 1e3, "bool": true, "text": "x"}`
	if err := s.LoadFrom(strings.NewReader(input)); err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if v, ok, _ := s.TryGetLong("int"); !ok || v != 7 {
		t.Errorf("int = %d, %v", v, ok)
	}
	if v, ok, _ := s.TryGetDouble("double"); !ok || v != 1.5 {
		t.Errorf("double = %v, %v", v, ok)
	}
	// exponent notation is a double, shown as such
	expectText(t, s, "exp", "1000")
	if v, ok, _ := s.TryGetBool("bool"); !ok || !v {
		t.Errorf("bool = %v, %v", v, ok)
	}
	expectText(t, s, "text", "x")

	info, err := s.Info()
	if err != nil || info.Keys != 5 || info.Backend != store.ImplMap {
		t.Errorf("Info = %+v, %v", info, err)
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{"": FormatJSON, "json": FormatJSON, "JSON": FormatJSON, "msgpack": FormatMsgpack}
	for in, want := range tests {
		if got, err := ParseFormat(in); err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseFormat("yaml"); err == nil {
		t.Error("Expected an error for yaml")
	}
}

func expectText(t *testing.T, s *Store, key, want string) {
	t.Helper()
	if v, ok, err := s.TryGetString(key); err != nil || !ok || v != want {
		t.Errorf("TryGetString(%q) = %q, %v, %v; want %q", key, v, ok, err, want)
	}
}
