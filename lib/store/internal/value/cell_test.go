package value

import (
	"bytes"
	"math"
	"testing"
)

func TestCoercion(t *testing.T) {
	tests := []struct {
		name   string
		cell   Cell
		int    int64
		double float64
		text   string
	}{
		{"int", Int(-42), -42, -42, "-42"},
		{"bool", Bool(true), 1, 1, "1"},
		{"double", Double(2.75), 2, 2.75, "2.75"},
		{"negative double", Double(-2.75), -2, -2.75, "-2.75"},
		{"whole double", Double(3), 3, 3, "3"},
		{"huge double", Double(1e300), math.MaxInt64, 1e300, "1e+300"},
		{"nan", Double(math.NaN()), 0, math.NaN(), "NaN"},
		{"numeric text", Text("12"), 12, 12, "12"},
		{"prefixed text", Text("  12abc"), 12, 12, "  12abc"},
		{"float text", Text("1.5e2x"), 150, 150, "1.5e2x"},
		{"dot text", Text(".5"), 0, 0.5, ".5"},
		{"word", Text("abc"), 0, 0, "abc"},
		{"sign only", Text("-"), 0, 0, "-"},
		{"overflow text", Text("99999999999999999999"), math.MaxInt64, math.MaxInt64, "99999999999999999999"},
		{"blob", Blob([]byte("7")), 7, 7, "7"},
		{"null", Cell{Kind: KindNull}, 0, 0, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cell.AsInt(); got != tc.int {
				t.Errorf("AsInt = %d, want %d", got, tc.int)
			}
			got := tc.cell.AsDouble()
			if got != tc.double && !(math.IsNaN(got) && math.IsNaN(tc.double)) {
				t.Errorf("AsDouble = %v, want %v", got, tc.double)
			}
			if got := tc.cell.AsText(); got != tc.text {
				t.Errorf("AsText = %q, want %q", got, tc.text)
			}
		})
	}
}

func TestAsBytes(t *testing.T) {
	if b := (Cell{Kind: KindNull}).AsBytes(); b == nil || len(b) != 0 {
		t.Errorf("AsBytes of null = %v, want empty non-nil", b)
	}
	if b := Int(42).AsBytes(); string(b) != "42" {
		t.Errorf("AsBytes of 42 = %q", b)
	}
	if b := Text("hi").AsBytes(); string(b) != "hi" {
		t.Errorf("AsBytes of text = %q", b)
	}

	src := []byte{1, 2, 3}
	c := Blob(src)
	src[0] = 9
	if c.Bytes[0] != 1 {
		t.Error("Blob aliases its argument")
	}
	out := c.AsBytes()
	out[1] = 9
	if c.Bytes[1] != 2 {
		t.Error("AsBytes aliases the cell")
	}
	if b := Blob(nil); b.Bytes == nil || b.DriverValue() == nil {
		t.Error("A nil blob must stay an empty blob")
	}
}

func TestEncodeDecode(t *testing.T) {
	cells := []Cell{
		Int(0), Int(math.MinInt64), Int(math.MaxInt64),
		Double(math.Pi), Double(-0.5), Double(math.SmallestNonzeroFloat64),
		Text(""), Text("hällo"), Blob(nil), Blob([]byte{0, 255}),
		{Kind: KindNull},
	}

	for _, c := range cells {
		encoded := Encode(c)
		got, err := Decode(encoded)
		if err != nil {
			t.Errorf("Decode(%v) failed: %v", c, err)
			continue
		}
		if got.Kind != c.Kind || got.Int != c.Int || got.Double != c.Double || !bytes.Equal(got.Bytes, c.Bytes) {
			t.Errorf("Round trip of %+v gave %+v", c, got)
		}
	}

	// the payload is copied
	encoded := Encode(Text("abc"))
	decoded, _ := Decode(encoded)
	encoded[1] = 'x'
	if decoded.AsText() != "abc" {
		t.Error("Decode aliases its input")
	}

	for name, input := range map[string][]byte{
		"empty":        nil,
		"short int":    {byte(KindInt), 1, 2},
		"unknown kind": {99},
	} {
		if _, err := Decode(input); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestFromDriver(t *testing.T) {
	tests := map[string]struct {
		in   any
		kind Kind
	}{
		"nil":    {nil, KindNull},
		"int64":  {int64(1), KindInt},
		"double": {1.5, KindDouble},
		"string": {"x", KindText},
		"bytes":  {[]byte("x"), KindBlob},
		"bool":   {true, KindInt},
	}
	for name, tc := range tests {
		c, err := FromDriver(tc.in)
		if err != nil || c.Kind != tc.kind {
			t.Errorf("%s: FromDriver = %+v, %v; want kind %s", name, c, err, tc.kind)
		}
	}
	if _, err := FromDriver(struct{}{}); err == nil {
		t.Error("Expected an error for an unsupported type")
	}
}
