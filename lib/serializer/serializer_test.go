package serializer

import (
	"reflect"
	"testing"
)

type testPoint struct {
	X, Y int32
	Z    float64
}

type testProfile struct {
	Name   string
	Age    int
	Tags   []string
	Scores map[string]float64
}

// genericSerializers holds every generic plug-in and the kind it produces
var genericSerializers = map[string]struct {
	factory func() Serializer
	kind    Kind
}{
	"JSON":    {func() Serializer { return NewJSONSerializer() }, KindText},
	"GOB":     {func() Serializer { return NewGOBSerializer() }, KindBinary},
	"Msgpack": {func() Serializer { return NewMsgpackSerializer() }, KindBinary},
}

// TestGenericRoundTrip tests that a nested value survives every generic serializer
func TestGenericRoundTrip(t *testing.T) {
	profile := testProfile{
		Name:   "ada",
		Age:    36,
		Tags:   []string{"math", "engines"},
		Scores: map[string]float64{"a": 1.5, "b": -2},
	}

	for name, tc := range genericSerializers {
		t.Run(name, func(t *testing.T) {
			reg := NewRegistry(tc.factory())
			b, err := Resolve[testProfile](reg)
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if b.Kind != tc.kind || b.Specialized {
				t.Fatalf("Unexpected classification: kind=%s specialized=%v", b.Kind, b.Specialized)
			}

			var result testProfile
			if tc.kind == KindText {
				text, err := b.EncodeText(profile)
				if err != nil {
					t.Fatalf("EncodeText failed: %v", err)
				}
				if result, err = b.DecodeText(text); err != nil {
					t.Fatalf("DecodeText failed: %v", err)
				}
			} else {
				data, err := b.EncodeBinary(profile)
				if err != nil {
					t.Fatalf("EncodeBinary failed: %v", err)
				}
				if result, err = b.DecodeBinary(data); err != nil {
					t.Fatalf("DecodeBinary failed: %v", err)
				}
			}

			if !reflect.DeepEqual(profile, result) {
				t.Errorf("Round trip mismatch:\nExpected: %+v\nGot:      %+v", profile, result)
			}
		})
	}
}

// TestXMLSerializer tests a struct round trip through xml text
func TestXMLSerializer(t *testing.T) {
	type settings struct {
		Name   string   `xml:"name,attr"`
		Volume float64  `xml:"volume"`
		Tags   []string `xml:"tag"`
	}
	in := settings{Name: "ada", Volume: 0.75, Tags: []string{"a", "b"}}

	b, err := Resolve[settings](NewRegistry(NewXMLSerializer()))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if b.Kind != KindText || b.Specialized || b.Serializer.Name() != "xml" {
		t.Fatalf("Unexpected classification: kind=%s specialized=%v", b.Kind, b.Specialized)
	}

	text, err := b.EncodeText(in)
	if err != nil {
		t.Fatalf("EncodeText failed: %v", err)
	}
	if text != `<settings name="ada"><volume>0.75</volume><tag>a</tag><tag>b</tag></settings>` {
		t.Errorf("Unexpected xml: %s", text)
	}
	out, err := b.DecodeText(text)
	if err != nil {
		t.Fatalf("DecodeText failed: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("Round trip mismatch:\nExpected: %+v\nGot:      %+v", in, out)
	}

	if _, err := b.DecodeText("<settings"); err == nil {
		t.Error("Expected an error for malformed xml")
	}
}

// TestStructSerializer tests fixed-size values and the length check
func TestStructSerializer(t *testing.T) {
	s := NewStructSerializer()
	point := testPoint{X: 1, Y: -2, Z: 3.25}

	data, err := s.SerializeBinary(point)
	if err != nil {
		t.Fatalf("SerializeBinary failed: %v", err)
	}
	if len(data) != 16 {
		t.Errorf("Expected 16 bytes, got %d", len(data))
	}

	var result testPoint
	if err := s.DeserializeBinary(data, &result); err != nil {
		t.Fatalf("DeserializeBinary failed: %v", err)
	}
	if result != point {
		t.Errorf("Expected %+v, got %+v", point, result)
	}

	if err := s.DeserializeBinary(data[:8], &result); err == nil {
		t.Error("Expected error for truncated payload")
	}
	if _, err := s.SerializeBinary(testProfile{}); err == nil {
		t.Error("Expected error for a value that is not fixed-size")
	}
}

// TestNumberLists tests the specialized number list serializers
func TestNumberLists(t *testing.T) {
	floats := NewFloatsSerializer()
	text, err := floats.EncodeText([]float64{1.5, 2, -3})
	if err != nil || text != "1.5,2,-3" {
		t.Errorf("Expected 1.5,2,-3, got %q (%v)", text, err)
	}
	values, err := floats.DecodeText("1.5, 2,,-3")
	if err != nil || !reflect.DeepEqual(values, []float64{1.5, 2, -3}) {
		t.Errorf("Unexpected decode result %v (%v)", values, err)
	}
	if _, err := floats.DecodeText("1,x"); err == nil {
		t.Error("Expected error for malformed list")
	}
	empty, err := floats.DecodeText("")
	if err != nil || len(empty) != 0 {
		t.Errorf("Expected empty list, got %v (%v)", empty, err)
	}

	ints := NewIntsSerializer()
	text, err = ints.EncodeText([]int64{-1, 0, 42})
	if err != nil || text != "-1,0,42" {
		t.Errorf("Expected -1,0,42, got %q (%v)", text, err)
	}
	if _, err := ints.DecodeText("1.5"); err == nil {
		t.Error("Expected error for a fraction in an int list")
	}
}
