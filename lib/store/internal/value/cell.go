// Package value holds the dynamically typed cell stored by the transactional engines and the
// coercion rules used when a cell is read as a different kind than it was written with.
//
// The rules follow SQLite's column accessors: an integer read of a double truncates toward
// zero, an integer read of text parses the leading number, a text read of a number formats it
// and so on. Applying them in one place keeps the engines interchangeable.
package value

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Kind is the storage class of a cell.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindDouble
	KindText
	KindBlob
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "integer"
	case KindDouble:
		return "double"
	case KindText:
		return "text"
	case KindBlob:
		return "blob"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Cell is a single stored value.
type Cell struct {
	Kind   Kind
	Int    int64
	Double float64
	Bytes  []byte // payload of text and blob cells
}

func Int(v int64) Cell { return Cell{Kind: KindInt, Int: v} }
func Double(v float64) Cell { return Cell{Kind: KindDouble, Double: v} }
func Text(v string) Cell { return Cell{Kind: KindText, Bytes: []byte(v)} }

// Blob returns a blob cell. A nil slice is stored as an empty blob, never as null.
func Blob(v []byte) Cell {
	b := make([]byte, len(v))
	copy(b, v)
	return Cell{Kind: KindBlob, Bytes: b}
}

// Bool returns the integer cell used to store booleans.
func Bool(v bool) Cell {
	if v {
		return Int(1)
	}
	return Int(0)
}

// FromDriver converts a value scanned by database/sql into a cell.
func FromDriver(v any) (Cell, error) {
	switch x := v.(type) {
	case nil:
		return Cell{Kind: KindNull}, nil
	case int64:
		return Int(x), nil
	case float64:
		return Double(x), nil
	case string:
		return Text(x), nil
	case []byte:
		return Blob(x), nil
	case bool:
		return Bool(x), nil
	case time.Time:
		return Text(x.Format(time.RFC3339Nano)), nil
	default:
		return Cell{}, fmt.Errorf("unsupported column value of type %T", v)
	}
}

// DriverValue returns the value bound to a statement parameter.
func (c Cell) DriverValue() any {
	switch c.Kind {
	case KindInt:
		return c.Int
	case KindDouble:
		return c.Double
	case KindText:
		return string(c.Bytes)
	case KindBlob:
		if c.Bytes == nil {
			return []byte{}
		}
		return c.Bytes
	default:
		return nil
	}
}

// --------------------------------------------------------------------------
// Coercion
// --------------------------------------------------------------------------

// AsInt returns the cell as a 64-bit integer.
func (c Cell) AsInt() int64 {
	switch c.Kind {
	case KindInt:
		return c.Int
	case KindDouble:
		return doubleToInt(c.Double)
	case KindText, KindBlob:
		i, f, isInt := numericPrefix(string(c.Bytes))
		if isInt {
			return i
		}
		return doubleToInt(f)
	default:
		return 0
	}
}

// AsDouble returns the cell as a double.
func (c Cell) AsDouble() float64 {
	switch c.Kind {
	case KindInt:
		return float64(c.Int)
	case KindDouble:
		return c.Double
	case KindText, KindBlob:
		i, f, isInt := numericPrefix(string(c.Bytes))
		if isInt {
			return float64(i)
		}
		return f
	default:
		return 0
	}
}

// AsText returns the cell as text.
func (c Cell) AsText() string {
	switch c.Kind {
	case KindInt:
		return strconv.FormatInt(c.Int, 10)
	case KindDouble:
		return strconv.FormatFloat(c.Double, 'g', -1, 64)
	case KindText, KindBlob:
		return string(c.Bytes)
	default:
		return ""
	}
}

// AsBytes returns a copy of the cell as bytes. The result is never nil.
func (c Cell) AsBytes() []byte {
	switch c.Kind {
	case KindText, KindBlob:
		b := make([]byte, len(c.Bytes))
		copy(b, c.Bytes)
		return b
	case KindInt, KindDouble:
		return []byte(c.AsText())
	default:
		return []byte{}
	}
}

// doubleToInt truncates toward zero and saturates at the int64 range. NaN is 0.
func doubleToInt(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f <= math.MinInt64:
		return math.MinInt64
	case f >= math.MaxInt64:
		return math.MaxInt64
	default:
		return int64(f)
	}
}

// numericPrefix parses the longest numeric prefix of s after leading whitespace.
// isInt reports whether the prefix has neither fraction nor exponent, in which case i holds
// the value (saturated on overflow). Text without a numeric prefix yields 0.
func numericPrefix(s string) (i int64, f float64, isInt bool) {
	p := 0
	for p < len(s) && (s[p] == ' ' || s[p] == '\t' || s[p] == '\n' || s[p] == '\r' || s[p] == '\f' || s[p] == '\v') {
		p++
	}
	start := p
	if p < len(s) && (s[p] == '+' || s[p] == '-') {
		p++
	}
	digits := 0
	for p < len(s) && s[p] >= '0' && s[p] <= '9' {
		p++
		digits++
	}
	intEnd := p
	isInt = true
	if p < len(s) && s[p] == '.' {
		q := p + 1
		frac := 0
		for q < len(s) && s[q] >= '0' && s[q] <= '9' {
			q++
			frac++
		}
		if digits+frac > 0 {
			p = q
			digits += frac
			isInt = false
		}
	}
	if digits == 0 {
		return 0, 0, true
	}
	if p < len(s) && (s[p] == 'e' || s[p] == 'E') {
		q := p + 1
		if q < len(s) && (s[q] == '+' || s[q] == '-') {
			q++
		}
		exp := 0
		for q < len(s) && s[q] >= '0' && s[q] <= '9' {
			q++
			exp++
		}
		if exp > 0 {
			p = q
			isInt = false
		}
	}
	if isInt {
		// on overflow ParseInt returns the saturated value
		v, _ := strconv.ParseInt(s[start:intEnd], 10, 64)
		return v, float64(v), true
	}
	v, _ := strconv.ParseFloat(s[start:p], 64)
	return 0, v, false
}

// --------------------------------------------------------------------------
// Binary encoding (used by key/value engines without native typing)
// --------------------------------------------------------------------------

// Encode serializes a cell as [kind byte][payload]. Integers and doubles use 8 bytes big endian.
func Encode(c Cell) []byte {
	switch c.Kind {
	case KindInt:
		b := make([]byte, 9)
		b[0] = byte(KindInt)
		binary.BigEndian.PutUint64(b[1:], uint64(c.Int))
		return b
	case KindDouble:
		b := make([]byte, 9)
		b[0] = byte(KindDouble)
		binary.BigEndian.PutUint64(b[1:], math.Float64bits(c.Double))
		return b
	case KindText, KindBlob:
		b := make([]byte, 1+len(c.Bytes))
		b[0] = byte(c.Kind)
		copy(b[1:], c.Bytes)
		return b
	default:
		return []byte{byte(KindNull)}
	}
}

// Decode parses the output of Encode. The payload is copied.
func Decode(b []byte) (Cell, error) {
	if len(b) == 0 {
		return Cell{}, fmt.Errorf("empty cell encoding")
	}
	kind, payload := Kind(b[0]), b[1:]
	switch kind {
	case KindNull:
		return Cell{Kind: KindNull}, nil
	case KindInt, KindDouble:
		if len(payload) != 8 {
			return Cell{}, fmt.Errorf("invalid %s cell: %d payload bytes", kind, len(payload))
		}
		bits := binary.BigEndian.Uint64(payload)
		if kind == KindInt {
			return Int(int64(bits)), nil
		}
		return Double(math.Float64frombits(bits)), nil
	case KindText, KindBlob:
		c := Blob(payload)
		c.Kind = kind
		return c, nil
	default:
		return Cell{}, fmt.Errorf("unknown cell kind %d", uint8(kind))
	}
}
