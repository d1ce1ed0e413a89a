package mapstore

import (
	"bytes"
	"encoding/base64"
	"math"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Conversions
// --------------------------------------------------------------------------

// The stored value is always int64, float64, string or []byte. Byte values read as
// their base64 text by every non-bytes conversion. Conversions that cannot succeed report false
// and the read is treated as absent.

// asText replaces byte values by their base64 text.
func asText(v any) any {
	if b, ok := v.([]byte); ok {
		return base64.StdEncoding.EncodeToString(b)
	}
	return v
}

func toBool(v any) (bool, bool) {
	v = asText(v)
	switch x := v.(type) {
	case int64:
		return x != 0, true
	case float64:
		return x != 0, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return b, err == nil
	default:
		return false, false
	}
}

// toInt64 rounds doubles half to even and rejects values outside the int64 range.
func toInt64(v any) (int64, bool) {
	v = asText(v)
	switch x := v.(type) {
	case int64:
		return x, true
	case float64:
		r := math.RoundToEven(x)
		if math.IsNaN(r) || r < math.MinInt64 || r >= math.MaxInt64 {
			return 0, false
		}
		return int64(r), true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

func toInt32(v any) (int32, bool) {
	i, ok := toInt64(v)
	if !ok || i < math.MinInt32 || i > math.MaxInt32 {
		return 0, false
	}
	return int32(i), true
}

func toFloat64(v any) (float64, bool) {
	v = asText(v)
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toString(v any) string {
	v = asText(v)
	switch x := v.(type) {
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return x
	default:
		return ""
	}
}

// toBytes returns a copy of a byte value or decodes base64 text.
func toBytes(v any) ([]byte, bool) {
	if b, ok := v.([]byte); ok {
		return append([]byte{}, b...), true
	}
	b, err := base64.StdEncoding.DecodeString(toString(v))
	if err != nil {
		return nil, false
	}
	if b == nil {
		b = []byte{}
	}
	return b, true
}

// normalize maps decoded values onto the stored kinds.
func normalize(v any) (any, bool) {
	switch x := v.(type) {
	case int64, float64, string:
		return x, true
	case bool:
		if x {
			return int64(1), true
		}
		return int64(0), true
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return float64(x), true
		}
		return int64(x), true
	case float32:
		return float64(x), true
	case []byte:
		return bytes.Clone(x), true
	default:
		return nil, false
	}
}
