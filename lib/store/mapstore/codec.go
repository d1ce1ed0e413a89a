package mapstore

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"github.com/vmihailenco/msgpack/v5"
	"io"
	"math"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Stream codecs
// --------------------------------------------------------------------------

// JSON: a single object {key: number|string}. Doubles always carry a fraction or exponent
// ("2.0") so they load back as doubles, integers never do. Bytes are base64 strings.
// Msgpack: a single map with int64, float64, string and bin values, keys sorted.

func encode(w io.Writer, f Format, entries map[string]any) error {
	switch f {
	case FormatJSON:
		return encodeJSON(w, entries)
	case FormatMsgpack:
		bw := bufio.NewWriter(w)
		enc := msgpack.NewEncoder(bw)
		enc.SetSortMapKeys(true)
		if err := enc.Encode(entries); err != nil {
			return err
		}
		return bw.Flush()
	default:
		return fmt.Errorf("unsupported format %s", f)
	}
}

func decode(r io.Reader, f Format) (map[string]any, error) {
	var raw map[string]any
	switch f {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
	case FormatMsgpack:
		dec := msgpack.NewDecoder(bufio.NewReader(r))
		dec.UseLooseInterfaceDecoding(true)
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported format %s", f)
	}

	entries := make(map[string]any, len(raw))
	for key, v := range raw {
		if key == "" {
			return nil, fmt.Errorf("empty key in stream")
		}
		if n, ok := v.(json.Number); ok {
			parsed, err := parseNumber(n)
			if err != nil {
				return nil, fmt.Errorf("value of %q: %w", key, err)
			}
			v = parsed
		}
		value, ok := normalize(v)
		if !ok {
			return nil, fmt.Errorf("value of %q has unsupported type %T", key, v)
		}
		entries[key] = value
	}
	return entries, nil
}

func encodeJSON(w io.Writer, entries map[string]any) error {
	out := make(map[string]any, len(entries))
	for key, v := range entries {
		switch x := v.(type) {
		case float64:
			n, err := formatDouble(x)
			if err != nil {
				return fmt.Errorf("value of %q: %w", key, err)
			}
			v = n
		case []byte:
			v = base64.StdEncoding.EncodeToString(x)
		}
		out[key] = v
	}
	enc := json.NewEncoder(w)
	return enc.Encode(out)
}

func formatDouble(f float64) (json.Number, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("%v cannot be represented in JSON", f)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return json.Number(s), nil
}

func parseNumber(n json.Number) (any, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
	}
	return n.Float64()
}
