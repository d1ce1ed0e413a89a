package mapstore

import (
	"fmt"
	"github.com/ValentinKolb/kvs/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"io"
	"strings"
	"sync"
)

var Logger = logger.GetLogger("mapstore")

// Format selects the stream encoding used by SaveTo and LoadFrom.
type Format uint8

const (
	FormatJSON Format = iota
	FormatMsgpack
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatMsgpack:
		return "msgpack"
	default:
		return fmt.Sprintf("format(%d)", uint8(f))
	}
}

// ParseFormat parses "json" or "msgpack". The empty string is JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "msgpack", "mp":
		return FormatMsgpack, nil
	default:
		return FormatJSON, fmt.Errorf("unknown format %q, must be one of json, msgpack", s)
	}
}

// Options configures a map store.
type Options struct {
	Format Format
}

// Store keeps every entry in a concurrent map. Values are held as int64, float64, string or
// []byte: booleans are stored as 0/1 and 32-bit values are widened. Byte sequences read as
// base64 text and are saved as base64 strings in JSON and as native binary in msgpack. Reads
// convert the stored value to the requested kind and report a conversion that cannot succeed as
// absent.
//
// Thread-safety: all methods are safe for concurrent use. SaveTo and LoadFrom see a consistent
// state, they exclude concurrent writers.
type Store struct {
	// mu is held shared by single-entry operations and exclusively by whole-state operations
	mu     sync.RWMutex
	data   *xsync.MapOf[string, any]
	format Format
}

var (
	_ store.IStreamSavableStore = (*Store)(nil)
	_ store.IInfoProvider       = (*Store)(nil)
)

// New creates an empty map store. opts may be nil.
func New(opts *Options) *Store {
	s := &Store{data: xsync.NewMapOf[string, any]()}
	if opts != nil {
		s.format = opts.Format
	}
	return s
}

// Format returns the stream format of the store.
func (s *Store) Format() Format {
	return s.format
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *Store) get(key string) (any, bool, error) {
	if err := store.CheckKey(key); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data.Load(key)
	return v, ok, nil
}

func (s *Store) put(key string, v any) error {
	if err := store.CheckKey(key); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.data.Store(key, v)
	return nil
}

func (s *Store) Has(key string) (bool, error) {
	_, ok, err := s.get(key)
	return ok, err
}

func (s *Store) Delete(key string) error {
	if err := store.CheckKey(key); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.data.Delete(key)
	return nil
}

func (s *Store) DeleteAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Clear()
	return nil
}

func (s *Store) TryGetBool(key string) (bool, bool, error) {
	v, ok, err := s.get(key)
	if err != nil || !ok {
		return false, false, err
	}
	b, ok := toBool(v)
	return b, ok, nil
}

func (s *Store) TryGetInt(key string) (int32, bool, error) {
	v, ok, err := s.get(key)
	if err != nil || !ok {
		return 0, false, err
	}
	i, ok := toInt32(v)
	return i, ok, nil
}

func (s *Store) TryGetLong(key string) (int64, bool, error) {
	v, ok, err := s.get(key)
	if err != nil || !ok {
		return 0, false, err
	}
	i, ok := toInt64(v)
	return i, ok, nil
}

func (s *Store) TryGetFloat(key string) (float32, bool, error) {
	v, ok, err := s.get(key)
	if err != nil || !ok {
		return 0, false, err
	}
	f, ok := toFloat64(v)
	return float32(f), ok, nil
}

func (s *Store) TryGetDouble(key string) (float64, bool, error) {
	v, ok, err := s.get(key)
	if err != nil || !ok {
		return 0, false, err
	}
	f, ok := toFloat64(v)
	return f, ok, nil
}

func (s *Store) TryGetString(key string) (string, bool, error) {
	v, ok, err := s.get(key)
	if err != nil || !ok {
		return "", false, err
	}
	return toString(v), true, nil
}

func (s *Store) TryGetBytes(key string) ([]byte, bool, error) {
	v, ok, err := s.get(key)
	if err != nil || !ok {
		return nil, false, err
	}
	b, ok := toBytes(v)
	if !ok {
		Logger.Debugf("value of %q is not base64", key)
		return nil, false, nil
	}
	return b, true, nil
}

func (s *Store) SetBool(key string, value bool) error {
	if value {
		return s.put(key, int64(1))
	}
	return s.put(key, int64(0))
}

func (s *Store) SetInt(key string, value int32) error {
	return s.put(key, int64(value))
}

func (s *Store) SetLong(key string, value int64) error {
	return s.put(key, value)
}

func (s *Store) SetFloat(key string, value float32) error {
	return s.put(key, float64(value))
}

func (s *Store) SetDouble(key string, value float64) error {
	return s.put(key, value)
}

func (s *Store) SetString(key string, value string) error {
	return s.put(key, value)
}

func (s *Store) SetBytes(key string, value []byte) error {
	return s.put(key, append([]byte{}, value...))
}

// --------------------------------------------------------------------------
// Persistence
// --------------------------------------------------------------------------

// SaveTo writes the whole state to w in the configured format.
func (s *Store) SaveTo(w io.Writer) error {
	s.mu.Lock()
	snapshot := make(map[string]any, s.data.Size())
	s.data.Range(func(key string, v any) bool {
		snapshot[key] = v
		return true
	})
	s.mu.Unlock()

	if err := encode(w, s.format, snapshot); err != nil {
		return store.WrapError(store.RetCInternalError, "saving map store", err)
	}
	return nil
}

// LoadFrom replaces the whole state with the one read from r. On error the state is unchanged.
func (s *Store) LoadFrom(r io.Reader) error {
	entries, err := decode(r, s.format)
	if err != nil {
		return store.WrapError(store.RetCInternalError, "loading map store", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Clear()
	for key, v := range entries {
		s.data.Store(key, v)
	}
	Logger.Debugf("loaded %d entries", len(entries))
	return nil
}

// Info returns the number of entries.
func (s *Store) Info() (store.Info, error) {
	return store.Info{
		Backend:  store.ImplMap,
		Keys:     int64(s.data.Size()),
		Metadata: map[string]string{"format": s.format.String()},
	}, nil
}
