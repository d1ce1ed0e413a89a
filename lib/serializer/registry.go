package serializer

import (
	"fmt"
	"github.com/puzpuzpuz/xsync/v3"
	"reflect"
	"sync"
)

// --------------------------------------------------------------------------
// Binding
// --------------------------------------------------------------------------

// Kind is the payload kind a binding produces.
type Kind uint8

const (
	KindText Kind = iota
	KindBinary
)

func (k Kind) String() string {
	if k == KindText {
		return "text"
	}
	return "binary"
}

// Binding is the classified form of the serializer resolved for T: text or binary, specialized
// or generic. Only the functions matching Kind are usable.
type Binding[T any] struct {
	Kind        Kind
	Specialized bool
	Serializer  Serializer

	encodeText   func(T) (string, error)
	decodeText   func(string) (T, error)
	encodeBinary func(T) ([]byte, error)
	decodeBinary func([]byte) (T, error)
}

func (b Binding[T]) EncodeText(v T) (string, error) {
	if b.encodeText == nil {
		return "", b.mismatch(KindText)
	}
	return b.encodeText(v)
}

func (b Binding[T]) DecodeText(text string) (T, error) {
	if b.decodeText == nil {
		var zero T
		return zero, b.mismatch(KindText)
	}
	return b.decodeText(text)
}

func (b Binding[T]) EncodeBinary(v T) ([]byte, error) {
	if b.encodeBinary == nil {
		return nil, b.mismatch(KindBinary)
	}
	return b.encodeBinary(v)
}

func (b Binding[T]) DecodeBinary(data []byte) (T, error) {
	if b.decodeBinary == nil {
		var zero T
		return zero, b.mismatch(KindBinary)
	}
	return b.decodeBinary(data)
}

func (b Binding[T]) mismatch(want Kind) error {
	return fmt.Errorf("%w: %s serializer %q used as %s", ErrKindMismatch, b.Kind, nameOf(b.Serializer), want)
}

// classify inspects s in the fixed precedence order: typed text, typed binary, generic text,
// generic binary. A form specialized for T always beats a generic one.
func classify[T any](s Serializer) (Binding[T], error) {
	b := Binding[T]{Serializer: s}

	if ts, ok := s.(TypedTextSerializer[T]); ok {
		b.Kind, b.Specialized = KindText, true
		b.encodeText, b.decodeText = ts.EncodeText, ts.DecodeText
		return b, nil
	}
	if bs, ok := s.(TypedBinarySerializer[T]); ok {
		b.Kind, b.Specialized = KindBinary, true
		b.encodeBinary, b.decodeBinary = bs.EncodeBinary, bs.DecodeBinary
		return b, nil
	}
	if ts, ok := s.(TextSerializer); ok {
		b.Kind = KindText
		b.encodeText = func(v T) (string, error) { return ts.SerializeText(v) }
		b.decodeText = func(text string) (T, error) {
			var v T
			err := ts.DeserializeText(text, &v)
			return v, err
		}
		return b, nil
	}
	if bs, ok := s.(BinarySerializer); ok {
		b.Kind = KindBinary
		b.encodeBinary = func(v T) ([]byte, error) { return bs.SerializeBinary(v) }
		b.decodeBinary = func(data []byte) (T, error) {
			var v T
			err := bs.DeserializeBinary(data, &v)
			return v, err
		}
		return b, nil
	}

	var zero T
	return b, fmt.Errorf("%w: %q for %T", ErrNoCapability, nameOf(s), zero)
}

func nameOf(s Serializer) string {
	if s == nil {
		return "<nil>"
	}
	return s.Name()
}

// --------------------------------------------------------------------------
// Registry
// --------------------------------------------------------------------------

// Registry maps types to serializers. A type without a binding uses the default serializer.
//
// Bindings are meant to be registered during setup, but the registry is safe for concurrent use.
// Resolved bindings are cached per type, every registration invalidates the affected entries.
type Registry struct {
	mu       sync.RWMutex
	def      Serializer
	bindings map[reflect.Type]Serializer
	resolved *xsync.MapOf[reflect.Type, any] // reflect.Type -> Binding[T]
}

// Default is the process-wide registry used by the store object accessors. Its default
// serializer is JSON.
var Default = NewRegistry(NewJSONSerializer())

// NewRegistry creates a registry with def as default serializer. A nil def falls back to JSON.
func NewRegistry(def Serializer) *Registry {
	if def == nil {
		def = NewJSONSerializer()
	}
	return &Registry{
		def:      def,
		bindings: make(map[reflect.Type]Serializer),
		resolved: xsync.NewMapOf[reflect.Type, any](),
	}
}

// SetDefault replaces the default serializer.
func (r *Registry) SetDefault(s Serializer) error {
	if s == nil {
		return ErrNilSerializer
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.def = s
	r.resolved.Clear()
	return nil
}

// DefaultSerializer returns the default serializer.
func (r *Registry) DefaultSerializer() Serializer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.def
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Register binds s to exactly T. Other types, including *T and []T, are not affected.
func Register[T any](r *Registry, s Serializer) error {
	if s == nil {
		return ErrNilSerializer
	}
	t := typeOf[T]()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[t] = s
	r.resolved.Delete(t)
	return nil
}

// Unregister removes the binding for T, T falls back to the default serializer.
func Unregister[T any](r *Registry) {
	t := typeOf[T]()
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bindings, t)
	r.resolved.Delete(t)
}

// Lookup returns the serializer used for T: its binding if one exists, the default otherwise.
func Lookup[T any](r *Registry) Serializer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(typeOf[T]())
}

func (r *Registry) lookup(t reflect.Type) Serializer {
	if s, ok := r.bindings[t]; ok {
		return s
	}
	return r.def
}

// Resolve returns the classified binding for T. The result is cached until the next
// registration that affects T.
func Resolve[T any](r *Registry) (Binding[T], error) {
	t := typeOf[T]()
	if cached, ok := r.resolved.Load(t); ok {
		return cached.(Binding[T]), nil
	}

	// holding the read lock keeps registrations from interleaving with the cache fill
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, err := classify[T](r.lookup(t))
	if err != nil {
		return b, err
	}
	r.resolved.Store(t, b)
	return b, nil
}
