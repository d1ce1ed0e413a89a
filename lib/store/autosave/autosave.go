package autosave

import (
	"github.com/ValentinKolb/kvs/lib/schedule"
	"github.com/ValentinKolb/kvs/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"sync"
)

var Logger = logger.GetLogger("autosave")

// Store wraps a savable store and saves it after changes. Every mutation requests a save from a
// schedule.Coalescer, so a burst of writes before the loop runs results in a single Save.
//
// Reads are forwarded unchanged. After Close every method returns store.ErrClosed.
type Store struct {
	inner   store.ISavableStore
	flusher *schedule.Coalescer

	// mu is held shared by every operation and exclusively by Close, so no write can slip in
	// behind the final save
	mu     sync.RWMutex
	closed bool
}

var (
	_ store.ISavableStore = (*Store)(nil)
	_ store.IFlusher      = (*Store)(nil)
	_ io.Closer           = (*Store)(nil)
)

// New wraps inner. Saves run on loop, nil saves synchronously after every mutation.
func New(inner store.ISavableStore, loop schedule.Loop) (*Store, error) {
	if inner == nil {
		return nil, store.NewError(store.RetCConfigError, "autosave: inner store must not be nil")
	}
	return &Store{
		inner:   inner,
		flusher: schedule.NewCoalescer("autosave", loop, inner.Save),
	}, nil
}

// OnSaveError sets a callback for failed deferred saves. Failures are logged either way.
func (s *Store) OnSaveError(fn func(error)) {
	s.flusher.OnError(fn)
}

// Inner returns the wrapped store.
func (s *Store) Inner() store.ISavableStore {
	return s.inner
}

// Stats returns the counters of the save coalescer.
func (s *Store) Stats() schedule.Stats {
	return s.flusher.Stats()
}

// mutate runs fn on the open store and requests a save if it succeeded.
func (s *Store) mutate(fn func() error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrClosed
	}
	if err := fn(); err != nil {
		return err
	}
	s.flusher.Request()
	return nil
}

// read runs fn on the open store.
func read[T any](s *Store, fn func() (T, bool, error)) (T, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		var zero T
		return zero, false, store.ErrClosed
	}
	return fn()
}

// do runs fn on the open store without requesting a save.
func (s *Store) do(fn func() error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrClosed
	}
	return fn()
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *Store) Has(key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, store.ErrClosed
	}
	return s.inner.Has(key)
}

func (s *Store) Delete(key string) error {
	return s.mutate(func() error { return s.inner.Delete(key) })
}

func (s *Store) DeleteAll() error {
	return s.mutate(s.inner.DeleteAll)
}

func (s *Store) TryGetBool(key string) (bool, bool, error) {
	return read(s, func() (bool, bool, error) { return s.inner.TryGetBool(key) })
}

func (s *Store) TryGetInt(key string) (int32, bool, error) {
	return read(s, func() (int32, bool, error) { return s.inner.TryGetInt(key) })
}

func (s *Store) TryGetLong(key string) (int64, bool, error) {
	return read(s, func() (int64, bool, error) { return s.inner.TryGetLong(key) })
}

func (s *Store) TryGetFloat(key string) (float32, bool, error) {
	return read(s, func() (float32, bool, error) { return s.inner.TryGetFloat(key) })
}

func (s *Store) TryGetDouble(key string) (float64, bool, error) {
	return read(s, func() (float64, bool, error) { return s.inner.TryGetDouble(key) })
}

func (s *Store) TryGetString(key string) (string, bool, error) {
	return read(s, func() (string, bool, error) { return s.inner.TryGetString(key) })
}

func (s *Store) TryGetBytes(key string) ([]byte, bool, error) {
	return read(s, func() ([]byte, bool, error) { return s.inner.TryGetBytes(key) })
}

func (s *Store) SetBool(key string, value bool) error {
	return s.mutate(func() error { return s.inner.SetBool(key, value) })
}

func (s *Store) SetInt(key string, value int32) error {
	return s.mutate(func() error { return s.inner.SetInt(key, value) })
}

func (s *Store) SetLong(key string, value int64) error {
	return s.mutate(func() error { return s.inner.SetLong(key, value) })
}

func (s *Store) SetFloat(key string, value float32) error {
	return s.mutate(func() error { return s.inner.SetFloat(key, value) })
}

func (s *Store) SetDouble(key string, value float64) error {
	return s.mutate(func() error { return s.inner.SetDouble(key, value) })
}

func (s *Store) SetString(key string, value string) error {
	return s.mutate(func() error { return s.inner.SetString(key, value) })
}

func (s *Store) SetBytes(key string, value []byte) error {
	return s.mutate(func() error { return s.inner.SetBytes(key, value) })
}

// --------------------------------------------------------------------------
// Persistence
// --------------------------------------------------------------------------

// Load forwards to the inner store. Loading does not trigger a save.
func (s *Store) Load() error {
	return s.do(s.inner.Load)
}

// Save saves the inner store synchronously.
func (s *Store) Save() error {
	return s.do(s.inner.Save)
}

// Flush saves synchronously. A save that is already scheduled still runs.
func (s *Store) Flush() error {
	return s.do(s.inner.Save)
}

// Close cancels a scheduled save, performs a final save and closes the inner store if it holds
// resources. Calling Close again is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.flusher.Close()

	err := s.inner.Save()
	if err != nil {
		Logger.Errorf("final save failed: %v", err)
	}
	if c, ok := s.inner.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
