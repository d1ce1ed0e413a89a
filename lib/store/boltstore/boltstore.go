package boltstore

import (
	"errors"
	"github.com/ValentinKolb/kvs/lib/schedule"
	"github.com/ValentinKolb/kvs/lib/store"
	"github.com/ValentinKolb/kvs/lib/store/internal/value"
	"github.com/lni/dragonboat/v4/logger"
	"go.etcd.io/bbolt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("boltstore")

var bucketName = []byte("kvs")

const defaultTimeout = 5 * time.Second

// Options configures a bolt store. The zero value is usable.
type Options struct {
	// Loop runs the deferred commits. nil commits synchronously after every write (schedule.Immediate).
	Loop schedule.Loop
	// Timeout is the time Open waits for the file lock held by another process (default 5s).
	Timeout time.Duration
	// NoSync skips fsync on commit. Only for tests and throwaway data.
	NoSync bool
	// OnCommitError is called with the error of a failed deferred commit.
	OnCommitError func(error)
}

// Stats are the transaction counters of a store.
type Stats struct {
	Begins  uint64
	Commits uint64
	Flusher schedule.Stats
}

// Store is a store.IStore backed by one bbolt bucket.
//
// It follows the same protocol as the SQLite engine: a writable transaction is begun lazily,
// kept open across operations and committed by the coalesced flush, Flush or Close.
//
// Thread-safety: all methods are safe for concurrent use, they are serialized by the store.
type Store struct {
	value.Typed
	e *engine
}

var (
	_ store.IStore        = (*Store)(nil)
	_ store.IFlusher      = (*Store)(nil)
	_ store.IInfoProvider = (*Store)(nil)
)

type engine struct {
	path string

	mu     sync.Mutex
	db     *bbolt.DB
	tx     *bbolt.Tx
	closed bool
	broken error

	flusher *schedule.Coalescer
	begins  atomic.Uint64
	commits atomic.Uint64
}

// Open opens (or creates) the bolt file at path.
func Open(path string, opts *Options) (*Store, error) {
	if path == "" {
		return nil, store.NewError(store.RetCConfigError, "boltstore: path must not be empty")
	}
	if opts == nil {
		opts = &Options{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = timeout
	bopt.NoSync = opts.NoSync

	db, err := bbolt.Open(path, 0600, bopt)
	if err != nil {
		return nil, store.WrapError(store.RetCBackendError, "boltstore: opening "+path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, store.WrapError(store.RetCBackendError, "boltstore: creating bucket", err)
	}

	e := &engine{path: path, db: db}
	e.flusher = schedule.NewCoalescer("boltstore", opts.Loop, e.flush)
	if opts.OnCommitError != nil {
		e.flusher.OnError(opts.OnCommitError)
	}

	s := &Store{Typed: value.NewTyped(e), e: e}
	runtime.SetFinalizer(s, func(s *Store) {
		Logger.Warningf("store %s was not closed, closing it now", s.e.path)
		if err := s.e.close(); err != nil {
			Logger.Errorf("closing %s: %v", s.e.path, err)
		}
	})

	Logger.Infof("opened %s", path)
	return s, nil
}

// --------------------------------------------------------------------------
// Transaction handling (e.mu must be held)
// --------------------------------------------------------------------------

func (e *engine) usable() error {
	if e.closed {
		return store.ErrClosed
	}
	if e.broken != nil {
		return store.WrapError(store.RetCClosed, "boltstore: store is unusable after a backend failure", e.broken)
	}
	return nil
}

// fail marks the engine broken and drops the open transaction.
func (e *engine) fail(op string, err error) error {
	e.broken = err
	e.rollback()
	Logger.Errorf("%s on %s failed, store is unusable: %v", op, e.path, err)
	return store.WrapError(store.RetCBackendError, "boltstore: "+op, err)
}

func (e *engine) rollback() {
	if e.tx == nil {
		return
	}
	if err := e.tx.Rollback(); err != nil && err != bbolt.ErrTxClosed {
		Logger.Warningf("rollback on %s failed: %v", e.path, err)
	}
	e.tx = nil
}

func (e *engine) ensureTx() (*bbolt.Bucket, error) {
	if e.tx == nil {
		tx, err := e.db.Begin(true)
		if err != nil {
			return nil, e.fail("begin", err)
		}
		e.tx = tx
		e.begins.Add(1)
	}
	b := e.tx.Bucket(bucketName)
	if b == nil {
		return nil, e.fail("open bucket", bbolt.ErrBucketNotFound)
	}
	return b, nil
}

func (e *engine) commit() error {
	if e.tx == nil {
		return nil
	}
	tx := e.tx
	e.tx = nil
	// a failed commit rolls the transaction back itself
	if err := tx.Commit(); err != nil {
		return e.fail("commit", err)
	}
	e.commits.Add(1)
	return nil
}

func (e *engine) flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.broken != nil {
		return nil
	}
	return e.commit()
}

// write runs fn in the open transaction and requests a commit.
func (e *engine) write(op string, fn func(b *bbolt.Bucket) error) error {
	e.mu.Lock()
	if err := e.usable(); err != nil {
		e.mu.Unlock()
		return err
	}
	b, err := e.ensureTx()
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if err := fn(b); err != nil {
		// size violations are rejected before the transaction is touched
		switch {
		case errors.Is(err, bbolt.ErrKeyTooLarge):
			err = store.WrapError(store.RetCInvalidKey, "boltstore: "+op, err)
		case errors.Is(err, bbolt.ErrValueTooLarge):
			err = store.WrapError(store.RetCInvalidOperation, "boltstore: "+op, err)
		default:
			err = e.fail(op, err)
		}
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()

	e.flusher.Request()
	return nil
}

// --------------------------------------------------------------------------
// value.Backend
// --------------------------------------------------------------------------

func (e *engine) ReadCell(key string) (value.Cell, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.usable(); err != nil {
		return value.Cell{}, false, err
	}
	b, err := e.ensureTx()
	if err != nil {
		return value.Cell{}, false, err
	}

	raw := b.Get([]byte(key))
	if raw == nil {
		return value.Cell{}, false, nil
	}
	// Decode copies, raw is only valid while the transaction is open
	c, err := value.Decode(raw)
	if err != nil {
		return value.Cell{}, false, store.WrapError(store.RetCInternalError, "boltstore: reading "+key, err)
	}
	return c, true, nil
}

func (e *engine) WriteCell(key string, c value.Cell) error {
	return e.write("put", func(b *bbolt.Bucket) error {
		return b.Put([]byte(key), value.Encode(c))
	})
}

func (e *engine) RemoveCell(key string) error {
	return e.write("delete", func(b *bbolt.Bucket) error {
		return b.Delete([]byte(key))
	})
}

func (e *engine) RemoveAll() error {
	return e.write("delete all", func(*bbolt.Bucket) error {
		if err := e.tx.DeleteBucket(bucketName); err != nil {
			return err
		}
		_, err := e.tx.CreateBucket(bucketName)
		return err
	})
}

func (e *engine) close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.flusher.Close()

	var errs []error
	if e.broken == nil {
		if err := e.commit(); err != nil {
			errs = append(errs, err)
		}
	}
	// bbolt waits for open writable transactions on Close
	e.rollback()
	if err := e.db.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return store.WrapError(store.RetCBackendError, "boltstore: closing "+e.path, errors.Join(errs...))
	}
	Logger.Infof("closed %s (%d commits)", e.path, e.commits.Load())
	return nil
}

// --------------------------------------------------------------------------
// Store methods
// --------------------------------------------------------------------------

// Path returns the path of the bolt file.
func (s *Store) Path() string {
	return s.e.path
}

// Flush commits the open transaction, if any, and returns once the data is durable.
func (s *Store) Flush() error {
	s.e.mu.Lock()
	defer s.e.mu.Unlock()
	if err := s.e.usable(); err != nil {
		return err
	}
	return s.e.commit()
}

// Stats returns the transaction counters.
func (s *Store) Stats() Stats {
	return Stats{
		Begins:  s.e.begins.Load(),
		Commits: s.e.commits.Load(),
		Flusher: s.e.flusher.Stats(),
	}
}

// Info counts the keys visible to the open transaction and reports the size of the file.
func (s *Store) Info() (store.Info, error) {
	s.e.mu.Lock()
	defer s.e.mu.Unlock()
	if err := s.e.usable(); err != nil {
		return store.Info{}, err
	}
	b, err := s.e.ensureTx()
	if err != nil {
		return store.Info{}, err
	}

	var keys int64
	err = b.ForEach(func(_, _ []byte) error {
		keys++
		return nil
	})
	if err != nil {
		return store.Info{}, store.WrapError(store.RetCInternalError, "boltstore: counting keys", err)
	}
	return store.Info{
		Backend:   store.ImplBolt,
		Path:      s.e.path,
		SizeBytes: s.e.tx.Size(),
		Keys:      keys,
		Metadata: map[string]any{
			"page_size": s.e.db.Info().PageSize,
			"commits":   s.e.commits.Load(),
		},
	}, nil
}

// Close commits the open transaction and closes the file. Calling Close again is a no-op.
func (s *Store) Close() error {
	runtime.SetFinalizer(s, nil)
	return s.e.close()
}
