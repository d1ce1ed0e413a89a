package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"github.com/ValentinKolb/kvs/lib/schedule"
	"github.com/ValentinKolb/kvs/lib/store"
	"github.com/ValentinKolb/kvs/lib/store/internal/value"
	"github.com/lni/dragonboat/v4/logger"
	_ "modernc.org/sqlite"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("sqlstore")

const (
	driverName         = "sqlite"
	defaultBusyTimeout = 5 * time.Second
)

// statement slots, prepared in this order and closed in reverse order
const (
	stmtSelect = iota
	stmtUpsert
	stmtDelete
	stmtDeleteAll
	stmtBegin
	stmtCommit
	numStmts
)

var statements = [numStmts]string{
	stmtSelect:    `SELECT value FROM KeyValueStore WHERE key = ?1`,
	stmtUpsert:    `INSERT INTO KeyValueStore(key, value) VALUES(?1, ?2) ON CONFLICT(key) DO UPDATE SET value = ?2`,
	stmtDelete:    `DELETE FROM KeyValueStore WHERE key = ?1`,
	stmtDeleteAll: `DELETE FROM KeyValueStore`,
	stmtBegin:     `BEGIN`,
	stmtCommit:    `COMMIT`,
}

const createTable = `CREATE TABLE IF NOT EXISTS KeyValueStore(key TEXT NOT NULL PRIMARY KEY COLLATE BINARY, value BLOB)`

// Options configures an SQLite store. The zero value is usable.
type Options struct {
	// Loop runs the deferred commits. nil commits synchronously after every write (schedule.Immediate).
	Loop schedule.Loop
	// Pragmas are executed once after opening, e.g. "journal_mode = WAL".
	Pragmas []string
	// BusyTimeout is the time SQLite waits for a lock held by another process (default 5s).
	BusyTimeout time.Duration
	// OnCommitError is called with the error of a failed deferred commit.
	OnCommitError func(error)
}

// Stats are the transaction counters of a store.
type Stats struct {
	Begins  uint64
	Commits uint64
	Flusher schedule.Stats
}

// Store is a store.IStore backed by a single SQLite table.
//
// All operations run in one lazily begun transaction that stays open until the coalesced commit
// posted on the configured loop runs, Flush is called or the store is closed. Writes never wait
// for durability.
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

// engine holds the native resources. It is referenced by the coalescer but never references
// the Store, so an unreachable Store can be finalized.
type engine struct {
	path string
	ctx  context.Context

	mu     sync.Mutex
	db     *sql.DB
	conn   *sql.Conn
	stmts  [numStmts]*sql.Stmt
	inTx   bool
	closed bool
	broken error

	flusher *schedule.Coalescer
	begins  atomic.Uint64
	commits atomic.Uint64
}

// Open opens (or creates) the database at path. Use ":memory:" for a private in-memory database.
func Open(path string, opts *Options) (*Store, error) {
	if path == "" {
		return nil, store.NewError(store.RetCConfigError, "sqlstore: path must not be empty")
	}
	if opts == nil {
		opts = &Options{}
	}
	busy := opts.BusyTimeout
	if busy <= 0 {
		busy = defaultBusyTimeout
	}

	e := &engine{path: path, ctx: context.Background()}
	if err := e.open(busy, opts.Pragmas); err != nil {
		e.release()
		return nil, store.WrapError(store.RetCBackendError, "sqlstore: opening "+path, err)
	}

	e.flusher = schedule.NewCoalescer("sqlstore", opts.Loop, e.flush)
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

func (e *engine) open(busy time.Duration, pragmas []string) error {
	db, err := sql.Open(driverName, e.path)
	if err != nil {
		return err
	}
	e.db = db
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(e.ctx)
	if err != nil {
		return err
	}
	e.conn = conn

	if _, err := conn.ExecContext(e.ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds())); err != nil {
		return err
	}
	for _, p := range pragmas {
		if _, err := e.pragma(p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	if _, err := conn.ExecContext(e.ctx, createTable); err != nil {
		return err
	}

	for i, query := range statements {
		stmt, err := conn.PrepareContext(e.ctx, query)
		if err != nil {
			return fmt.Errorf("preparing %q: %w", query, err)
		}
		e.stmts[i] = stmt
	}
	return nil
}

// release closes every acquired resource in reverse order and returns the first error.
func (e *engine) release() error {
	var errs []error
	for i := numStmts - 1; i >= 0; i-- {
		if e.stmts[i] != nil {
			errs = append(errs, e.stmts[i].Close())
			e.stmts[i] = nil
		}
	}
	if e.conn != nil {
		errs = append(errs, e.conn.Close())
		e.conn = nil
	}
	if e.db != nil {
		errs = append(errs, e.db.Close())
		e.db = nil
	}
	return errors.Join(errs...)
}

// --------------------------------------------------------------------------
// Transaction handling (e.mu must be held)
// --------------------------------------------------------------------------

// usable returns the error every operation on a closed or broken engine returns.
func (e *engine) usable() error {
	if e.closed {
		return store.ErrClosed
	}
	if e.broken != nil {
		return store.WrapError(store.RetCClosed, "sqlstore: store is unusable after a backend failure", e.broken)
	}
	return nil
}

// fail marks the engine broken. Native failures are not recoverable.
func (e *engine) fail(op string, err error) error {
	e.broken = err
	Logger.Errorf("%s on %s failed, store is unusable: %v", op, e.path, err)
	return store.WrapError(store.RetCBackendError, "sqlstore: "+op, err)
}

func (e *engine) ensureTx() error {
	if e.inTx {
		return nil
	}
	if _, err := e.stmts[stmtBegin].ExecContext(e.ctx); err != nil {
		return e.fail("begin", err)
	}
	e.inTx = true
	e.begins.Add(1)
	return nil
}

func (e *engine) commit() error {
	if !e.inTx {
		return nil
	}
	e.inTx = false
	if _, err := e.stmts[stmtCommit].ExecContext(e.ctx); err != nil {
		return e.fail("commit", err)
	}
	e.commits.Add(1)
	return nil
}

// flush is run by the coalescer.
func (e *engine) flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.broken != nil {
		return nil
	}
	return e.commit()
}

// write runs a mutation in the open transaction and requests a commit.
func (e *engine) write(op string, stmt int, args ...any) error {
	e.mu.Lock()
	if err := e.usable(); err != nil {
		e.mu.Unlock()
		return err
	}
	if err := e.ensureTx(); err != nil {
		e.mu.Unlock()
		return err
	}
	if _, err := e.stmts[stmt].ExecContext(e.ctx, args...); err != nil {
		err = e.fail(op, err)
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()

	// outside the lock, an immediate loop flushes right here
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
	if err := e.ensureTx(); err != nil {
		return value.Cell{}, false, err
	}

	var raw any
	err := e.stmts[stmtSelect].QueryRowContext(e.ctx, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return value.Cell{}, false, nil
	}
	if err != nil {
		return value.Cell{}, false, e.fail("select", err)
	}
	c, err := value.FromDriver(raw)
	if err != nil {
		return value.Cell{}, false, store.WrapError(store.RetCInternalError, "sqlstore: reading "+key, err)
	}
	return c, true, nil
}

func (e *engine) WriteCell(key string, c value.Cell) error {
	return e.write("upsert", stmtUpsert, key, c.DriverValue())
}

func (e *engine) RemoveCell(key string) error {
	return e.write("delete", stmtDelete, key)
}

func (e *engine) RemoveAll() error {
	return e.write("delete all", stmtDeleteAll)
}

// --------------------------------------------------------------------------
// Ad-hoc statements
// --------------------------------------------------------------------------

// pragma runs a pragma on the pinned connection and returns the first column of every row.
func (e *engine) pragma(p string) ([]string, error) {
	p = strings.TrimSpace(p)
	if strings.Contains(p, ";") {
		return nil, fmt.Errorf("pragma must be a single statement")
	}
	if !strings.HasPrefix(strings.ToUpper(p), "PRAGMA ") {
		p = "PRAGMA " + p
	}

	rows, err := e.conn.QueryContext(e.ctx, p)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var result []string
	for rows.Next() {
		if len(cols) == 0 {
			continue
		}
		dest := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		c, err := value.FromDriver(dest[0])
		if err != nil {
			return nil, err
		}
		result = append(result, c.AsText())
	}
	return result, rows.Err()
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
	if err := e.release(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return store.WrapError(store.RetCBackendError, "sqlstore: closing "+e.path, errors.Join(errs...))
	}
	Logger.Infof("closed %s (%d commits)", e.path, e.commits.Load())
	return nil
}

// --------------------------------------------------------------------------
// Store methods
// --------------------------------------------------------------------------

// Path returns the path the store was opened with.
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

// Pragma runs "PRAGMA <pragma>" and returns the first column of every result row.
// The "PRAGMA" prefix is optional. The open transaction is committed first.
func (s *Store) Pragma(pragma string) ([]string, error) {
	s.e.mu.Lock()
	defer s.e.mu.Unlock()
	if err := s.e.usable(); err != nil {
		return nil, err
	}
	if err := s.e.commit(); err != nil {
		return nil, err
	}
	result, err := s.e.pragma(pragma)
	if err != nil {
		return nil, store.WrapError(store.RetCInvalidOperation, "sqlstore: pragma "+pragma, err)
	}
	return result, nil
}

// Vacuum commits the open transaction and rebuilds the database file.
func (s *Store) Vacuum() error {
	s.e.mu.Lock()
	defer s.e.mu.Unlock()
	if err := s.e.usable(); err != nil {
		return err
	}
	if err := s.e.commit(); err != nil {
		return err
	}
	if _, err := s.e.conn.ExecContext(s.e.ctx, "VACUUM"); err != nil {
		return store.WrapError(store.RetCInvalidOperation, "sqlstore: vacuum", err)
	}
	return nil
}

// Stats returns the transaction counters.
func (s *Store) Stats() Stats {
	return Stats{
		Begins:  s.e.begins.Load(),
		Commits: s.e.commits.Load(),
		Flusher: s.e.flusher.Stats(),
	}
}

// Info returns the number of keys and the size of the database.
func (s *Store) Info() (store.Info, error) {
	s.e.mu.Lock()
	defer s.e.mu.Unlock()
	if err := s.e.usable(); err != nil {
		return store.Info{}, err
	}

	info := store.Info{Backend: store.ImplSQLite, Path: s.e.path}
	if err := s.e.conn.QueryRowContext(s.e.ctx, `SELECT COUNT(*) FROM KeyValueStore`).Scan(&info.Keys); err != nil {
		return info, store.WrapError(store.RetCInternalError, "sqlstore: counting keys", err)
	}
	if fi, err := os.Stat(s.e.path); err == nil {
		info.SizeBytes = fi.Size()
	}
	info.Metadata = map[string]any{
		"in_transaction": s.e.inTx,
		"commits":        s.e.commits.Load(),
	}
	return info, nil
}

// Close commits the open transaction and releases the database. Calling Close again is a no-op,
// every other operation on a closed store returns an error coded store.RetCClosed.
func (s *Store) Close() error {
	runtime.SetFinalizer(s, nil)
	return s.e.close()
}
