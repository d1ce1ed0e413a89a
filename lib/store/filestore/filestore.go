package filestore

import (
	"github.com/ValentinKolb/kvs/lib/pipeline"
	"github.com/ValentinKolb/kvs/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"os"
)

var Logger = logger.GetLogger("filestore")

// Store binds a stream-savable store to a file. The whole state is written on Save and read on
// Load, through a pipeline with the configured compression and encryption.
//
// All store.IStore methods are forwarded to the inner store unchanged.
type Store struct {
	store.IStreamSavableStore
	path string
	opts pipeline.Options
}

var (
	_ store.ISavableStore = (*Store)(nil)
	_ store.IInfoProvider = (*Store)(nil)
)

// New binds inner to path. Nothing is read until Load is called.
func New(inner store.IStreamSavableStore, path string, opts pipeline.Options) (*Store, error) {
	if inner == nil {
		return nil, store.NewError(store.RetCConfigError, "filestore: inner store must not be nil")
	}
	if path == "" {
		return nil, store.NewError(store.RetCConfigError, "filestore: path must not be empty")
	}
	return &Store{IStreamSavableStore: inner, path: path, opts: opts}, nil
}

// Path returns the file the store is bound to.
func (s *Store) Path() string {
	return s.path
}

// Load replaces the state of the inner store with the content of the file. A missing file is not
// an error and leaves the store untouched.
func (s *Store) Load() error {
	found, err := pipeline.LoadFile(s.path, s.opts, s.IStreamSavableStore.LoadFrom)
	if err != nil {
		return store.WrapError(store.RetCInternalError, "filestore: loading "+s.path, err)
	}
	if found {
		Logger.Debugf("loaded %s", s.path)
	}
	return nil
}

// Save writes the state of the inner store to the file. The previous file is replaced atomically,
// a failed save leaves it intact. Missing parent directories are created.
func (s *Store) Save() error {
	if err := pipeline.SaveFile(s.path, s.opts, s.IStreamSavableStore.SaveTo); err != nil {
		return store.WrapError(store.RetCInternalError, "filestore: saving "+s.path, err)
	}
	return nil
}

// Info returns the information of the inner store, if it provides any, with the path and the size
// of the file.
func (s *Store) Info() (store.Info, error) {
	var info store.Info
	if p, ok := s.IStreamSavableStore.(store.IInfoProvider); ok {
		var err error
		if info, err = p.Info(); err != nil {
			return info, err
		}
	}
	info.Path = s.path
	if fi, err := os.Stat(s.path); err == nil {
		info.SizeBytes = fi.Size()
	}
	return info, nil
}

// Close closes the inner store if it holds resources. It does not save.
func (s *Store) Close() error {
	if c, ok := s.IStreamSavableStore.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
