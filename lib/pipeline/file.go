package pipeline

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// --------------------------------------------------------------------------
// File helpers
// --------------------------------------------------------------------------

// SaveFile runs save against a write pipeline targeting path. The parent directory is created if
// needed. Data goes to a temporary file in the same directory which is synced and renamed over path
// only after every layer was closed successfully, so a failed save leaves the previous file intact.
func SaveFile(path string, opts Options, save func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("pipeline: creating directory %s: %w", dir, err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("pipeline: creating temp file: %w", err)
	}
	tmp := f.Name()
	committed := false
	defer func() {
		if !committed {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	buffered := bufio.NewWriter(f)
	pw, err := NewWriter(buffered, opts)
	if err != nil {
		return err
	}
	if err := save(pw); err != nil {
		_ = pw.Close()
		return err
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("pipeline: closing layers: %w", err)
	}
	if err := buffered.Flush(); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("pipeline: replacing %s: %w", path, err)
	}
	committed = true
	Logger.Debugf("saved %s (compression=%s, encrypted=%v)", path, opts.Compression, opts.Encrypted())
	return nil
}

// LoadFile runs load against a read pipeline reading path. A missing file is not an error:
// found is false and load is not called.
func LoadFile(path string, opts Options, load func(r io.Reader) error) (found bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			Logger.Debugf("%s does not exist, nothing to load", path)
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	pr, err := NewReader(bufio.NewReader(f), opts)
	if err != nil {
		return true, err
	}
	if err := load(pr); err != nil {
		_ = pr.Close()
		return true, err
	}
	return true, pr.Close()
}
