package pipeline

import (
	"errors"
	"github.com/lni/dragonboat/v4/logger"
	"io"
)

var Logger = logger.GetLogger("pipeline")

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Options configures the layers of a pipeline. The zero value is a plain pass-through.
type Options struct {
	// Compression selects the compression layer.
	Compression Compression
	// Level is the compression level, 0 selects the algorithm default.
	Level int
	// Passphrase enables the encryption layer when non-empty.
	Passphrase string
	// Scrypt parameters for newly written streams. Zero values select DefaultScrypt. Readers take
	// the parameters from the stream header.
	ScryptN, ScryptR, ScryptP int
}

// Encrypted reports whether the encryption layer is enabled.
func (o Options) Encrypted() bool {
	return o.Passphrase != ""
}

func (o Options) scrypt() ScryptParams {
	return ScryptParams{N: o.ScryptN, R: o.ScryptR, P: o.ScryptP}.orDefault()
}

// --------------------------------------------------------------------------
// Layer stack
// --------------------------------------------------------------------------

// stack closes its layers in reverse order of acquisition. The raw stream at the bottom is never
// part of the stack.
type stack struct {
	layers []io.Closer
}

func (s *stack) push(c io.Closer) {
	s.layers = append(s.layers, c)
}

func (s *stack) close() error {
	var errs []error
	for i := len(s.layers) - 1; i >= 0; i-- {
		if err := s.layers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.layers = nil
	return errors.Join(errs...)
}

// Writer is the outermost layer of a write pipeline.
type Writer struct {
	io.Writer
	stack stack
}

// Close flushes and closes the compression layer, then the encryption layer. The underlying
// writer is left open. Close is idempotent.
func (w *Writer) Close() error {
	return w.stack.close()
}

// Reader is the outermost layer of a read pipeline.
type Reader struct {
	io.Reader
	stack stack
}

// Close releases the decompression and decryption layers. The underlying reader is left open.
func (r *Reader) Close() error {
	return r.stack.close()
}

// NewWriter builds the write pipeline on top of w. Data written to the result flows through the
// compressor (if any), then the encryptor (if any), then into w.
func NewWriter(w io.Writer, opts Options) (*Writer, error) {
	pw := &Writer{Writer: w}

	if opts.Encrypted() {
		enc, err := NewEncryptWriter(pw.Writer, opts.Passphrase, opts.scrypt())
		if err != nil {
			return nil, err
		}
		pw.stack.push(enc)
		pw.Writer = enc
	}

	if opts.Compression != None {
		comp, err := NewCompressWriter(pw.Writer, opts.Compression, opts.Level)
		if err != nil {
			// release what was acquired so far
			_ = pw.Close()
			return nil, err
		}
		pw.stack.push(comp)
		pw.Writer = comp
	}

	return pw, nil
}

// NewReader builds the read pipeline on top of r: decryption (if any), then decompression (if any).
func NewReader(r io.Reader, opts Options) (*Reader, error) {
	pr := &Reader{Reader: r}

	if opts.Encrypted() {
		dec, err := NewDecryptReader(pr.Reader, opts.Passphrase)
		if err != nil {
			return nil, err
		}
		pr.stack.push(dec)
		pr.Reader = dec
	}

	if opts.Compression != None {
		decomp, err := NewDecompressReader(pr.Reader, opts.Compression)
		if err != nil {
			_ = pr.Close()
			return nil, err
		}
		pr.stack.push(decomp)
		pr.Reader = decomp
	}

	return pr, nil
}
