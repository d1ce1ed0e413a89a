package pipeline

import (
	"bytes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
	"io"
)

// --------------------------------------------------------------------------
// Encryption layer
// --------------------------------------------------------------------------

// Stream format:
//
//	header: "KVSE" | version (1 byte) | scrypt N, r, p (uint32 big endian each) | salt (16 bytes)
//	frames: length (uint32 big endian, top bit marks the final frame) | sealed chunk
//
// Every chunk holds at most chunkSize plaintext bytes and is sealed with chacha20poly1305. The nonce
// is the chunk counter and the associated data is the header plus the final flag, so reordered,
// dropped or appended frames fail authentication and a stream cut at a frame boundary is detected
// by the missing final frame.

const (
	encMagic      = "KVSE"
	encVersion    = 1
	saltSize      = 16
	headerSize    = len(encMagic) + 1 + 3*4 + saltSize
	chunkSize     = 64 * 1024
	finalFlag     = uint32(1) << 31
	maxScryptLogN = 22
	// scrypt allocates 128*r*N bytes for its work area and 128*r*p for its blocks
	maxScryptMemory = 1 << 30
)

var (
	// ErrDecrypt is returned when the passphrase is wrong or the ciphertext was modified.
	ErrDecrypt = errors.New("pipeline: wrong passphrase or corrupted data")
	// ErrTruncated is returned when an encrypted stream ends before its final frame.
	ErrTruncated = errors.New("pipeline: encrypted stream is truncated")
	// ErrNotEncrypted is returned when a stream does not start with an encryption header.
	ErrNotEncrypted = errors.New("pipeline: stream is not encrypted")
)

// ScryptParams are the key derivation parameters written into the stream header.
type ScryptParams struct {
	N, R, P int
}

// DefaultScrypt are the parameters used when none are configured.
var DefaultScrypt = ScryptParams{N: 1 << 15, R: 8, P: 1}

func (p ScryptParams) orDefault() ScryptParams {
	if p.N == 0 && p.R == 0 && p.P == 0 {
		return DefaultScrypt
	}
	return p
}

// check rejects parameters scrypt cannot use or that would exceed maxScryptMemory.
func (p ScryptParams) check() error {
	if p.N <= 1 || p.N&(p.N-1) != 0 || p.N > 1<<maxScryptLogN {
		return fmt.Errorf("scrypt N %d must be a power of two in (1, 2^%d]", p.N, maxScryptLogN)
	}
	if p.R < 1 || p.P < 1 || uint64(p.R)*uint64(p.P) >= 1<<30 {
		return fmt.Errorf("scrypt r %d and p %d out of range", p.R, p.P)
	}
	if 128*uint64(p.R)*uint64(p.N) > maxScryptMemory || 128*uint64(p.R)*uint64(p.P) > maxScryptMemory {
		return fmt.Errorf("scrypt N %d, r %d, p %d need more than %d bytes", p.N, p.R, p.P, maxScryptMemory)
	}
	return nil
}

func newAEAD(passphrase string, salt []byte, p ScryptParams) (cipher.AEAD, error) {
	key, err := scrypt.Key([]byte(passphrase), salt, p.N, p.R, p.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, fmt.Errorf("pipeline: key derivation failed: %w", err)
	}
	return chacha20poly1305.New(key)
}

func chunkNonce(counter uint64) []byte {
	nonce := make([]byte, chacha20poly1305.NonceSize)
	binary.BigEndian.PutUint64(nonce[chacha20poly1305.NonceSize-8:], counter)
	return nonce
}

func chunkAD(header []byte, final bool) []byte {
	ad := make([]byte, len(header)+1)
	copy(ad, header)
	if final {
		ad[len(header)] = 1
	}
	return ad
}

// --------------------------------------------------------------------------
// Writer
// --------------------------------------------------------------------------

type encryptWriter struct {
	w       io.Writer
	aead    cipher.AEAD
	header  []byte
	buf     []byte
	counter uint64
	err     error
	closed  bool
}

// NewEncryptWriter writes the stream header to w and returns a writer that seals everything written
// to it. Close seals the final frame, it does not close w.
func NewEncryptWriter(w io.Writer, passphrase string, params ScryptParams) (io.WriteCloser, error) {
	if passphrase == "" {
		return nil, errors.New("pipeline: empty passphrase")
	}
	params = params.orDefault()
	if err := params.check(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	header := make([]byte, 0, headerSize)
	header = append(header, encMagic...)
	header = append(header, encVersion)
	header = binary.BigEndian.AppendUint32(header, uint32(params.N))
	header = binary.BigEndian.AppendUint32(header, uint32(params.R))
	header = binary.BigEndian.AppendUint32(header, uint32(params.P))
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	header = append(header, salt...)

	aead, err := newAEAD(passphrase, salt, params)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(header); err != nil {
		return nil, err
	}

	return &encryptWriter{
		w:      w,
		aead:   aead,
		header: header,
		buf:    make([]byte, 0, chunkSize),
	}, nil
}

func (e *encryptWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	if e.closed {
		return 0, errors.New("pipeline: write to closed encryption layer")
	}
	e.buf = append(e.buf, p...)
	// keep the last chunk buffered, only Close knows whether it is final
	for len(e.buf) > chunkSize {
		if err := e.seal(e.buf[:chunkSize], false); err != nil {
			return 0, err
		}
		e.buf = append(e.buf[:0], e.buf[chunkSize:]...)
	}
	return len(p), nil
}

func (e *encryptWriter) Close() error {
	if e.closed {
		return e.err
	}
	e.closed = true
	if e.err != nil {
		return e.err
	}
	return e.seal(e.buf, true)
}

func (e *encryptWriter) seal(chunk []byte, final bool) error {
	sealed := e.aead.Seal(nil, chunkNonce(e.counter), chunk, chunkAD(e.header, final))
	e.counter++

	length := uint32(len(sealed))
	if final {
		length |= finalFlag
	}
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], length)
	if _, err := e.w.Write(prefix[:]); err != nil {
		e.err = err
		return err
	}
	if _, err := e.w.Write(sealed); err != nil {
		e.err = err
		return err
	}
	return nil
}

// --------------------------------------------------------------------------
// Reader
// --------------------------------------------------------------------------

type decryptReader struct {
	r       io.Reader
	aead    cipher.AEAD
	header  []byte
	frame   []byte
	chunk   []byte // plaintext buffer reused across frames
	plain   []byte // unread part of chunk
	counter uint64
	final   bool
	err     error
}

// NewDecryptReader reads the stream header from r and returns a reader yielding the plaintext.
// Closing the returned reader does not close r.
func NewDecryptReader(r io.Reader, passphrase string) (io.ReadCloser, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrNotEncrypted
		}
		return nil, err
	}
	if !bytes.Equal(header[:len(encMagic)], []byte(encMagic)) {
		return nil, ErrNotEncrypted
	}
	if v := header[len(encMagic)]; v != encVersion {
		return nil, fmt.Errorf("pipeline: unsupported encryption format version %d", v)
	}

	off := len(encMagic) + 1
	params := ScryptParams{
		N: int(binary.BigEndian.Uint32(header[off:])),
		R: int(binary.BigEndian.Uint32(header[off+4:])),
		P: int(binary.BigEndian.Uint32(header[off+8:])),
	}
	if err := params.check(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	salt := header[off+12:]

	aead, err := newAEAD(passphrase, salt, params)
	if err != nil {
		return nil, err
	}
	return &decryptReader{r: r, aead: aead, header: header}, nil
}

func (d *decryptReader) Read(p []byte) (int, error) {
	for len(d.plain) == 0 {
		if d.err != nil {
			return 0, d.err
		}
		if d.final {
			d.err = d.checkEnd()
			continue
		}
		d.err = d.next()
	}
	n := copy(p, d.plain)
	d.plain = d.plain[n:]
	return n, nil
}

// next reads and opens one frame.
func (d *decryptReader) next() error {
	var prefix [4]byte
	if _, err := io.ReadFull(d.r, prefix[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrTruncated
		}
		return err
	}
	length := binary.BigEndian.Uint32(prefix[:])
	final := length&finalFlag != 0
	length &^= finalFlag
	if int(length) > chunkSize+d.aead.Overhead() || int(length) < d.aead.Overhead() {
		return fmt.Errorf("%w: invalid frame length %d", ErrDecrypt, length)
	}

	if cap(d.frame) < int(length) {
		d.frame = make([]byte, length)
	}
	d.frame = d.frame[:length]
	if _, err := io.ReadFull(d.r, d.frame); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrTruncated
		}
		return err
	}

	plain, err := d.aead.Open(d.chunk[:0], chunkNonce(d.counter), d.frame, chunkAD(d.header, final))
	if err != nil {
		return ErrDecrypt
	}
	d.counter++
	d.chunk = plain
	d.plain = plain
	d.final = final
	return nil
}

// checkEnd verifies that nothing follows the final frame.
func (d *decryptReader) checkEnd() error {
	var one [1]byte
	n, err := io.ReadFull(d.r, one[:])
	if n > 0 {
		return fmt.Errorf("%w: data after final frame", ErrDecrypt)
	}
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	return err
}

func (d *decryptReader) Close() error {
	d.plain = nil
	return nil
}
