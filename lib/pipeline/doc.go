// Package pipeline wraps a raw byte stream in optional compression and encryption layers.
//
// Write order is serializer -> compressor -> encryptor -> file, read order is the reverse. The layers
// are acquired innermost first and closed outermost first: the compressor is closed (flushing its
// trailer into the encryptor) before the encryptor seals its final frame. The raw stream is never
// closed by the pipeline.
//
// Key Components:
//
//   - Compression: gzip or zstd from klauspost/compress.
//
//   - Encryption: chacha20poly1305 in 64 KiB frames with a key derived from a passphrase via scrypt.
//     The scrypt parameters and salt are stored in the stream header, so only the passphrase is needed
//     to read a stream back. Frames are bound to their position and the stream end is authenticated,
//     a truncated or reordered stream fails with ErrTruncated or ErrDecrypt.
//
//   - SaveFile / LoadFile: atomic whole-file persistence (temp file, fsync, rename). Loading a missing
//     file is not an error.
//
// Usage:
//
//	opts := pipeline.Options{Compression: pipeline.Zstd, Passphrase: secret}
//	err := pipeline.SaveFile(path, opts, store.SaveTo)
//	found, err := pipeline.LoadFile(path, opts, store.LoadFrom)
package pipeline
