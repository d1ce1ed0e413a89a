// Package cmd implements the command-line interface of kvs. It opens the store selected by the
// global flags and runs a single operation on it.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for store operations (get, set, has, del, clear, info, pragma, vacuum, bench)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See kvs -help for a list of all commands.
package cmd
