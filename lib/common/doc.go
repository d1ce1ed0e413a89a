// Package common provides the configuration and logging shared by the library packages and the
// command line tool.
//
// Key Components:
//
//   - StoreConfig: the settings needed to open a store (backend, path, engine pragmas, file
//     format, compression and encryption). Populated by the CLI from flags, environment and
//     .env files, validated with Validate and printed with String.
//
//   - Logger: custom logging implementation of Dragonboat's logger.ILogger. Every library package
//     obtains its logger by name (logger.GetLogger("sqlstore"), ...). InitLoggers installs the
//     formatter and sets the level for all of them.
package common
