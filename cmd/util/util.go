package util

import (
	"fmt"
	"github.com/ValentinKolb/kvs/lib/common"
	"github.com/ValentinKolb/kvs/lib/pipeline"
	"github.com/ValentinKolb/kvs/lib/schedule"
	"github.com/ValentinKolb/kvs/lib/store"
	"github.com/ValentinKolb/kvs/lib/store/autosave"
	"github.com/ValentinKolb/kvs/lib/store/boltstore"
	"github.com/ValentinKolb/kvs/lib/store/filestore"
	"github.com/ValentinKolb/kvs/lib/store/mapstore"
	"github.com/ValentinKolb/kvs/lib/store/sqlstore"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strings"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// SetupStoreFlags adds the flags selecting and configuring the store to a command
func SetupStoreFlags(cmd *cobra.Command) {
	key := "backend"
	cmd.PersistentFlags().String(key, "sqlite", WrapString("The store backend (sqlite, bolt, file)"))

	key = "path"
	cmd.PersistentFlags().String(key, "kvs.db", WrapString("The database file (sqlite, bolt) or state file (file)"))

	key = "pragma"
	cmd.PersistentFlags().StringSlice(key, nil, WrapString("SQLite pragmas executed after opening (e.g. journal_mode=WAL), can be repeated"))

	key = "busy-timeout"
	cmd.PersistentFlags().Duration(key, 0, WrapString("How long to wait for a lock held by another process (sqlite: busy timeout, bolt: file lock)"))

	key = "format"
	cmd.PersistentFlags().String(key, "json", WrapString("Encoding of the state file (json, msgpack), only for the file backend"))

	key = "compression"
	cmd.PersistentFlags().String(key, "none", WrapString("Compression of the state file (none, gzip, zstd), only for the file backend"))

	key = "compression-level"
	cmd.PersistentFlags().Int(key, 0, WrapString("Compression level, 0 selects the default of the algorithm"))

	key = "passphrase"
	cmd.PersistentFlags().String(key, "", WrapString("Encrypts the state file with this passphrase, only for the file backend. Prefer the KVS_PASSPHRASE environment variable"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warning", WrapString("The log level (debug, info, warning, error)"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("kvs")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// GetStoreConfig reads the store configuration from viper
func GetStoreConfig() *common.StoreConfig {
	return &common.StoreConfig{
		Backend:          common.Backend(strings.ToLower(viper.GetString("backend"))),
		Path:             viper.GetString("path"),
		Pragmas:          viper.GetStringSlice("pragma"),
		BusyTimeout:      viper.GetDuration("busy-timeout"),
		Format:           viper.GetString("format"),
		Compression:      viper.GetString("compression"),
		CompressionLevel: viper.GetInt("compression-level"),
		Passphrase:       viper.GetString("passphrase"),
		LogLevel:         viper.GetString("log-level"),
	}
}

// --------------------------------------------------------------------------
// Store
// --------------------------------------------------------------------------

// Handle is an opened store together with the loop running its deferred work.
type Handle struct {
	store.IStore
	loop *schedule.GoroutineLoop
}

// Close flushes and closes the store, then stops the loop.
func (h *Handle) Close() error {
	var err error
	if c, ok := h.IStore.(interface{ Close() error }); ok {
		err = c.Close()
	}
	h.loop.Close()
	return err
}

// Flush makes all changes durable.
func (h *Handle) Flush() error {
	if f, ok := h.IStore.(store.IFlusher); ok {
		return f.Flush()
	}
	return nil
}

// OpenStore opens the store described by conf. Deferred commits and saves run on a dedicated
// goroutine, Close flushes them.
func OpenStore(conf *common.StoreConfig) (*Handle, error) {
	if err := conf.Validate(); err != nil {
		return nil, store.WrapError(store.RetCConfigError, "invalid configuration", err)
	}

	loop := schedule.NewGoroutineLoop()
	s, err := openBackend(conf, loop)
	if err != nil {
		loop.Close()
		return nil, err
	}
	return &Handle{IStore: s, loop: loop}, nil
}

func openBackend(conf *common.StoreConfig, loop schedule.Loop) (store.IStore, error) {
	switch conf.Backend {
	case common.BackendSQLite:
		return sqlstore.Open(conf.Path, &sqlstore.Options{
			Loop:        loop,
			Pragmas:     conf.Pragmas,
			BusyTimeout: conf.BusyTimeout,
		})

	case common.BackendBolt:
		return boltstore.Open(conf.Path, &boltstore.Options{
			Loop:    loop,
			Timeout: conf.BusyTimeout,
		})

	case common.BackendFile:
		format, err := mapstore.ParseFormat(conf.Format)
		if err != nil {
			return nil, store.WrapError(store.RetCConfigError, "invalid format", err)
		}
		compression, err := pipeline.ParseCompression(conf.Compression)
		if err != nil {
			return nil, store.WrapError(store.RetCConfigError, "invalid compression", err)
		}
		fs, err := filestore.New(mapstore.New(&mapstore.Options{Format: format}), conf.Path, pipeline.Options{
			Compression: compression,
			Level:       conf.CompressionLevel,
			Passphrase:  conf.Passphrase,
		})
		if err != nil {
			return nil, err
		}
		if err := fs.Load(); err != nil {
			return nil, err
		}
		return autosave.New(fs, loop)

	default:
		return nil, store.NewError(store.RetCConfigError, fmt.Sprintf("unknown backend %q", conf.Backend))
	}
}
