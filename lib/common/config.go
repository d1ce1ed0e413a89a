package common

import (
	"fmt"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Store configuration
// --------------------------------------------------------------------------

// Backend selects the store implementation.
type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendBolt   Backend = "bolt"
	BackendFile   Backend = "file"
)

// StoreConfig holds everything needed to open a store from the command line.
type StoreConfig struct {
	// Backend and location
	Backend Backend
	Path    string

	// Native engine settings (sqlite, bolt)
	Pragmas     []string
	BusyTimeout time.Duration

	// File backend settings
	Format           string // json or msgpack
	Compression      string // none, gzip or zstd
	CompressionLevel int
	Passphrase       string

	// Logging configuration
	LogLevel string
}

// Validate checks the combination of settings.
func (c *StoreConfig) Validate() error {
	switch c.Backend {
	case BackendSQLite, BackendBolt, BackendFile:
	default:
		return fmt.Errorf("invalid backend %q, must be one of sqlite, bolt, file", c.Backend)
	}
	if c.Path == "" {
		return fmt.Errorf("path must not be empty")
	}
	if c.Backend != BackendFile && (c.Passphrase != "" || (c.Compression != "" && c.Compression != "none")) {
		return fmt.Errorf("compression and encryption are only available for the file backend")
	}
	if c.Backend != BackendSQLite && len(c.Pragmas) > 0 {
		return fmt.Errorf("pragmas are only available for the sqlite backend")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *StoreConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Store")
	addField("Backend", string(c.Backend))
	addField("Path", c.Path)

	switch c.Backend {
	case BackendSQLite, BackendBolt:
		addSection("Engine")
		addField("Busy Timeout", c.BusyTimeout.String())
		for i, pragma := range c.Pragmas {
			addField(fmt.Sprintf("Pragma %d", i), pragma)
		}
	case BackendFile:
		addSection("File")
		addField("Format", c.Format)
		addField("Compression", fmt.Sprintf("%s (level %d)", c.Compression, c.CompressionLevel))
		encryption := "disabled"
		if c.Passphrase != "" {
			encryption = "enabled"
		}
		addField("Encryption", encryption)
	}

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
