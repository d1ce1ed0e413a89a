package store

// --------------------------------------------------------------------------
// Store metadata
// --------------------------------------------------------------------------

// Implementation names a storage backend.
type Implementation string

const (
	ImplSQLite Implementation = "sqlite"
	ImplBolt   Implementation = "bolt"
	ImplMap    Implementation = "map"
)

// Info describes the state of a store. It is not guaranteed that all fields are filled in
// or that the information is up-to-date!
type Info struct {
	Backend   Implementation `json:"backend"`
	Path      string         `json:"path,omitempty"`
	SizeBytes int64          `json:"size_bytes"`
	Keys      int64          `json:"keys"`
	Metadata  interface{}    `json:"metadata,omitempty"`
}

// IInfoProvider is implemented by stores that can describe themselves.
type IInfoProvider interface {
	Info() (info Info, err error)
}
