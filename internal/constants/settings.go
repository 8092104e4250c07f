package constants

const (
	// Local backends
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendMemory = "memory"

	DefaultBackend = BackendSQLite

	// Environment overrides
	EnvDBConnection = "HABITMAP_DB_CONNECTION"
	EnvJWTSecret    = "HABITMAP_JWT_SECRET"
	EnvDebug        = "HABITMAP_DEBUG"
	EnvConfig       = "HABITMAP_CONFIG"
)
