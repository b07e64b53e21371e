package config

const (
	defaultAPIURL = "https://api.reflex.dev"

	defaultRetrieveTimeoutMS = 1500
	defaultDispatchTimeoutMS = 8000
	defaultSweepMaxAgeHours  = 24

	defaultLockTimeoutMS = 5000
	defaultLockStaleMS   = 10000

	defaultKafkaTopic = "reflex.turns"

	defaultServeListen = ":8787"

	// Lock backends.
	LockBackendFile  = "file"
	LockBackendRedis = "redis"

	// Emulator storage drivers.
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// defaultLayers are the retrieval layers requested when none are configured.
var defaultLayers = []string{"user", "project", "team"}

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		API: APIConfig{
			URL: defaultAPIURL,
		},
		Hooks: HooksConfig{
			RetrieveTimeoutMS: defaultRetrieveTimeoutMS,
			DispatchTimeoutMS: defaultDispatchTimeoutMS,
			SweepMaxAgeHours:  defaultSweepMaxAgeHours,
			Layers:            append([]string(nil), defaultLayers...),
		},
		Lock: LockConfig{
			Backend:   LockBackendFile,
			TimeoutMS: defaultLockTimeoutMS,
			StaleMS:   defaultLockStaleMS,
		},
		Events: EventsConfig{
			KafkaTopic: defaultKafkaTopic,
		},
		Serve: ServeConfig{
			Listen:  defaultServeListen,
			Storage: StorageMemory,
		},
	}
}

// DefaultAPIURL returns the default memory API root.
func DefaultAPIURL() string {
	return defaultAPIURL
}
