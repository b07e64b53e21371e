package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --api-url
// on both "reflex hook prompt-submit" and "reflex hook stop").
type Flag struct {
	// Name is the long flag name (e.g. "api-url").
	Name string

	// Shorthand is the one-letter short flag (e.g. "u"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "api.url").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagAPIURL          = "api-url"
	FlagRetrieveTimeout = "retrieve-timeout-ms"
	FlagDispatchTimeout = "dispatch-timeout-ms"
	FlagMaxAge          = "max-age"
	FlagLockBackend     = "lock-backend"
	FlagRedisURL        = "redis-url"
	FlagKafkaTopic      = "kafka-topic"
	FlagServeListen     = "listen"
	FlagServeStorage    = "storage"
	FlagSQLitePath      = "sqlite"
	FlagPostgresDSN     = "postgres"
	FlagLogFile         = "log-file"
)

// Flags is the registry of every flag reflex commands share.
var Flags = FlagSet{
	FlagAPIURL:          {Name: "api-url", ViperKey: "api.url", Description: "Memory API base URL"},
	FlagRetrieveTimeout: {Name: "retrieve-timeout-ms", ViperKey: "hooks.retrieve_timeout_ms", Description: "Deadline for pattern retrieval in milliseconds"},
	FlagDispatchTimeout: {Name: "dispatch-timeout-ms", ViperKey: "hooks.dispatch_timeout_ms", Description: "Deadline for background API calls in milliseconds"},
	FlagMaxAge:          {Name: "max-age", ViperKey: "hooks.sweep_max_age_hours", Description: "Remove state files older than this many hours"},
	FlagLockBackend:     {Name: "lock-backend", ViperKey: "lock.backend", Description: "Session lock backend (file or redis)"},
	FlagRedisURL:        {Name: "redis-url", ViperKey: "lock.redis_url", Description: "Redis URL for the redis lock backend"},
	FlagKafkaTopic:      {Name: "kafka-topic", ViperKey: "events.kafka_topic", Description: "Kafka topic for turn summary events"},
	FlagServeListen:     {Name: "listen", Shorthand: "l", ViperKey: "serve.listen", Description: "Address for the API emulator to listen on"},
	FlagServeStorage:    {Name: "storage", ViperKey: "serve.storage", Description: "Emulator storage driver (memory, sqlite or postgres)"},
	FlagSQLitePath:      {Name: "sqlite", Shorthand: "s", ViperKey: "serve.sqlite_path", Description: "Path to the SQLite database"},
	FlagPostgresDSN:     {Name: "postgres", ViperKey: "serve.postgres_dsn", Description: "PostgreSQL connection string"},
	FlagLogFile:         {Name: "log-file", ViperKey: "log.file", Description: "Also write JSON logs to this file"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}
