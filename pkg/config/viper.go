package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/reflex/pkg/dotdir"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "REFLEX"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the REFLEX_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (REFLEX_API_URL, REFLEX_LOCK_BACKEND, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}
	v.AddConfigPath(target)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: REFLEX_API_URL, REFLEX_HOOKS_LAYERS, etc.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper materializes a Config from the resolved viper values.
func FromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Version: v.GetInt("version"),
		API: APIConfig{
			URL: v.GetString("api.url"),
		},
		Hooks: HooksConfig{
			RetrieveTimeoutMS: v.GetUint("hooks.retrieve_timeout_ms"),
			DispatchTimeoutMS: v.GetUint("hooks.dispatch_timeout_ms"),
			SweepMaxAgeHours:  v.GetUint("hooks.sweep_max_age_hours"),
			Layers:            viperList(v, "hooks.layers"),
		},
		Lock: LockConfig{
			Backend:   v.GetString("lock.backend"),
			TimeoutMS: v.GetUint("lock.timeout_ms"),
			StaleMS:   v.GetUint("lock.stale_ms"),
			RedisURL:  v.GetString("lock.redis_url"),
		},
		Events: EventsConfig{
			KafkaBrokers: viperList(v, "events.kafka_brokers"),
			KafkaTopic:   v.GetString("events.kafka_topic"),
		},
		Serve: ServeConfig{
			Listen:      v.GetString("serve.listen"),
			Storage:     v.GetString("serve.storage"),
			SQLitePath:  v.GetString("serve.sqlite_path"),
			PostgresDSN: v.GetString("serve.postgres_dsn"),
		},
		Log: LogConfig{
			File: v.GetString("log.file"),
		},
	}

	applyDefaults(cfg)

	return cfg
}

// viperList reads a list key that may come from TOML as an array or from
// the environment as a comma separated string.
func viperList(v *viper.Viper, key string) []string {
	var out []string
	for _, item := range v.GetStringSlice(key) {
		out = append(out, SplitList(item)...)
	}
	return out
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// API
	v.SetDefault("api.url", d.API.URL)

	// Hooks
	v.SetDefault("hooks.retrieve_timeout_ms", d.Hooks.RetrieveTimeoutMS)
	v.SetDefault("hooks.dispatch_timeout_ms", d.Hooks.DispatchTimeoutMS)
	v.SetDefault("hooks.sweep_max_age_hours", d.Hooks.SweepMaxAgeHours)
	v.SetDefault("hooks.layers", d.Hooks.Layers)

	// Lock
	v.SetDefault("lock.backend", d.Lock.Backend)
	v.SetDefault("lock.timeout_ms", d.Lock.TimeoutMS)
	v.SetDefault("lock.stale_ms", d.Lock.StaleMS)
	v.SetDefault("lock.redis_url", d.Lock.RedisURL)

	// Events
	v.SetDefault("events.kafka_brokers", d.Events.KafkaBrokers)
	v.SetDefault("events.kafka_topic", d.Events.KafkaTopic)

	// Serve
	v.SetDefault("serve.listen", d.Serve.Listen)
	v.SetDefault("serve.storage", d.Serve.Storage)
	v.SetDefault("serve.sqlite_path", d.Serve.SQLitePath)
	v.SetDefault("serve.postgres_dsn", d.Serve.PostgresDSN)

	// Log
	v.SetDefault("log.file", d.Log.File)
}
