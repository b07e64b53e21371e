package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent reflex configuration stored as config.toml
// in the .reflex/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version int          `toml:"version"`
	API     APIConfig    `toml:"api"`
	Hooks   HooksConfig  `toml:"hooks"`
	Lock    LockConfig   `toml:"lock"`
	Events  EventsConfig `toml:"events"`
	Serve   ServeConfig  `toml:"serve"`
	Log     LogConfig    `toml:"log"`
}

// APIConfig holds settings for the remote memory API.
type APIConfig struct {
	URL string `toml:"url,omitempty"`
}

// HooksConfig holds settings for the prompt-submit and stop hooks.
type HooksConfig struct {
	// RetrieveTimeoutMS bounds the awaited retrieval call. The user is
	// waiting on it, so it stays short.
	RetrieveTimeoutMS uint `toml:"retrieve_timeout_ms,omitempty"`

	// DispatchTimeoutMS bounds each fire-and-forget call and the final
	// drain before the hook process exits.
	DispatchTimeoutMS uint `toml:"dispatch_timeout_ms,omitempty"`

	// SweepMaxAgeHours is the age after which state files are evicted.
	SweepMaxAgeHours uint `toml:"sweep_max_age_hours,omitempty"`

	// Layers are the retrieval layers requested from the API.
	Layers []string `toml:"layers,omitempty"`
}

// LockConfig selects and tunes the per-session lock.
type LockConfig struct {
	Backend   string `toml:"backend,omitempty"`
	TimeoutMS uint   `toml:"timeout_ms,omitempty"`
	StaleMS   uint   `toml:"stale_ms,omitempty"`
	RedisURL  string `toml:"redis_url,omitempty"`
}

// EventsConfig holds turn summary event stream settings. An empty broker
// list disables publishing.
type EventsConfig struct {
	KafkaBrokers []string `toml:"kafka_brokers,omitempty"`
	KafkaTopic   string   `toml:"kafka_topic,omitempty"`
}

// ServeConfig holds settings for the local API emulator.
type ServeConfig struct {
	Listen      string `toml:"listen,omitempty"`
	Storage     string `toml:"storage,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// File, when set, receives a JSON copy of every log line.
	File string `toml:"file,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func listKey(field func(c *Config) *[]string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strings.Join(*field(c), ",") },
		set: func(c *Config, v string) error { *field(c) = SplitList(v); return nil },
	}
}

// SplitList splits a comma separated value, dropping empty items.
func SplitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"api.url": {
		get: func(c *Config) string { return c.API.URL },
		set: func(c *Config, v string) error { c.API.URL = v; return nil },
	},
	"hooks.retrieve_timeout_ms": uintKey("hooks.retrieve_timeout_ms", func(c *Config) *uint { return &c.Hooks.RetrieveTimeoutMS }),
	"hooks.dispatch_timeout_ms": uintKey("hooks.dispatch_timeout_ms", func(c *Config) *uint { return &c.Hooks.DispatchTimeoutMS }),
	"hooks.sweep_max_age_hours": uintKey("hooks.sweep_max_age_hours", func(c *Config) *uint { return &c.Hooks.SweepMaxAgeHours }),
	"hooks.layers":              listKey(func(c *Config) *[]string { return &c.Hooks.Layers }),
	"lock.backend": {
		get: func(c *Config) string { return c.Lock.Backend },
		set: func(c *Config, v string) error {
			switch v {
			case LockBackendFile, LockBackendRedis:
				c.Lock.Backend = v
				return nil
			default:
				return fmt.Errorf("invalid value for lock.backend: %q (available: %s, %s)", v, LockBackendFile, LockBackendRedis)
			}
		},
	},
	"lock.timeout_ms": uintKey("lock.timeout_ms", func(c *Config) *uint { return &c.Lock.TimeoutMS }),
	"lock.stale_ms":   uintKey("lock.stale_ms", func(c *Config) *uint { return &c.Lock.StaleMS }),
	"lock.redis_url": {
		get: func(c *Config) string { return c.Lock.RedisURL },
		set: func(c *Config, v string) error { c.Lock.RedisURL = v; return nil },
	},
	"events.kafka_brokers": listKey(func(c *Config) *[]string { return &c.Events.KafkaBrokers }),
	"events.kafka_topic": {
		get: func(c *Config) string { return c.Events.KafkaTopic },
		set: func(c *Config, v string) error { c.Events.KafkaTopic = v; return nil },
	},
	"serve.listen": {
		get: func(c *Config) string { return c.Serve.Listen },
		set: func(c *Config, v string) error { c.Serve.Listen = v; return nil },
	},
	"serve.storage": {
		get: func(c *Config) string { return c.Serve.Storage },
		set: func(c *Config, v string) error {
			switch v {
			case StorageMemory, StorageSQLite, StoragePostgres:
				c.Serve.Storage = v
				return nil
			default:
				return fmt.Errorf("invalid value for serve.storage: %q (available: %s, %s, %s)", v, StorageMemory, StorageSQLite, StoragePostgres)
			}
		},
	},
	"serve.sqlite_path": {
		get: func(c *Config) string { return c.Serve.SQLitePath },
		set: func(c *Config, v string) error { c.Serve.SQLitePath = v; return nil },
	},
	"serve.postgres_dsn": {
		get: func(c *Config) string { return c.Serve.PostgresDSN },
		set: func(c *Config, v string) error { c.Serve.PostgresDSN = v; return nil },
	},
	"log.file": {
		get: func(c *Config) string { return c.Log.File },
		set: func(c *Config, v string) error { c.Log.File = v; return nil },
	},
}

// RetrieveTimeout returns the retrieval deadline.
func (h HooksConfig) RetrieveTimeout() time.Duration {
	return time.Duration(h.RetrieveTimeoutMS) * time.Millisecond
}

// DispatchTimeout returns the per-job and drain deadline for fire-and-forget calls.
func (h HooksConfig) DispatchTimeout() time.Duration {
	return time.Duration(h.DispatchTimeoutMS) * time.Millisecond
}

// SweepMaxAge returns the state file eviction age.
func (h HooksConfig) SweepMaxAge() time.Duration {
	return time.Duration(h.SweepMaxAgeHours) * time.Hour
}

// Timeout returns the lock acquisition deadline.
func (l LockConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutMS) * time.Millisecond
}

// Stale returns the age after which a held lock may be reclaimed.
func (l LockConfig) Stale() time.Duration {
	return time.Duration(l.StaleMS) * time.Millisecond
}
