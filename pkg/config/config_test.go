package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/reflex/pkg/config"
)

var _ = Describe("Configer config", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	Describe("LoadConfig", func() {
		It("returns default config when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(config.NewDefaultConfig()))
		})

		It("loads all config fields", func() {
			data := `version = 0

[api]
url = "http://localhost:8787"

[hooks]
retrieve_timeout_ms = 900
dispatch_timeout_ms = 4000
sweep_max_age_hours = 6
layers = ["user"]

[lock]
backend = "redis"
timeout_ms = 2000
stale_ms = 3000
redis_url = "redis://localhost:6379/0"

[events]
kafka_brokers = ["localhost:9092"]
kafka_topic = "turns"

[serve]
listen = ":9999"
storage = "sqlite"
sqlite_path = "/tmp/reflex.sqlite"

[log]
file = "/tmp/reflex.log"
`
			Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.API.URL).To(Equal("http://localhost:8787"))
			Expect(cfg.Hooks.RetrieveTimeout()).To(Equal(900 * time.Millisecond))
			Expect(cfg.Hooks.DispatchTimeout()).To(Equal(4 * time.Second))
			Expect(cfg.Hooks.SweepMaxAge()).To(Equal(6 * time.Hour))
			Expect(cfg.Hooks.Layers).To(Equal([]string{"user"}))
			Expect(cfg.Lock.Backend).To(Equal(config.LockBackendRedis))
			Expect(cfg.Lock.Timeout()).To(Equal(2 * time.Second))
			Expect(cfg.Lock.Stale()).To(Equal(3 * time.Second))
			Expect(cfg.Lock.RedisURL).To(Equal("redis://localhost:6379/0"))
			Expect(cfg.Events.KafkaBrokers).To(Equal([]string{"localhost:9092"}))
			Expect(cfg.Events.KafkaTopic).To(Equal("turns"))
			Expect(cfg.Serve.Listen).To(Equal(":9999"))
			Expect(cfg.Serve.Storage).To(Equal(config.StorageSQLite))
			Expect(cfg.Serve.SQLitePath).To(Equal("/tmp/reflex.sqlite"))
			Expect(cfg.Log.File).To(Equal("/tmp/reflex.log"))
		})

		It("fills in defaults for unset fields in a partial config", func() {
			data := `[lock]
backend = "redis"
`
			Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())

			defaults := config.NewDefaultConfig()
			Expect(cfg.Lock.Backend).To(Equal(config.LockBackendRedis))
			Expect(cfg.Lock.TimeoutMS).To(Equal(defaults.Lock.TimeoutMS))
			Expect(cfg.Lock.StaleMS).To(Equal(defaults.Lock.StaleMS))
			Expect(cfg.Hooks).To(Equal(defaults.Hooks))
			Expect(cfg.API.URL).To(Equal(defaults.API.URL))
		})

		It("returns error for malformed TOML", func() {
			Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("not valid [[["), 0o600)).To(Succeed())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).To(HaveOccurred())
			Expect(cfg).To(BeNil())
		})

		It("returns error for unsupported config version", func() {
			Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("version = 7\n"), 0o600)).To(Succeed())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(MatchError(ContainSubstring("unsupported config version 7")))
		})
	})

	Describe("SaveConfig", func() {
		It("round-trips a config", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.NewDefaultConfig()
			cfg.Events.KafkaBrokers = []string{"a:9092", "b:9092"}
			cfg.Serve.PostgresDSN = "postgres://localhost/reflex"
			Expect(c.SaveConfig(cfg)).To(Succeed())

			loaded, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(cfg))
		})

		It("returns error for nil config", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(nil)).To(HaveOccurred())
		})
	})

	Describe("SetConfigValue", func() {
		var c *config.Configer

		BeforeEach(func() {
			var err error
			c, err = config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
		})

		It("sets a string config key", func() {
			Expect(c.SetConfigValue("api.url", "http://localhost:8787")).To(Succeed())

			v, err := c.GetConfigValue("api.url")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("http://localhost:8787"))
		})

		It("sets a uint config key", func() {
			Expect(c.SetConfigValue("lock.stale_ms", "20000")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Lock.StaleMS).To(Equal(uint(20000)))
		})

		It("sets a list config key from comma separated values", func() {
			Expect(c.SetConfigValue("hooks.layers", "user, team,,org")).To(Succeed())

			v, err := c.GetConfigValue("hooks.layers")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("user,team,org"))
		})

		It("rejects invalid values", func() {
			Expect(c.SetConfigValue("lock.timeout_ms", "soon")).To(HaveOccurred())
			Expect(c.SetConfigValue("lock.backend", "etcd")).To(HaveOccurred())
			Expect(c.SetConfigValue("serve.storage", "mongo")).To(HaveOccurred())
		})

		It("returns error for unknown key", func() {
			Expect(c.SetConfigValue("proxy.upstream", "x")).To(MatchError(ContainSubstring("unknown config key")))
		})

		It("preserves existing values when setting a new key", func() {
			Expect(c.SetConfigValue("lock.backend", "redis")).To(Succeed())
			Expect(c.SetConfigValue("lock.redis_url", "redis://localhost:6379")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Lock.Backend).To(Equal("redis"))
			Expect(cfg.Lock.RedisURL).To(Equal("redis://localhost:6379"))
		})
	})

	Describe("GetConfigValue", func() {
		It("returns default values when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			v, err := c.GetConfigValue("hooks.retrieve_timeout_ms")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal("1500"))

			v, err = c.GetConfigValue("lock.redis_url")
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(BeEmpty())
		})
	})
})

var _ = Describe("ValidConfigKeys", func() {
	It("returns every key in section order", func() {
		keys := config.ValidConfigKeys()
		Expect(keys).To(HaveLen(16))
		Expect(keys[0]).To(Equal("api.url"))
		Expect(keys[len(keys)-1]).To(Equal("log.file"))
		for _, k := range keys {
			Expect(config.IsValidConfigKey(k)).To(BeTrue())
		}
	})

	It("rejects unknown keys", func() {
		Expect(config.IsValidConfigKey("embedding.model")).To(BeFalse())
	})
})

var _ = Describe("PresetConfig", func() {
	It("points the local preset at the emulator", func() {
		cfg, err := config.PresetConfig("LOCAL")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.API.URL).To(Equal("http://localhost:8787"))
		Expect(cfg.Serve.Storage).To(Equal(config.StorageSQLite))
	})

	It("returns defaults for the hosted preset", func() {
		cfg, err := config.PresetConfig("hosted")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg).To(Equal(config.NewDefaultConfig()))
	})

	It("returns error for unknown preset", func() {
		_, err := config.PresetConfig("ollama")
		Expect(err).To(HaveOccurred())
		Expect(config.ValidPresetNames()).To(ConsistOf("hosted", "local"))
	})
})

var _ = Describe("SplitList", func() {
	It("drops blanks and trims items", func() {
		Expect(config.SplitList(" a, ,b ,")).To(Equal([]string{"a", "b"}))
		Expect(config.SplitList("")).To(BeEmpty())
	})
})

var _ = Describe("InitViper", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	It("returns viper with defaults when no config file exists", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		Expect(config.FromViper(v)).To(Equal(config.NewDefaultConfig()))
	})

	It("reads config file values over defaults", func() {
		data := `[serve]
listen = ":5555"
`
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.GetString("serve.listen")).To(Equal(":5555"))
	})

	It("env vars take precedence over config file values", func() {
		data := `[lock]
backend = "file"
`
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())
		GinkgoT().Setenv("REFLEX_LOCK_BACKEND", "redis")
		GinkgoT().Setenv("REFLEX_HOOKS_LAYERS", "team,org")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cfg := config.FromViper(v)
		Expect(cfg.Lock.Backend).To(Equal("redis"))
		Expect(cfg.Hooks.Layers).To(Equal([]string{"team", "org"}))
	})
})

var _ = Describe("BindRegisteredFlags", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	It("binds cobra flags to viper keys via registry", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, config.Flags, config.FlagServeListen, &listen)
		Expect(cmd.Flags().Set("listen", ":7777")).To(Succeed())

		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagServeListen})

		Expect(v.GetString("serve.listen")).To(Equal(":7777"))
	})

	It("falls through to config when flag not set", func() {
		data := `[serve]
listen = ":5555"
`
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		var listen string
		config.AddStringFlag(cmd, config.Flags, config.FlagServeListen, &listen)

		config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagServeListen})

		Expect(v.GetString("serve.listen")).To(Equal(":5555"))
	})

	It("skips bindings for nonexistent registry keys", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cmd := &cobra.Command{Use: "test"}
		config.BindRegisteredFlags(v, cmd, config.Flags, []string{"nonexistent"})

		Expect(v.GetString("serve.listen")).To(Equal(config.NewDefaultConfig().Serve.Listen))
	})

	It("AddStringFlag pulls name, shorthand, description and default from the registry", func() {
		cmd := &cobra.Command{Use: "test"}
		var target string
		config.AddStringFlag(cmd, config.Flags, config.FlagSQLitePath, &target)

		f := cmd.Flags().Lookup("sqlite")
		Expect(f).NotTo(BeNil())
		Expect(f.Shorthand).To(Equal("s"))
		Expect(f.Usage).To(Equal("Path to the SQLite database"))
	})

	It("AddUintFlag uses the default from NewDefaultConfig", func() {
		cmd := &cobra.Command{Use: "test"}
		var hours uint
		config.AddUintFlag(cmd, config.Flags, config.FlagMaxAge, &hours)

		f := cmd.Flags().Lookup("max-age")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal("24"))
	})
})
