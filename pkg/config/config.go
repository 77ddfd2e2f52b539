package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"tagfall/pkg/validation"
)

type ProviderConfig struct {
	Enabled      bool          `yaml:"enabled"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	// Tags are the tracked hashtags; each is normalized (no '#', lowercase)
	// at load time.
	Tags []string `yaml:"tags"`

	Moderation struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"moderation"`

	Providers struct {
		Mastodon struct {
			ProviderConfig `yaml:",inline"`
			Server         string `yaml:"server"`
			Token          string `yaml:"token"`
		} `yaml:"mastodon"`

		ChatRelay struct {
			ProviderConfig `yaml:",inline"`
			URL            string        `yaml:"url"`
			Channel        string        `yaml:"channel"`
			AvatarCacheTTL time.Duration `yaml:"avatar_cache_ttl"`
		} `yaml:"chat_relay"`
	} `yaml:"providers"`

	Storage struct {
		// Backend selects the repository implementation: memory, redis or
		// sqlite. Redis and sqlite fall back to memory when unreachable.
		Backend string `yaml:"backend"`

		Redis struct {
			Address  string `yaml:"address"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			PoolSize int    `yaml:"pool_size"`
		} `yaml:"redis"`

		Sqlite struct {
			Path string `yaml:"path"`
		} `yaml:"sqlite"`
	} `yaml:"storage"`

	Dispatch struct {
		PingInterval      time.Duration `yaml:"ping_interval"`
		PongTimeout       time.Duration `yaml:"pong_timeout"`
		WriteTimeout      time.Duration `yaml:"write_timeout"`
		SessionBufferSize int           `yaml:"session_buffer_size"`
	} `yaml:"dispatch"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled    bool    `yaml:"enabled"`
		JaegerURL  string  `yaml:"jaeger_url"`
		SampleRate float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
		} `yaml:"http"`

		WebSocket struct {
			ConnectionsPerMinute int `yaml:"connections_per_minute"`
			Burst                int `yaml:"burst"`
		} `yaml:"websocket"`
	} `yaml:"rate_limiting"`
}

// Validate checks that configuration values are within acceptable ranges.
// A malformed provider section is not fatal here: it is reported so the
// caller can mark that provider disabled while the rest keep running.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	if len(c.Tags) == 0 {
		return fmt.Errorf("tags must list at least one tracked hashtag")
	}
	for _, tag := range c.Tags {
		if err := validation.ValidateTag(tag); err != nil {
			return fmt.Errorf("tags: %q: %w", tag, err)
		}
	}

	switch c.Storage.Backend {
	case "memory", "redis", "sqlite":
	default:
		return fmt.Errorf("storage.backend must be one of memory, redis, sqlite")
	}
	if c.Storage.Backend == "redis" {
		if c.Storage.Redis.Address == "" {
			return fmt.Errorf("storage.redis.address must not be empty when backend=redis")
		}
		if c.Storage.Redis.PoolSize <= 0 {
			return fmt.Errorf("storage.redis.pool_size must be > 0 when backend=redis")
		}
	}
	if c.Storage.Backend == "sqlite" && c.Storage.Sqlite.Path == "" {
		return fmt.Errorf("storage.sqlite.path must not be empty when backend=sqlite")
	}

	if c.Dispatch.PingInterval <= 0 {
		return fmt.Errorf("dispatch.ping_interval must be > 0")
	}
	if c.Dispatch.PongTimeout <= 0 {
		return fmt.Errorf("dispatch.pong_timeout must be > 0")
	}
	if c.Dispatch.SessionBufferSize <= 0 {
		return fmt.Errorf("dispatch.session_buffer_size must be > 0")
	}

	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.ConnectionsPerMinute <= 0 {
			return fmt.Errorf("rate_limiting.websocket.connections_per_minute must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.Burst <= 0 {
			return fmt.Errorf("rate_limiting.websocket.burst must be > 0 when rate limiting is enabled")
		}
	}

	return nil
}

// ValidateProvider checks one provider section. Errors mark only that
// provider disabled; other providers are unaffected.
func (c *Config) ValidateProvider(id string) error {
	switch id {
	case "MASTODON":
		p := c.Providers.Mastodon
		if !p.Enabled {
			return nil
		}
		if err := validation.ValidateURL(p.Server); err != nil {
			return fmt.Errorf("providers.mastodon.server: %w", err)
		}
		if p.PollInterval <= 0 {
			return fmt.Errorf("providers.mastodon.poll_interval must be > 0")
		}
	case "CHATRELAY":
		p := c.Providers.ChatRelay
		if !p.Enabled {
			return nil
		}
		if err := validation.ValidateURL(p.URL); err != nil {
			return fmt.Errorf("providers.chat_relay.url: %w", err)
		}
		if p.Channel == "" {
			return fmt.Errorf("providers.chat_relay.channel must not be empty")
		}
		if p.PollInterval <= 0 {
			return fmt.Errorf("providers.chat_relay.poll_interval must be > 0")
		}
	default:
		return fmt.Errorf("unknown provider id %q", id)
	}
	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Tags = []string{"tagfall"}

	cfg.Moderation.Enabled = true

	cfg.Providers.Mastodon.Enabled = false
	cfg.Providers.Mastodon.Server = "https://mastodon.social"
	cfg.Providers.Mastodon.PollInterval = 30 * time.Second

	cfg.Providers.ChatRelay.Enabled = false
	cfg.Providers.ChatRelay.PollInterval = time.Second
	cfg.Providers.ChatRelay.AvatarCacheTTL = 30 * time.Minute

	cfg.Storage.Backend = "memory"
	cfg.Storage.Redis.Address = "localhost:6379"
	cfg.Storage.Redis.PoolSize = 10
	cfg.Storage.Sqlite.Path = "tagfall.db"

	cfg.Dispatch.PingInterval = 30 * time.Second
	cfg.Dispatch.PongTimeout = 60 * time.Second
	cfg.Dispatch.WriteTimeout = 10 * time.Second
	cfg.Dispatch.SessionBufferSize = 64

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Auth.JWTSecret = "change-me-in-production"

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.WebSocket.ConnectionsPerMinute = 60
	cfg.RateLimiting.WebSocket.Burst = 10

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("TAGFALL_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if level := os.Getenv("TAGFALL_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := os.Getenv("TAGFALL_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if backend := os.Getenv("TAGFALL_STORAGE_BACKEND"); backend != "" {
		c.Storage.Backend = backend
	}
	if token := os.Getenv("TAGFALL_MASTODON_TOKEN"); token != "" {
		c.Providers.Mastodon.Token = token
	}
}
