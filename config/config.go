// Package config loads the server's application configuration.
//
// The reward configuration (tiers, point values, expiry) is not part of it:
// that is persisted state edited through the admin API. Rewards.SeedPath
// only names a YAML document applied once, on first boot.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when Load is called with an empty path.
const DefaultPath = "configs/config.yaml"

type Config struct {
	Server struct {
		Port                int      `yaml:"port"`
		ReadTimeoutSeconds  int      `yaml:"read_timeout_seconds"`
		WriteTimeoutSeconds int      `yaml:"write_timeout_seconds"`
		CORSOrigins         []string `yaml:"cors_origins"`
		RateLimitRPS        float64  `yaml:"rate_limit_rps"`
		RateLimitBurst      int      `yaml:"rate_limit_burst"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Redis struct {
		Address        string `yaml:"address"`
		Password       string `yaml:"password"`
		DB             int    `yaml:"db"`
		LockTTLSeconds int    `yaml:"lock_ttl_seconds"`
	} `yaml:"redis"`

	AMQP struct {
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"amqp"`

	Sweeper struct {
		Enabled         bool `yaml:"enabled"`
		IntervalMinutes int  `yaml:"interval_minutes"`
	} `yaml:"sweeper"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // console | json
	} `yaml:"log"`

	Rewards struct {
		SeedPath string `yaml:"seed_path"`
	} `yaml:"rewards"`
}

// Load reads the YAML file at path. A .env file next to the working
// directory is loaded first when present, and ${VAR} placeholders in the
// YAML are expanded from the environment.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a YAML document after expanding ${VAR} placeholders.
func Parse(data []byte) (*Config, error) {
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/studio.db"
	}
	if cfg.Database.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

func (c *Config) Port() int {
	if c.Server.Port <= 0 {
		return 8080
	}
	return c.Server.Port
}

func (c *Config) ReadTimeout() time.Duration {
	if c.Server.ReadTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Server.ReadTimeoutSeconds) * time.Second
}

func (c *Config) WriteTimeout() time.Duration {
	if c.Server.WriteTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Server.WriteTimeoutSeconds) * time.Second
}

func (c *Config) CORSOrigins() []string {
	if len(c.Server.CORSOrigins) == 0 {
		return []string{"http://localhost:3000", "http://localhost:5173"}
	}
	return c.Server.CORSOrigins
}

// RateLimit returns requests per second and burst per actor. Zero rps
// disables limiting.
func (c *Config) RateLimit() (float64, int) {
	burst := c.Server.RateLimitBurst
	if burst <= 0 {
		burst = 20
	}
	return c.Server.RateLimitRPS, burst
}

// RedisEnabled reports whether a distributed locker should be used.
func (c *Config) RedisEnabled() bool {
	return strings.TrimSpace(c.Redis.Address) != ""
}

func (c *Config) LockTTL() time.Duration {
	if c.Redis.LockTTLSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Redis.LockTTLSeconds) * time.Second
}

// AMQPEnabled reports whether events go to RabbitMQ.
func (c *Config) AMQPEnabled() bool {
	return strings.TrimSpace(c.AMQP.URL) != ""
}

func (c *Config) SweepInterval() time.Duration {
	if c.Sweeper.IntervalMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.Sweeper.IntervalMinutes) * time.Minute
}

// LogLevel parses Log.Level, falling back to info.
func (c *Config) LogLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level))
	if err != nil || c.Log.Level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// JSONLogs reports whether logs are written as JSON instead of console text.
func (c *Config) JSONLogs() bool {
	return strings.EqualFold(c.Log.Format, "json")
}
