/*
Package config manages TOML config for the censor service.
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
)

// Store kinds accepted in [store] kind.
const (
	StoreMemory = "memory"
	StoreSQL    = "sql"
	StoreRedis  = "redis"
	StoreREST   = "rest"
)

// Config holds the entire config structure
type Config struct {
	Server ServerConfig `toml:"server"`
	Filter FilterConfig `toml:"filter"`
	Cache  CacheConfig  `toml:"cache"`
	Store  StoreConfig  `toml:"store"`
	Auth   AuthConfig   `toml:"auth"`
	Log    LogConfig    `toml:"log"`
}

// ServerConfig has HTTP listener options.
type ServerConfig struct {
	Addr            string   `toml:"addr"`
	ReadTimeout     Duration `toml:"read_timeout"`
	WriteTimeout    Duration `toml:"write_timeout"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
	MaxBodyBytes    int64    `toml:"max_body_bytes"`
}

// FilterConfig holds matching thresholds and input limits.
type FilterConfig struct {
	TriggerThreshold     float64  `toml:"trigger_threshold"`
	ProfanityThreshold   float64  `toml:"profanity_threshold"`
	MaxMessageSize       int      `toml:"max_message_size"`
	MaxTriggerWordLength int      `toml:"max_trigger_word_length"`
	MaxTriggerWords      int      `toml:"max_trigger_words"`
	MaxBatchSize         int      `toml:"max_batch_size"`
	Lexicon              []string `toml:"lexicon"`
}

// CacheConfig holds preference cache options.
type CacheConfig struct {
	Disabled      bool     `toml:"disabled"`
	TTL           Duration `toml:"ttl"`
	MaxBytes      int      `toml:"max_bytes"`
	SweepInterval Duration `toml:"sweep_interval"`
}

// StoreConfig selects and configures the preference store.
type StoreConfig struct {
	Kind    string   `toml:"kind"`
	Timeout Duration `toml:"timeout"`

	SQLDSN     string `toml:"sql_dsn"`
	SQLTable   string `toml:"sql_table"`
	SQLMigrate bool   `toml:"sql_migrate"`

	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	RedisPrefix   string `toml:"redis_prefix"`

	RESTURL      string `toml:"rest_url"`
	RESTAPIKey   string `toml:"rest_api_key"`
	RESTTable    string `toml:"rest_table"`
	RESTIDColumn string `toml:"rest_id_column"`
}

// AuthConfig holds bearer token verification options.
type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
	Issuer    string `toml:"issuer"`
	Audience  string `toml:"audience"`
}

// LogConfig holds logger options.
type LogConfig struct {
	Level     string `toml:"level"`
	Format    string `toml:"format"`
	Caller    bool   `toml:"caller"`
	Timestamp bool   `toml:"timestamp"`
}

// Duration is a time.Duration written as "5s" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     Duration{10 * time.Second},
			WriteTimeout:    Duration{15 * time.Second},
			ShutdownTimeout: Duration{10 * time.Second},
			MaxBodyBytes:    1 << 20,
		},
		Filter: FilterConfig{
			TriggerThreshold:     80,
			ProfanityThreshold:   80,
			MaxMessageSize:       16 << 10,
			MaxTriggerWordLength: 255,
			MaxTriggerWords:      100,
			MaxBatchSize:         200,
		},
		Cache: CacheConfig{
			TTL:           Duration{5 * time.Minute},
			MaxBytes:      8 << 20,
			SweepInterval: Duration{time.Minute},
		},
		Store: StoreConfig{
			Kind:         StoreMemory,
			Timeout:      Duration{5 * time.Second},
			SQLTable:     "user_preferences",
			RedisAddr:    "127.0.0.1:6379",
			RedisPrefix:  "censor:prefs:",
			RESTTable:    "users",
			RESTIDColumn: "user_id",
		},
		Log: LogConfig{
			Level:     "info",
			Format:    "text",
			Timestamp: true,
		},
	}
}

// LoadConfig loads from a TOML file on top of the defaults, then applies
// CENSOR_* environment overrides and validates the result.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	if configPath != "" {
		md, err := toml.DecodeFile(configPath, cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", configPath, err)
		}
		for _, key := range md.Undecoded() {
			log.Warnf("Unknown config key %q in %s", key.String(), configPath)
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes cfg as TOML.
func SaveConfig(cfg *Config, configPath string) error {
	f, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// ApplyEnv overrides secrets and deployment settings from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set("CENSOR_ADDR", &c.Server.Addr)
	set("CENSOR_STORE_KIND", &c.Store.Kind)
	set("CENSOR_SQL_DSN", &c.Store.SQLDSN)
	set("CENSOR_REDIS_ADDR", &c.Store.RedisAddr)
	set("CENSOR_REDIS_PASSWORD", &c.Store.RedisPassword)
	set("CENSOR_REST_URL", &c.Store.RESTURL)
	set("CENSOR_REST_API_KEY", &c.Store.RESTAPIKey)
	set("CENSOR_JWT_SECRET", &c.Auth.JWTSecret)
	set("CENSOR_LOG_LEVEL", &c.Log.Level)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("config: server.addr is required")
	}
	if c.Filter.TriggerThreshold <= 0 || c.Filter.TriggerThreshold > 100 {
		return fmt.Errorf("config: filter.trigger_threshold must be in (0, 100], got %v", c.Filter.TriggerThreshold)
	}
	if c.Filter.ProfanityThreshold <= 0 || c.Filter.ProfanityThreshold > 100 {
		return fmt.Errorf("config: filter.profanity_threshold must be in (0, 100], got %v", c.Filter.ProfanityThreshold)
	}
	if c.Filter.MaxMessageSize <= 0 {
		return errors.New("config: filter.max_message_size must be positive")
	}
	if c.Filter.MaxTriggerWords <= 0 {
		return errors.New("config: filter.max_trigger_words must be positive")
	}
	if c.Filter.MaxBatchSize <= 0 {
		return errors.New("config: filter.max_batch_size must be positive")
	}
	for _, w := range c.Filter.Lexicon {
		if strings.TrimSpace(w) == "" {
			return errors.New("config: filter.lexicon contains a blank entry")
		}
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.level: %w", err)
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("config: auth.jwt_secret is required (or CENSOR_JWT_SECRET)")
	}

	switch c.Store.Kind {
	case StoreMemory:
	case StoreSQL:
		if c.Store.SQLDSN == "" {
			return errors.New("config: store.sql_dsn is required for sql store")
		}
	case StoreRedis:
		if c.Store.RedisAddr == "" {
			return errors.New("config: store.redis_addr is required for redis store")
		}
	case StoreREST:
		if c.Store.RESTURL == "" || c.Store.RESTAPIKey == "" {
			return errors.New("config: store.rest_url and store.rest_api_key are required for rest store")
		}
	default:
		return fmt.Errorf("config: unknown store kind %q", c.Store.Kind)
	}
	return nil
}
