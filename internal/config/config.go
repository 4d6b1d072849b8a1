package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port        string   `yaml:"port"`
		CORSOrigins []string `yaml:"corsOrigins"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	} `yaml:"log"`
	Auth struct {
		Secret   string `yaml:"secret" validate:"required"`
		TokenTTL string `yaml:"tokenTTL"`
	} `yaml:"auth"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db" validate:"gte=0"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Ledger struct {
		// Backend picks where coin balances live; empty selects the best configured store.
		Backend string `yaml:"backend" validate:"omitempty,oneof=memory redis postgres"`
	} `yaml:"ledger"`
	Questions struct {
		TTL            string `yaml:"ttl"`
		BankFile       string `yaml:"bankFile"`
		ShuffleAnswers bool   `yaml:"shuffleAnswers"`
	} `yaml:"questions"`
	Quiz struct {
		TimeLimit string `yaml:"timeLimit"`
	} `yaml:"quiz"`
	Reconciler struct {
		QueueSize       int    `yaml:"queueSize" validate:"gte=0"`
		MaxRetries      uint64 `yaml:"maxRetries"`
		InitialInterval string `yaml:"initialInterval"`
	} `yaml:"reconciler"`
}

// Load reads YAML config from path. Environment variables override secrets
// and connection strings so they can stay out of the file.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.Secret = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Postgres.URL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate checks the struct tags and cross-field requirements.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	switch c.Ledger.Backend {
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("invalid config: redis ledger needs redis.addr")
		}
	case "postgres":
		if c.Postgres.URL == "" {
			return fmt.Errorf("invalid config: postgres ledger needs postgres.url")
		}
	}
	return nil
}

// LedgerBackend resolves an empty backend to Postgres, then Redis, then memory.
func (c Config) LedgerBackend() string {
	switch {
	case c.Ledger.Backend != "":
		return c.Ledger.Backend
	case c.Postgres.URL != "":
		return "postgres"
	case c.Redis.Addr != "":
		return "redis"
	default:
		return "memory"
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
