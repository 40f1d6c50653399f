// Package config loads host settings from an optional YAML file overlaid by environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// Config holds settings shared by the host programs.
type Config struct {
	Log     Log     `yaml:"log"`
	Engine  Engine  `yaml:"engine"`
	HTTP    HTTP    `yaml:"http"`
	Webhook Webhook `yaml:"webhook"`
	Auth    Auth    `yaml:"auth"`
	// RedisURL enables the Redis progress broker when set.
	RedisURL string `yaml:"redisUrl"`
	// DatabaseURL selects the Postgres telemetry store; empty keeps records in memory.
	DatabaseURL string `yaml:"databaseUrl"`
}

// Log configures logrus.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or text
}

// Engine configures the solving engine.
type Engine struct {
	Workers int `yaml:"workers"`
	// ProgressRate caps progress events per second per solve.
	ProgressRate float64 `yaml:"progressRate"`
	// CacheSize bounds the shared approximation cache.
	CacheSize int `yaml:"cacheSize"`
}

// HTTP configures the API server.
type HTTP struct {
	Addr            string        `yaml:"addr"`
	RateLimit       float64       `yaml:"rateLimit"`
	RateBurst       int           `yaml:"rateBurst"`
	MaxBodyBytes    int64         `yaml:"maxBodyBytes"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// Webhook configures continuation deliveries.
type Webhook struct {
	Secret      string        `yaml:"secret"`
	MaxAttempts int           `yaml:"maxAttempts"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// Auth guards the admin endpoints of the API server.
type Auth struct {
	Mode       string `yaml:"mode"` // none or hmac
	HMACSecret string `yaml:"hmacSecret"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Log:    Log{Level: "info", Format: "text"},
		Engine: Engine{Workers: 4, ProgressRate: 10, CacheSize: 1 << 16},
		HTTP: HTTP{
			Addr:            ":8080",
			RateLimit:       20,
			RateBurst:       40,
			MaxBodyBytes:    32 << 20,
			ShutdownTimeout: 10 * time.Second,
		},
		Webhook: Webhook{MaxAttempts: 10, Timeout: 5 * time.Second, Interval: time.Second},
		Auth:    Auth{Mode: "none"},
	}
}

// Load reads path (if non-empty) over the defaults, then applies the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	if c.Engine.Workers <= 0 {
		return fmt.Errorf("engine.workers must be > 0, got %d", c.Engine.Workers)
	}
	if c.Engine.ProgressRate < 0 {
		return fmt.Errorf("engine.progressRate must be >= 0")
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", c.Log.Format)
	}
	if c.Webhook.MaxAttempts <= 0 {
		return fmt.Errorf("webhook.maxAttempts must be > 0")
	}
	switch strings.ToLower(c.Auth.Mode) {
	case "none":
	case "hmac":
		if c.Auth.HMACSecret == "" {
			return fmt.Errorf("auth.hmacSecret is required in hmac mode")
		}
	default:
		return fmt.Errorf("auth.mode must be none or hmac, got %q", c.Auth.Mode)
	}
	return nil
}

type lookup func(string) (string, bool)

func (c *Config) applyEnv(env lookup) error {
	str := func(key string, dst *string) {
		if v, ok := env(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("VRP_LOG_LEVEL", &c.Log.Level)
	str("VRP_LOG_FORMAT", &c.Log.Format)
	str("REDIS_URL", &c.RedisURL)
	str("DATABASE_URL", &c.DatabaseURL)
	str("WEBHOOK_SECRET", &c.Webhook.Secret)
	str("AUTH_MODE", &c.Auth.Mode)
	str("AUTH_HMAC_SECRET", &c.Auth.HMACSecret)
	if v, ok := env("PORT"); ok && v != "" {
		c.HTTP.Addr = ":" + v
	}

	ints := map[string]*int{
		"VRP_WORKERS":          &c.Engine.Workers,
		"VRP_CACHE_SIZE":       &c.Engine.CacheSize,
		"VRP_RATE_BURST":       &c.HTTP.RateBurst,
		"WEBHOOK_MAX_ATTEMPTS": &c.Webhook.MaxAttempts,
	}
	for key, dst := range ints {
		if v, ok := env(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("env %s: %w", key, err)
			}
			*dst = n
		}
	}
	floats := map[string]*float64{
		"VRP_PROGRESS_RATE": &c.Engine.ProgressRate,
		"VRP_RATE_LIMIT":    &c.HTTP.RateLimit,
	}
	for key, dst := range floats {
		if v, ok := env(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("env %s: %w", key, err)
			}
			*dst = f
		}
	}
	return nil
}
