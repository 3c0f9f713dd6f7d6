// Package config loads service configuration from the environment and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultAccessTTL   = 15 * time.Minute
	defaultRefreshTTL  = 7 * 24 * time.Hour
	defaultEffectLimit = 30 * time.Second
	defaultCacheTTL    = 10 * time.Minute
)

// Config holds application configuration.
type Config struct {
	// HTTPAddr is the REST listener address.
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr serves the gRPC health service; empty disables it.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN. Empty runs on in-memory stores.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	JWTSecret     string `mapstructure:"JWT_SECRET"`
	JWTIssuer     string `mapstructure:"JWT_ISSUER"`
	JWTAccessTTL  string `mapstructure:"JWT_ACCESS_TTL"`
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	BcryptCost    int    `mapstructure:"BCRYPT_COST"`

	// SideEffectWorkers is the size of the detached task pool.
	SideEffectWorkers int `mapstructure:"SIDE_EFFECT_WORKERS"`
	// SideEffectQueue bounds pending detached tasks; overflow is dropped and logged.
	SideEffectQueue   int    `mapstructure:"SIDE_EFFECT_QUEUE"`
	SideEffectTimeout string `mapstructure:"SIDE_EFFECT_TIMEOUT"`

	CacheMaxEntries int    `mapstructure:"CACHE_MAX_ENTRIES"`
	CacheTTLRaw     string `mapstructure:"CACHE_TTL"`

	RateLimitRPS   int `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int `mapstructure:"RATE_LIMIT_BURST"`
	// CORSOrigins is a comma-separated allow list; one "*" wildcard per entry.
	CORSOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	// AMQPURL enables the principal.registered publisher when set.
	AMQPURL      string `mapstructure:"AMQP_URL"`
	AMQPExchange string `mapstructure:"AMQP_EXCHANGE"`

	// FederatedSecret guards the federated login callback; empty disables it.
	FederatedSecret string `mapstructure:"FEDERATED_SECRET"`

	AdminEmail    string `mapstructure:"ADMIN_EMAIL"`
	AdminPassword string `mapstructure:"ADMIN_PASSWORD"`

	Env      string `mapstructure:"APP_ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
}

// Load reads .env (if present), then builds and validates Config from the environment.
// Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // missing .env is fine

	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", ":9090")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "projecttracker")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("SIDE_EFFECT_WORKERS", 4)
	v.SetDefault("SIDE_EFFECT_QUEUE", 256)
	v.SetDefault("SIDE_EFFECT_TIMEOUT", "30s")
	v.SetDefault("CACHE_MAX_ENTRIES", 1000)
	v.SetDefault("CACHE_TTL", "10m")
	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:*,http://127.0.0.1:*")
	v.SetDefault("AMQP_URL", "")
	v.SetDefault("AMQP_EXCHANGE", "projecttracker.events")
	v.SetDefault("FEDERATED_SECRET", "")
	v.SetDefault("ADMIN_EMAIL", "")
	v.SetDefault("ADMIN_PASSWORD", "")
	v.SetDefault("APP_ENV", "prod")
	v.SetDefault("LOG_LEVEL", "info")
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if c.RefreshTTL() <= c.AccessTTL() {
		return errors.New("config: JWT_REFRESH_TTL must be longer than JWT_ACCESS_TTL")
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = 10
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if c.SideEffectWorkers <= 0 {
		c.SideEffectWorkers = 1
	}
	if c.SideEffectQueue <= 0 {
		c.SideEffectQueue = 1
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		return errors.New("config: ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	return nil
}

// AccessTTL parses JWTAccessTTL. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return parseDuration(c.JWTAccessTTL, defaultAccessTTL)
}

// RefreshTTL parses JWTRefreshTTL. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return parseDuration(c.JWTRefreshTTL, defaultRefreshTTL)
}

// SideEffectTimeoutDuration bounds every detached task.
func (c *Config) SideEffectTimeoutDuration() time.Duration {
	return parseDuration(c.SideEffectTimeout, defaultEffectLimit)
}

// CacheTTL is the time-to-live shared by every cache region.
func (c *Config) CacheTTL() time.Duration {
	return parseDuration(c.CacheTTLRaw, defaultCacheTTL)
}

// AllowedOrigins splits CORSOrigins, dropping blanks.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// IsDev reports whether the service runs in the dev environment.
func (c *Config) IsDev() bool {
	return c != nil && c.Env == "dev"
}

func parseDuration(raw string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || d <= 0 {
		return def
	}
	return d
}
