package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Stripe     StripeConfig     `mapstructure:"stripe"`
	Payments   PaymentsConfig   `mapstructure:"payments"`
	Reconciler ReconcilerConfig `mapstructure:"reconciler"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type StripeConfig struct {
	SecretKey        string        `mapstructure:"secret_key"`
	PublishableKey   string        `mapstructure:"publishable_key"`
	WebhookSecret    string        `mapstructure:"webhook_secret"`
	Environment      string        `mapstructure:"environment"` // test, live
	WebhookTolerance time.Duration `mapstructure:"webhook_tolerance"`
}

type PaymentsConfig struct {
	Currency        string        `mapstructure:"currency"`
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"`
	EventCacheTTL   time.Duration `mapstructure:"event_cache_ttl"`
}

type ReconcilerConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	GracePeriod time.Duration `mapstructure:"grace_period"`
	BatchSize   int           `mapstructure:"batch_size"`
	LockTTL     time.Duration `mapstructure:"lock_ttl"`
	MetricsAddr string        `mapstructure:"metrics_addr"` // empty disables the worker's /metrics listener
}

type StorageConfig struct {
	Bucket   string `mapstructure:"bucket"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"` // optional, for S3-compatible stores
}

// Enabled reports whether image cleanup against object storage is configured.
func (s StorageConfig) Enabled() bool {
	return s.Bucket != ""
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// LoadDotEnv loads a .env file into the process environment when present.
// Variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: DPAY_.
// Nested keys use underscore: DPAY_DATABASE_HOST, DPAY_STRIPE_WEBHOOK_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "donations")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "donation-payments")
	v.SetDefault("stripe.secret_key", "")
	v.SetDefault("stripe.publishable_key", "")
	v.SetDefault("stripe.webhook_secret", "")
	v.SetDefault("stripe.environment", "test")
	v.SetDefault("stripe.webhook_tolerance", "5m")
	v.SetDefault("payments.currency", "inr")
	v.SetDefault("payments.provider_timeout", "15s")
	v.SetDefault("payments.event_cache_ttl", "72h")
	v.SetDefault("reconciler.interval", "5m")
	v.SetDefault("reconciler.grace_period", "10m")
	v.SetDefault("reconciler.batch_size", 100)
	v.SetDefault("reconciler.lock_ttl", "4m")
	v.SetDefault("reconciler.metrics_addr", ":9091")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("DPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional; env vars can suffice.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// ValidateAPI checks the settings the HTTP server cannot start without.
func (c *Config) ValidateAPI() error {
	var missing []string
	if c.JWT.Secret == "" {
		missing = append(missing, "jwt.secret")
	}
	if c.Stripe.SecretKey == "" {
		missing = append(missing, "stripe.secret_key")
	}
	if c.Stripe.WebhookSecret == "" {
		missing = append(missing, "stripe.webhook_secret")
	}
	if len(c.Payments.Currency) != 3 {
		missing = append(missing, "payments.currency (3-letter code)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return nil
}
