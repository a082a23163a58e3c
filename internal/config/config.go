package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

const (
	defaultDSN         = "host=localhost user=postgres password=postgres dbname=gym port=5432 sslmode=disable"
	defaultCORSOrigins = "http://localhost:3000"

	// DefaultLocation is where service sales are booked when the request names none.
	DefaultLocation = "Villas del Parque"
)

type Config struct {
	HTTPPort        string        `yaml:"http_port"`
	DatabaseDSN     string        `yaml:"database_dsn"`
	JWTSecret       string        `yaml:"jwt_secret"`
	JWTTTL          time.Duration `yaml:"jwt_ttl"`
	CORSOrigins     string        `yaml:"cors_allowed_origins"`
	DefaultLocation string        `yaml:"default_location"`
	Timezone        string        `yaml:"timezone"`

	RedisAddr      string        `yaml:"redis_addr"` // empty disables idempotency caching
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl"`

	KafkaBrokers []string `yaml:"kafka_brokers"` // empty disables event publishing
	KafkaTopic   string   `yaml:"kafka_topic"`

	StockWatchSpec string `yaml:"stock_watch_spec"`

	LogMode string `yaml:"log_mode"` // development | production
	LogFile string `yaml:"log_file"`
}

func defaults() *Config {
	return &Config{
		HTTPPort:        "8080",
		DatabaseDSN:     defaultDSN,
		JWTTTL:          30 * 24 * time.Hour,
		CORSOrigins:     defaultCORSOrigins,
		DefaultLocation: DefaultLocation,
		Timezone:        "America/Argentina/Buenos_Aires",
		IdempotencyTTL:  24 * time.Hour,
		KafkaTopic:      "gym.sales",
		StockWatchSpec:  "@every 10m",
		LogMode:         "development",
	}
}

// Load reads CONFIG_FILE (optional) then environment variables and exits on
// an invalid result.
func Load() *Config {
	cfg, err := LoadFrom(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("[FATAL] %v", err)
	}

	if cfg.DatabaseDSN == defaultDSN {
		log.Println("[WARN] DATABASE_DSN is using the default value, set your own Postgres connection for production.")
	}
	if cfg.CORSOrigins == defaultCORSOrigins {
		log.Println("[WARN] CORS_ALLOWED_ORIGINS is using the default value, set your own domain for production.")
	}
	return cfg
}

// LoadFrom builds the config from an optional YAML file overlaid by env.
func LoadFrom(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	cfg.DatabaseDSN = getEnv("DATABASE_DSN", cfg.DatabaseDSN)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.CORSOrigins = getEnv("CORS_ALLOWED_ORIGINS", cfg.CORSOrigins)
	cfg.DefaultLocation = strings.TrimSpace(getEnv("DEFAULT_LOCATION", cfg.DefaultLocation))
	cfg.Timezone = getEnv("TIMEZONE", cfg.Timezone)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.KafkaTopic = getEnv("KAFKA_TOPIC", cfg.KafkaTopic)
	cfg.StockWatchSpec = getEnv("STOCK_WATCH_SPEC", cfg.StockWatchSpec)
	cfg.LogMode = getEnv("LOG_MODE", cfg.LogMode)
	cfg.LogFile = getEnv("LOG_FILE", cfg.LogFile)

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = splitCSV(v)
	}
	if v := os.Getenv("JWT_TTL"); v != "" {
		d, err := cast.ToDurationE(v)
		if err != nil {
			return nil, fmt.Errorf("JWT_TTL: %w", err)
		}
		cfg.JWTTTL = d
	}
	if v := os.Getenv("IDEMPOTENCY_TTL"); v != "" {
		d, err := cast.ToDurationE(v)
		if err != nil {
			return nil, fmt.Errorf("IDEMPOTENCY_TTL: %w", err)
		}
		cfg.IdempotencyTTL = d
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set, it is required in production")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters")
	}
	if c.DefaultLocation == "" {
		return errors.New("DEFAULT_LOCATION must not be empty")
	}
	if c.JWTTTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
