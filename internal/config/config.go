package config

import (
	"os"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("lmis.config")

const (
	defaultDSN         = "host=localhost user=postgres password=postgres dbname=lmis port=5432 sslmode=disable"
	defaultCORSOrigins = "http://localhost:5173"
	minSecretLength    = 32
)

type Config struct {
	HTTPPort     string
	DatabaseDSN  string
	JWTSecret    string
	CORSOrigins  string
	LogLevel     string
	LogFile      string
	SettingsFile string
	TokenTTL     time.Duration
}

// FromEnv reads the configuration from the process environment.
func FromEnv() (*Config, error) {
	cfg := &Config{
		HTTPPort:     getEnv("HTTP_PORT", "8080"),
		DatabaseDSN:  getEnv("DATABASE_DSN", defaultDSN),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		CORSOrigins:  getEnv("CORS_ALLOWED_ORIGINS", defaultCORSOrigins),
		LogLevel:     getEnv("LOG_LEVEL", "<root>=INFO"),
		LogFile:      getEnv("LOG_FILE", ""),
		SettingsFile: getEnv("SETTINGS_FILE", ""),
	}

	ttl, err := time.ParseDuration(getEnv("TOKEN_TTL", "24h"))
	if err != nil {
		return nil, errors.NotValidf("TOKEN_TTL %q", os.Getenv("TOKEN_TTL"))
	}
	if ttl <= 0 {
		return nil, errors.NotValidf("non-positive TOKEN_TTL")
	}
	cfg.TokenTTL = ttl

	if cfg.JWTSecret == "" {
		return nil, errors.NotValidf("empty JWT_SECRET")
	}
	if len(cfg.JWTSecret) < minSecretLength {
		return nil, errors.NotValidf("JWT_SECRET shorter than %d characters", minSecretLength)
	}
	return cfg, nil
}

// Load is FromEnv for process start-up: invalid configuration terminates
// the process.
func Load() *Config {
	cfg, err := FromEnv()
	if err != nil {
		logger.Criticalf("cannot load configuration: %v", err)
		os.Exit(1)
	}

	if cfg.DatabaseDSN == defaultDSN {
		logger.Warningf("DATABASE_DSN uses the default local DSN, set it for production")
	}
	if cfg.CORSOrigins == defaultCORSOrigins {
		logger.Warningf("CORS_ALLOWED_ORIGINS uses the development default, set it for production")
	}
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
