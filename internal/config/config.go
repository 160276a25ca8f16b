// Package config loads server settings from defaults, an optional YAML file and
// the environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Database types.
const (
	DatabaseSQLite   = "sqlite"
	DatabasePostgres = "postgres"
	DatabaseMemory   = "memory"
)

type Config struct {
	Port     int            `yaml:"port"`
	LogLevel string         `yaml:"log_level"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	UPI      UPIConfig      `yaml:"upi"`
}

type DatabaseConfig struct {
	// Type is sqlite, postgres or memory.
	Type string `yaml:"type"`
	// URL is a file path for sqlite and a connection string for postgres.
	URL string `yaml:"url"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type UPIConfig struct {
	Currency string `yaml:"currency"`
	Note     string `yaml:"note"`
}

// Default returns the settings used when nothing overrides them.
func Default() *Config {
	return &Config{
		Port:     8080,
		LogLevel: "info",
		Database: DatabaseConfig{
			Type: DatabaseSQLite,
			URL:  "./data/fairshare.db",
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		UPI: UPIConfig{
			Currency: "INR",
			Note:     "FairShare Payment",
		},
	}
}

// Load reads .env if present, then the YAML file named by CONFIG_FILE, then
// the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("unable to read %s: %w", path, err)
	}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return fmt.Errorf("unable to parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	port, err := getEnvInt("PORT", c.Port)
	if err != nil {
		return err
	}
	ttl, err := getEnvDuration("TOKEN_TTL", c.Auth.TokenTTL)
	if err != nil {
		return err
	}

	c.Port = port
	c.LogLevel = getEnvString("LOG_LEVEL", c.LogLevel)
	c.Database.Type = getEnvString("DATABASE_TYPE", c.Database.Type)
	c.Database.URL = getEnvString("DATABASE_URL", c.Database.URL)
	c.Auth.JWTSecret = getEnvString("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.TokenTTL = ttl
	c.UPI.Currency = getEnvString("UPI_CURRENCY", c.UPI.Currency)
	c.UPI.Note = getEnvString("UPI_NOTE", c.UPI.Note)
	return nil
}

// Validate checks settings that would otherwise fail later at startup.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case DatabaseSQLite, DatabasePostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("database url is required for %s", c.Database.Type)
		}
	case DatabaseMemory:
	default:
		return fmt.Errorf("unknown database type %q (want sqlite, postgres or memory)", c.Database.Type)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token ttl must be positive, got %s", c.Auth.TokenTTL)
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) (int, error) {
	if value := os.Getenv(key); value != "" {
		intValue, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid integer for %s: %q (%w)", key, value, err)
		}
		return intValue, nil
	}
	return defaultValue, nil
}
