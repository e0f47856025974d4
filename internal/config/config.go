// Package config содержит логику чтения конфигурации маркетплейса.
package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Виды хранилища данных.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config содержит параметры конфигурации маркетплейса.
type Config struct {
	RunAddress  string        `env:"RUN_ADDRESS"`
	DatabaseURI string        `env:"DATABASE_URI"`
	Storage     string        `env:"STORAGE"`
	AuthSecret  string        `env:"AUTH_SECRET"`
	TokenTTL    time.Duration `env:"TOKEN_TTL"`
	LogLevel    string        `env:"LOG_LEVEL"`

	AdminUsername string `env:"ADMIN_USERNAME"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
	AdminEmail    string `env:"ADMIN_EMAIL"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	envCfg := Config{}
	if err := env.Parse(&envCfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg := &Config{}

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.Storage, "s", "", "storage kind: memory or postgres")
	flag.StringVar(&cfg.AuthSecret, "k", "", "secret key for session tokens")
	flag.DurationVar(&cfg.TokenTTL, "t", 24*time.Hour, "session token lifetime")
	flag.StringVar(&cfg.LogLevel, "l", "info", "log level")

	flag.Parse()

	override(&cfg.RunAddress, envCfg.RunAddress)
	override(&cfg.DatabaseURI, envCfg.DatabaseURI)
	override(&cfg.Storage, envCfg.Storage)
	override(&cfg.AuthSecret, envCfg.AuthSecret)
	override(&cfg.LogLevel, envCfg.LogLevel)
	if envCfg.TokenTTL != 0 {
		cfg.TokenTTL = envCfg.TokenTTL
	}

	cfg.AdminUsername = envCfg.AdminUsername
	cfg.AdminPassword = envCfg.AdminPassword
	cfg.AdminEmail = envCfg.AdminEmail

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.Storage == "" {
		cfg.Storage = StorageMemory
		if cfg.DatabaseURI != "" {
			cfg.Storage = StoragePostgres
		}
	}

	return cfg, nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate проверяет согласованность параметров.
func (c *Config) Validate() error {
	switch c.Storage {
	case StorageMemory:
	case StoragePostgres:
		if c.DatabaseURI == "" {
			return errors.New("postgres storage requires DATABASE_URI")
		}
	default:
		return fmt.Errorf("unknown storage kind %q", c.Storage)
	}

	if c.TokenTTL <= 0 {
		return errors.New("token TTL must be positive")
	}
	if c.AdminUsername != "" && c.AdminPassword == "" {
		return errors.New("ADMIN_PASSWORD is required when ADMIN_USERNAME is set")
	}

	return nil
}
