// Package config resolves CLI settings from an optional dotenv file and the
// process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvDB          = "LIFETIMES_DB"
	EnvKVBackend   = "LIFETIMES_KV_BACKEND"
	EnvPostgresDSN = "LIFETIMES_POSTGRES_DSN"
	EnvLogLevel    = "LIFETIMES_LOG_LEVEL"
	EnvFormat      = "LIFETIMES_FORMAT"
)

// Key-value backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// DefaultEnvFile is loaded when present and no other file is named.
const DefaultEnvFile = ".env"

// Config holds resolved settings. Flags override these after Load.
type Config struct {
	DB          string
	KVBackend   string
	PostgresDSN string
	LogLevel    string
	Format      string
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Config {
	return Config{
		DB:        "lifetimes.db",
		KVBackend: BackendSQLite,
		LogLevel:  "info",
		Format:    "text",
	}
}

// Load reads envFile into the environment, without overriding variables
// already set, and then resolves Config from the environment. A missing
// DefaultEnvFile is not an error; a missing explicitly named file is.
func Load(envFile string) (Config, error) {
	path := envFile
	if path == "" {
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if envFile != "" || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv resolves Config through getenv.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Defaults()
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&cfg.DB, EnvDB)
	set(&cfg.KVBackend, EnvKVBackend)
	set(&cfg.PostgresDSN, EnvPostgresDSN)
	set(&cfg.LogLevel, EnvLogLevel)
	set(&cfg.Format, EnvFormat)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerated settings.
func (c Config) Validate() error {
	switch c.KVBackend {
	case BackendMemory, BackendSQLite, BackendPostgres:
	default:
		return fmt.Errorf("%s: unknown backend %q (expected memory, sqlite or postgres)", EnvKVBackend, c.KVBackend)
	}
	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%s: unknown format %q (expected text or json)", EnvFormat, c.Format)
	}
	return nil
}
