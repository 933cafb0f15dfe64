// Package config loads and saves the application configuration, stored as
// YAML under the user's config directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/julianstephens/evertodo/internal/constants"
)

// StorageConfig selects and parameterizes the persistence backend.
type StorageConfig struct {
	// Backend is "sqlite" or "postgres". The engine never re-checks this
	// after startup; the store is constructed once.
	Backend string `mapstructure:"backend" yaml:"backend"`

	// Path is the sqlite database file. Ignored for postgres.
	Path string `mapstructure:"path" yaml:"path"`

	// DSN is the postgres connection string. Leave empty to read it from
	// the system keyring instead; inline passwords are rejected.
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// ViewConfig holds window sizes for the date-ranged views.
type ViewConfig struct {
	UpcomingDays int `mapstructure:"upcoming_days" yaml:"upcoming_days"`
	OverdueDays  int `mapstructure:"overdue_days" yaml:"overdue_days"`
}

// Config is the top-level application configuration.
type Config struct {
	// Owner scopes every read and write. The guest/local backend uses
	// constants.LocalOwner; an authenticated setup puts the account ID here.
	Owner   string        `mapstructure:"owner" yaml:"owner"`
	Debug   bool          `mapstructure:"debug" yaml:"debug"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Views   ViewConfig    `mapstructure:"views" yaml:"views"`
}

// ConfigDir returns the application config directory, expanding the leading
// tilde of the default.
func ConfigDir() string {
	dir := constants.DefaultConfigDir
	if strings.HasPrefix(dir, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "."
		}
		dir = filepath.Join(home, dir[1:])
	}
	return dir
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DefaultDBPath returns the default sqlite database location.
func DefaultDBPath() string {
	return filepath.Join(ConfigDir(), "evertodo.db")
}

func defaultConfig() *Config {
	return &Config{
		Owner: constants.LocalOwner,
		Storage: StorageConfig{
			Backend: "sqlite",
			Path:    DefaultDBPath(),
		},
		Views: ViewConfig{
			UpcomingDays: constants.DefaultUpcomingDays,
			OverdueDays:  constants.DefaultOverdueDays,
		},
	}
}

// Load reads the configuration from the given YAML file. A missing file
// yields the defaults rather than an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("owner", constants.LocalOwner)
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.path", DefaultDBPath())
	v.SetDefault("views.upcoming_days", constants.DefaultUpcomingDays)
	v.SetDefault("views.overdue_days", constants.DefaultOverdueDays)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	switch cfg.Storage.Backend {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	if cfg.Views.UpcomingDays <= 0 {
		cfg.Views.UpcomingDays = constants.DefaultUpcomingDays
	}
	if cfg.Views.OverdueDays <= 0 {
		cfg.Views.OverdueDays = constants.DefaultOverdueDays
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file at path, creating parent
// directories if needed.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("owner", cfg.Owner)
	v.Set("debug", cfg.Debug)
	v.Set("storage", cfg.Storage)
	v.Set("views", cfg.Views)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}
