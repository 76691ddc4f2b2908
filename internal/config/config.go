// Package config provides configuration utilities for the application.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/copperpot/copperpot/internal/bus"
)

// Config is the resolved application configuration.
type Config struct {
	DatabasePath string
	UserID       string
	Logging      Logging
	Bus          bus.Config
}

// Logging holds the logging configuration.
type Logging struct {
	Level  string
	Format string
}

// FromViper builds a Config from the current viper state, applying defaults
// for anything unset.
func FromViper() Config {
	cfg := Config{
		DatabasePath: viper.GetString("database.path"),
		UserID:       viper.GetString("user.id"),
		Logging: Logging{
			Level:  viper.GetString("logging.level"),
			Format: viper.GetString("logging.format"),
		},
		Bus: bus.Config{
			Type:              viper.GetString("bus.type"),
			ChannelBufferSize: viper.GetInt("bus.channel_buffer_size"),
			NATSUrl:           viper.GetString("bus.nats_url"),
			NATSToken:         viper.GetString("bus.nats_token"),
		},
	}

	if cfg.DatabasePath == "" {
		cfg.DatabasePath = DefaultDatabasePath()
	}
	cfg.DatabasePath = ExpandPath(cfg.DatabasePath)

	if cfg.UserID == "" {
		cfg.UserID = "default"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	return cfg
}

// DefaultDatabasePath is where the database lives when unconfigured.
func DefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "copperpot.db"
	}
	return filepath.Join(home, ".local", "share", "copperpot", "copperpot.db")
}

// ExpandPath expands ~ and environment variables in a file path.
// It handles both ~ for home directory and $VAR style environment variables.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}
