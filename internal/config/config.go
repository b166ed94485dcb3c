package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/AzizElGhezal/NRIS/internal/domain"
)

// Manager loads and validates application configuration using Viper
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/nris/")

	viper.SetEnvPrefix("NRIS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	// Config file is optional; defaults and env vars cover everything.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.database", "nris")
	viper.SetDefault("database.username", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_conns", 25)
	viper.SetDefault("database.min_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("database.conn_max_idle_time", "10m")
	viper.SetDefault("database.migrations_path", "migrations")

	// Registry store defaults
	viper.SetDefault("store.driver", "postgres")
	viper.SetDefault("store.sqlite_path", "data/registry.db")

	// Extraction defaults
	viper.SetDefault("extraction.high_confidence", 0.75)
	viper.SetDefault("extraction.low_confidence", 0.40)
	viper.SetDefault("extraction.min_text_len", 100)
	viper.SetDefault("extraction.allow_alphanumeric_mrn", false)

	// Import defaults
	viper.SetDefault("import.workers", 4)
	viper.SetDefault("import.rate_per_second", 2.0)
	viper.SetDefault("import.burst", 5)

	// Thresholds defaults
	viper.SetDefault("thresholds.source", "local")
	viper.SetDefault("thresholds.remote_url", "")
	viper.SetDefault("thresholds.remote_timeout", "10s")
	viper.SetDefault("thresholds.cache_size", 16)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch config.Store.Driver {
	case "postgres":
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if config.Database.Username == "" {
			return fmt.Errorf("database username is required")
		}
	case "sqlite":
		if config.Store.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required")
		}
	default:
		return fmt.Errorf("unknown store driver: %s", config.Store.Driver)
	}

	if config.Extraction.HighConfidence <= config.Extraction.LowConfidence {
		return fmt.Errorf("extraction confidence cut points are unordered")
	}
	if config.Extraction.MinTextLen <= 0 {
		return fmt.Errorf("extraction min_text_len must be positive")
	}

	if config.Import.Workers <= 0 {
		return fmt.Errorf("import workers must be positive")
	}

	switch config.Thresholds.Source {
	case "local":
	case "remote":
		if config.Thresholds.RemoteURL == "" {
			return fmt.Errorf("remote threshold URL is required")
		}
	default:
		return fmt.Errorf("unknown thresholds source: %s", config.Thresholds.Source)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// ThresholdSet materializes the configured threshold overrides on top
// of the laboratory baseline for the local provider.
func (m *Manager) ThresholdSet() *domain.ThresholdSet {
	set := domain.DefaultThresholdSet()
	if viper.IsSet("clinical_thresholds") {
		_ = viper.UnmarshalKey("clinical_thresholds", set)
	}
	return set
}
