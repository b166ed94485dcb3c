package domain

import "time"

// Config is the complete application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Store      StoreConfig      `mapstructure:"store"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Import     ImportConfig     `mapstructure:"import"`
	Thresholds ThresholdsConfig `mapstructure:"thresholds"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// StoreConfig selects the registry store backend.
type StoreConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver string `mapstructure:"driver"`
	// SQLitePath is the database file used when Driver is "sqlite".
	SQLitePath string `mapstructure:"sqlite_path"`
}

// ExtractionConfig holds the tunable extraction cut points.
type ExtractionConfig struct {
	// HighConfidence is the weighted-coverage floor for the HIGH tier.
	HighConfidence float64 `mapstructure:"high_confidence"`
	// LowConfidence is the weighted-coverage floor below which the
	// tier is LOW even when all core fields extracted.
	LowConfidence float64 `mapstructure:"low_confidence"`
	// MinTextLen is the minimum plausible length of parseable report
	// text; shorter inputs get a non-text-source warning.
	MinTextLen int `mapstructure:"min_text_len"`
	// AllowAlphanumericMRN relaxes the digits-only MRN rule.
	AllowAlphanumericMRN bool `mapstructure:"allow_alphanumeric_mrn"`
}

// ImportConfig holds batch import configuration
type ImportConfig struct {
	Workers       int     `mapstructure:"workers"`
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	Burst         int     `mapstructure:"burst"`
}

// ThresholdsConfig selects and tunes the threshold provider.
type ThresholdsConfig struct {
	// Source is "local" (config-backed) or "remote" (HTTP provider).
	Source        string        `mapstructure:"source"`
	RemoteURL     string        `mapstructure:"remote_url"`
	RemoteTimeout time.Duration `mapstructure:"remote_timeout"`
	CacheSize     int           `mapstructure:"cache_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
