// Package config loads the YAML configuration cmd/tlsport-gateway accepts
// via --config: tls_port tuning plus the optional database/redis sections
// that back the audit and metrics observability backends.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the gateway's complete configuration surface.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	TLSPort  TLSPortConfig  `yaml:"tls_port"`
}

// TLSPortConfig holds settings for the TLS record pipeline gateway.
type TLSPortConfig struct {
	AppBufferSizeKB  int `yaml:"app_buffer_size_kb"`  // cap on a single outbound fragment, min(TLS app buffer, 16 KiB)
	CryptoWorkers    int `yaml:"crypto_workers"`      // shared crypto pool goroutine count
	MaxFrameLengthKB int `yaml:"max_frame_length_kb"` // loaded and defaulted but not read by the gateway; the Framer's bound is fixed at 2^14+256 bytes
}

// DatabaseConfig holds the optional PostgreSQL audit sink settings. An
// empty Host means "no audit sink": the gateway runs without one.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// RedisConfig holds the optional Redis metrics reporter settings. An empty
// Host means "no metrics reporter": the gateway runs without one.
type RedisConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	OutputFile string `yaml:"output_file"` // Log file path (empty = stdout)
	MaxSizeMB  int    `yaml:"max_size_mb"` // Max log file size before rotation
	MaxBackups int    `yaml:"max_backups"` // Max old log files to keep
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.setDefaults()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default values for optional config fields
func (c *Config) setDefaults() {
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}

	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = 5 * time.Minute
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 100
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 3
	}

	if c.TLSPort.AppBufferSizeKB == 0 {
		c.TLSPort.AppBufferSizeKB = 16
	}
	if c.TLSPort.CryptoWorkers == 0 {
		c.TLSPort.CryptoWorkers = 4
	}
	if c.TLSPort.MaxFrameLengthKB == 0 {
		c.TLSPort.MaxFrameLengthKB = 16 + 1 // 2^14 + 256 bytes, rounded up to whole KiB
	}
}

// validate checks if configuration is valid. Database and Redis are only
// validated when their Host is set: both backends are optional, and an
// absent Host is how a config opts out of audit/metrics entirely.
func (c *Config) validate() error {
	if c.Database.Host != "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required when database.host is set")
		}
		if c.Database.DBName == "" {
			return fmt.Errorf("database name is required when database.host is set")
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}

	if c.TLSPort.AppBufferSizeKB < 1 || c.TLSPort.AppBufferSizeKB > 16 {
		return fmt.Errorf("invalid tls_port app_buffer_size_kb: %d", c.TLSPort.AppBufferSizeKB)
	}
	if c.TLSPort.CryptoWorkers < 1 {
		return fmt.Errorf("invalid tls_port crypto_workers: %d", c.TLSPort.CryptoWorkers)
	}

	return nil
}

// GenerateDefaultConfig creates a default config file for a fresh gateway
// deployment, with audit/metrics left disabled (empty hosts) until an
// operator opts in.
func GenerateDefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Port:    5432,
			SSLMode: "disable",
		},
		Redis: RedisConfig{
			Port: 6379,
			TTL:  5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:      "info",
			OutputFile: "",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
		TLSPort: TLSPortConfig{
			AppBufferSizeKB:  16,
			CryptoWorkers:    4,
			MaxFrameLengthKB: 17,
		},
	}
}

// WriteConfigFile writes a config struct to a YAML file
func WriteConfigFile(config *Config, path string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
