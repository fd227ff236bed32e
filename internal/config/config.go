// Package config provides configuration management using Viper.
// It loads configuration from environment variables, .env files, and config files.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerPort                = 8080
	defaultServerHost                = "0.0.0.0"
	defaultReadTimeout               = 30 * time.Second
	defaultWriteTimeout              = 30 * time.Second
	defaultDatabasePath              = "./data/stories.db"
	defaultDatabaseConnectionTimeout = 5 * time.Second
	defaultLogLevel                  = "info"
	defaultLogPretty                 = false
	defaultItemDuration              = 30 * time.Second
	defaultMinItemDuration           = 1 * time.Second
	defaultSampleInterval            = 100 * time.Millisecond
	defaultViewerGracePeriod         = 2 * time.Minute
	defaultViewerCleanupInterval     = 30 * time.Second
	defaultSweepInterval             = 15 * time.Minute
	defaultRetention                 = 24 * time.Hour
	envPrefix                        = "SAMVERA"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Playback PlaybackConfig
	Stories  StoriesConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Path              string
	ConnectionTimeout time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Pretty bool
}

// PlaybackConfig holds story playback engine configuration
type PlaybackConfig struct {
	// DefaultItemDuration is used when a story item carries no duration
	DefaultItemDuration time.Duration
	// MinItemDuration floors item durations so a zero or negative value
	// can never cause an instant-skip loop
	MinItemDuration time.Duration
	// SampleInterval is the cadence at which progress is recomputed
	SampleInterval time.Duration
	// ViewerGracePeriod is how long an untouched viewer session survives
	ViewerGracePeriod time.Duration
	// ViewerCleanupInterval is how often idle viewers are swept
	ViewerCleanupInterval time.Duration
}

// StoriesConfig holds story lifecycle configuration
type StoriesConfig struct {
	// SweepInterval is how often expired stories are purged
	SweepInterval time.Duration
	// Retention is how long an expired story is kept before deletion
	Retention time.Duration
}

// Load reads configuration from .env file, config files, environment variables, and defaults
func Load() (*Config, error) {
	// .env files are optional in production and CI where env vars are set directly
	_ = godotenv.Load() // nolint:errcheck // .env file is optional

	v := viper.New()

	setDefaults(v)

	// Config file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/samvera")

	// Environment variable settings
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.host", defaultServerHost)
	v.SetDefault("server.readtimeout", defaultReadTimeout)
	v.SetDefault("server.writetimeout", defaultWriteTimeout)

	v.SetDefault("database.path", defaultDatabasePath)
	v.SetDefault("database.connectiontimeout", defaultDatabaseConnectionTimeout)

	v.SetDefault("logging.level", defaultLogLevel)
	v.SetDefault("logging.pretty", defaultLogPretty)

	v.SetDefault("playback.defaultitemduration", defaultItemDuration)
	v.SetDefault("playback.minitemduration", defaultMinItemDuration)
	v.SetDefault("playback.sampleinterval", defaultSampleInterval)
	v.SetDefault("playback.viewergraceperiod", defaultViewerGracePeriod)
	v.SetDefault("playback.viewercleanupinterval", defaultViewerCleanupInterval)

	v.SetDefault("stories.sweepinterval", defaultSweepInterval)
	v.SetDefault("stories.retention", defaultRetention)
}

// Validate checks that configuration values are valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("invalid read timeout: %v (must be > 0)", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("invalid write timeout: %v (must be > 0)", c.Server.WriteTimeout)
	}
	if c.Database.ConnectionTimeout <= 0 {
		return fmt.Errorf("invalid database connection timeout: %v (must be > 0)", c.Database.ConnectionTimeout)
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.Logging.Level, strings.Join(validLevels, ", "))
	}

	if c.Playback.MinItemDuration <= 0 {
		return fmt.Errorf("invalid min item duration: %v (must be > 0)", c.Playback.MinItemDuration)
	}
	if c.Playback.DefaultItemDuration < c.Playback.MinItemDuration {
		return fmt.Errorf("invalid default item duration: %v (must be >= min item duration %v)",
			c.Playback.DefaultItemDuration, c.Playback.MinItemDuration)
	}
	if c.Playback.SampleInterval <= 0 {
		return fmt.Errorf("invalid sample interval: %v (must be > 0)", c.Playback.SampleInterval)
	}
	if c.Playback.ViewerGracePeriod <= 0 {
		return fmt.Errorf("invalid viewer grace period: %v (must be > 0)", c.Playback.ViewerGracePeriod)
	}
	if c.Playback.ViewerCleanupInterval <= 0 {
		return fmt.Errorf("invalid viewer cleanup interval: %v (must be > 0)", c.Playback.ViewerCleanupInterval)
	}
	if c.Stories.SweepInterval <= 0 {
		return fmt.Errorf("invalid sweep interval: %v (must be > 0)", c.Stories.SweepInterval)
	}
	if c.Stories.Retention < 0 {
		return fmt.Errorf("invalid retention: %v (must be >= 0)", c.Stories.Retention)
	}

	return nil
}

// contains checks if a string slice contains a specific value
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
