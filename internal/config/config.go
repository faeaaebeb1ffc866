// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Database types
const (
	SQLiteDatabase = "sqlite"
)

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	AppPort     string   `mapstructure:"appport"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`
	Domain      string   `mapstructure:"domain"`

	// Tracking settings
	HeartbeatIntervalSeconds int `mapstructure:"heartbeatintervalseconds"`
	IdleThresholdSeconds     int `mapstructure:"idlethresholdseconds"`
	NavigationPollSeconds    int `mapstructure:"navigationpollseconds"`
	SessionRetentionDays     int `mapstructure:"sessionretentiondays"`

	// File paths
	DatabasePath string `mapstructure:"storagepath"`
	DatabaseName string `mapstructure:"-"` // Derived from other settings
	GeoDBPath    string `mapstructure:"geodbpath"`
	SeedPath     string `mapstructure:"seedpath"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Database settings
	DatabaseType         string `mapstructure:"dbtype"`
	DatabaseMaxOpenConns int    `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int    `mapstructure:"dbmaxidleconns"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		// Set defaults
		v.SetDefault("appname", "vistrail")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("heartbeatintervalseconds", 15)
		v.SetDefault("idlethresholdseconds", 1800)
		v.SetDefault("navigationpollseconds", 1)
		// 0 disables the retention cleanup job.
		v.SetDefault("sessionretentiondays", 0)
		v.SetDefault("storagepath", "storage")
		v.SetDefault("geodbpath", "storage/GeoLite2-Country.mmdb")
		v.SetDefault("seedpath", "storage/seed.yml")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("dbtype", SQLiteDatabase)
		v.SetDefault("dbmaxopenconns", 0)
		v.SetDefault("dbmaxidleconns", 0)

		// Bind environment variables
		v.BindEnv("appname", "VISTRAIL_APP_NAME")
		v.BindEnv("appport", "VISTRAIL_APP_PORT")
		v.BindEnv("environment", "VISTRAIL_ENV")
		v.BindEnv("loglevel", "VISTRAIL_LOG_LEVEL")
		v.BindEnv("domain", "VISTRAIL_DOMAIN")
		v.BindEnv("heartbeatintervalseconds", "VISTRAIL_HEARTBEAT_INTERVAL_SECONDS")
		v.BindEnv("idlethresholdseconds", "VISTRAIL_IDLE_THRESHOLD_SECONDS")
		v.BindEnv("navigationpollseconds", "VISTRAIL_NAVIGATION_POLL_SECONDS")
		v.BindEnv("sessionretentiondays", "VISTRAIL_SESSION_RETENTION_DAYS")
		v.BindEnv("storagepath", "VISTRAIL_STORAGE_PATH")
		v.BindEnv("geodbpath", "VISTRAIL_GEO_DB_PATH")
		v.BindEnv("seedpath", "VISTRAIL_SEED_PATH")
		v.BindEnv("logsdir", "VISTRAIL_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "VISTRAIL_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "VISTRAIL_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "VISTRAIL_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("dbtype", "VISTRAIL_DB_TYPE")
		v.BindEnv("dbmaxopenconns", "VISTRAIL_DB_MAX_OPEN_CONNS")
		v.BindEnv("dbmaxidleconns", "VISTRAIL_DB_MAX_IDLE_CONNS")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		// Validate
		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		// Set derived values
		cfg.DatabaseName = cfg.GetDatabasePath()
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	validDBTypes := map[string]bool{
		SQLiteDatabase: true,
	}
	if !validDBTypes[c.DatabaseType] {
		return fmt.Errorf("invalid database type: %s", c.DatabaseType)
	}

	if c.HeartbeatIntervalSeconds <= 0 {
		return fmt.Errorf("invalid heartbeat interval: %d", c.HeartbeatIntervalSeconds)
	}
	if c.IdleThresholdSeconds <= 0 {
		return fmt.Errorf("invalid idle threshold: %d", c.IdleThresholdSeconds)
	}

	return nil
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment
// If explicitly set via env var, uses that value. Otherwise:
// - Test: 1 (required for test stability with shared in-memory databases)
// - Development/Production: 10 (allows concurrent reads for parallel dashboard queries)
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}

	if c.Environment == Test {
		return 1
	}

	return 10
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}

	if c.Environment == Test {
		return 1
	}

	return 5
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
