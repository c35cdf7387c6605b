// Package config provides configuration management for the ClassReel server.
// Configuration can be loaded from YAML files and environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	S3       S3Config       `mapstructure:"s3"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Lock     LockConfig     `mapstructure:"lock"`
	Licenses LicenseConfig  `mapstructure:"licenses"`
	Listing  ListingConfig  `mapstructure:"listing"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// S3Config holds the blob store connection settings.
// The store is a single bucket used as a flat key-value JSON store.
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// RedisConfig holds Redis connection settings.
// Redis is optional; it backs the distributed lock and the redis ledger.
type RedisConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Enabled     bool          `mapstructure:"enabled"`
}

// Addr returns the Redis address in host:port format.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LedgerConfig selects how license slot accounting is performed.
type LedgerConfig struct {
	// Driver is one of "scan", "redis", "postgres", "sqlite".
	// "scan" counts existing user records on each registration and is the
	// default; the other drivers reserve slots atomically.
	Driver string `mapstructure:"driver"`

	// PostgreSQL settings (used when Driver is "postgres")
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`

	// SQLite settings (used when Driver is "sqlite")
	Path string `mapstructure:"path"`
}

// DSN returns the PostgreSQL connection string.
// Only valid when Driver is "postgres".
func (c LedgerConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LockConfig selects the locking backend used to serialize registrations
// and uploads.
type LockConfig struct {
	// Driver is one of "memory", "redis", "noop".
	Driver string `mapstructure:"driver"`

	// TTL is how long an acquired lock lives before expiring on its own.
	TTL time.Duration `mapstructure:"ttl"`
}

// LicenseConfig holds the static license tables.
type LicenseConfig struct {
	// Limits maps a license key to its maximum account count.
	// Keys absent from the map have limit 0 and always reject registration.
	Limits map[string]int `mapstructure:"limits"`

	// StudentKeys is the set of license keys valid for student accounts.
	StudentKeys []string `mapstructure:"student_keys"`

	// TeacherKeys is the set of license keys valid for teacher accounts.
	TeacherKeys []string `mapstructure:"teacher_keys"`
}

// ListingConfig controls video listing behavior.
type ListingConfig struct {
	// Mode is "lenient" (failures swallowed into an empty or partial
	// result) or "strict" (failures propagate).
	Mode string `mapstructure:"mode"`

	// PresignExpiry is the lifetime of access URLs attached to listings.
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
}

// Strict reports whether listing failures should propagate.
func (c ListingConfig) Strict() bool {
	return c.Mode == "strict"
}

// CacheConfig controls the optional user-record cache.
type CacheConfig struct {
	// Driver is one of "none", "memory", "redis".
	Driver string `mapstructure:"driver"`

	// TTL is how long cached records stay fresh.
	TTL time.Duration `mapstructure:"ttl"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	// Enabled determines if metrics collection is active.
	Enabled bool `mapstructure:"enabled"`

	// Port is the port for the metrics HTTP server.
	Port int `mapstructure:"port"`

	// Path is the URL path for the metrics endpoint.
	Path string `mapstructure:"path"`
}

// Load reads configuration from the specified file and environment variables.
// Environment variables take precedence over file values.
// Environment variables are prefixed with CLASSREEL_ and use _ as separator.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Environment variable configuration
	v.SetEnvPrefix("CLASSREEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file configuration
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/classreel")
	}

	// Read config file (optional - environment variables can be used instead)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is acceptable - use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// S3 defaults
	v.SetDefault("s3.endpoint", "http://localhost:9000")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "classreel")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.use_path_style", true)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.enabled", false)

	// Ledger defaults
	v.SetDefault("ledger.driver", "scan")
	v.SetDefault("ledger.host", "localhost")
	v.SetDefault("ledger.port", 5432)
	v.SetDefault("ledger.user", "classreel")
	v.SetDefault("ledger.password", "")
	v.SetDefault("ledger.database", "classreel")
	v.SetDefault("ledger.ssl_mode", "prefer")
	v.SetDefault("ledger.path", "./data/classreel.db")

	// Lock defaults
	v.SetDefault("lock.driver", "memory")
	v.SetDefault("lock.ttl", 30*time.Second)

	// License table defaults. Unlisted keys have limit 0.
	v.SetDefault("licenses.limits", map[string]int{
		"3399": 20,
		"7742": 50,
		"1185": 5,
	})
	v.SetDefault("licenses.student_keys", []string{"3399", "7742"})
	v.SetDefault("licenses.teacher_keys", []string{"1185", "7742"})

	// Listing defaults
	v.SetDefault("listing.mode", "lenient")
	v.SetDefault("listing.presign_expiry", time.Hour)

	// Cache defaults
	v.SetDefault("cache.driver", "none")
	v.SetDefault("cache.ttl", 30*time.Second)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9091)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate checks the configuration for required values and valid ranges.
func (c *Config) Validate() error {
	if c.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required")
	}
	if c.S3.Endpoint == "" {
		return fmt.Errorf("s3.endpoint is required")
	}

	validLedgers := map[string]bool{"scan": true, "redis": true, "postgres": true, "sqlite": true}
	if !validLedgers[c.Ledger.Driver] {
		return fmt.Errorf("ledger.driver must be one of: scan, redis, postgres, sqlite")
	}
	if c.Ledger.Driver == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("ledger.driver 'redis' requires redis.enabled")
	}
	if c.Ledger.Driver == "postgres" {
		if c.Ledger.Host == "" || c.Ledger.User == "" || c.Ledger.Database == "" {
			return fmt.Errorf("ledger.host, ledger.user and ledger.database are required for postgres driver")
		}
	}
	if c.Ledger.Driver == "sqlite" && c.Ledger.Path == "" {
		return fmt.Errorf("ledger.path is required for sqlite driver")
	}

	validLocks := map[string]bool{"memory": true, "redis": true, "noop": true}
	if !validLocks[c.Lock.Driver] {
		return fmt.Errorf("lock.driver must be one of: memory, redis, noop")
	}
	if c.Lock.Driver == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("lock.driver 'redis' requires redis.enabled")
	}

	if c.Listing.Mode != "lenient" && c.Listing.Mode != "strict" {
		return fmt.Errorf("listing.mode must be 'lenient' or 'strict'")
	}
	if c.Listing.PresignExpiry <= 0 {
		return fmt.Errorf("listing.presign_expiry must be positive")
	}

	validCaches := map[string]bool{"none": true, "memory": true, "redis": true}
	if !validCaches[c.Cache.Driver] {
		return fmt.Errorf("cache.driver must be one of: none, memory, redis")
	}
	if c.Cache.Driver == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("cache.driver 'redis' requires redis.enabled")
	}

	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error, fatal, panic")
	}

	return nil
}

// MustLoad loads configuration or panics on error.
// Useful for main function initialization.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
