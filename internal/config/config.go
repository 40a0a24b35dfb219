// Package config provides configuration management for streamline using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort         = 8080
	defaultServerTimeout      = 30 * time.Second
	defaultUploadWriteTimeout = 15 * time.Minute
	defaultShutdownTimeout    = 10 * time.Second
	defaultMaxOpenConns       = 25
	defaultMaxIdleConns       = 10
	defaultConnMaxIdleTime    = 30 * time.Minute
	defaultMaxRequestBody     = "100MB"
	defaultMaxUploadSize      = "50MB"
	defaultAppendRetries      = 3
	defaultAppendBackoff      = 200 * time.Millisecond
	defaultTranscodeTimeout   = 10 * time.Minute
	defaultSweepMaxAge        = time.Hour
	defaultQueryLimit         = 12
	defaultQueryMaxLimit      = 100
	defaultCacheTTL           = 30 * time.Second
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Transcoder TranscoderConfig `mapstructure:"transcoder"`
	Ingest     IngestConfig     `mapstructure:"ingest"`
	Query      QueryConfig      `mapstructure:"query"`
	Cache      CacheConfig      `mapstructure:"cache"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	// MaxRequestBody caps the raw request body at the transport layer.
	MaxRequestBody ByteSize `mapstructure:"max_request_body"`
	MetricsEnabled bool     `mapstructure:"metrics_enabled"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn" masq:"secret"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// StorageConfig holds blob storage and staging configuration.
type StorageConfig struct {
	Backend    string   `mapstructure:"backend"` // fs, s3
	BaseDir    string   `mapstructure:"base_dir"`
	BlobDir    string   `mapstructure:"blob_dir"`
	StagingDir string   `mapstructure:"staging_dir"`
	S3         S3Config `mapstructure:"s3"`
}

// S3Config holds settings for the S3-compatible blob backend.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"` // empty = AWS; set for MinIO and friends
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" masq:"secret"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
	Prefix          string `mapstructure:"prefix"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level          string `mapstructure:"level"`  // debug, info, warn, error
	Format         string `mapstructure:"format"` // json, text
	AddSource      bool   `mapstructure:"add_source"`
	TimeFormat     string `mapstructure:"time_format"`
	RequestLogging bool   `mapstructure:"request_logging"`
}

// TranscoderConfig configures the external encoder. Paths are resolved at
// construction time; nothing here is read from process-wide state later.
type TranscoderConfig struct {
	FFmpegPath    string        `mapstructure:"ffmpeg_path"`    // empty = auto-detect
	MaxConcurrent int           `mapstructure:"max_concurrent"` // 0 = derive from CPU count
	Timeout       time.Duration `mapstructure:"timeout"`
}

// IngestConfig holds upload pipeline configuration.
type IngestConfig struct {
	// MaxUploadSize is the application-level limit checked before staging.
	MaxUploadSize ByteSize      `mapstructure:"max_upload_size"`
	AppendRetries int           `mapstructure:"append_retries"`
	AppendBackoff time.Duration `mapstructure:"append_backoff"`
	Deduplicate   bool          `mapstructure:"deduplicate"`
	SweepSchedule string        `mapstructure:"sweep_schedule"` // 6-field cron, empty disables
	SweepMaxAge   time.Duration `mapstructure:"sweep_max_age"`
}

// QueryConfig holds list/query endpoint configuration.
type QueryConfig struct {
	// Strict rejects unparseable filter values instead of ignoring them.
	Strict       bool `mapstructure:"strict"`
	DefaultLimit int  `mapstructure:"default_limit"`
	MaxLimit     int  `mapstructure:"max_limit"`
}

// CacheConfig configures the optional Redis page cache.
type CacheConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr"` // empty disables caching
	RedisPassword string        `mapstructure:"redis_password" masq:"secret"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// FlagBinding maps a config key to a command-line flag. The flag wins over
// file and environment values only when it was set explicitly.
type FlagBinding struct {
	Key  string
	Flag *pflag.Flag
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with STREAMLINE_ and use underscores for nesting.
// Example: STREAMLINE_SERVER_PORT=8080.
func Load(configPath string, flags ...FlagBinding) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	for _, b := range flags {
		if b.Flag == nil {
			return nil, fmt.Errorf("binding %s: flag not defined", b.Key)
		}
		if err := v.BindPFlag(b.Key, b.Flag); err != nil {
			return nil, fmt.Errorf("binding %s to --%s: %w", b.Key, b.Flag.Name, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/streamline")
		v.AddConfigPath("$HOME/.streamline")
	}

	v.SetEnvPrefix("STREAMLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultUploadWriteTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.max_request_body", defaultMaxRequestBody)
	v.SetDefault("server.metrics_enabled", true)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "streamline.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("storage.backend", "fs")
	v.SetDefault("storage.base_dir", "./data")
	v.SetDefault("storage.blob_dir", "blobs")
	v.SetDefault("storage.staging_dir", "staging")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.use_path_style", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)
	v.SetDefault("logging.request_logging", true)

	v.SetDefault("transcoder.ffmpeg_path", "")
	v.SetDefault("transcoder.max_concurrent", 0)
	v.SetDefault("transcoder.timeout", defaultTranscodeTimeout)

	v.SetDefault("ingest.max_upload_size", defaultMaxUploadSize)
	v.SetDefault("ingest.append_retries", defaultAppendRetries)
	v.SetDefault("ingest.append_backoff", defaultAppendBackoff)
	v.SetDefault("ingest.deduplicate", false)
	v.SetDefault("ingest.sweep_schedule", "0 */30 * * * *") // every 30 minutes (6-field cron)
	v.SetDefault("ingest.sweep_max_age", defaultSweepMaxAge)

	v.SetDefault("query.strict", true)
	v.SetDefault("query.default_limit", defaultQueryLimit)
	v.SetDefault("query.max_limit", defaultQueryMaxLimit)

	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.ttl", defaultCacheTTL)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	switch c.Storage.Backend {
	case "fs":
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir is required")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when storage.backend is s3")
		}
	default:
		return fmt.Errorf("storage.backend must be one of: fs, s3")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Transcoder.MaxConcurrent < 0 {
		return fmt.Errorf("transcoder.max_concurrent must not be negative")
	}

	if c.Ingest.MaxUploadSize <= 0 {
		return fmt.Errorf("ingest.max_upload_size must be positive")
	}
	if c.Server.MaxRequestBody > 0 && c.Ingest.MaxUploadSize > c.Server.MaxRequestBody {
		return fmt.Errorf("ingest.max_upload_size (%s) exceeds server.max_request_body (%s)",
			c.Ingest.MaxUploadSize, c.Server.MaxRequestBody)
	}
	if c.Ingest.AppendRetries < 0 {
		return fmt.Errorf("ingest.append_retries must not be negative")
	}

	if c.Query.DefaultLimit < 1 || c.Query.MaxLimit < 1 {
		return fmt.Errorf("query.default_limit and query.max_limit must be at least 1")
	}
	if c.Query.DefaultLimit > c.Query.MaxLimit {
		return fmt.Errorf("query.default_limit must not exceed query.max_limit")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BlobPath returns the root of the filesystem blob store.
func (c *StorageConfig) BlobPath() string {
	return filepath.Join(c.BaseDir, c.BlobDir)
}

// StagingPath returns the directory uploads are staged under.
// An absolute staging_dir is used as-is.
func (c *StorageConfig) StagingPath() string {
	if filepath.IsAbs(c.StagingDir) {
		return c.StagingDir
	}
	return filepath.Join(c.BaseDir, c.StagingDir)
}
