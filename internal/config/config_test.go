package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, MaxRequestBody: 100_000_000},
		Database: DatabaseConfig{
			Driver:       "sqlite",
			DSN:          "test.db",
			MaxOpenConns: 25,
			MaxIdleConns: 10,
			LogLevel:     "warn",
		},
		Storage: StorageConfig{Backend: "fs", BaseDir: "./data", BlobDir: "blobs", StagingDir: "staging"},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Ingest: IngestConfig{
			MaxUploadSize: 50_000_000,
			AppendRetries: 3,
		},
		Query: QueryConfig{Strict: true, DefaultLimit: 12, MaxLimit: 100},
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, ByteSize(100_000_000), cfg.Server.MaxRequestBody)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "streamline.db", cfg.Database.DSN)

	assert.Equal(t, "fs", cfg.Storage.Backend)
	assert.Equal(t, filepath.Join("data", "blobs"), cfg.Storage.BlobPath())

	assert.Equal(t, ByteSize(50_000_000), cfg.Ingest.MaxUploadSize)
	assert.Equal(t, 3, cfg.Ingest.AppendRetries)
	assert.Equal(t, 200*time.Millisecond, cfg.Ingest.AppendBackoff)
	assert.False(t, cfg.Ingest.Deduplicate)

	assert.True(t, cfg.Query.Strict)
	assert.Equal(t, 12, cfg.Query.DefaultLimit)
	assert.Equal(t, 100, cfg.Query.MaxLimit)

	assert.Equal(t, 0, cfg.Transcoder.MaxConcurrent)
	assert.Equal(t, 10*time.Minute, cfg.Transcoder.Timeout)
	assert.Empty(t, cfg.Cache.RedisAddr)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
  max_request_body: 200MB
ingest:
  max_upload_size: 75MB
  deduplicate: true
query:
  strict: false
storage:
  staging_dir: /var/tmp/streamline
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, ByteSize(200_000_000), cfg.Server.MaxRequestBody)
	assert.Equal(t, ByteSize(75_000_000), cfg.Ingest.MaxUploadSize)
	assert.True(t, cfg.Ingest.Deduplicate)
	assert.False(t, cfg.Query.Strict)
	assert.Equal(t, "/var/tmp/streamline", cfg.Storage.StagingPath())
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Setenv("STREAMLINE_SERVER_PORT", "7070")
	t.Setenv("STREAMLINE_INGEST_APPEND_RETRIES", "5")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Ingest.AppendRetries)
}

func TestLoad_FlagBindings(t *testing.T) {
	t.Setenv("STREAMLINE_SERVER_PORT", "7070")

	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	fs.Int("port", 8080, "")
	fs.String("host", "127.0.0.1", "")
	require.NoError(t, fs.Parse([]string{"--port", "9999"}))

	cfg, err := Load("",
		FlagBinding{Key: "server.port", Flag: fs.Lookup("port")},
		FlagBinding{Key: "server.host", Flag: fs.Lookup("host")},
	)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port, "explicit flag beats env")
	assert.Equal(t, "0.0.0.0", cfg.Server.Host, "unset flag leaves the default")

	_, err = Load("", FlagBinding{Key: "server.port", Flag: fs.Lookup("missing")})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(_ *Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"bad driver", func(c *Config) { c.Database.Driver = "oracle" }, "database.driver"},
		{"missing dsn", func(c *Config) { c.Database.DSN = "" }, "database.dsn"},
		{"bad backend", func(c *Config) { c.Storage.Backend = "ftp" }, "storage.backend"},
		{"s3 without bucket", func(c *Config) { c.Storage.Backend = "s3" }, "storage.s3.bucket"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"upload above transport limit", func(c *Config) { c.Ingest.MaxUploadSize = 200_000_000 }, "exceeds server.max_request_body"},
		{"zero upload limit", func(c *Config) { c.Ingest.MaxUploadSize = 0 }, "ingest.max_upload_size"},
		{"default limit above max", func(c *Config) { c.Query.DefaultLimit = 500 }, "query.default_limit"},
		{"negative transcoders", func(c *Config) { c.Transcoder.MaxConcurrent = -1 }, "transcoder.max_concurrent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestByteSize(t *testing.T) {
	tests := []struct {
		input string
		want  ByteSize
	}{
		{"50MB", 50_000_000},
		{"100 MB", 100_000_000},
		{"1MiB", 1 << 20},
		{"1024", 1024},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var b ByteSize
			require.NoError(t, b.UnmarshalText([]byte(tt.input)))
			assert.Equal(t, tt.want, b)
		})
	}

	var b ByteSize
	assert.Error(t, b.UnmarshalText([]byte("lots")))

	require.NoError(t, b.UnmarshalJSON([]byte(`2048`)))
	assert.Equal(t, ByteSize(2048), b)
	require.NoError(t, b.UnmarshalJSON([]byte(`"2kB"`)))
	assert.Equal(t, ByteSize(2000), b)

	assert.Equal(t, "50 MB", ByteSize(50_000_000).String())
}
