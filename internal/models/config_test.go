package models

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"GEMINI_API_KEY", "DATABASE_URL", "AUTH_JWT_SECRET", "KAFKA_BROKERS"} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadConfig_MissingFileUsesEnvAndDefaults(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("GEMINI_API_KEY", "gem")
	t.Setenv("DATABASE_URL", "postgres://db")
	t.Setenv("AUTH_JWT_SECRET", "secret")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "gem", cfg.Gemini.APIKey)
	assert.Equal(t, "postgres://db", cfg.DatabaseURL)
	assert.Equal(t, "secret", cfg.Auth.JWTSecret)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)

	assert.Equal(t, DefaultServerAddr, cfg.ServerAddr)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultGeminiModel, cfg.Gemini.Model)
	assert.Equal(t, DefaultImageSize, cfg.Gemini.ImageSize)
	assert.Equal(t, DefaultRateInterval, cfg.Gemini.RateInterval)
	assert.Equal(t, DefaultRateBurst, cfg.Gemini.RateBurst)
	assert.Equal(t, DefaultFetchTimeout, cfg.Fetch.Timeout)
	assert.Equal(t, DefaultAuthAudience, cfg.Auth.Audience)
	assert.Equal(t, StorageBackendLocal, cfg.Storage.Backend)
	assert.Equal(t, DefaultStoragePath, cfg.Storage.LocalPath)
	assert.Equal(t, "http://localhost:8080/files", cfg.Storage.PublicBaseURL)
	assert.Equal(t, DefaultKafkaTopic, cfg.Kafka.Topic)
	assert.Equal(t, DefaultKafkaGroupID, cfg.Kafka.GroupID)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_FileValues(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("GEMINI_API_KEY", "from-env")

	p := writeConfig(t, `
server_addr: ":9090"
public_base_url: "https://thumbs.example.com/"
gemini:
  api_key: "from-file"
  rate_interval: 500ms
  rate_burst: 2
fetch:
  block_private_networks: true
  cache_ttl: 5m
storage:
  backend: "gcs"
  gcs_bucket: "thumbs"
`)

	cfg, err := LoadConfig(p)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, "from-env", cfg.Gemini.APIKey)
	assert.Equal(t, 500*time.Millisecond, cfg.Gemini.RateInterval)
	assert.Equal(t, 2, cfg.Gemini.RateBurst)
	assert.True(t, cfg.Fetch.BlockPrivateNetworks)
	assert.Equal(t, 5*time.Minute, cfg.Fetch.CacheTTL)
	assert.Equal(t, "https://storage.googleapis.com/thumbs", cfg.Storage.PublicBaseURL)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoadConfig_LocalPublicURLTrimsSlash(t *testing.T) {
	clearConfigEnv(t)
	p := writeConfig(t, `public_base_url: "https://thumbs.example.com/"`)

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	assert.Equal(t, "https://thumbs.example.com/files", cfg.Storage.PublicBaseURL)
	assert.Equal(t, "/files", cfg.FilesRoute())
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	clearConfigEnv(t)
	p := writeConfig(t, "gemini: [unclosed")

	_, err := LoadConfig(p)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			DatabaseURL: "postgres://db",
			Gemini:      GeminiConfig{APIKey: "gem", RateBurst: 1},
			Auth:        AuthConfig{JWTSecret: "secret"},
			Storage:     StorageConfig{Backend: StorageBackendLocal},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid local", func(c *Config) {}, ""},
		{"valid gcs", func(c *Config) { c.Storage = StorageConfig{Backend: StorageBackendGCS, GCSBucket: "b"} }, ""},
		{"missing api key", func(c *Config) { c.Gemini.APIKey = "" }, "GEMINI_API_KEY"},
		{"missing database", func(c *Config) { c.DatabaseURL = "" }, "DATABASE_URL"},
		{"missing jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }, "AUTH_JWT_SECRET"},
		{"non positive burst", func(c *Config) { c.Gemini.RateBurst = -1 }, "rate_burst"},
		{"gcs without bucket", func(c *Config) { c.Storage.Backend = StorageBackendGCS }, "gcs_bucket"},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "s3" }, "unknown storage backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)

			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
