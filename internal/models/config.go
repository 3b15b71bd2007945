package models

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	DefaultServerAddr      = ":8080"
	DefaultGeminiModel     = "gemini-2.5-flash-image"
	DefaultImageSize       = "1K"
	DefaultRateInterval    = 2 * time.Second
	DefaultRateBurst       = 4
	DefaultFetchTimeout    = 30 * time.Second
	DefaultStorageBackend  = StorageBackendLocal
	DefaultStoragePath     = "./data/files"
	DefaultKafkaTopic      = "thumbnail-cleanup"
	DefaultKafkaGroupID    = "thumbnail-cleanup-group"
	DefaultLogLevel        = "info"
	DefaultAuthAudience    = "authenticated"
	StorageBackendLocal    = "local"
	StorageBackendGCS      = "gcs"
	localFilesRoutePrefix  = "/files"
	defaultLocalPublicHost = "http://localhost:8080"
)

type Config struct {
	ServerAddr    string `yaml:"server_addr"`
	PublicBaseURL string `yaml:"public_base_url"`
	DatabaseURL   string `yaml:"database_url"`
	LogLevel      string `yaml:"log_level"`

	Gemini  GeminiConfig  `yaml:"gemini"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Auth    AuthConfig    `yaml:"auth"`
	Storage StorageConfig `yaml:"storage"`
	Kafka   KafkaConfig   `yaml:"kafka"`
}

type GeminiConfig struct {
	APIKey       string        `yaml:"api_key"`
	Model        string        `yaml:"model"`
	ImageSize    string        `yaml:"image_size"`
	RateInterval time.Duration `yaml:"rate_interval"`
	RateBurst    int           `yaml:"rate_burst"`
}

type FetchConfig struct {
	Timeout              time.Duration `yaml:"timeout"`
	BlockPrivateNetworks bool          `yaml:"block_private_networks"`
	CacheTTL             time.Duration `yaml:"cache_ttl"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Audience  string `yaml:"audience"`
}

type StorageConfig struct {
	Backend         string `yaml:"backend"`
	LocalPath       string `yaml:"local_path"`
	GCSBucket       string `yaml:"gcs_bucket"`
	CredentialsFile string `yaml:"credentials_file"`
	// PublicBaseURL prefixes object paths to form public URLs.
	PublicBaseURL string `yaml:"public_base_url"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

func LoadConfig(path string) (*Config, error) {
	const op = "models.LoadConfig"

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// env-only deployments run without a file
	default:
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Gemini.APIKey = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("AUTH_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
}

func (c *Config) applyDefaults() {
	if c.ServerAddr == "" {
		c.ServerAddr = DefaultServerAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = DefaultGeminiModel
	}
	if c.Gemini.ImageSize == "" {
		c.Gemini.ImageSize = DefaultImageSize
	}
	if c.Gemini.RateInterval == 0 {
		c.Gemini.RateInterval = DefaultRateInterval
	}
	if c.Gemini.RateBurst == 0 {
		c.Gemini.RateBurst = DefaultRateBurst
	}
	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = DefaultFetchTimeout
	}
	if c.Auth.Audience == "" {
		c.Auth.Audience = DefaultAuthAudience
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = DefaultStorageBackend
	}
	if c.Storage.LocalPath == "" {
		c.Storage.LocalPath = DefaultStoragePath
	}
	if c.PublicBaseURL == "" {
		c.PublicBaseURL = defaultLocalPublicHost
	}
	if c.Storage.PublicBaseURL == "" {
		switch c.Storage.Backend {
		case StorageBackendGCS:
			c.Storage.PublicBaseURL = "https://storage.googleapis.com/" + c.Storage.GCSBucket
		default:
			c.Storage.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/") + localFilesRoutePrefix
		}
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = DefaultKafkaTopic
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = DefaultKafkaGroupID
	}
}

// Validate reports the first missing or inconsistent setting.
func (c *Config) Validate() error {
	switch {
	case c.Gemini.APIKey == "":
		return errors.New("gemini api key is required (GEMINI_API_KEY)")
	case c.DatabaseURL == "":
		return errors.New("database url is required (DATABASE_URL)")
	case c.Auth.JWTSecret == "":
		return errors.New("auth jwt secret is required (AUTH_JWT_SECRET)")
	case c.Gemini.RateBurst < 1:
		return fmt.Errorf("gemini rate_burst must be positive, got %d", c.Gemini.RateBurst)
	}

	switch c.Storage.Backend {
	case StorageBackendLocal:
	case StorageBackendGCS:
		if c.Storage.GCSBucket == "" {
			return errors.New("storage gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}

// FilesRoute is the URL prefix the local object store is served under.
func (c *Config) FilesRoute() string {
	return localFilesRoutePrefix
}
