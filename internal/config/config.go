package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Storage    StorageConfig    `yaml:"storage"`
	Worker     WorkerConfig     `yaml:"worker"`
	Scraper    ScraperConfig    `yaml:"scraper"`
	VideoAI    VideoAIConfig    `yaml:"video_ai"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Blob       BlobConfig       `yaml:"blob"`
	Transfer   TransferConfig   `yaml:"transfer"`
	Thumbnail  ThumbnailConfig  `yaml:"thumbnail"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host" envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port         int           `yaml:"port" envconfig:"SERVER_PORT" default:"8974"`
	APIKey       string        `yaml:"api_key" envconfig:"API_KEY"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT" default:"1m"`
}

// DatabaseConfig holds record store configuration.
type DatabaseConfig struct {
	Path string `yaml:"path" envconfig:"DATABASE_PATH" default:"/data/vidstash.db"`
}

// StorageConfig holds local transient storage configuration.
type StorageConfig struct {
	TempPath string `yaml:"temp_path" envconfig:"STORAGE_TEMP_PATH" default:"/data/temp"`
}

// WorkerConfig holds worker pool configuration. The pool is kept small on
// purpose: each in-flight run may hold a large media file on disk.
type WorkerConfig struct {
	Count        int           `yaml:"count" envconfig:"WORKER_COUNT" default:"2"`
	PollInterval time.Duration `yaml:"poll_interval" envconfig:"WORKER_POLL_INTERVAL" default:"5s"`
	MaxRetries   int           `yaml:"max_retries" envconfig:"WORKER_MAX_RETRIES" default:"3"`
}

// ScraperConfig holds metadata provider configuration.
type ScraperConfig struct {
	BaseURL string        `yaml:"base_url" envconfig:"SCRAPER_BASE_URL"`
	APIKey  string        `yaml:"api_key" envconfig:"SCRAPER_API_KEY"`
	Timeout time.Duration `yaml:"timeout" envconfig:"SCRAPER_TIMEOUT" default:"30s"`
}

// VideoAIConfig holds multimodal analyzer configuration.
type VideoAIConfig struct {
	BaseURL string        `yaml:"base_url" envconfig:"VIDEO_AI_BASE_URL"`
	APIKey  string        `yaml:"api_key" envconfig:"VIDEO_AI_API_KEY"`
	Model   string        `yaml:"model" envconfig:"VIDEO_AI_MODEL" default:"gemini-2.0-flash"`
	Timeout time.Duration `yaml:"timeout" envconfig:"VIDEO_AI_TIMEOUT" default:"2m"`
}

// ClassifierConfig holds content classifier configuration.
type ClassifierConfig struct {
	BaseURL string        `yaml:"base_url" envconfig:"CLASSIFIER_BASE_URL"`
	APIKey  string        `yaml:"api_key" envconfig:"CLASSIFIER_API_KEY"`
	Model   string        `yaml:"model" envconfig:"CLASSIFIER_MODEL" default:"gpt-4o-mini"`
	Timeout time.Duration `yaml:"timeout" envconfig:"CLASSIFIER_TIMEOUT" default:"45s"`
}

// BlobConfig holds blob storage gateway configuration.
type BlobConfig struct {
	BaseURL      string        `yaml:"base_url" envconfig:"BLOB_BASE_URL"`
	APIKey       string        `yaml:"api_key" envconfig:"BLOB_API_KEY"`
	Bucket       string        `yaml:"bucket" envconfig:"BLOB_BUCKET" default:"vidstash-media"`
	SignedURLTTL time.Duration `yaml:"signed_url_ttl" envconfig:"BLOB_SIGNED_URL_TTL" default:"8760h"`
	Timeout      time.Duration `yaml:"timeout" envconfig:"BLOB_TIMEOUT" default:"5m"`
}

// TransferConfig holds media transfer configuration.
type TransferConfig struct {
	MaxAttempts     int           `yaml:"max_attempts" envconfig:"TRANSFER_MAX_ATTEMPTS" default:"3"`
	RetryBaseDelay  time.Duration `yaml:"retry_base_delay" envconfig:"TRANSFER_RETRY_BASE_DELAY" default:"2s"`
	DownloadTimeout time.Duration `yaml:"download_timeout" envconfig:"TRANSFER_DOWNLOAD_TIMEOUT" default:"10m"`
	UserAgent       string        `yaml:"user_agent" envconfig:"TRANSFER_USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"`
}

// ThumbnailConfig holds thumbnail acquisition configuration.
type ThumbnailConfig struct {
	RetryWait       time.Duration `yaml:"retry_wait" envconfig:"THUMBNAIL_RETRY_WAIT" default:"5s"`
	FrameOffset     time.Duration `yaml:"frame_offset" envconfig:"THUMBNAIL_FRAME_OFFSET" default:"2s"`
	DownloadTimeout time.Duration `yaml:"download_timeout" envconfig:"THUMBNAIL_DOWNLOAD_TIMEOUT" default:"30s"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Load from YAML file if provided
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Override with environment variables
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Server.APIKey == "" {
		return fmt.Errorf("API_KEY is required")
	}
	if c.Scraper.BaseURL == "" {
		return fmt.Errorf("SCRAPER_BASE_URL is required")
	}
	if c.Blob.BaseURL == "" {
		return fmt.Errorf("BLOB_BASE_URL is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
