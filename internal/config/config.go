package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for fieldsync.
type Config struct {
	DeviceID string         `toml:"device_id"`
	BaseDir  string         `toml:"base_dir"`
	LogDir   string         `toml:"log_dir"`
	Backend  BackendConfig  `toml:"backend"`
	Database DatabaseConfig `toml:"database"`
	Media    MediaConfig    `toml:"media"`
	Queue    QueueConfig    `toml:"queue"`
	Cache    CacheConfig    `toml:"cache"`
	Sync     SyncConfig     `toml:"sync"`
}

// BackendConfig points at the REST backend.
type BackendConfig struct {
	BaseURL        string `toml:"base_url"`
	Token          string `toml:"token"`
	TimeoutSeconds int    `toml:"timeout_seconds"` // 0 keeps the transport default
}

// DatabaseConfig configures the durable queue/cache store.
// This uses a tagged union pattern - the Type field determines which other
// fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// MediaConfig configures capture limits, the local blob directory for
// queued photos, and the uploader backend.
// The Uploader field determines which other sections are relevant.
type MediaConfig struct {
	Uploader      string   `toml:"uploader"` // "backend" (default) or "s3"
	BlobDir       string   `toml:"blob_dir,omitempty"`
	PhotoMaxBytes int64    `toml:"photo_max_bytes"` // 0 means the 10MB default
	VideoMaxBytes int64    `toml:"video_max_bytes"` // 0 means the 100MB default
	S3            S3Config `toml:"s3"`
}

// S3Config holds the S3 uploader settings (only used when Uploader == "s3").
type S3Config struct {
	Bucket          string `toml:"bucket"`
	Prefix          string `toml:"prefix,omitempty"`
	Region          string `toml:"region"`
	AccessKeyID     string `toml:"access_key_id,omitempty"`
	SecretAccessKey string `toml:"secret_access_key,omitempty"`
	PublicBaseURL   string `toml:"public_base_url,omitempty"`
}

// QueueConfig parameterizes the offline queue's retry policy.
type QueueConfig struct {
	MaxAttempts        int `toml:"max_attempts"`         // 0 means the default of 5
	BackoffBaseSeconds int `toml:"backoff_base_seconds"` // 0 means 30
	BackoffMaxSeconds  int `toml:"backoff_max_seconds"`  // 0 means 600
}

// CacheConfig bounds the snapshot cache.
type CacheConfig struct {
	TTLDays int `toml:"ttl_days"` // 0 means 7
}

// SyncConfig controls the connectivity probe.
type SyncConfig struct {
	ProbeIntervalSeconds int `toml:"probe_interval_seconds"` // 0 means 15
}

// NewConfig creates a Config with the provided values and default paths.
func NewConfig(deviceID, baseDir, backendURL string) *Config {
	return &Config{
		DeviceID: deviceID,
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		Backend:  BackendConfig{BaseURL: backendURL},
		Database: DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(baseDir, "data")},
		Media:    MediaConfig{Uploader: "backend", BlobDir: filepath.Join(baseDir, "media")},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
