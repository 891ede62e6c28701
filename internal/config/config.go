package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for dockeep.
type Config struct {
	BaseDir      string           `toml:"base_dir"`
	LogDir       string           `toml:"log_dir"`
	DocumentsDir string           `toml:"documents_dir"`
	Recovery     RecoveryConfig   `toml:"recovery"`
	Encryption   EncryptionConfig `toml:"encryption"`
	Catalog      CatalogConfig    `toml:"catalog"`
	AutoSave     AutoSaveConfig   `toml:"autosave"`
}

// RecoveryConfig configures the recovery snapshot store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type RecoveryConfig struct {
	Type          string `toml:"type"` // "filesystem", "memory", or "s3"
	Dir           string `toml:"dir,omitempty"`
	RetentionDays int    `toml:"retention_days"` // snapshots older than this are purged at startup

	// S3-specific fields (only used when Type == "s3")
	S3Bucket    string `toml:"s3_bucket,omitempty"`
	S3Prefix    string `toml:"s3_prefix,omitempty"`
	S3Region    string `toml:"s3_region,omitempty"`
	S3AccessKey string `toml:"s3_access_key,omitempty"`
	S3SecretKey string `toml:"s3_secret_key,omitempty"`
}

// EncryptionConfig configures at-rest encryption of recovery snapshots.
type EncryptionConfig struct {
	Type         string `toml:"type"` // "age" or "none"
	IdentityPath string `toml:"identity_path,omitempty"`
}

// CatalogConfig configures the document catalog.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type CatalogConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// AutoSaveConfig configures the auto-save scheduler.
type AutoSaveConfig struct {
	PeriodSeconds   int `toml:"period_seconds"`   // how often the scheduler ticks
	IntervalSeconds int `toml:"interval_seconds"` // minimum spacing between auto-saves per document
}

// NewConfig creates a Config rooted at baseDir with default values.
// The recovery snapshot directory is a dedicated subdirectory of the
// document storage root.
func NewConfig(baseDir string) *Config {
	documentsDir := filepath.Join(baseDir, "documents")
	return &Config{
		BaseDir:      baseDir,
		LogDir:       filepath.Join(baseDir, "log"),
		DocumentsDir: documentsDir,
		Recovery: RecoveryConfig{
			Type:          "filesystem",
			Dir:           filepath.Join(documentsDir, ".recovery"),
			RetentionDays: 7,
		},
		Encryption: EncryptionConfig{
			Type:         "none",
			IdentityPath: filepath.Join(baseDir, "keys", "dockeep.key"),
		},
		Catalog: CatalogConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "data"),
		},
		AutoSave: AutoSaveConfig{
			PeriodSeconds:   30,
			IntervalSeconds: 30,
		},
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

// writeToFile writes a Config to the specified file path.
// This is an internal helper and should not be exported.
func writeToFile(path string, cfg *Config) error {
	// Ensure the directory exists
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

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
