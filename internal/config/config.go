// Package config provides unified configuration for the bestiary pipeline.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode represents which pipeline stages to run.
type Mode string

const (
	ModeAll       Mode = "all"
	ModeIngest    Mode = "ingest"
	ModeCurate    Mode = "curate"
	ModeAggregate Mode = "aggregate"
)

// Config holds the unified configuration for the pipeline.
type Config struct {
	// Mode specifies which stages to run: all, ingest, curate, aggregate
	Mode Mode `json:"mode" yaml:"mode"`

	// DataDir is the base directory for all data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// DatasetPath is the source dataset file (CSV or JSON)
	DatasetPath string `json:"dataset_path" yaml:"dataset_path"`

	// Retention configuration for superseded snapshots
	Retention RetentionConfig `json:"retention" yaml:"retention"`

	// Archive configuration for snapshot archival
	Archive ArchiveConfig `json:"archive" yaml:"archive"`

	// Storage configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// RetentionConfig controls how long superseded snapshots are kept.
type RetentionConfig struct {
	// TTLDays is the days before superseded snapshots are garbage collected
	TTLDays int `json:"ttl_days" yaml:"ttl_days"`
}

// ArchiveConfig controls snapshot archival to object storage.
type ArchiveConfig struct {
	// Enabled controls whether published snapshots are archived
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Concurrency is the number of parallel snapshot uploads
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// Prefix is prepended to every archived object key
	Prefix string `json:"prefix" yaml:"prefix"`
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		Mode:    ModeAll,
		DataDir: "./data/bestiary",
		Retention: RetentionConfig{
			TTLDays: 7,
		},
		Archive: ArchiveConfig{
			Enabled:     false,
			Concurrency: 4,
			Prefix:      "snapshots",
		},
		Storage: StorageConfig{
			Type: "local",
			Path: "",
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/bestiary"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "archive")
	}
}

// CatalogPath returns the path to the snapshot catalog database.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.DataDir, "catalog.db")
}

// SnapshotDir returns the directory for snapshot files.
func (c *Config) SnapshotDir() string {
	return filepath.Join(c.DataDir, "snapshots")
}

// RetentionTTL returns the snapshot retention as a duration.
func (c *Config) RetentionTTL() time.Duration {
	return time.Duration(c.Retention.TTLDays) * 24 * time.Hour
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeAll, ModeIngest, ModeCurate, ModeAggregate:
		// Valid modes
	default:
		return fmt.Errorf("invalid mode: %s (must be all, ingest, curate, or aggregate)", c.Mode)
	}

	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}

	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}

	if c.Retention.TTLDays < 0 {
		return fmt.Errorf("retention.ttl_days must not be negative, got %d", c.Retention.TTLDays)
	}

	return nil
}

// ShouldRunIngest returns true if the ingestion stage should run.
func (c *Config) ShouldRunIngest() bool {
	return c.Mode == ModeAll || c.Mode == ModeIngest
}

// ShouldRunCurate returns true if the curation stage should run.
func (c *Config) ShouldRunCurate() bool {
	return c.Mode == ModeAll || c.Mode == ModeCurate
}

// ShouldRunAggregate returns true if the aggregation stage should run.
func (c *Config) ShouldRunAggregate() bool {
	return c.Mode == ModeAll || c.Mode == ModeAggregate
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the BESTIARY_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("BESTIARY_MODE"); v != "" {
		cfg.Mode = Mode(v)
	}
	if v := os.Getenv("BESTIARY_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("BESTIARY_DATASET_PATH"); v != "" {
		cfg.DatasetPath = v
	}

	// Retention configuration
	if v := os.Getenv("BESTIARY_RETENTION_TTL_DAYS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Retention.TTLDays)
	}

	// Archive configuration
	if v := os.Getenv("BESTIARY_ARCHIVE_ENABLED"); v != "" {
		cfg.Archive.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("BESTIARY_ARCHIVE_CONCURRENCY"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Archive.Concurrency)
	}
	if v := os.Getenv("BESTIARY_ARCHIVE_PREFIX"); v != "" {
		cfg.Archive.Prefix = v
	}

	// Storage configuration
	if v := os.Getenv("BESTIARY_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("BESTIARY_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("BESTIARY_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("BESTIARY_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("BESTIARY_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.SnapshotDir(),
	}
	if c.Storage.Type == "local" {
		dirs = append(dirs, c.Storage.Path)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
