package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ModeAll, cfg.Mode)
	assert.Equal(t, "./data/bestiary", cfg.DataDir)
	assert.Equal(t, 7, cfg.Retention.TTLDays)
	assert.False(t, cfg.Archive.Enabled)
	assert.Equal(t, "local", cfg.Storage.Type)
	require.NoError(t, cfg.Validate())
}

func TestResolve_DerivesStoragePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/var/lib/bestiary"
	cfg.Resolve()
	assert.Equal(t, filepath.Join("/var/lib/bestiary", "archive"), cfg.Storage.Path)
	assert.Equal(t, filepath.Join("/var/lib/bestiary", "catalog.db"), cfg.CatalogPath())
	assert.Equal(t, filepath.Join("/var/lib/bestiary", "snapshots"), cfg.SnapshotDir())
}

func TestResolve_KeepsExplicitStoragePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Path = "/mnt/archive"
	cfg.Resolve()
	assert.Equal(t, "/mnt/archive", cfg.Storage.Path)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid default", func(c *Config) {}, ""},
		{"invalid mode", func(c *Config) { c.Mode = "replicate" }, "invalid mode"},
		{"empty data dir", func(c *Config) { c.DataDir = "" }, "data_dir is required"},
		{"invalid storage type", func(c *Config) { c.Storage.Type = "gcs" }, "invalid storage type"},
		{"s3 without bucket", func(c *Config) { c.Storage.Type = "s3" }, "s3.bucket is required"},
		{"negative ttl", func(c *Config) { c.Retention.TTLDays = -1 }, "must not be negative"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}

func TestModeStageSelection(t *testing.T) {
	cfg := DefaultConfig()

	cfg.Mode = ModeAll
	assert.True(t, cfg.ShouldRunIngest())
	assert.True(t, cfg.ShouldRunCurate())
	assert.True(t, cfg.ShouldRunAggregate())

	cfg.Mode = ModeIngest
	assert.True(t, cfg.ShouldRunIngest())
	assert.False(t, cfg.ShouldRunCurate())
	assert.False(t, cfg.ShouldRunAggregate())

	cfg.Mode = ModeCurate
	assert.False(t, cfg.ShouldRunIngest())
	assert.True(t, cfg.ShouldRunCurate())

	cfg.Mode = ModeAggregate
	assert.True(t, cfg.ShouldRunAggregate())
}

func TestRetentionTTL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Retention.TTLDays = 3
	assert.Equal(t, 72*time.Hour, cfg.RetentionTTL())
}

func TestLoadFromFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
mode: curate
data_dir: /tmp/bestiary-test
dataset_path: /tmp/creatures.csv
retention:
  ttl_days: 14
archive:
  enabled: true
  concurrency: 8
storage:
  type: s3
  s3:
    bucket: bestiary-snapshots
    region: eu-west-1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, ModeCurate, cfg.Mode)
	assert.Equal(t, "/tmp/bestiary-test", cfg.DataDir)
	assert.Equal(t, "/tmp/creatures.csv", cfg.DatasetPath)
	assert.Equal(t, 14, cfg.Retention.TTLDays)
	assert.True(t, cfg.Archive.Enabled)
	assert.Equal(t, 8, cfg.Archive.Concurrency)
	assert.Equal(t, "s3", cfg.Storage.Type)
	assert.Equal(t, "bestiary-snapshots", cfg.Storage.S3.Bucket)
	// Unset fields keep their defaults.
	assert.Equal(t, "snapshots", cfg.Archive.Prefix)
}

func TestLoadFromFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"mode": "ingest", "data_dir": "/tmp/bestiary-json"}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, ModeIngest, cfg.Mode)
	assert.Equal(t, "/tmp/bestiary-json", cfg.DataDir)
}

func TestLoadFromFile_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("mode = 'all'"), 0644))

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config file format")
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BESTIARY_MODE", "aggregate")
	t.Setenv("BESTIARY_DATA_DIR", "/tmp/bestiary-env")
	t.Setenv("BESTIARY_DATASET_PATH", "/tmp/rows.json")
	t.Setenv("BESTIARY_RETENTION_TTL_DAYS", "30")
	t.Setenv("BESTIARY_ARCHIVE_ENABLED", "true")
	t.Setenv("BESTIARY_ARCHIVE_CONCURRENCY", "16")
	t.Setenv("BESTIARY_STORAGE_TYPE", "s3")
	t.Setenv("BESTIARY_S3_BUCKET", "env-bucket")
	t.Setenv("BESTIARY_S3_ENDPOINT", "http://localhost:9000")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	assert.Equal(t, ModeAggregate, cfg.Mode)
	assert.Equal(t, "/tmp/bestiary-env", cfg.DataDir)
	assert.Equal(t, "/tmp/rows.json", cfg.DatasetPath)
	assert.Equal(t, 30, cfg.Retention.TTLDays)
	assert.True(t, cfg.Archive.Enabled)
	assert.Equal(t, 16, cfg.Archive.Concurrency)
	assert.Equal(t, "s3", cfg.Storage.Type)
	assert.Equal(t, "env-bucket", cfg.Storage.S3.Bucket)
	assert.Equal(t, "http://localhost:9000", cfg.Storage.S3.Endpoint)
}

func TestEnsureDirectories(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.Resolve()
	require.NoError(t, cfg.EnsureDirectories())

	for _, dir := range []string{cfg.DataDir, cfg.SnapshotDir(), cfg.Storage.Path} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
