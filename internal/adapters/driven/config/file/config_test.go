package file_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian-labs/newsvault/internal/adapters/driven/config/file"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := file.Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "news", cfg.Storage.Prefix)
	assert.Equal(t, 5*time.Minute, cfg.Refresh.Interval.Std())
	assert.Equal(t, 3, cfg.Refresh.RetryAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Refresh.BackoffBase.Std())
	assert.Equal(t, 5, cfg.Snapshot.Retention)
	assert.Equal(t, ":8080", cfg.API.Listen)
}

func TestLoadParsesTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir = "/var/lib/newsvault"

[storage]
backend = "s3"
bucket = "news-data"
prefix = "prod/news"
region = "eu-west-1"

[refresh]
interval = "90s"
retry_attempts = 5
row_floor = 1000

[snapshot]
retention = 10

[api]
listen = "127.0.0.1:9000"
`), 0o600))

	cfg, err := file.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/newsvault", cfg.DataDir)
	assert.Equal(t, "s3", cfg.Storage.Backend)
	assert.Equal(t, "news-data", cfg.Storage.Bucket)
	assert.Equal(t, "prod/news", cfg.Storage.Prefix)
	assert.Equal(t, "eu-west-1", cfg.Storage.Region)
	assert.Equal(t, 90*time.Second, cfg.Refresh.Interval.Std())
	assert.Equal(t, 5, cfg.Refresh.RetryAttempts)
	assert.Equal(t, int64(1000), cfg.Refresh.RowFloor)
	assert.Equal(t, 10, cfg.Snapshot.Retention)
	assert.Equal(t, "127.0.0.1:9000", cfg.API.Listen)

	// Unset keys keep their defaults.
	assert.Equal(t, 500*time.Millisecond, cfg.Refresh.BackoffBase.Std())
	assert.Equal(t, 4, cfg.Refresh.Concurrency)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("NEWSVAULT_STORAGE_BACKEND", "s3")
	t.Setenv("NEWSVAULT_STORAGE_BUCKET", "override-bucket")
	t.Setenv("NEWSVAULT_STORAGE_PATH_STYLE", "true")
	t.Setenv("NEWSVAULT_REFRESH_INTERVAL", "30s")
	t.Setenv("NEWSVAULT_REFRESH_ROW_FLOOR", "250")
	t.Setenv("NEWSVAULT_SNAPSHOT_RETENTION", "2")

	cfg, err := file.Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	assert.Equal(t, "s3", cfg.Storage.Backend)
	assert.Equal(t, "override-bucket", cfg.Storage.Bucket)
	assert.True(t, cfg.Storage.PathStyle)
	assert.Equal(t, 30*time.Second, cfg.Refresh.Interval.Std())
	assert.Equal(t, int64(250), cfg.Refresh.RowFloor)
	assert.Equal(t, 2, cfg.Snapshot.Retention)
}

func TestValidate(t *testing.T) {
	cfg := file.Default()
	assert.NoError(t, cfg.Validate())

	bad := file.Default()
	bad.Storage.Backend = "gcs"
	assert.Error(t, bad.Validate())

	bad = file.Default()
	bad.Storage.Backend = "s3"
	assert.Error(t, bad.Validate(), "s3 backend requires a bucket")

	bad = file.Default()
	bad.Refresh.RetryAttempts = 0
	assert.Error(t, bad.Validate())
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("storage = [broken"), 0o600))

	_, err := file.Load(path)
	assert.Error(t, err)
}
