// Package file loads newsvault configuration from a TOML file with
// NEWSVAULT_* environment overrides. Defaults work with everything
// unset: an in-memory object store and a temp data directory.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration parses TOML strings like "5m" into a time.Duration.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full newsvault configuration.
type Config struct {
	// DataDir holds replica database files. Empty uses a temp
	// directory.
	DataDir string `toml:"data_dir"`

	Storage  StorageConfig  `toml:"storage"`
	Refresh  RefreshConfig  `toml:"refresh"`
	Snapshot SnapshotConfig `toml:"snapshot"`
	API      APIConfig      `toml:"api"`
}

// StorageConfig selects and configures the object storage backend.
type StorageConfig struct {
	// Backend is "s3" or "memory".
	Backend string `toml:"backend"`

	// Bucket is the S3 bucket. Required for the s3 backend.
	Bucket string `toml:"bucket"`

	// Prefix is the key prefix (dataset name) inside the bucket.
	Prefix string `toml:"prefix"`

	// Region is the AWS region.
	Region string `toml:"region"`

	// Endpoint overrides the S3 endpoint for S3-compatible backends.
	Endpoint string `toml:"endpoint"`

	// PathStyle forces path-style addressing.
	PathStyle bool `toml:"path_style"`
}

// RefreshConfig tunes the background refresh cycle.
type RefreshConfig struct {
	Interval      Duration `toml:"interval"`
	RetryAttempts int      `toml:"retry_attempts"`
	BackoffBase   Duration `toml:"backoff_base"`
	RowFloor      int64    `toml:"row_floor"`
	Timeout       Duration `toml:"timeout"`
	Concurrency   int      `toml:"concurrency"`
}

// SnapshotConfig tunes backup behaviour.
type SnapshotConfig struct {
	// Retention is the number of snapshot versions kept after each
	// backup. Zero keeps all.
	Retention int `toml:"retention"`
}

// APIConfig configures the HTTP API.
type APIConfig struct {
	// Listen is the address the API server binds to.
	Listen string `toml:"listen"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Storage: StorageConfig{
			Backend: "memory",
			Prefix:  "news",
		},
		Refresh: RefreshConfig{
			Interval:      Duration(5 * time.Minute),
			RetryAttempts: 3,
			BackoffBase:   Duration(500 * time.Millisecond),
			Timeout:       Duration(2 * time.Minute),
			Concurrency:   4,
		},
		Snapshot: SnapshotConfig{Retention: 5},
		API:      APIConfig{Listen: ":8080"},
	}
}

// DefaultPath returns ~/.newsvault/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".newsvault", "config.toml"), nil
}

// Load reads configuration from path, falling back to defaults when
// the file does not exist, then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// No config file yet - run on defaults.
		default:
			return Config{}, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the services cannot run with.
func (c Config) Validate() error {
	if c.Storage.Backend != "memory" && c.Storage.Backend != "s3" {
		return fmt.Errorf("storage.backend must be \"memory\" or \"s3\", got %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "s3" && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required for the s3 backend")
	}
	if c.Refresh.RetryAttempts < 1 {
		return fmt.Errorf("refresh.retry_attempts must be at least 1")
	}
	return nil
}

// applyEnv overrides config fields from NEWSVAULT_* variables.
func applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setBool := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}
	setInt := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setInt64 := func(key string, dst *int64) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				*dst = n
			}
		}
	}
	setDuration := func(key string, dst *Duration) {
		if v, ok := os.LookupEnv(key); ok {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = Duration(d)
			}
		}
	}

	setString("NEWSVAULT_DATA_DIR", &cfg.DataDir)
	setString("NEWSVAULT_STORAGE_BACKEND", &cfg.Storage.Backend)
	setString("NEWSVAULT_STORAGE_BUCKET", &cfg.Storage.Bucket)
	setString("NEWSVAULT_STORAGE_PREFIX", &cfg.Storage.Prefix)
	setString("NEWSVAULT_STORAGE_REGION", &cfg.Storage.Region)
	setString("NEWSVAULT_STORAGE_ENDPOINT", &cfg.Storage.Endpoint)
	setBool("NEWSVAULT_STORAGE_PATH_STYLE", &cfg.Storage.PathStyle)
	setDuration("NEWSVAULT_REFRESH_INTERVAL", &cfg.Refresh.Interval)
	setInt("NEWSVAULT_REFRESH_RETRY_ATTEMPTS", &cfg.Refresh.RetryAttempts)
	setDuration("NEWSVAULT_REFRESH_BACKOFF_BASE", &cfg.Refresh.BackoffBase)
	setInt64("NEWSVAULT_REFRESH_ROW_FLOOR", &cfg.Refresh.RowFloor)
	setDuration("NEWSVAULT_REFRESH_TIMEOUT", &cfg.Refresh.Timeout)
	setInt("NEWSVAULT_REFRESH_CONCURRENCY", &cfg.Refresh.Concurrency)
	setInt("NEWSVAULT_SNAPSHOT_RETENTION", &cfg.Snapshot.Retention)
	setString("NEWSVAULT_API_LISTEN", &cfg.API.Listen)
}
