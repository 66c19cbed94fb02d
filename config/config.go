// Package config loads staging configuration from a YAML file, environment
// variables and optional .env files, and builds the staging stack from it.
//
// # Basic Usage
//
//	cfg, err := config.Load("/etc/staging/staging.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	sess, err := cfg.NewSession(ctx, slog.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sess.Close(ctx)
//
// # Sources
//
// Values are resolved in this order, highest precedence first:
//
//  1. Environment variables prefixed with STAGING_, with nested keys joined
//     by underscores (STAGING_OBJECT_STORE_ENDPOINT, STAGING_RETRY_MAX_ATTEMPTS).
//  2. Variables from .env files named in LoadOptions.EnvFiles. They never
//     override variables already set in the process environment.
//  3. The configuration file.
//  4. Defaults (see Default).
//
// A file example:
//
//	work_dir: /scratch
//	retry:
//	  max_attempts: 5
//	  base_delay: 1s
//	object_store:
//	  driver: minio
//	  endpoint: minio.internal:9000
//	  access_key: staging
//	  secret_key: secret
//	shared_fs:
//	  root: /mnt/cohort
package config

import (
	"context"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/staging/fs/billy"
	"github.com/input-output-hk/catalyst-forge-libs/staging/fs/core"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "STAGING"

// Object store drivers.
const (
	DriverS3    = "s3"
	DriverMinio = "minio"
)

// Config is the complete staging configuration.
type Config struct {
	// WorkDir is the directory sessions create their scratch directories in.
	WorkDir string `mapstructure:"work_dir"`

	// MockMode makes sessions skip all transfers.
	MockMode bool `mapstructure:"mock_mode"`

	Retry       RetryConfig       `mapstructure:"retry"`
	ObjectStore ObjectStoreConfig `mapstructure:"object_store"`
	SharedFS    SharedFSConfig    `mapstructure:"shared_fs"`
}

// RetryConfig controls the transfer executor.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
	Jitter      float64       `mapstructure:"jitter"`
}

// ObjectStoreConfig selects and configures the objectstore backend. An empty
// Driver disables the scheme.
type ObjectStoreConfig struct {
	// Driver is "s3" or "minio".
	Driver string `mapstructure:"driver"`

	// Endpoint is a URL for the s3 driver and host:port for the minio driver.
	// The s3 driver uses the AWS default endpoint when it is empty.
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	PathStyle bool   `mapstructure:"path_style"`

	MultipartThreshold int64 `mapstructure:"multipart_threshold"`
	PartSize           int64 `mapstructure:"part_size"`
	Concurrency        int   `mapstructure:"concurrency"`
}

// SharedFSConfig configures the sharedfs backend. An empty Root disables the
// scheme.
type SharedFSConfig struct {
	Root         string `mapstructure:"root"`
	DisableLinks bool   `mapstructure:"disable_links"`
}

// LoadOptions configures the behavior of configuration loading operations.
type LoadOptions struct {
	// SkipValidation disables automatic validation after loading.
	SkipValidation bool

	// EnvFiles lists .env files to load before reading the environment.
	// Missing files are an error.
	EnvFiles []string
}

// Load reads and validates the configuration file at path on the host
// filesystem. An empty path loads defaults and the environment only.
func Load(path string) (*Config, error) {
	return load(context.Background(), billy.NewOSFS("/"), path, LoadOptions{})
}

// LoadWithOptions loads a configuration from filesystem with custom options.
func LoadWithOptions(ctx context.Context, filesystem core.ReadFS, path string, opts LoadOptions) (*Config, error) {
	return load(ctx, filesystem, path, opts)
}
