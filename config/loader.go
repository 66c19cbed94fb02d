package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/input-output-hk/catalyst-forge-libs/staging/errors"
	"github.com/input-output-hk/catalyst-forge-libs/staging/fs/core"
	"github.com/input-output-hk/catalyst-forge-libs/staging/transfer"
)

// Default returns the configuration used for keys no source sets.
func Default() Config {
	b := transfer.DefaultBackoff()
	return Config{
		WorkDir: os.TempDir(),
		Retry: RetryConfig{
			MaxAttempts: transfer.DefaultMaxAttempts,
			BaseDelay:   b.Base,
			MaxDelay:    b.Max,
			Jitter:      b.Jitter,
		},
		ObjectStore: ObjectStoreConfig{
			Region:             "us-east-1",
			UseSSL:             true,
			MultipartThreshold: 100 << 20,
			PartSize:           8 << 20,
			Concurrency:        5,
		},
	}
}

// setDefaults registers every key with viper. AutomaticEnv only binds keys
// viper already knows about, so each key needs a default.
func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("work_dir", d.WorkDir)
	v.SetDefault("mock_mode", d.MockMode)

	v.SetDefault("retry.max_attempts", d.Retry.MaxAttempts)
	v.SetDefault("retry.base_delay", d.Retry.BaseDelay)
	v.SetDefault("retry.max_delay", d.Retry.MaxDelay)
	v.SetDefault("retry.jitter", d.Retry.Jitter)

	v.SetDefault("object_store.driver", d.ObjectStore.Driver)
	v.SetDefault("object_store.endpoint", d.ObjectStore.Endpoint)
	v.SetDefault("object_store.region", d.ObjectStore.Region)
	v.SetDefault("object_store.access_key", d.ObjectStore.AccessKey)
	v.SetDefault("object_store.secret_key", d.ObjectStore.SecretKey)
	v.SetDefault("object_store.use_ssl", d.ObjectStore.UseSSL)
	v.SetDefault("object_store.path_style", d.ObjectStore.PathStyle)
	v.SetDefault("object_store.multipart_threshold", d.ObjectStore.MultipartThreshold)
	v.SetDefault("object_store.part_size", d.ObjectStore.PartSize)
	v.SetDefault("object_store.concurrency", d.ObjectStore.Concurrency)

	v.SetDefault("shared_fs.root", d.SharedFS.Root)
	v.SetDefault("shared_fs.disable_links", d.SharedFS.DisableLinks)
}

// load builds a Config from defaults, the file at path, .env files and the
// environment, then validates it unless opts.SkipValidation is set.
func load(ctx context.Context, filesystem core.ReadFS, path string, opts LoadOptions) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(opts.EnvFiles) > 0 {
		if err := godotenv.Load(opts.EnvFiles...); err != nil {
			return nil, errors.WrapWithContext(err, errors.CodeInvalidConfig,
				"failed to load env files", map[string]interface{}{"files": opts.EnvFiles})
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		data, err := filesystem.ReadFile(path)
		if err != nil {
			return nil, errors.WrapWithContext(err, errors.CodeInvalidConfig,
				"failed to read configuration file", map[string]interface{}{"path": path})
		}
		v.SetConfigType(configType(path))
		if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
			return nil, errors.WrapWithContext(err, errors.CodeInvalidConfig,
				"failed to parse configuration file", map[string]interface{}{"path": path})
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeInvalidConfig,
			"failed to decode configuration", map[string]interface{}{"path": path})
	}

	if !opts.SkipValidation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

func configType(path string) string {
	switch ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."); ext {
	case "json", "toml", "env":
		return ext
	default:
		return "yaml"
	}
}
