package config

import (
	"strings"
	"testing"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/staging/errors"
)

func validConfig() Config {
	c := Default()
	c.WorkDir = "/scratch"
	c.ObjectStore.Driver = DriverS3
	return c
}

//nolint:funlen // Comprehensive table-driven test with many test cases
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid configuration",
			mutate: func(_ *Config) {},
		},
		{
			name:   "object store disabled",
			mutate: func(c *Config) { c.ObjectStore = ObjectStoreConfig{} },
		},
		{
			name:    "relative work dir",
			mutate:  func(c *Config) { c.WorkDir = "scratch" },
			wantErr: true,
			errMsg:  "work_dir must be absolute",
		},
		{
			name:    "empty work dir",
			mutate:  func(c *Config) { c.WorkDir = "" },
			wantErr: true,
			errMsg:  "work_dir must be set",
		},
		{
			name:    "zero attempts",
			mutate:  func(c *Config) { c.Retry.MaxAttempts = 0 },
			wantErr: true,
			errMsg:  "retry.max_attempts",
		},
		{
			name:    "base above max delay",
			mutate:  func(c *Config) { c.Retry.BaseDelay = time.Minute },
			wantErr: true,
			errMsg:  "exceeds retry.max_delay",
		},
		{
			name:    "jitter out of range",
			mutate:  func(c *Config) { c.Retry.Jitter = 1.5 },
			wantErr: true,
			errMsg:  "retry.jitter",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.ObjectStore.Driver = "gcs" },
			wantErr: true,
			errMsg:  `got "gcs"`,
		},
		{
			name:    "minio without endpoint",
			mutate:  func(c *Config) { c.ObjectStore.Driver = DriverMinio },
			wantErr: true,
			errMsg:  "endpoint is required",
		},
		{
			name:    "half credentials",
			mutate:  func(c *Config) { c.ObjectStore.AccessKey = "key" },
			wantErr: true,
			errMsg:  "must be set together",
		},
		{
			name:    "part size below minimum",
			mutate:  func(c *Config) { c.ObjectStore.PartSize = 1 << 20 },
			wantErr: true,
			errMsg:  "part_size must be at least 5242880",
		},
		{
			name: "threshold below part size",
			mutate: func(c *Config) {
				c.ObjectStore.MultipartThreshold = 6 << 20
				c.ObjectStore.PartSize = 8 << 20
			},
			wantErr: true,
			errMsg:  "multipart_threshold",
		},
		{
			name:    "relative shared root",
			mutate:  func(c *Config) { c.SharedFS.Root = "mnt" },
			wantErr: true,
			errMsg:  "shared_fs.root must be absolute",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)

			err := c.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				if errors.GetCode(err) != errors.CodeInvalidConfig {
					t.Errorf("Expected code %s, got %s", errors.CodeInvalidConfig, errors.GetCode(err))
				}
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("Expected error to contain %q, got %q", tt.errMsg, err.Error())
				}
				return
			}
			if err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	c := validConfig()
	c.WorkDir = ""
	c.Retry.MaxAttempts = -1
	c.ObjectStore.Driver = "ftp"

	err := c.Validate()
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	for _, want := range []string{"work_dir", "max_attempts", "driver"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected error to mention %q, got %q", want, err.Error())
		}
	}
}
