package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/input-output-hk/catalyst-forge-libs/staging/errors"
)

// minPartSize is the smallest part object stores accept for all but the last
// part of a multipart upload.
const minPartSize = 5 << 20

// Validate checks the configuration for values the staging stack cannot run
// with. All problems are reported in a single INVALID_CONFIGURATION error.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.WorkDir == "" {
		add("work_dir must be set")
	} else if !filepath.IsAbs(c.WorkDir) {
		add("work_dir must be absolute, got %q", c.WorkDir)
	}

	r := c.Retry
	if r.MaxAttempts < 1 {
		add("retry.max_attempts must be at least 1, got %d", r.MaxAttempts)
	}
	if r.BaseDelay < 0 || r.MaxDelay < 0 {
		add("retry delays cannot be negative")
	}
	if r.MaxDelay > 0 && r.BaseDelay > r.MaxDelay {
		add("retry.base_delay (%s) exceeds retry.max_delay (%s)", r.BaseDelay, r.MaxDelay)
	}
	if r.Jitter < 0 || r.Jitter > 1 {
		add("retry.jitter must be within [0, 1], got %g", r.Jitter)
	}

	o := c.ObjectStore
	switch o.Driver {
	case "":
	case DriverS3, DriverMinio:
		if o.Driver == DriverMinio && o.Endpoint == "" {
			add("object_store.endpoint is required for the minio driver")
		}
		if (o.AccessKey == "") != (o.SecretKey == "") {
			add("object_store.access_key and object_store.secret_key must be set together")
		}
		if o.PartSize < minPartSize {
			add("object_store.part_size must be at least %d bytes, got %d", minPartSize, o.PartSize)
		}
		if o.MultipartThreshold < o.PartSize {
			add("object_store.multipart_threshold must not be below object_store.part_size")
		}
		if o.Concurrency < 1 {
			add("object_store.concurrency must be at least 1, got %d", o.Concurrency)
		}
	default:
		add("object_store.driver must be %q or %q, got %q", DriverS3, DriverMinio, o.Driver)
	}

	if c.SharedFS.Root != "" && !filepath.IsAbs(c.SharedFS.Root) {
		add("shared_fs.root must be absolute, got %q", c.SharedFS.Root)
	}

	if len(problems) > 0 {
		return errors.New(errors.CodeInvalidConfig,
			fmt.Sprintf("staging configuration validation failed: %s", strings.Join(problems, "; ")))
	}
	return nil
}
