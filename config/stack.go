package config

import (
	"context"
	"log/slog"

	"github.com/input-output-hk/catalyst-forge-libs/staging/backend"
	"github.com/input-output-hk/catalyst-forge-libs/staging/backend/local"
	"github.com/input-output-hk/catalyst-forge-libs/staging/backend/minio"
	"github.com/input-output-hk/catalyst-forge-libs/staging/backend/s3"
	"github.com/input-output-hk/catalyst-forge-libs/staging/backend/sharedfs"
	"github.com/input-output-hk/catalyst-forge-libs/staging/errors"
	"github.com/input-output-hk/catalyst-forge-libs/staging/planner"
	"github.com/input-output-hk/catalyst-forge-libs/staging/session"
	"github.com/input-output-hk/catalyst-forge-libs/staging/transfer"
)

// NewPlanner constructs the adapters the configuration enables and registers
// them with a planner. The local scheme is always served.
func (c *Config) NewPlanner(ctx context.Context, logger *slog.Logger) (*planner.Planner, error) {
	adapters := []backend.Adapter{local.New(local.WithLogger(logger))}

	if c.SharedFS.Root != "" {
		opts := []sharedfs.Option{sharedfs.WithLogger(logger)}
		if c.SharedFS.DisableLinks {
			opts = append(opts, sharedfs.WithoutLinks())
		}
		adapters = append(adapters, sharedfs.New(c.SharedFS.Root, opts...))
	}

	store, err := c.newObjectStore(ctx, logger)
	if err != nil {
		return nil, err
	}
	if store != nil {
		adapters = append(adapters, store)
	}

	return planner.New(adapters...)
}

//nolint:ireturn // the driver decides the concrete adapter.
func (c *Config) newObjectStore(ctx context.Context, logger *slog.Logger) (backend.Adapter, error) {
	o := c.ObjectStore
	switch o.Driver {
	case "":
		return nil, nil
	case DriverS3:
		opts := []s3.Option{
			s3.WithRegion(o.Region),
			s3.WithPathStyle(o.PathStyle),
			s3.WithMultipartThreshold(o.MultipartThreshold),
			s3.WithPartSize(o.PartSize),
			s3.WithConcurrency(o.Concurrency),
			s3.WithLogger(logger),
		}
		if o.Endpoint != "" {
			opts = append(opts, s3.WithEndpoint(o.Endpoint))
		}
		if o.AccessKey != "" {
			opts = append(opts, s3.WithCredentials(o.AccessKey, o.SecretKey))
		}
		a, err := s3.New(ctx, opts...)
		if err != nil {
			return nil, err
		}
		return a, nil
	case DriverMinio:
		a, err := minio.New(o.Endpoint,
			minio.WithCredentials(o.AccessKey, o.SecretKey),
			minio.WithRegion(o.Region),
			minio.WithSSL(o.UseSSL),
			minio.WithPartSize(o.PartSize),
			minio.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, errors.NewWithContext(errors.CodeInvalidConfig, "unknown object store driver",
			map[string]interface{}{"driver": o.Driver})
	}
}

// NewExecutor returns an executor using the retry settings.
func (c *Config) NewExecutor(logger *slog.Logger) *transfer.Executor {
	return transfer.NewExecutor(
		transfer.WithMaxAttempts(c.Retry.MaxAttempts),
		transfer.WithBackoff(transfer.Backoff{
			Base:   c.Retry.BaseDelay,
			Max:    c.Retry.MaxDelay,
			Jitter: c.Retry.Jitter,
		}),
		transfer.WithLogger(logger),
	)
}

// NewSession builds the full staging stack and opens a session in WorkDir.
// Options are applied after the ones derived from the configuration.
func (c *Config) NewSession(ctx context.Context, logger *slog.Logger, opts ...session.Option) (*session.Session, error) {
	p, err := c.NewPlanner(ctx, logger)
	if err != nil {
		return nil, err
	}
	base := []session.Option{
		session.WithExecutor(c.NewExecutor(logger)),
		session.WithMockMode(c.MockMode),
		session.WithLogger(logger),
	}
	return session.New(p, c.WorkDir, append(base, opts...)...)
}
