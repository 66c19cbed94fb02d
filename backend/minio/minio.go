// Package minio implements the backend adapter for the scheme "objectstore"
// using the MinIO client. It is an alternative to the s3 package for
// deployments that run MinIO or another S3 compatible store.
//
// Locations have the form "bucket/key".
package minio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/input-output-hk/catalyst-forge-libs/staging/backend"
	"github.com/input-output-hk/catalyst-forge-libs/staging/errors"
	"github.com/input-output-hk/catalyst-forge-libs/staging/reference"
)

const maxSimpleCopySize = 5 * 1024 * 1024 * 1024

// Client is the subset of *minio.Client the adapter uses.
type Client interface {
	GetObject(ctx context.Context, bucket, object string, opts minio.GetObjectOptions) (*minio.Object, error)
	PutObject(
		ctx context.Context,
		bucket, object string,
		r io.Reader,
		size int64,
		opts minio.PutObjectOptions,
	) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucket, object string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	RemoveObject(ctx context.Context, bucket, object string, opts minio.RemoveObjectOptions) error
	CopyObject(ctx context.Context, dst minio.CopyDestOptions, src minio.CopySrcOptions) (minio.UploadInfo, error)
	ComposeObject(ctx context.Context, dst minio.CopyDestOptions, srcs ...minio.CopySrcOptions) (minio.UploadInfo, error)
}

// Adapter stores files as objects through a MinIO client.
type Adapter struct {
	client   Client
	partSize uint64
	logger   *slog.Logger
}

type options struct {
	accessKey string
	secretKey string
	region    string
	useSSL    bool
	partSize  uint64
	logger    *slog.Logger
}

// Option configures an Adapter.
type Option func(*options)

// WithCredentials sets static access credentials.
func WithCredentials(accessKey, secretKey string) Option {
	return func(o *options) {
		o.accessKey = accessKey
		o.secretKey = secretKey
	}
}

// WithRegion sets the region.
func WithRegion(region string) Option {
	return func(o *options) {
		o.region = region
	}
}

// WithSSL enables TLS.
func WithSSL(enabled bool) Option {
	return func(o *options) {
		o.useSSL = enabled
	}
}

// WithPartSize sets the multipart part size used for streaming uploads.
func WithPartSize(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.partSize = uint64(n)
		}
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New connects to the store at endpoint ("host:port").
func New(endpoint string, opts ...Option) (*Adapter, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(o.accessKey, o.secretKey, ""),
		Secure: o.useSSL,
		Region: o.region,
	})
	if err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeInvalidConfig, "failed to create minio client",
			map[string]interface{}{"endpoint": endpoint})
	}

	return &Adapter{client: client, partSize: o.partSize, logger: o.logger}, nil
}

// NewWithClient creates an adapter around an existing client.
func NewWithClient(client Client, opts ...Option) *Adapter {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return &Adapter{client: client, partSize: o.partSize, logger: o.logger}
}

// Scheme implements backend.Adapter.
func (a *Adapter) Scheme() reference.Scheme {
	return reference.SchemeObjectStore
}

// Fetch implements backend.Adapter.
func (a *Adapter) Fetch(ctx context.Context, location string) (io.ReadCloser, error) {
	bucket, key, err := splitLocation(location)
	if err != nil {
		return nil, err
	}

	obj, err := a.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translateError("GetObject", location, err)
	}
	// GetObject is lazy; Stat surfaces a missing object before any read.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, translateError("GetObject", location, err)
	}
	return &objectReader{obj: obj, location: location}, nil
}

// Put implements backend.Adapter. The content is streamed with an unknown
// size, so large files are uploaded in parts of the configured part size.
// The client stops reading after its maximum part count and completes the
// upload anyway; content left unread then means the stored object is
// truncated, so it is removed and CAPACITY_EXCEEDED is returned.
func (a *Adapter) Put(ctx context.Context, r io.Reader, location string) (int64, error) {
	bucket, key, err := splitLocation(location)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	body, contentType := backend.SniffContentType(r)
	info, err := a.client.PutObject(ctx, bucket, key, body, -1, minio.PutObjectOptions{
		ContentType:    contentType,
		PartSize:       a.partSize,
		SendContentMd5: true,
	})
	if err != nil {
		return 0, translateError("PutObject", location, err)
	}
	if leftover(body) {
		if rerr := a.client.RemoveObject(context.WithoutCancel(ctx), bucket, key, minio.RemoveObjectOptions{}); rerr != nil && a.logger != nil {
			a.logger.WarnContext(ctx, "failed to remove truncated object", "location", location, "error", rerr)
		}
		return 0, backend.CapacityExceeded(scheme, location,
			fmt.Errorf("content exceeds the upload part limit after %d bytes", info.Size))
	}

	stat, err := a.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return 0, translateError("StatObject", location, err)
	}
	if a.logger != nil {
		a.logger.DebugContext(ctx, "object stored",
			"location", location,
			"sent", info.Size,
			"size", stat.Size,
			"etag", stat.ETag)
	}
	return stat.Size, nil
}

// leftover reports whether r still has content after an upload.
func leftover(r io.Reader) bool {
	var b [1]byte
	n, _ := io.ReadFull(r, b[:])
	return n > 0
}

// Exists implements backend.Adapter.
func (a *Adapter) Exists(ctx context.Context, location string) (bool, error) {
	bucket, key, err := splitLocation(location)
	if err != nil {
		return false, err
	}

	if _, err := a.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{}); err != nil {
		terr := translateError("StatObject", location, err)
		if errors.Is(terr, errors.ErrNotFound) {
			return false, nil
		}
		return false, terr
	}
	return true, nil
}

// Delete implements backend.Adapter.
func (a *Adapter) Delete(ctx context.Context, location string) error {
	bucket, key, err := splitLocation(location)
	if err != nil {
		return err
	}

	if err := a.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		terr := translateError("RemoveObject", location, err)
		if errors.Is(terr, errors.ErrNotFound) {
			return nil
		}
		return terr
	}
	return nil
}

// Rename implements backend.Adapter with a server side copy followed by a
// delete of the source.
func (a *Adapter) Rename(ctx context.Context, from, to string) error {
	srcBucket, srcKey, err := splitLocation(from)
	if err != nil {
		return err
	}
	dstBucket, dstKey, err := splitLocation(to)
	if err != nil {
		return err
	}

	stat, err := a.client.StatObject(ctx, srcBucket, srcKey, minio.StatObjectOptions{})
	if err != nil {
		return translateError("StatObject", from, err)
	}

	src := minio.CopySrcOptions{Bucket: srcBucket, Object: srcKey}
	dst := minio.CopyDestOptions{Bucket: dstBucket, Object: dstKey}
	if stat.Size > maxSimpleCopySize {
		_, err = a.client.ComposeObject(ctx, dst, src)
	} else {
		_, err = a.client.CopyObject(ctx, dst, src)
	}
	if err != nil {
		return translateError("CopyObject", to, err)
	}

	return a.Delete(ctx, from)
}

func splitLocation(location string) (string, string, error) {
	bucket, key, ok := strings.Cut(strings.TrimPrefix(location, "/"), "/")
	if !ok || bucket == "" || key == "" {
		return "", "", errors.NewWithContext(errors.CodeInvalidInput,
			"object store location must have the form bucket/key",
			map[string]interface{}{"scheme": string(reference.SchemeObjectStore), "location": location})
	}
	return bucket, key, nil
}

type objectReader struct {
	obj      *minio.Object
	location string
}

func (r *objectReader) Read(p []byte) (int, error) {
	n, err := r.obj.Read(p)
	if err != nil && err != io.EOF {
		return n, translateError("GetObject", r.location, err)
	}
	return n, err
}

func (r *objectReader) Close() error {
	return r.obj.Close()
}

var (
	_ backend.Adapter = (*Adapter)(nil)
	_ Client          = (*minio.Client)(nil)
)
