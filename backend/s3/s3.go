// Package s3 implements the backend adapter for the scheme "objectstore" on
// top of the AWS SDK for Go v2. It works against AWS S3 and any compatible
// service reachable through a custom endpoint.
//
// Locations have the form "bucket/key". Objects at or above the multipart
// threshold are uploaded in parts, and every upload asks the service to
// verify a SHA-256 checksum of the transmitted bytes.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/input-output-hk/catalyst-forge-libs/staging/backend"
	"github.com/input-output-hk/catalyst-forge-libs/staging/errors"
	"github.com/input-output-hk/catalyst-forge-libs/staging/reference"
)

const (
	// DefaultMultipartThreshold is the object size at which uploads switch to
	// multipart.
	DefaultMultipartThreshold = 100 * 1024 * 1024

	// DefaultPartSize is the size of each multipart part.
	DefaultPartSize = 8 * 1024 * 1024

	// DefaultConcurrency is the number of parts uploaded in parallel.
	DefaultConcurrency = 5

	// MaxParts is the most parts a multipart upload may have. With the
	// default part size, streamed uploads are capped at about 78 GiB; raise
	// the part size for larger objects.
	MaxParts = 10000

	// maxSimpleCopySize is the largest object CopyObject accepts.
	maxSimpleCopySize = 5 * 1024 * 1024 * 1024
)

// Adapter stores files as S3 objects.
type Adapter struct {
	api                API
	multipartThreshold int64
	partSize           int64
	concurrency        int
	maxParts           int32
	logger             *slog.Logger
}

type options struct {
	region             string
	endpoint           string
	accessKey          string
	secretKey          string
	pathStyle          bool
	awsConfig          *aws.Config
	multipartThreshold int64
	partSize           int64
	concurrency        int
	logger             *slog.Logger
}

// Option configures an Adapter.
type Option func(*options)

// WithRegion sets the AWS region.
func WithRegion(region string) Option {
	return func(o *options) {
		o.region = region
	}
}

// WithEndpoint points the client at an S3 compatible endpoint URL.
func WithEndpoint(endpoint string) Option {
	return func(o *options) {
		o.endpoint = endpoint
	}
}

// WithCredentials uses static credentials instead of the default chain.
func WithCredentials(accessKey, secretKey string) Option {
	return func(o *options) {
		o.accessKey = accessKey
		o.secretKey = secretKey
	}
}

// WithPathStyle forces path style addressing, which most S3 compatible
// services require.
func WithPathStyle(enabled bool) Option {
	return func(o *options) {
		o.pathStyle = enabled
	}
}

// WithAWSConfig uses cfg instead of loading the default configuration.
func WithAWSConfig(cfg *aws.Config) Option {
	return func(o *options) {
		o.awsConfig = cfg
	}
}

// WithMultipartThreshold sets the size at which uploads switch to multipart.
func WithMultipartThreshold(n int64) Option {
	return func(o *options) {
		o.multipartThreshold = n
	}
}

// WithPartSize sets the multipart part size.
func WithPartSize(n int64) Option {
	return func(o *options) {
		o.partSize = n
	}
}

// WithConcurrency sets how many parts are uploaded or copied in parallel.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func buildOptions(opts []Option) *options {
	o := &options{
		multipartThreshold: DefaultMultipartThreshold,
		partSize:           DefaultPartSize,
		concurrency:        DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.multipartThreshold <= 0 {
		o.multipartThreshold = DefaultMultipartThreshold
	}
	if o.partSize <= 0 {
		o.partSize = DefaultPartSize
	}
	if o.concurrency <= 0 {
		o.concurrency = DefaultConcurrency
	}
	return o
}

// New creates an adapter backed by a new S3 client. Credentials come from the
// default AWS chain unless WithCredentials or WithAWSConfig is given.
//
// The SDK's own retries are disabled; the transfer executor owns the retry
// policy.
func New(ctx context.Context, opts ...Option) (*Adapter, error) {
	o := buildOptions(opts)

	var cfg aws.Config
	if o.awsConfig != nil {
		cfg = *o.awsConfig
	} else {
		var loadOpts []func(*config.LoadOptions) error
		if o.region != "" {
			loadOpts = append(loadOpts, config.WithRegion(o.region))
		}
		if o.accessKey != "" {
			loadOpts = append(loadOpts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(o.accessKey, o.secretKey, "")))
		}

		var err error
		cfg, err = config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidConfig, "failed to load AWS config")
		}
	}
	if o.region != "" {
		cfg.Region = o.region
	} else if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	client := s3.NewFromConfig(cfg, func(so *s3.Options) {
		so.UsePathStyle = o.pathStyle
		so.RetryMaxAttempts = 1
		if o.endpoint != "" {
			so.BaseEndpoint = aws.String(o.endpoint)
		}
	})

	return newAdapter(client, o), nil
}

// NewWithClient creates an adapter around an existing client. It is primarily
// used with mocked clients in tests.
func NewWithClient(api API, opts ...Option) *Adapter {
	return newAdapter(api, buildOptions(opts))
}

func newAdapter(api API, o *options) *Adapter {
	return &Adapter{
		api:                api,
		multipartThreshold: o.multipartThreshold,
		partSize:           o.partSize,
		concurrency:        o.concurrency,
		maxParts:           MaxParts,
		logger:             o.logger,
	}
}

// Scheme implements backend.Adapter.
func (a *Adapter) Scheme() reference.Scheme {
	return scheme
}

// Fetch implements backend.Adapter.
func (a *Adapter) Fetch(ctx context.Context, location string) (io.ReadCloser, error) {
	bucket, key, err := splitLocation(location)
	if err != nil {
		return nil, err
	}

	out, err := a.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, translate("GetObject", location, err)
	}
	return &objectReader{body: out.Body, location: location}, nil
}

// Put implements backend.Adapter. The returned size is the content length the
// service reports after the upload.
func (a *Adapter) Put(ctx context.Context, r io.Reader, location string) (int64, error) {
	bucket, key, err := splitLocation(location)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	br, contentType := backend.SniffContentType(r)

	var first bytes.Buffer
	n, err := io.CopyN(&first, br, a.multipartThreshold)
	if err != nil && err != io.EOF {
		return 0, backend.Transient(errors.CodeNetwork, scheme, location, fmt.Errorf("read source: %w", err))
	}

	var written int64
	if n < a.multipartThreshold {
		written, err = a.putSingle(ctx, bucket, key, location, first.Bytes(), contentType)
	} else {
		written, err = a.putMultipart(ctx, bucket, key, location, io.MultiReader(&first, br), contentType)
	}
	if err != nil {
		return 0, err
	}

	stat, err := a.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, translate("HeadObject", location, err)
	}
	if stat.ContentLength != nil {
		return aws.ToInt64(stat.ContentLength), nil
	}
	return written, nil
}

func (a *Adapter) putSingle(ctx context.Context, bucket, key, location string, data []byte, contentType string) (int64, error) {
	_, err := a.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:            aws.String(bucket),
		Key:               aws.String(key),
		Body:              bytes.NewReader(data),
		ContentLength:     aws.Int64(int64(len(data))),
		ContentType:       aws.String(contentType),
		ChecksumAlgorithm: types.ChecksumAlgorithmSha256,
	})
	if err != nil {
		return 0, translate("PutObject", location, err)
	}
	return int64(len(data)), nil
}

// Exists implements backend.Adapter.
func (a *Adapter) Exists(ctx context.Context, location string) (bool, error) {
	bucket, key, err := splitLocation(location)
	if err != nil {
		return false, err
	}

	_, err = a.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		terr := translate("HeadObject", location, err)
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

	_, err = a.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		terr := translate("DeleteObject", location, err)
		if errors.Is(terr, errors.ErrNotFound) {
			return nil
		}
		return terr
	}
	return nil
}

// Rename implements backend.Adapter with a server side copy followed by a
// delete of the source. Objects larger than 5 GiB are copied in parts.
func (a *Adapter) Rename(ctx context.Context, from, to string) error {
	srcBucket, srcKey, err := splitLocation(from)
	if err != nil {
		return err
	}
	dstBucket, dstKey, err := splitLocation(to)
	if err != nil {
		return err
	}

	head, err := a.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(srcBucket),
		Key:    aws.String(srcKey),
	})
	if err != nil {
		return translate("HeadObject", from, err)
	}

	source := copySource(srcBucket, srcKey)
	if size := aws.ToInt64(head.ContentLength); size > maxSimpleCopySize {
		err = a.copyMultipart(ctx, source, dstBucket, dstKey, to, size, aws.ToString(head.ContentType))
	} else {
		_, err = a.api.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:            aws.String(dstBucket),
			Key:               aws.String(dstKey),
			CopySource:        aws.String(source),
			ChecksumAlgorithm: types.ChecksumAlgorithmSha256,
		})
		err = translate("CopyObject", to, err)
	}
	if err != nil {
		return err
	}

	return a.Delete(ctx, from)
}

func (a *Adapter) debug(ctx context.Context, msg string, args ...any) {
	if a.logger != nil {
		a.logger.DebugContext(ctx, msg, args...)
	}
}

// splitLocation splits "bucket/key" into its parts.
func splitLocation(location string) (string, string, error) {
	bucket, key, ok := strings.Cut(strings.TrimPrefix(location, "/"), "/")
	if !ok || bucket == "" || key == "" {
		return "", "", errors.NewWithContext(errors.CodeInvalidInput,
			"object store location must have the form bucket/key",
			map[string]interface{}{"scheme": string(scheme), "location": location})
	}
	return bucket, key, nil
}

// copySource returns the URL encoded CopySource value for bucket/key.
func copySource(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return bucket + "/" + strings.Join(segments, "/")
}

// objectReader translates errors raised while streaming an object body.
type objectReader struct {
	body     io.ReadCloser
	location string
}

func (r *objectReader) Read(p []byte) (int, error) {
	n, err := r.body.Read(p)
	if err != nil && err != io.EOF {
		return n, translate("GetObject", r.location, err)
	}
	return n, err
}

func (r *objectReader) Close() error {
	return r.body.Close()
}

var _ backend.Adapter = (*Adapter)(nil)
