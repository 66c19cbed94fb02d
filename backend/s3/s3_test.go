package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/staging/backend"
	"github.com/input-output-hk/catalyst-forge-libs/staging/backend/backendtest"
	"github.com/input-output-hk/catalyst-forge-libs/staging/errors"
	"github.com/input-output-hk/catalyst-forge-libs/staging/reference"
)

func TestAdapter_Conformance(t *testing.T) {
	backendtest.TestSuite(t, func(t *testing.T) (backend.Adapter, string) {
		mock, _ := newMemoryMock()
		return NewWithClient(mock), "bucket/suite"
	})
}

func TestAdapter_Scheme(t *testing.T) {
	assert.Equal(t, reference.SchemeObjectStore, NewWithClient(&MockS3Client{}).Scheme())
}

func TestAdapter_PutSingle(t *testing.T) {
	var captured *s3.PutObjectInput
	mock := &MockS3Client{
		PutObjectFunc: func(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
			captured = in
			return &s3.PutObjectOutput{}, nil
		},
		HeadObjectFunc: func(_ context.Context, _ *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
			return &s3.HeadObjectOutput{ContentLength: aws.Int64(11)}, nil
		},
	}

	n, err := NewWithClient(mock).Put(context.Background(), bytes.NewReader([]byte("hello world")), "bucket/dir/out.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(11), n)

	require.NotNil(t, captured)
	assert.Equal(t, "bucket", aws.ToString(captured.Bucket))
	assert.Equal(t, "dir/out.txt", aws.ToString(captured.Key))
	assert.Equal(t, types.ChecksumAlgorithmSha256, captured.ChecksumAlgorithm)
	assert.Equal(t, int64(11), aws.ToInt64(captured.ContentLength))
	assert.Equal(t, "text/plain; charset=utf-8", aws.ToString(captured.ContentType))
}

func TestAdapter_PutReportsServiceSize(t *testing.T) {
	mock := &MockS3Client{
		HeadObjectFunc: func(_ context.Context, _ *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
			return &s3.HeadObjectOutput{ContentLength: aws.Int64(3)}, nil
		},
	}

	n, err := NewWithClient(mock).Put(context.Background(), bytes.NewReader([]byte("truncated?")), "bucket/key")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n, "confirmed size must come from the service")
}

func TestAdapter_PutMultipart(t *testing.T) {
	mock, bucket := newMemoryMock()
	var parts atomic.Int32
	upload := mock.UploadPartFunc
	mock.UploadPartFunc = func(ctx context.Context, in *s3.UploadPartInput, opts ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
		parts.Add(1)
		assert.Equal(t, types.ChecksumAlgorithmSha256, in.ChecksumAlgorithm)
		return upload(ctx, in, opts...)
	}

	content := []byte("abcdefghijklmnopqrstuvw")
	a := NewWithClient(mock, WithMultipartThreshold(10), WithPartSize(4), WithConcurrency(2))

	n, err := a.Put(context.Background(), bytes.NewReader(content), "bucket/big.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), n)
	assert.Equal(t, int32(6), parts.Load())

	stored, ok := bucket.get("bucket", "big.bin")
	require.True(t, ok)
	assert.Equal(t, content, stored)
	assert.Zero(t, bucket.aborted)
}

func TestAdapter_PutMultipartAbortsOnFailure(t *testing.T) {
	mock, bucket := newMemoryMock()
	upload := mock.UploadPartFunc
	mock.UploadPartFunc = func(ctx context.Context, in *s3.UploadPartInput, opts ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
		if aws.ToInt32(in.PartNumber) == 2 {
			return nil, &smithy.GenericAPIError{Code: "SlowDown", Message: "reduce your request rate"}
		}
		return upload(ctx, in, opts...)
	}
	var completed bool
	mock.CompleteMultipartUploadFunc = func(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
		completed = true
		return &s3.CompleteMultipartUploadOutput{}, nil
	}

	a := NewWithClient(mock, WithMultipartThreshold(8), WithPartSize(4), WithConcurrency(1))
	_, err := a.Put(context.Background(), bytes.NewReader(make([]byte, 20)), "bucket/big.bin")

	require.Error(t, err)
	assert.Equal(t, errors.CodeRateLimit, errors.GetCode(err))
	assert.True(t, errors.IsRetryable(err))
	assert.False(t, completed)
	assert.Equal(t, 1, bucket.aborted)
	_, ok := bucket.get("bucket", "big.bin")
	assert.False(t, ok)
}

func TestAdapter_PutMultipartPartLimit(t *testing.T) {
	tests := []struct {
		name  string
		size  int
		parts int32
		err   bool
	}{
		{"exactly at the limit", 12, 3, false},
		{"one byte over the limit", 13, 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, bucket := newMemoryMock()
			var parts atomic.Int32
			upload := mock.UploadPartFunc
			mock.UploadPartFunc = func(ctx context.Context, in *s3.UploadPartInput, opts ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
				parts.Add(1)
				return upload(ctx, in, opts...)
			}

			a := NewWithClient(mock, WithMultipartThreshold(8), WithPartSize(4), WithConcurrency(1))
			a.maxParts = 3

			n, err := a.Put(context.Background(), bytes.NewReader(make([]byte, tt.size)), "bucket/big.bin")
			assert.Equal(t, tt.parts, parts.Load())
			if !tt.err {
				require.NoError(t, err)
				assert.Equal(t, int64(tt.size), n)
				assert.Zero(t, bucket.aborted)
				return
			}

			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrCapacity)
			assert.False(t, errors.IsRetryable(err))
			assert.Contains(t, err.Error(), "more than 3 parts")
			assert.Equal(t, 1, bucket.aborted)
			_, ok := bucket.get("bucket", "big.bin")
			assert.False(t, ok)
		})
	}
}

func TestAdapter_RenamePartCopyStaysWithinPartLimit(t *testing.T) {
	size := int64(maxSimpleCopySize + 1)
	var (
		copies atomic.Int32
		mu     sync.Mutex
		ranges []string
	)
	mock := &MockS3Client{
		HeadObjectFunc: func(_ context.Context, _ *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
			return &s3.HeadObjectOutput{ContentLength: aws.Int64(size)}, nil
		},
		UploadPartCopyFunc: func(_ context.Context, in *s3.UploadPartCopyInput, _ ...func(*s3.Options)) (*s3.UploadPartCopyOutput, error) {
			copies.Add(1)
			mu.Lock()
			ranges = append(ranges, aws.ToString(in.CopySourceRange))
			mu.Unlock()
			return &s3.UploadPartCopyOutput{CopyPartResult: &types.CopyPartResult{ETag: aws.String("e")}}, nil
		},
		DeleteObjectFunc: func(context.Context, *s3.DeleteObjectInput, ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
			return &s3.DeleteObjectOutput{}, nil
		},
	}

	a := NewWithClient(mock, WithPartSize(1024*1024*1024), WithConcurrency(4))
	a.maxParts = 3
	require.NoError(t, a.Rename(context.Background(), "bucket/big.partial", "bucket/big"))

	assert.Equal(t, int32(3), copies.Load())
	partSize := (size + 2) / 3
	assert.Contains(t, ranges, fmt.Sprintf("bytes=%d-%d", 2*partSize, size-1))
}

func TestCopyPartSize(t *testing.T) {
	assert.Equal(t, int64(8), copyPartSize(20, 8, 10000))
	assert.Equal(t, int64(7), copyPartSize(20, 4, 3))
	assert.Equal(t, int64(5), copyPartSize(20, 4, 4))
}

func TestAdapter_RenameLargeObjectUsesPartCopy(t *testing.T) {
	var copies atomic.Int32
	var deleted string
	mock := &MockS3Client{
		HeadObjectFunc: func(_ context.Context, _ *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
			return &s3.HeadObjectOutput{ContentLength: aws.Int64(maxSimpleCopySize + 1)}, nil
		},
		CopyObjectFunc: func(context.Context, *s3.CopyObjectInput, ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
			t.Fatal("CopyObject must not be used above the simple copy limit")
			return nil, nil
		},
		UploadPartCopyFunc: func(_ context.Context, in *s3.UploadPartCopyInput, _ ...func(*s3.Options)) (*s3.UploadPartCopyOutput, error) {
			copies.Add(1)
			assert.Equal(t, "bucket/runs/x%20y.partial", aws.ToString(in.CopySource))
			return &s3.UploadPartCopyOutput{CopyPartResult: &types.CopyPartResult{ETag: aws.String("e")}}, nil
		},
		DeleteObjectFunc: func(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
			deleted = aws.ToString(in.Key)
			return &s3.DeleteObjectOutput{}, nil
		},
	}

	a := NewWithClient(mock, WithPartSize(1024*1024*1024), WithConcurrency(4))
	require.NoError(t, a.Rename(context.Background(), "bucket/runs/x y.partial", "bucket/runs/x y"))

	assert.Equal(t, int32(6), copies.Load())
	assert.Equal(t, "runs/x y.partial", deleted)
}

func TestAdapter_FetchTranslatesErrors(t *testing.T) {
	mock := &MockS3Client{
		GetObjectFunc: func(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
			return nil, &smithy.GenericAPIError{Code: "AccessDenied", Message: "Access Denied"}
		},
	}

	_, err := NewWithClient(mock).Fetch(context.Background(), "bucket/key")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrForbidden)
	assert.False(t, errors.IsRetryable(err))
}

func TestAdapter_FetchBodyErrorIsTransient(t *testing.T) {
	mock := &MockS3Client{
		GetObjectFunc: func(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
			return &s3.GetObjectOutput{Body: io.NopCloser(&failingReader{})}, nil
		},
	}

	rc, err := NewWithClient(mock).Fetch(context.Background(), "bucket/key")
	require.NoError(t, err)
	defer rc.Close()

	_, err = io.ReadAll(rc)
	require.Error(t, err)
	assert.Equal(t, errors.CodeNetwork, errors.GetCode(err))
	assert.True(t, errors.IsRetryable(err))
}

func TestAdapter_InvalidLocation(t *testing.T) {
	a := NewWithClient(&MockS3Client{})
	for _, loc := range []string{"bucket", "bucket/", "/key", ""} {
		_, err := a.Fetch(context.Background(), loc)
		assert.ErrorIs(t, err, errors.ErrInvalidInput, "location %q", loc)
	}
}

func TestTranslate(t *testing.T) {
	statusErr := func(code int) error {
		return &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: code}},
			Err:      fmt.Errorf("status %d", code),
		}
	}

	tests := []struct {
		name          string
		err           error
		wantCode      errors.ErrorCode
		wantRetryable bool
	}{
		{"no such key", &types.NoSuchKey{}, errors.CodeNotFound, false},
		{"head not found", &types.NotFound{}, errors.CodeNotFound, false},
		{"no such bucket", &types.NoSuchBucket{}, errors.CodeNotFound, false},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, errors.CodeForbidden, false},
		{"slow down", &smithy.GenericAPIError{Code: "SlowDown"}, errors.CodeRateLimit, true},
		{"request timeout", &smithy.GenericAPIError{Code: "RequestTimeout"}, errors.CodeTimeout, true},
		{"internal error", &smithy.GenericAPIError{Code: "InternalError"}, errors.CodeUnavailable, true},
		{"bad digest", &smithy.GenericAPIError{Code: "BadDigest"}, errors.CodeChecksumMismatch, true},
		{"entity too large", &smithy.GenericAPIError{Code: "EntityTooLarge"}, errors.CodeCapacity, false},
		{"unknown api error", &smithy.GenericAPIError{Code: "InvalidArgument"}, errors.CodeInternal, false},
		{"status 503", statusErr(http.StatusServiceUnavailable), errors.CodeUnavailable, true},
		{"status 404", statusErr(http.StatusNotFound), errors.CodeNotFound, false},
		{"status 429", statusErr(http.StatusTooManyRequests), errors.CodeRateLimit, true},
		{"transport failure", fmt.Errorf("dial tcp: connection refused"), errors.CodeNetwork, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := translate("GetObject", "bucket/key", tt.err)
			assert.Equal(t, tt.wantCode, errors.GetCode(err))
			assert.Equal(t, tt.wantRetryable, errors.IsRetryable(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.NoError(t, translate("GetObject", "bucket/key", nil))
	assert.ErrorIs(t, translate("GetObject", "bucket/key", context.Canceled), context.Canceled)
}

func TestCopySource(t *testing.T) {
	assert.Equal(t, "bucket/a/b%20c/d%3Fe", copySource("bucket", "a/b c/d?e"))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, fmt.Errorf("connection reset by peer")
}
