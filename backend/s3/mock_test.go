package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// MockS3Client is a mock implementation of API. Each operation can be
// customised through its function field.
type MockS3Client struct {
	GetObjectFunc               func(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObjectFunc               func(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObjectFunc              func(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObjectFunc            func(context.Context, *s3.DeleteObjectInput, ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	CopyObjectFunc              func(context.Context, *s3.CopyObjectInput, ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	CreateMultipartUploadFunc   func(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPartFunc              func(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	UploadPartCopyFunc          func(context.Context, *s3.UploadPartCopyInput, ...func(*s3.Options)) (*s3.UploadPartCopyOutput, error)
	CompleteMultipartUploadFunc func(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUploadFunc    func(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

func (m *MockS3Client) GetObject(
	ctx context.Context,
	params *s3.GetObjectInput,
	optFns ...func(*s3.Options),
) (*s3.GetObjectOutput, error) {
	if m.GetObjectFunc != nil {
		return m.GetObjectFunc(ctx, params, optFns...)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(nil))}, nil
}

func (m *MockS3Client) PutObject(
	ctx context.Context,
	params *s3.PutObjectInput,
	optFns ...func(*s3.Options),
) (*s3.PutObjectOutput, error) {
	if m.PutObjectFunc != nil {
		return m.PutObjectFunc(ctx, params, optFns...)
	}
	return &s3.PutObjectOutput{}, nil
}

func (m *MockS3Client) HeadObject(
	ctx context.Context,
	params *s3.HeadObjectInput,
	optFns ...func(*s3.Options),
) (*s3.HeadObjectOutput, error) {
	if m.HeadObjectFunc != nil {
		return m.HeadObjectFunc(ctx, params, optFns...)
	}
	return &s3.HeadObjectOutput{}, nil
}

func (m *MockS3Client) DeleteObject(
	ctx context.Context,
	params *s3.DeleteObjectInput,
	optFns ...func(*s3.Options),
) (*s3.DeleteObjectOutput, error) {
	if m.DeleteObjectFunc != nil {
		return m.DeleteObjectFunc(ctx, params, optFns...)
	}
	return &s3.DeleteObjectOutput{}, nil
}

func (m *MockS3Client) CopyObject(
	ctx context.Context,
	params *s3.CopyObjectInput,
	optFns ...func(*s3.Options),
) (*s3.CopyObjectOutput, error) {
	if m.CopyObjectFunc != nil {
		return m.CopyObjectFunc(ctx, params, optFns...)
	}
	return &s3.CopyObjectOutput{}, nil
}

func (m *MockS3Client) CreateMultipartUpload(
	ctx context.Context,
	params *s3.CreateMultipartUploadInput,
	optFns ...func(*s3.Options),
) (*s3.CreateMultipartUploadOutput, error) {
	if m.CreateMultipartUploadFunc != nil {
		return m.CreateMultipartUploadFunc(ctx, params, optFns...)
	}
	return &s3.CreateMultipartUploadOutput{UploadId: aws.String("upload-id")}, nil
}

func (m *MockS3Client) UploadPart(
	ctx context.Context,
	params *s3.UploadPartInput,
	optFns ...func(*s3.Options),
) (*s3.UploadPartOutput, error) {
	if m.UploadPartFunc != nil {
		return m.UploadPartFunc(ctx, params, optFns...)
	}
	return &s3.UploadPartOutput{ETag: aws.String("etag")}, nil
}

func (m *MockS3Client) UploadPartCopy(
	ctx context.Context,
	params *s3.UploadPartCopyInput,
	optFns ...func(*s3.Options),
) (*s3.UploadPartCopyOutput, error) {
	if m.UploadPartCopyFunc != nil {
		return m.UploadPartCopyFunc(ctx, params, optFns...)
	}
	return &s3.UploadPartCopyOutput{CopyPartResult: &types.CopyPartResult{ETag: aws.String("etag")}}, nil
}

func (m *MockS3Client) CompleteMultipartUpload(
	ctx context.Context,
	params *s3.CompleteMultipartUploadInput,
	optFns ...func(*s3.Options),
) (*s3.CompleteMultipartUploadOutput, error) {
	if m.CompleteMultipartUploadFunc != nil {
		return m.CompleteMultipartUploadFunc(ctx, params, optFns...)
	}
	return &s3.CompleteMultipartUploadOutput{}, nil
}

func (m *MockS3Client) AbortMultipartUpload(
	ctx context.Context,
	params *s3.AbortMultipartUploadInput,
	optFns ...func(*s3.Options),
) (*s3.AbortMultipartUploadOutput, error) {
	if m.AbortMultipartUploadFunc != nil {
		return m.AbortMultipartUploadFunc(ctx, params, optFns...)
	}
	return &s3.AbortMultipartUploadOutput{}, nil
}

// memoryBucket backs a MockS3Client with an in-memory object map.
type memoryBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	uploads map[string]map[int32][]byte
	aborted int
	nextID  int
}

func newMemoryMock() (*MockS3Client, *memoryBucket) {
	b := &memoryBucket{
		objects: make(map[string][]byte),
		uploads: make(map[string]map[int32][]byte),
	}
	m := &MockS3Client{
		GetObjectFunc: func(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
			data, ok := b.get(aws.ToString(in.Bucket), aws.ToString(in.Key))
			if !ok {
				return nil, &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
			}
			return &s3.GetObjectOutput{
				Body:          io.NopCloser(bytes.NewReader(data)),
				ContentLength: aws.Int64(int64(len(data))),
			}, nil
		},
		PutObjectFunc: func(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
			data, err := io.ReadAll(in.Body)
			if err != nil {
				return nil, err
			}
			b.put(aws.ToString(in.Bucket), aws.ToString(in.Key), data)
			return &s3.PutObjectOutput{}, nil
		},
		HeadObjectFunc: func(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
			data, ok := b.get(aws.ToString(in.Bucket), aws.ToString(in.Key))
			if !ok {
				return nil, &types.NotFound{}
			}
			return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
		},
		DeleteObjectFunc: func(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
			return &s3.DeleteObjectOutput{}, nil
		},
		CopyObjectFunc: func(_ context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
			src, err := url.PathUnescape(aws.ToString(in.CopySource))
			if err != nil {
				return nil, err
			}
			b.mu.Lock()
			defer b.mu.Unlock()
			data, ok := b.objects[src]
			if !ok {
				return nil, &types.NoSuchKey{}
			}
			b.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = append([]byte(nil), data...)
			return &s3.CopyObjectOutput{}, nil
		},
		CreateMultipartUploadFunc: func(_ context.Context, _ *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.nextID++
			id := fmt.Sprintf("upload-%d", b.nextID)
			b.uploads[id] = make(map[int32][]byte)
			return &s3.CreateMultipartUploadOutput{UploadId: aws.String(id)}, nil
		},
		UploadPartFunc: func(_ context.Context, in *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
			data, err := io.ReadAll(in.Body)
			if err != nil {
				return nil, err
			}
			b.mu.Lock()
			defer b.mu.Unlock()
			n := aws.ToInt32(in.PartNumber)
			b.uploads[aws.ToString(in.UploadId)][n] = data
			return &s3.UploadPartOutput{ETag: aws.String(fmt.Sprintf("etag-%d", n))}, nil
		},
		CompleteMultipartUploadFunc: func(_ context.Context, in *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
			b.mu.Lock()
			defer b.mu.Unlock()
			parts := b.uploads[aws.ToString(in.UploadId)]
			nums := make([]int, 0, len(in.MultipartUpload.Parts))
			for _, p := range in.MultipartUpload.Parts {
				nums = append(nums, int(aws.ToInt32(p.PartNumber)))
			}
			if !sort.IntsAreSorted(nums) {
				return nil, fmt.Errorf("parts out of order: %v", nums)
			}
			var data []byte
			for _, n := range nums {
				data = append(data, parts[int32(n)]...)
			}
			b.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
			delete(b.uploads, aws.ToString(in.UploadId))
			return &s3.CompleteMultipartUploadOutput{}, nil
		},
		AbortMultipartUploadFunc: func(_ context.Context, in *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.aborted++
			delete(b.uploads, aws.ToString(in.UploadId))
			return &s3.AbortMultipartUploadOutput{}, nil
		},
	}
	return m, b
}

func (b *memoryBucket) get(bucket, key string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[bucket+"/"+key]
	return data, ok
}

func (b *memoryBucket) put(bucket, key string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[bucket+"/"+key] = data
}

var _ API = (*MockS3Client)(nil)
