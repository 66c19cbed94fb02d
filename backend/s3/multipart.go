package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/errgroup"

	"github.com/input-output-hk/catalyst-forge-libs/staging/backend"
	"github.com/input-output-hk/catalyst-forge-libs/staging/errors"
)

// putMultipart uploads r in parts of a.partSize. Parts are read sequentially
// and uploaded concurrently, so at most a.concurrency parts are buffered. The
// upload is aborted if any part fails or r holds more than a.maxParts parts.
func (a *Adapter) putMultipart(
	ctx context.Context,
	bucket, key, location string,
	r io.Reader,
	contentType string,
) (int64, error) {
	created, err := a.api.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:            aws.String(bucket),
		Key:               aws.String(key),
		ContentType:       aws.String(contentType),
		ChecksumAlgorithm: types.ChecksumAlgorithmSha256,
	})
	if err != nil {
		return 0, translate("CreateMultipartUpload", location, err)
	}
	uploadID := aws.ToString(created.UploadId)
	a.debug(ctx, "multipart upload started", "location", location, "upload_id", uploadID, "part_size", a.partSize)

	parts, total, err := a.uploadParts(ctx, bucket, key, location, uploadID, r)
	if err != nil {
		a.abort(ctx, bucket, key, location, uploadID)
		return 0, err
	}

	if err := a.complete(ctx, bucket, key, location, uploadID, parts); err != nil {
		return 0, err
	}
	return total, nil
}

func (a *Adapter) uploadParts(
	ctx context.Context,
	bucket, key, location, uploadID string,
	r io.Reader,
) ([]types.CompletedPart, int64, error) {
	var (
		mu    sync.Mutex
		parts []types.CompletedPart
		total int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for partNumber := int32(1); ; partNumber++ {
		if err := gctx.Err(); err != nil {
			break
		}

		buf := make([]byte, a.partSize)
		n, err := io.ReadFull(r, buf)
		if n == 0 && (err == io.EOF || err == io.ErrUnexpectedEOF) {
			break
		}
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			_ = g.Wait()
			return nil, 0, backend.Transient(errors.CodeNetwork, scheme, location, fmt.Errorf("read source: %w", err))
		}
		if partNumber > a.maxParts {
			_ = g.Wait()
			return nil, 0, backend.CapacityExceeded(scheme, location,
				fmt.Errorf("object needs more than %d parts of %d bytes", a.maxParts, a.partSize))
		}
		data := buf[:n]
		total += int64(n)

		num := partNumber
		g.Go(func() error {
			out, err := a.api.UploadPart(gctx, &s3.UploadPartInput{
				Bucket:            aws.String(bucket),
				Key:               aws.String(key),
				UploadId:          aws.String(uploadID),
				PartNumber:        aws.Int32(num),
				Body:              bytes.NewReader(data),
				ContentLength:     aws.Int64(int64(len(data))),
				ChecksumAlgorithm: types.ChecksumAlgorithmSha256,
			})
			if err != nil {
				return translate("UploadPart", location, err)
			}
			mu.Lock()
			parts = append(parts, types.CompletedPart{
				ETag:           out.ETag,
				ChecksumSHA256: out.ChecksumSHA256,
				PartNumber:     aws.Int32(num),
			})
			mu.Unlock()
			return nil
		})

		if int64(n) < a.partSize {
			break
		}
	}

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	sort.Slice(parts, func(i, j int) bool {
		return aws.ToInt32(parts[i].PartNumber) < aws.ToInt32(parts[j].PartNumber)
	})
	return parts, total, nil
}

// copyMultipart copies source onto bucket/key with UploadPartCopy.
func (a *Adapter) copyMultipart(
	ctx context.Context,
	source, bucket, key, location string,
	size int64,
	contentType string,
) error {
	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	created, err := a.api.CreateMultipartUpload(ctx, input)
	if err != nil {
		return translate("CreateMultipartUpload", location, err)
	}
	uploadID := aws.ToString(created.UploadId)

	partSize := copyPartSize(size, a.partSize, int64(a.maxParts))
	numParts := int((size + partSize - 1) / partSize)
	parts := make([]types.CompletedPart, numParts)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i := 0; i < numParts; i++ {
		offset := int64(i) * partSize
		end := offset + partSize - 1
		if end >= size {
			end = size - 1
		}
		idx := i
		g.Go(func() error {
			out, err := a.api.UploadPartCopy(gctx, &s3.UploadPartCopyInput{
				Bucket:          aws.String(bucket),
				Key:             aws.String(key),
				CopySource:      aws.String(source),
				CopySourceRange: aws.String(fmt.Sprintf("bytes=%d-%d", offset, end)),
				UploadId:        aws.String(uploadID),
				PartNumber:      aws.Int32(int32(idx + 1)),
			})
			if err != nil {
				return translate("UploadPartCopy", location, err)
			}
			var etag *string
			if out.CopyPartResult != nil {
				etag = out.CopyPartResult.ETag
			}
			parts[idx] = types.CompletedPart{
				ETag:       etag,
				PartNumber: aws.Int32(int32(idx + 1)),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		a.abort(ctx, bucket, key, location, uploadID)
		return err
	}
	return a.complete(ctx, bucket, key, location, uploadID, parts)
}

// copyPartSize grows partSize until size fits in maxParts parts.
func copyPartSize(size, partSize, maxParts int64) int64 {
	if minSize := (size + maxParts - 1) / maxParts; minSize > partSize {
		return minSize
	}
	return partSize
}

func (a *Adapter) complete(
	ctx context.Context,
	bucket, key, location, uploadID string,
	parts []types.CompletedPart,
) error {
	_, err := a.api.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: parts,
		},
	})
	if err != nil {
		a.abort(ctx, bucket, key, location, uploadID)
		return translate("CompleteMultipartUpload", location, err)
	}
	return nil
}

// abort cleans up a failed multipart upload. It runs even if ctx has been
// canceled so that no parts are left billed on the bucket.
func (a *Adapter) abort(ctx context.Context, bucket, key, location, uploadID string) {
	_, err := a.api.AbortMultipartUpload(context.WithoutCancel(ctx), &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil && a.logger != nil {
		a.logger.WarnContext(ctx, "failed to abort multipart upload",
			"location", location,
			"upload_id", uploadID,
			"error", err)
	}
}
