package store

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrBucketExists is returned by CreateBucket when the bucket is already there.
var ErrBucketExists = errors.New("bucket already exists")

// BucketInfo describes a bucket owned by the caller.
type BucketInfo struct {
	Name    string
	Created time.Time
}

// deleteBatchSize is the DeleteObjects request limit.
const deleteBatchSize = 1000

// BucketExists reports whether the configured bucket is reachable.
func (s *S3Store) BucketExists(ctx context.Context) (bool, error) {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return true, nil
	}
	if isS3NotFound(err) {
		return false, nil
	}
	return false, &Error{Op: "head-bucket", Key: s.bucket, Err: err}
}

// CreateBucket creates the configured bucket in the store's region.
func (s *S3Store) CreateBucket(ctx context.Context) error {
	exists, err := s.BucketExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return &Error{Op: "create-bucket", Key: s.bucket, Err: ErrBucketExists}
	}

	in := &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}
	// us-east-1 rejects an explicit location constraint.
	if s.region != "" && s.region != "us-east-1" {
		in.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}

	if _, err := s.client.CreateBucket(ctx, in); err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		var taken *types.BucketAlreadyExists
		if errors.As(err, &owned) || errors.As(err, &taken) {
			return &Error{Op: "create-bucket", Key: s.bucket, Err: errors.Join(ErrBucketExists, err)}
		}
		return &Error{Op: "create-bucket", Key: s.bucket, Err: err}
	}
	return nil
}

// DeleteBucket removes every object in the bucket and then the bucket itself.
// It returns the number of objects deleted.
func (s *S3Store) DeleteBucket(ctx context.Context) (int, error) {
	deleted := 0
	token := ""

	for {
		page, err := s.List(ctx, "", token)
		if err != nil {
			return deleted, err
		}

		for start := 0; start < len(page.Objects); start += deleteBatchSize {
			end := start + deleteBatchSize
			if end > len(page.Objects) {
				end = len(page.Objects)
			}

			ids := make([]types.ObjectIdentifier, 0, end-start)
			for _, obj := range page.Objects[start:end] {
				ids = append(ids, types.ObjectIdentifier{Key: aws.String(obj.Key)})
			}

			out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(s.bucket),
				Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
			})
			if err != nil {
				return deleted, &Error{Op: "delete-objects", Key: s.bucket, Err: err}
			}
			if len(out.Errors) > 0 {
				first := out.Errors[0]
				return deleted, &Error{
					Op:  "delete-objects",
					Key: aws.ToString(first.Key),
					Err: errors.New(aws.ToString(first.Message)),
				}
			}
			deleted += len(ids)
		}

		if page.NextToken == "" {
			break
		}
		token = page.NextToken
	}

	if _, err := s.client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return deleted, &Error{Op: "delete-bucket", Key: s.bucket, Err: err}
	}
	return deleted, nil
}

// ListBuckets returns all buckets visible to the credentials in use.
func (s *S3Store) ListBuckets(ctx context.Context) ([]BucketInfo, error) {
	out, err := s.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, &Error{Op: "list-buckets", Err: err}
	}

	buckets := make([]BucketInfo, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		buckets = append(buckets, BucketInfo{
			Name:    aws.ToString(b.Name),
			Created: aws.ToTime(b.CreationDate),
		})
	}
	return buckets, nil
}
