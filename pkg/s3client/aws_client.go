package s3client

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// S3API is the part of *s3.Client used by AWSClient.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type AWSClient struct {
	client S3API
	retry  retryPolicy
	logger zerolog.Logger
}

type Option func(*AWSClient)

func WithLogger(logger zerolog.Logger) Option {
	return func(c *AWSClient) { c.logger = logger }
}

// WithMaxRetries sets how many times a throttled or 5xx call is repeated.
func WithMaxRetries(n int) Option {
	return func(c *AWSClient) { c.retry.maxRetries = n }
}

func NewAWSClient(cfg aws.Config, opts ...Option) *AWSClient {
	return NewAWSClientWithAPI(s3.NewFromConfig(cfg, singleAttempt), opts...)
}

// singleAttempt turns off the SDK's own retries; withRetry is the only retry layer.
func singleAttempt(o *s3.Options) {
	o.RetryMaxAttempts = 1
}

func NewAWSClientWithAPI(api S3API, opts ...Option) *AWSClient {
	c := &AWSClient{
		client: api,
		retry:  defaultRetryPolicy(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListObjects performs exactly one ListObjectsV2 call and refuses truncated results.
func (c *AWSClient) ListObjects(ctx context.Context, req *ListObjectsRequest) ([]Object, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(req.Bucket),
	}
	if req.Prefix != "" {
		input.Prefix = aws.String(req.Prefix)
	}

	out, err := withRetry(ctx, c.retry, func() (*s3.ListObjectsV2Output, error) {
		return c.client.ListObjectsV2(ctx, input)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}

	c.logger.Info().
		Str("bucket", req.Bucket).
		Str("prefix", req.Prefix).
		Int32("key_count", aws.ToInt32(out.KeyCount)).
		Int32("max_keys", aws.ToInt32(out.MaxKeys)).
		Bool("truncated", aws.ToBool(out.IsTruncated)).
		Msg("List result context")

	if aws.ToBool(out.IsTruncated) {
		return nil, fmt.Errorf("bucket %s: %w", req.Bucket, ErrListingTruncated)
	}

	objects := make([]Object, 0, len(out.Contents))
	for _, obj := range out.Contents {
		if obj.Key == nil {
			continue
		}
		objects = append(objects, Object{
			Key:  aws.ToString(obj.Key),
			ETag: aws.ToString(obj.ETag),
			Size: aws.ToInt64(obj.Size),
		})
	}

	return objects, nil
}

func (c *AWSClient) PutObject(ctx context.Context, req *PutObjectRequest) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(req.Bucket),
		Key:           aws.String(req.Key),
		Body:          req.Body,
		ContentLength: aws.Int64(req.Size),
	}
	if req.ContentMD5 != "" {
		input.ContentMD5 = aws.String(req.ContentMD5)
	}
	if req.ContentType != "" {
		input.ContentType = aws.String(req.ContentType)
	}
	if req.CacheControl != "" {
		input.CacheControl = aws.String(req.CacheControl)
	}
	if req.WebsiteRedirectLocation != "" {
		input.WebsiteRedirectLocation = aws.String(req.WebsiteRedirectLocation)
	}

	seeker, rewindable := req.Body.(io.Seeker)
	attempt := 0
	_, err := withRetry(ctx, c.retry, func() (*s3.PutObjectOutput, error) {
		if attempt > 0 {
			if !rewindable {
				return nil, fmt.Errorf("body of %s cannot be replayed", req.Key)
			}
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return nil, fmt.Errorf("rewind body: %w", err)
			}
			c.logger.Debug().Str("key", req.Key).Int("attempt", attempt).Msg("retrying put")
		}
		attempt++
		return c.client.PutObject(ctx, input)
	})
	if err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}

	return nil
}

func (c *AWSClient) DeleteObject(ctx context.Context, req *DeleteObjectRequest) error {
	_, err := withRetry(ctx, c.retry, func() (*s3.DeleteObjectOutput, error) {
		return c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(req.Bucket),
			Key:    aws.String(req.Key),
		})
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	return nil
}

var _ Client = (*AWSClient)(nil)
