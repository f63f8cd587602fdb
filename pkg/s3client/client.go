package s3client

import (
	"context"
	"errors"
	"io"
)

// ErrListingTruncated is returned when a listing does not fit into a single page.
var ErrListingTruncated = errors.New("listing is truncated; paginated listings are not supported")

type Object struct {
	Key  string
	ETag string
	Size int64
}

type ListObjectsRequest struct {
	Bucket string
	Prefix string
}

type PutObjectRequest struct {
	Bucket      string
	Key         string
	Body        io.Reader
	Size        int64
	ContentMD5  string // base64
	ContentType string

	CacheControl            string
	WebsiteRedirectLocation string
}

type DeleteObjectRequest struct {
	Bucket string
	Key    string
}

// Client is the subset of object storage the sync engine uses.
type Client interface {
	ListObjects(ctx context.Context, req *ListObjectsRequest) ([]Object, error)
	PutObject(ctx context.Context, req *PutObjectRequest) error
	DeleteObject(ctx context.Context, req *DeleteObjectRequest) error
}
