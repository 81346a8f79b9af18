// Package filestore defines the storage client contract bucketfs is built on.
//
// Providers (MinIO, AWS S3, in-memory) implement the Client interface.
// The objfs adapter depends only on this package, never on a specific
// provider package.
//
// Usage:
//
//	cfg := filestore.DefaultConfig("localhost:9000", "minioadmin", "minioadmin")
//	client, err := minio.New(ctx, cfg)
//	if err != nil { ... }
//	defer client.Close()
//
//	page, err := client.ListObjects(ctx, "assets", filestore.ListOptions{Prefix: "img/", Delimiter: "/"})
package filestore

import (
	"context"
	"io"
	"net/http"
	"time"
)

// DefaultMaxKeys is the page size used when ListOptions.MaxKeys is 0.
const DefaultMaxKeys = 1000

// MethodGet is the default verb for SignURL.
const MethodGet = http.MethodGet

// Client is the single interface all storage providers must implement.
// Errors are returned as *errs.Error.
type Client interface {
	// Ping verifies the storage backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any held resources.
	Close() error

	// PutObject stores size bytes read from body at key.
	PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, opts RequestOptions) error

	// UploadFile stores the local file at filePath under key.
	UploadFile(ctx context.Context, bucket, key, filePath string, opts RequestOptions) error

	// GetObject opens a streaming handle to the object at key inside bucket.
	// The caller MUST call Object.Close() after reading.
	GetObject(ctx context.Context, bucket, key string) (Object, error)

	// DeleteObject removes the object at key. Deleting a missing key is not an error.
	DeleteObject(ctx context.Context, bucket, key string) error

	// DeleteObjects removes all keys in one batch.
	DeleteObjects(ctx context.Context, bucket string, keys []string) error

	// CopyObject performs a server-side copy.
	CopyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error

	// ListObjects returns one page of a prefix/delimiter listing.
	ListObjects(ctx context.Context, bucket string, opts ListOptions) (*ListPage, error)

	// StatObject returns metadata for the object at key without
	// downloading its content.
	StatObject(ctx context.Context, bucket, key string) (*ObjectInfo, error)

	// GetObjectACL returns the object's canned ACL.
	GetObjectACL(ctx context.Context, bucket, key string) (ACL, error)

	// PutObjectACL replaces the object's canned ACL.
	PutObjectACL(ctx context.Context, bucket, key string, acl ACL) error

	// ObjectExists reports whether an object is stored at key.
	ObjectExists(ctx context.Context, bucket, key string) (bool, error)

	// SignURL returns a URL granting method access to key for ttl.
	// params become signed query parameters (e.g. response-content-type).
	SignURL(ctx context.Context, bucket, key string, ttl time.Duration, method string, params map[string]string) (string, error)
}
