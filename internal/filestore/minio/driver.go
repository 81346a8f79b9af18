// Package minio provides a MinIO implementation of filestore.Client.
//
// Usage:
//
//	cfg := filestore.DefaultConfig("localhost:9000", "minioadmin", "minioadmin")
//	client, err := minio.New(ctx, cfg)
//	if err != nil { ... }
//	defer client.Close()
//
//	page, err := client.ListObjects(ctx, "assets", filestore.ListOptions{Delimiter: "/"})
package minio

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/koustreak/bucketfs/internal/filestore"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/encrypt"
)

// Driver is a MinIO implementation of filestore.Client.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	core *miniogo.Core
}

// New connects to MinIO using the provided Config and returns a Driver.
// It calls Ping to validate the connection before returning.
func New(ctx context.Context, cfg *filestore.Config) (*Driver, error) {
	core, err := miniogo.NewCore(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to create minio client", err)
	}

	d := &Driver{core: core}

	if err := d.Ping(ctx); err != nil {
		return nil, err
	}

	return d, nil
}

// --- filestore.Client implementation ---

// Ping verifies the MinIO server is reachable by listing buckets.
func (d *Driver) Ping(ctx context.Context) error {
	if _, err := d.core.ListBuckets(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

// Close is a no-op; the MinIO client holds no persistent connections.
func (d *Driver) Close() error {
	return nil
}

// PutObject uploads size bytes from body.
func (d *Driver) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, opts filestore.RequestOptions) error {
	po, err := putOptions(opts)
	if err != nil {
		return err
	}
	if _, err := d.core.Client.PutObject(ctx, bucket, key, body, size, po); err != nil {
		return mapError(err, "failed to put object")
	}
	return nil
}

// UploadFile uploads a local file, letting the SDK switch to multipart
// uploads above the configured part size.
func (d *Driver) UploadFile(ctx context.Context, bucket, key, filePath string, opts filestore.RequestOptions) error {
	po, err := putOptions(opts)
	if err != nil {
		return err
	}
	if _, err := d.core.Client.FPutObject(ctx, bucket, key, filePath, po); err != nil {
		return mapError(err, "failed to upload file")
	}
	return nil
}

// GetObject opens a streaming handle to the object at key inside bucket.
// The caller MUST call Object.Close() after reading.
func (d *Driver) GetObject(ctx context.Context, bucket, key string) (filestore.Object, error) {
	obj, err := d.core.Client.GetObject(ctx, bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to get object")
	}

	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, mapError(err, "failed to stat object after get")
	}

	info := toObjectInfo(stat)
	info.Key = key
	return &object{ReadSeekCloser: obj, info: &info}, nil
}

// DeleteObject removes the object at key.
func (d *Driver) DeleteObject(ctx context.Context, bucket, key string) error {
	if err := d.core.Client.RemoveObject(ctx, bucket, key, miniogo.RemoveObjectOptions{}); err != nil {
		return mapError(err, "failed to delete object")
	}
	return nil
}

// DeleteObjects removes keys using the multi-object delete API.
// The first per-object failure is returned.
func (d *Driver) DeleteObjects(ctx context.Context, bucket string, keys []string) error {
	ch := make(chan miniogo.ObjectInfo)
	go func() {
		defer close(ch)
		for _, k := range keys {
			select {
			case ch <- miniogo.ObjectInfo{Key: k}:
			case <-ctx.Done():
				return
			}
		}
	}()

	var first error
	for res := range d.core.Client.RemoveObjects(ctx, bucket, ch, miniogo.RemoveObjectsOptions{}) {
		if res.Err != nil && first == nil {
			first = mapError(res.Err, "failed to delete object "+res.ObjectName)
		}
	}
	return first
}

// CopyObject performs a server-side copy.
func (d *Driver) CopyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	_, err := d.core.Client.CopyObject(ctx,
		miniogo.CopyDestOptions{Bucket: dstBucket, Object: dstKey},
		miniogo.CopySrcOptions{Bucket: srcBucket, Object: srcKey},
	)
	if err != nil {
		return mapError(err, "failed to copy object")
	}
	return nil
}

// ListObjects returns one page through the V1 listing API, which exposes
// the marker cursor directly.
func (d *Driver) ListObjects(ctx context.Context, bucket string, opts filestore.ListOptions) (*filestore.ListPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, mapError(err, "failed to list objects")
	}

	maxKeys := opts.MaxKeys
	if maxKeys <= 0 {
		maxKeys = filestore.DefaultMaxKeys
	}

	res, err := d.core.ListObjects(bucket, opts.Prefix, opts.Marker, opts.Delimiter, maxKeys)
	if err != nil {
		return nil, mapError(err, "failed to list objects")
	}

	page := &filestore.ListPage{IsTruncated: res.IsTruncated}
	last := ""
	for _, obj := range res.Contents {
		info := toObjectInfo(obj)
		info.Prefix = opts.Prefix
		page.Objects = append(page.Objects, info)
		if obj.Key > last {
			last = obj.Key
		}
	}
	for _, cp := range res.CommonPrefixes {
		page.CommonPrefixes = append(page.CommonPrefixes, cp.Prefix)
		if cp.Prefix > last {
			last = cp.Prefix
		}
	}

	// S3 only returns NextMarker for delimited listings.
	if res.IsTruncated {
		page.NextMarker = res.NextMarker
		if page.NextMarker == "" {
			page.NextMarker = last
		}
	}
	return page, nil
}

// StatObject returns metadata for the object at key inside bucket
// without downloading its content.
func (d *Driver) StatObject(ctx context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	stat, err := d.core.Client.StatObject(ctx, bucket, key, miniogo.StatObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to stat object")
	}

	info := toObjectInfo(stat)
	return &info, nil
}

// GetObjectACL returns the canned ACL derived from the object's grants.
func (d *Driver) GetObjectACL(ctx context.Context, bucket, key string) (filestore.ACL, error) {
	info, err := d.core.Client.GetObjectACL(ctx, bucket, key)
	if err != nil {
		return "", mapError(err, "failed to get object acl")
	}
	if acl := info.Metadata.Get("X-Amz-Acl"); acl != "" {
		return filestore.ACL(acl), nil
	}
	return filestore.ACLPrivate, nil
}

// PutObjectACL rewrites the object onto itself with a replaced x-amz-acl
// header; minio-go has no dedicated object ACL setter. Content type and
// user metadata are carried over.
func (d *Driver) PutObjectACL(ctx context.Context, bucket, key string, acl filestore.ACL) error {
	stat, err := d.core.Client.StatObject(ctx, bucket, key, miniogo.StatObjectOptions{})
	if err != nil {
		return mapError(err, "failed to stat object before acl update")
	}

	meta := make(map[string]string, len(stat.UserMetadata)+2)
	for k, v := range stat.UserMetadata {
		meta[k] = v
	}
	if stat.ContentType != "" {
		meta[filestore.HeaderContentType] = stat.ContentType
	}
	meta[filestore.HeaderACL] = string(acl)

	_, err = d.core.Client.CopyObject(ctx,
		miniogo.CopyDestOptions{Bucket: bucket, Object: key, ReplaceMetadata: true, UserMetadata: meta},
		miniogo.CopySrcOptions{Bucket: bucket, Object: key},
	)
	if err != nil {
		return mapError(err, "failed to put object acl")
	}
	return nil
}

// ObjectExists reports whether key exists, treating "not found" as false.
func (d *Driver) ObjectExists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := d.core.Client.StatObject(ctx, bucket, key, miniogo.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	mapped := mapError(err, "failed to check object")
	if errs.IsNotFound(mapped) {
		return false, nil
	}
	return false, mapped
}

// SignURL returns a presigned URL for method on key.
func (d *Driver) SignURL(ctx context.Context, bucket, key string, ttl time.Duration, method string, params map[string]string) (string, error) {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	if method == "" {
		method = http.MethodGet
	}

	u, err := d.core.Client.Presign(ctx, method, bucket, key, ttl, q)
	if err != nil {
		return "", mapError(err, "failed to sign url")
	}
	return u.String(), nil
}

// --- helpers ---

func putOptions(opts filestore.RequestOptions) (miniogo.PutObjectOptions, error) {
	po := miniogo.PutObjectOptions{
		PartSize:       opts.PartSize,
		SendContentMd5: opts.CheckMD5,
		UserMetadata:   make(map[string]string),
	}

	for name, value := range opts.Headers {
		switch strings.ToLower(name) {
		case "content-type":
			po.ContentType = value
		case "content-encoding":
			po.ContentEncoding = value
		case "content-disposition":
			po.ContentDisposition = value
		case "content-language":
			po.ContentLanguage = value
		case "cache-control":
			po.CacheControl = value
		case "expires":
			if t, err := http.ParseTime(value); err == nil {
				po.Expires = t
			}
		case "x-amz-server-side-encryption":
			if !strings.EqualFold(value, "AES256") {
				return po, errs.New(errs.ErrKindInvalidInput, "unsupported server-side encryption: "+value)
			}
			po.ServerSideEncryption = encrypt.NewSSE()
		case "content-length", "x-amz-metadata-directive":
			// Not applicable to uploads.
		default:
			po.UserMetadata[name] = value
		}
	}
	return po, nil
}

func toObjectInfo(oi miniogo.ObjectInfo) filestore.ObjectInfo {
	info := filestore.ObjectInfo{
		Key:          oi.Key,
		Size:         oi.Size,
		ContentType:  oi.ContentType,
		ETag:         strings.Trim(oi.ETag, `"`),
		LastModified: oi.LastModified,
		StorageClass: oi.StorageClass,
		Metadata:     make(map[string]string),
	}
	for name := range oi.Metadata {
		switch http.CanonicalHeaderKey(name) {
		case "Content-Type", "Content-Length", "Etag", "Last-Modified", "Date":
			continue
		case "X-Amz-Acl":
			info.ACL = filestore.ACL(oi.Metadata.Get(name))
			continue
		}
		info.Metadata[name] = oi.Metadata.Get(name)
	}
	return info
}

// --- internal types ---

// object wraps a MinIO GetObject response and exposes filestore.Object.
type object struct {
	io.ReadSeekCloser
	info *filestore.ObjectInfo
}

func (o *object) Info() *filestore.ObjectInfo {
	return o.info
}
