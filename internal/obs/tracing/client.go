package tracing

import (
	"context"
	"io"
	"time"

	"github.com/koustreak/bucketfs/internal/filestore"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Client decorates a filestore.Client with one client span per call.
type Client struct {
	next   filestore.Client
	tracer trace.Tracer
}

var _ filestore.Client = (*Client)(nil)

// WrapClient returns next instrumented with spans from tp.
func WrapClient(next filestore.Client, tp trace.TracerProvider) *Client {
	return &Client{next: next, tracer: tp.Tracer("bucketfs/filestore")}
}

func (c *Client) start(ctx context.Context, op, bucket, key string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("storage.bucket", bucket)}
	if key != "" {
		attrs = append(attrs, attribute.String("storage.key", key))
	}
	return c.tracer.Start(ctx, "filestore."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (c *Client) Ping(ctx context.Context) (err error) {
	ctx, span := c.start(ctx, "Ping", "", "")
	defer func() { finish(span, err) }()
	return c.next.Ping(ctx)
}

func (c *Client) Close() error {
	return c.next.Close()
}

func (c *Client) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, opts filestore.RequestOptions) (err error) {
	ctx, span := c.start(ctx, "PutObject", bucket, key)
	span.SetAttributes(attribute.Int64("storage.size", size))
	defer func() { finish(span, err) }()
	return c.next.PutObject(ctx, bucket, key, body, size, opts)
}

func (c *Client) UploadFile(ctx context.Context, bucket, key, filePath string, opts filestore.RequestOptions) (err error) {
	ctx, span := c.start(ctx, "UploadFile", bucket, key)
	defer func() { finish(span, err) }()
	return c.next.UploadFile(ctx, bucket, key, filePath, opts)
}

func (c *Client) GetObject(ctx context.Context, bucket, key string) (obj filestore.Object, err error) {
	ctx, span := c.start(ctx, "GetObject", bucket, key)
	defer func() { finish(span, err) }()
	return c.next.GetObject(ctx, bucket, key)
}

func (c *Client) DeleteObject(ctx context.Context, bucket, key string) (err error) {
	ctx, span := c.start(ctx, "DeleteObject", bucket, key)
	defer func() { finish(span, err) }()
	return c.next.DeleteObject(ctx, bucket, key)
}

func (c *Client) DeleteObjects(ctx context.Context, bucket string, keys []string) (err error) {
	ctx, span := c.start(ctx, "DeleteObjects", bucket, "")
	span.SetAttributes(attribute.Int("storage.keys", len(keys)))
	defer func() { finish(span, err) }()
	return c.next.DeleteObjects(ctx, bucket, keys)
}

func (c *Client) CopyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) (err error) {
	ctx, span := c.start(ctx, "CopyObject", srcBucket, srcKey)
	span.SetAttributes(attribute.String("storage.dst_key", dstKey))
	defer func() { finish(span, err) }()
	return c.next.CopyObject(ctx, srcBucket, srcKey, dstBucket, dstKey)
}

func (c *Client) ListObjects(ctx context.Context, bucket string, opts filestore.ListOptions) (page *filestore.ListPage, err error) {
	ctx, span := c.start(ctx, "ListObjects", bucket, "")
	span.SetAttributes(
		attribute.String("storage.prefix", opts.Prefix),
		attribute.String("storage.marker", opts.Marker),
	)
	defer func() {
		if page != nil {
			span.SetAttributes(attribute.Bool("storage.truncated", page.IsTruncated))
		}
		finish(span, err)
	}()
	return c.next.ListObjects(ctx, bucket, opts)
}

func (c *Client) StatObject(ctx context.Context, bucket, key string) (info *filestore.ObjectInfo, err error) {
	ctx, span := c.start(ctx, "StatObject", bucket, key)
	defer func() { finish(span, err) }()
	return c.next.StatObject(ctx, bucket, key)
}

func (c *Client) GetObjectACL(ctx context.Context, bucket, key string) (acl filestore.ACL, err error) {
	ctx, span := c.start(ctx, "GetObjectACL", bucket, key)
	defer func() { finish(span, err) }()
	return c.next.GetObjectACL(ctx, bucket, key)
}

func (c *Client) PutObjectACL(ctx context.Context, bucket, key string, acl filestore.ACL) (err error) {
	ctx, span := c.start(ctx, "PutObjectACL", bucket, key)
	span.SetAttributes(attribute.String("storage.acl", string(acl)))
	defer func() { finish(span, err) }()
	return c.next.PutObjectACL(ctx, bucket, key, acl)
}

func (c *Client) ObjectExists(ctx context.Context, bucket, key string) (ok bool, err error) {
	ctx, span := c.start(ctx, "ObjectExists", bucket, key)
	defer func() { finish(span, err) }()
	return c.next.ObjectExists(ctx, bucket, key)
}

func (c *Client) SignURL(ctx context.Context, bucket, key string, ttl time.Duration, method string, params map[string]string) (u string, err error) {
	ctx, span := c.start(ctx, "SignURL", bucket, key)
	span.SetAttributes(attribute.Int64("storage.ttl_seconds", int64(ttl/time.Second)))
	defer func() { finish(span, err) }()
	return c.next.SignURL(ctx, bucket, key, ttl, method, params)
}
