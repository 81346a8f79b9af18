package objfs

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/koustreak/bucketfs/internal/config"
	"github.com/koustreak/bucketfs/internal/filestore"
	"github.com/koustreak/bucketfs/internal/filestore/memstore"
	"github.com/koustreak/bucketfs/internal/logger"
	"github.com/stretchr/testify/require"
)

const testBucket = "assets"

var noConfig config.Values

// recordingClient wraps a memstore and records calls. Failures and scripted
// listing pages can be injected per test.
type recordingClient struct {
	*memstore.Store

	mu         sync.Mutex
	calls      []string
	lastPut    filestore.RequestOptions
	listOpts   []filestore.ListOptions
	pages      []*filestore.ListPage
	copyErr    error
	aclErr     error
	listErr    error
	keepOnDrop bool
}

func newRecordingClient() *recordingClient {
	return &recordingClient{Store: memstore.New(testBucket)}
}

func (c *recordingClient) record(call string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
}

func (c *recordingClient) called(call string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, name := range c.calls {
		if name == call {
			n++
		}
	}
	return n
}

func (c *recordingClient) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, opts filestore.RequestOptions) error {
	c.record("PutObject")
	c.mu.Lock()
	c.lastPut = opts
	c.mu.Unlock()
	return c.Store.PutObject(ctx, bucket, key, body, size, opts)
}

func (c *recordingClient) UploadFile(ctx context.Context, bucket, key, filePath string, opts filestore.RequestOptions) error {
	c.record("UploadFile")
	c.mu.Lock()
	c.lastPut = opts
	c.mu.Unlock()
	return c.Store.UploadFile(ctx, bucket, key, filePath, opts)
}

func (c *recordingClient) CopyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	c.record("CopyObject")
	if c.copyErr != nil {
		return c.copyErr
	}
	return c.Store.CopyObject(ctx, srcBucket, srcKey, dstBucket, dstKey)
}

func (c *recordingClient) DeleteObject(ctx context.Context, bucket, key string) error {
	c.record("DeleteObject")
	if c.keepOnDrop {
		return nil
	}
	return c.Store.DeleteObject(ctx, bucket, key)
}

func (c *recordingClient) DeleteObjects(ctx context.Context, bucket string, keys []string) error {
	c.record("DeleteObjects")
	return c.Store.DeleteObjects(ctx, bucket, keys)
}

func (c *recordingClient) GetObjectACL(ctx context.Context, bucket, key string) (filestore.ACL, error) {
	c.record("GetObjectACL")
	if c.aclErr != nil {
		return "", c.aclErr
	}
	return c.Store.GetObjectACL(ctx, bucket, key)
}

func (c *recordingClient) ListObjects(ctx context.Context, bucket string, opts filestore.ListOptions) (*filestore.ListPage, error) {
	c.record("ListObjects")
	c.mu.Lock()
	c.listOpts = append(c.listOpts, opts)
	n := len(c.listOpts)
	c.mu.Unlock()

	if c.listErr != nil {
		return nil, c.listErr
	}
	if c.pages != nil {
		return c.pages[n-1], nil
	}
	return c.Store.ListObjects(ctx, bucket, opts)
}

type observed struct {
	op    string
	bytes int64
	err   error
}

type recordingObserver struct {
	mu  sync.Mutex
	obs []observed
}

func (o *recordingObserver) Observe(op string, bytes int64, err error, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.obs = append(o.obs, observed{op: op, bytes: bytes, err: err})
}

func testSettings(t *testing.T, extra map[string]any) *Settings {
	t.Helper()
	m := map[string]any{
		"bucket":   testBucket,
		"endpoint": "storage.example.com",
	}
	for k, v := range extra {
		m[k] = v
	}
	s, err := NewSettings(config.NewValues(m))
	require.NoError(t, err)
	return s
}

func newTestAdapter(t *testing.T, extra map[string]any, opts ...Option) (*Adapter, *recordingClient) {
	t.Helper()
	c := newRecordingClient()
	opts = append([]Option{WithLogger(logger.Nop())}, opts...)
	return New(c, testSettings(t, extra), opts...), c
}

func writeString(t *testing.T, a *Adapter, path, body string, cfg config.Values) Metadata {
	t.Helper()
	meta, err := a.Write(context.Background(), path, []byte(body), cfg)
	require.NoError(t, err)
	return meta
}

func paths(entries []Metadata) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, string(e.Type)+":"+e.Path)
	}
	return out
}
