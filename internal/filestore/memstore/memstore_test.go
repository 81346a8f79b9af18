package memstore

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/koustreak/bucketfs/internal/filestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bucket = "assets"

var _ filestore.Client = (*Store)(nil)

func put(t *testing.T, s *Store, key, body string, headers map[string]string) {
	t.Helper()
	err := s.PutObject(context.Background(), bucket, key, strings.NewReader(body), int64(len(body)),
		filestore.RequestOptions{Headers: headers})
	require.NoError(t, err)
}

func seed(t *testing.T, s *Store, keys ...string) {
	t.Helper()
	for _, k := range keys {
		put(t, s, k, "x", nil)
	}
}

func TestPutGetStat(t *testing.T) {
	ctx := context.Background()
	s := New(bucket)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.Now = func() time.Time { return fixed }

	put(t, s, "docs/readme.txt", "hello", map[string]string{
		"content-type":  "text/plain",
		"X-Amz-Acl":     "public-read",
		"Cache-Control": "max-age=60",
	})

	obj, err := s.GetObject(ctx, bucket, "docs/readme.txt")
	require.NoError(t, err)
	defer obj.Close()

	body, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))

	_, err = obj.Seek(0, io.SeekStart)
	require.NoError(t, err)
	again, _ := io.ReadAll(obj)
	assert.Equal(t, "hello", string(again))

	info, err := s.StatObject(ctx, bucket, "docs/readme.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
	assert.Equal(t, "text/plain", info.ContentType)
	assert.Equal(t, filestore.ACLPublicRead, info.ACL)
	assert.Equal(t, fixed, info.LastModified)
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", info.ETag)
	assert.Equal(t, "max-age=60", info.Metadata["Cache-Control"])
}

func TestPutObject_Errors(t *testing.T) {
	ctx := context.Background()
	s := New(bucket)

	err := s.PutObject(ctx, "missing", "k", strings.NewReader("x"), 1, filestore.RequestOptions{})
	assert.True(t, errs.IsNotFound(err))

	err = s.PutObject(ctx, bucket, "k", strings.NewReader("xy"), 5, filestore.RequestOptions{})
	assert.True(t, errs.IsInvalidInput(err))

	err = s.PutObject(ctx, bucket, "", strings.NewReader(""), 0, filestore.RequestOptions{})
	assert.True(t, errs.IsInvalidInput(err))
}

func TestMissingObject(t *testing.T) {
	ctx := context.Background()
	s := New(bucket)

	_, err := s.GetObject(ctx, bucket, "nope")
	assert.True(t, errs.IsNotFound(err))
	_, err = s.StatObject(ctx, bucket, "nope")
	assert.True(t, errs.IsNotFound(err))
	_, err = s.GetObjectACL(ctx, bucket, "nope")
	assert.True(t, errs.IsNotFound(err))
	assert.True(t, errs.IsNotFound(s.PutObjectACL(ctx, bucket, "nope", filestore.ACLPrivate)))
	assert.True(t, errs.IsNotFound(s.CopyObject(ctx, bucket, "nope", bucket, "dst")))
	assert.NoError(t, s.DeleteObject(ctx, bucket, "nope"))

	ok, err := s.ObjectExists(ctx, bucket, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCopyAndDelete(t *testing.T) {
	ctx := context.Background()
	s := New(bucket)
	put(t, s, "a.txt", "data", map[string]string{"X-Amz-Acl": "public-read"})

	require.NoError(t, s.CopyObject(ctx, bucket, "a.txt", bucket, "b.txt"))
	acl, err := s.GetObjectACL(ctx, bucket, "b.txt")
	require.NoError(t, err)
	assert.Equal(t, filestore.ACLPublicRead, acl)

	require.NoError(t, s.DeleteObjects(ctx, bucket, []string{"a.txt", "b.txt"}))
	assert.Empty(t, s.Keys(bucket))
}

func TestACL(t *testing.T) {
	ctx := context.Background()
	s := New(bucket)
	put(t, s, "a.txt", "data", nil)

	acl, err := s.GetObjectACL(ctx, bucket, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, filestore.ACLPrivate, acl)

	require.NoError(t, s.PutObjectACL(ctx, bucket, "a.txt", filestore.ACLPublicRead))
	acl, _ = s.GetObjectACL(ctx, bucket, "a.txt")
	assert.Equal(t, filestore.ACLPublicRead, acl)
}

func TestListObjects_Delimiter(t *testing.T) {
	ctx := context.Background()
	s := New(bucket)
	seed(t, s, "a/", "a/x", "a/b/y", "a/b/z", "a/c/w", "b/q", "top")

	page, err := s.ListObjects(ctx, bucket, filestore.ListOptions{Prefix: "a/", Delimiter: "/"})
	require.NoError(t, err)

	var keys []string
	for _, o := range page.Objects {
		keys = append(keys, o.Key)
		assert.Equal(t, "a/", o.Prefix)
	}
	assert.Equal(t, []string{"a/", "a/x"}, keys)
	assert.Equal(t, []string{"a/b/", "a/c/"}, page.CommonPrefixes)
	assert.False(t, page.IsTruncated)
	assert.Empty(t, page.NextMarker)

	root, err := s.ListObjects(ctx, bucket, filestore.ListOptions{Delimiter: "/"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a/", "b/"}, root.CommonPrefixes)
	require.Len(t, root.Objects, 1)
	assert.Equal(t, "top", root.Objects[0].Key)
}

func TestListObjects_Pagination(t *testing.T) {
	ctx := context.Background()
	s := New(bucket)
	seed(t, s, "d/1", "d/2", "d/3", "d/sub/a", "d/sub/b", "d/z")

	var objects, prefixes []string
	marker := ""
	calls := 0
	for {
		page, err := s.ListObjects(ctx, bucket, filestore.ListOptions{
			Prefix: "d/", Delimiter: "/", MaxKeys: 2, Marker: marker,
		})
		require.NoError(t, err)
		calls++
		for _, o := range page.Objects {
			objects = append(objects, o.Key)
		}
		prefixes = append(prefixes, page.CommonPrefixes...)
		marker = page.NextMarker
		if marker == "" {
			break
		}
		assert.True(t, page.IsTruncated)
	}

	assert.Equal(t, 3, calls)
	assert.Equal(t, []string{"d/1", "d/2", "d/3", "d/z"}, objects)
	assert.Equal(t, []string{"d/sub/"}, prefixes, "common prefix used as marker is not repeated")
}

func TestListObjects_Flat(t *testing.T) {
	s := New(bucket)
	seed(t, s, "p/a", "p/b/c", "q")

	page, err := s.ListObjects(context.Background(), bucket, filestore.ListOptions{Prefix: "p/"})
	require.NoError(t, err)
	assert.Len(t, page.Objects, 2)
	assert.Empty(t, page.CommonPrefixes)
}

func TestListObjects_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(bucket).ListObjects(ctx, bucket, filestore.ListOptions{})
	assert.True(t, errs.IsTimeout(err))
}

func TestUploadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.bin")
	require.NoError(t, os.WriteFile(path, []byte("local"), 0o600))

	s := New(bucket)
	require.NoError(t, s.UploadFile(context.Background(), bucket, "remote.bin", path, filestore.RequestOptions{CheckMD5: true}))
	assert.Equal(t, []string{"remote.bin"}, s.Keys(bucket))

	err := s.UploadFile(context.Background(), bucket, "x", filepath.Join(t.TempDir(), "absent"), filestore.RequestOptions{})
	assert.True(t, errs.IsInvalidInput(err))
}

func TestSignURL(t *testing.T) {
	s := New(bucket)

	raw, err := s.SignURL(context.Background(), bucket, "a/b.txt", 90*time.Second, filestore.MethodGet,
		map[string]string{"response-content-type": "text/plain"})
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "memory", u.Scheme)
	assert.Equal(t, bucket, u.Host)
	assert.Equal(t, "/a/b.txt", u.Path)
	assert.Equal(t, "90", u.Query().Get("X-Expires"))
	assert.Equal(t, "GET", u.Query().Get("X-Method"))
	assert.Equal(t, "text/plain", u.Query().Get("response-content-type"))

	_, err = s.SignURL(context.Background(), bucket, "a", 0, filestore.MethodGet, nil)
	assert.True(t, errs.IsInvalidInput(err))
}
