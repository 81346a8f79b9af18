package s3

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	awss3 "github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/koustreak/bucketfs/internal/filestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ filestore.Client = (*Driver)(nil)

// fakeAPI overrides the handful of calls the tests exercise; anything else
// panics through the nil embedded interface.
type fakeAPI struct {
	s3iface.S3API

	lastPut    *awss3.PutObjectInput
	lastList   *awss3.ListObjectsInput
	listOut    *awss3.ListObjectsOutput
	grants     []*awss3.Grant
	headErr    error
	deleteReqs [][]string
}

func (f *fakeAPI) PutObjectWithContext(_ aws.Context, in *awss3.PutObjectInput, _ ...request.Option) (*awss3.PutObjectOutput, error) {
	f.lastPut = in
	return &awss3.PutObjectOutput{}, nil
}

func (f *fakeAPI) ListObjectsWithContext(_ aws.Context, in *awss3.ListObjectsInput, _ ...request.Option) (*awss3.ListObjectsOutput, error) {
	f.lastList = in
	return f.listOut, nil
}

func (f *fakeAPI) GetObjectAclWithContext(aws.Context, *awss3.GetObjectAclInput, ...request.Option) (*awss3.GetObjectAclOutput, error) {
	return &awss3.GetObjectAclOutput{Grants: f.grants}, nil
}

func (f *fakeAPI) HeadObjectWithContext(aws.Context, *awss3.HeadObjectInput, ...request.Option) (*awss3.HeadObjectOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &awss3.HeadObjectOutput{
		ContentLength: aws.Int64(3),
		ContentType:   aws.String("text/plain"),
		ETag:          aws.String(`"e"`),
		CacheControl:  aws.String("no-cache"),
		Metadata:      map[string]*string{"Owner": aws.String("ops")},
	}, nil
}

func (f *fakeAPI) GetObjectWithContext(aws.Context, *awss3.GetObjectInput, ...request.Option) (*awss3.GetObjectOutput, error) {
	return &awss3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader("abc")),
		ContentLength: aws.Int64(3),
		ContentType:   aws.String("text/plain"),
	}, nil
}

func (f *fakeAPI) DeleteObjectsWithContext(_ aws.Context, in *awss3.DeleteObjectsInput, _ ...request.Option) (*awss3.DeleteObjectsOutput, error) {
	var keys []string
	for _, id := range in.Delete.Objects {
		keys = append(keys, aws.StringValue(id.Key))
	}
	f.deleteReqs = append(f.deleteReqs, keys)
	return &awss3.DeleteObjectsOutput{}, nil
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.ErrKind
	}{
		{"deadline", context.DeadlineExceeded, errs.ErrKindTimeout},
		{"plain", errors.New("boom"), errs.ErrKindConnectionFailed},
		{"cancelled", awserr.New(request.CanceledErrorCode, "cancelled", nil), errs.ErrKindTimeout},
		{"no such key", awserr.NewRequestFailure(awserr.New("NoSuchKey", "", nil), http.StatusNotFound, "r"), errs.ErrKindNotFound},
		{"head 404", awserr.NewRequestFailure(awserr.New("UnknownError", "", nil), http.StatusNotFound, "r"), errs.ErrKindNotFound},
		{"denied", awserr.NewRequestFailure(awserr.New("AccessDenied", "", nil), http.StatusForbidden, "r"), errs.ErrKindPermissionDenied},
		{"request error", awserr.New(request.ErrCodeRequestError, "send failed", nil), errs.ErrKindConnectionFailed},
		{"internal", awserr.NewRequestFailure(awserr.New("InternalError", "", nil), http.StatusInternalServerError, "r"), errs.ErrKindOperationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err, "op failed")
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Kind)
		})
	}
}

func TestPutObject_Headers(t *testing.T) {
	api := &fakeAPI{}
	d := NewWithAPI(api)

	err := d.PutObject(context.Background(), "b", "k", strings.NewReader("hello"), 5, filestore.RequestOptions{
		Headers: map[string]string{
			"Content-Type":     "text/plain",
			"Cache-Control":    "max-age=60",
			"X-Amz-Acl":        "public-read",
			"Expires":          "Wed, 21 Oct 2026 07:28:00 GMT",
			"X-Amz-Meta-Owner": "ops",
		},
		CheckMD5: true,
	})
	require.NoError(t, err)

	in := api.lastPut
	require.NotNil(t, in)
	assert.Equal(t, "text/plain", aws.StringValue(in.ContentType))
	assert.Equal(t, "max-age=60", aws.StringValue(in.CacheControl))
	assert.Equal(t, "public-read", aws.StringValue(in.ACL))
	assert.Equal(t, time.Date(2026, 10, 21, 7, 28, 0, 0, time.UTC), aws.TimeValue(in.Expires).UTC())
	assert.Equal(t, "ops", aws.StringValue(in.Metadata["owner"]))
	assert.Equal(t, "XUFAKrxLKna5cZ2REBfFkg==", aws.StringValue(in.ContentMD5))
	assert.Equal(t, int64(5), aws.Int64Value(in.ContentLength))
}

func TestUploadPartSize(t *testing.T) {
	const mib = 1 << 20

	tests := []struct {
		name string
		size int64
		opts filestore.RequestOptions
		want int64
	}{
		{"default", 100 * mib, filestore.RequestOptions{}, s3manager.DefaultUploadPartSize},
		{"configured", 100 * mib, filestore.RequestOptions{PartSize: 16 * mib}, 16 * mib},
		{"below minimum", 100 * mib, filestore.RequestOptions{PartSize: 1024}, s3manager.DefaultUploadPartSize},
		{"md5 keeps single part", 100 * mib, filestore.RequestOptions{PartSize: 16 * mib, CheckMD5: true}, 100 * mib},
		{"md5 small file", mib, filestore.RequestOptions{CheckMD5: true}, s3manager.DefaultUploadPartSize},
		{"md5 too large for one put", maxSinglePut + 1, filestore.RequestOptions{PartSize: 16 * mib, CheckMD5: true}, 16 * mib},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := uploadPartSize(tt.size, tt.opts)
			assert.Equal(t, tt.want, got)
			if tt.opts.CheckMD5 && tt.size <= maxSinglePut {
				assert.LessOrEqual(t, tt.size, got, "checked uploads must stay single-part")
			}
		})
	}
}

func TestListObjects(t *testing.T) {
	api := &fakeAPI{listOut: &awss3.ListObjectsOutput{
		IsTruncated: aws.Bool(true),
		Contents: []*awss3.Object{
			{Key: aws.String("d/a"), Size: aws.Int64(1), ETag: aws.String(`"x"`)},
		},
		CommonPrefixes: []*awss3.CommonPrefix{{Prefix: aws.String("d/sub/")}},
	}}
	d := NewWithAPI(api)

	page, err := d.ListObjects(context.Background(), "b", filestore.ListOptions{Prefix: "d/", Delimiter: "/", Marker: "d/0"})
	require.NoError(t, err)

	assert.Equal(t, int64(filestore.DefaultMaxKeys), aws.Int64Value(api.lastList.MaxKeys))
	assert.Equal(t, "d/0", aws.StringValue(api.lastList.Marker))
	require.Len(t, page.Objects, 1)
	assert.Equal(t, "x", page.Objects[0].ETag)
	assert.Equal(t, []string{"d/sub/"}, page.CommonPrefixes)
	assert.Equal(t, "d/sub/", page.NextMarker, "falls back to the last entry when NextMarker is absent")
}

func TestGetObjectACL(t *testing.T) {
	allUsers := &awss3.Grantee{Type: aws.String(awss3.TypeGroup), URI: aws.String(allUsersURI)}
	owner := &awss3.Grantee{Type: aws.String(awss3.TypeCanonicalUser), ID: aws.String("owner")}

	tests := []struct {
		name   string
		grants []*awss3.Grant
		want   filestore.ACL
	}{
		{"owner only", []*awss3.Grant{{Grantee: owner, Permission: aws.String(awss3.PermissionFullControl)}}, filestore.ACLPrivate},
		{"public read", []*awss3.Grant{{Grantee: allUsers, Permission: aws.String(awss3.PermissionRead)}}, filestore.ACLPublicRead},
		{"public write", []*awss3.Grant{
			{Grantee: allUsers, Permission: aws.String(awss3.PermissionRead)},
			{Grantee: allUsers, Permission: aws.String(awss3.PermissionWrite)},
		}, filestore.ACLPublicReadWrite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acl, err := NewWithAPI(&fakeAPI{grants: tt.grants}).GetObjectACL(context.Background(), "b", "k")
			require.NoError(t, err)
			assert.Equal(t, tt.want, acl)
		})
	}
}

func TestStatAndExists(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{}
	d := NewWithAPI(api)

	info, err := d.StatObject(ctx, "b", "k")
	require.NoError(t, err)
	assert.Equal(t, int64(3), info.Size)
	assert.Equal(t, "e", info.ETag)
	assert.Equal(t, "no-cache", info.Metadata[filestore.HeaderCacheControl])
	assert.Equal(t, "ops", info.Metadata["X-Amz-Meta-Owner"])

	ok, err := d.ObjectExists(ctx, "b", "k")
	require.NoError(t, err)
	assert.True(t, ok)

	api.headErr = awserr.NewRequestFailure(awserr.New("NotFound", "", nil), http.StatusNotFound, "r")
	ok, err = d.ObjectExists(ctx, "b", "k")
	require.NoError(t, err)
	assert.False(t, ok)

	api.headErr = awserr.NewRequestFailure(awserr.New("AccessDenied", "", nil), http.StatusForbidden, "r")
	_, err = d.ObjectExists(ctx, "b", "k")
	assert.True(t, errs.IsPermissionDenied(err))
}

func TestGetObject_Seekable(t *testing.T) {
	obj, err := NewWithAPI(&fakeAPI{}).GetObject(context.Background(), "b", "k")
	require.NoError(t, err)
	defer obj.Close()

	first, _ := io.ReadAll(obj)
	_, err = obj.Seek(0, io.SeekStart)
	require.NoError(t, err)
	second, _ := io.ReadAll(obj)

	assert.Equal(t, "abc", string(first))
	assert.Equal(t, string(first), string(second))
	assert.Equal(t, "k", obj.Info().Key)
}

func TestDeleteObjects_Batches(t *testing.T) {
	api := &fakeAPI{}
	keys := make([]string, deleteBatch+5)
	for i := range keys {
		keys[i] = "k" + strings.Repeat("x", i%3)
	}

	require.NoError(t, NewWithAPI(api).DeleteObjects(context.Background(), "b", keys))
	require.Len(t, api.deleteReqs, 2)
	assert.Len(t, api.deleteReqs[0], deleteBatch)
	assert.Len(t, api.deleteReqs[1], 5)
}
