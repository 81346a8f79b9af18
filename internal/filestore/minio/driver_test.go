package minio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/koustreak/bucketfs/internal/filestore"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ filestore.Client = (*Driver)(nil)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.ErrKind
	}{
		{"deadline", context.DeadlineExceeded, errs.ErrKindTimeout},
		{"cancelled wrapped", fmt.Errorf("op: %w", context.Canceled), errs.ErrKindTimeout},
		{"network", errors.New("dial tcp: connection refused"), errs.ErrKindConnectionFailed},
		{"no such key", miniogo.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}, errs.ErrKindNotFound},
		{"head 404 without code", miniogo.ErrorResponse{StatusCode: http.StatusNotFound}, errs.ErrKindNotFound},
		{"access denied", miniogo.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}, errs.ErrKindPermissionDenied},
		{"bad name", miniogo.ErrorResponse{Code: "InvalidObjectName", StatusCode: http.StatusBadRequest}, errs.ErrKindInvalidInput},
		{"slow down", miniogo.ErrorResponse{Code: "SlowDown", StatusCode: http.StatusServiceUnavailable}, errs.ErrKindTimeout},
		{"unavailable", miniogo.ErrorResponse{StatusCode: http.StatusServiceUnavailable}, errs.ErrKindConnectionFailed},
		{"internal", miniogo.ErrorResponse{Code: "InternalError", StatusCode: http.StatusInternalServerError}, errs.ErrKindOperationFailed},
		{"already mapped", errs.New(errs.ErrKindInvalidInput, "bad sse"), errs.ErrKindInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err, "op failed")
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Kind)
		})
	}

	assert.Nil(t, mapError(nil, "noop"))
}

func TestPutOptions(t *testing.T) {
	po, err := putOptions(filestore.RequestOptions{
		Headers: map[string]string{
			"Content-Type":                 "text/plain",
			"Content-Encoding":             "gzip",
			"Content-Disposition":          "attachment",
			"Content-Language":             "en",
			"Cache-Control":                "max-age=60",
			"Expires":                      "Wed, 21 Oct 2026 07:28:00 GMT",
			"X-Amz-Server-Side-Encryption": "AES256",
			"X-Amz-Acl":                    "public-read",
			"X-Amz-Metadata-Directive":     "REPLACE",
			"Content-Length":               "5",
		},
		PartSize: 5 << 20,
		CheckMD5: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "text/plain", po.ContentType)
	assert.Equal(t, "gzip", po.ContentEncoding)
	assert.Equal(t, "attachment", po.ContentDisposition)
	assert.Equal(t, "en", po.ContentLanguage)
	assert.Equal(t, "max-age=60", po.CacheControl)
	assert.Equal(t, time.Date(2026, 10, 21, 7, 28, 0, 0, time.UTC), po.Expires.UTC())
	assert.NotNil(t, po.ServerSideEncryption)
	assert.Equal(t, map[string]string{"X-Amz-Acl": "public-read"}, po.UserMetadata)
	assert.Equal(t, uint64(5<<20), po.PartSize)
	assert.True(t, po.SendContentMd5)
}

func TestPutOptions_UnsupportedSSE(t *testing.T) {
	_, err := putOptions(filestore.RequestOptions{
		Headers: map[string]string{"X-Amz-Server-Side-Encryption": "aws:kms"},
	})
	assert.True(t, errs.IsInvalidInput(err))
}

func TestToObjectInfo(t *testing.T) {
	modified := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	info := toObjectInfo(miniogo.ObjectInfo{
		Key:          "a/b.txt",
		Size:         42,
		ContentType:  "text/plain",
		ETag:         `"abc"`,
		LastModified: modified,
		StorageClass: "STANDARD",
		Metadata: http.Header{
			"Content-Type":  {"text/plain"},
			"X-Amz-Acl":     {"public-read"},
			"Cache-Control": {"no-cache"},
		},
	})

	assert.Equal(t, "a/b.txt", info.Key)
	assert.Equal(t, int64(42), info.Size)
	assert.Equal(t, "abc", info.ETag)
	assert.Equal(t, modified, info.LastModified)
	assert.Equal(t, filestore.ACLPublicRead, info.ACL)
	assert.Equal(t, map[string]string{"Cache-Control": "no-cache"}, info.Metadata)
}
