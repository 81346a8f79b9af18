// Package s3 provides an AWS S3 implementation of filestore.Client built on
// aws-sdk-go. Unlike the MinIO driver it manages object ACLs natively.
package s3

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	awss3 "github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/koustreak/bucketfs/internal/filestore"
)

const allUsersURI = "http://acs.amazonaws.com/groups/global/AllUsers"

// deleteBatch is the multi-object delete limit per request.
const deleteBatch = 1000

// Driver is an S3 implementation of filestore.Client.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	api s3iface.S3API
}

// New builds an S3 session from cfg and verifies connectivity.
func New(ctx context.Context, cfg *filestore.Config) (*Driver, error) {
	awsCfg := &aws.Config{
		Credentials:      credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(cfg.PathStyle),
		DisableSSL:       aws.Bool(!cfg.UseSSL),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to create s3 session", err)
	}

	d := NewWithAPI(awss3.New(sess))
	if err := d.Ping(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// NewWithAPI wraps an existing S3 API client.
func NewWithAPI(api s3iface.S3API) *Driver {
	return &Driver{api: api}
}

// --- filestore.Client implementation ---

// Ping lists buckets to verify credentials and reachability.
func (d *Driver) Ping(ctx context.Context) error {
	if _, err := d.api.ListBucketsWithContext(ctx, &awss3.ListBucketsInput{}); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

// Close is a no-op; the SDK manages its own connections.
func (d *Driver) Close() error {
	return nil
}

// PutObject uploads body in a single request.
func (d *Driver) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, opts filestore.RequestOptions) error {
	rs, ok := body.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(body)
		if err != nil {
			return errs.Wrap(errs.ErrKindOperationFailed, "failed to read object body", err)
		}
		rs = bytes.NewReader(data)
	}

	in := &awss3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   rs,
	}
	if size >= 0 {
		in.ContentLength = aws.Int64(size)
	}
	applyHeaders(opts.Headers, &uploadFields{
		contentType:        &in.ContentType,
		cacheControl:       &in.CacheControl,
		contentDisposition: &in.ContentDisposition,
		contentEncoding:    &in.ContentEncoding,
		contentLanguage:    &in.ContentLanguage,
		expires:            &in.Expires,
		sse:                &in.ServerSideEncryption,
		acl:                &in.ACL,
		metadata:           &in.Metadata,
	})
	if opts.CheckMD5 {
		sum, err := contentMD5(rs)
		if err != nil {
			return errs.Wrap(errs.ErrKindOperationFailed, "failed to hash object body", err)
		}
		in.ContentMD5 = aws.String(sum)
	}

	if _, err := d.api.PutObjectWithContext(ctx, in); err != nil {
		return mapError(err, "failed to put object")
	}
	return nil
}

// UploadFile streams a local file through the s3manager uploader, which
// switches to multipart above the part size. Multipart uploads carry no
// Content-MD5, so with opts.CheckMD5 the part size is stretched to keep files
// up to maxSinglePut in one request. Larger files go multipart unchecked.
func (d *Driver) UploadFile(ctx context.Context, bucket, key, filePath string, opts filestore.RequestOptions) error {
	f, err := os.Open(filePath)
	if err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "failed to open upload file", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "failed to stat upload file", err)
	}
	partSize := uploadPartSize(st.Size(), opts)

	in := &s3manager.UploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	applyHeaders(opts.Headers, &uploadFields{
		contentType:        &in.ContentType,
		cacheControl:       &in.CacheControl,
		contentDisposition: &in.ContentDisposition,
		contentEncoding:    &in.ContentEncoding,
		contentLanguage:    &in.ContentLanguage,
		expires:            &in.Expires,
		sse:                &in.ServerSideEncryption,
		acl:                &in.ACL,
		metadata:           &in.Metadata,
	})
	if opts.CheckMD5 && st.Size() <= partSize {
		sum, err := contentMD5(f)
		if err != nil {
			return errs.Wrap(errs.ErrKindOperationFailed, "failed to hash upload file", err)
		}
		in.ContentMD5 = aws.String(sum)
	}

	uploader := s3manager.NewUploaderWithClient(d.api, func(u *s3manager.Uploader) {
		u.PartSize = partSize
	})
	if _, err := uploader.UploadWithContext(ctx, in); err != nil {
		return mapError(err, "failed to upload file")
	}
	return nil
}

// GetObject downloads the object into memory so the returned handle can
// seek; S3 response bodies are forward-only.
func (d *Driver) GetObject(ctx context.Context, bucket, key string) (filestore.Object, error) {
	out, err := d.api.GetObjectWithContext(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError(err, "failed to get object")
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, mapError(err, "failed to read object body")
	}

	info := filestore.ObjectInfo{
		Key:          key,
		Size:         aws.Int64Value(out.ContentLength),
		ContentType:  aws.StringValue(out.ContentType),
		ETag:         strings.Trim(aws.StringValue(out.ETag), `"`),
		LastModified: aws.TimeValue(out.LastModified),
		StorageClass: aws.StringValue(out.StorageClass),
		Metadata:     userMetadata(out.Metadata),
	}
	return &object{Reader: bytes.NewReader(data), info: &info}, nil
}

// DeleteObject removes the object at key.
func (d *Driver) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := d.api.DeleteObjectWithContext(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return mapError(err, "failed to delete object")
	}
	return nil
}

// DeleteObjects removes keys in batches of up to 1000.
func (d *Driver) DeleteObjects(ctx context.Context, bucket string, keys []string) error {
	for start := 0; start < len(keys); start += deleteBatch {
		end := start + deleteBatch
		if end > len(keys) {
			end = len(keys)
		}

		ids := make([]*awss3.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			ids = append(ids, &awss3.ObjectIdentifier{Key: aws.String(k)})
		}

		out, err := d.api.DeleteObjectsWithContext(ctx, &awss3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &awss3.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return mapError(err, "failed to delete objects")
		}
		if len(out.Errors) > 0 {
			e := out.Errors[0]
			return errs.New(errs.ErrKindOperationFailed,
				"failed to delete object "+aws.StringValue(e.Key)+": "+aws.StringValue(e.Code))
		}
	}
	return nil
}

// CopyObject performs a server-side copy.
func (d *Driver) CopyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	source := (&url.URL{Path: srcBucket + "/" + srcKey}).EscapedPath()
	_, err := d.api.CopyObjectWithContext(ctx, &awss3.CopyObjectInput{
		Bucket:     aws.String(dstBucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(source),
	})
	if err != nil {
		return mapError(err, "failed to copy object")
	}
	return nil
}

// ListObjects returns one V1 listing page.
func (d *Driver) ListObjects(ctx context.Context, bucket string, opts filestore.ListOptions) (*filestore.ListPage, error) {
	maxKeys := opts.MaxKeys
	if maxKeys <= 0 {
		maxKeys = filestore.DefaultMaxKeys
	}

	in := &awss3.ListObjectsInput{
		Bucket:  aws.String(bucket),
		Prefix:  aws.String(opts.Prefix),
		MaxKeys: aws.Int64(int64(maxKeys)),
	}
	if opts.Delimiter != "" {
		in.Delimiter = aws.String(opts.Delimiter)
	}
	if opts.Marker != "" {
		in.Marker = aws.String(opts.Marker)
	}

	out, err := d.api.ListObjectsWithContext(ctx, in)
	if err != nil {
		return nil, mapError(err, "failed to list objects")
	}

	page := &filestore.ListPage{IsTruncated: aws.BoolValue(out.IsTruncated)}
	last := ""
	for _, o := range out.Contents {
		key := aws.StringValue(o.Key)
		page.Objects = append(page.Objects, filestore.ObjectInfo{
			Key:          key,
			Prefix:       opts.Prefix,
			Size:         aws.Int64Value(o.Size),
			ETag:         strings.Trim(aws.StringValue(o.ETag), `"`),
			LastModified: aws.TimeValue(o.LastModified),
			StorageClass: aws.StringValue(o.StorageClass),
		})
		if key > last {
			last = key
		}
	}
	for _, cp := range out.CommonPrefixes {
		p := aws.StringValue(cp.Prefix)
		page.CommonPrefixes = append(page.CommonPrefixes, p)
		if p > last {
			last = p
		}
	}

	if page.IsTruncated {
		page.NextMarker = aws.StringValue(out.NextMarker)
		if page.NextMarker == "" {
			page.NextMarker = last
		}
	}
	return page, nil
}

// StatObject issues a HEAD request for key.
func (d *Driver) StatObject(ctx context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	out, err := d.api.HeadObjectWithContext(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError(err, "failed to stat object")
	}

	meta := userMetadata(out.Metadata)
	setIf(meta, filestore.HeaderCacheControl, out.CacheControl)
	setIf(meta, filestore.HeaderContentDisposition, out.ContentDisposition)
	setIf(meta, filestore.HeaderContentEncoding, out.ContentEncoding)
	setIf(meta, filestore.HeaderContentLanguage, out.ContentLanguage)
	setIf(meta, filestore.HeaderExpires, out.Expires)
	setIf(meta, filestore.HeaderServerSideEncryption, out.ServerSideEncryption)

	return &filestore.ObjectInfo{
		Key:          key,
		Size:         aws.Int64Value(out.ContentLength),
		ContentType:  aws.StringValue(out.ContentType),
		ETag:         strings.Trim(aws.StringValue(out.ETag), `"`),
		LastModified: aws.TimeValue(out.LastModified),
		StorageClass: aws.StringValue(out.StorageClass),
		Metadata:     meta,
	}, nil
}

// GetObjectACL reduces the object's grants to a canned ACL.
func (d *Driver) GetObjectACL(ctx context.Context, bucket, key string) (filestore.ACL, error) {
	out, err := d.api.GetObjectAclWithContext(ctx, &awss3.GetObjectAclInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", mapError(err, "failed to get object acl")
	}
	return cannedACL(out.Grants), nil
}

// PutObjectACL applies a canned ACL.
func (d *Driver) PutObjectACL(ctx context.Context, bucket, key string, acl filestore.ACL) error {
	_, err := d.api.PutObjectAclWithContext(ctx, &awss3.PutObjectAclInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		ACL:    aws.String(string(acl)),
	})
	if err != nil {
		return mapError(err, "failed to put object acl")
	}
	return nil
}

// ObjectExists issues a HEAD request, treating "not found" as false.
func (d *Driver) ObjectExists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := d.api.HeadObjectWithContext(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	mapped := mapError(err, "failed to check object")
	if errs.IsNotFound(mapped) {
		return false, nil
	}
	return false, mapped
}

// SignURL presigns a GET or PUT request for key. Known response-* params
// become response header overrides on GET.
func (d *Driver) SignURL(ctx context.Context, bucket, key string, ttl time.Duration, method string, params map[string]string) (string, error) {
	var req *request.Request
	switch strings.ToUpper(method) {
	case "", http.MethodGet:
		in := &awss3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)}
		for k, v := range params {
			switch strings.ToLower(k) {
			case "response-content-type":
				in.ResponseContentType = aws.String(v)
			case "response-content-disposition":
				in.ResponseContentDisposition = aws.String(v)
			case "response-content-encoding":
				in.ResponseContentEncoding = aws.String(v)
			case "response-content-language":
				in.ResponseContentLanguage = aws.String(v)
			case "response-cache-control":
				in.ResponseCacheControl = aws.String(v)
			}
		}
		req, _ = d.api.GetObjectRequest(in)
	case http.MethodPut:
		req, _ = d.api.PutObjectRequest(&awss3.PutObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	default:
		return "", errs.New(errs.ErrKindInvalidInput, "unsupported signing method: "+method)
	}

	req.SetContext(ctx)
	u, err := req.Presign(ttl)
	if err != nil {
		return "", mapError(err, "failed to sign url")
	}
	return u, nil
}

// --- helpers ---

type uploadFields struct {
	contentType, cacheControl, contentDisposition **string
	contentEncoding, contentLanguage, sse, acl    **string
	expires                                       **time.Time
	metadata                                      *map[string]*string
}

func applyHeaders(headers map[string]string, f *uploadFields) {
	for name, value := range headers {
		v := aws.String(value)
		switch strings.ToLower(name) {
		case "content-type":
			*f.contentType = v
		case "cache-control":
			*f.cacheControl = v
		case "content-disposition":
			*f.contentDisposition = v
		case "content-encoding":
			*f.contentEncoding = v
		case "content-language":
			*f.contentLanguage = v
		case "x-amz-server-side-encryption":
			*f.sse = v
		case "x-amz-acl":
			*f.acl = v
		case "expires":
			if t, err := http.ParseTime(value); err == nil {
				*f.expires = aws.Time(t)
			}
		case "content-length", "x-amz-metadata-directive":
		default:
			if *f.metadata == nil {
				*f.metadata = make(map[string]*string)
			}
			(*f.metadata)[strings.TrimPrefix(strings.ToLower(name), "x-amz-meta-")] = v
		}
	}
}

// maxSinglePut is the largest body S3 accepts in one PutObject.
const maxSinglePut = 5 << 30

// uploadPartSize returns the uploader part size for a file of size bytes.
// The uploader sends a single PutObject when size <= part size.
func uploadPartSize(size int64, opts filestore.RequestOptions) int64 {
	part := int64(opts.PartSize)
	if part < s3manager.MinUploadPartSize {
		part = s3manager.DefaultUploadPartSize
	}
	if opts.CheckMD5 && size > part && size <= maxSinglePut {
		part = size
	}
	return part
}

func contentMD5(rs io.ReadSeeker) (string, error) {
	h := md5.New()
	if _, err := io.Copy(h, rs); err != nil {
		return "", err
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

func cannedACL(grants []*awss3.Grant) filestore.ACL {
	read, write := false, false
	for _, g := range grants {
		if g.Grantee == nil || aws.StringValue(g.Grantee.URI) != allUsersURI {
			continue
		}
		switch aws.StringValue(g.Permission) {
		case awss3.PermissionRead:
			read = true
		case awss3.PermissionWrite:
			write = true
		case awss3.PermissionFullControl:
			read, write = true, true
		}
	}
	switch {
	case read && write:
		return filestore.ACLPublicReadWrite
	case read:
		return filestore.ACLPublicRead
	default:
		return filestore.ACLPrivate
	}
}

func userMetadata(in map[string]*string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out["X-Amz-Meta-"+k] = aws.StringValue(v)
	}
	return out
}

func setIf(m map[string]string, key string, v *string) {
	if v != nil && *v != "" {
		m[key] = *v
	}
}

// --- internal types ---

type object struct {
	*bytes.Reader
	info *filestore.ObjectInfo
}

func (o *object) Close() error {
	return nil
}

func (o *object) Info() *filestore.ObjectInfo {
	return o.info
}
