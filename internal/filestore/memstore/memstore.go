// Package memstore provides an in-memory implementation of filestore.Client.
//
// Keys are kept in a B-tree per bucket so listings come back in the same
// lexicographic order a real object store uses, including prefix/delimiter
// grouping and marker pagination. It backs the adapter tests and the
// daemon's "memory" provider.
package memstore

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/koustreak/bucketfs/internal/filestore"
	"github.com/tidwall/btree"
)

type entry struct {
	data []byte
	info filestore.ObjectInfo
}

// Store is an in-memory filestore.Client.
// It is safe for concurrent use by multiple goroutines.
type Store struct {
	mu      sync.RWMutex
	buckets map[string]*btree.Map[string, *entry]

	// Now stamps LastModified on writes. Tests may replace it.
	Now func() time.Time
}

// New returns a Store with the given buckets already created.
func New(buckets ...string) *Store {
	s := &Store{
		buckets: make(map[string]*btree.Map[string, *entry]),
		Now:     time.Now,
	}
	for _, b := range buckets {
		s.CreateBucket(b)
	}
	return s
}

// CreateBucket adds an empty bucket. Existing buckets are left untouched.
func (s *Store) CreateBucket(bucket string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.buckets[bucket]; !ok {
		s.buckets[bucket] = btree.NewMap[string, *entry](0)
	}
}

// Keys returns every key in bucket in lexicographic order.
func (s *Store) Keys(bucket string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tree, ok := s.buckets[bucket]
	if !ok {
		return nil
	}
	keys := make([]string, 0, tree.Len())
	tree.Scan(func(key string, _ *entry) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

func (s *Store) bucket(name string) (*btree.Map[string, *entry], error) {
	tree, ok := s.buckets[name]
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, "NoSuchBucket: "+name)
	}
	return tree, nil
}

func (s *Store) lookup(bucket, key string) (*entry, error) {
	tree, err := s.bucket(bucket)
	if err != nil {
		return nil, err
	}
	e, ok := tree.Get(key)
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, "NoSuchKey: "+key)
	}
	return e, nil
}

// --- filestore.Client implementation ---

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// PutObject stores the body under key, replacing any existing object.
func (s *Store) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, opts filestore.RequestOptions) error {
	if err := ctx.Err(); err != nil {
		return errs.Wrap(errs.ErrKindTimeout, "put object cancelled", err)
	}
	if key == "" {
		return errs.New(errs.ErrKindInvalidInput, "empty object key")
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return errs.Wrap(errs.ErrKindOperationFailed, "failed to read object body", err)
	}
	if size >= 0 && int64(len(data)) != size {
		return errs.New(errs.ErrKindInvalidInput, "IncompleteBody: body length does not match size")
	}
	return s.store(bucket, key, data, opts)
}

// UploadFile stores the content of the local file at filePath.
func (s *Store) UploadFile(ctx context.Context, bucket, key, filePath string, opts filestore.RequestOptions) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "failed to open upload file", err)
	}
	return s.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), opts)
}

func (s *Store) store(bucket, key string, data []byte, opts filestore.RequestOptions) error {
	sum := md5.Sum(data)
	info := filestore.ObjectInfo{
		Key:          key,
		Size:         int64(len(data)),
		ContentType:  "application/octet-stream",
		ETag:         hex.EncodeToString(sum[:]),
		StorageClass: "STANDARD",
		ACL:          filestore.ACLPrivate,
		Metadata:     make(map[string]string),
	}
	for name, value := range opts.Headers {
		switch {
		case strings.EqualFold(name, filestore.HeaderContentType):
			info.ContentType = value
		case strings.EqualFold(name, filestore.HeaderACL):
			info.ACL = filestore.ACL(value)
		case strings.EqualFold(name, filestore.HeaderContentLength),
			strings.EqualFold(name, filestore.HeaderMetadataDirective):
		default:
			info.Metadata[name] = value
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tree, err := s.bucket(bucket)
	if err != nil {
		return err
	}
	info.LastModified = s.Now().UTC().Truncate(time.Second)
	tree.Set(key, &entry{data: data, info: info})
	return nil
}

// GetObject returns a seekable reader over a snapshot of the object.
func (s *Store) GetObject(ctx context.Context, bucket, key string) (filestore.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, err := s.lookup(bucket, key)
	if err != nil {
		return nil, err
	}
	info := cloneInfo(e.info)
	return &object{Reader: bytes.NewReader(e.data), info: &info}, nil
}

// DeleteObject removes key. Missing keys are ignored.
func (s *Store) DeleteObject(ctx context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tree, err := s.bucket(bucket)
	if err != nil {
		return err
	}
	tree.Delete(key)
	return nil
}

// DeleteObjects removes every key in keys.
func (s *Store) DeleteObjects(ctx context.Context, bucket string, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tree, err := s.bucket(bucket)
	if err != nil {
		return err
	}
	for _, k := range keys {
		tree.Delete(k)
	}
	return nil
}

// CopyObject duplicates the source object, including its headers and ACL.
func (s *Store) CopyObject(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, err := s.lookup(srcBucket, srcKey)
	if err != nil {
		return err
	}
	dst, err := s.bucket(dstBucket)
	if err != nil {
		return err
	}
	info := cloneInfo(src.info)
	info.Key = dstKey
	info.LastModified = s.Now().UTC().Truncate(time.Second)
	data := append([]byte(nil), src.data...)
	dst.Set(dstKey, &entry{data: data, info: info})
	return nil
}

// ListObjects returns one page using S3 V1 marker semantics: entries sort
// lexicographically, keys sharing a prefix up to the delimiter collapse into
// one common prefix, and NextMarker is the last entry of a truncated page.
func (s *Store) ListObjects(ctx context.Context, bucket string, opts filestore.ListOptions) (*filestore.ListPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrKindTimeout, "list objects cancelled", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	tree, err := s.bucket(bucket)
	if err != nil {
		return nil, err
	}

	maxKeys := opts.MaxKeys
	if maxKeys <= 0 {
		maxKeys = filestore.DefaultMaxKeys
	}
	pivot := opts.Prefix
	if opts.Marker > pivot {
		pivot = opts.Marker
	}

	page := &filestore.ListPage{}
	var last, lastPrefix string
	count := 0

	tree.Ascend(pivot, func(key string, e *entry) bool {
		if !strings.HasPrefix(key, opts.Prefix) {
			return false
		}
		if key <= opts.Marker {
			return true
		}

		if opts.Delimiter != "" {
			rest := key[len(opts.Prefix):]
			if i := strings.Index(rest, opts.Delimiter); i >= 0 {
				cp := opts.Prefix + rest[:i+len(opts.Delimiter)]
				if cp == lastPrefix || strings.HasPrefix(opts.Marker, cp) {
					return true
				}
				if count == maxKeys {
					page.IsTruncated = true
					return false
				}
				page.CommonPrefixes = append(page.CommonPrefixes, cp)
				lastPrefix, last = cp, cp
				count++
				return true
			}
		}

		if count == maxKeys {
			page.IsTruncated = true
			return false
		}
		info := cloneInfo(e.info)
		info.Prefix = opts.Prefix
		page.Objects = append(page.Objects, info)
		last = key
		count++
		return true
	})

	if page.IsTruncated {
		page.NextMarker = last
	}
	return page, nil
}

// StatObject returns the stored object's metadata.
func (s *Store) StatObject(ctx context.Context, bucket, key string) (*filestore.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, err := s.lookup(bucket, key)
	if err != nil {
		return nil, err
	}
	info := cloneInfo(e.info)
	return &info, nil
}

// GetObjectACL returns the object's canned ACL.
func (s *Store) GetObjectACL(ctx context.Context, bucket, key string) (filestore.ACL, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, err := s.lookup(bucket, key)
	if err != nil {
		return "", err
	}
	return e.info.ACL, nil
}

// PutObjectACL replaces the object's canned ACL.
func (s *Store) PutObjectACL(ctx context.Context, bucket, key string, acl filestore.ACL) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(bucket, key)
	if err != nil {
		return err
	}
	e.info.ACL = acl
	return nil
}

// ObjectExists reports whether key is stored in bucket.
func (s *Store) ObjectExists(ctx context.Context, bucket, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tree, err := s.bucket(bucket)
	if err != nil {
		return false, err
	}
	_, ok := tree.Get(key)
	return ok, nil
}

// SignURL returns a memory:// URL carrying the ttl and method. It is not
// verifiable by anything; it only makes signing observable in tests.
func (s *Store) SignURL(ctx context.Context, bucket, key string, ttl time.Duration, method string, params map[string]string) (string, error) {
	if ttl <= 0 {
		return "", errs.New(errs.ErrKindInvalidInput, "signature ttl must be positive")
	}
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	q.Set("X-Expires", strconv.FormatInt(int64(ttl/time.Second), 10))
	q.Set("X-Method", method)

	u := url.URL{Scheme: "memory", Host: bucket, Path: "/" + key, RawQuery: q.Encode()}
	return u.String(), nil
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

func cloneInfo(in filestore.ObjectInfo) filestore.ObjectInfo {
	out := in
	out.Metadata = make(map[string]string, len(in.Metadata))
	for k, v := range in.Metadata {
		out.Metadata[k] = v
	}
	return out
}
