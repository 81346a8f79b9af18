package filestore

import (
	"io"
	"strings"
	"time"
)

// ACL is a canned object access-control setting.
type ACL string

const (
	ACLDefault         ACL = "default"
	ACLPrivate         ACL = "private"
	ACLPublicRead      ACL = "public-read"
	ACLPublicReadWrite ACL = "public-read-write"
)

// Request headers understood by every driver. Header names are matched
// case-insensitively.
const (
	HeaderCacheControl         = "Cache-Control"
	HeaderExpires              = "Expires"
	HeaderServerSideEncryption = "X-Amz-Server-Side-Encryption"
	HeaderMetadataDirective    = "X-Amz-Metadata-Directive"
	HeaderACL                  = "X-Amz-Acl"
	HeaderContentType          = "Content-Type"
	HeaderContentDisposition   = "Content-Disposition"
	HeaderContentLanguage      = "Content-Language"
	HeaderContentEncoding      = "Content-Encoding"
	HeaderContentLength        = "Content-Length"
)

// ObjectInfo describes a single object as reported by the backend.
// Fields a backend does not report are left at their zero value
// (Size is -1 when unknown).
type ObjectInfo struct {
	// Key is the full object key within the bucket (e.g. "images/photo.jpg").
	Key string

	// Prefix is the listing prefix the object was found under, if any.
	Prefix string

	// Size is the byte size of the object. -1 if unknown.
	Size int64

	// ContentType is the MIME type (e.g. "image/jpeg").
	ContentType string

	// ETag is the object's entity tag / hash, as returned by the backend.
	ETag string

	// LastModified is when the object was last written.
	LastModified time.Time

	// StorageClass is the backend storage tier (e.g. "STANDARD").
	StorageClass string

	// ACL is the canned ACL when the backend reports one.
	ACL ACL

	// Metadata holds the remaining response headers and user metadata.
	Metadata map[string]string
}

// Object is a streaming handle to an object's content.
// The caller MUST call Close() after reading to avoid resource leaks.
type Object interface {
	io.ReadSeekCloser

	// Info returns the metadata for this object.
	Info() *ObjectInfo
}

// ListOptions selects one page of a delimiter listing.
type ListOptions struct {
	// Prefix restricts results to objects whose key starts with this string.
	// Use "" to list everything in the bucket.
	Prefix string

	// Delimiter groups keys sharing a prefix up to the delimiter into
	// CommonPrefixes. Empty means a flat listing.
	Delimiter string

	// MaxKeys caps the number of entries (objects plus common prefixes)
	// in the page. 0 means use the backend default.
	MaxKeys int

	// Marker is the pagination cursor returned as NextMarker by the
	// previous page. Pass "" to start from the beginning.
	Marker string
}

// ListPage is one page of a delimiter listing.
type ListPage struct {
	Objects        []ObjectInfo
	CommonPrefixes []string

	// NextMarker resumes the listing. Empty when there are no more pages.
	NextMarker  string
	IsTruncated bool
}

// RequestOptions carries provider request headers and upload tuning.
type RequestOptions struct {
	Headers map[string]string

	// PartSize is the multipart chunk size for large uploads. 0 lets the
	// driver decide.
	PartSize uint64

	// CheckMD5 asks the driver to send a Content-MD5 integrity check.
	CheckMD5 bool
}

// Header returns the value of the header name, matched case-insensitively.
func (o RequestOptions) Header(name string) (string, bool) {
	if v, ok := o.Headers[name]; ok {
		return v, true
	}
	for k, v := range o.Headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}
