package objfs

import (
	"net/url"
	"time"

	"github.com/koustreak/bucketfs/internal/config"
	"github.com/koustreak/bucketfs/internal/errs"
)

const (
	defaultMultipartThreshold = 5 << 20
	defaultSignatureExpires   = time.Hour
)

// Settings is the adapter configuration, resolved once at construction.
type Settings struct {
	Bucket   string
	Endpoint string
	Prefix   string

	// Options are default request headers sent with every write.
	Options Options

	// MultipartThreshold is the part size used for large uploads, in bytes.
	MultipartThreshold int64

	// Debug logs provider errors behind sentinel failures.
	Debug bool

	SSL       bool
	IsCName   bool
	CDNDomain string

	// SignatureExpires is the lifetime of temporary URLs issued without an
	// explicit expiration.
	SignatureExpires time.Duration

	// ListConcurrency bounds parallel sibling listings. 1 is sequential.
	ListConcurrency int

	corrector func(string) string
}

// NewSettings resolves Settings from v. bucket and endpoint are required.
func NewSettings(v config.Values) (*Settings, error) {
	s := &Settings{
		Bucket:             v.String("bucket", ""),
		Endpoint:           v.String("endpoint", ""),
		Prefix:             v.String("prefix", ""),
		Options:            Options(v.StringMap("options")),
		MultipartThreshold: v.Int64("multipart_threshold", defaultMultipartThreshold),
		Debug:              v.Bool("debug", false),
		SSL:                v.Bool("ssl", false),
		IsCName:            v.Bool("is_cname", false),
		CDNDomain:          v.String("cdn_domain", ""),
		SignatureExpires:   v.Duration("signature_expires", defaultSignatureExpires),
		ListConcurrency:    int(v.Int64("list_concurrency", 1)),
	}

	if s.Bucket == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "storage bucket is required")
	}
	if s.Endpoint == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "storage endpoint is required")
	}
	if s.MultipartThreshold <= 0 {
		s.MultipartThreshold = defaultMultipartThreshold
	}
	if s.SignatureExpires <= 0 {
		s.SignatureExpires = defaultSignatureExpires
	}
	if s.ListConcurrency < 1 {
		s.ListConcurrency = 1
	}
	return s, nil
}

// WithURLCorrector returns a copy of s whose CorrectURL delegates to fn.
func (s *Settings) WithURLCorrector(fn func(string) string) *Settings {
	cp := *s
	cp.corrector = fn
	return &cp
}

func (s *Settings) scheme() string {
	if s.SSL {
		return "https"
	}
	return "http"
}

// bucketHost is the virtual-hosted style host of the bucket.
func (s *Settings) bucketHost() string {
	return s.Bucket + "." + s.Endpoint
}

// URLDomain returns the scheme and host public URLs are built on.
func (s *Settings) URLDomain() string {
	host := s.bucketHost()
	switch {
	case s.CDNDomain != "":
		host = s.CDNDomain
	case s.IsCName:
		host = s.Endpoint
	}
	return s.scheme() + "://" + host
}

// CorrectURL rewrites a signed URL for public consumption. By default the
// bucket host is replaced with the CDN domain when one is configured and the
// scheme is upgraded to https when SSL is on.
func (s *Settings) CorrectURL(raw string) string {
	if s.corrector != nil {
		return s.corrector(raw)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if s.CDNDomain != "" && u.Host == s.bucketHost() {
		u.Host = s.CDNDomain
	}
	if s.SSL && u.Scheme == "http" {
		u.Scheme = "https"
	}
	return u.String()
}
