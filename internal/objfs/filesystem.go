// Package objfs adapts a flat object-storage bucket to a filesystem-style
// contract: prefixed paths, emulated directories, uniform metadata records
// and public/private visibility.
//
// Usage:
//
//	settings, err := objfs.NewSettings(values.Sub("storage"))
//	if err != nil { ... }
//	fs := objfs.New(client, settings, objfs.WithLogger(log))
//
//	meta, err := fs.Write(ctx, "docs/readme.txt", []byte("hello"), config.Values{})
//	entries, err := fs.ListContents(ctx, "docs", true)
package objfs

import (
	"context"
	"io"
	"time"

	"github.com/koustreak/bucketfs/internal/config"
)

// Filesystem is the capability set implemented by Adapter.
// Single-object operations report provider failures as *errs.Error of kind
// OperationFailed; listings return the provider error unchanged.
type Filesystem interface {
	Write(ctx context.Context, path string, contents []byte, cfg config.Values) (Metadata, error)
	WriteStream(ctx context.Context, path string, r io.Reader, cfg config.Values) (Metadata, error)
	WriteFile(ctx context.Context, path, localFile string, cfg config.Values) (Metadata, error)
	Update(ctx context.Context, path string, contents []byte, cfg config.Values) (Metadata, error)
	UpdateStream(ctx context.Context, path string, r io.Reader, cfg config.Values) (Metadata, error)

	Rename(ctx context.Context, path, newPath string) error
	Copy(ctx context.Context, path, newPath string) error
	Delete(ctx context.Context, path string) error
	DeleteDir(ctx context.Context, dirname string) error
	CreateDir(ctx context.Context, dirname string, cfg config.Values) (Metadata, error)

	Has(ctx context.Context, path string) (bool, error)
	Read(ctx context.Context, path string) (*File, error)
	ReadStream(ctx context.Context, path string) (*Stream, error)
	ListContents(ctx context.Context, directory string, recursive bool) ([]Metadata, error)

	GetMetadata(ctx context.Context, path string) (Metadata, error)
	GetSize(ctx context.Context, path string) (int64, error)
	GetMimetype(ctx context.Context, path string) (string, error)
	GetTimestamp(ctx context.Context, path string) (time.Time, error)
	GetVisibility(ctx context.Context, path string) (Visibility, error)
	SetVisibility(ctx context.Context, path string, v Visibility) error

	GetURL(path string) string
	GetTemporaryURL(ctx context.Context, path string, expiration time.Time, opts config.Values) (string, error)
}

// File is an object read fully into memory.
type File struct {
	Metadata
	Contents string `json:"contents"`
}

// Stream is an open object handle positioned at offset 0.
// The caller MUST close Body.
type Stream struct {
	Metadata
	Body io.ReadSeekCloser `json:"-"`
}
