package objfs

import (
	"bytes"
	"context"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/koustreak/bucketfs/internal/config"
	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/koustreak/bucketfs/internal/filestore"
	"github.com/koustreak/bucketfs/internal/logger"
)

// Operation names, used for error messages, logs and metrics labels.
const (
	OpWrite        = "write"
	OpWriteFile    = "write_file"
	OpUpdate       = "update"
	OpRename       = "rename"
	OpCopy         = "copy"
	OpDelete       = "delete"
	OpDeleteDir    = "delete_dir"
	OpCreateDir    = "create_dir"
	OpHas          = "has"
	OpRead         = "read"
	OpReadStream   = "read_stream"
	OpList         = "list_contents"
	OpMetadata     = "get_metadata"
	OpVisibility   = "get_visibility"
	OpSetVisible   = "set_visibility"
	OpTemporaryURL = "temporary_url"
)

// Observer receives one call per adapter operation.
type Observer interface {
	Observe(op string, bytes int64, err error, dur time.Duration)
}

type nopObserver struct{}

func (nopObserver) Observe(string, int64, error, time.Duration) {}

// Adapter implements Filesystem on top of a filestore.Client.
// It holds no mutable state and is safe for concurrent use.
type Adapter struct {
	client   filestore.Client
	settings *Settings
	prefixer *Prefixer
	log      *logger.Logger
	observer Observer
	now      func() time.Time
}

var _ Filesystem = (*Adapter)(nil)

// Option customizes an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger provider failures are reported to.
func WithLogger(l *logger.Logger) Option {
	return func(a *Adapter) { a.log = l.Named("objfs") }
}

// WithObserver sets the operation observer, typically a metrics collector.
func WithObserver(o Observer) Option {
	return func(a *Adapter) { a.observer = o }
}

// WithClock overrides the time source used for temporary URLs.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// New returns an Adapter storing objects through client.
func New(client filestore.Client, settings *Settings, opts ...Option) *Adapter {
	a := &Adapter{
		client:   client,
		settings: settings,
		prefixer: NewPrefixer(settings.Prefix),
		log:      logger.Global().Named("objfs"),
		observer: nopObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Settings returns the adapter configuration.
func (a *Adapter) Settings() *Settings {
	return a.settings
}

// Prefixer returns the path prefixer in use.
func (a *Adapter) Prefixer() *Prefixer {
	return a.prefixer
}

// --- writes ---

// Write stores contents at path. Content-Length and Content-Type are filled
// in when cfg does not set them.
func (a *Adapter) Write(ctx context.Context, path string, contents []byte, cfg config.Values) (meta Metadata, err error) {
	defer a.observe(OpWrite, time.Now(), int64(len(contents)), &err)
	return a.write(ctx, OpWrite, path, contents, cfg)
}

// WriteStream drains r and stores the result at path.
func (a *Adapter) WriteStream(ctx context.Context, path string, r io.Reader, cfg config.Values) (Metadata, error) {
	contents, err := io.ReadAll(r)
	if err != nil {
		return Metadata{}, a.fail(OpWrite, path, err)
	}
	return a.Write(ctx, path, contents, cfg)
}

// WriteFile uploads the local file at localFile to path with an MD5
// integrity check.
func (a *Adapter) WriteFile(ctx context.Context, path, localFile string, cfg config.Values) (meta Metadata, err error) {
	var size int64 = -1
	if st, statErr := os.Stat(localFile); statErr == nil {
		size = st.Size()
	}
	defer a.observe(OpWriteFile, time.Now(), size, &err)

	opts := a.requestOptions(nil, cfg)
	opts.CheckMD5 = true
	if _, ok := opts.Header(filestore.HeaderContentType); !ok {
		mt := guessMimeType(path, nil)
		if mt == "" {
			mt = guessMimeType(localFile, nil)
		}
		if mt != "" {
			opts.Headers[filestore.HeaderContentType] = mt
		}
	}

	key := a.prefixer.Apply(path)
	if err := a.client.UploadFile(ctx, a.settings.Bucket, key, localFile, opts); err != nil {
		return Metadata{}, a.fail(OpWriteFile, path, err)
	}
	return a.written(path, size, opts), nil
}

// Update overwrites path. Unless cfg sets visibility or ACL, the object's
// current ACL is carried over; a missing object is written without one.
func (a *Adapter) Update(ctx context.Context, path string, contents []byte, cfg config.Values) (meta Metadata, err error) {
	defer a.observe(OpUpdate, time.Now(), int64(len(contents)), &err)

	derived, err := a.preserveACL(ctx, path, cfg)
	if err != nil {
		return Metadata{}, err
	}
	return a.write(ctx, OpUpdate, path, contents, derived)
}

// UpdateStream drains r and updates path with the result.
func (a *Adapter) UpdateStream(ctx context.Context, path string, r io.Reader, cfg config.Values) (Metadata, error) {
	contents, err := io.ReadAll(r)
	if err != nil {
		return Metadata{}, a.fail(OpUpdate, path, err)
	}
	return a.Update(ctx, path, contents, cfg)
}

func (a *Adapter) write(ctx context.Context, op, path string, contents []byte, cfg config.Values) (Metadata, error) {
	opts := a.requestOptions(nil, cfg)
	if _, ok := opts.Header(filestore.HeaderContentLength); !ok {
		opts.Headers[filestore.HeaderContentLength] = strconv.Itoa(len(contents))
	}
	if _, ok := opts.Header(filestore.HeaderContentType); !ok {
		if mt := guessMimeType(path, contents); mt != "" {
			opts.Headers[filestore.HeaderContentType] = mt
		}
	}

	key := a.prefixer.Apply(path)
	err := a.client.PutObject(ctx, a.settings.Bucket, key, bytes.NewReader(contents), int64(len(contents)), opts)
	if err != nil {
		return Metadata{}, a.fail(op, path, err)
	}
	return a.written(path, int64(len(contents)), opts), nil
}

func (a *Adapter) preserveACL(ctx context.Context, path string, cfg config.Values) (config.Values, error) {
	if cfg.Has(KeyVisibility) || cfg.Has(KeyACL) {
		return cfg, nil
	}

	acl, err := a.client.GetObjectACL(ctx, a.settings.Bucket, a.prefixer.Apply(path))
	if err != nil {
		if errs.IsNotFound(err) {
			return cfg, nil
		}
		return cfg, a.fail(OpUpdate, path, err)
	}
	return cfg.With(KeyACL, string(acl)), nil
}

// written describes an object just stored from the headers sent with it.
func (a *Adapter) written(path string, size int64, opts filestore.RequestOptions) Metadata {
	raw := filestore.ObjectInfo{Size: size}
	raw.ContentType, _ = opts.Header(filestore.HeaderContentType)
	if acl, ok := opts.Header(filestore.HeaderACL); ok {
		raw.ACL = filestore.ACL(acl)
	}
	meta, _ := Normalize(raw, a.prefixer.Normalize(path), a.prefixer)
	return meta
}

// --- object management ---

// Rename copies path to newPath, then deletes path. A failed copy leaves
// path untouched.
func (a *Adapter) Rename(ctx context.Context, path, newPath string) (err error) {
	defer a.observe(OpRename, time.Now(), 0, &err)

	if err := a.copy(ctx, OpRename, path, newPath); err != nil {
		return err
	}
	return a.delete(ctx, OpRename, path)
}

// Copy duplicates path at newPath server-side.
func (a *Adapter) Copy(ctx context.Context, path, newPath string) (err error) {
	defer a.observe(OpCopy, time.Now(), 0, &err)
	return a.copy(ctx, OpCopy, path, newPath)
}

func (a *Adapter) copy(ctx context.Context, op, path, newPath string) error {
	bucket := a.settings.Bucket
	err := a.client.CopyObject(ctx, bucket, a.prefixer.Apply(path), bucket, a.prefixer.Apply(newPath))
	if err != nil {
		return a.fail(op, path, err)
	}
	return nil
}

// Delete removes path and confirms the object is gone.
func (a *Adapter) Delete(ctx context.Context, path string) (err error) {
	defer a.observe(OpDelete, time.Now(), 0, &err)
	return a.delete(ctx, OpDelete, path)
}

func (a *Adapter) delete(ctx context.Context, op, path string) error {
	key := a.prefixer.Apply(path)
	if err := a.client.DeleteObject(ctx, a.settings.Bucket, key); err != nil {
		return a.fail(op, path, err)
	}

	exists, err := a.client.ObjectExists(ctx, a.settings.Bucket, key)
	if err != nil {
		return a.fail(op, path, err)
	}
	if exists {
		return a.fail(op, path, errs.New(errs.ErrKindOperationFailed, "object still exists after delete"))
	}
	return nil
}

// DeleteDir removes every object under dir, then its marker object. The
// root directory is refused.
func (a *Adapter) DeleteDir(ctx context.Context, dir string) (err error) {
	defer a.observe(OpDeleteDir, time.Now(), 0, &err)

	prefix := a.prefixer.Apply(dir)
	if prefix == "" {
		return a.fail(OpDeleteDir, dir, errs.New(errs.ErrKindInvalidInput, "refusing to delete the root directory"))
	}
	prefix = dirKey(prefix)

	listing, err := a.ListDirObjects(ctx, prefix, true)
	if err != nil {
		return a.fail(OpDeleteDir, dir, err)
	}

	if len(listing.Objects) > 0 {
		keys := make([]string, 0, len(listing.Objects))
		for _, obj := range listing.Objects {
			keys = append(keys, obj.Key)
		}
		if err := a.client.DeleteObjects(ctx, a.settings.Bucket, keys); err != nil {
			return a.fail(OpDeleteDir, dir, err)
		}
	}

	if err := a.client.DeleteObject(ctx, a.settings.Bucket, prefix); err != nil {
		return a.fail(OpDeleteDir, dir, err)
	}
	return nil
}

// CreateDir stores a zero-byte marker object for dir.
func (a *Adapter) CreateDir(ctx context.Context, dir string, cfg config.Values) (meta Metadata, err error) {
	defer a.observe(OpCreateDir, time.Now(), 0, &err)

	key := a.prefixer.Apply(dir)
	if key == "" {
		return Metadata{}, a.fail(OpCreateDir, dir, errs.New(errs.ErrKindInvalidInput, "directory name is empty"))
	}

	opts := a.requestOptions(Options{filestore.HeaderContentLength: "0"}, cfg)
	err = a.client.PutObject(ctx, a.settings.Bucket, dirKey(key), bytes.NewReader(nil), 0, opts)
	if err != nil {
		return Metadata{}, a.fail(OpCreateDir, dir, err)
	}

	name := a.prefixer.Normalize(dir)
	return Metadata{Path: name, Dirname: dirname(name), Type: TypeDir}, nil
}

// --- reads ---

// Has reports whether an object exists at path.
func (a *Adapter) Has(ctx context.Context, path string) (ok bool, err error) {
	defer a.observe(OpHas, time.Now(), 0, &err)
	return a.client.ObjectExists(ctx, a.settings.Bucket, a.prefixer.Apply(path))
}

// Read returns the object at path with its body read into memory.
func (a *Adapter) Read(ctx context.Context, path string) (file *File, err error) {
	var n int64
	defer func(start time.Time) { a.observer.Observe(OpRead, n, err, time.Since(start)) }(time.Now())

	obj, err := a.client.GetObject(ctx, a.settings.Bucket, a.prefixer.Apply(path))
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to read object body", err)
	}
	n = int64(len(data))

	meta, _ := Normalize(*obj.Info(), a.prefixer.Normalize(path), a.prefixer)
	return &File{Metadata: meta, Contents: string(data)}, nil
}

// ReadStream opens the object at path, rewound to its first byte.
func (a *Adapter) ReadStream(ctx context.Context, path string) (stream *Stream, err error) {
	defer a.observe(OpReadStream, time.Now(), 0, &err)

	obj, err := a.client.GetObject(ctx, a.settings.Bucket, a.prefixer.Apply(path))
	if err != nil {
		return nil, err
	}
	if _, err := obj.Seek(0, io.SeekStart); err != nil {
		obj.Close()
		return nil, errs.Wrap(errs.ErrKindOperationFailed, "failed to rewind object stream", err)
	}

	meta, _ := Normalize(*obj.Info(), a.prefixer.Normalize(path), a.prefixer)
	return &Stream{Metadata: meta, Body: obj}, nil
}

// ListContents lists directory. Without recursive only direct children are
// returned, subdirectories as directory entries. Parent directories implied
// by object paths are added as directory entries.
func (a *Adapter) ListContents(ctx context.Context, directory string, recursive bool) (entries []Metadata, err error) {
	defer a.observe(OpList, time.Now(), 0, &err)

	prefix := a.prefixer.Apply(directory)
	if prefix != "" {
		prefix = dirKey(prefix)
	}

	listing, err := a.ListDirObjects(ctx, prefix, recursive)
	if err != nil {
		return nil, err
	}

	entries = make([]Metadata, 0, len(listing.Objects)+len(listing.Prefixes))
	for _, obj := range listing.Objects {
		if m, ok := Normalize(obj, "", a.prefixer); ok {
			entries = append(entries, m)
		}
	}
	if !recursive {
		for _, p := range listing.Prefixes {
			if m, ok := Normalize(filestore.ObjectInfo{Prefix: p, Size: -1}, "", a.prefixer); ok {
				entries = append(entries, m)
			}
		}
	}
	return emulateDirectories(entries), nil
}

// GetMetadata returns the normalized metadata of the object at path.
func (a *Adapter) GetMetadata(ctx context.Context, path string) (meta Metadata, err error) {
	defer a.observe(OpMetadata, time.Now(), 0, &err)
	return a.stat(ctx, OpMetadata, path)
}

// GetSize returns the byte size of the object at path.
func (a *Adapter) GetSize(ctx context.Context, path string) (int64, error) {
	meta, err := a.GetMetadata(ctx, path)
	if err != nil {
		return 0, err
	}
	if meta.Size == nil {
		return 0, a.fail(OpMetadata, path, errs.New(errs.ErrKindOperationFailed, "size not reported"))
	}
	return *meta.Size, nil
}

// GetMimetype returns the content type of the object at path.
func (a *Adapter) GetMimetype(ctx context.Context, path string) (string, error) {
	meta, err := a.GetMetadata(ctx, path)
	if err != nil {
		return "", err
	}
	return meta.Mimetype, nil
}

// GetTimestamp returns the last-modified time of the object at path.
func (a *Adapter) GetTimestamp(ctx context.Context, path string) (time.Time, error) {
	meta, err := a.GetMetadata(ctx, path)
	if err != nil {
		return time.Time{}, err
	}
	return meta.Timestamp, nil
}

func (a *Adapter) stat(ctx context.Context, op, path string) (Metadata, error) {
	info, err := a.client.StatObject(ctx, a.settings.Bucket, a.prefixer.Apply(path))
	if err != nil {
		return Metadata{}, a.fail(op, path, err)
	}
	meta, _ := Normalize(*info, a.prefixer.Normalize(path), a.prefixer)
	return meta, nil
}

// --- visibility ---

// GetVisibility returns public when the object's ACL grants public read.
func (a *Adapter) GetVisibility(ctx context.Context, path string) (v Visibility, err error) {
	defer a.observe(OpVisibility, time.Now(), 0, &err)

	acl, err := a.client.GetObjectACL(ctx, a.settings.Bucket, a.prefixer.Apply(path))
	if err != nil {
		return "", a.fail(OpVisibility, path, err)
	}
	return FromACL(acl), nil
}

// SetVisibility applies the ACL matching v to the object at path.
func (a *Adapter) SetVisibility(ctx context.Context, path string, v Visibility) (err error) {
	defer a.observe(OpSetVisible, time.Now(), 0, &err)

	if v != VisibilityPublic && v != VisibilityPrivate {
		return errs.New(errs.ErrKindInvalidInput, "unknown visibility: "+string(v))
	}
	return a.client.PutObjectACL(ctx, a.settings.Bucket, a.prefixer.Apply(path), ToACL(v))
}

// --- urls ---

// GetURL returns the public URL of path. It makes no network call.
func (a *Adapter) GetURL(path string) string {
	return a.settings.URLDomain() + "/" + a.prefixer.Apply(path)
}

// GetTemporaryURL signs a GET URL for path valid until expiration. A zero
// expiration uses Settings.SignatureExpires. opts may carry the same keys as
// a write config (e.g. ContentType) plus raw response-* overrides.
func (a *Adapter) GetTemporaryURL(ctx context.Context, path string, expiration time.Time, opts config.Values) (u string, err error) {
	defer a.observe(OpTemporaryURL, time.Now(), 0, &err)

	now := a.now()
	if expiration.IsZero() {
		expiration = now.Add(a.settings.SignatureExpires)
	}
	ttl := time.Duration(expiration.Unix()-now.Unix()) * time.Second
	if ttl <= 0 {
		return "", errs.New(errs.ErrKindInvalidInput, "expiration must be in the future")
	}

	params := map[string]string(OptionsFromConfig(opts))
	for _, k := range opts.Keys() {
		if strings.HasPrefix(strings.ToLower(k), "response-") {
			params[k] = opts.String(k, "")
		}
	}

	signed, err := a.client.SignURL(ctx, a.settings.Bucket, a.prefixer.Apply(path), ttl, filestore.MethodGet, params)
	if err != nil {
		return "", err
	}
	return a.settings.CorrectURL(signed), nil
}

// --- helpers ---

func (a *Adapter) requestOptions(explicit Options, cfg config.Values) filestore.RequestOptions {
	opts := BuildOptions(a.settings.Options, explicit, cfg)
	opts.PartSize = uint64(a.settings.MultipartThreshold)
	return opts
}

// fail converts a provider error into the OperationFailed sentinel, logging
// the cause in debug mode.
func (a *Adapter) fail(op, path string, cause error) error {
	if a.settings.Debug {
		a.log.ErrorWith("storage operation failed", cause, map[string]interface{}{
			"op":     op,
			"path":   path,
			"bucket": a.settings.Bucket,
		})
	}
	return errs.Failed(op, cause)
}

func (a *Adapter) observe(op string, start time.Time, n int64, err *error) {
	a.observer.Observe(op, n, *err, time.Since(start))
}
