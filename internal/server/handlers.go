package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/koustreak/bucketfs/internal/config"
	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/koustreak/bucketfs/internal/objfs"
)

// HeaderVisibility sets the visibility of a written object or directory.
const HeaderVisibility = "X-Bucketfs-Visibility"

// writeHeaders maps request headers onto per-call config keys.
var writeHeaders = map[string]string{
	"Content-Type":        objfs.KeyMimetype,
	"Cache-Control":       "CacheControl",
	"Content-Disposition": "ContentDisposition",
	"Content-Encoding":    "ContentEncoding",
	"Content-Language":    "ContentLanguage",
	HeaderVisibility:      objfs.KeyVisibility,
}

type pathPair struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type visibilityBody struct {
	Path       string           `json:"path,omitempty"`
	Visibility objfs.Visibility `json:"visibility"`
}

func pathParam(r *http.Request) string {
	return chi.URLParam(r, "*")
}

func configFromRequest(r *http.Request) config.Values {
	var cfg config.Values
	for header, key := range writeHeaders {
		if v := r.Header.Get(header); v != "" {
			cfg = cfg.With(key, v)
		}
	}
	return cfg
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	path := pathParam(r)
	if queryBool(r, "metadata") {
		meta, err := s.fs.GetMetadata(r.Context(), path)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, meta)
		return
	}

	stream, err := s.fs.ReadStream(r.Context(), path)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer stream.Body.Close()

	if stream.Mimetype != "" {
		w.Header().Set("Content-Type", stream.Mimetype)
	}
	if stream.ETag != "" {
		w.Header().Set("ETag", strconv.Quote(strings.Trim(stream.ETag, `"`)))
	}
	http.ServeContent(w, r, path, stream.Timestamp, stream.Body)
}

func (s *Server) handleHas(w http.ResponseWriter, r *http.Request) {
	ok, err := s.fs.Has(r.Context(), pathParam(r))
	if err != nil {
		w.WriteHeader(statusFor(err))
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	path := pathParam(r)
	if strings.HasSuffix(path, "/") || strings.Trim(path, "/") == "" {
		s.writeError(w, r, errs.New(errs.ErrKindInvalidInput, "object path required"))
		return
	}

	write := s.fs.WriteStream
	if queryBool(r, "update") {
		write = s.fs.UpdateStream
	}
	meta, err := write(r.Context(), path, r.Body, configFromRequest(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, meta)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.fs.Delete(r.Context(), pathParam(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.fs.ListContents(r.Context(), r.URL.Query().Get("dir"), queryBool(r, "recursive"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []objfs.Metadata{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleCreateDir(w http.ResponseWriter, r *http.Request) {
	meta, err := s.fs.CreateDir(r.Context(), pathParam(r), configFromRequest(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, meta)
}

func (s *Server) handleDeleteDir(w http.ResponseWriter, r *http.Request) {
	if err := s.fs.DeleteDir(r.Context(), pathParam(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCopy(w http.ResponseWriter, r *http.Request) {
	s.handlePair(w, r, s.fs.Copy)
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	s.handlePair(w, r, s.fs.Rename)
}

func (s *Server) handlePair(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, from, to string) error) {
	var body pathPair
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if body.From == "" || body.To == "" {
		s.writeError(w, r, errs.New(errs.ErrKindInvalidInput, `"from" and "to" are required`))
		return
	}
	if err := fn(r.Context(), body.From, body.To); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleGetVisibility(w http.ResponseWriter, r *http.Request) {
	path := pathParam(r)
	v, err := s.fs.GetVisibility(r.Context(), path)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, visibilityBody{Path: path, Visibility: v})
}

func (s *Server) handleSetVisibility(w http.ResponseWriter, r *http.Request) {
	var body visibilityBody
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if body.Visibility != objfs.VisibilityPublic && body.Visibility != objfs.VisibilityPrivate {
		s.writeError(w, r, errs.New(errs.ErrKindInvalidInput, `visibility must be "public" or "private"`))
		return
	}

	path := pathParam(r)
	if err := s.fs.SetVisibility(r.Context(), path, body.Visibility); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, visibilityBody{Path: path, Visibility: body.Visibility})
}

// handleURL returns the public URL of an object, or a signed one when ttl
// is given. ttl=0 signs with the adapter's default lifetime; response-*
// query parameters are passed through to the signature.
func (s *Server) handleURL(w http.ResponseWriter, r *http.Request) {
	path := pathParam(r)
	q := r.URL.Query()
	if !q.Has("ttl") {
		writeJSON(w, http.StatusOK, map[string]string{"url": s.fs.GetURL(path)})
		return
	}

	ttl, err := parseTTL(q.Get("ttl"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var expiration time.Time
	if ttl > 0 {
		expiration = s.now().Add(ttl)
	}

	var opts config.Values
	for key := range q {
		if strings.HasPrefix(strings.ToLower(key), "response-") {
			opts = opts.With(key, q.Get(key))
		}
	}

	u, err := s.fs.GetTemporaryURL(r.Context(), path, expiration, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	body := map[string]string{"url": u}
	if !expiration.IsZero() {
		body["expires"] = expiration.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, body)
}

// parseTTL accepts a Go duration ("15m") or whole seconds ("900").
func parseTTL(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if d, err := time.ParseDuration(raw); err == nil && d >= 0 {
		return d, nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n >= 0 {
		return time.Duration(n) * time.Second, nil
	}
	return 0, errs.New(errs.ErrKindInvalidInput, "invalid ttl "+strconv.Quote(raw))
}

func queryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "malformed request body", err)
	}
	return nil
}
