package server

import (
	"encoding/json"
	"net/http"

	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/koustreak/bucketfs/internal/logger"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError logs server-side failures with the request-scoped logger.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).ErrorWith("request failed", err, map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
		})
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Kind: errs.RootKind(err).String()})
}

// statusFor maps an error kind to an HTTP status. A failed operation is
// reported by the kind of the storage error behind it.
func statusFor(err error) int {
	kind := errs.KindOf(err)
	if kind == errs.ErrKindOperationFailed {
		switch errs.RootKind(err) {
		case errs.ErrKindNotFound:
			return http.StatusNotFound
		case errs.ErrKindInvalidInput:
			return http.StatusBadRequest
		case errs.ErrKindPermissionDenied:
			return http.StatusForbidden
		case errs.ErrKindTimeout:
			return http.StatusGatewayTimeout
		default:
			return http.StatusBadGateway
		}
	}

	switch kind {
	case errs.ErrKindNotFound:
		return http.StatusNotFound
	case errs.ErrKindInvalidInput:
		return http.StatusBadRequest
	case errs.ErrKindPermissionDenied:
		return http.StatusForbidden
	case errs.ErrKindTimeout:
		return http.StatusGatewayTimeout
	case errs.ErrKindConnectionFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
