package objfs

import (
	"net/http"
	"time"

	"github.com/koustreak/bucketfs/internal/config"
	"github.com/koustreak/bucketfs/internal/filestore"
)

// Options are provider request headers keyed by header name.
type Options map[string]string

// metaOptions maps generic config keys to the provider headers they set.
var metaOptions = map[string]string{
	"CacheControl":         filestore.HeaderCacheControl,
	"Expires":              filestore.HeaderExpires,
	"ServerSideEncryption": filestore.HeaderServerSideEncryption,
	"Metadata":             filestore.HeaderMetadataDirective,
	"ACL":                  filestore.HeaderACL,
	"ContentType":          filestore.HeaderContentType,
	"ContentDisposition":   filestore.HeaderContentDisposition,
	"ContentLanguage":      filestore.HeaderContentLanguage,
	"ContentEncoding":      filestore.HeaderContentEncoding,
}

// Per-call config keys understood by every operation.
const (
	KeyVisibility = "visibility"
	KeyMimetype   = "mimetype"
	KeyACL        = "ACL"
)

// OptionsFromConfig derives request headers from per-call config. The
// visibility and mimetype keys are applied after the meta options and win
// over ACL and ContentType.
func OptionsFromConfig(cfg config.Values) Options {
	out := make(Options)
	for key, header := range metaOptions {
		val, ok := cfg.Get(key)
		if !ok || val == nil {
			continue
		}
		if t, isTime := val.(time.Time); isTime {
			out[header] = t.UTC().Format(http.TimeFormat)
			continue
		}
		out[header] = cfg.String(key, "")
	}

	if v := cfg.String(KeyVisibility, ""); v != "" {
		out[filestore.HeaderACL] = string(ToACL(Visibility(v)))
	}
	if mt := cfg.String(KeyMimetype, ""); mt != "" {
		out[filestore.HeaderContentType] = mt
	}
	return out
}

// BuildOptions merges defaults, explicit options and config-derived options,
// later sources winning. The inputs are never modified.
func BuildOptions(defaults, explicit Options, cfg config.Values) filestore.RequestOptions {
	derived := OptionsFromConfig(cfg)
	headers := make(map[string]string, len(defaults)+len(explicit)+len(derived))
	for _, src := range []Options{defaults, explicit, derived} {
		for k, v := range src {
			headers[k] = v
		}
	}
	return filestore.RequestOptions{Headers: headers}
}
