package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"
)

// EnvPrefix is prepended to environment variable overrides.
const EnvPrefix = "BUCKETFS_"

// Load reads a YAML file into Values. An empty path or a missing file yields
// empty Values so that environment overrides alone can configure the daemon.
//
// YAML example:
//
//	log:
//	  level: info
//	storage:
//	  provider: minio
//	  endpoint: localhost:9000
//	  bucket: assets
//	  prefix: uploads
//	  options:
//	    Cache-Control: max-age=60
func Load(path string) (Values, error) {
	if path == "" {
		return Values{}, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Values{}, nil
		}
		return Values{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes YAML bytes into Values.
func Parse(raw []byte) (Values, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Values{}, fmt.Errorf("parse config: %w", err)
	}
	return NewValues(doc), nil
}

// WithEnv returns a copy of v where every key already present, plus the extra
// keys given, is overridden by its environment variable when set. The variable
// name is EnvPrefix followed by the upper-cased key with dots replaced by
// underscores: "storage.bucket" → BUCKETFS_STORAGE_BUCKET.
func (v Values) WithEnv(keys ...string) Values {
	return v.withLookup(os.LookupEnv, keys...)
}

func (v Values) withLookup(lookup func(string) (string, bool), keys ...string) Values {
	out := v
	seen := make(map[string]struct{})
	for _, k := range append(v.Keys(), keys...) {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if val, ok := lookup(EnvName(k)); ok {
			out = out.With(k, val)
		}
	}
	return out
}

// EnvName returns the environment variable that overrides key.
func EnvName(key string) string {
	r := strings.NewReplacer(".", "_", "-", "_")
	return EnvPrefix + strings.ToUpper(r.Replace(key))
}
