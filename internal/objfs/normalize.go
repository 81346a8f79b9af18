package objfs

import (
	"path"
	"strings"
	"time"

	"github.com/koustreak/bucketfs/internal/filestore"
)

// EntryType distinguishes files from emulated directories.
type EntryType string

const (
	TypeFile EntryType = "file"
	TypeDir  EntryType = "dir"
)

// Metadata is the uniform record returned for every file or directory.
// Fields the provider did not report are left at their zero value.
type Metadata struct {
	Path         string            `json:"path"`
	Dirname      string            `json:"dirname"`
	Type         EntryType         `json:"type"`
	Timestamp    time.Time         `json:"timestamp,omitzero"`
	Size         *int64            `json:"size,omitempty"`
	Mimetype     string            `json:"mimetype,omitempty"`
	StorageClass string            `json:"storage_class,omitempty"`
	Visibility   Visibility        `json:"visibility,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// IsDir reports whether m describes a directory.
func (m Metadata) IsDir() bool {
	return m.Type == TypeDir
}

// Normalize converts a raw provider record into Metadata. The path is taken
// from explicitPath when given, else from the stripped key, else from the
// stripped listing prefix. ok is false when no path could be resolved.
func Normalize(raw filestore.ObjectInfo, explicitPath string, p *Prefixer) (Metadata, bool) {
	name := explicitPath
	if name == "" && raw.Key != "" {
		name = p.Strip(raw.Key)
	}
	if name == "" && raw.Key == "" && raw.Prefix != "" {
		name = p.Strip(raw.Prefix)
	}
	if name == "" {
		return Metadata{}, false
	}

	m := Metadata{Type: TypeFile}
	if !raw.LastModified.IsZero() {
		m.Timestamp = raw.LastModified
	}

	if strings.HasSuffix(name, "/") {
		m.Path = strings.TrimRight(name, "/")
		m.Type = TypeDir
		m.Dirname = dirname(m.Path)
		return m, m.Path != ""
	}

	m.Path = name
	m.Dirname = dirname(name)
	if raw.Size >= 0 {
		size := raw.Size
		m.Size = &size
	}
	m.Mimetype = raw.ContentType
	m.StorageClass = raw.StorageClass
	m.ETag = raw.ETag
	if raw.ACL != "" && raw.ACL != filestore.ACLDefault {
		m.Visibility = FromACL(raw.ACL)
	}
	if len(raw.Metadata) > 0 {
		m.Extra = make(map[string]string, len(raw.Metadata))
		for k, v := range raw.Metadata {
			m.Extra[k] = v
		}
	}
	return m, true
}

func dirname(p string) string {
	d := path.Dir(p)
	if d == "." || d == "/" {
		return ""
	}
	return d
}

// emulateDirectories appends a directory entry for every parent directory
// implied by an entry's path that is not already listed.
func emulateDirectories(entries []Metadata) []Metadata {
	listed := make(map[string]struct{})
	for _, e := range entries {
		if e.IsDir() {
			listed[e.Path] = struct{}{}
		}
	}

	var implied []string
	seen := make(map[string]struct{})
	for _, e := range entries {
		for parent := e.Dirname; parent != ""; parent = dirname(parent) {
			if _, ok := seen[parent]; ok {
				break
			}
			seen[parent] = struct{}{}
			if _, ok := listed[parent]; !ok {
				implied = append(implied, parent)
			}
		}
	}

	for _, d := range implied {
		entries = append(entries, Metadata{Path: d, Dirname: dirname(d), Type: TypeDir})
	}
	return entries
}
