package objfs

import "strings"

// Prefixer maps logical paths to object keys under a fixed key prefix.
type Prefixer struct {
	prefix string
}

// NewPrefixer returns a Prefixer rooted at prefix. An empty prefix maps
// paths to keys unchanged.
func NewPrefixer(prefix string) *Prefixer {
	return &Prefixer{prefix: cleanPath(prefix)}
}

// Prefix returns the normalized key prefix.
func (p *Prefixer) Prefix() string {
	return p.prefix
}

// Apply returns the object key for path. Apply("") yields the prefix with a
// trailing slash so it can be used as a listing prefix.
func (p *Prefixer) Apply(path string) string {
	clean := cleanPath(path)
	if p.prefix == "" {
		return clean
	}
	if clean == "" {
		return p.prefix + "/"
	}
	return p.prefix + "/" + clean
}

// Strip returns the logical path for key. A trailing slash is kept: it marks
// directory entries.
func (p *Prefixer) Strip(key string) string {
	rest := key
	if p.prefix != "" {
		switch {
		case strings.HasPrefix(key, p.prefix+"/"):
			rest = key[len(p.prefix)+1:]
		case key == p.prefix:
			rest = ""
		}
	}
	return strings.TrimLeft(rest, "/")
}

// Normalize collapses duplicate slashes and trims leading and trailing ones.
func (p *Prefixer) Normalize(path string) string {
	return cleanPath(path)
}

func cleanPath(path string) string {
	if !strings.Contains(path, "//") {
		return strings.Trim(path, "/")
	}
	var b strings.Builder
	b.Grow(len(path))
	prevSlash := false
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}
	return strings.Trim(b.String(), "/")
}

// dirKey returns key with exactly one trailing slash.
func dirKey(key string) string {
	return strings.TrimRight(key, "/") + "/"
}
