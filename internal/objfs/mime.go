package objfs

import (
	"mime"
	"net/http"
	"path"
)

// guessMimeType resolves a content type from the file extension, falling
// back to sniffing contents. Parameters such as charset are dropped.
func guessMimeType(name string, contents []byte) string {
	if ext := path.Ext(name); ext != "" {
		if t := baseType(mime.TypeByExtension(ext)); t != "" {
			return t
		}
	}
	if contents == nil {
		return ""
	}
	return baseType(http.DetectContentType(contents))
}

func baseType(t string) string {
	if t == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(t)
	if err != nil {
		return t
	}
	return mt
}
