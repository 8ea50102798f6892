package utils

import (
	"mime"
	"net/url"
	"path"
	"strings"
)

// FileName picks a download's file name from its Content-Disposition header,
// falling back to the last segment of its url. Path separators are replaced
// so the result is always a single path element.
func FileName(contentDisposition, rawURL string) string {
	if fn := fileNameFromCd(contentDisposition); fn != "" {
		return fn
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "/" || base == "." {
		return ""
	}
	return sanitize(base)
}

func fileNameFromCd(cd string) string {
	if cd == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(cd)
	if err != nil {
		return ""
	}
	return sanitize(strings.TrimSpace(params["filename"]))
}

func sanitize(fn string) string {
	fn = strings.ReplaceAll(fn, "/", "_")
	fn = strings.ReplaceAll(fn, "\\", "_")
	if fn == ".." {
		return ""
	}
	return fn
}
