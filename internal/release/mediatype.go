package release

import (
	"mime"
	"path/filepath"
	"strings"
)

const defaultMediaType = "application/octet-stream"

var archiveMediaTypes = map[string]string{
	".gz":  "application/gzip",
	".tgz": "application/gzip",
	".zip": "application/zip",
	".dmg": "application/x-apple-diskimage",
}

// MediaType guesses the content type of an archive from its file name.
func MediaType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mediaType, ok := archiveMediaTypes[ext]; ok {
		return mediaType
	}
	if mediaType := mime.TypeByExtension(ext); mediaType != "" {
		return mediaType
	}
	return defaultMediaType
}
