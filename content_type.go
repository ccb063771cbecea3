package cloudfs

import (
	"mime"
	"path"
	"strings"
)

// Extensions whose registered type differs between platforms' mime tables.
var extensionToMIME = map[string]string{
	".txt":  "text/plain",
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "text/javascript",
	".json": "application/json",
	".xml":  "application/xml",
	".csv":  "text/csv",
	".md":   "text/markdown",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".webp": "image/webp",
	".mp3":  "audio/mpeg",
	".mp4":  "video/mp4",
	".pdf":  "application/pdf",
	".zip":  "application/zip",
	".gz":   "application/gzip",
	".tar":  "application/x-tar",
}

// DetectContentType guesses a content type from the extension of name.
// It returns "" when the extension is unknown, so that a missing type stays
// distinguishable from application/octet-stream during comparison.
//
// The lookup never reads file content: two backends holding the same name
// report the same type.
func DetectContentType(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return ""
	}
	if ct, ok := extensionToMIME[ext]; ok {
		return ct
	}
	ct := mime.TypeByExtension(ext)
	if ct == "" {
		return ""
	}
	// Drop parameters such as "; charset=utf-8"
	if idx := strings.Index(ct, ";"); idx != -1 {
		ct = strings.TrimSpace(ct[:idx])
	}
	return ct
}
