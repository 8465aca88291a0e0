package assets

import "strings"

// MaxUploadBytes caps an image payload (5 MiB).
const MaxUploadBytes = 5 << 20

// allowedMimeTypes are the content types the coordinator stores.
var allowedMimeTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
}

// AllowedMimeType reports whether mimeType may be stored.
func AllowedMimeType(mimeType string) bool {
	_, ok := allowedMimeTypes[strings.ToLower(strings.TrimSpace(mimeType))]
	return ok
}

// NormalizeMimeType folds the non-standard image/jpg alias accepted at the
// HTTP boundary onto image/jpeg and drops parameters such as charset.
func NormalizeMimeType(mimeType string) string {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.IndexByte(mt, ';'); idx >= 0 {
		mt = strings.TrimSpace(mt[:idx])
	}
	if mt == "image/jpg" {
		return "image/jpeg"
	}
	return mt
}
