package constants

import "strings"

const (
	ExtPDF  = "pdf"
	ExtJSON = "json"

	// GCSPrefix marks an input that lives in Cloud Storage.
	GCSPrefix = "gs://"
)

// AllowedExtensions holds the file extensions picked up by directory walks and watchers.
var AllowedExtensions = map[string]struct{}{
	ExtPDF: {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
